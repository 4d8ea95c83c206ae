package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/banshee-data/depthmesh/internal/mesh"
	"github.com/google/uuid"
)

// ErrSessionNotFound is returned when a session id is unknown.
var ErrSessionNotFound = errors.New("session not found")

// Session is one run of the mesh pipeline against a source.
type Session struct {
	ID           string     `json:"session_id"`
	StartedAt    time.Time  `json:"started_at"`
	EndedAt      *time.Time `json:"ended_at,omitempty"`
	Source       string     `json:"source"`
	SensorWidth  int        `json:"sensor_width"`
	SensorHeight int        `json:"sensor_height"`
	GridWidth    int        `json:"grid_width"`
	GridHeight   int        `json:"grid_height"`
	OptionsJSON  string     `json:"options_json"`
	Version      string     `json:"version"`
}

// StartSession inserts a new session with a fresh id. opts is stored as
// JSON for later inspection.
func (db *DB) StartSession(source string, grid mesh.GridConfig, opts mesh.Options, version string, now time.Time) (*Session, error) {
	optsJSON, err := json.Marshal(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to encode options: %w", err)
	}
	s := &Session{
		ID:           uuid.New().String(),
		StartedAt:    now,
		Source:       source,
		SensorWidth:  grid.SensorWidth,
		SensorHeight: grid.SensorHeight,
		GridWidth:    grid.ScaledWidth,
		GridHeight:   grid.ScaledHeight,
		OptionsJSON:  string(optsJSON),
		Version:      version,
	}
	_, err = db.Exec(`INSERT INTO mesh_sessions (
			session_id, started_unix_nanos, source, sensor_width, sensor_height,
			grid_width, grid_height, options_json, version
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, now.UnixNano(), s.Source, s.SensorWidth, s.SensorHeight,
		s.GridWidth, s.GridHeight, s.OptionsJSON, s.Version,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert session: %w", err)
	}
	return s, nil
}

// EndSession stamps the session's end time.
func (db *DB) EndSession(id string, now time.Time) error {
	res, err := db.Exec(`UPDATE mesh_sessions SET ended_unix_nanos = ? WHERE session_id = ?`, now.UnixNano(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return nil
}

// GetSession loads one session.
func (db *DB) GetSession(id string) (*Session, error) {
	row := db.QueryRow(`SELECT session_id, started_unix_nanos, ended_unix_nanos, source,
			sensor_width, sensor_height, grid_width, grid_height, options_json, version
		FROM mesh_sessions WHERE session_id = ?`, id)
	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return s, err
}

// ListSessions returns the most recent sessions first.
func (db *DB) ListSessions(limit int) ([]Session, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(`SELECT session_id, started_unix_nanos, ended_unix_nanos, source,
			sensor_width, sensor_height, grid_width, grid_height, options_json, version
		FROM mesh_sessions ORDER BY started_unix_nanos DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(r scanner) (*Session, error) {
	var (
		s       Session
		started int64
		ended   sql.NullInt64
	)
	if err := r.Scan(&s.ID, &started, &ended, &s.Source, &s.SensorWidth, &s.SensorHeight,
		&s.GridWidth, &s.GridHeight, &s.OptionsJSON, &s.Version); err != nil {
		return nil, err
	}
	s.StartedAt = time.Unix(0, started).UTC()
	if ended.Valid {
		t := time.Unix(0, ended.Int64).UTC()
		s.EndedAt = &t
	}
	return &s, nil
}
