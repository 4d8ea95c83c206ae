package db

import (
	"fmt"
	"time"

	"github.com/banshee-data/depthmesh/internal/mesh"
)

// RecordUpdate stores the outcome of one update cycle.
func (db *DB) RecordUpdate(sessionID string, st mesh.UpdateStats) error {
	_, err := db.Exec(`INSERT INTO mesh_updates (
			session_id, seq, outcome, started_unix_nanos, duration_nanos,
			grid_width, grid_height, vertices, indices,
			valid_fraction, mean_depth, stddev_depth
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sessionID, int64(st.Seq), string(st.Outcome), st.Started.UnixNano(), int64(st.Duration),
		st.GridWidth, st.GridHeight, st.Vertices, st.Indices,
		st.ValidFraction, st.MeanDepth, st.StdDevDepth,
	)
	if err != nil {
		return fmt.Errorf("failed to record update %d: %w", st.Seq, err)
	}
	return nil
}

// RecentUpdates returns up to limit updates for a session, newest first.
func (db *DB) RecentUpdates(sessionID string, limit int) ([]mesh.UpdateStats, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.Query(`SELECT seq, outcome, started_unix_nanos, duration_nanos,
			grid_width, grid_height, vertices, indices,
			valid_fraction, mean_depth, stddev_depth
		FROM mesh_updates WHERE session_id = ? ORDER BY seq DESC LIMIT ?`, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []mesh.UpdateStats
	for rows.Next() {
		var (
			st       mesh.UpdateStats
			seq      int64
			outcome  string
			started  int64
			duration int64
		)
		if err := rows.Scan(&seq, &outcome, &started, &duration,
			&st.GridWidth, &st.GridHeight, &st.Vertices, &st.Indices,
			&st.ValidFraction, &st.MeanDepth, &st.StdDevDepth); err != nil {
			return nil, err
		}
		st.Seq = uint64(seq)
		st.Outcome = mesh.Outcome(outcome)
		st.Started = time.Unix(0, started).UTC()
		st.Duration = time.Duration(duration)
		out = append(out, st)
	}
	return out, rows.Err()
}

// OutcomeCounts tallies a session's updates by outcome.
func (db *DB) OutcomeCounts(sessionID string) (map[mesh.Outcome]int, error) {
	rows, err := db.Query(`SELECT outcome, COUNT(*) FROM mesh_updates
		WHERE session_id = ? GROUP BY outcome`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[mesh.Outcome]int)
	for rows.Next() {
		var (
			outcome string
			n       int
		)
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, err
		}
		counts[mesh.Outcome(outcome)] = n
	}
	return counts, rows.Err()
}

// PruneUpdates deletes updates older than cutoff and returns how many
// rows were removed.
func (db *DB) PruneUpdates(cutoff time.Time) (int64, error) {
	res, err := db.Exec(`DELETE FROM mesh_updates WHERE started_unix_nanos < ?`, cutoff.UnixNano())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
