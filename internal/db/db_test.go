package db

import (
	"compress/gzip"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/banshee-data/depthmesh/internal/mesh"
	"github.com/banshee-data/depthmesh/internal/monitoring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	monitoring.SetLogger(nil)
}

var t0 = time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testGrid(t *testing.T) mesh.GridConfig {
	t.Helper()
	g, err := mesh.NewGridConfig(640, 480, 160, 120)
	require.NoError(t, err)
	return g
}

func newTestSession(t *testing.T, db *DB) *Session {
	t.Helper()
	s, err := db.StartSession("synthetic", testGrid(t), mesh.DefaultOptions(), "test", t0)
	require.NoError(t, err)
	return s
}

func stats(seq uint64, outcome mesh.Outcome) mesh.UpdateStats {
	return mesh.UpdateStats{
		Seq:           seq,
		Outcome:       outcome,
		Started:       t0.Add(time.Duration(seq) * 2 * time.Second),
		Duration:      3 * time.Millisecond,
		GridWidth:     160,
		GridHeight:    120,
		Vertices:      19200,
		Indices:       113526,
		ValidFraction: 0.75,
		MeanDepth:     1234.5,
		StdDevDepth:   12.25,
	}
}

func TestMigrations(t *testing.T) {
	db := newTestDB(t)

	version, dirty, err := db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
	assert.False(t, dirty)

	// Re-running is a no-op.
	require.NoError(t, db.MigrateUp())

	require.NoError(t, db.MigrateDown())
	version, _, err = db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)

	var n int
	err = db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE name = 'mesh_updates'`).Scan(&n)
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, db.MigrateUp())
}

func TestSessions(t *testing.T) {
	db := newTestDB(t)
	s := newTestSession(t, db)
	assert.Len(t, s.ID, 36)

	got, err := db.GetSession(s.ID)
	require.NoError(t, err)
	assert.Equal(t, "synthetic", got.Source)
	assert.Equal(t, 640, got.SensorWidth)
	assert.Equal(t, 120, got.GridHeight)
	assert.True(t, t0.Equal(got.StartedAt))
	assert.Nil(t, got.EndedAt)

	var opts mesh.Options
	require.NoError(t, json.Unmarshal([]byte(got.OptionsJSON), &opts))
	assert.Equal(t, 160, opts.DesiredWidth)

	require.NoError(t, db.EndSession(s.ID, t0.Add(time.Minute)))
	got, err = db.GetSession(s.ID)
	require.NoError(t, err)
	require.NotNil(t, got.EndedAt)
	assert.True(t, t0.Add(time.Minute).Equal(*got.EndedAt))

	_, err = db.GetSession("missing")
	assert.True(t, errors.Is(err, ErrSessionNotFound))
	assert.True(t, errors.Is(db.EndSession("missing", t0), ErrSessionNotFound))

	second, err := db.StartSession("udp", testGrid(t), mesh.DefaultOptions(), "test", t0.Add(time.Hour))
	require.NoError(t, err)
	list, err := db.ListSessions(0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
}

func TestRecordAndQueryUpdates(t *testing.T) {
	db := newTestDB(t)
	s := newTestSession(t, db)

	require.NoError(t, db.RecordUpdate(s.ID, stats(1, mesh.OutcomeSourceUnavailable)))
	require.NoError(t, db.RecordUpdate(s.ID, stats(2, mesh.OutcomeCommitted)))
	require.NoError(t, db.RecordUpdate(s.ID, stats(3, mesh.OutcomeCommitted)))

	assert.Error(t, db.RecordUpdate(s.ID, stats(3, mesh.OutcomeCommitted)), "duplicate seq")
	assert.Error(t, db.RecordUpdate("no-such-session", stats(1, mesh.OutcomeCommitted)), "foreign key")

	recent, err := db.RecentUpdates(s.ID, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	want := stats(3, mesh.OutcomeCommitted)
	assert.Equal(t, want.Seq, recent[0].Seq)
	assert.Equal(t, want.Outcome, recent[0].Outcome)
	assert.True(t, want.Started.Equal(recent[0].Started))
	assert.Equal(t, want.Duration, recent[0].Duration)
	assert.Equal(t, want.MeanDepth, recent[0].MeanDepth)
	assert.Equal(t, uint64(2), recent[1].Seq)

	counts, err := db.OutcomeCounts(s.ID)
	require.NoError(t, err)
	assert.Equal(t, map[mesh.Outcome]int{
		mesh.OutcomeCommitted:         2,
		mesh.OutcomeSourceUnavailable: 1,
	}, counts)

	n, err := db.PruneUpdates(t0.Add(5 * time.Second))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestRecorder(t *testing.T) {
	db := newTestDB(t)
	s := newTestSession(t, db)

	r := NewRecorder(db, s.ID)
	assert.Equal(t, s.ID, r.SessionID())
	r.ObserveUpdate(stats(1, mesh.OutcomeCommitted))
	r.ObserveUpdate(stats(1, mesh.OutcomeCommitted)) // duplicate, dropped
	assert.Equal(t, uint64(1), r.Failures())

	recent, err := db.RecentUpdates(s.ID, 0)
	require.NoError(t, err)
	assert.Len(t, recent, 1)
}

func TestAdminRoutes(t *testing.T) {
	db := newTestDB(t)
	newTestSession(t, db)

	mux := http.NewServeMux()
	require.NoError(t, db.AttachAdminRoutes(mux))

	// tsweb restricts /debug/ to loopback callers, so exercise the
	// handlers directly.
	rec := httptest.NewRecorder()
	db.handleSessions(rec, httptest.NewRequest(http.MethodGet, "/debug/sessions", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var sessions []Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sessions))
	assert.Len(t, sessions, 1)

	rec = httptest.NewRecorder()
	db.handleBackup(rec, httptest.NewRequest(http.MethodGet, "/debug/backup", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	gz, err := gzip.NewReader(rec.Body)
	require.NoError(t, err)
	raw, err := io.ReadAll(gz)
	require.NoError(t, err)
	assert.Equal(t, "SQLite format 3\x00", string(raw[:16]))
}
