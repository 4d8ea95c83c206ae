package db

import (
	"sync/atomic"

	"github.com/banshee-data/depthmesh/internal/mesh"
	"github.com/banshee-data/depthmesh/internal/monitoring"
)

// Recorder is a mesh.UpdateObserver that writes every update to a session.
// Write failures are counted and logged periodically.
type Recorder struct {
	db        *DB
	sessionID string
	failures  atomic.Uint64
}

var _ mesh.UpdateObserver = (*Recorder)(nil)

// NewRecorder records updates under sessionID.
func NewRecorder(db *DB, sessionID string) *Recorder {
	return &Recorder{db: db, sessionID: sessionID}
}

// ObserveUpdate implements mesh.UpdateObserver.
func (r *Recorder) ObserveUpdate(st mesh.UpdateStats) {
	if err := r.db.RecordUpdate(r.sessionID, st); err != nil {
		if n := r.failures.Add(1); n == 1 || n%100 == 0 {
			monitoring.Logf("[DB] %v (%d failures)", err, n)
		}
	}
}

// Failures returns how many updates could not be recorded.
func (r *Recorder) Failures() uint64 {
	return r.failures.Load()
}

// SessionID returns the session being recorded.
func (r *Recorder) SessionID() string {
	return r.sessionID
}
