// Package scheduler invokes the mesh builder at a fixed interval,
// independent of any render loop.
package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/banshee-data/depthmesh/internal/mesh"
	"github.com/banshee-data/depthmesh/internal/monitoring"
	"github.com/banshee-data/depthmesh/internal/timeutil"
)

// Updater runs one synchronous mesh update.
type Updater interface {
	Update() (mesh.UpdateStats, error)
}

// Scheduler calls Updater.Update once per interval. Updates never overlap:
// a tick that arrives while an update is running is dropped, as with
// time.Ticker.
type Scheduler struct {
	updater  Updater
	interval time.Duration
	clock    timeutil.Clock

	// Immediate runs one update as soon as Run starts.
	Immediate bool

	runs     atomic.Uint64
	skips    atomic.Uint64
	failures atomic.Uint64
}

// New creates a scheduler. A nil clock uses the wall clock.
func New(u Updater, interval time.Duration, clock timeutil.Clock) (*Scheduler, error) {
	if u == nil {
		return nil, errors.New("scheduler: updater is required")
	}
	if interval <= 0 {
		return nil, errors.New("scheduler: interval must be positive")
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Scheduler{updater: u, interval: interval, clock: clock, Immediate: true}, nil
}

// Run drives updates until ctx is cancelled. Update errors are logged and
// counted; they never stop the loop.
func (s *Scheduler) Run(ctx context.Context) error {
	monitoring.Logf("[Scheduler] updating every %v", s.interval)
	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	if s.Immediate {
		s.tick()
	}
	for {
		select {
		case <-ctx.Done():
			monitoring.Logf("[Scheduler] stopping after %d updates", s.runs.Load())
			return ctx.Err()
		case <-ticker.C():
			s.tick()
		}
	}
}

func (s *Scheduler) tick() {
	s.runs.Add(1)
	_, err := s.updater.Update()
	switch {
	case err == nil:
	case mesh.IsSkip(err):
		s.skips.Add(1)
	default:
		s.failures.Add(1)
		monitoring.Logf("[Scheduler] update failed: %v", err)
	}
}

// Stats reports how many updates ran, how many were skipped for missing or
// malformed input, and how many failed otherwise.
func (s *Scheduler) Stats() (runs, skips, failures uint64) {
	return s.runs.Load(), s.skips.Load(), s.failures.Load()
}
