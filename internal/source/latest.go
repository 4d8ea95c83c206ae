// Package source provides depth frame producers for the mesh builder:
// a latest-frame holder plus network, capture replay, serial and
// synthetic feeds that publish into it.
package source

import (
	"fmt"
	"sync"
	"time"

	"github.com/banshee-data/depthmesh/internal/mesh"
	"github.com/banshee-data/depthmesh/internal/timeutil"
)

// Publisher accepts complete row-major depth frames.
type Publisher interface {
	Publish(samples []uint16) error
}

// Latest holds the most recent complete frame for a fixed sensor
// resolution. It implements mesh.DepthSource.
type Latest struct {
	width, height int
	clock         timeutil.Clock

	mu        sync.RWMutex
	frame     []uint16
	frames    uint64
	updatedAt time.Time
}

var _ mesh.DepthSource = (*Latest)(nil)

// NewLatest creates an empty holder for a width x height sensor.
func NewLatest(width, height int, clock timeutil.Clock) *Latest {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Latest{width: width, height: height, clock: clock}
}

// Publish stores samples as the latest frame. The slice is retained, so
// callers must not modify it afterwards.
func (l *Latest) Publish(samples []uint16) error {
	if want := l.width * l.height; len(samples) != want {
		return fmt.Errorf("%w: frame has %d samples, want %d", mesh.ErrDimensionMismatch, len(samples), want)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.frame = samples
	l.frames++
	l.updatedAt = l.clock.Now()
	return nil
}

// Resolution returns the sensor resolution.
func (l *Latest) Resolution() (int, int) {
	return l.width, l.height
}

// LatestFrame returns the last published frame. ok is false before the
// first Publish.
func (l *Latest) LatestFrame() ([]uint16, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.frame, l.frame != nil
}

// Frames returns the number of frames published.
func (l *Latest) Frames() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.frames
}

// Age returns how long ago the last frame arrived. ok is false before the
// first Publish.
func (l *Latest) Age() (time.Duration, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.frame == nil {
		return 0, false
	}
	return l.clock.Since(l.updatedAt), true
}
