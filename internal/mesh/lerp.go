package mesh

import (
	"math"

	v3 "github.com/deadsy/sdfx/vec/v3"
)

// TemporalFilter blends each new vertex grid toward the previous result.
// It keeps exactly one prior grid.
type TemporalFilter struct {
	// Speed is the blend factor applied once per update, clamped to [0, 1].
	// 1 adopts the new grid, 0 (or NaN) keeps the previous one.
	Speed float64

	prev []v3.Vec
}

// NewTemporalFilter creates a filter with the given speed.
func NewTemporalFilter(speed float64) *TemporalFilter {
	return &TemporalFilter{Speed: speed}
}

// Apply blends verts in place and retains the result for the next call.
// The first call, or a call after the grid size changed, primes the state
// and leaves verts unmodified.
func (f *TemporalFilter) Apply(verts []v3.Vec) {
	if len(f.prev) != len(verts) {
		f.prev = make([]v3.Vec, len(verts))
		copy(f.prev, verts)
		return
	}

	t := f.Speed
	if t >= 1 {
		copy(f.prev, verts)
		return
	}
	if !(t > 0) {
		t = 0
	}
	for i, cur := range verts {
		prev := f.prev[i]
		verts[i] = prev.Add(cur.Sub(prev).MulScalar(t))
	}
	copy(f.prev, verts)
}

// Primed reports whether a previous grid is being retained.
func (f *TemporalFilter) Primed() bool {
	return f.prev != nil
}

// Reset drops the retained grid.
func (f *TemporalFilter) Reset() {
	f.prev = nil
}

// clampSpeed limits speed to [0, 1]. A NaN speed is replaced by fallback,
// itself clamped.
func clampSpeed(speed, fallback float64) float64 {
	if math.IsNaN(speed) {
		if math.IsNaN(fallback) {
			return 0
		}
		speed = fallback
	}
	return math.Max(0, math.Min(1, speed))
}
