package source

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/banshee-data/depthmesh/internal/monitoring"
	"github.com/banshee-data/depthmesh/internal/timeutil"
)

// SyntheticGenerator produces an animated depth surface for demos and
// tests. Frames are deterministic for a given seed.
type SyntheticGenerator struct {
	Width, Height int

	// Configuration
	BaseDepth   float64 // mean depth in sensor units
	Amplitude   float64 // wave amplitude in sensor units
	Waves       float64 // wave periods across the frame width
	Step        float64 // phase advance per frame, in periods
	DropoutRate float64 // probability that a sample reads 0

	frameID uint64
	rng     *rand.Rand
}

// NewSyntheticGenerator creates a generator with demo defaults.
func NewSyntheticGenerator(width, height int, seed int64) *SyntheticGenerator {
	return &SyntheticGenerator{
		Width:       width,
		Height:      height,
		BaseDepth:   1200,
		Amplitude:   300,
		Waves:       2,
		Step:        0.02,
		DropoutRate: 0.01,
		rng:         rand.New(rand.NewSource(seed)),
	}
}

// NextFrame renders the next frame.
func (g *SyntheticGenerator) NextFrame() []uint16 {
	phase := float64(g.frameID) * g.Step
	g.frameID++

	frame := make([]uint16, g.Width*g.Height)
	for y := 0; y < g.Height; y++ {
		fy := float64(y) / float64(g.Height)
		ridge := math.Cos(2 * math.Pi * (fy - 0.5))
		for x := 0; x < g.Width; x++ {
			if g.DropoutRate > 0 && g.rng.Float64() < g.DropoutRate {
				continue
			}
			fx := float64(x) / float64(g.Width)
			d := g.BaseDepth + g.Amplitude*math.Sin(2*math.Pi*(g.Waves*fx+phase))*ridge
			frame[y*g.Width+x] = clampDepth(d)
		}
	}
	return frame
}

// Frames returns how many frames have been rendered.
func (g *SyntheticGenerator) Frames() uint64 {
	return g.frameID
}

// Run publishes a frame every interval until ctx is cancelled.
func (g *SyntheticGenerator) Run(ctx context.Context, clock timeutil.Clock, interval time.Duration, out Publisher) error {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	monitoring.Logf("[SyntheticSource] %dx%d every %v", g.Width, g.Height, interval)
	if err := out.Publish(g.NextFrame()); err != nil {
		return err
	}
	ticker := clock.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C():
			if err := out.Publish(g.NextFrame()); err != nil {
				return err
			}
		}
	}
}

// clampDepth keeps synthetic readings inside the valid non-zero uint16 range.
func clampDepth(d float64) uint16 {
	switch {
	case d < 1:
		return 1
	case d > math.MaxUint16:
		return math.MaxUint16
	}
	return uint16(d)
}
