package mesh

import (
	"fmt"
	"strings"

	v3 "github.com/deadsy/sdfx/vec/v3"
)

// DefaultMaxDepth is the sentinel depth substituted for invalid (zero)
// samples: the largest value an 11-bit depth sensor can report.
const DefaultMaxDepth = 1<<11 - 1

// ThresholdPolicy decides the depth of a cell whose sample falls below
// the z threshold.
type ThresholdPolicy int

const (
	// ThresholdZero writes z = 0 for below-threshold cells.
	ThresholdZero ThresholdPolicy = iota
	// ThresholdCarry reuses the z last written while scanning the current
	// frame, so a below-threshold cell copies its nearest valid predecessor
	// in row-major order. The first cell of a frame starts from 0.
	ThresholdCarry
	// ThresholdHold keeps the same cell's z from the previous frame.
	ThresholdHold
)

// ParseThresholdPolicy maps a config string onto a ThresholdPolicy.
func ParseThresholdPolicy(s string) (ThresholdPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "zero":
		return ThresholdZero, nil
	case "carry":
		return ThresholdCarry, nil
	case "hold":
		return ThresholdHold, nil
	default:
		return ThresholdZero, fmt.Errorf("unknown threshold policy %q: expected zero, carry or hold", s)
	}
}

func (p ThresholdPolicy) String() string {
	switch p {
	case ThresholdZero:
		return "zero"
	case ThresholdCarry:
		return "carry"
	case ThresholdHold:
		return "hold"
	default:
		return fmt.Sprintf("ThresholdPolicy(%d)", int(p))
	}
}

// DepthPoint is one decimated sample in sensor-pixel space.
type DepthPoint struct {
	X, Y  int  // pixel coordinates (recentred after Transform)
	Z     int  // depth in sensor units
	Valid bool // false when the raw sample was 0 and Z holds the sentinel
	// Measured is true when Z is this frame's sample; false when the
	// threshold policy substituted it.
	Measured bool
}

// SamplerOptions configures a Sampler.
type SamplerOptions struct {
	MaxDepth   int
	ZThreshold float64
	Policy     ThresholdPolicy
	Scale      v3.Vec
}

// Sampler decimates raw depth frames onto the vertex grid and maps them
// into world space.
type Sampler struct {
	grid GridConfig
	opts SamplerOptions

	points []DepthPoint
	held   []int // per-cell z, only used by ThresholdHold
}

// NewSampler creates a Sampler for grid. A non-positive MaxDepth falls
// back to DefaultMaxDepth.
func NewSampler(grid GridConfig, opts SamplerOptions) *Sampler {
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	s := &Sampler{
		grid:   grid,
		opts:   opts,
		points: make([]DepthPoint, grid.VertexCount()),
	}
	if opts.Policy == ThresholdHold {
		s.held = make([]int, grid.VertexCount())
	}
	return s
}

// Sample reads the first sample of every stride block. The returned slice
// is owned by the Sampler and is overwritten by the next call.
func (s *Sampler) Sample(raw []uint16) ([]DepthPoint, error) {
	g := s.grid
	if len(raw) != g.SampleCount() {
		return nil, fmt.Errorf("%w: got %d samples, want %d (%dx%d)",
			ErrDimensionMismatch, len(raw), g.SampleCount(), g.SensorWidth, g.SensorHeight)
	}

	carry := 0
	for y := 0; y < g.ScaledHeight; y++ {
		row := y * g.StrideY * g.SensorWidth
		for x := 0; x < g.ScaledWidth; x++ {
			i := g.Index(x, y)
			pixel := int(raw[row+x*g.StrideX])
			valid := pixel != 0
			if !valid {
				pixel = s.opts.MaxDepth
			}

			pt := DepthPoint{X: x * g.StrideX, Y: y * g.StrideY, Valid: valid}
			if float64(pixel) >= s.opts.ZThreshold {
				pt.Z = pixel
				pt.Measured = true
				carry = pixel
				if s.held != nil {
					s.held[i] = pixel
				}
			} else {
				switch s.opts.Policy {
				case ThresholdCarry:
					pt.Z = carry
				case ThresholdHold:
					pt.Z = s.held[i]
				default:
					pt.Z = 0
				}
			}
			s.points[i] = pt
		}
	}
	return s.points, nil
}

// Transform recentres points on the sensor's optical centre and flips the
// vertical axis so y grows upwards. No lens model is applied.
func (s *Sampler) Transform(points []DepthPoint) {
	halfW := s.grid.SensorWidth / 2
	halfH := s.grid.SensorHeight / 2
	for i := range points {
		points[i].X -= halfW
		points[i].Y = halfH - points[i].Y
	}
}

// Vertices samples raw, recentres it and scales it into a fresh vertex
// slice. Depth maps onto negative world Z.
func (s *Sampler) Vertices(raw []uint16) ([]v3.Vec, error) {
	points, err := s.Sample(raw)
	if err != nil {
		return nil, err
	}
	s.Transform(points)

	scale := s.opts.Scale
	verts := make([]v3.Vec, len(points))
	for i, pt := range points {
		verts[i] = v3.Vec{
			X: float64(pt.X) * scale.X,
			Y: float64(pt.Y) * scale.Y,
			Z: -float64(pt.Z) * scale.Z,
		}
	}
	return verts, nil
}

// Points returns the depth points produced by the last Sample call.
func (s *Sampler) Points() []DepthPoint {
	return s.points
}
