package mesh

import (
	"fmt"

	"github.com/banshee-data/depthmesh/internal/config"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Options configures a Builder. Blur and smoothing may be toggled per
// update; the remaining fields are fixed at setup or on Reconfigure.
type Options struct {
	DesiredWidth  int
	DesiredHeight int

	ZThreshold      float64
	ThresholdPolicy ThresholdPolicy
	MaxDepth        int

	ApplyBlur      bool
	BlurIterations int
	ApplyLerp      bool
	LerpSpeed      float64

	GridScale       v3.Vec
	GenerateNormals bool
	GenerateUVs     bool
}

// DefaultOptions returns the built-in defaults: a 160x120 grid, one blur
// pass, full-speed smoothing and unit world scale.
func DefaultOptions() Options {
	return OptionsFromConfig(config.EmptyMeshConfig())
}

// OptionsFromConfig builds Options from a loaded MeshConfig. An unknown
// threshold policy degrades to ThresholdZero; LoadMeshConfig rejects it
// before this point.
func OptionsFromConfig(cfg *config.MeshConfig) Options {
	policy, err := ParseThresholdPolicy(cfg.GetThresholdPolicy())
	if err != nil {
		policy = ThresholdZero
	}
	scale := cfg.GetGridScale()
	return Options{
		DesiredWidth:    cfg.GetDesiredWidth(),
		DesiredHeight:   cfg.GetDesiredHeight(),
		ZThreshold:      cfg.GetZThreshold(),
		ThresholdPolicy: policy,
		MaxDepth:        cfg.GetMaxDepth(),
		ApplyBlur:       cfg.GetApplyBlur(),
		BlurIterations:  cfg.GetBlurIterations(),
		ApplyLerp:       cfg.GetApplyLerp(),
		LerpSpeed:       cfg.GetLerpSpeed(),
		GridScale:       v3.Vec{X: scale[0], Y: scale[1], Z: scale[2]},
		GenerateNormals: cfg.GetGenerateNormals(),
		GenerateUVs:     cfg.GetGenerateUVs(),
	}
}

func (o Options) samplerOptions() SamplerOptions {
	return SamplerOptions{
		MaxDepth:   o.MaxDepth,
		ZThreshold: o.ZThreshold,
		Policy:     o.ThresholdPolicy,
		Scale:      o.GridScale,
	}
}

func (o Options) validate() error {
	if o.BlurIterations < 0 {
		return fmt.Errorf("%w: blur iterations must be non-negative, got %d", ErrConfiguration, o.BlurIterations)
	}
	if !(o.LerpSpeed >= 0 && o.LerpSpeed <= 1) {
		return fmt.Errorf("%w: lerp speed must be within [0, 1], got %v", ErrConfiguration, o.LerpSpeed)
	}
	if o.ZThreshold < 0 {
		return fmt.Errorf("%w: z threshold must be non-negative, got %f", ErrConfiguration, o.ZThreshold)
	}
	return nil
}
