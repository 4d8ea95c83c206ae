package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DefaultConfigPath is the path to the canonical mesh defaults file.
const DefaultConfigPath = "config/mesh.defaults.json"

// MeshConfig is the root configuration for the depth mesh pipeline.
// Unset fields fall back to the defaults returned by the Get* methods, so
// partial files are safe.
type MeshConfig struct {
	// Vertex grid resolution; must evenly divide the sensor resolution.
	DesiredWidth  *int `json:"desired_width,omitempty"`
	DesiredHeight *int `json:"desired_height,omitempty"`

	// Depth validity
	ZThreshold      *float64 `json:"z_threshold,omitempty"`
	ThresholdPolicy *string  `json:"threshold_policy,omitempty"` // "zero", "carry" or "hold"
	MaxDepth        *int     `json:"max_depth,omitempty"`

	// Filters
	ApplyBlur      *bool    `json:"apply_blur,omitempty"`
	BlurIterations *int     `json:"blur_iterations,omitempty"`
	ApplyLerp      *bool    `json:"apply_lerp,omitempty"`
	LerpSpeed      *float64 `json:"lerp_speed,omitempty"`

	// Output
	GridScale       *[3]float64 `json:"grid_scale,omitempty"`
	GenerateNormals *bool       `json:"generate_normals,omitempty"`
	GenerateUVs     *bool       `json:"generate_uvs,omitempty"`

	// Scheduling
	UpdateInterval *string `json:"update_interval,omitempty"` // duration string like "2s"
}

// EmptyMeshConfig returns a MeshConfig with all fields unset.
func EmptyMeshConfig() *MeshConfig {
	return &MeshConfig{}
}

// LoadMeshConfig loads a MeshConfig from a JSON file and validates it.
// The file must have a .json extension and be under 1MB.
func LoadMeshConfig(path string) (*MeshConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyMeshConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching from the current
// directory up towards the repository root. Panics if the file cannot be
// loaded; intended for test setup.
func MustLoadDefaultConfig() *MeshConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,       // from internal/config/
		"../../../" + DefaultConfigPath,    // from internal/mesh/export/
		"../../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadMeshConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that every set field holds a usable value.
func (c *MeshConfig) Validate() error {
	if c.DesiredWidth != nil && *c.DesiredWidth < 2 {
		return fmt.Errorf("desired_width must be at least 2, got %d", *c.DesiredWidth)
	}
	if c.DesiredHeight != nil && *c.DesiredHeight < 2 {
		return fmt.Errorf("desired_height must be at least 2, got %d", *c.DesiredHeight)
	}

	if c.ZThreshold != nil && *c.ZThreshold < 0 {
		return fmt.Errorf("z_threshold must be non-negative, got %f", *c.ZThreshold)
	}
	if c.ThresholdPolicy != nil {
		switch strings.ToLower(strings.TrimSpace(*c.ThresholdPolicy)) {
		case "", "zero", "carry", "hold":
		default:
			return fmt.Errorf("threshold_policy must be zero, carry or hold, got %q", *c.ThresholdPolicy)
		}
	}
	if c.MaxDepth != nil && *c.MaxDepth <= 0 {
		return fmt.Errorf("max_depth must be positive, got %d", *c.MaxDepth)
	}

	if c.BlurIterations != nil && *c.BlurIterations < 0 {
		return fmt.Errorf("blur_iterations must be non-negative, got %d", *c.BlurIterations)
	}
	if c.LerpSpeed != nil {
		if *c.LerpSpeed < 0 || *c.LerpSpeed > 1 {
			return fmt.Errorf("lerp_speed must be between 0 and 1, got %f", *c.LerpSpeed)
		}
	}

	if c.UpdateInterval != nil && *c.UpdateInterval != "" {
		d, err := time.ParseDuration(*c.UpdateInterval)
		if err != nil {
			return fmt.Errorf("invalid update_interval '%s': %w", *c.UpdateInterval, err)
		}
		if d <= 0 {
			return fmt.Errorf("update_interval must be positive, got %s", d)
		}
	}

	return nil
}

// GetDesiredWidth returns the desired_width value or the default.
func (c *MeshConfig) GetDesiredWidth() int {
	if c.DesiredWidth == nil {
		return 160
	}
	return *c.DesiredWidth
}

// GetDesiredHeight returns the desired_height value or the default.
func (c *MeshConfig) GetDesiredHeight() int {
	if c.DesiredHeight == nil {
		return 120
	}
	return *c.DesiredHeight
}

// GetZThreshold returns the z_threshold value or the default.
func (c *MeshConfig) GetZThreshold() float64 {
	if c.ZThreshold == nil {
		return 0
	}
	return *c.ZThreshold
}

// GetThresholdPolicy returns the threshold_policy value or the default.
func (c *MeshConfig) GetThresholdPolicy() string {
	if c.ThresholdPolicy == nil || *c.ThresholdPolicy == "" {
		return "zero"
	}
	return *c.ThresholdPolicy
}

// GetMaxDepth returns the max_depth value or the default (11-bit range).
func (c *MeshConfig) GetMaxDepth() int {
	if c.MaxDepth == nil {
		return 2047
	}
	return *c.MaxDepth
}

// GetApplyBlur returns the apply_blur value or the default.
func (c *MeshConfig) GetApplyBlur() bool {
	if c.ApplyBlur == nil {
		return true
	}
	return *c.ApplyBlur
}

// GetBlurIterations returns the blur_iterations value or the default.
func (c *MeshConfig) GetBlurIterations() int {
	if c.BlurIterations == nil {
		return 1
	}
	return *c.BlurIterations
}

// GetApplyLerp returns the apply_lerp value or the default.
func (c *MeshConfig) GetApplyLerp() bool {
	if c.ApplyLerp == nil {
		return true
	}
	return *c.ApplyLerp
}

// GetLerpSpeed returns the lerp_speed value or the default.
func (c *MeshConfig) GetLerpSpeed() float64 {
	if c.LerpSpeed == nil {
		return 1.0
	}
	return *c.LerpSpeed
}

// GetGridScale returns the per-axis world scale or the default unit scale.
func (c *MeshConfig) GetGridScale() [3]float64 {
	if c.GridScale == nil {
		return [3]float64{1, 1, 1}
	}
	return *c.GridScale
}

// GetGenerateNormals returns the generate_normals value or the default.
func (c *MeshConfig) GetGenerateNormals() bool {
	if c.GenerateNormals == nil {
		return false
	}
	return *c.GenerateNormals
}

// GetGenerateUVs returns the generate_uvs value or the default.
func (c *MeshConfig) GetGenerateUVs() bool {
	if c.GenerateUVs == nil {
		return true
	}
	return *c.GenerateUVs
}

// GetUpdateInterval parses and returns UpdateInterval as a time.Duration.
func (c *MeshConfig) GetUpdateInterval() time.Duration {
	if c.UpdateInterval == nil || *c.UpdateInterval == "" {
		return 2 * time.Second // default
	}
	d, err := time.ParseDuration(*c.UpdateInterval)
	if err != nil || d <= 0 {
		return 2 * time.Second // default on parse error
	}
	return d
}
