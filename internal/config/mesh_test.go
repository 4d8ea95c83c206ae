package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	return path
}

func TestEmptyMeshConfigDefaults(t *testing.T) {
	cfg := EmptyMeshConfig()

	if got := cfg.GetDesiredWidth(); got != 160 {
		t.Errorf("GetDesiredWidth() = %d, want 160", got)
	}
	if got := cfg.GetDesiredHeight(); got != 120 {
		t.Errorf("GetDesiredHeight() = %d, want 120", got)
	}
	if got := cfg.GetThresholdPolicy(); got != "zero" {
		t.Errorf("GetThresholdPolicy() = %q, want zero", got)
	}
	if got := cfg.GetMaxDepth(); got != 2047 {
		t.Errorf("GetMaxDepth() = %d, want 2047", got)
	}
	if !cfg.GetApplyBlur() || cfg.GetBlurIterations() != 1 {
		t.Errorf("blur defaults = (%v, %d), want (true, 1)", cfg.GetApplyBlur(), cfg.GetBlurIterations())
	}
	if !cfg.GetApplyLerp() || cfg.GetLerpSpeed() != 1.0 {
		t.Errorf("lerp defaults = (%v, %f), want (true, 1.0)", cfg.GetApplyLerp(), cfg.GetLerpSpeed())
	}
	if got := cfg.GetGridScale(); got != [3]float64{1, 1, 1} {
		t.Errorf("GetGridScale() = %v, want [1 1 1]", got)
	}
	if cfg.GetGenerateNormals() {
		t.Error("GetGenerateNormals() = true, want false")
	}
	if !cfg.GetGenerateUVs() {
		t.Error("GetGenerateUVs() = false, want true")
	}
	if got := cfg.GetUpdateInterval(); got != 2*time.Second {
		t.Errorf("GetUpdateInterval() = %v, want 2s", got)
	}
}

func TestLoadMeshConfig(t *testing.T) {
	path := writeConfig(t, "mesh.json", `{
  "desired_width": 80,
  "desired_height": 60,
  "z_threshold": 400,
  "threshold_policy": "hold",
  "apply_blur": false,
  "lerp_speed": 0.25,
  "grid_scale": [0.01, 0.01, 0.005],
  "generate_normals": true,
  "update_interval": "500ms"
}`)

	cfg, err := LoadMeshConfig(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.GetDesiredWidth() != 80 || cfg.GetDesiredHeight() != 60 {
		t.Errorf("desired = %dx%d, want 80x60", cfg.GetDesiredWidth(), cfg.GetDesiredHeight())
	}
	if cfg.GetZThreshold() != 400 {
		t.Errorf("GetZThreshold() = %f, want 400", cfg.GetZThreshold())
	}
	if cfg.GetThresholdPolicy() != "hold" {
		t.Errorf("GetThresholdPolicy() = %q, want hold", cfg.GetThresholdPolicy())
	}
	if cfg.GetApplyBlur() {
		t.Error("GetApplyBlur() = true, want false")
	}
	if cfg.GetLerpSpeed() != 0.25 {
		t.Errorf("GetLerpSpeed() = %f, want 0.25", cfg.GetLerpSpeed())
	}
	if got := cfg.GetGridScale(); got != [3]float64{0.01, 0.01, 0.005} {
		t.Errorf("GetGridScale() = %v", got)
	}
	if !cfg.GetGenerateNormals() {
		t.Error("GetGenerateNormals() = false, want true")
	}
	if cfg.GetUpdateInterval() != 500*time.Millisecond {
		t.Errorf("GetUpdateInterval() = %v, want 500ms", cfg.GetUpdateInterval())
	}
	// Unset fields keep their defaults.
	if cfg.GetBlurIterations() != 1 || cfg.GetMaxDepth() != 2047 {
		t.Errorf("unset fields did not fall back to defaults")
	}
}

func TestLoadMeshConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		body    string
		wantErr string
	}{
		{name: "wrong extension", file: "mesh.yaml", body: `{}`, wantErr: ".json extension"},
		{name: "malformed json", file: "bad.json", body: `{"desired_width": "wide"`, wantErr: "failed to parse"},
		{name: "invalid value", file: "neg.json", body: `{"blur_iterations": -1}`, wantErr: "blur_iterations"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadMeshConfig(writeConfig(t, tt.file, tt.body))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("LoadMeshConfig() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}

	if _, err := LoadMeshConfig("/nonexistent/path/to/mesh.json"); err == nil {
		t.Error("Expected error when loading missing file, got nil")
	}
}

func TestValidate(t *testing.T) {
	intp := func(v int) *int { return &v }
	f64p := func(v float64) *float64 { return &v }
	strp := func(v string) *string { return &v }

	tests := []struct {
		name    string
		cfg     MeshConfig
		wantErr bool
	}{
		{name: "empty", cfg: MeshConfig{}},
		{name: "degenerate width", cfg: MeshConfig{DesiredWidth: intp(1)}, wantErr: true},
		{name: "degenerate height", cfg: MeshConfig{DesiredHeight: intp(0)}, wantErr: true},
		{name: "negative threshold", cfg: MeshConfig{ZThreshold: f64p(-1)}, wantErr: true},
		{name: "unknown policy", cfg: MeshConfig{ThresholdPolicy: strp("freeze")}, wantErr: true},
		{name: "carry policy", cfg: MeshConfig{ThresholdPolicy: strp("carry")}},
		{name: "zero max depth", cfg: MeshConfig{MaxDepth: intp(0)}, wantErr: true},
		{name: "lerp speed above one", cfg: MeshConfig{LerpSpeed: f64p(1.5)}, wantErr: true},
		{name: "lerp speed zero", cfg: MeshConfig{LerpSpeed: f64p(0)}},
		{name: "bad interval", cfg: MeshConfig{UpdateInterval: strp("soon")}, wantErr: true},
		{name: "negative interval", cfg: MeshConfig{UpdateInterval: strp("-1s")}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadDefaultConfigFile(t *testing.T) {
	cfg := MustLoadDefaultConfig()
	if cfg.GetDesiredWidth() != 160 || cfg.GetDesiredHeight() != 120 {
		t.Errorf("defaults file desired = %dx%d, want 160x120", cfg.GetDesiredWidth(), cfg.GetDesiredHeight())
	}
	if cfg.GetUpdateInterval() != 2*time.Second {
		t.Errorf("defaults file update_interval = %v, want 2s", cfg.GetUpdateInterval())
	}
}
