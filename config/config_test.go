package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/openfluke/neuralterrain/diffusion"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if f, _ := cfg.UpsampleFactor(); f != 2 {
		t.Errorf("factor = %d, want 2", f)
	}
	if cfg.Model.CacheDir == "" {
		t.Error("cache dir not filled in")
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nt.yaml")
	data := `
diffusion:
  starting_step: 10
  seed: 99
upsample:
  resolution: 1024
log:
  level: debug
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Diffusion.StartingStep != 10 || cfg.Diffusion.Seed != 99 {
		t.Errorf("diffusion = %+v", cfg.Diffusion)
	}
	if cfg.Diffusion.FromSelectedSteps != 20 {
		t.Errorf("omitted key lost its default: %d", cfg.Diffusion.FromSelectedSteps)
	}
	if f, _ := cfg.UpsampleFactor(); f != 4 {
		t.Errorf("factor = %d, want 4", f)
	}
	if lvl, _ := cfg.Log.SlogLevel(); lvl != slog.LevelDebug {
		t.Errorf("level = %v", lvl)
	}
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"signal order", func(c *Config) { c.Diffusion.MinSignalRate = 0.95 }, "signal rates"},
		{"signal above one", func(c *Config) { c.Diffusion.MaxSignalRate = 1.01 }, "max_signal_rate"},
		{"signal zero", func(c *Config) { c.Diffusion.MinSignalRate = 0 }, "min_signal_rate"},
		{"starting step", func(c *Config) { c.Diffusion.StartingStep = 21 }, "diffusion.starting_step"},
		{"zero steps", func(c *Config) { c.Diffusion.FromScratchSteps = 0 }, "diffusion.from_scratch_steps"},
		{"weight", func(c *Config) { c.Diffusion.SelectedWeight = 1.5 }, "diffusion.selected_weight"},
		{"resolution", func(c *Config) { c.Upsample.Resolution = 768 }, "upsample.resolution"},
		{"not multiple", func(c *Config) { c.Upsample.Resolution = 300 }, "upsample.resolution"},
		{"blend b", func(c *Config) { c.Blend.B = 6 }, "blend.b"},
		{"height", func(c *Config) { c.Terrain.HeightMultiplier = 0 }, "terrain.height_multiplier"},
		{"random model", func(c *Config) { c.Model.Random.KernelSize = 2 }, "model.random.kernel_size"},
		{"log level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"budget", func(c *Config) { c.GPU.BudgetMB = -1 }, "gpu.budget_mb"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.field) {
				t.Errorf("error %q does not name %q", err, tt.field)
			}
		})
	}
}

func TestSignalRateBoundsMatchSchedule(t *testing.T) {
	for _, rate := range []float64{0.5, 0.99, 1, 1.0001} {
		cfg := Default()
		cfg.Diffusion.MaxSignalRate = rate
		s := diffusion.Schedule{MinSignalRate: cfg.Diffusion.MinSignalRate, MaxSignalRate: rate}
		cfgErr, schedErr := cfg.Validate(), s.Validate()
		if (cfgErr == nil) != (schedErr == nil) {
			t.Errorf("max_signal_rate %v: config err %v, schedule err %v", rate, cfgErr, schedErr)
		}
	}
}

func TestWriteDefaultRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "nt.yaml")
	if err := WriteDefault(path); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Upsample.Resolution != 512 || cfg.Terrain.HeightMultiplier != 0.5 {
		t.Errorf("round trip lost values: %+v", cfg)
	}
}

func TestLoadMissing(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected read error")
	}
}
