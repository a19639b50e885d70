package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/openfluke/neuralterrain/diffusion"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Model     ModelConfig     `yaml:"model"`
	Diffusion DiffusionConfig `yaml:"diffusion"`
	Upsample  UpsampleConfig  `yaml:"upsample"`
	Blend     BlendConfig     `yaml:"blend"`
	Terrain   TerrainConfig   `yaml:"terrain"`
	GPU       GPUConfig       `yaml:"gpu"`
	Log       LogConfig       `yaml:"log"`
}

type ModelConfig struct {
	// Source is a go-getter address of a safetensors weights file. Empty
	// means an untrained network is built from Random.
	Source       string      `yaml:"source"`
	CacheDir     string      `yaml:"cache_dir"`
	OutputWidth  int         `yaml:"output_width"`
	OutputHeight int         `yaml:"output_height"`
	Channels     int         `yaml:"channels"`
	Random       RandomModel `yaml:"random"`
}

type RandomModel struct {
	Hidden     int    `yaml:"hidden"`
	Depth      int    `yaml:"depth"`
	KernelSize int    `yaml:"kernel_size"`
	Seed       uint64 `yaml:"seed"`
}

type DiffusionConfig struct {
	MinSignalRate     float64 `yaml:"min_signal_rate"`
	MaxSignalRate     float64 `yaml:"max_signal_rate"`
	FromScratchSteps  int     `yaml:"from_scratch_steps"`
	FromSelectedSteps int     `yaml:"from_selected_steps"`
	StartingStep      int     `yaml:"starting_step"`
	SelectedWeight    float64 `yaml:"selected_weight"`
	BrushSteps        int     `yaml:"brush_steps"`
	// Seed fixes the noise stream; 0 draws a fresh seed per run.
	Seed uint64 `yaml:"seed"`
}

type UpsampleConfig struct {
	// Resolution is the upsampled tile width: 256, 512, 1024, 2048 or 4096
	// for a 256 wide model.
	Resolution int  `yaml:"resolution"`
	Clamp      bool `yaml:"clamp"`
}

type BlendConfig struct {
	B                   float64 `yaml:"b"`
	KeepNeighborHeights bool    `yaml:"keep_neighbor_heights"`
}

type TerrainConfig struct {
	HeightMultiplier float64 `yaml:"height_multiplier"`
	OutputDir        string  `yaml:"output_dir"`
}

type GPUConfig struct {
	Enabled  bool `yaml:"enabled"`
	BudgetMB int  `yaml:"budget_mb"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Load reads path over Default so omitted keys keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	m := c.Model
	if m.OutputWidth <= 0 || m.OutputHeight <= 0 {
		return fmt.Errorf("model.output_width and model.output_height must be positive")
	}
	if m.Channels <= 0 {
		return fmt.Errorf("model.channels must be positive")
	}
	if m.Source == "" {
		if m.Random.Depth <= 0 || m.Random.Hidden <= 0 {
			return fmt.Errorf("model.random.depth and model.random.hidden must be positive when model.source is empty")
		}
		if m.Random.KernelSize <= 0 || m.Random.KernelSize%2 == 0 {
			return fmt.Errorf("model.random.kernel_size must be odd and positive")
		}
	}
	if m.CacheDir == "" {
		c.Model.CacheDir = defaultCacheDir()
	}

	d := c.Diffusion
	schedule := diffusion.Schedule{MinSignalRate: d.MinSignalRate, MaxSignalRate: d.MaxSignalRate}
	if err := schedule.Validate(); err != nil {
		return fmt.Errorf("diffusion signal rates (min_signal_rate, max_signal_rate): %w", err)
	}
	if d.FromScratchSteps <= 0 {
		return fmt.Errorf("diffusion.from_scratch_steps must be positive")
	}
	if d.FromSelectedSteps <= 0 {
		return fmt.Errorf("diffusion.from_selected_steps must be positive")
	}
	if d.StartingStep <= 0 || d.StartingStep > d.FromSelectedSteps {
		return fmt.Errorf("diffusion.starting_step must be in [1, from_selected_steps]")
	}
	if d.SelectedWeight < 0 || d.SelectedWeight > 1 {
		return fmt.Errorf("diffusion.selected_weight must be in [0, 1]")
	}
	if d.BrushSteps <= 0 {
		return fmt.Errorf("diffusion.brush_steps must be positive")
	}

	f, err := c.UpsampleFactor()
	if err != nil {
		return err
	}
	switch f {
	case 1, 2, 4, 8, 16:
	default:
		return fmt.Errorf("upsample.resolution %d gives factor %d; want 1, 2, 4, 8 or 16 times model.output_width", c.Upsample.Resolution, f)
	}

	if c.Blend.B < 2.5 || c.Blend.B > 5 {
		return fmt.Errorf("blend.b must be in [2.5, 5]")
	}
	if c.Terrain.HeightMultiplier <= 0 {
		return fmt.Errorf("terrain.height_multiplier must be positive")
	}
	if c.Terrain.OutputDir == "" {
		c.Terrain.OutputDir = "."
	}
	if c.GPU.BudgetMB < 0 {
		return fmt.Errorf("gpu.budget_mb cannot be negative")
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// UpsampleFactor returns upsample.resolution / model.output_width.
func (c *Config) UpsampleFactor() (int, error) {
	if c.Model.OutputWidth <= 0 || c.Upsample.Resolution%c.Model.OutputWidth != 0 {
		return 0, fmt.Errorf("upsample.resolution %d is not a multiple of model.output_width %d",
			c.Upsample.Resolution, c.Model.OutputWidth)
	}
	return c.Upsample.Resolution / c.Model.OutputWidth, nil
}

// SlogLevel parses log.level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(l.Level))); err != nil {
		return 0, fmt.Errorf("log.level %q invalid: %w", l.Level, err)
	}
	return lvl, nil
}

func defaultCacheDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return dir + string(os.PathSeparator) + "neuralterrain"
	}
	return ".neuralterrain-cache"
}
