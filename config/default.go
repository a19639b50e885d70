package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Default returns the settings the terrain tool ships with: a 256x256
// single channel model, 20 step schedules and 512 wide output tiles.
func Default() Config {
	return Config{
		Model: ModelConfig{
			OutputWidth:  256,
			OutputHeight: 256,
			Channels:     1,
			Random: RandomModel{
				Hidden:     16,
				Depth:      3,
				KernelSize: 3,
				Seed:       1,
			},
		},
		Diffusion: DiffusionConfig{
			MinSignalRate:     0.02,
			MaxSignalRate:     0.9,
			FromScratchSteps:  20,
			FromSelectedSteps: 20,
			StartingStep:      18,
			SelectedWeight:    0.55,
			BrushSteps:        20,
		},
		Upsample: UpsampleConfig{
			Resolution: 512,
		},
		Blend: BlendConfig{
			B: 2.5,
		},
		Terrain: TerrainConfig{
			HeightMultiplier: 0.5,
			OutputDir:        ".",
		},
		Log: LogConfig{
			Level: "INFO",
		},
	}
}

// WriteDefault writes the default configuration to the provided path.
func WriteDefault(path string) error {
	cfg := Default()

	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("marshal default config: %w", err)
	}

	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write default config: %w", err)
	}

	return nil
}
