package generator

import (
	"fmt"

	"github.com/openfluke/neuralterrain/config"
	"github.com/openfluke/neuralterrain/diffusion"
	"github.com/openfluke/neuralterrain/resample"
)

// Options holds the per-run settings of a Generator.
type Options struct {
	NativeWidth  int // model output width
	NativeHeight int // model output height
	Channels     int

	Factor           int     // upsample factor for generated tiles
	ClampUpsample    bool    // clamp upsampled heights to [0, 1]
	HeightMultiplier float32 // applied when heights are written to the store

	ScratchSteps   int
	SelectedSteps  int
	StartingStep   int
	SelectedWeight float32
	BrushSteps     int

	BlendShape          float64
	KeepNeighborHeights bool

	// Seed fixes the noise stream; 0 seeds from the clock.
	Seed uint64
}

// DefaultOptions mirrors config.Default.
func DefaultOptions() Options {
	cfg := config.Default()
	opts, _ := OptionsFromConfig(&cfg)
	return opts
}

// OptionsFromConfig extracts generator options from a validated config.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	factor, err := cfg.UpsampleFactor()
	if err != nil {
		return Options{}, err
	}
	return Options{
		NativeWidth:         cfg.Model.OutputWidth,
		NativeHeight:        cfg.Model.OutputHeight,
		Channels:            cfg.Model.Channels,
		Factor:              factor,
		ClampUpsample:       cfg.Upsample.Clamp,
		HeightMultiplier:    float32(cfg.Terrain.HeightMultiplier),
		ScratchSteps:        cfg.Diffusion.FromScratchSteps,
		SelectedSteps:       cfg.Diffusion.FromSelectedSteps,
		StartingStep:        cfg.Diffusion.StartingStep,
		SelectedWeight:      float32(cfg.Diffusion.SelectedWeight),
		BrushSteps:          cfg.Diffusion.BrushSteps,
		BlendShape:          cfg.Blend.B,
		KeepNeighborHeights: cfg.Blend.KeepNeighborHeights,
		Seed:                cfg.Diffusion.Seed,
	}, nil
}

// ScheduleFromConfig returns the diffusion schedule configured in cfg.
func ScheduleFromConfig(cfg *config.Config) diffusion.Schedule {
	return diffusion.Schedule{
		MinSignalRate: cfg.Diffusion.MinSignalRate,
		MaxSignalRate: cfg.Diffusion.MaxSignalRate,
	}
}

// Validate checks the options for internal consistency.
func (o Options) Validate() error {
	if o.NativeWidth <= 0 || o.NativeHeight <= 0 {
		return fmt.Errorf("generator: native size %dx%d must be positive", o.NativeWidth, o.NativeHeight)
	}
	if o.Channels != 1 {
		return fmt.Errorf("generator: heightmap models have one channel, got %d", o.Channels)
	}
	if err := resample.ValidateFactor(o.Factor); err != nil {
		return err
	}
	if o.HeightMultiplier <= 0 {
		return fmt.Errorf("generator: height multiplier must be positive")
	}
	if err := diffusion.ValidateSteps(o.ScratchSteps, o.ScratchSteps); err != nil {
		return fmt.Errorf("generator: scratch steps: %w", err)
	}
	if err := diffusion.ValidateSteps(o.SelectedSteps, o.StartingStep); err != nil {
		return fmt.Errorf("generator: selected steps: %w", err)
	}
	if err := diffusion.ValidateSteps(o.BrushSteps, o.BrushSteps); err != nil {
		return fmt.Errorf("generator: brush steps: %w", err)
	}
	if o.SelectedWeight < 0 || o.SelectedWeight > 1 {
		return fmt.Errorf("generator: selected weight %v outside [0, 1]", o.SelectedWeight)
	}
	return nil
}

// TileWidth returns the width of generated tiles.
func (o Options) TileWidth() int { return o.NativeWidth * o.Factor }

// TileHeight returns the height of generated tiles.
func (o Options) TileHeight() int { return o.NativeHeight * o.Factor }
