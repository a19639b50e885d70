package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/openfluke/neuralterrain/blend"
	"github.com/openfluke/neuralterrain/config"
	"github.com/openfluke/neuralterrain/detector"
	"github.com/openfluke/neuralterrain/diffusion"
	"github.com/openfluke/neuralterrain/generator"
	"github.com/openfluke/neuralterrain/gpu"
	"github.com/openfluke/neuralterrain/nn"
	"github.com/openfluke/neuralterrain/tensor"
	"github.com/openfluke/neuralterrain/terrain"
)

// cliOptions are the command line values. Settings that also live in the
// config file only override it when the flag is given explicitly.
type cliOptions struct {
	configPath string

	model      string
	out        string
	resolution int
	steps      int
	start      int
	weight     float64
	seed       uint64
	useGPU     bool
	logLevel   string

	x, y       int
	cols, rows int
	parallel   int
	in         string
	mask       string
	perlinSeed int64
}

func bindFlags(fs *flag.FlagSet) *cliOptions {
	def := config.Default()
	o := &cliOptions{}
	fs.StringVar(&o.configPath, "config", "", "YAML config file")
	fs.StringVar(&o.model, "model", def.Model.Source, "model weights (path, URL or go-getter address)")
	fs.StringVar(&o.out, "out", def.Terrain.OutputDir, "output directory for TIFF tiles")
	fs.IntVar(&o.resolution, "resolution", def.Upsample.Resolution, "upsampled tile width")
	fs.IntVar(&o.steps, "steps", def.Diffusion.FromScratchSteps, "diffusion steps for every mode")
	fs.IntVar(&o.start, "start", def.Diffusion.StartingStep, "starting step when regenerating a tile")
	fs.Float64Var(&o.weight, "weight", def.Diffusion.SelectedWeight, "weight of the existing terrain when regenerating")
	fs.Uint64Var(&o.seed, "seed", def.Diffusion.Seed, "noise seed, 0 for random")
	fs.BoolVar(&o.useGPU, "gpu", def.GPU.Enabled, "run tensor ops and convolutions on WebGPU")
	fs.StringVar(&o.logLevel, "log-level", def.Log.Level, "debug, info, warn or error")

	fs.IntVar(&o.x, "x", 0, "tile x coordinate")
	fs.IntVar(&o.y, "y", 0, "tile y coordinate")
	fs.IntVar(&o.cols, "cols", 2, "grid columns")
	fs.IntVar(&o.rows, "rows", 2, "grid rows")
	fs.IntVar(&o.parallel, "parallel", 2, "tiles generated concurrently in grid mode")
	fs.StringVar(&o.in, "in", "", "heightmap TIFF for the existing command")
	fs.StringVar(&o.mask, "mask", "", "brush mask TIFF; default is a radial falloff")
	fs.Int64Var(&o.perlinSeed, "perlin-seed", 1, "seed for the perlin command")
	return o
}

// loadConfig reads the config file (or defaults) and applies every flag the
// user set explicitly.
func loadConfig(fs *flag.FlagSet, o *cliOptions) (*config.Config, error) {
	cfg := config.Default()
	if o.configPath != "" {
		loaded, err := config.Load(o.configPath)
		if err != nil {
			return nil, err
		}
		cfg = *loaded
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "model":
			cfg.Model.Source = o.model
		case "out":
			cfg.Terrain.OutputDir = o.out
		case "resolution":
			cfg.Upsample.Resolution = o.resolution
		case "steps":
			cfg.Diffusion.FromScratchSteps = o.steps
			cfg.Diffusion.FromSelectedSteps = o.steps
			cfg.Diffusion.BrushSteps = o.steps
		case "start":
			cfg.Diffusion.StartingStep = o.start
		case "weight":
			cfg.Diffusion.SelectedWeight = o.weight
		case "seed":
			cfg.Diffusion.Seed = o.seed
		case "gpu":
			cfg.GPU.Enabled = o.useGPU
		case "log-level":
			cfg.Log.Level = o.logLevel
		}
	})
	// -steps alone must not leave the default starting step out of range.
	if cfg.Diffusion.StartingStep > cfg.Diffusion.FromSelectedSteps {
		cfg.Diffusion.StartingStep = cfg.Diffusion.FromSelectedSteps
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	lvl, _ := cfg.Log.SlogLevel()
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

func run(ctx context.Context, fs *flag.FlagSet, o *cliOptions, cmd string) error {
	if cmd == "config" {
		path := o.configPath
		if path == "" {
			path = "neuralterrain.yaml"
		}
		return config.WriteDefault(path)
	}

	cfg, err := loadConfig(fs, o)
	if err != nil {
		return err
	}
	log := newLogger(cfg)
	slog.SetDefault(log)

	if cmd == "probe" {
		rep, err := detector.Detect()
		if err != nil {
			return err
		}
		s, err := rep.JSON()
		if err != nil {
			return err
		}
		fmt.Println(s)
		return nil
	}

	if cmd == "model" {
		net, id, err := loadModel(ctx, cfg, log)
		if err != nil {
			return err
		}
		raw, err := net.Telemetry(id).JSON()
		if err != nil {
			return err
		}
		fmt.Println(string(raw))
		return nil
	}

	gen, store, err := buildGenerator(ctx, cfg, log)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.Terrain.OutputDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	coord := terrain.Coord{X: o.x, Y: o.y}

	switch cmd {
	case "scratch":
		hm, err := gen.FromScratch(ctx, coord)
		if err != nil {
			return err
		}
		return writeTile(log, cfg, coord, hm)
	case "existing":
		if o.in == "" {
			return fmt.Errorf("existing: -in is required")
		}
		src, err := terrain.LoadTIFF(o.in)
		if err != nil {
			return err
		}
		hm, err := gen.FromHeightmap(ctx, coord, src)
		if err != nil {
			return err
		}
		return writeTile(log, cfg, coord, hm)
	case "perlin":
		hm, err := gen.FromPerlin(ctx, coord, o.perlinSeed)
		if err != nil {
			return err
		}
		return writeTile(log, cfg, coord, hm)
	case "brush":
		mask := terrain.RadialMask(cfg.Model.OutputWidth)
		if o.mask != "" {
			if mask, err = terrain.LoadTIFF(o.mask); err != nil {
				return err
			}
		}
		hm, err := gen.Brush(ctx, mask)
		if err != nil {
			return err
		}
		path := filepath.Join(cfg.Terrain.OutputDir, "brush.tiff")
		log.Info("writing brush", "path", path)
		return terrain.SaveTIFF(path, hm)
	case "grid":
		if err := gen.Grid(ctx, coord, o.cols, o.rows, o.parallel); err != nil {
			return err
		}
		for _, c := range store.Coords() {
			hm, _, _ := store.Heights(c)
			if err := writeTile(log, cfg, c, hm); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// loadModel fetches the configured weights, or builds an untrained network
// when no source is set. The returned id names the model in telemetry.
func loadModel(ctx context.Context, cfg *config.Config, log *slog.Logger) (*nn.Network, string, error) {
	var net *nn.Network
	var err error
	id := cfg.Model.Source
	if id == "" {
		r := cfg.Model.Random
		id = "random"
		log.Warn("no model source configured, using an untrained network", "depth", r.Depth, "hidden", r.Hidden)
		net, err = nn.NewRandomNetwork(cfg.Model.Channels, r.Hidden, r.Depth, r.KernelSize, r.Seed)
	} else {
		var path string
		if path, err = nn.Fetch(ctx, cfg.Model.Source, cfg.Model.CacheDir); err != nil {
			return nil, "", err
		}
		net, err = nn.LoadNetwork(path)
	}
	if err != nil {
		return nil, "", err
	}
	if net.Channels != cfg.Model.Channels {
		return nil, "", fmt.Errorf("model has %d channels, config says %d", net.Channels, cfg.Model.Channels)
	}
	return net, id, nil
}

// buildGenerator loads the model, picks the tensor backend and wires the
// generator over an in-memory store.
func buildGenerator(ctx context.Context, cfg *config.Config, log *slog.Logger) (*generator.Generator, *terrain.MemoryStore, error) {
	net, id, err := loadModel(ctx, cfg, log)
	if err != nil {
		return nil, nil, err
	}
	tel := net.Telemetry(id)
	log.Info("model ready", "id", tel.ID, "layers", tel.TotalLayers, "params", tel.TotalParams, "receptive", tel.Receptive)
	net.Observer = &nn.SlogObserver{Logger: log}
	net.SetLogger(log)

	sampler := diffusion.NewSampler(nn.NewPredictor(net))
	sampler.Schedule = generator.ScheduleFromConfig(cfg)
	sampler.Logger = log
	sampler.OnStep = func(info diffusion.StepInfo) {
		log.Debug("step", "step", info.Step, "total", info.Total, "signal", info.SignalRate, "elapsed", info.Elapsed)
	}
	sampler.Backend = pickBackend(cfg, log)
	net.UseGPU = sampler.Backend.Name() == "webgpu"

	opts, err := generator.OptionsFromConfig(cfg)
	if err != nil {
		return nil, nil, err
	}
	store := terrain.NewMemoryStore()
	gen, err := generator.New(sampler, store, opts, log)
	if err != nil {
		return nil, nil, err
	}
	return gen, store, nil
}

func pickBackend(cfg *config.Config, log *slog.Logger) tensor.Backend {
	if !cfg.GPU.Enabled {
		return tensor.NewCPUBackend()
	}
	var opts []gpu.BackendOption
	opts = append(opts, gpu.WithLogger(log))
	if cfg.GPU.BudgetMB > 0 {
		opts = append(opts, gpu.WithBudget(uint64(cfg.GPU.BudgetMB)<<20))
	}
	b, err := gpu.NewBackend(opts...)
	if err != nil {
		log.Warn("gpu unavailable, falling back to cpu", "error", err)
		return tensor.NewCPUBackend()
	}
	return b
}

// writeTile saves a stored tile as <out>/tile_<x>_<y>.tiff.
func writeTile(log *slog.Logger, cfg *config.Config, c terrain.Coord, hm *blend.Heightmap) error {
	path := filepath.Join(cfg.Terrain.OutputDir, fmt.Sprintf("tile_%d_%d.tiff", c.X, c.Y))
	log.Info("writing tile", "coord", c, "path", path, "width", hm.Width)
	return terrain.SaveTIFF(path, hm)
}
