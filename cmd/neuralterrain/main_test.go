package main

import (
	"context"
	"flag"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/openfluke/neuralterrain/config"
	"github.com/openfluke/neuralterrain/terrain"
)

func parse(t *testing.T, args ...string) (*flag.FlagSet, *cliOptions) {
	t.Helper()
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	o := bindFlags(fs)
	if err := fs.Parse(args); err != nil {
		t.Fatal(err)
	}
	return fs, o
}

func TestLoadConfigDefaults(t *testing.T) {
	fs, o := parse(t)
	cfg, err := loadConfig(fs, o)
	if err != nil {
		t.Fatal(err)
	}
	def := config.Default()
	if cfg.Upsample.Resolution != def.Upsample.Resolution || cfg.Diffusion.StartingStep != 18 {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestFlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nt.yaml")
	data := "upsample:\n  resolution: 1024\ndiffusion:\n  seed: 5\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	fs, o := parse(t, "-config", path, "-seed", "9", "-steps", "10")
	cfg, err := loadConfig(fs, o)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Upsample.Resolution != 1024 {
		t.Errorf("file value lost: resolution = %d", cfg.Upsample.Resolution)
	}
	if cfg.Diffusion.Seed != 9 {
		t.Errorf("seed = %d, want flag value 9", cfg.Diffusion.Seed)
	}
	if cfg.Diffusion.FromScratchSteps != 10 || cfg.Diffusion.BrushSteps != 10 {
		t.Errorf("steps = %+v", cfg.Diffusion)
	}
	if cfg.Diffusion.StartingStep != 10 {
		t.Errorf("starting step = %d, want clamped to 10", cfg.Diffusion.StartingStep)
	}
}

func TestLoadConfigRejectsBadFlag(t *testing.T) {
	fs, o := parse(t, "-resolution", "700")
	if _, err := loadConfig(fs, o); err == nil {
		t.Error("expected validation error")
	}
}

func TestRunScratchWritesTile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "nt.yaml")
	data := `
model:
  output_width: 16
  output_height: 16
  random:
    hidden: 4
    depth: 2
    kernel_size: 3
    seed: 1
upsample:
  resolution: 32
log:
  level: error
`
	if err := os.WriteFile(cfgPath, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	fs, o := parse(t, "-config", cfgPath, "-out", dir, "-steps", "2", "-seed", "3", "-x", "1")
	if err := run(context.Background(), fs, o, "scratch"); err != nil {
		t.Fatal(err)
	}
	hm, err := terrain.LoadTIFF(filepath.Join(dir, "tile_1_0.tiff"))
	if err != nil {
		t.Fatal(err)
	}
	if hm.Width != 32 || hm.Height != 32 {
		t.Errorf("tile %dx%d, want 32x32", hm.Width, hm.Height)
	}

	if err := run(context.Background(), fs, o, "nope"); err == nil {
		t.Error("expected unknown command error")
	}
}

func TestRunWritesDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yaml")
	fs, o := parse(t, "-config", path)
	if err := run(context.Background(), fs, o, "config"); err != nil {
		t.Fatal(err)
	}
	if _, err := config.Load(path); err != nil {
		t.Fatal(err)
	}
}

func TestLoadModelRandom(t *testing.T) {
	fs, o := parse(t)
	cfg, err := loadConfig(fs, o)
	if err != nil {
		t.Fatal(err)
	}
	cfg.Model.Source = ""
	net, id, err := loadModel(context.Background(), cfg, newLogger(cfg))
	if err != nil {
		t.Fatal(err)
	}
	if id != "random" || len(net.Layers) != cfg.Model.Random.Depth {
		t.Errorf("id %q, %d layers", id, len(net.Layers))
	}
}
