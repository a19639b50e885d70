package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

const usage = `usage: neuralterrain [flags] <command>

commands:
  scratch   generate one tile from noise (-x, -y)
  existing  regenerate a tile from a heightmap TIFF (-in)
  perlin    regenerate a tile from a Perlin seed (-perlin-seed)
  brush     generate a native-size brush heightmap (-mask)
  grid      generate and blend a block of tiles (-cols, -rows)
  probe     print the GPU adapter report
  model     print the model structure as JSON
  config    write the default configuration to -config

flags:
`

func main() {
	fs := flag.NewFlagSet("neuralterrain", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprint(fs.Output(), usage)
		fs.PrintDefaults()
	}
	opts := bindFlags(fs)
	if err := fs.Parse(os.Args[1:]); err != nil {
		os.Exit(2)
	}
	if fs.NArg() != 1 {
		fs.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, fs, opts, fs.Arg(0)); err != nil {
		if errors.Is(err, context.Canceled) {
			slog.Warn("interrupted")
			os.Exit(130)
		}
		slog.Error("neuralterrain failed", "error", err)
		os.Exit(1)
	}
}
