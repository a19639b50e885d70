package generator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/openfluke/neuralterrain/blend"
	"github.com/openfluke/neuralterrain/diffusion"
	"github.com/openfluke/neuralterrain/resample"
	"github.com/openfluke/neuralterrain/tensor"
	"github.com/openfluke/neuralterrain/terrain"
)

// ErrNoTerrain is returned when an operation needs a tile that the store
// does not hold.
var ErrNoTerrain = errors.New("no terrain at coordinate")

// Generator drives the diffusion pipeline and writes finished tiles to a
// terrain Store. It is safe for concurrent use when its sampler's predictor
// and backend are.
type Generator struct {
	opts    Options
	sampler *diffusion.Sampler
	store   terrain.Store
	logger  *slog.Logger

	rngMu sync.Mutex
	rng   *rand.Rand
}

// New validates opts and wires the generator. A nil logger means
// slog.Default().
func New(sampler *diffusion.Sampler, store terrain.Store, opts Options, logger *slog.Logger) (*Generator, error) {
	if sampler == nil || sampler.Predictor == nil {
		return nil, diffusion.ErrMissingModel
	}
	if store == nil {
		return nil, fmt.Errorf("generator: nil store")
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	seed := opts.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &Generator{
		opts:    opts,
		sampler: sampler,
		store:   store,
		logger:  logger,
		rng:     tensor.NewRand(seed),
	}, nil
}

// Options returns the generator's settings.
func (g *Generator) Options() Options { return g.opts }

func (g *Generator) backend() tensor.Backend {
	return tensor.Or(g.sampler.Backend)
}

// noise draws a native-size standard normal tensor. Draws are serialised so
// a fixed seed gives a reproducible sequence.
func (g *Generator) noise() (*tensor.Tensor, error) {
	g.rngMu.Lock()
	defer g.rngMu.Unlock()
	return tensor.RandomNormal(g.rng, g.opts.NativeWidth, g.opts.NativeHeight, g.opts.Channels)
}

// Heightmap runs reverse diffusion from step start of total and upsamples
// the result by factor. A nil input starts from pure noise. input is not
// released.
func (g *Generator) Heightmap(ctx context.Context, factor, total, start int, input *tensor.Tensor) (*blend.Heightmap, error) {
	if err := resample.ValidateFactor(factor); err != nil {
		return nil, err
	}
	scope := tensor.NewScope()
	defer scope.Close()

	if input == nil {
		n, err := g.noise()
		if err != nil {
			return nil, err
		}
		input = scope.Track(n)
	}

	began := time.Now()
	denoised, err := g.sampler.Reverse(ctx, input, total, start)
	if err != nil {
		return nil, err
	}
	scope.Track(denoised)

	var data []float32
	if g.opts.ClampUpsample {
		data, err = resample.UpsampleClamped(denoised, factor)
	} else {
		data, err = resample.Upsample(denoised, factor)
	}
	if err != nil {
		return nil, err
	}
	hm, err := blend.WrapHeightmap(denoised.Shape.Width*factor, denoised.Shape.Height*factor, data)
	if err != nil {
		return nil, err
	}
	g.logger.Debug("heightmap generated",
		"steps", total, "start", start, "factor", factor,
		"width", hm.Width, "elapsed", time.Since(began))
	return hm, nil
}

// FromScratch generates a new tile from pure noise and stores it at c.
func (g *Generator) FromScratch(ctx context.Context, c terrain.Coord) (*blend.Heightmap, error) {
	n, err := g.noise()
	if err != nil {
		return nil, err
	}
	defer n.Release()
	return g.fromNoise(ctx, c, n)
}

// fromNoise denoises n fully and stores the upsampled tile at c. n is not
// released.
func (g *Generator) fromNoise(ctx context.Context, c terrain.Coord, n *tensor.Tensor) (*blend.Heightmap, error) {
	hm, err := g.Heightmap(ctx, g.opts.Factor, g.opts.ScratchSteps, g.opts.ScratchSteps, n)
	if err != nil {
		return nil, fmt.Errorf("from scratch %v: %w", c, err)
	}
	return g.write(c, hm)
}

// FromExisting regenerates the tile at c, keeping its large-scale shape.
// The stored heights are reduced to native resolution, mixed with noise by
// the selected weight and partially denoised from the starting step.
func (g *Generator) FromExisting(ctx context.Context, c terrain.Coord) (*blend.Heightmap, error) {
	hm, _, ok := g.store.Heights(c)
	if !ok {
		return nil, fmt.Errorf("%w %v", ErrNoTerrain, c)
	}
	return g.FromHeightmap(ctx, c, hm)
}

// FromHeightmap is FromExisting with the source heights supplied by the
// caller, e.g. an imported TIFF. src must be square with a resolution of
// native*f or native*f+1 for a supported factor.
func (g *Generator) FromHeightmap(ctx context.Context, c terrain.Coord, src *blend.Heightmap) (*blend.Heightmap, error) {
	if src == nil {
		return nil, fmt.Errorf("%w %v: nil source heightmap", ErrNoTerrain, c)
	}
	scope := tensor.NewScope()
	defer scope.Close()

	full, err := tensor.FromSlice(src.Width, src.Height, 1, src.Data)
	if err != nil {
		return nil, err
	}
	scope.Track(full)

	native, factor, err := resample.ToNative(full, g.opts.NativeWidth)
	if err != nil {
		return nil, fmt.Errorf("from existing %v: %w", c, err)
	}
	scope.Track(native)

	n, err := g.noise()
	if err != nil {
		return nil, err
	}
	scope.Track(n)

	mixed, err := tensor.Mix(g.backend(), native, n, g.opts.SelectedWeight)
	if err != nil {
		return nil, err
	}
	scope.Track(mixed)

	g.logger.Info("regenerating tile",
		"coord", c, "source_width", src.Width, "downsample", factor,
		"weight", g.opts.SelectedWeight, "start", g.opts.StartingStep)

	out, err := g.Heightmap(ctx, g.opts.Factor, g.opts.SelectedSteps, g.opts.StartingStep, mixed)
	if err != nil {
		return nil, fmt.Errorf("from existing %v: %w", c, err)
	}
	return g.write(c, out)
}

// Brush generates a native-resolution brush heightmap (no upsampling) and
// multiplies it by mask when one is given. Nothing is stored.
func (g *Generator) Brush(ctx context.Context, mask *blend.Heightmap) (*blend.Heightmap, error) {
	hm, err := g.Heightmap(ctx, 1, g.opts.BrushSteps, g.opts.BrushSteps, nil)
	if err != nil {
		return nil, fmt.Errorf("brush: %w", err)
	}
	if mask == nil {
		return hm, nil
	}
	return terrain.Mask(hm, mask)
}

// BlendNeighbors smooths the tile at c into its stored neighbours. Radii
// come from the tile width; unless KeepNeighborHeights is set, the
// neighbours' shared edges are rewritten too.
func (g *Generator) BlendNeighbors(c terrain.Coord) error {
	tile, scale, ok := g.store.Heights(c)
	if !ok {
		return fmt.Errorf("%w %v", ErrNoTerrain, c)
	}
	neighbors := g.store.Neighbors(c)
	if len(neighbors) == 0 {
		g.logger.Info("no neighbours to blend", "coord", c)
		return nil
	}

	p := blend.DefaultParams(tile.Width)
	p.Shape = g.opts.BlendShape
	p.KeepNeighborHeights = g.opts.KeepNeighborHeights
	if err := blend.Blend(tile, neighbors, p); err != nil {
		return fmt.Errorf("blend %v: %w", c, err)
	}

	g.store.Put(c, tile, scale)
	if !p.KeepNeighborHeights {
		for d, n := range neighbors {
			nc := c.Neighbor(d)
			_, nscale, _ := g.store.Heights(nc)
			g.store.Put(nc, n, nscale)
		}
	}
	g.logger.Info("blended tile", "coord", c, "neighbours", len(neighbors),
		"r1", p.InnerRadius, "r2", p.OuterRadius, "b", p.Shape)
	return nil
}

func (g *Generator) write(c terrain.Coord, hm *blend.Heightmap) (*blend.Heightmap, error) {
	if err := g.store.SetHeights(c, hm.Data, hm.Width, hm.Height, g.opts.HeightMultiplier); err != nil {
		return nil, err
	}
	stored, _, _ := g.store.Heights(c)
	g.logger.Info("tile written", "coord", c, "width", hm.Width, "height", hm.Height,
		"multiplier", g.opts.HeightMultiplier)
	return stored, nil
}
