package generator

import (
	"context"
	"math"

	"github.com/aquilax/go-perlin"
	"github.com/openfluke/neuralterrain/blend"
	"github.com/openfluke/neuralterrain/terrain"
)

// Perlin octave settings for seed terrain.
const (
	perlinAlpha   = 2.0
	perlinBeta    = 2.0
	perlinOctaves = 4
	perlinPeriod  = 96.0 // samples per base noise period
)

// PerlinHeightmap returns a size x size fractal noise heightmap normalised
// to [0, 1].
func PerlinHeightmap(size int, seed int64) *blend.Heightmap {
	p := perlin.NewPerlin(perlinAlpha, perlinBeta, perlinOctaves, seed)
	raw := make([]float64, size*size)
	lo, hi := math.Inf(1), math.Inf(-1)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			v := p.Noise2D(float64(x)/perlinPeriod, float64(y)/perlinPeriod)
			lo, hi = math.Min(lo, v), math.Max(hi, v)
			raw[y*size+x] = v
		}
	}
	hm := blend.NewHeightmap(size, size)
	span := hi - lo
	for i, v := range raw {
		if span == 0 {
			hm.Data[i] = 0.5
			continue
		}
		hm.Data[i] = float32((v - lo) / span)
	}
	return hm
}

// FromPerlin seeds a tile with Perlin noise at native resolution and
// regenerates it the way FromExisting does, giving the network a coarse
// layout to follow.
func (g *Generator) FromPerlin(ctx context.Context, c terrain.Coord, seed int64) (*blend.Heightmap, error) {
	return g.FromHeightmap(ctx, c, PerlinHeightmap(g.opts.NativeWidth, seed))
}
