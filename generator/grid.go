package generator

import (
	"context"
	"fmt"

	"github.com/openfluke/neuralterrain/tensor"
	"github.com/openfluke/neuralterrain/terrain"
	"golang.org/x/sync/errgroup"
)

// Grid generates a cols x rows block of tiles from scratch, starting at
// origin, with up to parallel tiles in flight, then blends every tile with
// its neighbours in row-major order. Noise is drawn in row-major order before
// any worker starts, so a seeded generator gives the same grid regardless of
// scheduling.
func (g *Generator) Grid(ctx context.Context, origin terrain.Coord, cols, rows, parallel int) error {
	if cols <= 0 || rows <= 0 {
		return fmt.Errorf("generator: grid %dx%d must be positive", cols, rows)
	}
	if parallel <= 0 {
		parallel = 1
	}

	scope := tensor.NewScope()
	defer scope.Close()
	coords := make([]terrain.Coord, 0, cols*rows)
	seeds := make([]*tensor.Tensor, 0, cols*rows)
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			n, err := g.noise()
			if err != nil {
				return err
			}
			coords = append(coords, terrain.Coord{X: origin.X + x, Y: origin.Y + y})
			seeds = append(seeds, scope.Track(n))
		}
	}

	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(parallel)
	for i := range coords {
		c, n := coords[i], seeds[i]
		eg.Go(func() error {
			_, err := g.fromNoise(gctx, c, n)
			return err
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	for _, c := range coords {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := g.BlendNeighbors(c); err != nil {
			return err
		}
	}
	g.logger.Info("grid generated", "origin", origin, "cols", cols, "rows", rows)
	return nil
}
