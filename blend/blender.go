package blend

import (
	"fmt"
	"math"
)

const (
	// MinShape and MaxShape bound the falloff exponent b.
	MinShape = 2.5
	MaxShape = 5.0
)

// Region is the falloff band for one neighbour: full influence up to
// InnerRadius, none from OuterRadius on, and 1 - ((d-r1)/(r2-r1))^Shape in
// between.
type Region struct {
	Direction   Direction
	InnerRadius float64
	OuterRadius float64
	Shape       float64
}

// Weight returns the neighbour's influence at distance d.
func (r Region) Weight(d float64) float64 {
	switch {
	case d <= r.InnerRadius:
		return 1
	case d >= r.OuterRadius:
		return 0
	}
	t := (d - r.InnerRadius) / (r.OuterRadius - r.InnerRadius)
	return 1 - math.Pow(t, r.Shape)
}

// Params configures a blend run.
type Params struct {
	InnerRadius float64
	OuterRadius float64
	Shape       float64

	// KeepNeighborHeights holds neighbour tiles fixed. When false the
	// neighbours' shared edge samples are rewritten to match the blended
	// tile so both sides agree.
	KeepNeighborHeights bool
}

// DefaultParams returns the radii used for a tile of the given width:
// r1 = width/2, r2 = width, b = MinShape.
func DefaultParams(width int) Params {
	return Params{
		InnerRadius: float64(width / 2),
		OuterRadius: float64(width),
		Shape:       MinShape,
	}
}

// Validate checks 0 <= r1 < r2 and b in [MinShape, MaxShape].
func (p Params) Validate() error {
	if p.InnerRadius < 0 || p.InnerRadius >= p.OuterRadius {
		return fmt.Errorf("%w: need 0 <= r1 < r2, got r1=%g r2=%g", ErrInvalidRegion, p.InnerRadius, p.OuterRadius)
	}
	if p.Shape < MinShape || p.Shape > MaxShape {
		return fmt.Errorf("%w: shape %g outside [%g, %g]", ErrInvalidRegion, p.Shape, MinShape, MaxShape)
	}
	return nil
}

// Regions builds one Region per present neighbour, in Directions order.
func (p Params) Regions(neighbors map[Direction]*Heightmap) []Region {
	regions := make([]Region, 0, len(neighbors))
	for _, d := range Directions {
		if neighbors[d] == nil {
			continue
		}
		regions = append(regions, Region{
			Direction:   d,
			InnerRadius: p.InnerRadius,
			OuterRadius: p.OuterRadius,
			Shape:       p.Shape,
		})
	}
	return regions
}

// Blend smooths tile against up to eight neighbours in place.
//
// Each point combines its own height with every neighbour's projected edge
// height. A neighbour contributes with its Region weight w; the tile's own
// value keeps the product of (1 - w) over all neighbours, and the weights
// are normalised. Accumulation is order independent, so the result does not
// depend on the order neighbours are visited.
//
// Neighbours must match the tile's dimensions. Missing (nil) neighbours are
// skipped.
func Blend(tile *Heightmap, neighbors map[Direction]*Heightmap, p Params) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if tile == nil || len(tile.Data) != tile.Width*tile.Height {
		return fmt.Errorf("%w: malformed tile", ErrShapeMismatch)
	}
	for d, n := range neighbors {
		if n != nil && !tile.sameSize(n) {
			return fmt.Errorf("%w: %s neighbour is %dx%d, tile is %dx%d",
				ErrShapeMismatch, d, n.Width, n.Height, tile.Width, tile.Height)
		}
	}

	regions := p.Regions(neighbors)
	if len(regions) == 0 {
		return nil
	}

	w, h := tile.Width, tile.Height
	out := make([]float32, len(tile.Data))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			own := float64(tile.At(x, y))
			selfWeight := 1.0
			var acc, sum float64
			for _, r := range regions {
				weight := r.Weight(r.Direction.distance(x, y, w, h))
				if weight == 0 {
					continue
				}
				acc += weight * float64(r.Direction.project(neighbors[r.Direction], x, y))
				sum += weight
				selfWeight *= 1 - weight
			}
			if sum == 0 {
				out[y*w+x] = float32(own)
				continue
			}
			out[y*w+x] = float32((selfWeight*own + acc) / (selfWeight + sum))
		}
	}
	copy(tile.Data, out)

	if !p.KeepNeighborHeights {
		syncEdges(tile, neighbors)
	}
	return nil
}

// syncEdges copies the tile's border samples onto the neighbours' shared
// edges.
func syncEdges(tile *Heightmap, neighbors map[Direction]*Heightmap) {
	last, bottom := tile.Width-1, tile.Height-1
	for d, n := range neighbors {
		if n == nil {
			continue
		}
		switch d {
		case West:
			for y := 0; y <= bottom; y++ {
				n.Set(last, y, tile.At(0, y))
			}
		case East:
			for y := 0; y <= bottom; y++ {
				n.Set(0, y, tile.At(last, y))
			}
		case North:
			for x := 0; x <= last; x++ {
				n.Set(x, bottom, tile.At(x, 0))
			}
		case South:
			for x := 0; x <= last; x++ {
				n.Set(x, 0, tile.At(x, bottom))
			}
		case NorthWest:
			n.Set(last, bottom, tile.At(0, 0))
		case NorthEast:
			n.Set(0, bottom, tile.At(last, 0))
		case SouthWest:
			n.Set(last, 0, tile.At(0, bottom))
		case SouthEast:
			n.Set(0, 0, tile.At(last, bottom))
		}
	}
}
