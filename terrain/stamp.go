package terrain

import (
	"fmt"
	"math"

	"github.com/openfluke/neuralterrain/blend"
)

// Stamp raises dst by brush*opacity with the brush centred on (cx, cy).
// A negative opacity lowers instead. Results are clamped to [0, 1] and the
// parts of the brush falling outside dst are ignored.
func Stamp(dst, brush *blend.Heightmap, cx, cy int, opacity float32) {
	x0 := cx - brush.Width/2
	y0 := cy - brush.Height/2
	for by := 0; by < brush.Height; by++ {
		y := y0 + by
		if y < 0 || y >= dst.Height {
			continue
		}
		for bx := 0; bx < brush.Width; bx++ {
			x := x0 + bx
			if x < 0 || x >= dst.Width {
				continue
			}
			v := dst.At(x, y) + brush.At(bx, by)*opacity
			dst.Set(x, y, min(max(v, 0), 1))
		}
	}
}

// Mask multiplies hm by mask elementwise, returning a new heightmap.
func Mask(hm, mask *blend.Heightmap) (*blend.Heightmap, error) {
	if hm.Width != mask.Width || hm.Height != mask.Height {
		return nil, fmt.Errorf("%w: mask %dx%d for %dx%d heightmap",
			blend.ErrShapeMismatch, mask.Width, mask.Height, hm.Width, hm.Height)
	}
	out := hm.Clone()
	for i := range out.Data {
		out.Data[i] *= mask.Data[i]
	}
	return out, nil
}

// RadialMask returns a size x size mask falling from 1 at the centre to 0
// at the inscribed circle, with a smoothstep profile.
func RadialMask(size int) *blend.Heightmap {
	m := blend.NewHeightmap(size, size)
	c := float32(size-1) / 2
	r := float32(size) / 2
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			dx, dy := float32(x)-c, float32(y)-c
			d := 1 - float32(math.Sqrt(float64(dx*dx+dy*dy)))/r
			d = min(max(d, 0), 1)
			m.Set(x, y, d*d*(3-2*d))
		}
	}
	return m
}
