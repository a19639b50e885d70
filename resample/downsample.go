package resample

import (
	"fmt"

	"github.com/openfluke/neuralterrain/tensor"
)

// Downsample reduces t by an integer factor with block-average pooling:
// each output cell is the mean of the factor x factor source block it
// covers. Width and height must be divisible by factor. factor 1 returns a
// copy.
func Downsample(t *tensor.Tensor, factor int) (*tensor.Tensor, error) {
	if err := ValidateFactor(factor); err != nil {
		return nil, err
	}
	if t == nil || t.Released() {
		return nil, fmt.Errorf("resample: downsample: %w", tensor.ErrReleased)
	}
	w, h, c := t.Shape.Width, t.Shape.Height, t.Shape.Channels
	if w%factor != 0 || h%factor != 0 {
		return nil, fmt.Errorf("%w: %dx%d is not divisible by %d", tensor.ErrShapeMismatch, w, h, factor)
	}
	if factor == 1 {
		return t.Clone(), nil
	}

	outW, outH := w/factor, h/factor
	out, err := tensor.Zeros(outW, outH, c)
	if err != nil {
		return nil, err
	}
	inv := 1 / float64(factor*factor)
	sums := make([]float64, c)
	for oy := 0; oy < outH; oy++ {
		for ox := 0; ox < outW; ox++ {
			for ch := range sums {
				sums[ch] = 0
			}
			for dy := 0; dy < factor; dy++ {
				row := (oy*factor + dy) * w
				for dx := 0; dx < factor; dx++ {
					base := (row + ox*factor + dx) * c
					for ch := 0; ch < c; ch++ {
						sums[ch] += float64(t.Data[base+ch])
					}
				}
			}
			for ch := 0; ch < c; ch++ {
				out.Set(ox, oy, ch, float32(sums[ch]*inv))
			}
		}
	}
	return out, nil
}

// Crop returns the top-left width x height region of t as a new tensor.
func Crop(t *tensor.Tensor, width, height int) (*tensor.Tensor, error) {
	if t == nil || t.Released() {
		return nil, fmt.Errorf("resample: crop: %w", tensor.ErrReleased)
	}
	if width > t.Shape.Width || height > t.Shape.Height {
		return nil, fmt.Errorf("%w: crop %dx%d from %v", tensor.ErrShapeMismatch, width, height, t.Shape)
	}
	c := t.Shape.Channels
	out, err := tensor.Zeros(width, height, c)
	if err != nil {
		return nil, err
	}
	for y := 0; y < height; y++ {
		src := t.Data[y*t.Shape.Width*c : (y*t.Shape.Width+width)*c]
		copy(out.Data[y*width*c:(y+1)*width*c], src)
	}
	return out, nil
}

// ToNative reduces a square terrain heightmap to the model's native
// resolution. The factor is derived with FactorForResolution and a trailing
// shared edge sample (resolution native*f+1) is cropped first.
func ToNative(t *tensor.Tensor, native int) (*tensor.Tensor, int, error) {
	if t == nil || t.Released() {
		return nil, 0, fmt.Errorf("resample: to native: %w", tensor.ErrReleased)
	}
	if t.Shape.Width != t.Shape.Height {
		return nil, 0, fmt.Errorf("%w: terrain must be square, got %v", tensor.ErrShapeMismatch, t.Shape)
	}
	factor, err := FactorForResolution(t.Shape.Width, native)
	if err != nil {
		return nil, 0, err
	}
	src := t
	if size := native * factor; t.Shape.Width != size {
		cropped, err := Crop(t, size, size)
		if err != nil {
			return nil, 0, err
		}
		defer cropped.Release()
		src = cropped
	}
	out, err := Downsample(src, factor)
	if err != nil {
		return nil, 0, err
	}
	return out, factor, nil
}
