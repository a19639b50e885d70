package resample

import (
	"fmt"
	"math"

	"github.com/openfluke/neuralterrain/tensor"
)

// CubicA is the cubic convolution parameter (Keys, Catmull-Rom variant).
const CubicA = -0.5

// cubic evaluates the cubic convolution kernel at distance x.
func cubic(x float64) float64 {
	x = math.Abs(x)
	switch {
	case x <= 1:
		return ((CubicA+2)*x-(CubicA+3))*x*x + 1
	case x < 2:
		return ((CubicA*x-5*CubicA)*x+8*CubicA)*x - 4*CubicA
	default:
		return 0
	}
}

// taps holds the four clamped source indices and weights for one output sample.
type taps struct {
	idx [4]int
	w   [4]float32
}

// computeTaps maps every output index onto the source axis using
// pixel-centre alignment and clamps out-of-range neighbours to the edge.
func computeTaps(srcLen, factor int) []taps {
	out := make([]taps, srcLen*factor)
	for d := range out {
		src := (float64(d)+0.5)/float64(factor) - 0.5
		base := int(math.Floor(src))
		frac := src - float64(base)
		for k := 0; k < 4; k++ {
			i := base - 1 + k
			if i < 0 {
				i = 0
			} else if i >= srcLen {
				i = srcLen - 1
			}
			out[d].idx[k] = i
			out[d].w[k] = float32(cubic(frac - float64(k-1)))
		}
	}
	return out
}

// Upsample scales a single-channel tensor by factor using bicubic
// convolution and returns the flat row-major result of length
// (width*factor)*(height*factor). factor 1 is a direct copy.
//
// The output is not clamped; values may overshoot [0, 1] slightly at sharp
// edges. Use UpsampleClamped when a bounded heightmap is required.
func Upsample(t *tensor.Tensor, factor int) ([]float32, error) {
	if err := ValidateFactor(factor); err != nil {
		return nil, err
	}
	if t == nil || t.Released() {
		return nil, fmt.Errorf("resample: upsample: %w", tensor.ErrReleased)
	}
	if t.Shape.Channels != 1 {
		return nil, fmt.Errorf("%w: upsample needs 1 channel, got %d", tensor.ErrShapeMismatch, t.Shape.Channels)
	}
	if factor == 1 {
		return t.Slice(), nil
	}

	w, h := t.Shape.Width, t.Shape.Height
	outW, outH := w*factor, h*factor
	xTaps := computeTaps(w, factor)
	yTaps := computeTaps(h, factor)

	// horizontal pass: h rows of outW
	rows := make([]float32, h*outW)
	for y := 0; y < h; y++ {
		src := t.Data[y*w : (y+1)*w]
		dst := rows[y*outW : (y+1)*outW]
		for x, tp := range xTaps {
			dst[x] = src[tp.idx[0]]*tp.w[0] + src[tp.idx[1]]*tp.w[1] +
				src[tp.idx[2]]*tp.w[2] + src[tp.idx[3]]*tp.w[3]
		}
	}

	// vertical pass
	out := make([]float32, outW*outH)
	for y, tp := range yTaps {
		r0 := rows[tp.idx[0]*outW:]
		r1 := rows[tp.idx[1]*outW:]
		r2 := rows[tp.idx[2]*outW:]
		r3 := rows[tp.idx[3]*outW:]
		dst := out[y*outW : (y+1)*outW]
		for x := range dst {
			dst[x] = r0[x]*tp.w[0] + r1[x]*tp.w[1] + r2[x]*tp.w[2] + r3[x]*tp.w[3]
		}
	}
	return out, nil
}

// UpsampleClamped is Upsample with the result clamped to [0, 1].
func UpsampleClamped(t *tensor.Tensor, factor int) ([]float32, error) {
	out, err := Upsample(t, factor)
	if err != nil {
		return nil, err
	}
	for i, v := range out {
		out[i] = float32(math.Max(0, math.Min(1, float64(v))))
	}
	return out, nil
}
