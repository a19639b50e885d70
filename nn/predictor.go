package nn

import (
	"context"
	"fmt"

	"github.com/openfluke/neuralterrain/tensor"
)

// Predictor adapts a Network to the diffusion sampler's predictor
// capability. Tensors are (1, W, H, C) with channels interleaved; the
// network works on planar [C][H][W] data, so Predict transposes both ways
// and appends the noise-level plane 1 - signalRate^2.
type Predictor struct {
	Net *Network
}

// NewPredictor wraps net.
func NewPredictor(net *Network) *Predictor {
	return &Predictor{Net: net}
}

// Channels reports the tensor channel count the predictor accepts.
func (p *Predictor) Channels() int { return p.Net.Channels }

// Predict estimates the noise component of x.
func (p *Predictor) Predict(ctx context.Context, x *tensor.Tensor, signalRate float32) (*tensor.Tensor, error) {
	if x == nil || x.Released() {
		return nil, tensor.ErrReleased
	}
	s := x.Shape
	if s.Channels != p.Net.Channels {
		return nil, fmt.Errorf("%w: tensor has %d channels, model expects %d", ErrChannels, s.Channels, p.Net.Channels)
	}

	w, h, c := s.Width, s.Height, s.Channels
	plane := w * h
	planar := make([]float32, (c+1)*plane)
	for y := 0; y < h; y++ {
		for xx := 0; xx < w; xx++ {
			for ch := 0; ch < c; ch++ {
				planar[ch*plane+y*w+xx] = x.At(xx, y, ch)
			}
		}
	}
	level := 1 - signalRate*signalRate
	cond := planar[c*plane:]
	for i := range cond {
		cond[i] = level
	}

	out, err := p.Net.Forward(ctx, planar, h, w)
	if err != nil {
		return nil, err
	}

	result, err := tensor.Zeros(w, h, c)
	if err != nil {
		return nil, err
	}
	for y := 0; y < h; y++ {
		for xx := 0; xx < w; xx++ {
			for ch := 0; ch < c; ch++ {
				result.Set(xx, y, ch, out[ch*plane+y*w+xx])
			}
		}
	}
	return result, nil
}
