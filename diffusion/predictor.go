package diffusion

import (
	"context"

	"github.com/openfluke/neuralterrain/tensor"
)

// Predictor is the noise-prediction capability. Given a noisy tensor and the
// signal rate it was produced at, it returns the predicted noise with the
// same shape. The returned tensor is owned by the caller.
type Predictor interface {
	Predict(ctx context.Context, x *tensor.Tensor, signalRate float32) (*tensor.Tensor, error)
}

// PredictorFunc adapts an ordinary function to the Predictor interface.
type PredictorFunc func(ctx context.Context, x *tensor.Tensor, signalRate float32) (*tensor.Tensor, error)

// Predict calls f(ctx, x, signalRate).
func (f PredictorFunc) Predict(ctx context.Context, x *tensor.Tensor, signalRate float32) (*tensor.Tensor, error) {
	return f(ctx, x, signalRate)
}

// ZeroNoise is a Predictor that always predicts zero noise. Useful as a
// stand-in when wiring a pipeline without a trained model.
var ZeroNoise = PredictorFunc(func(_ context.Context, x *tensor.Tensor, _ float32) (*tensor.Tensor, error) {
	return tensor.Zeros(x.Shape.Width, x.Shape.Height, x.Shape.Channels)
})
