package diffusion

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/openfluke/neuralterrain/tensor"
)

// trackingPredictor wraps a prediction function and remembers every tensor
// it handed out so tests can assert they were released.
type trackingPredictor struct {
	mu       sync.Mutex
	fn       func(x *tensor.Tensor, rate float32) (*tensor.Tensor, error)
	handed   []*tensor.Tensor
	calls    int
	lastRate float32
}

func (p *trackingPredictor) Predict(_ context.Context, x *tensor.Tensor, rate float32) (*tensor.Tensor, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	p.lastRate = rate
	out, err := p.fn(x, rate)
	if out != nil {
		p.handed = append(p.handed, out)
	}
	return out, err
}

func (p *trackingPredictor) allReleased() bool {
	for _, t := range p.handed {
		if !t.Released() {
			return false
		}
	}
	return true
}

func zeroPredictor() *trackingPredictor {
	return &trackingPredictor{fn: func(x *tensor.Tensor, _ float32) (*tensor.Tensor, error) {
		return tensor.Zeros(x.Shape.Width, x.Shape.Height, x.Shape.Channels)
	}}
}

func mustNoise(t *testing.T, seed uint64) *tensor.Tensor {
	t.Helper()
	x, err := tensor.RandomNormal(tensor.NewRand(seed), 8, 8, 1)
	if err != nil {
		t.Fatalf("RandomNormal: %v", err)
	}
	return x
}

func TestReverseSingleStepZeroNoise(t *testing.T) {
	x := mustNoise(t, 1)
	sampler := NewSampler(zeroPredictor())

	out, err := sampler.Reverse(context.Background(), x, 1, 1)
	if err != nil {
		t.Fatalf("Reverse: %v", err)
	}
	defer out.Release()

	signal, _ := DefaultSchedule().Rates(1, 1)
	if math.Abs(signal-0.02) > 1e-9 {
		t.Fatalf("signalRate(1) should equal minSignalRate 0.02, got %f", signal)
	}
	for i, v := range x.Data {
		want := float64(v) / signal
		if math.Abs(float64(out.Data[i])-want) > 1e-4*math.Max(1, math.Abs(want)) {
			t.Fatalf("index %d: want %f, got %f", i, want, out.Data[i])
		}
	}
	if x.Released() {
		t.Error("Reverse must not release its input")
	}
}

func TestReverseMultiStepZeroNoiseTelescopes(t *testing.T) {
	// With zero predicted noise each step rescales by s(t-1)/s(t), so the
	// result is x / s(start).
	x := mustNoise(t, 2)
	p := zeroPredictor()
	sampler := NewSampler(p)

	out, err := sampler.Reverse(context.Background(), x, 20, 18)
	if err != nil {
		t.Fatalf("Reverse: %v", err)
	}
	if p.calls != 18 {
		t.Errorf("Expected 18 predictor calls, got %d", p.calls)
	}
	signal, _ := DefaultSchedule().Rates(18, 20)
	for i, v := range x.Data {
		want := float64(v) / signal
		if math.Abs(float64(out.Data[i])-want) > 1e-3*math.Max(1, math.Abs(want)) {
			t.Fatalf("index %d: want %f, got %f", i, want, out.Data[i])
		}
	}
	if !p.allReleased() {
		t.Error("Predicted noise tensors must be released")
	}
}

func TestReverseInvalidSteps(t *testing.T) {
	tests := []struct {
		name         string
		total, start int
	}{
		{"start above total", 10, 11},
		{"zero total", 0, 0},
		{"zero start", 10, 0},
		{"negative start", 10, -1},
	}
	sampler := NewSampler(zeroPredictor())
	x := mustNoise(t, 3)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := sampler.Reverse(context.Background(), x, tt.total, tt.start)
			if !errors.Is(err, ErrInvalidStep) {
				t.Errorf("Expected ErrInvalidStep, got %v", err)
			}
		})
	}
}

func TestReverseMissingModel(t *testing.T) {
	sampler := &Sampler{}
	if _, err := sampler.Reverse(context.Background(), mustNoise(t, 4), 5, 5); !errors.Is(err, ErrMissingModel) {
		t.Errorf("Expected ErrMissingModel, got %v", err)
	}
}

func TestReverseCapabilityFailure(t *testing.T) {
	boom := errors.New("inference exploded")
	calls := 0
	p := &trackingPredictor{fn: func(x *tensor.Tensor, _ float32) (*tensor.Tensor, error) {
		calls++
		if calls == 3 {
			return nil, boom
		}
		return tensor.Zeros(x.Shape.Width, x.Shape.Height, x.Shape.Channels)
	}}
	sampler := NewSampler(p)

	out, err := sampler.Reverse(context.Background(), mustNoise(t, 5), 10, 10)
	if !errors.Is(err, ErrCapability) {
		t.Fatalf("Expected ErrCapability, got %v", err)
	}
	if !errors.Is(err, boom) {
		t.Errorf("Underlying error should be wrapped, got %v", err)
	}
	if out != nil {
		t.Error("Partial output must be discarded")
	}
	if calls != 3 {
		t.Errorf("Predictor must not be retried: %d calls", calls)
	}
	if !p.allReleased() {
		t.Error("Intermediate tensors leaked on the error path")
	}
}

func TestReverseMalformedPrediction(t *testing.T) {
	p := &trackingPredictor{fn: func(*tensor.Tensor, float32) (*tensor.Tensor, error) {
		return tensor.Zeros(2, 2, 1)
	}}
	sampler := NewSampler(p)
	_, err := sampler.Reverse(context.Background(), mustNoise(t, 6), 4, 4)
	if !errors.Is(err, ErrCapability) {
		t.Fatalf("Expected ErrCapability for wrong shape, got %v", err)
	}
	if !p.allReleased() {
		t.Error("Malformed prediction should still be released")
	}
}

func TestReverseCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := zeroPredictor()
	sampler := NewSampler(p)
	sampler.OnStep = func(info StepInfo) {
		if info.Step == 8 {
			cancel()
		}
	}

	out, err := sampler.Reverse(ctx, mustNoise(t, 7), 10, 10)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
	if out != nil {
		t.Error("Cancelled run must not return output")
	}
	if p.calls != 3 {
		t.Errorf("Expected 3 steps before cancellation, got %d", p.calls)
	}
	if !p.allReleased() {
		t.Error("Intermediate tensors leaked on cancellation")
	}
}

func TestReverseDeterministic(t *testing.T) {
	halfInput := func(x *tensor.Tensor, rate float32) (*tensor.Tensor, error) {
		return tensor.Scale(x, 0.5*rate)
	}
	x := mustNoise(t, 8)

	a, err := NewSampler(&trackingPredictor{fn: halfInput}).Reverse(context.Background(), x, 12, 12)
	if err != nil {
		t.Fatalf("Reverse: %v", err)
	}
	b, err := NewSampler(&trackingPredictor{fn: halfInput}).Reverse(context.Background(), x, 12, 12)
	if err != nil {
		t.Fatalf("Reverse: %v", err)
	}
	for i := range a.Data {
		if a.Data[i] != b.Data[i] {
			t.Fatalf("Outputs differ at %d: %f vs %f", i, a.Data[i], b.Data[i])
		}
	}
}

func TestReverseReportsSteps(t *testing.T) {
	var seen []int
	sampler := NewSampler(zeroPredictor())
	sampler.OnStep = func(info StepInfo) { seen = append(seen, info.Step) }

	if _, err := sampler.Reverse(context.Background(), mustNoise(t, 9), 5, 3); err != nil {
		t.Fatalf("Reverse: %v", err)
	}
	want := []int{3, 2, 1}
	if len(seen) != len(want) {
		t.Fatalf("Expected steps %v, got %v", want, seen)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("Expected steps %v, got %v", want, seen)
			break
		}
	}
}
