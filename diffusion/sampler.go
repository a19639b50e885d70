package diffusion

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/openfluke/neuralterrain/tensor"
)

// StepInfo describes one completed reverse-diffusion step.
type StepInfo struct {
	Step       int // step just denoised, counting down to 1
	Total      int
	SignalRate float64
	NoiseRate  float64
	Elapsed    time.Duration // time spent in this step, prediction included
}

// Sampler runs the reverse-diffusion loop over an injected Predictor.
// A Sampler holds no per-run state and may be shared by goroutines as long as
// its Predictor and Backend are safe for concurrent use.
type Sampler struct {
	Predictor Predictor
	Schedule  Schedule
	Backend   tensor.Backend // nil means tensor.Default
	Logger    *slog.Logger   // nil means slog.Default()

	// OnStep, when set, is called after every step.
	OnStep func(StepInfo)
}

// NewSampler returns a sampler with the default schedule and CPU backend.
func NewSampler(p Predictor) *Sampler {
	return &Sampler{Predictor: p, Schedule: DefaultSchedule()}
}

func (s *Sampler) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// ValidateSteps checks 0 < start <= total.
func ValidateSteps(total, start int) error {
	if total <= 0 {
		return fmt.Errorf("%w: totalSteps must be positive, got %d", ErrInvalidStep, total)
	}
	if start <= 0 {
		return fmt.Errorf("%w: startingStep must be positive, got %d", ErrInvalidStep, start)
	}
	if start > total {
		return fmt.Errorf("%w: startingStep %d exceeds totalSteps %d", ErrInvalidStep, start, total)
	}
	return nil
}

// Reverse denoises x by walking the schedule backward from start to 0 and
// returns the estimated clean signal. x is not modified or released; the
// returned tensor is owned by the caller. Every intermediate tensor is
// released before Reverse returns, on success and on every error path.
//
// ctx is checked between steps; a cancelled run returns ctx.Err() and no
// partial output. A predictor failure aborts the run with ErrCapability.
func (s *Sampler) Reverse(ctx context.Context, x *tensor.Tensor, total, start int) (*tensor.Tensor, error) {
	if s.Predictor == nil {
		return nil, ErrMissingModel
	}
	if err := ValidateSteps(total, start); err != nil {
		return nil, err
	}
	schedule := s.Schedule
	if schedule == (Schedule{}) {
		schedule = DefaultSchedule()
	}
	if err := schedule.Validate(); err != nil {
		return nil, err
	}
	if x == nil || x.Released() {
		return nil, fmt.Errorf("diffusion: input: %w", tensor.ErrReleased)
	}

	backend := tensor.Or(s.Backend)
	log := s.logger()
	scope := tensor.NewScope()
	defer scope.Close()

	began := time.Now()
	current := x
	for step := start; step >= 1; step-- {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		stepStart := time.Now()

		signal, noise := schedule.Rates(step, total)
		nextSignal, nextNoise := schedule.Rates(step-1, total)

		predicted, err := s.Predictor.Predict(ctx, current, float32(signal))
		if err != nil {
			return nil, fmt.Errorf("%w: step %d: %w", ErrCapability, step, err)
		}
		scope.Track(predicted)
		if predicted == nil || predicted.Released() || !predicted.Shape.Equal(current.Shape) {
			got := "nil"
			if predicted != nil {
				got = predicted.Shape.String()
			}
			return nil, fmt.Errorf("%w: step %d: predicted noise shape %s, want %v",
				ErrCapability, step, got, current.Shape)
		}

		// x0 = (x - noise*predicted) / signal
		estimate, err := backend.AddScaled(current, float32(1/signal), predicted, float32(-noise/signal))
		if err != nil {
			return nil, fmt.Errorf("diffusion: estimate clean signal: %w", err)
		}
		scope.Track(estimate)

		info := StepInfo{Step: step, Total: total, SignalRate: signal, NoiseRate: noise}

		if step-1 == 0 {
			info.Elapsed = time.Since(stepStart)
			s.notify(info)
			log.Debug("reverse diffusion complete",
				"steps", start, "total", total, "backend", backend.Name(), "elapsed", time.Since(began))
			return scope.Keep(estimate), nil
		}

		// re-noise toward the next, less noisy step
		next, err := backend.AddScaled(estimate, float32(nextSignal), predicted, float32(nextNoise))
		if err != nil {
			return nil, fmt.Errorf("diffusion: re-noise: %w", err)
		}
		scope.Track(next)

		if current != x {
			scope.Drop(current)
		}
		scope.Drop(predicted)
		scope.Drop(estimate)
		current = next

		info.Elapsed = time.Since(stepStart)
		s.notify(info)
		log.Debug("diffusion step", "step", step, "signal_rate", signal, "noise_rate", noise)
	}

	// unreachable: ValidateSteps guarantees start >= 1
	return nil, fmt.Errorf("%w: no steps run", ErrInvalidStep)
}

func (s *Sampler) notify(info StepInfo) {
	if s.OnStep != nil {
		s.OnStep(info)
	}
}
