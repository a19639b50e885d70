package diffusion

import (
	"fmt"
	"math"
)

const (
	// DefaultMaxSignalRate is the signal rate at step 0 (least noisy).
	DefaultMaxSignalRate = 0.9
	// DefaultMinSignalRate is the signal rate at the final step (pure noise).
	DefaultMinSignalRate = 0.02
)

// Schedule is a variance-preserving cosine schedule. The step fraction
// t/total is mapped linearly onto an angle between acos(MaxSignalRate) and
// acos(MinSignalRate); signal = cos(angle), noise = sin(angle).
type Schedule struct {
	MinSignalRate float64
	MaxSignalRate float64
}

// DefaultSchedule returns the schedule the terrain model was trained with.
func DefaultSchedule() Schedule {
	return Schedule{MinSignalRate: DefaultMinSignalRate, MaxSignalRate: DefaultMaxSignalRate}
}

// Validate checks 0 < min < max <= 1.
func (s Schedule) Validate() error {
	if !(s.MinSignalRate > 0 && s.MinSignalRate < s.MaxSignalRate && s.MaxSignalRate <= 1) {
		return fmt.Errorf("diffusion: schedule needs 0 < minSignalRate < maxSignalRate <= 1, got [%g, %g]",
			s.MinSignalRate, s.MaxSignalRate)
	}
	return nil
}

// Angle returns the schedule angle for a step fraction in [0, 1].
func (s Schedule) Angle(fraction float64) float64 {
	fraction = math.Max(0, math.Min(1, fraction))
	start := math.Acos(s.MaxSignalRate)
	end := math.Acos(s.MinSignalRate)
	return start + fraction*(end-start)
}

// Rates returns (signalRate, noiseRate) at step out of total steps.
// Step 0 is the clean end of the chain, step total is pure noise.
func (s Schedule) Rates(step, total int) (signal, noise float64) {
	angle := s.Angle(float64(step) / float64(total))
	signal = math.Cos(angle)
	noise = math.Sin(angle)
	// guard against rounding pushing cos outside the configured band
	signal = math.Max(s.MinSignalRate, math.Min(s.MaxSignalRate, signal))
	return signal, noise
}
