package diffusion

import (
	"math"
	"testing"
)

func TestScheduleVariancePreserving(t *testing.T) {
	s := DefaultSchedule()
	for _, total := range []int{1, 10, 20, 1000} {
		for step := 0; step <= total; step++ {
			signal, noise := s.Rates(step, total)
			if sum := signal*signal + noise*noise; math.Abs(sum-1) > 1e-9 {
				t.Fatalf("total=%d step=%d: signal^2+noise^2 = %.12f", total, step, sum)
			}
		}
	}
}

func TestScheduleMonotonic(t *testing.T) {
	s := DefaultSchedule()
	const total = 20
	prevSignal, prevNoise := s.Rates(0, total)
	for step := 1; step <= total; step++ {
		signal, noise := s.Rates(step, total)
		if signal >= prevSignal {
			t.Errorf("step %d: signal rate %f not below %f", step, signal, prevSignal)
		}
		if noise <= prevNoise {
			t.Errorf("step %d: noise rate %f not above %f", step, noise, prevNoise)
		}
		prevSignal, prevNoise = signal, noise
	}
}

func TestScheduleEndpoints(t *testing.T) {
	s := DefaultSchedule()
	signal, _ := s.Rates(0, 20)
	if math.Abs(signal-DefaultMaxSignalRate) > 1e-9 {
		t.Errorf("step 0 signal rate: want %f, got %f", DefaultMaxSignalRate, signal)
	}
	signal, _ = s.Rates(20, 20)
	if math.Abs(signal-DefaultMinSignalRate) > 1e-9 {
		t.Errorf("final signal rate: want %f, got %f", DefaultMinSignalRate, signal)
	}
}

func TestScheduleValidate(t *testing.T) {
	tests := []struct {
		name  string
		s     Schedule
		valid bool
	}{
		{"default", DefaultSchedule(), true},
		{"inverted", Schedule{MinSignalRate: 0.9, MaxSignalRate: 0.02}, false},
		{"zero min", Schedule{MinSignalRate: 0, MaxSignalRate: 0.9}, false},
		{"max above one", Schedule{MinSignalRate: 0.1, MaxSignalRate: 1.5}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.s.Validate()
			if (err == nil) != tt.valid {
				t.Errorf("Validate() = %v, want valid=%v", err, tt.valid)
			}
		})
	}
}
