package gpu

import "errors"

var (
	// ErrNoGPU is returned when no WebGPU adapter or device is available.
	ErrNoGPU = errors.New("gpu unavailable")
	// ErrBudgetExceeded is returned when an allocation would push resident
	// device memory past the backend's budget.
	ErrBudgetExceeded = errors.New("gpu memory budget exceeded")
)
