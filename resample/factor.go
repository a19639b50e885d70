package resample

import (
	"errors"
	"fmt"
)

// ErrInvalidFactor is returned for factors outside {1, 2, 4, 8, 16}.
var ErrInvalidFactor = errors.New("resample: invalid factor")

// Factors lists the supported power-of-two scale factors, smallest first.
var Factors = []int{1, 2, 4, 8, 16}

// ValidateFactor checks that f is one of Factors.
func ValidateFactor(f int) error {
	for _, ok := range Factors {
		if f == ok {
			return nil
		}
	}
	return fmt.Errorf("%w: %d (want one of %v)", ErrInvalidFactor, f, Factors)
}

// FactorForResolution returns the factor relating a terrain heightmap
// resolution to the model's native resolution. Engine heightmaps carry one
// extra shared edge sample, so both native*f and native*f+1 are accepted
// (257, 513, 1025, 2049 and 4097 for a 256 model).
func FactorForResolution(resolution, native int) (int, error) {
	if native <= 0 {
		return 0, fmt.Errorf("%w: native resolution %d", ErrInvalidFactor, native)
	}
	for _, f := range Factors {
		if resolution == native*f || resolution == native*f+1 {
			return f, nil
		}
	}
	return 0, fmt.Errorf("%w: resolution %d is not a power-of-two multiple of %d", ErrInvalidFactor, resolution, native)
}

// Resolution returns the working resolution for a factor.
func Resolution(native, factor int) (int, error) {
	if err := ValidateFactor(factor); err != nil {
		return 0, err
	}
	return native * factor, nil
}
