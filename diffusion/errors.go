package diffusion

import "errors"

var (
	// ErrInvalidStep is returned for out-of-range step parameters.
	ErrInvalidStep = errors.New("diffusion: invalid step")
	// ErrCapability wraps failures of the noise predictor, including
	// predictions with the wrong shape.
	ErrCapability = errors.New("diffusion: noise predictor failed")
	// ErrMissingModel is returned when no predictor is configured.
	ErrMissingModel = errors.New("diffusion: no noise predictor configured")
)
