package blend

import (
	"errors"

	"github.com/openfluke/neuralterrain/tensor"
)

var (
	// ErrShapeMismatch is returned when a neighbour's size differs from the
	// tile. It is the same sentinel as tensor.ErrShapeMismatch.
	ErrShapeMismatch = tensor.ErrShapeMismatch
	// ErrInvalidRegion is returned for bad radii or shape exponents.
	ErrInvalidRegion = errors.New("blend: invalid region")
)
