package tensor

import "errors"

var (
	// ErrShapeMismatch is returned when operand shapes disagree.
	ErrShapeMismatch = errors.New("shape mismatch")
	// ErrReleased is returned when an operand has already been released.
	ErrReleased = errors.New("tensor released")
)
