package nn

import "errors"

var (
	// ErrBadWeights is returned when a weights file does not describe a
	// usable convolution stack.
	ErrBadWeights = errors.New("invalid model weights")
	// ErrChannels is returned when an input tensor does not carry the
	// channel count the network was trained on.
	ErrChannels = errors.New("channel count mismatch")
)
