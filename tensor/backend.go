package tensor

import (
	"fmt"
)

// Backend defines the elementwise operations the diffusion pipeline needs.
// This abstraction allows swapping implementations (CPU, WebGPU) without
// changing sampler code. Every method returns a freshly owned tensor and
// never mutates its operands.
type Backend interface {
	// Scale multiplies all elements by a scalar: result = t * k
	Scale(t *Tensor, k float32) (*Tensor, error)

	// Add performs element-wise addition: result = a + b
	Add(a, b *Tensor) (*Tensor, error)

	// AddScaled computes result = a*ka + b*kb in one pass
	AddScaled(a *Tensor, ka float32, b *Tensor, kb float32) (*Tensor, error)

	// Name identifies the backend in logs
	Name() string
}

// =============================================================================
// CPUBackend Implementation
// =============================================================================

// CPUBackend provides CPU-based tensor operations.
type CPUBackend struct{}

// NewCPUBackend creates a new CPU backend.
func NewCPUBackend() *CPUBackend {
	return &CPUBackend{}
}

// Name returns "cpu".
func (b *CPUBackend) Name() string { return "cpu" }

// Scale multiplies all elements by a scalar: result = t * k
func (b *CPUBackend) Scale(t *Tensor, k float32) (*Tensor, error) {
	if err := usable(t); err != nil {
		return nil, err
	}
	result := &Tensor{Shape: t.Shape, Data: make([]float32, len(t.Data))}
	for i, v := range t.Data {
		result.Data[i] = v * k
	}
	return result, nil
}

// Add performs element-wise addition: result = a + b
func (b *CPUBackend) Add(a, other *Tensor) (*Tensor, error) {
	return b.AddScaled(a, 1, other, 1)
}

// AddScaled computes result = a*ka + other*kb
func (b *CPUBackend) AddScaled(a *Tensor, ka float32, other *Tensor, kb float32) (*Tensor, error) {
	if err := usable(a, other); err != nil {
		return nil, err
	}
	if !a.Shape.Equal(other.Shape) {
		return nil, fmt.Errorf("%w: %v vs %v", ErrShapeMismatch, a.Shape, other.Shape)
	}
	result := &Tensor{Shape: a.Shape, Data: make([]float32, len(a.Data))}
	for i := range a.Data {
		result.Data[i] = a.Data[i]*ka + other.Data[i]*kb
	}
	return result, nil
}

// Default is the backend used when callers pass nil.
var Default Backend = NewCPUBackend()

// Or returns b, or Default when b is nil.
func Or(b Backend) Backend {
	if b == nil {
		return Default
	}
	return b
}
