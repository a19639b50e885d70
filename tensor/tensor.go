package tensor

import (
	"fmt"
)

// Shape describes a tensor laid out as (batch, width, height, channels).
// Batch is always 1 for heightmap work.
type Shape struct {
	Batch    int
	Width    int
	Height   int
	Channels int
}

// NewShape returns a batch-1 shape.
func NewShape(width, height, channels int) Shape {
	return Shape{Batch: 1, Width: width, Height: height, Channels: channels}
}

// Len returns the number of elements described by the shape
func (s Shape) Len() int {
	return s.Batch * s.Width * s.Height * s.Channels
}

// Equal reports whether two shapes are identical.
func (s Shape) Equal(o Shape) bool {
	return s == o
}

func (s Shape) valid() bool {
	return s.Batch == 1 && s.Width > 0 && s.Height > 0 && s.Channels > 0
}

func (s Shape) String() string {
	return fmt.Sprintf("(%d, %d, %d, %d)", s.Batch, s.Width, s.Height, s.Channels)
}

// Tensor is a dense float32 array of shape (1, W, H, C).
// Data is row-major over (y, x, c): index = (y*Width + x)*Channels + c.
//
// A Tensor exclusively owns its storage. Call Release once the tensor is no
// longer referenced; backends may attach accelerator buffers that are only
// freed by Release.
type Tensor struct {
	Shape Shape
	Data  []float32

	released  bool
	onRelease []func()
}

// Zeros allocates a zero-filled tensor.
func Zeros(width, height, channels int) (*Tensor, error) {
	shape := NewShape(width, height, channels)
	if !shape.valid() {
		return nil, fmt.Errorf("%w: invalid shape %v", ErrShapeMismatch, shape)
	}
	return &Tensor{Shape: shape, Data: make([]float32, shape.Len())}, nil
}

// FromSlice wraps a copy of data as a tensor of the given shape.
func FromSlice(width, height, channels int, data []float32) (*Tensor, error) {
	t, err := Zeros(width, height, channels)
	if err != nil {
		return nil, err
	}
	if len(data) != t.Shape.Len() {
		return nil, fmt.Errorf("%w: %d values for shape %v", ErrShapeMismatch, len(data), t.Shape)
	}
	copy(t.Data, data)
	return t, nil
}

// Index returns the flat offset of (x, y, c).
func (t *Tensor) Index(x, y, c int) int {
	return (y*t.Shape.Width+x)*t.Shape.Channels + c
}

// At returns the value at (x, y, c)
func (t *Tensor) At(x, y, c int) float32 {
	return t.Data[t.Index(x, y, c)]
}

// Set stores v at (x, y, c)
func (t *Tensor) Set(x, y, c int, v float32) {
	t.Data[t.Index(x, y, c)] = v
}

// Slice returns a copy of the flat data.
func (t *Tensor) Slice() []float32 {
	out := make([]float32, len(t.Data))
	copy(out, t.Data)
	return out
}

// Clone returns a freshly owned copy of t.
func (t *Tensor) Clone() *Tensor {
	return &Tensor{Shape: t.Shape, Data: t.Slice()}
}

// OnRelease registers fn to run when the tensor is released. Backends use it
// to free device buffers mirrored from Data.
func (t *Tensor) OnRelease(fn func()) {
	t.onRelease = append(t.onRelease, fn)
}

// Release frees the tensor's storage. It is safe to call more than once and
// on a nil tensor.
func (t *Tensor) Release() {
	if t == nil || t.released {
		return
	}
	t.released = true
	for i := len(t.onRelease) - 1; i >= 0; i-- {
		t.onRelease[i]()
	}
	t.onRelease = nil
	t.Data = nil
}

// Released reports whether Release has been called.
func (t *Tensor) Released() bool {
	return t == nil || t.released
}

// usable reports an error for nil or released operands.
func usable(ts ...*Tensor) error {
	for _, t := range ts {
		if t == nil {
			return fmt.Errorf("%w: nil tensor", ErrReleased)
		}
		if t.released {
			return ErrReleased
		}
	}
	return nil
}
