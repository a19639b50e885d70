package blend

import "fmt"

// Heightmap is a row-major grid of heights, nominally in [0, 1].
type Heightmap struct {
	Width  int
	Height int
	Data   []float32
}

// NewHeightmap allocates a zeroed heightmap.
func NewHeightmap(width, height int) *Heightmap {
	return &Heightmap{Width: width, Height: height, Data: make([]float32, width*height)}
}

// WrapHeightmap checks data against the dimensions and wraps it without copying.
func WrapHeightmap(width, height int, data []float32) (*Heightmap, error) {
	if width <= 0 || height <= 0 || len(data) != width*height {
		return nil, fmt.Errorf("%w: %d values for %dx%d", ErrShapeMismatch, len(data), width, height)
	}
	return &Heightmap{Width: width, Height: height, Data: data}, nil
}

// At returns the height at (x, y).
func (h *Heightmap) At(x, y int) float32 { return h.Data[y*h.Width+x] }

// Set stores v at (x, y).
func (h *Heightmap) Set(x, y int, v float32) { h.Data[y*h.Width+x] = v }

// Clone returns a deep copy.
func (h *Heightmap) Clone() *Heightmap {
	data := make([]float32, len(h.Data))
	copy(data, h.Data)
	return &Heightmap{Width: h.Width, Height: h.Height, Data: data}
}

func (h *Heightmap) sameSize(o *Heightmap) bool {
	return h.Width == o.Width && h.Height == o.Height
}
