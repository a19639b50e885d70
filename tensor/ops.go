package tensor

import (
	"fmt"
	"math/rand/v2"
	"time"
)

// Grid is a 2D float array indexed grid[y][x].
type Grid [][]float32

// RandomNormal allocates a tensor whose elements are independent draws from
// the standard normal distribution. A nil rng uses a time-seeded PCG source.
func RandomNormal(rng *rand.Rand, width, height, channels int) (*Tensor, error) {
	t, err := Zeros(width, height, channels)
	if err != nil {
		return nil, err
	}
	if rng == nil {
		seed := uint64(time.Now().UnixNano())
		rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
	for i := range t.Data {
		t.Data[i] = float32(rng.NormFloat64())
	}
	return t, nil
}

// NewRand returns a PCG-backed generator for reproducible noise.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Scale returns t * k on the default backend.
func Scale(t *Tensor, k float32) (*Tensor, error) {
	return Default.Scale(t, k)
}

// Add returns a + b on the default backend.
func Add(a, b *Tensor) (*Tensor, error) {
	return Default.Add(a, b)
}

// Mix blends terrain with noise: terrain*w + noise*(1-w).
// w = 1 yields terrain, w = 0 yields noise.
func Mix(b Backend, terrain, noise *Tensor, w float32) (*Tensor, error) {
	b = Or(b)
	scope := NewScope()
	defer scope.Close()

	scaledTerrain, err := b.Scale(terrain, w)
	if err != nil {
		return nil, fmt.Errorf("scale terrain: %w", err)
	}
	scope.Track(scaledTerrain)

	scaledNoise, err := b.Scale(noise, 1-w)
	if err != nil {
		return nil, fmt.Errorf("scale noise: %w", err)
	}
	scope.Track(scaledNoise)

	return b.Add(scaledTerrain, scaledNoise)
}

// FromGrid converts a rectangular grid into a single-channel tensor.
func FromGrid(grid Grid) (*Tensor, error) {
	height := len(grid)
	if height == 0 {
		return nil, fmt.Errorf("%w: empty grid", ErrShapeMismatch)
	}
	width := len(grid[0])
	for y, row := range grid {
		if len(row) != width {
			return nil, fmt.Errorf("%w: row %d has %d columns, want %d", ErrShapeMismatch, y, len(row), width)
		}
	}
	// Rows are checked first so a ragged grid never acquires a tensor.
	t, err := Zeros(width, height, 1)
	if err != nil {
		return nil, err
	}
	for y, row := range grid {
		copy(t.Data[y*width:(y+1)*width], row)
	}
	return t, nil
}

// ToGrid converts a single-channel tensor back into a grid.
func ToGrid(t *Tensor) (Grid, error) {
	if err := usable(t); err != nil {
		return nil, err
	}
	if t.Shape.Channels != 1 {
		return nil, fmt.Errorf("%w: ToGrid needs 1 channel, got %d", ErrShapeMismatch, t.Shape.Channels)
	}
	w, h := t.Shape.Width, t.Shape.Height
	grid := make(Grid, h)
	for y := 0; y < h; y++ {
		grid[y] = make([]float32, w)
		copy(grid[y], t.Data[y*w:(y+1)*w])
	}
	return grid, nil
}
