package terrain

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/openfluke/neuralterrain/blend"
)

// ErrNoTile is returned when a coordinate holds no heightmap.
var ErrNoTile = errors.New("no tile at coordinate")

// Store holds tile heightmaps. Heights are kept exactly as written, i.e.
// already multiplied by the height scale passed to SetHeights.
type Store interface {
	// Heights returns a copy of the tile's heightmap and the scale it was
	// written with.
	Heights(c Coord) (*blend.Heightmap, float32, bool)
	// SetHeights stores heights*scale for the tile.
	SetHeights(c Coord, heights []float32, width, height int, scale float32) error
	// Put stores hm unchanged, recording scale alongside it.
	Put(c Coord, hm *blend.Heightmap, scale float32)
	// Neighbors returns copies of the existing tiles around c.
	Neighbors(c Coord) map[blend.Direction]*blend.Heightmap
}

type tile struct {
	heights *blend.Heightmap
	scale   float32
}

// MemoryStore is an in-memory Store safe for concurrent use.
type MemoryStore struct {
	mu    sync.RWMutex
	tiles map[Coord]tile
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tiles: make(map[Coord]tile)}
}

func (s *MemoryStore) Heights(c Coord) (*blend.Heightmap, float32, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tiles[c]
	if !ok {
		return nil, 0, false
	}
	return t.heights.Clone(), t.scale, true
}

func (s *MemoryStore) SetHeights(c Coord, heights []float32, width, height int, scale float32) error {
	if width <= 0 || height <= 0 || len(heights) != width*height {
		return fmt.Errorf("%w: %d values for %dx%d tile %v", blend.ErrShapeMismatch, len(heights), width, height, c)
	}
	hm := blend.NewHeightmap(width, height)
	for i, v := range heights {
		hm.Data[i] = v * scale
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.tiles[c] = tile{heights: hm, scale: scale}
	return nil
}

func (s *MemoryStore) Put(c Coord, hm *blend.Heightmap, scale float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tiles[c] = tile{heights: hm.Clone(), scale: scale}
}

func (s *MemoryStore) Neighbors(c Coord) map[blend.Direction]*blend.Heightmap {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[blend.Direction]*blend.Heightmap)
	for _, d := range blend.Directions {
		if t, ok := s.tiles[c.Neighbor(d)]; ok {
			out[d] = t.heights.Clone()
		}
	}
	return out
}

// Coords lists every stored tile coordinate in row-major order.
func (s *MemoryStore) Coords() []Coord {
	s.mu.RLock()
	out := make([]Coord, 0, len(s.tiles))
	for c := range s.tiles {
		out = append(out, c)
	}
	s.mu.RUnlock()
	slices.SortFunc(out, func(a, b Coord) int {
		if a.Y != b.Y {
			return cmp.Compare(a.Y, b.Y)
		}
		return cmp.Compare(a.X, b.X)
	})
	return out
}

// Len returns the number of stored tiles.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tiles)
}
