package terrain

import (
	"fmt"

	"github.com/openfluke/neuralterrain/blend"
)

// Coord addresses a tile in the terrain grid. Y grows southwards, matching
// blend.North being the y = 0 side of a tile.
type Coord struct {
	X, Y int
}

// Neighbor returns the coordinate of the adjacent tile in direction d.
func (c Coord) Neighbor(d blend.Direction) Coord {
	dx, dy := d.Offset()
	return Coord{X: c.X + dx, Y: c.Y + dy}
}

func (c Coord) String() string {
	return fmt.Sprintf("(%d,%d)", c.X, c.Y)
}
