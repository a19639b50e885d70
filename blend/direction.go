package blend

import "math"

// Direction names a neighbouring tile relative to the tile being blended.
// North is the y = 0 side, West the x = 0 side.
type Direction int

const (
	West Direction = iota
	East
	North
	South
	NorthWest
	NorthEast
	SouthWest
	SouthEast
)

// Directions lists all eight neighbour directions, edges first.
var Directions = []Direction{West, East, North, South, NorthWest, NorthEast, SouthWest, SouthEast}

func (d Direction) String() string {
	switch d {
	case West:
		return "west"
	case East:
		return "east"
	case North:
		return "north"
	case South:
		return "south"
	case NorthWest:
		return "northwest"
	case NorthEast:
		return "northeast"
	case SouthWest:
		return "southwest"
	case SouthEast:
		return "southeast"
	default:
		return "unknown"
	}
}

// Offset returns the tile-grid offset (dx, dy) of the neighbour.
func (d Direction) Offset() (dx, dy int) {
	switch d {
	case West:
		return -1, 0
	case East:
		return 1, 0
	case North:
		return 0, -1
	case South:
		return 0, 1
	case NorthWest:
		return -1, -1
	case NorthEast:
		return 1, -1
	case SouthWest:
		return -1, 1
	case SouthEast:
		return 1, 1
	}
	return 0, 0
}

// IsCorner reports whether d is a diagonal neighbour.
func (d Direction) IsCorner() bool {
	return d >= NorthWest
}

// distance returns how far (x, y) lies from the edge or corner shared with
// the neighbour in direction d, for a w x h tile.
func (d Direction) distance(x, y, w, h int) float64 {
	right, bottom := w-1-x, h-1-y
	switch d {
	case West:
		return float64(x)
	case East:
		return float64(right)
	case North:
		return float64(y)
	case South:
		return float64(bottom)
	case NorthWest:
		return math.Hypot(float64(x), float64(y))
	case NorthEast:
		return math.Hypot(float64(right), float64(y))
	case SouthWest:
		return math.Hypot(float64(x), float64(bottom))
	case SouthEast:
		return math.Hypot(float64(right), float64(bottom))
	}
	return math.Inf(1)
}

// project returns the neighbour's height on the shared edge nearest to
// (x, y): the matching row or column sample for edges, the shared corner
// sample for diagonals.
func (d Direction) project(n *Heightmap, x, y int) float32 {
	last, bottom := n.Width-1, n.Height-1
	switch d {
	case West:
		return n.At(last, y)
	case East:
		return n.At(0, y)
	case North:
		return n.At(x, bottom)
	case South:
		return n.At(x, 0)
	case NorthWest:
		return n.At(last, bottom)
	case NorthEast:
		return n.At(0, bottom)
	case SouthWest:
		return n.At(last, 0)
	case SouthEast:
		return n.At(0, 0)
	}
	return 0
}
