package hex

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// ErrInvalidArgument is returned for out-of-range inputs such as a direction
// index outside [0,6).
var ErrInvalidArgument = errors.New("invalid argument")

// Direction names one of the six neighbours of a cell. The order is fixed:
// Opposite relies on d and d+3 being across from each other.
type Direction int

const (
	NE Direction = iota
	E
	SE
	SW
	W
	NW
)

// Directions lists all six directions in index order.
var Directions = [6]Direction{NE, E, SE, SW, W, NW}

var directionNames = [6]string{"NE", "E", "SE", "SW", "W", "NW"}

// DirectionFromIndex validates i and converts it to a Direction.
func DirectionFromIndex(i int) (Direction, error) {
	d := Direction(i)
	if !d.Valid() {
		return 0, fmt.Errorf("direction %d: %w", i, ErrInvalidArgument)
	}
	return d, nil
}

// Valid reports whether d is one of the six directions.
func (d Direction) Valid() bool {
	return d >= NE && d <= NW
}

// Opposite returns the direction pointing back across the same edge.
func (d Direction) Opposite() Direction {
	return (d + 3) % 6
}

func (d Direction) String() string {
	if !d.Valid() {
		return fmt.Sprintf("Direction(%d)", int(d))
	}
	return directionNames[d]
}

// neighborOffsets is indexed by Direction.
var neighborOffsets = [6]Coordinate{
	{X: 1, Y: -1}, // NE
	{X: 1, Y: 0},  // E
	{X: 0, Y: 1},  // SE
	{X: -1, Y: 1}, // SW
	{X: -1, Y: 0}, // W
	{X: 0, Y: -1}, // NW
}

// Coordinate is a cell position in cube coordinates. Only x and y are
// stored; z = -x - y is derived, so x + y + z == 0 always holds.
type Coordinate struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Z returns the implicit third cube coordinate.
func (c Coordinate) Z() int {
	return -c.X - c.Y
}

// FromOffset converts a rectangular (col, row) position to cube coordinates.
// row/2 truncates toward zero, so alternate rows shift by one column.
func FromOffset(col, row int) Coordinate {
	return Coordinate{X: col - row/2, Y: row}
}

// Offset is the inverse of FromOffset.
func (c Coordinate) Offset() (col, row int) {
	return c.X + c.Y/2, c.Y
}

// FromWorldPosition returns the cell containing the world-space point p for
// hexagons of the given radii. Each cube axis is rounded independently; when
// the rounded triple does not sum to zero the axis with the largest rounding
// error is recomputed from the other two.
func FromWorldPosition(p mgl32.Vec3, outer, inner float32) Coordinate {
	fy := float64(p.Y()) / (float64(outer) * 1.5)
	fx := float64(p.X())/(float64(inner)*2) - fy/2
	fz := -fx - fy

	// Ties round to even, matching the engine the grids are authored in.
	ix := int(math.RoundToEven(fx))
	iy := int(math.RoundToEven(fy))
	iz := int(math.RoundToEven(fz))

	if ix+iy+iz != 0 {
		dx := math.Abs(fx - float64(ix))
		dy := math.Abs(fy - float64(iy))
		dz := math.Abs(fz - float64(iz))

		switch {
		case dx > dy && dx > dz:
			ix = -iy - iz
		case dz > dy:
			iz = -ix - iy // z is derived; x and y already agree with it
		default:
			iy = -ix - iz
		}
	}

	return Coordinate{X: ix, Y: iy}
}

// Neighbor returns the adjacent coordinate in direction d.
func (c Coordinate) Neighbor(d Direction) (Coordinate, error) {
	if !d.Valid() {
		return c, fmt.Errorf("neighbor of %s: direction %d: %w", c, int(d), ErrInvalidArgument)
	}
	o := neighborOffsets[d]
	return Coordinate{X: c.X + o.X, Y: c.Y + o.Y}, nil
}

// Neighbors returns the six adjacent coordinates in direction order.
func (c Coordinate) Neighbors() [6]Coordinate {
	var result [6]Coordinate
	for i, o := range neighborOffsets {
		result[i] = Coordinate{X: c.X + o.X, Y: c.Y + o.Y}
	}
	return result
}

// Distance returns the number of single steps between c and other.
func (c Coordinate) Distance(other Coordinate) int {
	return Distance(c, other)
}

// Distance returns the hex distance between two coordinates: the largest of
// the three absolute cube-axis differences.
func Distance(a, b Coordinate) int {
	dx := abs(a.X - b.X)
	dy := abs(a.Y - b.Y)
	dz := abs(a.Z() - b.Z())
	return max(dx, dy, dz)
}

// String returns "(x, y, z)".
func (c Coordinate) String() string {
	return fmt.Sprintf("(%d, %d, %d)", c.X, c.Y, c.Z())
}

// Label returns the three axes on separate lines, for in-cell debug text.
func (c Coordinate) Label() string {
	return fmt.Sprintf("%d\n%d\n%d", c.X, c.Y, c.Z())
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
