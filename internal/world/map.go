package world

import (
	"errors"
	"fmt"
	"iter"
	"slices"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/talgya/hexworld/internal/hex"
)

var (
	// ErrInvalidSize is returned by Build for negative dimensions.
	ErrInvalidSize = fmt.Errorf("grid size: %w", hex.ErrInvalidArgument)

	// ErrUnknownTerrain is returned when a terrain name cannot be parsed.
	ErrUnknownTerrain = errors.New("unknown terrain")
)

// Grid is the spatial index from cube coordinate to cell. Cells are laid out
// on an offset rectangle; neighbours are resolved through the index on demand
// rather than stored on the cells.
type Grid struct {
	Width   int
	Height  int
	Spacing float32 // Scale between cell centers; 1 packs cells edge to edge
	Metrics hex.Metrics

	// OnCellCreated, if set, is called for each cell as Build creates it.
	OnCellCreated func(*Cell)

	cells map[hex.Coordinate]*Cell
	order []*Cell // Insertion order, for reproducible mesh output
}

// NewGrid creates an empty grid. Call Build to populate it.
func NewGrid(metrics hex.Metrics, spacing float32) *Grid {
	if spacing <= 0 {
		spacing = 1
	}
	return &Grid{
		Spacing: spacing,
		Metrics: metrics,
		cells:   make(map[hex.Coordinate]*Cell),
	}
}

// Build discards every existing cell and creates width×height new ones,
// row by row.
func (g *Grid) Build(width, height int) error {
	if width < 0 || height < 0 {
		return fmt.Errorf("build %dx%d: %w", width, height, ErrInvalidSize)
	}

	g.Width = width
	g.Height = height
	g.cells = make(map[hex.Coordinate]*Cell, width*height)
	g.order = make([]*Cell, 0, width*height)

	for row := 0; row < height; row++ {
		for col := 0; col < width; col++ {
			g.createCell(col, row)
		}
	}
	return nil
}

func (g *Grid) createCell(col, row int) {
	cell := &Cell{
		Coord:    hex.FromOffset(col, row),
		Position: g.Metrics.OffsetToPosition(col, row, g.Spacing),
		Color:    White,
	}
	g.cells[cell.Coord] = cell
	g.order = append(g.order, cell)

	if g.OnCellCreated != nil {
		g.OnCellCreated(cell)
	}
}

// Lookup returns the cell at c, or false if c lies outside the built area.
func (g *Grid) Lookup(c hex.Coordinate) (*Cell, bool) {
	cell, ok := g.cells[c]
	return cell, ok
}

// CellAtOffset returns the cell at rectangular position (col, row).
func (g *Grid) CellAtOffset(col, row int) (*Cell, bool) {
	if col < 0 || col >= g.Width || row < 0 || row >= g.Height {
		return nil, false
	}
	return g.Lookup(hex.FromOffset(col, row))
}

// CellAtPosition returns the cell containing the local point p.
func (g *Grid) CellAtPosition(p mgl32.Vec3) (*Cell, bool) {
	c := hex.FromWorldPosition(p, g.Metrics.OuterRadius*g.Spacing, g.Metrics.InnerRadius*g.Spacing)
	return g.Lookup(c)
}

// Neighbor returns the cell adjacent to cell in direction d. A neighbour past
// the grid edge is reported absent, not as an error.
func (g *Grid) Neighbor(cell *Cell, d hex.Direction) (*Cell, bool, error) {
	c, err := cell.Coord.Neighbor(d)
	if err != nil {
		return nil, false, err
	}
	n, ok := g.cells[c]
	return n, ok, nil
}

// Neighbors yields the cells adjacent to cell in direction order, skipping
// directions that fall outside the grid.
func (g *Grid) Neighbors(cell *Cell) iter.Seq[*Cell] {
	return func(yield func(*Cell) bool) {
		for _, c := range cell.Coord.Neighbors() {
			n, ok := g.cells[c]
			if !ok {
				continue
			}
			if !yield(n) {
				return
			}
		}
	}
}

// AllCells yields every cell in creation order. The sequence can be ranged
// over any number of times.
func (g *Grid) AllCells() iter.Seq[*Cell] {
	return slices.Values(g.order)
}

// Cells returns a copy of the cells in creation order.
func (g *Grid) Cells() []*Cell {
	return slices.Clone(g.order)
}

// Len returns the number of cells.
func (g *Grid) Len() int {
	return len(g.order)
}

// String returns a summary of the grid.
func (g *Grid) String() string {
	return fmt.Sprintf("Grid(%dx%d, cells=%d)", g.Width, g.Height, g.Len())
}
