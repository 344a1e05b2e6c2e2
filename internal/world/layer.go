package world

import (
	"cmp"
	"iter"
	"maps"
	"slices"

	"github.com/talgya/hexworld/internal/hex"
)

// TerrainLayer holds the terrain of each coordinate, outside the cells
// themselves. Coordinates without an entry have TerrainNone.
type TerrainLayer struct {
	types map[hex.Coordinate]Terrain
}

// NewTerrainLayer creates an empty layer.
func NewTerrainLayer() *TerrainLayer {
	return &TerrainLayer{types: make(map[hex.Coordinate]Terrain)}
}

// Set replaces the terrain at c. Setting TerrainNone clears it.
func (l *TerrainLayer) Set(c hex.Coordinate, t Terrain) {
	if t == TerrainNone {
		delete(l.types, c)
		return
	}
	l.types[c] = t
}

// Get returns the terrain at c.
func (l *TerrainLayer) Get(c hex.Coordinate) Terrain {
	return l.types[c]
}

// Add sets the terrain at c unless t is TerrainNone.
func (l *TerrainLayer) Add(c hex.Coordinate, t Terrain) {
	if t != TerrainNone {
		l.Set(c, t)
	}
}

// Remove clears the terrain at c if it is currently t.
func (l *TerrainLayer) Remove(c hex.Coordinate, t Terrain) {
	if l.types[c] == t {
		delete(l.types, c)
	}
}

// Has reports whether the terrain at c is exactly t.
func (l *TerrainLayer) Has(c hex.Coordinate, t Terrain) bool {
	return l.types[c] == t
}

// Len returns the number of coordinates with a terrain.
func (l *TerrainLayer) Len() int {
	return len(l.types)
}

// All yields every entry ordered by (Y, X).
func (l *TerrainLayer) All() iter.Seq2[hex.Coordinate, Terrain] {
	keys := slices.SortedFunc(maps.Keys(l.types), compareCoords)
	return func(yield func(hex.Coordinate, Terrain) bool) {
		for _, c := range keys {
			if !yield(c, l.types[c]) {
				return
			}
		}
	}
}

func compareCoords(a, b hex.Coordinate) int {
	if c := cmp.Compare(a.Y, b.Y); c != 0 {
		return c
	}
	return cmp.Compare(a.X, b.X)
}

// Paint sets each cell's colour from its terrain. With no coordinates given
// every cell of the grid is painted. It returns the cells whose colour
// changed, which is the set the mesh needs to rebuild.
func Paint(g *Grid, layer *TerrainLayer, palette Palette, coords ...hex.Coordinate) []*Cell {
	var changed []*Cell
	paint := func(cell *Cell) {
		color := palette.Color(layer.Get(cell.Coord))
		if cell.Color != color {
			cell.Color = color
			changed = append(changed, cell)
		}
	}

	if len(coords) == 0 {
		for cell := range g.AllCells() {
			paint(cell)
		}
		return changed
	}

	for _, c := range coords {
		if cell, ok := g.Lookup(c); ok {
			paint(cell)
		}
	}
	return changed
}

// TerrainCounts returns how many coordinates carry each terrain.
func TerrainCounts(layer *TerrainLayer) map[Terrain]int {
	counts := make(map[Terrain]int)
	for _, t := range layer.types {
		counts[t]++
	}
	return counts
}
