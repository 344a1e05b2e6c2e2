// Package mesh triangulates hex cells into flat render buffers and keeps
// those buffers up to date as individual cells change.
//
// Every cell contributes a fan of six triangles around its center. Vertices
// are never shared, so each cell owns one contiguous block of 18 entries in
// every buffer. The builder records that block per cell, which lets a partial
// rebuild cut out and re-append only the cells that changed.
package mesh

import (
	"cmp"
	"fmt"
	"iter"
	"log/slog"
	"maps"
	"slices"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/zyedidia/generic/mapset"

	"github.com/talgya/hexworld/internal/hex"
	"github.com/talgya/hexworld/internal/world"
)

const (
	TrianglesPerCell = 6
	VerticesPerCell  = TrianglesPerCell * 3
)

// Mode reports which path a Rebuild took.
type Mode int

const (
	ModeFull Mode = iota
	ModePartial
)

func (m Mode) String() string {
	switch m {
	case ModeFull:
		return "full"
	case ModePartial:
		return "partial"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Range is the block of vertex buffer entries owned by one cell.
type Range struct {
	Start int `json:"start"`
	Count int `json:"count"`
}

// End returns the offset one past the last vertex of the range.
func (r Range) End() int { return r.Start + r.Count }

// Geometry is the set of parallel buffers handed to a renderer.
// Triangles index into Vertices; Colors and UVs are per vertex.
type Geometry struct {
	Vertices  []mgl32.Vec3
	Triangles []uint32
	Colors    []mgl32.Vec4
	UVs       []mgl32.Vec2
}

// Clone returns a deep copy.
func (g Geometry) Clone() Geometry {
	return Geometry{
		Vertices:  slices.Clone(g.Vertices),
		Triangles: slices.Clone(g.Triangles),
		Colors:    slices.Clone(g.Colors),
		UVs:       slices.Clone(g.UVs),
	}
}

// Len returns the number of vertices.
func (g Geometry) Len() int { return len(g.Vertices) }

// Option configures a Builder.
type Option func(*Builder)

// WithLogger sets the logger used for rebuild diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(b *Builder) {
		if l != nil {
			b.log = l
		}
	}
}

// Builder owns the mesh buffers. Callers change cell colours and then call
// Rebuild; nothing else writes to the buffers. A Builder is not safe for
// concurrent use.
type Builder struct {
	metrics hex.Metrics
	geom    Geometry
	ranges  map[*world.Cell]Range
	log     *slog.Logger
}

// NewBuilder creates an empty builder for cells of the given size.
func NewBuilder(metrics hex.Metrics, opts ...Option) *Builder {
	b := &Builder{
		metrics: metrics,
		ranges:  make(map[*world.Cell]Range),
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Rebuild brings the buffers up to date for cells.
//
// If none of the cells has geometry yet, the buffers are cleared and rebuilt
// from cells alone (ModeFull). Otherwise each cell's existing block is cut out,
// every cell is re-appended at the tail, and the index buffer is regenerated
// (ModePartial). Cells listed more than once are handled once.
func (b *Builder) Rebuild(cells iter.Seq[*world.Cell]) Mode {
	input := unique(cells)

	tracked := false
	for _, cell := range input {
		if _, ok := b.ranges[cell]; ok {
			tracked = true
			break
		}
	}

	if !tracked {
		b.reset(len(input))
		for _, cell := range input {
			b.appendCell(cell)
		}
		b.log.Debug("mesh rebuilt", "mode", ModeFull, "cells", len(input), "vertices", len(b.geom.Vertices))
		return ModeFull
	}

	removed := 0
	for _, cell := range input {
		if b.cut(cell) {
			removed++
		}
	}
	for _, cell := range input {
		b.appendCell(cell)
	}
	b.reindex()

	b.log.Debug("mesh rebuilt", "mode", ModePartial, "cells", len(input), "replaced", removed,
		"vertices", len(b.geom.Vertices))
	return ModePartial
}

// Remove drops the geometry of cells. Cells without geometry are ignored.
// It returns how many cells were removed.
func (b *Builder) Remove(cells iter.Seq[*world.Cell]) int {
	removed := 0
	for _, cell := range unique(cells) {
		if b.cut(cell) {
			removed++
		}
	}
	if removed > 0 {
		b.reindex()
		b.log.Debug("mesh cells removed", "cells", removed, "vertices", len(b.geom.Vertices))
	}
	return removed
}

// Triangulate appends the geometry of a single cell at the tail, replacing
// any block the cell already had, and returns its new range.
func (b *Builder) Triangulate(cell *world.Cell) Range {
	if b.cut(cell) {
		b.appendCell(cell)
		b.reindex()
	} else {
		b.appendCell(cell)
	}
	return b.ranges[cell]
}

// Reset drops all geometry and every tracked cell.
func (b *Builder) Reset() {
	b.reset(0)
}

func (b *Builder) reset(capacityCells int) {
	n := capacityCells * VerticesPerCell
	b.geom = Geometry{
		Vertices:  make([]mgl32.Vec3, 0, n),
		Triangles: make([]uint32, 0, n),
		Colors:    make([]mgl32.Vec4, 0, n),
		UVs:       make([]mgl32.Vec2, 0, n),
	}
	b.ranges = make(map[*world.Cell]Range, capacityCells)
}

// appendCell writes the six-triangle fan of cell at the buffer tail.
// Indices continue from the current tail, so after a full sequence of
// appends they are already 0..n-1.
func (b *Builder) appendCell(cell *world.Cell) {
	start := len(b.geom.Vertices)
	center := cell.Position
	for i := 0; i < TrianglesPerCell; i++ {
		b.addTriangle(
			center, center.Add(b.metrics.Corner(i)), center.Add(b.metrics.Corner(i+1)),
			hex.CenterUV, b.metrics.CornerUV(i), b.metrics.CornerUV(i+1),
			cell.Color,
		)
	}
	b.ranges[cell] = Range{Start: start, Count: len(b.geom.Vertices) - start}
}

func (b *Builder) addTriangle(v1, v2, v3 mgl32.Vec3, uv1, uv2, uv3 mgl32.Vec2, color mgl32.Vec4) {
	base := uint32(len(b.geom.Vertices))
	b.geom.Vertices = append(b.geom.Vertices, v1, v2, v3)
	b.geom.Triangles = append(b.geom.Triangles, base, base+1, base+2)
	b.geom.Colors = append(b.geom.Colors, color, color, color)
	b.geom.UVs = append(b.geom.UVs, uv1, uv2, uv3)
}

// cut removes cell's block from every buffer and shifts the ranges that
// followed it. The index buffer is left stale; callers must reindex.
func (b *Builder) cut(cell *world.Cell) bool {
	r, ok := b.ranges[cell]
	if !ok {
		return false
	}
	delete(b.ranges, cell)

	b.geom.Vertices = slices.Delete(b.geom.Vertices, r.Start, r.End())
	b.geom.Colors = slices.Delete(b.geom.Colors, r.Start, r.End())
	b.geom.UVs = slices.Delete(b.geom.UVs, r.Start, r.End())
	b.geom.Triangles = b.geom.Triangles[:len(b.geom.Vertices)]

	for other, o := range b.ranges {
		if o.Start > r.Start {
			o.Start -= r.Count
			b.ranges[other] = o
		}
	}
	return true
}

// reindex rewrites the index buffer from scratch. Offsets are absolute, so
// patching them after compaction is not attempted.
func (b *Builder) reindex() {
	n := len(b.geom.Vertices)
	b.geom.Triangles = slices.Grow(b.geom.Triangles[:0], n)[:n]
	for i := range b.geom.Triangles {
		b.geom.Triangles[i] = uint32(i)
	}
}

// Geometry returns a copy of the current buffers.
func (b *Builder) Geometry() Geometry {
	return b.geom.Clone()
}

// Range returns the block owned by cell.
func (b *Builder) Range(cell *world.Cell) (Range, bool) {
	r, ok := b.ranges[cell]
	return r, ok
}

// Ranges yields every tracked cell with its block, in buffer order.
func (b *Builder) Ranges() iter.Seq2[*world.Cell, Range] {
	cells := slices.SortedFunc(maps.Keys(b.ranges), func(x, y *world.Cell) int {
		return cmp.Compare(b.ranges[x].Start, b.ranges[y].Start)
	})
	return func(yield func(*world.Cell, Range) bool) {
		for _, cell := range cells {
			if !yield(cell, b.ranges[cell]) {
				return
			}
		}
	}
}

// Tracked returns the number of cells with geometry.
func (b *Builder) Tracked() int { return len(b.ranges) }

// VertexCount returns the number of vertices in the buffers.
func (b *Builder) VertexCount() int { return len(b.geom.Vertices) }

// unique collects cells in order, keeping the first occurrence of each.
func unique(cells iter.Seq[*world.Cell]) []*world.Cell {
	seen := mapset.New[*world.Cell]()
	var out []*world.Cell
	for cell := range cells {
		if cell == nil || seen.Has(cell) {
			continue
		}
		seen.Put(cell)
		out = append(out, cell)
	}
	return out
}
