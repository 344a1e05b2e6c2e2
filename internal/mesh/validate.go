package mesh

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
)

// ErrInconsistent is wrapped by every error Validate returns.
var ErrInconsistent = errors.New("mesh inconsistent")

// Validate checks the buffers against the layout every renderer relies on:
// parallel buffers of equal length, indices inside the vertex buffer, and
// one non-overlapping 18-vertex block per tracked cell covering the whole
// vertex buffer.
func (b *Builder) Validate() error {
	g := b.geom
	n := len(g.Vertices)

	if len(g.Colors) != n || len(g.UVs) != n || len(g.Triangles) != n {
		return fmt.Errorf("buffer lengths vertices=%d colors=%d uvs=%d triangles=%d: %w",
			n, len(g.Colors), len(g.UVs), len(g.Triangles), ErrInconsistent)
	}
	if n%VerticesPerCell != 0 {
		return fmt.Errorf("vertex count %d not a multiple of %d: %w", n, VerticesPerCell, ErrInconsistent)
	}
	for i, idx := range g.Triangles {
		if int(idx) >= n {
			return fmt.Errorf("index %d at %d out of range: %w", idx, i, ErrInconsistent)
		}
	}

	ranges := make([]Range, 0, len(b.ranges))
	for _, r := range b.ranges {
		ranges = append(ranges, r)
	}
	slices.SortFunc(ranges, func(x, y Range) int { return cmp.Compare(x.Start, y.Start) })

	next := 0
	for _, r := range ranges {
		if r.Count != VerticesPerCell {
			return fmt.Errorf("range %+v has %d vertices: %w", r, r.Count, ErrInconsistent)
		}
		if r.Start != next {
			return fmt.Errorf("range %+v starts at %d, expected %d: %w", r, r.Start, next, ErrInconsistent)
		}
		next = r.End()
	}
	if next != n {
		return fmt.Errorf("ranges cover %d of %d vertices: %w", next, n, ErrInconsistent)
	}
	return nil
}
