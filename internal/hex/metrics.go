// Package hex provides the hexagon geometry and cube-coordinate math used by
// the grid and the mesh builder. Hexagons are pointy-top and lie in the XY plane.
package hex

import "github.com/go-gl/mathgl/mgl32"

// innerRatio is cos(30°), the ratio of inner to outer radius.
const innerRatio = 0.866025404

// Metrics holds the fixed geometry of one hexagon.
type Metrics struct {
	OuterRadius float32 // Center to corner
	InnerRadius float32 // Center to edge midpoint

	// Corners runs clockwise from north. The 7th entry repeats the first so
	// edge i is always Corners[i] → Corners[i+1].
	Corners [7]mgl32.Vec3
}

// DefaultMetrics is a unit hexagon (outer radius 1).
var DefaultMetrics = NewMetrics(1)

// NewMetrics derives the inner radius and corner offsets for the given outer radius.
func NewMetrics(outer float32) Metrics {
	inner := outer * innerRatio
	m := Metrics{OuterRadius: outer, InnerRadius: inner}
	m.Corners = [7]mgl32.Vec3{
		{0, outer, 0},             // N
		{inner, 0.5 * outer, 0},   // NE
		{inner, -0.5 * outer, 0},  // SE
		{0, -outer, 0},            // S
		{-inner, -0.5 * outer, 0}, // SW
		{-inner, 0.5 * outer, 0},  // NW
		{0, outer, 0},             // N again, closes the polygon
	}
	return m
}

// Corner returns corner offset i, 0 ≤ i ≤ 6.
func (m Metrics) Corner(i int) mgl32.Vec3 {
	return m.Corners[i]
}

// CenterUV is the texture coordinate of every hexagon center.
var CenterUV = mgl32.Vec2{0.5, 0.5}

// CornerUV maps corner i into the hexagon's local [0,1] UV square.
func (m Metrics) CornerUV(i int) mgl32.Vec2 {
	c := m.Corners[i]
	return mgl32.Vec2{
		0.5 + c.X()/(2*m.OuterRadius),
		0.5 + c.Y()/(2*m.OuterRadius),
	}
}

// OffsetToPosition returns the local center of the cell at offset (col, row).
// Odd rows shift right by half a cell; row/2 truncates like FromOffset does.
func (m Metrics) OffsetToPosition(col, row int, spacing float32) mgl32.Vec3 {
	x := (float32(col) + float32(row)*0.5 - float32(row/2)) * (m.InnerRadius * 2 * spacing)
	y := float32(row) * (m.OuterRadius * 1.5 * spacing)
	return mgl32.Vec3{x, y, 0}
}
