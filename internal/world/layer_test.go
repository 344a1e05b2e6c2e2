package world

import (
	"errors"
	"testing"

	"github.com/talgya/hexworld/internal/hex"
)

func TestTerrainLayerOps(t *testing.T) {
	l := NewTerrainLayer()
	c := hex.Coordinate{X: 1, Y: 2}

	if l.Get(c) != TerrainNone {
		t.Fatalf("empty layer should report none")
	}

	l.Add(c, TerrainNone)
	if l.Len() != 0 {
		t.Fatalf("adding none must not create an entry")
	}

	l.Add(c, TerrainForest)
	if !l.Has(c, TerrainForest) {
		t.Fatalf("expected forest at %v", c)
	}

	l.Remove(c, TerrainWater)
	if !l.Has(c, TerrainForest) {
		t.Fatalf("removing a different terrain must not clear the entry")
	}

	l.Remove(c, TerrainForest)
	if l.Len() != 0 || l.Get(c) != TerrainNone {
		t.Fatalf("expected entry cleared, got %v", l.Get(c))
	}

	l.Set(c, TerrainDesert)
	l.Set(c, TerrainNone)
	if l.Len() != 0 {
		t.Fatalf("Set(none) should clear the entry")
	}
}

func TestTerrainLayerAllSorted(t *testing.T) {
	l := NewTerrainLayer()
	l.Set(hex.Coordinate{X: 3, Y: 1}, TerrainWater)
	l.Set(hex.Coordinate{X: 0, Y: 0}, TerrainPlains)
	l.Set(hex.Coordinate{X: -1, Y: 1}, TerrainForest)

	var got []hex.Coordinate
	for c := range l.All() {
		got = append(got, c)
	}
	want := []hex.Coordinate{{X: 0, Y: 0}, {X: -1, Y: 1}, {X: 3, Y: 1}}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestPaintReturnsChangedCells(t *testing.T) {
	g := newTestGrid(t, 3, 3)
	palette := DefaultPalette()
	layer := NewTerrainLayer()

	// Nothing assigned: every cell is already white.
	if changed := Paint(g, layer, palette); len(changed) != 0 {
		t.Fatalf("expected no changes, got %d", len(changed))
	}

	target, _ := g.CellAtOffset(1, 1)
	layer.Set(target.Coord, TerrainWater)
	changed := Paint(g, layer, palette)
	if len(changed) != 1 || changed[0] != target {
		t.Fatalf("expected only %v to change, got %v", target, changed)
	}
	if target.Color != palette.Color(TerrainWater) {
		t.Fatalf("cell colour = %v, want water", target.Color)
	}

	// Painting an explicit coordinate list ignores unknown coordinates.
	layer.Set(target.Coord, TerrainMountain)
	changed = Paint(g, layer, palette, target.Coord, hex.Coordinate{X: 99, Y: 99})
	if len(changed) != 1 {
		t.Fatalf("expected one change, got %d", len(changed))
	}
}

func TestPaletteFallbacks(t *testing.T) {
	p := DefaultPalette()
	if p.Color(TerrainNone) != White {
		t.Fatalf("unlisted terrain should be white")
	}
	if p.Name(TerrainForest) != "Forest" {
		t.Fatalf("Name(forest) = %q", p.Name(TerrainForest))
	}
	if got := p.Name(TerrainPlains | TerrainWater); got != "plains|water" {
		t.Fatalf("combined name = %q", got)
	}
	if p.Description(TerrainNone) != "" {
		t.Fatalf("expected empty description")
	}
}

func TestParseTerrain(t *testing.T) {
	for _, want := range AllTerrains {
		got, err := ParseTerrain(" " + want.String() + " ")
		if err != nil || got != want {
			t.Fatalf("ParseTerrain(%q) = %v, %v", want.String(), got, err)
		}
	}
	if got, _ := ParseTerrain("Forest"); got != TerrainForest {
		t.Fatalf("parse should be case-insensitive")
	}
	if _, err := ParseTerrain("lava"); !errors.Is(err, ErrUnknownTerrain) {
		t.Fatalf("expected ErrUnknownTerrain, got %v", err)
	}
	if s := Terrain(1 << 12).String(); s != "Terrain(4096)" {
		t.Fatalf("unknown flag string = %q", s)
	}
}

func TestChangesDedup(t *testing.T) {
	g := newTestGrid(t, 2, 2)
	cells := g.Cells()

	ch := NewChanges()
	ch.Mark(cells[1], cells[0], cells[1], nil)
	ch.Mark(cells[0])
	if ch.Len() != 2 {
		t.Fatalf("expected 2 pending cells, got %d", ch.Len())
	}

	out := ch.Drain()
	if out[0] != cells[1] || out[1] != cells[0] {
		t.Fatalf("drain order wrong: %v", out)
	}
	if ch.Len() != 0 {
		t.Fatalf("drain should reset")
	}

	ch.Mark(cells[1])
	if ch.Len() != 1 {
		t.Fatalf("cells should be markable again after drain")
	}
}
