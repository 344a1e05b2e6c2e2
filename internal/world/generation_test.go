package world

import "testing"

func TestGenerateDeterministic(t *testing.T) {
	g := newTestGrid(t, 24, 18)
	cfg := SmallTestConfig()

	a := Generate(g, cfg)
	b := Generate(g, cfg)

	if a.Len() != g.Len() {
		t.Fatalf("expected every cell assigned, got %d of %d", a.Len(), g.Len())
	}
	for cell := range g.AllCells() {
		if a.Get(cell.Coord) != b.Get(cell.Coord) {
			t.Fatalf("terrain differs at %v between identical runs", cell.Coord)
		}
	}
}

func TestGenerateNoLoneWater(t *testing.T) {
	g := newTestGrid(t, 30, 20)
	layer := Generate(g, SmallTestConfig())

	for cell := range g.AllCells() {
		if layer.Get(cell.Coord) != TerrainWater {
			continue
		}
		wet := false
		for n := range g.Neighbors(cell) {
			if layer.Get(n.Coord) == TerrainWater {
				wet = true
				break
			}
		}
		if !wet {
			t.Fatalf("lone water cell at %v", cell.Coord)
		}
	}
}

func TestDeriveTerrain(t *testing.T) {
	cfg := DefaultGenConfig()
	tests := []struct {
		elev, rain, temp float64
		want             Terrain
	}{
		{0.1, 0.5, 0.5, TerrainWater},
		{0.95, 0.5, 0.8, TerrainVolcano},
		{0.95, 0.5, 0.2, TerrainMountain},
		{0.5, 0.1, 0.8, TerrainDesert},
		{0.5, 0.7, 0.5, TerrainForest},
		{0.5, 0.45, 0.5, TerrainGrassland},
		{0.5, 0.35, 0.3, TerrainPlains},
	}
	for _, tt := range tests {
		if got := deriveTerrain(tt.elev, tt.rain, tt.temp, cfg); got != tt.want {
			t.Errorf("deriveTerrain(%v,%v,%v) = %v, want %v", tt.elev, tt.rain, tt.temp, got, tt.want)
		}
	}
}
