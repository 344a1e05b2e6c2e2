// Package world provides the hex grid, its cells, and the terrain layer that
// colours them. Cells are keyed by cube coordinates from package hex.
package world

import (
	"fmt"
	"strings"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/talgya/hexworld/internal/hex"
)

// Cell is one hexagon of the grid. Terrain and other per-cell state live in
// separate layers keyed by the same coordinate; the mesh only reads Color.
type Cell struct {
	Coord    hex.Coordinate `json:"coord"`
	Position mgl32.Vec3     `json:"position"` // Local center, relative to the grid origin
	Color    mgl32.Vec4     `json:"color"`    // RGBA, 0.0–1.0
}

func (c *Cell) String() string {
	return fmt.Sprintf("Cell %s", c.Coord)
}

// White is the colour of a freshly built cell.
var White = mgl32.Vec4{1, 1, 1, 1}

// Terrain is a bit set of terrain types. A cell normally carries one.
type Terrain uint16

const (
	TerrainNone      Terrain = 0
	TerrainPlains    Terrain = 1 << 0
	TerrainWater     Terrain = 1 << 1
	TerrainMountain  Terrain = 1 << 2
	TerrainForest    Terrain = 1 << 3
	TerrainDesert    Terrain = 1 << 4
	TerrainGrassland Terrain = 1 << 6
	TerrainVolcano   Terrain = 1 << 9
)

// AllTerrains lists every named terrain type.
var AllTerrains = []Terrain{
	TerrainPlains,
	TerrainWater,
	TerrainMountain,
	TerrainForest,
	TerrainDesert,
	TerrainGrassland,
	TerrainVolcano,
}

var terrainNames = map[Terrain]string{
	TerrainNone:      "none",
	TerrainPlains:    "plains",
	TerrainWater:     "water",
	TerrainMountain:  "mountain",
	TerrainForest:    "forest",
	TerrainDesert:    "desert",
	TerrainGrassland: "grassland",
	TerrainVolcano:   "volcano",
}

func (t Terrain) String() string {
	if name, ok := terrainNames[t]; ok {
		return name
	}
	var parts []string
	for _, single := range AllTerrains {
		if t&single != 0 {
			parts = append(parts, terrainNames[single])
		}
	}
	if len(parts) == 0 {
		return fmt.Sprintf("Terrain(%d)", uint16(t))
	}
	return strings.Join(parts, "|")
}

// ParseTerrain maps a case-insensitive name ("forest") to its Terrain.
func ParseTerrain(name string) (Terrain, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for t, n := range terrainNames {
		if n == name {
			return t, nil
		}
	}
	return TerrainNone, fmt.Errorf("terrain %q: %w", name, ErrUnknownTerrain)
}
