package world

import "github.com/go-gl/mathgl/mgl32"

// TerrainInfo describes how a terrain type is presented.
type TerrainInfo struct {
	Name        string     `json:"name"`
	Color       mgl32.Vec4 `json:"color"`
	Description string     `json:"description,omitempty"`
}

// Palette maps terrain types to their presentation.
type Palette map[Terrain]TerrainInfo

// DefaultPalette returns the built-in terrain colours.
func DefaultPalette() Palette {
	return Palette{
		TerrainPlains:    {Name: "Plains", Color: mgl32.Vec4{0.74, 0.80, 0.42, 1}, Description: "Open farmland"},
		TerrainWater:     {Name: "Water", Color: mgl32.Vec4{0.20, 0.45, 0.80, 1}, Description: "Lakes and sea"},
		TerrainMountain:  {Name: "Mountain", Color: mgl32.Vec4{0.50, 0.48, 0.45, 1}, Description: "Impassable high ground"},
		TerrainForest:    {Name: "Forest", Color: mgl32.Vec4{0.13, 0.45, 0.20, 1}, Description: "Dense woodland"},
		TerrainDesert:    {Name: "Desert", Color: mgl32.Vec4{0.90, 0.80, 0.50, 1}, Description: "Dry sand and rock"},
		TerrainGrassland: {Name: "Grassland", Color: mgl32.Vec4{0.45, 0.75, 0.30, 1}, Description: "Pasture"},
		TerrainVolcano:   {Name: "Volcano", Color: mgl32.Vec4{0.60, 0.15, 0.10, 1}, Description: "Active caldera"},
	}
}

// Color returns the colour for t, or white if t has no entry.
func (p Palette) Color(t Terrain) mgl32.Vec4 {
	if info, ok := p[t]; ok {
		return info.Color
	}
	return White
}

// Name returns the display name for t, falling back to t.String().
func (p Palette) Name(t Terrain) string {
	if info, ok := p[t]; ok && info.Name != "" {
		return info.Name
	}
	return t.String()
}

// Description returns the description for t, or "".
func (p Palette) Description(t Terrain) string {
	return p[t].Description
}
