// Terrain generation using layered simplex noise.
// Samples elevation, rainfall, and temperature at each cell center, then derives terrain.
package world

import (
	"math"
	"math/rand"

	opensimplex "github.com/ojrac/opensimplex-go"
)

// GenConfig holds terrain generation parameters.
type GenConfig struct {
	Seed          int64   // Random seed (0 = random)
	SeaLevel      float64 // Elevation threshold for water (0.0–1.0)
	MountainLevel float64 // Elevation threshold for mountains (0.0–1.0)
	VolcanoLevel  float64 // Elevation above which hot mountains become volcanoes
}

// DefaultGenConfig returns a reasonable starting configuration.
func DefaultGenConfig() GenConfig {
	return GenConfig{
		Seed:          0,
		SeaLevel:      0.25,
		MountainLevel: 0.72,
		VolcanoLevel:  0.88,
	}
}

// SmallTestConfig returns a fixed-seed configuration for tests.
func SmallTestConfig() GenConfig {
	return GenConfig{
		Seed:          42,
		SeaLevel:      0.30,
		MountainLevel: 0.75,
		VolcanoLevel:  0.90,
	}
}

// Generate assigns a terrain to every cell of g. The result depends only on
// the seed and the grid layout.
func Generate(g *Grid, cfg GenConfig) *TerrainLayer {
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Int63()
	}

	// Three noise generators for independent layers.
	elevNoise := opensimplex.NewNormalized(seed)
	rainNoise := opensimplex.NewNormalized(seed + 1)
	tempNoise := opensimplex.NewNormalized(seed + 2)

	layer := NewTerrainLayer()

	// Sample in cell units so the noise frequency does not depend on radius or spacing.
	unit := float64(g.Metrics.InnerRadius*2) * float64(g.Spacing)
	cx := float64(g.Width) / 2
	cy := float64(g.Height) / 2 * math.Sqrt(3.0) / 2.0
	halfSpan := math.Max(math.Hypot(cx, cy), 1)

	for cell := range g.AllCells() {
		x := float64(cell.Position.X()) / unit
		y := float64(cell.Position.Y()) / unit

		// Multi-octave noise for natural-looking terrain.
		elev := octaveNoise(elevNoise, x, y, 4, 0.08, 0.5)
		rain := octaveNoise(rainNoise, x, y, 3, 0.06, 0.5)
		temp := octaveNoise(tempNoise, x, y, 3, 0.05, 0.5)

		// Continental shaping: lower the land toward the grid border.
		distFromCenter := math.Hypot(x-cx, y-cy) / halfSpan
		edgeFalloff := 1.0 - math.Pow(distFromCenter, 3.5)
		if edgeFalloff < 0 {
			edgeFalloff = 0
		}
		elev *= edgeFalloff

		// Temperature drops with elevation.
		temp = temp*0.8 + (1.0-elev)*0.2

		layer.Set(cell.Coord, deriveTerrain(elev, rain, temp, cfg))
	}

	// Post-pass: drain single-cell lakes.
	drainPuddles(g, layer)

	return layer
}

// deriveTerrain determines terrain type from environmental parameters.
func deriveTerrain(elev, rain, temp float64, cfg GenConfig) Terrain {
	if elev < cfg.SeaLevel {
		return TerrainWater
	}
	if elev > cfg.VolcanoLevel && temp > 0.5 {
		return TerrainVolcano
	}
	if elev > cfg.MountainLevel {
		return TerrainMountain
	}
	if rain < 0.3 && temp > 0.5 {
		return TerrainDesert
	}
	if rain > 0.55 {
		return TerrainForest
	}
	if rain > 0.4 {
		return TerrainGrassland
	}
	return TerrainPlains
}

// drainPuddles turns water cells with no water neighbour into plains.
func drainPuddles(g *Grid, layer *TerrainLayer) {
	var toDrain []*Cell

	for cell := range g.AllCells() {
		if layer.Get(cell.Coord) != TerrainWater {
			continue
		}
		lone := true
		for n := range g.Neighbors(cell) {
			if layer.Get(n.Coord) == TerrainWater {
				lone = false
				break
			}
		}
		if lone {
			toDrain = append(toDrain, cell)
		}
	}

	for _, cell := range toDrain {
		layer.Set(cell.Coord, TerrainPlains)
	}
}

// octaveNoise generates fractal noise by layering multiple frequencies.
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}

	return total / maxVal
}
