// World generation using layered simplex noise.
// Generates elevation and moisture per column, then derives height and biome.
package world

import (
	"math"
	"math/rand"

	opensimplex "github.com/ojrac/opensimplex-go"
)

// GenConfig holds world generation parameters.
type GenConfig struct {
	Dimension   string  // Dimension name, part of every herd key
	Radius      int     // Columns span [-Radius, Radius] on both axes
	Seed        int64   // Random seed (0 = random)
	SeaLevel    int     // Y of the water surface
	MaxHeight   int     // Y of the highest possible peak
	WaterLvl    float64 // Elevation threshold for water (0.0–1.0)
	HillLvl     float64 // Elevation threshold for hills
	MountainLvl float64 // Elevation threshold for mountains
}

// DefaultGenConfig returns a reasonable starting configuration.
func DefaultGenConfig() GenConfig {
	return GenConfig{
		Dimension:   "overworld",
		Radius:      160,
		Seed:        0,
		SeaLevel:    62,
		MaxHeight:   120,
		WaterLvl:    0.22,
		HillLvl:     0.62,
		MountainLvl: 0.8,
	}
}

// SmallTestConfig returns a tiny world for rapid iteration.
func SmallTestConfig() GenConfig {
	return GenConfig{
		Dimension:   "overworld",
		Radius:      24,
		Seed:        42,
		SeaLevel:    62,
		MaxHeight:   96,
		WaterLvl:    0.1,
		HillLvl:     0.7,
		MountainLvl: 0.85,
	}
}

// Generate creates a complete dimension map.
func Generate(cfg GenConfig) *Map {
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Int63()
	}

	elevNoise := opensimplex.NewNormalized(seed)
	moistNoise := opensimplex.NewNormalized(seed + 1)

	m := NewMap(cfg.Dimension, cfg.Radius, cfg.SeaLevel)

	for x := -cfg.Radius; x <= cfg.Radius; x++ {
		for z := -cfg.Radius; z <= cfg.Radius; z++ {
			fx, fz := float64(x), float64(z)

			elev := octaveNoise(elevNoise, fx, fz, 4, 0.01, 0.5)
			moist := octaveNoise(moistNoise, fx, fz, 3, 0.008, 0.5)

			// Continental shaping: sink the rim so every dimension is an island.
			rim := math.Max(math.Abs(fx), math.Abs(fz)) / float64(cfg.Radius)
			falloff := 1.0 - math.Pow(rim, 4)
			if falloff < 0 {
				falloff = 0
			}
			elev *= falloff

			biome := deriveBiome(elev, moist, cfg)
			m.Set(&Column{
				Coord:     ColumnCoord{X: x, Z: z},
				Height:    columnHeight(elev, biome, cfg),
				Biome:     biome,
				Elevation: elev,
				Moisture:  moist,
			})
		}
	}

	return m
}

// deriveBiome determines the biome from environmental parameters.
func deriveBiome(elev, moist float64, cfg GenConfig) Biome {
	switch {
	case elev < cfg.WaterLvl:
		return BiomeWater
	case elev > cfg.MountainLvl:
		return BiomeMountain
	case elev > cfg.HillLvl:
		return BiomeHills
	case moist > 0.55:
		return BiomeForest
	default:
		return BiomePlains
	}
}

// columnHeight maps elevation onto a Y level. Land starts one block above
// the water surface.
func columnHeight(elev float64, biome Biome, cfg GenConfig) int {
	if biome == BiomeWater {
		depth := (cfg.WaterLvl - elev) / cfg.WaterLvl
		return cfg.SeaLevel - 1 - int(depth*8)
	}
	span := float64(cfg.MaxHeight - cfg.SeaLevel - 1)
	land := (elev - cfg.WaterLvl) / (1 - cfg.WaterLvl)
	return cfg.SeaLevel + 1 + int(land*span)
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

// BiomeCounts returns a summary of biome distribution.
func BiomeCounts(m *Map) map[Biome]int {
	counts := make(map[Biome]int)
	for _, c := range m.Columns {
		counts[c.Biome]++
	}
	return counts
}
