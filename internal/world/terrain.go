// Package world provides the voxel terrain agents walk on.
// Each dimension is a square grid of block columns with a surface height
// and a biome; agents stand on the first air block above a column.
package world

// ColumnCoord addresses a block column on the horizontal plane.
type ColumnCoord struct {
	X int `json:"x"`
	Z int `json:"z"`
}

// Biome types for columns.
type Biome uint8

const (
	BiomeWater    Biome = iota // Below sea level, not walkable
	BiomePlains                // Open grazing land
	BiomeForest                // Wooded, slower to cross
	BiomeHills                 // Raised ground
	BiomeMountain              // Steep peaks
)

// Column is one vertical stack of blocks.
type Column struct {
	Coord  ColumnCoord `json:"coord"`
	Height int         `json:"height"` // Y of the top solid block
	Biome  Biome       `json:"biome"`

	// Raw noise samples (set during generation).
	Elevation float64 `json:"elevation"` // 0.0 (sea floor) to 1.0 (peak)
	Moisture  float64 `json:"moisture"`  // 0.0 (arid) to 1.0 (lush)
}

// Walkable reports whether agents may stand on the column.
func (c *Column) Walkable() bool {
	return c.Biome != BiomeWater
}

// ColumnNeighborOffsets are the four edge-adjacent column offsets.
var ColumnNeighborOffsets = [4]ColumnCoord{
	{X: 1, Z: 0},
	{X: -1, Z: 0},
	{X: 0, Z: 1},
	{X: 0, Z: -1},
}

// Neighbors returns the four edge-adjacent columns.
func (c ColumnCoord) Neighbors() [4]ColumnCoord {
	var result [4]ColumnCoord
	for i, d := range ColumnNeighborOffsets {
		result[i] = ColumnCoord{X: c.X + d.X, Z: c.Z + d.Z}
	}
	return result
}

// ChebyshevDistance returns the king-move distance between two columns.
func ChebyshevDistance(a, b ColumnCoord) int {
	dx := abs(a.X - b.X)
	dz := abs(a.Z - b.Z)
	if dx > dz {
		return dx
	}
	return dz
}

// BiomeName returns a human-readable name for a biome.
func BiomeName(b Biome) string {
	switch b {
	case BiomeWater:
		return "Water"
	case BiomePlains:
		return "Plains"
	case BiomeForest:
		return "Forest"
	case BiomeHills:
		return "Hills"
	case BiomeMountain:
		return "Mountain"
	default:
		return "Unknown"
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
