// Nesting ground placement: open land where initial herds spawn.
package world

import (
	"math/rand"
	"sort"
)

// NestingGround is a spawn site for one initial herd.
type NestingGround struct {
	Coord ColumnCoord `json:"coord"`
	Score float64     `json:"score"` // Desirability
}

// PlaceNestingGrounds picks up to count sites on walkable land, best first,
// at least minDist columns apart.
func PlaceNestingGrounds(m *Map, seed int64, count, minDist int) []NestingGround {
	rng := rand.New(rand.NewSource(seed + 200))

	var candidates []NestingGround
	for coord, c := range m.Columns {
		if !c.Walkable() {
			continue
		}
		if s := nestingScore(m, c); s > 0 {
			// Small jitter so equal land doesn't sort by map order.
			candidates = append(candidates, NestingGround{Coord: coord, Score: s + rng.Float64()*0.01})
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		if candidates[i].Coord.X != candidates[j].Coord.X {
			return candidates[i].Coord.X < candidates[j].Coord.X
		}
		return candidates[i].Coord.Z < candidates[j].Coord.Z
	})

	var sites []NestingGround
	for _, c := range candidates {
		if len(sites) >= count {
			break
		}
		if tooClose(c.Coord, sites, minDist) {
			continue
		}
		sites = append(sites, c)
	}
	return sites
}

// nestingScore prefers flat, open grazing land away from water.
func nestingScore(m *Map, c *Column) float64 {
	score := 0.0
	switch c.Biome {
	case BiomePlains:
		score += 3.0
	case BiomeForest:
		score += 2.0
	case BiomeHills:
		score += 1.0
	default:
		return 0
	}

	// Penalise slopes and shorelines.
	for _, n := range c.Coord.Neighbors() {
		nc := m.Get(n.X, n.Z)
		if nc == nil || !nc.Walkable() {
			score -= 0.5
			continue
		}
		score -= 0.2 * float64(abs(nc.Height-c.Height))
	}
	return score
}

func tooClose(coord ColumnCoord, existing []NestingGround, minDist int) bool {
	for _, s := range existing {
		if ChebyshevDistance(coord, s.Coord) < minDist {
			return true
		}
	}
	return false
}
