// Population dynamics: old age and herd breeding.
package engine

import (
	"fmt"
	"log/slog"

	"github.com/talgya/herd-world/internal/agents"
	"github.com/talgya/herd-world/internal/world"
)

// processLifecycle runs once per sim-minute. Caller holds the write lock.
func (s *Simulation) processLifecycle(tick uint64) {
	s.processOldAge(tick)
	s.processBreeding(tick)
}

// processOldAge removes agents that have outlived their species' lifespan.
func (s *Simulation) processOldAge(tick uint64) {
	var expired []*agents.Agent
	for _, a := range s.agents {
		if a.Alive && a.Age(tick) >= a.Kind().Lifespan {
			expired = append(expired, a)
		}
	}

	for _, a := range expired {
		s.remove(a)
		s.stats.Deaths++
		s.emit(Event{
			Tick:        tick,
			Description: fmt.Sprintf("%s #%d died of old age", a.Species, a.ID),
			Category:    "death",
			Meta: map[string]any{
				"agent_id":  a.ID,
				"species":   a.Species,
				"dimension": a.Dimension,
			},
		})
	}
	if len(expired) > 0 {
		slog.Info("old age deaths", "tick", tick, "count", len(expired))
	}
}

// processBreeding gives each herd with a cluster a chance to raise a
// juvenile at the centroid of its largest cluster. Herds that are all noise
// don't breed.
func (s *Simulation) processBreeding(tick uint64) {
	for _, h := range s.herds.Herds() {
		if h.NumClusters() == 0 || h.Len() >= s.cfg.MaxHerdSize {
			continue
		}
		if s.rng.Float64() >= s.cfg.BreedChance {
			continue
		}

		key := h.Key()
		sp, ok := agents.LookupSpecies(key.Species)
		if !ok {
			continue
		}
		m, ok := s.worlds[key.Dimension]
		if !ok {
			continue
		}
		center, err := h.Largest().Centroid()
		if err != nil {
			continue
		}

		born := s.spawner.SpawnGroup(sp, m, world.ColumnCoord{X: center[0], Z: center[2]}, 1, tick)
		for _, a := range born {
			if err := s.admit(a); err != nil {
				slog.Warn("breeding admit failed", "agent", a.ID, "error", err)
				continue
			}
			s.stats.Births++
			s.emit(Event{
				Tick:        tick,
				Description: fmt.Sprintf("A %s hatched in the %s herd", sp.Name, key.Dimension),
				Category:    "birth",
				Meta: map[string]any{
					"agent_id":  a.ID,
					"species":   sp.Name,
					"dimension": key.Dimension,
				},
			})
		}
	}
}

// SeedPopulation spawns one group of each herding species per nesting
// ground, cycling through species. Used for a fresh world.
func SeedPopulation(spawner *agents.Spawner, m *world.Map, sites []world.NestingGround, tick uint64) []*agents.Agent {
	species := agents.HerdingSpecies()
	var out []*agents.Agent
	for i, site := range sites {
		sp := species[i%len(species)]
		out = append(out, spawner.SpawnGroup(sp, m, site.Coord, sp.HerdSize, tick)...)
	}
	return out
}
