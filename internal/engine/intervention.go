// Admin interventions: spawning, despawning, forced rebalance.
package engine

import (
	"fmt"
	"log/slog"

	"github.com/talgya/herd-world/internal/agents"
	"github.com/talgya/herd-world/internal/herd"
	"github.com/talgya/herd-world/internal/world"
)

// Spawn places count agents of a species around column (x, z) of a
// dimension and returns their IDs.
func (s *Simulation) Spawn(species, dimension string, x, z, count int) ([]agents.AgentID, error) {
	if count <= 0 {
		return nil, fmt.Errorf("spawn %d %s: %w", count, species, ErrInvalidCount)
	}
	sp, ok := agents.LookupSpecies(species)
	if !ok {
		return nil, fmt.Errorf("spawn %q: %w", species, ErrUnknownSpecies)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.worlds[dimension]
	if !ok {
		return nil, fmt.Errorf("spawn in %q: %w", dimension, ErrUnknownDimension)
	}

	group := s.spawner.SpawnGroup(sp, m, world.ColumnCoord{X: x, Z: z}, count, s.lastTick)
	ids := make([]agents.AgentID, 0, len(group))
	for _, a := range group {
		if err := s.admit(a); err != nil {
			return ids, err
		}
		ids = append(ids, a.ID)
	}

	s.emit(Event{
		Tick:        s.lastTick,
		Description: fmt.Sprintf("%d %s spawned in %s near (%d, %d)", len(ids), sp.Name, dimension, x, z),
		Category:    "spawn",
		Meta: map[string]any{
			"species":   sp.Name,
			"dimension": dimension,
			"count":     len(ids),
		},
	})
	slog.Info("spawn", "species", sp.Name, "dimension", dimension, "requested", count, "placed", len(ids))
	s.updateStats()
	return ids, nil
}

// Despawn removes an agent from the world and from its herd.
func (s *Simulation) Despawn(id agents.AgentID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.agentIndex[id]
	if !ok {
		return fmt.Errorf("despawn %d: %w", id, ErrUnknownAgent)
	}
	s.remove(a)
	s.emit(Event{
		Tick:        s.lastTick,
		Description: fmt.Sprintf("%s #%d removed from %s", a.Species, a.ID, a.Dimension),
		Category:    "despawn",
		Meta:        map[string]any{"agent_id": a.ID},
	})
	s.updateStats()
	return nil
}

// RebalanceNow recomputes every herd immediately, ignoring the scheduler.
func (s *Simulation) RebalanceNow() []herd.RebalanceStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := s.herds.RebalanceAll()
	s.emit(Event{
		Tick:        s.lastTick,
		Description: fmt.Sprintf("Manual rebalance of %d herds", len(stats)),
		Category:    "admin",
	})
	s.updateStats()
	return stats
}
