// Agent spawning: scatters groups of one species around a site on
// walkable ground.
package agents

import (
	"math/rand"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/talgya/herd-world/internal/world"
)

// Spawner creates agents for the simulation.
type Spawner struct {
	rng    *rand.Rand
	nextID AgentID
}

// NewSpawner creates an agent spawner with the given seed.
func NewSpawner(seed int64) *Spawner {
	return &Spawner{
		rng:    rand.New(rand.NewSource(seed + 300)),
		nextID: 1,
	}
}

// SetNextID sets the next agent ID to be issued (used when restoring from DB).
func (s *Spawner) SetNextID(id AgentID) {
	s.nextID = id
}

// NextID returns the ID the next spawned agent will get.
func (s *Spawner) NextID() AgentID {
	return s.nextID
}

// SpawnGroup places count agents of one species on walkable columns around
// center. Agents that find no footing are skipped, so fewer than count may
// be returned.
func (s *Spawner) SpawnGroup(sp *Species, m *world.Map, center world.ColumnCoord, count int, tick uint64) []*Agent {
	group := make([]*Agent, 0, count)

	// Wide animals need more room.
	spread := 2 + int(sp.Width*2)

	for i := 0; i < count; i++ {
		pos, ok := s.footing(m, center, spread)
		if !ok {
			continue
		}
		id := s.nextID
		s.nextID++
		group = append(group, NewAgent(id, sp, m.Dimension, pos, tick))
	}

	return group
}

// footing picks a random walkable column within spread of center and
// returns a standing position on it.
func (s *Spawner) footing(m *world.Map, center world.ColumnCoord, spread int) (mgl64.Vec3, bool) {
	for attempt := 0; attempt < 12; attempt++ {
		x := center.X + s.rng.Intn(2*spread+1) - spread
		z := center.Z + s.rng.Intn(2*spread+1) - spread
		if !m.Walkable(x, z) {
			continue
		}
		v := mgl64.Vec3{float64(x) + s.rng.Float64(), 0, float64(z) + s.rng.Float64()}
		return m.Ground(v), true
	}
	if m.Walkable(center.X, center.Z) {
		return m.Ground(mgl64.Vec3{float64(center.X) + 0.5, 0, float64(center.Z) + 0.5}), true
	}
	return mgl64.Vec3{}, false
}
