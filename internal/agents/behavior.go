// Per-tick movement: walk toward the current target, or graze in place.
package agents

import (
	"fmt"
	"math/rand"

	"github.com/df-mc/dragonfly/server/block/cube"
	"github.com/go-gl/mathgl/mgl64"

	"github.com/talgya/herd-world/internal/world"
)

// Action represents what an agent did this tick.
type Action struct {
	AgentID AgentID
	Kind    ActionKind
	Detail  string // Human-readable description for event log
}

// ActionKind enumerates the possible movement outcomes.
type ActionKind uint8

const (
	ActionIdle    ActionKind = iota
	ActionWalk               // Moved toward target
	ActionArrive             // Reached target this tick
	ActionBlocked            // Next step was not walkable; target dropped
	ActionGraze              // Picked a short graze target
)

// GrazeChance is the per-tick probability that an idle agent picks a
// nearby patch to graze on.
const GrazeChance = 0.02

// Step advances one agent by one tick.
func Step(a *Agent, m *world.Map, rng *rand.Rand) Action {
	if !a.Alive || a.kind == nil {
		return Action{AgentID: a.ID, Kind: ActionIdle}
	}

	if a.Target == nil {
		if rng.Float64() >= GrazeChance {
			return Action{AgentID: a.ID, Kind: ActionIdle}
		}
		t, ok := grazeTarget(a, m, rng)
		if !ok {
			return Action{AgentID: a.ID, Kind: ActionIdle}
		}
		a.Target = &t
		return Action{AgentID: a.ID, Kind: ActionGraze}
	}

	return walk(a, m)
}

// SetTarget points the agent at a block, clamped to the map.
func SetTarget(a *Agent, m *world.Map, t cube.Pos) {
	t = m.Clamp(t)
	a.Target = &t
}

func walk(a *Agent, m *world.Map) Action {
	dest := mgl64.Vec3{float64(a.Target[0]) + 0.5, a.Pos[1], float64(a.Target[2]) + 0.5}
	delta := dest.Sub(a.Pos)
	delta[1] = 0
	dist := delta.Len()

	if dist <= a.kind.Speed {
		a.Pos = m.Ground(dest)
		a.Target = nil
		return Action{AgentID: a.ID, Kind: ActionArrive}
	}

	next := a.Pos.Add(delta.Mul(a.kind.Speed / dist))
	bx, bz := floorInt(next[0]), floorInt(next[2])
	if !m.Walkable(bx, bz) {
		blocked := *a.Target
		a.Target = nil
		return Action{
			AgentID: a.ID,
			Kind:    ActionBlocked,
			Detail:  fmt.Sprintf("%s #%d blocked on the way to %v", a.Species, a.ID, blocked),
		}
	}

	a.Pos = m.Ground(next)
	return Action{AgentID: a.ID, Kind: ActionWalk}
}

// grazeTarget picks a walkable column one to three blocks away.
func grazeTarget(a *Agent, m *world.Map, rng *rand.Rand) (cube.Pos, bool) {
	here := a.BlockPos()
	for attempt := 0; attempt < 4; attempt++ {
		x := here[0] + rng.Intn(7) - 3
		z := here[2] + rng.Intn(7) - 3
		if x == here[0] && z == here[2] {
			continue
		}
		if surface, ok := m.Surface(x, z); ok && m.Walkable(x, z) {
			return surface, true
		}
	}
	return cube.Pos{}, false
}

func floorInt(f float64) int {
	i := int(f)
	if f < 0 && float64(i) != f {
		i--
	}
	return i
}
