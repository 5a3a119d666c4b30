// Package agents provides the creature data model, species catalog,
// spawning and per-tick movement.
package agents

import (
	"github.com/df-mc/dragonfly/server/block/cube"
	"github.com/go-gl/mathgl/mgl64"

	"github.com/talgya/herd-world/internal/herd"
)

// AgentID is a unique identifier for an agent.
type AgentID uint64

// Agent is one creature roaming a dimension.
type Agent struct {
	ID        AgentID `json:"id"`
	Species   string  `json:"species"`
	Dimension string  `json:"dimension"`

	// Location
	Pos    mgl64.Vec3 `json:"pos"`
	Target *cube.Pos  `json:"target,omitempty"` // Where the agent is walking, nil when idle

	// Tick of the last herd wander decision.
	PlannedTick uint64 `json:"planned_tick"`

	// Metadata
	BornTick uint64 `json:"born_tick"`
	Alive    bool   `json:"alive"`

	kind *Species
}

// NewAgent creates a living agent of a known species.
func NewAgent(id AgentID, sp *Species, dimension string, pos mgl64.Vec3, born uint64) *Agent {
	return &Agent{
		ID:        id,
		Species:   sp.Name,
		Dimension: dimension,
		Pos:       pos,
		BornTick:  born,
		Alive:     true,
		kind:      sp,
	}
}

// Kind returns the agent's species definition.
func (a *Agent) Kind() *Species { return a.kind }

// Herds reports whether the agent takes part in herd clustering.
func (a *Agent) Herds() bool { return a.kind != nil && a.kind.Herding }

// Age returns the agent's age in ticks.
func (a *Agent) Age(tick uint64) uint64 {
	if tick < a.BornTick {
		return 0
	}
	return tick - a.BornTick
}

// BlockPos returns the block the agent is standing in.
func (a *Agent) BlockPos() cube.Pos { return cube.PosFromVec3(a.Pos) }

// herd.Member implementation.

func (a *Agent) MemberID() uint64     { return uint64(a.ID) }
func (a *Agent) Position() mgl64.Vec3 { return a.Pos }
func (a *Agent) Width() float64       { return a.kind.Width }
func (a *Agent) HerdKey() herd.Key {
	return herd.Key{Species: a.Species, Dimension: a.Dimension}
}

// Snapshot returns a detached copy safe to hand to other goroutines.
func (a *Agent) Snapshot() Agent {
	cp := *a
	if a.Target != nil {
		t := *a.Target
		cp.Target = &t
	}
	return cp
}
