package agents

import (
	"math/rand"
	"testing"

	"github.com/df-mc/dragonfly/server/block/cube"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/herd-world/internal/herd"
	"github.com/talgya/herd-world/internal/world"
)

// flatMap builds plains at height 64 over [-r, r].
func flatMap(r int) *world.Map {
	m := world.NewMap("overworld", r, 62)
	for x := -r; x <= r; x++ {
		for z := -r; z <= r; z++ {
			m.Set(&world.Column{Coord: world.ColumnCoord{X: x, Z: z}, Height: 64, Biome: world.BiomePlains})
		}
	}
	return m
}

func mustSpecies(t *testing.T, name string) *Species {
	t.Helper()
	sp, ok := LookupSpecies(name)
	require.True(t, ok, name)
	return sp
}

func TestLookupSpecies(t *testing.T) {
	sp, ok := LookupSpecies("Triceratops")
	require.True(t, ok)
	assert.Equal(t, "triceratops", sp.Name)
	assert.InDelta(t, 3.0, sp.Width, 1e-9)

	_, ok = LookupSpecies("pterodactyl")
	assert.False(t, ok)

	for _, sp := range HerdingSpecies() {
		assert.True(t, sp.Herding)
		assert.Positive(t, sp.Width)
		assert.Positive(t, sp.Speed)
	}
	assert.Less(t, len(HerdingSpecies()), len(AllSpecies()))
}

func TestAgentIsHerdMember(t *testing.T) {
	sp := mustSpecies(t, "gallimimus")
	a := NewAgent(7, sp, "nether", mgl64.Vec3{1.5, 65, -2.25}, 100)

	var m herd.Member = a
	assert.Equal(t, uint64(7), m.MemberID())
	assert.Equal(t, herd.Key{Species: "gallimimus", Dimension: "nether"}, m.HerdKey())
	assert.InDelta(t, 1.2, m.Width(), 1e-9)
	assert.Equal(t, cube.Pos{1, 65, -3}, a.BlockPos())
	assert.Equal(t, uint64(50), a.Age(150))
	assert.Equal(t, uint64(0), a.Age(10))
	assert.True(t, a.Herds())
	assert.False(t, NewAgent(8, mustSpecies(t, "velociraptor"), "nether", mgl64.Vec3{}, 0).Herds())
}

func TestSpawnGroup(t *testing.T) {
	m := flatMap(20)
	s := NewSpawner(1)
	s.SetNextID(40)
	sp := mustSpecies(t, "dodo")

	group := s.SpawnGroup(sp, m, world.ColumnCoord{X: 5, Z: -5}, 6, 12)

	require.Len(t, group, 6)
	assert.Equal(t, AgentID(46), s.NextID())
	for i, a := range group {
		assert.Equal(t, AgentID(40+i), a.ID)
		assert.Equal(t, "overworld", a.Dimension)
		assert.Equal(t, uint64(12), a.BornTick)
		assert.True(t, a.Alive)
		assert.InDelta(t, 65.0, a.Pos[1], 1e-9)
		p := a.BlockPos()
		assert.LessOrEqual(t, world.ChebyshevDistance(world.ColumnCoord{X: p[0], Z: p[2]}, world.ColumnCoord{X: 5, Z: -5}), 3)
	}
}

func TestSpawnGroupSkipsWater(t *testing.T) {
	m := world.NewMap("overworld", 10, 62)
	m.Set(&world.Column{Coord: world.ColumnCoord{}, Height: 50, Biome: world.BiomeWater})

	group := NewSpawner(1).SpawnGroup(mustSpecies(t, "dodo"), m, world.ColumnCoord{}, 3, 0)
	assert.Empty(t, group)
}

func TestStepWalksToTarget(t *testing.T) {
	m := flatMap(10)
	a := NewAgent(1, mustSpecies(t, "gallimimus"), "overworld", mgl64.Vec3{0.5, 65, 0.5}, 0)
	SetTarget(a, m, cube.Pos{3, 65, 0})
	rng := rand.New(rand.NewSource(1))

	act := Step(a, m, rng)
	assert.Equal(t, ActionWalk, act.Kind)
	assert.InDelta(t, 0.7, a.Pos[0], 1e-9)

	arrived := false
	for i := 0; i < 20 && !arrived; i++ {
		arrived = Step(a, m, rng).Kind == ActionArrive
	}
	require.True(t, arrived)
	assert.Nil(t, a.Target)
	assert.Equal(t, mgl64.Vec3{3.5, 65, 0.5}, a.Pos)
}

func TestStepBlockedByWater(t *testing.T) {
	m := flatMap(10)
	m.Set(&world.Column{Coord: world.ColumnCoord{X: 1, Z: 0}, Height: 55, Biome: world.BiomeWater})
	a := NewAgent(1, mustSpecies(t, "gallimimus"), "overworld", mgl64.Vec3{0.9, 65, 0.5}, 0)
	SetTarget(a, m, cube.Pos{3, 65, 0})

	act := Step(a, m, rand.New(rand.NewSource(1)))

	assert.Equal(t, ActionBlocked, act.Kind)
	assert.Nil(t, a.Target)
	assert.InDelta(t, 0.9, a.Pos[0], 1e-9)
}

func TestSetTargetClampsToMap(t *testing.T) {
	m := flatMap(10)
	a := NewAgent(1, mustSpecies(t, "dodo"), "overworld", mgl64.Vec3{0.5, 65, 0.5}, 0)

	SetTarget(a, m, cube.Pos{40, 65, -40})
	require.NotNil(t, a.Target)
	assert.Equal(t, cube.Pos{10, 65, -10}, *a.Target)
}

func TestIdleAgentsGraze(t *testing.T) {
	m := flatMap(10)
	a := NewAgent(1, mustSpecies(t, "dodo"), "overworld", mgl64.Vec3{0.5, 65, 0.5}, 0)
	rng := rand.New(rand.NewSource(3))

	grazed := false
	for i := 0; i < 2000 && !grazed; i++ {
		grazed = Step(a, m, rng).Kind == ActionGraze
	}
	require.True(t, grazed)
	require.NotNil(t, a.Target)
	assert.LessOrEqual(t, world.ChebyshevDistance(world.ColumnCoord{X: a.Target[0], Z: a.Target[2]}, world.ColumnCoord{}), 3)
	assert.Equal(t, 65, a.Target[1])
}

func TestDeadAgentsStayPut(t *testing.T) {
	m := flatMap(4)
	a := NewAgent(1, mustSpecies(t, "dodo"), "overworld", mgl64.Vec3{0.5, 65, 0.5}, 0)
	SetTarget(a, m, cube.Pos{3, 65, 0})
	a.Alive = false

	assert.Equal(t, ActionIdle, Step(a, m, rand.New(rand.NewSource(1))).Kind)
	assert.Equal(t, mgl64.Vec3{0.5, 65, 0.5}, a.Pos)
}
