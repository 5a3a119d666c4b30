package engine

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/df-mc/dragonfly/server/block/cube"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/herd-world/internal/agents"
	"github.com/talgya/herd-world/internal/herd"
	"github.com/talgya/herd-world/internal/world"
)

func flatMap(dim string, r int) *world.Map {
	m := world.NewMap(dim, r, 62)
	for x := -r; x <= r; x++ {
		for z := -r; z <= r; z++ {
			m.Set(&world.Column{Coord: world.ColumnCoord{X: x, Z: z}, Height: 64, Biome: world.BiomePlains})
		}
	}
	return m
}

func species(t *testing.T, name string) *agents.Species {
	t.Helper()
	sp, ok := agents.LookupSpecies(name)
	require.True(t, ok)
	return sp
}

// herdScene is four gallimimus in a row near the origin and one stray at x=40.
func herdScene(t *testing.T) []*agents.Agent {
	sp := species(t, "gallimimus")
	var ag []*agents.Agent
	for i, x := range []float64{0.5, 1.5, 2.5, 3.5, 40.5} {
		ag = append(ag, agents.NewAgent(agents.AgentID(i+1), sp, "overworld", mgl64.Vec3{x, 65, 0.5}, 0))
	}
	return ag
}

func newTestSim(t *testing.T, cfg SimConfig, ag []*agents.Agent) *Simulation {
	t.Helper()
	reg, err := herd.NewRegistry(herd.DefaultConfig())
	require.NoError(t, err)
	spawner := agents.NewSpawner(1)
	spawner.SetNextID(100)
	sim, err := NewSimulation(cfg, []*world.Map{flatMap("overworld", 64), flatMap("nether", 16)}, ag, reg, spawner)
	require.NoError(t, err)
	return sim
}

func TestNewSimulationAdmitsHerdingAgents(t *testing.T) {
	ag := herdScene(t)
	ag = append(ag, agents.NewAgent(9, species(t, "velociraptor"), "overworld", mgl64.Vec3{5, 65, 5}, 0))
	sim := newTestSim(t, DefaultSimConfig(), ag)

	census := sim.Census()
	require.Len(t, census, 1)
	assert.Equal(t, herd.Key{Species: "gallimimus", Dimension: "overworld"}, census[0].Key)
	assert.Equal(t, 5, census[0].Members)
	assert.Equal(t, 5, census[0].Noise)

	st := sim.Status()
	assert.Equal(t, 6, st.Stats.Population)
	assert.Equal(t, 5, st.Stats.Herding)
	assert.Equal(t, []string{"nether", "overworld"}, st.Dimensions)
}

func TestNewSimulationRejectsUnknownDimension(t *testing.T) {
	reg, err := herd.NewRegistry(herd.DefaultConfig())
	require.NoError(t, err)
	ag := []*agents.Agent{agents.NewAgent(1, species(t, "dodo"), "end", mgl64.Vec3{}, 0)}

	_, err = NewSimulation(DefaultSimConfig(), []*world.Map{flatMap("overworld", 4)}, ag, reg, agents.NewSpawner(1))
	assert.ErrorIs(t, err, ErrUnknownDimension)
}

func TestSpawnAndDespawn(t *testing.T) {
	sim := newTestSim(t, DefaultSimConfig(), nil)

	_, err := sim.Spawn("pterodactyl", "overworld", 0, 0, 3)
	assert.ErrorIs(t, err, ErrUnknownSpecies)
	_, err = sim.Spawn("dodo", "end", 0, 0, 3)
	assert.ErrorIs(t, err, ErrUnknownDimension)
	for _, n := range []int{0, -1} {
		_, err = sim.Spawn("dodo", "nether", 0, 0, n)
		assert.ErrorIs(t, err, ErrInvalidCount)
	}
	assert.Equal(t, 0, sim.Status().Stats.Population)

	ids, err := sim.Spawn("Dodo", "nether", 2, 2, 4)
	require.NoError(t, err)
	require.Len(t, ids, 4)
	assert.Equal(t, agents.AgentID(100), ids[0])

	v, err := sim.HerdDetail(herd.Key{Species: "dodo", Dimension: "nether"})
	require.NoError(t, err)
	assert.Equal(t, 4, v.Members)

	require.NoError(t, sim.Despawn(ids[0]))
	assert.ErrorIs(t, sim.Despawn(ids[0]), ErrUnknownAgent)

	v, err = sim.HerdDetail(herd.Key{Species: "dodo", Dimension: "nether"})
	require.NoError(t, err)
	assert.Equal(t, 3, v.Members)
	_, err = sim.Agent(ids[0])
	assert.ErrorIs(t, err, ErrUnknownAgent)

	events := sim.RecentEvents(10)
	require.Len(t, events, 2)
	assert.Equal(t, "spawn", events[0].Category)
	assert.Equal(t, "despawn", events[1].Category)
}

func TestRebalanceNowAndDetail(t *testing.T) {
	sim := newTestSim(t, DefaultSimConfig(), herdScene(t))

	stats := sim.RebalanceNow()
	require.Len(t, stats, 1)
	assert.Equal(t, 1, stats[0].Clusters)
	assert.Equal(t, 1, stats[0].Noise)

	v, err := sim.HerdDetail(herd.Key{Species: "gallimimus", Dimension: "overworld"})
	require.NoError(t, err)
	require.Len(t, v.Detail, 1)
	assert.Equal(t, []agents.AgentID{1, 2, 3, 4}, v.Detail[0].Members)
	assert.Equal(t, cube.Pos{2, 65, 0}, v.Detail[0].Centroid)
	assert.Equal(t, []agents.AgentID{5}, v.Strays)

	_, err = sim.HerdDetail(herd.Key{Species: "unicorn", Dimension: "overworld"})
	assert.ErrorIs(t, err, ErrUnknownSpecies)

	var buf bytes.Buffer
	require.NoError(t, sim.HerdDump(&buf))
	assert.Contains(t, buf.String(), "species=gallimimus, dimension=overworld, members=5, clusters=1, noise=1")
}

func TestWanderPreview(t *testing.T) {
	sim := newTestSim(t, DefaultSimConfig(), herdScene(t))
	sim.RebalanceNow()

	plan, err := sim.WanderPreview(5)
	require.NoError(t, err)
	assert.Equal(t, herd.MoveLargestCluster, plan.Decision)
	assert.Equal(t, cube.Pos{6, 65, 0}, plan.Target)

	plan, err = sim.WanderPreview(1)
	require.NoError(t, err)
	assert.Equal(t, herd.StayInBand, plan.Decision)

	_, err = sim.WanderPreview(77)
	assert.ErrorIs(t, err, ErrUnknownAgent)
}

func TestTickUpdateSteersStrays(t *testing.T) {
	cfg := DefaultSimConfig()
	cfg.WanderEvery = 1
	sim := newTestSim(t, cfg, herdScene(t))

	sim.TickUpdate(1)

	stray, err := sim.Agent(5)
	require.NoError(t, err)
	require.NotNil(t, stray.Target)
	assert.Equal(t, cube.Pos{6, 65, 0}, *stray.Target)
	assert.Less(t, stray.Pos[0], 40.5)
	assert.Equal(t, uint64(1), stray.PlannedTick)

	st := sim.Status()
	assert.Equal(t, uint64(1), st.LastRebalance)
	assert.Equal(t, uint64(201), st.NextRebalance)
	assert.Equal(t, "herd", sim.RecentEvents(1)[0].Category)
}

func TestLifecycleOldAge(t *testing.T) {
	sp := species(t, "dodo")
	ag := []*agents.Agent{
		agents.NewAgent(1, sp, "overworld", mgl64.Vec3{0.5, 65, 0.5}, 0),
		agents.NewAgent(2, sp, "overworld", mgl64.Vec3{1.5, 65, 0.5}, sp.Lifespan),
	}
	sim := newTestSim(t, DefaultSimConfig(), ag)

	sim.TickMinute(sp.Lifespan)

	st := sim.Status()
	assert.Equal(t, 1, st.Stats.Population)
	assert.Equal(t, 1, st.Stats.Deaths)
	_, err := sim.Agent(1)
	assert.ErrorIs(t, err, ErrUnknownAgent)
	assert.Equal(t, 1, sim.Census()[0].Members)
	assert.Equal(t, "death", sim.RecentEvents(1)[0].Category)
}

func TestLifecycleBreeding(t *testing.T) {
	cfg := DefaultSimConfig()
	cfg.BreedChance = 1
	sim := newTestSim(t, cfg, herdScene(t))
	sim.RebalanceNow()

	sim.TickMinute(TicksPerMinute)

	st := sim.Status()
	assert.Equal(t, 6, st.Stats.Population)
	assert.Equal(t, 1, st.Stats.Births)
	juvenile, err := sim.Agent(100)
	require.NoError(t, err)
	assert.Equal(t, "gallimimus", juvenile.Species)
	assert.Equal(t, uint64(TicksPerMinute), juvenile.BornTick)
	assert.Equal(t, "birth", sim.RecentEvents(1)[0].Category)
}

func TestLifecycleNoBreedingWithoutClusters(t *testing.T) {
	cfg := DefaultSimConfig()
	cfg.BreedChance = 1
	sim := newTestSim(t, cfg, herdScene(t))

	sim.TickMinute(TicksPerMinute)

	assert.Equal(t, 5, sim.Status().Stats.Population)
}

func TestSubscribe(t *testing.T) {
	sim := newTestSim(t, DefaultSimConfig(), nil)
	id, ch := sim.Subscribe()

	_, err := sim.Spawn("dodo", "overworld", 0, 0, 2)
	require.NoError(t, err)

	select {
	case e := <-ch:
		assert.Equal(t, "spawn", e.Category)
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
	}

	sim.Unsubscribe(id)
	_, open := <-ch
	assert.False(t, open)
}

func TestEventBufferTrims(t *testing.T) {
	cfg := DefaultSimConfig()
	cfg.EventBuffer = 3
	sim := newTestSim(t, cfg, nil)

	for i := 0; i < 5; i++ {
		sim.RebalanceNow()
	}
	assert.Len(t, sim.RecentEvents(0), 3)
	assert.Len(t, sim.RecentEvents(2), 2)
}

func TestEngineCallbackLayers(t *testing.T) {
	e := NewEngine()
	var ticks, seconds, minutes, days int
	e.OnTick = func(uint64) { ticks++ }
	e.OnSecond = func(uint64) { seconds++ }
	e.OnMinute = func(uint64) { minutes++ }
	e.OnDay = func(uint64) { days++ }

	for i := 0; i < TicksPerMinute*2; i++ {
		e.Step()
	}

	assert.Equal(t, 2400, ticks)
	assert.Equal(t, 120, seconds)
	assert.Equal(t, 2, minutes)
	assert.Equal(t, 0, days)
}

func TestEngineRunStopsOnCancel(t *testing.T) {
	e := NewEngine()
	e.Interval = time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		e.Run(ctx)
		close(done)
	}()

	require.Eventually(t, e.Running, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("engine did not stop")
	}
	assert.False(t, e.Running())
}

func TestEngineSpeed(t *testing.T) {
	e := NewEngine()
	assert.Equal(t, 1.0, e.Speed())
	e.SetSpeed(-3)
	assert.Equal(t, 0.0, e.Speed())
	e.SetSpeed(4)
	assert.Equal(t, 4.0, e.Speed())
}

func TestSimTime(t *testing.T) {
	assert.Equal(t, "Day 1, 6:00", SimTime(0))
	assert.Equal(t, "Day 1, 6:30", SimTime(500))
	assert.Equal(t, "Day 2, 12:00", SimTime(TicksPerDay+6000))
}
