// Simulation ties together all world systems and runs them each tick.
package engine

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"sync"

	"github.com/talgya/herd-world/internal/agents"
	"github.com/talgya/herd-world/internal/herd"
	"github.com/talgya/herd-world/internal/world"
)

var (
	ErrUnknownAgent     = errors.New("unknown agent")
	ErrUnknownSpecies   = errors.New("unknown species")
	ErrUnknownDimension = errors.New("unknown dimension")
	ErrInvalidCount     = errors.New("count must be positive")
)

// SimConfig holds tunables for the simulation layer above the herd engine.
type SimConfig struct {
	WanderEvery uint64  // Ticks between herd wander decisions per agent
	BreedChance float64 // Per herd, per sim-minute
	MaxHerdSize int     // Herds at or above this size stop breeding
	EventBuffer int     // Recent events kept in memory
	Seed        int64
}

// DefaultSimConfig returns a reasonable starting configuration.
func DefaultSimConfig() SimConfig {
	return SimConfig{
		WanderEvery: 100,
		BreedChance: 0.25,
		MaxHerdSize: 40,
		EventBuffer: 1000,
	}
}

// Simulation holds the complete world state and wires systems together.
// All exported methods are safe for concurrent use; the engine goroutine
// drives the Tick* methods while the API reads through the query methods.
type Simulation struct {
	mu sync.RWMutex

	cfg        SimConfig
	worlds     map[string]*world.Map
	agents     []*agents.Agent
	agentIndex map[agents.AgentID]*agents.Agent
	herds      *herd.Registry
	spawner    *agents.Spawner
	rng        *rand.Rand

	events   []Event // Recent events, trimmed to cfg.EventBuffer
	lastTick uint64  // Most recent tick processed
	stats    SimStats
	eventSeq uint64

	subMu   sync.Mutex
	subs    map[int]chan Event
	nextSub int
}

// Event is a notable occurrence in the world.
type Event struct {
	Seq         uint64         `json:"seq"` // Monotonic per process
	Tick        uint64         `json:"tick"`
	Description string         `json:"description"`
	Category    string         `json:"category"` // "birth", "death", "spawn", "despawn", "herd", "admin"
	Meta        map[string]any `json:"meta,omitempty"`
}

// SimStats tracks aggregate world statistics.
type SimStats struct {
	Population int `json:"population"`
	Herding    int `json:"herding"`
	Herds      int `json:"herds"`
	Clusters   int `json:"clusters"`
	Noise      int `json:"noise"`
	Births     int `json:"births"`
	Deaths     int `json:"deaths"`
}

// NewSimulation creates a Simulation from generated or restored components.
// Herding agents are added to the registry; cluster state starts empty and
// forms on the first rebalance.
func NewSimulation(cfg SimConfig, maps []*world.Map, ag []*agents.Agent, reg *herd.Registry, spawner *agents.Spawner) (*Simulation, error) {
	if cfg.WanderEvery == 0 {
		return nil, fmt.Errorf("wander interval must be positive")
	}

	s := &Simulation{
		cfg:        cfg,
		worlds:     make(map[string]*world.Map, len(maps)),
		agentIndex: make(map[agents.AgentID]*agents.Agent, len(ag)),
		herds:      reg,
		spawner:    spawner,
		rng:        rand.New(rand.NewSource(cfg.Seed + 400)),
		subs:       make(map[int]chan Event),
	}
	for _, m := range maps {
		s.worlds[m.Dimension] = m
	}

	for _, a := range ag {
		if !a.Alive {
			continue
		}
		if _, ok := s.worlds[a.Dimension]; !ok {
			return nil, fmt.Errorf("agent %d in %q: %w", a.ID, a.Dimension, ErrUnknownDimension)
		}
		if err := s.admit(a); err != nil {
			return nil, err
		}
	}

	s.updateStats()
	return s, nil
}

// CurrentTick returns the most recently processed tick number.
func (s *Simulation) CurrentTick() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastTick
}

// Config returns the simulation configuration.
func (s *Simulation) Config() SimConfig { return s.cfg }

// HerdConfig returns the herd engine configuration.
func (s *Simulation) HerdConfig() herd.Config { return s.herds.Config() }

// Dimensions lists the loaded dimension maps.
func (s *Simulation) Dimensions() []*world.Map {
	out := make([]*world.Map, 0, len(s.worlds))
	for _, m := range s.worlds {
		out = append(out, m)
	}
	return out
}

// TickUpdate runs every tick: herd wander decisions, then movement.
func (s *Simulation) TickUpdate(tick uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastTick = tick
	for _, a := range s.agents {
		if !a.Alive {
			continue
		}
		m := s.worlds[a.Dimension]

		// Stagger decisions so the whole population doesn't plan on one tick.
		if a.Herds() && (tick+uint64(a.ID))%s.cfg.WanderEvery == 0 {
			s.wander(a, m, tick)
		}

		act := agents.Step(a, m, s.rng)
		if act.Kind == agents.ActionBlocked {
			slog.Debug("agent blocked", "agent", a.ID, "detail", act.Detail)
		}
	}
}

func (s *Simulation) wander(a *agents.Agent, m *world.Map, tick uint64) {
	before := s.herds.LastRebalanceTick()
	plan := s.herds.Plan(a, tick)
	a.PlannedTick = tick

	if s.herds.LastRebalanceTick() != before {
		s.emit(Event{
			Tick:        tick,
			Description: fmt.Sprintf("Herds rebalanced at %s", SimTime(tick)),
			Category:    "herd",
		})
	}

	if plan.Decision.Moves() {
		agents.SetTarget(a, m, plan.Target)
	}
}

// TickSecond runs every sim-second: statistics.
func (s *Simulation) TickSecond(tick uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updateStats()
}

// TickMinute runs every sim-minute: old age and breeding.
func (s *Simulation) TickMinute(tick uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processLifecycle(tick)
	s.updateStats()
}

// TickDay runs every sim-day: daily summary.
func (s *Simulation) TickDay(tick uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	slog.Info("daily report",
		"tick", tick,
		"time", SimTime(tick),
		"population", s.stats.Population,
		"herds", s.stats.Herds,
		"clusters", s.stats.Clusters,
		"noise", s.stats.Noise,
		"births", s.stats.Births,
		"deaths", s.stats.Deaths,
	)
}

// admit registers a new living agent. Caller holds the write lock.
func (s *Simulation) admit(a *agents.Agent) error {
	if _, dup := s.agentIndex[a.ID]; dup {
		return fmt.Errorf("agent %d already present", a.ID)
	}
	if a.Herds() {
		if err := s.herds.Add(a); err != nil {
			return err
		}
	}
	s.agents = append(s.agents, a)
	s.agentIndex[a.ID] = a
	return nil
}

// remove takes an agent out of its herd before dropping it. Caller holds
// the write lock.
func (s *Simulation) remove(a *agents.Agent) {
	if a.Herds() {
		if err := s.herds.Remove(a); err != nil {
			slog.Warn("herd remove failed", "agent", a.ID, "error", err)
		}
	}
	a.Alive = false
	a.Target = nil
	delete(s.agentIndex, a.ID)

	for i, other := range s.agents {
		if other == a {
			s.agents = append(s.agents[:i], s.agents[i+1:]...)
			break
		}
	}
}

// emit records an event and fans it out to subscribers. Caller holds the
// write lock.
func (s *Simulation) emit(e Event) {
	s.eventSeq++
	e.Seq = s.eventSeq
	s.events = append(s.events, e)
	if over := len(s.events) - s.cfg.EventBuffer; s.cfg.EventBuffer > 0 && over > 0 {
		s.events = s.events[over:]
	}

	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- e:
		default:
			// Slow subscriber, drop.
		}
	}
}

// Subscribe registers for live events. The channel is closed by Unsubscribe.
func (s *Simulation) Subscribe() (int, <-chan Event) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	id := s.nextSub
	s.nextSub++
	ch := make(chan Event, 64)
	s.subs[id] = ch
	return id, ch
}

// Unsubscribe stops delivery to a subscriber.
func (s *Simulation) Unsubscribe(id int) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	if ch, ok := s.subs[id]; ok {
		close(ch)
		delete(s.subs, id)
	}
}

func (s *Simulation) updateStats() {
	herding := 0
	for _, a := range s.agents {
		if a.Herds() {
			herding++
		}
	}

	clusters, noise := 0, 0
	herds := s.herds.Herds()
	for _, h := range herds {
		clusters += h.NumClusters()
		noise += h.NoiseLen()
	}

	s.stats.Population = len(s.agents)
	s.stats.Herding = herding
	s.stats.Herds = len(herds)
	s.stats.Clusters = clusters
	s.stats.Noise = noise
}

// HerdDump writes the registry dump.
func (s *Simulation) HerdDump(w io.Writer) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.herds.Dump(w)
}
