package herd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/df-mc/dragonfly/server/block/cube"
)

// Registry maps herd keys to herds. Herds are created on first add and
// live as long as the registry, even when empty.
type Registry struct {
	cfg       Config
	policy    ProximityPolicy
	herds     map[Key]*Herd
	order     []Key
	scheduler *Scheduler
	planner   Planner
	recorder  Recorder
	lastTick  uint64
}

// Option customises a Registry.
type Option func(*Registry)

// WithRecorder routes engine measurements to rec.
func WithRecorder(rec Recorder) Option {
	return func(r *Registry) {
		if rec != nil {
			r.recorder = rec
		}
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(cfg Config, opts ...Option) (*Registry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("herd config: %w", err)
	}
	r := &Registry{
		cfg:       cfg,
		policy:    cfg.Policy(),
		herds:     make(map[Key]*Herd),
		scheduler: NewScheduler(cfg.RebalanceDelay),
		recorder:  nopRecorder{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Config returns the registry configuration.
func (r *Registry) Config() Config { return r.cfg }

// Scheduler exposes the rebalance gate.
func (r *Registry) Scheduler() *Scheduler { return r.scheduler }

// Add registers m with its herd, creating the herd if needed.
func (r *Registry) Add(m Member) error {
	key := m.HerdKey()
	h, ok := r.herds[key]
	if !ok {
		h = newHerd(key, r.policy, r.cfg.MinHerdSize)
		r.herds[key] = h
		r.order = append(r.order, key)
		slog.Debug("herd created", "herd", key)
	}
	return h.Add(m)
}

// Remove unregisters m. It must be called before the agent is destroyed.
func (r *Registry) Remove(m Member) error {
	h, ok := r.herds[m.HerdKey()]
	if !ok {
		return fmt.Errorf("remove %d: no herd %s: %w", m.MemberID(), m.HerdKey(), ErrNotMember)
	}
	return h.Remove(m)
}

// Herd returns the herd m's species belongs to.
func (r *Registry) Herd(m Member) (*Herd, bool) {
	return r.HerdByKey(m.HerdKey())
}

// HerdByKey looks a herd up by key.
func (r *Registry) HerdByKey(key Key) (*Herd, bool) {
	h, ok := r.herds[key]
	return h, ok
}

// Herds returns every herd in creation order.
func (r *Registry) Herds() []*Herd {
	out := make([]*Herd, 0, len(r.order))
	for _, k := range r.order {
		out = append(out, r.herds[k])
	}
	return out
}

// LastRebalanceTick returns the tick of the most recent scheduled rebalance.
func (r *Registry) LastRebalanceTick() uint64 { return r.lastTick }

// WanderLocation returns where m should walk, or false to stay put.
func (r *Registry) WanderLocation(m Member, now uint64) (cube.Pos, bool) {
	p := r.Plan(m, now)
	return p.Target, p.Decision.Moves()
}

// Plan runs a scheduled rebalance if one is due and plans m's next move.
func (r *Registry) Plan(m Member, now uint64) Plan {
	h, ok := r.herds[m.HerdKey()]
	if !ok {
		r.recorder.ObserveWander(m.HerdKey(), StayNoHerd)
		return Plan{Decision: StayNoHerd}
	}

	r.RebalanceIfDue(now)

	p := r.planner.Plan(h, m)
	r.recorder.ObserveWander(h.key, p.Decision)
	return p
}

// Preview plans m's next move without touching the scheduler.
func (r *Registry) Preview(m Member) Plan {
	h, ok := r.herds[m.HerdKey()]
	if !ok {
		return Plan{Decision: StayNoHerd}
	}
	return r.planner.Plan(h, m)
}

// RebalanceIfDue rebalances every herd when the scheduler allows it at now.
func (r *Registry) RebalanceIfDue(now uint64) bool {
	if !r.scheduler.Due(now) {
		return false
	}
	r.RebalanceAll()
	r.scheduler.Advance(now)
	r.lastTick = now
	return true
}

// RebalanceAll recomputes every herd from scratch. It ignores the scheduler.
func (r *Registry) RebalanceAll() []RebalanceStats {
	slog.Info("rebalancing herds", "herds", len(r.order))
	start := time.Now()

	stats := make([]RebalanceStats, 0, len(r.order))
	for _, k := range r.order {
		s := r.herds[k].Rebalance()
		r.recorder.ObserveRebalance(s)
		stats = append(stats, s)
	}

	elapsed := time.Since(start)
	r.recorder.ObserveRebalanceAll(len(stats), elapsed)
	slog.Info("rebalance complete", "herds", len(stats), "elapsed", elapsed)
	if slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		slog.Debug("herd state\n" + r.String())
	}
	return stats
}
