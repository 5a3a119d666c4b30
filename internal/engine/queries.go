package engine

import (
	"fmt"
	"sort"

	"github.com/df-mc/dragonfly/server/block/cube"

	"github.com/talgya/herd-world/internal/agents"
	"github.com/talgya/herd-world/internal/herd"
)

// Status is a point-in-time summary for the status endpoint.
type Status struct {
	Tick          uint64   `json:"tick"`
	SimTime       string   `json:"sim_time"`
	Stats         SimStats `json:"stats"`
	LastRebalance uint64   `json:"last_rebalance"`
	NextRebalance uint64   `json:"next_rebalance"`
	Dimensions    []string `json:"dimensions"`
}

// Status returns the current world summary.
func (s *Simulation) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dims := make([]string, 0, len(s.worlds))
	for d := range s.worlds {
		dims = append(dims, d)
	}
	sort.Strings(dims)

	return Status{
		Tick:          s.lastTick,
		SimTime:       SimTime(s.lastTick),
		Stats:         s.stats,
		LastRebalance: s.herds.LastRebalanceTick(),
		NextRebalance: s.herds.Scheduler().Next(),
		Dimensions:    dims,
	}
}

// Census summarises every herd.
func (s *Simulation) Census() []herd.Census {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.herds.Census()
}

// ClusterView describes one cluster for API consumers.
type ClusterView struct {
	Size     int              `json:"size"`
	Centroid cube.Pos         `json:"centroid"`
	Members  []agents.AgentID `json:"members"`
}

// HerdView is a herd census plus its cluster breakdown.
type HerdView struct {
	herd.Census
	Detail []ClusterView    `json:"cluster_detail"`
	Strays []agents.AgentID `json:"noise_members"`
}

// HerdDetail returns the clusters and noise of one herd.
func (s *Simulation) HerdDetail(key herd.Key) (HerdView, error) {
	if _, ok := agents.LookupSpecies(key.Species); !ok {
		return HerdView{}, fmt.Errorf("herd %s: %w", key, ErrUnknownSpecies)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.worlds[key.Dimension]; !ok {
		return HerdView{}, fmt.Errorf("herd %s: %w", key, ErrUnknownDimension)
	}
	h, ok := s.herds.HerdByKey(key)
	if !ok {
		return HerdView{Census: herd.Census{Key: key, ClusterSizes: []int{}}}, nil
	}

	v := HerdView{Census: h.Census()}
	for _, c := range h.Clusters() {
		center, err := c.Centroid()
		if err != nil {
			continue
		}
		v.Detail = append(v.Detail, ClusterView{
			Size:     c.Len(),
			Centroid: center,
			Members:  memberIDs(c.Members()),
		})
	}
	v.Strays = memberIDs(h.Noise())
	return v, nil
}

func memberIDs(ms []herd.Member) []agents.AgentID {
	ids := make([]agents.AgentID, 0, len(ms))
	for _, m := range ms {
		ids = append(ids, agents.AgentID(m.MemberID()))
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// WanderPreview reports what the herd engine would tell an agent right now,
// without running a scheduled rebalance.
func (s *Simulation) WanderPreview(id agents.AgentID) (herd.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.agentIndex[id]
	if !ok {
		return herd.Plan{}, fmt.Errorf("preview %d: %w", id, ErrUnknownAgent)
	}
	if !a.Herds() {
		return herd.Plan{Decision: herd.StayNoHerd}, nil
	}
	return s.herds.Preview(a), nil
}

// Agent returns a copy of one living agent.
func (s *Simulation) Agent(id agents.AgentID) (agents.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.agentIndex[id]
	if !ok {
		return agents.Agent{}, fmt.Errorf("agent %d: %w", id, ErrUnknownAgent)
	}
	return a.Snapshot(), nil
}

// AgentList returns copies of living agents, optionally filtered by species
// and dimension (empty = any).
func (s *Simulation) AgentList(species, dimension string) []agents.Agent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]agents.Agent, 0)
	for _, a := range s.agents {
		if species != "" && a.Species != species {
			continue
		}
		if dimension != "" && a.Dimension != dimension {
			continue
		}
		out = append(out, a.Snapshot())
	}
	return out
}

// AgentsSnapshot returns copies of every living agent, for persistence.
func (s *Simulation) AgentsSnapshot() []agents.Agent {
	return s.AgentList("", "")
}

// RecentEvents returns up to n of the most recent events, oldest first.
func (s *Simulation) RecentEvents(n int) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	start := len(s.events) - n
	if n <= 0 || start < 0 {
		start = 0
	}
	out := make([]Event, len(s.events)-start)
	copy(out, s.events[start:])
	return out
}
