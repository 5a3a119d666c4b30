package warden

import (
	"fmt"
	"strings"
)

// Actions a cycle can take.
const (
	ActionNone      = "none"
	ActionRebalance = "rebalance"
)

// Thresholds tune triage.
type Thresholds struct {
	NoiseRatio float64 // Noise share of herding members above which a rebalance is due
	StaleAfter uint64  // Rebalance delays without a rebalance before the schedule counts as stuck
	Cooldown   int     // Max rebalances across any Cooldown+1 consecutive cycles, 0 = unlimited
}

// DefaultThresholds returns the standard triage tuning.
func DefaultThresholds() Thresholds {
	return Thresholds{
		NoiseRatio: 0.5,
		StaleAfter: 3,
		Cooldown:   2,
	}
}

// Validate rejects thresholds triage cannot use.
func (t Thresholds) Validate() error {
	if t.NoiseRatio <= 0 || t.NoiseRatio > 1 {
		return fmt.Errorf("noise ratio must be in (0, 1], got %v", t.NoiseRatio)
	}
	if t.StaleAfter == 0 {
		return fmt.Errorf("stale threshold must be positive")
	}
	return nil
}

// Health holds derived diagnostic signals computed from a Snapshot.
type Health struct {
	Members    int
	Noise      int
	NoiseRatio float64 // across herds large enough to cluster

	Scattered   []string // herds whose own noise ratio crosses the threshold
	Unclustered []string // herds with enough members but no cluster
	Stale       bool     // scheduled rebalance overdue

	Level string // "HEALTHY", "WATCH", "DRIFTING"
}

// Triage computes a Health from the snapshot's data.
func Triage(snap *Snapshot, th Thresholds) *Health {
	h := &Health{}
	minSize := max(snap.Status.HerdConfig.MinHerdSize, 1)

	for _, hi := range snap.Herds {
		if hi.Members < minSize {
			// Too small to ever form a cluster; not drift.
			continue
		}
		h.Members += hi.Members
		h.Noise += hi.Noise

		if hi.Clusters == 0 {
			h.Unclustered = append(h.Unclustered, hi.Name())
		} else if float64(hi.Noise)/float64(hi.Members) > th.NoiseRatio {
			h.Scattered = append(h.Scattered, hi.Name())
		}
	}
	if h.Members > 0 {
		h.NoiseRatio = float64(h.Noise) / float64(h.Members)
	}

	delay := snap.Status.HerdConfig.RebalanceDelay
	if delay > 0 && snap.Status.Tick > snap.Status.LastRebalance+th.StaleAfter*delay {
		h.Stale = true
	}

	h.Level = "HEALTHY"
	switch {
	case h.Stale, h.NoiseRatio > th.NoiseRatio, len(h.Unclustered) > 0:
		h.Level = "DRIFTING"
	case len(h.Scattered) > 0:
		h.Level = "WATCH"
	}
	return h
}

// Decision is the outcome of a triage.
type Decision struct {
	Action string
	Reason string
}

// Decide picks an action from health and recent history. A drifting world
// gets a rebalance unless the warden already forced too many in a row.
func Decide(h *Health, mem *CycleMemory, th Thresholds) Decision {
	if h.Level != "DRIFTING" {
		return Decision{Action: ActionNone, Reason: strings.ToLower(h.Level)}
	}
	if mem != nil && th.Cooldown > 0 && mem.RecentRebalances(th.Cooldown) >= th.Cooldown {
		return Decision{Action: ActionNone, Reason: "cooldown"}
	}

	var reasons []string
	if h.Stale {
		reasons = append(reasons, "stale schedule")
	}
	if h.NoiseRatio > th.NoiseRatio {
		reasons = append(reasons, fmt.Sprintf("noise ratio %.2f", h.NoiseRatio))
	}
	if len(h.Unclustered) > 0 {
		reasons = append(reasons, "unclustered "+strings.Join(h.Unclustered, ","))
	}
	return Decision{Action: ActionRebalance, Reason: strings.Join(reasons, "; ")}
}
