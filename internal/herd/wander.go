package herd

import (
	"log/slog"
	"math"

	"github.com/df-mc/dragonfly/server/block/cube"
	"github.com/go-gl/mathgl/mgl64"
)

// Decision is the branch the planner took for one query.
type Decision uint8

const (
	StayNoHerd Decision = iota
	StayNoCluster
	StayInBand
	MoveOwnCluster
	MoveLargestCluster
)

var decisionNames = [...]string{
	StayNoHerd:         "stay_no_herd",
	StayNoCluster:      "stay_no_cluster",
	StayInBand:         "stay_in_band",
	MoveOwnCluster:     "move_own_cluster",
	MoveLargestCluster: "move_largest_cluster",
}

func (d Decision) String() string {
	if int(d) < len(decisionNames) {
		return decisionNames[d]
	}
	return "unknown"
}

func (d Decision) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Moves reports whether the decision carries a target.
func (d Decision) Moves() bool {
	return d == MoveOwnCluster || d == MoveLargestCluster
}

// Plan is the answer to "where should this agent walk?".
type Plan struct {
	Decision       Decision `json:"decision"`
	Target         cube.Pos `json:"target"`
	Center         cube.Pos `json:"center"`
	CenterDistance float64  `json:"center_distance"`
	OuterRadius    int      `json:"outer_radius"`
}

// Planner derives wander targets from current cluster geometry.
type Planner struct{}

// Plan computes where m should go within h. Agents outside any cluster head
// for the largest one. The target sits on the outer-radius band, not on the
// centroid.
func (Planner) Plan(h *Herd, m Member) Plan {
	if h == nil {
		return Plan{Decision: StayNoHerd}
	}

	move := MoveOwnCluster
	cluster := h.ClusterOf(m)
	if cluster == nil {
		cluster = h.Largest()
		move = MoveLargestCluster
		if cluster != nil {
			slog.Debug("falling back to largest cluster", "herd", h.key, "id", m.MemberID(), "size", cluster.Len())
		}
	}
	if cluster == nil {
		slog.Debug("no cluster to wander toward", "herd", h.key, "id", m.MemberID())
		return Plan{Decision: StayNoCluster}
	}

	center, err := cluster.Centroid()
	if err != nil {
		// Clusters are dropped when emptied; an empty one here is a bug upstream.
		slog.Warn("empty cluster in herd", "herd", h.key, "error", err)
		return Plan{Decision: StayNoCluster}
	}

	start := cube.PosFromVec3(m.Position())
	delta := center.Vec3().Sub(start.Vec3())
	dist := delta.Len()
	outer := cluster.OuterRadius(m)

	plan := Plan{
		Center:         center,
		CenterDistance: dist,
		OuterRadius:    outer,
	}
	if dist < float64(outer) {
		plan.Decision = StayInBand
		return plan
	}

	plan.Decision = move
	plan.Target = toward(start, delta, dist, dist-float64(outer))
	slog.Debug("wander target",
		"herd", h.key,
		"id", m.MemberID(),
		"start", start,
		"center", center,
		"target", plan.Target,
		"distance", dist,
		"outer", outer,
	)
	return plan
}

// toward returns the block step units from start along delta, whose length is dist.
func toward(start cube.Pos, delta mgl64.Vec3, dist, step float64) cube.Pos {
	if dist == 0 {
		return start
	}
	off := delta.Mul(step / dist)
	return cube.Pos{
		start[0] + int(math.Round(off[0])),
		start[1] + int(math.Round(off[1])),
		start[2] + int(math.Round(off[2])),
	}
}
