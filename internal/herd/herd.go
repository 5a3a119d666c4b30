package herd

import "fmt"

// Herd owns every member of one species in one dimension, partitioned into
// clusters and noise. Every member is in exactly one cluster or in noise.
type Herd struct {
	key      Key
	policy   ProximityPolicy
	minSize  int
	members  *roster
	clusters []*Cluster
	noise    *roster
}

func newHerd(key Key, policy ProximityPolicy, minSize int) *Herd {
	return &Herd{
		key:     key,
		policy:  policy,
		minSize: minSize,
		members: newRoster(),
		noise:   newRoster(),
	}
}

// Key returns the species/dimension this herd tracks.
func (h *Herd) Key() Key { return h.key }

// Len returns the number of members.
func (h *Herd) Len() int { return h.members.len() }

// NumClusters returns the number of clusters.
func (h *Herd) NumClusters() int { return len(h.clusters) }

// NoiseLen returns the number of unclustered members.
func (h *Herd) NoiseLen() int { return h.noise.len() }

// Contains reports whether m is a member of the herd.
func (h *Herd) Contains(m Member) bool { return h.members.contains(m) }

// Members returns a copy of all members.
func (h *Herd) Members() []Member { return h.members.snapshot() }

// Clusters returns the clusters in iteration order. The slice is a copy;
// the clusters are live but can only be changed through the herd.
func (h *Herd) Clusters() []*Cluster {
	out := make([]*Cluster, len(h.clusters))
	copy(out, h.clusters)
	return out
}

// Noise returns a copy of the unclustered members.
func (h *Herd) Noise() []Member { return h.noise.snapshot() }

// ClusterOf returns the cluster containing m, or nil.
func (h *Herd) ClusterOf(m Member) *Cluster {
	for _, c := range h.clusters {
		if c.Contains(m) {
			return c
		}
	}
	return nil
}

// Largest returns the biggest cluster, the first one on ties, or nil.
func (h *Herd) Largest() *Cluster {
	var largest *Cluster
	for _, c := range h.clusters {
		if largest == nil || c.Len() > largest.Len() {
			largest = c
		}
	}
	return largest
}

// Add places a new member. It joins the cluster it is proximal to, bridges
// several clusters into one if it is proximal to more than one, and falls
// into noise otherwise.
func (h *Herd) Add(m Member) error {
	if m.HerdKey() != h.key {
		return fmt.Errorf("add %d to %s: %w", m.MemberID(), h.key, ErrWrongHerd)
	}
	if !h.members.add(m) {
		return fmt.Errorf("add %d to %s: %w", m.MemberID(), h.key, ErrDuplicateMember)
	}

	var matches []*Cluster
	for _, c := range h.clusters {
		if c.WithinProximity(m) {
			matches = append(matches, c)
		}
	}

	if len(matches) == 0 {
		h.noise.add(m)
		return nil
	}

	survivor := matches[0]
	survivor.add(m)
	for _, other := range matches[1:] {
		survivor.mergeFrom(other)
		h.dropCluster(other)
	}
	return nil
}

// Remove takes m out of the herd. Cluster shapes are left as they are until
// the next rebalance; a cluster emptied by the removal is dropped.
func (h *Herd) Remove(m Member) error {
	if !h.members.remove(m) {
		return fmt.Errorf("remove %d from %s: %w", m.MemberID(), h.key, ErrNotMember)
	}
	for _, c := range h.clusters {
		if c.remove(m) {
			if c.Len() == 0 {
				h.dropCluster(c)
			}
			return nil
		}
	}
	h.noise.remove(m)
	return nil
}

func (h *Herd) dropCluster(target *Cluster) {
	for i, c := range h.clusters {
		if c == target {
			h.clusters = append(h.clusters[:i], h.clusters[i+1:]...)
			return
		}
	}
}
