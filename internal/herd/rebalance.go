package herd

import "time"

// RebalanceStats summarises one herd after a rebalance.
type RebalanceStats struct {
	Key      Key           `json:"key"`
	Members  int           `json:"members"`
	Clusters int           `json:"clusters"`
	Noise    int           `json:"noise"`
	Largest  int           `json:"largest"`
	Elapsed  time.Duration `json:"elapsed"`
}

// Rebalance recomputes the partition from scratch. Every cluster it leaves
// behind is a connected component of the proximity graph with at least
// minSize members; smaller components become noise.
func (h *Herd) Rebalance() RebalanceStats {
	start := time.Now()

	fresh := connectedComponents(h.members.snapshot(), h.policy)

	h.noise.clear()
	h.clusters = make([]*Cluster, 0, len(fresh))
	for _, c := range fresh {
		if c.Len() < h.minSize {
			c.drainTo(h.noise)
			continue
		}
		h.clusters = append(h.clusters, c)
	}

	stats := RebalanceStats{
		Key:      h.key,
		Members:  h.members.len(),
		Clusters: len(h.clusters),
		Noise:    h.noise.len(),
		Elapsed:  time.Since(start),
	}
	if l := h.Largest(); l != nil {
		stats.Largest = l.Len()
	}
	return stats
}

// connectedComponents flood-fills the proximity graph over pool with an
// explicit stack. Pool is consumed.
func connectedComponents(pool []Member, policy ProximityPolicy) []*Cluster {
	var clusters []*Cluster
	var stack []Member

	for len(pool) > 0 {
		seed := pool[0]
		pool = pool[1:]

		c := newCluster(policy)
		clusters = append(clusters, c)
		stack = append(stack[:0], seed)

		for len(stack) > 0 {
			p := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			c.add(p)

			// Extract every pool member close to p, preserving pool order.
			kept := pool[:0]
			for _, q := range pool {
				if policy.Proximal(p, q) {
					stack = append(stack, q)
				} else {
					kept = append(kept, q)
				}
			}
			pool = kept
		}
	}
	return clusters
}
