package herd

import (
	"math"

	"github.com/df-mc/dragonfly/server/block/cube"
	"github.com/go-gl/mathgl/mgl64"
)

// Cluster is a connected group of members of one herd. Centroid and outer
// radius are derived from live member positions every time they are asked for.
type Cluster struct {
	members *roster
	policy  ProximityPolicy
}

func newCluster(policy ProximityPolicy) *Cluster {
	return &Cluster{members: newRoster(), policy: policy}
}

// Contains reports whether m is in the cluster.
func (c *Cluster) Contains(m Member) bool { return c.members.contains(m) }

// add puts m in the cluster. Adding a member twice is a no-op.
// Clusters are only mutated by their herd so the partition stays whole.
func (c *Cluster) add(m Member) { c.members.add(m) }

// remove takes m out of the cluster and reports whether it was there.
func (c *Cluster) remove(m Member) bool { return c.members.remove(m) }

// mergeFrom moves every member of other into c, leaving other empty.
func (c *Cluster) mergeFrom(other *Cluster) {
	if other == c {
		return
	}
	for _, m := range other.members.list {
		c.members.add(m)
	}
	other.members.clear()
}

// Len returns the member count.
func (c *Cluster) Len() int { return c.members.len() }

// Members returns a copy of the current members.
func (c *Cluster) Members() []Member { return c.members.snapshot() }

// Mean returns the arithmetic mean of member positions.
func (c *Cluster) Mean() (mgl64.Vec3, error) {
	n := c.members.len()
	if n == 0 {
		return mgl64.Vec3{}, ErrEmptyCluster
	}
	var sum mgl64.Vec3
	for _, m := range c.members.list {
		sum = sum.Add(m.Position())
	}
	fn := float64(n)
	return mgl64.Vec3{sum[0] / fn, sum[1] / fn, sum[2] / fn}, nil
}

// Centroid returns the mean position on the block grid.
func (c *Cluster) Centroid() (cube.Pos, error) {
	mean, err := c.Mean()
	if err != nil {
		return cube.Pos{}, err
	}
	return cube.PosFromVec3(mean), nil
}

// OuterRadius is the distance from the centroid within which m counts as
// being with the cluster. It grows with the square root of the population.
func (c *Cluster) OuterRadius(m Member) int {
	factor := 1 + math.Sqrt(float64(c.members.len()))
	return int(math.Round(m.Width() * factor))
}

// WithinProximity reports whether m is proximal to any current member.
func (c *Cluster) WithinProximity(m Member) bool {
	for _, other := range c.members.list {
		if c.policy.Proximal(m, other) {
			return true
		}
	}
	return false
}

func (c *Cluster) drainTo(sink *roster) {
	for _, m := range c.members.list {
		sink.add(m)
	}
	c.members.clear()
}
