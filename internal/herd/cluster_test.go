package herd

import (
	"testing"

	"github.com/df-mc/dragonfly/server/block/cube"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClusterMembership(t *testing.T) {
	c := newCluster(DefaultConfig().Policy())
	a, b := newStub(1, 0, 0, 0), newStub(2, 1, 0, 0)

	c.add(a)
	c.add(b)
	c.add(a)
	assert.Equal(t, 2, c.Len())
	assert.True(t, c.Contains(a))

	assert.True(t, c.remove(a))
	assert.False(t, c.remove(a))
	assert.False(t, c.Contains(a))
	assert.Equal(t, []uint64{2}, ids(c.Members()))
}

func TestClusterMerge(t *testing.T) {
	p := DefaultConfig().Policy()
	left, right := newCluster(p), newCluster(p)
	left.add(newStub(1, 0, 0, 0))
	right.add(newStub(2, 1, 0, 0))
	right.add(newStub(3, 2, 0, 0))

	left.mergeFrom(right)

	assert.Equal(t, []uint64{1, 2, 3}, ids(left.Members()))
	assert.Equal(t, 0, right.Len())
}

func TestClusterCentroid(t *testing.T) {
	c := newCluster(DefaultConfig().Policy())
	c.add(newStub(1, 0, 64, 0))
	c.add(newStub(2, 1, 64, 3))
	c.add(newStub(3, 4, 65, -2))
	c.add(newStub(4, 5, 64, 1))

	mean, err := c.Mean()
	require.NoError(t, err)
	assert.InDelta(t, 2.5, mean[0], 1e-9)
	assert.InDelta(t, 64.25, mean[1], 1e-9)
	assert.InDelta(t, 0.5, mean[2], 1e-9)

	center, err := c.Centroid()
	require.NoError(t, err)
	assert.Equal(t, cube.Pos{2, 64, 0}, center)
}

func TestClusterCentroidEmpty(t *testing.T) {
	c := newCluster(DefaultConfig().Policy())

	_, err := c.Centroid()
	assert.ErrorIs(t, err, ErrEmptyCluster)
}

func TestClusterOuterRadius(t *testing.T) {
	c := newCluster(DefaultConfig().Policy())
	for i := uint64(1); i <= 4; i++ {
		c.add(newStub(i, float64(i), 0, 0))
	}
	m := newStub(9, 0, 0, 0)
	assert.Equal(t, 3, c.OuterRadius(m), "width 1 × (1+√4)")

	m.width = 2.5
	assert.Equal(t, 8, c.OuterRadius(m), "7.5 rounds half away from zero")
}

func TestClusterWithinProximity(t *testing.T) {
	c := newCluster(DefaultConfig().Policy())
	c.add(newStub(1, 0, 0, 0))
	c.add(newStub(2, 10, 0, 0))

	assert.True(t, c.WithinProximity(newStub(3, 13, 0, 0)))
	assert.False(t, c.WithinProximity(newStub(4, 4, 0, 0)), "4 from 0 is on the boundary")
	assert.True(t, c.WithinProximity(newStub(5, 6.5, 0, 0)))
}
