package world

import (
	"fmt"
	"math"

	"github.com/df-mc/dragonfly/server/block/cube"
	"github.com/go-gl/mathgl/mgl64"
)

// Map holds the terrain of one dimension.
type Map struct {
	Dimension string                  `json:"dimension"`
	Columns   map[ColumnCoord]*Column `json:"-"`
	Radius    int                     `json:"radius"` // Columns span [-Radius, Radius] on both axes
	SeaLevel  int                     `json:"sea_level"`
}

// NewMap creates an empty map.
func NewMap(dimension string, radius, seaLevel int) *Map {
	return &Map{
		Dimension: dimension,
		Columns:   make(map[ColumnCoord]*Column),
		Radius:    radius,
		SeaLevel:  seaLevel,
	}
}

// Get returns the column at x, z, or nil if out of bounds.
func (m *Map) Get(x, z int) *Column {
	return m.Columns[ColumnCoord{X: x, Z: z}]
}

// Set places a column.
func (m *Map) Set(c *Column) {
	m.Columns[c.Coord] = c
}

// InBounds returns true if the column is within the map radius.
func (m *Map) InBounds(x, z int) bool {
	return abs(x) <= m.Radius && abs(z) <= m.Radius
}

// Surface returns the first air block above the column at x, z.
func (m *Map) Surface(x, z int) (cube.Pos, bool) {
	c := m.Get(x, z)
	if c == nil {
		return cube.Pos{}, false
	}
	return cube.Pos{x, c.Height + 1, z}, true
}

// Walkable reports whether an agent may stand on the column at x, z.
func (m *Map) Walkable(x, z int) bool {
	c := m.Get(x, z)
	return c != nil && c.Walkable()
}

// Ground snaps a continuous position onto the surface of the column under
// it, keeping the horizontal offset inside the block.
func (m *Map) Ground(v mgl64.Vec3) mgl64.Vec3 {
	x, z := int(math.Floor(v[0])), int(math.Floor(v[2]))
	surface, ok := m.Surface(x, z)
	if !ok {
		return v
	}
	return mgl64.Vec3{v[0], float64(surface[1]), v[2]}
}

// Clamp pulls a block position back inside the map bounds.
func (m *Map) Clamp(p cube.Pos) cube.Pos {
	p[0] = clampInt(p[0], -m.Radius, m.Radius)
	p[2] = clampInt(p[2], -m.Radius, m.Radius)
	return p
}

// ColumnCount returns the total number of columns in the map.
func (m *Map) ColumnCount() int {
	return len(m.Columns)
}

// String returns a summary of the map.
func (m *Map) String() string {
	return fmt.Sprintf("Map(dimension=%s, radius=%d, columns=%d)", m.Dimension, m.Radius, m.ColumnCount())
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
