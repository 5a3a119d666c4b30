package herd

import (
	"fmt"
	"math"
)

// RadiusMode selects whose radius decides whether two members are close.
type RadiusMode uint8

const (
	// RadiusMax uses the larger of both members' radii, so the relation is
	// symmetric.
	RadiusMax RadiusMode = iota
	// RadiusFirst uses only the querying member's radius. Not symmetric when
	// widths differ.
	RadiusFirst
)

// ParseRadiusMode maps "max" and "first" to a RadiusMode.
func ParseRadiusMode(s string) (RadiusMode, error) {
	switch s {
	case "", "max":
		return RadiusMax, nil
	case "first":
		return RadiusFirst, nil
	default:
		return RadiusMax, fmt.Errorf("unknown proximity mode %q", s)
	}
}

func (m RadiusMode) String() string {
	if m == RadiusFirst {
		return "first"
	}
	return "max"
}

// ProximityPolicy decides when two members are close enough to be
// connected in the cluster graph.
type ProximityPolicy struct {
	MinRadius float64 // Floor for small species, in blocks
	Scale     float64 // Radius as a multiple of member width
	Mode      RadiusMode
}

// Radius returns the proximity radius for a member of the given width.
func (p ProximityPolicy) Radius(width float64) float64 {
	return math.Max(p.MinRadius, width*p.Scale)
}

// Proximal reports whether b is strictly inside a's proximity radius.
// Exactly on the boundary is not proximal.
func (p ProximityPolicy) Proximal(a, b Member) bool {
	r := p.Radius(a.Width())
	if p.Mode == RadiusMax {
		r = math.Max(r, p.Radius(b.Width()))
	}
	return a.Position().Sub(b.Position()).LenSqr() < r*r
}
