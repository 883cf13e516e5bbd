// Package nest provides the cave network model: rooms and tunnels as polygon
// regions, and the procedural generator that lays them out.
package nest

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/talgya/antnest/internal/geom"
)

// Kind distinguishes the two region categories sharing one polygon representation.
type Kind uint8

const (
	KindRoom   Kind = iota // Chamber synthesized around a node center
	KindTunnel             // Ribbon polygon connecting two room centers
)

// String returns the wire name of the kind.
func (k Kind) String() string {
	switch k {
	case KindRoom:
		return "room"
	case KindTunnel:
		return "tunnel"
	default:
		return "unknown"
	}
}

// MarshalText encodes the kind as "room" or "tunnel".
func (k Kind) MarshalText() ([]byte, error) {
	switch k {
	case KindRoom, KindTunnel:
		return []byte(k.String()), nil
	}
	return nil, fmt.Errorf("unknown region kind %d", k)
}

// UnmarshalText parses "room" or "tunnel".
func (k *Kind) UnmarshalText(b []byte) error {
	switch string(b) {
	case "room":
		*k = KindRoom
	case "tunnel":
		*k = KindTunnel
	default:
		return fmt.Errorf("unknown region kind %q", b)
	}
	return nil
}

// Region is a simple closed polygon: a room or a tunnel.
// The boundary closes implicitly from the last point back to the first.
type Region struct {
	Boundary []geom.Point `json:"points"`
	Center   geom.Point   `json:"center"` // Unset (zero) for tunnels
	Kind     Kind         `json:"type"`
	Explored bool         `json:"explored"`

	bound orb.Bound
}

// NewRegion creates a region and caches its bounding box.
func NewRegion(kind Kind, boundary []geom.Point, center geom.Point) *Region {
	r := &Region{
		Boundary: boundary,
		Center:   center,
		Kind:     kind,
	}
	r.bound = r.Ring().Bound()
	return r
}

// Contains reports whether (x, y) lies inside the polygon using the even-odd
// ray casting rule. Points exactly on an edge have no defined answer.
func (r *Region) Contains(x, y float64) bool {
	if len(r.Boundary) < 3 {
		return false
	}
	if !r.bound.IsZero() && !r.bound.Contains(orb.Point{x, y}) {
		return false
	}

	inside := false
	pts := r.Boundary
	for i, j := 0, len(pts)-1; i < len(pts); j, i = i, i+1 {
		xi, yi := pts[i].X, pts[i].Y
		xj, yj := pts[j].X, pts[j].Y
		if (yi > y) != (yj > y) && x < (xj-xi)*(y-yi)/(yj-yi)+xi {
			inside = !inside
		}
	}
	return inside
}

// ContainsPoint is Contains for a geom.Point.
func (r *Region) ContainsPoint(p geom.Point) bool {
	return r.Contains(p.X, p.Y)
}

// Ring returns the boundary as an open orb ring.
func (r *Region) Ring() orb.Ring {
	ring := make(orb.Ring, len(r.Boundary))
	for i, p := range r.Boundary {
		ring[i] = orb.Point{p.X, p.Y}
	}
	return ring
}

// Bound returns the axis-aligned bounding box of the boundary.
func (r *Region) Bound() orb.Bound {
	if r.bound.IsZero() {
		return r.Ring().Bound()
	}
	return r.bound
}

// Area returns the enclosed area regardless of winding.
func (r *Region) Area() float64 {
	return math.Abs(planar.Area(r.Ring()))
}

// Clone returns a deep copy safe to hand out beyond the owner's lock.
func (r *Region) Clone() *Region {
	c := *r
	c.Boundary = append([]geom.Point(nil), r.Boundary...)
	return &c
}
