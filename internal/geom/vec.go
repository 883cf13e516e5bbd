// Package geom provides the 2D vector primitives shared by nest generation
// and agent movement.
package geom

import (
	"fmt"
	"math"
)

// degenerateLen is the magnitude below which a direction is considered undefined.
const degenerateLen = 0.001

// Point is a 2D coordinate. Used by value everywhere.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Pt is a convenience constructor for Point.
func Pt(x, y float64) Point { return Point{X: x, Y: y} }

// Distance returns the Euclidean distance between a and b.
func Distance(a, b Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// Add returns a + b.
func Add(a, b Point) Point {
	return Point{X: a.X + b.X, Y: a.Y + b.Y}
}

// Sub returns a - b.
func Sub(a, b Point) Point {
	return Point{X: a.X - b.X, Y: a.Y - b.Y}
}

// Scale returns v scaled by s.
func Scale(v Point, s float64) Point {
	return Point{X: v.X * s, Y: v.Y * s}
}

// Len returns the magnitude of v.
func Len(v Point) float64 {
	return math.Hypot(v.X, v.Y)
}

// Lerp returns the point at fraction t along a→b.
func Lerp(a, b Point, t float64) Point {
	return Add(a, Scale(Sub(b, a), t))
}

// Normal returns the unit vector perpendicular to the segment p1→p2, obtained
// by rotating the direction 90° counter-clockwise: (dx, dy) → (−dy, dx).
// A degenerate segment (p1 == p2) yields the zero vector; callers must
// substitute their own fallback.
func Normal(p1, p2 Point) Point {
	dx := p2.X - p1.X
	dy := p2.Y - p1.Y
	l := math.Hypot(dx, dy)
	if l == 0 {
		return Point{}
	}
	return Point{X: -dy / l, Y: dx / l}
}

// Normalize returns v scaled to unit length, or fallback when v is too short
// to have a meaningful direction.
func Normalize(v, fallback Point) Point {
	l := Len(v)
	if l < degenerateLen {
		return fallback
	}
	return Scale(v, 1/l)
}

// FromAngle returns the unit vector for a heading in radians.
func FromAngle(theta float64) Point {
	return Point{X: math.Cos(theta), Y: math.Sin(theta)}
}

// String returns a compact representation for logs.
func (p Point) String() string {
	return fmt.Sprintf("(%.1f, %.1f)", p.X, p.Y)
}
