// Random-walk behavior. Every tick an active agent wiggles its heading,
// tries a step forward, and bounces off walls.
package agents

import (
	"math"
	"math/rand"

	"github.com/talgya/antnest/internal/geom"
)

// Terrain answers which walkable region, if any, contains a point.
// The first containing region wins when regions overlap.
type Terrain interface {
	Locate(p geom.Point) int
}

// Wander advances one agent by one tick. It returns the index of the region
// the agent stepped into, or -1 when the step was blocked and the agent
// bounced. Inactive agents do not move and report -1.
func Wander(a *Agent, t Terrain, mv MoveConfig, rng *rand.Rand) int {
	if !a.Active {
		return -1
	}

	// Wiggle: uniform in [-Wiggle, +Wiggle).
	a.Heading += (rng.Float64()*2 - 1) * mv.Wiggle

	next := geom.Add(a.Position, geom.Scale(geom.FromAngle(a.Heading), mv.Speed))
	if hit := t.Locate(next); hit >= 0 {
		a.Position = next
		a.Steps++
		return hit
	}

	// Wall: new random heading, then a small unchecked step back.
	a.Heading = rng.Float64() * 2 * math.Pi
	a.Position = geom.Sub(a.Position, geom.Scale(geom.FromAngle(a.Heading), mv.Bounce))
	a.Bounces++
	return -1
}
