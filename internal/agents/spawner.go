// Agent spawning: new ants start at the nest entrance with a random heading.
package agents

import (
	"math"
	"math/rand"

	"github.com/talgya/antnest/internal/geom"
)

// DefaultMarkerChance is the probability that a new agent carries the marker flag.
const DefaultMarkerChance = 0.2

// Spawner creates agents for the simulation.
type Spawner struct {
	rng          *rand.Rand
	nextID       AgentID
	MarkerChance float64
}

// NewSpawner creates an agent spawner drawing from rng.
func NewSpawner(rng *rand.Rand) *Spawner {
	return &Spawner{
		rng:          rng,
		nextID:       1,
		MarkerChance: DefaultMarkerChance,
	}
}

// Reset restarts ID issuance for a new epoch.
func (s *Spawner) Reset() {
	s.nextID = 1
}

// Spawn creates one active agent at the given position with a uniformly
// random heading.
func (s *Spawner) Spawn(at geom.Point) *Agent {
	id := s.nextID
	s.nextID++

	return &Agent{
		ID:       id,
		Position: at,
		Heading:  s.rng.Float64() * 2 * math.Pi,
		Active:   true,
		Marker:   s.rng.Float64() < s.MarkerChance,
	}
}
