// Package agents provides the ant data model, spawning, and the random-walk
// movement rule.
package agents

import (
	"github.com/talgya/antnest/internal/geom"
)

// AgentID is a unique identifier for an agent within one reset epoch.
type AgentID uint64

// Agent is a single wandering ant.
type Agent struct {
	ID AgentID `json:"id"`

	Position geom.Point `json:"position"`
	Heading  float64    `json:"heading"` // Radians

	// Active is reserved for future deactivation; every agent is active today.
	Active bool `json:"active"`

	// Marker is a cosmetic classification drawn at spawn (rendered red).
	Marker bool `json:"marker"`

	Steps   uint64 `json:"steps"`   // Committed moves
	Bounces uint64 `json:"bounces"` // Wall hits
}

// MoveConfig holds the random-walk parameters applied every tick.
type MoveConfig struct {
	Speed  float64 `yaml:"speed"`  // Distance of a committed step
	Wiggle float64 `yaml:"wiggle"` // Max heading perturbation per tick, radians
	Bounce float64 `yaml:"bounce"` // Distance stepped back after a wall hit
}

// DefaultMoveConfig returns the standard ant gait.
func DefaultMoveConfig() MoveConfig {
	return MoveConfig{
		Speed:  3,
		Wiggle: 0.1,
		Bounce: 1,
	}
}
