package nest

import (
	"fmt"

	"github.com/talgya/antnest/internal/geom"
)

// Edge connects two room nodes by index into the room list.
type Edge struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// Nest holds one generated network of rooms and tunnels.
// Regions are ordered surface room, spanning-tree tunnels, loop tunnels, then
// the remaining rooms. Regions[0] is always the spawn room.
type Nest struct {
	Width   float64   `json:"width"`
	Height  float64   `json:"height"`
	Regions []*Region `json:"rooms"`

	Seed      int64        `json:"-"` // Seed of the rng stream that generated it, if known
	Nodes     []geom.Point `json:"-"` // Room centers; node 0 is Regions[0], node i>0 is Regions[RoomRegion(i)]
	MSTEdges  []Edge       `json:"-"` // Spanning-tree tunnels, in emission order
	LoopEdges []Edge       `json:"-"` // Extra loop tunnels, duplicates allowed
}

// Stats summarizes a nest for logs and the health endpoint.
type Stats struct {
	Rooms        int     `json:"rooms"`
	Tunnels      int     `json:"tunnels"`
	LoopTunnels  int     `json:"loop_tunnels"`
	WalkableArea float64 `json:"walkable_area"` // Sum of region areas, overlaps counted twice
}

// Start returns the spawn room, or nil for an empty nest.
func (n *Nest) Start() *Region {
	if n == nil || len(n.Regions) == 0 {
		return nil
	}
	return n.Regions[0]
}

// RoomRegion maps a graph node to its index in Regions.
func (n *Nest) RoomRegion(node int) int {
	if node == 0 {
		return 0
	}
	return len(n.MSTEdges) + len(n.LoopEdges) + node
}

// Locate returns the index of the first region containing p, or -1.
func (n *Nest) Locate(p geom.Point) int {
	for i, r := range n.Regions {
		if r.ContainsPoint(p) {
			return i
		}
	}
	return -1
}

// ExploredCount returns how many regions are marked explored.
func (n *Nest) ExploredCount() int {
	count := 0
	for _, r := range n.Regions {
		if r.Explored {
			count++
		}
	}
	return count
}

// Stats computes summary counts and area.
func (n *Nest) Stats() Stats {
	var s Stats
	for _, r := range n.Regions {
		switch r.Kind {
		case KindRoom:
			s.Rooms++
		case KindTunnel:
			s.Tunnels++
		}
		s.WalkableArea += r.Area()
	}
	s.LoopTunnels = len(n.LoopEdges)
	return s
}

// Clone returns a deep copy of the nest's regions and bounds.
func (n *Nest) Clone() *Nest {
	c := &Nest{
		Width:     n.Width,
		Height:    n.Height,
		Seed:      n.Seed,
		Regions:   make([]*Region, len(n.Regions)),
		Nodes:     append([]geom.Point(nil), n.Nodes...),
		MSTEdges:  append([]Edge(nil), n.MSTEdges...),
		LoopEdges: append([]Edge(nil), n.LoopEdges...),
	}
	for i, r := range n.Regions {
		c.Regions[i] = r.Clone()
	}
	return c
}

// String returns a summary of the nest.
func (n *Nest) String() string {
	s := n.Stats()
	return fmt.Sprintf("Nest(%gx%g, rooms=%d, tunnels=%d)", n.Width, n.Height, s.Rooms, s.Tunnels)
}
