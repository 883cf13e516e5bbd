// Nest generation: surface room, scattered rooms, a minimum spanning tree of
// tunnels from the surface, and a few extra loop tunnels.
package nest

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	opensimplex "github.com/ojrac/opensimplex-go"
	"github.com/zyedidia/generic/mapset"

	"github.com/talgya/antnest/internal/geom"
)

// GenConfig holds nest generation parameters.
type GenConfig struct {
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`

	// Surface room, always node 0 and the spawn point.
	SurfaceY float64 `yaml:"surface_y"`
	SurfaceW float64 `yaml:"surface_w"`
	SurfaceH float64 `yaml:"surface_h"`

	// Scattered rooms.
	RoomCount        int     `yaml:"room_count"`
	RoomMarginX      float64 `yaml:"room_margin_x"`
	RoomMarginTop    float64 `yaml:"room_margin_top"`
	RoomMarginBottom float64 `yaml:"room_margin_bottom"`
	RoomMinSize      float64 `yaml:"room_min_size"`
	RoomMaxSize      float64 `yaml:"room_max_size"`
	RoomSteps        int     `yaml:"room_steps"`
	NoiseMin         float64 `yaml:"noise_min"` // Radius multiplier range per vertex
	NoiseMax         float64 `yaml:"noise_max"`
	SmoothWalls      bool    `yaml:"smooth_walls"` // Simplex noise instead of white noise on room rims

	// Tunnels.
	TunnelWidth  float64 `yaml:"tunnel_width"`
	TunnelJitter float64 `yaml:"tunnel_jitter"` // Max perpendicular offset of interior path points
	LoopTrials   int     `yaml:"loop_trials"`
	LoopMaxDist  float64 `yaml:"loop_max_dist"`
}

// DefaultGenConfig returns the standard 3000×3000 nest with 21 rooms.
func DefaultGenConfig() GenConfig {
	return GenConfig{
		Width:            3000,
		Height:           3000,
		SurfaceY:         200,
		SurfaceW:         200,
		SurfaceH:         120,
		RoomCount:        20,
		RoomMarginX:      200,
		RoomMarginTop:    400,
		RoomMarginBottom: 200,
		RoomMinSize:      150,
		RoomMaxSize:      300,
		RoomSteps:        20,
		NoiseMin:         0.7,
		NoiseMax:         1.3,
		TunnelWidth:      60,
		TunnelJitter:     30,
		LoopTrials:       8,
		LoopMaxDist:      800,
	}
}

// SmallTestConfig returns a compact nest for rapid iteration and tests.
func SmallTestConfig() GenConfig {
	cfg := DefaultGenConfig()
	cfg.Width = 1200
	cfg.Height = 1200
	cfg.RoomCount = 6
	cfg.LoopTrials = 3
	return cfg
}

// Validate rejects configurations the generator cannot lay out.
func (c GenConfig) Validate() error {
	var errs []error
	if c.Width <= 0 || c.Height <= 0 {
		errs = append(errs, fmt.Errorf("bounds must be positive, got %gx%g", c.Width, c.Height))
	}
	if c.RoomCount < 0 {
		errs = append(errs, fmt.Errorf("room_count must not be negative, got %d", c.RoomCount))
	}
	if c.RoomSteps < 3 {
		errs = append(errs, fmt.Errorf("room_steps must be at least 3, got %d", c.RoomSteps))
	}
	if c.RoomMarginX*2 >= c.Width {
		errs = append(errs, fmt.Errorf("room_margin_x %g leaves no room inside width %g", c.RoomMarginX, c.Width))
	}
	if c.RoomMarginTop+c.RoomMarginBottom >= c.Height {
		errs = append(errs, fmt.Errorf("vertical margins leave no room inside height %g", c.Height))
	}
	if c.RoomMinSize <= 0 || c.RoomMaxSize < c.RoomMinSize {
		errs = append(errs, fmt.Errorf("room size range [%g, %g] is invalid", c.RoomMinSize, c.RoomMaxSize))
	}
	if c.NoiseMin <= 0 || c.NoiseMax < c.NoiseMin {
		errs = append(errs, fmt.Errorf("noise range [%g, %g] is invalid", c.NoiseMin, c.NoiseMax))
	}
	if c.TunnelWidth <= 0 {
		errs = append(errs, fmt.Errorf("tunnel_width must be positive, got %g", c.TunnelWidth))
	}
	if c.LoopTrials < 0 {
		errs = append(errs, fmt.Errorf("loop_trials must not be negative, got %d", c.LoopTrials))
	}
	return errors.Join(errs...)
}

// Generate builds a complete nest from scratch. All randomness comes from rng,
// so a seeded rng reproduces the same nest.
func Generate(cfg GenConfig, rng *rand.Rand) *Nest {
	n := &Nest{
		Width:  cfg.Width,
		Height: cfg.Height,
	}

	var rim opensimplex.Noise
	if cfg.SmoothWalls {
		rim = opensimplex.NewNormalized(rng.Int63())
	}

	// Surface room.
	rooms := make([]*Region, 0, cfg.RoomCount+1)
	surface := geom.Pt(cfg.Width/2, cfg.SurfaceY)
	rooms = append(rooms, n.addNode(surface, cfg.SurfaceW, cfg.SurfaceH, cfg, rng, rim))

	// Scattered rooms.
	spanX := cfg.Width - 2*cfg.RoomMarginX
	spanY := cfg.Height - cfg.RoomMarginTop - cfg.RoomMarginBottom
	sizeSpan := cfg.RoomMaxSize - cfg.RoomMinSize
	for i := 0; i < cfg.RoomCount; i++ {
		c := geom.Pt(
			cfg.RoomMarginX+rng.Float64()*spanX,
			cfg.RoomMarginTop+rng.Float64()*spanY,
		)
		w := cfg.RoomMinSize + rng.Float64()*sizeSpan
		h := cfg.RoomMinSize + rng.Float64()*sizeSpan
		rooms = append(rooms, n.addNode(c, w, h, cfg, rng, rim))
	}

	// Surface room, then tunnels, then the other rooms. Locate credits the first
	// region containing a point, so a tunnel must precede the rooms it joins.
	n.Regions = append(n.Regions, rooms[0])

	// Spanning tree: every room reachable from the surface.
	n.MSTEdges = SpanningTree(n.Nodes)
	for _, e := range n.MSTEdges {
		n.addTunnel(e, cfg, rng)
	}

	// Loops for navigational variety.
	if len(n.Nodes) > 0 {
		for k := 0; k < cfg.LoopTrials; k++ {
			a := rng.Intn(len(n.Nodes))
			b := rng.Intn(len(n.Nodes))
			if a != b && geom.Distance(n.Nodes[a], n.Nodes[b]) < cfg.LoopMaxDist {
				e := Edge{From: a, To: b}
				n.LoopEdges = append(n.LoopEdges, e)
				n.addTunnel(e, cfg, rng)
			}
		}
	}

	n.Regions = append(n.Regions, rooms[1:]...)
	n.Regions[0].Explored = true
	return n
}

// addNode builds a room polygon and records its center as the next graph node.
func (n *Nest) addNode(center geom.Point, w, h float64, cfg GenConfig, rng *rand.Rand, rim opensimplex.Noise) *Region {
	boundary := RoomPolygon(center, w, h, cfg, rng, rim)
	n.Nodes = append(n.Nodes, center)
	return NewRegion(KindRoom, boundary, center)
}

func (n *Nest) addTunnel(e Edge, cfg GenConfig, rng *rand.Rand) {
	boundary := BuildTunnel(n.Nodes[e.From], n.Nodes[e.To], cfg.TunnelWidth, cfg.TunnelJitter, rng)
	n.Regions = append(n.Regions, NewRegion(KindTunnel, boundary, geom.Point{}))
}

// RoomPolygon samples an irregular star-shaped rim around center. Vertices are
// emitted in increasing angle (counter-clockwise) so the polygon stays simple.
// One radius multiplier per vertex scales both the width and height radii.
// With a non-nil rim noise the multiplier follows smooth simplex noise around
// the circle instead of independent draws.
func RoomPolygon(center geom.Point, w, h float64, cfg GenConfig, rng *rand.Rand, rim opensimplex.Noise) []geom.Point {
	steps := cfg.RoomSteps
	if steps < 3 {
		steps = 3
	}
	span := cfg.NoiseMax - cfg.NoiseMin

	// Offset into noise space so every room samples a different stretch.
	var ox, oy float64
	if rim != nil {
		ox = rng.Float64() * 1000
		oy = rng.Float64() * 1000
	}

	pts := make([]geom.Point, 0, steps)
	for i := 0; i < steps; i++ {
		ang := float64(i) / float64(steps) * 2 * math.Pi
		var f float64
		if rim != nil {
			f = rim.Eval2(ox+math.Cos(ang)*1.5, oy+math.Sin(ang)*1.5)
		} else {
			f = rng.Float64()
		}
		noise := cfg.NoiseMin + f*span
		rx := w / 2 * noise
		ry := h / 2 * noise
		pts = append(pts, geom.Pt(center.X+math.Cos(ang)*rx, center.Y+math.Sin(ang)*ry))
	}
	return pts
}

// SpanningTree connects nodes into a minimum spanning tree grown from node 0,
// Prim style: each step adds the globally closest (reached, unreached) pair.
// Ties keep the first pair in scan order, i.e. the lowest reached index and
// then the lowest unreached index. Returns len(nodes)-1 edges.
func SpanningTree(nodes []geom.Point) []Edge {
	if len(nodes) < 2 {
		return nil
	}

	reached := mapset.New[int]()
	reached.Put(0)
	edges := make([]Edge, 0, len(nodes)-1)

	for reached.Size() < len(nodes) {
		best := Edge{From: -1, To: -1}
		minDist := math.Inf(1)
		for i := range nodes {
			if !reached.Has(i) {
				continue
			}
			for j := range nodes {
				if reached.Has(j) {
					continue
				}
				if d := geom.Distance(nodes[i], nodes[j]); d < minDist {
					minDist = d
					best = Edge{From: i, To: j}
				}
			}
		}
		if best.To < 0 {
			break // Unreachable only with NaN coordinates
		}
		reached.Put(best.To)
		edges = append(edges, best)
	}
	return edges
}
