package nest

import (
	"math/rand"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zyedidia/generic/mapset"

	"github.com/talgya/antnest/internal/geom"
)

func TestGenerateReproducible(t *testing.T) {
	cfg := DefaultGenConfig()
	n1 := Generate(cfg, rand.New(rand.NewSource(12345)))
	n2 := Generate(cfg, rand.New(rand.NewSource(12345)))

	require.Equal(t, len(n1.Regions), len(n2.Regions))
	for i := range n1.Regions {
		assert.Equal(t, n1.Regions[i].Boundary, n2.Regions[i].Boundary, "region %d", i)
		assert.Equal(t, n1.Regions[i].Kind, n2.Regions[i].Kind, "region %d", i)
	}
	assert.Equal(t, n1.MSTEdges, n2.MSTEdges)
	assert.Equal(t, n1.LoopEdges, n2.LoopEdges)
}

func TestGenerateDifferentSeeds(t *testing.T) {
	cfg := DefaultGenConfig()
	n1 := Generate(cfg, rand.New(rand.NewSource(1)))
	n2 := Generate(cfg, rand.New(rand.NewSource(2)))
	assert.NotEqual(t, n1.Nodes, n2.Nodes)
}

func TestGenerateLayout(t *testing.T) {
	cfg := DefaultGenConfig()
	for seed := int64(1); seed <= 25; seed++ {
		n := Generate(cfg, rand.New(rand.NewSource(seed)))
		nodes := cfg.RoomCount + 1

		require.Len(t, n.Nodes, nodes)
		require.Len(t, n.Regions, nodes+len(n.MSTEdges)+len(n.LoopEdges))
		assert.LessOrEqual(t, len(n.LoopEdges), cfg.LoopTrials)

		// Surface room, then tunnels, then the other rooms.
		tunnels := len(n.MSTEdges) + len(n.LoopEdges)
		for i, r := range n.Regions {
			want := KindRoom
			if i >= 1 && i <= tunnels {
				want = KindTunnel
			}
			assert.Equal(t, want, r.Kind, "seed %d region %d", seed, i)
			assert.GreaterOrEqual(t, len(r.Boundary), 3)
		}
		for node, c := range n.Nodes {
			assert.Equal(t, c, n.Regions[n.RoomRegion(node)].Center, "seed %d node %d", seed, node)
		}

		// Surface room is the spawn point and the only explored region.
		assert.Equal(t, geom.Pt(cfg.Width/2, cfg.SurfaceY), n.Start().Center)
		assert.Equal(t, 1, n.ExploredCount())
		assert.True(t, n.Regions[0].Explored)

		// Room centers stay inside the margins.
		for _, c := range n.Nodes[1:] {
			assert.GreaterOrEqual(t, c.X, cfg.RoomMarginX)
			assert.Less(t, c.X, cfg.Width-cfg.RoomMarginX)
			assert.GreaterOrEqual(t, c.Y, cfg.RoomMarginTop)
			assert.Less(t, c.Y, cfg.Height-cfg.RoomMarginBottom)
		}

		// Loop tunnels join distinct, nearby rooms.
		for _, e := range n.LoopEdges {
			assert.NotEqual(t, e.From, e.To)
			assert.Less(t, geom.Distance(n.Nodes[e.From], n.Nodes[e.To]), cfg.LoopMaxDist)
		}
	}
}

func TestSpanningTreeConnected(t *testing.T) {
	cfg := DefaultGenConfig()
	for seed := int64(1); seed <= 50; seed++ {
		n := Generate(cfg, rand.New(rand.NewSource(seed)))
		nodes := len(n.Nodes)
		require.Len(t, n.MSTEdges, nodes-1, "seed %d", seed)

		// Prim grows from node 0: every edge starts at an already reached
		// node and reaches a new one.
		reached := mapset.New[int]()
		reached.Put(0)
		for _, e := range n.MSTEdges {
			assert.True(t, reached.Has(e.From), "seed %d edge %v", seed, e)
			assert.False(t, reached.Has(e.To), "seed %d edge %v", seed, e)
			reached.Put(e.To)
		}
		assert.Equal(t, nodes, reached.Size())
	}
}

func TestSpanningTreeTieBreak(t *testing.T) {
	nodes := []geom.Point{geom.Pt(0, 0), geom.Pt(1, 0), geom.Pt(-1, 0), geom.Pt(0, 1)}
	edges := SpanningTree(nodes)
	assert.Equal(t, []Edge{{From: 0, To: 1}, {From: 0, To: 2}, {From: 0, To: 3}}, edges)
}

func TestSpanningTreeIsMinimal(t *testing.T) {
	// Points on a line: the MST is the chain in x order.
	nodes := []geom.Point{geom.Pt(0, 0), geom.Pt(30, 0), geom.Pt(10, 0), geom.Pt(20, 0)}
	edges := SpanningTree(nodes)

	total := 0.0
	for _, e := range edges {
		total += geom.Distance(nodes[e.From], nodes[e.To])
	}
	assert.InDelta(t, 30.0, total, 1e-9)
	assert.Equal(t, []Edge{{From: 0, To: 2}, {From: 2, To: 3}, {From: 3, To: 1}}, edges)
}

func TestSpanningTreeSmall(t *testing.T) {
	assert.Empty(t, SpanningTree(nil))
	assert.Empty(t, SpanningTree([]geom.Point{geom.Pt(1, 1)}))
}

func TestRoomPolygonCounterClockwise(t *testing.T) {
	for _, smooth := range []bool{false, true} {
		cfg := DefaultGenConfig()
		cfg.SmoothWalls = smooth
		n := Generate(cfg, rand.New(rand.NewSource(99)))
		for i, r := range n.Regions {
			if r.Kind != KindRoom {
				continue
			}
			require.Len(t, r.Boundary, cfg.RoomSteps)
			assert.Equal(t, orb.CCW, r.Ring().Orientation(), "smooth=%v room %d", smooth, i)
			assert.True(t, r.ContainsPoint(r.Center), "smooth=%v room %d", smooth, i)
		}
	}
}

func TestRoomPolygonNoiseRange(t *testing.T) {
	cfg := DefaultGenConfig()
	center := geom.Pt(500, 500)
	w, h := 200.0, 200.0

	// Circular rooms make the per-vertex multiplier easy to recover.
	pts := RoomPolygon(center, w, h, cfg, rand.New(rand.NewSource(3)), nil)
	for _, p := range pts {
		f := geom.Distance(center, p) / (w / 2)
		assert.GreaterOrEqual(t, f, cfg.NoiseMin-1e-9)
		assert.Less(t, f, cfg.NoiseMax+1e-9)
	}
}

func TestGenerateNoRooms(t *testing.T) {
	cfg := DefaultGenConfig()
	cfg.RoomCount = 0
	n := Generate(cfg, rand.New(rand.NewSource(5)))

	require.Len(t, n.Regions, 1)
	assert.Empty(t, n.MSTEdges)
	assert.Empty(t, n.LoopEdges)
	assert.True(t, n.Regions[0].Explored)
}

func TestNestStats(t *testing.T) {
	cfg := DefaultGenConfig()
	n := Generate(cfg, rand.New(rand.NewSource(8)))
	s := n.Stats()

	assert.Equal(t, cfg.RoomCount+1, s.Rooms)
	assert.Equal(t, len(n.MSTEdges)+len(n.LoopEdges), s.Tunnels)
	assert.Equal(t, len(n.LoopEdges), s.LoopTunnels)
	assert.Greater(t, s.WalkableArea, 0.0)
}

func TestNestLocate(t *testing.T) {
	n := Generate(DefaultGenConfig(), rand.New(rand.NewSource(4)))
	assert.Equal(t, 0, n.Locate(n.Start().Center))
	assert.Equal(t, -1, n.Locate(geom.Pt(-10, -10)))
	assert.Equal(t, -1, n.Locate(geom.Pt(n.Width+100, n.Height+100)))
}

// creditable reports whether some point of r's bounding box locates to index i,
// scanning coarsely first and then at unit spacing.
func creditable(n *Nest, i int) bool {
	b := n.Regions[i].Bound()
	for _, step := range []float64{4, 1} {
		for y := b.Min[1]; y <= b.Max[1]; y += step {
			for x := b.Min[0]; x <= b.Max[0]; x += step {
				if n.Locate(geom.Pt(x, y)) == i {
					return true
				}
			}
		}
	}
	return false
}

func TestEveryRegionCreditable(t *testing.T) {
	configs := map[string]GenConfig{
		"default": DefaultGenConfig(),
		"small":   SmallTestConfig(),
	}
	for name, cfg := range configs {
		for seed := int64(1); seed <= 8; seed++ {
			n := Generate(cfg, rand.New(rand.NewSource(seed)))
			for i := range n.Regions {
				assert.True(t, creditable(n, i), "%s seed %d: region %d (%s) is shadowed by earlier regions",
					name, seed, i, n.Regions[i].Kind)
			}
		}
	}
}

func TestNestClone(t *testing.T) {
	n := Generate(SmallTestConfig(), rand.New(rand.NewSource(4)))
	c := n.Clone()
	c.Regions[1].Explored = true
	c.MSTEdges[0] = Edge{From: 99, To: 98}

	assert.False(t, n.Regions[1].Explored)
	assert.NotEqual(t, 99, n.MSTEdges[0].From)
	assert.Equal(t, n.Stats(), Generate(SmallTestConfig(), rand.New(rand.NewSource(4))).Stats())
}

func TestValidate(t *testing.T) {
	require.NoError(t, DefaultGenConfig().Validate())
	require.NoError(t, SmallTestConfig().Validate())

	bad := DefaultGenConfig()
	bad.RoomSteps = 2
	bad.TunnelWidth = 0
	err := bad.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "room_steps")
	assert.Contains(t, err.Error(), "tunnel_width")

	bad = DefaultGenConfig()
	bad.RoomMarginX = bad.Width
	assert.Error(t, bad.Validate())
}
