package viewer

import (
	"github.com/talgya/antnest/internal/engine"
	"github.com/talgya/antnest/internal/geom"
)

// CellKind classifies one terminal cell.
type CellKind uint8

const (
	CellRock CellKind = iota
	CellUnexplored
	CellExplored
	CellAnt
	CellMarker
)

// Layer is the nest sampled onto a w×h character grid. Each cell takes the
// region under its center; ants are stamped over the terrain.
type Layer struct {
	W, H int

	worldW, worldH float64
	region         []int // region index per cell, -1 for rock
	kinds          []CellKind
}

// Rasterize samples m onto a w×h grid.
func Rasterize(m *engine.MapSnapshot, w, h int) *Layer {
	if w < 0 {
		w = 0
	}
	if h < 0 {
		h = 0
	}
	l := &Layer{
		W:      w,
		H:      h,
		worldW: m.Width,
		worldH: m.Height,
		region: make([]int, w*h),
		kinds:  make([]CellKind, w*h),
	}

	for cy := 0; cy < h; cy++ {
		for cx := 0; cx < w; cx++ {
			p := l.world(cx, cy)
			idx := -1
			for i, r := range m.Rooms {
				if r.ContainsPoint(p) {
					idx = i
					break
				}
			}
			l.region[cy*w+cx] = idx
		}
	}
	l.Recolor(m)
	return l
}

// Recolor refreshes explored shading from m without resampling. m must be
// the same layout the layer was rasterized from.
func (l *Layer) Recolor(m *engine.MapSnapshot) {
	for i, idx := range l.region {
		switch {
		case idx < 0 || idx >= len(m.Rooms):
			l.kinds[i] = CellRock
		case m.Rooms[idx].Explored:
			l.kinds[i] = CellExplored
		default:
			l.kinds[i] = CellUnexplored
		}
	}
}

// At returns the terrain kind at (x, y), CellRock outside the grid.
func (l *Layer) At(x, y int) CellKind {
	if x < 0 || y < 0 || x >= l.W || y >= l.H {
		return CellRock
	}
	return l.kinds[y*l.W+x]
}

// Cell maps a world position to its grid cell.
func (l *Layer) Cell(p geom.Point) (x, y int, ok bool) {
	if l.W == 0 || l.H == 0 || l.worldW <= 0 || l.worldH <= 0 {
		return 0, 0, false
	}
	x = int(p.X / l.worldW * float64(l.W))
	y = int(p.Y / l.worldH * float64(l.H))
	if p.X < 0 || p.Y < 0 || x >= l.W || y >= l.H {
		return 0, 0, false
	}
	return x, y, true
}

// Compose returns terrain kinds with the agents of st stamped on top.
// Marker ants win over plain ants sharing a cell.
func (l *Layer) Compose(st *engine.StateSnapshot) []CellKind {
	out := append([]CellKind(nil), l.kinds...)
	if st == nil {
		return out
	}
	for _, a := range st.Agents {
		x, y, ok := l.Cell(geom.Pt(a.X, a.Y))
		if !ok {
			continue
		}
		i := y*l.W + x
		if a.IsRed {
			out[i] = CellMarker
		} else if out[i] != CellMarker {
			out[i] = CellAnt
		}
	}
	return out
}

// world returns the world position at the center of cell (cx, cy).
func (l *Layer) world(cx, cy int) geom.Point {
	return geom.Pt(
		(float64(cx)+0.5)*l.worldW/float64(l.W),
		(float64(cy)+0.5)*l.worldH/float64(l.H),
	)
}
