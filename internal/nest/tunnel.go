package nest

import (
	"math/rand"

	"github.com/talgya/antnest/internal/geom"
)

// fallbackNormal is used wherever the averaged path normal collapses.
var fallbackNormal = geom.Pt(0, 1)

// BuildTunnel returns the ribbon polygon for a tunnel of the given width from
// p1 to p2. The centerline runs p1, two interior points at 1/3 and 2/3 pushed
// sideways by up to ±jitter, then p2. Each path point is offset by ±width/2
// along the average of its adjacent segment normals; the boundary is the left
// side followed by the right side reversed.
func BuildTunnel(p1, p2 geom.Point, width, jitter float64, rng *rand.Rand) []geom.Point {
	path := tunnelPath(p1, p2, jitter, rng)
	return ribbon(path, width)
}

func tunnelPath(p1, p2 geom.Point, jitter float64, rng *rand.Rand) []geom.Point {
	path := make([]geom.Point, 0, 4)
	path = append(path, p1)

	perp := geom.Normal(p1, p2)
	for i := 1; i <= 2; i++ {
		p := geom.Lerp(p1, p2, float64(i)/3)
		if perp != (geom.Point{}) {
			offset := (rng.Float64()*2 - 1) * jitter
			p = geom.Add(p, geom.Scale(perp, offset))
		}
		path = append(path, p)
	}
	return append(path, p2)
}

// ribbon offsets a polyline to both sides and stitches the sides into one
// simple polygon.
func ribbon(path []geom.Point, width float64) []geom.Point {
	half := width / 2
	left := make([]geom.Point, 0, len(path))
	right := make([]geom.Point, 0, len(path))

	for i, curr := range path {
		prev, next := curr, curr
		if i > 0 {
			prev = path[i-1]
		}
		if i < len(path)-1 {
			next = path[i+1]
		}

		// Endpoints have one real segment; its normal is reused for both halves.
		n1 := geom.Normal(prev, curr)
		n2 := geom.Normal(curr, next)
		if i == 0 {
			n1 = n2
		}
		if i == len(path)-1 {
			n2 = n1
		}
		n := geom.Normalize(geom.Scale(geom.Add(n1, n2), 0.5), fallbackNormal)

		off := geom.Scale(n, half)
		left = append(left, geom.Add(curr, off))
		right = append(right, geom.Sub(curr, off))
	}

	boundary := make([]geom.Point, 0, 2*len(path))
	boundary = append(boundary, left...)
	for i := len(right) - 1; i >= 0; i-- {
		boundary = append(boundary, right[i])
	}
	return boundary
}
