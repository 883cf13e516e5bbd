package nest

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// GeoJSON exports the nest as a feature collection of planar polygons, one
// feature per region in region order. Rings are closed as GeoJSON requires.
func (n *Nest) GeoJSON() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	fc.BBox = geojson.NewBBox(orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{n.Width, n.Height}})

	for i, r := range n.Regions {
		ring := r.Ring()
		if len(ring) > 0 && !ring.Closed() {
			ring = append(ring, ring[0])
		}

		f := geojson.NewFeature(orb.Polygon{ring})
		f.ID = i
		f.Properties["index"] = i
		f.Properties["type"] = r.Kind.String()
		f.Properties["explored"] = r.Explored
		if r.Kind == KindRoom {
			f.Properties["center"] = []float64{r.Center.X, r.Center.Y}
		}
		fc.Append(f)
	}
	return fc
}
