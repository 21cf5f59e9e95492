package http

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/twpayne/go-polyline"

	"github.com/samirrijal/floodroute/internal/core/domain"
)

// floodsFeatureCollection exports flood lines as GeoJSON features.
// Degenerate lines keep their feature: one vertex becomes a Point and
// an empty line gets a null geometry.
func floodsFeatureCollection(floods []domain.FloodLine) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, fl := range floods {
		var geom orb.Geometry
		switch len(fl.Coordinates) {
		case 0:
		case 1:
			geom = orb.Point(fl.Coordinates[0])
		default:
			ls := make(orb.LineString, len(fl.Coordinates))
			for i, c := range fl.Coordinates {
				ls[i] = orb.Point(c)
			}
			geom = ls
		}
		f := geojson.NewFeature(geom)
		f.ID = fl.ID
		f.Properties["id"] = fl.ID
		fc.Append(f)
	}
	return fc
}

// encodeFirstPath returns the Google encoded polyline of the first route
// path, or "" when the geometry has no usable path.
func encodeFirstPath(geometry []byte) string {
	paths, err := domain.DecodePaths(geometry)
	if err != nil || len(paths) == 0 || len(paths[0]) == 0 {
		return ""
	}
	coords := make([][]float64, len(paths[0]))
	for i, c := range paths[0] {
		coords[i] = []float64{c.Lat(), c.Lon()}
	}
	return string(polyline.EncodeCoords(coords))
}
