package arcgis

import (
	"github.com/samirrijal/floodroute/internal/core/domain"
)

const (
	geometryTypePoint    = "esriGeometryPoint"
	geometryTypePolyline = "esriGeometryPolyline"

	// barrierTypeRestriction prohibits travel across the barrier.
	barrierTypeRestriction = 0
)

// SpatialReference identifies a coordinate system by well-known id.
type SpatialReference struct {
	WKID int `json:"wkid"`
}

var wgs84 = &SpatialReference{WKID: domain.WKID}

// FeatureSet is the ArcGIS JSON container for geometries plus attributes.
type FeatureSet struct {
	GeometryType     string            `json:"geometryType"`
	SpatialReference *SpatialReference `json:"spatialReference"`
	Features         []Feature         `json:"features"`
}

// Feature is one geometry with its attributes.
type Feature struct {
	Geometry   any            `json:"geometry"`
	Attributes map[string]any `json:"attributes"`
}

// PointGeometry is an ArcGIS point.
type PointGeometry struct {
	X                float64           `json:"x"`
	Y                float64           `json:"y"`
	SpatialReference *SpatialReference `json:"spatialReference,omitempty"`
}

// PolylineGeometry is an ArcGIS polyline made of one or more paths.
type PolylineGeometry struct {
	Paths            []domain.Polyline `json:"paths"`
	SpatialReference *SpatialReference `json:"spatialReference,omitempty"`
}

// StopsFeatureSet builds the two named stops "A" (origin) and "B" (destination).
func StopsFeatureSet(origin, destination domain.Point) *FeatureSet {
	stop := func(p domain.Point, name string) Feature {
		return Feature{
			Geometry:   PointGeometry{X: p.X, Y: p.Y, SpatialReference: wgs84},
			Attributes: map[string]any{"Name": name},
		}
	}
	return &FeatureSet{
		GeometryType:     geometryTypePoint,
		SpatialReference: wgs84,
		Features:         []Feature{stop(origin, "A"), stop(destination, "B")},
	}
}

// BarriersFeatureSet converts polylines into a polyline barrier feature set.
// Lines with fewer than two coordinates are dropped. The boolean is false when
// nothing routable is left.
func BarriersFeatureSet(lines []domain.Polyline) (*FeatureSet, bool) {
	var features []Feature
	for _, line := range lines {
		if !line.Routable() {
			continue
		}
		features = append(features, Feature{
			Geometry: PolylineGeometry{
				Paths:            []domain.Polyline{line},
				SpatialReference: wgs84,
			},
			Attributes: map[string]any{"BarrierType": barrierTypeRestriction},
		})
	}
	if len(features) == 0 {
		return nil, false
	}
	return &FeatureSet{
		GeometryType:     geometryTypePolyline,
		SpatialReference: wgs84,
		Features:         features,
	}, true
}
