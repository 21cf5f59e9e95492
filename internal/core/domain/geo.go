package domain

import (
	"encoding/json"
	"fmt"
	"math"
)

// WKID is the spatial reference used for every geometry in the service (WGS 84).
const WKID = 4326

// Point is a WGS 84 location. X is longitude, Y is latitude.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Valid reports whether both components are finite.
func (p Point) Valid() bool {
	return isFinite(p.X) && isFinite(p.Y)
}

// Coordinate returns the point as a [lon, lat] pair.
func (p Point) Coordinate() Coordinate {
	return Coordinate{p.X, p.Y}
}

// Coordinate is a [lon, lat] pair as it appears inside polylines.
type Coordinate [2]float64

func (c Coordinate) Lon() float64 { return c[0] }
func (c Coordinate) Lat() float64 { return c[1] }

// Polyline is an ordered sequence of coordinates.
// Lines with fewer than two coordinates are kept in storage but never
// sent to the route solver.
type Polyline []Coordinate

// Routable reports whether the line has enough vertices to act as a barrier.
func (l Polyline) Routable() bool {
	return len(l) >= 2
}

// Clone returns a copy that shares no backing array with l.
func (l Polyline) Clone() Polyline {
	if l == nil {
		return nil
	}
	out := make(Polyline, len(l))
	copy(out, l)
	return out
}

// Validate checks that every coordinate is finite.
func (l Polyline) Validate() error {
	for i, c := range l {
		if !isFinite(c[0]) || !isFinite(c[1]) {
			return fmt.Errorf("coordinate %d is not a finite number pair", i)
		}
	}
	return nil
}

// PathGeometry encodes paths the way the route solver returns them:
// {"paths": [[[x,y],...], ...]}.
func PathGeometry(paths ...Polyline) json.RawMessage {
	if paths == nil {
		paths = []Polyline{}
	}
	data, _ := json.Marshal(struct {
		Paths []Polyline `json:"paths"`
	}{Paths: paths})
	return data
}

// DecodePaths extracts the paths member of a route geometry.
func DecodePaths(geometry json.RawMessage) ([]Polyline, error) {
	if len(geometry) == 0 {
		return nil, nil
	}
	var g struct {
		Paths []Polyline `json:"paths"`
	}
	if err := json.Unmarshal(geometry, &g); err != nil {
		return nil, fmt.Errorf("decode route geometry: %w", err)
	}
	return g.Paths, nil
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
