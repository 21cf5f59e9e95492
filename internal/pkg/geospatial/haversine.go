package geospatial

import "math"

const (
	earthRadiusKm = 6371.0

	// AssumedSpeedKmh is the driving speed used when no solver is available.
	AssumedSpeedKmh = 50.0
)

// HaversineKm calculates the great-circle distance in kilometers between two points
// on a spherical Earth.
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	// Rounding can push a just past 1 for antipodal points.
	a = math.Min(math.Max(a, 0), 1)

	return 2 * earthRadiusKm * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// EstimateMinutes converts a distance into a travel time at a constant speed.
func EstimateMinutes(distanceKm, speedKmh float64) float64 {
	if speedKmh <= 0 {
		return 0
	}
	return distanceKm / speedKmh * 60
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
