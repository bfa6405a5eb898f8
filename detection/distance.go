package detection

import (
	"math"

	"go-outbreak/types"
)

const (
	earthRadiusKM = 6371.0
	kmPerDegree   = 111.32
)

type DistanceMetric string

const (
	MetricHaversine DistanceMetric = "haversine"
	MetricPlanar    DistanceMetric = "planar"
)

// distanceKM returns the distance between two points in kilometres under the given metric.
func distanceKM(metric DistanceMetric, a, b types.Point) float64 {
	if metric == MetricPlanar {
		return planarDistance(a, b) * kmPerDegree
	}
	return haversineDistance(a.Lat, a.Lng, b.Lat, b.Lng)
}

// haversineDistance calculates the great-circle distance between two points
// on the earth (specified in decimal degrees).
func haversineDistance(lat1, lon1, lat2, lon2 float64) float64 {
	radLat1 := lat1 * math.Pi / 180
	radLon1 := lon1 * math.Pi / 180
	radLat2 := lat2 * math.Pi / 180
	radLon2 := lon2 * math.Pi / 180

	deltaLat := radLat2 - radLat1
	deltaLon := radLon2 - radLon1

	a := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(radLat1)*math.Cos(radLat2)*
			math.Sin(deltaLon/2)*math.Sin(deltaLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKM * c
}

// planarDistance is the euclidean distance in degrees. Cheap, and close enough
// away from the poles for map rendering.
func planarDistance(a, b types.Point) float64 {
	dLat := a.Lat - b.Lat
	dLng := a.Lng - b.Lng
	return math.Sqrt(dLat*dLat + dLng*dLng)
}
