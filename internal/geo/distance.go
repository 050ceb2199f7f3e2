package geo

import (
	"math"

	"github.com/example/ridepool/internal/models"
)

// earthRadiusKm is the mean Earth radius used by the Haversine formula.
const earthRadiusKm = 6371.0

// DistanceKm returns the great-circle distance between two coordinates in
// kilometers. Pure and total: symmetric, non-negative, zero for identical
// points.
func DistanceKm(a, b models.Coord) float64 {
	dLat := radians(b.Lat - a.Lat)
	dLon := radians(b.Lon - a.Lon)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(radians(a.Lat))*math.Cos(radians(b.Lat))*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return earthRadiusKm * c
}

// PathDistanceKm sums the leg distances of an ordered waypoint sequence.
func PathDistanceKm(waypoints []models.Coord) float64 {
	var total float64
	for i := 1; i < len(waypoints); i++ {
		total += DistanceKm(waypoints[i-1], waypoints[i])
	}
	return total
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }
