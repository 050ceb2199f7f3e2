package route

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/ridepool/internal/geo"
	"github.com/example/ridepool/internal/models"
)

// ErrUnavailable signals that an external routing call failed or timed out.
// Callers recover it with the local approximation; it never reaches a user.
var ErrUnavailable = errors.New("route provider unavailable")

// Cost is the travel cost of a route through an ordered waypoint sequence.
type Cost struct {
	DistanceKm  float64
	DurationSec float64
	// Approximate marks costs derived from the local constant-speed
	// estimate rather than real routing.
	Approximate bool
	// Geometry is the decoded route shape when the provider returns one.
	Geometry []models.Coord
}

// Provider computes route costs. Implementations: OSRMProvider (remote),
// LocalProvider (haversine approximation), Fallback (remote with local
// recovery).
type Provider interface {
	Cost(ctx context.Context, waypoints []models.Coord) (Cost, error)
}

// DefaultSpeedKmh is the assumed average driving speed for the local
// approximation, matching the estimate used throughout pricing.
const DefaultSpeedKmh = 30.0

// LocalProvider sums Haversine leg distances and derives duration from a
// constant average speed. It never fails.
type LocalProvider struct {
	SpeedKmh float64
}

func (l LocalProvider) Cost(ctx context.Context, waypoints []models.Coord) (Cost, error) {
	if len(waypoints) < 2 {
		return Cost{}, fmt.Errorf("route needs at least 2 waypoints, got %d", len(waypoints))
	}
	speed := l.SpeedKmh
	if speed <= 0 {
		speed = DefaultSpeedKmh
	}
	dist := geo.PathDistanceKm(waypoints)
	return Cost{
		DistanceKm:  dist,
		DurationSec: dist / speed * 3600,
		Approximate: true,
	}, nil
}
