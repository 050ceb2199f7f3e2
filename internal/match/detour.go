package match

import (
	"context"

	"github.com/example/ridepool/internal/models"
	"github.com/example/ridepool/internal/route"
)

// Calculator computes the marginal duration of inserting a passenger's
// pickup and dropoff into an existing driver route. Because its provider
// carries the local fallback, the computation is total over valid
// coordinates.
type Calculator struct {
	Provider route.Provider
}

// Detour returns the extra seconds the driver would spend absorbing the
// passenger, and whether the figure came from the approximate estimator.
// Slight negative deltas from routing noise are clamped to zero.
func (c *Calculator) Detour(ctx context.Context, driverPickup, driverDropoff, paxPickup, paxDropoff models.Coord) (float64, bool, error) {
	for _, coord := range []models.Coord{driverPickup, driverDropoff, paxPickup, paxDropoff} {
		if err := coord.Validate(); err != nil {
			return 0, false, err
		}
	}
	original, err := c.Provider.Cost(ctx, []models.Coord{driverPickup, driverDropoff})
	if err != nil {
		return 0, false, err
	}
	augmented, err := c.Provider.Cost(ctx, []models.Coord{driverPickup, paxPickup, paxDropoff, driverDropoff})
	if err != nil {
		return 0, false, err
	}
	detour := augmented.DurationSec - original.DurationSec
	if detour < 0 {
		detour = 0
	}
	return detour, original.Approximate || augmented.Approximate, nil
}
