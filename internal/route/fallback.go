package route

import (
	"context"
	"errors"

	"github.com/example/ridepool/internal/models"
	"github.com/example/ridepool/internal/observability"
)

// Fallback tries the remote provider first and transparently recovers with
// the local approximation on ErrUnavailable. Matching and optimization must
// never fail just because routing is down, so Fallback itself only errors
// on malformed waypoint lists.
type Fallback struct {
	Remote Provider // optional; nil means local-only
	Local  LocalProvider
	Cache  *Cache // optional
}

func NewFallback(remote Provider, speedKmh float64) *Fallback {
	return &Fallback{Remote: remote, Local: LocalProvider{SpeedKmh: speedKmh}}
}

func (f *Fallback) Cost(ctx context.Context, waypoints []models.Coord) (Cost, error) {
	if f.Cache != nil {
		if c, ok := f.Cache.Get(waypoints); ok {
			return c, nil
		}
	}
	if f.Remote != nil {
		c, err := f.Remote.Cost(ctx, waypoints)
		if err == nil {
			if f.Cache != nil {
				f.Cache.Set(waypoints, c)
			}
			return c, nil
		}
		if !errors.Is(err, ErrUnavailable) {
			return Cost{}, err
		}
		observability.RouteFallbacks.Inc()
	}
	// approximate costs are never cached so the remote is retried on the
	// next lookup instead of serving stale approximations for a full TTL
	return f.Local.Cost(ctx, waypoints)
}
