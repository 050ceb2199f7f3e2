package pricing

import (
	"context"
	"time"

	"github.com/example/ridepool/internal/models"
	"github.com/example/ridepool/internal/route"
)

// Rates holds the base pricing configuration.
type Rates struct {
	PerKm          float64
	PerMinute      float64
	PlatformFeePct float64
}

func DefaultRates() Rates {
	return Rates{PerKm: 0.50, PerMinute: 0.10, PlatformFeePct: 0.15}
}

var rideTypeMultipliers = map[string]float64{
	"standard": 1.0,
	"premium":  1.5,
	"eco":      0.8,
	"luxury":   2.0,
}

// Estimate is a fare quote for a pickup/dropoff pair.
type Estimate struct {
	DistanceKm      float64 `json:"distance_km"`
	DurationMin     float64 `json:"estimated_duration_minutes"`
	BasePrice       float64 `json:"base_price"`
	RideMultiplier  float64 `json:"ride_type_multiplier"`
	SurgeMultiplier float64 `json:"surge_multiplier"`
	FinalPrice      float64 `json:"final_price"`
	PlatformFee     float64 `json:"platform_fee"`
	Approximate     bool    `json:"approximate,omitempty"`
}

// Estimator quotes fares from route costs, so quotes and matching agree on
// distances even when routing has fallen back to the approximation.
type Estimator struct {
	Provider route.Provider
	Rates    Rates
	// Now is swappable for tests; surge windows are clock-driven.
	Now func() time.Time
}

func NewEstimator(provider route.Provider, rates Rates) *Estimator {
	return &Estimator{Provider: provider, Rates: rates, Now: time.Now}
}

func (e *Estimator) Estimate(ctx context.Context, pickup, dropoff models.Coord, rideType string) (Estimate, error) {
	if err := pickup.Validate(); err != nil {
		return Estimate{}, err
	}
	if err := dropoff.Validate(); err != nil {
		return Estimate{}, err
	}
	cost, err := e.Provider.Cost(ctx, []models.Coord{pickup, dropoff})
	if err != nil {
		return Estimate{}, err
	}
	durationMin := cost.DurationSec / 60
	base := cost.DistanceKm*e.Rates.PerKm + durationMin*e.Rates.PerMinute

	mult, ok := rideTypeMultipliers[rideType]
	if !ok {
		mult = 1.0
	}
	surge := e.surgeMultiplier()
	final := base * mult * surge

	return Estimate{
		DistanceKm:      cost.DistanceKm,
		DurationMin:     durationMin,
		BasePrice:       base,
		RideMultiplier:  mult,
		SurgeMultiplier: surge,
		FinalPrice:      final,
		PlatformFee:     final * e.Rates.PlatformFeePct,
		Approximate:     cost.Approximate,
	}, nil
}

// surgeMultiplier applies the peak-hour and weekend-night windows.
func (e *Estimator) surgeMultiplier() float64 {
	now := e.Now().UTC()
	hour := now.Hour()
	if (now.Weekday() == time.Saturday || now.Weekday() == time.Sunday) && hour >= 22 {
		return 1.5
	}
	switch hour {
	case 7, 8, 9, 17, 18, 19:
		return 1.3
	}
	return 1.0
}
