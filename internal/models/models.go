package models

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidCoordinates is returned when a latitude/longitude pair is outside
// the WGS84 range, or when a request carries a non-positive radius or detour.
var ErrInvalidCoordinates = errors.New("invalid coordinates")

type Coord struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

func (c Coord) Valid() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lon >= -180 && c.Lon <= 180
}

func (c Coord) Validate() error {
	if !c.Valid() {
		return fmt.Errorf("%w: lat=%f lon=%f", ErrInvalidCoordinates, c.Lat, c.Lon)
	}
	return nil
}

// Ride statuses. Matching only ever considers StatusActive candidates;
// the rest exist for the lifecycle endpoints and the store.
const (
	StatusActive     = "active"
	StatusPending    = "pending"
	StatusAccepted   = "accepted"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
)

// DriverProfile carries the trust signals used by the ranker. A missing
// profile ranks as the zero value: unrated, unverified, no communities.
type DriverProfile struct {
	Rating      float64  `json:"rating"` // 0..5
	Verified    bool     `json:"verified"`
	Communities []string `json:"communities"`
}

// CandidateRide is an immutable snapshot of a driver's posted ride at
// matching time. Matching never mutates it.
type CandidateRide struct {
	ID       string         `json:"id"`
	DriverID string         `json:"driver_id"`
	Pickup   Coord          `json:"pickup"`
	Dropoff  Coord          `json:"dropoff"`
	Status   string         `json:"status"`
	Profile  *DriverProfile `json:"profile,omitempty"`
}

type CommunityFilter struct {
	Tags                []string `json:"tags"`
	TrustScoreThreshold float64  `json:"trust_score_threshold"`
}

type MatchRequest struct {
	Pickup           Coord            `json:"pickup"`
	Dropoff          Coord            `json:"dropoff"`
	RadiusKm         float64          `json:"radius_km"`
	MaxDetourMinutes float64          `json:"max_detour_minutes"`
	Community        *CommunityFilter `json:"community,omitempty"`
}

const (
	DefaultRadiusKm         = 5.0
	DefaultMaxDetourMinutes = 10.0
	DefaultTrustThreshold   = 3.0
)

// ApplyDefaults fills unset numeric fields. Zero means "not provided" for
// radius and detour since neither is meaningful at zero.
func (r *MatchRequest) ApplyDefaults() {
	if r.RadiusKm == 0 {
		r.RadiusKm = DefaultRadiusKm
	}
	if r.MaxDetourMinutes == 0 {
		r.MaxDetourMinutes = DefaultMaxDetourMinutes
	}
	if r.Community != nil && r.Community.TrustScoreThreshold == 0 {
		r.Community.TrustScoreThreshold = DefaultTrustThreshold
	}
}

func (r *MatchRequest) Validate() error {
	if err := r.Pickup.Validate(); err != nil {
		return err
	}
	if err := r.Dropoff.Validate(); err != nil {
		return err
	}
	if r.RadiusKm <= 0 {
		return fmt.Errorf("%w: radius_km must be > 0", ErrInvalidCoordinates)
	}
	if r.MaxDetourMinutes <= 0 {
		return fmt.Errorf("%w: max_detour_minutes must be > 0", ErrInvalidCoordinates)
	}
	return nil
}

// ScoredCandidate is a ranked match result.
type ScoredCandidate struct {
	Ride          CandidateRide `json:"ride"`
	DetourSeconds float64       `json:"detour_seconds"`
	DistanceKm    float64       `json:"distance_km"`
	Score         float64       `json:"score"`
	Approximate   bool          `json:"approximate"`
}

// Stop types for tour optimization.
const (
	StopCurrentLocation = "current_location"
	StopPickup          = "pickup"
	StopDropoff         = "dropoff"
)

// Stop is an ephemeral waypoint in a driver's tour; never persisted.
type Stop struct {
	Type     string `json:"type"`
	Coord    Coord  `json:"coord"`
	RideID   string `json:"ride_id,omitempty"`
	Priority int    `json:"priority,omitempty"`
}

type RoutePlan struct {
	Stops             []Stop  `json:"stops"`
	TotalDistanceKm   float64 `json:"total_distance_km"`
	TotalDurationMin  float64 `json:"estimated_duration_minutes"`
	FuelLiters        float64 `json:"fuel_liters,omitempty"`
	Algorithm         string  `json:"algorithm"`
	EfficiencyGainPct float64 `json:"efficiency_gain_pct,omitempty"`
	Approximate       bool    `json:"approximate,omitempty"`
}

// Ride is the persisted lifecycle entity behind a CandidateRide snapshot.
type Ride struct {
	ID          string
	DriverID    string
	PassengerID string
	Pickup      Coord
	Dropoff     Coord
	Status      string
	Seats       int
	PaymentID   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Driver is the location beacon payload published to Kafka and mirrored
// into the Redis geo set by the consumer.
type Driver struct {
	ID      string    `json:"id"`
	Loc     Coord     `json:"loc"`
	Rating  float64   `json:"rating"`
	Online  bool      `json:"online"`
	Updated time.Time `json:"updated"`
}

// MatchOffer is what gets dispatched to a driver when a passenger picks
// their ride.
type MatchOffer struct {
	RideID        string  `json:"ride_id"`
	DriverID      string  `json:"driver_id"`
	PassengerID   string  `json:"passenger_id"`
	DetourSeconds float64 `json:"detour_seconds"`
	DistanceKm    float64 `json:"distance_km"`
	Score         float64 `json:"score"`
}
