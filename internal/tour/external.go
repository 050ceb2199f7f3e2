package tour

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/example/ridepool/internal/models"
)

// ErrOptimizerUnavailable signals that the external multi-stop optimizer
// failed; the caller recovers with the nearest-neighbor plan.
var ErrOptimizerUnavailable = errors.New("optimization provider unavailable")

// ExternalOptimizer re-orders stops with the first stop fixed. Optional
// capability: its absence or failure never breaks Optimize.
type ExternalOptimizer interface {
	Order(ctx context.Context, stops []models.Stop) ([]models.Stop, error)
}

// OSRMTripOptimizer calls OSRM's /trip service, which solves the open tour
// with a fixed start.
type OSRMTripOptimizer struct {
	Endpoint string
	Client   *http.Client
}

func NewOSRMTripOptimizer(endpoint string, timeout time.Duration) *OSRMTripOptimizer {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &OSRMTripOptimizer{Endpoint: endpoint, Client: &http.Client{Timeout: timeout}}
}

func (o *OSRMTripOptimizer) Order(ctx context.Context, stops []models.Stop) ([]models.Stop, error) {
	parts := make([]string, len(stops))
	for i, s := range stops {
		parts[i] = fmt.Sprintf("%.6f,%.6f", s.Coord.Lon, s.Coord.Lat)
	}
	url := fmt.Sprintf("%s/trip/v1/driving/%s?overview=false&source=first&roundtrip=false",
		o.Endpoint, strings.Join(parts, ";"))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOptimizerUnavailable, err)
	}
	resp, err := o.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOptimizerUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: osrm trip status %d", ErrOptimizerUnavailable, resp.StatusCode)
	}
	var out struct {
		Code      string `json:"code"`
		Waypoints []struct {
			WaypointIndex int `json:"waypoint_index"`
		} `json:"waypoints"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrOptimizerUnavailable, err)
	}
	if out.Code != "Ok" || len(out.Waypoints) != len(stops) {
		return nil, fmt.Errorf("%w: osrm trip code %q", ErrOptimizerUnavailable, out.Code)
	}
	// waypoints arrive in input order; waypoint_index is the visit position
	ordered := make([]models.Stop, len(stops))
	for i, wp := range out.Waypoints {
		if wp.WaypointIndex < 0 || wp.WaypointIndex >= len(stops) {
			return nil, fmt.Errorf("%w: bad waypoint index %d", ErrOptimizerUnavailable, wp.WaypointIndex)
		}
		ordered[wp.WaypointIndex] = stops[i]
	}
	return ordered, nil
}
