package route

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	polyline "github.com/twpayne/go-polyline"

	"github.com/example/ridepool/internal/models"
)

// OSRMProvider performs route lookups against an OSRM HTTP server using the
// driving profile. Any transport error, non-2xx status, or malformed body
// maps to ErrUnavailable so callers fall back uniformly.
type OSRMProvider struct {
	Endpoint string
	Client   *http.Client
}

func NewOSRMProvider(endpoint string, timeout time.Duration) *OSRMProvider {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &OSRMProvider{Endpoint: endpoint, Client: &http.Client{Timeout: timeout}}
}

func (o *OSRMProvider) Cost(ctx context.Context, waypoints []models.Coord) (Cost, error) {
	if len(waypoints) < 2 {
		return Cost{}, fmt.Errorf("route needs at least 2 waypoints, got %d", len(waypoints))
	}
	url := fmt.Sprintf("%s/route/v1/driving/%s?overview=full&geometries=polyline",
		o.Endpoint, coordPath(waypoints))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Cost{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	resp, err := o.Client.Do(req)
	if err != nil {
		return Cost{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Cost{}, fmt.Errorf("%w: osrm status %d", ErrUnavailable, resp.StatusCode)
	}
	var out struct {
		Code   string `json:"code"`
		Routes []struct {
			Distance float64 `json:"distance"` // meters
			Duration float64 `json:"duration"` // seconds
			Geometry string  `json:"geometry"`
		} `json:"routes"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Cost{}, fmt.Errorf("%w: decode: %v", ErrUnavailable, err)
	}
	if out.Code != "Ok" || len(out.Routes) == 0 {
		return Cost{}, fmt.Errorf("%w: osrm code %q", ErrUnavailable, out.Code)
	}
	r := out.Routes[0]
	return Cost{
		DistanceKm:  r.Distance / 1000,
		DurationSec: r.Duration,
		Geometry:    decodeGeometry(r.Geometry),
	}, nil
}

// coordPath renders waypoints in OSRM's lon,lat;lon,lat form.
func coordPath(waypoints []models.Coord) string {
	parts := make([]string, len(waypoints))
	for i, w := range waypoints {
		parts[i] = fmt.Sprintf("%.6f,%.6f", w.Lon, w.Lat)
	}
	return strings.Join(parts, ";")
}

func decodeGeometry(encoded string) []models.Coord {
	if encoded == "" {
		return nil
	}
	coords, _, err := polyline.DecodeCoords([]byte(encoded))
	if err != nil {
		return nil
	}
	out := make([]models.Coord, len(coords))
	for i, c := range coords {
		out[i] = models.Coord{Lat: c[0], Lon: c[1]}
	}
	return out
}
