package route

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/ridepool/internal/models"
)

var (
	a = models.Coord{Lat: 51.5074, Lon: -0.1278}
	b = models.Coord{Lat: 51.5155, Lon: -0.0922}
)

func TestLocalProviderDeterministic(t *testing.T) {
	p := LocalProvider{SpeedKmh: 30}
	c1, err := p.Cost(context.Background(), []models.Coord{a, b})
	require.NoError(t, err)
	c2, err := p.Cost(context.Background(), []models.Coord{a, b})
	require.NoError(t, err)
	assert.Equal(t, c1, c2)
	assert.True(t, c1.Approximate)
	// duration must be distance at 30 km/h
	assert.InDelta(t, c1.DistanceKm/30*3600, c1.DurationSec, 1e-9)
}

func TestLocalProviderRejectsSingleWaypoint(t *testing.T) {
	p := LocalProvider{}
	_, err := p.Cost(context.Background(), []models.Coord{a})
	assert.Error(t, err)
}

func TestOSRMProviderParsesRoute(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"code":"Ok","routes":[{"distance":2700.5,"duration":420.0,"geometry":"_p~iF~ps|U_ulLnnqC"}]}`)
	}))
	defer srv.Close()

	p := NewOSRMProvider(srv.URL, time.Second)
	c, err := p.Cost(context.Background(), []models.Coord{a, b})
	require.NoError(t, err)
	assert.InDelta(t, 2.7005, c.DistanceKm, 1e-9)
	assert.Equal(t, 420.0, c.DurationSec)
	assert.False(t, c.Approximate)
	assert.NotEmpty(t, c.Geometry)
}

func TestOSRMProviderUnavailableOnBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	p := NewOSRMProvider(srv.URL, time.Second)
	_, err := p.Cost(context.Background(), []models.Coord{a, b})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestOSRMProviderUnavailableOnNoRoute(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"code":"NoRoute","routes":[]}`)
	}))
	defer srv.Close()

	p := NewOSRMProvider(srv.URL, time.Second)
	_, err := p.Cost(context.Background(), []models.Coord{a, b})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestOSRMProviderUnavailableOnConnectionFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // nothing listening anymore

	p := NewOSRMProvider(srv.URL, time.Second)
	_, err := p.Cost(context.Background(), []models.Coord{a, b})
	assert.ErrorIs(t, err, ErrUnavailable)
}

type failingProvider struct{ calls int }

func (f *failingProvider) Cost(ctx context.Context, waypoints []models.Coord) (Cost, error) {
	f.calls++
	return Cost{}, fmt.Errorf("%w: forced", ErrUnavailable)
}

// flakyProvider fails the first n calls, then serves an exact cost.
type flakyProvider struct {
	failures int
	calls    int
}

func (f *flakyProvider) Cost(ctx context.Context, waypoints []models.Coord) (Cost, error) {
	f.calls++
	if f.calls <= f.failures {
		return Cost{}, fmt.Errorf("%w: forced", ErrUnavailable)
	}
	return Cost{DistanceKm: 2, DurationSec: 240}, nil
}

func TestFallbackRecoversWithLocalApproximation(t *testing.T) {
	remote := &failingProvider{}
	f := NewFallback(remote, 30)

	c, err := f.Cost(context.Background(), []models.Coord{a, b})
	require.NoError(t, err)
	assert.True(t, c.Approximate)
	assert.Positive(t, c.DistanceKm)
	assert.Equal(t, 1, remote.calls)
}

func TestFallbackPrefersRemote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"code":"Ok","routes":[{"distance":1000,"duration":120}]}`)
	}))
	defer srv.Close()

	f := NewFallback(NewOSRMProvider(srv.URL, time.Second), 30)
	c, err := f.Cost(context.Background(), []models.Coord{a, b})
	require.NoError(t, err)
	assert.False(t, c.Approximate)
	assert.Equal(t, 1.0, c.DistanceKm)
}

func TestFallbackLocalOnlyWhenNoRemote(t *testing.T) {
	f := NewFallback(nil, 30)
	c, err := f.Cost(context.Background(), []models.Coord{a, b})
	require.NoError(t, err)
	assert.True(t, c.Approximate)
}

func TestFallbackCachesExactResults(t *testing.T) {
	remote := &flakyProvider{}
	f := NewFallback(remote, 30)
	f.Cache = NewCache(time.Minute)

	_, err := f.Cost(context.Background(), []models.Coord{a, b})
	require.NoError(t, err)
	_, err = f.Cost(context.Background(), []models.Coord{a, b})
	require.NoError(t, err)
	// the second lookup served from cache, no second remote attempt
	assert.Equal(t, 1, remote.calls)
}

func TestFallbackDoesNotCacheApproximate(t *testing.T) {
	remote := &flakyProvider{failures: 1}
	f := NewFallback(remote, 30)
	f.Cache = NewCache(time.Minute)

	c, err := f.Cost(context.Background(), []models.Coord{a, b})
	require.NoError(t, err)
	assert.True(t, c.Approximate)

	// remote is back; the approximation must not shadow it
	c, err = f.Cost(context.Background(), []models.Coord{a, b})
	require.NoError(t, err)
	assert.False(t, c.Approximate)
	assert.Equal(t, 2.0, c.DistanceKm)
	assert.Equal(t, 2, remote.calls)
}

func TestCacheExpires(t *testing.T) {
	c := NewCache(time.Millisecond)
	c.Set([]models.Coord{a, b}, Cost{DistanceKm: 1})
	time.Sleep(5 * time.Millisecond)
	_, ok := c.Get([]models.Coord{a, b})
	assert.False(t, ok)
}
