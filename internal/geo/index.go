package geo

import (
	"context"
	"sort"
	"sync"

	"github.com/mmcloughlin/geohash"

	"github.com/example/ridepool/internal/models"
)

// Index is the geo query capability the matcher consumes: candidate rides
// whose pickup point lies within radiusKm of point, closest first, capped
// at limit. It must never return a ride outside the radius.
type Index interface {
	FindNear(ctx context.Context, point models.Coord, radiusKm float64, limit int) ([]models.CandidateRide, error)
}

// Writer is implemented by indexes that also accept ride upserts. The HTTP
// layer feeds it when a driver posts or updates a ride.
type Writer interface {
	Upsert(ctx context.Context, ride models.CandidateRide) error
	Remove(ctx context.Context, rideID string) error
}

// MemoryIndex buckets rides by the geohash cell of their pickup point and
// scans the query cell plus its eight neighbors. Cell precision is chosen
// so the neighborhood always covers the search radius; an exact Haversine
// check then trims the corners.
type MemoryIndex struct {
	mu    sync.RWMutex
	rides map[string]models.CandidateRide // ride ID -> ride
	cells map[string]map[string]struct{}  // geohash cell -> ride IDs
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		rides: make(map[string]models.CandidateRide),
		cells: make(map[string]map[string]struct{}),
	}
}

func (m *MemoryIndex) Upsert(ctx context.Context, ride models.CandidateRide) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unlink(ride.ID)
	m.rides[ride.ID] = ride
	for _, p := range bucketPrecisions {
		c := geohash.EncodeWithPrecision(ride.Pickup.Lat, ride.Pickup.Lon, p)
		if m.cells[c] == nil {
			m.cells[c] = make(map[string]struct{})
		}
		m.cells[c][ride.ID] = struct{}{}
	}
	return nil
}

func (m *MemoryIndex) Remove(ctx context.Context, rideID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unlink(rideID)
	delete(m.rides, rideID)
	return nil
}

// unlink drops the ride from every cell bucket; caller holds the lock.
func (m *MemoryIndex) unlink(rideID string) {
	r, ok := m.rides[rideID]
	if !ok {
		return
	}
	for _, p := range bucketPrecisions {
		c := geohash.EncodeWithPrecision(r.Pickup.Lat, r.Pickup.Lon, p)
		delete(m.cells[c], rideID)
	}
}

// Bucket rides at several precisions so queries can pick the coarsest cell
// that still covers the radius with one neighbor ring.
var bucketPrecisions = []uint{3, 4, 5}

// precisionFor picks the finest geohash precision whose cell height still
// exceeds the radius, so the 3x3 neighborhood is a superset of the disc.
func precisionFor(radiusKm float64) uint {
	switch {
	case radiusKm <= 4.8:
		return 5
	case radiusKm <= 19.0:
		return 4
	default:
		return 3
	}
}

func (m *MemoryIndex) FindNear(ctx context.Context, point models.Coord, radiusKm float64, limit int) ([]models.CandidateRide, error) {
	p := precisionFor(radiusKm)
	center := geohash.EncodeWithPrecision(point.Lat, point.Lon, p)
	cells := append(geohash.Neighbors(center), center)

	type hit struct {
		ride models.CandidateRide
		dist float64
	}
	m.mu.RLock()
	var hits []hit
	seen := make(map[string]struct{})
	for _, c := range cells {
		for id := range m.cells[c] {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			r := m.rides[id]
			if d := DistanceKm(point, r.Pickup); d <= radiusKm {
				hits = append(hits, hit{ride: r, dist: d})
			}
		}
	}
	m.mu.RUnlock()

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].dist != hits[j].dist {
			return hits[i].dist < hits[j].dist
		}
		return hits[i].ride.ID < hits[j].ride.ID
	})
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	out := make([]models.CandidateRide, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.ride)
	}
	return out, nil
}
