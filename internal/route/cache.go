package route

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/example/ridepool/internal/models"
)

// Cache is a small TTL cache for route costs keyed by the waypoint
// sequence. Coordinates are keyed at 6 decimal places (~0.1 m), the same
// resolution sent to OSRM.
type Cache struct {
	mu    sync.RWMutex
	store map[string]cacheEntry
	ttl   time.Duration
}

type cacheEntry struct {
	cost Cost
	ts   time.Time
}

func NewCache(ttl time.Duration) *Cache {
	return &Cache{store: make(map[string]cacheEntry), ttl: ttl}
}

func cacheKey(waypoints []models.Coord) string {
	parts := make([]string, len(waypoints))
	for i, w := range waypoints {
		parts[i] = fmt.Sprintf("%.6f,%.6f", w.Lat, w.Lon)
	}
	return strings.Join(parts, "|")
}

func (c *Cache) Get(waypoints []models.Coord) (Cost, bool) {
	k := cacheKey(waypoints)
	c.mu.RLock()
	e, ok := c.store[k]
	c.mu.RUnlock()
	if !ok {
		return Cost{}, false
	}
	if time.Since(e.ts) > c.ttl {
		c.mu.Lock()
		delete(c.store, k)
		c.mu.Unlock()
		return Cost{}, false
	}
	return e.cost, true
}

func (c *Cache) Set(waypoints []models.Coord, cost Cost) {
	k := cacheKey(waypoints)
	c.mu.Lock()
	c.store[k] = cacheEntry{cost: cost, ts: time.Now()}
	c.mu.Unlock()
}
