package profile

import (
	"context"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/example/ridepool/internal/models"
)

// Lookup resolves a driver's trust signals. An absent profile is not an
// error: implementations return the zero profile (unrated, unverified).
type Lookup interface {
	GetProfile(ctx context.Context, driverID string) (models.DriverProfile, error)
}

// RedisLookup reads the profile hash written by the beacon consumer.
type RedisLookup struct {
	client *redis.Client
}

func NewRedisLookup(client *redis.Client) *RedisLookup {
	return &RedisLookup{client: client}
}

func (r *RedisLookup) GetProfile(ctx context.Context, driverID string) (models.DriverProfile, error) {
	meta, err := r.client.HGetAll(ctx, profileKey(driverID)).Result()
	if err != nil {
		return models.DriverProfile{}, err
	}
	var p models.DriverProfile
	if v, ok := meta["rating"]; ok {
		p.Rating, _ = strconv.ParseFloat(v, 64)
	}
	p.Verified = meta["verified"] == "true"
	if tags := meta["communities"]; tags != "" {
		p.Communities = strings.Split(tags, ",")
	}
	return p, nil
}

func profileKey(driverID string) string { return "driver:profile:" + driverID }

// StaticLookup serves profiles from a fixed map; used in tests and when no
// Redis is configured.
type StaticLookup map[string]models.DriverProfile

func (s StaticLookup) GetProfile(ctx context.Context, driverID string) (models.DriverProfile, error) {
	return s[driverID], nil
}
