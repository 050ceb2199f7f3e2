package geo

import (
	"context"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/example/ridepool/internal/models"
)

// RedisIndex stores ride pickup points in a Redis GEO set and the rest of
// the candidate snapshot in a per-ride hash, mirroring how the consumer
// writes driver beacons.
type RedisIndex struct {
	client *redis.Client
	key    string
}

func NewRedisIndex(addr, password, key string) *RedisIndex {
	c := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	return &RedisIndex{client: c, key: key}
}

// NewRedisIndexWithClient wires an existing client, used by tests and the
// consumer which already hold one.
func NewRedisIndexWithClient(c *redis.Client, key string) *RedisIndex {
	return &RedisIndex{client: c, key: key}
}

func (r *RedisIndex) Upsert(ctx context.Context, ride models.CandidateRide) error {
	if err := r.client.GeoAdd(ctx, r.key, &redis.GeoLocation{
		Longitude: ride.Pickup.Lon,
		Latitude:  ride.Pickup.Lat,
		Name:      ride.ID,
	}).Err(); err != nil {
		return err
	}
	fields := map[string]interface{}{
		"driver_id":   ride.DriverID,
		"dropoff_lat": strconv.FormatFloat(ride.Dropoff.Lat, 'f', 6, 64),
		"dropoff_lon": strconv.FormatFloat(ride.Dropoff.Lon, 'f', 6, 64),
		"status":      ride.Status,
	}
	if ride.Profile != nil {
		fields["rating"] = strconv.FormatFloat(ride.Profile.Rating, 'f', 2, 64)
		fields["verified"] = strconv.FormatBool(ride.Profile.Verified)
		fields["communities"] = strings.Join(ride.Profile.Communities, ",")
	}
	return r.client.HSet(ctx, rideMetaKey(ride.ID), fields).Err()
}

func (r *RedisIndex) Remove(ctx context.Context, rideID string) error {
	if err := r.client.ZRem(ctx, r.key, rideID).Err(); err != nil {
		return err
	}
	return r.client.Del(ctx, rideMetaKey(rideID)).Err()
}

func (r *RedisIndex) FindNear(ctx context.Context, point models.Coord, radiusKm float64, limit int) ([]models.CandidateRide, error) {
	locs, err := r.client.GeoSearchLocation(ctx, r.key, &redis.GeoSearchLocationQuery{
		GeoSearchQuery: redis.GeoSearchQuery{
			Longitude:  point.Lon,
			Latitude:   point.Lat,
			Radius:     radiusKm,
			RadiusUnit: "km",
			Sort:       "ASC",
			Count:      limit,
		},
		WithCoord: true,
	}).Result()
	if err != nil {
		return nil, err
	}
	out := make([]models.CandidateRide, 0, len(locs))
	for _, loc := range locs {
		ride := models.CandidateRide{
			ID:     loc.Name,
			Pickup: models.Coord{Lat: loc.Latitude, Lon: loc.Longitude},
		}
		meta, err := r.client.HGetAll(ctx, rideMetaKey(loc.Name)).Result()
		if err != nil {
			continue
		}
		ride.DriverID = meta["driver_id"]
		ride.Status = meta["status"]
		ride.Dropoff.Lat, _ = strconv.ParseFloat(meta["dropoff_lat"], 64)
		ride.Dropoff.Lon, _ = strconv.ParseFloat(meta["dropoff_lon"], 64)
		if rating, ok := meta["rating"]; ok {
			p := &models.DriverProfile{}
			p.Rating, _ = strconv.ParseFloat(rating, 64)
			p.Verified = meta["verified"] == "true"
			if tags := meta["communities"]; tags != "" {
				p.Communities = strings.Split(tags, ",")
			}
			ride.Profile = p
		}
		out = append(out, ride)
	}
	return out, nil
}

func rideMetaKey(id string) string { return "ride:meta:" + id }
