package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ServerConfig captures all tunable parameters for the HTTP API process.
// Values are primarily loaded from environment variables with sane defaults
// so the binary can run locally without excessive setup.
type ServerConfig struct {
	HTTPAddr        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	RedisAddr     string
	RedisPassword string
	RedisGeoKey   string

	KafkaBrokers []string
	KafkaTopic   string

	PGDSN string

	// Routing
	OSRMEndpoint  string
	OSRMTimeout   time.Duration
	AvgSpeedKmh   float64
	RouteCacheTTL time.Duration

	// Matching
	DefaultRadiusKm     float64
	DefaultMaxDetourMin float64
	MaxCandidates       int
	SourceCap           int
	WeightDistance      float64
	WeightDetour        float64
	WeightRating        float64
	WeightVerified      float64
	WeightCommunity     float64

	// Tour optimization
	FuelEfficiencyKmPerL float64

	// Pricing
	PricePerKm     float64
	PricePerMinute float64
	PlatformFeePct float64

	// Dispatch
	PushEndpoint string
	FCMEndpoint  string
	FCMKey       string

	LogLevel      string
	RunMigrations bool
}

func defaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPAddr:        ":8080",
		ReadTimeout:     5 * time.Second,
		WriteTimeout:    10 * time.Second,
		IdleTimeout:     120 * time.Second,
		ShutdownTimeout: 15 * time.Second,
		RedisGeoKey:     "rides_geo",
		KafkaTopic:      "driver-locations",

		OSRMTimeout:   3 * time.Second,
		AvgSpeedKmh:   30,
		RouteCacheTTL: 30 * time.Second,

		DefaultRadiusKm:     5,
		DefaultMaxDetourMin: 10,
		MaxCandidates:       10,
		SourceCap:           100,
		WeightDistance:      1,
		WeightDetour:        1,
		WeightRating:        1,
		WeightVerified:      1,
		WeightCommunity:     1,

		FuelEfficiencyKmPerL: 15,

		PricePerKm:     0.50,
		PricePerMinute: 0.10,
		PlatformFeePct: 0.15,

		LogLevel: "info",
	}
}

func LoadServerConfig() (ServerConfig, error) {
	cfg := defaultServerConfig()
	var errs []error

	setStringFromEnv(&cfg.HTTPAddr, "HTTP_ADDR")
	setDurationFromEnv(&cfg.ReadTimeout, "HTTP_READ_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.WriteTimeout, "HTTP_WRITE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.IdleTimeout, "HTTP_IDLE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.ShutdownTimeout, "HTTP_SHUTDOWN_TIMEOUT", &errs)

	cfg.RedisAddr = strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	setStringFromEnv(&cfg.RedisGeoKey, "REDIS_GEO_KEY")

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = splitAndTrim(brokers)
	}
	setStringFromEnv(&cfg.KafkaTopic, "KAFKA_TOPIC")

	cfg.PGDSN = os.Getenv("PG_DSN")

	setStringFromEnv(&cfg.OSRMEndpoint, "OSRM_ENDPOINT")
	setDurationFromEnv(&cfg.OSRMTimeout, "OSRM_TIMEOUT", &errs)
	setFloatFromEnv(&cfg.AvgSpeedKmh, "ROUTE_AVG_SPEED_KMH", &errs)
	setDurationFromEnv(&cfg.RouteCacheTTL, "ROUTE_CACHE_TTL", &errs)

	setFloatFromEnv(&cfg.DefaultRadiusKm, "MATCH_DEFAULT_RADIUS_KM", &errs)
	setFloatFromEnv(&cfg.DefaultMaxDetourMin, "MATCH_DEFAULT_MAX_DETOUR_MIN", &errs)
	setIntFromEnv(&cfg.MaxCandidates, "MATCH_MAX_CANDIDATES", &errs)
	setIntFromEnv(&cfg.SourceCap, "MATCH_SOURCE_CAP", &errs)
	setFloatFromEnv(&cfg.WeightDistance, "MATCH_WEIGHT_DISTANCE", &errs)
	setFloatFromEnv(&cfg.WeightDetour, "MATCH_WEIGHT_DETOUR", &errs)
	setFloatFromEnv(&cfg.WeightRating, "MATCH_WEIGHT_RATING", &errs)
	setFloatFromEnv(&cfg.WeightVerified, "MATCH_WEIGHT_VERIFIED", &errs)
	setFloatFromEnv(&cfg.WeightCommunity, "MATCH_WEIGHT_COMMUNITY", &errs)

	setFloatFromEnv(&cfg.FuelEfficiencyKmPerL, "TOUR_FUEL_EFFICIENCY_KM_PER_L", &errs)

	setFloatFromEnv(&cfg.PricePerKm, "PRICE_PER_KM", &errs)
	setFloatFromEnv(&cfg.PricePerMinute, "PRICE_PER_MINUTE", &errs)
	setFloatFromEnv(&cfg.PlatformFeePct, "PLATFORM_FEE_PCT", &errs)

	setStringFromEnv(&cfg.PushEndpoint, "PUSH_ENDPOINT")
	setStringFromEnv(&cfg.FCMEndpoint, "FCM_ENDPOINT")
	cfg.FCMKey = os.Getenv("FCM_KEY")

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}

	cfg.RunMigrations = strings.EqualFold(os.Getenv("MIGRATE"), "true")

	if cfg.MaxCandidates <= 0 {
		errs = append(errs, fmt.Errorf("MATCH_MAX_CANDIDATES must be > 0"))
	}
	if cfg.DefaultRadiusKm <= 0 {
		errs = append(errs, fmt.Errorf("MATCH_DEFAULT_RADIUS_KM must be > 0"))
	}
	if cfg.DefaultMaxDetourMin <= 0 {
		errs = append(errs, fmt.Errorf("MATCH_DEFAULT_MAX_DETOUR_MIN must be > 0"))
	}
	if cfg.AvgSpeedKmh <= 0 {
		errs = append(errs, fmt.Errorf("ROUTE_AVG_SPEED_KMH must be > 0"))
	}

	return cfg, errors.Join(errs...)
}

func setDurationFromEnv(target *time.Duration, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = d
	}
}

func setFloatFromEnv(target *float64, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = f
	}
}

func setIntFromEnv(target *int, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = i
	}
}

func setStringFromEnv(target *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*target = v
	}
}

func splitAndTrim(v string) []string {
	raw := strings.Split(v, ",")
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		out = append(out, r)
	}
	return out
}
