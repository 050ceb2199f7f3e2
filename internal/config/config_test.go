package config

import (
	"testing"
	"time"
)

func TestLoadServerConfigDefaults(t *testing.T) {
	cfg, err := LoadServerConfig()
	if err != nil {
		t.Fatalf("LoadServerConfig with defaults: %v", err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q", cfg.HTTPAddr)
	}
	if cfg.RedisGeoKey != "rides_geo" {
		t.Errorf("RedisGeoKey = %q", cfg.RedisGeoKey)
	}
	if cfg.AvgSpeedKmh != 30 {
		t.Errorf("AvgSpeedKmh = %v", cfg.AvgSpeedKmh)
	}
	if cfg.DefaultRadiusKm != 5 || cfg.DefaultMaxDetourMin != 10 {
		t.Errorf("match defaults = %v/%v", cfg.DefaultRadiusKm, cfg.DefaultMaxDetourMin)
	}
	if cfg.MaxCandidates != 10 {
		t.Errorf("MaxCandidates = %d", cfg.MaxCandidates)
	}
	if cfg.PricePerKm != 0.50 || cfg.PricePerMinute != 0.10 || cfg.PlatformFeePct != 0.15 {
		t.Errorf("pricing defaults = %v/%v/%v", cfg.PricePerKm, cfg.PricePerMinute, cfg.PlatformFeePct)
	}
	if cfg.FuelEfficiencyKmPerL != 15 {
		t.Errorf("FuelEfficiencyKmPerL = %v", cfg.FuelEfficiencyKmPerL)
	}
}

func TestLoadServerConfigFromEnv(t *testing.T) {
	t.Setenv("OSRM_ENDPOINT", "http://osrm:5000")
	t.Setenv("OSRM_TIMEOUT", "5s")
	t.Setenv("MATCH_WEIGHT_DETOUR", "2.5")
	t.Setenv("MATCH_MAX_CANDIDATES", "25")
	t.Setenv("KAFKA_BROKERS", "b1:9092, b2:9092 ,")
	t.Setenv("REDIS_ADDR", "redis:6379")

	cfg, err := LoadServerConfig()
	if err != nil {
		t.Fatalf("LoadServerConfig: %v", err)
	}
	if cfg.OSRMEndpoint != "http://osrm:5000" {
		t.Errorf("OSRMEndpoint = %q", cfg.OSRMEndpoint)
	}
	if cfg.OSRMTimeout != 5*time.Second {
		t.Errorf("OSRMTimeout = %v", cfg.OSRMTimeout)
	}
	if cfg.WeightDetour != 2.5 {
		t.Errorf("WeightDetour = %v", cfg.WeightDetour)
	}
	if cfg.MaxCandidates != 25 {
		t.Errorf("MaxCandidates = %d", cfg.MaxCandidates)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[0] != "b1:9092" || cfg.KafkaBrokers[1] != "b2:9092" {
		t.Errorf("KafkaBrokers = %v", cfg.KafkaBrokers)
	}
	if cfg.RedisAddr != "redis:6379" {
		t.Errorf("RedisAddr = %q", cfg.RedisAddr)
	}
}

func TestLoadServerConfigCollectsErrors(t *testing.T) {
	t.Setenv("OSRM_TIMEOUT", "not-a-duration")
	t.Setenv("MATCH_WEIGHT_DETOUR", "not-a-float")
	t.Setenv("MATCH_MAX_CANDIDATES", "0")

	_, err := LoadServerConfig()
	if err == nil {
		t.Fatal("expected joined validation errors")
	}
}
