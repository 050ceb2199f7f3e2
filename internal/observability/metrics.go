package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MatchesTotal   = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ridepool", Name: "matches_total", Help: "Total match requests that produced at least one candidate"})
	MatchLatency   = promauto.NewHistogram(prometheus.HistogramOpts{Namespace: "ridepool", Name: "match_latency_seconds", Help: "Match pipeline latency"})
	EmptyMatches   = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ridepool", Name: "matches_empty_total", Help: "Match requests that returned no candidates"})
	RouteFallbacks = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ridepool", Name: "route_fallbacks_total", Help: "Route cost lookups served by the local approximation after a remote failure"})
	TourFallbacks  = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ridepool", Name: "tour_fallbacks_total", Help: "Tour optimizations that fell back to nearest-neighbor after an external optimizer failure"})
	DriversOnline  = promauto.NewGauge(prometheus.GaugeOpts{Namespace: "ridepool", Name: "drivers_online", Help: "Number of online drivers"})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ridepool", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ridepool",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
