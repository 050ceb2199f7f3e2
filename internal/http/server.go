package httpapi

import (
	"log/slog"

	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"

	"github.com/example/ridepool/internal/config"
	"github.com/example/ridepool/internal/dispatch"
	"github.com/example/ridepool/internal/geo"
	"github.com/example/ridepool/internal/ingest"
	"github.com/example/ridepool/internal/logging"
	"github.com/example/ridepool/internal/match"
	"github.com/example/ridepool/internal/payments"
	"github.com/example/ridepool/internal/pricing"
	"github.com/example/ridepool/internal/profile"
	"github.com/example/ridepool/internal/route"
	"github.com/example/ridepool/internal/storage"
	"github.com/example/ridepool/internal/tour"
)

// Server wires the engine and its collaborators behind the HTTP API.
type Server struct {
	Geo      geo.Index
	GeoW     geo.Writer
	Matcher  *match.Service
	Tour     *tour.Optimizer
	Pricing  *pricing.Estimator
	Store    storage.RideStore
	Profiles profile.Lookup
	Payments payments.Client
	Kafka    *ingest.KafkaProducer
	Dispatch dispatch.Dispatcher
	WSReg    *dispatch.WSRegistry

	logger *slog.Logger
	mux    *mux.Router
}

// NewServer builds a Server from config. Optional collaborators (Redis,
// Kafka, Postgres, OSRM, Stripe) degrade to local substitutes when their
// endpoints are absent, the same posture the matching pipeline takes toward
// routing.
func NewServer(cfg config.ServerConfig) *Server {
	logger := logging.NewLogger(cfg.LogLevel)

	var (
		gidx geo.Index
		gw   geo.Writer
		prof profile.Lookup
	)
	if cfg.RedisAddr != "" {
		ridx := geo.NewRedisIndex(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisGeoKey)
		gidx, gw = ridx, ridx
		prof = profile.NewRedisLookup(redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}))
	} else {
		midx := geo.NewMemoryIndex()
		gidx, gw = midx, midx
		prof = profile.StaticLookup{}
	}

	var remote route.Provider
	if cfg.OSRMEndpoint != "" {
		remote = route.NewOSRMProvider(cfg.OSRMEndpoint, cfg.OSRMTimeout)
	}
	provider := route.NewFallback(remote, cfg.AvgSpeedKmh)
	provider.Cache = route.NewCache(cfg.RouteCacheTTL)

	calc := &match.Calculator{Provider: provider}
	ranker := match.NewRanker(calc, match.Weights{
		Distance:  cfg.WeightDistance,
		Detour:    cfg.WeightDetour,
		Rating:    cfg.WeightRating,
		Verified:  cfg.WeightVerified,
		Community: cfg.WeightCommunity,
	})
	ranker.MaxResults = cfg.MaxCandidates
	matcher := match.NewService(gidx, prof, ranker)
	matcher.SourceCap = cfg.SourceCap
	matcher.DefaultRadiusKm = cfg.DefaultRadiusKm
	matcher.DefaultMaxDetourMin = cfg.DefaultMaxDetourMin

	optimizer := tour.NewOptimizer(provider)
	optimizer.FuelEfficiencyKmPerL = cfg.FuelEfficiencyKmPerL
	if cfg.OSRMEndpoint != "" {
		optimizer.External = tour.NewOSRMTripOptimizer(cfg.OSRMEndpoint, cfg.OSRMTimeout)
	}

	estimator := pricing.NewEstimator(provider, pricing.Rates{
		PerKm:          cfg.PricePerKm,
		PerMinute:      cfg.PricePerMinute,
		PlatformFeePct: cfg.PlatformFeePct,
	})

	var store storage.RideStore
	if cfg.PGDSN != "" {
		if ps, err := storage.NewPostgresStore(cfg.PGDSN); err == nil {
			store = ps
		} else {
			logger.Error("postgres unavailable, using memory store", "error", err)
		}
	}
	if store == nil {
		store = storage.NewMemoryStore()
	}

	var kp *ingest.KafkaProducer
	if len(cfg.KafkaBrokers) > 0 {
		kp = ingest.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
	}

	wsreg := dispatch.NewWSRegistry(logger)
	var disp dispatch.Dispatcher = wsreg
	switch {
	case cfg.PushEndpoint != "":
		disp = dispatch.NewPushDispatcher(cfg.PushEndpoint, wsreg)
	case cfg.FCMEndpoint != "":
		disp = dispatch.Chain{wsreg, dispatch.NewFCMDispatcher(cfg.FCMEndpoint, cfg.FCMKey)}
	}

	s := &Server{
		Geo:      gidx,
		GeoW:     gw,
		Matcher:  matcher,
		Tour:     optimizer,
		Pricing:  estimator,
		Store:    store,
		Profiles: prof,
		Payments: payments.NewStripeClient(),
		Kafka:    kp,
		Dispatch: disp,
		WSReg:    wsreg,
		logger:   logger,
		mux:      mux.NewRouter(),
	}
	s.registerMiddleware()
	s.routes()
	return s
}
