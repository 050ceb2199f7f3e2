package match

import (
	"context"
	"time"

	"github.com/example/ridepool/internal/geo"
	"github.com/example/ridepool/internal/models"
	"github.com/example/ridepool/internal/observability"
	"github.com/example/ridepool/internal/profile"
)

// defaultSourceCap bounds how many candidates the geo index may hand the
// ranker per request.
const defaultSourceCap = 100

// Service runs the match pipeline: geo query, profile enrichment, ranking.
// It is stateless per request and safe for concurrent use.
type Service struct {
	Geo       geo.Index
	Profiles  profile.Lookup
	Ranker    *Ranker
	SourceCap int

	// Operator overrides for requests that omit radius or detour; zero
	// falls through to the request-level defaults.
	DefaultRadiusKm     float64
	DefaultMaxDetourMin float64
}

func NewService(g geo.Index, profiles profile.Lookup, ranker *Ranker) *Service {
	return &Service{Geo: g, Profiles: profiles, Ranker: ranker, SourceCap: defaultSourceCap}
}

// Find returns ranked candidates for the request. An empty slice with a nil
// error means no compatible rides were found.
func (s *Service) Find(ctx context.Context, req models.MatchRequest) ([]models.ScoredCandidate, error) {
	if req.RadiusKm == 0 && s.DefaultRadiusKm > 0 {
		req.RadiusKm = s.DefaultRadiusKm
	}
	if req.MaxDetourMinutes == 0 && s.DefaultMaxDetourMin > 0 {
		req.MaxDetourMinutes = s.DefaultMaxDetourMin
	}
	req.ApplyDefaults()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	start := time.Now()

	cap := s.SourceCap
	if cap <= 0 {
		cap = defaultSourceCap
	}
	cands, err := s.Geo.FindNear(ctx, req.Pickup, req.RadiusKm, cap)
	if err != nil {
		return nil, err
	}
	for i := range cands {
		if cands[i].Profile != nil || s.Profiles == nil {
			continue
		}
		p, err := s.Profiles.GetProfile(ctx, cands[i].DriverID)
		if err != nil {
			// rank with the zero profile rather than failing the match
			continue
		}
		cands[i].Profile = &p
	}

	ranked, err := s.Ranker.Rank(ctx, cands, req)
	if err != nil {
		return nil, err
	}
	observability.MatchLatency.Observe(time.Since(start).Seconds())
	if len(ranked) == 0 {
		observability.EmptyMatches.Inc()
	} else {
		observability.MatchesTotal.Inc()
	}
	return ranked, nil
}
