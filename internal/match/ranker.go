package match

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/example/ridepool/internal/geo"
	"github.com/example/ridepool/internal/models"
)

// Weights tune the composite score. They are configuration, not business
// rules: defaults follow the community scorer (2.0 per shared tag, 2.0 for
// verification) with unit weights elsewhere.
type Weights struct {
	Distance  float64
	Detour    float64
	Rating    float64
	Verified  float64
	Community float64
}

func DefaultWeights() Weights {
	return Weights{Distance: 1, Detour: 1, Rating: 1, Verified: 1, Community: 1}
}

const (
	verifiedBonus    = 2.0
	perCommunityTag  = 2.0
	maxRatingCredit  = 5.0
	defaultMaxScored = 10
)

// Ranker scores and orders candidate rides for a match request. It holds no
// state between calls; ordering is deterministic for identical inputs and
// provider outcomes.
type Ranker struct {
	Calc       *Calculator
	Weights    Weights
	MaxResults int
}

func NewRanker(calc *Calculator, w Weights) *Ranker {
	return &Ranker{Calc: calc, Weights: w, MaxResults: defaultMaxScored}
}

// Rank filters, scores, and sorts candidates. Ties break by ascending
// detour, then ascending distance, then ascending ride ID, so the order is
// total. An empty result is a valid outcome, not an error.
func (r *Ranker) Rank(ctx context.Context, cands []models.CandidateRide, req models.MatchRequest) ([]models.ScoredCandidate, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	maxDetourSec := req.MaxDetourMinutes * 60

	scored := make([]models.ScoredCandidate, 0, len(cands))
	for _, cand := range cands {
		if cand.Status != models.StatusActive {
			continue
		}
		if err := cand.Pickup.Validate(); err != nil {
			return nil, fmt.Errorf("candidate %s: %w", cand.ID, err)
		}
		if err := cand.Dropoff.Validate(); err != nil {
			return nil, fmt.Errorf("candidate %s: %w", cand.ID, err)
		}
		detourSec, approx, err := r.Calc.Detour(ctx, cand.Pickup, cand.Dropoff, req.Pickup, req.Dropoff)
		if err != nil {
			return nil, err
		}
		if detourSec > maxDetourSec {
			continue
		}
		prof := models.DriverProfile{}
		if cand.Profile != nil {
			prof = *cand.Profile
		}
		affinity := affinityScore(prof, req.Community)
		if req.Community != nil && affinity < req.Community.TrustScoreThreshold {
			continue
		}
		dist := geo.DistanceKm(req.Pickup, cand.Pickup)
		scored = append(scored, models.ScoredCandidate{
			Ride:          cand,
			DetourSeconds: detourSec,
			DistanceKm:    dist,
			Score:         r.composite(dist, detourSec, prof, req.Community),
			Approximate:   approx,
		})
	}

	sort.Slice(scored, func(i, j int) bool {
		a, b := scored[i], scored[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.DetourSeconds != b.DetourSeconds {
			return a.DetourSeconds < b.DetourSeconds
		}
		if a.DistanceKm != b.DistanceKm {
			return a.DistanceKm < b.DistanceKm
		}
		return a.Ride.ID < b.Ride.ID
	})

	limit := r.MaxResults
	if limit <= 0 {
		limit = defaultMaxScored
	}
	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

// composite blends proximity, detour, and trust into one descending score.
// Distance and detour contribute through decreasing transforms so closer
// and shorter rank higher.
func (r *Ranker) composite(distKm, detourSec float64, prof models.DriverProfile, filter *models.CommunityFilter) float64 {
	w := r.Weights
	score := w.Distance*math.Max(0, 10-distKm) +
		w.Detour*math.Max(0, 10-detourSec/60) +
		w.Rating*math.Min(prof.Rating, maxRatingCredit)
	if prof.Verified {
		score += w.Verified * verifiedBonus
	}
	if filter != nil {
		score += w.Community * perCommunityTag * float64(overlap(filter.Tags, prof.Communities))
	}
	return score
}

// affinityScore is the trust portion checked against the community filter
// threshold: shared tags, capped rating, and the verification bonus.
func affinityScore(prof models.DriverProfile, filter *models.CommunityFilter) float64 {
	if filter == nil {
		return 0
	}
	score := perCommunityTag * float64(overlap(filter.Tags, prof.Communities))
	score += math.Min(prof.Rating, maxRatingCredit)
	if prof.Verified {
		score += verifiedBonus
	}
	return score
}

func overlap(a, b []string) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(a))
	for _, t := range a {
		set[t] = struct{}{}
	}
	n := 0
	for _, t := range b {
		if _, ok := set[t]; ok {
			n++
		}
	}
	return n
}
