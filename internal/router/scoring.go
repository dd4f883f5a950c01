package router

import (
	"context"
	"log/slog"
	"math/big"
	"sort"

	"github.com/solvernet/intentbot/internal/domain"
)

// Scorer ranks discovered routes under an objective. Ranking is
// deterministic: identical inputs always produce identical order, and ties
// keep discovery order (stable sort).
type Scorer struct {
	venues domain.VenueRegistry
	cfg    Config
	logger *slog.Logger
}

// NewScorer creates a Scorer that resolves venue reputations through the
// given registry.
func NewScorer(venues domain.VenueRegistry, cfg Config, logger *slog.Logger) *Scorer {
	return &Scorer{
		venues: venues,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "route_scorer")),
	}
}

// Rank filters routes against the constraints, scores the survivors under
// the objective, and returns them best-first. Constraint filtering is
// strict: a route violating any set maximum is dropped entirely.
func (s *Scorer) Rank(ctx context.Context, routes []domain.ExecutionRoute, objective domain.Objective, c domain.RouteConstraints) ([]domain.RankedRoute, error) {
	var kept []domain.ExecutionRoute
	for _, r := range routes {
		if c.MaxSlippage > 0 && r.ExpectedSlippage > c.MaxSlippage {
			continue
		}
		if c.MaxExecTime > 0 && r.EstimatedTime > c.MaxExecTime {
			continue
		}
		if c.MinAmountOut != nil && c.MinAmountOut.Sign() > 0 {
			if r.EstimatedOut == nil || r.EstimatedOut.Cmp(c.MinAmountOut) < 0 {
				continue
			}
		}
		kept = append(kept, r)
	}
	if len(kept) == 0 {
		return nil, domain.ErrNoRoutes
	}

	norm := buildNorms(kept)
	ranked := make([]domain.RankedRoute, len(kept))
	for i, r := range kept {
		ranked[i] = domain.RankedRoute{
			Route:     r,
			Score:     s.score(ctx, r, objective, norm),
			Objective: objective,
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked, nil
}

// norms holds the per-candidate-set extrema used for normalization.
type norms struct {
	maxOut  float64
	minFee  float64
	minSlip float64
	minTime float64
}

func buildNorms(routes []domain.ExecutionRoute) norms {
	n := norms{}
	for i, r := range routes {
		out := bigFloat(r.EstimatedOut)
		fee := bigFloat(r.Fees.Total)
		t := float64(r.EstimatedTime)
		if i == 0 {
			n = norms{maxOut: out, minFee: fee, minSlip: r.ExpectedSlippage, minTime: t}
			continue
		}
		if out > n.maxOut {
			n.maxOut = out
		}
		if fee < n.minFee {
			n.minFee = fee
		}
		if r.ExpectedSlippage < n.minSlip {
			n.minSlip = r.ExpectedSlippage
		}
		if t < n.minTime {
			n.minTime = t
		}
	}
	return n
}

func (s *Scorer) score(ctx context.Context, r domain.ExecutionRoute, objective domain.Objective, n norms) float64 {
	switch objective {
	case domain.ObjectiveSpeed:
		return s.speedScore(r, n)
	case domain.ObjectiveCost:
		return s.costScore(r, n)
	case domain.ObjectiveSecurity:
		return s.securityScore(ctx, r)
	default: // balanced
		return (s.speedScore(r, n) + s.costScore(r, n) + s.securityScore(ctx, r)) / 3
	}
}

// speedScore: normalized inverse execution time, route confidence, inverse
// path length.
func (s *Scorer) speedScore(r domain.ExecutionRoute, n norms) float64 {
	w := s.cfg.SpeedWeights
	return w.Primary*invRatio(n.minTime, float64(r.EstimatedTime)) +
		w.Secondary*r.Confidence +
		w.Tertiary*invPathLen(r)
}

// costScore: normalized estimated output, normalized inverse total fee,
// normalized inverse slippage.
func (s *Scorer) costScore(r domain.ExecutionRoute, n norms) float64 {
	w := s.cfg.CostWeights
	outNorm := 0.0
	if n.maxOut > 0 {
		outNorm = bigFloat(r.EstimatedOut) / n.maxOut
	}
	return w.Primary*outNorm +
		w.Secondary*invRatio(n.minFee, bigFloat(r.Fees.Total)) +
		w.Tertiary*invRatio(n.minSlip, r.ExpectedSlippage)
}

// securityScore: route confidence, inverse path length, mean venue
// reputation. A venue missing from the registry counts as 0.5 rather than
// failing the whole score.
func (s *Scorer) securityScore(ctx context.Context, r domain.ExecutionRoute) float64 {
	w := s.cfg.SecurityWeights
	repSum := 0.0
	for _, id := range r.Venues {
		v, err := s.venues.Get(ctx, id)
		if err != nil {
			s.logger.DebugContext(ctx, "reputation lookup failed",
				slog.String("venue", id),
				slog.String("error", err.Error()),
			)
			repSum += 0.5
			continue
		}
		repSum += v.Reputation
	}
	meanRep := repSum / float64(len(r.Venues))
	return w.Primary*r.Confidence + w.Secondary*invPathLen(r) + w.Tertiary*meanRep
}

// invRatio returns min/value in [0,1]; the best candidate scores 1. A zero
// minimum makes every non-zero value score 0 and the zero value score 1.
func invRatio(min, value float64) float64 {
	if value <= 0 {
		return 1
	}
	if min <= 0 {
		return 0
	}
	return min / value
}

func invPathLen(r domain.ExecutionRoute) float64 {
	return 1 / float64(len(r.Venues))
}

func bigFloat(v *big.Int) float64 {
	if v == nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(v).Float64()
	return f
}
