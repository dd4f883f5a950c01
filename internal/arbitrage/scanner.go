// Package arbitrage implements the cross-venue price scanner. For a pair
// and amount it compares fee-adjusted buy/sell prices across every ordered
// pair of distinct venues and surfaces opportunities above the configured
// minimum profit threshold.
package arbitrage

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/solvernet/intentbot/internal/domain"
)

// Config holds the scanner thresholds.
type Config struct {
	MinProfitPct  float64       // fraction, e.g. 0.005
	MaxResults    int           // opportunities returned, best-first
	LowLatencyMax time.Duration // mean venue latency below this = low complexity
	MedLatencyMax time.Duration // below this = medium, else high
	WindowPerPct  time.Duration // time-sensitivity scale per profit point
}

// Scanner detects cross-venue arbitrage. The scan is O(V^2) in venue count
// and assumes a small, bounded registry (tens of venues).
type Scanner struct {
	venues domain.VenueRegistry
	market domain.MarketDataProvider
	store  domain.OpportunityStore // optional
	cfg    Config
	logger *slog.Logger
}

// NewScanner creates a Scanner. store may be nil; when set, every surfaced
// opportunity is also recorded for later analysis.
func NewScanner(venues domain.VenueRegistry, market domain.MarketDataProvider, store domain.OpportunityStore, cfg Config, logger *slog.Logger) *Scanner {
	return &Scanner{
		venues: venues,
		market: market,
		store:  store,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "arb_scanner")),
	}
}

// Scan compares fee-adjusted prices for the pair across every combination
// of distinct venues and returns the opportunities whose profit fraction
// exceeds the configured minimum, sorted descending by profit and capped
// to MaxResults.
func (s *Scanner) Scan(ctx context.Context, assetIn, assetOut string, amount *big.Int) ([]domain.ArbitrageOpportunity, error) {
	pair := domain.MakePair(assetIn, assetOut)
	venues, err := s.venues.ForPair(ctx, pair)
	if err != nil {
		return nil, fmt.Errorf("arbitrage: venues for %s: %w", pair, err)
	}
	if len(venues) < 2 {
		return nil, nil
	}

	// One price lookup per venue; a failed lookup removes the venue from
	// this scan without aborting it.
	prices := make(map[string]float64, len(venues))
	for _, v := range venues {
		p, err := s.venuePrice(ctx, v.ID, pair)
		if err != nil {
			s.logger.WarnContext(ctx, "venue dropped from scan",
				slog.String("venue", v.ID),
				slog.String("pair", pair),
				slog.String("error", err.Error()),
			)
			continue
		}
		prices[v.ID] = p
	}

	now := time.Now()
	var opps []domain.ArbitrageOpportunity
	for _, buy := range venues {
		buyRaw, ok := prices[buy.ID]
		if !ok {
			continue
		}
		for _, sell := range venues {
			if sell.ID == buy.ID {
				continue
			}
			sellRaw, ok := prices[sell.ID]
			if !ok {
				continue
			}
			buyPrice := buyRaw * (1 + buy.FeeRate)
			sellPrice := sellRaw * (1 - sell.FeeRate)
			if buyPrice <= 0 || sellPrice <= buyPrice {
				continue
			}
			profitPct := (sellPrice - buyPrice) / buyPrice
			if profitPct <= s.cfg.MinProfitPct {
				continue
			}
			opps = append(opps, domain.ArbitrageOpportunity{
				ID:              uuid.NewString(),
				Pair:            pair,
				BuyVenue:        buy.ID,
				SellVenue:       sell.ID,
				BuyPrice:        buyPrice,
				SellPrice:       sellPrice,
				ProfitPct:       profitPct,
				ProfitAmount:    domain.MulRatio(amount, profitPct*buyPrice),
				RequiredCapital: domain.MulRatio(amount, buyPrice),
				Complexity:      s.complexity(buy, sell),
				TimeSensitivity: s.window(profitPct),
				Confidence:      (buy.Reputation + sell.Reputation) / 2,
				DetectedAt:      now,
			})
		}
	}

	sort.SliceStable(opps, func(i, j int) bool {
		return opps[i].ProfitPct > opps[j].ProfitPct
	})
	if max := s.cfg.MaxResults; max > 0 && len(opps) > max {
		opps = opps[:max]
	}

	if s.store != nil {
		for _, opp := range opps {
			if err := s.store.Insert(ctx, opp); err != nil {
				s.logger.WarnContext(ctx, "opportunity not recorded",
					slog.String("id", opp.ID),
					slog.String("error", err.Error()),
				)
			}
		}
	}
	return opps, nil
}

// venuePrice resolves the venue-scoped price when the feed publishes one,
// falling back to the global pair price.
func (s *Scanner) venuePrice(ctx context.Context, venueID, pair string) (float64, error) {
	if p, err := s.market.Price(ctx, pair+"@"+venueID); err == nil && p > 0 {
		return p, nil
	}
	return s.market.Price(ctx, pair)
}

// complexity derives the execution tier from the mean of the two venues'
// average execution times.
func (s *Scanner) complexity(buy, sell domain.Venue) domain.ArbComplexity {
	mean := (buy.AvgExecTime + sell.AvgExecTime) / 2
	switch {
	case mean < s.cfg.LowLatencyMax:
		return domain.ArbComplexityLow
	case mean < s.cfg.MedLatencyMax:
		return domain.ArbComplexityMedium
	default:
		return domain.ArbComplexityHigh
	}
}

// window shrinks the time-sensitivity window as profit grows: fatter edges
// get arbitraged away faster.
func (s *Scanner) window(profitPct float64) time.Duration {
	base := 10 * s.cfg.WindowPerPct
	w := base - time.Duration(profitPct*100)*s.cfg.WindowPerPct
	if w < s.cfg.WindowPerPct {
		w = s.cfg.WindowPerPct
	}
	return w
}
