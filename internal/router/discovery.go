// Package router turns an (assetIn, assetOut, amount) request into scored,
// ranked execution routes. Discovery enumerates direct, two-hop, and
// multi-hop candidates against the venue registry; scoring ranks them
// under a caller-selected objective.
package router

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/solvernet/intentbot/internal/domain"
)

// Config holds the discovery and scoring tunables. Every weight here is
// named configuration rather than an inline constant so the ranking
// contract is reproducible.
type Config struct {
	BridgeAssets    []string
	MinCandidates   int
	MaxHops         int
	BaseSlippage    float64
	LiquidityImpact float64
	LiquidityCap    float64
	SizeImpactCap   float64
	NotionalCeiling float64
	TwoHopPenalty   float64
	ExtraHopPenalty float64
	ConfidenceFloor float64
	BaseGasUnits    int64

	SpeedWeights    Weights
	CostWeights     Weights
	SecurityWeights Weights
}

// Weights is an ordered triple of scoring weights; the meaning of each slot
// depends on the objective using it.
type Weights struct {
	Primary   float64
	Secondary float64
	Tertiary  float64
}

// directBaseConfidence is the starting confidence for single-hop routes.
// Two-hop and longer routes are always penalized below it, which keeps the
// confidence ordering monotonic in path length.
const directBaseConfidence = 0.95

// Discovery enumerates candidate routes.
type Discovery struct {
	venues domain.VenueRegistry
	market domain.MarketDataProvider
	cfg    Config
	logger *slog.Logger
}

// NewDiscovery creates a Discovery over the given registry and market-data
// provider.
func NewDiscovery(venues domain.VenueRegistry, market domain.MarketDataProvider, cfg Config, logger *slog.Logger) *Discovery {
	return &Discovery{
		venues: venues,
		market: market,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "route_discovery")),
	}
}

// Discover returns the candidate routes for converting amountIn of assetIn
// into assetOut. Direct and two-hop candidates are always attempted;
// multi-hop templates only when fewer than MinCandidates were found. A
// failed price lookup drops that one candidate and discovery continues.
func (d *Discovery) Discover(ctx context.Context, assetIn, assetOut string, amountIn *big.Int) ([]domain.ExecutionRoute, error) {
	if assetIn == "" || assetOut == "" || assetIn == assetOut {
		return nil, domain.ErrUnsupportedAsset
	}
	if amountIn == nil || amountIn.Sign() <= 0 {
		return nil, domain.ErrInvalidIntent
	}

	routes := d.directRoutes(ctx, assetIn, assetOut, amountIn)
	routes = append(routes, d.twoHopRoutes(ctx, assetIn, assetOut, amountIn)...)

	if len(routes) < d.cfg.MinCandidates {
		routes = append(routes, d.multiHopRoutes(ctx, assetIn, assetOut, amountIn)...)
	}

	if len(routes) == 0 {
		return nil, fmt.Errorf("router: %s -> %s: %w", assetIn, assetOut, domain.ErrNoRoutes)
	}
	d.logger.DebugContext(ctx, "discovery complete",
		slog.String("pair", domain.MakePair(assetIn, assetOut)),
		slog.Int("candidates", len(routes)),
	)
	return routes, nil
}

// directRoutes builds one candidate per venue listing the exact pair.
// Price lookups fan out concurrently; results keep registry order so that
// downstream ranking stays deterministic.
func (d *Discovery) directRoutes(ctx context.Context, assetIn, assetOut string, amountIn *big.Int) []domain.ExecutionRoute {
	pair := domain.MakePair(assetIn, assetOut)
	venues, err := d.venues.ForPair(ctx, pair)
	if err != nil || len(venues) == 0 {
		return nil
	}

	results := make([]*domain.ExecutionRoute, len(venues))
	g, gctx := errgroup.WithContext(ctx)
	for i, v := range venues {
		i, v := i, v
		g.Go(func() error {
			hop, err := d.buildHop(gctx, v, assetIn, assetOut, amountIn)
			if err != nil {
				d.logger.WarnContext(gctx, "direct candidate dropped",
					slog.String("venue", v.ID),
					slog.String("pair", pair),
					slog.String("error", err.Error()),
				)
				return nil // non-fatal: omit the candidate
			}
			confidence := directBaseConfidence - (1-v.Reputation)*0.05
			results[i] = d.assemble(amountIn, []string{assetIn, assetOut}, []hopQuote{hop}, confidence)
			return nil
		})
	}
	_ = g.Wait()

	var routes []domain.ExecutionRoute
	for _, r := range results {
		if r != nil {
			routes = append(routes, *r)
		}
	}
	return routes
}

// twoHopRoutes chains the best venue for (assetIn, bridge) with the best
// venue for (bridge, assetOut) for every configured bridge asset that is
// not one of the pair's own endpoints. Confidence carries the two-hop
// penalty to reflect compounded execution risk.
func (d *Discovery) twoHopRoutes(ctx context.Context, assetIn, assetOut string, amountIn *big.Int) []domain.ExecutionRoute {
	results := make([]*domain.ExecutionRoute, len(d.cfg.BridgeAssets))
	g, gctx := errgroup.WithContext(ctx)
	for i, bridge := range d.cfg.BridgeAssets {
		if bridge == assetIn || bridge == assetOut {
			continue
		}
		i, bridge := i, bridge
		g.Go(func() error {
			first, err := d.bestHop(gctx, assetIn, bridge, amountIn)
			if err != nil {
				return nil
			}
			second, err := d.bestHop(gctx, bridge, assetOut, first.amountOut)
			if err != nil {
				return nil
			}
			confidence := directBaseConfidence * d.cfg.TwoHopPenalty
			results[i] = d.assemble(amountIn,
				[]string{assetIn, bridge, assetOut},
				[]hopQuote{first, second},
				confidence,
			)
			return nil
		})
	}
	_ = g.Wait()

	var routes []domain.ExecutionRoute
	for _, r := range results {
		if r != nil {
			routes = append(routes, *r)
		}
	}
	return routes
}

// multiHopRoutes walks a small fixed set of three-hop templates through
// ordered bridge pairs. Attempted only when direct and two-hop discovery
// produced too few candidates. The walk is bounded by the registry's asset
// set: a configured bridge no venue lists is skipped before any pricing.
func (d *Discovery) multiHopRoutes(ctx context.Context, assetIn, assetOut string, amountIn *big.Int) []domain.ExecutionRoute {
	listed := make(map[string]bool)
	for _, a := range d.venues.Assets(ctx) {
		listed[a] = true
	}

	var routes []domain.ExecutionRoute
	for _, b1 := range d.cfg.BridgeAssets {
		if b1 == assetIn || b1 == assetOut || !listed[b1] {
			continue
		}
		for _, b2 := range d.cfg.BridgeAssets {
			if b2 == b1 || b2 == assetIn || b2 == assetOut || !listed[b2] {
				continue
			}
			path := []string{assetIn, b1, b2, assetOut}
			if len(path)-1 > d.cfg.MaxHops {
				continue
			}
			hops := make([]hopQuote, 0, len(path)-1)
			amount := amountIn
			ok := true
			for h := 0; h+1 < len(path); h++ {
				hop, err := d.bestHop(ctx, path[h], path[h+1], amount)
				if err != nil {
					ok = false
					break
				}
				hops = append(hops, hop)
				amount = hop.amountOut
			}
			if !ok {
				continue
			}
			confidence := directBaseConfidence * d.cfg.TwoHopPenalty
			for extra := 0; extra < len(hops)-2; extra++ {
				confidence -= d.cfg.ExtraHopPenalty
			}
			if confidence < d.cfg.ConfidenceFloor {
				confidence = d.cfg.ConfidenceFloor
			}
			routes = append(routes, *d.assemble(amountIn, path, hops, confidence))
		}
	}
	return routes
}

// hopQuote is one priced hop during assembly.
type hopQuote struct {
	venue     domain.Venue
	price     float64
	amountOut *big.Int // after the venue fee
	idealOut  *big.Int // before the venue fee
	slippage  float64
}

// buildHop prices a single hop on a specific venue:
// out = in * price * (1 - fee).
func (d *Discovery) buildHop(ctx context.Context, v domain.Venue, from, to string, amountIn *big.Int) (hopQuote, error) {
	pair := domain.MakePair(from, to)
	price, err := d.market.Price(ctx, pair)
	if err != nil {
		return hopQuote{}, err
	}
	if price <= 0 {
		return hopQuote{}, fmt.Errorf("router: non-positive price for %s", pair)
	}
	liquidity, err := d.market.LiquidityScore(ctx, pair)
	if err != nil {
		// Liquidity lookup failure degrades to the venue's own estimate.
		liquidity = v.LiquidityScore
	}
	return hopQuote{
		venue:     v,
		price:     price,
		amountOut: domain.MulRatio(amountIn, price*(1-v.FeeRate)),
		idealOut:  domain.MulRatio(amountIn, price),
		slippage:  d.cfg.expectedSlippage(liquidity, amountIn),
	}, nil
}

// bestHop prices the hop on every venue listing the pair and returns the
// one with the highest output.
func (d *Discovery) bestHop(ctx context.Context, from, to string, amountIn *big.Int) (hopQuote, error) {
	pair := domain.MakePair(from, to)
	venues, err := d.venues.ForPair(ctx, pair)
	if err != nil {
		return hopQuote{}, err
	}
	if len(venues) == 0 {
		return hopQuote{}, fmt.Errorf("router: no venue lists %s: %w", pair, domain.ErrNoRoutes)
	}
	var best hopQuote
	found := false
	for _, v := range venues {
		hop, err := d.buildHop(ctx, v, from, to, amountIn)
		if err != nil {
			d.logger.DebugContext(ctx, "hop candidate dropped",
				slog.String("venue", v.ID),
				slog.String("pair", pair),
				slog.String("error", err.Error()),
			)
			continue
		}
		if !found || hop.amountOut.Cmp(best.amountOut) > 0 {
			best = hop
			found = true
		}
	}
	if !found {
		return hopQuote{}, fmt.Errorf("router: no priceable venue for %s: %w", pair, domain.ErrNoRoutes)
	}
	return best, nil
}

// assemble folds priced hops into an ExecutionRoute with its fee breakdown.
func (d *Discovery) assemble(amountIn *big.Int, path []string, hops []hopQuote, confidence float64) *domain.ExecutionRoute {
	venues := make([]string, len(hops))
	slippage := 0.0
	gasUnits := new(big.Int)
	estTime := time.Duration(0)
	for i, h := range hops {
		venues[i] = h.venue.ID
		slippage += h.slippage
		gasUnits.Add(gasUnits, big.NewInt(int64(float64(d.cfg.BaseGasUnits)*h.venue.GasMultiplier)))
		estTime += h.venue.AvgExecTime
	}

	estOut := hops[len(hops)-1].amountOut

	// Ideal output with no venue fees, chained across hops.
	ideal := new(big.Int).Set(amountIn)
	for _, h := range hops {
		ideal = domain.MulRatio(ideal, h.price)
	}
	protocolFee := new(big.Int).Sub(ideal, estOut)
	if protocolFee.Sign() < 0 {
		protocolFee.SetInt64(0)
	}
	slippageCost := domain.MulRatio(estOut, slippage)
	total := new(big.Int).Add(protocolFee, gasUnits)
	total.Add(total, slippageCost)

	return &domain.ExecutionRoute{
		ID:           uuid.NewString(),
		Path:         path,
		Venues:       venues,
		AmountIn:     new(big.Int).Set(amountIn),
		EstimatedOut: estOut,
		Fees: domain.FeeBreakdown{
			ProtocolFee:  protocolFee,
			GasFee:       gasUnits,
			SlippageCost: slippageCost,
			Total:        total,
		},
		ExpectedSlippage: slippage,
		EstimatedTime:    estTime,
		Confidence:       confidence,
	}
}
