// Package service composes the routing, arbitrage, planning, quoting, and
// execution components behind one facade. Handlers and the scan loop talk
// to this package only.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/solvernet/intentbot/internal/arbitrage"
	"github.com/solvernet/intentbot/internal/domain"
	"github.com/solvernet/intentbot/internal/engine"
	"github.com/solvernet/intentbot/internal/planner"
	"github.com/solvernet/intentbot/internal/quote"
	"github.com/solvernet/intentbot/internal/router"
)

// IntentService is the conversion engine's front door: from intent to
// ranked routes, quotes, an execution strategy, and a tracked execution.
type IntentService struct {
	discovery *router.Discovery
	scorer    *router.Scorer
	scanner   *arbitrage.Scanner
	planner   *planner.Planner
	quotes    *quote.Manager
	engine    *engine.Engine
	market    domain.MarketDataProvider
	locks     domain.LockManager
	history   domain.ExecutionHistoryStore
	logger    *slog.Logger

	quoteTimeout time.Duration
	lockTTL      time.Duration
}

// Options carries the service-level tunables.
type Options struct {
	QuoteTimeout time.Duration
	LockTTL      time.Duration
}

// NewIntentService wires the facade. The lock manager may be nil, in which
// case per-intent execution serialization is skipped (single-process runs).
func NewIntentService(
	discovery *router.Discovery,
	scorer *router.Scorer,
	scanner *arbitrage.Scanner,
	strategyPlanner *planner.Planner,
	quotes *quote.Manager,
	eng *engine.Engine,
	market domain.MarketDataProvider,
	locks domain.LockManager,
	history domain.ExecutionHistoryStore,
	opts Options,
	logger *slog.Logger,
) *IntentService {
	if opts.QuoteTimeout <= 0 {
		opts.QuoteTimeout = 5 * time.Second
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 2 * time.Minute
	}
	return &IntentService{
		discovery:    discovery,
		scorer:       scorer,
		scanner:      scanner,
		planner:      strategyPlanner,
		quotes:       quotes,
		engine:       eng,
		market:       market,
		locks:        locks,
		history:      history,
		logger:       logger.With(slog.String("component", "intent_service")),
		quoteTimeout: opts.QuoteTimeout,
		lockTTL:      opts.LockTTL,
	}
}

// DiscoverAndScoreRoutes finds candidate routes for the intent's conversion
// and ranks them under the objective. Constraint-violating routes are
// dropped before ranking.
func (s *IntentService) DiscoverAndScoreRoutes(ctx context.Context, intent domain.Intent, objective domain.Objective, constraints domain.RouteConstraints) ([]domain.RankedRoute, error) {
	if err := intent.Validate(time.Now()); err != nil {
		return nil, fmt.Errorf("service: discover routes: %w", err)
	}
	routes, err := s.discovery.Discover(ctx, intent.AssetIn, intent.AssetOut, intent.AmountIn)
	if err != nil {
		return nil, fmt.Errorf("service: discover routes: %w", err)
	}
	// The intent's output floor is a hard constraint regardless of what the
	// caller passed.
	if constraints.MinAmountOut == nil {
		constraints.MinAmountOut = intent.AmountOutMin
	}
	ranked, err := s.scorer.Rank(ctx, routes, objective, constraints)
	if err != nil {
		return nil, fmt.Errorf("service: rank routes: %w", err)
	}
	return ranked, nil
}

// DetectArbitrage scans all venues trading the pair for fee-adjusted price
// discrepancies above the configured profit floor.
func (s *IntentService) DetectArbitrage(ctx context.Context, assetIn, assetOut string, amount *big.Int) ([]domain.ArbitrageOpportunity, error) {
	return s.scanner.Scan(ctx, assetIn, assetOut, amount)
}

// PlanExecutionStrategy decides how a chosen route should be executed given
// current market conditions.
func (s *IntentService) PlanExecutionStrategy(ctx context.Context, route domain.ExecutionRoute) (domain.ExecutionStrategy, error) {
	if err := route.Validate(); err != nil {
		return domain.ExecutionStrategy{}, fmt.Errorf("service: plan strategy: %w", err)
	}
	pair := domain.MakePair(route.Path[0], route.Path[len(route.Path)-1])
	state := domain.MarketState{Pair: pair}
	if price, err := s.market.Price(ctx, pair); err == nil {
		state.Price = price
	}
	if liq, err := s.market.LiquidityScore(ctx, pair); err == nil {
		state.Liquidity = liq
	}
	if vol, err := s.market.Volatility(ctx, pair); err == nil {
		state.Volatility = vol
	}
	return s.planner.Plan(route, state)
}

// RequestQuotes publishes the intent to the solver network and returns the
// analyzed quotes collected within the service's quote window, best first.
func (s *IntentService) RequestQuotes(ctx context.Context, intent domain.Intent, criteria domain.QuoteCriteria) ([]domain.QuoteAnalysis, error) {
	return s.quotes.RequestQuotes(ctx, intent, s.quoteTimeout, criteria)
}

// SelectQuote applies the selection rule over analyzed quotes: best
// accepted, falling back to best considered.
func (s *IntentService) SelectQuote(ctx context.Context, analyses []domain.QuoteAnalysis, criteria domain.QuoteCriteria) (domain.QuoteAnalysis, bool) {
	return s.quotes.Select(ctx, analyses, criteria)
}

// Execute starts an execution attempt for the strategy and returns its
// execution id. When a lock manager is wired and the strategy carries an
// intent id, the attempt holds a per-intent distributed lock for its
// lifetime.
func (s *IntentService) Execute(ctx context.Context, intentID string, plan domain.ExecutionStrategy) (string, error) {
	if plan.IntentID == "" {
		plan.IntentID = intentID
	}
	var unlock func()
	if s.locks != nil && intentID != "" {
		var err error
		unlock, err = s.locks.Acquire(ctx, "intent:"+intentID, s.lockTTL)
		if err != nil {
			return "", fmt.Errorf("service: execute intent %s: %w", intentID, err)
		}
	}
	id, err := s.engine.Execute(ctx, plan)
	if err != nil {
		if unlock != nil {
			unlock()
		}
		return "", fmt.Errorf("service: execute: %w", err)
	}
	if unlock != nil {
		go s.releaseWhenTerminal(id, unlock)
	}
	return id, nil
}

// releaseWhenTerminal polls the attempt until it leaves the active set,
// then drops the intent lock. The lock TTL bounds the hold time even if
// this process dies.
func (s *IntentService) releaseWhenTerminal(executionID string, unlock func()) {
	defer unlock()
	ctx, cancel := context.WithTimeout(context.Background(), s.lockTTL)
	defer cancel()
	tick := time.NewTicker(250 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			status, err := s.engine.GetStatus(ctx, executionID)
			if err != nil || status.State.Terminal() {
				return
			}
		}
	}
}

// GetExecutionStatus returns the live or retained status for an attempt.
func (s *IntentService) GetExecutionStatus(ctx context.Context, id string) (domain.ExecutionStatus, error) {
	return s.engine.GetStatus(ctx, id)
}

// CancelExecution requests cooperative cancellation of an attempt.
func (s *IntentService) CancelExecution(ctx context.Context, id string) bool {
	return s.engine.Cancel(ctx, id)
}

// RecentExecutions lists retained terminal attempts, newest first.
func (s *IntentService) RecentExecutions(ctx context.Context, limit int) ([]domain.ExecutionStatus, error) {
	if s.history == nil {
		return nil, nil
	}
	return s.history.ListRecent(ctx, limit)
}
