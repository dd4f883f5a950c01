package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"testing"
	"time"

	"github.com/solvernet/intentbot/internal/arbitrage"
	"github.com/solvernet/intentbot/internal/domain"
	"github.com/solvernet/intentbot/internal/engine"
	"github.com/solvernet/intentbot/internal/marketdata"
	"github.com/solvernet/intentbot/internal/planner"
	"github.com/solvernet/intentbot/internal/quote"
	"github.com/solvernet/intentbot/internal/registry"
	"github.com/solvernet/intentbot/internal/router"
	"github.com/solvernet/intentbot/internal/store/memory"
)

// echoPublisher answers every published intent with one canned quote, like
// a solver with zero latency.
type echoPublisher struct {
	book *quote.Book
}

func (p echoPublisher) PublishIntent(ctx context.Context, intent domain.Intent) error {
	surplus := new(big.Int).Div(intent.AmountOutMin, big.NewInt(20))
	return p.book.Append(ctx, domain.Quote{
		ID:         "q-" + intent.ID,
		SolverID:   "s1",
		IntentID:   intent.ID,
		AmountOut:  new(big.Int).Add(intent.AmountOutMin, surplus),
		Fee:        big.NewInt(0),
		ExecTime:   5 * time.Second,
		Confidence: 0.9,
		ExpiresAt:  time.Now().Add(time.Minute),
	})
}

func newTestService(t *testing.T, history domain.ExecutionHistoryStore) *IntentService {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	venues := registry.New([]domain.Venue{
		{
			ID: "uni", FeeRate: 0.003, Reputation: 0.95, LiquidityScore: 0.9,
			GasMultiplier: 1.0, AvgExecTime: 15 * time.Second,
			Pairs: []string{"ETH/USDC"},
		},
		{
			ID: "sushi", FeeRate: 0.004, Reputation: 0.85, LiquidityScore: 0.7,
			GasMultiplier: 1.1, AvgExecTime: 45 * time.Second,
			Pairs: []string{"ETH/USDC"},
		},
	})
	market := &marketdata.Static{
		Prices: map[string]float64{"ETH/USDC": 2.5},
	}

	routerCfg := router.Config{
		BridgeAssets:    []string{"USDT"},
		MinCandidates:   3,
		MaxHops:         4,
		BaseSlippage:    0.001,
		LiquidityImpact: 0.01,
		LiquidityCap:    0.05,
		SizeImpactCap:   0.03,
		NotionalCeiling: 1_000_000,
		TwoHopPenalty:   0.85,
		ExtraHopPenalty: 0.1,
		ConfidenceFloor: 0.5,
		BaseGasUnits:    150_000,
		SpeedWeights:    router.Weights{Primary: 0.6, Secondary: 0.3, Tertiary: 0.1},
		CostWeights:     router.Weights{Primary: 0.5, Secondary: 0.3, Tertiary: 0.2},
		SecurityWeights: router.Weights{Primary: 0.4, Secondary: 0.3, Tertiary: 0.3},
	}
	discovery := router.NewDiscovery(venues, market, routerCfg, logger)
	scorer := router.NewScorer(venues, routerCfg, logger)

	scanner := arbitrage.NewScanner(venues, market, nil, arbitrage.Config{
		MinProfitPct:  0.005,
		MaxResults:    5,
		LowLatencyMax: 30 * time.Second,
		MedLatencyMax: 120 * time.Second,
		WindowPerPct:  10 * time.Second,
	}, logger)

	strategyPlanner := planner.New(planner.Config{
		SplitSlippageThreshold: 0.02,
		SplitNotionalCeiling:   500_000,
		MaxSplits:              5,
		SplitDelay:             30 * time.Second,
		VolatilityThreshold:    0.5,
		LiquidityFloor:         0.3,
	})

	solvers := memory.NewSolverStore()
	solvers.Upsert(context.Background(), domain.Solver{ID: "s1", Reputation: 1, Active: true})
	book := quote.NewBook()
	pub := echoPublisher{book: book}
	quotes := quote.NewManager(pub, pub, book, solvers, quote.Config{
		PollInterval:     2 * time.Millisecond,
		DefaultTimeout:   100 * time.Millisecond,
		AcceptScore:      70,
		RejectScore:      30,
		SurplusPoints:    30,
		FeePoints:        20,
		SpeedPoints:      15,
		ReputationPoints: 20,
		ConfidencePoints: 15,
		PreferredBonus:   10,
	}, logger)

	eng := engine.New(engine.Config{
		MaxSlippageLive:     0.05,
		MaxSlippageDryRun:   0.10,
		RiskCeiling:         0.8,
		RiskCriticalCeiling: 0.9,
		RiskGrowthWarnRatio: 1.2,
		ConditionPoll:       2 * time.Millisecond,
		ConditionMaxWait:    25 * time.Millisecond,
	}, market, engine.NewSimulatedSettlement(venues, market), history, logger)

	return NewIntentService(discovery, scorer, scanner, strategyPlanner, quotes, eng,
		market, nil, history, Options{QuoteTimeout: 100 * time.Millisecond}, logger)
}

func testIntent() domain.Intent {
	return domain.Intent{
		ID:           "intent-1",
		User:         "0xabc",
		AssetIn:      "ETH",
		AmountIn:     big.NewInt(100_000),
		AssetOut:     "USDC",
		AmountOutMin: big.NewInt(240_000),
		ExpiresAt:    time.Now().Add(time.Minute),
	}
}

func TestIntentFlowEndToEnd(t *testing.T) {
	ctx := context.Background()
	history := memory.NewExecutionHistory()
	svc := newTestService(t, history)
	intent := testIntent()

	ranked, err := svc.DiscoverAndScoreRoutes(ctx, intent, domain.ObjectiveBalanced, domain.RouteConstraints{})
	if err != nil {
		t.Fatalf("DiscoverAndScoreRoutes = %v", err)
	}
	if len(ranked) == 0 {
		t.Fatal("no ranked routes")
	}
	best := ranked[0].Route

	analyses, err := svc.RequestQuotes(ctx, intent, domain.QuoteCriteria{})
	if err != nil {
		t.Fatalf("RequestQuotes = %v", err)
	}
	if _, ok := svc.SelectQuote(ctx, analyses, domain.QuoteCriteria{}); !ok {
		t.Fatalf("no quote selected from %+v", analyses)
	}

	plan, err := svc.PlanExecutionStrategy(ctx, best)
	if err != nil {
		t.Fatalf("PlanExecutionStrategy = %v", err)
	}
	if plan.Timing != domain.TimingImmediate {
		t.Errorf("timing = %s for a small calm-market trade", plan.Timing)
	}

	id, err := svc.Execute(ctx, intent.ID, plan)
	if err != nil {
		t.Fatalf("Execute = %v", err)
	}

	var final domain.ExecutionStatus
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		st, err := svc.GetExecutionStatus(ctx, id)
		if err == nil && st.State.Terminal() {
			final = st
			break
		}
		time.Sleep(2 * time.Millisecond)
	}
	if final.State != domain.ExecStateCompleted {
		t.Fatalf("state = %s, errors = %+v", final.State, final.Errors)
	}
	if final.RealizedOut.Sign() <= 0 {
		t.Errorf("realized out = %s", final.RealizedOut)
	}

	recent, err := svc.RecentExecutions(ctx, 10)
	if err != nil {
		t.Fatalf("RecentExecutions = %v", err)
	}
	if len(recent) != 1 || recent[0].ID != id {
		t.Errorf("recent = %+v, want the completed attempt", recent)
	}

	if svc.CancelExecution(ctx, id) {
		t.Error("CancelExecution returned true for a finished attempt")
	}
}

func TestDiscoverEnforcesIntentOutputFloor(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, memory.NewExecutionHistory())

	// 100k in at 2.5 estimates ~250k out; a floor above that must leave no
	// offerable routes even when the caller passes no constraints.
	intent := testIntent()
	intent.AmountOutMin = big.NewInt(3_000_000_000)
	if _, err := svc.DiscoverAndScoreRoutes(ctx, intent, domain.ObjectiveBalanced, domain.RouteConstraints{}); !errors.Is(err, domain.ErrNoRoutes) {
		t.Errorf("below-minimum routes offered: err = %v, want ErrNoRoutes", err)
	}

	// An explicit caller floor takes precedence over the intent's.
	intent.AmountOutMin = big.NewInt(240_000)
	ranked, err := svc.DiscoverAndScoreRoutes(ctx, intent, domain.ObjectiveBalanced, domain.RouteConstraints{
		MinAmountOut: big.NewInt(1),
	})
	if err != nil || len(ranked) == 0 {
		t.Errorf("DiscoverAndScoreRoutes = (%d routes, %v)", len(ranked), err)
	}
}

func TestDiscoverRejectsInvalidIntent(t *testing.T) {
	svc := newTestService(t, memory.NewExecutionHistory())
	intent := testIntent()
	intent.AmountIn = nil
	if _, err := svc.DiscoverAndScoreRoutes(context.Background(), intent, domain.ObjectiveCost, domain.RouteConstraints{}); err == nil {
		t.Error("invalid intent accepted")
	}
}

func TestRecentExecutionsWithoutHistory(t *testing.T) {
	svc := newTestService(t, nil)
	recent, err := svc.RecentExecutions(context.Background(), 10)
	if err != nil || recent != nil {
		t.Errorf("RecentExecutions = (%v, %v), want (nil, nil)", recent, err)
	}
}
