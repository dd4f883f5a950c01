package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/solvernet/intentbot/internal/domain"
	"github.com/solvernet/intentbot/internal/marketdata"
	"github.com/solvernet/intentbot/internal/registry"
	"github.com/solvernet/intentbot/internal/store/memory"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fastConfig keeps every wait short enough for tests while leaving the
// risk thresholds at their production values.
func fastConfig() Config {
	return Config{
		MaxSlippageLive:     0.05,
		MaxSlippageDryRun:   0.10,
		RiskCeiling:         0.75,
		RiskCriticalCeiling: 0.9,
		RiskGrowthWarnRatio: 1.2,
		HopPause:            0,
		ConfirmationRounds:  0,
		ConditionPoll:       2 * time.Millisecond,
		ConditionMaxWait:    25 * time.Millisecond,
	}
}

func testMarket() *marketdata.Static {
	return &marketdata.Static{
		Prices: map[string]float64{
			"ETH/USDC": 2.5,
		},
	}
}

func testVenues() *registry.Registry {
	return registry.New([]domain.Venue{
		{ID: "uni", Name: "Uniswap", FeeRate: 0.003, Reputation: 0.9, AvgExecTime: 15 * time.Second, Pairs: []string{"ETH/USDC"}},
	})
}

func directRoute() domain.ExecutionRoute {
	return domain.ExecutionRoute{
		ID:               "route-direct",
		Path:             []string{"ETH", "USDC"},
		Venues:           []string{"uni"},
		AmountIn:         big.NewInt(1_000_000),
		EstimatedOut:     big.NewInt(2_492_500),
		Fees:             domain.FeeBreakdown{GasFee: big.NewInt(50_000)},
		ExpectedSlippage: 0.005,
		EstimatedTime:    15 * time.Second,
		Confidence:       0.9,
	}
}

func waitTerminal(t *testing.T, e *Engine, id string) domain.ExecutionStatus {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		st, err := e.GetStatus(context.Background(), id)
		if err == nil && st.State.Terminal() {
			return st
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("execution %s never reached a terminal state", id)
	return domain.ExecutionStatus{}
}

// scriptedExecutor settles hops 1:1 with fixed gas, failing the call
// numbers listed in failCalls (1-based).
type scriptedExecutor struct {
	mu        sync.Mutex
	calls     int
	failCalls map[int]bool
}

func (s *scriptedExecutor) ExecuteHop(_ context.Context, venueID, assetIn, assetOut string, amount *big.Int) (domain.HopResult, error) {
	s.mu.Lock()
	s.calls++
	n := s.calls
	s.mu.Unlock()
	if s.failCalls[n] {
		return domain.HopResult{}, &domain.HopError{
			Code:    domain.CodeInsufficientLiquidity,
			Message: "scripted failure",
		}
	}
	return domain.HopResult{
		AmountOut: new(big.Int).Set(amount),
		GasUsed:   big.NewInt(21_000),
	}, nil
}

func (s *scriptedExecutor) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// blockingExecutor parks the first hop until released so tests can observe
// the executing state.
type blockingExecutor struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func newBlockingExecutor() *blockingExecutor {
	return &blockingExecutor{started: make(chan struct{}), release: make(chan struct{})}
}

func (b *blockingExecutor) ExecuteHop(_ context.Context, venueID, assetIn, assetOut string, amount *big.Int) (domain.HopResult, error) {
	b.once.Do(func() { close(b.started) })
	<-b.release
	return domain.HopResult{AmountOut: new(big.Int).Set(amount), GasUsed: big.NewInt(21_000)}, nil
}

func TestExecuteImmediateCompletes(t *testing.T) {
	market := testMarket()
	history := memory.NewExecutionHistory()
	hops := NewSimulatedSettlement(testVenues(), market)
	e := New(fastConfig(), market, hops, history, testLogger())
	e.Start(context.Background())

	id, err := e.Execute(context.Background(), domain.ExecutionStrategy{
		Timing:   domain.TimingImmediate,
		Route:    directRoute(),
		IntentID: "intent-1",
		SolverID: "s1",
	})
	if err != nil {
		t.Fatalf("Execute = %v", err)
	}

	final := waitTerminal(t, e, id)
	if final.State != domain.ExecStateCompleted {
		t.Fatalf("state = %s, errors = %+v", final.State, final.Errors)
	}
	if final.IntentID != "intent-1" || final.SolverID != "s1" {
		t.Errorf("attribution = (%q, %q), want the plan's intent and solver", final.IntentID, final.SolverID)
	}
	if final.Progress != 100 {
		t.Errorf("progress = %v, want 100", final.Progress)
	}
	// 1_000_000 in at 2.5 less the 0.3% venue fee.
	if want := big.NewInt(2_492_500); final.RealizedOut.Cmp(want) != 0 {
		t.Errorf("realized out = %s, want %s", final.RealizedOut, want)
	}
	if want := big.NewInt(50_000); final.GasUsed.Cmp(want) != 0 {
		t.Errorf("gas used = %s, want %s (one simulated hop)", final.GasUsed, want)
	}
	if final.CompletedAt == nil {
		t.Error("completed attempt has no completion time")
	}

	// Terminal attempts move from the active set into history.
	if e.ActiveCount() != 0 {
		t.Errorf("active count = %d after completion", e.ActiveCount())
	}
	if _, err := history.GetByID(context.Background(), id); err != nil {
		t.Errorf("history lookup = %v", err)
	}
}

func TestExecuteRejectsInvalidRoute(t *testing.T) {
	e := New(fastConfig(), testMarket(), &scriptedExecutor{}, memory.NewExecutionHistory(), testLogger())
	route := directRoute()
	route.Venues = nil
	_, err := e.Execute(context.Background(), domain.ExecutionStrategy{Route: route})
	if !errors.Is(err, domain.ErrInvalidRoute) {
		t.Errorf("Execute = %v, want ErrInvalidRoute", err)
	}
}

func TestSlippageCeilingFailsValidation(t *testing.T) {
	hops := &scriptedExecutor{}
	e := New(fastConfig(), testMarket(), hops, memory.NewExecutionHistory(), testLogger())

	route := directRoute()
	route.ExpectedSlippage = 0.08 // above the 5% live ceiling
	id, err := e.Execute(context.Background(), domain.ExecutionStrategy{Route: route})
	if err != nil {
		t.Fatalf("Execute = %v", err)
	}
	final := waitTerminal(t, e, id)
	if final.State != domain.ExecStateFailed {
		t.Fatalf("state = %s", final.State)
	}
	if len(final.Errors) == 0 || final.Errors[len(final.Errors)-1].Code != domain.CodeValidationFailed {
		t.Errorf("errors = %+v, want terminal %s", final.Errors, domain.CodeValidationFailed)
	}
	if hops.callCount() != 0 {
		t.Errorf("%d hops ran on a route that failed validation", hops.callCount())
	}
}

func TestRiskCriticalAbortsBeforeHops(t *testing.T) {
	cfg := fastConfig()
	cfg.RiskCeiling = 1.0         // let validation pass
	cfg.RiskCriticalCeiling = 0.3 // trip on the live re-check
	market := testMarket()
	market.Volatilities = map[string]float64{"ETH/USDC": 1.0}

	hops := &scriptedExecutor{}
	e := New(cfg, market, hops, memory.NewExecutionHistory(), testLogger())

	route := directRoute()
	route.Confidence = 0.2
	id, err := e.Execute(context.Background(), domain.ExecutionStrategy{Route: route})
	if err != nil {
		t.Fatalf("Execute = %v", err)
	}
	final := waitTerminal(t, e, id)
	if final.State != domain.ExecStateFailed {
		t.Fatalf("state = %s", final.State)
	}
	if final.Errors[len(final.Errors)-1].Code != domain.CodeRiskCritical {
		t.Errorf("terminal code = %s, want %s", final.Errors[len(final.Errors)-1].Code, domain.CodeRiskCritical)
	}
	if hops.callCount() != 0 {
		t.Errorf("%d hops ran after a critical risk abort", hops.callCount())
	}
}

func TestCancelDuringExecution(t *testing.T) {
	hops := newBlockingExecutor()
	history := memory.NewExecutionHistory()
	e := New(fastConfig(), testMarket(), hops, history, testLogger())

	id, err := e.Execute(context.Background(), domain.ExecutionStrategy{Route: directRoute()})
	if err != nil {
		t.Fatalf("Execute = %v", err)
	}
	<-hops.started

	if !e.Cancel(context.Background(), id) {
		t.Fatal("Cancel returned false for an executing attempt")
	}
	close(hops.release)

	// Cancelled attempts leave the active set and never enter history.
	if _, err := e.GetStatus(context.Background(), id); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("GetStatus after cancel = %v, want ErrNotFound", err)
	}
	time.Sleep(20 * time.Millisecond) // let the attempt goroutine drain
	if _, err := history.GetByID(context.Background(), id); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("cancelled attempt reached history: %v", err)
	}

	if e.Cancel(context.Background(), id) {
		t.Error("second Cancel returned true")
	}
	if e.Cancel(context.Background(), "no-such-id") {
		t.Error("Cancel of unknown id returned true")
	}
}

func TestCancelledAttemptSkipsTerminalObserver(t *testing.T) {
	hops := newBlockingExecutor()
	e := New(fastConfig(), testMarket(), hops, memory.NewExecutionHistory(), testLogger())

	var observed []domain.ExecutionStatus
	var mu sync.Mutex
	e.SetOnTerminal(func(st domain.ExecutionStatus) {
		mu.Lock()
		observed = append(observed, st)
		mu.Unlock()
	})

	id, _ := e.Execute(context.Background(), domain.ExecutionStrategy{Route: directRoute()})
	<-hops.started
	e.Cancel(context.Background(), id)
	close(hops.release)
	time.Sleep(20 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(observed) != 0 {
		t.Errorf("terminal observer saw cancelled attempt: %+v", observed)
	}
}

func splitStrategy(n int, failing map[int]bool) (domain.ExecutionStrategy, *scriptedExecutor) {
	route := directRoute()
	parts := domain.SplitAmount(route.AmountIn, n)
	children := make([]domain.SplitOrder, n)
	for i := range children {
		childRoute := route
		childRoute.AmountIn = parts[i]
		children[i] = domain.SplitOrder{
			ID:     route.ID,
			Amount: parts[i],
			Route:  childRoute,
		}
	}
	return domain.ExecutionStrategy{
		Timing:   domain.TimingSplit,
		Route:    route,
		Children: children,
	}, &scriptedExecutor{failCalls: failing}
}

func TestSplitMajorityRule(t *testing.T) {
	tests := []struct {
		name      string
		failCalls map[int]bool
		wantState domain.ExecutionState
	}{
		{"all succeed", nil, domain.ExecStateCompleted},
		{"one of three fails", map[int]bool{2: true}, domain.ExecStateCompleted},
		{"two of three fail", map[int]bool{1: true, 3: true}, domain.ExecStateFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, hops := splitStrategy(3, tt.failCalls)
			e := New(fastConfig(), testMarket(), hops, memory.NewExecutionHistory(), testLogger())

			id, err := e.Execute(context.Background(), plan)
			if err != nil {
				t.Fatalf("Execute = %v", err)
			}
			final := waitTerminal(t, e, id)
			if final.State != tt.wantState {
				t.Fatalf("state = %s, errors = %+v", final.State, final.Errors)
			}
			if hops.callCount() != 3 {
				t.Errorf("hop calls = %d, a failed child must not abort its siblings", hops.callCount())
			}
			if tt.wantState == domain.ExecStateFailed {
				last := final.Errors[len(final.Errors)-1]
				if last.Code != domain.CodeMajorityFailed {
					t.Errorf("terminal code = %s, want %s", last.Code, domain.CodeMajorityFailed)
				}
			}
		})
	}
}

func TestSplitSkipsChildWithUnmetPreconditions(t *testing.T) {
	plan, hops := splitStrategy(3, nil)
	// Static volatility defaults to 0.2 for priced pairs; the middle child
	// demands calmer markets than that and must be skipped, not retried.
	plan.Children[1].Conditions = []domain.ExecutionCondition{
		{Type: domain.ConditionVolatility, Op: domain.OpLT, Threshold: 0.1, Pair: "ETH/USDC"},
	}
	e := New(fastConfig(), testMarket(), hops, memory.NewExecutionHistory(), testLogger())

	id, err := e.Execute(context.Background(), plan)
	if err != nil {
		t.Fatalf("Execute = %v", err)
	}
	final := waitTerminal(t, e, id)
	if final.State != domain.ExecStateCompleted {
		t.Fatalf("state = %s, errors = %+v", final.State, final.Errors)
	}
	if hops.callCount() != 2 {
		t.Errorf("hop calls = %d, skipped child must not execute", hops.callCount())
	}
	var skipped *domain.ExecutionError
	for i := range final.Errors {
		if final.Errors[i].Code == domain.CodeConditionUnmet {
			skipped = &final.Errors[i]
		}
	}
	if skipped == nil {
		t.Fatalf("no %s recorded: %+v", domain.CodeConditionUnmet, final.Errors)
	}
	if !skipped.Recoverable {
		t.Error("skipped child recorded as fatal")
	}
}

func TestDelayedWaitsForConditions(t *testing.T) {
	market := testMarket()
	market.Volatilities = map[string]float64{"ETH/USDC": 0.9}
	hops := &scriptedExecutor{}
	e := New(fastConfig(), market, hops, memory.NewExecutionHistory(), testLogger())

	plan := domain.ExecutionStrategy{
		Timing: domain.TimingDelayed,
		Route:  directRoute(),
		Conditions: []domain.ExecutionCondition{
			{Type: domain.ConditionVolatility, Op: domain.OpLT, Threshold: 0.5, Pair: "ETH/USDC"},
		},
	}

	// Volatility never calms down: the wait window elapses and the attempt
	// fails with a condition timeout.
	id, err := e.Execute(context.Background(), plan)
	if err != nil {
		t.Fatalf("Execute = %v", err)
	}
	final := waitTerminal(t, e, id)
	if final.State != domain.ExecStateFailed {
		t.Fatalf("state = %s", final.State)
	}
	if final.Errors[len(final.Errors)-1].Code != domain.CodeConditionTimeout {
		t.Errorf("terminal code = %s, want %s", final.Errors[len(final.Errors)-1].Code, domain.CodeConditionTimeout)
	}
	if hops.callCount() != 0 {
		t.Errorf("%d hops ran while the gate never opened", hops.callCount())
	}

	// Calm market: the same plan proceeds.
	market.Volatilities["ETH/USDC"] = 0.1
	id, err = e.Execute(context.Background(), plan)
	if err != nil {
		t.Fatalf("Execute = %v", err)
	}
	final = waitTerminal(t, e, id)
	if final.State != domain.ExecStateCompleted {
		t.Errorf("state = %s, errors = %+v", final.State, final.Errors)
	}
}

func TestConfirmationRoundsAdvanceProgress(t *testing.T) {
	cfg := fastConfig()
	cfg.ConfirmationRounds = 2
	cfg.ConfirmationInterval = time.Millisecond
	history := memory.NewExecutionHistory()
	e := New(cfg, testMarket(), &scriptedExecutor{}, history, testLogger())

	id, err := e.Execute(context.Background(), domain.ExecutionStrategy{Route: directRoute()})
	if err != nil {
		t.Fatalf("Execute = %v", err)
	}
	final := waitTerminal(t, e, id)
	if final.State != domain.ExecStateCompleted {
		t.Fatalf("state = %s, errors = %+v", final.State, final.Errors)
	}
	if final.Progress != 100 {
		t.Errorf("progress = %v", final.Progress)
	}
}
