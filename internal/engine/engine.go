// Package engine carries a chosen execution strategy through validation,
// risk re-check, hop-by-hop execution, confirmation waiting, and a
// terminal state. One status object exists per attempt; the engine owns it
// for the attempt's lifetime and retains completed and failed attempts in
// the history store. Cancelled attempts are dropped, not retained.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/solvernet/intentbot/internal/domain"
)

// HopExecutor is the settlement-layer primitive: execute one conversion on
// one venue, returning realized output and gas, or failing.
type HopExecutor interface {
	ExecuteHop(ctx context.Context, venueID, assetIn, assetOut string, amount *big.Int) (domain.HopResult, error)
}

// Config holds the engine's tunables. The risk thresholds default to the
// upstream values (critical 0.9, growth warning 1.2x) but are configuration,
// not constants.
type Config struct {
	DryRun               bool
	MaxSlippageLive      float64
	MaxSlippageDryRun    float64
	RiskCeiling          float64
	RiskCriticalCeiling  float64
	RiskGrowthWarnRatio  float64
	HopPause             time.Duration
	ConfirmationRounds   int
	ConfirmationInterval time.Duration
	ConditionPoll        time.Duration
	ConditionMaxWait     time.Duration
}

// Progress milestones per phase.
const (
	progressValidated   = 10
	progressRiskChecked = 20
	progressExecuted    = 90
	progressDone        = 100
)

// execution is one live attempt. The engine is the only writer; readers
// get copies through GetStatus.
type execution struct {
	mu        sync.Mutex
	status    domain.ExecutionStatus
	plan      domain.ExecutionStrategy
	cancelled bool
}

// Engine runs execution attempts. Active and completed attempts live in
// two disjoint sets: the mutable active map (one writer per id) and the
// write-once history store.
type Engine struct {
	cfg     Config
	market  domain.MarketDataProvider
	hops    HopExecutor
	history domain.ExecutionHistoryStore
	logger  *slog.Logger

	mu     sync.Mutex
	active map[string]*execution

	// onTerminal, when set, observes every completed or failed status
	// (archiver, notifier). Cancelled attempts are not reported.
	onTerminal func(domain.ExecutionStatus)

	runCtx context.Context
}

// New creates an Engine. Attempts spawned by Execute run under the context
// given to Start; until Start is called they run under context.Background.
func New(cfg Config, market domain.MarketDataProvider, hops HopExecutor, history domain.ExecutionHistoryStore, logger *slog.Logger) *Engine {
	return &Engine{
		cfg:     cfg,
		market:  market,
		hops:    hops,
		history: history,
		logger:  logger.With(slog.String("component", "execution_engine")),
		active:  make(map[string]*execution),
		runCtx:  context.Background(),
	}
}

// Start binds the engine's attempt context. Cancelling it aborts in-flight
// attempts at their next phase boundary.
func (e *Engine) Start(ctx context.Context) {
	e.runCtx = ctx
}

// SetOnTerminal registers the terminal-status observer. Must be called
// before the first Execute.
func (e *Engine) SetOnTerminal(fn func(domain.ExecutionStatus)) {
	e.onTerminal = fn
}

// Execute begins an asynchronous attempt for the strategy and returns its
// execution id. Progress is observable through GetStatus.
func (e *Engine) Execute(ctx context.Context, plan domain.ExecutionStrategy) (string, error) {
	if err := plan.Route.Validate(); err != nil {
		return "", fmt.Errorf("engine: execute: %w", err)
	}

	ex := &execution{
		plan: plan,
		status: domain.ExecutionStatus{
			ID:          uuid.NewString(),
			IntentID:    plan.IntentID,
			SolverID:    plan.SolverID,
			State:       domain.ExecStatePending,
			Step:        "queued",
			GasUsed:     new(big.Int),
			RealizedOut: new(big.Int),
			StartedAt:   time.Now(),
		},
	}

	e.mu.Lock()
	e.active[ex.status.ID] = ex
	e.mu.Unlock()

	go e.run(e.runCtx, ex)

	e.logger.InfoContext(ctx, "execution queued",
		slog.String("execution_id", ex.status.ID),
		slog.String("timing", string(plan.Timing)),
		slog.Int("hops", plan.Route.Hops()),
	)
	return ex.status.ID, nil
}

// GetStatus returns a copy of the status for an active or retained
// attempt.
func (e *Engine) GetStatus(ctx context.Context, id string) (domain.ExecutionStatus, error) {
	e.mu.Lock()
	ex, ok := e.active[id]
	e.mu.Unlock()
	if ok {
		return ex.snapshot(), nil
	}
	if e.history != nil {
		return e.history.GetByID(ctx, id)
	}
	return domain.ExecutionStatus{}, fmt.Errorf("engine: execution %s: %w", id, domain.ErrNotFound)
}

// Cancel requests cancellation of an attempt. Only pending or executing
// attempts can be cancelled; anything else is a no-op returning false.
// Cancellation is cooperative: a hop already in flight completes or fails
// on its own before the engine observes the flag, but the attempt is
// immediately marked cancelled and removed from the active set.
func (e *Engine) Cancel(ctx context.Context, id string) bool {
	e.mu.Lock()
	ex, ok := e.active[id]
	e.mu.Unlock()
	if !ok {
		return false
	}

	ex.mu.Lock()
	switch ex.status.State {
	case domain.ExecStatePending, domain.ExecStateExecuting:
		ex.cancelled = true
		ex.status.State = domain.ExecStateCancelled
		ex.status.Step = "cancelled"
		now := time.Now()
		ex.status.CompletedAt = &now
	default:
		ex.mu.Unlock()
		return false
	}
	ex.mu.Unlock()

	e.mu.Lock()
	delete(e.active, id)
	e.mu.Unlock()

	e.logger.InfoContext(ctx, "execution cancelled", slog.String("execution_id", id))
	return true
}

// ActiveCount returns the number of live attempts.
func (e *Engine) ActiveCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.active)
}

// ---------------------------------------------------------------------------
// Attempt lifecycle
// ---------------------------------------------------------------------------

func (e *Engine) run(ctx context.Context, ex *execution) {
	// Phase 1: validation, 0-10%.
	ex.setState(domain.ExecStateValidating, "validating route")
	plannedRisk, err := e.validate(ex)
	if err != nil {
		e.fail(ctx, ex, domain.ExecutionError{
			Code: domain.CodeValidationFailed, Message: err.Error(),
			Step: "validation", At: time.Now(),
		})
		return
	}
	ex.setProgress(progressValidated)
	if ex.isCancelled() {
		return
	}

	// Phase 2: risk re-check, 10-20%.
	ex.setState(domain.ExecStateRiskChecking, "re-checking risk")
	if err := e.riskRecheck(ctx, ex, plannedRisk); err != nil {
		e.fail(ctx, ex, domain.ExecutionError{
			Code: domain.CodeRiskCritical, Message: err.Error(),
			Step: "risk_check", At: time.Now(),
		})
		return
	}
	ex.setProgress(progressRiskChecked)
	if ex.isCancelled() {
		return
	}

	// Phase 3: execution, 20-90%.
	ex.setState(domain.ExecStateExecuting, "executing")
	var execErr *domain.ExecutionError
	switch ex.plan.Timing {
	case domain.TimingSplit:
		execErr = e.executeSplit(ctx, ex)
	case domain.TimingDelayed:
		execErr = e.executeDelayed(ctx, ex)
	default:
		execErr = e.executeImmediate(ctx, ex, ex.plan.Route, ex.plan.Route.AmountIn, progressRiskChecked, progressExecuted)
	}
	if ex.isCancelled() {
		return
	}
	if execErr != nil {
		e.fail(ctx, ex, *execErr)
		return
	}
	ex.setProgress(progressExecuted)

	// Phase 4: confirmation wait, 90-100%.
	if err := e.awaitConfirmations(ctx, ex); err != nil {
		e.fail(ctx, ex, domain.ExecutionError{
			Code: domain.CodeNetworkCongestion, Message: err.Error(),
			Step: "confirmation", At: time.Now(),
		})
		return
	}
	if ex.isCancelled() {
		return
	}

	ex.setProgress(progressDone)
	e.finish(ctx, ex, domain.ExecStateCompleted)
}

// validate applies the pre-flight route checks and returns the planned
// risk score.
func (e *Engine) validate(ex *execution) (float64, error) {
	route := ex.plan.Route
	if err := route.Validate(); err != nil {
		return 0, err
	}
	maxSlippage := e.cfg.MaxSlippageLive
	if e.cfg.DryRun {
		maxSlippage = e.cfg.MaxSlippageDryRun
	}
	if route.ExpectedSlippage > maxSlippage {
		return 0, fmt.Errorf("slippage %.4f exceeds ceiling %.4f", route.ExpectedSlippage, maxSlippage)
	}
	risk := e.assessRisk(route, 0)
	if risk > e.cfg.RiskCeiling {
		return 0, fmt.Errorf("route risk %.3f exceeds ceiling %.3f: %w", risk, e.cfg.RiskCeiling, domain.ErrRiskCeiling)
	}
	return risk, nil
}

// riskRecheck re-assesses risk with live volatility immediately before
// committing. Material growth records a recoverable warning; crossing the
// critical ceiling aborts fatally.
func (e *Engine) riskRecheck(ctx context.Context, ex *execution, plannedRisk float64) error {
	route := ex.plan.Route
	pair := domain.MakePair(route.Path[0], route.Path[len(route.Path)-1])
	vol, err := e.market.Volatility(ctx, pair)
	if err != nil {
		// No live volatility: fall back to the planned assessment.
		vol = 0
	}
	risk := e.assessRisk(route, vol)
	if risk >= e.cfg.RiskCriticalCeiling {
		return fmt.Errorf("risk %.3f crossed critical ceiling %.3f: %w", risk, e.cfg.RiskCriticalCeiling, domain.ErrRiskCeiling)
	}
	if plannedRisk > 0 && risk/plannedRisk > e.cfg.RiskGrowthWarnRatio {
		ex.appendError(domain.ExecutionError{
			Code:        domain.CodeRiskIncreased,
			Message:     fmt.Sprintf("risk grew from %.3f to %.3f since planning", plannedRisk, risk),
			Step:        "risk_check",
			Recoverable: true,
			At:          time.Now(),
		})
		e.logger.WarnContext(ctx, "risk grew materially since planning",
			slog.String("execution_id", ex.snapshot().ID),
			slog.Float64("planned", plannedRisk),
			slog.Float64("current", risk),
		)
	}
	return nil
}

// assessRisk folds slippage, confidence, path length, and volatility into
// a single score in [0,1].
func (e *Engine) assessRisk(route domain.ExecutionRoute, volatility float64) float64 {
	risk := 0.4*clamp01(route.ExpectedSlippage*10) +
		0.3*(1-route.Confidence) +
		0.1*clamp01(float64(route.Hops()-1)/3) +
		0.2*clamp01(volatility)
	return clamp01(risk)
}

// awaitConfirmations waits the configured confirmation rounds, advancing
// progress proportionally from 90 toward 100.
func (e *Engine) awaitConfirmations(ctx context.Context, ex *execution) error {
	rounds := e.cfg.ConfirmationRounds
	if rounds <= 0 {
		return nil
	}
	span := float64(progressDone - progressExecuted)
	for i := 1; i <= rounds; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(e.cfg.ConfirmationInterval):
		}
		if ex.isCancelled() {
			return nil
		}
		ex.setProgress(float64(progressExecuted) + span*float64(i)/float64(rounds))
		ex.setStep(fmt.Sprintf("confirmation %d/%d", i, rounds))
	}
	return nil
}

// fail moves the attempt to failed with the terminal error attached.
// Failed attempts are retained in history; no error is ever swallowed.
func (e *Engine) fail(ctx context.Context, ex *execution, terminal domain.ExecutionError) {
	ex.appendError(terminal)
	e.logger.ErrorContext(ctx, "execution failed",
		slog.String("execution_id", ex.snapshot().ID),
		slog.String("code", terminal.Code),
		slog.String("step", terminal.Step),
		slog.String("error", terminal.Message),
	)
	e.finish(ctx, ex, domain.ExecStateFailed)
}

// finish records the terminal state, moves the attempt from the active set
// into history, and notifies the terminal observer.
func (e *Engine) finish(ctx context.Context, ex *execution, state domain.ExecutionState) {
	ex.mu.Lock()
	if ex.cancelled {
		ex.mu.Unlock()
		return
	}
	ex.status.State = state
	now := time.Now()
	ex.status.CompletedAt = &now
	if state == domain.ExecStateCompleted {
		ex.status.Step = "completed"
	}
	final := cloneStatus(ex.status)
	ex.mu.Unlock()

	e.mu.Lock()
	delete(e.active, final.ID)
	e.mu.Unlock()

	if e.history != nil {
		if err := e.history.Insert(ctx, final); err != nil {
			e.logger.WarnContext(ctx, "history insert failed",
				slog.String("execution_id", final.ID),
				slog.String("error", err.Error()),
			)
		}
	}
	if e.onTerminal != nil {
		e.onTerminal(final)
	}
}

// ---------------------------------------------------------------------------
// execution accessors
// ---------------------------------------------------------------------------

func (x *execution) snapshot() domain.ExecutionStatus {
	x.mu.Lock()
	defer x.mu.Unlock()
	return cloneStatus(x.status)
}

func (x *execution) isCancelled() bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.cancelled
}

func (x *execution) setState(s domain.ExecutionState, step string) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.cancelled {
		return
	}
	x.status.State = s
	x.status.Step = step
}

func (x *execution) setStep(step string) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.status.Step = step
}

// setProgress advances progress; it never moves backwards.
func (x *execution) setProgress(p float64) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if p > x.status.Progress {
		x.status.Progress = p
	}
}

func (x *execution) appendError(err domain.ExecutionError) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.status.Errors = append(x.status.Errors, err)
}

func (x *execution) addRealized(gas, out *big.Int) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if gas != nil {
		x.status.GasUsed.Add(x.status.GasUsed, gas)
	}
	if out != nil {
		x.status.RealizedOut.Add(x.status.RealizedOut, out)
	}
}

func cloneStatus(s domain.ExecutionStatus) domain.ExecutionStatus {
	out := s
	out.GasUsed = new(big.Int).Set(s.GasUsed)
	out.RealizedOut = new(big.Int).Set(s.RealizedOut)
	out.Errors = append([]domain.ExecutionError(nil), s.Errors...)
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
