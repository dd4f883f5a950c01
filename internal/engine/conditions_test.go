package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/solvernet/intentbot/internal/domain"
	"github.com/solvernet/intentbot/internal/marketdata"
	"github.com/solvernet/intentbot/internal/store/memory"
)

func TestCompare(t *testing.T) {
	tests := []struct {
		value     float64
		op        domain.ConditionOp
		threshold float64
		want      bool
	}{
		{1.0, domain.OpGTE, 1.0, true},
		{0.9, domain.OpGTE, 1.0, false},
		{1.0, domain.OpLTE, 1.0, true},
		{1.1, domain.OpLTE, 1.0, false},
		{1.1, domain.OpGT, 1.0, true},
		{1.0, domain.OpGT, 1.0, false},
		{0.9, domain.OpLT, 1.0, true},
		{1.0, domain.OpLT, 1.0, false},
		{1.0, domain.ConditionOp("unknown"), 1.0, false},
	}
	for _, tt := range tests {
		if got := compare(tt.value, tt.op, tt.threshold); got != tt.want {
			t.Errorf("compare(%v, %s, %v) = %v, want %v", tt.value, tt.op, tt.threshold, got, tt.want)
		}
	}
}

func TestEvalCondition(t *testing.T) {
	market := &marketdata.Static{
		Prices:     map[string]float64{"ETH/USDC": 2500},
		Liquidity:  map[string]float64{"ETH/USDC": 0.8},
		Volatilities: map[string]float64{"ETH/USDC": 0.3},
	}
	e := New(fastConfig(), market, &scriptedExecutor{}, memory.NewExecutionHistory(), testLogger())
	ctx := context.Background()

	tests := []struct {
		name    string
		cond    domain.ExecutionCondition
		want    bool
		wantErr bool
	}{
		{"price above", domain.ExecutionCondition{Type: domain.ConditionPrice, Op: domain.OpGT, Threshold: 2000, Pair: "ETH/USDC"}, true, false},
		{"price below", domain.ExecutionCondition{Type: domain.ConditionPrice, Op: domain.OpLT, Threshold: 2000, Pair: "ETH/USDC"}, false, false},
		{"liquidity floor", domain.ExecutionCondition{Type: domain.ConditionLiquidity, Op: domain.OpGTE, Threshold: 0.8, Pair: "ETH/USDC"}, true, false},
		{"volatility gate", domain.ExecutionCondition{Type: domain.ConditionVolatility, Op: domain.OpLT, Threshold: 0.5, Pair: "ETH/USDC"}, true, false},
		{"time already passed", domain.ExecutionCondition{Type: domain.ConditionTime, Op: domain.OpGTE, Threshold: 0}, true, false},
		{"unknown pair", domain.ExecutionCondition{Type: domain.ConditionPrice, Op: domain.OpGT, Threshold: 1, Pair: "XX/YY"}, false, true},
		{"unknown type", domain.ExecutionCondition{Type: domain.ConditionType("weather"), Op: domain.OpGT, Threshold: 1}, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.evalCondition(ctx, tt.cond)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("evalCondition = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCheckConditionsAllMustHold(t *testing.T) {
	market := &marketdata.Static{
		Prices:     map[string]float64{"ETH/USDC": 2500},
		Volatilities: map[string]float64{"ETH/USDC": 0.9},
	}
	e := New(fastConfig(), market, &scriptedExecutor{}, memory.NewExecutionHistory(), testLogger())

	conds := []domain.ExecutionCondition{
		{Type: domain.ConditionPrice, Op: domain.OpGT, Threshold: 2000, Pair: "ETH/USDC"},
		{Type: domain.ConditionVolatility, Op: domain.OpLT, Threshold: 0.5, Pair: "ETH/USDC"},
	}
	met, err := e.checkConditions(context.Background(), conds)
	if err != nil {
		t.Fatalf("checkConditions = %v", err)
	}
	if met {
		t.Error("conditions held with one predicate false")
	}

	met, err = e.checkConditions(context.Background(), nil)
	if err != nil || !met {
		t.Errorf("empty condition set = (%v, %v), want (true, nil)", met, err)
	}
}

func TestWaitForConditionsDeadline(t *testing.T) {
	market := &marketdata.Static{
		Prices:     map[string]float64{"ETH/USDC": 2500},
		Volatilities: map[string]float64{"ETH/USDC": 0.9},
	}
	e := New(fastConfig(), market, &scriptedExecutor{}, memory.NewExecutionHistory(), testLogger())
	ex := &execution{}

	conds := []domain.ExecutionCondition{
		{Type: domain.ConditionVolatility, Op: domain.OpLT, Threshold: 0.5, Pair: "ETH/USDC"},
	}

	start := time.Now()
	err := e.waitForConditions(context.Background(), ex, conds)
	elapsed := time.Since(start)

	if !errors.Is(err, domain.ErrConditionTimeout) {
		t.Fatalf("waitForConditions = %v, want ErrConditionTimeout", err)
	}
	if elapsed < e.cfg.ConditionMaxWait {
		t.Errorf("gave up after %v, before the %v window", elapsed, e.cfg.ConditionMaxWait)
	}
	if elapsed > time.Second {
		t.Errorf("took %v, want roughly the wait window", elapsed)
	}
}

func TestWaitForConditionsContextCancel(t *testing.T) {
	cfg := fastConfig()
	cfg.ConditionMaxWait = 5 * time.Second
	market := &marketdata.Static{
		Prices:     map[string]float64{"ETH/USDC": 2500},
		Volatilities: map[string]float64{"ETH/USDC": 0.9},
	}
	e := New(cfg, market, &scriptedExecutor{}, memory.NewExecutionHistory(), testLogger())
	ex := &execution{}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := e.waitForConditions(ctx, ex, []domain.ExecutionCondition{
		{Type: domain.ConditionVolatility, Op: domain.OpLT, Threshold: 0.5, Pair: "ETH/USDC"},
	})
	if !errors.Is(err, domain.ErrContextDone) {
		t.Errorf("waitForConditions = %v, want ErrContextDone", err)
	}
}
