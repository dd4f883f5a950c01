package domain

import (
	"errors"
	"math/big"
	"testing"
	"time"
)

func validIntent(now time.Time) Intent {
	return Intent{
		ID:           "intent-1",
		User:         "0xabc",
		AssetIn:      "ETH",
		AmountIn:     big.NewInt(1_000_000),
		AssetOut:     "USDC",
		AmountOutMin: big.NewInt(2_500_000),
		Nonce:        7,
		Status:       IntentPending,
		CreatedAt:    now,
		ExpiresAt:    now.Add(5 * time.Minute),
	}
}

func TestIntentValidate(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name    string
		mutate  func(*Intent)
		wantErr error
	}{
		{name: "valid", mutate: func(i *Intent) {}},
		{
			name:    "missing id",
			mutate:  func(i *Intent) { i.ID = "" },
			wantErr: ErrInvalidIntent,
		},
		{
			name:    "missing user",
			mutate:  func(i *Intent) { i.User = "" },
			wantErr: ErrInvalidIntent,
		},
		{
			name:    "same asset both sides",
			mutate:  func(i *Intent) { i.AssetOut = i.AssetIn },
			wantErr: ErrUnsupportedAsset,
		},
		{
			name:    "empty asset",
			mutate:  func(i *Intent) { i.AssetIn = "" },
			wantErr: ErrUnsupportedAsset,
		},
		{
			name:    "nil amount in",
			mutate:  func(i *Intent) { i.AmountIn = nil },
			wantErr: ErrInvalidIntent,
		},
		{
			name:    "zero amount in",
			mutate:  func(i *Intent) { i.AmountIn = big.NewInt(0) },
			wantErr: ErrInvalidIntent,
		},
		{
			name:    "negative min out",
			mutate:  func(i *Intent) { i.AmountOutMin = big.NewInt(-1) },
			wantErr: ErrInvalidIntent,
		},
		{
			name:    "expired",
			mutate:  func(i *Intent) { i.ExpiresAt = now.Add(-time.Second) },
			wantErr: ErrIntentExpired,
		},
		{
			// Zero min-out is a market order: any output satisfies it.
			name:   "zero min out allowed",
			mutate: func(i *Intent) { i.AmountOutMin = big.NewInt(0) },
		},
		{
			// A zero deadline means no expiry.
			name:   "zero deadline never expires",
			mutate: func(i *Intent) { i.ExpiresAt = time.Time{} },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			intent := validIntent(now)
			tt.mutate(&intent)
			err := intent.Validate(now)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestRouteValidate(t *testing.T) {
	valid := ExecutionRoute{
		Path:         []string{"ETH", "USDC"},
		Venues:       []string{"uni"},
		AmountIn:     big.NewInt(100),
		EstimatedOut: big.NewInt(250),
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid route rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*ExecutionRoute)
	}{
		{"path venue mismatch", func(r *ExecutionRoute) { r.Venues = append(r.Venues, "sushi") }},
		{"too short path", func(r *ExecutionRoute) { r.Path = []string{"ETH"}; r.Venues = nil }},
		{"nil amount", func(r *ExecutionRoute) { r.AmountIn = nil }},
		{"zero estimated out", func(r *ExecutionRoute) { r.EstimatedOut = big.NewInt(0) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := valid
			tt.mutate(&r)
			if err := r.Validate(); !errors.Is(err, ErrInvalidRoute) {
				t.Fatalf("Validate() = %v, want ErrInvalidRoute", err)
			}
		})
	}
}

func TestExecutionStateTerminal(t *testing.T) {
	terminal := []ExecutionState{ExecStateCompleted, ExecStateFailed, ExecStateCancelled}
	for _, s := range terminal {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	live := []ExecutionState{ExecStatePending, ExecStateValidating, ExecStateRiskChecking, ExecStateExecuting}
	for _, s := range live {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}
