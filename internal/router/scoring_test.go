package router

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/solvernet/intentbot/internal/domain"
)

// fixtureRoutes builds two direct candidates over the same pair where venue
// "cheap" out-earns venue "pricey" purely through its lower fee.
func fixtureRoutes() []domain.ExecutionRoute {
	return []domain.ExecutionRoute{
		{
			ID:               "via-pricey",
			Path:             []string{"ETH", "USDC"},
			Venues:           []string{"pricey"},
			AmountIn:         big.NewInt(1_000_000),
			EstimatedOut:     big.NewInt(2_490_000_000), // 0.4% fee
			Fees:             feeTotal(10_000_000),
			ExpectedSlippage: 0.004,
			EstimatedTime:    20 * time.Second,
			Confidence:       0.94,
		},
		{
			ID:               "via-cheap",
			Path:             []string{"ETH", "USDC"},
			Venues:           []string{"cheap"},
			AmountIn:         big.NewInt(1_000_000),
			EstimatedOut:     big.NewInt(2_492_500_000), // 0.3% fee
			Fees:             feeTotal(7_500_000),
			ExpectedSlippage: 0.004,
			EstimatedTime:    25 * time.Second,
			Confidence:       0.94,
		},
	}
}

func feeTotal(total int64) domain.FeeBreakdown {
	return domain.FeeBreakdown{
		ProtocolFee:  big.NewInt(total),
		GasFee:       big.NewInt(150_000),
		SlippageCost: big.NewInt(0),
		Total:        big.NewInt(total + 150_000),
	}
}

func TestRankCostPrefersCheaperVenue(t *testing.T) {
	s := NewScorer(testRegistry(), testConfig(), testLogger())

	ranked, err := s.Rank(context.Background(), fixtureRoutes(), domain.ObjectiveCost, domain.RouteConstraints{})
	if err != nil {
		t.Fatalf("Rank = %v", err)
	}
	if len(ranked) != 2 {
		t.Fatalf("got %d ranked routes", len(ranked))
	}
	if ranked[0].Route.Venues[0] != "cheap" {
		t.Errorf("cost objective ranked %s first", ranked[0].Route.Venues[0])
	}
	if ranked[0].Score < ranked[1].Score {
		t.Errorf("scores not descending: %v then %v", ranked[0].Score, ranked[1].Score)
	}
}

func TestRankSpeedPrefersFasterVenue(t *testing.T) {
	s := NewScorer(testRegistry(), testConfig(), testLogger())

	ranked, err := s.Rank(context.Background(), fixtureRoutes(), domain.ObjectiveSpeed, domain.RouteConstraints{})
	if err != nil {
		t.Fatalf("Rank = %v", err)
	}
	if ranked[0].Route.Venues[0] != "pricey" {
		t.Errorf("speed objective ranked %s first", ranked[0].Route.Venues[0])
	}
}

func TestRankConstraintFiltering(t *testing.T) {
	s := NewScorer(testRegistry(), testConfig(), testLogger())
	ctx := context.Background()

	ranked, err := s.Rank(ctx, fixtureRoutes(), domain.ObjectiveCost, domain.RouteConstraints{
		MaxExecTime: 22 * time.Second,
	})
	if err != nil {
		t.Fatalf("Rank = %v", err)
	}
	if len(ranked) != 1 || ranked[0].Route.Venues[0] != "pricey" {
		t.Errorf("time constraint kept %+v", ranked)
	}

	if _, err := s.Rank(ctx, fixtureRoutes(), domain.ObjectiveCost, domain.RouteConstraints{
		MaxSlippage: 0.0001,
	}); !errors.Is(err, domain.ErrNoRoutes) {
		t.Errorf("all-filtered Rank = %v, want ErrNoRoutes", err)
	}
}

func TestRankMinAmountOutFiltering(t *testing.T) {
	s := NewScorer(testRegistry(), testConfig(), testLogger())
	ctx := context.Background()

	// Floor sits between the two estimates: only "cheap" clears it.
	ranked, err := s.Rank(ctx, fixtureRoutes(), domain.ObjectiveCost, domain.RouteConstraints{
		MinAmountOut: big.NewInt(2_491_000_000),
	})
	if err != nil {
		t.Fatalf("Rank = %v", err)
	}
	if len(ranked) != 1 || ranked[0].Route.Venues[0] != "cheap" {
		t.Errorf("output floor kept %+v", ranked)
	}

	// Floor above every estimate drops all candidates.
	if _, err := s.Rank(ctx, fixtureRoutes(), domain.ObjectiveCost, domain.RouteConstraints{
		MinAmountOut: big.NewInt(3_000_000_000),
	}); !errors.Is(err, domain.ErrNoRoutes) {
		t.Errorf("unreachable floor Rank = %v, want ErrNoRoutes", err)
	}

	// A route with no estimate never clears a positive floor.
	noEstimate := fixtureRoutes()
	noEstimate[0].EstimatedOut = nil
	ranked, err = s.Rank(ctx, noEstimate, domain.ObjectiveCost, domain.RouteConstraints{
		MinAmountOut: big.NewInt(1),
	})
	if err != nil {
		t.Fatalf("Rank = %v", err)
	}
	if len(ranked) != 1 || ranked[0].Route.ID != "via-cheap" {
		t.Errorf("nil-estimate route survived: %+v", ranked)
	}
}

func TestRankDeterministic(t *testing.T) {
	s := NewScorer(testRegistry(), testConfig(), testLogger())
	ctx := context.Background()

	for _, objective := range []domain.Objective{
		domain.ObjectiveSpeed, domain.ObjectiveCost, domain.ObjectiveSecurity, domain.ObjectiveBalanced,
	} {
		first, err := s.Rank(ctx, fixtureRoutes(), objective, domain.RouteConstraints{})
		if err != nil {
			t.Fatalf("%s: Rank = %v", objective, err)
		}
		for i := 0; i < 5; i++ {
			again, err := s.Rank(ctx, fixtureRoutes(), objective, domain.RouteConstraints{})
			if err != nil {
				t.Fatalf("%s: repeat Rank = %v", objective, err)
			}
			for j := range first {
				if first[j].Route.ID != again[j].Route.ID || first[j].Score != again[j].Score {
					t.Fatalf("%s: run %d reordered: %s/%v vs %s/%v",
						objective, i, first[j].Route.ID, first[j].Score, again[j].Route.ID, again[j].Score)
				}
			}
		}
	}
}
