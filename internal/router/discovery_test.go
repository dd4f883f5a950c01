package router

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
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() Config {
	return Config{
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
		SpeedWeights:    Weights{Primary: 0.6, Secondary: 0.3, Tertiary: 0.1},
		CostWeights:     Weights{Primary: 0.5, Secondary: 0.3, Tertiary: 0.2},
		SecurityWeights: Weights{Primary: 0.4, Secondary: 0.3, Tertiary: 0.3},
	}
}

func testRegistry() *registry.Registry {
	return registry.New([]domain.Venue{
		{
			ID: "uni", FeeRate: 0.003, Reputation: 0.95, LiquidityScore: 0.9,
			GasMultiplier: 1.0, AvgExecTime: 15 * time.Second,
			Pairs: []string{"ETH/USDC", "ETH/USDT"},
		},
		{
			ID: "sushi", FeeRate: 0.004, Reputation: 0.85, LiquidityScore: 0.7,
			GasMultiplier: 1.1, AvgExecTime: 45 * time.Second,
			Pairs: []string{"ETH/USDC"},
		},
		{
			ID: "curve", FeeRate: 0.0004, Reputation: 0.9, LiquidityScore: 0.95,
			GasMultiplier: 0.8, AvgExecTime: 12 * time.Second,
			Pairs: []string{"USDT/USDC"},
		},
	})
}

func testMarket() *marketdata.Static {
	return &marketdata.Static{
		Prices: map[string]float64{
			"ETH/USDC":  2500,
			"ETH/USDT":  2500,
			"USDT/USDC": 1.0,
		},
	}
}

func TestDiscoverRouteInvariants(t *testing.T) {
	d := NewDiscovery(testRegistry(), testMarket(), testConfig(), testLogger())
	amount := big.NewInt(1_000_000)

	routes, err := d.Discover(context.Background(), "ETH", "USDC", amount)
	if err != nil {
		t.Fatalf("Discover = %v", err)
	}
	if len(routes) < 2 {
		t.Fatalf("got %d routes, want at least direct pair", len(routes))
	}

	for _, r := range routes {
		if len(r.Path)-1 != len(r.Venues) {
			t.Errorf("route %s: path %v venues %v violate len(Path)==len(Venues)+1", r.ID, r.Path, r.Venues)
		}
		if r.Path[0] != "ETH" || r.Path[len(r.Path)-1] != "USDC" {
			t.Errorf("route %s: endpoints %v", r.ID, r.Path)
		}
		if r.AmountIn.Cmp(amount) != 0 {
			t.Errorf("route %s: amount in %s", r.ID, r.AmountIn)
		}
		if r.EstimatedOut.Sign() <= 0 {
			t.Errorf("route %s: non-positive estimated out", r.ID)
		}
		if r.ExpectedSlippage <= 0 {
			t.Errorf("route %s: no slippage estimate", r.ID)
		}
		if r.Confidence <= 0 || r.Confidence > 1 {
			t.Errorf("route %s: confidence %v out of range", r.ID, r.Confidence)
		}
		if r.Fees.Total == nil || r.Fees.Total.Sign() <= 0 {
			t.Errorf("route %s: missing fee total", r.ID)
		}
		if err := r.Validate(); err != nil {
			t.Errorf("route %s: %v", r.ID, err)
		}
	}
}

func TestDiscoverInputChecks(t *testing.T) {
	d := NewDiscovery(testRegistry(), testMarket(), testConfig(), testLogger())
	ctx := context.Background()

	if _, err := d.Discover(ctx, "ETH", "ETH", big.NewInt(1)); !errors.Is(err, domain.ErrUnsupportedAsset) {
		t.Errorf("same-asset discover = %v", err)
	}
	if _, err := d.Discover(ctx, "", "USDC", big.NewInt(1)); !errors.Is(err, domain.ErrUnsupportedAsset) {
		t.Errorf("empty-asset discover = %v", err)
	}
	if _, err := d.Discover(ctx, "ETH", "USDC", nil); !errors.Is(err, domain.ErrInvalidIntent) {
		t.Errorf("nil-amount discover = %v", err)
	}
	if _, err := d.Discover(ctx, "DOGE", "SHIB", big.NewInt(1)); !errors.Is(err, domain.ErrNoRoutes) {
		t.Errorf("unroutable pair = %v", err)
	}
}

func TestMultiHopConfidenceBelowDirect(t *testing.T) {
	d := NewDiscovery(testRegistry(), testMarket(), testConfig(), testLogger())

	routes, err := d.Discover(context.Background(), "ETH", "USDC", big.NewInt(1_000_000))
	if err != nil {
		t.Fatalf("Discover = %v", err)
	}

	minDirect, maxMulti := 2.0, -1.0
	for _, r := range routes {
		if r.Direct() {
			if r.Confidence < minDirect {
				minDirect = r.Confidence
			}
		} else if r.Confidence > maxMulti {
			maxMulti = r.Confidence
		}
	}
	if maxMulti < 0 {
		t.Fatal("no multi-hop route discovered; check the bridge fixture")
	}
	if maxMulti >= minDirect {
		t.Errorf("multi-hop confidence %v not below direct %v", maxMulti, minDirect)
	}
}

func TestDiscoverSkipsUnpriceableVenues(t *testing.T) {
	market := testMarket()
	delete(market.Prices, "ETH/USDT") // kills the bridge's first hop
	d := NewDiscovery(testRegistry(), market, testConfig(), testLogger())

	routes, err := d.Discover(context.Background(), "ETH", "USDC", big.NewInt(1000))
	if err != nil {
		t.Fatalf("Discover = %v", err)
	}
	for _, r := range routes {
		if !r.Direct() {
			t.Errorf("bridge route %v survived without a price", r.Path)
		}
	}
}

// forPairRecorder wraps a registry and records every pair lookup.
type forPairRecorder struct {
	*registry.Registry
	mu    sync.Mutex
	pairs []string
}

func (r *forPairRecorder) ForPair(ctx context.Context, pair string) ([]domain.Venue, error) {
	r.mu.Lock()
	r.pairs = append(r.pairs, pair)
	r.mu.Unlock()
	return r.Registry.ForPair(ctx, pair)
}

func TestMultiHopSkipsUnlistedBridges(t *testing.T) {
	// "DAI" is configured as a bridge but no venue lists any DAI pair.
	// The three-hop walk must drop it from the template grid up front:
	// bridge-to-bridge pairs through DAI are only ever looked up by that
	// walk, so none may reach the registry.
	cfg := testConfig()
	cfg.BridgeAssets = []string{"USDT", "DAI"}
	venues := &forPairRecorder{Registry: testRegistry()}
	d := NewDiscovery(venues, testMarket(), cfg, testLogger())

	if _, err := d.Discover(context.Background(), "ETH", "USDC", big.NewInt(1_000_000)); err != nil {
		t.Fatalf("Discover = %v", err)
	}
	for _, pair := range venues.pairs {
		if pair == "USDT/DAI" || pair == "DAI/USDT" {
			t.Errorf("walk looked up %s despite no venue listing DAI", pair)
		}
	}
}

func TestExpectedSlippageModel(t *testing.T) {
	cfg := testConfig()

	small := cfg.expectedSlippage(0.9, big.NewInt(1000))
	large := cfg.expectedSlippage(0.9, big.NewInt(900_000))
	if large <= small {
		t.Errorf("size impact missing: small %v large %v", small, large)
	}

	thin := cfg.expectedSlippage(0.05, big.NewInt(1000))
	deep := cfg.expectedSlippage(0.95, big.NewInt(1000))
	if thin <= deep {
		t.Errorf("liquidity impact missing: thin %v deep %v", thin, deep)
	}

	// Both impact terms are capped.
	extreme := cfg.expectedSlippage(0.0001, big.NewInt(100_000_000))
	if max := cfg.BaseSlippage + cfg.LiquidityCap + cfg.SizeImpactCap; extreme > max+1e-9 {
		t.Errorf("slippage %v exceeds cap %v", extreme, max)
	}
}
