package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/solvernet/intentbot/internal/domain"
	"github.com/solvernet/intentbot/internal/server"
	"github.com/solvernet/intentbot/internal/server/handler"
	"github.com/solvernet/intentbot/internal/server/ws"
)

// ServeMode runs the HTTP + WebSocket API until the context is cancelled.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting serve mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startHTTPServer(ctx, g, deps)
	return g.Wait()
}

// ScanMode runs the periodic arbitrage sweep until the context is
// cancelled. Detected opportunities are published on the signal bus,
// forwarded to the notifier, and archived when object storage is wired.
func (a *App) ScanMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting scan mode")

	g, ctx := errgroup.WithContext(ctx)
	if err := a.startScanner(ctx, g, deps); err != nil {
		return err
	}
	return g.Wait()
}

// FullMode runs the API server and the arbitrage sweep together.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startHTTPServer(ctx, g, deps)
	if err := a.startScanner(ctx, g, deps); err != nil {
		return err
	}
	return g.Wait()
}

// startHTTPServer builds the handler set, the WebSocket hub, and the
// server, and registers their goroutines on the group.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	startedAt := time.Now().UTC()
	hub := ws.NewHub(deps.SignalBus, a.logger, ws.Config{
		Mode:      a.cfg.Mode,
		StartedAt: startedAt,
	})
	g.Go(func() error {
		return hub.Run(ctx)
	})

	handlers := server.Handlers{
		Health:     handler.NewHealthHandler(a.cfg.Mode, startedAt, a.logger),
		Routes:     handler.NewRouteHandler(deps.Service, a.logger),
		Arbitrage:  handler.NewArbHandler(deps.Service, a.logger).WithOpportunityStore(deps.Opportunities),
		Quotes:     handler.NewQuoteHandler(deps.Service, a.logger),
		Executions: handler.NewExecutionHandler(deps.Service, a.logger),
		Solvers:    handler.NewSolverHandler(deps.Solvers, a.logger),
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
		RateLimit:   a.cfg.Server.RateLimit,
	}, handlers, hub, deps.RateLimiter, a.logger)

	g.Go(func() error {
		return srv.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}

// startScanner registers the arbitrage sweep loop on the group.
func (a *App) startScanner(ctx context.Context, g *errgroup.Group, deps *Dependencies) error {
	if !a.cfg.Arbitrage.Enabled {
		a.logger.InfoContext(ctx, "arbitrage scanning disabled")
		return nil
	}

	amount, ok := new(big.Int).SetString(a.cfg.Arbitrage.ScanAmount, 10)
	if !ok || amount.Sign() <= 0 {
		return fmt.Errorf("app: invalid arbitrage.scan_amount %q", a.cfg.Arbitrage.ScanAmount)
	}
	interval := a.cfg.Arbitrage.ScanInterval.Duration
	if interval <= 0 {
		interval = 30 * time.Second
	}

	g.Go(func() error {
		tick := time.NewTicker(interval)
		defer tick.Stop()

		a.sweep(ctx, deps, amount)
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-tick.C:
				a.sweep(ctx, deps, amount)
			}
		}
	})
	return nil
}

// sweep scans every listed pair once. Per-pair failures are logged and do
// not stop the sweep; the loop is best-effort by design.
func (a *App) sweep(ctx context.Context, deps *Dependencies, amount *big.Int) {
	var found []domain.ArbitrageOpportunity
	for _, pair := range deps.Venues.Pairs(ctx) {
		assetIn, assetOut, ok := splitPair(pair)
		if !ok {
			continue
		}
		opps, err := deps.Scanner.Scan(ctx, assetIn, assetOut, amount)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			a.logger.WarnContext(ctx, "sweep: scan pair",
				slog.String("pair", pair),
				slog.String("error", err.Error()),
			)
			continue
		}
		found = append(found, opps...)
	}
	if len(found) == 0 {
		return
	}

	a.logger.InfoContext(ctx, "sweep: opportunities detected", slog.Int("count", len(found)))
	for _, opp := range found {
		if payload, err := json.Marshal(opp); err == nil {
			if err := deps.SignalBus.Publish(ctx, domain.ChannelOpportunities, payload); err != nil {
				a.logger.WarnContext(ctx, "sweep: publish opportunity",
					slog.String("id", opp.ID),
					slog.String("error", err.Error()),
				)
			}
		}
		if err := deps.Notifier.OpportunityFound(ctx, opp); err != nil {
			a.logger.WarnContext(ctx, "sweep: notify opportunity",
				slog.String("id", opp.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	if deps.Archiver != nil {
		if err := deps.Archiver.ArchiveOpportunities(ctx, found); err != nil {
			a.logger.WarnContext(ctx, "sweep: archive opportunities",
				slog.String("error", err.Error()),
			)
		}
	}
}

// splitPair splits "A/B" into its two assets.
func splitPair(pair string) (string, string, bool) {
	i := strings.IndexByte(pair, '/')
	if i <= 0 || i == len(pair)-1 {
		return "", "", false
	}
	return pair[:i], pair[i+1:], true
}
