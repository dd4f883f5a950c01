package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/solvernet/intentbot/internal/arbitrage"
	s3blob "github.com/solvernet/intentbot/internal/blob/s3"
	"github.com/solvernet/intentbot/internal/cache/redis"
	"github.com/solvernet/intentbot/internal/config"
	"github.com/solvernet/intentbot/internal/domain"
	"github.com/solvernet/intentbot/internal/engine"
	"github.com/solvernet/intentbot/internal/marketdata"
	"github.com/solvernet/intentbot/internal/notify"
	"github.com/solvernet/intentbot/internal/planner"
	"github.com/solvernet/intentbot/internal/quote"
	"github.com/solvernet/intentbot/internal/registry"
	"github.com/solvernet/intentbot/internal/router"
	"github.com/solvernet/intentbot/internal/service"
	"github.com/solvernet/intentbot/internal/solvernet"
	"github.com/solvernet/intentbot/internal/store/memory"
	"github.com/solvernet/intentbot/internal/store/postgres"
)

// Dependencies bundles every component the application modes need. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	// Venue catalog and market data
	Venues *registry.Registry
	Market domain.MarketDataProvider

	// Caches and coordination
	MarketCache domain.MarketCache
	SignalBus   domain.SignalBus
	LockManager domain.LockManager
	RateLimiter domain.RateLimiter

	// Stores (Postgres when configured, in-memory otherwise)
	History       domain.ExecutionHistoryStore
	Solvers       domain.SolverStore
	Opportunities domain.OpportunityStore

	// Blob archival (nil unless S3 is enabled)
	Archiver *s3blob.Archiver

	// Solver network transports
	WSClient   *solvernet.WSClient
	HTTPClient *solvernet.HTTPClient

	// Core components
	Discovery *router.Discovery
	Scorer    *router.Scorer
	Scanner   *arbitrage.Scanner
	Planner   *planner.Planner
	Quotes    *quote.Manager
	Engine    *engine.Engine
	Service   *service.IntentService

	// Notifications
	Notifier *notify.Notifier
}

// needsPostgres reports whether a database is configured at all. Unlike the
// other backends there is no mode gate: persistence follows configuration,
// and absent configuration every store falls back to memory.
func needsPostgres(cfg *config.Config) bool {
	return cfg.Postgres.DSN != "" || cfg.Postgres.Database != ""
}

// scoreWeights maps a configured weight triple into the router's form.
func scoreWeights(w config.ScoreWeights) router.Weights {
	return router.Weights{Primary: w.Primary, Secondary: w.Secondary, Tertiary: w.Tertiary}
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that
// should be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- Venue registry ---
	seed := make([]domain.Venue, 0, len(cfg.Venues))
	for _, v := range cfg.Venues {
		seed = append(seed, domain.Venue{
			ID:             v.ID,
			Name:           v.Name,
			FeeRate:        v.FeeRate,
			Reputation:     v.Reputation,
			LiquidityScore: v.LiquidityScore,
			GasMultiplier:  v.GasMultiplier,
			AvgExecTime:    v.AvgExecTime.Duration,
			Pairs:          v.Pairs,
		})
	}
	deps.Venues = registry.New(seed)

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	deps.MarketCache = redis.NewMarketCache(redisClient)
	deps.SignalBus = redis.NewSignalBus(redisClient)
	deps.LockManager = redis.NewLockManager(redisClient)
	deps.RateLimiter = redis.NewRateLimiter(redisClient)
	deps.Market = marketdata.NewCachedProvider(deps.MarketCache, logger)

	// --- Stores ---
	if needsPostgres(cfg) {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		pool := pgClient.Pool()
		deps.History = postgres.NewExecutionStore(pool)
		deps.Solvers = postgres.NewSolverStore(pool)
		deps.Opportunities = postgres.NewOpportunityStore(pool)
	} else {
		deps.History = memory.NewExecutionHistory()
		deps.Solvers = memory.NewSolverStore()
		deps.Opportunities = memory.NewOpportunityStore(0)
	}

	// --- S3 blob storage ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		deps.Archiver = s3blob.NewArchiver(s3blob.NewWriter(s3Client), logger)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	// --- Solver network ---
	// Both transports are always constructed: the quote manager publishes on
	// both and tolerates either failing. The WebSocket channel only carries
	// traffic after Connect succeeds; until then it reports a disconnect and
	// the HTTP channel covers publication alone.
	deps.WSClient = solvernet.NewWSClient(cfg.SolverNet.WsURL, cfg.SolverNet.ReconnectDelay.Duration)
	deps.HTTPClient = solvernet.NewHTTPClient(cfg.SolverNet.HTTPURL, cfg.SolverNet.RequestTimeout.Duration)
	closers = append(closers, func() { _ = deps.WSClient.Close() })

	book := quote.NewBook()
	deps.WSClient.OnQuote(func(q domain.Quote) {
		if err := book.Append(context.Background(), q); err != nil {
			logger.Warn("wire: drop inbound quote",
				slog.String("quote_id", q.ID),
				slog.String("error", err.Error()),
			)
		}
	})
	if cfg.SolverNet.WsURL != "" {
		if err := deps.WSClient.Connect(ctx); err != nil {
			logger.WarnContext(ctx, "wire: solver-network ws connect failed; relying on http channel",
				slog.String("url", cfg.SolverNet.WsURL),
				slog.String("error", err.Error()),
			)
		}
	}

	// --- Core components ---
	routerCfg := router.Config{
		BridgeAssets:    cfg.Router.BridgeAssets,
		MinCandidates:   cfg.Router.MinCandidates,
		MaxHops:         cfg.Router.MaxHops,
		BaseSlippage:    cfg.Router.BaseSlippage,
		LiquidityImpact: cfg.Router.LiquidityImpact,
		LiquidityCap:    cfg.Router.LiquidityCap,
		SizeImpactCap:   cfg.Router.SizeImpactCap,
		NotionalCeiling: cfg.Router.NotionalCeiling,
		TwoHopPenalty:   cfg.Router.TwoHopPenalty,
		ExtraHopPenalty: cfg.Router.ExtraHopPenalty,
		ConfidenceFloor: cfg.Router.ConfidenceFloor,
		BaseGasUnits:    cfg.Router.BaseGasUnits,
		SpeedWeights:    scoreWeights(cfg.Router.SpeedWeights),
		CostWeights:     scoreWeights(cfg.Router.CostWeights),
		SecurityWeights: scoreWeights(cfg.Router.SecurityWeights),
	}
	deps.Discovery = router.NewDiscovery(deps.Venues, deps.Market, routerCfg, logger)
	deps.Scorer = router.NewScorer(deps.Venues, routerCfg, logger)

	deps.Scanner = arbitrage.NewScanner(deps.Venues, deps.Market, deps.Opportunities, arbitrage.Config{
		MinProfitPct:  cfg.Arbitrage.MinProfitPct,
		MaxResults:    cfg.Arbitrage.MaxResults,
		LowLatencyMax: cfg.Arbitrage.LowLatencyMax.Duration,
		MedLatencyMax: cfg.Arbitrage.MedLatencyMax.Duration,
		WindowPerPct:  cfg.Arbitrage.WindowPerPct.Duration,
	}, logger)

	deps.Planner = planner.New(planner.Config{
		SplitSlippageThreshold: cfg.Planner.SplitSlippageThreshold,
		SplitNotionalCeiling:   cfg.Planner.SplitNotionalCeiling,
		MaxSplits:              cfg.Planner.MaxSplits,
		SplitDelay:             cfg.Planner.SplitDelay.Duration,
		VolatilityThreshold:    cfg.Planner.VolatilityThreshold,
		LiquidityFloor:         cfg.Planner.LiquidityFloor,
	})

	deps.Quotes = quote.NewManager(deps.WSClient, deps.HTTPClient, book, deps.Solvers, quote.Config{
		PollInterval:     cfg.Quotes.PollInterval.Duration,
		DefaultTimeout:   cfg.Quotes.DefaultTimeout.Duration,
		AcceptScore:      cfg.Quotes.AcceptScore,
		RejectScore:      cfg.Quotes.RejectScore,
		VerifySigs:       cfg.Quotes.VerifySigs,
		SurplusPoints:    cfg.Quotes.SurplusPoints,
		FeePoints:        cfg.Quotes.FeePoints,
		SpeedPoints:      cfg.Quotes.SpeedPoints,
		ReputationPoints: cfg.Quotes.ReputationPoints,
		ConfidencePoints: cfg.Quotes.ConfidencePoints,
		PreferredBonus:   cfg.Quotes.PreferredBonus,
	}, logger)

	settlement := engine.NewSimulatedSettlement(deps.Venues, deps.Market)
	deps.Engine = engine.New(engine.Config{
		DryRun:               cfg.Engine.DryRun,
		MaxSlippageLive:      cfg.Engine.MaxSlippageLive,
		MaxSlippageDryRun:    cfg.Engine.MaxSlippageDryRun,
		RiskCeiling:          cfg.Engine.RiskCeiling,
		RiskCriticalCeiling:  cfg.Engine.RiskCriticalCeiling,
		RiskGrowthWarnRatio:  cfg.Engine.RiskGrowthWarnRatio,
		HopPause:             cfg.Engine.HopPause.Duration,
		ConfirmationRounds:   cfg.Engine.ConfirmationRounds,
		ConfirmationInterval: cfg.Engine.ConfirmationInterval.Duration,
		ConditionPoll:        cfg.Engine.ConditionPoll.Duration,
		ConditionMaxWait:     cfg.Engine.ConditionMaxWait.Duration,
	}, deps.Market, settlement, deps.History, logger)
	deps.Engine.SetOnTerminal(terminalHook(deps, logger))

	deps.Service = service.NewIntentService(
		deps.Discovery,
		deps.Scorer,
		deps.Scanner,
		deps.Planner,
		deps.Quotes,
		deps.Engine,
		deps.Market,
		deps.LockManager,
		deps.History,
		service.Options{
			QuoteTimeout: cfg.Quotes.DefaultTimeout.Duration,
			LockTTL:      cfg.Engine.ConditionMaxWait.Duration,
		},
		logger,
	)

	return deps, cleanup, nil
}

// terminalHook fans a finished execution out to the signal bus, the
// notifier, the report archive, and the winning solver's reputation
// counters. Failures are logged and swallowed: the execution itself is
// already durable in the history store.
func terminalHook(deps *Dependencies, logger *slog.Logger) func(domain.ExecutionStatus) {
	return func(status domain.ExecutionStatus) {
		ctx, cancel := context.WithTimeout(context.Background(), terminalHookTimeout)
		defer cancel()

		if status.SolverID != "" {
			success := status.State == domain.ExecStateCompleted
			if err := deps.Solvers.RecordResult(ctx, status.SolverID, success); err != nil {
				logger.WarnContext(ctx, "terminal hook: record solver result",
					slog.String("execution_id", status.ID),
					slog.String("solver_id", status.SolverID),
					slog.String("error", err.Error()),
				)
			}
		}

		if payload, err := json.Marshal(status); err == nil {
			if err := deps.SignalBus.Publish(ctx, domain.ChannelExecutions, payload); err != nil {
				logger.WarnContext(ctx, "terminal hook: publish execution",
					slog.String("execution_id", status.ID),
					slog.String("error", err.Error()),
				)
			}
		}

		if err := deps.Notifier.ExecutionFinished(ctx, status); err != nil {
			logger.WarnContext(ctx, "terminal hook: notify",
				slog.String("execution_id", status.ID),
				slog.String("error", err.Error()),
			)
		}

		if deps.Archiver != nil {
			if err := deps.Archiver.ReportExecution(ctx, status); err != nil {
				logger.WarnContext(ctx, "terminal hook: archive report",
					slog.String("execution_id", status.ID),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}
