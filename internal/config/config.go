// Package config defines the top-level configuration for the intent engine
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by INTENTBOT_* environment
// variables.
type Config struct {
	Venues    []VenueConfig   `toml:"venues"`
	Router    RouterConfig    `toml:"router"`
	Arbitrage ArbitrageConfig `toml:"arbitrage"`
	Planner   PlannerConfig   `toml:"planner"`
	Quotes    QuotesConfig    `toml:"quotes"`
	Engine    EngineConfig    `toml:"engine"`
	SolverNet SolverNetConfig `toml:"solvernet"`
	Postgres  PostgresConfig  `toml:"postgres"`
	Redis     RedisConfig     `toml:"redis"`
	S3        S3Config        `toml:"s3"`
	Server    ServerConfig    `toml:"server"`
	Notify    NotifyConfig    `toml:"notify"`
	Mode      string          `toml:"mode"`
	LogLevel  string          `toml:"log_level"`
}

// VenueConfig seeds one venue into the registry at startup.
type VenueConfig struct {
	ID             string   `toml:"id"`
	Name           string   `toml:"name"`
	FeeRate        float64  `toml:"fee_rate"`
	Reputation     float64  `toml:"reputation"`
	LiquidityScore float64  `toml:"liquidity_score"`
	GasMultiplier  float64  `toml:"gas_multiplier"`
	AvgExecTime    duration `toml:"avg_exec_time"`
	Pairs          []string `toml:"pairs"`
}

// RouterConfig holds route discovery and scoring parameters. The scoring
// weights are deliberately configuration, not constants, so the ranking
// contract stays reproducible and testable in isolation.
type RouterConfig struct {
	BridgeAssets     []string `toml:"bridge_assets"`
	MinCandidates    int      `toml:"min_candidates"`     // multi-hop kicks in below this
	MaxHops          int      `toml:"max_hops"`
	BaseSlippage     float64  `toml:"base_slippage"`
	LiquidityImpact  float64  `toml:"liquidity_impact"`   // scale of the inverse-liquidity term
	LiquidityCap     float64  `toml:"liquidity_cap"`      // cap on the liquidity term
	SizeImpactCap    float64  `toml:"size_impact_cap"`    // cap on the size term
	NotionalCeiling  float64  `toml:"notional_ceiling"`   // trade size the size term normalizes against
	TwoHopPenalty    float64  `toml:"two_hop_penalty"`    // confidence multiplier for two-hop routes
	ExtraHopPenalty  float64  `toml:"extra_hop_penalty"`  // confidence subtracted per hop beyond two
	ConfidenceFloor  float64  `toml:"confidence_floor"`
	BaseGasUnits     int64    `toml:"base_gas_units"`     // gas cost baseline per hop, smallest units

	SpeedWeights    ScoreWeights `toml:"speed_weights"`
	CostWeights     ScoreWeights `toml:"cost_weights"`
	SecurityWeights ScoreWeights `toml:"security_weights"`
}

// ScoreWeights is a named triple of scoring weights. The meaning of each
// slot depends on the objective that uses it.
type ScoreWeights struct {
	Primary   float64 `toml:"primary"`
	Secondary float64 `toml:"secondary"`
	Tertiary  float64 `toml:"tertiary"`
}

// ArbitrageConfig holds cross-venue scanner parameters.
type ArbitrageConfig struct {
	Enabled        bool     `toml:"enabled"`
	MinProfitPct   float64  `toml:"min_profit_pct"` // fraction, e.g. 0.005
	MaxResults     int      `toml:"max_results"`
	LowLatencyMax  duration `toml:"low_latency_max"` // mean venue latency below this = low complexity
	MedLatencyMax  duration `toml:"med_latency_max"` // below this = medium
	WindowPerPct   duration `toml:"window_per_pct"`  // time sensitivity scale
	ScanInterval   duration `toml:"scan_interval"`   // scan-mode loop period
	ScanAmount     string   `toml:"scan_amount"`     // notional probed per pair, smallest units
}

// PlannerConfig holds execution-strategy thresholds.
type PlannerConfig struct {
	SplitSlippageThreshold float64  `toml:"split_slippage_threshold"`
	SplitNotionalCeiling   float64  `toml:"split_notional_ceiling"`
	MaxSplits              int      `toml:"max_splits"`
	SplitDelay             duration `toml:"split_delay"`
	VolatilityThreshold    float64  `toml:"volatility_threshold"`
	LiquidityFloor         float64  `toml:"liquidity_floor"` // precondition attached to split children
}

// QuotesConfig holds quote collection and scoring parameters.
type QuotesConfig struct {
	PollInterval   duration `toml:"poll_interval"`
	DefaultTimeout duration `toml:"default_timeout"`
	AcceptScore    float64  `toml:"accept_score"`
	RejectScore    float64  `toml:"reject_score"`
	VerifySigs     bool     `toml:"verify_sigs"`

	// Additive point weights for the base score.
	SurplusPoints    float64 `toml:"surplus_points"`
	FeePoints        float64 `toml:"fee_points"`
	SpeedPoints      float64 `toml:"speed_points"`
	ReputationPoints float64 `toml:"reputation_points"`
	ConfidencePoints float64 `toml:"confidence_points"`
	PreferredBonus   float64 `toml:"preferred_bonus"`
}

// EngineConfig holds execution engine parameters. The risk thresholds have
// no documented derivation upstream; they are configuration with defaults,
// not load-bearing constants.
type EngineConfig struct {
	DryRun               bool     `toml:"dry_run"`
	MaxSlippageLive      float64  `toml:"max_slippage_live"`
	MaxSlippageDryRun    float64  `toml:"max_slippage_dry_run"`
	RiskCeiling          float64  `toml:"risk_ceiling"`           // validation hard ceiling
	RiskCriticalCeiling  float64  `toml:"risk_critical_ceiling"`  // re-check abort threshold
	RiskGrowthWarnRatio  float64  `toml:"risk_growth_warn_ratio"` // relative growth that records a warning
	HopPause             duration `toml:"hop_pause"`
	ConfirmationRounds   int      `toml:"confirmation_rounds"`
	ConfirmationInterval duration `toml:"confirmation_interval"`
	ConditionPoll        duration `toml:"condition_poll"`
	ConditionMaxWait     duration `toml:"condition_max_wait"`
}

// SolverNetConfig holds solver network endpoints and reconnect policy.
type SolverNetConfig struct {
	WsURL          string   `toml:"ws_url"`
	HTTPURL        string   `toml:"http_url"`
	ReconnectDelay duration `toml:"reconnect_delay"`
	RequestTimeout duration `toml:"request_timeout"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for execution
// report archival.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`
	RateLimit   int      `toml:"rate_limit"` // requests per second per client; 0 disables
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Validate checks the configuration for obvious mistakes. It is invoked by
// main after Load.
func (c *Config) Validate() error {
	switch c.Mode {
	case "serve", "scan", "full":
	default:
		return fmt.Errorf("config: unknown mode %q", c.Mode)
	}
	switch strings.ToLower(c.LogLevel) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown log_level %q", c.LogLevel)
	}
	for i, v := range c.Venues {
		if v.ID == "" {
			return fmt.Errorf("config: venues[%d]: missing id", i)
		}
		if v.FeeRate < 0 || v.FeeRate >= 1 {
			return fmt.Errorf("config: venue %s: fee_rate %v out of range", v.ID, v.FeeRate)
		}
	}
	if c.Planner.MaxSplits < 2 || c.Planner.MaxSplits > 5 {
		return fmt.Errorf("config: planner.max_splits must be in [2,5], got %d", c.Planner.MaxSplits)
	}
	if c.Quotes.AcceptScore <= c.Quotes.RejectScore {
		return fmt.Errorf("config: quotes.accept_score must exceed reject_score")
	}
	if c.Engine.RiskCriticalCeiling <= 0 || c.Engine.RiskCriticalCeiling > 1 {
		return fmt.Errorf("config: engine.risk_critical_ceiling %v out of range", c.Engine.RiskCriticalCeiling)
	}
	if c.Server.Enabled && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		return fmt.Errorf("config: server.port %d out of range", c.Server.Port)
	}
	return nil
}

// Defaults returns a Config populated with the built-in defaults. Load
// merges the TOML file on top of these.
func Defaults() Config {
	return Config{
		Router: RouterConfig{
			BridgeAssets:    []string{"USDC", "USDT", "WNEAR", "WETH"},
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
			SpeedWeights:    ScoreWeights{Primary: 0.6, Secondary: 0.3, Tertiary: 0.1},
			CostWeights:     ScoreWeights{Primary: 0.5, Secondary: 0.3, Tertiary: 0.2},
			SecurityWeights: ScoreWeights{Primary: 0.4, Secondary: 0.3, Tertiary: 0.3},
		},
		Arbitrage: ArbitrageConfig{
			Enabled:       true,
			MinProfitPct:  0.005,
			MaxResults:    5,
			LowLatencyMax: duration{30 * time.Second},
			MedLatencyMax: duration{120 * time.Second},
			WindowPerPct:  duration{10 * time.Second},
			ScanInterval:  duration{30 * time.Second},
			ScanAmount:    "1000000000",
		},
		Planner: PlannerConfig{
			SplitSlippageThreshold: 0.02,
			SplitNotionalCeiling:   500_000,
			MaxSplits:              5,
			SplitDelay:             duration{30 * time.Second},
			VolatilityThreshold:    0.5,
			LiquidityFloor:         0.3,
		},
		Quotes: QuotesConfig{
			PollInterval:     duration{100 * time.Millisecond},
			DefaultTimeout:   duration{5 * time.Second},
			AcceptScore:      70,
			RejectScore:      30,
			VerifySigs:       true,
			SurplusPoints:    30,
			FeePoints:        20,
			SpeedPoints:      15,
			ReputationPoints: 20,
			ConfidencePoints: 15,
			PreferredBonus:   10,
		},
		Engine: EngineConfig{
			DryRun:               true,
			MaxSlippageLive:      0.03,
			MaxSlippageDryRun:    0.10,
			RiskCeiling:          0.8,
			RiskCriticalCeiling:  0.9,
			RiskGrowthWarnRatio:  1.2,
			HopPause:             duration{500 * time.Millisecond},
			ConfirmationRounds:   3,
			ConfirmationInterval: duration{2 * time.Second},
			ConditionPoll:        duration{5 * time.Second},
			ConditionMaxWait:     duration{5 * time.Minute},
		},
		SolverNet: SolverNetConfig{
			ReconnectDelay: duration{2 * time.Second},
			RequestTimeout: duration{10 * time.Second},
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			SSLMode:       "prefer",
			PoolMaxConns:  8,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 16,
		},
		Server: ServerConfig{
			Enabled:   true,
			Port:      8080,
			RateLimit: 20,
		},
		Mode:     "serve",
		LogLevel: "info",
	}
}
