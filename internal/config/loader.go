package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies INTENTBOT_* environment variable overrides,
// and returns the final Config. The returned Config has NOT been validated;
// the caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known INTENTBOT_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Solver network ──
	setStr(&cfg.SolverNet.WsURL, "INTENTBOT_SOLVERNET_WS_URL")
	setStr(&cfg.SolverNet.HTTPURL, "INTENTBOT_SOLVERNET_HTTP_URL")
	setDuration(&cfg.SolverNet.ReconnectDelay, "INTENTBOT_SOLVERNET_RECONNECT_DELAY")
	setDuration(&cfg.SolverNet.RequestTimeout, "INTENTBOT_SOLVERNET_REQUEST_TIMEOUT")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "INTENTBOT_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "INTENTBOT_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "INTENTBOT_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "INTENTBOT_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "INTENTBOT_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "INTENTBOT_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "INTENTBOT_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "INTENTBOT_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "INTENTBOT_POSTGRES_POOL_MIN_CONNS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "INTENTBOT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "INTENTBOT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "INTENTBOT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "INTENTBOT_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "INTENTBOT_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "INTENTBOT_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "INTENTBOT_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "INTENTBOT_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "INTENTBOT_S3_REGION")
	setStr(&cfg.S3.Bucket, "INTENTBOT_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "INTENTBOT_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "INTENTBOT_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "INTENTBOT_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "INTENTBOT_S3_FORCE_PATH_STYLE")

	// ── Arbitrage ──
	setBool(&cfg.Arbitrage.Enabled, "INTENTBOT_ARBITRAGE_ENABLED")
	setFloat64(&cfg.Arbitrage.MinProfitPct, "INTENTBOT_ARBITRAGE_MIN_PROFIT_PCT")
	setInt(&cfg.Arbitrage.MaxResults, "INTENTBOT_ARBITRAGE_MAX_RESULTS")

	// ── Quotes ──
	setDuration(&cfg.Quotes.PollInterval, "INTENTBOT_QUOTES_POLL_INTERVAL")
	setDuration(&cfg.Quotes.DefaultTimeout, "INTENTBOT_QUOTES_DEFAULT_TIMEOUT")
	setBool(&cfg.Quotes.VerifySigs, "INTENTBOT_QUOTES_VERIFY_SIGS")

	// ── Engine ──
	setBool(&cfg.Engine.DryRun, "INTENTBOT_ENGINE_DRY_RUN")
	setFloat64(&cfg.Engine.RiskCeiling, "INTENTBOT_ENGINE_RISK_CEILING")
	setFloat64(&cfg.Engine.RiskCriticalCeiling, "INTENTBOT_ENGINE_RISK_CRITICAL_CEILING")
	setFloat64(&cfg.Engine.RiskGrowthWarnRatio, "INTENTBOT_ENGINE_RISK_GROWTH_WARN_RATIO")
	setInt(&cfg.Engine.ConfirmationRounds, "INTENTBOT_ENGINE_CONFIRMATION_ROUNDS")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "INTENTBOT_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "INTENTBOT_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "INTENTBOT_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "INTENTBOT_SERVER_API_KEY")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "INTENTBOT_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "INTENTBOT_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "INTENTBOT_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "INTENTBOT_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "INTENTBOT_MODE")
	setStr(&cfg.LogLevel, "INTENTBOT_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				cleaned = append(cleaned, s)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
