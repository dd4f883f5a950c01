package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Defaults().Validate() = %v", err)
	}
	if cfg.Mode != "serve" {
		t.Errorf("default mode = %q", cfg.Mode)
	}
	if !cfg.Engine.DryRun {
		t.Error("engine must default to dry-run")
	}
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"unknown mode", func(c *Config) { c.Mode = "batch" }},
		{"unknown log level", func(c *Config) { c.LogLevel = "verbose" }},
		{"venue without id", func(c *Config) { c.Venues = []VenueConfig{{Name: "x"}} }},
		{"venue fee out of range", func(c *Config) { c.Venues = []VenueConfig{{ID: "v", FeeRate: 1.5}} }},
		{"max splits too low", func(c *Config) { c.Planner.MaxSplits = 1 }},
		{"max splits too high", func(c *Config) { c.Planner.MaxSplits = 6 }},
		{"accept below reject", func(c *Config) { c.Quotes.AcceptScore = 20 }},
		{"risk critical ceiling zero", func(c *Config) { c.Engine.RiskCriticalCeiling = 0 }},
		{"server port out of range", func(c *Config) { c.Server.Port = 70000 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate accepted a broken config")
			}
		})
	}
}

func TestLoadMergesOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	doc := `
mode = "scan"

[engine]
dry_run = false
hop_pause = "250ms"

[[venues]]
id = "uni"
name = "Uniswap"
fee_rate = 0.003
avg_exec_time = "15s"
pairs = ["ETH/USDC"]
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load = %v", err)
	}
	if cfg.Mode != "scan" {
		t.Errorf("mode = %q", cfg.Mode)
	}
	if cfg.Engine.DryRun {
		t.Error("dry_run override not applied")
	}
	if cfg.Engine.HopPause.Duration != 250*time.Millisecond {
		t.Errorf("hop_pause = %v", cfg.Engine.HopPause.Duration)
	}
	// Untouched sections keep their defaults.
	if cfg.Engine.RiskCeiling != 0.8 {
		t.Errorf("risk_ceiling = %v, defaults lost in merge", cfg.Engine.RiskCeiling)
	}
	if len(cfg.Venues) != 1 || cfg.Venues[0].ID != "uni" {
		t.Errorf("venues = %+v", cfg.Venues)
	}
	if cfg.Venues[0].AvgExecTime.Duration != 15*time.Second {
		t.Errorf("avg_exec_time = %v", cfg.Venues[0].AvgExecTime.Duration)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Error("Load of a missing file succeeded")
	}
}

func TestEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("mode = \"serve\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("INTENTBOT_MODE", "full")
	t.Setenv("INTENTBOT_REDIS_ADDR", "redis.internal:6380")
	t.Setenv("INTENTBOT_ENGINE_DRY_RUN", "false")
	t.Setenv("INTENTBOT_SERVER_CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("INTENTBOT_QUOTES_DEFAULT_TIMEOUT", "7s")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load = %v", err)
	}
	if cfg.Mode != "full" {
		t.Errorf("mode = %q, env override lost", cfg.Mode)
	}
	if cfg.Redis.Addr != "redis.internal:6380" {
		t.Errorf("redis addr = %q", cfg.Redis.Addr)
	}
	if cfg.Engine.DryRun {
		t.Error("dry_run env override not applied")
	}
	if len(cfg.Server.CORSOrigins) != 2 || cfg.Server.CORSOrigins[1] != "https://b.example" {
		t.Errorf("cors origins = %+v", cfg.Server.CORSOrigins)
	}
	if cfg.Quotes.DefaultTimeout.Duration != 7*time.Second {
		t.Errorf("default timeout = %v", cfg.Quotes.DefaultTimeout.Duration)
	}
}

func TestDurationRoundTrip(t *testing.T) {
	var d duration
	if err := d.UnmarshalText([]byte("90s")); err != nil {
		t.Fatalf("UnmarshalText = %v", err)
	}
	if d.Duration != 90*time.Second {
		t.Errorf("parsed = %v", d.Duration)
	}
	out, err := d.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText = %v", err)
	}
	if string(out) != "1m30s" {
		t.Errorf("marshalled = %q", out)
	}
	if err := d.UnmarshalText([]byte("not-a-duration")); err == nil {
		t.Error("UnmarshalText accepted garbage")
	}
}
