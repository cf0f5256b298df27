package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"collend/native/oracle"
)

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "collend.toml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default file not written: %v", err)
	}
	if cfg.RPCAddress != ":8080" {
		t.Fatalf("unexpected rpc address %q", cfg.RPCAddress)
	}
	if cfg.DataDir != "./collend-data" {
		t.Fatalf("unexpected data dir %q", cfg.DataDir)
	}
	if cfg.Env != "local" {
		t.Fatalf("unexpected env %q", cfg.Env)
	}

	defaults := oracle.DefaultConfig()
	if got := cfg.OracleConfig(); got != defaults {
		t.Fatalf("oracle config = %+v, want defaults %+v", got, defaults)
	}

	// A second load reads the persisted file instead of recreating it.
	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if *reloaded != *cfg {
		t.Fatalf("reloaded config %+v differs from created %+v", *reloaded, *cfg)
	}
}

func TestLoadFillsDefaultsForMissingFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "collend.toml")
	raw := "EthRPCURL = \"http://localhost:8545\"\n\n[Oracle]\nCircuitBreakerPercent = 30\n"
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RPCAddress != ":8080" || cfg.DataDir != "./collend-data" || cfg.Env != "local" {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	if cfg.EthRPCURL != "http://localhost:8545" {
		t.Fatalf("unexpected eth rpc url %q", cfg.EthRPCURL)
	}

	got := cfg.OracleConfig()
	if got.CircuitBreakerPercent != 30 {
		t.Fatalf("breaker percent = %d, want 30", got.CircuitBreakerPercent)
	}
	if got.FreshnessThreshold != 8*time.Hour {
		t.Fatalf("freshness = %s, want default 8h", got.FreshnessThreshold)
	}
	if got.VolatilityWindow != time.Hour || got.VolatilityPercent != 20 {
		t.Fatalf("volatility defaults not applied: %+v", got)
	}
}

func TestLoadRejectsOutOfBoundsOracleSection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "collend.toml")
	raw := "[Oracle]\nCircuitBreakerPercent = 5\n"
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := Load(path); !errors.Is(err, oracle.ErrInvalidThreshold) {
		t.Fatalf("expected ErrInvalidThreshold, got %v", err)
	}
}

func TestOracleConfigConvertsSeconds(t *testing.T) {
	cfg := &Config{Oracle: OracleSection{
		FreshnessSeconds:        3600,
		VolatilityWindowSeconds: 900,
		VolatilityPercent:       10,
		CircuitBreakerPercent:   40,
	}}

	got := cfg.OracleConfig()
	if got.FreshnessThreshold != time.Hour {
		t.Fatalf("freshness = %s, want 1h", got.FreshnessThreshold)
	}
	if got.VolatilityWindow != 15*time.Minute {
		t.Fatalf("volatility window = %s, want 15m", got.VolatilityWindow)
	}
	if got.VolatilityPercent != 10 || got.CircuitBreakerPercent != 40 {
		t.Fatalf("percent fields not carried: %+v", got)
	}
}
