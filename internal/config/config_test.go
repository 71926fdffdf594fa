package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Market.ReferenceTicker != "SPY" {
		t.Errorf("reference = %s, want SPY", cfg.Market.ReferenceTicker)
	}
	if cfg.Market.LookbackDays != 365 {
		t.Errorf("lookback = %d, want 365", cfg.Market.LookbackDays)
	}
	if len(cfg.Market.Symbols) == 0 {
		t.Error("default symbols must not be empty")
	}
	if cfg.Server.Schedule != "0 6 * * 1-5" {
		t.Errorf("schedule = %q, want weekday mornings", cfg.Server.Schedule)
	}
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
market:
  symbols: [SPY, NVDA]
  reference_ticker: SPY
  lookback_days: 30
  fetch_timeout_seconds: 10
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Market.LookbackDays != 30 {
		t.Errorf("lookback = %d, want 30", cfg.Market.LookbackDays)
	}
	if len(cfg.Market.Symbols) != 2 || cfg.Market.Symbols[1] != "NVDA" {
		t.Errorf("symbols = %v", cfg.Market.Symbols)
	}
	// Untouched sections keep their defaults.
	if cfg.Server.APIAddr != ":8000" {
		t.Errorf("api addr = %s, want default :8000", cfg.Server.APIAddr)
	}
}

func TestLoadEnvOverridesYAML(t *testing.T) {
	t.Setenv("MARKET_DB_URL", "postgres://env-wins:5432/market")
	t.Setenv("MARKET_LOOKBACK_DAYS", "7")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Database.URL != "postgres://env-wins:5432/market" {
		t.Errorf("db url = %s", cfg.Database.URL)
	}
	if cfg.Market.LookbackDays != 7 {
		t.Errorf("lookback = %d, want 7", cfg.Market.LookbackDays)
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
market:
  symbols: []
  lookback_days: -1
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Error("expected validation error for empty symbols and negative lookback")
	}
}

func TestLoadMissingFileIsError(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Error("expected error for missing config file")
	}
}
