package config

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/STTM-NSU/paper-league/internal/provider"
)

func TestDefault(t *testing.T) {
	t.Setenv("MARKET_DATA_PROVIDERS", "")
	t.Setenv("MARKET_DATA_PROVIDER", "")

	cfg, err := Default()
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if cfg.Game.StartDate != "2026-01-01" || cfg.Game.StartingCashKRW != 10_000_000_000 {
		t.Fatalf("unexpected game defaults %+v", cfg.Game)
	}
	if cfg.Game.Location().String() != "Asia/Seoul" {
		t.Fatalf("unexpected location %s", cfg.Game.Location())
	}
	if cfg.FxPair != "USDKRW" || cfg.Benchmarks.SPY != "SPY" || cfg.Benchmarks.KOSPI != "KOSPI" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if !slices.Equal(cfg.Providers.Names(), []provider.Name{provider.Twelve}) {
		t.Fatalf("unexpected chain %v", cfg.Providers.Names())
	}
	if !slices.Equal(cfg.Retry.Delays, []time.Duration{300 * time.Millisecond, 900 * time.Millisecond}) {
		t.Fatalf("unexpected retry delays %v", cfg.Retry.Delays)
	}
	if cfg.Window.Size != 252 || cfg.Window.MinObs != 60 {
		t.Fatalf("unexpected window %+v", cfg.Window)
	}
}

func TestLoadPipelineConfig(t *testing.T) {
	t.Setenv("MARKET_DATA_PROVIDERS", "")
	t.Setenv("MARKET_DATA_PROVIDER", "")

	content := `
log:
  level: debug
game:
  start_date: "2026-03-02"
  starting_cash_krw: 5000000
providers:
  chain: "yahoo, real, nope"
retry:
  delays: [100ms]
  timeout: 5s
window:
  size: 120
  min_obs: 30
`
	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadPipelineConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if cfg.Log.Level != "debug" || cfg.Game.StartDate != "2026-03-02" || cfg.Game.StartingCashKRW != 5_000_000 {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if !slices.Equal(cfg.Providers.Names(), []provider.Name{provider.Yahoo, provider.Twelve}) {
		t.Fatalf("unexpected chain %v", cfg.Providers.Names())
	}
	if !slices.Equal(cfg.Providers.Invalid(), []string{"nope"}) {
		t.Fatalf("unexpected invalid tokens %v", cfg.Providers.Invalid())
	}
	policy := cfg.Retry.Policy()
	if len(policy.Delays) != 1 || policy.Timeout != 5*time.Second || policy.IsTransient == nil {
		t.Fatalf("unexpected policy %+v", policy)
	}
	if cfg.Window.Size != 120 || cfg.Window.MinObs != 30 {
		t.Fatalf("unexpected window %+v", cfg.Window)
	}
}

func TestProviderChainFromEnv(t *testing.T) {
	t.Setenv("MARKET_DATA_PROVIDERS", "MOCK")
	t.Setenv("MARKET_DATA_PROVIDER", "YAHOO")

	cfg, err := Default()
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if !slices.Equal(cfg.Providers.Names(), []provider.Name{provider.Mock}) {
		t.Fatalf("MARKET_DATA_PROVIDERS must win, got %v", cfg.Providers.Names())
	}
}

func TestSetupRejectsInvalidValues(t *testing.T) {
	cases := map[string]PipelineConfig{
		"start date": {Game: GameConfig{StartDate: "2026-13-01"}},
		"timezone":   {Game: GameConfig{Timezone: "Mars/Olympus"}},
		"window":     {Window: WindowConfig{Size: 10, MinObs: 20}},
		"retry":      {Retry: RetryConfig{Delays: []time.Duration{-time.Second}}},
		"encoding":   {Log: LogConfig{Encoding: "xml"}},
	}
	for name, cfg := range cases {
		if err := cfg.Setup(); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}
