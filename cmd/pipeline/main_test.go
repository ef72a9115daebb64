package main

import (
	"path/filepath"
	"testing"
)

func TestLoadConfigFallsBackToDefaults(t *testing.T) {
	cfg, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.FxPair != "USDKRW" || cfg.Window.Size != 252 || cfg.Schedule.Daily == "" {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
}

func TestLoadConfigFromRepo(t *testing.T) {
	t.Setenv("MARKET_DATA_PROVIDERS", "")
	t.Setenv("MARKET_DATA_PROVIDER", "")

	cfg, err := loadConfig("../../configs/pipeline.yaml")
	if err != nil {
		t.Fatal(err)
	}
	names := cfg.Providers.Names()
	if len(names) != 3 || names[0] != "TWELVE" || names[2] != "MOCK" {
		t.Fatalf("unexpected chain %v", names)
	}
	if cfg.Game.Location().String() != "Asia/Seoul" {
		t.Fatalf("unexpected timezone %s", cfg.Game.Location())
	}
}

func TestOptionalFloat(t *testing.T) {
	if v, err := optionalFloat(""); v != nil || err != nil {
		t.Fatalf("empty input must be unset, got %v, %v", v, err)
	}
	if v, err := optionalFloat("1.5"); err != nil || *v != 1.5 {
		t.Fatalf("got %v, %v", v, err)
	}
	if _, err := optionalFloat("abc"); err == nil {
		t.Fatal("expected parse error")
	}
}
