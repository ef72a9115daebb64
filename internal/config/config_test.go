package config

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestLoadInvestConfig(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "invest.yaml")

	t.Setenv("T_INVEST_API_TOKEN", "")
	if _, err := LoadInvestConfig(missing); !errors.Is(err, ErrMissingInvestToken) {
		t.Fatalf("expected ErrMissingInvestToken, got %v", err)
	}

	t.Setenv("T_INVEST_API_TOKEN", "t.secret")
	cfg, err := LoadInvestConfig(missing)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Token != "t.secret" || cfg.EndPoint != _investEndpointDefault || cfg.AppName != _investAppNameDefault {
		t.Fatalf("unexpected config %+v", cfg)
	}
}
