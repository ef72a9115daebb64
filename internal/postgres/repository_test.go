package postgres

import (
	"strings"
	"testing"
	"time"

	"github.com/STTM-NSU/paper-league/internal/model"
	"github.com/shopspring/decimal"
)

func TestTradeRowToModel(t *testing.T) {
	note := "rebalance"
	row := tradeRow{
		ID:          7,
		PortfolioID: "pf-1",
		TradeDate:   "2026-01-05",
		Side:        "SELL",
		Quantity:    decimal.RequireFromString("12"),
		Price:       decimal.RequireFromString("187.250000"),
		FeeRate:     decimal.NewNullDecimal(decimal.RequireFromString("0.0015")),
		Note:        &note,
		Instrument:  model.Instrument{ID: "us-1", Symbol: "AAPL", Currency: model.USD},
	}

	tr := row.toModel()
	if tr.ID != 7 || tr.Side != model.Sell || tr.Quantity != 12 || tr.Price != 187.25 {
		t.Fatalf("unexpected trade %+v", tr)
	}
	if tr.FeeRate == nil || *tr.FeeRate != 0.0015 {
		t.Fatalf("unexpected fee rate %v", tr.FeeRate)
	}
	if tr.SlippageBps != nil {
		t.Fatalf("NULL slippage must stay nil, got %v", *tr.SlippageBps)
	}
	if !tr.Instrument.NeedsFX() || tr.Note != &note {
		t.Fatalf("instrument or note lost: %+v", tr)
	}
}

func TestEntrantRowToModel(t *testing.T) {
	row := entrantRow{ParticipantID: "p-1", Name: "Alice", PortfolioID: "pf-1", BaseCurrency: "KRW", IsActive: true}
	e := row.toModel()
	if e.Participant.StartingCashKRW != 0 {
		t.Fatalf("NULL starting cash must map to zero, got %v", e.Participant.StartingCashKRW)
	}
	if e.Portfolio.ParticipantID != "p-1" || e.Portfolio.BaseCurrency != model.KRW {
		t.Fatalf("unexpected portfolio %+v", e.Portfolio)
	}

	row.StartingCashKRW = decimal.NewNullDecimal(decimal.RequireFromString("5000000.00"))
	if got := row.toModel().Participant.StartingCashKRW; got != 5_000_000 {
		t.Fatalf("got %v", got)
	}
}

func TestEncodeMetrics(t *testing.T) {
	got, err := encodeMetrics(nil)
	if err != nil || got != "{}" {
		t.Fatalf("got %q, %v", got, err)
	}

	got, err = encodeMetrics(map[string]any{"failed": 2, "pair": "USDKRW"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got, `"failed":2`) || !strings.Contains(got, `"pair":"USDKRW"`) {
		t.Fatalf("unexpected metrics %s", got)
	}
}

func TestConfigSetup(t *testing.T) {
	cfg := (&Config{Port: "not-a-port", Password: "secret"}).Setup()
	if cfg.Host != "localhost" || cfg.Port != "5432" || cfg.SSLMode != "disable" {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	if cfg.Password != "secret" {
		t.Fatalf("explicit values must be kept")
	}
	if cfg.MaxOpenConns != 10 || cfg.ConnMaxLifetime != 30*time.Minute {
		t.Fatalf("pool defaults not applied: %+v", cfg)
	}
	if !strings.Contains(cfg.String(), "dbname=paper_league") {
		t.Fatalf("unexpected dsn %s", cfg.String())
	}
}

func TestSchemaCoversTables(t *testing.T) {
	for _, table := range []string{"settings", "instruments", "participants", "portfolios", "trades", "prices", "fx_rates", "daily_snapshots", "job_runs"} {
		if !strings.Contains(_schema, "CREATE TABLE IF NOT EXISTS "+table+" ") {
			t.Errorf("schema misses %s", table)
		}
	}
}
