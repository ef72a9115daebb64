package mock

import (
	"context"
	"math"
	"testing"

	"github.com/STTM-NSU/paper-league/internal/model"
)

func TestHash(t *testing.T) {
	cases := map[string]int64{"a": 97, "abc": 96354, "2026-01-02": 1161665731}
	for in, want := range cases {
		if got := hash(in); got != want {
			t.Errorf("hash(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestDeterministicValues(t *testing.T) {
	p := New()
	ctx := context.Background()

	cases := []struct {
		symbol string
		market model.Market
		want   float64
	}{
		{"AAPL", model.MarketUS, 239.49293826941405},
		{"KS11", model.MarketIndex, 2638.3444934793115},
	}
	for _, c := range cases {
		v, ok, err := p.GetDailyClose(ctx, c.symbol, c.market, "2026-01-02", "")
		if err != nil || !ok || math.Abs(v-c.want) > 1e-9 {
			t.Errorf("%s: got %v %v %v, want %v", c.symbol, v, ok, err, c.want)
		}
	}

	v, ok, err := p.GetFxRate(ctx, "USDKRW", "2026-01-02")
	if err != nil || !ok || math.Abs(v-1276.03) > 1e-9 {
		t.Fatalf("fx: got %v %v %v", v, ok, err)
	}
	if _, ok, _ := p.GetFxRate(ctx, "EURKRW", "2026-01-02"); ok {
		t.Fatalf("only USDKRW is served")
	}

	first, _, _ := p.GetDailyClose(ctx, "005930", model.MarketKR, "2026-01-05", "")
	again, _, _ := p.GetDailyClose(ctx, "005930", model.MarketKR, "2026-01-05", "")
	if first != again || first < 20_000*0.97 {
		t.Fatalf("values must be stable across calls")
	}
}
