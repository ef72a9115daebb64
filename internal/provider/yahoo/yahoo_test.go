package yahoo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"

	"github.com/STTM-NSU/paper-league/internal/logger"
	"github.com/STTM-NSU/paper-league/internal/model"
)

func TestCandidates(t *testing.T) {
	cases := []struct {
		symbol string
		market model.Market
		want   []string
	}{
		{"aapl", model.MarketUS, []string{"aapl", "AAPL"}},
		{"005930", model.MarketKR, []string{"005930.KS", "005930.KQ", "005930"}},
		{"KS11", model.MarketIndex, []string{"^KS11", "KS11"}},
		{"SPY", model.MarketIndex, []string{"SPY"}},
	}
	for _, c := range cases {
		if got := Candidates(c.symbol, c.market); !slices.Equal(got, c.want) {
			t.Errorf("Candidates(%s, %s) = %q, want %q", c.symbol, c.market, got, c.want)
		}
	}
}

// 2026-01-05 00:00 UTC is 2026-01-05 09:00 in Seoul and 2026-01-04 19:00 in New York.
const _chartBody = `{"chart":{"result":[{
	"meta":{"exchangeTimezoneName":"%s"},
	"timestamp":[1767484800,1767571200,1767657600],
	"indicators":{"quote":[{"close":[100.5,101.5,null]}]}
}]}}`

func chartBody(tz string) string {
	return strings.Replace(_chartBody, "%s", tz, 1)
}

func newTestProvider(t *testing.T, handler http.HandlerFunc) *Provider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Config{BaseURL: srv.URL, RequestsPerMinute: 6000}, logger.NewNop())
}

func writeJSON(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(body))
}

func TestGetDailyCloseUsesExchangeTimezone(t *testing.T) {
	var tz string
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, chartBody(tz))
	})

	tz = "Asia/Seoul"
	v, ok, err := p.GetDailyClose(context.Background(), "005930", model.MarketKR, "2026-01-05", "")
	if err != nil || !ok || v != 101.5 {
		t.Fatalf("Seoul: got %v %v %v", v, ok, err)
	}

	tz = "America/New_York"
	v, ok, err = p.GetDailyClose(context.Background(), "AAPL", model.MarketUS, "2026-01-04", "")
	if err != nil || !ok || v != 101.5 {
		t.Fatalf("New York: got %v %v %v", v, ok, err)
	}
}

func TestGetDailyCloseTriesSuffixes(t *testing.T) {
	var paths []string
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		if strings.HasSuffix(r.URL.Path, ".KS") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		q := r.URL.Query()
		if q.Get("interval") != "1d" || q.Get("events") != "div,splits" || q.Get("period1") == "" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		writeJSON(w, chartBody("Asia/Seoul"))
	})

	v, ok, err := p.GetDailyClose(context.Background(), "035720", model.MarketKR, "2026-01-06", "")
	if err != nil || !ok || v != 101.5 {
		t.Fatalf("got %v %v %v", v, ok, err)
	}
	if !slices.Equal(paths, []string{"/v8/finance/chart/035720.KS", "/v8/finance/chart/035720.KQ"}) {
		t.Fatalf("unexpected paths %q", paths)
	}
}

func TestGetFxRateWithoutClose(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, chartBody("UTC"))
	})

	_, ok, err := p.GetFxRate(context.Background(), "USDKRW", "2026-01-01")
	if ok || err == nil {
		t.Fatalf("expected an error before the first close, got %v %v", ok, err)
	}

	v, ok, err := p.GetFxRate(context.Background(), "USDKRW", "2026-01-09")
	if err != nil || !ok || v != 101.5 {
		t.Fatalf("null closes must be skipped, got %v %v %v", v, ok, err)
	}
}
