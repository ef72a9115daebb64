package benchmark

import (
	"math"
	"testing"

	"github.com/STTM-NSU/paper-league/internal/model"
)

func approx(t *testing.T, got *float64, want float64) {
	t.Helper()
	if got == nil {
		t.Fatalf("got nil, want %f", want)
	}
	if math.Abs(*got-want) > 1e-12 {
		t.Fatalf("got %f, want %f", *got, want)
	}
}

func TestBuildCarriesForward(t *testing.T) {
	raw := []model.Point{
		{Date: "2026-01-05", Value: 110},
		{Date: "2025-12-31", Value: 100}, // before start, becomes the base
		{Date: "2026-01-03", Value: 105},
	}
	s, err := Build("SPY", "2026-01-01", "2026-01-06", raw)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if len(s.ReturnByDate) != 6 {
		t.Fatalf("expected every calendar day, got %d", len(s.ReturnByDate))
	}
	approx(t, s.Return("2026-01-01"), 0)
	approx(t, s.Return("2026-01-02"), 0)
	approx(t, s.Return("2026-01-03"), 0.05)
	approx(t, s.Return("2026-01-04"), 0.05)
	approx(t, s.Return("2026-01-05"), 0.10)
	approx(t, s.Return("2026-01-06"), 0.10)
}

func TestBuildWithoutBaseIsNil(t *testing.T) {
	raw := []model.Point{{Date: "2026-01-03", Value: 105}}
	s, err := Build("KOSPI", "2026-01-01", "2026-01-04", raw)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	for _, d := range []string{"2026-01-01", "2026-01-02", "2026-01-03", "2026-01-04"} {
		v, ok := s.ReturnByDate[d]
		if !ok {
			t.Fatalf("date %s omitted", d)
		}
		if v != nil {
			t.Fatalf("date %s: expected nil, got %f", d, *v)
		}
	}
}

func TestDailyReturns(t *testing.T) {
	raw := []model.Point{
		{Date: "2026-01-01", Value: 100},
		{Date: "2026-01-02", Value: 110},
		{Date: "2026-01-03", Value: 99},
	}
	s, err := Build("SPY", "2026-01-01", "2026-01-03", raw)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	daily := DailyReturns([]string{"2026-01-01", "2026-01-02", "2026-01-03", "2026-01-09"}, s)
	if len(daily) != 3 {
		t.Fatalf("expected 3 daily returns, got %d", len(daily))
	}
	approx(t, daily[0], 0.10)
	approx(t, daily[1], -0.10)
	if daily[2] != nil {
		t.Fatalf("out of range date must yield nil")
	}
}
