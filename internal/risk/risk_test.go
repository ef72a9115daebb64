package risk

import (
	"context"
	"math"
	"testing"

	"github.com/STTM-NSU/paper-league/internal/benchmark"
	"github.com/STTM-NSU/paper-league/internal/calendar"
	"github.com/STTM-NSU/paper-league/internal/model"
)

type fakeHistory []model.DailySnapshot

func (f fakeHistory) SnapshotsFrom(_ context.Context, _ string, from string) ([]model.DailySnapshot, error) {
	out := make([]model.DailySnapshot, 0, len(f))
	for _, s := range f {
		if s.Date >= from {
			out = append(out, s)
		}
	}
	return out, nil
}

func TestMaxDrawdown(t *testing.T) {
	got := MaxDrawdown([]float64{100, 120, 90, 110})
	if math.Abs(got-(-0.25)) > 1e-12 {
		t.Fatalf("mdd = %f, want -0.25", got)
	}
	if MaxDrawdown([]float64{100, 101, 102}) != 0 {
		t.Fatalf("monotonic series must have zero drawdown")
	}
}

// history builds n consecutive daily snapshots starting at start with NAVs
// produced by nav(i).
func history(t *testing.T, start string, n int, nav func(i int) float64) (fakeHistory, []string) {
	t.Helper()
	end, err := calendar.AddDays(start, n-1)
	if err != nil {
		t.Fatal(err)
	}
	dates, err := calendar.Range(start, end)
	if err != nil {
		t.Fatal(err)
	}
	h := make(fakeHistory, 0, n)
	for i, d := range dates {
		h = append(h, model.DailySnapshot{ParticipantID: "p1", Date: d, NavKRW: nav(i)})
	}
	return h, dates
}

func TestComputeSeedsStartingCash(t *testing.T) {
	c := NewComputer(fakeHistory{}, DefaultWindow)
	m, err := c.Compute(context.Background(), "p1", "2026-01-02", 110, Benchmarks{}, "2026-01-01", 100)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if m.RetDaily == nil || math.Abs(*m.RetDaily-0.1) > 1e-12 {
		t.Fatalf("expected 10%% daily return, got %v", m.RetDaily)
	}
	if m.VolAnn != nil || m.Sharpe != nil || m.BetaSPY != nil {
		t.Fatalf("window metrics must be nil with one observation")
	}
}

func TestComputeOnGameStartHasNoReturn(t *testing.T) {
	c := NewComputer(fakeHistory{}, DefaultWindow)
	m, err := c.Compute(context.Background(), "p1", "2026-01-01", 100, Benchmarks{}, "2026-01-01", 100)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if m.RetDaily != nil {
		t.Fatalf("expected no daily return on the first day")
	}
	if m.MDD != 0 {
		t.Fatalf("expected zero drawdown")
	}
}

func TestComputeIgnoresSnapshotsOnOrAfterAsOf(t *testing.T) {
	h := fakeHistory{
		{Date: "2026-01-01", NavKRW: 100},
		{Date: "2026-01-02", NavKRW: 50}, // stale row for the date being recomputed
	}
	c := NewComputer(h, DefaultWindow)
	m, err := c.Compute(context.Background(), "p1", "2026-01-02", 120, Benchmarks{}, "2026-01-01", 100)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if math.Abs(*m.RetDaily-0.2) > 1e-12 || m.MDD != 0 {
		t.Fatalf("unexpected metrics %+v", m)
	}
}

func TestComputeVolSharpeWindow(t *testing.T) {
	// alternate +1% / -0.5% so the stddev is never zero
	nav := func(i int) float64 {
		v := 100.0
		for k := 1; k <= i; k++ {
			if k%2 == 0 {
				v *= 1.01
			} else {
				v *= 0.995
			}
		}
		return v
	}

	// 59 returns: below the minimum
	h, dates := history(t, "2026-01-01", 59, nav)
	c := NewComputer(h, DefaultWindow)
	asOf, _ := calendar.AddDays(dates[len(dates)-1], 1)
	m, err := c.Compute(context.Background(), "p1", asOf, nav(59), Benchmarks{}, "2026-01-01", 100)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if m.VolAnn != nil || m.Sharpe != nil {
		t.Fatalf("vol/sharpe must be nil below 60 observations")
	}

	// 60 returns: reported
	h, dates = history(t, "2026-01-01", 60, nav)
	c = NewComputer(h, DefaultWindow)
	asOf, _ = calendar.AddDays(dates[len(dates)-1], 1)
	m, err = c.Compute(context.Background(), "p1", asOf, nav(60), Benchmarks{}, "2026-01-01", 100)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if m.VolAnn == nil || m.Sharpe == nil || *m.VolAnn <= 0 {
		t.Fatalf("expected vol and sharpe, got %+v", m)
	}
}

func TestComputeFlatNavHasZeroVolAndNoSharpe(t *testing.T) {
	h, dates := history(t, "2026-01-01", 80, func(int) float64 { return 100 })
	c := NewComputer(h, DefaultWindow)
	asOf, _ := calendar.AddDays(dates[len(dates)-1], 1)
	m, err := c.Compute(context.Background(), "p1", asOf, 100, Benchmarks{}, "2026-01-01", 100)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if m.VolAnn == nil || *m.VolAnn != 0 {
		t.Fatalf("expected zero vol, got %v", m.VolAnn)
	}
	if m.Sharpe != nil {
		t.Fatalf("expected undefined sharpe")
	}
}

func TestComputeBeta(t *testing.T) {
	const n = 90
	benchClose := func(i int) float64 { return 100 + 3*math.Sin(float64(i)) }

	h, dates := history(t, "2026-01-01", n, func(i int) float64 {
		// portfolio moves exactly twice the benchmark every day
		v := 1000.0
		for k := 1; k <= i; k++ {
			v *= 1 + 2*(benchClose(k)/benchClose(k-1)-1)
		}
		return v
	})
	asOf, _ := calendar.AddDays(dates[n-1], 1)
	navToday := h[n-1].NavKRW * (1 + 2*(benchClose(n)/benchClose(n-1)-1))

	points := make([]model.Point, 0, n+1)
	for i := 0; i <= n; i++ {
		d, _ := calendar.AddDays("2026-01-01", i)
		points = append(points, model.Point{Date: d, Value: benchClose(i)})
	}
	spy, err := benchmark.Build("SPY", "2026-01-01", asOf, points)
	if err != nil {
		t.Fatal(err)
	}
	flat, err := benchmark.Build("KOSPI", "2026-01-01", asOf, []model.Point{{Date: "2026-01-01", Value: 2500}})
	if err != nil {
		t.Fatal(err)
	}

	c := NewComputer(h, DefaultWindow)
	m, err := c.Compute(context.Background(), "p1", asOf, navToday, Benchmarks{SPY: spy, KOSPI: flat}, "2026-01-01", 1000)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if m.BetaSPY == nil || math.Abs(*m.BetaSPY-2) > 1e-6 {
		t.Fatalf("expected beta 2, got %v", m.BetaSPY)
	}
	if m.BetaKOSPI != nil {
		t.Fatalf("zero-variance benchmark must yield nil beta")
	}
}

func TestComputeBetaNeedsPairedObservations(t *testing.T) {
	h, dates := history(t, "2026-01-01", 90, func(i int) float64 { return 100 + float64(i%3) })
	asOf, _ := calendar.AddDays(dates[89], 1)
	// benchmark closes start on day 60, so the series has no base and no
	// benchmark return pairs with any portfolio return
	points := make([]model.Point, 0, 31)
	for i := 60; i <= 90; i++ {
		d, _ := calendar.AddDays("2026-01-01", i)
		points = append(points, model.Point{Date: d, Value: 100 + float64(i%5)})
	}
	spy, err := benchmark.Build("SPY", "2026-01-01", asOf, points)
	if err != nil {
		t.Fatal(err)
	}
	c := NewComputer(h, DefaultWindow)
	m, err := c.Compute(context.Background(), "p1", asOf, 101, Benchmarks{SPY: spy}, "2026-01-01", 100)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if m.BetaSPY != nil {
		t.Fatalf("beta must be nil with fewer than 60 paired observations")
	}
	if m.VolAnn == nil {
		t.Fatalf("vol must still be reported from 90 portfolio returns")
	}
}
