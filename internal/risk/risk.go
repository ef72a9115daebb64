package risk

import (
	"context"
	"fmt"
	"math"

	"github.com/STTM-NSU/paper-league/internal/benchmark"
	"github.com/STTM-NSU/paper-league/internal/model"
	"github.com/STTM-NSU/paper-league/internal/stats"
)

const tradingDaysPerYear = 252

// SnapshotHistory returns a participant's snapshots dated on or after from,
// ascending by date.
type SnapshotHistory interface {
	SnapshotsFrom(ctx context.Context, participantID, from string) ([]model.DailySnapshot, error)
}

type Window struct {
	Size   int // trailing observations used for vol, Sharpe and beta
	MinObs int // observations required before a metric is reported
}

var DefaultWindow = Window{Size: 252, MinObs: 60}

type Benchmarks struct {
	SPY   benchmark.Series
	KOSPI benchmark.Series
}

type Metrics struct {
	RetDaily  *float64
	VolAnn    *float64
	Sharpe    *float64
	MDD       float64
	BetaSPY   *float64
	BetaKOSPI *float64
}

type Computer struct {
	history SnapshotHistory
	window  Window
}

func NewComputer(history SnapshotHistory, window Window) *Computer {
	if window.Size <= 0 {
		window.Size = DefaultWindow.Size
	}
	if window.MinObs <= 0 {
		window.MinObs = DefaultWindow.MinObs
	}
	return &Computer{history: history, window: window}
}

// Compute derives the risk metrics of a participant on asOf from the NAV
// history persisted before asOf plus today's NAV.
func (c *Computer) Compute(
	ctx context.Context,
	participantID, asOf string,
	navToday float64,
	benchmarks Benchmarks,
	gameStartDate string,
	startingCash float64,
) (Metrics, error) {
	past, err := c.history.SnapshotsFrom(ctx, participantID, gameStartDate)
	if err != nil {
		return Metrics{}, fmt.Errorf("%w: can't load snapshot history of %s", err, participantID)
	}

	dates := make([]string, 0, len(past)+2)
	navs := make([]float64, 0, len(past)+2)
	for _, s := range past {
		if s.Date >= asOf {
			continue
		}
		dates = append(dates, s.Date)
		navs = append(navs, s.NavKRW)
	}

	if (len(dates) == 0 || dates[0] > gameStartDate) && asOf > gameStartDate {
		dates = append([]string{gameStartDate}, dates...)
		navs = append([]float64{startingCash}, navs...)
	}
	dates = append(dates, asOf)
	navs = append(navs, navToday)

	returns := DailyReturns(navs)

	m := Metrics{MDD: MaxDrawdown(navs)}
	if len(returns) > 0 {
		r := returns[len(returns)-1]
		m.RetDaily = &r
	}
	m.VolAnn, m.Sharpe = c.volSharpe(stats.Trailing(returns, c.window.Size))
	m.BetaSPY = c.beta(returns, benchmark.DailyReturns(dates, benchmarks.SPY))
	m.BetaKOSPI = c.beta(returns, benchmark.DailyReturns(dates, benchmarks.KOSPI))

	return m, nil
}

// DailyReturns turns consecutive NAVs into ratio-minus-one returns.
func DailyReturns(navs []float64) []float64 {
	if len(navs) < 2 {
		return nil
	}
	out := make([]float64, 0, len(navs)-1)
	for i := 1; i < len(navs); i++ {
		out = append(out, navs[i]/navs[i-1]-1)
	}
	return out
}

// MaxDrawdown is the deepest NAV decline from a running peak, as a
// non-positive fraction.
func MaxDrawdown(navs []float64) float64 {
	peak := math.Inf(-1)
	var mdd float64
	for _, nav := range navs {
		if nav > peak {
			peak = nav
		}
		if dd := nav/peak - 1; dd < mdd {
			mdd = dd
		}
	}
	return mdd
}

func (c *Computer) volSharpe(returns []float64) (*float64, *float64) {
	if len(returns) < c.window.MinObs {
		return nil, nil
	}
	std := stats.SampleStdDev(returns)
	if std == 0 {
		zero := 0.0
		return &zero, nil
	}
	vol := std * math.Sqrt(tradingDaysPerYear)
	sharpe := stats.Mean(returns) * tradingDaysPerYear / vol
	return &vol, &sharpe
}

func (c *Computer) beta(portfolio []float64, bench []*float64) *float64 {
	p := make([]float64, 0, len(portfolio))
	b := make([]float64, 0, len(portfolio))
	for i, r := range portfolio {
		if i >= len(bench) || bench[i] == nil {
			continue
		}
		p = append(p, r)
		b = append(b, *bench[i])
	}

	p = stats.Trailing(p, c.window.Size)
	b = stats.Trailing(b, c.window.Size)
	if len(p) < c.window.MinObs {
		return nil
	}
	beta, ok := stats.OLSBeta(p, b)
	if !ok {
		return nil
	}
	return &beta
}
