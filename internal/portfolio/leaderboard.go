package portfolio

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"slices"

	"github.com/STTM-NSU/paper-league/internal/calendar"
	"github.com/STTM-NSU/paper-league/internal/model"
	"github.com/STTM-NSU/paper-league/internal/valuecache"
	"golang.org/x/sync/errgroup"
)

const (
	_latest          = "9999-12-31"
	_turnoverDays    = 20
	_topN            = 3
	_leaderboardJobs = 8
)

type SortBy string

const (
	SortByReturn SortBy = "return"
	SortBySharpe SortBy = "sharpe"
)

type Stat struct {
	Symbol string  `json:"symbol"`
	Value  float64 `json:"value"`
}

type LeaderboardRow struct {
	ParticipantID   string              `json:"participant_id"`
	ParticipantName string              `json:"participant_name"`
	ColorTag        string              `json:"color_tag"`
	Snapshot        model.DailySnapshot `json:"snapshot"`
	CashRatio       *float64            `json:"cash_ratio"`
	Turnover20d     *float64            `json:"turnover_20d"`
	TopReturn       []Stat              `json:"top_return"`
	TopWeight       []Stat              `json:"top_weight"`
	TopUnrealized   []Stat              `json:"top_unrealized"`
}

type Leaderboard struct {
	Date string           `json:"date"` // newest snapshot date across rows
	Rows []LeaderboardRow `json:"rows"`
}

// Leaderboard ranks participants by their latest snapshot. Rows are built
// concurrently; every participant is valued through its own cache.
func (s *Service) Leaderboard(ctx context.Context, sortBy SortBy) (Leaderboard, error) {
	entrants, err := s.repo.Entrants(ctx)
	if err != nil {
		return Leaderboard{}, fmt.Errorf("%w: can't load participants", err)
	}

	rows := make([]*LeaderboardRow, len(entrants))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(_leaderboardJobs)
	for i, e := range entrants {
		g.Go(func() error {
			row, err := s.leaderboardRow(gctx, e)
			if err != nil {
				return fmt.Errorf("%w: can't build leaderboard row of %s", err, e.Participant.ID)
			}
			rows[i] = row
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Leaderboard{}, err
	}

	var lb Leaderboard
	for _, r := range rows {
		if r == nil {
			continue
		}
		lb.Rows = append(lb.Rows, *r)
		lb.Date = max(lb.Date, r.Snapshot.Date)
	}

	slices.SortStableFunc(lb.Rows, func(a, b LeaderboardRow) int {
		if sortBy == SortBySharpe {
			return cmp.Compare(orNegInf(b.Snapshot.Sharpe252), orNegInf(a.Snapshot.Sharpe252))
		}
		return cmp.Compare(b.Snapshot.TotalReturnPct, a.Snapshot.TotalReturnPct)
	})
	return lb, nil
}

// leaderboardRow returns nil for a participant without snapshots.
func (s *Service) leaderboardRow(ctx context.Context, e model.Entrant) (*LeaderboardRow, error) {
	snap, err := s.repo.LatestSnapshot(ctx, e.Participant.ID, _latest)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, nil
	}

	row := &LeaderboardRow{
		ParticipantID:   e.Participant.ID,
		ParticipantName: e.Participant.Name,
		ColorTag:        e.Participant.ColorTag,
		Snapshot:        *snap,
	}
	if snap.AlphaSpyPct == nil && snap.SpyReturnPct != nil {
		a := snap.TotalReturnPct - *snap.SpyReturnPct
		row.Snapshot.AlphaSpyPct = &a
	}
	if snap.AlphaKospiPct == nil && snap.KospiReturnPct != nil {
		a := snap.TotalReturnPct - *snap.KospiReturnPct
		row.Snapshot.AlphaKospiPct = &a
	}
	if snap.NavKRW > 0 {
		r := snap.CashKRW / snap.NavKRW
		row.CashRatio = &r
	}

	cache := valuecache.New(s.repo)
	state, err := s.engine.Replay(ctx, e.Portfolio, e.Participant, snap.Date, cache)
	if err != nil {
		return nil, err
	}
	holdings, err := s.holdings(ctx, state, snap.Date, cache)
	if err != nil {
		return nil, err
	}

	var returns, weights, unrealized []Stat
	for _, h := range holdings {
		if h.AvgCostLocal > 0 {
			returns = append(returns, Stat{Symbol: h.Symbol, Value: h.MarkLocal/h.AvgCostLocal - 1})
		}
		if snap.NavKRW > 0 {
			weights = append(weights, Stat{Symbol: h.Symbol, Value: h.ValueKRW / snap.NavKRW})
		}
		unrealized = append(unrealized, Stat{Symbol: h.Symbol, Value: h.UnrealizedPnlKRW})
	}
	row.TopReturn = top(returns, _topN)
	row.TopWeight = top(weights, _topN)
	row.TopUnrealized = top(unrealized, _topN)

	row.Turnover20d, err = s.turnover(ctx, e.Portfolio.ID, snap.Date, snap.NavKRW, cache)
	if err != nil {
		return nil, err
	}
	return row, nil
}

// turnover is the KRW notional traded over the trailing 20 days divided by NAV.
func (s *Service) turnover(ctx context.Context, portfolioID, date string, nav float64, cache *valuecache.Cache) (*float64, error) {
	if !(nav > 0) {
		return nil, nil
	}
	windowStart, err := calendar.AddDays(date, -(_turnoverDays - 1))
	if err != nil {
		return nil, err
	}
	trades, err := s.repo.TradesForPortfolio(ctx, portfolioID, date)
	if err != nil {
		return nil, err
	}

	held := make(map[string]float64)
	var notional float64
	for _, t := range trades {
		prev := held[t.Instrument.ID]
		qty := t.Quantity
		if t.Side == model.Close {
			qty = prev
		}
		if !(qty > 0) {
			continue
		}

		if t.TradeDate >= windowStart {
			fx := 1.0
			if t.Instrument.NeedsFX() {
				rate, ok, err := cache.FX(ctx, s.fxPair, t.TradeDate)
				if err != nil {
					return nil, err
				}
				fx = rate
				if !ok {
					fx = 0
				}
			}
			notional += qty * t.Price * fx
		}

		if t.Side == model.Buy {
			held[t.Instrument.ID] = prev + qty
		} else if next := prev - qty; next <= 1e-9 {
			delete(held, t.Instrument.ID)
		} else {
			held[t.Instrument.ID] = next
		}
	}

	v := notional / nav
	return &v, nil
}

func top(items []Stat, n int) []Stat {
	out := slices.Clone(items)
	slices.SortStableFunc(out, func(a, b Stat) int { return cmp.Compare(b.Value, a.Value) })
	return out[:min(n, len(out))]
}

func orNegInf(v *float64) float64 {
	if v == nil {
		return math.Inf(-1)
	}
	return *v
}
