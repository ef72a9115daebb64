package repository

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/STTM-NSU/paper-league/internal/model"
)

var _ Repository = (*Memory)(nil)

// Memory is an in-process Repository for tests and dry runs.
type Memory struct {
	mu sync.RWMutex

	gameStart   string
	instruments []model.Instrument
	entrants    []model.Entrant
	trades      []model.Trade
	nextTradeID int64
	prices      map[string]map[string]model.Price  // instrument id -> date -> price
	fx          map[string]map[string]model.FxRate // pair -> date -> rate
	snapshots   map[string]map[string]model.DailySnapshot
	jobRuns     []model.JobRun
}

func NewMemory() *Memory {
	return &Memory{
		prices:    make(map[string]map[string]model.Price),
		fx:        make(map[string]map[string]model.FxRate),
		snapshots: make(map[string]map[string]model.DailySnapshot),
	}
}

func (m *Memory) SetGameStartDate(date string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gameStart = date
}

func (m *Memory) AddInstrument(i model.Instrument) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.instruments = append(m.instruments, i)
}

func (m *Memory) AddEntrant(e model.Entrant) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entrants = append(m.entrants, e)
}

func (m *Memory) GameStartDate(context.Context) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.gameStart, m.gameStart != "", nil
}

func (m *Memory) ActiveInstruments(context.Context) ([]model.Instrument, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.Instrument
	for _, i := range m.instruments {
		if i.IsActive {
			out = append(out, i)
		}
	}
	return out, nil
}

func (m *Memory) BenchmarkByCode(_ context.Context, code string) (*model.Instrument, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, i := range m.instruments {
		if i.IsActive && i.IsBenchmark && i.BenchmarkCode != nil && *i.BenchmarkCode == code {
			return &i, nil
		}
	}
	return nil, nil
}

func (m *Memory) Entrants(context.Context) ([]model.Entrant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := slices.Clone(m.entrants)
	slices.SortStableFunc(out, func(a, b model.Entrant) int {
		return cmp.Compare(a.Participant.Name, b.Participant.Name)
	})
	return out, nil
}

func (m *Memory) Entrant(_ context.Context, participantID string) (*model.Entrant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, e := range m.entrants {
		if e.Participant.ID == participantID {
			return &e, nil
		}
	}
	return nil, nil
}

func (m *Memory) TradesForPortfolio(_ context.Context, portfolioID, upTo string) ([]model.Trade, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.Trade
	for _, t := range m.trades {
		if t.PortfolioID == portfolioID && t.TradeDate <= upTo {
			out = append(out, t)
		}
	}
	slices.SortStableFunc(out, func(a, b model.Trade) int {
		return cmp.Or(cmp.Compare(a.TradeDate, b.TradeDate), cmp.Compare(a.ID, b.ID))
	})
	return out, nil
}

// InsertTrade assigns the next id when t.ID is zero.
func (m *Memory) InsertTrade(_ context.Context, t model.Trade) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.ID == 0 {
		m.nextTradeID++
		t.ID = m.nextTradeID
	} else {
		m.nextTradeID = max(m.nextTradeID, t.ID)
	}
	m.trades = append(m.trades, t)
	return t.ID, nil
}

func (m *Memory) PricePointOnOrBefore(_ context.Context, instrumentID, date string) (*model.Point, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return latestOnOrBefore(m.prices[instrumentID], date, func(p model.Price) float64 { return p.Close }), nil
}

func (m *Memory) FxPointOnOrBefore(_ context.Context, pair, date string) (*model.Point, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return latestOnOrBefore(m.fx[pair], date, func(r model.FxRate) float64 { return r.Rate }), nil
}

func latestOnOrBefore[T any](byDate map[string]T, date string, value func(T) float64) *model.Point {
	var best string
	for d := range byDate {
		if d <= date && d > best {
			best = d
		}
	}
	if best == "" {
		return nil
	}
	return &model.Point{Date: best, Value: value(byDate[best])}
}

func (m *Memory) PriceSeries(_ context.Context, instrumentID, from, to string) ([]model.Point, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.Point
	for _, d := range slices.Sorted(maps.Keys(m.prices[instrumentID])) {
		if d >= from && d <= to {
			out = append(out, model.Point{Date: d, Value: m.prices[instrumentID][d].Close})
		}
	}
	return out, nil
}

func (m *Memory) UpsertPrice(_ context.Context, p model.Price) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.prices[p.InstrumentID] == nil {
		m.prices[p.InstrumentID] = make(map[string]model.Price)
	}
	m.prices[p.InstrumentID][p.Date] = p
	return nil
}

func (m *Memory) UpsertFxRate(_ context.Context, r model.FxRate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fx[r.Pair] == nil {
		m.fx[r.Pair] = make(map[string]model.FxRate)
	}
	m.fx[r.Pair][r.Date] = r
	return nil
}

// Price returns the stored row for (instrument, date).
func (m *Memory) Price(instrumentID, date string) (model.Price, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.prices[instrumentID][date]
	return p, ok
}

func (m *Memory) FxRate(pair, date string) (model.FxRate, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.fx[pair][date]
	return r, ok
}

func (m *Memory) SnapshotsFrom(_ context.Context, participantID, from string) ([]model.DailySnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	byDate := m.snapshots[participantID]
	var out []model.DailySnapshot
	for _, d := range slices.Sorted(maps.Keys(byDate)) {
		if d >= from {
			out = append(out, byDate[d])
		}
	}
	return out, nil
}

func (m *Memory) LatestSnapshot(_ context.Context, participantID, date string) (*model.DailySnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	byDate := m.snapshots[participantID]
	var best string
	for d := range byDate {
		if d <= date && d > best {
			best = d
		}
	}
	if best == "" {
		return nil, nil
	}
	s := byDate[best]
	return &s, nil
}

func (m *Memory) UpsertSnapshot(_ context.Context, s model.DailySnapshot) error {
	if s.ParticipantID == "" || s.Date == "" {
		return fmt.Errorf("snapshot without participant or date")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.snapshots[s.ParticipantID] == nil {
		m.snapshots[s.ParticipantID] = make(map[string]model.DailySnapshot)
	}
	m.snapshots[s.ParticipantID][s.Date] = s
	return nil
}

// SnapshotCount counts stored snapshots across participants.
func (m *Memory) SnapshotCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, byDate := range m.snapshots {
		n += len(byDate)
	}
	return n
}

func (m *Memory) InsertJobRun(_ context.Context, r model.JobRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r.Metrics = maps.Clone(r.Metrics)
	m.jobRuns = append(m.jobRuns, r)
	return nil
}

func (m *Memory) JobRuns() []model.JobRun {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.jobRuns)
}
