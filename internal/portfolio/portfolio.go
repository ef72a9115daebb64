package portfolio

import (
	"context"
	"errors"
	"fmt"

	"github.com/STTM-NSU/paper-league/internal/ledger"
	"github.com/STTM-NSU/paper-league/internal/logger"
	"github.com/STTM-NSU/paper-league/internal/model"
	"github.com/STTM-NSU/paper-league/internal/repository"
	"github.com/STTM-NSU/paper-league/internal/valuecache"
)

var ErrUnknownParticipant = errors.New("unknown participant")

// Service is the read side of the competition: holdings of one participant
// and the leaderboard, both valued by replaying the ledger. It also guards
// the write path by validating trades before they are recorded.
type Service struct {
	repo   repository.Repository
	engine *ledger.Engine
	fxPair string

	logger logger.Logger
}

func NewService(repo repository.Repository, engine *ledger.Engine, fxPair string, logger logger.Logger) *Service {
	return &Service{
		repo:   repo,
		engine: engine,
		fxPair: fxPair,
		logger: logger,
	}
}

type Holding struct {
	InstrumentID     string         `json:"instrument_id"`
	Symbol           string         `json:"symbol"`
	Name             string         `json:"name"`
	Market           model.Market   `json:"market"`
	Currency         model.Currency `json:"currency"`
	Quantity         float64        `json:"quantity"`
	AvgCostLocal     float64        `json:"avg_cost_local"`
	MarkLocal        float64        `json:"mark_local"`
	Priced           bool           `json:"priced"`
	ValueKRW         float64        `json:"value_krw"`
	UnrealizedPnlKRW float64        `json:"unrealized_pnl_krw"`
	Weight           *float64       `json:"weight"`
}

type Holdings struct {
	ParticipantID    string    `json:"participant_id"`
	Date             string    `json:"date"`
	NavKRW           float64   `json:"nav_krw"`
	CashKRW          float64   `json:"cash_krw"`
	HoldingsValueKRW float64   `json:"holdings_value_krw"`
	RealizedPnlKRW   float64   `json:"realized_pnl_krw"`
	UnrealizedPnlKRW float64   `json:"unrealized_pnl_krw"`
	Positions        []Holding `json:"positions"`
}

// Holdings values the participant's portfolio as of date.
func (s *Service) Holdings(ctx context.Context, participantID, date string) (Holdings, error) {
	e, err := s.entrant(ctx, participantID)
	if err != nil {
		return Holdings{}, err
	}

	cache := valuecache.New(s.repo)
	state, err := s.engine.Replay(ctx, e.Portfolio, e.Participant, date, cache)
	if err != nil {
		return Holdings{}, fmt.Errorf("%w: can't value portfolio of %s on %s", err, participantID, date)
	}

	positions, err := s.holdings(ctx, state, date, cache)
	if err != nil {
		return Holdings{}, err
	}

	return Holdings{
		ParticipantID:    participantID,
		Date:             date,
		NavKRW:           state.NavKRW,
		CashKRW:          state.CashKRW,
		HoldingsValueKRW: state.HoldingsValueKRW,
		RealizedPnlKRW:   state.RealizedPnlKRW,
		UnrealizedPnlKRW: state.UnrealizedPnlKRW,
		Positions:        positions,
	}, nil
}

// holdings marks every position the way the replay did; lookups hit the
// cache filled by the replay.
func (s *Service) holdings(ctx context.Context, state ledger.State, date string, cache *valuecache.Cache) ([]Holding, error) {
	out := make([]Holding, 0, len(state.Positions))
	for _, p := range state.Positions {
		mark, priced, err := cache.Price(ctx, p.Instrument.ID, date)
		if err != nil {
			return nil, fmt.Errorf("%w: can't get price of %s", err, p.Instrument.Symbol)
		}
		if !priced {
			mark = p.AvgCostLocal
		}

		fx := 1.0
		if p.Instrument.NeedsFX() {
			rate, ok, err := cache.FX(ctx, s.fxPair, date)
			if err != nil {
				return nil, fmt.Errorf("%w: can't get %s rate", err, s.fxPair)
			}
			if !ok {
				return nil, fmt.Errorf("%w: %s on or before %s", ledger.ErrMissingFX, s.fxPair, date)
			}
			fx = rate
		}

		h := Holding{
			InstrumentID:     p.Instrument.ID,
			Symbol:           p.Instrument.Symbol,
			Name:             p.Instrument.Name,
			Market:           p.Instrument.Market,
			Currency:         p.Instrument.Currency,
			Quantity:         p.Quantity,
			AvgCostLocal:     p.AvgCostLocal,
			MarkLocal:        mark,
			Priced:           priced,
			ValueKRW:         p.Quantity * mark * fx,
			UnrealizedPnlKRW: (mark - p.AvgCostLocal) * p.Quantity * fx,
		}
		if state.NavKRW > 0 {
			w := h.ValueKRW / state.NavKRW
			h.Weight = &w
		}
		out = append(out, h)
	}
	return out, nil
}

// RecordTrade validates t against the participant's full ledger and stores it.
// Rejected trades return the ledger's inconsistency or missing FX error.
func (s *Service) RecordTrade(ctx context.Context, participantID string, t model.Trade) (int64, error) {
	e, err := s.entrant(ctx, participantID)
	if err != nil {
		return 0, err
	}
	t.PortfolioID = e.Portfolio.ID

	if err := s.engine.ValidateTrade(ctx, e.Portfolio, e.Participant, t, valuecache.New(s.repo)); err != nil {
		return 0, fmt.Errorf("%w: trade rejected", err)
	}

	id, err := s.repo.InsertTrade(ctx, t)
	if err != nil {
		return 0, fmt.Errorf("%w: can't insert trade", err)
	}
	s.logger.Infof("recorded %s %s x%v for %s on %s (trade %d)", t.Side, t.Instrument.Symbol, t.Quantity, participantID, t.TradeDate, id)
	return id, nil
}

func (s *Service) entrant(ctx context.Context, participantID string) (model.Entrant, error) {
	e, err := s.repo.Entrant(ctx, participantID)
	if err != nil {
		return model.Entrant{}, fmt.Errorf("%w: can't load participant %s", err, participantID)
	}
	if e == nil {
		return model.Entrant{}, fmt.Errorf("%w: %s", ErrUnknownParticipant, participantID)
	}
	return *e, nil
}
