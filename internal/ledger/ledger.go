package ledger

import (
	"context"
	"fmt"
	"math"

	"github.com/STTM-NSU/paper-league/internal/model"
)

const (
	quantityTolerance = 1e-9
	cashTolerance     = 1e-6
	bpsDenominator    = 10_000
)

// TradeSource returns a portfolio's trades dated on or before upTo, ordered by
// (trade date, insertion order).
type TradeSource interface {
	TradesForPortfolio(ctx context.Context, portfolioID, upTo string) ([]model.Trade, error)
}

// Prices resolves the latest close and FX rate on or before a date.
// *valuecache.Cache satisfies it.
type Prices interface {
	Price(ctx context.Context, instrumentID, date string) (float64, bool, error)
	FX(ctx context.Context, pair, date string) (float64, bool, error)
}

type Position struct {
	Instrument   model.Instrument
	Quantity     float64
	AvgCostLocal float64
}

// State is a portfolio reconstructed from its ledger as of a date. All
// amounts are KRW.
type State struct {
	CashKRW          float64
	RealizedPnlKRW   float64
	HoldingsValueKRW float64
	UnrealizedPnlKRW float64
	NavKRW           float64
	Positions        []Position

	// Unpriced lists the symbols marked at average cost because no price
	// exists for them on or before the valuation date.
	Unpriced []string
}

type Engine struct {
	trades              TradeSource
	fxPair              string
	defaultStartingCash float64
}

func NewEngine(trades TradeSource, fxPair string, defaultStartingCash float64) *Engine {
	return &Engine{
		trades:              trades,
		fxPair:              fxPair,
		defaultStartingCash: defaultStartingCash,
	}
}

// StartingCash is the participant's configured cash, or the competition default.
func (e *Engine) StartingCash(p model.Participant) float64 {
	if p.StartingCashKRW > 0 {
		return p.StartingCashKRW
	}
	return e.defaultStartingCash
}

// Replay folds every trade dated on or before asOf and marks the remaining
// positions to market on asOf.
func (e *Engine) Replay(
	ctx context.Context, portfolio model.Portfolio, participant model.Participant, asOf string, prices Prices,
) (State, error) {
	trades, err := e.trades.TradesForPortfolio(ctx, portfolio.ID, asOf)
	if err != nil {
		return State{}, fmt.Errorf("%w: can't load trades of portfolio %s", err, portfolio.ID)
	}

	b, err := e.fold(ctx, trades, e.StartingCash(participant), prices)
	if err != nil {
		return State{}, err
	}

	return e.markToMarket(ctx, b, asOf, prices)
}

type book struct {
	cash      float64
	realized  float64
	positions map[string]*Position
	order     []string
}

func (e *Engine) fold(ctx context.Context, trades []model.Trade, startingCash float64, prices Prices) (*book, error) {
	b := &book{
		cash:      startingCash,
		positions: make(map[string]*Position),
	}
	for _, t := range trades {
		if err := e.apply(ctx, b, t, prices); err != nil {
			return nil, err
		}
	}
	return b, nil
}

func (e *Engine) apply(ctx context.Context, b *book, t model.Trade, prices Prices) error {
	if !t.Side.Valid() {
		return inconsistent(t.ID, "unknown side %q", t.Side)
	}
	if !(t.Price > 0) || math.IsInf(t.Price, 0) {
		return inconsistent(t.ID, "invalid price %v", t.Price)
	}

	existing := b.positions[t.Instrument.ID]
	var prevQty, prevAvg float64
	if existing != nil {
		prevQty, prevAvg = existing.Quantity, existing.AvgCostLocal
	}

	qty := t.Quantity
	if t.Side == model.Close {
		qty = prevQty
	}
	if !(qty > 0) || math.IsInf(qty, 0) || qty != math.Trunc(qty) {
		return inconsistent(t.ID, "invalid quantity %v", qty)
	}
	if t.Side != model.Buy && qty > prevQty+quantityTolerance {
		return inconsistent(t.ID, "%s of %v exceeds position of %v", t.Side, qty, prevQty)
	}

	var feeRate, slippageBps float64
	if t.FeeRate != nil {
		feeRate = *t.FeeRate
	}
	if t.SlippageBps != nil {
		slippageBps = *t.SlippageBps
	}

	effective := t.Price * (1 - slippageBps/bpsDenominator)
	if t.Side == model.Buy {
		effective = t.Price * (1 + slippageBps/bpsDenominator)
	}
	notional := qty * effective
	fee := notional * feeRate

	fx, err := e.rateFor(ctx, t.Instrument, t.TradeDate, prices)
	if err != nil {
		return fmt.Errorf("%w (trade %d)", err, t.ID)
	}

	if t.Side == model.Buy {
		grossLocal := notional + fee
		grossKRW := grossLocal * fx
		if b.cash-grossKRW < -cashTolerance {
			return inconsistent(t.ID, "insufficient cash: need %.2f KRW, have %.2f KRW", grossKRW, b.cash)
		}
		b.cash -= grossKRW

		nextQty := prevQty + qty
		if existing == nil {
			existing = &Position{Instrument: t.Instrument}
			b.positions[t.Instrument.ID] = existing
			b.order = append(b.order, t.Instrument.ID)
		}
		existing.AvgCostLocal = (prevAvg*prevQty + grossLocal) / nextQty
		existing.Quantity = nextQty
		return nil
	}

	netLocal := notional - fee
	b.cash += netLocal * fx
	b.realized += (netLocal - prevAvg*qty) * fx

	nextQty := prevQty - qty
	if nextQty <= quantityTolerance {
		delete(b.positions, t.Instrument.ID)
		return nil
	}
	existing.Quantity = nextQty
	return nil
}

// rateFor is the KRW conversion rate for an instrument on date: 1 for KRW
// instruments, the FX rate on or before date otherwise.
func (e *Engine) rateFor(ctx context.Context, i model.Instrument, date string, prices Prices) (float64, error) {
	if !i.NeedsFX() {
		return 1, nil
	}
	rate, ok, err := prices.FX(ctx, e.fxPair, date)
	if err != nil {
		return 0, fmt.Errorf("%w: can't get %s rate", err, e.fxPair)
	}
	if !ok || !(rate > 0) {
		return 0, fmt.Errorf("%w: %s on or before %s", ErrMissingFX, e.fxPair, date)
	}
	return rate, nil
}

func (e *Engine) markToMarket(ctx context.Context, b *book, asOf string, prices Prices) (State, error) {
	s := State{
		CashKRW:        b.cash,
		RealizedPnlKRW: b.realized,
		Positions:      make([]Position, 0, len(b.positions)),
	}

	seen := make(map[string]struct{}, len(b.positions))
	for _, id := range b.order {
		pos, ok := b.positions[id]
		if !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		px, found, err := prices.Price(ctx, id, asOf)
		if err != nil {
			return State{}, fmt.Errorf("%w: can't get price of %s", err, pos.Instrument.Symbol)
		}
		if !found {
			px = pos.AvgCostLocal
			s.Unpriced = append(s.Unpriced, pos.Instrument.Symbol)
		}

		fx, err := e.rateFor(ctx, pos.Instrument, asOf, prices)
		if err != nil {
			return State{}, err
		}

		valueLocal := pos.Quantity * px
		costLocal := pos.Quantity * pos.AvgCostLocal
		s.HoldingsValueKRW += valueLocal * fx
		s.UnrealizedPnlKRW += (valueLocal - costLocal) * fx
		s.Positions = append(s.Positions, *pos)
	}

	s.NavKRW = s.CashKRW + s.HoldingsValueKRW
	return s, nil
}
