package ledger

import (
	"context"
	"fmt"

	"github.com/STTM-NSU/paper-league/internal/model"
)

// endOfTime bounds a ledger lookup that must return every trade.
const endOfTime = "9999-12-31"

// ValidateTrade checks that candidate can be appended to the portfolio's
// ledger: the whole ledger is replayed with candidate placed after every
// trade of the same date, so later trades are re-validated as well.
func (e *Engine) ValidateTrade(
	ctx context.Context, portfolio model.Portfolio, participant model.Participant, candidate model.Trade, prices Prices,
) error {
	trades, err := e.trades.TradesForPortfolio(ctx, portfolio.ID, endOfTime)
	if err != nil {
		return fmt.Errorf("%w: can't load trades of portfolio %s", err, portfolio.ID)
	}

	ledger := make([]model.Trade, 0, len(trades)+1)
	inserted := false
	for _, t := range trades {
		if !inserted && t.TradeDate > candidate.TradeDate {
			ledger = append(ledger, candidate)
			inserted = true
		}
		ledger = append(ledger, t)
	}
	if !inserted {
		ledger = append(ledger, candidate)
	}

	_, err = e.fold(ctx, ledger, e.StartingCash(participant), prices)
	return err
}
