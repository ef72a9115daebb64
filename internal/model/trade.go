package model

type Side string

const (
	Buy   Side = "BUY"
	Sell  Side = "SELL"
	Close Side = "CLOSE"
)

func (s Side) Valid() bool {
	switch s {
	case Buy, Sell, Close:
		return true
	default:
		return false
	}
}

// Trade is an immutable ledger entry. Trades of a portfolio are ordered by
// (TradeDate, ID); ID follows insertion order.
type Trade struct {
	ID          int64      `json:"id" db:"id"`
	PortfolioID string     `json:"portfolio_id" db:"portfolio_id"`
	Instrument  Instrument `json:"instrument"`
	TradeDate   string     `json:"trade_date" db:"trade_date"`
	Side        Side       `json:"side" db:"side"`
	Quantity    float64    `json:"quantity" db:"quantity"` // ignored for CLOSE
	Price       float64    `json:"price" db:"price"`       // local currency
	FeeRate     *float64   `json:"fee_rate" db:"fee_rate"`
	SlippageBps *float64   `json:"slippage_bps" db:"slippage_bps"`
	Note        *string    `json:"note" db:"note"`
}
