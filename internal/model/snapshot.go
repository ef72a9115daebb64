package model

// DailySnapshot is the persisted daily fact for one participant, keyed by
// (ParticipantID, Date).
type DailySnapshot struct {
	ParticipantID    string   `json:"participant_id" db:"participant_id"`
	PortfolioID      string   `json:"portfolio_id" db:"portfolio_id"`
	Date             string   `json:"date" db:"date"`
	NavKRW           float64  `json:"nav_krw" db:"nav_krw"`
	CashKRW          float64  `json:"cash_krw" db:"cash_krw"`
	HoldingsValueKRW float64  `json:"holdings_value_krw" db:"holdings_value_krw"`
	RealizedPnlKRW   float64  `json:"realized_pnl_krw" db:"realized_pnl_krw"`
	UnrealizedPnlKRW float64  `json:"unrealized_pnl_krw" db:"unrealized_pnl_krw"`
	TotalReturnPct   float64  `json:"total_return_pct" db:"total_return_pct"`
	SpyReturnPct     *float64 `json:"spy_return_pct" db:"spy_return_pct"`
	KospiReturnPct   *float64 `json:"kospi_return_pct" db:"kospi_return_pct"`
	AlphaSpyPct      *float64 `json:"alpha_spy_pct" db:"alpha_spy_pct"`
	AlphaKospiPct    *float64 `json:"alpha_kospi_pct" db:"alpha_kospi_pct"`
	RetDaily         *float64 `json:"ret_daily" db:"ret_daily"`
	VolAnn252        *float64 `json:"vol_ann_252" db:"vol_ann_252"`
	Sharpe252        *float64 `json:"sharpe_252" db:"sharpe_252"`
	MddToDate        float64  `json:"mdd_to_date" db:"mdd_to_date"`
	BetaSpy252       *float64 `json:"beta_spy_252" db:"beta_spy_252"`
	BetaKospi252     *float64 `json:"beta_kospi_252" db:"beta_kospi_252"`
}
