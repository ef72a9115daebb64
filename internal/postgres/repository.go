package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	"github.com/STTM-NSU/paper-league/internal/model"
	"github.com/STTM-NSU/paper-league/internal/repository"
	"github.com/STTM-NSU/paper-league/internal/tools"
	"github.com/bytedance/sonic"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

//go:embed schema.sql
var _schema string

var _ repository.Repository = (*Repository)(nil)

// Repository stores the competition in postgres. Dates cross the boundary as
// ISO strings, so every DATE column is selected as text.
type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// Migrate creates missing tables.
func (r *Repository) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, _schema); err != nil {
		return fmt.Errorf("%w: can't apply schema", err)
	}
	return nil
}

const _queryGameStart = "SELECT value_json ->> 'date' FROM settings WHERE key = 'GAME_START_DATE'"

func (r *Repository) GameStartDate(ctx context.Context) (string, bool, error) {
	var date sql.NullString
	if err := r.db.GetContext(ctx, &date, _queryGameStart); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("%w: can't query game start date", err)
	}
	return date.String, date.Valid && date.String != "", nil
}

const (
	_instrumentColumns = `id::text AS id, symbol, name, market, currency, asset_type,
		COALESCE(provider_symbol, '') AS provider_symbol, is_active, is_benchmark, benchmark_code`
	_queryActiveInstruments = "SELECT " + _instrumentColumns + " FROM instruments WHERE is_active ORDER BY market, symbol"
	_queryBenchmarkByCode   = "SELECT " + _instrumentColumns + " FROM instruments WHERE benchmark_code = $1 AND is_active"
)

func (r *Repository) ActiveInstruments(ctx context.Context) ([]model.Instrument, error) {
	var instruments []model.Instrument
	if err := r.db.SelectContext(ctx, &instruments, _queryActiveInstruments); err != nil {
		return nil, fmt.Errorf("%w: can't query instruments", err)
	}
	return instruments, nil
}

func (r *Repository) BenchmarkByCode(ctx context.Context, code string) (*model.Instrument, error) {
	var i model.Instrument
	if err := r.db.GetContext(ctx, &i, _queryBenchmarkByCode, code); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: can't query benchmark %s", err, code)
	}
	return &i, nil
}

// An entrant's portfolio is its active one, the oldest when several are.
const (
	_entrantSelect = `SELECT * FROM (
			SELECT DISTINCT ON (p.id)
				p.id::text AS participant_id,
				p.name,
				COALESCE(p.color_tag, '') AS color_tag,
				p.starting_cash_krw,
				pf.id::text AS portfolio_id,
				pf.base_currency,
				pf.is_active
			FROM participants p
			JOIN portfolios pf ON pf.participant_id = p.id
			ORDER BY p.id, pf.is_active DESC, pf.created_at
		) e`
	_queryEntrants = _entrantSelect + " ORDER BY name, participant_id"
	_queryEntrant  = _entrantSelect + " WHERE participant_id = $1"
)

type entrantRow struct {
	ParticipantID   string              `db:"participant_id"`
	Name            string              `db:"name"`
	ColorTag        string              `db:"color_tag"`
	StartingCashKRW decimal.NullDecimal `db:"starting_cash_krw"`
	PortfolioID     string              `db:"portfolio_id"`
	BaseCurrency    string              `db:"base_currency"`
	IsActive        bool                `db:"is_active"`
}

func (e entrantRow) toModel() model.Entrant {
	var cash float64
	if v := tools.NullFloat(e.StartingCashKRW); v != nil {
		cash = *v
	}
	return model.Entrant{
		Participant: model.Participant{
			ID:              e.ParticipantID,
			Name:            e.Name,
			ColorTag:        e.ColorTag,
			StartingCashKRW: cash,
		},
		Portfolio: model.Portfolio{
			ID:            e.PortfolioID,
			ParticipantID: e.ParticipantID,
			BaseCurrency:  model.Currency(e.BaseCurrency),
			IsActive:      e.IsActive,
		},
	}
}

func (r *Repository) Entrants(ctx context.Context) ([]model.Entrant, error) {
	var rows []entrantRow
	if err := r.db.SelectContext(ctx, &rows, _queryEntrants); err != nil {
		return nil, fmt.Errorf("%w: can't query participants", err)
	}
	out := make([]model.Entrant, len(rows))
	for i, row := range rows {
		out[i] = row.toModel()
	}
	return out, nil
}

func (r *Repository) Entrant(ctx context.Context, participantID string) (*model.Entrant, error) {
	var row entrantRow
	if err := r.db.GetContext(ctx, &row, _queryEntrant, participantID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: can't query participant %s", err, participantID)
	}
	e := row.toModel()
	return &e, nil
}

const (
	_queryTrades = `SELECT
			t.id, t.portfolio_id::text AS portfolio_id, t.trade_date::text AS trade_date,
			t.side, t.quantity, t.price, t.fee_rate, t.slippage_bps, t.note,
			i.id::text AS "instrument.id", i.symbol AS "instrument.symbol", i.name AS "instrument.name",
			i.market AS "instrument.market", i.currency AS "instrument.currency",
			i.asset_type AS "instrument.asset_type",
			COALESCE(i.provider_symbol, '') AS "instrument.provider_symbol",
			i.is_active AS "instrument.is_active", i.is_benchmark AS "instrument.is_benchmark",
			i.benchmark_code AS "instrument.benchmark_code"
		FROM trades t
		JOIN instruments i ON i.id = t.instrument_id
		WHERE t.portfolio_id = $1 AND t.trade_date <= $2::date
		ORDER BY t.trade_date, t.id`
	_insertTrade = `INSERT INTO trades (
			portfolio_id, instrument_id, trade_date, side, quantity, price, fee_rate, slippage_bps, note
		) VALUES ($1, $2, $3::date, $4, $5, $6, $7, $8, $9)
		RETURNING id`
)

type tradeRow struct {
	ID          int64               `db:"id"`
	PortfolioID string              `db:"portfolio_id"`
	TradeDate   string              `db:"trade_date"`
	Side        string              `db:"side"`
	Quantity    decimal.Decimal     `db:"quantity"`
	Price       decimal.Decimal     `db:"price"`
	FeeRate     decimal.NullDecimal `db:"fee_rate"`
	SlippageBps decimal.NullDecimal `db:"slippage_bps"`
	Note        *string             `db:"note"`
	Instrument  model.Instrument    `db:"instrument"`
}

func (t tradeRow) toModel() model.Trade {
	return model.Trade{
		ID:          t.ID,
		PortfolioID: t.PortfolioID,
		Instrument:  t.Instrument,
		TradeDate:   t.TradeDate,
		Side:        model.Side(t.Side),
		Quantity:    tools.Float(t.Quantity),
		Price:       tools.Float(t.Price),
		FeeRate:     tools.NullFloat(t.FeeRate),
		SlippageBps: tools.NullFloat(t.SlippageBps),
		Note:        t.Note,
	}
}

func (r *Repository) TradesForPortfolio(ctx context.Context, portfolioID, upTo string) ([]model.Trade, error) {
	var rows []tradeRow
	if err := r.db.SelectContext(ctx, &rows, _queryTrades, portfolioID, upTo); err != nil {
		return nil, fmt.Errorf("%w: can't query trades of portfolio %s", err, portfolioID)
	}
	out := make([]model.Trade, len(rows))
	for i, row := range rows {
		out[i] = row.toModel()
	}
	return out, nil
}

func (r *Repository) InsertTrade(ctx context.Context, t model.Trade) (int64, error) {
	var id int64
	if err := r.db.GetContext(ctx, &id, _insertTrade,
		t.PortfolioID,
		t.Instrument.ID,
		t.TradeDate,
		string(t.Side),
		tools.Numeric(t.Quantity),
		tools.Numeric(t.Price),
		tools.NullNumeric(t.FeeRate),
		tools.NullNumeric(t.SlippageBps),
		t.Note,
	); err != nil {
		return 0, fmt.Errorf("%w: can't insert trade", err)
	}
	return id, nil
}

const (
	_queryPricePoint = `SELECT date::text AS date, close AS value FROM prices
		WHERE instrument_id = $1 AND date <= $2::date ORDER BY date DESC LIMIT 1`
	_queryFxPoint = `SELECT date::text AS date, rate AS value FROM fx_rates
		WHERE pair = $1 AND date <= $2::date ORDER BY date DESC LIMIT 1`
	_queryPriceSeries = `SELECT date::text AS date, close AS value FROM prices
		WHERE instrument_id = $1 AND date BETWEEN $2::date AND $3::date ORDER BY date`
)

type pointRow struct {
	Date  string          `db:"date"`
	Value decimal.Decimal `db:"value"`
}

func (p pointRow) toModel() model.Point {
	return model.Point{Date: p.Date, Value: tools.Float(p.Value)}
}

func (r *Repository) point(ctx context.Context, query, key, date string) (*model.Point, error) {
	var row pointRow
	if err := r.db.GetContext(ctx, &row, query, key, date); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	p := row.toModel()
	return &p, nil
}

func (r *Repository) PricePointOnOrBefore(ctx context.Context, instrumentID, date string) (*model.Point, error) {
	p, err := r.point(ctx, _queryPricePoint, instrumentID, date)
	if err != nil {
		return nil, fmt.Errorf("%w: can't query price of %s on %s", err, instrumentID, date)
	}
	return p, nil
}

func (r *Repository) FxPointOnOrBefore(ctx context.Context, pair, date string) (*model.Point, error) {
	p, err := r.point(ctx, _queryFxPoint, pair, date)
	if err != nil {
		return nil, fmt.Errorf("%w: can't query %s on %s", err, pair, date)
	}
	return p, nil
}

func (r *Repository) PriceSeries(ctx context.Context, instrumentID, from, to string) ([]model.Point, error) {
	var rows []pointRow
	if err := r.db.SelectContext(ctx, &rows, _queryPriceSeries, instrumentID, from, to); err != nil {
		return nil, fmt.Errorf("%w: can't query prices of %s", err, instrumentID)
	}
	out := make([]model.Point, len(rows))
	for i, row := range rows {
		out[i] = row.toModel()
	}
	return out, nil
}

const (
	_upsertPrice = `INSERT INTO prices (instrument_id, date, close, source, provider_used)
		VALUES ($1, $2::date, $3, $4, $5)
		ON CONFLICT (instrument_id, date)
		DO UPDATE SET
			close = EXCLUDED.close,
			source = EXCLUDED.source,
			provider_used = EXCLUDED.provider_used;`
	_upsertFxRate = `INSERT INTO fx_rates (pair, date, rate, source, provider_used)
		VALUES ($1, $2::date, $3, $4, $5)
		ON CONFLICT (pair, date)
		DO UPDATE SET
			rate = EXCLUDED.rate,
			source = EXCLUDED.source,
			provider_used = EXCLUDED.provider_used;`
)

func (r *Repository) UpsertPrice(ctx context.Context, p model.Price) error {
	if _, err := r.db.ExecContext(ctx, _upsertPrice,
		p.InstrumentID, p.Date, tools.Numeric(p.Close), string(p.Source), p.ProviderUsed,
	); err != nil {
		return fmt.Errorf("%w: can't upsert price of %s on %s", err, p.InstrumentID, p.Date)
	}
	return nil
}

func (r *Repository) UpsertFxRate(ctx context.Context, fx model.FxRate) error {
	if _, err := r.db.ExecContext(ctx, _upsertFxRate,
		fx.Pair, fx.Date, tools.Numeric(fx.Rate), string(fx.Source), fx.ProviderUsed,
	); err != nil {
		return fmt.Errorf("%w: can't upsert %s on %s", err, fx.Pair, fx.Date)
	}
	return nil
}

const (
	_snapshotColumns = `participant_id::text AS participant_id, portfolio_id::text AS portfolio_id,
		date::text AS date, nav_krw, cash_krw, holdings_value_krw, realized_pnl_krw, unrealized_pnl_krw,
		total_return_pct, spy_return_pct, kospi_return_pct, alpha_spy_pct, alpha_kospi_pct,
		ret_daily, vol_ann_252, sharpe_252, mdd_to_date, beta_spy_252, beta_kospi_252`
	_querySnapshotsFrom = "SELECT " + _snapshotColumns + ` FROM daily_snapshots
		WHERE participant_id = $1 AND date >= $2::date ORDER BY date`
	_queryLatestSnapshot = "SELECT " + _snapshotColumns + ` FROM daily_snapshots
		WHERE participant_id = $1 AND date <= $2::date ORDER BY date DESC LIMIT 1`
	_upsertSnapshot = `INSERT INTO daily_snapshots (
			participant_id, portfolio_id, date, nav_krw, cash_krw, holdings_value_krw,
			realized_pnl_krw, unrealized_pnl_krw, total_return_pct, spy_return_pct, kospi_return_pct,
			alpha_spy_pct, alpha_kospi_pct, ret_daily, vol_ann_252, sharpe_252, mdd_to_date,
			beta_spy_252, beta_kospi_252
		) VALUES (
			:participant_id, :portfolio_id, :date, :nav_krw, :cash_krw, :holdings_value_krw,
			:realized_pnl_krw, :unrealized_pnl_krw, :total_return_pct, :spy_return_pct, :kospi_return_pct,
			:alpha_spy_pct, :alpha_kospi_pct, :ret_daily, :vol_ann_252, :sharpe_252, :mdd_to_date,
			:beta_spy_252, :beta_kospi_252
		)
		ON CONFLICT (participant_id, date)
		DO UPDATE SET
			portfolio_id = EXCLUDED.portfolio_id,
			nav_krw = EXCLUDED.nav_krw,
			cash_krw = EXCLUDED.cash_krw,
			holdings_value_krw = EXCLUDED.holdings_value_krw,
			realized_pnl_krw = EXCLUDED.realized_pnl_krw,
			unrealized_pnl_krw = EXCLUDED.unrealized_pnl_krw,
			total_return_pct = EXCLUDED.total_return_pct,
			spy_return_pct = EXCLUDED.spy_return_pct,
			kospi_return_pct = EXCLUDED.kospi_return_pct,
			alpha_spy_pct = EXCLUDED.alpha_spy_pct,
			alpha_kospi_pct = EXCLUDED.alpha_kospi_pct,
			ret_daily = EXCLUDED.ret_daily,
			vol_ann_252 = EXCLUDED.vol_ann_252,
			sharpe_252 = EXCLUDED.sharpe_252,
			mdd_to_date = EXCLUDED.mdd_to_date,
			beta_spy_252 = EXCLUDED.beta_spy_252,
			beta_kospi_252 = EXCLUDED.beta_kospi_252;`
)

func (r *Repository) SnapshotsFrom(ctx context.Context, participantID, from string) ([]model.DailySnapshot, error) {
	var snapshots []model.DailySnapshot
	if err := r.db.SelectContext(ctx, &snapshots, _querySnapshotsFrom, participantID, from); err != nil {
		return nil, fmt.Errorf("%w: can't query snapshots of %s", err, participantID)
	}
	return snapshots, nil
}

func (r *Repository) LatestSnapshot(ctx context.Context, participantID, date string) (*model.DailySnapshot, error) {
	var s model.DailySnapshot
	if err := r.db.GetContext(ctx, &s, _queryLatestSnapshot, participantID, date); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: can't query latest snapshot of %s", err, participantID)
	}
	return &s, nil
}

func (r *Repository) UpsertSnapshot(ctx context.Context, s model.DailySnapshot) error {
	if _, err := r.db.NamedExecContext(ctx, _upsertSnapshot, s); err != nil {
		return fmt.Errorf("%w: can't upsert snapshot of %s on %s", err, s.ParticipantID, s.Date)
	}
	return nil
}

const _insertJobRun = `INSERT INTO job_runs (job_name, target_date, status, metrics_json, error_message)
	VALUES ($1, $2::date, $3, $4::jsonb, $5)`

func (r *Repository) InsertJobRun(ctx context.Context, run model.JobRun) error {
	metrics, err := encodeMetrics(run.Metrics)
	if err != nil {
		return fmt.Errorf("%w: can't encode metrics of %s", err, run.JobName)
	}
	if _, err := r.db.ExecContext(ctx, _insertJobRun,
		run.JobName, run.TargetDate, string(run.Status), metrics, run.ErrorMessage,
	); err != nil {
		return fmt.Errorf("%w: can't insert %s run", err, run.JobName)
	}
	return nil
}

func encodeMetrics(metrics map[string]any) (string, error) {
	if metrics == nil {
		return "{}", nil
	}
	return sonic.MarshalString(metrics)
}
