package repository

import (
	"context"

	"github.com/STTM-NSU/paper-league/internal/model"
)

// Repository is the persistence boundary of the pipeline. Dates are ISO
// YYYY-MM-DD strings. Upserts are keyed by their natural keys, so replaying a
// date overwrites instead of duplicating.
type Repository interface {
	// GameStartDate returns the stored competition start; ok is false when
	// none is configured.
	GameStartDate(ctx context.Context) (date string, ok bool, err error)

	ActiveInstruments(ctx context.Context) ([]model.Instrument, error)
	// BenchmarkByCode returns the active benchmark instrument, nil when missing.
	BenchmarkByCode(ctx context.Context, code string) (*model.Instrument, error)

	// Entrants lists participants that have a portfolio, ordered by name.
	Entrants(ctx context.Context) ([]model.Entrant, error)
	Entrant(ctx context.Context, participantID string) (*model.Entrant, error)

	TradesForPortfolio(ctx context.Context, portfolioID, upTo string) ([]model.Trade, error)
	InsertTrade(ctx context.Context, t model.Trade) (int64, error)

	PricePointOnOrBefore(ctx context.Context, instrumentID, date string) (*model.Point, error)
	FxPointOnOrBefore(ctx context.Context, pair, date string) (*model.Point, error)
	// PriceSeries returns closes in [from, to] ordered by date.
	PriceSeries(ctx context.Context, instrumentID, from, to string) ([]model.Point, error)
	UpsertPrice(ctx context.Context, p model.Price) error
	UpsertFxRate(ctx context.Context, r model.FxRate) error

	// SnapshotsFrom returns a participant's snapshots dated on or after from,
	// ordered by date.
	SnapshotsFrom(ctx context.Context, participantID, from string) ([]model.DailySnapshot, error)
	// LatestSnapshot returns the newest snapshot on or before date, nil when none.
	LatestSnapshot(ctx context.Context, participantID, date string) (*model.DailySnapshot, error)
	UpsertSnapshot(ctx context.Context, s model.DailySnapshot) error

	InsertJobRun(ctx context.Context, r model.JobRun) error
}
