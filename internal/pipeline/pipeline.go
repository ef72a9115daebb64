package pipeline

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/STTM-NSU/paper-league/internal/calendar"
	"github.com/STTM-NSU/paper-league/internal/ledger"
	"github.com/STTM-NSU/paper-league/internal/logger"
	"github.com/STTM-NSU/paper-league/internal/model"
	"github.com/STTM-NSU/paper-league/internal/provider"
	"github.com/STTM-NSU/paper-league/internal/repository"
	"github.com/STTM-NSU/paper-league/internal/risk"
	"github.com/bytedance/sonic"
	"github.com/google/uuid"
)

var (
	ErrBeforeGameStart  = errors.New("target date is before game start")
	ErrMissingBenchmark = errors.New("benchmark instrument missing")
)

const (
	JobUpdatePrices      = "update_prices"
	JobUpdateFx          = "update_fx"
	JobGenerateSnapshots = "generate_snapshots"
)

type Settings struct {
	FxPair          string
	SPYCode         string
	KOSPICode       string
	GameStartDate   string // used when the repository stores none
	StartingCashKRW float64
	Timezone        string
	Window          risk.Window

	// RequestedProviders is the raw chain as configured and
	// InvalidProviderTokens the tokens that were skipped; both are reported
	// in job metrics.
	RequestedProviders    string
	InvalidProviderTokens []string
}

// Failure is one item (symbol, pair or participant) that a stage could not
// produce.
type Failure struct {
	Item   string `json:"item"`
	Reason string `json:"reason"`
}

// Warning is an item produced from a carried-forward value.
type Warning struct {
	Item          string             `json:"item"`
	Reason        string             `json:"reason"`
	FallbackDate  string             `json:"fallback_date"`
	FallbackValue float64            `json:"fallback_value"`
	Attempts      []provider.Attempt `json:"provider_attempts"`
}

// Result is the outcome of one stage for one date. Err is set when the stage
// failed as a whole; per-item problems only show up in Failures and Warnings.
type Result struct {
	Job        string          `json:"job"`
	TargetDate string          `json:"target_date"`
	RunID      string          `json:"run_id"`
	Status     model.JobStatus `json:"status"`
	Total      int             `json:"total"`
	Succeeded  int             `json:"succeeded"`
	Failures   []Failure       `json:"failures,omitempty"`
	Warnings   []Warning       `json:"warnings,omitempty"`
	Rate       *float64        `json:"rate,omitempty"`
	Err        error           `json:"-"`
}

type Orchestrator struct {
	repo     repository.Repository
	chain    *provider.Chain
	engine   *ledger.Engine
	risk     *risk.Computer
	settings Settings

	logger logger.Logger
	now    func() time.Time
}

func New(repo repository.Repository, chain *provider.Chain, settings Settings, logger logger.Logger) *Orchestrator {
	settings.FxPair = cmp.Or(settings.FxPair, "USDKRW")
	settings.SPYCode = cmp.Or(settings.SPYCode, "SPY")
	settings.KOSPICode = cmp.Or(settings.KOSPICode, "KOSPI")
	settings.GameStartDate = cmp.Or(settings.GameStartDate, "2026-01-01")
	settings.Timezone = cmp.Or(settings.Timezone, "Asia/Seoul")
	if settings.StartingCashKRW <= 0 {
		settings.StartingCashKRW = 10_000_000_000
	}

	return &Orchestrator{
		repo:     repo,
		chain:    chain,
		engine:   ledger.NewEngine(repo, settings.FxPair, settings.StartingCashKRW),
		risk:     risk.NewComputer(repo, settings.Window),
		settings: settings,
		logger:   logger,
		now:      time.Now,
	}
}

// Engine exposes the replay engine shared with the read path.
func (o *Orchestrator) Engine() *ledger.Engine {
	return o.engine
}

// DefaultTargetDate is yesterday in the game timezone.
func (o *Orchestrator) DefaultTargetDate() (string, error) {
	return calendar.Yesterday(o.now(), o.settings.Timezone)
}

type DailyReport struct {
	TargetDate string `json:"target_date"`
	RunID      string `json:"run_id"`
	Prices     Result `json:"prices"`
	Fx         Result `json:"fx"`
	Snapshots  Result `json:"snapshots"`
}

// RunDaily refreshes prices, then FX, then snapshots for date. Stage failures
// are reported in the results; the returned error is set only when snapshot
// generation could not start.
func (o *Orchestrator) RunDaily(ctx context.Context, date string) (DailyReport, error) {
	if err := calendar.Validate(date); err != nil {
		return DailyReport{}, err
	}
	runID := uuid.NewString()
	o.logger.Infof("daily pipeline %s started for %s", runID, date)

	r := DailyReport{TargetDate: date, RunID: runID}
	r.Prices = o.updatePrices(ctx, runID, date)
	r.Fx = o.updateFx(ctx, runID, date)
	r.Snapshots = o.generateSnapshots(ctx, runID, date)

	o.logger.Infof("daily pipeline %s finished for %s: prices %s, fx %s, snapshots %s",
		runID, date, r.Prices.Status, r.Fx.Status, r.Snapshots.Status)

	return r, precondition(r.Snapshots.Err)
}

func (o *Orchestrator) UpdatePrices(ctx context.Context, date string) (Result, error) {
	if err := calendar.Validate(date); err != nil {
		return Result{}, err
	}
	return o.updatePrices(ctx, uuid.NewString(), date), nil
}

func (o *Orchestrator) UpdateFx(ctx context.Context, date string) (Result, error) {
	if err := calendar.Validate(date); err != nil {
		return Result{}, err
	}
	return o.updateFx(ctx, uuid.NewString(), date), nil
}

// GenerateSnapshots returns ErrBeforeGameStart or ErrMissingBenchmark when
// the run could not start; the failed run is logged either way.
func (o *Orchestrator) GenerateSnapshots(ctx context.Context, date string) (Result, error) {
	if err := calendar.Validate(date); err != nil {
		return Result{}, err
	}
	res := o.generateSnapshots(ctx, uuid.NewString(), date)
	return res, precondition(res.Err)
}

func precondition(err error) error {
	if errors.Is(err, ErrBeforeGameStart) || errors.Is(err, ErrMissingBenchmark) {
		return err
	}
	return nil
}

type Kind string

const (
	KindPrices    Kind = "prices"
	KindFx        Kind = "fx"
	KindSnapshots Kind = "snapshots"
	KindAll       Kind = "all"
)

func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindPrices, KindFx, KindSnapshots, KindAll:
		return k, nil
	default:
		return "", fmt.Errorf("unknown backfill kind %q", s)
	}
}

// Backfill re-runs the chosen stage for every day of [start, end] in order.
// A day that fails does not stop the remaining days.
func (o *Orchestrator) Backfill(ctx context.Context, kind Kind, start, end string) ([]Result, error) {
	if _, err := ParseKind(string(kind)); err != nil {
		return nil, err
	}
	dates, err := calendar.Range(start, end)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid backfill range", err)
	}

	runID := uuid.NewString()
	o.logger.Infof("backfill %s of %s started for %s..%s (%d days)", runID, kind, start, end, len(dates))

	results := make([]Result, 0, len(dates))
	for _, d := range dates {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		switch kind {
		case KindPrices:
			results = append(results, o.updatePrices(ctx, runID, d))
		case KindFx:
			results = append(results, o.updateFx(ctx, runID, d))
		case KindSnapshots:
			results = append(results, o.generateSnapshots(ctx, runID, d))
		case KindAll:
			results = append(results,
				o.updatePrices(ctx, runID, d),
				o.updateFx(ctx, runID, d),
				o.generateSnapshots(ctx, runID, d),
			)
		}
	}

	o.logger.Infof("backfill %s finished: %d stage runs", runID, len(results))
	return results, nil
}

// logJob records a stage run. Write failures are logged and swallowed.
func (o *Orchestrator) logJob(ctx context.Context, res Result, metrics map[string]any, errorMessage string) {
	if metrics == nil {
		metrics = make(map[string]any)
	}
	metrics["run_id"] = res.RunID

	run := model.JobRun{
		JobName:    res.Job,
		TargetDate: res.TargetDate,
		Status:     res.Status,
		Metrics:    metrics,
	}
	if errorMessage != "" {
		run.ErrorMessage = &errorMessage
	}

	if err := o.repo.InsertJobRun(ctx, run); err != nil {
		o.logger.Errorf("%s: can't write job run %s for %s", err, res.Job, res.TargetDate)
	}

	summary, err := sonic.MarshalString(res)
	if err != nil {
		summary = string(res.Status)
	}
	o.logger.Infof("%s %s: %s", res.Job, res.TargetDate, summary)
}

func (o *Orchestrator) fatal(ctx context.Context, res Result, err error) Result {
	res.Status = model.StatusFailed
	res.Err = err
	res.Failures = append(res.Failures, Failure{Item: "*", Reason: err.Error()})
	o.logger.Errorf("%s: %s failed for %s", err, res.Job, res.TargetDate)
	o.logJob(ctx, res, map[string]any{"fatal": true}, err.Error())
	return res
}
