package pipeline

import (
	"context"
	"fmt"

	"github.com/STTM-NSU/paper-league/internal/benchmark"
	"github.com/STTM-NSU/paper-league/internal/ledger"
	"github.com/STTM-NSU/paper-league/internal/model"
	"github.com/STTM-NSU/paper-league/internal/risk"
	"github.com/STTM-NSU/paper-league/internal/valuecache"
)

const _seriesOrigin = "1900-01-01"

// PositionView is a replayed position as reported next to a snapshot.
type PositionView struct {
	InstrumentID string         `json:"instrument_id"`
	Symbol       string         `json:"symbol"`
	Name         string         `json:"name"`
	Market       model.Market   `json:"market"`
	Currency     model.Currency `json:"currency"`
	Quantity     float64        `json:"quantity"`
	AvgCostLocal float64        `json:"avg_cost_local"`
}

type SnapshotBuild struct {
	Snapshot  model.DailySnapshot `json:"snapshot"`
	Positions []PositionView      `json:"positions"`
	Unpriced  []string            `json:"unpriced,omitempty"`
}

// GameStartDate is the stored competition start, or the configured default
// when none is stored or it cannot be read.
func (o *Orchestrator) GameStartDate(ctx context.Context) string {
	date, ok, err := o.repo.GameStartDate(ctx)
	if err != nil {
		o.logger.Warnf("%s: can't read game start date, using %s", err, o.settings.GameStartDate)
		return o.settings.GameStartDate
	}
	if !ok {
		return o.settings.GameStartDate
	}
	return date
}

// Benchmarks builds the SPY and KOSPI return series over [gameStart, date].
func (o *Orchestrator) Benchmarks(ctx context.Context, gameStart, date string) (risk.Benchmarks, error) {
	spy, err := o.benchmarkSeries(ctx, o.settings.SPYCode, gameStart, date)
	if err != nil {
		return risk.Benchmarks{}, err
	}
	kospi, err := o.benchmarkSeries(ctx, o.settings.KOSPICode, gameStart, date)
	if err != nil {
		return risk.Benchmarks{}, err
	}
	return risk.Benchmarks{SPY: spy, KOSPI: kospi}, nil
}

func (o *Orchestrator) benchmarkSeries(ctx context.Context, code, start, end string) (benchmark.Series, error) {
	inst, err := o.repo.BenchmarkByCode(ctx, code)
	if err != nil {
		return benchmark.Series{}, fmt.Errorf("%w: can't load %s benchmark", err, code)
	}
	if inst == nil {
		return benchmark.Series{}, fmt.Errorf("%w: %s", ErrMissingBenchmark, code)
	}

	prices, err := o.repo.PriceSeries(ctx, inst.ID, _seriesOrigin, end)
	if err != nil {
		return benchmark.Series{}, fmt.Errorf("%w: can't load %s prices", err, code)
	}
	return benchmark.Build(code, start, end, prices)
}

func (o *Orchestrator) generateSnapshots(ctx context.Context, runID, date string) Result {
	res := Result{Job: JobGenerateSnapshots, TargetDate: date, RunID: runID}

	gameStart := o.GameStartDate(ctx)
	if date < gameStart {
		err := fmt.Errorf("%w: target_date (%s) is before GAME_START_DATE (%s)", ErrBeforeGameStart, date, gameStart)
		res.Status = model.StatusFailed
		res.Err = err
		res.Failures = []Failure{{Item: "-", Reason: err.Error()}}
		o.logger.Warnf("%s", err)
		o.logJob(ctx, res, map[string]any{"game_start_date": gameStart}, err.Error())
		return res
	}

	entrants, err := o.repo.Entrants(ctx)
	if err != nil {
		return o.fatal(ctx, res, fmt.Errorf("%w: can't load participants", err))
	}
	benchmarks, err := o.Benchmarks(ctx, gameStart, date)
	if err != nil {
		return o.fatal(ctx, res, err)
	}
	res.Total = len(entrants)

	cache := valuecache.New(o.repo)
	unpriced := make(map[string][]string)
	for _, e := range entrants {
		build, err := o.BuildSnapshot(ctx, e, date, benchmarks, gameStart, cache)
		if err == nil {
			err = o.repo.UpsertSnapshot(ctx, build.Snapshot)
		}
		if err != nil {
			o.logger.Warnf("%s: can't build snapshot of %s on %s", err, e.Participant.ID, date)
			res.Failures = append(res.Failures, Failure{Item: e.Participant.ID, Reason: err.Error()})
			continue
		}
		if len(build.Unpriced) > 0 {
			unpriced[e.Participant.ID] = build.Unpriced
		}
		res.Succeeded++
	}

	res.Status = model.StatusFor(res.Total, len(res.Failures), 0)

	var errorMessage string
	if len(res.Failures) > 0 {
		errorMessage = fmt.Sprintf("Failed participants: %d", len(res.Failures))
	}
	metrics := map[string]any{
		"participants":    res.Total,
		"succeeded":       res.Succeeded,
		"failed":          len(res.Failures),
		"failures":        res.Failures,
		"game_start_date": gameStart,
	}
	if len(unpriced) > 0 {
		metrics["unpriced_positions"] = unpriced
	}
	o.logJob(ctx, res, metrics, errorMessage)

	return res
}

// BuildSnapshot replays the entrant's ledger as of date and derives the
// snapshot with its risk metrics. Nothing is persisted.
func (o *Orchestrator) BuildSnapshot(
	ctx context.Context,
	e model.Entrant,
	date string,
	benchmarks risk.Benchmarks,
	gameStart string,
	prices ledger.Prices,
) (SnapshotBuild, error) {
	state, err := o.engine.Replay(ctx, e.Portfolio, e.Participant, date, prices)
	if err != nil {
		return SnapshotBuild{}, fmt.Errorf("%w: can't replay ledger", err)
	}

	startingCash := o.engine.StartingCash(e.Participant)
	m, err := o.risk.Compute(ctx, e.Participant.ID, date, state.NavKRW, benchmarks, gameStart, startingCash)
	if err != nil {
		return SnapshotBuild{}, fmt.Errorf("%w: can't compute risk metrics", err)
	}

	totalReturn := state.NavKRW/startingCash - 1
	spyRet := benchmarks.SPY.Return(date)
	kospiRet := benchmarks.KOSPI.Return(date)

	snapshot := model.DailySnapshot{
		ParticipantID:    e.Participant.ID,
		PortfolioID:      e.Portfolio.ID,
		Date:             date,
		NavKRW:           state.NavKRW,
		CashKRW:          state.CashKRW,
		HoldingsValueKRW: state.HoldingsValueKRW,
		RealizedPnlKRW:   state.RealizedPnlKRW,
		UnrealizedPnlKRW: state.UnrealizedPnlKRW,
		TotalReturnPct:   totalReturn,
		SpyReturnPct:     spyRet,
		KospiReturnPct:   kospiRet,
		AlphaSpyPct:      alpha(totalReturn, spyRet),
		AlphaKospiPct:    alpha(totalReturn, kospiRet),
		RetDaily:         m.RetDaily,
		VolAnn252:        m.VolAnn,
		Sharpe252:        m.Sharpe,
		MddToDate:        m.MDD,
		BetaSpy252:       m.BetaSPY,
		BetaKospi252:     m.BetaKOSPI,
	}

	positions := make([]PositionView, 0, len(state.Positions))
	for _, p := range state.Positions {
		positions = append(positions, PositionView{
			InstrumentID: p.Instrument.ID,
			Symbol:       p.Instrument.Symbol,
			Name:         p.Instrument.Name,
			Market:       p.Instrument.Market,
			Currency:     p.Instrument.Currency,
			Quantity:     p.Quantity,
			AvgCostLocal: p.AvgCostLocal,
		})
	}

	return SnapshotBuild{Snapshot: snapshot, Positions: positions, Unpriced: state.Unpriced}, nil
}

func alpha(total float64, bench *float64) *float64 {
	if bench == nil {
		return nil
	}
	a := total - *bench
	return &a
}
