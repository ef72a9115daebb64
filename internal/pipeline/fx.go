package pipeline

import (
	"cmp"
	"context"
	"fmt"

	"github.com/STTM-NSU/paper-league/internal/model"
	"github.com/STTM-NSU/paper-league/internal/provider"
)

func (o *Orchestrator) updateFx(ctx context.Context, runID, date string) Result {
	pair := o.settings.FxPair
	res := Result{Job: JobUpdateFx, TargetDate: date, RunID: runID, Total: 1}

	live := o.chain.ResolveFx(ctx, pair, date)
	row := model.FxRate{Pair: pair, Date: date}
	var (
		usedProvider *string
		warning      string
	)

	if live.Found {
		used := string(live.UsedProvider)
		usedProvider = &used
		row.Rate, row.Source, row.ProviderUsed = live.Value, model.SourceProvider, usedProvider
	} else {
		fallback, err := o.repo.FxPointOnOrBefore(ctx, pair, date)
		if err != nil {
			return o.fatal(ctx, res, fmt.Errorf("%w: can't load historical %s rate", err, pair))
		}
		if fallback == nil {
			reason := cmp.Or(live.FinalReason, "no FX rate returned and no historical fallback")
			res.Status = model.StatusFailed
			res.Failures = []Failure{{Item: pair, Reason: reason}}
			o.logger.Warnf("no %s rate on %s: %s", pair, date, reason)
			o.logJob(ctx, res, o.fxMetrics(res, live.Attempts, nil, live.FinalReason), reason)
			return res
		}

		warning = fmt.Sprintf("Carry-forward FX from %s", fallback.Date)
		row.Rate, row.Source = fallback.Value, model.SourceCarryForward
		res.Warnings = []Warning{{
			Item:          pair,
			Reason:        cmp.Or(live.FinalReason, "all providers failed"),
			FallbackDate:  fallback.Date,
			FallbackValue: fallback.Value,
			Attempts:      live.Attempts,
		}}
	}

	if err := o.repo.UpsertFxRate(ctx, row); err != nil {
		return o.fatal(ctx, res, fmt.Errorf("%w: can't upsert %s rate", err, pair))
	}

	rate := row.Rate
	res.Rate = &rate
	res.Succeeded = 1
	res.Status = model.StatusFor(1, 0, len(res.Warnings))

	o.logJob(ctx, res, o.fxMetrics(res, live.Attempts, usedProvider, cmp.Or(warning, live.FinalReason)), warning)
	return res
}

func (o *Orchestrator) fxMetrics(res Result, attempts []provider.Attempt, usedProvider *string, fallbackReason string) map[string]any {
	m := map[string]any{
		"requested_provider":      o.settings.RequestedProviders,
		"configured_chain":        o.chain.Names(),
		"invalid_provider_tokens": o.settings.InvalidProviderTokens,
		"used_provider":           usedProvider,
		"fallback_used":           len(res.Warnings) > 0,
		"pair":                    o.settings.FxPair,
		"rate":                    res.Rate,
		"provider_attempts":       attempts,
	}
	if fallbackReason != "" {
		m["fallback_reason"] = fallbackReason
	}
	return m
}
