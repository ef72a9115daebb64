package pipeline

import (
	"cmp"
	"context"
	"errors"
	"fmt"

	"github.com/STTM-NSU/paper-league/internal/model"
)

func (o *Orchestrator) updatePrices(ctx context.Context, runID, date string) Result {
	res := Result{Job: JobUpdatePrices, TargetDate: date, RunID: runID}

	instruments, err := o.repo.ActiveInstruments(ctx)
	if err != nil {
		return o.fatal(ctx, res, fmt.Errorf("%w: can't load active instruments", err))
	}
	res.Total = len(instruments)

	usage := make(map[string]int)
	for _, inst := range instruments {
		price, warning, err := o.resolvePrice(ctx, inst, date)
		if err != nil {
			o.logger.Warnf("%s: no price for %s on %s", err, inst.Symbol, date)
			res.Failures = append(res.Failures, Failure{Item: inst.Symbol, Reason: err.Error()})
			continue
		}
		if err := o.repo.UpsertPrice(ctx, price); err != nil {
			o.logger.Warnf("%s: can't upsert price of %s on %s", err, inst.Symbol, date)
			res.Failures = append(res.Failures, Failure{Item: inst.Symbol, Reason: err.Error()})
			continue
		}

		res.Succeeded++
		if warning != nil {
			o.logger.Warnf("carry forward %s on %s from %s: %s", inst.Symbol, date, warning.FallbackDate, warning.Reason)
			res.Warnings = append(res.Warnings, *warning)
		} else {
			usage[*price.ProviderUsed]++
		}
	}

	res.Status = model.StatusFor(res.Total, len(res.Failures), len(res.Warnings))

	var errorMessage string
	switch {
	case len(res.Failures) > 0:
		errorMessage = fmt.Sprintf("Failed symbols: %d", len(res.Failures))
	case len(res.Warnings) > 0:
		errorMessage = fmt.Sprintf("Warnings (carry-forward): %d", len(res.Warnings))
	}

	o.logJob(ctx, res, map[string]any{
		"requested_provider":      o.settings.RequestedProviders,
		"configured_chain":        o.chain.Names(),
		"invalid_provider_tokens": o.settings.InvalidProviderTokens,
		"fallback_used":           len(res.Warnings) > 0,
		"total_instruments":       res.Total,
		"succeeded":               res.Succeeded,
		"failed":                  len(res.Failures),
		"warnings":                len(res.Warnings),
		"provider_usage":          usage,
		"warning_details":         res.Warnings,
		"failures":                res.Failures,
	}, errorMessage)

	return res
}

// resolvePrice asks the provider chain first and falls back to the latest
// stored close. The returned warning is non-nil for carried-forward rows.
func (o *Orchestrator) resolvePrice(ctx context.Context, inst model.Instrument, date string) (model.Price, *Warning, error) {
	live := o.chain.ResolveClose(ctx, inst, date)
	if live.Found {
		used := string(live.UsedProvider)
		return model.Price{
			InstrumentID: inst.ID,
			Date:         date,
			Close:        live.Value,
			Source:       model.SourceProvider,
			ProviderUsed: &used,
		}, nil, nil
	}

	fallback, err := o.repo.PricePointOnOrBefore(ctx, inst.ID, date)
	if err != nil {
		return model.Price{}, nil, fmt.Errorf("%w: can't load historical price", err)
	}
	if fallback == nil {
		return model.Price{}, nil, errors.New(cmp.Or(live.FinalReason, "no provider data and no historical fallback"))
	}

	return model.Price{
			InstrumentID: inst.ID,
			Date:         date,
			Close:        fallback.Value,
			Source:       model.SourceCarryForward,
		}, &Warning{
			Item:          inst.Symbol,
			Reason:        cmp.Or(live.FinalReason, "all providers failed"),
			FallbackDate:  fallback.Date,
			FallbackValue: fallback.Value,
			Attempts:      live.Attempts,
		}, nil
}
