package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/STTM-NSU/paper-league/internal/calendar"
	"github.com/STTM-NSU/paper-league/internal/pipeline"
	"github.com/google/subcommands"
)

type runDailyCmd struct {
	date string
}

func (*runDailyCmd) Name() string     { return "run-daily" }
func (*runDailyCmd) Synopsis() string { return "refresh prices, FX and snapshots for one date" }
func (*runDailyCmd) Usage() string {
	return `run-daily [-date YYYY-MM-DD]

  Runs the daily pipeline. The date defaults to yesterday in the game timezone.
`
}

func (c *runDailyCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.date, "date", "", "target date")
}

func (c *runDailyCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := setup(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer a.close()

	date, err := a.dateOrYesterday(c.date)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitUsageError
	}

	report, err := a.orchestrator(ctx).RunDaily(ctx, date)
	if printErr := printJSON(report); printErr != nil {
		a.logger.Errorf("%s", printErr)
	}
	if err != nil {
		a.logger.Errorf("%s: daily run for %s failed", err, date)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

type backfillCmd struct {
	kind  string
	start string
	end   string
}

func (*backfillCmd) Name() string     { return "backfill" }
func (*backfillCmd) Synopsis() string { return "re-run pipeline stages over a date range" }
func (*backfillCmd) Usage() string {
	return `backfill -start YYYY-MM-DD -end YYYY-MM-DD [-kind prices|fx|snapshots|all]

  Runs the selected stages for every calendar day in the inclusive range.
  Failing days are reported and do not stop the range.
`
}

func (c *backfillCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.kind, "kind", string(pipeline.KindAll), "stages to run: prices, fx, snapshots or all")
	f.StringVar(&c.start, "start", "", "first date")
	f.StringVar(&c.end, "end", "", "last date, defaults to start")
}

func (c *backfillCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	kind, err := pipeline.ParseKind(c.kind)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitUsageError
	}
	if c.end == "" {
		c.end = c.start
	}
	if _, err := calendar.Range(c.start, c.end); err != nil {
		fmt.Fprintf(os.Stderr, "%s: -start and -end must form a valid range\n", err)
		return subcommands.ExitUsageError
	}

	a, err := setup(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer a.close()

	results, err := a.orchestrator(ctx).Backfill(ctx, kind, c.start, c.end)
	if printErr := printJSON(results); printErr != nil {
		a.logger.Errorf("%s", printErr)
	}
	if err != nil {
		a.logger.Errorf("%s: backfill %s..%s failed", err, c.start, c.end)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
