package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/STTM-NSU/paper-league/internal/scheduler"
	"github.com/STTM-NSU/paper-league/internal/server"
	"github.com/google/subcommands"
)

const _dailyJob = "daily"

type serveCmd struct {
	runNow bool
}

func (*serveCmd) Name() string     { return "serve" }
func (*serveCmd) Synopsis() string { return "run the daily pipeline on schedule" }
func (*serveCmd) Usage() string {
	return `serve [-now]

  Triggers the daily pipeline on the configured cron schedule in the game
  timezone and serves /healthz until interrupted.
`
}

func (c *serveCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.runNow, "now", false, "run the pipeline once at startup")
}

func (c *serveCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := setup(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer a.close()

	o := a.orchestrator(ctx)
	daily := func(ctx context.Context) error {
		date, err := o.DefaultTargetDate()
		if err != nil {
			return err
		}
		_, err = o.RunDaily(ctx, date)
		return err
	}

	runner := scheduler.New(ctx, a.cfg.Game.Location(), a.logger)
	if err := runner.Add(_dailyJob, a.cfg.Schedule.Daily, daily); err != nil {
		a.logger.Errorf("%s", err)
		return subcommands.ExitFailure
	}
	runner.Start()
	defer runner.Stop()

	if c.runNow {
		go func() {
			if err := daily(ctx); err != nil {
				a.logger.Errorf("%s: startup run failed", err)
			}
		}()
	}

	a.logger.Infof("serving on :%s, daily pipeline at %q (%s)", a.cfg.Server.Port, a.cfg.Schedule.Daily, a.cfg.Game.Timezone)
	srv := server.NewHTTPServer(ctx, a.cfg.Server.Port, server.NewHealthHandler(runner, a.logger))
	if err := srv.Run(ctx); err != nil {
		a.logger.Errorf("%s: http server stopped", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
