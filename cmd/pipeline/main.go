package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path"
	"syscall"

	"github.com/google/subcommands"
)

var configPath = flag.String("config", "./configs/pipeline.yaml", "pipeline config file, defaults are used when it does not exist")

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(commander.CommandsCommand(), "")

	commander.Register(&runDailyCmd{}, "pipeline")
	commander.Register(&backfillCmd{}, "pipeline")
	commander.Register(&serveCmd{}, "pipeline")

	commander.Register(&holdingsCmd{}, "portfolio")
	commander.Register(&leaderboardCmd{}, "portfolio")
	commander.Register(&tradeCmd{}, "portfolio")

	commander.Register(&migrateCmd{}, "store")

	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	status := commander.Execute(ctx)
	cancel()
	os.Exit(int(status))
}
