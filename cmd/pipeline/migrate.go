package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
)

type migrateCmd struct{}

func (*migrateCmd) Name() string     { return "migrate" }
func (*migrateCmd) Synopsis() string { return "create missing tables" }
func (*migrateCmd) Usage() string {
	return `migrate
`
}

func (*migrateCmd) SetFlags(*flag.FlagSet) {}

func (*migrateCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := setup(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer a.close()

	if err := a.repo.Migrate(ctx); err != nil {
		a.logger.Errorf("%s", err)
		return subcommands.ExitFailure
	}
	a.logger.Infof("schema is up to date")
	return subcommands.ExitSuccess
}
