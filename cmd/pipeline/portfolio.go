package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/STTM-NSU/paper-league/internal/model"
	"github.com/STTM-NSU/paper-league/internal/portfolio"
	"github.com/google/subcommands"
)

type holdingsCmd struct {
	participant string
	date        string
}

func (*holdingsCmd) Name() string     { return "holdings" }
func (*holdingsCmd) Synopsis() string { return "value a participant's positions" }
func (*holdingsCmd) Usage() string {
	return `holdings -p <participant id> [-date YYYY-MM-DD]

  Replays the participant's ledger and marks every position to market.
`
}

func (c *holdingsCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.participant, "p", "", "participant id")
	f.StringVar(&c.date, "date", "", "valuation date, defaults to yesterday in the game timezone")
}

func (c *holdingsCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.participant == "" {
		fmt.Fprintln(os.Stderr, "-p is required")
		return subcommands.ExitUsageError
	}
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

	h, err := a.portfolio().Holdings(ctx, c.participant, date)
	if err != nil {
		a.logger.Errorf("%s", err)
		return subcommands.ExitFailure
	}
	if err := printJSON(h); err != nil {
		a.logger.Errorf("%s", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

type leaderboardCmd struct {
	sortBy string
}

func (*leaderboardCmd) Name() string     { return "leaderboard" }
func (*leaderboardCmd) Synopsis() string { return "rank participants by their latest snapshot" }
func (*leaderboardCmd) Usage() string {
	return `leaderboard [-sort return|sharpe]
`
}

func (c *leaderboardCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.sortBy, "sort", string(portfolio.SortByReturn), "ranking: return or sharpe")
}

func (c *leaderboardCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	sortBy := portfolio.SortBy(c.sortBy)
	if sortBy != portfolio.SortByReturn && sortBy != portfolio.SortBySharpe {
		fmt.Fprintf(os.Stderr, "unknown sort %q\n", c.sortBy)
		return subcommands.ExitUsageError
	}
	a, err := setup(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer a.close()

	lb, err := a.portfolio().Leaderboard(ctx, sortBy)
	if err != nil {
		a.logger.Errorf("%s", err)
		return subcommands.ExitFailure
	}
	if err := printJSON(lb); err != nil {
		a.logger.Errorf("%s", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

type tradeCmd struct {
	participant string
	symbol      string
	market      string
	date        string
	side        string
	quantity    float64
	price       float64
	feeRate     string
	slippageBps string
	note        string
}

func (*tradeCmd) Name() string     { return "trade" }
func (*tradeCmd) Synopsis() string { return "validate and record a trade" }
func (*tradeCmd) Usage() string {
	return `trade -p <participant id> -s <symbol> [-m KR|US] -date YYYY-MM-DD -side BUY|SELL|CLOSE -q <quantity> -price <local price>

  Appends a trade to the participant's ledger after replaying the whole ledger
  with it. Trades that would oversell or overdraw cash are rejected.
`
}

func (c *tradeCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.participant, "p", "", "participant id")
	f.StringVar(&c.symbol, "s", "", "instrument symbol")
	f.StringVar(&c.market, "m", "", "instrument market, needed when a symbol is listed in both")
	f.StringVar(&c.date, "date", "", "trade date")
	f.StringVar(&c.side, "side", string(model.Buy), "BUY, SELL or CLOSE")
	f.Float64Var(&c.quantity, "q", 0, "quantity, ignored for CLOSE")
	f.Float64Var(&c.price, "price", 0, "price in the instrument currency")
	f.StringVar(&c.feeRate, "fee", "", "fee rate, e.g. 0.00015")
	f.StringVar(&c.slippageBps, "slippage", "", "slippage in basis points")
	f.StringVar(&c.note, "note", "", "free text note")
}

func (c *tradeCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	side := model.Side(strings.ToUpper(c.side))
	if c.participant == "" || c.symbol == "" || !side.Valid() {
		fmt.Fprintln(os.Stderr, "-p, -s and a valid -side are required")
		return subcommands.ExitUsageError
	}
	feeRate, err := optionalFloat(c.feeRate)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: invalid -fee\n", err)
		return subcommands.ExitUsageError
	}
	slippage, err := optionalFloat(c.slippageBps)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: invalid -slippage\n", err)
		return subcommands.ExitUsageError
	}

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

	inst, err := c.instrument(ctx, a)
	if err != nil {
		a.logger.Errorf("%s", err)
		return subcommands.ExitFailure
	}

	t := model.Trade{
		Instrument:  inst,
		TradeDate:   date,
		Side:        side,
		Quantity:    c.quantity,
		Price:       c.price,
		FeeRate:     feeRate,
		SlippageBps: slippage,
	}
	if c.note != "" {
		t.Note = &c.note
	}

	id, err := a.portfolio().RecordTrade(ctx, c.participant, t)
	if err != nil {
		a.logger.Errorf("%s", err)
		return subcommands.ExitFailure
	}
	if err := printJSON(map[string]any{"trade_id": id}); err != nil {
		a.logger.Errorf("%s", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func (c *tradeCmd) instrument(ctx context.Context, a *app) (model.Instrument, error) {
	instruments, err := a.repo.ActiveInstruments(ctx)
	if err != nil {
		return model.Instrument{}, err
	}
	var found []model.Instrument
	for _, i := range instruments {
		if !strings.EqualFold(i.Symbol, c.symbol) {
			continue
		}
		if c.market != "" && !strings.EqualFold(string(i.Market), c.market) {
			continue
		}
		found = append(found, i)
	}
	switch len(found) {
	case 0:
		return model.Instrument{}, fmt.Errorf("no active instrument %s", c.symbol)
	case 1:
		return found[0], nil
	default:
		return model.Instrument{}, fmt.Errorf("symbol %s is ambiguous, set -m", c.symbol)
	}
}

func optionalFloat(s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
