package provider

import (
	"context"
	"errors"

	"github.com/STTM-NSU/paper-league/internal/model"
)

var (
	ErrNoData      = errors.New("no data returned")
	ErrUnavailable = errors.New("provider unavailable")
)

// MarketDataProvider fetches daily closes and FX rates from one external
// source. ok is false when the source answered without a usable value.
type MarketDataProvider interface {
	GetDailyClose(ctx context.Context, symbol string, market model.Market, date, providerSymbol string) (float64, bool, error)
	GetFxRate(ctx context.Context, pair, date string) (float64, bool, error)
}

type Name string

const (
	Twelve  Name = "TWELVE"
	Yahoo   Name = "YAHOO"
	Alpha   Name = "ALPHA"
	TInvest Name = "TINVEST"
	Mock    Name = "MOCK"
)

// Handle is one configured link of the chain. Provider is nil when the
// provider failed to initialize; InitError then says why.
type Handle struct {
	Name      Name
	Provider  MarketDataProvider
	InitError error
}

func Available(name Name, p MarketDataProvider) Handle {
	return Handle{Name: name, Provider: p}
}

func Unavailable(name Name, err error) Handle {
	return Handle{Name: name, InitError: err}
}
