package tinvest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/STTM-NSU/paper-league/internal/calendar"
	"github.com/STTM-NSU/paper-league/internal/logger"
	"github.com/STTM-NSU/paper-league/internal/model"
	"github.com/STTM-NSU/paper-league/internal/tools"
	"github.com/russianinvestments/invest-api-go-sdk/investgo"
	investapi "github.com/russianinvestments/invest-api-go-sdk/proto"
	"go.uber.org/ratelimit"
)

const _lookbackDays = 14

var ErrNoInstrumentID = errors.New("instrument not listed on T-Invest")

type candle struct {
	Ts    time.Time
	Close float64
}

type candlesFunc func(instrumentID string, from, to time.Time) ([]candle, error)

type listing struct {
	UID            string
	Ticker         string
	ClassCode      string
	TradeAvailable bool
}

type findFunc func(query string) ([]listing, error)

// Provider reads daily candles of instruments identified by FIGI or UID in
// their provider symbol, or found by ticker when none is stored. FX rates are
// not served.
type Provider struct {
	client  *investgo.Client
	candles candlesFunc
	find    findFunc

	mu  sync.Mutex
	ids map[string]string // symbol -> instrument uid

	rateLimiter ratelimit.Limiter // 600 T/M, we stay below

	logger logger.Logger
}

func New(c *investgo.Client, requestsPerMinute int, logger logger.Logger) *Provider {
	md := c.NewMarketDataServiceClient()
	fetch := func(instrumentID string, from, to time.Time) ([]candle, error) {
		resp, err := md.GetCandles(instrumentID, investapi.CandleInterval_CANDLE_INTERVAL_DAY, from, to, 0, 0)
		if err != nil {
			return nil, err
		}
		out := make([]candle, len(resp.GetCandles()))
		for i, item := range resp.GetCandles() {
			out[i] = candle{
				Ts:    item.GetTime().AsTime(),
				Close: tools.QuotationToFloat(item.GetClose()),
			}
		}
		return out, nil
	}

	instruments := c.NewInstrumentsServiceClient()
	find := func(query string) ([]listing, error) {
		resp, err := instruments.FindInstrument(query)
		if err != nil {
			return nil, err
		}
		out := make([]listing, len(resp.GetInstruments()))
		for i, item := range resp.GetInstruments() {
			out[i] = listing{
				UID:            item.GetUid(),
				Ticker:         item.GetTicker(),
				ClassCode:      item.GetClassCode(),
				TradeAvailable: item.GetApiTradeAvailableFlag(),
			}
		}
		return out, nil
	}
	return newProvider(c, fetch, find, requestsPerMinute, logger)
}

func newProvider(c *investgo.Client, fetch candlesFunc, find findFunc, requestsPerMinute int, logger logger.Logger) *Provider {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 500
	}
	return &Provider{
		client:      c,
		candles:     fetch,
		find:        find,
		ids:         make(map[string]string),
		rateLimiter: ratelimit.New(requestsPerMinute, ratelimit.Per(1*time.Minute)),
		logger:      logger,
	}
}

func (p *Provider) GetDailyClose(_ context.Context, symbol string, _ model.Market, date, providerSymbol string) (float64, bool, error) {
	day, err := calendar.Parse(date)
	if err != nil {
		return 0, false, err
	}
	if providerSymbol == "" {
		if providerSymbol, err = p.instrumentID(symbol); err != nil {
			return 0, false, err
		}
	}

	p.rateLimiter.Take()
	candles, err := p.candles(providerSymbol, day.AddDate(0, 0, -_lookbackDays), day.AddDate(0, 0, 1))
	if err != nil {
		return 0, false, fmt.Errorf("%w: can't get candles of %s from api", err, symbol)
	}

	var (
		last   float64
		lastTs time.Time
		found  bool
	)
	for _, c := range candles {
		if calendar.Format(c.Ts.UTC()) > date || math.IsNaN(c.Close) || math.IsInf(c.Close, 0) {
			continue
		}
		if !found || c.Ts.After(lastTs) {
			last, lastTs, found = c.Close, c.Ts, true
		}
	}
	if !found {
		p.logger.Debugf("no candles for %s (%s) on or before %s", symbol, providerSymbol, date)
	}
	return last, found, nil
}

// instrumentID resolves a ticker to an instrument uid, preferring listings
// tradable through the API. Resolved ids are kept for the provider lifetime.
func (p *Provider) instrumentID(symbol string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if id, ok := p.ids[symbol]; ok {
		return id, nil
	}

	p.rateLimiter.Take()
	listings, err := p.find(symbol)
	if err != nil {
		return "", fmt.Errorf("%w: can't find instrument %s", err, symbol)
	}

	var id string
	for _, l := range listings {
		if !strings.EqualFold(l.Ticker, symbol) || l.UID == "" {
			continue
		}
		if l.TradeAvailable {
			id = l.UID
			break
		}
		if id == "" {
			id = l.UID
		}
	}
	if id == "" {
		return "", fmt.Errorf("%w: %s", ErrNoInstrumentID, symbol)
	}

	p.logger.Debugf("resolved %s to instrument %s", symbol, id)
	p.ids[symbol] = id
	return id, nil
}

func (p *Provider) GetFxRate(context.Context, string, string) (float64, bool, error) {
	return 0, false, nil
}

func (p *Provider) Close() error {
	if p.client == nil {
		return nil
	}
	return p.client.Stop()
}
