package twelvedata

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/STTM-NSU/paper-league/internal/logger"
	"github.com/STTM-NSU/paper-league/internal/model"
	"go.uber.org/ratelimit"
	"resty.dev/v3"
)

const (
	_timeSeriesURL = "/time_series"
	_outputSize    = "120"
	_usdKrwSymbol  = "USD/KRW"
	_usdKrwPair    = "USDKRW"
)

var ErrMissingAPIKey = errors.New("TWELVE_DATA_API_KEY is missing")

type Config struct {
	BaseURL           string
	APIKey            string
	RequestsPerMinute int
}

type Provider struct {
	c      *resty.Client
	apiKey string

	rateLimiter ratelimit.Limiter

	logger logger.Logger
}

func New(cfg Config, logger logger.Logger) (*Provider, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	rpm := cfg.RequestsPerMinute
	if rpm <= 0 {
		rpm = 8
	}

	client := resty.New().
		SetLogger(logger).
		SetBaseURL(cfg.BaseURL)

	return &Provider{
		c:           client,
		apiKey:      cfg.APIKey,
		rateLimiter: ratelimit.New(rpm, ratelimit.Per(1*time.Minute)),
		logger:      logger,
	}, nil
}

type timeSeriesValue struct {
	Datetime string `json:"datetime"`
	Close    string `json:"close"`
}

type timeSeriesResponse struct {
	Status  string            `json:"status"`
	Message string            `json:"message"`
	Code    int               `json:"code"`
	Values  []timeSeriesValue `json:"values"`
}

func (p *Provider) GetDailyClose(ctx context.Context, symbol string, market model.Market, date, providerSymbol string) (float64, bool, error) {
	var lastErr error
	for _, candidate := range Candidates(symbol, market, providerSymbol) {
		ts, err := p.timeSeries(ctx, candidate, date)
		if err != nil {
			return 0, false, err
		}
		if ts == nil {
			lastErr = fmt.Errorf("[TwelveData] no response for %s", candidate)
			continue
		}
		if ts.Status == "error" {
			lastErr = fmt.Errorf("[TwelveData] %s: %s", candidate, cmp.Or(ts.Message, "unknown provider error"))
			continue
		}
		if v, ok := closeOnOrBefore(ts.Values, date); ok {
			return v, true, nil
		}
		lastErr = fmt.Errorf("[TwelveData] %s: no close on/before %s", candidate, date)
	}

	if lastErr != nil {
		return 0, false, lastErr
	}
	return 0, false, nil
}

func (p *Provider) GetFxRate(ctx context.Context, pair, date string) (float64, bool, error) {
	if pair != _usdKrwPair {
		return 0, false, nil
	}

	ts, err := p.timeSeries(ctx, _usdKrwSymbol, date)
	if err != nil {
		return 0, false, err
	}
	if ts == nil {
		return 0, false, fmt.Errorf("[TwelveData] %s: no response", _usdKrwSymbol)
	}
	if ts.Status == "error" {
		return 0, false, fmt.Errorf("[TwelveData] %s: %s", _usdKrwSymbol, cmp.Or(ts.Message, "unknown provider error"))
	}

	v, ok := closeOnOrBefore(ts.Values, date)
	return v, ok, nil
}

// timeSeries returns nil without error when the server answered with a
// non-2xx status; transport errors are returned as is so they can be retried.
func (p *Provider) timeSeries(ctx context.Context, symbol, date string) (*timeSeriesResponse, error) {
	p.rateLimiter.Take()

	req := p.c.R().
		SetQueryParams(map[string]string{
			"symbol":     symbol,
			"interval":   "1day",
			"end_date":   date,
			"order":      "DESC",
			"outputsize": _outputSize,
			"apikey":     p.apiKey,
		}).
		SetResult(&timeSeriesResponse{}).
		SetContext(ctx)

	resp, err := req.Get(_timeSeriesURL)
	if err != nil {
		return nil, fmt.Errorf("%w: can't send time series request for %s", err, symbol)
	}
	defer resp.Body.Close()

	p.logger.Debugf("got response for %s status: %s, %s", symbol, resp.Status(), resp.Duration())

	if !resp.IsSuccess() {
		return nil, nil
	}
	return resp.Result().(*timeSeriesResponse), nil
}

// Candidates lists the symbols tried for an instrument, most specific first.
func Candidates(symbol string, market model.Market, providerSymbol string) []string {
	values := []string{providerSymbol, defaultSymbol(symbol, market)}
	if market == model.MarketUS {
		values = append(values, symbol,
			symbol+":NASDAQ", symbol+":NYSE", symbol+":NYSEARCA", symbol+":ARCA", symbol+":AMEX")
	}
	if market == model.MarketIndex && symbol == "KS11" {
		values = append(values, "KS11", "KOSPI", "KOSPI Composite Index")
	}
	return unique(values)
}

func defaultSymbol(symbol string, market model.Market) string {
	if market == model.MarketKR {
		return symbol + ":KRX"
	}
	return symbol
}

// closeOnOrBefore picks the first finite close dated on or before date from
// a series ordered newest first.
func closeOnOrBefore(values []timeSeriesValue, date string) (float64, bool) {
	for _, v := range values {
		if len(v.Datetime) < 10 {
			continue
		}
		day := v.Datetime[:10]
		if _, err := time.Parse(time.DateOnly, day); err != nil || day > date {
			continue
		}
		c, err := strconv.ParseFloat(v.Close, 64)
		if err != nil || math.IsNaN(c) || math.IsInf(c, 0) {
			continue
		}
		return c, true
	}
	return 0, false
}

func unique(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
