package yahoo

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/STTM-NSU/paper-league/internal/calendar"
	"github.com/STTM-NSU/paper-league/internal/logger"
	"github.com/STTM-NSU/paper-league/internal/model"
	"go.uber.org/ratelimit"
	"resty.dev/v3"
)

const (
	_chartURL     = "/v8/finance/chart/{symbol}"
	_usdKrwSymbol = "KRW=X"
	_usdKrwPair   = "USDKRW"

	_lookbackDays  = 180
	_lookaheadDays = 2
)

type Config struct {
	BaseURL           string
	RequestsPerMinute int
}

type Provider struct {
	c *resty.Client

	rateLimiter ratelimit.Limiter

	logger logger.Logger
}

func New(cfg Config, logger logger.Logger) *Provider {
	rpm := cfg.RequestsPerMinute
	if rpm <= 0 {
		rpm = 60
	}

	client := resty.New().
		SetLogger(logger).
		SetBaseURL(cfg.BaseURL).
		SetHeader("User-Agent", "Mozilla/5.0")

	return &Provider{
		c:           client,
		rateLimiter: ratelimit.New(rpm, ratelimit.Per(1*time.Minute)),
		logger:      logger,
	}
}

type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
	} `json:"chart"`
}

type chartResult struct {
	Meta struct {
		ExchangeTimezoneName string `json:"exchangeTimezoneName"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Close []*float64 `json:"close"`
		} `json:"quote"`
	} `json:"indicators"`
}

func (p *Provider) GetDailyClose(ctx context.Context, symbol string, market model.Market, date, _ string) (float64, bool, error) {
	var lastErr error
	for _, candidate := range Candidates(symbol, market) {
		chart, err := p.chart(ctx, candidate, date)
		if err != nil {
			return 0, false, err
		}
		if chart == nil {
			lastErr = fmt.Errorf("[Yahoo] no response for %s", candidate)
			continue
		}
		if v, ok := closeOnOrBefore(chart, date); ok {
			return v, true, nil
		}
		lastErr = fmt.Errorf("[Yahoo] %s: no close on/before %s", candidate, date)
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

	chart, err := p.chart(ctx, _usdKrwSymbol, date)
	if err != nil {
		return 0, false, err
	}
	if chart == nil {
		return 0, false, fmt.Errorf("[Yahoo] %s: no response", _usdKrwSymbol)
	}
	v, ok := closeOnOrBefore(chart, date)
	if !ok {
		return 0, false, fmt.Errorf("[Yahoo] %s: no close on/before %s", _usdKrwSymbol, date)
	}
	return v, true, nil
}

func (p *Provider) chart(ctx context.Context, symbol, date string) (*chartResponse, error) {
	day, err := calendar.Parse(date)
	if err != nil {
		return nil, err
	}
	period1 := day.AddDate(0, 0, -_lookbackDays).Unix()
	period2 := day.AddDate(0, 0, _lookaheadDays).Unix()

	p.rateLimiter.Take()

	req := p.c.R().
		SetPathParam("symbol", symbol).
		SetQueryParams(map[string]string{
			"interval": "1d",
			"period1":  strconv.FormatInt(period1, 10),
			"period2":  strconv.FormatInt(period2, 10),
			"events":   "div,splits",
		}).
		SetResult(&chartResponse{}).
		SetContext(ctx)

	resp, err := req.Get(_chartURL)
	if err != nil {
		return nil, fmt.Errorf("%w: can't send chart request for %s", err, symbol)
	}
	defer resp.Body.Close()

	p.logger.Debugf("got response for %s status: %s, %s", symbol, resp.Status(), resp.Duration())

	if !resp.IsSuccess() {
		return nil, nil
	}
	return resp.Result().(*chartResponse), nil
}

// Candidates lists the Yahoo tickers tried for an instrument.
func Candidates(symbol string, market model.Market) []string {
	switch {
	case market == model.MarketUS:
		return unique([]string{symbol, strings.ToUpper(symbol)})
	case market == model.MarketKR:
		return unique([]string{symbol + ".KS", symbol + ".KQ", symbol})
	case market == model.MarketIndex && symbol == "KS11":
		return []string{"^KS11", "KS11"}
	default:
		return unique([]string{symbol})
	}
}

// closeOnOrBefore walks the chart backwards and returns the last finite close
// whose exchange-local date is on or before date.
func closeOnOrBefore(chart *chartResponse, date string) (float64, bool) {
	if len(chart.Chart.Result) == 0 {
		return 0, false
	}
	r := chart.Chart.Result[0]
	if len(r.Indicators.Quote) == 0 {
		return 0, false
	}
	closes := r.Indicators.Quote[0].Close

	loc, err := time.LoadLocation(r.Meta.ExchangeTimezoneName)
	if err != nil || r.Meta.ExchangeTimezoneName == "" {
		loc = time.UTC
	}

	for i := min(len(r.Timestamp), len(closes)) - 1; i >= 0; i-- {
		c := closes[i]
		if c == nil || math.IsNaN(*c) || math.IsInf(*c, 0) {
			continue
		}
		if calendar.Format(time.Unix(r.Timestamp[i], 0).In(loc)) <= date {
			return *c, true
		}
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
