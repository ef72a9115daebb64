package provider

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/STTM-NSU/paper-league/internal/logger"
	"github.com/STTM-NSU/paper-league/internal/model"
)

type AttemptStatus string

const (
	AttemptSuccess     AttemptStatus = "success"
	AttemptError       AttemptStatus = "error"
	AttemptUnavailable AttemptStatus = "unavailable"
)

type Attempt struct {
	Provider Name          `json:"provider"`
	Status   AttemptStatus `json:"status"`
	Reason   string        `json:"reason,omitempty"`
	Retries  int           `json:"retries,omitempty"`
}

// Resolution is the outcome of walking the chain for one value.
type Resolution struct {
	Value        float64
	Found        bool
	UsedProvider Name
	Attempts     []Attempt
	FinalReason  string
}

// Chain tries its providers in order and stops at the first finite value.
// It is built once and owned by whoever runs the pipeline.
type Chain struct {
	handles []Handle
	policy  RetryPolicy
	logger  logger.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

func NewChain(handles []Handle, policy RetryPolicy, logger logger.Logger) *Chain {
	if policy.IsTransient == nil {
		policy.IsTransient = IsTransient
	}
	return &Chain{
		handles: handles,
		policy:  policy,
		logger:  logger,
		sleep:   sleepContext,
	}
}

// Names lists the configured chain in order.
func (c *Chain) Names() []Name {
	names := make([]Name, 0, len(c.handles))
	for _, h := range c.handles {
		names = append(names, h.Name)
	}
	return names
}

func (c *Chain) ResolveClose(ctx context.Context, i model.Instrument, date string) Resolution {
	return c.resolve(ctx, fmt.Sprintf("%s close on %s", i.Symbol, date),
		func(ctx context.Context, p MarketDataProvider) (float64, bool, error) {
			return p.GetDailyClose(ctx, i.Symbol, i.Market, date, i.ProviderSymbol)
		})
}

func (c *Chain) ResolveFx(ctx context.Context, pair, date string) Resolution {
	return c.resolve(ctx, fmt.Sprintf("%s rate on %s", pair, date),
		func(ctx context.Context, p MarketDataProvider) (float64, bool, error) {
			return p.GetFxRate(ctx, pair, date)
		})
}

type fetchFunc func(ctx context.Context, p MarketDataProvider) (float64, bool, error)

func (c *Chain) resolve(ctx context.Context, what string, fetch fetchFunc) Resolution {
	var res Resolution
	for _, h := range c.handles {
		if h.Provider == nil {
			reason := "provider is unavailable"
			if h.InitError != nil {
				reason = h.InitError.Error()
			}
			res.Attempts = append(res.Attempts, Attempt{Provider: h.Name, Status: AttemptUnavailable, Reason: reason})
			continue
		}

		value, retries, err := c.call(ctx, h.Provider, fetch)
		if err != nil {
			c.logger.Debugf("%s: %s failed: %s", what, h.Name, err)
			res.Attempts = append(res.Attempts, Attempt{Provider: h.Name, Status: AttemptError, Reason: err.Error(), Retries: retries})
			continue
		}

		res.Attempts = append(res.Attempts, Attempt{Provider: h.Name, Status: AttemptSuccess, Retries: retries})
		res.Value, res.Found, res.UsedProvider = value, true, h.Name
		return res
	}

	for i := len(res.Attempts) - 1; i >= 0; i-- {
		if res.Attempts[i].Reason != "" {
			res.FinalReason = res.Attempts[i].Reason
			break
		}
	}
	return res
}

// call invokes one provider, retrying transient failures. Each invocation
// gets its own timeout and is detached from the caller's cancellation.
func (c *Chain) call(ctx context.Context, p MarketDataProvider, fetch fetchFunc) (float64, int, error) {
	base := context.WithoutCancel(ctx)

	for attempt := 0; ; attempt++ {
		value, err := c.invoke(base, p, fetch)
		if err == nil {
			return value, attempt, nil
		}
		if errors.Is(err, ErrNoData) || attempt >= len(c.policy.Delays) || !c.policy.IsTransient(err) {
			return 0, attempt, err
		}
		if serr := c.sleep(base, c.policy.Delays[attempt]); serr != nil {
			return 0, attempt, err
		}
	}
}

func (c *Chain) invoke(ctx context.Context, p MarketDataProvider, fetch fetchFunc) (float64, error) {
	if c.policy.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.policy.Timeout)
		defer cancel()
	}

	value, ok, err := fetch(ctx, p)
	if err != nil {
		return 0, err
	}
	if !ok || math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, ErrNoData
	}
	return value, nil
}
