package valuecache

import (
	"context"
	"fmt"
	"sync"

	"github.com/STTM-NSU/paper-league/internal/model"
	"golang.org/x/sync/singleflight"
)

// Source answers "latest value on or before date" lookups. A nil point means
// no value exists at all.
type Source interface {
	PricePointOnOrBefore(ctx context.Context, instrumentID, date string) (*model.Point, error)
	FxPointOnOrBefore(ctx context.Context, pair, date string) (*model.Point, error)
}

type lookup struct {
	value float64
	found bool
}

// Cache memoizes price and FX lookups for the lifetime of one pipeline run or
// one read request. Entries are never invalidated, so a run sees a single
// consistent view. Failed lookups are not memoized.
type Cache struct {
	src Source

	mu     sync.RWMutex
	prices map[string]lookup
	fx     map[string]lookup

	group singleflight.Group
}

func New(src Source) *Cache {
	return &Cache{
		src:    src,
		prices: make(map[string]lookup),
		fx:     make(map[string]lookup),
	}
}

// Price returns the close of instrumentID on or before date.
func (c *Cache) Price(ctx context.Context, instrumentID, date string) (float64, bool, error) {
	key := instrumentID + ":" + date
	return c.get(c.prices, "price:"+key, key, func() (*model.Point, error) {
		return c.src.PricePointOnOrBefore(ctx, instrumentID, date)
	})
}

// FX returns the rate of pair on or before date.
func (c *Cache) FX(ctx context.Context, pair, date string) (float64, bool, error) {
	key := pair + ":" + date
	return c.get(c.fx, "fx:"+key, key, func() (*model.Point, error) {
		return c.src.FxPointOnOrBefore(ctx, pair, date)
	})
}

func (c *Cache) get(m map[string]lookup, flightKey, key string, fetch func() (*model.Point, error)) (float64, bool, error) {
	c.mu.RLock()
	v, ok := m[key]
	c.mu.RUnlock()
	if ok {
		return v.value, v.found, nil
	}

	res, err, _ := c.group.Do(flightKey, func() (interface{}, error) {
		c.mu.RLock()
		v, ok := m[key]
		c.mu.RUnlock()
		if ok {
			return v, nil
		}

		p, err := fetch()
		if err != nil {
			return nil, err
		}
		v = lookup{}
		if p != nil {
			v = lookup{value: p.Value, found: true}
		}

		c.mu.Lock()
		m[key] = v
		c.mu.Unlock()
		return v, nil
	})
	if err != nil {
		return 0, false, fmt.Errorf("%w: can't look up %s", err, flightKey)
	}
	v = res.(lookup)
	return v.value, v.found, nil
}
