package valuecache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/STTM-NSU/paper-league/internal/model"
)

type countingSource struct {
	priceCalls atomic.Int64
	fxCalls    atomic.Int64
	fail       bool
}

func (s *countingSource) PricePointOnOrBefore(_ context.Context, id, date string) (*model.Point, error) {
	s.priceCalls.Add(1)
	if s.fail {
		return nil, errors.New("boom")
	}
	if id == "missing" {
		return nil, nil
	}
	return &model.Point{Date: date, Value: 1000}, nil
}

func (s *countingSource) FxPointOnOrBefore(_ context.Context, _, date string) (*model.Point, error) {
	s.fxCalls.Add(1)
	return &model.Point{Date: date, Value: 1300}, nil
}

func TestCacheOneRoundTripPerKey(t *testing.T) {
	src := &countingSource{}
	c := New(src)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if v, ok, err := c.Price(ctx, "a", "2026-01-02"); err != nil || !ok || v != 1000 {
				t.Errorf("unexpected price %f %v %v", v, ok, err)
			}
		}()
	}
	wg.Wait()

	if _, _, err := c.Price(ctx, "a", "2026-01-03"); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if got := src.priceCalls.Load(); got != 2 {
		t.Fatalf("expected 2 repository round-trips, got %d", got)
	}
}

func TestCacheMemoizesMisses(t *testing.T) {
	src := &countingSource{}
	c := New(src)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, ok, err := c.Price(ctx, "missing", "2026-01-02")
		if err != nil || ok {
			t.Fatalf("expected a miss, got ok=%v err=%v", ok, err)
		}
	}
	if got := src.priceCalls.Load(); got != 1 {
		t.Fatalf("expected 1 round-trip, got %d", got)
	}
}

func TestCacheFXSeparateFromPrices(t *testing.T) {
	src := &countingSource{}
	c := New(src)
	ctx := context.Background()

	rate, ok, err := c.FX(ctx, "USDKRW", "2026-01-02")
	if err != nil || !ok || rate != 1300 {
		t.Fatalf("unexpected fx %f %v %v", rate, ok, err)
	}
	if _, _, err := c.FX(ctx, "USDKRW", "2026-01-02"); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if src.fxCalls.Load() != 1 || src.priceCalls.Load() != 0 {
		t.Fatalf("unexpected call counts fx=%d price=%d", src.fxCalls.Load(), src.priceCalls.Load())
	}
}

func TestCacheDoesNotMemoizeErrors(t *testing.T) {
	src := &countingSource{fail: true}
	c := New(src)
	ctx := context.Background()

	if _, _, err := c.Price(ctx, "a", "2026-01-02"); err == nil {
		t.Fatalf("expected error")
	}
	if _, _, err := c.Price(ctx, "a", "2026-01-02"); err == nil {
		t.Fatalf("expected error")
	}
	if got := src.priceCalls.Load(); got != 2 {
		t.Fatalf("expected errors to be retried, got %d calls", got)
	}
}
