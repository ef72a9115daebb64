package benchmark

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/STTM-NSU/paper-league/internal/calendar"
	"github.com/STTM-NSU/paper-league/internal/model"
)

// Series maps every calendar day of a range to the cumulative return since
// the range start. A nil value means no base or no close was known that day.
type Series struct {
	Symbol       string
	ReturnByDate map[string]*float64
}

// Return is the cumulative return on date, nil when unknown or out of range.
func (s Series) Return(date string) *float64 {
	if s.ReturnByDate == nil {
		return nil
	}
	return s.ReturnByDate[date]
}

// Build carries the last known close forward through [startDate, endDate] and
// expresses each day relative to the close effective on startDate.
func Build(symbol, startDate, endDate string, rawPrices []model.Point) (Series, error) {
	dates, err := calendar.Range(startDate, endDate)
	if err != nil {
		return Series{}, fmt.Errorf("%w: can't build %s series", err, symbol)
	}

	prices := make([]model.Point, 0, len(rawPrices))
	for _, p := range rawPrices {
		if math.IsNaN(p.Value) || math.IsInf(p.Value, 0) {
			continue
		}
		prices = append(prices, p)
	}
	slices.SortStableFunc(prices, func(a, b model.Point) int {
		return strings.Compare(a.Date, b.Date)
	})

	closeByDate := make(map[string]float64, len(prices))
	for _, p := range prices {
		closeByDate[p.Date] = p.Value
	}

	var (
		last    float64
		hasLast bool
	)
	for _, p := range prices {
		if p.Date > startDate {
			break
		}
		last, hasLast = p.Value, true
	}

	carried := make(map[string]*float64, len(dates))
	for _, d := range dates {
		if c, ok := closeByDate[d]; ok {
			last, hasLast = c, true
		}
		if hasLast {
			v := last
			carried[d] = &v
		}
	}

	base := carried[startDate]
	series := Series{
		Symbol:       symbol,
		ReturnByDate: make(map[string]*float64, len(dates)),
	}
	for _, d := range dates {
		c := carried[d]
		if base == nil || c == nil || *base == 0 {
			series.ReturnByDate[d] = nil
			continue
		}
		r := *c / *base - 1
		series.ReturnByDate[d] = &r
	}

	return series, nil
}

// DailyReturns converts cumulative returns on consecutive dates into
// day-over-day returns. The result has len(dates)-1 entries; an entry is nil
// whenever either side is unknown.
func DailyReturns(dates []string, s Series) []*float64 {
	if len(dates) < 2 {
		return nil
	}
	out := make([]*float64, 0, len(dates)-1)
	for i := 1; i < len(dates); i++ {
		prev, cur := s.Return(dates[i-1]), s.Return(dates[i])
		if prev == nil || cur == nil {
			out = append(out, nil)
			continue
		}
		r := (1+*cur)/(1+*prev) - 1
		out = append(out, &r)
	}
	return out
}
