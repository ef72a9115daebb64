package mock

import (
	"context"
	"math"
	"unicode/utf16"

	"github.com/STTM-NSU/paper-league/internal/model"
)

// Provider produces deterministic closes and USDKRW rates derived from
// hashes of the symbol and date. It never fails.
type Provider struct{}

func New() *Provider {
	return &Provider{}
}

func (p *Provider) GetDailyClose(_ context.Context, symbol string, market model.Market, date, _ string) (float64, bool, error) {
	base := baseFor(symbol, market)
	day := float64(hash(date) % 60)
	seasonal := math.Sin(day/6) * 0.02
	drift := float64(hash(symbol+":"+date)%200-100) / 10000
	return math.Max(base*(1+seasonal+drift), 1), true, nil
}

func (p *Provider) GetFxRate(_ context.Context, pair, date string) (float64, bool, error) {
	if pair != "USDKRW" {
		return 0, false, nil
	}
	day := float64(hash(date) % 45)
	noise := float64(hash("fx:"+date)%100-50) / 100
	return 1275 + day*1.2 + noise, true, nil
}

func baseFor(symbol string, market model.Market) float64 {
	h := hash(string(market) + ":" + symbol)
	switch {
	case market == model.MarketUS:
		return float64(50 + h%450)
	case symbol == "KS11":
		return float64(2500 + h%500)
	default:
		return float64(20_000 + h%200_000)
	}
}

// hash is the 31-multiplier string hash over UTF-16 code units with 32-bit
// wraparound, made non-negative.
func hash(s string) int64 {
	var h int32
	for _, u := range utf16.Encode([]rune(s)) {
		h = h*31 + int32(u)
	}
	v := int64(h)
	if v < 0 {
		v = -v
	}
	return v
}
