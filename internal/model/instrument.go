package model

type Market string

const (
	MarketKR    Market = "KR"
	MarketUS    Market = "US"
	MarketIndex Market = "INDEX"
)

type Currency string

const (
	KRW Currency = "KRW"
	USD Currency = "USD"
)

type Instrument struct {
	ID             string   `json:"id" db:"id"`
	Symbol         string   `json:"symbol" db:"symbol"`
	Name           string   `json:"name" db:"name"`
	Market         Market   `json:"market" db:"market"`
	Currency       Currency `json:"currency" db:"currency"`
	AssetType      string   `json:"asset_type" db:"asset_type"`
	ProviderSymbol string   `json:"provider_symbol" db:"provider_symbol"` // hint passed to providers, FIGI for T-Invest
	IsActive       bool     `json:"is_active" db:"is_active"`
	IsBenchmark    bool     `json:"is_benchmark" db:"is_benchmark"`
	BenchmarkCode  *string  `json:"benchmark_code" db:"benchmark_code"`
}

// NeedsFX reports whether values of the instrument must be converted to KRW.
func (i Instrument) NeedsFX() bool {
	return i.Currency == USD
}
