package model

type Source string

const (
	SourceProvider     Source = "provider"
	SourceCarryForward Source = "carry_forward"
)

type Price struct {
	InstrumentID string  `json:"instrument_id" db:"instrument_id"`
	Date         string  `json:"date" db:"date"`
	Close        float64 `json:"close" db:"close"`
	Source       Source  `json:"source" db:"source"`
	ProviderUsed *string `json:"provider_used" db:"provider_used"`
}

type FxRate struct {
	Pair         string  `json:"pair" db:"pair"`
	Date         string  `json:"date" db:"date"`
	Rate         float64 `json:"rate" db:"rate"`
	Source       Source  `json:"source" db:"source"`
	ProviderUsed *string `json:"provider_used" db:"provider_used"`
}

// Point is a dated value read back from a price or FX series.
type Point struct {
	Date  string  `json:"date" db:"date"`
	Value float64 `json:"value" db:"value"`
}
