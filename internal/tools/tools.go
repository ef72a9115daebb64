package tools

import (
	investapi "github.com/russianinvestments/invest-api-go-sdk/proto"
	"github.com/shopspring/decimal"
)

const BILLION int64 = 1000000000

// QuotationToFloat joins the units and nano parts of a broker quotation.
func QuotationToFloat(q *investapi.Quotation) float64 {
	if q == nil {
		return 0
	}
	v := decimal.NewFromInt(q.GetUnits()).
		Add(decimal.NewFromInt(int64(q.GetNano())).Div(decimal.NewFromInt(BILLION)))
	return Float(v)
}

// Numeric converts a float into a value for a NUMERIC column.
func Numeric(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v)
}

func NullNumeric(v *float64) decimal.NullDecimal {
	if v == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(Numeric(*v))
}

func Float(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

func NullFloat(d decimal.NullDecimal) *float64 {
	if !d.Valid {
		return nil
	}
	f := Float(d.Decimal)
	return &f
}

// Round rounds v half away from zero to places decimal digits.
func Round(v float64, places int32) float64 {
	return Float(decimal.NewFromFloat(v).Round(places))
}
