package money

import "strings"

const DefaultScale int32 = 2

var defaultScales = map[string]int32{
	"USD": 2, "EUR": 2, "GBP": 2, "SGD": 2, "IDR": 2, "MYR": 2, "PHP": 2,
	"INR": 2, "AUD": 2, "CAD": 2, "CHF": 2, "CNY": 2, "THB": 2, "MXN": 2,
	"JPY": 0, "KRW": 0, "VND": 0, "CLP": 0, "ISK": 0, "UGX": 0,
	"KWD": 3, "BHD": 3, "JOD": 3, "OMR": 3, "TND": 3,
}

// CurrencyTable maps ISO-4217 codes to minor-unit scales.
type CurrencyTable struct {
	scales map[string]int32
}

func DefaultCurrencies() CurrencyTable {
	return NewCurrencyTable(nil)
}

// NewCurrencyTable layers overrides on top of the built-in scales.
func NewCurrencyTable(overrides map[string]int32) CurrencyTable {
	scales := make(map[string]int32, len(defaultScales)+len(overrides))
	for code, s := range defaultScales {
		scales[code] = s
	}
	for code, s := range overrides {
		scales[NormalizeCode(code)] = s
	}
	return CurrencyTable{scales: scales}
}

// Scale falls back to DefaultScale for unknown codes.
func (t CurrencyTable) Scale(code string) int32 {
	if s, ok := t.scales[NormalizeCode(code)]; ok {
		return s
	}
	return DefaultScale
}

func (t CurrencyTable) Known(code string) bool {
	_, ok := t.scales[NormalizeCode(code)]
	return ok
}

func (t CurrencyTable) Len() int { return len(t.scales) }

func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
