package money

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrNegativeAmount = errors.New("negative_amount")
	ErrInvalidAmount  = errors.New("invalid_amount")
)

var half = decimal.New(5, -1)

// Money is an exact fixed-point amount carried at a currency minor-unit scale.
// The zero value is 0 at scale 0.
type Money struct {
	amount decimal.Decimal
	scale  int32
}

func Zero(scale int32) Money {
	return Money{amount: decimal.Zero, scale: scale}
}

// New rounds d half-up to scale.
func New(d decimal.Decimal, scale int32) Money {
	return Money{amount: RoundHalfUp(d, scale), scale: scale}
}

func FromMinor(minor int64, scale int32) Money {
	return Money{amount: decimal.New(minor, -scale), scale: scale}
}

// Parse reads a decimal string. Values with more fractional digits than scale
// are rejected instead of being rounded silently.
func Parse(s string, scale int32) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("%w: %s", ErrInvalidAmount, s)
	}
	if !RoundHalfUp(d, scale).Equal(d) {
		return Money{}, fmt.Errorf("%w: %s exceeds %d fractional digits", ErrInvalidAmount, s, scale)
	}
	return Money{amount: d, scale: scale}, nil
}

// RoundHalfUp rounds toward positive infinity on ties: floor(d*10^scale + 0.5) / 10^scale.
func RoundHalfUp(d decimal.Decimal, scale int32) decimal.Decimal {
	return d.Shift(scale).Add(half).Floor().Shift(-scale)
}

func (m Money) Decimal() decimal.Decimal { return m.amount }
func (m Money) Scale() int32             { return m.scale }

func (m Money) Add(o Money) Money {
	return Money{amount: m.amount.Add(o.amount), scale: maxScale(m.scale, o.scale)}
}

// Sub may go negative; use SubNonNegative where a negative result is a domain error.
func (m Money) Sub(o Money) Money {
	return Money{amount: m.amount.Sub(o.amount), scale: maxScale(m.scale, o.scale)}
}

func (m Money) SubNonNegative(o Money) (Money, error) {
	out := m.Sub(o)
	if out.IsNegative() {
		return Money{}, fmt.Errorf("%w: %s - %s", ErrNegativeAmount, m, o)
	}
	return out, nil
}

// MulQuantity multiplies by a plain quantity and rounds half-up to the minor unit.
func (m Money) MulQuantity(q decimal.Decimal) Money {
	return New(m.amount.Mul(q), m.scale)
}

// ApplyRate returns m × percent / 100 rounded half-up to the minor unit.
func (m Money) ApplyRate(percent decimal.Decimal) Money {
	return New(m.amount.Mul(percent).Shift(-2), m.scale)
}

func (m Money) IsZero() bool     { return m.amount.IsZero() }
func (m Money) IsNegative() bool { return m.amount.IsNegative() }
func (m Money) IsPositive() bool { return m.amount.IsPositive() }

func (m Money) Cmp(o Money) int    { return m.amount.Cmp(o.amount) }
func (m Money) Equal(o Money) bool { return m.amount.Equal(o.amount) }
func (m Money) LessThanOrEqual(o Money) bool {
	return m.amount.LessThanOrEqual(o.amount)
}

// MinorUnits returns the amount in the smallest currency unit.
func (m Money) MinorUnits() int64 {
	return m.amount.Shift(m.scale).IntPart()
}

func (m Money) String() string {
	return m.amount.StringFixed(m.scale)
}

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.String() + `"`), nil
}

func Sum(scale int32, values ...Money) Money {
	out := Zero(scale)
	for _, v := range values {
		out = out.Add(v)
	}
	return out
}

func maxScale(a, b int32) int32 {
	if a > b {
		return a
	}
	return b
}
