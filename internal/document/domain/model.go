package domain

import (
	"strings"

	"github.com/shopspring/decimal"
	taxdomain "github.com/smallbiznis/taxledger/internal/tax/domain"
	"github.com/smallbiznis/taxledger/pkg/money"
)

// Direction tells which side of a trade the organization is on.
type Direction string

const (
	DirectionSale     Direction = "SALE"
	DirectionPurchase Direction = "PURCHASE"
)

func NormalizeDirection(v Direction) Direction {
	return Direction(strings.ToUpper(strings.TrimSpace(string(v))))
}

func (d Direction) Valid() bool {
	return d == DirectionSale || d == DirectionPurchase
}

// LineItem is one priced line of an invoice or bill. UnitPrice may carry
// more precision than the currency minor unit; the gross amount is rounded.
type LineItem struct {
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	Discount    money.Money
	TaxLines    []taxdomain.TaxLineDefinition
}

// ItemTotals is the computed outcome of a single LineItem.
type ItemTotals struct {
	Index       int                    `json:"index"`
	Gross       money.Money            `json:"gross"`
	Net         money.Money            `json:"net"`
	Tax         money.Money            `json:"tax"`
	Withholding money.Money            `json:"withholding"`
	Applied     []taxdomain.AppliedTax `json:"applied_taxes"`
}

// DocumentTotals is the aggregate of all items. Total never includes
// withholding; AmountDue = Total - Withholding.
type DocumentTotals struct {
	Currency    string                      `json:"currency"`
	Subtotal    money.Money                 `json:"subtotal"`
	TaxAmount   money.Money                 `json:"tax_amount"`
	Withholding money.Money                 `json:"withholding"`
	Total       money.Money                 `json:"total"`
	AmountDue   money.Money                 `json:"amount_due"`
	Items       []ItemTotals                `json:"items"`
	Warnings    []taxdomain.SequenceWarning `json:"warnings,omitempty"`
}

func ZeroTotals(currency string, scale int32) DocumentTotals {
	return DocumentTotals{
		Currency:    currency,
		Subtotal:    money.Zero(scale),
		TaxAmount:   money.Zero(scale),
		Withholding: money.Zero(scale),
		Total:       money.Zero(scale),
		AmountDue:   money.Zero(scale),
		Items:       []ItemTotals{},
	}
}
