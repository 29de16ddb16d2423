package domain

import (
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/taxledger/pkg/money"
)

// AppliedTax is the computed outcome of one tax line on one item.
type AppliedTax struct {
	Code             string          `json:"code,omitempty"`
	TaxType          string          `json:"tax_type"`
	Rate             decimal.Decimal `json:"rate"`
	CompoundSequence int             `json:"compound_sequence"`
	IsCompound       bool            `json:"is_compound"`
	IsWithholding    bool            `json:"is_withholding"`
	Base             money.Money     `json:"base"`
	Amount           money.Money     `json:"amount"`
}

// ItemTax is the tax stack of a single line item. Tax excludes withholding.
type ItemTax struct {
	Tax         money.Money  `json:"tax"`
	Withholding money.Money  `json:"withholding"`
	Applied     []AppliedTax `json:"applied"`
}

// SequenceWarning reports tax lines that share a compound sequence. Their
// relative order falls back to declaration order.
type SequenceWarning struct {
	Item     int   `json:"item"`
	Sequence int   `json:"compound_sequence"`
	Indexes  []int `json:"indexes"`
}
