package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	ledgerdomain "github.com/smallbiznis/taxledger/internal/ledger/domain"
	taxdomain "github.com/smallbiznis/taxledger/internal/tax/domain"
	"github.com/smallbiznis/taxledger/pkg/db/pagination"
)

type Service interface {
	Preview(ctx context.Context, req ComputeRequest) (*PreviewResponse, error)
	Create(ctx context.Context, req CreateRequest) (*DocumentResponse, error)
	GetByID(ctx context.Context, id string) (*DocumentResponse, error)
	List(ctx context.Context, req ListRequest) (*ListResponse, error)
}

// TaxLineInput is an inline tax line. Rate is a percentage.
type TaxLineInput struct {
	Code             string                    `json:"code"`
	TaxType          string                    `json:"tax_type"`
	Rate             decimal.Decimal           `json:"rate"`
	IsCompound       bool                      `json:"is_compound"`
	CompoundSequence int                       `json:"compound_sequence"`
	IsWithholding    bool                      `json:"is_withholding"`
	WithholdingBase  taxdomain.WithholdingBase `json:"withholding_base,omitempty"`
}

// LineItemInput carries inline tax lines, references stored tax rules by
// code, or both. Inline lines come first.
type LineItemInput struct {
	Description string           `json:"description"`
	Quantity    decimal.Decimal  `json:"quantity"`
	UnitPrice   decimal.Decimal  `json:"unit_price"`
	Discount    *decimal.Decimal `json:"discount,omitempty"`
	TaxCodes    []string         `json:"tax_codes,omitempty"`
	TaxLines    []TaxLineInput   `json:"tax_lines,omitempty"`
}

type ComputeRequest struct {
	Direction Direction       `json:"direction"`
	Currency  string          `json:"currency"`
	Items     []LineItemInput `json:"items"`
}

type CreateRequest struct {
	ComputeRequest
	Number         *string          `json:"number,omitempty"`
	IdempotencyKey *string          `json:"idempotency_key,omitempty"`
	ExchangeRate   *decimal.Decimal `json:"exchange_rate,omitempty"`
	IssuedAt       *time.Time       `json:"issued_at,omitempty"`
	Memo           *string          `json:"memo,omitempty"`
	Metadata       map[string]any   `json:"metadata,omitempty"`
}

// PreviewResponse carries the posting when the organization's accounts
// resolve; otherwise PostingError says why it was skipped.
type PreviewResponse struct {
	Direction    Direction                       `json:"direction"`
	Totals       DocumentTotals                  `json:"totals"`
	Posting      *ledgerdomain.LedgerTransaction `json:"posting,omitempty"`
	PostingError string                          `json:"posting_error,omitempty"`
}

type DocumentResponse struct {
	ID             string           `json:"id"`
	OrgID          string           `json:"org_id"`
	Direction      Direction        `json:"direction"`
	Number         *string          `json:"number,omitempty"`
	IdempotencyKey *string          `json:"idempotency_key,omitempty"`
	Status         DocumentStatus   `json:"status"`
	Currency       string           `json:"currency"`
	ExchangeRate   *decimal.Decimal `json:"exchange_rate,omitempty"`
	Subtotal       decimal.Decimal  `json:"subtotal"`
	TaxAmount      decimal.Decimal  `json:"tax_amount"`
	Withholding    decimal.Decimal  `json:"withholding"`
	Total          decimal.Decimal  `json:"total"`
	AmountDue      decimal.Decimal  `json:"amount_due"`
	LedgerEntryID  *string          `json:"ledger_entry_id,omitempty"`
	Memo           *string          `json:"memo,omitempty"`
	Metadata       map[string]any   `json:"metadata,omitempty"`
	IssuedAt       time.Time        `json:"issued_at"`
	CreatedAt      time.Time        `json:"created_at"`
	Items          []ItemResponse   `json:"items,omitempty"`
}

type ItemResponse struct {
	ID          string            `json:"id"`
	Position    int               `json:"position"`
	Description string            `json:"description"`
	Quantity    decimal.Decimal   `json:"quantity"`
	UnitPrice   decimal.Decimal   `json:"unit_price"`
	Discount    decimal.Decimal   `json:"discount"`
	Gross       decimal.Decimal   `json:"gross"`
	Net         decimal.Decimal   `json:"net"`
	Tax         decimal.Decimal   `json:"tax"`
	Withholding decimal.Decimal   `json:"withholding"`
	TaxLines    []TaxLineResponse `json:"tax_lines"`
}

type TaxLineResponse struct {
	Code             string          `json:"code,omitempty"`
	TaxType          string          `json:"tax_type"`
	Rate             decimal.Decimal `json:"rate"`
	CompoundSequence int             `json:"compound_sequence"`
	IsCompound       bool            `json:"is_compound"`
	IsWithholding    bool            `json:"is_withholding"`
	Base             decimal.Decimal `json:"base"`
	Amount           decimal.Decimal `json:"amount"`
}

type ListRequest struct {
	pagination.Pagination
	Direction Direction      `form:"direction"`
	Status    DocumentStatus `form:"status"`
}

type ListResponse struct {
	pagination.PageInfo
	Documents []DocumentResponse `json:"documents"`
}
