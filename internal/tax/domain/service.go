package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// TaxLineResolver turns tax rule codes into definitions for one org.
// Results are returned in the order of codes.
type TaxLineResolver interface {
	ResolveTaxLines(ctx context.Context, orgID snowflake.ID, codes []string) ([]TaxLineDefinition, error)
}

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Response, error)
	List(ctx context.Context, req ListRequest) ([]Response, error)
	Update(ctx context.Context, req UpdateRequest) (*Response, error)
	Disable(ctx context.Context, id string) (*Response, error)
}

type ListRequest struct {
	Name      string
	Code      string
	TaxType   string
	IsEnabled *bool
	SortBy    string
	OrderBy   string
}

type CreateRequest struct {
	Code             string          `json:"code"`
	Name             string          `json:"name"`
	TaxType          string          `json:"tax_type"`
	Jurisdiction     *string         `json:"jurisdiction"`
	Rate             decimal.Decimal `json:"rate"`
	IsCompound       bool            `json:"is_compound"`
	CompoundSequence int             `json:"compound_sequence"`
	IsWithholding    bool            `json:"is_withholding"`
	WithholdingBase  WithholdingBase `json:"withholding_base"`
	Description      *string         `json:"description"`
	IsEnabled        *bool           `json:"is_enabled"`
}

type UpdateRequest struct {
	ID               string           `json:"id"`
	Name             *string          `json:"name,omitempty"`
	Rate             *decimal.Decimal `json:"rate,omitempty"`
	IsCompound       *bool            `json:"is_compound,omitempty"`
	CompoundSequence *int             `json:"compound_sequence,omitempty"`
	WithholdingBase  *WithholdingBase `json:"withholding_base,omitempty"`
	Description      *string          `json:"description,omitempty"`
}

type Response struct {
	ID               string          `json:"id"`
	OrganizationID   string          `json:"organization_id"`
	Code             string          `json:"code"`
	Name             string          `json:"name"`
	TaxType          string          `json:"tax_type"`
	Jurisdiction     *string         `json:"jurisdiction,omitempty"`
	Rate             decimal.Decimal `json:"rate"`
	IsCompound       bool            `json:"is_compound"`
	CompoundSequence int             `json:"compound_sequence"`
	IsWithholding    bool            `json:"is_withholding"`
	WithholdingBase  WithholdingBase `json:"withholding_base,omitempty"`
	Description      *string         `json:"description,omitempty"`
	IsEnabled        bool            `json:"is_enabled"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}
