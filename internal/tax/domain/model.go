package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Well-known tax types. Jurisdiction specific codes are accepted as-is.
// Do NOT rename once used on posted documents.
const (
	TaxTypeStandard    = "STANDARD"
	TaxTypeWithholding = "WITHHOLDING"

	TaxTypeUSSalesTax    = "US_SALES_TAX"
	TaxTypeEUVATStandard = "EU_VAT_STANDARD"
	TaxTypeSGGST         = "SG_GST"
	TaxTypeJPJCT         = "JP_JCT"
	TaxTypeCAPST         = "CA_PST"
	TaxTypeCAQST         = "CA_QST"
)

// WithholdingBase selects the amount a withholding line is computed from.
type WithholdingBase string

const (
	// WithholdingBaseNet is the pre-tax, post-discount item amount.
	WithholdingBaseNet WithholdingBase = "net"
	// WithholdingBaseGross adds the tax accumulated on the item before the withholding line.
	WithholdingBaseGross WithholdingBase = "gross"
)

func NormalizeWithholdingBase(v WithholdingBase) WithholdingBase {
	s := WithholdingBase(strings.ToLower(strings.TrimSpace(string(v))))
	if s == "" {
		return WithholdingBaseNet
	}
	return s
}

func (b WithholdingBase) Valid() bool {
	return b == WithholdingBaseNet || b == WithholdingBaseGross
}

// TaxLineDefinition is one tax applied to a line item. Values are built once
// at the request boundary and never mutated.
type TaxLineDefinition struct {
	Code             string          `json:"code,omitempty"`
	TaxType          string          `json:"tax_type"`
	Rate             decimal.Decimal `json:"rate"` // percent, 18 means 18%
	IsCompound       bool            `json:"is_compound"`
	CompoundSequence int             `json:"compound_sequence"`
	IsWithholding    bool            `json:"is_withholding"`
	WithholdingBase  WithholdingBase `json:"withholding_base,omitempty"`
}

func (d TaxLineDefinition) Validate() error {
	if strings.TrimSpace(d.TaxType) == "" {
		return ErrInvalidTaxType
	}
	if d.Rate.IsNegative() {
		return ErrInvalidTaxRate
	}
	if d.IsWithholding && d.IsCompound {
		return ErrCompoundWithholding
	}
	if d.IsWithholding && !NormalizeWithholdingBase(d.WithholdingBase).Valid() {
		return ErrInvalidWithholdingBase
	}
	return nil
}

// TaxRule is an org-scoped, reusable tax line definition.
// code is engine-facing and immutable once created.
type TaxRule struct {
	ID    snowflake.ID `gorm:"primaryKey"`
	OrgID snowflake.ID `gorm:"column:org_id;not null;index;uniqueIndex:ux_tax_rules_org_code"`

	Code         string          `gorm:"type:text;not null;uniqueIndex:ux_tax_rules_org_code"`
	Name         string          `gorm:"type:text;not null"`
	TaxType      string          `gorm:"column:tax_type;type:text;not null"`
	Jurisdiction *string         `gorm:"type:text"`
	Rate         decimal.Decimal `gorm:"type:numeric(9,4);not null"`

	IsCompound       bool            `gorm:"column:is_compound;not null;default:false"`
	CompoundSequence int             `gorm:"column:compound_sequence;not null;default:0"`
	IsWithholding    bool            `gorm:"column:is_withholding;not null;default:false"`
	WithholdingBase  WithholdingBase `gorm:"column:withholding_base;type:text;not null;default:'net'"`

	Description *string `gorm:"type:text"`
	IsEnabled   bool    `gorm:"column:is_enabled;not null;default:true"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (TaxRule) TableName() string { return "tax_rules" }

func (t *TaxRule) Validate() error {
	if strings.TrimSpace(t.Code) == "" {
		return ErrInvalidTaxCode
	}
	if strings.TrimSpace(t.Name) == "" {
		return ErrInvalidName
	}
	return t.Definition().Validate()
}

func (t *TaxRule) Definition() TaxLineDefinition {
	base := WithholdingBase("")
	if t.IsWithholding {
		base = NormalizeWithholdingBase(t.WithholdingBase)
	}
	return TaxLineDefinition{
		Code:             t.Code,
		TaxType:          t.TaxType,
		Rate:             t.Rate,
		IsCompound:       t.IsCompound,
		CompoundSequence: t.CompoundSequence,
		IsWithholding:    t.IsWithholding,
		WithholdingBase:  base,
	}
}
