package domain

import "errors"

var (
	ErrInvalidOrganization    = errors.New("invalid_organization")
	ErrInvalidName            = errors.New("invalid_name")
	ErrInvalidID              = errors.New("invalid_id")
	ErrNotFound               = errors.New("not_found")
	ErrInvalidTaxCode         = errors.New("invalid_tax_code")
	ErrInvalidTaxType         = errors.New("invalid_tax_type")
	ErrInvalidTaxRate         = errors.New("invalid_tax_rate")
	ErrInvalidWithholdingBase = errors.New("invalid_withholding_base")
	ErrCompoundWithholding    = errors.New("compound_withholding")
	ErrDuplicateTaxCode       = errors.New("duplicate_tax_code")
	ErrUnknownTaxRule         = errors.New("unknown_tax_rule")
	ErrTaxRuleDisabled        = errors.New("tax_rule_disabled")
)
