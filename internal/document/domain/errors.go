package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidID           = errors.New("invalid_id")
	ErrNotFound            = errors.New("not_found")
	ErrInvalidDirection    = errors.New("invalid_direction")
	ErrInvalidCurrency     = errors.New("invalid_currency")
	ErrValidation          = errors.New("validation_error")
	ErrDuplicateNumber     = errors.New("duplicate_document_number")
)

// Validation codes carried on ValidationError.Code.
const (
	CodeRequired       = "required"
	CodeMustBePositive = "must_be_positive"
	CodeNegative       = "negative"
	CodeNegativeNet    = "negative_net_amount"
	CodeInvalidRate    = "invalid_rate"
	CodeInvalidFormat  = "invalid_format"
	CodeInvalidValue   = "invalid_value"
	CodeUnknownTaxRule = "unknown_tax_rule"
)

// ValidationError points at one offending input field, e.g.
// items[2].tax_lines[0].rate.
type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Field)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// ValidationErrors collects every failure found in one request.
type ValidationErrors []*ValidationError

func (v ValidationErrors) Error() string {
	parts := make([]string, 0, len(v))
	for _, err := range v {
		parts = append(parts, err.Error())
	}
	return strings.Join(parts, "; ")
}

func (v ValidationErrors) Is(target error) bool {
	return target == ErrValidation && len(v) > 0
}

// Err returns nil when nothing was collected.
func (v ValidationErrors) Err() error {
	if len(v) == 0 {
		return nil
	}
	return v
}

func (v *ValidationErrors) Add(field, code, message string) {
	*v = append(*v, &ValidationError{Field: field, Code: code, Message: message})
}

func ItemField(index int, field string) string {
	return fmt.Sprintf("items[%d].%s", index, field)
}

func TaxLineField(item, line int, field string) string {
	return fmt.Sprintf("items[%d].tax_lines[%d].%s", item, line, field)
}
