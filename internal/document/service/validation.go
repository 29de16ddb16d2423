package service

import (
	"strings"

	documentdomain "github.com/smallbiznis/taxledger/internal/document/domain"
	taxdomain "github.com/smallbiznis/taxledger/internal/tax/domain"
)

// ValidateItems checks every item and tax line before any computation and
// reports all failures with indexed field paths.
func ValidateItems(scale int32, items []documentdomain.LineItem) error {
	var errs documentdomain.ValidationErrors
	for i, item := range items {
		if strings.TrimSpace(item.Description) == "" {
			errs.Add(documentdomain.ItemField(i, "description"), documentdomain.CodeRequired, "description is required")
		}
		if !item.Quantity.IsPositive() {
			errs.Add(documentdomain.ItemField(i, "quantity"), documentdomain.CodeMustBePositive, "quantity must be greater than zero")
		}
		if item.UnitPrice.IsNegative() {
			errs.Add(documentdomain.ItemField(i, "unit_price"), documentdomain.CodeNegative, "unit price must not be negative")
		}
		if item.Discount.IsNegative() {
			errs.Add(documentdomain.ItemField(i, "discount"), documentdomain.CodeNegative, "discount must not be negative")
		} else if item.Quantity.IsPositive() && !item.UnitPrice.IsNegative() {
			if _, err := grossAmount(item, scale).SubNonNegative(item.Discount); err != nil {
				errs.Add(documentdomain.ItemField(i, "discount"), documentdomain.CodeNegativeNet, "discount exceeds quantity x unit price")
			}
		}

		for j, line := range item.TaxLines {
			validateTaxLine(&errs, i, j, line)
		}
	}
	return errs.Err()
}

func validateTaxLine(errs *documentdomain.ValidationErrors, item, index int, line taxdomain.TaxLineDefinition) {
	if strings.TrimSpace(line.TaxType) == "" {
		errs.Add(documentdomain.TaxLineField(item, index, "tax_type"), documentdomain.CodeRequired, "tax type is required")
	}
	if line.Rate.IsNegative() {
		errs.Add(documentdomain.TaxLineField(item, index, "rate"), documentdomain.CodeInvalidRate, "rate must not be negative")
	}
	if line.IsWithholding && line.IsCompound {
		errs.Add(documentdomain.TaxLineField(item, index, "is_compound"), documentdomain.CodeInvalidValue, "a withholding line cannot be compound")
	}
	if line.IsWithholding && !taxdomain.NormalizeWithholdingBase(line.WithholdingBase).Valid() {
		errs.Add(documentdomain.TaxLineField(item, index, "withholding_base"), documentdomain.CodeInvalidValue, "withholding base must be net or gross")
	}
}
