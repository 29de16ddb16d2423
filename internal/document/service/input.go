package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	documentdomain "github.com/smallbiznis/taxledger/internal/document/domain"
	taxdomain "github.com/smallbiznis/taxledger/internal/tax/domain"
	"github.com/smallbiznis/taxledger/pkg/money"
)

// NormalizeRequest checks the document header and returns the normalized
// direction and currency code.
func NormalizeRequest(req documentdomain.ComputeRequest) (documentdomain.Direction, string, error) {
	var errs documentdomain.ValidationErrors

	direction := documentdomain.NormalizeDirection(req.Direction)
	if !direction.Valid() {
		errs.Add("direction", documentdomain.CodeInvalidValue, "direction must be SALE or PURCHASE")
	}
	currency := money.NormalizeCode(req.Currency)
	if !isCurrencyCode(currency) {
		errs.Add("currency", documentdomain.CodeInvalidFormat, "currency must be a 3-letter ISO 4217 code")
	}
	return direction, currency, errs.Err()
}

// BuildLineItems converts request items into engine line items. Inline tax
// lines keep their indexes; lines resolved from tax_codes follow them. A nil
// resolver rejects tax_codes.
func BuildLineItems(ctx context.Context, resolver taxdomain.TaxLineResolver, orgID snowflake.ID, scale int32, inputs []documentdomain.LineItemInput) ([]documentdomain.LineItem, error) {
	var errs documentdomain.ValidationErrors
	items := make([]documentdomain.LineItem, len(inputs))

	for i, in := range inputs {
		item := documentdomain.LineItem{
			Description: in.Description,
			Quantity:    in.Quantity,
			UnitPrice:   in.UnitPrice,
			Discount:    money.Zero(scale),
			TaxLines:    make([]taxdomain.TaxLineDefinition, 0, len(in.TaxLines)+len(in.TaxCodes)),
		}
		if in.Discount != nil {
			discount, err := money.Parse(in.Discount.String(), scale)
			if err != nil {
				errs.Add(documentdomain.ItemField(i, "discount"), documentdomain.CodeInvalidFormat, err.Error())
			} else {
				item.Discount = discount
			}
		}

		for _, line := range in.TaxLines {
			item.TaxLines = append(item.TaxLines, taxdomain.TaxLineDefinition{
				Code:             strings.TrimSpace(line.Code),
				TaxType:          strings.TrimSpace(line.TaxType),
				Rate:             line.Rate,
				IsCompound:       line.IsCompound,
				CompoundSequence: line.CompoundSequence,
				IsWithholding:    line.IsWithholding,
				WithholdingBase:  line.WithholdingBase,
			})
		}

		if len(in.TaxCodes) > 0 {
			if resolver == nil {
				errs.Add(documentdomain.ItemField(i, "tax_codes"), documentdomain.CodeUnknownTaxRule, "tax codes are not available here; use inline tax_lines")
			} else {
				resolved, err := resolver.ResolveTaxLines(ctx, orgID, in.TaxCodes)
				switch {
				case errors.Is(err, taxdomain.ErrUnknownTaxRule), errors.Is(err, taxdomain.ErrTaxRuleDisabled):
					errs.Add(documentdomain.ItemField(i, "tax_codes"), documentdomain.CodeUnknownTaxRule, err.Error())
				case err != nil:
					return nil, err
				default:
					item.TaxLines = append(item.TaxLines, resolved...)
				}
			}
		}
		items[i] = item
	}

	if err := errs.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func isCurrencyCode(code string) bool {
	if len(code) != 3 {
		return false
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}
