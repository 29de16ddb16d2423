package service

import (
	"fmt"

	documentdomain "github.com/smallbiznis/taxledger/internal/document/domain"
	taxservice "github.com/smallbiznis/taxledger/internal/tax/service"
	"github.com/smallbiznis/taxledger/pkg/money"
)

// ComputeTotals validates items, evaluates each item's tax stack and sums the
// results in item order. Nothing is returned on a validation failure. Zero
// items yield all-zero totals.
func ComputeTotals(currency string, scale int32, items []documentdomain.LineItem) (documentdomain.DocumentTotals, error) {
	totals := documentdomain.ZeroTotals(money.NormalizeCode(currency), scale)
	if err := ValidateItems(scale, items); err != nil {
		return totals, err
	}

	totals.Items = make([]documentdomain.ItemTotals, 0, len(items))
	for i, item := range items {
		gross := grossAmount(item, scale)
		net, err := gross.SubNonNegative(item.Discount)
		if err != nil {
			return documentdomain.ZeroTotals(totals.Currency, scale), &documentdomain.ValidationError{
				Field:   documentdomain.ItemField(i, "discount"),
				Code:    documentdomain.CodeNegativeNet,
				Message: err.Error(),
			}
		}

		for _, w := range taxservice.DuplicateSequences(item.TaxLines) {
			w.Item = i
			totals.Warnings = append(totals.Warnings, w)
		}

		itemTax, err := taxservice.Evaluate(net, item.TaxLines)
		if err != nil {
			return documentdomain.ZeroTotals(totals.Currency, scale), fmt.Errorf("item %d: %w", i, err)
		}

		totals.Subtotal = totals.Subtotal.Add(net)
		totals.TaxAmount = totals.TaxAmount.Add(itemTax.Tax)
		totals.Withholding = totals.Withholding.Add(itemTax.Withholding)
		totals.Items = append(totals.Items, documentdomain.ItemTotals{
			Index:       i,
			Gross:       gross,
			Net:         net,
			Tax:         itemTax.Tax,
			Withholding: itemTax.Withholding,
			Applied:     itemTax.Applied,
		})
	}

	totals.Total = totals.Subtotal.Add(totals.TaxAmount)
	due, err := totals.Total.SubNonNegative(totals.Withholding)
	if err != nil {
		return documentdomain.ZeroTotals(totals.Currency, scale), &documentdomain.ValidationError{
			Field:   "items",
			Code:    documentdomain.CodeInvalidValue,
			Message: "withholding exceeds document total",
		}
	}
	totals.AmountDue = due
	return totals, nil
}

func grossAmount(item documentdomain.LineItem, scale int32) money.Money {
	return money.New(item.Quantity.Mul(item.UnitPrice), scale)
}
