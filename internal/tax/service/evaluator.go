package service

import (
	"fmt"
	"sort"

	taxdomain "github.com/smallbiznis/taxledger/internal/tax/domain"
	"github.com/smallbiznis/taxledger/pkg/money"
)

// SortTaxLines returns a copy ordered by CompoundSequence ascending.
// Lines sharing a sequence keep their declaration order.
func SortTaxLines(lines []taxdomain.TaxLineDefinition) []taxdomain.TaxLineDefinition {
	out := make([]taxdomain.TaxLineDefinition, len(lines))
	copy(out, lines)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CompoundSequence < out[j].CompoundSequence
	})
	return out
}

// DuplicateSequences lists sequence values used by more than one line, in
// ascending sequence order. Indexes refer to declaration order.
func DuplicateSequences(lines []taxdomain.TaxLineDefinition) []taxdomain.SequenceWarning {
	bySeq := make(map[int][]int, len(lines))
	for i, line := range lines {
		bySeq[line.CompoundSequence] = append(bySeq[line.CompoundSequence], i)
	}

	var warnings []taxdomain.SequenceWarning
	for seq, idx := range bySeq {
		if len(idx) > 1 {
			warnings = append(warnings, taxdomain.SequenceWarning{Sequence: seq, Indexes: idx})
		}
	}
	sort.Slice(warnings, func(i, j int) bool { return warnings[i].Sequence < warnings[j].Sequence })
	return warnings
}

// Evaluate computes the tax stack of one item.
//
// Lines run in compound sequence order. A compound line is charged on
// net + tax accumulated so far on the item; a simple line on net only.
// Both feed the accumulated tax seen by later compound lines. Withholding
// lines never feed it and are kept out of Tax. Every line amount is rounded
// half-up to the minor unit of net.
func Evaluate(net money.Money, lines []taxdomain.TaxLineDefinition) (taxdomain.ItemTax, error) {
	scale := net.Scale()
	result := taxdomain.ItemTax{
		Tax:         money.Zero(scale),
		Withholding: money.Zero(scale),
		Applied:     make([]taxdomain.AppliedTax, 0, len(lines)),
	}
	if net.IsNegative() {
		return result, fmt.Errorf("%w: net %s", money.ErrNegativeAmount, net)
	}
	for i, line := range lines {
		if err := line.Validate(); err != nil {
			return result, fmt.Errorf("tax line %d: %w", i, err)
		}
	}

	// result.Tax doubles as the running base for compound lines.
	for _, line := range SortTaxLines(lines) {
		var base money.Money
		switch {
		case line.IsWithholding:
			base = net
			if taxdomain.NormalizeWithholdingBase(line.WithholdingBase) == taxdomain.WithholdingBaseGross {
				base = net.Add(result.Tax)
			}
		case line.IsCompound:
			base = net.Add(result.Tax)
		default:
			base = net
		}

		amount := base.ApplyRate(line.Rate)
		if line.IsWithholding {
			result.Withholding = result.Withholding.Add(amount)
		} else {
			result.Tax = result.Tax.Add(amount)
		}

		result.Applied = append(result.Applied, taxdomain.AppliedTax{
			Code:             line.Code,
			TaxType:          line.TaxType,
			Rate:             line.Rate,
			CompoundSequence: line.CompoundSequence,
			IsCompound:       line.IsCompound,
			IsWithholding:    line.IsWithholding,
			Base:             base,
			Amount:           amount,
		})
	}

	return result, nil
}
