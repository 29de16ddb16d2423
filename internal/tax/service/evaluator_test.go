package service

import (
	"testing"

	"github.com/shopspring/decimal"
	taxdomain "github.com/smallbiznis/taxledger/internal/tax/domain"
	"github.com/smallbiznis/taxledger/pkg/money"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pct(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func amount(v string) money.Money {
	m, err := money.Parse(v, 2)
	if err != nil {
		panic(err)
	}
	return m
}

func standard(rate string, seq int) taxdomain.TaxLineDefinition {
	return taxdomain.TaxLineDefinition{TaxType: taxdomain.TaxTypeStandard, Rate: pct(rate), CompoundSequence: seq}
}

func compound(rate string, seq int) taxdomain.TaxLineDefinition {
	return taxdomain.TaxLineDefinition{TaxType: taxdomain.TaxTypeCAQST, Rate: pct(rate), IsCompound: true, CompoundSequence: seq}
}

func withholding(rate string, seq int) taxdomain.TaxLineDefinition {
	return taxdomain.TaxLineDefinition{TaxType: taxdomain.TaxTypeWithholding, Rate: pct(rate), IsWithholding: true, CompoundSequence: seq}
}

func TestEvaluate_EmptyLines(t *testing.T) {
	res, err := Evaluate(amount("1000"), nil)
	require.NoError(t, err)
	assert.True(t, res.Tax.IsZero())
	assert.True(t, res.Withholding.IsZero())
	assert.Empty(t, res.Applied)
}

func TestEvaluate_SingleStandard(t *testing.T) {
	res, err := Evaluate(amount("1000"), []taxdomain.TaxLineDefinition{standard("18", 1)})
	require.NoError(t, err)
	assert.Equal(t, "180.00", res.Tax.String())
	assert.True(t, res.Withholding.IsZero())
}

func TestEvaluate_CompoundStack(t *testing.T) {
	res, err := Evaluate(amount("10000"), []taxdomain.TaxLineDefinition{
		standard("10", 1),
		compound("2", 2),
	})
	require.NoError(t, err)
	require.Len(t, res.Applied, 2)
	assert.Equal(t, "1000.00", res.Applied[0].Amount.String())
	assert.Equal(t, "11000.00", res.Applied[1].Base.String())
	assert.Equal(t, "220.00", res.Applied[1].Amount.String())
	assert.Equal(t, "1220.00", res.Tax.String())

	// A compound first stage has nothing accumulated yet and behaves like a simple line.
	res, err = Evaluate(amount("10000"), []taxdomain.TaxLineDefinition{
		compound("10", 1),
		compound("2", 2),
	})
	require.NoError(t, err)
	assert.Equal(t, "1220.00", res.Tax.String())
}

func TestEvaluate_SortsBySequence(t *testing.T) {
	declared := []taxdomain.TaxLineDefinition{
		compound("2", 2),
		standard("10", 1),
	}
	res, err := Evaluate(amount("10000"), declared)
	require.NoError(t, err)
	assert.Equal(t, "1220.00", res.Tax.String())
	assert.Equal(t, taxdomain.TaxTypeStandard, res.Applied[0].TaxType)

	// input slice untouched
	assert.True(t, declared[0].IsCompound)
}

func TestEvaluate_OrderSensitive(t *testing.T) {
	a, err := Evaluate(amount("10000"), []taxdomain.TaxLineDefinition{standard("10", 1), compound("2", 2)})
	require.NoError(t, err)
	b, err := Evaluate(amount("10000"), []taxdomain.TaxLineDefinition{standard("10", 2), compound("2", 1)})
	require.NoError(t, err)

	assert.Equal(t, "1220.00", a.Tax.String())
	assert.Equal(t, "1200.00", b.Tax.String())
}

func TestEvaluate_WithholdingUsesNetBase(t *testing.T) {
	res, err := Evaluate(amount("10000"), []taxdomain.TaxLineDefinition{
		standard("10", 1),
		compound("2", 2),
		withholding("10", 3),
	})
	require.NoError(t, err)
	assert.Equal(t, "1220.00", res.Tax.String())
	assert.Equal(t, "1000.00", res.Withholding.String())
	assert.Equal(t, "10000.00", res.Applied[2].Base.String())

	plain, err := Evaluate(amount("10000"), []taxdomain.TaxLineDefinition{withholding("10", 3)})
	require.NoError(t, err)
	assert.True(t, plain.Withholding.Equal(res.Withholding))
}

func TestEvaluate_WithholdingGrossBase(t *testing.T) {
	wht := withholding("10", 3)
	wht.WithholdingBase = taxdomain.WithholdingBaseGross

	res, err := Evaluate(amount("10000"), []taxdomain.TaxLineDefinition{
		standard("10", 1),
		compound("2", 2),
		wht,
	})
	require.NoError(t, err)
	assert.Equal(t, "1220.00", res.Tax.String())
	assert.Equal(t, "1122.00", res.Withholding.String())
}

func TestEvaluate_WithholdingDoesNotFeedCompound(t *testing.T) {
	res, err := Evaluate(amount("10000"), []taxdomain.TaxLineDefinition{
		withholding("6", 1),
		compound("10", 2),
	})
	require.NoError(t, err)
	assert.Equal(t, "1000.00", res.Tax.String())
	assert.Equal(t, "600.00", res.Withholding.String())
}

func TestEvaluate_ZeroRateStillSequenced(t *testing.T) {
	res, err := Evaluate(amount("500"), []taxdomain.TaxLineDefinition{
		compound("0", 1),
		standard("10", 2),
	})
	require.NoError(t, err)
	require.Len(t, res.Applied, 2)
	assert.True(t, res.Applied[0].Amount.IsZero())
	assert.Equal(t, "50.00", res.Tax.String())
}

func TestEvaluate_RoundsEachLineHalfUp(t *testing.T) {
	// 33.33 × 7.5% = 2.49975 → 2.50; compound (33.33 + 2.50) × 1.5% = 0.53745 → 0.54
	res, err := Evaluate(amount("33.33"), []taxdomain.TaxLineDefinition{
		standard("7.5", 1),
		compound("1.5", 2),
	})
	require.NoError(t, err)
	assert.Equal(t, "2.50", res.Applied[0].Amount.String())
	assert.Equal(t, "0.54", res.Applied[1].Amount.String())
	assert.Equal(t, "3.04", res.Tax.String())
}

func TestEvaluate_RejectsInvalidLines(t *testing.T) {
	_, err := Evaluate(amount("100"), []taxdomain.TaxLineDefinition{standard("-1", 1)})
	require.ErrorIs(t, err, taxdomain.ErrInvalidTaxRate)

	bad := withholding("5", 1)
	bad.IsCompound = true
	_, err = Evaluate(amount("100"), []taxdomain.TaxLineDefinition{bad})
	require.ErrorIs(t, err, taxdomain.ErrCompoundWithholding)

	_, err = Evaluate(amount("100"), []taxdomain.TaxLineDefinition{{Rate: pct("5")}})
	require.ErrorIs(t, err, taxdomain.ErrInvalidTaxType)

	_, err = Evaluate(money.FromMinor(-1, 2), nil)
	require.ErrorIs(t, err, money.ErrNegativeAmount)
}

func TestDuplicateSequences(t *testing.T) {
	lines := []taxdomain.TaxLineDefinition{
		standard("5", 2),
		standard("7", 1),
		compound("1", 2),
		withholding("2", 1),
		standard("3", 4),
	}
	warnings := DuplicateSequences(lines)
	require.Len(t, warnings, 2)
	assert.Equal(t, 1, warnings[0].Sequence)
	assert.Equal(t, []int{1, 3}, warnings[0].Indexes)
	assert.Equal(t, 2, warnings[1].Sequence)
	assert.Equal(t, []int{0, 2}, warnings[1].Indexes)

	sorted := SortTaxLines(lines)
	assert.True(t, sorted[0].Rate.Equal(pct("7")))
	assert.True(t, sorted[1].Rate.Equal(pct("2")))
	assert.True(t, sorted[2].Rate.Equal(pct("5")))
	assert.True(t, sorted[3].Rate.Equal(pct("1")))
}
