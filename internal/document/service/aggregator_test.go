package service

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	documentdomain "github.com/smallbiznis/taxledger/internal/document/domain"
	ledgerdomain "github.com/smallbiznis/taxledger/internal/ledger/domain"
	ledgerservice "github.com/smallbiznis/taxledger/internal/ledger/service"
	taxdomain "github.com/smallbiznis/taxledger/internal/tax/domain"
	"github.com/smallbiznis/taxledger/pkg/money"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func usd(v string) money.Money {
	m, err := money.Parse(v, 2)
	if err != nil {
		panic(err)
	}
	return m
}

func lineItem(qty, price, discount string, lines ...taxdomain.TaxLineDefinition) documentdomain.LineItem {
	return documentdomain.LineItem{
		Description: "item",
		Quantity:    dec(qty),
		UnitPrice:   dec(price),
		Discount:    usd(discount),
		TaxLines:    lines,
	}
}

func simpleTax(rate string, seq int) taxdomain.TaxLineDefinition {
	return taxdomain.TaxLineDefinition{TaxType: taxdomain.TaxTypeStandard, Rate: dec(rate), CompoundSequence: seq}
}

func compoundTax(rate string, seq int) taxdomain.TaxLineDefinition {
	return taxdomain.TaxLineDefinition{TaxType: taxdomain.TaxTypeCAQST, Rate: dec(rate), IsCompound: true, CompoundSequence: seq}
}

func withholdingTax(rate string, seq int) taxdomain.TaxLineDefinition {
	return taxdomain.TaxLineDefinition{TaxType: taxdomain.TaxTypeWithholding, Rate: dec(rate), IsWithholding: true, CompoundSequence: seq}
}

func TestComputeTotals_Scenarios(t *testing.T) {
	cases := []struct {
		name        string
		items       []documentdomain.LineItem
		subtotal    string
		tax         string
		withholding string
		total       string
		amountDue   string
	}{
		{
			name:     "single standard tax",
			items:    []documentdomain.LineItem{lineItem("10", "100", "0", simpleTax("18", 1))},
			subtotal: "1000", tax: "180", withholding: "0", total: "1180", amountDue: "1180",
		},
		{
			name:     "discount before tax",
			items:    []documentdomain.LineItem{lineItem("10", "100", "100", simpleTax("18", 1))},
			subtotal: "900", tax: "162", withholding: "0", total: "1062", amountDue: "1062",
		},
		{
			name:     "compound stack",
			items:    []documentdomain.LineItem{lineItem("100", "100", "0", simpleTax("10", 1), compoundTax("2", 2))},
			subtotal: "10000", tax: "1220", withholding: "0", total: "11220", amountDue: "11220",
		},
		{
			name:     "withholding with standard tax",
			items:    []documentdomain.LineItem{lineItem("1", "10000", "0", simpleTax("18", 1), withholdingTax("6", 2))},
			subtotal: "10000", tax: "1800", withholding: "600", total: "11800", amountDue: "11200",
		},
		{
			name:     "withholding after multi-stage compound",
			items:    []documentdomain.LineItem{lineItem("100", "100", "0", simpleTax("10", 1), compoundTax("2", 2), withholdingTax("10", 3))},
			subtotal: "10000", tax: "1220", withholding: "1000", total: "11220", amountDue: "10220",
		},
		{
			name:     "withholding only",
			items:    []documentdomain.LineItem{lineItem("100", "100", "0", withholdingTax("6", 1))},
			subtotal: "10000", tax: "0", withholding: "600", total: "10000", amountDue: "9400",
		},
		{
			name:     "empty draft",
			items:    nil,
			subtotal: "0", tax: "0", withholding: "0", total: "0", amountDue: "0",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			totals, err := ComputeTotals("usd", 2, tc.items)
			require.NoError(t, err)
			assert.Equal(t, "USD", totals.Currency)
			assert.True(t, totals.Subtotal.Equal(usd(tc.subtotal)), "subtotal %s", totals.Subtotal)
			assert.True(t, totals.TaxAmount.Equal(usd(tc.tax)), "tax %s", totals.TaxAmount)
			assert.True(t, totals.Withholding.Equal(usd(tc.withholding)), "withholding %s", totals.Withholding)
			assert.True(t, totals.Total.Equal(usd(tc.total)), "total %s", totals.Total)
			assert.True(t, totals.AmountDue.Equal(usd(tc.amountDue)), "amount due %s", totals.AmountDue)
			assert.Len(t, totals.Items, len(tc.items))
		})
	}
}

func TestComputeTotals_PreservesItemOrder(t *testing.T) {
	totals, err := ComputeTotals("USD", 2, []documentdomain.LineItem{
		lineItem("1", "30", "0"),
		lineItem("2", "5", "0", simpleTax("10", 1)),
		lineItem("1", "1.005", "0"),
	})
	require.NoError(t, err)
	require.Len(t, totals.Items, 3)
	assert.Equal(t, "30.00", totals.Items[0].Net.String())
	assert.Equal(t, "10.00", totals.Items[1].Net.String())
	assert.Equal(t, "1.00", totals.Items[1].Tax.String())
	assert.Equal(t, "1.01", totals.Items[2].Net.String())
	assert.Equal(t, "41.01", totals.Subtotal.String())
	for i, item := range totals.Items {
		assert.Equal(t, i, item.Index)
	}
}

func TestComputeTotals_ValidationFailsWithoutPartialResult(t *testing.T) {
	items := []documentdomain.LineItem{
		lineItem("1", "100", "0", simpleTax("10", 1)),
		lineItem("1", "100", "150"),
		{Description: "", Quantity: dec("0"), UnitPrice: dec("-1"), Discount: usd("0"), TaxLines: []taxdomain.TaxLineDefinition{
			{TaxType: "", Rate: dec("-5")},
		}},
	}

	totals, err := ComputeTotals("USD", 2, items)
	require.Error(t, err)
	assert.True(t, errors.Is(err, documentdomain.ErrValidation))
	assert.True(t, totals.Subtotal.IsZero())
	assert.Empty(t, totals.Items)

	var verrs documentdomain.ValidationErrors
	require.True(t, errors.As(err, &verrs))

	fields := make(map[string]string, len(verrs))
	for _, v := range verrs {
		fields[v.Field] = v.Code
	}
	assert.Equal(t, documentdomain.CodeNegativeNet, fields["items[1].discount"])
	assert.Equal(t, documentdomain.CodeRequired, fields["items[2].description"])
	assert.Equal(t, documentdomain.CodeMustBePositive, fields["items[2].quantity"])
	assert.Equal(t, documentdomain.CodeNegative, fields["items[2].unit_price"])
	assert.Equal(t, documentdomain.CodeRequired, fields["items[2].tax_lines[0].tax_type"])
	assert.Equal(t, documentdomain.CodeInvalidRate, fields["items[2].tax_lines[0].rate"])
}

func TestComputeTotals_DuplicateSequenceWarns(t *testing.T) {
	totals, err := ComputeTotals("USD", 2, []documentdomain.LineItem{
		lineItem("1", "100", "0"),
		lineItem("1", "100", "0", simpleTax("10", 1), compoundTax("5", 1)),
	})
	require.NoError(t, err)
	require.Len(t, totals.Warnings, 1)
	assert.Equal(t, 1, totals.Warnings[0].Item)
	assert.Equal(t, []int{0, 1}, totals.Warnings[0].Indexes)
	// stable order: simple first, compound charged on 100 + 10
	assert.Equal(t, "15.50", totals.TaxAmount.String())
}

func TestComputeTotals_WithholdingAboveTotalRejected(t *testing.T) {
	_, err := ComputeTotals("USD", 2, []documentdomain.LineItem{
		lineItem("1", "100", "0", withholdingTax("150", 1)),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, documentdomain.ErrValidation))
}

func TestComputeTotals_ZeroDecimalCurrency(t *testing.T) {
	totals, err := ComputeTotals("JPY", 0, []documentdomain.LineItem{
		lineItem("3", "333", "0", simpleTax("10", 1)),
	})
	require.NoError(t, err)
	assert.Equal(t, "999", totals.Subtotal.String())
	assert.Equal(t, "100", totals.TaxAmount.String())
	assert.Equal(t, "1099", totals.AmountDue.String())
}

func randomItems(r *rand.Rand, withTax bool) []documentdomain.LineItem {
	n := r.Intn(6)
	items := make([]documentdomain.LineItem, 0, n)
	for i := 0; i < n; i++ {
		qty := decimal.NewFromInt(int64(r.Intn(20) + 1))
		if r.Intn(4) == 0 {
			qty = qty.Add(dec("0.5"))
		}
		price := decimal.New(int64(r.Intn(100000)), -2)
		gross := money.New(qty.Mul(price), 2)
		discount := money.Zero(2)
		if r.Intn(3) == 0 && gross.IsPositive() {
			discount = money.FromMinor(r.Int63n(gross.MinorUnits()+1), 2)
		}

		var lines []taxdomain.TaxLineDefinition
		if withTax {
			withholdings := 0
			count := r.Intn(5)
			for j := 0; j < count; j++ {
				rate := decimal.New(int64(r.Intn(2500)), -2)
				switch kind := r.Intn(3); {
				case kind == 0 && withholdings < 2:
					withholdings++
					lines = append(lines, taxdomain.TaxLineDefinition{TaxType: taxdomain.TaxTypeWithholding, Rate: rate, IsWithholding: true, CompoundSequence: r.Intn(4)})
				case kind == 1:
					lines = append(lines, taxdomain.TaxLineDefinition{TaxType: taxdomain.TaxTypeCAQST, Rate: rate, IsCompound: true, CompoundSequence: r.Intn(4)})
				default:
					lines = append(lines, taxdomain.TaxLineDefinition{TaxType: taxdomain.TaxTypeStandard, Rate: rate, CompoundSequence: r.Intn(4)})
				}
			}
		}

		items = append(items, documentdomain.LineItem{
			Description: "generated",
			Quantity:    qty,
			UnitPrice:   price,
			Discount:    discount,
			TaxLines:    lines,
		})
	}
	return items
}

func allAccounts() ledgerdomain.ResolvedAccounts {
	accounts := make(ledgerdomain.ResolvedAccounts, len(ledgerdomain.AllRoles))
	for i, role := range ledgerdomain.AllRoles {
		accounts[role] = snowflake.ID(1000 + i)
	}
	return accounts
}

func TestComputeTotals_Properties(t *testing.T) {
	r := rand.New(rand.NewSource(20260301))
	accounts := allAccounts()

	for run := 0; run < 500; run++ {
		items := randomItems(r, true)
		totals, err := ComputeTotals("USD", 2, items)
		require.NoError(t, err, "run %d", run)

		expectedDue := totals.Subtotal.Add(totals.TaxAmount).Sub(totals.Withholding)
		require.True(t, totals.AmountDue.Equal(expectedDue), "run %d", run)
		require.True(t, totals.AmountDue.LessThanOrEqual(totals.Total), "run %d", run)
		for _, m := range []money.Money{totals.Subtotal, totals.TaxAmount, totals.Withholding, totals.Total, totals.AmountDue} {
			require.False(t, m.IsNegative(), "run %d", run)
		}

		itemSum := money.Zero(2)
		for _, item := range totals.Items {
			itemSum = itemSum.Add(item.Net)
		}
		require.True(t, itemSum.Equal(totals.Subtotal), "run %d", run)

		if totals.Total.IsZero() {
			continue
		}
		for _, direction := range []documentdomain.Direction{documentdomain.DirectionSale, documentdomain.DirectionPurchase} {
			txn, err := ledgerservice.BuildPosting(totals, direction, accounts)
			require.NoError(t, err, "run %d %s", run, direction)
			require.True(t, txn.TotalDebit.Equal(txn.TotalCredit), "run %d %s", run, direction)
			require.True(t, txn.TotalDebit.Equal(totals.Total), "run %d %s", run, direction)
		}
	}
}

func TestComputeTotals_NoTaxIdentity(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for run := 0; run < 200; run++ {
		totals, err := ComputeTotals("USD", 2, randomItems(r, false))
		require.NoError(t, err)
		assert.True(t, totals.TaxAmount.IsZero())
		assert.True(t, totals.Withholding.IsZero())
		assert.True(t, totals.Total.Equal(totals.Subtotal))
		assert.True(t, totals.AmountDue.Equal(totals.Subtotal))
	}
}
