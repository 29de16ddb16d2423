package service

import (
	documentdomain "github.com/smallbiznis/taxledger/internal/document/domain"
	ledgerdomain "github.com/smallbiznis/taxledger/internal/ledger/domain"
	"github.com/smallbiznis/taxledger/pkg/money"
)

type postingRoles struct {
	sourceType  ledgerdomain.LedgerSourceType
	counterpart ledgerdomain.AccountRole // AR or AP, carries amount due
	principal   ledgerdomain.AccountRole // revenue or expense, carries subtotal
	tax         ledgerdomain.AccountRole
	withholding ledgerdomain.AccountRole
}

var rolesByDirection = map[documentdomain.Direction]postingRoles{
	documentdomain.DirectionSale: {
		sourceType:  ledgerdomain.SourceTypeInvoice,
		counterpart: ledgerdomain.RoleReceivable,
		principal:   ledgerdomain.RoleRevenue,
		tax:         ledgerdomain.RoleTaxPayable,
		withholding: ledgerdomain.RoleWithholdingReceivable,
	},
	documentdomain.DirectionPurchase: {
		sourceType:  ledgerdomain.SourceTypeBill,
		counterpart: ledgerdomain.RolePayable,
		principal:   ledgerdomain.RoleExpense,
		tax:         ledgerdomain.RoleTaxReceivable,
		withholding: ledgerdomain.RoleWithholdingPayable,
	},
}

// SourceTypeFor maps a document direction to its ledger source type.
func SourceTypeFor(direction documentdomain.Direction) (ledgerdomain.LedgerSourceType, error) {
	roles, ok := rolesByDirection[documentdomain.NormalizeDirection(direction)]
	if !ok {
		return "", documentdomain.ErrInvalidDirection
	}
	return roles.sourceType, nil
}

// RequiredRoles lists the roles a posting of totals will touch, in line order.
func RequiredRoles(totals documentdomain.DocumentTotals, direction documentdomain.Direction) ([]ledgerdomain.AccountRole, error) {
	roles, ok := rolesByDirection[documentdomain.NormalizeDirection(direction)]
	if !ok {
		return nil, documentdomain.ErrInvalidDirection
	}

	out := make([]ledgerdomain.AccountRole, 0, 4)
	for _, leg := range postingLegs(totals, roles) {
		if leg.amount.IsPositive() {
			out = append(out, leg.role)
		}
	}
	return out, nil
}

type postingLeg struct {
	role   ledgerdomain.AccountRole
	amount money.Money
	debit  bool
}

// postingLegs returns the four candidate lines in posting order.
//
//	SALE:     DR receivable amountDue, CR revenue subtotal, CR tax payable tax, DR withholding receivable withholding
//	PURCHASE: DR expense subtotal, DR tax receivable tax, CR payable amountDue, CR withholding payable withholding
func postingLegs(totals documentdomain.DocumentTotals, roles postingRoles) []postingLeg {
	if roles.counterpart == ledgerdomain.RoleReceivable {
		return []postingLeg{
			{role: roles.counterpart, amount: totals.AmountDue, debit: true},
			{role: roles.principal, amount: totals.Subtotal},
			{role: roles.tax, amount: totals.TaxAmount},
			{role: roles.withholding, amount: totals.Withholding, debit: true},
		}
	}
	return []postingLeg{
		{role: roles.principal, amount: totals.Subtotal, debit: true},
		{role: roles.tax, amount: totals.TaxAmount, debit: true},
		{role: roles.counterpart, amount: totals.AmountDue},
		{role: roles.withholding, amount: totals.Withholding},
	}
}

// BuildPosting turns document totals into a balanced ledger transaction.
// Zero legs are omitted. A missing account fails closed with
// *AccountNotConfiguredError, an imbalance with *UnbalancedPostingError.
// No I/O is performed.
func BuildPosting(totals documentdomain.DocumentTotals, direction documentdomain.Direction, accounts ledgerdomain.ResolvedAccounts) (ledgerdomain.LedgerTransaction, error) {
	roles, ok := rolesByDirection[documentdomain.NormalizeDirection(direction)]
	if !ok {
		return ledgerdomain.LedgerTransaction{}, documentdomain.ErrInvalidDirection
	}

	scale := totals.Subtotal.Scale()
	for _, amt := range []money.Money{totals.Subtotal, totals.TaxAmount, totals.Withholding, totals.AmountDue} {
		if amt.IsNegative() {
			return ledgerdomain.LedgerTransaction{}, money.ErrNegativeAmount
		}
	}

	tx := ledgerdomain.LedgerTransaction{
		SourceType:  roles.sourceType,
		Currency:    totals.Currency,
		TotalDebit:  money.Zero(scale),
		TotalCredit: money.Zero(scale),
	}
	for _, leg := range postingLegs(totals, roles) {
		if !leg.amount.IsPositive() {
			continue
		}
		accountID, ok := accounts[leg.role]
		if !ok || accountID == 0 {
			return ledgerdomain.LedgerTransaction{}, &ledgerdomain.AccountNotConfiguredError{Role: leg.role}
		}

		line := ledgerdomain.PostingLine{
			AccountID: accountID,
			Role:      leg.role,
			Debit:     money.Zero(scale),
			Credit:    money.Zero(scale),
		}
		if leg.debit {
			line.Debit = leg.amount
			tx.TotalDebit = tx.TotalDebit.Add(leg.amount)
		} else {
			line.Credit = leg.amount
			tx.TotalCredit = tx.TotalCredit.Add(leg.amount)
		}
		tx.Lines = append(tx.Lines, line)
	}

	if err := ledgerdomain.ValidateBalanced(tx.Lines); err != nil {
		return ledgerdomain.LedgerTransaction{}, err
	}
	return tx, nil
}
