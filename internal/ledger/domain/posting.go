package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/taxledger/pkg/money"
)

// AccountRole is a semantic placeholder resolved to a concrete account per org.
type AccountRole string

const (
	RoleRevenue               AccountRole = "REVENUE"
	RoleExpense               AccountRole = "EXPENSE"
	RoleTaxPayable            AccountRole = "TAX_PAYABLE"
	RoleTaxReceivable         AccountRole = "TAX_RECEIVABLE"
	RoleWithholdingReceivable AccountRole = "WITHHOLDING_RECEIVABLE"
	RoleWithholdingPayable    AccountRole = "WITHHOLDING_PAYABLE"
	RoleReceivable            AccountRole = "RECEIVABLE"
	RolePayable               AccountRole = "PAYABLE"
)

var AllRoles = []AccountRole{
	RoleReceivable,
	RoleRevenue,
	RoleTaxPayable,
	RoleWithholdingReceivable,
	RolePayable,
	RoleExpense,
	RoleTaxReceivable,
	RoleWithholdingPayable,
}

func (r AccountRole) Valid() bool {
	for _, role := range AllRoles {
		if r == role {
			return true
		}
	}
	return false
}

// AccountResolver is the chart-of-accounts contract. Implementations return
// exactly one active account or an *AccountNotConfiguredError.
type AccountResolver interface {
	ResolveAccount(ctx context.Context, orgID snowflake.ID, role AccountRole) (snowflake.ID, error)
}

// ResolvedAccounts holds the accounts one posting may touch.
type ResolvedAccounts map[AccountRole]snowflake.ID

// PostingLine carries exactly one non-zero side.
type PostingLine struct {
	AccountID snowflake.ID `json:"account_id"`
	Role      AccountRole  `json:"role"`
	Debit     money.Money  `json:"debit"`
	Credit    money.Money  `json:"credit"`
}

func (l PostingLine) Direction() LedgerEntryDirection {
	if l.Debit.IsPositive() {
		return LedgerEntryDirectionDebit
	}
	return LedgerEntryDirectionCredit
}

func (l PostingLine) Amount() money.Money {
	if l.Debit.IsPositive() {
		return l.Debit
	}
	return l.Credit
}

// LedgerTransaction is a balanced, postable set of lines. The header fields
// are filled by the caller before handing it to a Store.
type LedgerTransaction struct {
	OrgID        snowflake.ID     `json:"org_id,omitempty"`
	SourceType   LedgerSourceType `json:"source_type"`
	SourceID     snowflake.ID     `json:"source_id,omitempty"`
	Currency     string           `json:"currency"`
	ExchangeRate *decimal.Decimal `json:"exchange_rate,omitempty"`
	Memo         *string          `json:"memo,omitempty"`
	OccurredAt   time.Time        `json:"occurred_at"`
	Lines        []PostingLine    `json:"lines"`
	TotalDebit   money.Money      `json:"total_debit"`
	TotalCredit  money.Money      `json:"total_credit"`
}

// Store is the append-only ledger. Retrying PersistTransaction for the same
// (org, source type, source id) returns the existing entry.
type Store interface {
	PersistTransaction(ctx context.Context, tx LedgerTransaction) (snowflake.ID, error)
	GetEntry(ctx context.Context, orgID, entryID snowflake.ID) (*EntryResponse, error)
	TrialBalance(ctx context.Context, orgID snowflake.ID, currency string) ([]AccountBalance, error)
}

type EntryResponse struct {
	ID           string           `json:"id"`
	SourceType   LedgerSourceType `json:"source_type"`
	SourceID     string           `json:"source_id"`
	Currency     string           `json:"currency"`
	ExchangeRate *decimal.Decimal `json:"exchange_rate,omitempty"`
	OccurredAt   time.Time        `json:"occurred_at"`
	Lines        []EntryLine      `json:"lines"`
}

type EntryLine struct {
	AccountID string               `json:"account_id"`
	Role      AccountRole          `json:"role"`
	Direction LedgerEntryDirection `json:"direction"`
	Amount    decimal.Decimal      `json:"amount"`
}

type AccountBalance struct {
	AccountID   string          `json:"account_id"`
	AccountCode string          `json:"account_code"`
	AccountName string          `json:"account_name"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	Balance     decimal.Decimal `json:"balance"`
}
