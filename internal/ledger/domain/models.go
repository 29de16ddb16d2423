package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// LedgerEntryDirection represents debit or credit postings.
type LedgerEntryDirection string

const (
	LedgerEntryDirectionDebit  LedgerEntryDirection = "debit"
	LedgerEntryDirectionCredit LedgerEntryDirection = "credit"
)

type LedgerSourceType string

const (
	SourceTypeInvoice LedgerSourceType = "invoice" // SALE document
	SourceTypeBill    LedgerSourceType = "bill"    // PURCHASE document
)

type AccountType string

const (
	AccountTypeAsset     AccountType = "asset"
	AccountTypeLiability AccountType = "liability"
	AccountTypeRevenue   AccountType = "revenue"
	AccountTypeExpense   AccountType = "expense"
	AccountTypeEquity    AccountType = "equity"
)

func (t AccountType) Valid() bool {
	switch t {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeRevenue, AccountTypeExpense, AccountTypeEquity:
		return true
	}
	return false
}

// LedgerAccount defines a chart-of-accounts entry.
type LedgerAccount struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	OrgID     snowflake.ID `gorm:"not null;index;uniqueIndex:ux_ledger_accounts_org_code,priority:1"`
	Code      string       `gorm:"type:text;not null;uniqueIndex:ux_ledger_accounts_org_code,priority:2"`
	Name      string       `gorm:"type:text;not null"`
	Type      AccountType  `gorm:"type:text;not null"`
	IsActive  bool         `gorm:"not null;default:true"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (LedgerAccount) TableName() string { return "ledger_accounts" }

// AccountRule maps a semantic role to a concrete account for one org.
// The highest priority rule inside its effective window wins.
type AccountRule struct {
	ID            snowflake.ID `gorm:"primaryKey"`
	OrgID         snowflake.ID `gorm:"not null;uniqueIndex:ux_account_rules_org_role_priority,priority:1"`
	Role          AccountRole  `gorm:"type:text;not null;uniqueIndex:ux_account_rules_org_role_priority,priority:2"`
	Priority      int          `gorm:"not null;default:0;uniqueIndex:ux_account_rules_org_role_priority,priority:3"`
	AccountID     snowflake.ID `gorm:"not null;index"`
	EffectiveFrom *time.Time
	EffectiveTo   *time.Time
	IsEnabled     bool      `gorm:"not null;default:true"`
	CreatedAt     time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt     time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (AccountRule) TableName() string { return "account_rules" }

// LedgerEntry captures the immutable header for a posted document.
type LedgerEntry struct {
	ID           snowflake.ID     `gorm:"primaryKey"`
	OrgID        snowflake.ID     `gorm:"not null;index;uniqueIndex:ux_ledger_entries_source,priority:1"`
	SourceType   LedgerSourceType `gorm:"type:text;not null;uniqueIndex:ux_ledger_entries_source,priority:2"`
	SourceID     snowflake.ID     `gorm:"not null;uniqueIndex:ux_ledger_entries_source,priority:3"`
	Currency     string           `gorm:"type:text;not null"`
	ExchangeRate *decimal.Decimal `gorm:"type:numeric(20,10)"`
	Memo         *string          `gorm:"type:text"`
	OccurredAt   time.Time        `gorm:"not null"`
	CreatedAt    time.Time        `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (LedgerEntry) TableName() string { return "ledger_entries" }

// LedgerEntryLine is a double-entry posting line.
type LedgerEntryLine struct {
	ID            snowflake.ID         `gorm:"primaryKey"`
	LedgerEntryID snowflake.ID         `gorm:"not null;index"`
	AccountID     snowflake.ID         `gorm:"not null;index"`
	Role          AccountRole          `gorm:"type:text;not null"`
	Direction     LedgerEntryDirection `gorm:"type:text;not null"`
	Amount        decimal.Decimal      `gorm:"type:numeric(20,6);not null"`
	CreatedAt     time.Time            `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (LedgerEntryLine) TableName() string { return "ledger_entry_lines" }
