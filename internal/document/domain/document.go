package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// DocumentStatus represents the lifecycle of a persisted document.
type DocumentStatus string

const (
	// DocumentStatusPosted documents have a ledger entry committed with them.
	DocumentStatusPosted DocumentStatus = "POSTED"
)

// Document is an invoice (SALE) or bill (PURCHASE) with its computed totals.
type Document struct {
	ID             snowflake.ID      `gorm:"primaryKey"`
	OrgID          snowflake.ID      `gorm:"not null;index;uniqueIndex:ux_documents_idempotency,priority:1;uniqueIndex:ux_documents_number,priority:1"`
	Direction      Direction         `gorm:"type:varchar(16);not null;uniqueIndex:ux_documents_number,priority:2"`
	Number         *string           `gorm:"type:varchar(64);uniqueIndex:ux_documents_number,priority:3"`
	IdempotencyKey *string           `gorm:"type:varchar(128);uniqueIndex:ux_documents_idempotency,priority:2"`
	Status         DocumentStatus    `gorm:"type:varchar(16);not null"`
	Currency       string            `gorm:"type:varchar(3);not null"`
	ExchangeRate   *decimal.Decimal  `gorm:"type:numeric(20,10)"`
	Subtotal       decimal.Decimal   `gorm:"type:numeric(20,6);not null"`
	TaxAmount      decimal.Decimal   `gorm:"type:numeric(20,6);not null"`
	Withholding    decimal.Decimal   `gorm:"type:numeric(20,6);not null"`
	Total          decimal.Decimal   `gorm:"type:numeric(20,6);not null"`
	AmountDue      decimal.Decimal   `gorm:"type:numeric(20,6);not null"`
	LedgerEntryID  *snowflake.ID     `gorm:"index"`
	Memo           *string           `gorm:"type:text"`
	Metadata       datatypes.JSONMap `gorm:"not null"`
	IssuedAt       time.Time         `gorm:"not null;index"`
	CreatedAt      time.Time         `gorm:"not null;index"`
	UpdatedAt      time.Time         `gorm:"not null"`
}

func (Document) TableName() string { return "documents" }

// DocumentItem is a persisted line with its computed amounts.
type DocumentItem struct {
	ID          snowflake.ID    `gorm:"primaryKey"`
	OrgID       snowflake.ID    `gorm:"not null;index"`
	DocumentID  snowflake.ID    `gorm:"not null;index"`
	Position    int             `gorm:"not null"`
	Description string          `gorm:"type:text;not null"`
	Quantity    decimal.Decimal `gorm:"type:numeric(20,6);not null"`
	UnitPrice   decimal.Decimal `gorm:"type:numeric(20,6);not null"`
	Discount    decimal.Decimal `gorm:"type:numeric(20,6);not null"`
	Gross       decimal.Decimal `gorm:"type:numeric(20,6);not null"`
	Net         decimal.Decimal `gorm:"type:numeric(20,6);not null"`
	Tax         decimal.Decimal `gorm:"type:numeric(20,6);not null"`
	Withholding decimal.Decimal `gorm:"type:numeric(20,6);not null"`
	CreatedAt   time.Time       `gorm:"not null"`
}

func (DocumentItem) TableName() string { return "document_items" }

// DocumentTaxLine snapshots one applied tax line. Later rule edits do not
// change it.
type DocumentTaxLine struct {
	ID               snowflake.ID    `gorm:"primaryKey"`
	OrgID            snowflake.ID    `gorm:"not null;index"`
	DocumentID       snowflake.ID    `gorm:"not null;index"`
	DocumentItemID   snowflake.ID    `gorm:"not null;index"`
	Code             string          `gorm:"type:varchar(64)"`
	TaxType          string          `gorm:"type:varchar(32);not null"`
	Rate             decimal.Decimal `gorm:"type:numeric(9,4);not null"`
	CompoundSequence int             `gorm:"not null"`
	IsCompound       bool            `gorm:"not null"`
	IsWithholding    bool            `gorm:"not null"`
	Base             decimal.Decimal `gorm:"type:numeric(20,6);not null"`
	Amount           decimal.Decimal `gorm:"type:numeric(20,6);not null"`
	CreatedAt        time.Time       `gorm:"not null"`
}

func (DocumentTaxLine) TableName() string { return "document_tax_lines" }
