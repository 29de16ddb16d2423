package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/taxledger/internal/clock"
	ledgerdomain "github.com/smallbiznis/taxledger/internal/ledger/domain"
	obsmetrics "github.com/smallbiznis/taxledger/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type StoreParams struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Store struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	obsMetrics *obsmetrics.Metrics
}

func NewStore(p StoreParams) *Store {
	return &Store{
		db:         p.DB,
		log:        p.Log.Named("ledger.store"),
		genID:      p.GenID,
		clock:      p.Clock,
		obsMetrics: p.ObsMetrics,
	}
}

func ProvideStore(s *Store) ledgerdomain.Store { return s }

// PersistTransaction appends the transaction. It re-checks the balance before
// touching the database.
func (s *Store) PersistTransaction(ctx context.Context, txn ledgerdomain.LedgerTransaction) (snowflake.ID, error) {
	return s.persist(ctx, s.db, txn)
}

// PersistTransactionTx runs inside a caller-owned gorm transaction so the
// ledger entry commits together with the source document.
func (s *Store) PersistTransactionTx(ctx context.Context, tx *gorm.DB, txn ledgerdomain.LedgerTransaction) (snowflake.ID, error) {
	return s.persist(ctx, tx, txn)
}

func (s *Store) persist(ctx context.Context, db *gorm.DB, txn ledgerdomain.LedgerTransaction) (snowflake.ID, error) {
	if txn.OrgID == 0 {
		return 0, ledgerdomain.ErrInvalidOrganization
	}
	sourceType := ledgerdomain.LedgerSourceType(strings.TrimSpace(string(txn.SourceType)))
	if sourceType == "" {
		return 0, ledgerdomain.ErrInvalidSourceType
	}
	if txn.SourceID == 0 {
		return 0, ledgerdomain.ErrInvalidSourceID
	}
	currency := strings.ToUpper(strings.TrimSpace(txn.Currency))
	if currency == "" {
		return 0, ledgerdomain.ErrInvalidCurrency
	}
	if txn.OccurredAt.IsZero() {
		return 0, ledgerdomain.ErrInvalidOccurredAt
	}
	if len(txn.Lines) < 2 {
		return 0, ledgerdomain.ErrInvalidEntryLines
	}
	if err := ledgerdomain.ValidateBalanced(txn.Lines); err != nil {
		return 0, err
	}

	var entryID snowflake.ID
	inserted := false
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := s.clock.Now()
		entry := ledgerdomain.LedgerEntry{
			ID:           s.genID.Generate(),
			OrgID:        txn.OrgID,
			SourceType:   sourceType,
			SourceID:     txn.SourceID,
			Currency:     currency,
			ExchangeRate: txn.ExchangeRate,
			Memo:         txn.Memo,
			OccurredAt:   txn.OccurredAt.UTC(),
			CreatedAt:    now,
		}
		result := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "org_id"}, {Name: "source_type"}, {Name: "source_id"}},
			DoNothing: true,
		}).Create(&entry)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			existing, err := s.findEntryID(ctx, tx, txn.OrgID, sourceType, txn.SourceID)
			if err != nil {
				return err
			}
			entryID = existing
			return nil
		}
		entryID = entry.ID
		inserted = true

		lines := make([]ledgerdomain.LedgerEntryLine, 0, len(txn.Lines))
		for _, line := range txn.Lines {
			lines = append(lines, ledgerdomain.LedgerEntryLine{
				ID:            s.genID.Generate(),
				LedgerEntryID: entry.ID,
				AccountID:     line.AccountID,
				Role:          line.Role,
				Direction:     line.Direction(),
				Amount:        line.Amount().Decimal(),
				CreatedAt:     now,
			})
		}
		return tx.Create(&lines).Error
	})
	if err != nil {
		return 0, err
	}

	if inserted {
		s.obsMetrics.RecordLedgerEntry(ctx, string(sourceType))
		s.log.Info("ledger entry posted",
			zap.String("org_id", txn.OrgID.String()),
			zap.String("ledger_entry_id", entryID.String()),
			zap.String("source_type", string(sourceType)),
			zap.String("source_id", txn.SourceID.String()),
			zap.String("total", txn.TotalDebit.String()),
		)
	} else {
		s.log.Info("ledger entry already posted",
			zap.String("ledger_entry_id", entryID.String()),
			zap.String("source_id", txn.SourceID.String()),
		)
	}
	return entryID, nil
}

func (s *Store) findEntryID(ctx context.Context, db *gorm.DB, orgID snowflake.ID, sourceType ledgerdomain.LedgerSourceType, sourceID snowflake.ID) (snowflake.ID, error) {
	var entry ledgerdomain.LedgerEntry
	err := db.WithContext(ctx).
		Where("org_id = ? AND source_type = ? AND source_id = ?", orgID, sourceType, sourceID).
		Take(&entry).Error
	if err != nil {
		return 0, err
	}
	return entry.ID, nil
}

func (s *Store) GetEntry(ctx context.Context, orgID, entryID snowflake.ID) (*ledgerdomain.EntryResponse, error) {
	if orgID == 0 {
		return nil, ledgerdomain.ErrInvalidOrganization
	}

	var entry ledgerdomain.LedgerEntry
	err := s.db.WithContext(ctx).Where("org_id = ? AND id = ?", orgID, entryID).Take(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ledgerdomain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var lines []ledgerdomain.LedgerEntryLine
	if err := s.db.WithContext(ctx).
		Where("ledger_entry_id = ?", entry.ID).
		Order("id ASC").
		Find(&lines).Error; err != nil {
		return nil, err
	}

	resp := &ledgerdomain.EntryResponse{
		ID:           entry.ID.String(),
		SourceType:   entry.SourceType,
		SourceID:     entry.SourceID.String(),
		Currency:     entry.Currency,
		ExchangeRate: entry.ExchangeRate,
		OccurredAt:   entry.OccurredAt,
		Lines:        make([]ledgerdomain.EntryLine, 0, len(lines)),
	}
	for _, line := range lines {
		resp.Lines = append(resp.Lines, ledgerdomain.EntryLine{
			AccountID: line.AccountID.String(),
			Role:      line.Role,
			Direction: line.Direction,
			Amount:    line.Amount,
		})
	}
	return resp, nil
}

type balanceRow struct {
	AccountID   snowflake.ID
	AccountCode string
	AccountName string
	Direction   ledgerdomain.LedgerEntryDirection
	Amount      decimal.Decimal
}

// TrialBalance sums posted lines per account. Amounts are summed in Go so
// the totals stay exact on every dialect.
func (s *Store) TrialBalance(ctx context.Context, orgID snowflake.ID, currency string) ([]ledgerdomain.AccountBalance, error) {
	if orgID == 0 {
		return nil, ledgerdomain.ErrInvalidOrganization
	}

	stmt := s.db.WithContext(ctx).
		Table("ledger_entry_lines AS l").
		Select("l.account_id, a.code AS account_code, a.name AS account_name, l.direction, l.amount").
		Joins("JOIN ledger_entries e ON e.id = l.ledger_entry_id").
		Joins("JOIN ledger_accounts a ON a.id = l.account_id").
		Where("e.org_id = ?", orgID)
	if c := strings.ToUpper(strings.TrimSpace(currency)); c != "" {
		stmt = stmt.Where("e.currency = ?", c)
	}

	var rows []balanceRow
	if err := stmt.Order("a.code ASC").Scan(&rows).Error; err != nil {
		return nil, err
	}

	index := make(map[snowflake.ID]int)
	out := make([]ledgerdomain.AccountBalance, 0)
	for _, row := range rows {
		i, ok := index[row.AccountID]
		if !ok {
			i = len(out)
			index[row.AccountID] = i
			out = append(out, ledgerdomain.AccountBalance{
				AccountID:   row.AccountID.String(),
				AccountCode: row.AccountCode,
				AccountName: row.AccountName,
				Debit:       decimal.Zero,
				Credit:      decimal.Zero,
			})
		}
		if row.Direction == ledgerdomain.LedgerEntryDirectionDebit {
			out[i].Debit = out[i].Debit.Add(row.Amount)
		} else {
			out[i].Credit = out[i].Credit.Add(row.Amount)
		}
	}
	for i := range out {
		out[i].Balance = out[i].Debit.Sub(out[i].Credit)
	}
	return out, nil
}

