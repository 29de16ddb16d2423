package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/taxledger/internal/clock"
	documentdomain "github.com/smallbiznis/taxledger/internal/document/domain"
	ledgerdomain "github.com/smallbiznis/taxledger/internal/ledger/domain"
	"github.com/smallbiznis/taxledger/internal/orgcontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ledgerFixture struct {
	db       *gorm.DB
	node     *snowflake.Node
	clock    *clock.FakeClock
	svc      ledgerdomain.Service
	resolver ledgerdomain.AccountResolver
	store    *Store
	orgID    snowflake.ID
	ctx      context.Context
}

func setupLedger(t *testing.T) *ledgerFixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&ledgerdomain.LedgerAccount{},
		&ledgerdomain.AccountRule{},
		&ledgerdomain.LedgerEntry{},
		&ledgerdomain.LedgerEntryLine{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))

	orgID := node.Generate()
	return &ledgerFixture{
		db:       db,
		node:     node,
		clock:    clk,
		svc:      NewService(Params{DB: db, Log: zap.NewNop(), GenID: node, Clock: clk}),
		resolver: NewAccountResolver(ResolverParams{DB: db, Clock: clk}),
		store:    NewStore(StoreParams{DB: db, Log: zap.NewNop(), GenID: node, Clock: clk}),
		orgID:    orgID,
		ctx:      orgcontext.WithOrgID(context.Background(), orgID),
	}
}

func TestResolver_SeededChart(t *testing.T) {
	f := setupLedger(t)
	require.NoError(t, f.svc.SeedDefaultChart(f.ctx))
	// seeding twice is a no-op
	require.NoError(t, f.svc.SeedDefaultChart(f.ctx))

	accounts, err := f.svc.ListAccounts(f.ctx)
	require.NoError(t, err)
	require.Len(t, accounts, len(defaultChart))
	assert.Equal(t, "1100", accounts[0].Code)

	rules, err := f.svc.ListAccountRules(f.ctx)
	require.NoError(t, err)
	assert.Len(t, rules, len(defaultChart))

	for _, role := range ledgerdomain.AllRoles {
		id, err := f.resolver.ResolveAccount(f.ctx, f.orgID, role)
		require.NoError(t, err, role)
		assert.NotZero(t, id)
	}
}

func TestResolver_NotConfigured(t *testing.T) {
	f := setupLedger(t)

	_, err := f.resolver.ResolveAccount(f.ctx, f.orgID, ledgerdomain.RoleRevenue)
	var notConfigured *ledgerdomain.AccountNotConfiguredError
	require.True(t, errors.As(err, &notConfigured))
	assert.Equal(t, ledgerdomain.RoleRevenue, notConfigured.Role)
	assert.Equal(t, f.orgID, notConfigured.OrgID)

	_, err = f.resolver.ResolveAccount(f.ctx, f.orgID, ledgerdomain.AccountRole("CASH"))
	assert.ErrorIs(t, err, ledgerdomain.ErrInvalidRole)
}

func TestResolver_PriorityAndWindow(t *testing.T) {
	f := setupLedger(t)
	require.NoError(t, f.svc.SeedDefaultChart(f.ctx))

	_, err := f.svc.CreateAccount(f.ctx, ledgerdomain.CreateAccountRequest{Code: "4100", Name: "Service Revenue", Type: "revenue"})
	require.NoError(t, err)
	_, err = f.svc.CreateAccount(f.ctx, ledgerdomain.CreateAccountRequest{Code: "4100", Name: "dup", Type: "revenue"})
	assert.ErrorIs(t, err, ledgerdomain.ErrDuplicateAccount)

	future := f.clock.Now().Add(24 * time.Hour)
	_, err = f.svc.UpsertAccountRule(f.ctx, ledgerdomain.UpsertAccountRuleRequest{
		Role:          ledgerdomain.RoleRevenue,
		AccountCode:   "4100",
		Priority:      10,
		EffectiveFrom: &future,
	})
	require.NoError(t, err)

	var seeded ledgerdomain.LedgerAccount
	require.NoError(t, f.db.Where("org_id = ? AND code = ?", f.orgID, "4000").Take(&seeded).Error)
	var service ledgerdomain.LedgerAccount
	require.NoError(t, f.db.Where("org_id = ? AND code = ?", f.orgID, "4100").Take(&service).Error)

	id, err := f.resolver.ResolveAccount(f.ctx, f.orgID, ledgerdomain.RoleRevenue)
	require.NoError(t, err)
	assert.Equal(t, seeded.ID, id, "rule not yet effective")

	f.clock.Advance(48 * time.Hour)
	id, err = f.resolver.ResolveAccount(f.ctx, f.orgID, ledgerdomain.RoleRevenue)
	require.NoError(t, err)
	assert.Equal(t, service.ID, id)

	disabled := false
	_, err = f.svc.UpsertAccountRule(f.ctx, ledgerdomain.UpsertAccountRuleRequest{
		Role:        ledgerdomain.RoleRevenue,
		AccountCode: "4100",
		Priority:    10,
		IsEnabled:   &disabled,
	})
	require.NoError(t, err)
	id, err = f.resolver.ResolveAccount(f.ctx, f.orgID, ledgerdomain.RoleRevenue)
	require.NoError(t, err)
	assert.Equal(t, seeded.ID, id)

	_, err = f.svc.UpsertAccountRule(f.ctx, ledgerdomain.UpsertAccountRuleRequest{Role: "REVENUE", AccountCode: "9999"})
	assert.ErrorIs(t, err, ledgerdomain.ErrNotFound)
	_, err = f.svc.UpsertAccountRule(f.ctx, ledgerdomain.UpsertAccountRuleRequest{Role: "NOPE", AccountCode: "4100"})
	assert.ErrorIs(t, err, ledgerdomain.ErrInvalidRole)
}

func TestUpsertAccountRule_NewDisabledRuleStaysDisabled(t *testing.T) {
	f := setupLedger(t)
	_, err := f.svc.CreateAccount(f.ctx, ledgerdomain.CreateAccountRequest{Code: "4000", Name: "Revenue", Type: "revenue"})
	require.NoError(t, err)

	disabled := false
	resp, err := f.svc.UpsertAccountRule(f.ctx, ledgerdomain.UpsertAccountRuleRequest{
		Role:        ledgerdomain.RoleRevenue,
		AccountCode: "4000",
		IsEnabled:   &disabled,
	})
	require.NoError(t, err)
	assert.False(t, resp.IsEnabled)

	var stored ledgerdomain.AccountRule
	require.NoError(t, f.db.Where("org_id = ? AND role = ?", f.orgID, ledgerdomain.RoleRevenue).Take(&stored).Error)
	assert.False(t, stored.IsEnabled)

	_, err = f.resolver.ResolveAccount(f.ctx, f.orgID, ledgerdomain.RoleRevenue)
	var notConfigured *ledgerdomain.AccountNotConfiguredError
	require.True(t, errors.As(err, &notConfigured))
	assert.Equal(t, ledgerdomain.RoleRevenue, notConfigured.Role)

	enabled := true
	_, err = f.svc.UpsertAccountRule(f.ctx, ledgerdomain.UpsertAccountRuleRequest{
		Role:        ledgerdomain.RoleRevenue,
		AccountCode: "4000",
		IsEnabled:   &enabled,
	})
	require.NoError(t, err)
	id, err := f.resolver.ResolveAccount(f.ctx, f.orgID, ledgerdomain.RoleRevenue)
	require.NoError(t, err)
	assert.NotZero(t, id)
}

func TestResolveForDirection_OnlyNeededRoles(t *testing.T) {
	f := setupLedger(t)
	_, err := f.svc.CreateAccount(f.ctx, ledgerdomain.CreateAccountRequest{Code: "1100", Name: "AR", Type: "asset"})
	require.NoError(t, err)
	_, err = f.svc.CreateAccount(f.ctx, ledgerdomain.CreateAccountRequest{Code: "4000", Name: "Revenue", Type: "revenue"})
	require.NoError(t, err)
	for role, code := range map[ledgerdomain.AccountRole]string{ledgerdomain.RoleReceivable: "1100", ledgerdomain.RoleRevenue: "4000"} {
		_, err = f.svc.UpsertAccountRule(f.ctx, ledgerdomain.UpsertAccountRuleRequest{Role: role, AccountCode: code})
		require.NoError(t, err)
	}

	accounts, err := ResolveForDirection(f.ctx, f.resolver, f.orgID, documentdomain.DirectionSale, totalsOf(10000, 0, 0))
	require.NoError(t, err)
	assert.Len(t, accounts, 2)

	_, err = ResolveForDirection(f.ctx, f.resolver, f.orgID, documentdomain.DirectionSale, totalsOf(10000, 1800, 0))
	assert.ErrorIs(t, err, ledgerdomain.ErrAccountNotConfigured)
}

func TestStore_PersistTransactionIsIdempotent(t *testing.T) {
	f := setupLedger(t)
	require.NoError(t, f.svc.SeedDefaultChart(f.ctx))

	totals := totalsOf(1000000, 180000, 60000)
	accounts, err := ResolveForDirection(f.ctx, f.resolver, f.orgID, documentdomain.DirectionSale, totals)
	require.NoError(t, err)
	txn, err := BuildPosting(totals, documentdomain.DirectionSale, accounts)
	require.NoError(t, err)

	txn.OrgID = f.orgID
	txn.SourceID = f.node.Generate()
	txn.OccurredAt = f.clock.Now()

	entryID, err := f.store.PersistTransaction(f.ctx, txn)
	require.NoError(t, err)
	require.NotZero(t, entryID)

	again, err := f.store.PersistTransaction(f.ctx, txn)
	require.NoError(t, err)
	assert.Equal(t, entryID, again)

	var entries, lines int64
	require.NoError(t, f.db.Model(&ledgerdomain.LedgerEntry{}).Count(&entries).Error)
	require.NoError(t, f.db.Model(&ledgerdomain.LedgerEntryLine{}).Count(&lines).Error)
	assert.Equal(t, int64(1), entries)
	assert.Equal(t, int64(4), lines)

	entry, err := f.store.GetEntry(f.ctx, f.orgID, entryID)
	require.NoError(t, err)
	require.Len(t, entry.Lines, 4)
	assert.Equal(t, ledgerdomain.SourceTypeInvoice, entry.SourceType)

	balances, err := f.store.TrialBalance(f.ctx, f.orgID, "usd")
	require.NoError(t, err)
	require.Len(t, balances, 4)

	byCode := make(map[string]ledgerdomain.AccountBalance)
	for _, b := range balances {
		byCode[b.AccountCode] = b
	}
	assert.Equal(t, "11200", byCode["1100"].Balance.String())
	assert.Equal(t, "600", byCode["1150"].Balance.String())
	assert.Equal(t, "-1800", byCode["2200"].Balance.String())
	assert.Equal(t, "-10000", byCode["4000"].Balance.String())

	_, err = f.store.GetEntry(f.ctx, f.orgID, f.node.Generate())
	assert.ErrorIs(t, err, ledgerdomain.ErrNotFound)
}

func TestStore_RejectsInvalidTransactions(t *testing.T) {
	f := setupLedger(t)

	txn, err := BuildPosting(totalsOf(1000, 0, 0), documentdomain.DirectionSale, fullChart())
	require.NoError(t, err)

	_, err = f.store.PersistTransaction(f.ctx, txn)
	assert.ErrorIs(t, err, ledgerdomain.ErrInvalidOrganization)

	txn.OrgID = f.orgID
	_, err = f.store.PersistTransaction(f.ctx, txn)
	assert.ErrorIs(t, err, ledgerdomain.ErrInvalidSourceID)

	txn.SourceID = f.node.Generate()
	txn.OccurredAt = f.clock.Now()
	txn.Lines[0].Debit = txn.Lines[0].Debit.Add(txn.Lines[0].Debit)
	_, err = f.store.PersistTransaction(f.ctx, txn)
	assert.ErrorIs(t, err, ledgerdomain.ErrUnbalancedPosting)

	var entries int64
	require.NoError(t, f.db.Model(&ledgerdomain.LedgerEntry{}).Count(&entries).Error)
	assert.Zero(t, entries)
}
