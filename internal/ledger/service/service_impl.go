package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/taxledger/internal/clock"
	ledgerdomain "github.com/smallbiznis/taxledger/internal/ledger/domain"
	"github.com/smallbiznis/taxledger/internal/orgcontext"
	"github.com/smallbiznis/taxledger/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
}

func NewService(p Params) ledgerdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("ledger.service"),
		genID: p.GenID,
		clock: p.Clock,
	}
}

type defaultAccount struct {
	code string
	name string
	typ  ledgerdomain.AccountType
	role ledgerdomain.AccountRole
}

var defaultChart = []defaultAccount{
	{"1100", "Accounts Receivable", ledgerdomain.AccountTypeAsset, ledgerdomain.RoleReceivable},
	{"1150", "Withholding Tax Receivable", ledgerdomain.AccountTypeAsset, ledgerdomain.RoleWithholdingReceivable},
	{"1160", "Input Tax Receivable", ledgerdomain.AccountTypeAsset, ledgerdomain.RoleTaxReceivable},
	{"2100", "Accounts Payable", ledgerdomain.AccountTypeLiability, ledgerdomain.RolePayable},
	{"2200", "Output Tax Payable", ledgerdomain.AccountTypeLiability, ledgerdomain.RoleTaxPayable},
	{"2250", "Withholding Tax Payable", ledgerdomain.AccountTypeLiability, ledgerdomain.RoleWithholdingPayable},
	{"4000", "Sales Revenue", ledgerdomain.AccountTypeRevenue, ledgerdomain.RoleRevenue},
	{"5000", "Purchases", ledgerdomain.AccountTypeExpense, ledgerdomain.RoleExpense},
}

func (s *Service) CreateAccount(ctx context.Context, req ledgerdomain.CreateAccountRequest) (*ledgerdomain.AccountResponse, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, ledgerdomain.ErrInvalidOrganization
	}

	code := strings.TrimSpace(req.Code)
	if code == "" {
		return nil, ledgerdomain.ErrInvalidCode
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, ledgerdomain.ErrInvalidName
	}
	accountType := ledgerdomain.AccountType(strings.ToLower(strings.TrimSpace(string(req.Type))))
	if !accountType.Valid() {
		return nil, ledgerdomain.ErrInvalidAccountType
	}

	account := ledgerdomain.LedgerAccount{
		ID:        s.genID.Generate(),
		OrgID:     orgID,
		Code:      code,
		Name:      name,
		Type:      accountType,
		IsActive:  true,
		CreatedAt: s.clock.Now(),
	}
	if err := s.db.WithContext(ctx).Create(&account).Error; err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, ledgerdomain.ErrDuplicateAccount
		}
		return nil, err
	}

	resp := toAccountResponse(account)
	return &resp, nil
}

func (s *Service) ListAccounts(ctx context.Context) ([]ledgerdomain.AccountResponse, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, ledgerdomain.ErrInvalidOrganization
	}

	var accounts []ledgerdomain.LedgerAccount
	if err := s.db.WithContext(ctx).
		Where("org_id = ?", orgID).
		Order("code ASC").
		Find(&accounts).Error; err != nil {
		return nil, err
	}

	resp := make([]ledgerdomain.AccountResponse, 0, len(accounts))
	for _, account := range accounts {
		resp = append(resp, toAccountResponse(account))
	}
	return resp, nil
}

type accountRuleRow struct {
	ledgerdomain.AccountRule
	AccountCode string
}

func (s *Service) ListAccountRules(ctx context.Context) ([]ledgerdomain.AccountRuleResponse, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, ledgerdomain.ErrInvalidOrganization
	}

	var rows []accountRuleRow
	err := s.db.WithContext(ctx).
		Table("account_rules AS ar").
		Select("ar.*, la.code AS account_code").
		Joins("JOIN ledger_accounts la ON la.id = ar.account_id").
		Where("ar.org_id = ?", orgID).
		Order("ar.role ASC, ar.priority DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	resp := make([]ledgerdomain.AccountRuleResponse, 0, len(rows))
	for _, row := range rows {
		resp = append(resp, toRuleResponse(row.AccountRule, row.AccountCode))
	}
	return resp, nil
}

// UpsertAccountRule maps a role to an account by code. (org, role, priority)
// identifies the rule.
func (s *Service) UpsertAccountRule(ctx context.Context, req ledgerdomain.UpsertAccountRuleRequest) (*ledgerdomain.AccountRuleResponse, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, ledgerdomain.ErrInvalidOrganization
	}

	role := ledgerdomain.AccountRole(strings.ToUpper(strings.TrimSpace(string(req.Role))))
	if !role.Valid() {
		return nil, ledgerdomain.ErrInvalidRole
	}
	code := strings.TrimSpace(req.AccountCode)
	if code == "" {
		return nil, ledgerdomain.ErrInvalidCode
	}
	if req.EffectiveFrom != nil && req.EffectiveTo != nil && !req.EffectiveTo.After(*req.EffectiveFrom) {
		return nil, ledgerdomain.ErrInvalidWindow
	}

	var account ledgerdomain.LedgerAccount
	err := s.db.WithContext(ctx).Where("org_id = ? AND code = ?", orgID, code).Take(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ledgerdomain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	enabled := true
	if req.IsEnabled != nil {
		enabled = *req.IsEnabled
	}

	now := s.clock.Now()
	var rule ledgerdomain.AccountRule
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("org_id = ? AND role = ? AND priority = ?", orgID, role, req.Priority).Take(&rule).Error
		isNew := false
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			isNew = true
			rule = ledgerdomain.AccountRule{
				ID:        s.genID.Generate(),
				OrgID:     orgID,
				Role:      role,
				Priority:  req.Priority,
				CreatedAt: now,
			}
		case err != nil:
			return err
		}

		rule.AccountID = account.ID
		rule.EffectiveFrom = utcPtr(req.EffectiveFrom)
		rule.EffectiveTo = utcPtr(req.EffectiveTo)
		rule.IsEnabled = enabled
		rule.UpdatedAt = now
		if isNew {
			// Select("*") writes is_enabled=false instead of the column default.
			return tx.Select("*").Create(&rule).Error
		}
		return tx.Save(&rule).Error
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("account rule saved",
		zap.String("org_id", orgID.String()),
		zap.String("role", string(role)),
		zap.String("account_code", account.Code),
		zap.Int("priority", rule.Priority),
	)

	resp := toRuleResponse(rule, account.Code)
	return &resp, nil
}

// SeedDefaultChart creates the default accounts and role mappings for the
// org in context. Existing rows are left untouched.
func (s *Service) SeedDefaultChart(ctx context.Context) error {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return ledgerdomain.ErrInvalidOrganization
	}

	now := s.clock.Now()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, def := range defaultChart {
			account := ledgerdomain.LedgerAccount{
				ID:        s.genID.Generate(),
				OrgID:     orgID,
				Code:      def.code,
				Name:      def.name,
				Type:      def.typ,
				IsActive:  true,
				CreatedAt: now,
			}
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "org_id"}, {Name: "code"}},
				DoNothing: true,
			}).Create(&account).Error; err != nil {
				return err
			}
			if err := tx.Where("org_id = ? AND code = ?", orgID, def.code).Take(&account).Error; err != nil {
				return err
			}

			rule := ledgerdomain.AccountRule{
				ID:        s.genID.Generate(),
				OrgID:     orgID,
				Role:      def.role,
				Priority:  0,
				AccountID: account.ID,
				IsEnabled: true,
				CreatedAt: now,
				UpdatedAt: now,
			}
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "org_id"}, {Name: "role"}, {Name: "priority"}},
				DoNothing: true,
			}).Create(&rule).Error; err != nil {
				return err
			}
		}
		s.log.Info("default chart of accounts seeded", zap.String("org_id", orgID.String()))
		return nil
	})
}

func toAccountResponse(account ledgerdomain.LedgerAccount) ledgerdomain.AccountResponse {
	return ledgerdomain.AccountResponse{
		ID:        account.ID.String(),
		Code:      account.Code,
		Name:      account.Name,
		Type:      account.Type,
		IsActive:  account.IsActive,
		CreatedAt: account.CreatedAt,
	}
}

func toRuleResponse(rule ledgerdomain.AccountRule, accountCode string) ledgerdomain.AccountRuleResponse {
	return ledgerdomain.AccountRuleResponse{
		ID:            rule.ID.String(),
		Role:          rule.Role,
		AccountID:     rule.AccountID.String(),
		AccountCode:   accountCode,
		Priority:      rule.Priority,
		EffectiveFrom: rule.EffectiveFrom,
		EffectiveTo:   rule.EffectiveTo,
		IsEnabled:     rule.IsEnabled,
		UpdatedAt:     rule.UpdatedAt,
	}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
