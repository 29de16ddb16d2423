package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	taxdomain "github.com/smallbiznis/taxledger/internal/tax/domain"
	"github.com/smallbiznis/taxledger/pkg/db"
	"github.com/smallbiznis/taxledger/pkg/db/option"
	"gorm.io/gorm"
)

const taxRuleColumns = `id, org_id, code, name, tax_type, jurisdiction, rate, is_compound, compound_sequence,
	is_withholding, withholding_base, description, is_enabled, created_at, updated_at`

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) taxdomain.Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, rule *taxdomain.TaxRule) error {
	err := r.db.WithContext(ctx).Exec(
		`INSERT INTO tax_rules (`+taxRuleColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rule.ID,
		rule.OrgID,
		rule.Code,
		rule.Name,
		rule.TaxType,
		rule.Jurisdiction,
		rule.Rate,
		rule.IsCompound,
		rule.CompoundSequence,
		rule.IsWithholding,
		rule.WithholdingBase,
		rule.Description,
		rule.IsEnabled,
		rule.CreatedAt,
		rule.UpdatedAt,
	).Error
	if db.IsDuplicateKeyErr(err) {
		return taxdomain.ErrDuplicateTaxCode
	}
	return err
}

func (r *repository) FindByID(ctx context.Context, orgID, id snowflake.ID) (*taxdomain.TaxRule, error) {
	var rule taxdomain.TaxRule
	err := r.db.WithContext(ctx).Raw(
		`SELECT `+taxRuleColumns+`
		 FROM tax_rules
		 WHERE org_id = ? AND id = ?`,
		orgID,
		id,
	).Scan(&rule).Error
	if err != nil {
		return nil, err
	}
	if rule.ID == 0 {
		return nil, nil
	}
	return &rule, nil
}

func (r *repository) FindByCodes(ctx context.Context, orgID snowflake.ID, codes []string) ([]taxdomain.TaxRule, error) {
	if len(codes) == 0 {
		return nil, nil
	}
	var rules []taxdomain.TaxRule
	err := r.db.WithContext(ctx).Raw(
		`SELECT `+taxRuleColumns+`
		 FROM tax_rules
		 WHERE org_id = ? AND code IN ?`,
		orgID,
		codes,
	).Scan(&rules).Error
	if err != nil {
		return nil, err
	}
	return rules, nil
}

func (r *repository) List(ctx context.Context, orgID snowflake.ID, filter taxdomain.ListRequest) ([]taxdomain.TaxRule, error) {
	var items []taxdomain.TaxRule
	stmt := r.db.WithContext(ctx).
		Model(&taxdomain.TaxRule{}).
		Where("org_id = ?", orgID)

	if filter.Name != "" {
		stmt = stmt.Where("name = ?", filter.Name)
	}
	if filter.Code != "" {
		stmt = stmt.Where("code = ?", filter.Code)
	}
	if filter.TaxType != "" {
		stmt = stmt.Where("tax_type = ?", filter.TaxType)
	}
	if filter.IsEnabled != nil {
		stmt = stmt.Where("is_enabled = ?", *filter.IsEnabled)
	}

	stmt = option.WithSortBy(option.WithQuerySortBy(filter.SortBy, filter.OrderBy, map[string]bool{
		"created_at":        true,
		"updated_at":        true,
		"name":              true,
		"compound_sequence": true,
	})).Apply(stmt)

	if err := stmt.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) Update(ctx context.Context, rule *taxdomain.TaxRule) error {
	return r.db.WithContext(ctx).Exec(
		`UPDATE tax_rules
		 SET name = ?, rate = ?, is_compound = ?, compound_sequence = ?, withholding_base = ?,
		     description = ?, is_enabled = ?, updated_at = ?
		 WHERE org_id = ? AND id = ?`,
		rule.Name,
		rule.Rate,
		rule.IsCompound,
		rule.CompoundSequence,
		rule.WithholdingBase,
		rule.Description,
		rule.IsEnabled,
		rule.UpdatedAt,
		rule.OrgID,
		rule.ID,
	).Error
}
