package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/taxledger/internal/clock"
	documentdomain "github.com/smallbiznis/taxledger/internal/document/domain"
	ledgerdomain "github.com/smallbiznis/taxledger/internal/ledger/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

type ResolverParams struct {
	fx.In

	DB    *gorm.DB
	Clock clock.Clock
}

type accountResolver struct {
	db    *gorm.DB
	clock clock.Clock
}

// NewAccountResolver resolves roles against account_rules on every call.
func NewAccountResolver(p ResolverParams) ledgerdomain.AccountResolver {
	return &accountResolver{db: p.DB, clock: p.Clock}
}

func (r *accountResolver) ResolveAccount(ctx context.Context, orgID snowflake.ID, role ledgerdomain.AccountRole) (snowflake.ID, error) {
	if orgID == 0 {
		return 0, ledgerdomain.ErrInvalidOrganization
	}
	if !role.Valid() {
		return 0, ledgerdomain.ErrInvalidRole
	}

	now := r.clock.Now()
	var accountIDs []snowflake.ID
	err := r.db.WithContext(ctx).Raw(
		`SELECT ar.account_id
		 FROM account_rules ar
		 JOIN ledger_accounts la ON la.id = ar.account_id AND la.org_id = ar.org_id
		 WHERE ar.org_id = ?
		   AND ar.role = ?
		   AND ar.is_enabled = ?
		   AND la.is_active = ?
		   AND (ar.effective_from IS NULL OR ar.effective_from <= ?)
		   AND (ar.effective_to IS NULL OR ar.effective_to > ?)
		 ORDER BY ar.priority DESC
		 LIMIT 1`,
		orgID,
		role,
		true,
		true,
		now,
		now,
	).Scan(&accountIDs).Error
	if err != nil {
		return 0, err
	}
	if len(accountIDs) == 0 || accountIDs[0] == 0 {
		return 0, &ledgerdomain.AccountNotConfiguredError{OrgID: orgID, Role: role}
	}
	return accountIDs[0], nil
}

// ResolveForDirection resolves only the roles the posting of totals will
// touch and stops at the first missing one.
func ResolveForDirection(ctx context.Context, resolver ledgerdomain.AccountResolver, orgID snowflake.ID, direction documentdomain.Direction, totals documentdomain.DocumentTotals) (ledgerdomain.ResolvedAccounts, error) {
	roles, err := RequiredRoles(totals, direction)
	if err != nil {
		return nil, err
	}

	accounts := make(ledgerdomain.ResolvedAccounts, len(roles))
	for _, role := range roles {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		id, err := resolver.ResolveAccount(ctx, orgID, role)
		if err != nil {
			return nil, err
		}
		accounts[role] = id
	}
	return accounts, nil
}
