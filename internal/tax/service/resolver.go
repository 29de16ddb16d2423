package service

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	taxdomain "github.com/smallbiznis/taxledger/internal/tax/domain"
	"go.uber.org/fx"
)

type resolverParams struct {
	fx.In

	Repository taxdomain.Repository
}

type resolver struct {
	repo taxdomain.Repository
}

func NewResolver(p resolverParams) taxdomain.TaxLineResolver {
	return &resolver{repo: p.Repository}
}

// ResolveTaxLines reads rules fresh on every call. Unknown or disabled codes
// fail the whole lookup.
func (r *resolver) ResolveTaxLines(ctx context.Context, orgID snowflake.ID, codes []string) ([]taxdomain.TaxLineDefinition, error) {
	if len(codes) == 0 {
		return nil, nil
	}

	normalized := make([]string, len(codes))
	for i, code := range codes {
		normalized[i] = normalizeCode(code)
	}

	rules, err := r.repo.FindByCodes(ctx, orgID, normalized)
	if err != nil {
		return nil, err
	}
	byCode := make(map[string]*taxdomain.TaxRule, len(rules))
	for i := range rules {
		byCode[rules[i].Code] = &rules[i]
	}

	out := make([]taxdomain.TaxLineDefinition, 0, len(codes))
	for _, code := range normalized {
		rule, ok := byCode[code]
		if !ok {
			return nil, fmt.Errorf("%w: %s", taxdomain.ErrUnknownTaxRule, code)
		}
		if !rule.IsEnabled {
			return nil, fmt.Errorf("%w: %s", taxdomain.ErrTaxRuleDisabled, code)
		}
		out = append(out, rule.Definition())
	}
	return out, nil
}
