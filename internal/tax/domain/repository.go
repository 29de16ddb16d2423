package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

type Repository interface {
	Create(ctx context.Context, rule *TaxRule) error
	FindByID(ctx context.Context, orgID, id snowflake.ID) (*TaxRule, error)
	FindByCodes(ctx context.Context, orgID snowflake.ID, codes []string) ([]TaxRule, error)
	List(ctx context.Context, orgID snowflake.ID, filter ListRequest) ([]TaxRule, error)
	Update(ctx context.Context, rule *TaxRule) error
}
