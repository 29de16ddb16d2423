package migration

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/taxledger/internal/config"
	ledgerdomain "github.com/smallbiznis/taxledger/internal/ledger/domain"
	"github.com/smallbiznis/taxledger/internal/orgcontext"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, ledger ledgerdomain.Service, log *zap.Logger) error {
		log = log.Named("migration")
		if cfg.AutoMigrate {
			if err := Migrate(conn, log); err != nil {
				return err
			}
		}
		return SeedDefaultOrg(context.Background(), cfg, ledger, log)
	}),
)

// SeedDefaultOrg installs the default chart of accounts for the configured
// default organization. Existing accounts and rules are left untouched.
func SeedDefaultOrg(ctx context.Context, cfg config.Config, ledger ledgerdomain.Service, log *zap.Logger) error {
	if !cfg.SeedDefaultChart || cfg.DefaultOrgID == 0 {
		return nil
	}
	orgID := snowflake.ID(cfg.DefaultOrgID)
	if err := ledger.SeedDefaultChart(orgcontext.WithOrgID(ctx, orgID)); err != nil {
		log.Error("seed default chart", zap.String("org_id", orgID.String()), zap.Error(err))
		return err
	}
	return nil
}
