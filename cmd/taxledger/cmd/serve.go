package cmd

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/taxledger/internal/clock"
	"github.com/smallbiznis/taxledger/internal/config"
	"github.com/smallbiznis/taxledger/internal/document"
	"github.com/smallbiznis/taxledger/internal/ledger"
	"github.com/smallbiznis/taxledger/internal/migration"
	"github.com/smallbiznis/taxledger/internal/observability"
	"github.com/smallbiznis/taxledger/internal/ratelimit"
	"github.com/smallbiznis/taxledger/internal/server"
	"github.com/smallbiznis/taxledger/internal/tax"
	"github.com/smallbiznis/taxledger/pkg/db"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

var nodeID int64

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app := fx.New(
			fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
				return &fxevent.ZapLogger{Logger: log.Named("fx")}
			}),

			// Core infrastructure
			config.Module,
			observability.Module,
			fx.Provide(RegisterSnowflake),
			db.Module,
			clock.Module,

			// Domains
			tax.Module,
			ledger.Module,
			document.Module,
			migration.Module,
			ratelimit.Module,

			server.Module,
		)
		app.Run()
		return app.Err()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	rootCmd.PersistentFlags().Int64Var(&nodeID, "node-id", 1, "Snowflake node id (0-1023)")
}

func RegisterSnowflake() (*snowflake.Node, error) {
	return snowflake.NewNode(nodeID)
}
