package cmd

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/taxledger/internal/clock"
	"github.com/smallbiznis/taxledger/internal/config"
	ledgerservice "github.com/smallbiznis/taxledger/internal/ledger/service"
	"github.com/smallbiznis/taxledger/internal/migration"
	"github.com/smallbiznis/taxledger/pkg/db"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var seedChart bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	Long: `Apply the schema to the configured database.

Postgres runs the embedded versioned migrations. SQLite and MySQL use gorm
AutoMigrate. With --seed the default chart of accounts is installed for
DEFAULT_ORG.`,
	Args: cobra.NoArgs,
	RunE: runMigrate,
}

var migrateVersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the applied and embedded migration versions",
	Args:  cobra.NoArgs,
	RunE:  runMigrateVersion,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateVersionCmd)

	migrateCmd.Flags().BoolVar(&seedChart, "seed", false, "Seed the default chart of accounts for DEFAULT_ORG")
}

func newCLILogger() *zap.Logger {
	if !verbose {
		return zap.NewNop()
	}
	log, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	return log
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	log := newCLILogger()
	defer func() { _ = log.Sync() }()

	conn, err := db.Open(cfg, log, db.Options{})
	if err != nil {
		return err
	}
	if sqlDB, err := conn.DB(); err == nil {
		defer sqlDB.Close()
	}

	printVerbose("Migrating %s database\n", cfg.DBType)
	if err := migration.Migrate(conn, log); err != nil {
		return err
	}

	if seedChart {
		if cfg.DefaultOrgID == 0 {
			return fmt.Errorf("--seed requires DEFAULT_ORG")
		}
		node, err := snowflake.NewNode(nodeID)
		if err != nil {
			return err
		}
		ledger := ledgerservice.NewService(ledgerservice.Params{
			DB:    conn,
			Log:   log,
			GenID: node,
			Clock: clock.SystemClock{},
		})
		cfg.SeedDefaultChart = true
		if err := migration.SeedDefaultOrg(context.Background(), cfg, ledger, log); err != nil {
			return err
		}
	}

	fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
	return nil
}

func runMigrateVersion(cmd *cobra.Command, args []string) error {
	embedded, err := migration.SourceVersions()
	if err != nil {
		return err
	}
	latest := embedded[len(embedded)-1]

	cfg := config.Load()
	if cfg.DBType != "postgres" {
		fmt.Fprintf(cmd.OutOrStdout(), "embedded: %d (%s uses auto-migrate)\n", latest, cfg.DBType)
		return nil
	}

	log := newCLILogger()
	conn, err := db.Open(cfg, log, db.Options{})
	if err != nil {
		return err
	}
	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	applied, dirty, err := migration.Version(sqlDB)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "applied: %d dirty: %t embedded: %d\n", applied, dirty, latest)
	return nil
}
