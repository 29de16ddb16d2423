package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "0.1.0"

	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "taxledger",
	Short: "Tax-line aggregation and double-entry posting",
	Long: `taxledger computes document totals from layered tax lines and posts them
to a double-entry ledger.

Examples:
  # Run the HTTP API
  taxledger serve

  # Compute totals and a posting preview offline
  taxledger compute invoice.json --format table

  # Apply database migrations
  taxledger migrate`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
}

func printVerbose(format string, args ...any) {
	if verbose {
		fmt.Fprintf(os.Stderr, format, args...)
	}
}
