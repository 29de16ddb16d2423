package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/taxledger/internal/config"
	documentdomain "github.com/smallbiznis/taxledger/internal/document/domain"
	documentservice "github.com/smallbiznis/taxledger/internal/document/service"
	ledgerdomain "github.com/smallbiznis/taxledger/internal/ledger/domain"
	ledgerservice "github.com/smallbiznis/taxledger/internal/ledger/service"
	"github.com/smallbiznis/taxledger/pkg/money"
	"github.com/spf13/cobra"
)

var (
	outputFormat      string
	directionOverride string
)

var computeCmd = &cobra.Command{
	Use:   "compute <file|->",
	Short: "Compute totals and a posting preview offline",
	Long: `Compute document totals from a JSON request and preview its posting.

The request uses the same shape as POST /api/documents/preview. Tax rules
referenced by code need the database, so only inline tax_lines are accepted.
Ledger accounts are shown by role.

Examples:
  taxledger compute invoice.json
  cat bill.json | taxledger compute - --direction purchase --format table`,
	Args: cobra.ExactArgs(1),
	RunE: runCompute,
}

func init() {
	rootCmd.AddCommand(computeCmd)

	computeCmd.Flags().StringVarP(&outputFormat, "format", "f", "json", "Output format (json, table)")
	computeCmd.Flags().StringVar(&directionOverride, "direction", "", "Override the request direction (sale, purchase)")
}

// ComputeResult is the offline outcome of one request.
type ComputeResult struct {
	Direction documentdomain.Direction     `json:"direction"`
	Totals    documentdomain.DocumentTotals `json:"totals"`
	Posting   []PostingLine                 `json:"posting"`
}

type PostingLine struct {
	Role   ledgerdomain.AccountRole `json:"role"`
	Debit  money.Money              `json:"debit"`
	Credit money.Money              `json:"credit"`
}

func runCompute(cmd *cobra.Command, args []string) error {
	format := strings.ToLower(strings.TrimSpace(outputFormat))
	if format != "json" && format != "table" {
		return fmt.Errorf("unsupported format %q", outputFormat)
	}

	req, err := readComputeRequest(cmd.InOrStdin(), args[0])
	if err != nil {
		return err
	}
	if directionOverride != "" {
		req.Direction = documentdomain.Direction(directionOverride)
	}

	holder, err := config.NewCurrencyConfigHolder(config.Load())
	if err != nil {
		return err
	}

	result, err := Compute(req, holder.Table())
	if err != nil {
		return err
	}
	printVerbose("Computed %d items in %s\n", len(result.Totals.Items), result.Totals.Currency)

	if format == "table" {
		return renderTable(cmd.OutOrStdout(), result)
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func readComputeRequest(stdin io.Reader, path string) (documentdomain.ComputeRequest, error) {
	var req documentdomain.ComputeRequest

	src := stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return req, fmt.Errorf("open request: %w", err)
		}
		defer f.Close()
		src = f
	}

	dec := json.NewDecoder(src)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return req, fmt.Errorf("decode request: %w", err)
	}
	return req, nil
}

// Compute runs the engine without a database. Accounts are placeholders keyed
// by role, so the preview shows which roles a real posting would touch.
func Compute(req documentdomain.ComputeRequest, currencies money.CurrencyTable) (*ComputeResult, error) {
	direction, currency, err := documentservice.NormalizeRequest(req)
	if err != nil {
		return nil, err
	}
	scale := currencies.Scale(currency)

	items, err := documentservice.BuildLineItems(context.Background(), nil, 0, scale, req.Items)
	if err != nil {
		return nil, err
	}
	totals, err := documentservice.ComputeTotals(currency, scale, items)
	if err != nil {
		return nil, err
	}

	roles, err := ledgerservice.RequiredRoles(totals, direction)
	if err != nil {
		return nil, err
	}
	result := &ComputeResult{Direction: direction, Totals: totals, Posting: make([]PostingLine, 0, len(roles))}
	if len(roles) == 0 {
		return result, nil
	}

	accounts := make(ledgerdomain.ResolvedAccounts, len(roles))
	for i, role := range roles {
		accounts[role] = snowflake.ID(i + 1)
	}
	txn, err := ledgerservice.BuildPosting(totals, direction, accounts)
	if err != nil {
		return nil, err
	}

	for _, line := range txn.Lines {
		result.Posting = append(result.Posting, PostingLine{Role: line.Role, Debit: line.Debit, Credit: line.Credit})
	}
	return result, nil
}

func renderTable(out io.Writer, result *ComputeResult) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	t := result.Totals

	fmt.Fprintf(w, "%s\t%s\n", "Direction", result.Direction)
	fmt.Fprintf(w, "%s\t%s\n\n", "Currency", t.Currency)

	fmt.Fprintln(w, "#\tGROSS\tNET\tTAX\tWITHHOLDING")
	for _, item := range t.Items {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", item.Index, item.Gross, item.Net, item.Tax, item.Withholding)
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Subtotal\t%s\n", t.Subtotal)
	fmt.Fprintf(w, "Tax\t%s\n", t.TaxAmount)
	fmt.Fprintf(w, "Total\t%s\n", t.Total)
	fmt.Fprintf(w, "Withholding\t%s\n", t.Withholding)
	fmt.Fprintf(w, "Amount due\t%s\n\n", t.AmountDue)

	fmt.Fprintln(w, "ROLE\tDEBIT\tCREDIT")
	for _, line := range result.Posting {
		fmt.Fprintf(w, "%s\t%s\t%s\n", line.Role, blankIfZero(line.Debit), blankIfZero(line.Credit))
	}

	for _, warn := range t.Warnings {
		fmt.Fprintf(w, "\nwarning: item %d shares compound sequence %d across tax lines %v\n", warn.Item, warn.Sequence, warn.Indexes)
	}
	return w.Flush()
}

func blankIfZero(m money.Money) string {
	if m.IsZero() {
		return ""
	}
	return m.String()
}
