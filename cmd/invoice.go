package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/s0up4200/fortnox-client/export"
	"github.com/s0up4200/fortnox-client/filter"
	"github.com/s0up4200/fortnox-client/fortnox"
	"github.com/s0up4200/fortnox-client/orders"
)

var (
	// invoice get flags
	invoiceNumber string

	// invoice export flags
	exportYear   int
	exportMonth  int
	exportFilter string
	exportFormat string
	exportPages  int
	exportLimit  int
	exportOutput string
)

// invoiceCmd groups the invoice commands
var invoiceCmd = &cobra.Command{
	Use:   "invoice",
	Short: "Fetch and export Fortnox invoices",
}

// invoiceGetCmd represents the invoice get command
var invoiceGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Print a single invoice as JSON",
	Long:  `Fetch one invoice by document number and print the Fortnox response indented.`,
	RunE:  runInvoiceGet,
}

// invoiceExportCmd represents the invoice export command
var invoiceExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export invoices joined with local orders",
	Long: `Read recent invoice pages from Fortnox, keep the invoices matching the
filter and join each with its local order. Invoices without a local order are
skipped.

By default the filter selects the given --year and --month. Use --filter for
any expression over the invoice fields, for example:

  fortnox invoice export --filter 'Year == 2023 && Currency != "SEK"'
  fortnox invoice export --filter 'isCredited() && daysSince(InvoiceDate) < 30'`,
	RunE: runInvoiceExport,
}

func init() {
	invoiceGetCmd.Flags().StringVarP(&invoiceNumber, "invoice", "i", "", "invoice document number")
	_ = invoiceGetCmd.MarkFlagRequired("invoice")

	now := time.Now()
	invoiceExportCmd.Flags().IntVar(&exportYear, "year", now.Year(), "invoice year")
	invoiceExportCmd.Flags().IntVar(&exportMonth, "month", int(now.Month()), "invoice month (0 for the whole year)")
	invoiceExportCmd.Flags().StringVarP(&exportFilter, "filter", "f", "", "filter expression (overrides --year and --month)")
	invoiceExportCmd.Flags().StringVar(&exportFormat, "format", "", "output format: csv or table")
	invoiceExportCmd.Flags().IntVar(&exportPages, "pages", 0, "maximum number of invoice pages to read")
	invoiceExportCmd.Flags().IntVar(&exportLimit, "limit", 0, "invoices per page")
	invoiceExportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "write to file instead of stdout")

	invoiceCmd.AddCommand(invoiceGetCmd)
	invoiceCmd.AddCommand(invoiceExportCmd)
}

func runInvoiceGet(cmd *cobra.Command, args []string) error {
	n, err := fortnox.ParseDocumentNumber(invoiceNumber)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	c, err := connect(ctx)
	if err != nil {
		return err
	}

	resp, err := c.Invoice(ctx, n)
	if err != nil {
		return fmt.Errorf("failed to get invoice %d: %w", n, err)
	}

	return printIndented(cmd.OutOrStdout(), resp.Body)
}

// printIndented writes a JSON body indented by four spaces
func printIndented(w io.Writer, body []byte) error {
	var out bytes.Buffer
	if err := json.Indent(&out, body, "", "    "); err != nil {
		return fmt.Errorf("invalid JSON in response: %w", err)
	}
	out.WriteByte('\n')
	_, err := out.WriteTo(w)
	return err
}

func runInvoiceExport(cmd *cobra.Command, args []string) error {
	format, err := export.ParseFormat(firstNonEmpty(exportFormat, cfg.Export.Format))
	if err != nil {
		return err
	}

	expression := exportExpression(cmd)
	f, err := filter.CompileFilter(expression)
	if err != nil {
		return fmt.Errorf("invalid filter expression: %w", err)
	}

	sortOrder, err := fortnox.ParseSortOrder(firstNonEmpty(cfg.Export.SortOrder, string(fortnox.SortDescending)))
	if err != nil {
		return err
	}

	opts := export.Options{
		Pages:       cfg.Export.Pages,
		Limit:       cfg.Export.Limit,
		SortOrder:   sortOrder,
		Concurrency: cfg.Export.Concurrency,
	}
	if exportPages > 0 {
		opts.Pages = exportPages
	}
	if exportLimit > 0 {
		opts.Limit = exportLimit
	}

	ctx := cmd.Context()
	c, err := connect(ctx)
	if err != nil {
		return err
	}
	db, err := openMongo(ctx)
	if err != nil {
		return fmt.Errorf("order lookup needs MongoDB: %w", err)
	}

	logger.Info().Str("filter", expression).Msg("Exporting invoices")

	lookup := orders.NewMongoLookup(db, cfg.Orders.Collection)
	rows, err := export.New(c, lookup, f, opts, logger).Run(ctx)
	if err != nil {
		return err
	}

	if exportOutput != "" {
		err = writeExportFile(exportOutput, format, rows)
	} else {
		err = export.Write(cmd.OutOrStdout(), format, rows)
	}
	if err != nil {
		return err
	}

	logger.Info().Int("rows", len(rows)).Msg("Export finished")
	return nil
}

// writeExportFile writes rows to path. A failed close is returned since the
// file may be truncated.
func writeExportFile(path string, format export.Format, rows []export.Row) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close output file: %w", cerr)
		}
	}()

	return export.Write(file, format, rows)
}

// exportExpression determines the filter expression to use
func exportExpression(cmd *cobra.Command) string {
	// Priority: command line filter > period flags > config > current month
	if exportFilter != "" {
		return exportFilter
	}
	periodSet := cmd.Flags().Changed("year") || cmd.Flags().Changed("month")
	if !periodSet && cfg.Export.Filter != "" {
		return cfg.Export.Filter
	}
	return filter.PeriodExpression(exportYear, exportMonth)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
