// Package export joins Fortnox invoice listings with local orders and
// renders the result as CSV or a table.
package export

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/s0up4200/fortnox-client/filter"
	"github.com/s0up4200/fortnox-client/fortnox"
	"github.com/s0up4200/fortnox-client/orders"
)

const (
	DefaultPages       = 29
	DefaultLimit       = 100
	DefaultConcurrency = 2
)

// Options controls how many invoice pages are read and how
type Options struct {
	Pages       int
	Limit       int
	SortOrder   fortnox.SortOrder
	Concurrency int
}

func (o Options) withDefaults() Options {
	if o.Pages <= 0 {
		o.Pages = DefaultPages
	}
	if o.Limit <= 0 {
		o.Limit = DefaultLimit
	}
	if o.SortOrder == "" {
		o.SortOrder = fortnox.SortDescending
	}
	if o.Concurrency <= 0 {
		o.Concurrency = DefaultConcurrency
	}
	return o
}

// Exporter builds export rows
type Exporter struct {
	invoices fortnox.InvoicePager
	orders   orders.Lookup
	filter   filter.Filter
	opts     Options
	logger   zerolog.Logger
}

// New creates an exporter. A nil filter keeps every invoice.
func New(invoices fortnox.InvoicePager, lookup orders.Lookup, f filter.Filter, opts Options, logger zerolog.Logger) *Exporter {
	return &Exporter{
		invoices: invoices,
		orders:   lookup,
		filter:   f,
		opts:     opts.withDefaults(),
		logger:   logger,
	}
}

// Run reads the invoice pages, keeps those matching the filter and joins
// each with its local order. Invoices without a local order are skipped.
func (e *Exporter) Run(ctx context.Context) ([]Row, error) {
	pages, err := e.fetchPages(ctx)
	if err != nil {
		return nil, err
	}

	var rows []Row
	for _, page := range pages {
		for _, inv := range page {
			row, ok, err := e.process(ctx, inv)
			if err != nil {
				return nil, err
			}
			if ok {
				rows = append(rows, row)
			}
		}
	}

	e.logger.Debug().Int("rows", len(rows)).Msg("Export complete")
	return rows, nil
}

func (e *Exporter) process(ctx context.Context, inv fortnox.InvoiceSummary) (Row, bool, error) {
	if inv.DocumentNumber == "" {
		return Row{}, false, nil
	}

	if e.filter != nil {
		match, err := e.filter.Evaluate(inv)
		if err != nil {
			return Row{}, false, err
		}
		if !match {
			return Row{}, false, nil
		}
	}

	order, err := e.orders.FindByDocumentNumber(ctx, inv.DocumentNumber.Int())
	if err != nil {
		if errors.Is(err, orders.ErrNotFound) {
			e.logger.Debug().
				Str("document_number", inv.DocumentNumber.String()).
				Msg("No local order for invoice, skipping")
			return Row{}, false, nil
		}
		return Row{}, false, err
	}

	return BuildRow(inv, order), true, nil
}

// fetchPages reads page 1 to learn the page count, then the remaining pages
// concurrently. The result is in page order.
func (e *Exporter) fetchPages(ctx context.Context) ([][]fortnox.InvoiceSummary, error) {
	first, err := e.fetchPage(ctx, 1)
	if err != nil {
		return nil, err
	}

	total := e.opts.Pages
	if first.Meta.TotalPages > 0 && first.Meta.TotalPages < total {
		total = first.Meta.TotalPages
	}

	pages := make([][]fortnox.InvoiceSummary, total)
	pages[0] = first.Invoices

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Concurrency)

	for page := 2; page <= total; page++ {
		g.Go(func() error {
			list, err := e.fetchPage(ctx, page)
			if err != nil {
				return err
			}
			pages[page-1] = list.Invoices
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return pages, nil
}

func (e *Exporter) fetchPage(ctx context.Context, page int) (*fortnox.InvoiceList, error) {
	params, err := fortnox.NewResourceParams(e.opts.Limit, page, e.opts.SortOrder)
	if err != nil {
		return nil, err
	}

	list, err := e.invoices.ListInvoicesPage(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices page %d: %w", page, err)
	}

	e.logger.Debug().
		Int("page", page).
		Int("count", len(list.Invoices)).
		Int("total_pages", list.Meta.TotalPages).
		Msg("Retrieved invoices from Fortnox")

	return list, nil
}
