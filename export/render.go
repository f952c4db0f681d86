package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"
)

// Format selects the output renderer
type Format string

const (
	FormatCSV   Format = "csv"
	FormatTable Format = "table"
)

// ParseFormat accepts "csv" or "table"
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatCSV, "":
		return FormatCSV, nil
	case FormatTable:
		return FormatTable, nil
	}
	return "", fmt.Errorf("unknown output format %q, expected csv or table", s)
}

// Write renders rows to w in the given format
func Write(w io.Writer, format Format, rows []Row) error {
	switch format {
	case FormatTable:
		return WriteTable(w, rows)
	default:
		return WriteCSV(w, rows)
	}
}

// WriteCSV writes the header and one record per row
func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, r := range rows {
		if err := cw.Write(r.Strings()); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteTable renders rows as a terminal table
func WriteTable(w io.Writer, rows []Row) error {
	if len(rows) == 0 {
		_, err := io.WriteString(w, "No invoices found\n")
		return err
	}

	header := make([]any, len(Header))
	for i, h := range Header {
		header[i] = h
	}

	table := tablewriter.NewWriter(w)
	table.Header(header...)
	for _, r := range rows {
		if err := table.Append(r.Strings()); err != nil {
			return fmt.Errorf("failed to add table row: %w", err)
		}
	}
	return table.Render()
}
