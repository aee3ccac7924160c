package sheets

import (
	"context"
	"fmt"
	"strings"
)

// Ports for outbound spreadsheet adapters.
type (
	// RowWriter replaces every row of one tab, creating the tab when missing.
	RowWriter interface {
		ReplaceRows(ctx context.Context, tab string, rows [][]string) error
	}

	// RowReader returns the rows of one tab as strings.
	RowReader interface {
		ReadRows(ctx context.Context, tab string) ([][]string, error)
	}

	Sink interface {
		RowWriter
		RowReader
	}
)

// TabName is the per-user tab inside the export spreadsheet, "<base> - <username>".
func TabName(base, username string) string {
	base = strings.TrimSpace(base)
	if base == "" {
		base = "Transactions"
	}
	return fmt.Sprintf("%s - %s", base, username)
}
