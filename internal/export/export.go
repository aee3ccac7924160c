// Package export serializes a user's ledger to interchange formats: JSON
// (the full ledger), CSV (one row per transaction) and XLSX.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/MuhamadAdhiWinata/catatan-keuangan/internal/core"
	"github.com/MuhamadAdhiWinata/catatan-keuangan/internal/ledger"
	"github.com/MuhamadAdhiWinata/catatan-keuangan/internal/storage"
)

type Format string

const (
	JSON Format = "json"
	CSV  Format = "csv"
	XLSX Format = "xlsx"
)

// ParseFormat accepts json, csv or xlsx in any case.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case JSON, CSV, XLSX:
		return f, nil
	}
	return "", core.Invalid("format", "must be one of json, csv, xlsx")
}

func (f Format) ContentType() string {
	switch f {
	case JSON:
		return "application/json"
	case CSV:
		return "text/csv; charset=utf-8"
	case XLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "application/octet-stream"
}

// Filename returns a download name stamped with the export date.
func (f Format) Filename(at time.Time) string {
	return fmt.Sprintf("catatan-keuangan_%s.%s", at.Format("20060102"), f)
}

// Snapshot is everything exported for one user.
type Snapshot struct {
	ExportedAt   time.Time          `json:"exportedAt"`
	Accounts     []core.Account     `json:"accounts"`
	Categories   []core.Category    `json:"categories"`
	Transactions []core.Transaction `json:"transactions"`
}

// Exporter reads snapshots from a store.
type Exporter struct {
	store storage.Reader
	now   func() time.Time
}

func NewExporter(store storage.Reader) *Exporter {
	return &Exporter{store: store, now: time.Now}
}

// WithClock replaces time.Now for the export timestamp.
func (x *Exporter) WithClock(now func() time.Time) *Exporter {
	x.now = now
	return x
}

// Snapshot loads the user's ledger. Transactions are newest first.
func (x *Exporter) Snapshot(ctx context.Context, userID int64) (Snapshot, error) {
	accounts, err := x.store.ListAccounts(ctx, storage.AccountFilter{UserID: userID})
	if err != nil {
		return Snapshot{}, fmt.Errorf("export accounts: %w", err)
	}
	categories, err := x.store.ListCategories(ctx, storage.CategoryFilter{UserID: userID})
	if err != nil {
		return Snapshot{}, fmt.Errorf("export categories: %w", err)
	}
	txns, err := x.store.ListTransactions(ctx, storage.TransactionFilter{UserID: userID})
	if err != nil {
		return Snapshot{}, fmt.Errorf("export transactions: %w", err)
	}
	ledger.SortNewestFirst(txns)

	return Snapshot{
		ExportedAt:   x.now().UTC(),
		Accounts:     accounts,
		Categories:   categories,
		Transactions: txns,
	}, nil
}

// Export writes the user's ledger to w in format f.
func (x *Exporter) Export(ctx context.Context, userID int64, f Format, w io.Writer) error {
	snap, err := x.Snapshot(ctx, userID)
	if err != nil {
		return err
	}
	switch f {
	case JSON:
		data, err := ToJSON(snap)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	case CSV:
		_, err := io.WriteString(w, ToCSV(snap))
		return err
	case XLSX:
		return WriteXLSX(snap, w)
	}
	return fmt.Errorf("export: unsupported format %q", f)
}

// ToJSON renders the snapshot with two-space indentation.
func ToJSON(s Snapshot) ([]byte, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode json export: %w", err)
	}
	return data, nil
}
