package export

import (
	"strings"

	"github.com/MuhamadAdhiWinata/catatan-keuangan/internal/core"
)

// Header is the CSV header row.
var Header = []string{"Date", "Type", "Category", "Account", "Amount", "Note"}

// Rows returns the header followed by one row per transaction. Category and
// account are resolved to names, empty when the reference is gone. The
// destination account of a transfer is not part of the row.
func Rows(s Snapshot) [][]string {
	accounts := make(map[int64]string, len(s.Accounts))
	for _, a := range s.Accounts {
		accounts[a.ID] = a.Name
	}
	categories := make(map[int64]string, len(s.Categories))
	for _, c := range s.Categories {
		categories[c.ID] = c.Name
	}

	rows := make([][]string, 0, len(s.Transactions)+1)
	rows = append(rows, Header)
	for _, t := range s.Transactions {
		rows = append(rows, []string{
			t.Date.Format(core.DateLayout),
			string(t.Type),
			categories[t.CategoryID],
			accounts[t.AccountID],
			t.Amount.String(),
			t.Note,
		})
	}
	return rows
}

// ToCSV renders Rows with every field double-quoted, rows joined by "\n"
// and no trailing newline.
func ToCSV(s Snapshot) string {
	rows := Rows(s)
	lines := make([]string, len(rows))
	for i, row := range rows {
		fields := make([]string, len(row))
		for j, f := range row {
			fields[j] = quote(f)
		}
		lines[i] = strings.Join(fields, ",")
	}
	return strings.Join(lines, "\n")
}

func quote(field string) string {
	return `"` + strings.ReplaceAll(field, `"`, `""`) + `"`
}
