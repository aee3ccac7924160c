package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const (
	transactionsSheet = "Transactions"
	accountsSheet     = "Accounts"
)

// WriteXLSX writes a workbook with a Transactions sheet (the CSV columns
// plus the transfer destination) and an Accounts sheet.
func WriteXLSX(s Snapshot, w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", transactionsSheet); err != nil {
		return fmt.Errorf("xlsx: %w", err)
	}
	if err := writeTransactions(f, s); err != nil {
		return fmt.Errorf("xlsx transactions: %w", err)
	}
	if err := writeAccounts(f, s); err != nil {
		return fmt.Errorf("xlsx accounts: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("xlsx write: %w", err)
	}
	return nil
}

func writeTransactions(f *excelize.File, s Snapshot) error {
	accounts := make(map[int64]string, len(s.Accounts))
	for _, a := range s.Accounts {
		accounts[a.ID] = a.Name
	}

	header := append(append([]string{}, Header...), "Destination")
	if err := setRow(f, transactionsSheet, 1, toAny(header)); err != nil {
		return err
	}
	rows := Rows(s)[1:]
	for i, t := range s.Transactions {
		row := toAny(rows[i])
		row[4] = t.Amount.InexactFloat64()
		dest := ""
		if t.DestinationAccountID != nil {
			dest = accounts[*t.DestinationAccountID]
		}
		row = append(row, dest)
		if err := setRow(f, transactionsSheet, i+2, row); err != nil {
			return err
		}
	}

	for col, width := range map[string]float64{"A": 12, "B": 10, "C": 22, "D": 18, "E": 14, "F": 30, "G": 18} {
		if err := f.SetColWidth(transactionsSheet, col, col, width); err != nil {
			return err
		}
	}
	return nil
}

func writeAccounts(f *excelize.File, s Snapshot) error {
	if _, err := f.NewSheet(accountsSheet); err != nil {
		return err
	}
	if err := setRow(f, accountsSheet, 1, []any{"Name", "Type", "Balance"}); err != nil {
		return err
	}
	for i, a := range s.Accounts {
		if err := setRow(f, accountsSheet, i+2, []any{a.Name, string(a.Type), a.Balance.InexactFloat64()}); err != nil {
			return err
		}
	}
	return f.SetColWidth(accountsSheet, "A", "A", 20)
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

func toAny(row []string) []any {
	out := make([]any, len(row))
	for i, v := range row {
		out[i] = v
	}
	return out
}
