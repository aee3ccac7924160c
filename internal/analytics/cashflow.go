package analytics

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/MuhamadAdhiWinata/catatan-keuangan/internal/core"
	"github.com/MuhamadAdhiWinata/catatan-keuangan/internal/storage"
)

// MonthPoint is the cashflow of one calendar month. Transfers are excluded.
type MonthPoint struct {
	Month   Month           `json:"month"`
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
	Net     decimal.Decimal `json:"net"`
}

// HasData reports whether the month saw any income or expense.
func (p MonthPoint) HasData() bool {
	return !p.Income.IsZero() || !p.Expense.IsZero()
}

// MonthlyCashflow returns the n most recent calendar months, the current one
// included, oldest first. Months without transactions are zero points.
func (e *Engine) MonthlyCashflow(ctx context.Context, userID int64, n int) ([]MonthPoint, error) {
	if n <= 0 {
		return []MonthPoint{}, nil
	}
	current := MonthOf(e.today())
	first := current.Add(-(n - 1))

	txns, err := e.transactions(ctx, storage.TransactionFilter{
		UserID: userID,
		From:   first.First(),
		To:     current.Last(),
	})
	if err != nil {
		return nil, fmt.Errorf("monthly cashflow: %w", err)
	}
	return bucketMonths(txns, first, n), nil
}

func bucketMonths(txns []core.Transaction, first Month, n int) []MonthPoint {
	points := make([]MonthPoint, n)
	index := make(map[Month]int, n)
	for i := range points {
		m := first.Add(i)
		points[i] = MonthPoint{Month: m, Income: decimal.Zero, Expense: decimal.Zero}
		index[m] = i
	}

	for _, t := range txns {
		i, ok := index[MonthOf(t.Date)]
		if !ok {
			continue
		}
		switch t.Type {
		case core.Income:
			points[i].Income = points[i].Income.Add(t.Amount)
		case core.Expense:
			points[i].Expense = points[i].Expense.Add(t.Amount)
		}
	}
	for i := range points {
		points[i].Net = points[i].Income.Sub(points[i].Expense)
	}
	return points
}

// CategoryShare is one row of a category breakdown. Name and Icon are empty
// when the category no longer exists.
type CategoryShare struct {
	CategoryID int64           `json:"categoryId"`
	Name       string          `json:"name"`
	Icon       string          `json:"icon,omitempty"`
	Amount     decimal.Decimal `json:"amount"`
	Count      int             `json:"count"`
	Percentage float64         `json:"percentage"`
}

// CategoryBreakdown sums the transactions of type typ dated in [start, end]
// per category. Percentages are of the total over the same set, in 0..100.
// Rows are sorted by amount, largest first.
func (e *Engine) CategoryBreakdown(ctx context.Context, userID int64, typ core.TransactionType, start, end core.Date) ([]CategoryShare, error) {
	if !typ.Valid() {
		return nil, core.Invalid("type", "unknown transaction type")
	}
	txns, err := e.transactions(ctx, storage.TransactionFilter{UserID: userID, Type: typ, From: start, To: end})
	if err != nil {
		return nil, fmt.Errorf("category breakdown: %w", err)
	}
	cats, err := e.categoryIndex(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("category breakdown: %w", err)
	}
	return breakdown(txns, cats), nil
}

func breakdown(txns []core.Transaction, cats map[int64]core.Category) []CategoryShare {
	byID := make(map[int64]*CategoryShare)
	total := decimal.Zero
	for _, t := range txns {
		s, ok := byID[t.CategoryID]
		if !ok {
			c := cats[t.CategoryID]
			s = &CategoryShare{CategoryID: t.CategoryID, Name: c.Name, Icon: c.Icon, Amount: decimal.Zero}
			byID[t.CategoryID] = s
		}
		s.Amount = s.Amount.Add(t.Amount)
		s.Count++
		total = total.Add(t.Amount)
	}

	out := make([]CategoryShare, 0, len(byID))
	for _, s := range byID {
		s.Percentage = ratio(s.Amount, total) * 100
		out = append(out, *s)
	}
	slices.SortFunc(out, func(a, b CategoryShare) int {
		if c := b.Amount.Cmp(a.Amount); c != 0 {
			return c
		}
		return cmp.Compare(a.CategoryID, b.CategoryID)
	})
	return out
}
