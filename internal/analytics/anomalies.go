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

// Anomaly is a recent expense well above its category's usual amount.
type Anomaly struct {
	Transaction  core.Transaction `json:"transaction"`
	CategoryName string           `json:"categoryName"`
	Average      decimal.Decimal  `json:"average"`
	Ratio        float64          `json:"ratio"`
}

// Anomalies compares the expenses of the last month with the per-category
// average of the two months before, [today-3m, today-1m). A category needs
// MinAnomalySamples historical expenses to have an average. Results are
// sorted by ratio, highest first.
func (e *Engine) Anomalies(ctx context.Context, userID int64) ([]Anomaly, error) {
	today := e.today()
	baselineFrom := core.Date{Time: today.AddDate(0, -3, 0)}
	recentFrom := core.Date{Time: today.AddDate(0, -1, 0)}

	txns, err := e.transactions(ctx, storage.TransactionFilter{
		UserID: userID,
		Type:   core.Expense,
		From:   baselineFrom,
		To:     today,
	})
	if err != nil {
		return nil, fmt.Errorf("anomalies: %w", err)
	}
	cats, err := e.categoryIndex(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("anomalies: %w", err)
	}
	return detectAnomalies(txns, cats, recentFrom, e.thresholds), nil
}

type baseline struct {
	sum   decimal.Decimal
	count int
}

func detectAnomalies(txns []core.Transaction, cats map[int64]core.Category, recentFrom core.Date, th Thresholds) []Anomaly {
	history := make(map[int64]*baseline)
	var recent []core.Transaction
	for _, t := range txns {
		if t.Date.Before(recentFrom.Time) {
			b, ok := history[t.CategoryID]
			if !ok {
				b = &baseline{sum: decimal.Zero}
				history[t.CategoryID] = b
			}
			b.sum = b.sum.Add(t.Amount)
			b.count++
			continue
		}
		recent = append(recent, t)
	}

	threshold := decimal.NewFromFloat(th.AnomalyRatio)
	out := []Anomaly{}
	for _, t := range recent {
		b, ok := history[t.CategoryID]
		if !ok || b.count < th.MinAnomalySamples {
			continue
		}
		avg := b.sum.Div(decimal.NewFromInt(int64(b.count)))
		if avg.IsZero() || t.Amount.LessThan(avg.Mul(threshold)) {
			continue
		}
		out = append(out, Anomaly{
			Transaction:  t,
			CategoryName: cats[t.CategoryID].Name,
			Average:      avg,
			Ratio:        ratio(t.Amount, avg),
		})
	}
	slices.SortFunc(out, func(a, b Anomaly) int {
		if c := cmp.Compare(b.Ratio, a.Ratio); c != 0 {
			return c
		}
		return cmp.Compare(a.Transaction.ID, b.Transaction.ID)
	})
	return out
}
