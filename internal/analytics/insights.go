package analytics

import (
	"context"
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/MuhamadAdhiWinata/catatan-keuangan/internal/core"
	"github.com/MuhamadAdhiWinata/catatan-keuangan/internal/storage"
)

type Direction string

const (
	Up         Direction = "up"
	Down       Direction = "down"
	Stable     Direction = "stable"
	Increasing Direction = "increasing"
	Decreasing Direction = "decreasing"
)

const topCategories = 5

// MonthOverMonth compares this calendar month's expenses with last month's.
type MonthOverMonth struct {
	Current   decimal.Decimal `json:"current"`
	Previous  decimal.Decimal `json:"previous"`
	ChangePct float64         `json:"changePct"`
	Direction Direction       `json:"direction"`
}

type Insights struct {
	TopCategories []CategoryShare `json:"topCategories"`
	// ByWeekday is indexed by time.Weekday: Sunday is 0.
	ByWeekday      [7]decimal.Decimal `json:"byWeekday"`
	MonthOverMonth MonthOverMonth     `json:"monthOverMonth"`
	// Largest is nil when the window has no expenses.
	Largest *core.Transaction `json:"largest,omitempty"`
}

// Insights summarizes the expenses of the trailing three months.
func (e *Engine) Insights(ctx context.Context, userID int64) (Insights, error) {
	today := e.today()
	windowFrom := core.Date{Time: today.AddDate(0, -3, 0)}
	current := MonthOf(today)
	previous := current.Add(-1)

	from := windowFrom
	if previous.First().Before(from.Time) {
		from = previous.First()
	}
	txns, err := e.transactions(ctx, storage.TransactionFilter{
		UserID: userID,
		Type:   core.Expense,
		From:   from,
		To:     today,
	})
	if err != nil {
		return Insights{}, fmt.Errorf("insights: %w", err)
	}
	cats, err := e.categoryIndex(ctx, userID)
	if err != nil {
		return Insights{}, fmt.Errorf("insights: %w", err)
	}

	var window []core.Transaction
	curTotal, prevTotal := decimal.Zero, decimal.Zero
	for _, t := range txns {
		if !t.Date.Before(windowFrom.Time) {
			window = append(window, t)
		}
		switch {
		case current.Contains(t.Date):
			curTotal = curTotal.Add(t.Amount)
		case previous.Contains(t.Date):
			prevTotal = prevTotal.Add(t.Amount)
		}
	}

	ins := Insights{
		MonthOverMonth: monthOverMonth(curTotal, prevTotal, e.thresholds.InsightTrendPct),
	}
	for i := range ins.ByWeekday {
		ins.ByWeekday[i] = decimal.Zero
	}

	shares := breakdown(window, cats)
	if len(shares) > topCategories {
		shares = shares[:topCategories]
	}
	ins.TopCategories = shares

	for i, t := range window {
		ins.ByWeekday[t.Date.Weekday()] = ins.ByWeekday[t.Date.Weekday()].Add(t.Amount)
		if ins.Largest == nil || t.Amount.GreaterThan(ins.Largest.Amount) {
			ins.Largest = &window[i]
		}
	}
	return ins, nil
}

func monthOverMonth(cur, prev decimal.Decimal, trendPct float64) MonthOverMonth {
	change := percentChange(cur, prev)
	dir := Stable
	switch {
	case change > trendPct:
		dir = Up
	case change < -trendPct:
		dir = Down
	}
	return MonthOverMonth{
		Current:   cur,
		Previous:  prev,
		ChangePct: math.Abs(change),
		Direction: dir,
	}
}
