package analytics

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/MuhamadAdhiWinata/catatan-keuangan/internal/storage"
)

// UnboundedRunway is reported as the runway when nothing is being spent.
const UnboundedRunway = 999

const burnRateMonths = 3

type Health struct {
	TotalBalance decimal.Decimal `json:"totalBalance"`
	// BurnRate is the mean monthly expense of the last three calendar
	// months, the current one included.
	BurnRate decimal.Decimal `json:"burnRate"`
	// RunwayMonths is TotalBalance / BurnRate, negative when the balance is,
	// or UnboundedRunway when BurnRate is zero.
	RunwayMonths float64 `json:"runwayMonths"`
	Unbounded    bool    `json:"unbounded"`
	// Trend compares last month's expenses with the month before.
	Trend    Direction `json:"trend"`
	TrendPct int64     `json:"trendPct"`
}

// RunwayLabel renders the runway for display: "100+" when unbounded or at
// least a hundred months, one decimal otherwise.
func (h Health) RunwayLabel() string {
	if h.Unbounded || h.RunwayMonths >= 100 {
		return "100+"
	}
	return strconv.FormatFloat(h.RunwayMonths, 'f', 1, 64)
}

func (e *Engine) Health(ctx context.Context, userID int64) (Health, error) {
	accounts, err := e.store.ListAccounts(ctx, storage.AccountFilter{UserID: userID})
	if err != nil {
		return Health{}, fmt.Errorf("health: load accounts: %w", err)
	}
	points, err := e.MonthlyCashflow(ctx, userID, burnRateMonths)
	if err != nil {
		return Health{}, fmt.Errorf("health: %w", err)
	}

	total := decimal.Zero
	for _, a := range accounts {
		total = total.Add(a.Balance)
	}
	return health(total, points, e.thresholds.HealthTrendPct), nil
}

// health expects points for months -2, -1 and the current month.
func health(total decimal.Decimal, points []MonthPoint, trendPct float64) Health {
	spent := decimal.Zero
	for _, p := range points {
		spent = spent.Add(p.Expense)
	}
	burn := decimal.Zero
	if len(points) > 0 {
		burn = spent.Div(decimal.NewFromInt(int64(len(points))))
	}

	h := Health{TotalBalance: total, BurnRate: burn, Trend: Stable}
	if burn.IsZero() {
		h.RunwayMonths = UnboundedRunway
		h.Unbounded = true
	} else {
		h.RunwayMonths = ratio(total, burn)
	}

	if len(points) >= 3 {
		last, before := points[len(points)-2].Expense, points[len(points)-3].Expense
		change := percentChange(last, before)
		switch {
		case change > trendPct:
			h.Trend = Increasing
		case change < -trendPct:
			h.Trend = Decreasing
		}
		h.TrendPct = int64(math.Round(math.Abs(change)))
	}
	return h
}
