package analytics

import (
	"context"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

const (
	forecastHistory = 6
	forecastWindow  = 3
)

// Forecast predicts next month's cashflow. Amounts are whole units.
type Forecast struct {
	Income     decimal.Decimal `json:"income"`
	Expense    decimal.Decimal `json:"expense"`
	Net        decimal.Decimal `json:"net"`
	Confidence Confidence      `json:"confidence"`
	// Window lists the months the averages were taken over, oldest first.
	Window []Month `json:"window"`
	// IncomeCV is the coefficient of variation of income over Window.
	IncomeCV float64 `json:"incomeCv"`
}

// Forecast averages the three most recent months with any income or
// expense among the last six. With fewer than three such months the
// forecast is zero with low confidence.
func (e *Engine) Forecast(ctx context.Context, userID int64) (Forecast, error) {
	points, err := e.MonthlyCashflow(ctx, userID, forecastHistory)
	if err != nil {
		return Forecast{}, fmt.Errorf("forecast: %w", err)
	}
	return forecast(points, e.thresholds), nil
}

func forecast(points []MonthPoint, th Thresholds) Forecast {
	var window []MonthPoint
	for i := len(points) - 1; i >= 0 && len(window) < forecastWindow; i-- {
		if points[i].HasData() {
			window = append([]MonthPoint{points[i]}, window...)
		}
	}
	if len(window) < forecastWindow {
		return Forecast{
			Income:     decimal.Zero,
			Expense:    decimal.Zero,
			Net:        decimal.Zero,
			Confidence: ConfidenceLow,
			Window:     []Month{},
		}
	}

	n := decimal.NewFromInt(int64(len(window)))
	income, expense := decimal.Zero, decimal.Zero
	months := make([]Month, len(window))
	incomes := make([]float64, len(window))
	for i, p := range window {
		income = income.Add(p.Income)
		expense = expense.Add(p.Expense)
		months[i] = p.Month
		incomes[i] = p.Income.InexactFloat64()
	}
	// Net derives from the rounded means so the three figures agree.
	meanIncome := income.Div(n).Round(0)
	meanExpense := expense.Div(n).Round(0)

	cv := coefficientOfVariation(incomes)
	return Forecast{
		Income:     meanIncome,
		Expense:    meanExpense,
		Net:        meanIncome.Sub(meanExpense),
		Confidence: confidence(cv, th),
		Window:     months,
		IncomeCV:   cv,
	}
}

// coefficientOfVariation is the population standard deviation over the
// mean, or 1 when the mean is zero.
func coefficientOfVariation(xs []float64) float64 {
	if len(xs) == 0 {
		return 1
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean := sum / float64(len(xs))
	if mean == 0 {
		return 1
	}
	var sq float64
	for _, x := range xs {
		sq += (x - mean) * (x - mean)
	}
	return math.Sqrt(sq/float64(len(xs))) / mean
}

func confidence(cv float64, th Thresholds) Confidence {
	switch {
	case cv < th.HighConfidenceCV:
		return ConfidenceHigh
	case cv > th.LowConfidenceCV:
		return ConfidenceLow
	default:
		return ConfidenceMedium
	}
}
