package report

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/MuhamadAdhiWinata/catatan-keuangan/internal/analytics"
	"github.com/MuhamadAdhiWinata/catatan-keuangan/internal/core"
	"github.com/MuhamadAdhiWinata/catatan-keuangan/internal/ledger"
)

// DashboardMarkdown renders every section of a dashboard.
func DashboardMarkdown(d analytics.Dashboard, m Money) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Financial Dashboard\n\n_Generated %s_\n\n", d.GeneratedAt.Format("2006-01-02 15:04 MST"))

	b.WriteString("## Health\n\n")
	table(&b, []string{"Metric", "Value"}, [][]string{
		{"Total balance", m.Format(d.Health.TotalBalance)},
		{"Burn rate", m.Format(d.Health.BurnRate) + " / month"},
		{"Runway", d.Health.RunwayLabel() + " months"},
		{"Spending trend", fmt.Sprintf("%s (%d%%)", d.Health.Trend, d.Health.TrendPct)},
	})

	b.WriteString("## Cashflow\n\n")
	rows := make([][]string, 0, len(d.Cashflow))
	for _, p := range d.Cashflow {
		rows = append(rows, []string{p.Month.String(), m.Format(p.Income), m.Format(p.Expense), m.Signed(p.Net)})
	}
	table(&b, []string{"Month", "Income", "Expense", "Net"}, rows)

	b.WriteString("## Forecast\n\n")
	if len(d.Forecast.Window) == 0 {
		b.WriteString("Not enough history for a forecast yet.\n\n")
	} else {
		table(&b, []string{"Next month", "Amount"}, [][]string{
			{"Income", m.Format(d.Forecast.Income)},
			{"Expense", m.Format(d.Forecast.Expense)},
			{"Net", m.Signed(d.Forecast.Net)},
			{"Confidence", string(d.Forecast.Confidence)},
		})
	}

	b.WriteString("## Top Categories\n\n")
	if len(d.Insights.TopCategories) == 0 {
		b.WriteString("No expenses in the last three months.\n\n")
	} else {
		rows = rows[:0]
		for _, s := range d.Insights.TopCategories {
			rows = append(rows, []string{categoryLabel(s.Name), m.Format(s.Amount), fmt.Sprintf("%.1f%%", s.Percentage)})
		}
		table(&b, []string{"Category", "Amount", "Share"}, rows)
	}

	mom := d.Insights.MonthOverMonth
	fmt.Fprintf(&b, "Spending this month is **%s** %.0f%% against last month (%s vs %s).\n\n",
		mom.Direction, mom.ChangePct, m.Format(mom.Current), m.Format(mom.Previous))

	if len(d.Anomalies) > 0 {
		b.WriteString("## Unusual Expenses\n\n")
		rows = rows[:0]
		for _, a := range d.Anomalies {
			rows = append(rows, []string{
				a.Transaction.Date.Format(core.DateLayout),
				categoryLabel(a.CategoryName),
				m.Format(a.Transaction.Amount),
				m.Format(a.Average),
				fmt.Sprintf("%.1fx", a.Ratio),
			})
		}
		table(&b, []string{"Date", "Category", "Amount", "Usual", "Ratio"}, rows)
	}

	return b.String()
}

// ReconcileMarkdown lists accounts whose stored balance disagrees with
// their transactions.
func ReconcileMarkdown(username string, ds []ledger.Discrepancy, m Money) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Reconciliation for %s\n\n", username)
	if len(ds) == 0 {
		b.WriteString("All account balances match their transactions.\n")
		return b.String()
	}
	rows := make([][]string, 0, len(ds))
	for _, d := range ds {
		rows = append(rows, []string{d.Name, m.Format(d.Stored), m.Format(d.Expected), m.Signed(d.Stored.Sub(d.Expected))})
	}
	table(&b, []string{"Account", "Stored", "Expected", "Difference"}, rows)
	return b.String()
}

func categoryLabel(name string) string {
	if name == "" {
		return "(deleted category)"
	}
	return name
}

// table writes a GitHub-flavored markdown table; the first column is left
// aligned, the rest right aligned.
func table(b *strings.Builder, header []string, rows [][]string) {
	row := func(cells []string) {
		b.WriteString("|")
		for _, c := range cells {
			b.WriteString(" " + strings.ReplaceAll(c, "|", `\|`) + " |")
		}
		b.WriteString("\n")
	}
	row(header)
	b.WriteString("|")
	for i := range header {
		if i == 0 {
			b.WriteString(" :--- |")
		} else {
			b.WriteString(" ---: |")
		}
	}
	b.WriteString("\n")
	for _, r := range rows {
		row(r)
	}
	b.WriteString("\n")
}

// Render formats markdown for a terminal of the given width.
func Render(markdown string, width int) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", fmt.Errorf("create renderer: %w", err)
	}
	out, err := r.Render(markdown)
	if err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return out, nil
}
