package analytics

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/MuhamadAdhiWinata/catatan-keuangan/internal/core"
)

// Month is a calendar month.
type Month struct {
	Year  int
	Month time.Month
}

func MonthOf(d core.Date) Month {
	return Month{Year: d.Year(), Month: d.Month()}
}

// Add moves k months forward (backward when k is negative).
func (m Month) Add(k int) Month {
	t := time.Date(m.Year, m.Month+time.Month(k), 1, 0, 0, 0, 0, time.UTC)
	return Month{Year: t.Year(), Month: t.Month()}
}

// First returns the first day of the month.
func (m Month) First() core.Date {
	return core.NewDate(m.Year, int(m.Month), 1)
}

// Last returns the last day of the month.
func (m Month) Last() core.Date {
	return core.Date{Time: m.Add(1).First().AddDate(0, 0, -1)}
}

func (m Month) Contains(d core.Date) bool {
	return d.Year() == m.Year && d.Month() == m.Month
}

func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

func (m Month) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// ParseMonth parses a YYYY-MM string.
func ParseMonth(s string) (Month, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return Month{}, core.Invalid("month", "must be in YYYY-MM format")
	}
	return Month{Year: t.Year(), Month: t.Month()}, nil
}

func (m *Month) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseMonth(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
