// Package analytics derives statistics from a user's ledger: monthly
// cashflow, category breakdowns, a moving-average forecast, anomaly
// detection, spending insights and financial health. Every query is a pure
// read scoped to one user and can run in parallel with the others.
package analytics

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/MuhamadAdhiWinata/catatan-keuangan/internal/cache"
	"github.com/MuhamadAdhiWinata/catatan-keuangan/internal/core"
	"github.com/MuhamadAdhiWinata/catatan-keuangan/internal/log"
	"github.com/MuhamadAdhiWinata/catatan-keuangan/internal/storage"
)

// Thresholds are the tunable knobs of the engine.
type Thresholds struct {
	// AnomalyRatio flags a recent expense at or above this multiple of its
	// category's historical average.
	AnomalyRatio float64
	// MinAnomalySamples is the number of historical expenses a category
	// needs before it can produce anomalies.
	MinAnomalySamples int
	// InsightTrendPct separates up/down from stable month-over-month spending.
	InsightTrendPct float64
	// HealthTrendPct separates increasing/decreasing from stable in Health.
	HealthTrendPct float64
	// HighConfidenceCV and LowConfidenceCV bound the forecast income
	// coefficient of variation.
	HighConfidenceCV float64
	LowConfidenceCV  float64
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		AnomalyRatio:      2.0,
		MinAnomalySamples: 2,
		InsightTrendPct:   5,
		HealthTrendPct:    10,
		HighConfidenceCV:  0.2,
		LowConfidenceCV:   0.5,
	}
}

// Engine answers analytics queries over a store.
type Engine struct {
	store      storage.Reader
	now        func() time.Time
	thresholds Thresholds
	dashboards *cache.LRU[int64, Dashboard]
	logger     *log.Logger

	// genMu guards generations and orders cache fills against invalidation.
	genMu       sync.Mutex
	generations map[int64]uint64
}

type Option func(*Engine)

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithThresholds(t Thresholds) Option {
	return func(e *Engine) { e.thresholds = t }
}

// WithDashboardCache memoizes Dashboard results per user.
func WithDashboardCache(c *cache.LRU[int64, Dashboard]) Option {
	return func(e *Engine) { e.dashboards = c }
}

func WithLogger(l *log.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

func NewEngine(store storage.Reader, opts ...Option) *Engine {
	e := &Engine{
		store:       store,
		now:         time.Now,
		thresholds:  DefaultThresholds(),
		generations: map[int64]uint64{},
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = log.ForComponent(log.ComponentAnalytics)
	}
	return e
}

func (e *Engine) Thresholds() Thresholds { return e.thresholds }

// today is the engine's current calendar date.
func (e *Engine) today() core.Date {
	return core.DateOf(e.now())
}

func (e *Engine) transactions(ctx context.Context, f storage.TransactionFilter) ([]core.Transaction, error) {
	list, err := e.store.ListTransactions(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("load transactions: %w", err)
	}
	return list, nil
}

func (e *Engine) categoryIndex(ctx context.Context, userID int64) (map[int64]core.Category, error) {
	list, err := e.store.ListCategories(ctx, storage.CategoryFilter{UserID: userID})
	if err != nil {
		return nil, fmt.Errorf("load categories: %w", err)
	}
	idx := make(map[int64]core.Category, len(list))
	for _, c := range list {
		idx[c.ID] = c
	}
	return idx, nil
}

// ratio returns a/b as a float, 0 when b is zero.
func ratio(a, b decimal.Decimal) float64 {
	if b.IsZero() {
		return 0
	}
	return a.Div(b).InexactFloat64()
}

// percentChange returns (cur-prev)/prev*100, 0 when prev is zero.
func percentChange(cur, prev decimal.Decimal) float64 {
	if prev.IsZero() {
		return 0
	}
	return cur.Sub(prev).Div(prev).Mul(decimal.NewFromInt(100)).InexactFloat64()
}
