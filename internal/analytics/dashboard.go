package analytics

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MuhamadAdhiWinata/catatan-keuangan/internal/ledger"
	"github.com/MuhamadAdhiWinata/catatan-keuangan/internal/log"
)

const dashboardMonths = 6

// Dashboard bundles every analytics view of one user.
type Dashboard struct {
	UserID      int64        `json:"userId"`
	GeneratedAt time.Time    `json:"generatedAt"`
	Cashflow    []MonthPoint `json:"cashflow"`
	Forecast    Forecast     `json:"forecast"`
	Anomalies   []Anomaly    `json:"anomalies"`
	Insights    Insights     `json:"insights"`
	Health      Health       `json:"health"`
}

// Dashboard computes all views concurrently. With a dashboard cache the
// result is reused until the user's ledger changes or the entry expires. A
// result whose computation overlapped a ledger change is returned but not
// cached.
func (e *Engine) Dashboard(ctx context.Context, userID int64) (Dashboard, error) {
	var gen uint64
	if e.dashboards != nil {
		if d, ok := e.dashboards.Get(userID); ok {
			return d, nil
		}
		gen = e.generation(userID)
	}

	d := Dashboard{UserID: userID, GeneratedAt: e.now().UTC()}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		d.Cashflow, err = e.MonthlyCashflow(gctx, userID, dashboardMonths)
		return err
	})
	g.Go(func() (err error) {
		d.Forecast, err = e.Forecast(gctx, userID)
		return err
	})
	g.Go(func() (err error) {
		d.Anomalies, err = e.Anomalies(gctx, userID)
		return err
	})
	g.Go(func() (err error) {
		d.Insights, err = e.Insights(gctx, userID)
		return err
	})
	g.Go(func() (err error) {
		d.Health, err = e.Health(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return Dashboard{}, fmt.Errorf("dashboard: %w", err)
	}

	if e.dashboards != nil {
		e.storeDashboard(gen, d)
	}
	return d, nil
}

func (e *Engine) generation(userID int64) uint64 {
	e.genMu.Lock()
	defer e.genMu.Unlock()
	return e.generations[userID]
}

// storeDashboard caches d only when no ledger change was seen since gen was read.
func (e *Engine) storeDashboard(gen uint64, d Dashboard) {
	e.genMu.Lock()
	defer e.genMu.Unlock()
	if e.generations[d.UserID] != gen {
		return
	}
	e.dashboards.Set(d.UserID, d)
}

// LedgerChanged drops the cached dashboard of the affected user.
func (e *Engine) LedgerChanged(ctx context.Context, ev ledger.ChangeEvent) error {
	if e.dashboards == nil {
		return nil
	}
	e.genMu.Lock()
	e.generations[ev.UserID]++
	e.dashboards.Delete(ev.UserID)
	e.genMu.Unlock()
	e.logger.DebugContext(ctx, "Dashboard cache invalidated",
		log.FieldUserID, ev.UserID, log.FieldEntity, ev.Entity)
	return nil
}

var _ ledger.Listener = (*Engine)(nil)
