package http

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/MuhamadAdhiWinata/catatan-keuangan/internal/analytics"
	"github.com/MuhamadAdhiWinata/catatan-keuangan/internal/core"
	"github.com/MuhamadAdhiWinata/catatan-keuangan/internal/export"
	"github.com/MuhamadAdhiWinata/catatan-keuangan/internal/ledger"
	"github.com/MuhamadAdhiWinata/catatan-keuangan/internal/log"
)

const (
	defaultCashflowMonths = 6
	maxCashflowMonths     = 36
)

func (s *Server) handleCashflow(c *gin.Context) {
	n, err := queryInt(c, "months", defaultCashflowMonths, 1, maxCashflowMonths)
	if err != nil {
		respondError(c, "cashflow", err)
		return
	}
	points, err := s.analytics.MonthlyCashflow(c.Request.Context(), currentUser(c), n)
	if err != nil {
		respondError(c, "cashflow", err)
		return
	}
	c.JSON(http.StatusOK, points)
}

// handleBreakdown defaults to expenses of the current month to date.
func (s *Server) handleBreakdown(c *gin.Context) {
	today := core.DateOf(s.now())
	typ, err := queryTransactionType(c, "type", core.Expense)
	if err != nil {
		respondError(c, "breakdown", err)
		return
	}
	from, err := queryDate(c, "from", analytics.MonthOf(today).First())
	if err != nil {
		respondError(c, "breakdown", err)
		return
	}
	to, err := queryDate(c, "to", today)
	if err != nil {
		respondError(c, "breakdown", err)
		return
	}
	if to.Before(from.Time) {
		respondError(c, "breakdown", core.Invalid("to", "must not be before from"))
		return
	}

	shares, err := s.analytics.CategoryBreakdown(c.Request.Context(), currentUser(c), typ, from, to)
	if err != nil {
		respondError(c, "breakdown", err)
		return
	}
	if shares == nil {
		shares = []analytics.CategoryShare{}
	}
	c.JSON(http.StatusOK, shares)
}

func (s *Server) handleForecast(c *gin.Context) {
	f, err := s.analytics.Forecast(c.Request.Context(), currentUser(c))
	if err != nil {
		respondError(c, "forecast", err)
		return
	}
	c.JSON(http.StatusOK, f)
}

func (s *Server) handleAnomalies(c *gin.Context) {
	list, err := s.analytics.Anomalies(c.Request.Context(), currentUser(c))
	if err != nil {
		respondError(c, "anomalies", err)
		return
	}
	if list == nil {
		list = []analytics.Anomaly{}
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) handleInsights(c *gin.Context) {
	ins, err := s.analytics.Insights(c.Request.Context(), currentUser(c))
	if err != nil {
		respondError(c, "insights", err)
		return
	}
	c.JSON(http.StatusOK, ins)
}

// healthResponse adds the display label of the runway.
type healthResponse struct {
	analytics.Health
	RunwayLabel string `json:"runwayLabel"`
}

func (s *Server) handleHealthScore(c *gin.Context) {
	h, err := s.analytics.Health(c.Request.Context(), currentUser(c))
	if err != nil {
		respondError(c, "health", err)
		return
	}
	c.JSON(http.StatusOK, healthResponse{Health: h, RunwayLabel: h.RunwayLabel()})
}

func (s *Server) handleDashboard(c *gin.Context) {
	d, err := s.analytics.Dashboard(c.Request.Context(), currentUser(c))
	if err != nil {
		respondError(c, "dashboard", err)
		return
	}
	c.JSON(http.StatusOK, d)
}

// handleExport renders the whole ledger before writing so a failure still
// yields a clean error response.
func (s *Server) handleExport(c *gin.Context) {
	ctx := c.Request.Context()
	format, err := export.ParseFormat(c.DefaultQuery("format", string(export.CSV)))
	if err != nil {
		respondError(c, "export", err)
		return
	}

	var buf bytes.Buffer
	if err := s.exporter.Export(ctx, currentUser(c), format, &buf); err != nil {
		respondError(c, "export", err)
		return
	}
	log.FromContext(ctx).InfoContext(ctx, "Ledger exported",
		log.FieldUserID, currentUser(c),
		log.FieldFormat, format,
		log.FieldOperation, log.OpExport)

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", format.Filename(s.now())))
	c.Data(http.StatusOK, format.ContentType(), buf.Bytes())
}

func (s *Server) handleReconcile(c *gin.Context) {
	list, err := s.ledger.Reconcile(c.Request.Context(), currentUser(c))
	if err != nil {
		respondError(c, "reconcile", err)
		return
	}
	if list == nil {
		list = []ledger.Discrepancy{}
	}
	c.JSON(http.StatusOK, gin.H{"consistent": len(list) == 0, "discrepancies": list})
}
