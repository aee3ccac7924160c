package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/MuhamadAdhiWinata/catatan-keuangan/internal/analytics"
	"github.com/MuhamadAdhiWinata/catatan-keuangan/internal/export"
	"github.com/MuhamadAdhiWinata/catatan-keuangan/internal/ledger"
	"github.com/MuhamadAdhiWinata/catatan-keuangan/internal/log"
	"github.com/MuhamadAdhiWinata/catatan-keuangan/internal/middleware/ratelimit"
	"github.com/MuhamadAdhiWinata/catatan-keuangan/internal/middleware/security"
	"github.com/MuhamadAdhiWinata/catatan-keuangan/internal/middleware/trace"
)

// Config holds the server settings.
type Config struct {
	Addr      string
	JWTSecret string
	TokenTTL  time.Duration
	// WriteLimit is the number of mutating requests a client may make per
	// minute. Zero uses the limiter default.
	WriteLimit int
	// Ready reports whether dependencies are reachable. Nil means always ready.
	Ready func(ctx context.Context) error
	// Now replaces time.Now for token issuing and default date ranges.
	Now func() time.Time
}

// Server is the JSON API. It embeds http.Server so callers drive it with
// ListenAndServe and Shutdown.
type Server struct {
	http.Server

	ledger    *ledger.Service
	analytics *analytics.Engine
	exporter  *export.Exporter

	tokens   *tokens
	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware
	ready    func(ctx context.Context) error
	now      func() time.Time
	logger   *log.Logger
	txLog    *log.StructuredLogger

	shutdownOnce sync.Once
}

// NewServer wires the routes. The exporter defaults to one over the ledger's
// store.
func NewServer(cfg Config, svc *ledger.Service, engine *analytics.Engine, exporter *export.Exporter) *Server {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if exporter == nil {
		exporter = export.NewExporter(svc.Store())
	}
	logger := log.ForComponent(log.ComponentHTTP)
	detector := security.NewDetector()

	s := &Server{
		ledger:    svc,
		analytics: engine,
		exporter:  exporter,
		tokens:    newTokens(cfg.JWTSecret, cfg.TokenTTL, cfg.Now),
		limiter:   ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: cfg.WriteLimit}),
		detector:  detector,
		tracer:    trace.NewMiddleware(logger, detector.ExtractClientIP),
		ready:     cfg.Ready,
		now:       cfg.Now,
		logger:    logger,
		txLog:     log.NewStructuredLogger(log.ForComponent(log.ComponentLedger)),
	}
	s.Server = http.Server{
		Addr:              cfg.Addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(
		gin.Recovery(),
		s.tracer.Handler(),
		security.Headers(security.DefaultHeadersConfig()),
		s.detector.Middleware(),
		s.limiter.Middleware(s.clientKey, nil, http.MethodPost, http.MethodPatch, http.MethodPut, http.MethodDelete),
	)
	r.NoRoute(func(c *gin.Context) { abortError(c, http.StatusNotFound, "not found") })

	r.GET("/healthz", handleHealth)
	r.GET("/readyz", s.handleReady)

	api := r.Group("/api")
	api.POST("/auth/register", s.handleRegister)
	api.POST("/auth/login", s.handleLogin)

	protected := api.Group("")
	protected.Use(s.requireAuth())
	protected.GET("/me", s.handleMe)

	protected.GET("/accounts", s.handleListAccounts)
	protected.POST("/accounts", s.handleCreateAccount)
	protected.GET("/accounts/:id", s.handleGetAccount)
	protected.PATCH("/accounts/:id", s.handleUpdateAccount)
	protected.DELETE("/accounts/:id", s.handleDeleteAccount)

	protected.GET("/categories", s.handleListCategories)
	protected.POST("/categories", s.handleCreateCategory)
	protected.POST("/categories/seed", s.handleSeedCategories)
	protected.GET("/categories/:id", s.handleGetCategory)
	protected.PATCH("/categories/:id", s.handleUpdateCategory)
	protected.DELETE("/categories/:id", s.handleDeleteCategory)

	protected.GET("/transactions", s.handleListTransactions)
	protected.POST("/transactions", s.handleCreateTransaction)
	protected.GET("/transactions/:id", s.handleGetTransaction)
	protected.PATCH("/transactions/:id", s.handleUpdateTransaction)
	protected.DELETE("/transactions/:id", s.handleDeleteTransaction)

	an := protected.Group("/analytics")
	an.GET("/cashflow", s.handleCashflow)
	an.GET("/breakdown", s.handleBreakdown)
	an.GET("/forecast", s.handleForecast)
	an.GET("/anomalies", s.handleAnomalies)
	an.GET("/insights", s.handleInsights)
	an.GET("/health", s.handleHealthScore)
	an.GET("/dashboard", s.handleDashboard)

	protected.GET("/export", s.handleExport)
	protected.GET("/reconcile", s.handleReconcile)
	return r
}

// clientKey identifies a client by its resolved address.
func (s *Server) clientKey(c *gin.Context) string {
	return s.detector.ExtractClientIP(c.Request)
}

// Shutdown stops background goroutines and drains the HTTP server. Safe to
// call more than once.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

func (s *Server) handleReady(c *gin.Context) {
	if s.ready != nil {
		if err := s.ready(c.Request.Context()); err != nil {
			s.logger.WarnContext(c.Request.Context(), "Readiness check failed", log.FieldError, err)
			c.String(http.StatusServiceUnavailable, "not ready")
			return
		}
	}
	c.String(http.StatusOK, "ready")
}
