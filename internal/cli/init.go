// Package cli provides common initialization utilities.
// This package consolidates the start-up sequence shared by cmd/keuangan,
// cmd/keuangan-worker and cmd/keuanganctl.
package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/MuhamadAdhiWinata/catatan-keuangan/internal/analytics"
	"github.com/MuhamadAdhiWinata/catatan-keuangan/internal/backend"
	"github.com/MuhamadAdhiWinata/catatan-keuangan/internal/cache"
	"github.com/MuhamadAdhiWinata/catatan-keuangan/internal/config"
	"github.com/MuhamadAdhiWinata/catatan-keuangan/internal/log"
	"github.com/MuhamadAdhiWinata/catatan-keuangan/internal/sheets"
	gsheet "github.com/MuhamadAdhiWinata/catatan-keuangan/internal/sheets/google"
	memsheet "github.com/MuhamadAdhiWinata/catatan-keuangan/internal/sheets/memory"
	"github.com/MuhamadAdhiWinata/catatan-keuangan/internal/storage"
)

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger builds the process logger at the given LOG_LEVEL and makes it
// the slog default, so component loggers share its handler.
func SetupLogger(level string, component string) *log.Logger {
	lvl := log.ParseLevel(level)
	logger := log.New(log.Config{
		Level:     lvl,
		Component: component,
		Handler:   slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}),
	})
	log.SetDefault(logger)
	return logger
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *log.Logger) *config.Config {
	return loadOrExit(logger, (*config.Config).Validate)
}

// LoadAndValidateServerConfig is LoadAndValidateConfig plus the token
// settings the HTTP server signs sessions with.
func LoadAndValidateServerConfig(logger *log.Logger) *config.Config {
	return loadOrExit(logger, (*config.Config).ValidateServer)
}

func loadOrExit(logger *log.Logger, validate func(*config.Config) error) *config.Config {
	cfg := config.Load()
	if err := validate(cfg); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	return cfg
}

// OpenStore creates the ledger store selected by DATA_BACKEND.
func OpenStore(ctx context.Context, logger *log.Logger, cfg *config.Config) (*backend.BackendResult, error) {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	return backend.NewFactory(logger.WithComponent(log.ComponentBackend)).CreateBackend(ctx, bcfg)
}

// Thresholds maps the analytics settings of cfg onto engine thresholds.
// Settings without a config knob keep their defaults.
func Thresholds(cfg *config.Config) analytics.Thresholds {
	th := analytics.DefaultThresholds()
	if cfg.AnomalyRatio > 0 {
		th.AnomalyRatio = cfg.AnomalyRatio
	}
	th.InsightTrendPct = cfg.InsightTrendPct
	th.HealthTrendPct = cfg.HealthTrendPct
	return th
}

// DashboardCache returns the dashboard cache sized by cfg, or nil when
// CACHE_SIZE is zero.
func DashboardCache(cfg *config.Config) *cache.LRU[int64, analytics.Dashboard] {
	if cfg.CacheSize <= 0 {
		return nil
	}
	return cache.NewLRU[int64, analytics.Dashboard](cfg.CacheSize, cfg.CacheTTL)
}

// NewEngine builds the analytics engine configured by cfg. The returned
// janitor must be started by the caller when non-nil.
func NewEngine(cfg *config.Config, store storage.Reader, opts ...analytics.Option) (*analytics.Engine, *cache.Janitor) {
	opts = append([]analytics.Option{analytics.WithThresholds(Thresholds(cfg))}, opts...)
	dashboards := DashboardCache(cfg)
	if dashboards == nil {
		return analytics.NewEngine(store, opts...), nil
	}
	opts = append(opts, analytics.WithDashboardCache(dashboards))
	return analytics.NewEngine(store, opts...), cache.NewJanitor(dashboards)
}

// NewSink returns the Google Sheets export sink when a spreadsheet is
// configured and an in-process sink otherwise.
func NewSink(ctx context.Context, logger *log.Logger, cfg *config.Config) (sheets.Sink, error) {
	if !cfg.SheetsEnabled() {
		logger.Info("Google Sheets disabled - no GOOGLE_SPREADSHEET_ID provided")
		return memsheet.New(), nil
	}
	client, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.GoogleServiceAccountFile,
	})
	if err != nil {
		return nil, err
	}
	logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	return client, nil
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that will be cancelled on shutdown signals,
// and a channel that signals when shutdown is complete.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func(ctx context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		if cleanup != nil {
			cleanup(shutdownCtx)
		}
		cancel()
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
