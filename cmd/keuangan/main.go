package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/MuhamadAdhiWinata/catatan-keuangan/internal/amqp"
	"github.com/MuhamadAdhiWinata/catatan-keuangan/internal/cli"
	apphttp "github.com/MuhamadAdhiWinata/catatan-keuangan/internal/http"
	"github.com/MuhamadAdhiWinata/catatan-keuangan/internal/ledger"
	"github.com/MuhamadAdhiWinata/catatan-keuangan/internal/log"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), log.ComponentApp)
	cfg := cli.LoadAndValidateServerConfig(logger)

	res, err := cli.OpenStore(context.Background(), logger, cfg)
	if err != nil {
		logger.Error("Failed to initialize ledger store", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer res.Cleanup()

	svc := ledger.NewService(res.Store, ledger.WithLogger(logger.WithComponent(log.ComponentLedger)))

	engine, janitor := cli.NewEngine(cfg, res.Store)
	svc.Subscribe(engine)

	// Publish ledger changes for the sheets worker when a broker is configured
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			os.Exit(1)
		}
		defer amqpClient.Close()
		svc.Subscribe(amqpClient)
		logger.Info("Publishing ledger events", "exchange", cfg.AMQPExchange)
	} else {
		logger.Info("AMQP disabled - no AMQP_URL provided")
	}

	srv := apphttp.NewServer(apphttp.Config{
		Addr:      ":" + cfg.Port,
		JWTSecret: cfg.JWTSecret,
		TokenTTL:  cfg.TokenTTL,
		Ready: func(ctx context.Context) error {
			_, err := res.Store.CountCategories(ctx, 0)
			return err
		},
	}, svc, engine, nil)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
	})

	if janitor != nil {
		go janitor.Run(ctx, cfg.CacheTTL)
	}

	logger.Info("Starting catatan-keuangan server", "port", cfg.Port, "backend", cfg.DataBackend)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
