package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/MuhamadAdhiWinata/catatan-keuangan/internal/analytics"
	"github.com/MuhamadAdhiWinata/catatan-keuangan/internal/cli"
	"github.com/MuhamadAdhiWinata/catatan-keuangan/internal/config"
	"github.com/MuhamadAdhiWinata/catatan-keuangan/internal/core"
	"github.com/MuhamadAdhiWinata/catatan-keuangan/internal/ledger"
	"github.com/MuhamadAdhiWinata/catatan-keuangan/internal/log"
	"github.com/MuhamadAdhiWinata/catatan-keuangan/internal/report"
	"github.com/MuhamadAdhiWinata/catatan-keuangan/internal/storage"
)

// app is the state shared by every subcommand. It is opened lazily so that
// help and usage output never touch the store.
type app struct {
	cfg     *config.Config
	logger  *log.Logger
	svc     *ledger.Service
	engine  *analytics.Engine
	out     io.Writer
	cleanup func() error
}

func (a *app) open(ctx context.Context) error {
	if a.svc != nil {
		return nil
	}
	cli.LoadEnvFile()

	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		level = "warn"
	}
	a.logger = cli.SetupLogger(level, log.ComponentCLI)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	res, err := cli.OpenStore(ctx, a.logger, cfg)
	if err != nil {
		return fmt.Errorf("open ledger store: %w", err)
	}
	a.cleanup = res.Cleanup
	a.svc = ledger.NewService(res.Store, ledger.WithLogger(a.logger.WithComponent(log.ComponentLedger)))
	a.engine, _ = cli.NewEngine(cfg, res.Store)
	return nil
}

func (a *app) close() {
	if a.cleanup == nil {
		return
	}
	if err := a.cleanup(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: close store: %v\n", err)
	}
	a.cleanup = nil
}

func (a *app) store() storage.Reader {
	return a.svc.Store()
}

func (a *app) money() report.Money {
	return report.NewMoney(a.cfg.Currency)
}

// user resolves a username flag to a stored user.
func (a *app) user(ctx context.Context, username string) (core.User, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" {
		return core.User{}, errors.New("missing -u <username>")
	}
	u, err := a.store().GetUserByUsername(ctx, username)
	if errors.Is(err, storage.ErrNotFound) {
		return core.User{}, fmt.Errorf("unknown user %q", username)
	}
	return u, err
}

// print writes markdown, rendered for the terminal unless raw is set.
func (a *app) print(markdown string, raw bool, width int) error {
	if raw {
		_, err := io.WriteString(a.out, markdown)
		return err
	}
	out, err := report.Render(markdown, width)
	if err != nil {
		return err
	}
	_, err = io.WriteString(a.out, out)
	return err
}
