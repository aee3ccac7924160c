package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/subcommands"

	"github.com/MuhamadAdhiWinata/catatan-keuangan/internal/cli"
	"github.com/MuhamadAdhiWinata/catatan-keuangan/internal/export"
	"github.com/MuhamadAdhiWinata/catatan-keuangan/internal/report"
	"github.com/MuhamadAdhiWinata/catatan-keuangan/internal/sheets"
	"github.com/MuhamadAdhiWinata/catatan-keuangan/internal/worker"
)

func commands(a *app) []subcommands.Command {
	return []subcommands.Command{
		&registerCmd{app: a},
		&seedCmd{app: a},
		&reportCmd{app: a},
		&exportCmd{app: a},
		&reconcileCmd{app: a},
		&syncCmd{app: a},
	}
}

func fail(err error) subcommands.ExitStatus {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	return subcommands.ExitFailure
}

type registerCmd struct {
	app      *app
	username string
	password string
}

func (*registerCmd) Name() string     { return "register" }
func (*registerCmd) Synopsis() string { return "create a user with the default categories" }
func (*registerCmd) Usage() string {
	return `keuanganctl register -u <username> -p <password>

  Creates a user and seeds the default income, expense and transfer categories.
`
}

func (c *registerCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.username, "u", "", "username")
	f.StringVar(&c.password, "p", "", "password")
}

func (c *registerCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if err := c.app.open(ctx); err != nil {
		return fail(err)
	}
	u, err := c.app.svc.Register(ctx, c.username, c.password)
	if err != nil {
		return fail(err)
	}
	fmt.Fprintf(c.app.out, "registered %s (id %d)\n", u.Username, u.ID)
	return subcommands.ExitSuccess
}

type seedCmd struct {
	app      *app
	username string
}

func (*seedCmd) Name() string     { return "seed" }
func (*seedCmd) Synopsis() string { return "seed the default categories for a user who has none" }
func (*seedCmd) Usage() string {
	return `keuanganctl seed -u <username>

  Inserts the default categories when the user has no categories at all.
  A user with any category is left unchanged.
`
}

func (c *seedCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.username, "u", "", "username")
}

func (c *seedCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if err := c.app.open(ctx); err != nil {
		return fail(err)
	}
	u, err := c.app.user(ctx, c.username)
	if err != nil {
		return fail(err)
	}
	n, err := c.app.svc.SeedCategories(ctx, u.ID)
	if err != nil {
		return fail(err)
	}
	fmt.Fprintf(c.app.out, "inserted %d categories for %s\n", n, u.Username)
	return subcommands.ExitSuccess
}

type reportCmd struct {
	app      *app
	username string
	raw      bool
	width    int
}

func (*reportCmd) Name() string     { return "report" }
func (*reportCmd) Synopsis() string { return "display the financial dashboard of a user" }
func (*reportCmd) Usage() string {
	return `keuanganctl report -u <username> [-raw] [-width n]

  Displays cashflow, forecast, anomalies, insights and health.
`
}

func (c *reportCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.username, "u", "", "username")
	f.BoolVar(&c.raw, "raw", false, "print markdown without terminal styling")
	f.IntVar(&c.width, "width", 100, "word wrap width")
}

func (c *reportCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if err := c.app.open(ctx); err != nil {
		return fail(err)
	}
	u, err := c.app.user(ctx, c.username)
	if err != nil {
		return fail(err)
	}
	d, err := c.app.engine.Dashboard(ctx, u.ID)
	if err != nil {
		return fail(err)
	}
	if err := c.app.print(report.DashboardMarkdown(d, c.app.money()), c.raw, c.width); err != nil {
		return fail(err)
	}
	return subcommands.ExitSuccess
}

type exportCmd struct {
	app      *app
	username string
	format   string
	output   string
}

func (*exportCmd) Name() string     { return "export" }
func (*exportCmd) Synopsis() string { return "export a user's ledger as csv, json or xlsx" }
func (*exportCmd) Usage() string {
	return `keuanganctl export -u <username> [-f csv|json|xlsx] [-o file]

  Writes the ledger to a file named after today's date, or to stdout with -o -.
`
}

func (c *exportCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.username, "u", "", "username")
	f.StringVar(&c.format, "f", "csv", "export format")
	f.StringVar(&c.output, "o", "", "output file, - for stdout")
}

func (c *exportCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	format, err := export.ParseFormat(c.format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	if err := c.app.open(ctx); err != nil {
		return fail(err)
	}
	u, err := c.app.user(ctx, c.username)
	if err != nil {
		return fail(err)
	}

	exporter := export.NewExporter(c.app.store())
	if c.output == "-" {
		if err := exporter.Export(ctx, u.ID, format, c.app.out); err != nil {
			return fail(err)
		}
		return subcommands.ExitSuccess
	}

	name := c.output
	if name == "" {
		name = format.Filename(time.Now())
	}
	if err := writeFile(name, func(w io.Writer) error {
		return exporter.Export(ctx, u.ID, format, w)
	}); err != nil {
		return fail(err)
	}
	fmt.Fprintf(c.app.out, "wrote %s\n", name)
	return subcommands.ExitSuccess
}

func writeFile(name string, fn func(w io.Writer) error) error {
	file, err := os.Create(name)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(file)
	if err := fn(w); err != nil {
		file.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

type reconcileCmd struct {
	app      *app
	username string
	raw      bool
}

func (*reconcileCmd) Name() string     { return "reconcile" }
func (*reconcileCmd) Synopsis() string { return "compare stored balances with the transaction history" }
func (*reconcileCmd) Usage() string {
	return `keuanganctl reconcile -u <username> [-raw]

  Lists accounts whose balance does not match their transactions.
  Exits with status 1 when any account disagrees.
`
}

func (c *reconcileCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.username, "u", "", "username")
	f.BoolVar(&c.raw, "raw", false, "print markdown without terminal styling")
}

func (c *reconcileCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if err := c.app.open(ctx); err != nil {
		return fail(err)
	}
	u, err := c.app.user(ctx, c.username)
	if err != nil {
		return fail(err)
	}
	ds, err := c.app.svc.Reconcile(ctx, u.ID)
	if err != nil {
		return fail(err)
	}
	if err := c.app.print(report.ReconcileMarkdown(u.Username, ds, c.app.money()), c.raw, 100); err != nil {
		return fail(err)
	}
	if len(ds) > 0 {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

type syncCmd struct {
	app      *app
	username string
}

func (*syncCmd) Name() string     { return "sync" }
func (*syncCmd) Synopsis() string { return "mirror a user's ledger into the export spreadsheet" }
func (*syncCmd) Usage() string {
	return `keuanganctl sync -u <username>

  Replaces the user's spreadsheet tab with the current export rows, then
  reads the tab back and checks it matches.
`
}

func (c *syncCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.username, "u", "", "username")
}

func (c *syncCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if err := c.app.open(ctx); err != nil {
		return fail(err)
	}
	u, err := c.app.user(ctx, c.username)
	if err != nil {
		return fail(err)
	}
	sink, err := cli.NewSink(ctx, c.app.logger, c.app.cfg)
	if err != nil {
		return fail(err)
	}
	w := worker.NewSyncWorker(c.app.store(), sink, c.app.cfg.GoogleSheetName)
	if err := w.SyncUser(ctx, u.ID); err != nil {
		return fail(err)
	}
	n, err := w.VerifyUser(ctx, sink, u.ID)
	if err != nil {
		return fail(err)
	}
	fmt.Fprintf(c.app.out, "synced %s, verified %d rows\n", sheets.TabName(c.app.cfg.GoogleSheetName, u.Username), n)
	return subcommands.ExitSuccess
}
