package worker

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MuhamadAdhiWinata/catatan-keuangan/internal/amqp"
	"github.com/MuhamadAdhiWinata/catatan-keuangan/internal/export"
	"github.com/MuhamadAdhiWinata/catatan-keuangan/internal/log"
	"github.com/MuhamadAdhiWinata/catatan-keuangan/internal/sheets"
	"github.com/MuhamadAdhiWinata/catatan-keuangan/internal/storage"
)

const syncConcurrency = 4

// SyncWorker mirrors each user's export rows into a spreadsheet tab.
type SyncWorker struct {
	store    storage.Reader
	exporter *export.Exporter
	sink     sheets.RowWriter
	baseTab  string
	logger   *log.Logger

	mu      sync.Mutex
	pending map[int64]struct{}
}

func NewSyncWorker(store storage.Reader, sink sheets.RowWriter, baseTab string) *SyncWorker {
	return &SyncWorker{
		store:    store,
		exporter: export.NewExporter(store),
		sink:     sink,
		baseTab:  baseTab,
		logger:   log.ForComponent(log.ComponentWorker),
		pending:  map[int64]struct{}{},
	}
}

// HandleLedgerEvent resyncs the user named by an AMQP message. A failed
// sync is remembered for ProcessPending rather than requeued, so a broken
// sink does not spin the queue.
func (w *SyncWorker) HandleLedgerEvent(ctx context.Context, msg *amqp.LedgerEventMessage) error {
	w.logger.InfoContext(ctx, "Processing ledger event",
		log.FieldUserID, msg.UserID,
		log.FieldEntity, msg.Entity,
		log.FieldOperation, msg.Op)

	if err := w.SyncUser(ctx, msg.UserID); err != nil {
		w.markPending(msg.UserID)
		w.logger.ErrorContext(ctx, "Sync failed, will retry",
			log.FieldUserID, msg.UserID, log.FieldError, err)
	}
	return nil
}

// SyncUser replaces the user's tab with the current export rows. Unknown
// users are skipped.
func (w *SyncWorker) SyncUser(ctx context.Context, userID int64) error {
	user, err := w.store.GetUser(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		w.logger.WarnContext(ctx, "Skipping sync for unknown user", log.FieldUserID, userID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}

	snap, err := w.exporter.Snapshot(ctx, userID)
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	rows := export.Rows(snap)

	tab := sheets.TabName(w.baseTab, user.Username)
	if err := w.sink.ReplaceRows(ctx, tab, rows); err != nil {
		return fmt.Errorf("write %s: %w", tab, err)
	}

	w.clearPending(userID)
	w.logger.InfoContext(ctx, "Synced ledger to sheet",
		log.FieldUserID, userID, "tab", tab, log.FieldRows, len(rows)-1)
	return nil
}

// ErrOutOfSync reports a tab whose rows differ from the ledger export.
var ErrOutOfSync = errors.New("sheet out of sync")

// VerifyUser reads the user's tab back through reader and compares it with
// the current export rows. It returns the number of data rows checked.
func (w *SyncWorker) VerifyUser(ctx context.Context, reader sheets.RowReader, userID int64) (int, error) {
	user, err := w.store.GetUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("get user: %w", err)
	}
	snap, err := w.exporter.Snapshot(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("snapshot: %w", err)
	}
	want := export.Rows(snap)

	tab := sheets.TabName(w.baseTab, user.Username)
	got, err := reader.ReadRows(ctx, tab)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", tab, err)
	}
	if len(got) != len(want) {
		return 0, fmt.Errorf("%w: %s has %d rows, want %d", ErrOutOfSync, tab, len(got), len(want))
	}
	for i := range want {
		if !slices.Equal(trimRow(got[i]), trimRow(want[i])) {
			return 0, fmt.Errorf("%w: %s row %d differs", ErrOutOfSync, tab, i+1)
		}
	}
	return len(want) - 1, nil
}

// trimRow drops trailing empty cells, which Sheets omits when reading.
func trimRow(row []string) []string {
	n := len(row)
	for n > 0 && row[n-1] == "" {
		n--
	}
	return row[:n]
}

// SyncUsers syncs several users concurrently and returns how many succeeded.
func (w *SyncWorker) SyncUsers(ctx context.Context, ids []int64) (int, error) {
	var (
		mu     sync.Mutex
		synced int
		errs   []error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(syncConcurrency)
	for _, id := range ids {
		g.Go(func() error {
			err := w.SyncUser(gctx, id)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				w.markPending(id)
				errs = append(errs, fmt.Errorf("user %d: %w", id, err))
				return nil
			}
			synced++
			return nil
		})
	}
	g.Wait()
	return synced, errors.Join(errs...)
}

// ProcessPending retries users whose last sync failed.
func (w *SyncWorker) ProcessPending(ctx context.Context) error {
	w.mu.Lock()
	ids := slices.Sorted(maps.Keys(w.pending))
	w.mu.Unlock()
	if len(ids) == 0 {
		return nil
	}

	w.logger.InfoContext(ctx, "Retrying pending syncs", "count", len(ids))
	synced, err := w.SyncUsers(ctx, ids)
	w.logger.InfoContext(ctx, "Pending sync completed",
		"total", len(ids), "synced", synced, "errors", len(ids)-synced)
	return err
}

// Run calls ProcessPending every interval until ctx is done.
func (w *SyncWorker) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.ProcessPending(ctx); err != nil {
				w.logger.WarnContext(ctx, "Pending sync failed", log.FieldError, err)
			}
		}
	}
}

// Pending returns the user ids awaiting a retry.
func (w *SyncWorker) Pending() []int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return slices.Sorted(maps.Keys(w.pending))
}

func (w *SyncWorker) markPending(userID int64) {
	w.mu.Lock()
	w.pending[userID] = struct{}{}
	w.mu.Unlock()
}

func (w *SyncWorker) clearPending(userID int64) {
	w.mu.Lock()
	delete(w.pending, userID)
	w.mu.Unlock()
}
