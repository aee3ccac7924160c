package worker

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/MuhamadAdhiWinata/catatan-keuangan/internal/amqp"
	"github.com/MuhamadAdhiWinata/catatan-keuangan/internal/core"
	"github.com/MuhamadAdhiWinata/catatan-keuangan/internal/export"
	"github.com/MuhamadAdhiWinata/catatan-keuangan/internal/ledger"
	sheetmem "github.com/MuhamadAdhiWinata/catatan-keuangan/internal/sheets/memory"
	"github.com/MuhamadAdhiWinata/catatan-keuangan/internal/storage/memory"
)

type flakySink struct {
	mu    sync.Mutex
	fail  bool
	inner *sheetmem.Store
}

func (f *flakySink) ReplaceRows(ctx context.Context, tab string, rows [][]string) error {
	f.mu.Lock()
	fail := f.fail
	f.mu.Unlock()
	if fail {
		return errors.New("quota exceeded")
	}
	return f.inner.ReplaceRows(ctx, tab, rows)
}

func (f *flakySink) setFail(v bool) {
	f.mu.Lock()
	f.fail = v
	f.mu.Unlock()
}

func seedLedger(t *testing.T) (*ledger.Service, core.User) {
	t.Helper()
	ctx := context.Background()
	svc := ledger.NewService(memory.New(), ledger.WithHashCost(bcrypt.MinCost))
	u, err := svc.Register(ctx, "budi", "rahasia123")
	require.NoError(t, err)
	acc, err := svc.CreateAccount(ctx, u.ID, "BCA", core.Bank)
	require.NoError(t, err)
	cats, err := svc.ListCategories(ctx, u.ID, core.Income)
	require.NoError(t, err)
	_, err = svc.CreateTransaction(ctx, u.ID, ledger.NewTransaction{
		AccountID: acc.ID, CategoryID: cats[0].ID, Type: core.Income,
		Amount: core.MustAmount("5000000"), Date: core.NewDate(2024, 7, 1),
	})
	require.NoError(t, err)
	return svc, u
}

func TestHandleLedgerEventWritesUserTab(t *testing.T) {
	svc, u := seedLedger(t)
	sink := sheetmem.New()
	w := NewSyncWorker(svc.Store(), sink, "Transactions")

	err := w.HandleLedgerEvent(context.Background(), &amqp.LedgerEventMessage{
		UserID: u.ID, Entity: ledger.EntityTransaction, Op: ledger.OpCreated,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"Transactions - budi"}, sink.Tabs())
	rows, err := sink.ReadRows(context.Background(), "Transactions - budi")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, export.Header, rows[0])
	assert.Equal(t, "2024-07-01", rows[1][0])
	assert.Equal(t, "income", rows[1][1])
	assert.Equal(t, "BCA", rows[1][3])
	assert.Equal(t, "5000000", rows[1][4])
}

func TestSyncUnknownUserIsSkipped(t *testing.T) {
	svc, _ := seedLedger(t)
	sink := sheetmem.New()
	w := NewSyncWorker(svc.Store(), sink, "Transactions")

	require.NoError(t, w.SyncUser(context.Background(), 999))
	assert.Zero(t, sink.Writes())
	assert.Empty(t, w.Pending())
}

func TestFailedSyncIsRetried(t *testing.T) {
	svc, u := seedLedger(t)
	sink := &flakySink{fail: true, inner: sheetmem.New()}
	w := NewSyncWorker(svc.Store(), sink, "Transactions")
	ctx := context.Background()

	require.NoError(t, w.HandleLedgerEvent(ctx, &amqp.LedgerEventMessage{UserID: u.ID}))
	assert.Equal(t, []int64{u.ID}, w.Pending())

	assert.Error(t, w.ProcessPending(ctx))
	assert.Equal(t, []int64{u.ID}, w.Pending())

	sink.setFail(false)
	require.NoError(t, w.ProcessPending(ctx))
	assert.Empty(t, w.Pending())
	assert.Equal(t, 1, sink.inner.Writes())
}

func TestSyncUsers(t *testing.T) {
	svc, u := seedLedger(t)
	other, err := svc.Register(context.Background(), "siti", "rahasia123")
	require.NoError(t, err)

	sink := sheetmem.New()
	w := NewSyncWorker(svc.Store(), sink, "")
	synced, err := w.SyncUsers(context.Background(), []int64{u.ID, other.ID})
	require.NoError(t, err)
	assert.Equal(t, 2, synced)
	assert.Equal(t, []string{"Transactions - budi", "Transactions - siti"}, sink.Tabs())

	rows, err := sink.ReadRows(context.Background(), "Transactions - siti")
	require.NoError(t, err)
	assert.Len(t, rows, 1, "a user without transactions gets the header only")
}

func TestVerifyUser(t *testing.T) {
	svc, u := seedLedger(t)
	ctx := context.Background()
	sink := sheetmem.New()
	w := NewSyncWorker(svc.Store(), sink, "Transactions")

	_, err := w.VerifyUser(ctx, sink, u.ID)
	assert.ErrorIs(t, err, ErrOutOfSync, "tab never written")

	require.NoError(t, w.SyncUser(ctx, u.ID))
	n, err := w.VerifyUser(ctx, sink, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	rows, err := sink.ReadRows(ctx, "Transactions - budi")
	require.NoError(t, err)
	require.Equal(t, "", rows[1][5])
	rows[1] = rows[1][:5]
	require.NoError(t, sink.ReplaceRows(ctx, "Transactions - budi", rows))
	_, err = w.VerifyUser(ctx, sink, u.ID)
	assert.NoError(t, err, "trailing empty cells are not read back")

	require.NoError(t, sink.ReplaceRows(ctx, "Transactions - budi", [][]string{export.Header, {"2024-07-01", "income", "Salary", "BCA", "1", ""}}))
	_, err = w.VerifyUser(ctx, sink, u.ID)
	assert.ErrorIs(t, err, ErrOutOfSync)
}
