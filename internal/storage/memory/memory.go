// Package memory is an in-process ledger store. One RWMutex serializes every
// transaction; a failed transaction restores the state captured when it began.
// An optional snapshot file keeps the ledger across restarts.
package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/MuhamadAdhiWinata/catatan-keuangan/internal/core"
	"github.com/MuhamadAdhiWinata/catatan-keuangan/internal/storage"
)

var _ storage.Store = (*Store)(nil)

type state struct {
	nextID       int64
	users        map[int64]core.User
	accounts     map[int64]core.Account
	categories   map[int64]core.Category
	transactions map[int64]core.Transaction
	usernames    map[string]int64
}

func newState() *state {
	return &state{
		users:        map[int64]core.User{},
		accounts:     map[int64]core.Account{},
		categories:   map[int64]core.Category{},
		transactions: map[int64]core.Transaction{},
		usernames:    map[string]int64{},
	}
}

func (s *state) clone() *state {
	return &state{
		nextID:       s.nextID,
		users:        maps.Clone(s.users),
		accounts:     maps.Clone(s.accounts),
		categories:   maps.Clone(s.categories),
		transactions: maps.Clone(s.transactions),
		usernames:    maps.Clone(s.usernames),
	}
}

type Store struct {
	mu       sync.RWMutex
	st       *state
	snapshot string
	now      func() time.Time
}

// New returns an empty store that lives only in memory.
func New() *Store {
	return &Store{st: newState(), now: time.Now}
}

// Open returns a store backed by a JSON snapshot file. A missing file starts
// an empty ledger; every committed transaction rewrites the file.
func Open(path string) (*Store, error) {
	st, err := loadSnapshot(path)
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	return &Store{st: st, snapshot: path, now: time.Now}, nil
}

func (s *Store) Close() error { return nil }

// WithTx implements storage.Store.
func (s *Store) WithTx(ctx context.Context, fn func(tx storage.Tx) error) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	saved := s.st.clone()
	defer func() {
		if p := recover(); p != nil {
			s.st = saved
			panic(p)
		}
		if err != nil {
			s.st = saved
			return
		}
		if s.snapshot != "" {
			if serr := saveSnapshot(s.snapshot, s.st); serr != nil {
				s.st = saved
				err = fmt.Errorf("persist snapshot: %w", serr)
			}
		}
	}()

	return fn(&tx{st: s.st, now: s.now})
}

func (s *Store) read() *tx {
	return &tx{st: s.st, now: s.now}
}

func (s *Store) GetUser(ctx context.Context, id int64) (core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().GetUser(ctx, id)
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().GetUserByUsername(ctx, username)
}

func (s *Store) GetAccount(ctx context.Context, id int64) (core.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().GetAccount(ctx, id)
}

func (s *Store) ListAccounts(ctx context.Context, f storage.AccountFilter) ([]core.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().ListAccounts(ctx, f)
}

func (s *Store) GetCategory(ctx context.Context, id int64) (core.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().GetCategory(ctx, id)
}

func (s *Store) ListCategories(ctx context.Context, f storage.CategoryFilter) ([]core.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().ListCategories(ctx, f)
}

func (s *Store) CountCategories(ctx context.Context, userID int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().CountCategories(ctx, userID)
}

func (s *Store) GetTransaction(ctx context.Context, id int64) (core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().GetTransaction(ctx, id)
}

func (s *Store) ListTransactions(ctx context.Context, f storage.TransactionFilter) ([]core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().ListTransactions(ctx, f)
}

// tx operates on the state without locking; the owning Store holds the lock.
type tx struct {
	st  *state
	now func() time.Time
}

func (t *tx) nextID() int64 {
	t.st.nextID++
	return t.st.nextID
}

func sortedValues[V any](m map[int64]V, keep func(V) bool) []V {
	ids := slices.Sorted(maps.Keys(m))
	out := make([]V, 0, len(ids))
	for _, id := range ids {
		if v := m[id]; keep(v) {
			out = append(out, v)
		}
	}
	return out
}

func (t *tx) GetUser(_ context.Context, id int64) (core.User, error) {
	u, ok := t.st.users[id]
	if !ok {
		return core.User{}, storage.ErrNotFound
	}
	return u, nil
}

func (t *tx) GetUserByUsername(_ context.Context, username string) (core.User, error) {
	id, ok := t.st.usernames[username]
	if !ok {
		return core.User{}, storage.ErrNotFound
	}
	return t.st.users[id], nil
}

func (t *tx) InsertUser(_ context.Context, u core.User) (int64, error) {
	if _, taken := t.st.usernames[u.Username]; taken {
		return 0, storage.ErrDuplicate
	}
	u.ID = t.nextID()
	u.CreatedAt = t.now().UTC()
	t.st.users[u.ID] = u
	t.st.usernames[u.Username] = u.ID
	return u.ID, nil
}

func (t *tx) GetAccount(_ context.Context, id int64) (core.Account, error) {
	a, ok := t.st.accounts[id]
	if !ok {
		return core.Account{}, storage.ErrNotFound
	}
	return a, nil
}

func (t *tx) ListAccounts(_ context.Context, f storage.AccountFilter) ([]core.Account, error) {
	return sortedValues(t.st.accounts, f.Match), nil
}

func (t *tx) InsertAccount(_ context.Context, a core.Account) (int64, error) {
	a.ID = t.nextID()
	a.Balance = decimal.Zero
	a.CreatedAt = t.now().UTC()
	t.st.accounts[a.ID] = a
	return a.ID, nil
}

func (t *tx) UpdateAccount(_ context.Context, id int64, p core.AccountPatch) error {
	a, ok := t.st.accounts[id]
	if !ok {
		return nil
	}
	t.st.accounts[id] = p.Apply(a)
	return nil
}

func (t *tx) DeleteAccount(_ context.Context, id int64) error {
	if _, ok := t.st.accounts[id]; !ok {
		return nil
	}
	for _, txn := range t.st.transactions {
		if txn.Touches(id) {
			return storage.ErrInUse
		}
	}
	delete(t.st.accounts, id)
	return nil
}

func (t *tx) AdjustBalance(_ context.Context, accountID int64, delta decimal.Decimal) error {
	a, ok := t.st.accounts[accountID]
	if !ok {
		return fmt.Errorf("adjust balance of account %d: %w", accountID, storage.ErrNotFound)
	}
	a.Balance = a.Balance.Add(delta)
	t.st.accounts[accountID] = a
	return nil
}

func (t *tx) GetCategory(_ context.Context, id int64) (core.Category, error) {
	c, ok := t.st.categories[id]
	if !ok {
		return core.Category{}, storage.ErrNotFound
	}
	return c, nil
}

func (t *tx) ListCategories(_ context.Context, f storage.CategoryFilter) ([]core.Category, error) {
	return sortedValues(t.st.categories, f.Match), nil
}

func (t *tx) CountCategories(_ context.Context, userID int64) (int, error) {
	n := 0
	for _, c := range t.st.categories {
		if c.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (t *tx) InsertCategory(_ context.Context, c core.Category) (int64, error) {
	c.ID = t.nextID()
	c.CreatedAt = t.now().UTC()
	t.st.categories[c.ID] = c
	return c.ID, nil
}

func (t *tx) UpdateCategory(_ context.Context, id int64, p core.CategoryPatch) error {
	c, ok := t.st.categories[id]
	if !ok {
		return nil
	}
	t.st.categories[id] = p.Apply(c)
	return nil
}

func (t *tx) DeleteCategory(_ context.Context, id int64) error {
	if _, ok := t.st.categories[id]; !ok {
		return nil
	}
	for _, txn := range t.st.transactions {
		if txn.CategoryID == id {
			return storage.ErrInUse
		}
	}
	delete(t.st.categories, id)
	return nil
}

func (t *tx) GetTransaction(_ context.Context, id int64) (core.Transaction, error) {
	txn, ok := t.st.transactions[id]
	if !ok {
		return core.Transaction{}, storage.ErrNotFound
	}
	return txn, nil
}

func (t *tx) ListTransactions(_ context.Context, f storage.TransactionFilter) ([]core.Transaction, error) {
	return sortedValues(t.st.transactions, f.Match), nil
}

func (t *tx) InsertTransaction(_ context.Context, txn core.Transaction) (int64, error) {
	if err := txn.Validate(); err != nil {
		return 0, err
	}
	txn.ID = t.nextID()
	txn.CreatedAt = t.now().UTC()
	t.st.transactions[txn.ID] = txn
	return txn.ID, nil
}

func (t *tx) UpdateTransaction(_ context.Context, id int64, p core.TransactionPatch) error {
	txn, ok := t.st.transactions[id]
	if !ok {
		return nil
	}
	merged := p.Apply(txn)
	if err := merged.Validate(); err != nil {
		return err
	}
	t.st.transactions[id] = merged
	return nil
}

func (t *tx) DeleteTransaction(_ context.Context, id int64) error {
	delete(t.st.transactions, id)
	return nil
}
