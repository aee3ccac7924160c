// Package storage defines the ledger store: four keyed collections (users,
// accounts, categories, transactions) with secondary lookups by user and the
// indexed fields, plus an explicit transactional boundary.
//
// Implementations live in the memory and sqlstore sub-packages.
package storage

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/MuhamadAdhiWinata/catatan-keuangan/internal/core"
)

var (
	// ErrNotFound is returned by getters when the id is absent.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a unique index rejects an insert.
	ErrDuplicate = errors.New("duplicate")
	// ErrInUse is returned when deleting an account or category that
	// transactions still reference.
	ErrInUse = errors.New("still referenced by transactions")
)

type (
	AccountFilter struct {
		UserID int64
		Type   core.AccountType
	}

	CategoryFilter struct {
		UserID int64
		Type   core.TransactionType
	}

	// TransactionFilter selects transactions. Zero fields are ignored. AccountID
	// matches the source or the destination account. From and To are
	// inclusive calendar dates.
	TransactionFilter struct {
		UserID     int64
		AccountID  int64
		CategoryID int64
		Type       core.TransactionType
		From       core.Date
		To         core.Date
	}
)

// Match reports whether t satisfies the filter.
func (f TransactionFilter) Match(t core.Transaction) bool {
	if f.UserID != 0 && t.UserID != f.UserID {
		return false
	}
	if f.AccountID != 0 && !t.Touches(f.AccountID) {
		return false
	}
	if f.CategoryID != 0 && t.CategoryID != f.CategoryID {
		return false
	}
	if f.Type != "" && t.Type != f.Type {
		return false
	}
	if !f.From.IsZero() && t.Date.Before(f.From.Time) {
		return false
	}
	if !f.To.IsZero() && t.Date.After(f.To.Time) {
		return false
	}
	return true
}

func (f AccountFilter) Match(a core.Account) bool {
	return (f.UserID == 0 || a.UserID == f.UserID) && (f.Type == "" || a.Type == f.Type)
}

func (f CategoryFilter) Match(c core.Category) bool {
	return (f.UserID == 0 || c.UserID == f.UserID) && (f.Type == "" || c.Type == f.Type)
}

// Reader is the read side of the store. Lists are ordered by id (insertion order).
type Reader interface {
	GetUser(ctx context.Context, id int64) (core.User, error)
	GetUserByUsername(ctx context.Context, username string) (core.User, error)

	GetAccount(ctx context.Context, id int64) (core.Account, error)
	ListAccounts(ctx context.Context, f AccountFilter) ([]core.Account, error)

	GetCategory(ctx context.Context, id int64) (core.Category, error)
	ListCategories(ctx context.Context, f CategoryFilter) ([]core.Category, error)
	CountCategories(ctx context.Context, userID int64) (int, error)

	GetTransaction(ctx context.Context, id int64) (core.Transaction, error)
	ListTransactions(ctx context.Context, f TransactionFilter) ([]core.Transaction, error)
}

// Writer mutates the store. Updates and deletes of absent ids are no-ops.
type Writer interface {
	InsertUser(ctx context.Context, u core.User) (int64, error)

	InsertAccount(ctx context.Context, a core.Account) (int64, error)
	UpdateAccount(ctx context.Context, id int64, p core.AccountPatch) error
	DeleteAccount(ctx context.Context, id int64) error
	// AdjustBalance adds delta to the account balance. It is the only
	// balance writer and fails with ErrNotFound for a missing account.
	AdjustBalance(ctx context.Context, accountID int64, delta decimal.Decimal) error

	InsertCategory(ctx context.Context, c core.Category) (int64, error)
	UpdateCategory(ctx context.Context, id int64, p core.CategoryPatch) error
	DeleteCategory(ctx context.Context, id int64) error

	InsertTransaction(ctx context.Context, t core.Transaction) (int64, error)
	UpdateTransaction(ctx context.Context, id int64, p core.TransactionPatch) error
	DeleteTransaction(ctx context.Context, id int64) error
}

// Tx is a unit of work. Everything done through a Tx becomes visible
// together on commit or not at all.
type Tx interface {
	Reader
	Writer
}

// Store owns the ledger state for the lifetime of the application.
type Store interface {
	Reader
	// WithTx runs fn inside a transaction. The transaction commits when fn
	// returns nil and rolls back when fn returns an error or panics.
	WithTx(ctx context.Context, fn func(tx Tx) error) error
	Close() error
}
