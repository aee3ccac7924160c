// Package sqlstore implements the ledger store on a SQL database through
// sqlx. SQLite (modernc.org/sqlite) is the default local backend; Postgres
// (lib/pq) shares the same queries, rebound to its placeholder style.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/MuhamadAdhiWinata/catatan-keuangan/internal/core"
	"github.com/MuhamadAdhiWinata/catatan-keuangan/internal/storage"
)

// Dialect selects the SQL database flavour.
type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

func (d Dialect) driverName() string {
	return string(d)
}

var _ storage.Store = (*Store)(nil)

type Store struct {
	*Queries
	db      *sqlx.DB
	dialect Dialect
	txOpts  *sql.TxOptions
}

// OpenSQLite opens (creating if needed) a SQLite ledger at dbPath and runs migrations.
func OpenSQLite(ctx context.Context, dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	dsn := dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	return open(ctx, SQLite, dsn)
}

// OpenPostgres connects to a Postgres ledger and runs migrations.
func OpenPostgres(ctx context.Context, dsn string) (*Store, error) {
	return open(ctx, Postgres, dsn)
}

func open(ctx context.Context, dialect Dialect, dsn string) (*Store, error) {
	db, err := sqlx.Open(dialect.driverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", dialect, err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Run migrations
	if err := RunMigrations(dialect, dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	s := &Store{
		Queries: New(db),
		db:      db,
		dialect: dialect,
	}
	switch dialect {
	case SQLite:
		// One connection serializes writers; SQLite transactions are serializable.
		db.SetMaxOpenConns(1)
	case Postgres:
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		s.txOpts = &sql.TxOptions{Isolation: sql.LevelSerializable}
	}

	slog.InfoContext(ctx, "Ledger database ready", "dialect", dialect)
	return s, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// WithTx implements storage.Store.
func (s *Store) WithTx(ctx context.Context, fn func(tx storage.Tx) error) (err error) {
	tx, err := s.db.BeginTxx(ctx, s.txOpts)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				slog.ErrorContext(ctx, "Rollback failed", "error", rerr)
			}
			return
		}
		if cerr := tx.Commit(); cerr != nil {
			err = fmt.Errorf("commit transaction: %w", cerr)
		}
	}()

	return fn(&Queries{q: tx, now: s.now})
}

// Queries runs the ledger statements against a database or a transaction.
type Queries struct {
	q   sqlx.ExtContext
	now func() time.Time
}

func New(q sqlx.ExtContext) *Queries {
	return &Queries{q: q, now: time.Now}
}

func (r *Queries) get(ctx context.Context, dest any, query string, args ...any) error {
	err := sqlx.GetContext(ctx, r.q, dest, r.q.Rebind(query), args...)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	return err
}

func (r *Queries) selectAll(ctx context.Context, dest any, query string, args ...any) error {
	return sqlx.SelectContext(ctx, r.q, dest, r.q.Rebind(query), args...)
}

func (r *Queries) insert(ctx context.Context, query string, args ...any) (int64, error) {
	var id int64
	if err := r.q.QueryRowxContext(ctx, r.q.Rebind(query), args...).Scan(&id); err != nil {
		if isUniqueViolation(err) {
			return 0, storage.ErrDuplicate
		}
		return 0, err
	}
	return id, nil
}

func (r *Queries) exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := r.q.ExecContext(ctx, r.q.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	}
	var pe *pq.Error
	if errors.As(err, &pe) {
		return pe.Code == "23505"
	}
	return false
}

// Users

func (r *Queries) GetUser(ctx context.Context, id int64) (core.User, error) {
	var u core.User
	err := r.get(ctx, &u, `SELECT id, username, password_hash, created_at FROM users WHERE id = ?`, id)
	return u, err
}

func (r *Queries) GetUserByUsername(ctx context.Context, username string) (core.User, error) {
	var u core.User
	err := r.get(ctx, &u, `SELECT id, username, password_hash, created_at FROM users WHERE username = ?`, username)
	return u, err
}

func (r *Queries) InsertUser(ctx context.Context, u core.User) (int64, error) {
	id, err := r.insert(ctx,
		`INSERT INTO users (username, password_hash, created_at) VALUES (?, ?, ?) RETURNING id`,
		u.Username, u.PasswordHash, r.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("insert user: %w", err)
	}
	return id, nil
}

// Accounts

const accountColumns = `id, user_id, name, type, balance, created_at`

func (r *Queries) GetAccount(ctx context.Context, id int64) (core.Account, error) {
	var a core.Account
	err := r.get(ctx, &a, `SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id)
	return a, err
}

func (r *Queries) ListAccounts(ctx context.Context, f storage.AccountFilter) ([]core.Account, error) {
	var w where
	w.eq("user_id", f.UserID, f.UserID != 0)
	w.eq("type", f.Type, f.Type != "")

	out := []core.Account{}
	if err := r.selectAll(ctx, &out, `SELECT `+accountColumns+` FROM accounts`+w.sql()+` ORDER BY id`, w.args...); err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	return out, nil
}

func (r *Queries) InsertAccount(ctx context.Context, a core.Account) (int64, error) {
	id, err := r.insert(ctx,
		`INSERT INTO accounts (user_id, name, type, balance, created_at) VALUES (?, ?, ?, ?, ?) RETURNING id`,
		a.UserID, a.Name, a.Type, decimal.Zero, r.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("insert account: %w", err)
	}
	return id, nil
}

func (r *Queries) UpdateAccount(ctx context.Context, id int64, p core.AccountPatch) error {
	a, err := r.GetAccount(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	a = p.Apply(a)
	if _, err := r.exec(ctx, `UPDATE accounts SET name = ?, type = ? WHERE id = ?`, a.Name, a.Type, id); err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	return nil
}

func (r *Queries) DeleteAccount(ctx context.Context, id int64) error {
	var refs int
	err := r.get(ctx, &refs,
		`SELECT COUNT(*) FROM transactions WHERE account_id = ? OR destination_account_id = ?`, id, id)
	if err != nil {
		return fmt.Errorf("count account references: %w", err)
	}
	if refs > 0 {
		return storage.ErrInUse
	}
	if _, err := r.exec(ctx, `DELETE FROM accounts WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	return nil
}

func (r *Queries) AdjustBalance(ctx context.Context, accountID int64, delta decimal.Decimal) error {
	a, err := r.GetAccount(ctx, accountID)
	if err != nil {
		return fmt.Errorf("adjust balance of account %d: %w", accountID, err)
	}
	if _, err := r.exec(ctx, `UPDATE accounts SET balance = ? WHERE id = ?`, a.Balance.Add(delta), accountID); err != nil {
		return fmt.Errorf("adjust balance of account %d: %w", accountID, err)
	}
	return nil
}

// Categories

const categoryColumns = `id, user_id, name, type, icon, created_at`

func (r *Queries) GetCategory(ctx context.Context, id int64) (core.Category, error) {
	var c core.Category
	err := r.get(ctx, &c, `SELECT `+categoryColumns+` FROM categories WHERE id = ?`, id)
	return c, err
}

func (r *Queries) ListCategories(ctx context.Context, f storage.CategoryFilter) ([]core.Category, error) {
	var w where
	w.eq("user_id", f.UserID, f.UserID != 0)
	w.eq("type", f.Type, f.Type != "")

	out := []core.Category{}
	if err := r.selectAll(ctx, &out, `SELECT `+categoryColumns+` FROM categories`+w.sql()+` ORDER BY id`, w.args...); err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return out, nil
}

func (r *Queries) CountCategories(ctx context.Context, userID int64) (int, error) {
	var n int
	if err := r.get(ctx, &n, `SELECT COUNT(*) FROM categories WHERE user_id = ?`, userID); err != nil {
		return 0, fmt.Errorf("count categories: %w", err)
	}
	return n, nil
}

func (r *Queries) InsertCategory(ctx context.Context, c core.Category) (int64, error) {
	id, err := r.insert(ctx,
		`INSERT INTO categories (user_id, name, type, icon, created_at) VALUES (?, ?, ?, ?, ?) RETURNING id`,
		c.UserID, c.Name, c.Type, c.Icon, r.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("insert category: %w", err)
	}
	return id, nil
}

func (r *Queries) UpdateCategory(ctx context.Context, id int64, p core.CategoryPatch) error {
	c, err := r.GetCategory(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	c = p.Apply(c)
	if _, err := r.exec(ctx, `UPDATE categories SET name = ?, type = ?, icon = ? WHERE id = ?`, c.Name, c.Type, c.Icon, id); err != nil {
		return fmt.Errorf("update category: %w", err)
	}
	return nil
}

func (r *Queries) DeleteCategory(ctx context.Context, id int64) error {
	var refs int
	if err := r.get(ctx, &refs, `SELECT COUNT(*) FROM transactions WHERE category_id = ?`, id); err != nil {
		return fmt.Errorf("count category references: %w", err)
	}
	if refs > 0 {
		return storage.ErrInUse
	}
	if _, err := r.exec(ctx, `DELETE FROM categories WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	return nil
}

// Transactions

const transactionColumns = `id, user_id, account_id, category_id, type, amount, occurred_on, note, destination_account_id, created_at`

func (r *Queries) GetTransaction(ctx context.Context, id int64) (core.Transaction, error) {
	var t core.Transaction
	err := r.get(ctx, &t, `SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id)
	return t, err
}

func (r *Queries) ListTransactions(ctx context.Context, f storage.TransactionFilter) ([]core.Transaction, error) {
	var w where
	w.eq("user_id", f.UserID, f.UserID != 0)
	if f.AccountID != 0 {
		w.add("(account_id = ? OR destination_account_id = ?)", f.AccountID, f.AccountID)
	}
	w.eq("category_id", f.CategoryID, f.CategoryID != 0)
	w.eq("type", f.Type, f.Type != "")
	if !f.From.IsZero() {
		w.add("occurred_on >= ?", f.From)
	}
	if !f.To.IsZero() {
		w.add("occurred_on <= ?", f.To)
	}

	out := []core.Transaction{}
	if err := r.selectAll(ctx, &out, `SELECT `+transactionColumns+` FROM transactions`+w.sql()+` ORDER BY id`, w.args...); err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return out, nil
}

func (r *Queries) InsertTransaction(ctx context.Context, t core.Transaction) (int64, error) {
	if err := t.Validate(); err != nil {
		return 0, err
	}
	id, err := r.insert(ctx,
		`INSERT INTO transactions (user_id, account_id, category_id, type, amount, occurred_on, note, destination_account_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		t.UserID, t.AccountID, t.CategoryID, t.Type, t.Amount, t.Date, t.Note, t.DestinationAccountID, r.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("insert transaction: %w", err)
	}
	return id, nil
}

func (r *Queries) UpdateTransaction(ctx context.Context, id int64, p core.TransactionPatch) error {
	t, err := r.GetTransaction(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	t = p.Apply(t)
	if err := t.Validate(); err != nil {
		return err
	}
	_, err = r.exec(ctx,
		`UPDATE transactions SET account_id = ?, category_id = ?, type = ?, amount = ?, occurred_on = ?, note = ?, destination_account_id = ?
		 WHERE id = ?`,
		t.AccountID, t.CategoryID, t.Type, t.Amount, t.Date, t.Note, t.DestinationAccountID, id)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	return nil
}

func (r *Queries) DeleteTransaction(ctx context.Context, id int64) error {
	if _, err := r.exec(ctx, `DELETE FROM transactions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	return nil
}

// where accumulates AND-ed conditions written with ? placeholders.
type where struct {
	conds []string
	args  []any
}

func (w *where) add(cond string, args ...any) {
	w.conds = append(w.conds, cond)
	w.args = append(w.args, args...)
}

func (w *where) eq(column string, v any, ok bool) {
	if ok {
		w.add(column+" = ?", v)
	}
}

func (w *where) sql() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}
