// Package storetest holds the behaviour every storage.Store implementation
// must share. Store packages call Run from their own tests.
package storetest

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MuhamadAdhiWinata/catatan-keuangan/internal/core"
	"github.com/MuhamadAdhiWinata/catatan-keuangan/internal/storage"
)

// Factory returns a fresh, empty store. Cleanup is registered on t.
type Factory func(t *testing.T) storage.Store

// Run exercises the store contract against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s storage.Store)
	}{
		{"users", testUsers},
		{"accounts", testAccounts},
		{"categories", testCategories},
		{"transactions", testTransactions},
		{"transaction filters", testTransactionFilters},
		{"rollback on error", testRollback},
		{"rollback on panic", testRollbackPanic},
		{"restricted deletes", testRestrictedDeletes},
		{"missing ids are no-ops", testMissingIDs},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, newStore(t))
		})
	}
}

// Fixture is a user with two accounts and one category per type.
type Fixture struct {
	UserID              int64
	Bank, Cash          int64
	Income, Expense, Tr int64
}

// Seed inserts a Fixture in one transaction.
func Seed(t *testing.T, s storage.Store) Fixture {
	t.Helper()
	var f Fixture
	err := s.WithTx(context.Background(), func(tx storage.Tx) error {
		ctx := context.Background()
		var err error
		if f.UserID, err = tx.InsertUser(ctx, core.User{Username: "budi", PasswordHash: "x"}); err != nil {
			return err
		}
		if f.Bank, err = tx.InsertAccount(ctx, core.Account{UserID: f.UserID, Name: "BCA", Type: core.Bank}); err != nil {
			return err
		}
		if f.Cash, err = tx.InsertAccount(ctx, core.Account{UserID: f.UserID, Name: "Dompet", Type: core.Cash}); err != nil {
			return err
		}
		if f.Income, err = tx.InsertCategory(ctx, core.Category{UserID: f.UserID, Name: "Gaji", Type: core.Income}); err != nil {
			return err
		}
		if f.Expense, err = tx.InsertCategory(ctx, core.Category{UserID: f.UserID, Name: "Makan", Type: core.Expense}); err != nil {
			return err
		}
		f.Tr, err = tx.InsertCategory(ctx, core.Category{UserID: f.UserID, Name: "Tarik Tunai", Type: core.Transfer})
		return err
	})
	require.NoError(t, err)
	return f
}

func insertTxn(t *testing.T, s storage.Store, txn core.Transaction) int64 {
	t.Helper()
	var id int64
	err := s.WithTx(context.Background(), func(tx storage.Tx) error {
		var err error
		id, err = tx.InsertTransaction(context.Background(), txn)
		return err
	})
	require.NoError(t, err)
	return id
}

func testUsers(t *testing.T, s storage.Store) {
	ctx := context.Background()
	var id int64
	require.NoError(t, s.WithTx(ctx, func(tx storage.Tx) error {
		var err error
		id, err = tx.InsertUser(ctx, core.User{Username: "siti", PasswordHash: "hash"})
		return err
	}))
	assert.Positive(t, id)

	u, err := s.GetUserByUsername(ctx, "siti")
	require.NoError(t, err)
	assert.Equal(t, id, u.ID)
	assert.Equal(t, "hash", u.PasswordHash)
	assert.False(t, u.CreatedAt.IsZero())

	got, err := s.GetUser(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "siti", got.Username)

	err = s.WithTx(ctx, func(tx storage.Tx) error {
		_, err := tx.InsertUser(ctx, core.User{Username: "siti", PasswordHash: "other"})
		return err
	})
	assert.ErrorIs(t, err, storage.ErrDuplicate)

	_, err = s.GetUserByUsername(ctx, "nobody")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = s.GetUser(ctx, 9999)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func testAccounts(t *testing.T, s storage.Store) {
	ctx := context.Background()
	f := Seed(t, s)

	a, err := s.GetAccount(ctx, f.Bank)
	require.NoError(t, err)
	assert.Equal(t, "BCA", a.Name)
	assert.True(t, a.Balance.IsZero())

	require.NoError(t, s.WithTx(ctx, func(tx storage.Tx) error {
		name := "BCA Tahapan"
		typ := core.Investment
		if err := tx.UpdateAccount(ctx, f.Bank, core.AccountPatch{Name: &name, Type: &typ}); err != nil {
			return err
		}
		if err := tx.AdjustBalance(ctx, f.Bank, core.MustAmount("150000.50")); err != nil {
			return err
		}
		return tx.AdjustBalance(ctx, f.Bank, core.MustAmount("50000.25").Neg())
	}))

	a, err = s.GetAccount(ctx, f.Bank)
	require.NoError(t, err)
	assert.Equal(t, "BCA Tahapan", a.Name)
	assert.Equal(t, core.Investment, a.Type)
	assert.True(t, a.Balance.Equal(core.MustAmount("100000.25")), "balance %s", a.Balance)

	list, err := s.ListAccounts(ctx, storage.AccountFilter{UserID: f.UserID})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, f.Bank, list[0].ID)
	assert.Equal(t, f.Cash, list[1].ID)

	cash, err := s.ListAccounts(ctx, storage.AccountFilter{UserID: f.UserID, Type: core.Cash})
	require.NoError(t, err)
	require.Len(t, cash, 1)
	assert.Equal(t, "Dompet", cash[0].Name)

	err = s.WithTx(ctx, func(tx storage.Tx) error {
		return tx.AdjustBalance(ctx, 9999, decimal.NewFromInt(1))
	})
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, s.WithTx(ctx, func(tx storage.Tx) error {
		return tx.DeleteAccount(ctx, f.Cash)
	}))
	_, err = s.GetAccount(ctx, f.Cash)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func testCategories(t *testing.T, s storage.Store) {
	ctx := context.Background()
	f := Seed(t, s)

	n, err := s.CountCategories(ctx, f.UserID)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = s.CountCategories(ctx, f.UserID+1000)
	require.NoError(t, err)
	assert.Zero(t, n)

	expenses, err := s.ListCategories(ctx, storage.CategoryFilter{UserID: f.UserID, Type: core.Expense})
	require.NoError(t, err)
	require.Len(t, expenses, 1)
	assert.Equal(t, "Makan", expenses[0].Name)

	require.NoError(t, s.WithTx(ctx, func(tx storage.Tx) error {
		icon := "🍜"
		return tx.UpdateCategory(ctx, f.Expense, core.CategoryPatch{Icon: &icon})
	}))
	c, err := s.GetCategory(ctx, f.Expense)
	require.NoError(t, err)
	assert.Equal(t, "🍜", c.Icon)
	assert.Equal(t, "Makan", c.Name)

	require.NoError(t, s.WithTx(ctx, func(tx storage.Tx) error {
		return tx.DeleteCategory(ctx, f.Income)
	}))
	_, err = s.GetCategory(ctx, f.Income)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func testTransactions(t *testing.T, s storage.Store) {
	ctx := context.Background()
	f := Seed(t, s)

	dest := f.Cash
	id := insertTxn(t, s, core.Transaction{
		UserID:               f.UserID,
		AccountID:            f.Bank,
		CategoryID:           f.Tr,
		Type:                 core.Transfer,
		Amount:               core.MustAmount("250000"),
		Date:                 core.NewDate(2024, 3, 15),
		Note:                 "ATM",
		DestinationAccountID: &dest,
	})

	got, err := s.GetTransaction(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, core.Transfer, got.Type)
	assert.True(t, got.Amount.Equal(core.MustAmount("250000")))
	assert.Equal(t, "2024-03-15", got.Date.String())
	require.NotNil(t, got.DestinationAccountID)
	assert.Equal(t, f.Cash, *got.DestinationAccountID)
	assert.False(t, got.CreatedAt.IsZero())

	// Turn the transfer into an expense.
	require.NoError(t, s.WithTx(ctx, func(tx storage.Tx) error {
		typ := core.Expense
		amount := core.MustAmount("75000")
		return tx.UpdateTransaction(ctx, id, core.TransactionPatch{
			Type:             &typ,
			CategoryID:       &f.Expense,
			Amount:           &amount,
			ClearDestination: true,
		})
	}))
	got, err = s.GetTransaction(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, core.Expense, got.Type)
	assert.Nil(t, got.DestinationAccountID)
	assert.True(t, got.Amount.Equal(core.MustAmount("75000")))
	assert.Equal(t, "ATM", got.Note)

	// An update that would leave the row invalid is rejected.
	err = s.WithTx(ctx, func(tx storage.Tx) error {
		typ := core.Transfer
		return tx.UpdateTransaction(ctx, id, core.TransactionPatch{Type: &typ})
	})
	assert.ErrorIs(t, err, core.ErrMissingDestination)

	err = s.WithTx(ctx, func(tx storage.Tx) error {
		_, err := tx.InsertTransaction(ctx, core.Transaction{
			UserID: f.UserID, AccountID: f.Bank, CategoryID: f.Expense,
			Type: core.Expense, Amount: decimal.Zero, Date: core.NewDate(2024, 1, 1),
		})
		return err
	})
	assert.ErrorIs(t, err, core.ErrInvalidAmount)

	require.NoError(t, s.WithTx(ctx, func(tx storage.Tx) error {
		return tx.DeleteTransaction(ctx, id)
	}))
	_, err = s.GetTransaction(ctx, id)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func testTransactionFilters(t *testing.T, s storage.Store) {
	ctx := context.Background()
	f := Seed(t, s)

	dest := f.Cash
	salary := insertTxn(t, s, core.Transaction{UserID: f.UserID, AccountID: f.Bank, CategoryID: f.Income,
		Type: core.Income, Amount: core.MustAmount("1000000"), Date: core.NewDate(2024, 1, 31)})
	lunch := insertTxn(t, s, core.Transaction{UserID: f.UserID, AccountID: f.Cash, CategoryID: f.Expense,
		Type: core.Expense, Amount: core.MustAmount("25000"), Date: core.NewDate(2024, 2, 1)})
	withdraw := insertTxn(t, s, core.Transaction{UserID: f.UserID, AccountID: f.Bank, CategoryID: f.Tr,
		Type: core.Transfer, Amount: core.MustAmount("100000"), Date: core.NewDate(2024, 2, 29), DestinationAccountID: &dest})

	ids := func(f storage.TransactionFilter) []int64 {
		t.Helper()
		list, err := s.ListTransactions(ctx, f)
		require.NoError(t, err)
		out := []int64{}
		for _, txn := range list {
			out = append(out, txn.ID)
		}
		return out
	}

	assert.Equal(t, []int64{salary, lunch, withdraw}, ids(storage.TransactionFilter{UserID: f.UserID}))
	assert.Equal(t, []int64{lunch, withdraw}, ids(storage.TransactionFilter{UserID: f.UserID, AccountID: f.Cash}))
	assert.Equal(t, []int64{lunch}, ids(storage.TransactionFilter{UserID: f.UserID, Type: core.Expense}))
	assert.Equal(t, []int64{salary}, ids(storage.TransactionFilter{CategoryID: f.Income}))
	assert.Equal(t, []int64{lunch, withdraw}, ids(storage.TransactionFilter{
		UserID: f.UserID, From: core.NewDate(2024, 2, 1), To: core.NewDate(2024, 2, 29),
	}))
	assert.Equal(t, []int64{salary}, ids(storage.TransactionFilter{UserID: f.UserID, To: core.NewDate(2024, 1, 31)}))
	assert.Empty(t, ids(storage.TransactionFilter{UserID: f.UserID + 1000}))
}

var errBoom = errors.New("boom")

func testRollback(t *testing.T, s storage.Store) {
	ctx := context.Background()
	f := Seed(t, s)

	err := s.WithTx(ctx, func(tx storage.Tx) error {
		if err := tx.AdjustBalance(ctx, f.Bank, core.MustAmount("500")); err != nil {
			return err
		}
		if _, err := tx.InsertAccount(ctx, core.Account{UserID: f.UserID, Name: "OVO", Type: core.EWallet}); err != nil {
			return err
		}
		return errBoom
	})
	require.ErrorIs(t, err, errBoom)

	a, err := s.GetAccount(ctx, f.Bank)
	require.NoError(t, err)
	assert.True(t, a.Balance.IsZero(), "balance %s survived rollback", a.Balance)

	list, err := s.ListAccounts(ctx, storage.AccountFilter{UserID: f.UserID})
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func testRollbackPanic(t *testing.T, s storage.Store) {
	ctx := context.Background()
	f := Seed(t, s)

	assert.Panics(t, func() {
		_ = s.WithTx(ctx, func(tx storage.Tx) error {
			if err := tx.AdjustBalance(ctx, f.Cash, core.MustAmount("10")); err != nil {
				return err
			}
			panic("boom")
		})
	})

	a, err := s.GetAccount(ctx, f.Cash)
	require.NoError(t, err)
	assert.True(t, a.Balance.IsZero())

	// The store stays usable after a panicking transaction.
	require.NoError(t, s.WithTx(ctx, func(tx storage.Tx) error {
		return tx.AdjustBalance(ctx, f.Cash, core.MustAmount("10"))
	}))
}

func testRestrictedDeletes(t *testing.T, s storage.Store) {
	ctx := context.Background()
	f := Seed(t, s)

	dest := f.Cash
	insertTxn(t, s, core.Transaction{UserID: f.UserID, AccountID: f.Bank, CategoryID: f.Tr,
		Type: core.Transfer, Amount: core.MustAmount("1"), Date: core.NewDate(2024, 5, 1), DestinationAccountID: &dest})

	for name, del := range map[string]func(tx storage.Tx) error{
		"source account":      func(tx storage.Tx) error { return tx.DeleteAccount(ctx, f.Bank) },
		"destination account": func(tx storage.Tx) error { return tx.DeleteAccount(ctx, f.Cash) },
		"category":            func(tx storage.Tx) error { return tx.DeleteCategory(ctx, f.Tr) },
	} {
		t.Run(name, func(t *testing.T) {
			err := s.WithTx(ctx, del)
			assert.ErrorIs(t, err, storage.ErrInUse)
		})
	}

	_, err := s.GetAccount(ctx, f.Cash)
	assert.NoError(t, err)
}

func testMissingIDs(t *testing.T, s storage.Store) {
	ctx := context.Background()
	name := "ghost"
	err := s.WithTx(ctx, func(tx storage.Tx) error {
		return errors.Join(
			tx.UpdateAccount(ctx, 4242, core.AccountPatch{Name: &name}),
			tx.UpdateCategory(ctx, 4242, core.CategoryPatch{Name: &name}),
			tx.UpdateTransaction(ctx, 4242, core.TransactionPatch{Note: &name}),
			tx.DeleteAccount(ctx, 4242),
			tx.DeleteCategory(ctx, 4242),
			tx.DeleteTransaction(ctx, 4242),
		)
	})
	assert.NoError(t, err)
}
