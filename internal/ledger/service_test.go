package ledger

import (
	"context"
	"errors"
	"math/rand/v2"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/MuhamadAdhiWinata/catatan-keuangan/internal/core"
	"github.com/MuhamadAdhiWinata/catatan-keuangan/internal/storage"
	"github.com/MuhamadAdhiWinata/catatan-keuangan/internal/storage/memory"
	"github.com/MuhamadAdhiWinata/catatan-keuangan/internal/storage/sqlstore"
)

var stores = map[string]func(t *testing.T) storage.Store{
	"memory": func(t *testing.T) storage.Store { return memory.New() },
	"sqlite": func(t *testing.T) storage.Store {
		s, err := sqlstore.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "ledger.db"))
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		return s
	},
}

// forEachStore runs fn once per store implementation.
func forEachStore(t *testing.T, fn func(t *testing.T, svc *Service)) {
	for name, newStore := range stores {
		t.Run(name, func(t *testing.T) {
			fn(t, NewService(newStore(t), WithHashCost(bcrypt.MinCost)))
		})
	}
}

type fixture struct {
	user          core.User
	bank, wallet  core.Account
	salary, food  core.Category
	topUp         core.Category
	otherUserBank core.Account
}

func setup(t *testing.T, svc *Service) fixture {
	t.Helper()
	ctx := context.Background()
	var f fixture
	var err error

	f.user, err = svc.Register(ctx, "  Budi ", "rahasia")
	require.NoError(t, err)
	f.bank, err = svc.CreateAccount(ctx, f.user.ID, "BCA", core.Bank)
	require.NoError(t, err)
	f.wallet, err = svc.CreateAccount(ctx, f.user.ID, "GoPay", core.EWallet)
	require.NoError(t, err)

	cats, err := svc.ListCategories(ctx, f.user.ID, "")
	require.NoError(t, err)
	for _, c := range cats {
		switch c.Name {
		case "Salary":
			f.salary = c
		case "Food & Drinks":
			f.food = c
		case "E-Wallet Top Up":
			f.topUp = c
		}
	}
	require.NotZero(t, f.salary.ID)
	require.NotZero(t, f.food.ID)
	require.NotZero(t, f.topUp.ID)

	other, err := svc.Register(ctx, "siti", "rahasia")
	require.NoError(t, err)
	f.otherUserBank, err = svc.CreateAccount(ctx, other.ID, "Mandiri", core.Bank)
	require.NoError(t, err)
	return f
}

func balance(t *testing.T, svc *Service, userID, id int64) decimal.Decimal {
	t.Helper()
	a, err := svc.GetAccount(context.Background(), userID, id)
	require.NoError(t, err)
	return a.Balance
}

func assertBalance(t *testing.T, svc *Service, userID, id int64, want string) {
	t.Helper()
	got := balance(t, svc, userID, id)
	assert.True(t, got.Equal(core.MustAmount(want)), "account %d: got %s, want %s", id, got, want)
}

func ptr[T any](v T) *T { return &v }

func TestIncomeThenExpenseScenario(t *testing.T) {
	forEachStore(t, func(t *testing.T, svc *Service) {
		ctx := context.Background()
		f := setup(t, svc)
		day := core.NewDate(2024, 7, 10)

		_, err := svc.CreateTransaction(ctx, f.user.ID, NewTransaction{
			AccountID: f.bank.ID, CategoryID: f.salary.ID, Type: core.Income,
			Amount: core.MustAmount("1000000"), Date: day,
		})
		require.NoError(t, err)
		_, err = svc.CreateTransaction(ctx, f.user.ID, NewTransaction{
			AccountID: f.bank.ID, CategoryID: f.food.ID, Type: core.Expense,
			Amount: core.MustAmount("300000"), Date: day,
		})
		require.NoError(t, err)

		assertBalance(t, svc, f.user.ID, f.bank.ID, "700000")
	})
}

func TestCreateThenDeleteRestoresBalances(t *testing.T) {
	forEachStore(t, func(t *testing.T, svc *Service) {
		ctx := context.Background()
		f := setup(t, svc)

		_, err := svc.CreateTransaction(ctx, f.user.ID, NewTransaction{
			AccountID: f.bank.ID, CategoryID: f.salary.ID, Type: core.Income,
			Amount: core.MustAmount("500000"), Date: core.NewDate(2024, 1, 1),
		})
		require.NoError(t, err)

		tr, err := svc.CreateTransaction(ctx, f.user.ID, NewTransaction{
			AccountID: f.bank.ID, CategoryID: f.topUp.ID, Type: core.Transfer,
			Amount: core.MustAmount("123456.78"), Date: core.NewDate(2024, 1, 2),
			DestinationAccountID: &f.wallet.ID,
		})
		require.NoError(t, err)
		assertBalance(t, svc, f.user.ID, f.bank.ID, "376543.22")
		assertBalance(t, svc, f.user.ID, f.wallet.ID, "123456.78")

		require.NoError(t, svc.DeleteTransaction(ctx, f.user.ID, tr.ID))
		assertBalance(t, svc, f.user.ID, f.bank.ID, "500000")
		assertBalance(t, svc, f.user.ID, f.wallet.ID, "0")

		// Deleting again is a silent no-op.
		require.NoError(t, svc.DeleteTransaction(ctx, f.user.ID, tr.ID))
		assertBalance(t, svc, f.user.ID, f.bank.ID, "500000")
	})
}

func TestUpdateTransaction(t *testing.T) {
	tests := []struct {
		name        string
		patch       func(f fixture) core.TransactionPatch
		bank, other string
	}{
		{
			name:  "amount",
			patch: func(f fixture) core.TransactionPatch { return core.TransactionPatch{Amount: ptr(core.MustAmount("75000"))} },
			bank:  "-75000", other: "0",
		},
		{
			name: "expense to income",
			patch: func(f fixture) core.TransactionPatch {
				return core.TransactionPatch{Type: ptr(core.Income), CategoryID: &f.salary.ID}
			},
			bank: "50000", other: "0",
		},
		{
			name:  "move to another account",
			patch: func(f fixture) core.TransactionPatch { return core.TransactionPatch{AccountID: &f.wallet.ID} },
			bank:  "0", other: "-50000",
		},
		{
			name: "expense to transfer",
			patch: func(f fixture) core.TransactionPatch {
				return core.TransactionPatch{Type: ptr(core.Transfer), CategoryID: &f.topUp.ID, DestinationAccountID: &f.wallet.ID}
			},
			bank: "-50000", other: "50000",
		},
		{
			name:  "note only",
			patch: func(f fixture) core.TransactionPatch { return core.TransactionPatch{Note: ptr("warung")} },
			bank:  "-50000", other: "0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			forEachStore(t, func(t *testing.T, svc *Service) {
				ctx := context.Background()
				f := setup(t, svc)
				txn, err := svc.CreateTransaction(ctx, f.user.ID, NewTransaction{
					AccountID: f.bank.ID, CategoryID: f.food.ID, Type: core.Expense,
					Amount: core.MustAmount("50000"), Date: core.NewDate(2024, 3, 3),
				})
				require.NoError(t, err)

				require.NoError(t, svc.UpdateTransaction(ctx, f.user.ID, txn.ID, tt.patch(f)))
				assertBalance(t, svc, f.user.ID, f.bank.ID, tt.bank)
				assertBalance(t, svc, f.user.ID, f.wallet.ID, tt.other)

				issues, err := svc.Reconcile(ctx, f.user.ID)
				require.NoError(t, err)
				assert.Empty(t, issues)
			})
		})
	}
}

func TestInvalidUpdateLeavesLedgerUntouched(t *testing.T) {
	forEachStore(t, func(t *testing.T, svc *Service) {
		ctx := context.Background()
		f := setup(t, svc)
		txn, err := svc.CreateTransaction(ctx, f.user.ID, NewTransaction{
			AccountID: f.bank.ID, CategoryID: f.food.ID, Type: core.Expense,
			Amount: core.MustAmount("50000"), Date: core.NewDate(2024, 3, 3),
		})
		require.NoError(t, err)

		patches := map[string]core.TransactionPatch{
			"category type mismatch": {Type: ptr(core.Income)},
			"foreign account":        {AccountID: &f.otherUserBank.ID},
			"transfer to itself": {
				Type: ptr(core.Transfer), CategoryID: &f.topUp.ID, DestinationAccountID: &f.bank.ID,
			},
			"zero amount": {Amount: ptr(decimal.Zero)},
		}
		for name, p := range patches {
			t.Run(name, func(t *testing.T) {
				err := svc.UpdateTransaction(ctx, f.user.ID, txn.ID, p)
				require.Error(t, err)
				assert.True(t, core.IsValidation(err), "%v", err)

				assertBalance(t, svc, f.user.ID, f.bank.ID, "-50000")
				got, err := svc.GetTransaction(ctx, f.user.ID, txn.ID)
				require.NoError(t, err)
				assert.Equal(t, core.Expense, got.Type)
				assert.True(t, got.Amount.Equal(core.MustAmount("50000")))
			})
		}
	})
}

func TestCreateTransactionRejectsBadReferences(t *testing.T) {
	forEachStore(t, func(t *testing.T, svc *Service) {
		ctx := context.Background()
		f := setup(t, svc)
		base := NewTransaction{
			AccountID: f.bank.ID, CategoryID: f.food.ID, Type: core.Expense,
			Amount: core.MustAmount("1000"), Date: core.NewDate(2024, 2, 2),
		}

		cases := map[string]func(n *NewTransaction){
			"unknown account":       func(n *NewTransaction) { n.AccountID = 9999 },
			"other user's account":  func(n *NewTransaction) { n.AccountID = f.otherUserBank.ID },
			"unknown category":      func(n *NewTransaction) { n.CategoryID = 9999 },
			"category type differs": func(n *NewTransaction) { n.CategoryID = f.salary.ID },
			"transfer without dest": func(n *NewTransaction) { n.Type, n.CategoryID = core.Transfer, f.topUp.ID },
			"destination on expense": func(n *NewTransaction) {
				n.DestinationAccountID = &f.wallet.ID
			},
			"transfer to foreign account": func(n *NewTransaction) {
				n.Type, n.CategoryID, n.DestinationAccountID = core.Transfer, f.topUp.ID, &f.otherUserBank.ID
			},
			"missing date": func(n *NewTransaction) { n.Date = core.Date{} },
		}
		for name, mutate := range cases {
			t.Run(name, func(t *testing.T) {
				in := base
				mutate(&in)
				_, err := svc.CreateTransaction(ctx, f.user.ID, in)
				require.Error(t, err)
				assert.True(t, core.IsValidation(err), "%v", err)
			})
		}

		assertBalance(t, svc, f.user.ID, f.bank.ID, "0")
		list, err := svc.ListTransactions(ctx, f.user.ID, storage.TransactionFilter{})
		require.NoError(t, err)
		assert.Empty(t, list)
	})
}

func TestOtherUsersTransactionsAreInvisible(t *testing.T) {
	forEachStore(t, func(t *testing.T, svc *Service) {
		ctx := context.Background()
		f := setup(t, svc)
		txn, err := svc.CreateTransaction(ctx, f.user.ID, NewTransaction{
			AccountID: f.bank.ID, CategoryID: f.food.ID, Type: core.Expense,
			Amount: core.MustAmount("1000"), Date: core.NewDate(2024, 2, 2),
		})
		require.NoError(t, err)

		intruder := f.otherUserBank.UserID
		_, err = svc.GetTransaction(ctx, intruder, txn.ID)
		assert.ErrorIs(t, err, storage.ErrNotFound)
		require.NoError(t, svc.DeleteTransaction(ctx, intruder, txn.ID))
		require.NoError(t, svc.UpdateTransaction(ctx, intruder, txn.ID, core.TransactionPatch{Amount: ptr(core.MustAmount("1"))}))

		assertBalance(t, svc, f.user.ID, f.bank.ID, "-1000")
	})
}

// TestRandomSequencesKeepBalancesConsistent checks that after any sequence of
// creates, updates and deletes every balance equals the sum of the legs of
// the transactions still referencing the account.
func TestRandomSequencesKeepBalancesConsistent(t *testing.T) {
	forEachStore(t, func(t *testing.T, svc *Service) {
		ctx := context.Background()
		f := setup(t, svc)
		rng := rand.New(rand.NewPCG(42, 7))
		accounts := []int64{f.bank.ID, f.wallet.ID}

		randomTxn := func() NewTransaction {
			src := accounts[rng.IntN(2)]
			n := NewTransaction{
				AccountID: src,
				Amount:    decimal.New(int64(rng.IntN(1_000_000)+1), -2),
				Date:      core.NewDate(2024, rng.IntN(12)+1, rng.IntN(28)+1),
			}
			switch rng.IntN(3) {
			case 0:
				n.Type, n.CategoryID = core.Income, f.salary.ID
			case 1:
				n.Type, n.CategoryID = core.Expense, f.food.ID
			default:
				dst := accounts[0]
				if src == dst {
					dst = accounts[1]
				}
				n.Type, n.CategoryID, n.DestinationAccountID = core.Transfer, f.topUp.ID, &dst
			}
			return n
		}

		var live []int64
		for range 150 {
			switch op := rng.IntN(4); {
			case op <= 1 || len(live) == 0:
				txn, err := svc.CreateTransaction(ctx, f.user.ID, randomTxn())
				require.NoError(t, err)
				live = append(live, txn.ID)
			case op == 2:
				i := rng.IntN(len(live))
				require.NoError(t, svc.DeleteTransaction(ctx, f.user.ID, live[i]))
				live = append(live[:i], live[i+1:]...)
			default:
				n := randomTxn()
				p := core.TransactionPatch{
					AccountID: &n.AccountID, CategoryID: &n.CategoryID, Type: &n.Type,
					Amount: &n.Amount, DestinationAccountID: n.DestinationAccountID,
					ClearDestination: n.DestinationAccountID == nil,
				}
				require.NoError(t, svc.UpdateTransaction(ctx, f.user.ID, live[rng.IntN(len(live))], p))
			}
		}

		issues, err := svc.Reconcile(ctx, f.user.ID)
		require.NoError(t, err)
		assert.Empty(t, issues)

		txns, err := svc.ListTransactions(ctx, f.user.ID, storage.TransactionFilter{})
		require.NoError(t, err)
		assert.Len(t, txns, len(live))
	})
}

func TestRegisterAndAuthenticate(t *testing.T) {
	forEachStore(t, func(t *testing.T, svc *Service) {
		ctx := context.Background()

		u, err := svc.Register(ctx, "  Andi ", "secret123")
		require.NoError(t, err)
		assert.Equal(t, "andi", u.Username)
		assert.NotEqual(t, "secret123", u.PasswordHash)

		_, err = svc.Register(ctx, "ANDI", "another1")
		assert.ErrorIs(t, err, ErrUsernameTaken)
		assert.True(t, core.IsValidation(err))

		_, err = svc.Register(ctx, "ab", "secret123")
		assert.True(t, core.IsValidation(err))
		_, err = svc.Register(ctx, "charlie", "12345")
		assert.True(t, core.IsValidation(err))
		_, err = svc.Register(ctx, "charlie", strings.Repeat("a", 73))
		var verr *core.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "password", verr.Field)
		_, err = svc.Register(ctx, "charlie", strings.Repeat("a", 72))
		assert.NoError(t, err)

		got, err := svc.Authenticate(ctx, "Andi", "secret123")
		require.NoError(t, err)
		assert.Equal(t, u.ID, got.ID)

		_, err = svc.Authenticate(ctx, "andi", "wrong-pass")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
		_, err = svc.Authenticate(ctx, "nobody", "secret123")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})
}

func TestSeedCategoriesIsIdempotent(t *testing.T) {
	forEachStore(t, func(t *testing.T, svc *Service) {
		ctx := context.Background()
		u, err := svc.Register(ctx, "dewi", "secret123")
		require.NoError(t, err)

		for range 2 {
			n, err := svc.SeedCategories(ctx, u.ID)
			require.NoError(t, err)
			assert.Zero(t, n)
		}
		cats, err := svc.ListCategories(ctx, u.ID, "")
		require.NoError(t, err)
		assert.Len(t, cats, 23)

		_, err = svc.SeedCategories(ctx, 9999)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})
}

func TestSeedCategoriesFillsEmptyUser(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := NewService(store, WithHashCost(bcrypt.MinCost))

	var userID int64
	require.NoError(t, store.WithTx(ctx, func(tx storage.Tx) error {
		var err error
		userID, err = tx.InsertUser(ctx, core.User{Username: "eko", PasswordHash: "x"})
		return err
	}))

	n, err := svc.SeedCategories(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 23, n)
	n, err = svc.SeedCategories(ctx, userID)
	require.NoError(t, err)
	assert.Zero(t, n)

	counts := map[core.TransactionType]int{}
	cats, err := svc.ListCategories(ctx, userID, "")
	require.NoError(t, err)
	for _, c := range cats {
		counts[c.Type]++
	}
	assert.Equal(t, map[core.TransactionType]int{core.Income: 6, core.Expense: 11, core.Transfer: 6}, counts)
}

func TestRestrictedDeletes(t *testing.T) {
	forEachStore(t, func(t *testing.T, svc *Service) {
		ctx := context.Background()
		f := setup(t, svc)
		_, err := svc.CreateTransaction(ctx, f.user.ID, NewTransaction{
			AccountID: f.bank.ID, CategoryID: f.food.ID, Type: core.Expense,
			Amount: core.MustAmount("1000"), Date: core.NewDate(2024, 2, 2),
		})
		require.NoError(t, err)

		assert.ErrorIs(t, svc.DeleteAccount(ctx, f.user.ID, f.bank.ID), storage.ErrInUse)
		assert.ErrorIs(t, svc.DeleteCategory(ctx, f.user.ID, f.food.ID), storage.ErrInUse)
		assert.ErrorIs(t, svc.UpdateCategory(ctx, f.user.ID, f.food.ID, core.CategoryPatch{Type: ptr(core.Income)}), storage.ErrInUse)

		// Renaming a referenced category is fine.
		require.NoError(t, svc.UpdateCategory(ctx, f.user.ID, f.food.ID, core.CategoryPatch{Name: ptr("Jajan")}))

		require.NoError(t, svc.DeleteAccount(ctx, f.user.ID, f.wallet.ID))
		_, err = svc.GetAccount(ctx, f.user.ID, f.wallet.ID)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})
}

func TestAccountCRUD(t *testing.T) {
	forEachStore(t, func(t *testing.T, svc *Service) {
		ctx := context.Background()
		f := setup(t, svc)

		_, err := svc.CreateAccount(ctx, f.user.ID, "   ", core.Cash)
		assert.ErrorIs(t, err, core.ErrEmptyName)
		_, err = svc.CreateAccount(ctx, f.user.ID, "Koin", core.AccountType("crypto"))
		assert.ErrorIs(t, err, core.ErrInvalidType)

		require.NoError(t, svc.UpdateAccount(ctx, f.user.ID, f.wallet.ID, core.AccountPatch{Name: ptr(" OVO ")}))
		a, err := svc.GetAccount(ctx, f.user.ID, f.wallet.ID)
		require.NoError(t, err)
		assert.Equal(t, "OVO", a.Name)

		// Another user's account cannot be renamed.
		require.NoError(t, svc.UpdateAccount(ctx, f.user.ID, f.otherUserBank.ID, core.AccountPatch{Name: ptr("mine")}))
		other, err := svc.GetAccount(ctx, f.otherUserBank.UserID, f.otherUserBank.ID)
		require.NoError(t, err)
		assert.Equal(t, "Mandiri", other.Name)

		list, err := svc.ListAccounts(ctx, f.user.ID)
		require.NoError(t, err)
		assert.Len(t, list, 2)
	})
}

func TestListenersSeeCommittedChanges(t *testing.T) {
	ctx := context.Background()
	var (
		mu     sync.Mutex
		events []ChangeEvent
	)
	record := ListenerFunc(func(_ context.Context, ev ChangeEvent) error {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, ev)
		return nil
	})
	failing := ListenerFunc(func(context.Context, ChangeEvent) error { return errors.New("broker down") })

	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	svc := NewService(memory.New(), WithHashCost(bcrypt.MinCost), WithClock(func() time.Time { return now }), WithListener(failing))
	svc.Subscribe(record)

	u, err := svc.Register(ctx, "fajar", "secret123")
	require.NoError(t, err)
	acc, err := svc.CreateAccount(ctx, u.ID, "BRI", core.Bank)
	require.NoError(t, err)

	// A rejected operation emits nothing.
	_, err = svc.CreateTransaction(ctx, u.ID, NewTransaction{AccountID: acc.ID, CategoryID: 9999,
		Type: core.Expense, Amount: core.MustAmount("1"), Date: core.NewDate(2024, 5, 1)})
	require.Error(t, err)

	require.Len(t, events, 2)
	assert.Equal(t, ChangeEvent{UserID: u.ID, Entity: EntityUser, Op: OpCreated, ID: u.ID, At: now}, events[0])
	assert.Equal(t, ChangeEvent{UserID: u.ID, Entity: EntityAccount, Op: OpCreated, ID: acc.ID, At: now}, events[1])
}

func TestSortNewestFirst(t *testing.T) {
	list := []core.Transaction{
		{ID: 1, Date: core.NewDate(2024, 1, 1)},
		{ID: 2, Date: core.NewDate(2024, 3, 1)},
		{ID: 3, Date: core.NewDate(2024, 1, 1)},
	}
	SortNewestFirst(list)
	assert.Equal(t, []int64{2, 3, 1}, []int64{list[0].ID, list[1].ID, list[2].ID})
}
