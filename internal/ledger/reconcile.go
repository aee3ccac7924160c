package ledger

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/MuhamadAdhiWinata/catatan-keuangan/internal/core"
	"github.com/MuhamadAdhiWinata/catatan-keuangan/internal/storage"
)

// Discrepancy is an account whose stored balance differs from the sum of the
// legs of the transactions that reference it.
type Discrepancy struct {
	AccountID int64           `json:"accountId"`
	Name      string          `json:"name"`
	Stored    decimal.Decimal `json:"stored"`
	Expected  decimal.Decimal `json:"expected"`
}

// Reconcile recomputes every account balance of the user from the
// transaction log and reports the accounts that disagree. An empty result
// means the ledger is consistent.
func (s *Service) Reconcile(ctx context.Context, userID int64) ([]Discrepancy, error) {
	accounts, err := s.store.ListAccounts(ctx, storage.AccountFilter{UserID: userID})
	if err != nil {
		return nil, fmt.Errorf("reconcile: %w", err)
	}
	txns, err := s.store.ListTransactions(ctx, storage.TransactionFilter{UserID: userID})
	if err != nil {
		return nil, fmt.Errorf("reconcile: %w", err)
	}

	expected, err := ExpectedBalances(txns)
	if err != nil {
		return nil, fmt.Errorf("reconcile: %w", err)
	}

	var out []Discrepancy
	for _, a := range accounts {
		want := expected[a.ID]
		if !a.Balance.Equal(want) {
			out = append(out, Discrepancy{AccountID: a.ID, Name: a.Name, Stored: a.Balance, Expected: want})
		}
	}
	return out, nil
}

// ExpectedBalances sums the legs of txns per account.
func ExpectedBalances(txns []core.Transaction) (map[int64]decimal.Decimal, error) {
	out := make(map[int64]decimal.Decimal)
	for _, t := range txns {
		legs, err := t.Legs()
		if err != nil {
			return nil, fmt.Errorf("transaction %d: %w", t.ID, err)
		}
		for _, l := range legs {
			out[l.AccountID] = out[l.AccountID].Add(l.Delta)
		}
	}
	return out, nil
}
