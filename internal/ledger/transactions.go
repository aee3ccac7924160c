package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/MuhamadAdhiWinata/catatan-keuangan/internal/core"
	"github.com/MuhamadAdhiWinata/catatan-keuangan/internal/log"
	"github.com/MuhamadAdhiWinata/catatan-keuangan/internal/storage"
)

// NewTransaction is the caller-supplied part of a transaction. The user id,
// the record id and the creation timestamp are assigned by the ledger.
type NewTransaction struct {
	AccountID            int64                `json:"accountId"`
	CategoryID           int64                `json:"categoryId"`
	Type                 core.TransactionType `json:"type"`
	Amount               decimal.Decimal      `json:"amount"`
	Date                 core.Date            `json:"date"`
	Note                 string               `json:"note,omitempty"`
	DestinationAccountID *int64               `json:"destinationAccountId,omitempty"`
}

func (n NewTransaction) transaction(userID int64) core.Transaction {
	return core.Transaction{
		UserID:               userID,
		AccountID:            n.AccountID,
		CategoryID:           n.CategoryID,
		Type:                 n.Type,
		Amount:               n.Amount,
		Date:                 n.Date,
		Note:                 n.Note,
		DestinationAccountID: n.DestinationAccountID,
	}
}

// CreateTransaction records a transaction and applies its balance legs as
// one unit.
func (s *Service) CreateTransaction(ctx context.Context, userID int64, in NewTransaction) (core.Transaction, error) {
	t := in.transaction(userID)
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}

	var created core.Transaction
	err := s.store.WithTx(ctx, func(tx storage.Tx) error {
		if err := checkReferences(ctx, tx, t); err != nil {
			return err
		}
		legs, err := t.Legs()
		if err != nil {
			return err
		}
		id, err := tx.InsertTransaction(ctx, t)
		if err != nil {
			return err
		}
		if err := applyLegs(ctx, tx, legs); err != nil {
			return err
		}
		created, err = tx.GetTransaction(ctx, id)
		return err
	})
	if err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}

	s.logger.InfoContext(ctx, "Transaction recorded", log.NewFields().
		WithOperation(log.OpCreate).
		WithUser(userID).
		WithTransaction(created.ID, string(created.Type), created.AccountID, created.Amount.String()).
		ToSlice()...)
	s.notify(ctx, ChangeEvent{UserID: userID, Entity: EntityTransaction, Op: OpCreated, ID: created.ID})
	return created, nil
}

// DeleteTransaction reverses the balance legs of a transaction and removes
// it. A missing id, or one owned by another user, is a no-op.
func (s *Service) DeleteTransaction(ctx context.Context, userID, id int64) error {
	deleted := false
	err := s.store.WithTx(ctx, func(tx storage.Tx) error {
		t, err := tx.GetTransaction(ctx, id)
		if errors.Is(err, storage.ErrNotFound) || (err == nil && t.UserID != userID) {
			return nil
		}
		if err != nil {
			return err
		}
		legs, err := t.Legs()
		if err != nil {
			return fmt.Errorf("stored transaction %d: %w", id, err)
		}
		if err := applyLegs(ctx, tx, core.Inverse(legs)); err != nil {
			return err
		}
		if err := tx.DeleteTransaction(ctx, id); err != nil {
			return err
		}
		deleted = true
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete transaction %d: %w", id, err)
	}
	if deleted {
		s.logger.InfoContext(ctx, "Transaction deleted",
			log.FieldOperation, log.OpDelete,
			log.FieldUserID, userID,
			log.FieldTransactionID, id)
		s.notify(ctx, ChangeEvent{UserID: userID, Entity: EntityTransaction, Op: OpDeleted, ID: id})
	}
	return nil
}

// UpdateTransaction merges p into a transaction. The original legs are
// reversed, the record is merged and the legs of the effective transaction
// are applied, all in one store transaction. Any combination of changed
// fields (account, type, amount, destination) is handled the same way. A
// missing id, or one owned by another user, is a no-op.
func (s *Service) UpdateTransaction(ctx context.Context, userID, id int64, p core.TransactionPatch) error {
	if p.IsEmpty() {
		return nil
	}

	updated := false
	err := s.store.WithTx(ctx, func(tx storage.Tx) error {
		orig, err := tx.GetTransaction(ctx, id)
		if errors.Is(err, storage.ErrNotFound) || (err == nil && orig.UserID != userID) {
			return nil
		}
		if err != nil {
			return err
		}

		effective := p.Apply(orig)
		if err := effective.Validate(); err != nil {
			return err
		}
		if err := checkReferences(ctx, tx, effective); err != nil {
			return err
		}

		before, err := orig.Legs()
		if err != nil {
			return fmt.Errorf("stored transaction %d: %w", id, err)
		}
		after, err := effective.Legs()
		if err != nil {
			return err
		}

		if err := applyLegs(ctx, tx, core.Inverse(before)); err != nil {
			return err
		}
		if err := tx.UpdateTransaction(ctx, id, p); err != nil {
			return err
		}
		if err := applyLegs(ctx, tx, after); err != nil {
			return err
		}
		updated = true
		return nil
	})
	if err != nil {
		return fmt.Errorf("update transaction %d: %w", id, err)
	}
	if updated {
		s.logger.InfoContext(ctx, "Transaction updated",
			log.FieldOperation, log.OpUpdate,
			log.FieldUserID, userID,
			log.FieldTransactionID, id)
		s.notify(ctx, ChangeEvent{UserID: userID, Entity: EntityTransaction, Op: OpUpdated, ID: id})
	}
	return nil
}

// GetTransaction returns storage.ErrNotFound for ids owned by another user.
func (s *Service) GetTransaction(ctx context.Context, userID, id int64) (core.Transaction, error) {
	t, err := s.store.GetTransaction(ctx, id)
	if err != nil {
		return core.Transaction{}, err
	}
	if t.UserID != userID {
		return core.Transaction{}, storage.ErrNotFound
	}
	return t, nil
}

// ListTransactions lists the user's transactions matching f, newest date first.
func (s *Service) ListTransactions(ctx context.Context, userID int64, f storage.TransactionFilter) ([]core.Transaction, error) {
	f.UserID = userID
	list, err := s.store.ListTransactions(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	SortNewestFirst(list)
	return list, nil
}

// checkReferences verifies that the accounts and the category of t exist,
// belong to t's user, and that the category type matches the transaction type.
func checkReferences(ctx context.Context, r storage.Reader, t core.Transaction) error {
	if err := checkAccount(ctx, r, t.UserID, t.AccountID, "accountId"); err != nil {
		return err
	}
	if t.DestinationAccountID != nil {
		if err := checkAccount(ctx, r, t.UserID, *t.DestinationAccountID, "destinationAccountId"); err != nil {
			return err
		}
	}

	c, err := r.GetCategory(ctx, t.CategoryID)
	if errors.Is(err, storage.ErrNotFound) || (err == nil && c.UserID != t.UserID) {
		return core.Invalid("categoryId", "unknown category")
	}
	if err != nil {
		return err
	}
	if c.Type != t.Type {
		return core.Invalid("categoryId", fmt.Sprintf("category is %s, transaction is %s", c.Type, t.Type))
	}
	return nil
}

func checkAccount(ctx context.Context, r storage.Reader, userID, accountID int64, field string) error {
	a, err := r.GetAccount(ctx, accountID)
	if errors.Is(err, storage.ErrNotFound) || (err == nil && a.UserID != userID) {
		return core.Invalid(field, "unknown account")
	}
	return err
}

func applyLegs(ctx context.Context, tx storage.Tx, legs []core.Leg) error {
	for _, l := range legs {
		if err := tx.AdjustBalance(ctx, l.AccountID, l.Delta); err != nil {
			return err
		}
	}
	return nil
}
