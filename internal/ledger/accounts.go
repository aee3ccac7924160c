package ledger

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/MuhamadAdhiWinata/catatan-keuangan/internal/core"
	"github.com/MuhamadAdhiWinata/catatan-keuangan/internal/log"
	"github.com/MuhamadAdhiWinata/catatan-keuangan/internal/storage"
)

// CreateAccount opens an account with a zero balance.
func (s *Service) CreateAccount(ctx context.Context, userID int64, name string, typ core.AccountType) (core.Account, error) {
	a := core.Account{UserID: userID, Name: strings.TrimSpace(name), Type: typ}
	if err := a.Validate(); err != nil {
		return core.Account{}, err
	}

	var created core.Account
	err := s.store.WithTx(ctx, func(tx storage.Tx) error {
		if _, err := tx.GetUser(ctx, userID); err != nil {
			return err
		}
		id, err := tx.InsertAccount(ctx, a)
		if err != nil {
			return err
		}
		created, err = tx.GetAccount(ctx, id)
		return err
	})
	if err != nil {
		return core.Account{}, fmt.Errorf("create account: %w", err)
	}
	s.logger.InfoContext(ctx, "Account created", log.FieldUserID, userID, log.FieldAccountID, created.ID)
	s.notify(ctx, ChangeEvent{UserID: userID, Entity: EntityAccount, Op: OpCreated, ID: created.ID})
	return created, nil
}

// UpdateAccount changes the name or type of an account. The balance cannot
// be patched. A missing id is a no-op.
func (s *Service) UpdateAccount(ctx context.Context, userID, id int64, p core.AccountPatch) error {
	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		p.Name = &name
	}
	updated := false
	err := s.store.WithTx(ctx, func(tx storage.Tx) error {
		a, err := tx.GetAccount(ctx, id)
		if errors.Is(err, storage.ErrNotFound) || (err == nil && a.UserID != userID) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := p.Apply(a).Validate(); err != nil {
			return err
		}
		updated = true
		return tx.UpdateAccount(ctx, id, p)
	})
	if err != nil {
		return fmt.Errorf("update account %d: %w", id, err)
	}
	if updated {
		s.notify(ctx, ChangeEvent{UserID: userID, Entity: EntityAccount, Op: OpUpdated, ID: id})
	}
	return nil
}

// DeleteAccount removes an account that no transaction references. It fails
// with storage.ErrInUse otherwise. A missing id is a no-op.
func (s *Service) DeleteAccount(ctx context.Context, userID, id int64) error {
	deleted := false
	err := s.store.WithTx(ctx, func(tx storage.Tx) error {
		a, err := tx.GetAccount(ctx, id)
		if errors.Is(err, storage.ErrNotFound) || (err == nil && a.UserID != userID) {
			return nil
		}
		if err != nil {
			return err
		}
		deleted = true
		return tx.DeleteAccount(ctx, id)
	})
	if err != nil {
		return fmt.Errorf("delete account %d: %w", id, err)
	}
	if deleted {
		s.notify(ctx, ChangeEvent{UserID: userID, Entity: EntityAccount, Op: OpDeleted, ID: id})
	}
	return nil
}

// GetAccount returns storage.ErrNotFound for ids owned by another user.
func (s *Service) GetAccount(ctx context.Context, userID, id int64) (core.Account, error) {
	a, err := s.store.GetAccount(ctx, id)
	if err != nil {
		return core.Account{}, err
	}
	if a.UserID != userID {
		return core.Account{}, storage.ErrNotFound
	}
	return a, nil
}

func (s *Service) ListAccounts(ctx context.Context, userID int64) ([]core.Account, error) {
	list, err := s.store.ListAccounts(ctx, storage.AccountFilter{UserID: userID})
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	return list, nil
}

// SortNewestFirst orders transactions by date, most recent first, then by id.
func SortNewestFirst(list []core.Transaction) {
	slices.SortStableFunc(list, func(a, b core.Transaction) int {
		if c := b.Date.Compare(a.Date.Time); c != 0 {
			return c
		}
		switch {
		case a.ID > b.ID:
			return -1
		case a.ID < b.ID:
			return 1
		}
		return 0
	})
}
