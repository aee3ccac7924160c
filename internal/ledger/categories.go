package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MuhamadAdhiWinata/catatan-keuangan/internal/core"
	"github.com/MuhamadAdhiWinata/catatan-keuangan/internal/log"
	"github.com/MuhamadAdhiWinata/catatan-keuangan/internal/storage"
)

func (s *Service) CreateCategory(ctx context.Context, userID int64, c core.Category) (core.Category, error) {
	c.ID = 0
	c.UserID = userID
	c.Name = strings.TrimSpace(c.Name)
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}

	var created core.Category
	err := s.store.WithTx(ctx, func(tx storage.Tx) error {
		if _, err := tx.GetUser(ctx, userID); err != nil {
			return err
		}
		id, err := tx.InsertCategory(ctx, c)
		if err != nil {
			return err
		}
		created, err = tx.GetCategory(ctx, id)
		return err
	})
	if err != nil {
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}
	s.logger.InfoContext(ctx, "Category created", log.FieldUserID, userID, log.FieldCategoryID, created.ID)
	s.notify(ctx, ChangeEvent{UserID: userID, Entity: EntityCategory, Op: OpCreated, ID: created.ID})
	return created, nil
}

// UpdateCategory patches a category. Changing the type of a category that
// transactions reference fails with storage.ErrInUse, since each of those
// transactions carries the old type. A missing id is a no-op.
func (s *Service) UpdateCategory(ctx context.Context, userID, id int64, p core.CategoryPatch) error {
	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		p.Name = &name
	}
	updated := false
	err := s.store.WithTx(ctx, func(tx storage.Tx) error {
		c, err := tx.GetCategory(ctx, id)
		if errors.Is(err, storage.ErrNotFound) || (err == nil && c.UserID != userID) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := p.Apply(c).Validate(); err != nil {
			return err
		}
		if p.Type != nil && *p.Type != c.Type {
			refs, err := tx.ListTransactions(ctx, storage.TransactionFilter{CategoryID: id})
			if err != nil {
				return err
			}
			if len(refs) > 0 {
				return storage.ErrInUse
			}
		}
		updated = true
		return tx.UpdateCategory(ctx, id, p)
	})
	if err != nil {
		return fmt.Errorf("update category %d: %w", id, err)
	}
	if updated {
		s.notify(ctx, ChangeEvent{UserID: userID, Entity: EntityCategory, Op: OpUpdated, ID: id})
	}
	return nil
}

// DeleteCategory removes a category that no transaction references. It fails
// with storage.ErrInUse otherwise. A missing id is a no-op.
func (s *Service) DeleteCategory(ctx context.Context, userID, id int64) error {
	deleted := false
	err := s.store.WithTx(ctx, func(tx storage.Tx) error {
		c, err := tx.GetCategory(ctx, id)
		if errors.Is(err, storage.ErrNotFound) || (err == nil && c.UserID != userID) {
			return nil
		}
		if err != nil {
			return err
		}
		deleted = true
		return tx.DeleteCategory(ctx, id)
	})
	if err != nil {
		return fmt.Errorf("delete category %d: %w", id, err)
	}
	if deleted {
		s.notify(ctx, ChangeEvent{UserID: userID, Entity: EntityCategory, Op: OpDeleted, ID: id})
	}
	return nil
}

// GetCategory returns storage.ErrNotFound for ids owned by another user.
func (s *Service) GetCategory(ctx context.Context, userID, id int64) (core.Category, error) {
	c, err := s.store.GetCategory(ctx, id)
	if err != nil {
		return core.Category{}, err
	}
	if c.UserID != userID {
		return core.Category{}, storage.ErrNotFound
	}
	return c, nil
}

// ListCategories lists the user's categories, optionally of one type.
func (s *Service) ListCategories(ctx context.Context, userID int64, typ core.TransactionType) ([]core.Category, error) {
	list, err := s.store.ListCategories(ctx, storage.CategoryFilter{UserID: userID, Type: typ})
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return list, nil
}
