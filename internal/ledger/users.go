package ledger

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/MuhamadAdhiWinata/catatan-keuangan/internal/core"
	"github.com/MuhamadAdhiWinata/catatan-keuangan/internal/log"
	"github.com/MuhamadAdhiWinata/catatan-keuangan/internal/storage"
)

// dummyHash is compared against when the username is unknown so both
// failure paths cost one bcrypt comparison.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("catatan-keuangan"), bcrypt.MinCost)

// Register creates a user with a bcrypt password hash and seeds the default
// categories in the same store transaction.
func (s *Service) Register(ctx context.Context, username, password string) (core.User, error) {
	username = core.NormalizeUsername(username)
	if err := core.ValidateCredentials(username, password); err != nil {
		return core.User{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return core.User{}, fmt.Errorf("hash password: %w", err)
	}

	var user core.User
	err = s.store.WithTx(ctx, func(tx storage.Tx) error {
		id, err := tx.InsertUser(ctx, core.User{Username: username, PasswordHash: string(hash)})
		if errors.Is(err, storage.ErrDuplicate) {
			return validation("username", ErrUsernameTaken)
		}
		if err != nil {
			return err
		}
		if _, err := seedDefaults(ctx, tx, id); err != nil {
			return err
		}
		user, err = tx.GetUser(ctx, id)
		return err
	})
	if err != nil {
		return core.User{}, fmt.Errorf("register %q: %w", username, err)
	}

	s.logger.InfoContext(ctx, "User registered", log.FieldUserID, user.ID, log.FieldOperation, log.OpCreate)
	s.notify(ctx, ChangeEvent{UserID: user.ID, Entity: EntityUser, Op: OpCreated, ID: user.ID})
	return user, nil
}

// Authenticate checks a username and password. Unknown users and wrong
// passwords both yield ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, username, password string) (core.User, error) {
	u, err := s.store.GetUserByUsername(ctx, core.NormalizeUsername(username))
	if errors.Is(err, storage.ErrNotFound) {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return core.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return core.User{}, fmt.Errorf("authenticate: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return core.User{}, ErrInvalidCredentials
	}
	return u, nil
}

// SeedCategories inserts the default categories for a user who has none.
// It returns the number inserted, zero when the user already has categories.
func (s *Service) SeedCategories(ctx context.Context, userID int64) (int, error) {
	var n int
	err := s.store.WithTx(ctx, func(tx storage.Tx) error {
		if _, err := tx.GetUser(ctx, userID); err != nil {
			return err
		}
		var err error
		n, err = seedDefaults(ctx, tx, userID)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("seed categories: %w", err)
	}
	if n > 0 {
		s.logger.InfoContext(ctx, "Default categories seeded",
			log.FieldUserID, userID, log.FieldOperation, log.OpSeed, log.FieldRows, n)
		s.notify(ctx, ChangeEvent{UserID: userID, Entity: EntityCategory, Op: OpSeeded})
	}
	return n, nil
}

func seedDefaults(ctx context.Context, tx storage.Tx, userID int64) (int, error) {
	existing, err := tx.CountCategories(ctx, userID)
	if err != nil {
		return 0, err
	}
	if existing > 0 {
		return 0, nil
	}
	for _, d := range core.DefaultCategories {
		c := core.Category{UserID: userID, Name: d.Name, Type: d.Type, Icon: d.Icon}
		if _, err := tx.InsertCategory(ctx, c); err != nil {
			return 0, fmt.Errorf("insert %q: %w", d.Name, err)
		}
	}
	return len(core.DefaultCategories), nil
}
