// Package ledger is the only writer of the ledger. It owns the balance
// protocols: every transaction create, update and delete reverses and applies
// balance legs inside one store transaction, so account balances always equal
// the net effect of the transactions that reference them.
package ledger

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/MuhamadAdhiWinata/catatan-keuangan/internal/core"
	"github.com/MuhamadAdhiWinata/catatan-keuangan/internal/log"
	"github.com/MuhamadAdhiWinata/catatan-keuangan/internal/storage"
)

var (
	ErrUsernameTaken      = errors.New("username already taken")
	ErrInvalidCredentials = errors.New("invalid username or password")
)

// Service orchestrates ledger mutations over a store and notifies listeners
// after each successful commit.
type Service struct {
	store    storage.Store
	logger   *log.Logger
	now      func() time.Time
	hashCost int

	mu        sync.RWMutex
	listeners []Listener
}

type Option func(*Service)

// WithClock replaces time.Now. Used by tests and by the CLI's --today flag.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithLogger(l *log.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithHashCost sets the bcrypt cost for new passwords.
func WithHashCost(cost int) Option {
	return func(s *Service) { s.hashCost = cost }
}

// WithListener registers l at construction time.
func WithListener(l Listener) Option {
	return func(s *Service) { s.listeners = append(s.listeners, l) }
}

func NewService(store storage.Store, opts ...Option) *Service {
	s := &Service{
		store:    store,
		now:      time.Now,
		hashCost: bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.ForComponent(log.ComponentLedger)
	}
	return s
}

// Store exposes the underlying store for read-only collaborators.
func (s *Service) Store() storage.Reader {
	return s.store
}

// Subscribe adds a listener for change events.
func (s *Service) Subscribe(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// notify runs after commit. Listener failures are logged and never undo or
// fail the operation.
func (s *Service) notify(ctx context.Context, ev ChangeEvent) {
	if ev.At.IsZero() {
		ev.At = s.now().UTC()
	}
	s.mu.RLock()
	listeners := append([]Listener(nil), s.listeners...)
	s.mu.RUnlock()

	for _, l := range listeners {
		if err := l.LedgerChanged(ctx, ev); err != nil {
			s.logger.WarnContext(ctx, "Change listener failed",
				log.FieldEntity, ev.Entity,
				log.FieldOperation, ev.Op,
				log.FieldUserID, ev.UserID,
				log.FieldError, err)
		}
	}
}

// validation wraps a sentinel as a field error so callers can match both.
func validation(field string, err error) error {
	return &core.ValidationError{Field: field, Reason: err.Error(), Err: err}
}
