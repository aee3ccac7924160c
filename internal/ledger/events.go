package ledger

import (
	"context"
	"time"
)

type Entity string

const (
	EntityUser        Entity = "user"
	EntityAccount     Entity = "account"
	EntityCategory    Entity = "category"
	EntityTransaction Entity = "transaction"
)

type Op string

const (
	OpCreated Op = "created"
	OpUpdated Op = "updated"
	OpDeleted Op = "deleted"
	OpSeeded  Op = "seeded"
)

// ChangeEvent describes one committed ledger mutation.
type ChangeEvent struct {
	UserID int64     `json:"userId"`
	Entity Entity    `json:"entity"`
	Op     Op        `json:"op"`
	ID     int64     `json:"id,omitempty"`
	At     time.Time `json:"at"`
}

// Listener is told about committed changes. It runs synchronously on the
// caller's goroutine after the store transaction commits.
type Listener interface {
	LedgerChanged(ctx context.Context, ev ChangeEvent) error
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(ctx context.Context, ev ChangeEvent) error

func (f ListenerFunc) LedgerChanged(ctx context.Context, ev ChangeEvent) error {
	return f(ctx, ev)
}
