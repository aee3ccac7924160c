package amqp

import (
	"encoding/json"
	"time"

	"github.com/MuhamadAdhiWinata/catatan-keuangan/internal/ledger"
)

// LedgerEventMessage is a lightweight notice that a user's ledger changed.
// It carries ids only; consumers read current state from the store.
type LedgerEventMessage struct {
	UserID    int64         `json:"userId"`
	Entity    ledger.Entity `json:"entity"`
	Op        ledger.Op     `json:"op"`
	ID        int64         `json:"id,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// NewLedgerEventMessage converts a committed change into a message.
func NewLedgerEventMessage(ev ledger.ChangeEvent) *LedgerEventMessage {
	ts := ev.At
	if ts.IsZero() {
		ts = time.Now()
	}
	return &LedgerEventMessage{
		UserID:    ev.UserID,
		Entity:    ev.Entity,
		Op:        ev.Op,
		ID:        ev.ID,
		Timestamp: ts,
	}
}

// ToJSON converts the message to JSON bytes
func (m *LedgerEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerEventMessageFromJSON creates a message from JSON bytes
func LedgerEventMessageFromJSON(data []byte) (*LedgerEventMessage, error) {
	var msg LedgerEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
