package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"fintrack/internal/core"
)

// SyncRequestMessage asks the worker to reconcile one entity for a user.
// It carries no record data; the worker reads the local store.
type SyncRequestMessage struct {
	Entity    core.Entity `json:"entity"`
	UserID    string      `json:"userId"`
	Timestamp time.Time   `json:"timestamp"`
}

var ErrInvalidMessage = errors.New("invalid sync request")

// NewSyncRequestMessage creates a sync request stamped with the current time
func NewSyncRequestMessage(entity core.Entity, userID string) *SyncRequestMessage {
	return &SyncRequestMessage{
		Entity:    entity,
		UserID:    userID,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *SyncRequestMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func (m *SyncRequestMessage) Validate() error {
	switch m.Entity {
	case core.EntityUser, core.EntityBudget, core.EntityExpense, core.EntityIncome:
	default:
		return fmt.Errorf("%w: unknown entity %q", ErrInvalidMessage, m.Entity)
	}
	if m.UserID == "" {
		return fmt.Errorf("%w: missing user", ErrInvalidMessage)
	}
	return nil
}

// SyncRequestMessageFromJSON decodes and validates a message
func SyncRequestMessageFromJSON(data []byte) (*SyncRequestMessage, error) {
	var msg SyncRequestMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
