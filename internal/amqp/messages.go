package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

// Entity kinds carried by LedgerChangedMessage.
const (
	EntityTransaction = "transaction"
	EntityBudget      = "budget"
	EntityCategory    = "category"
	EntityImport      = "import"
)

// LedgerChangedMessage tells consumers that a user's ledger was written. It
// only carries identifiers; consumers re-read what they need.
type LedgerChangedMessage struct {
	UserID    int64     `json:"user_id"`
	Entity    string    `json:"entity"`
	EntityID  int64     `json:"entity_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func NewLedgerChangedMessage(userID int64, entity string, entityID int64) *LedgerChangedMessage {
	return &LedgerChangedMessage{
		UserID:    userID,
		Entity:    entity,
		EntityID:  entityID,
		Timestamp: time.Now(),
	}
}

func (m *LedgerChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerChangedMessageFromJSON decodes and validates a message body.
func LedgerChangedMessageFromJSON(data []byte) (*LedgerChangedMessage, error) {
	var msg LedgerChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.UserID <= 0 {
		return nil, errors.New("ledger change without user_id")
	}
	return &msg, nil
}
