package models

import (
	"encoding/json"
	"errors"
	"time"
)

// ErrNoMessage is returned when a queue has no visible messages
var ErrNoMessage = errors.New("no messages in queue")

// QueueMessage is one unit of deferred work placed on a named queue by a
// handler (via its execution context) for later processing.
type QueueMessage struct {
	ID           string          `json:"id"`
	Module       string          `json:"module"` // Enqueuing module's name
	Job          string          `json:"job"`    // Target job name
	Payload      json.RawMessage `json:"payload,omitempty"`
	EnqueuedAt   time.Time       `json:"enqueued_at"`
	VisibleAt    time.Time       `json:"visible_at"`
	ReceiveCount int             `json:"receive_count"`
}

// ToJSON serializes the message for storage
func (m *QueueMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// QueueMessageFromJSON deserializes a stored message
func QueueMessageFromJSON(data []byte) (*QueueMessage, error) {
	var msg QueueMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
