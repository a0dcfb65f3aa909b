package common

import (
	"github.com/google/uuid"
)

// NewEventID generates a unique feed event ID with the "evt_" prefix
// Format: evt_<uuid>
func NewEventID() string {
	return "evt_" + uuid.New().String()
}

// NewMessageID generates a unique queue message ID
func NewMessageID() string {
	return uuid.New().String()
}
