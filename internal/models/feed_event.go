package models

import (
	"time"
)

// FeedEvent is a normalized event produced by a module.
// Events are the common currency of the platform: every source plugin
// emits them, the storage layer persists them, and downstream consumers
// read them back by module and kind.
type FeedEvent struct {
	ID         string                 `json:"id" badgerhold:"key"`
	Module     string                 `json:"module" badgerhold:"index"` // Producing module's name
	Kind       string                 `json:"kind"`                      // Module-defined event kind (e.g. "price", "post")
	Payload    map[string]interface{} `json:"payload,omitempty"`
	OccurredAt time.Time              `json:"occurred_at"`
	StoredAt   time.Time              `json:"stored_at"`
}
