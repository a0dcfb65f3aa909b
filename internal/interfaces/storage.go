package interfaces

import (
	"context"
	"errors"
	"time"

	"github.com/ternarybob/colligo/internal/models"
)

// ErrKeyNotFound is returned when a key does not exist in KV storage
var ErrKeyNotFound = errors.New("key not found")

// KeyValuePair represents a stored key/value entry
type KeyValuePair struct {
	Key         string    `json:"key" badgerhold:"key"`
	Value       string    `json:"value"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// KeyValueStorage provides key/value persistence
type KeyValueStorage interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, description string) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]*KeyValuePair, error)
}

// EventStorage persists normalized feed events produced by modules
type EventStorage interface {
	SaveEvent(ctx context.Context, event *models.FeedEvent) error
	GetEvent(ctx context.Context, id string) (*models.FeedEvent, error)
	ListEvents(ctx context.Context, module string, limit int) ([]*models.FeedEvent, error)
	CountEvents(ctx context.Context, module string) (int, error)
	DeleteEvents(ctx context.Context, module string) error
}

// StorageManager provides access to all storage services
type StorageManager interface {
	KeyValueStorage() KeyValueStorage
	EventStorage() EventStorage
	Close() error
}
