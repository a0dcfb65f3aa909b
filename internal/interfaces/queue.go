package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/colligo/internal/models"
)

// QueueHandle is one named persistent queue.
// Handlers receive queues through their execution context to defer work
// rather than acting immediately.
type QueueHandle interface {
	Name() string
	Enqueue(ctx context.Context, msg *models.QueueMessage) error
	EnqueueWithDelay(ctx context.Context, msg *models.QueueMessage, delay time.Duration) error

	// Receive pulls the next visible message, returning the message and a
	// delete function to call after successful processing. Returns
	// models.ErrNoMessage when the queue is empty.
	Receive(ctx context.Context) (*models.QueueMessage, func() error, error)
	Length(ctx context.Context) (int, error)
}

// QueueService provides access to named queues.
// GetQueue is the accessor passed through execution contexts.
type QueueService interface {
	GetQueue(name string) QueueHandle
	Close() error
}
