package interfaces

import (
	"context"
)

// BusMessage is one message delivered on a bus subject.
// The payload is opaque to the bus; triggered-job payloads are JSON.
type BusMessage struct {
	Subject string
	Data    []byte
}

// BusSubscription is a live consumer of one bus subject.
// Messages() yields messages in publish order until the subscription is
// closed; the channel is closed on Unsubscribe or bus shutdown.
type BusSubscription interface {
	Messages() <-chan BusMessage
	Unsubscribe() error
}

// MessageBus is the publish/subscribe collaborator.
// The dispatch core consumes Subscribe; Publish is exposed to module
// handlers through their execution context.
type MessageBus interface {
	Subscribe(subject string) (BusSubscription, error)
	Publish(ctx context.Context, subject string, data []byte) error
	Close() error
}
