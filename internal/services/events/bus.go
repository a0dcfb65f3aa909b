package events

import (
	"context"
	"fmt"
	"sync"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/interfaces"
)

// Bus implements the MessageBus interface with subject-keyed pub/sub.
// Each subscription owns its own buffered channel, so messages on one
// subject are delivered to each subscriber in publish order while
// different subjects proceed fully independently. A full subscriber
// channel blocks the publisher for that subject only (implicit
// backpressure).
type Bus struct {
	subscribers map[string][]*subscription
	bufferSize  int
	mu          sync.RWMutex
	closed      bool
	logger      arbor.ILogger
}

type subscription struct {
	bus     *Bus
	subject string
	ch      chan interfaces.BusMessage
	done    chan struct{}
	sending sync.WaitGroup
	once    sync.Once
}

// Messages returns the subscription's ordered message channel
func (s *subscription) Messages() <-chan interfaces.BusMessage {
	return s.ch
}

// Unsubscribe removes the subscription and closes its channel
func (s *subscription) Unsubscribe() error {
	s.bus.remove(s)
	return nil
}

// close signals pending publishers via done, waits for their in-flight
// sends to drain, then closes the message channel. Closing the data
// channel while a publisher is mid-send would panic the publisher.
func (s *subscription) close() {
	s.once.Do(func() {
		close(s.done)
		s.sending.Wait()
		close(s.ch)
	})
}

// NewBus creates a new in-process message bus.
// bufferSize is the per-subscription channel depth; values below 1 fall
// back to 64.
func NewBus(bufferSize int, logger arbor.ILogger) *Bus {
	if bufferSize < 1 {
		bufferSize = 64
	}
	return &Bus{
		subscribers: make(map[string][]*subscription),
		bufferSize:  bufferSize,
		logger:      logger,
	}
}

// Subscribe opens a new subscription on a subject
func (b *Bus) Subscribe(subject string) (interfaces.BusSubscription, error) {
	if subject == "" {
		return nil, fmt.Errorf("subject cannot be empty")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, fmt.Errorf("bus is closed")
	}

	sub := &subscription{
		bus:     b,
		subject: subject,
		ch:      make(chan interfaces.BusMessage, b.bufferSize),
		done:    make(chan struct{}),
	}
	b.subscribers[subject] = append(b.subscribers[subject], sub)

	b.logger.Debug().
		Str("subject", subject).
		Int("subscriber_count", len(b.subscribers[subject])).
		Msg("Bus subscription opened")

	return sub, nil
}

// Publish delivers a message to every subscriber of the subject.
// Delivery to each subscriber preserves publish order; a slow subscriber
// with a full channel blocks the publisher until it drains or the
// context is cancelled.
func (b *Bus) Publish(ctx context.Context, subject string, data []byte) error {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return fmt.Errorf("bus is closed")
	}
	subs := make([]*subscription, len(b.subscribers[subject]))
	copy(subs, b.subscribers[subject])
	// Register in-flight sends under the lock so close() cannot shut the
	// channel between the copy and the send below.
	for _, sub := range subs {
		sub.sending.Add(1)
	}
	b.mu.RUnlock()

	if len(subs) == 0 {
		b.logger.Debug().Str("subject", subject).Msg("No subscribers for subject")
		return nil
	}

	msg := interfaces.BusMessage{Subject: subject, Data: data}
	for i, sub := range subs {
		select {
		case sub.ch <- msg:
		case <-sub.done:
			// Subscription closed mid-publish; drop the message for it
		case <-ctx.Done():
			for _, rest := range subs[i:] {
				rest.sending.Done()
			}
			return ctx.Err()
		}
		sub.sending.Done()
	}

	return nil
}

// remove detaches a subscription from the bus and closes its channel
func (b *Bus) remove(target *subscription) {
	b.mu.Lock()
	subs := b.subscribers[target.subject]
	for i, sub := range subs {
		if sub == target {
			b.subscribers[target.subject] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	b.mu.Unlock()

	target.close()

	b.logger.Debug().Str("subject", target.subject).Msg("Bus subscription closed")
}

// Close shuts down the bus and closes all subscription channels
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	for _, subs := range b.subscribers {
		for _, sub := range subs {
			sub.close()
		}
	}
	b.subscribers = make(map[string][]*subscription)

	b.logger.Info().Msg("Message bus closed")
	return nil
}
