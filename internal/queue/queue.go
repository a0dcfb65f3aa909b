package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/models"
)

// Queue is one named persistent queue over BadgerDB.
//
// Key layout:
//
//	{prefix}:queue:{name}:msg:{id}                      -> message JSON
//	{prefix}:queue:{name}:index:{visibleAtNanos}:{id}   -> empty
//
// The visibility index key embeds the nanosecond timestamp so iteration
// order is delivery order and future-dated messages sort past "now".
type Queue struct {
	db                *badger.DB
	name              string
	prefix            string
	visibilityTimeout time.Duration
	maxReceive        int
	logger            arbor.ILogger
}

// Name returns the queue name
func (q *Queue) Name() string {
	return q.name
}

func (q *Queue) msgKey(id string) []byte {
	return []byte(fmt.Sprintf("%s:queue:%s:msg:%s", q.prefix, q.name, id))
}

func (q *Queue) indexPrefix() []byte {
	return []byte(fmt.Sprintf("%s:queue:%s:index:", q.prefix, q.name))
}

func (q *Queue) indexKey(visibleAt time.Time, id string) []byte {
	return []byte(fmt.Sprintf("%s:queue:%s:index:%020d:%s", q.prefix, q.name, visibleAt.UnixNano(), id))
}

// parseIndexKey extracts the visibility timestamp and message ID from an index key
func (q *Queue) parseIndexKey(key []byte) (time.Time, string, error) {
	rest := strings.TrimPrefix(string(key), string(q.indexPrefix()))
	parts := strings.SplitN(rest, ":", 2)
	if len(parts) != 2 {
		return time.Time{}, "", fmt.Errorf("malformed index key: %s", key)
	}
	nanos, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return time.Time{}, "", fmt.Errorf("malformed index timestamp: %w", err)
	}
	return time.Unix(0, nanos), parts[1], nil
}

// Enqueue adds a message to the queue, immediately visible
func (q *Queue) Enqueue(ctx context.Context, msg *models.QueueMessage) error {
	return q.EnqueueWithDelay(ctx, msg, 0)
}

// EnqueueWithDelay adds a message that becomes visible after the delay
func (q *Queue) EnqueueWithDelay(ctx context.Context, msg *models.QueueMessage, delay time.Duration) error {
	if msg.ID == "" {
		msg.ID = common.NewMessageID()
	}
	msg.EnqueuedAt = time.Now()
	msg.VisibleAt = time.Now().Add(delay)
	msg.ReceiveCount = 0

	data, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to marshal queue message: %w", err)
	}

	err = q.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(q.msgKey(msg.ID), data); err != nil {
			return err
		}
		return txn.Set(q.indexKey(msg.VisibleAt, msg.ID), []byte{})
	})
	if err != nil {
		return fmt.Errorf("failed to enqueue message: %w", err)
	}

	q.logger.Debug().
		Str("queue", q.name).
		Str("message_id", msg.ID).
		Str("module", msg.Module).
		Msg("Message enqueued")

	return nil
}

// Receive pulls the next visible message from the queue.
// The message stays invisible for the visibility timeout; the returned
// delete function removes it permanently after successful processing.
// Messages received more than maxReceive times are dropped.
func (q *Queue) Receive(ctx context.Context) (*models.QueueMessage, func() error, error) {
	var qMsg models.QueueMessage
	var msgID string
	var oldIndexKey []byte
	found := false

	err := q.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		prefix := q.indexPrefix()
		it := txn.NewIterator(opts)
		defer it.Close()

		now := time.Now()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().KeyCopy(nil)

			ts, id, err := q.parseIndexKey(key)
			if err != nil {
				continue // Skip invalid keys
			}

			if ts.After(now) {
				// Index keys sort by timestamp; nothing later is ready either
				break
			}

			itemMsg, err := txn.Get(q.msgKey(id))
			if err != nil {
				if err == badger.ErrKeyNotFound {
					// Index without data, clean up
					if err := txn.Delete(key); err != nil {
						return err
					}
					continue
				}
				return err
			}

			if err := itemMsg.Value(func(val []byte) error {
				decoded, err := models.QueueMessageFromJSON(val)
				if err != nil {
					return err
				}
				qMsg = *decoded
				return nil
			}); err != nil {
				return err
			}

			if qMsg.ReceiveCount >= q.maxReceive {
				// Drop poison messages to prevent redelivery loops
				q.logger.Warn().
					Str("queue", q.name).
					Str("message_id", id).
					Int("receive_count", qMsg.ReceiveCount).
					Msg("Dropping message after max receives")
				if err := txn.Delete(key); err != nil {
					return err
				}
				if err := txn.Delete(q.msgKey(id)); err != nil {
					return err
				}
				continue
			}

			found = true
			msgID = id
			oldIndexKey = key
			break
		}

		if !found {
			// Return nil so poison drops and orphan cleanup above commit;
			// an error here would roll the whole transaction back.
			return nil
		}

		// Claim: bump receive count and push visibility forward
		qMsg.ReceiveCount++
		qMsg.VisibleAt = time.Now().Add(q.visibilityTimeout)

		newData, err := json.Marshal(&qMsg)
		if err != nil {
			return err
		}
		if err := txn.Set(q.msgKey(msgID), newData); err != nil {
			return err
		}
		if err := txn.Delete(oldIndexKey); err != nil {
			return err
		}
		return txn.Set(q.indexKey(qMsg.VisibleAt, msgID), []byte{})
	})

	if err != nil {
		return nil, nil, err
	}
	if !found {
		return nil, nil, models.ErrNoMessage
	}

	deleteFn := func() error {
		return q.db.Update(func(txn *badger.Txn) error {
			item, err := txn.Get(q.msgKey(msgID))
			if err != nil {
				if err == badger.ErrKeyNotFound {
					return nil // Already deleted
				}
				return err
			}

			var currentMsg *models.QueueMessage
			if err := item.Value(func(val []byte) error {
				currentMsg, err = models.QueueMessageFromJSON(val)
				return err
			}); err != nil {
				return err
			}

			if err := txn.Delete(q.indexKey(currentMsg.VisibleAt, msgID)); err != nil && err != badger.ErrKeyNotFound {
				return err
			}
			return txn.Delete(q.msgKey(msgID))
		})
	}

	return &qMsg, deleteFn, nil
}

// Length returns the number of messages in the queue, visible or not
func (q *Queue) Length(ctx context.Context) (int, error) {
	count := 0
	err := q.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		prefix := []byte(fmt.Sprintf("%s:queue:%s:msg:", q.prefix, q.name))
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count queue messages: %w", err)
	}
	return count, nil
}
