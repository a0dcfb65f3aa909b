package queue

import (
	"errors"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/interfaces"
)

// Manager provides named persistent queues backed by BadgerDB.
// Queues are created lazily on first access and share one database.
type Manager struct {
	db                *badger.DB
	prefix            string
	visibilityTimeout time.Duration
	maxReceive        int
	queues            map[string]*Queue
	mu                sync.Mutex
	logger            arbor.ILogger
}

// NewManager creates a new queue manager
func NewManager(db *badger.DB, config *common.QueueConfig, logger arbor.ILogger) (*Manager, error) {
	if db == nil {
		return nil, errors.New("badger db is required")
	}

	prefix := config.Prefix
	if prefix == "" {
		prefix = "colligo"
	}

	maxReceive := config.MaxReceive
	if maxReceive <= 0 {
		maxReceive = 3
	}

	return &Manager{
		db:                db,
		prefix:            prefix,
		visibilityTimeout: config.VisibilityTimeoutDuration(),
		maxReceive:        maxReceive,
		queues:            make(map[string]*Queue),
		logger:            logger,
	}, nil
}

// GetQueue returns the named queue, creating it on first access
func (m *Manager) GetQueue(name string) interfaces.QueueHandle {
	m.mu.Lock()
	defer m.mu.Unlock()

	if q, ok := m.queues[name]; ok {
		return q
	}

	q := &Queue{
		db:                m.db,
		name:              name,
		prefix:            m.prefix,
		visibilityTimeout: m.visibilityTimeout,
		maxReceive:        m.maxReceive,
		logger:            m.logger,
	}
	m.queues[name] = q

	m.logger.Debug().Str("queue", name).Msg("Queue created")
	return q
}

// Close closes the queue manager.
// The underlying database is owned by the storage manager, so there is
// nothing to release here.
func (m *Manager) Close() error {
	return nil
}
