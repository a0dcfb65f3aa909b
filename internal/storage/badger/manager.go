package badger

import (
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/interfaces"
)

// Manager implements the StorageManager interface for Badger
type Manager struct {
	db           *BadgerDB
	kvStorage    interfaces.KeyValueStorage
	eventStorage interfaces.EventStorage
	logger       arbor.ILogger
}

// NewManager creates a new Badger storage manager
func NewManager(logger arbor.ILogger, config *common.BadgerConfig) (interfaces.StorageManager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize badger: %w", err)
	}

	return &Manager{
		db:           db,
		kvStorage:    NewKVStorage(db, logger),
		eventStorage: NewEventStorage(db, logger),
		logger:       logger,
	}, nil
}

// KeyValueStorage returns the key/value storage service
func (m *Manager) KeyValueStorage() interfaces.KeyValueStorage {
	return m.kvStorage
}

// EventStorage returns the feed event storage service
func (m *Manager) EventStorage() interfaces.EventStorage {
	return m.eventStorage
}

// DB returns the underlying database connection
func (m *Manager) DB() *BadgerDB {
	return m.db
}

// Close closes the storage manager
func (m *Manager) Close() error {
	m.logger.Debug().Msg("Closing badger storage manager")
	return m.db.Close()
}
