package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// EventStorage implements the EventStorage interface for Badger.
// It is the persistent sink for normalized feed events produced by modules.
type EventStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewEventStorage creates a new EventStorage instance
func NewEventStorage(db *BadgerDB, logger arbor.ILogger) interfaces.EventStorage {
	return &EventStorage{
		db:     db,
		logger: logger,
	}
}

// SaveEvent persists a feed event, assigning an ID if none is set
func (s *EventStorage) SaveEvent(ctx context.Context, event *models.FeedEvent) error {
	if event.Module == "" {
		return fmt.Errorf("feed event module is required")
	}
	if event.ID == "" {
		event.ID = common.NewEventID()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}
	event.StoredAt = time.Now()

	if err := s.db.Store().Upsert(event.ID, event); err != nil {
		return fmt.Errorf("failed to save feed event: %w", err)
	}

	return nil
}

// GetEvent retrieves a feed event by ID
func (s *EventStorage) GetEvent(ctx context.Context, id string) (*models.FeedEvent, error) {
	var event models.FeedEvent
	err := s.db.Store().Get(id, &event)
	if err == badgerhold.ErrNotFound {
		return nil, fmt.Errorf("feed event not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get feed event: %w", err)
	}
	return &event, nil
}

// ListEvents returns events for a module, newest first, up to limit
func (s *EventStorage) ListEvents(ctx context.Context, module string, limit int) ([]*models.FeedEvent, error) {
	var events []*models.FeedEvent
	query := badgerhold.Where("Module").Eq(module).Index("Module").SortBy("OccurredAt").Reverse()
	if limit > 0 {
		query = query.Limit(limit)
	}

	if err := s.db.Store().Find(&events, query); err != nil {
		return nil, fmt.Errorf("failed to list feed events: %w", err)
	}

	return events, nil
}

// CountEvents returns the number of stored events for a module
func (s *EventStorage) CountEvents(ctx context.Context, module string) (int, error) {
	count, err := s.db.Store().Count(&models.FeedEvent{}, badgerhold.Where("Module").Eq(module).Index("Module"))
	if err != nil {
		return 0, fmt.Errorf("failed to count feed events: %w", err)
	}
	return int(count), nil
}

// DeleteEvents removes all stored events for a module
func (s *EventStorage) DeleteEvents(ctx context.Context, module string) error {
	if err := s.db.Store().DeleteMatching(&models.FeedEvent{}, badgerhold.Where("Module").Eq(module).Index("Module")); err != nil {
		return fmt.Errorf("failed to delete feed events: %w", err)
	}
	return nil
}
