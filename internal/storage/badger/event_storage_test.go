package badger

import (
	"context"
	"testing"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/models"
)

// TestEventStorageSaveAndGet tests event persistence
func TestEventStorageSaveAndGet(t *testing.T) {
	store := NewEventStorage(newTestDB(t), arbor.NewLogger())
	ctx := context.Background()

	event := &models.FeedEvent{
		Module: "feedwatch",
		Kind:   "item",
		Payload: map[string]interface{}{
			"url": "https://example.com/feed",
		},
	}
	if err := store.SaveEvent(ctx, event); err != nil {
		t.Fatalf("SaveEvent failed: %v", err)
	}
	if event.ID == "" {
		t.Error("Expected save to assign an event ID")
	}
	if event.OccurredAt.IsZero() || event.StoredAt.IsZero() {
		t.Error("Expected save to stamp timestamps")
	}

	got, err := store.GetEvent(ctx, event.ID)
	if err != nil {
		t.Fatalf("GetEvent failed: %v", err)
	}
	if got.Module != "feedwatch" || got.Kind != "item" {
		t.Errorf("Unexpected event: %+v", got)
	}
	if got.Payload["url"] != "https://example.com/feed" {
		t.Errorf("Expected payload url, got %v", got.Payload["url"])
	}
}

// TestEventStorageRequiresModule tests validation of the module field
func TestEventStorageRequiresModule(t *testing.T) {
	store := NewEventStorage(newTestDB(t), arbor.NewLogger())

	err := store.SaveEvent(context.Background(), &models.FeedEvent{Kind: "item"})
	if err == nil {
		t.Fatal("Expected error for event without a module")
	}
}

// TestEventStorageGetMissing tests retrieval of an unknown ID
func TestEventStorageGetMissing(t *testing.T) {
	store := NewEventStorage(newTestDB(t), arbor.NewLogger())

	if _, err := store.GetEvent(context.Background(), "evt_missing"); err == nil {
		t.Fatal("Expected error for unknown event ID")
	}
}

// TestEventStorageListNewestFirst tests per-module listing order and limit
func TestEventStorageListNewestFirst(t *testing.T) {
	store := NewEventStorage(newTestDB(t), arbor.NewLogger())
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		event := &models.FeedEvent{
			Module:     "feedwatch",
			Kind:       "item",
			OccurredAt: base.Add(time.Duration(i) * time.Minute),
			Payload:    map[string]interface{}{"seq": i},
		}
		if err := store.SaveEvent(ctx, event); err != nil {
			t.Fatalf("SaveEvent %d failed: %v", i, err)
		}
	}
	// Event from a different module must not appear
	if err := store.SaveEvent(ctx, &models.FeedEvent{Module: "heartbeat", Kind: "beat"}); err != nil {
		t.Fatalf("SaveEvent failed: %v", err)
	}

	events, err := store.ListEvents(ctx, "feedwatch", 0)
	if err != nil {
		t.Fatalf("ListEvents failed: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("Expected 3 events, got %d", len(events))
	}
	for i := 1; i < len(events); i++ {
		if events[i-1].OccurredAt.Before(events[i].OccurredAt) {
			t.Errorf("Events not newest first at index %d", i)
		}
	}

	limited, err := store.ListEvents(ctx, "feedwatch", 2)
	if err != nil {
		t.Fatalf("ListEvents with limit failed: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("Expected 2 events with limit, got %d", len(limited))
	}
}

// TestEventStorageCountAndDelete tests per-module count and bulk delete
func TestEventStorageCountAndDelete(t *testing.T) {
	store := NewEventStorage(newTestDB(t), arbor.NewLogger())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := store.SaveEvent(ctx, &models.FeedEvent{Module: "feedwatch", Kind: "item"}); err != nil {
			t.Fatalf("SaveEvent failed: %v", err)
		}
	}
	if err := store.SaveEvent(ctx, &models.FeedEvent{Module: "heartbeat", Kind: "beat"}); err != nil {
		t.Fatalf("SaveEvent failed: %v", err)
	}

	count, err := store.CountEvents(ctx, "feedwatch")
	if err != nil {
		t.Fatalf("CountEvents failed: %v", err)
	}
	if count != 2 {
		t.Errorf("Expected count 2, got %d", count)
	}

	if err := store.DeleteEvents(ctx, "feedwatch"); err != nil {
		t.Fatalf("DeleteEvents failed: %v", err)
	}

	count, err = store.CountEvents(ctx, "feedwatch")
	if err != nil {
		t.Fatalf("CountEvents failed: %v", err)
	}
	if count != 0 {
		t.Errorf("Expected count 0 after delete, got %d", count)
	}

	// Other module untouched
	count, err = store.CountEvents(ctx, "heartbeat")
	if err != nil {
		t.Fatalf("CountEvents failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected heartbeat count 1, got %d", count)
	}
}
