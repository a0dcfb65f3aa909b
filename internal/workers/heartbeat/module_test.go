package heartbeat

import (
	"context"
	"testing"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/modules"
	badgerstorage "github.com/ternarybob/colligo/internal/storage/badger"
)

func newTestContext(t *testing.T) *modules.ExecutionContext {
	t.Helper()

	logger := arbor.NewLogger()
	storage, err := badgerstorage.NewManager(logger, &common.BadgerConfig{Path: t.TempDir()})
	if err != nil {
		t.Fatalf("Failed to open storage: %v", err)
	}
	t.Cleanup(func() { storage.Close() })

	return &modules.ExecutionContext{
		ModuleName: ModuleName,
		Storage:    storage,
	}
}

// TestFactory tests that the factory registers the expected handlers
func TestFactory(t *testing.T) {
	runtime, err := Factory()
	if err != nil {
		t.Fatalf("Factory failed: %v", err)
	}
	if runtime.ModuleName != ModuleName {
		t.Errorf("Expected module name %s, got %q", ModuleName, runtime.ModuleName)
	}

	for _, key := range []modules.HandlerKey{
		{Queue: "system", Job: "beat"},
		{Queue: "system", Job: "status"},
	} {
		if _, ok := runtime.Handlers.Lookup(key.Queue, key.Job); !ok {
			t.Errorf("Expected handler for %s", key)
		}
	}
}

// TestBeatAndStatus tests that beats are stored and counted
func TestBeatAndStatus(t *testing.T) {
	ec := newTestContext(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		result, err := beat(ctx, &modules.Request{
			Context: ec,
			Job:     modules.JobPayload{Name: "beat"},
		})
		if err != nil {
			t.Fatalf("beat failed: %v", err)
		}
		if result.Metrics["beats"] != 1 {
			t.Errorf("Expected beats=1, got %v", result.Metrics["beats"])
		}
	}

	result, err := status(ctx, &modules.Request{
		Context: ec,
		Job:     modules.JobPayload{Name: "status"},
	})
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if result.Metrics["events"] != 3 {
		t.Errorf("Expected events=3, got %v", result.Metrics["events"])
	}
	if _, ok := result.Metrics["goroutines"]; !ok {
		t.Error("Expected goroutines metric in status")
	}

	events, err := ec.Storage.EventStorage().ListEvents(ctx, ModuleName, 0)
	if err != nil {
		t.Fatalf("ListEvents failed: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("Expected 3 stored events, got %d", len(events))
	}
	for _, event := range events {
		if event.Kind != "heartbeat" {
			t.Errorf("Expected kind heartbeat, got %q", event.Kind)
		}
	}
}

// TestStatusWithoutStorage tests graceful behavior without a storage handle
func TestStatusWithoutStorage(t *testing.T) {
	ec := &modules.ExecutionContext{ModuleName: ModuleName}

	result, err := status(context.Background(), &modules.Request{Context: ec})
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if result.Metrics["events"] != 0 {
		t.Errorf("Expected events=0, got %v", result.Metrics["events"])
	}
}
