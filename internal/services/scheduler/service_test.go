package scheduler

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/models"
	"github.com/ternarybob/colligo/internal/modules"
)

// fakeDispatcher records dispatches and can fail or block on demand
type fakeDispatcher struct {
	mu      sync.Mutex
	calls   []string
	failAll bool
	block   chan struct{} // When set, dispatch waits on it
}

func (d *fakeDispatcher) Dispatch(ctx context.Context, module, queue, job string, data map[string]interface{}) (*modules.Result, error) {
	if d.block != nil {
		<-d.block
	}
	d.mu.Lock()
	d.calls = append(d.calls, module+"/"+queue+"/"+job)
	d.mu.Unlock()
	if d.failAll {
		return nil, fmt.Errorf("dispatch refused")
	}
	return &modules.Result{}, nil
}

func (d *fakeDispatcher) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.calls)
}

// TestRegisterManifests tests that only scheduled jobs of loaded modules
// are registered
func TestRegisterManifests(t *testing.T) {
	dispatcher := &fakeDispatcher{}
	svc := NewService(dispatcher, arbor.NewLogger())

	manifests := []models.ModuleManifest{
		{
			Name:    "loaded",
			Runtime: "loaded",
			Jobs: []models.JobDefinition{
				{Name: "tick", Queue: "work", Schedule: "* * * * *"},
				{Name: "triggered", Queue: "work", TriggeredBy: "some.subject"},
			},
		},
		{
			Name:    "unloaded",
			Runtime: "unloaded",
			Jobs: []models.JobDefinition{
				{Name: "tick", Queue: "work", Schedule: "* * * * *"},
			},
		},
	}
	loaded := map[string]*modules.Runtime{
		"loaded": {ModuleName: "loaded", Handlers: modules.NewRegistry()},
	}

	if err := svc.RegisterManifests(manifests, loaded); err != nil {
		t.Fatalf("RegisterManifests failed: %v", err)
	}

	if len(svc.jobs) != 1 {
		t.Fatalf("Expected 1 registered job, got %d", len(svc.jobs))
	}
	if _, ok := svc.jobs["loaded/tick"]; !ok {
		t.Error("Expected loaded/tick to be registered")
	}
}

// TestRegisterJobDuplicate tests that a job can only be registered once
func TestRegisterJobDuplicate(t *testing.T) {
	svc := NewService(&fakeDispatcher{}, arbor.NewLogger())
	job := models.JobDefinition{Name: "tick", Queue: "work", Schedule: "* * * * *"}

	if err := svc.registerJob("mod", job); err != nil {
		t.Fatalf("First registration failed: %v", err)
	}
	if err := svc.registerJob("mod", job); err == nil {
		t.Error("Expected error on duplicate registration")
	}
}

// TestRegisterJobInvalidSchedule tests rejection of bad cron expressions
func TestRegisterJobInvalidSchedule(t *testing.T) {
	svc := NewService(&fakeDispatcher{}, arbor.NewLogger())
	job := models.JobDefinition{Name: "tick", Queue: "work", Schedule: "whenever"}

	if err := svc.registerJob("mod", job); err == nil {
		t.Error("Expected error for invalid schedule")
	}
	if len(svc.jobs) != 0 {
		t.Errorf("Expected no jobs registered, got %d", len(svc.jobs))
	}
}

// TestRunJob tests dispatch and outcome recording
func TestRunJob(t *testing.T) {
	t.Run("successful run", func(t *testing.T) {
		dispatcher := &fakeDispatcher{}
		svc := NewService(dispatcher, arbor.NewLogger())
		entry := &jobEntry{module: "mod", job: models.JobDefinition{Name: "tick", Queue: "work"}}

		svc.runJob("mod/tick", entry)

		if dispatcher.callCount() != 1 {
			t.Fatalf("Expected 1 dispatch, got %d", dispatcher.callCount())
		}
		if dispatcher.calls[0] != "mod/work/tick" {
			t.Errorf("Unexpected dispatch target: %s", dispatcher.calls[0])
		}
		if entry.lastRun == nil {
			t.Error("Expected last run timestamp")
		}
		if entry.lastError != "" {
			t.Errorf("Expected no error recorded, got %q", entry.lastError)
		}
	})

	t.Run("failed run records error", func(t *testing.T) {
		dispatcher := &fakeDispatcher{failAll: true}
		svc := NewService(dispatcher, arbor.NewLogger())
		entry := &jobEntry{module: "mod", job: models.JobDefinition{Name: "tick", Queue: "work"}}

		svc.runJob("mod/tick", entry)

		if entry.lastError != "dispatch refused" {
			t.Errorf("Expected recorded error, got %q", entry.lastError)
		}

		// A later successful run clears it
		dispatcher.failAll = false
		svc.runJob("mod/tick", entry)
		if entry.lastError != "" {
			t.Errorf("Expected error cleared, got %q", entry.lastError)
		}
	})
}

// panicDispatcher blows up on every dispatch
type panicDispatcher struct{}

func (d *panicDispatcher) Dispatch(ctx context.Context, module, queue, job string, data map[string]interface{}) (*modules.Result, error) {
	panic("handler exploded")
}

// TestRunJobRecoversPanic tests that a panicking dispatch is contained
// and recorded instead of killing the cron goroutine
func TestRunJobRecoversPanic(t *testing.T) {
	svc := NewService(&panicDispatcher{}, arbor.NewLogger())
	entry := &jobEntry{module: "mod", job: models.JobDefinition{Name: "tick", Queue: "work"}}

	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("Panic escaped runJob: %v", r)
		}
	}()
	svc.runJob("mod/tick", entry)

	if entry.lastError != "panic: handler exploded" {
		t.Errorf("Expected recorded panic, got %q", entry.lastError)
	}
	if entry.isRunning {
		t.Error("Expected isRunning cleared after panic")
	}

	// The entry is usable again on the next tick
	svc.runJob("mod/tick", entry)
}

// TestRunJobSkipsOverlap tests that an in-progress run blocks a second one
func TestRunJobSkipsOverlap(t *testing.T) {
	block := make(chan struct{})
	dispatcher := &fakeDispatcher{block: block}
	svc := NewService(dispatcher, arbor.NewLogger())
	entry := &jobEntry{module: "mod", job: models.JobDefinition{Name: "tick", Queue: "work"}}

	done := make(chan struct{})
	go func() {
		svc.runJob("mod/tick", entry)
		close(done)
	}()

	// Wait for the first run to claim the entry
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		svc.jobMu.Lock()
		running := entry.isRunning
		svc.jobMu.Unlock()
		if running {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	// Second run must be skipped, not queued
	svc.runJob("mod/tick", entry)

	close(block)
	<-done

	if dispatcher.callCount() != 1 {
		t.Errorf("Expected exactly 1 dispatch, got %d", dispatcher.callCount())
	}
}

// TestStartStop tests lifecycle transitions
func TestStartStop(t *testing.T) {
	svc := NewService(&fakeDispatcher{}, arbor.NewLogger())

	if err := svc.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := svc.Start(); err == nil {
		t.Error("Expected error starting twice")
	}
	if err := svc.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	// Stop is idempotent
	if err := svc.Stop(); err != nil {
		t.Errorf("Second stop failed: %v", err)
	}
}
