// Package heartbeat is a built-in module that records liveness events.
// It exists so a fresh deployment has something producing data, and it
// doubles as the reference module for writing new ones.
package heartbeat

import (
	"context"
	"time"

	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/models"
	"github.com/ternarybob/colligo/internal/modules"
)

// FactoryName is the runtime name manifests reference
const FactoryName = "heartbeat"

// ModuleName is the module's canonical name
const ModuleName = "heartbeat"

// Factory constructs the heartbeat module runtime
func Factory() (*modules.Runtime, error) {
	registry := modules.NewRegistry()
	registry.Register("system", "beat", beat)
	registry.Register("system", "status", status)

	return &modules.Runtime{
		ModuleName: ModuleName,
		Handlers:   registry,
	}, nil
}

// beat stores one liveness event. Typically cron-scheduled.
func beat(ctx context.Context, req *modules.Request) (*modules.Result, error) {
	event := &models.FeedEvent{
		Module: req.Context.ModuleName,
		Kind:   "heartbeat",
		Payload: map[string]interface{}{
			"at": time.Now().Format(time.RFC3339),
		},
	}

	if req.Context.Storage != nil {
		if err := req.Context.Storage.EventStorage().SaveEvent(ctx, event); err != nil {
			return nil, err
		}
	}

	return &modules.Result{
		Metrics: map[string]interface{}{"beats": 1},
	}, nil
}

// status reports stored heartbeat count and background goroutine usage.
// Dispatch-only.
func status(ctx context.Context, req *modules.Request) (*modules.Result, error) {
	count := 0
	if req.Context.Storage != nil {
		var err error
		count, err = req.Context.Storage.EventStorage().CountEvents(ctx, req.Context.ModuleName)
		if err != nil {
			return nil, err
		}
	}

	return &modules.Result{
		Metrics: map[string]interface{}{
			"events":     count,
			"goroutines": common.GetGoroutineCount(),
		},
	}, nil
}
