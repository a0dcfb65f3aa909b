// Package feedwatch is a built-in module that ingests feed items from
// the bus and defers enrichment through the queue.
package feedwatch

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/ternarybob/colligo/internal/models"
	"github.com/ternarybob/colligo/internal/modules"
)

// FactoryName is the runtime name manifests reference
const FactoryName = "feedwatch"

// ModuleName is the module's canonical name
const ModuleName = "feedwatch"

// enrichQueue is the named queue ingest defers follow-up work onto
const enrichQueue = "feedwatch-enrich"

// Factory constructs the feedwatch module runtime
func Factory() (*modules.Runtime, error) {
	registry := modules.NewRegistry()
	registry.Register("ingest", "item", ingest)
	registry.Register("ingest", "drain", drain)

	return &modules.Runtime{
		ModuleName: ModuleName,
		Handlers:   registry,
	}, nil
}

// ingest persists one feed item arriving on the bus and enqueues it for
// enrichment. Bus-triggered.
func ingest(ctx context.Context, req *modules.Request) (*modules.Result, error) {
	kind := "item"
	if k, ok := req.Job.Data["kind"].(string); ok && k != "" {
		kind = k
	}

	event := &models.FeedEvent{
		Module:  req.Context.ModuleName,
		Kind:    kind,
		Payload: req.Job.Data,
	}

	if req.Context.Storage != nil {
		if err := req.Context.Storage.EventStorage().SaveEvent(ctx, event); err != nil {
			return nil, fmt.Errorf("failed to store feed item: %w", err)
		}
	}

	if req.Context.GetQueue != nil {
		payload, err := json.Marshal(map[string]string{"event_id": event.ID})
		if err != nil {
			return nil, err
		}
		msg := &models.QueueMessage{
			Module:  req.Context.ModuleName,
			Job:     "drain",
			Payload: payload,
		}
		if err := req.Context.GetQueue(enrichQueue).Enqueue(ctx, msg); err != nil {
			return nil, fmt.Errorf("failed to enqueue enrichment: %w", err)
		}
	}

	return &modules.Result{
		Metrics: map[string]interface{}{"ingested": 1},
	}, nil
}

// drain processes deferred enrichment work from the queue.
// Cron-scheduled; each run consumes at most one batch.
func drain(ctx context.Context, req *modules.Request) (*modules.Result, error) {
	if req.Context.GetQueue == nil {
		return &modules.Result{}, nil
	}

	batchSize := 10
	if req.Context.FetchSettings != nil {
		if settings, err := req.Context.FetchSettings(ctx); err == nil {
			if v, ok := settings["batch_size"]; ok {
				if n, err := strconv.Atoi(v); err == nil && n >= 1 {
					batchSize = n
				}
			}
		}
	}

	queue := req.Context.GetQueue(enrichQueue)
	processed := 0
	for processed < batchSize {
		msg, deleteMsg, err := queue.Receive(ctx)
		if err != nil {
			if err == models.ErrNoMessage {
				break
			}
			return nil, fmt.Errorf("failed to receive from queue: %w", err)
		}

		// Enrichment is a placeholder: mark the event as drained by
		// republishing its ID for downstream consumers. The message is
		// deleted only after the announcement lands, so a failed publish
		// leaves it for redelivery.
		if req.Context.Bus != nil {
			if err := req.Context.Bus.Publish(ctx, "feedwatch.drained", msg.Payload); err != nil {
				return nil, fmt.Errorf("failed to announce drained item: %w", err)
			}
		}

		if err := deleteMsg(); err != nil {
			return nil, fmt.Errorf("failed to delete queue message: %w", err)
		}
		processed++
	}

	return &modules.Result{
		Metrics: map[string]interface{}{"drained": processed},
	}, nil
}
