// Package engine composes discovery, runtime loading, trigger
// subscriptions, and the dispatch facade into one running system.
package engine

import (
	"context"
	"errors"
	"sync"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
	"github.com/ternarybob/colligo/internal/modules"
)

// Options are the collaborator handles and settings for engine construction
type Options struct {
	Root      string                // Modules root directory scanned for manifests
	Factories *modules.FactoryTable // Named runtime constructors
	Bus       interfaces.MessageBus // Publish/subscribe collaborator
	Storage   interfaces.StorageManager
	GetQueue  func(name string) interfaces.QueueHandle
	Settings  func(module string) interfaces.SettingsFetcher
	Logger    arbor.ILogger
}

// Engine is the orchestration driver.
//
// Construction discovers manifests, loads each module's runtime, and
// opens one bus subscription per triggered job of every loaded module.
// The loaded-module table is written once here and only read afterward.
type Engine struct {
	manifests []models.ModuleManifest
	loaded    map[string]*modules.Runtime
	contexts  *modules.ContextFactory
	bus       interfaces.MessageBus
	logger    arbor.ILogger

	ctx    context.Context
	cancel context.CancelFunc

	subscriptions []*subscription
	results       chan subscriptionResult
	health        map[string]*SubscriptionHealth
	healthMu      sync.RWMutex
	wg            sync.WaitGroup
}

// New builds and starts the engine
func New(opts Options) (*Engine, error) {
	if opts.Bus == nil {
		return nil, errors.New("message bus is required")
	}
	if opts.Factories == nil {
		return nil, errors.New("factory table is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = common.GetLogger()
	}

	manifests, err := modules.DiscoverManifests(opts.Root, logger)
	if err != nil {
		return nil, err
	}

	loader := modules.NewLoader(opts.Factories, logger)
	loaded := make(map[string]*modules.Runtime, len(manifests))
	for i := range manifests {
		manifest := &manifests[i]
		if !manifest.HasRuntime() {
			logger.Debug().Str("module", manifest.Name).Msg("Module declares no runtime, not dispatchable")
			continue
		}

		runtime, err := loader.Load(manifest)
		if err != nil {
			logger.Error().Err(err).Str("module", manifest.Name).Msg("Failed to load module runtime")
			continue
		}
		loaded[manifest.Name] = runtime
	}

	ctx, cancel := context.WithCancel(context.Background())

	e := &Engine{
		manifests: manifests,
		loaded:    loaded,
		contexts: modules.NewContextFactory(modules.Collaborators{
			Storage:  opts.Storage,
			Bus:      opts.Bus,
			GetQueue: opts.GetQueue,
			Settings: opts.Settings,
		}),
		bus:     opts.Bus,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
		results: make(chan subscriptionResult, 16),
		health:  make(map[string]*SubscriptionHealth),
	}

	// Wire subscriptions after the loaded-module table is complete, in
	// manifest order, so subscription creation order is deterministic.
	for i := range manifests {
		manifest := &manifests[i]
		runtime, ok := loaded[manifest.Name]
		if !ok {
			continue
		}
		for _, job := range manifest.Jobs {
			if !job.IsTriggered() {
				continue
			}
			if err := e.subscribe(manifest.Name, job, runtime); err != nil {
				logger.Error().Err(err).
					Str("module", manifest.Name).
					Str("job", job.Name).
					Str("subject", job.TriggeredBy).
					Msg("Failed to open trigger subscription")
			}
		}
	}

	common.SafeGoWithContext(ctx, logger, "engine:results", e.collectResults)

	logger.Info().
		Int("manifests", len(manifests)).
		Int("loaded", len(loaded)).
		Int("subscriptions", len(e.subscriptions)).
		Msg("Engine started")

	return e, nil
}

// Manifests returns the discovered manifests, sorted by module name
func (e *Engine) Manifests() []models.ModuleManifest {
	out := make([]models.ModuleManifest, len(e.manifests))
	copy(out, e.manifests)
	return out
}

// Modules returns the loaded-module table.
// The returned map is a copy; the table itself is immutable after New.
func (e *Engine) Modules() map[string]*modules.Runtime {
	out := make(map[string]*modules.Runtime, len(e.loaded))
	for name, runtime := range e.loaded {
		out[name] = runtime
	}
	return out
}

// Close stops all subscriptions and waits for their loops to exit
func (e *Engine) Close() error {
	e.cancel()
	for _, sub := range e.subscriptions {
		sub.unsubscribe()
	}
	e.wg.Wait()

	e.logger.Info().Msg("Engine stopped")
	return nil
}
