// Package app wires storage, bus, queue, settings, module factories,
// the engine, and the scheduler into one running application.
package app

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/engine"
	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/modules"
	"github.com/ternarybob/colligo/internal/queue"
	"github.com/ternarybob/colligo/internal/services/events"
	"github.com/ternarybob/colligo/internal/services/scheduler"
	"github.com/ternarybob/colligo/internal/services/settings"
	badgerstorage "github.com/ternarybob/colligo/internal/storage/badger"
	"github.com/ternarybob/colligo/internal/workers/feedwatch"
	"github.com/ternarybob/colligo/internal/workers/heartbeat"
)

// App holds all application services
type App struct {
	Config          *common.Config
	Logger          arbor.ILogger
	StorageManager  interfaces.StorageManager
	Bus             *events.Bus
	QueueManager    interfaces.QueueService
	SettingsService interfaces.SettingsService
	Factories       *modules.FactoryTable
	Engine          *engine.Engine
	Scheduler       *scheduler.Service
}

// builtinFactories registers the module runtimes compiled into this
// binary. External deployments extend this table before engine start.
func builtinFactories() *modules.FactoryTable {
	factories := modules.NewFactoryTable()
	factories.Register(heartbeat.FactoryName, heartbeat.Factory)
	factories.Register(feedwatch.FactoryName, feedwatch.Factory)
	return factories
}

// New creates and wires the application
func New(config *common.Config, logger arbor.ILogger) (*App, error) {
	storageManager, err := badgerstorage.NewManager(logger, &config.Storage.Badger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	bus := events.NewBus(config.Bus.BufferSize, logger)

	db := storageManager.(*badgerstorage.Manager).DB()
	queueManager, err := queue.NewManager(db.Badger(), &config.Queue, logger)
	if err != nil {
		storageManager.Close()
		return nil, fmt.Errorf("failed to initialize queue: %w", err)
	}

	settingsService := settings.NewService(storageManager.KeyValueStorage(), logger)
	if err := settingsService.LoadFromFiles(context.Background(), config.Modules.SettingsDir); err != nil {
		logger.Warn().Err(err).Msg("Failed to seed settings from files")
	}

	factories := builtinFactories()

	eng, err := engine.New(engine.Options{
		Root:      config.Modules.Root,
		Factories: factories,
		Bus:       bus,
		Storage:   storageManager,
		GetQueue:  queueManager.GetQueue,
		Settings:  settingsService.ForModule,
		Logger:    logger,
	})
	if err != nil {
		queueManager.Close()
		storageManager.Close()
		return nil, fmt.Errorf("failed to start engine: %w", err)
	}

	sched := scheduler.NewService(eng, logger)
	if err := sched.RegisterManifests(eng.Manifests(), eng.Modules()); err != nil {
		logger.Warn().Err(err).Msg("Failed to register scheduled jobs")
	}

	return &App{
		Config:          config,
		Logger:          logger,
		StorageManager:  storageManager,
		Bus:             bus,
		QueueManager:    queueManager,
		SettingsService: settingsService,
		Factories:       factories,
		Engine:          eng,
		Scheduler:       sched,
	}, nil
}

// Start begins background services
func (a *App) Start() error {
	if a.Config.Scheduler.Enabled {
		if err := a.Scheduler.Start(); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
	} else {
		a.Logger.Info().Msg("Scheduler disabled by configuration")
	}

	a.Logger.Info().
		Int("modules", len(a.Engine.Modules())).
		Int("subscriptions", len(a.Engine.Health())).
		Msg("Application started")

	return nil
}

// Stop shuts down all services in reverse dependency order
func (a *App) Stop() error {
	a.Logger.Info().Msg("Shutting down application")

	if err := a.Scheduler.Stop(); err != nil {
		a.Logger.Warn().Err(err).Msg("Failed to stop scheduler")
	}
	if err := a.Engine.Close(); err != nil {
		a.Logger.Warn().Err(err).Msg("Failed to stop engine")
	}
	if err := a.Bus.Close(); err != nil {
		a.Logger.Warn().Err(err).Msg("Failed to close bus")
	}
	if err := a.QueueManager.Close(); err != nil {
		a.Logger.Warn().Err(err).Msg("Failed to close queue manager")
	}
	if err := a.StorageManager.Close(); err != nil {
		a.Logger.Warn().Err(err).Msg("Failed to close storage")
	}

	a.Logger.Info().Msg("Application stopped")
	return nil
}
