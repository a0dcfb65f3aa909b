package scheduler

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/models"
	"github.com/ternarybob/colligo/internal/modules"
)

// Dispatcher is the direct-invocation entry point the scheduler drives.
// Satisfied by the engine's dispatch facade.
type Dispatcher interface {
	Dispatch(ctx context.Context, module, queue, job string, data map[string]interface{}) (*modules.Result, error)
}

// jobEntry tracks one scheduled job's registration and last outcome
type jobEntry struct {
	module    string
	job       models.JobDefinition
	cronID    cron.EntryID
	lastRun   *time.Time
	lastError string
	isRunning bool
}

// Service runs cron-scheduled jobs through the dispatch facade.
// Overlapping runs of the same job are skipped, not queued.
type Service struct {
	dispatcher Dispatcher
	cron       *cron.Cron
	logger     arbor.ILogger
	jobs       map[string]*jobEntry
	jobMu      sync.Mutex
	running    bool
}

// NewService creates a new scheduler service
func NewService(dispatcher Dispatcher, logger arbor.ILogger) *Service {
	return &Service{
		dispatcher: dispatcher,
		cron:       cron.New(),
		logger:     logger,
		jobs:       make(map[string]*jobEntry),
	}
}

// RegisterManifests registers every scheduled job of the given manifests.
// Jobs of modules absent from the loaded set are skipped; a scheduled
// dispatch to them would only ever fail.
func (s *Service) RegisterManifests(manifests []models.ModuleManifest, loaded map[string]*modules.Runtime) error {
	for i := range manifests {
		manifest := &manifests[i]
		if _, ok := loaded[manifest.Name]; !ok {
			continue
		}
		for _, job := range manifest.Jobs {
			if !job.IsScheduled() {
				continue
			}
			if err := s.registerJob(manifest.Name, job); err != nil {
				s.logger.Error().Err(err).
					Str("module", manifest.Name).
					Str("job", job.Name).
					Msg("Failed to register scheduled job")
			}
		}
	}
	return nil
}

func (s *Service) registerJob(module string, job models.JobDefinition) error {
	s.jobMu.Lock()
	defer s.jobMu.Unlock()

	key := module + "/" + job.Name
	if _, exists := s.jobs[key]; exists {
		return fmt.Errorf("scheduled job %s already registered", key)
	}

	entry := &jobEntry{
		module: module,
		job:    job,
	}

	cronID, err := s.cron.AddFunc(job.Schedule, func() {
		s.runJob(key, entry)
	})
	if err != nil {
		return fmt.Errorf("invalid schedule %q for job %s: %w", job.Schedule, key, err)
	}
	entry.cronID = cronID
	s.jobs[key] = entry

	s.logger.Info().
		Str("module", module).
		Str("job", job.Name).
		Str("schedule", job.Schedule).
		Msg("Scheduled job registered")

	return nil
}

// runJob executes one scheduled dispatch
func (s *Service) runJob(key string, entry *jobEntry) {
	s.jobMu.Lock()
	if entry.isRunning {
		s.jobMu.Unlock()
		s.logger.Warn().Str("job", key).Msg("Previous run still in progress, skipping")
		return
	}
	entry.isRunning = true
	now := time.Now()
	entry.lastRun = &now
	s.jobMu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().
				Str("job", key).
				Str("panic", fmt.Sprintf("%v", r)).
				Str("stack", string(debug.Stack())).
				Msg("Scheduled job panicked")
			s.jobMu.Lock()
			entry.lastError = fmt.Sprintf("panic: %v", r)
			s.jobMu.Unlock()
		}
		s.jobMu.Lock()
		entry.isRunning = false
		s.jobMu.Unlock()
	}()

	s.logger.Debug().Str("job", key).Msg("Running scheduled job")

	_, err := s.dispatcher.Dispatch(context.Background(), entry.module, entry.job.Queue, entry.job.Name, nil)

	s.jobMu.Lock()
	if err != nil {
		entry.lastError = err.Error()
	} else {
		entry.lastError = ""
	}
	s.jobMu.Unlock()

	if err != nil {
		s.logger.Error().Err(err).Str("job", key).Msg("Scheduled job failed")
		return
	}
	s.logger.Debug().Str("job", key).Msg("Scheduled job completed")
}

// Start begins the scheduler
func (s *Service) Start() error {
	if s.running {
		return fmt.Errorf("scheduler already running")
	}
	s.cron.Start()
	s.running = true

	s.jobMu.Lock()
	count := len(s.jobs)
	s.jobMu.Unlock()

	s.logger.Info().Int("jobs", count).Msg("Scheduler started")
	return nil
}

// Stop stops the scheduler and waits for running jobs to complete
func (s *Service) Stop() error {
	if !s.running {
		return nil
	}
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.running = false

	s.logger.Info().Msg("Scheduler stopped")
	return nil
}
