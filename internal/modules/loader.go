package modules

import (
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/models"
)

// Loader resolves manifest runtime references against a factory table
// and materializes module runtimes.
type Loader struct {
	factories *FactoryTable
	logger    arbor.ILogger
}

// NewLoader creates a new runtime loader
func NewLoader(factories *FactoryTable, logger arbor.ILogger) *Loader {
	return &Loader{
		factories: factories,
		logger:    logger,
	}
}

// Load materializes the runtime for one manifest.
//
// The manifest's `runtime` field names a registered factory. A missing
// factory, a factory error, a factory panic, or a runtime without a
// handler registry all fail the load for this module only; the caller
// proceeds without it.
//
// Jobs whose (queue, job) pair has no handler in the returned registry
// are logged at load time, but remain in the manifest: the authoritative
// check stays at dispatch time.
func (l *Loader) Load(manifest *models.ModuleManifest) (runtime *Runtime, err error) {
	if !manifest.HasRuntime() {
		return nil, fmt.Errorf("module %s declares no runtime", manifest.Name)
	}

	factory, ok := l.factories.Get(manifest.Runtime)
	if !ok {
		return nil, fmt.Errorf("runtime factory %q not registered for module %s", manifest.Runtime, manifest.Name)
	}

	defer func() {
		if r := recover(); r != nil {
			runtime = nil
			err = fmt.Errorf("runtime factory %q panicked: %v", manifest.Runtime, r)
		}
	}()

	runtime, err = factory()
	if err != nil {
		return nil, fmt.Errorf("runtime factory %q failed: %w", manifest.Runtime, err)
	}
	if runtime == nil || runtime.Handlers == nil {
		return nil, fmt.Errorf("runtime factory %q returned no handler registry", manifest.Runtime)
	}

	if runtime.ModuleName != manifest.Name {
		l.logger.Warn().
			Str("module", manifest.Name).
			Str("runtime_name", runtime.ModuleName).
			Msg("Runtime module name differs from manifest name")
	}

	for _, job := range manifest.Jobs {
		if _, ok := runtime.Handlers.Lookup(job.Queue, job.Name); !ok {
			l.logger.Warn().
				Str("module", manifest.Name).
				Str("queue", job.Queue).
				Str("job", job.Name).
				Msg("Declared job has no handler in runtime registry")
		}
	}

	l.logger.Info().
		Str("module", manifest.Name).
		Str("runtime", manifest.Runtime).
		Int("handlers", len(runtime.Handlers.Keys())).
		Msg("Module runtime loaded")

	return runtime, nil
}
