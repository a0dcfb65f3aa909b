package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/ternarybob/colligo/internal/modules"
)

var (
	// ErrModuleNotLoaded is returned when dispatching to a module absent
	// from the loaded-module table
	ErrModuleNotLoaded = errors.New("module not loaded")

	// ErrNoHandler is returned when a (queue, job) pair resolves to no
	// handler in the module's registry
	ErrNoHandler = errors.New("no handler registered")
)

// Dispatch invokes one handler directly, bypassing the bus.
//
// This is the synchronous administrative path: unlike the trigger
// subscriber, it does not swallow handler errors. The handler's result
// or error propagates unmodified to the caller, who is expected to
// handle it.
func (e *Engine) Dispatch(ctx context.Context, module, queue, job string, data map[string]interface{}) (*modules.Result, error) {
	runtime, ok := e.loaded[module]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrModuleNotLoaded, module)
	}

	handler, ok := runtime.Handlers.Lookup(queue, job)
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s in module %s", ErrNoHandler, queue, job, module)
	}

	e.logger.Debug().
		Str("module", module).
		Str("queue", queue).
		Str("job", job).
		Msg("Dispatching job")

	req := &modules.Request{
		Context: e.contexts.Make(module),
		Job: modules.JobPayload{
			Name: job,
			Data: data,
		},
	}

	return handler(ctx, req)
}
