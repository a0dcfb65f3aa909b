package modules

import (
	"github.com/ternarybob/colligo/internal/interfaces"
)

// ExecutionContext is the per-invocation capability bundle handed to a
// handler. It is freshly allocated for every call and never shared, and
// its settings fetcher is pre-scoped to the owning module: a handler
// cannot read or influence another module's identity through it.
type ExecutionContext struct {
	ModuleName    string
	Storage       interfaces.StorageManager
	Bus           interfaces.MessageBus
	GetQueue      func(name string) interfaces.QueueHandle
	FetchSettings interfaces.SettingsFetcher
}

// Collaborators bundles the external handles every execution context
// closes over: storage, bus, queue access, and settings.
type Collaborators struct {
	Storage  interfaces.StorageManager
	Bus      interfaces.MessageBus
	GetQueue func(name string) interfaces.QueueHandle
	Settings func(module string) interfaces.SettingsFetcher
}

// ContextFactory builds execution contexts from a fixed collaborator set.
// It holds no state of its own and performs no I/O; two contexts built
// for the same module name are field-for-field equivalent.
type ContextFactory struct {
	collaborators Collaborators
}

// NewContextFactory creates a context factory over the given collaborators
func NewContextFactory(collaborators Collaborators) *ContextFactory {
	return &ContextFactory{
		collaborators: collaborators,
	}
}

// Make builds a fresh execution context for the named module
func (f *ContextFactory) Make(moduleName string) *ExecutionContext {
	ec := &ExecutionContext{
		ModuleName: moduleName,
		Storage:    f.collaborators.Storage,
		Bus:        f.collaborators.Bus,
		GetQueue:   f.collaborators.GetQueue,
	}
	if f.collaborators.Settings != nil {
		ec.FetchSettings = f.collaborators.Settings(moduleName)
	}
	return ec
}
