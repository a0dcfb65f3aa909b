// Package modules implements the plugin layer of the platform: manifest
// discovery, runtime loading through a table of named factories, the
// typed handler registry, and the per-invocation execution context.
package modules

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// HandlerKey identifies one handler within a module's registry by its
// queue name and job name.
type HandlerKey struct {
	Queue string
	Job   string
}

func (k HandlerKey) String() string {
	return k.Queue + "/" + k.Job
}

// JobPayload is the job portion of a handler request
type JobPayload struct {
	Name string
	Data map[string]interface{}
}

// Request is the argument bundle passed to every handler invocation
type Request struct {
	Context *ExecutionContext
	Job     JobPayload
}

// Result is the optional payload a handler returns on success
type Result struct {
	Metrics map[string]interface{} `json:"metrics,omitempty"`
}

// HandlerFunc is the executable unit of a job
type HandlerFunc func(ctx context.Context, req *Request) (*Result, error)

// Registry is a module's typed mapping from (queue, job) to handler
type Registry struct {
	handlers map[HandlerKey]HandlerFunc
}

// NewRegistry creates an empty handler registry
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[HandlerKey]HandlerFunc),
	}
}

// Register adds a handler under (queue, job).
// Registering the same pair twice is a programming error.
func (r *Registry) Register(queue, job string, fn HandlerFunc) {
	key := HandlerKey{Queue: queue, Job: job}
	if _, exists := r.handlers[key]; exists {
		panic(fmt.Sprintf("handler for %s already registered", key))
	}
	r.handlers[key] = fn
}

// Lookup resolves a handler by (queue, job)
func (r *Registry) Lookup(queue, job string) (HandlerFunc, bool) {
	fn, ok := r.handlers[HandlerKey{Queue: queue, Job: job}]
	return fn, ok
}

// Keys returns all registered handler keys, sorted
func (r *Registry) Keys() []HandlerKey {
	keys := make([]HandlerKey, 0, len(r.handlers))
	for key := range r.handlers {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Queue != keys[j].Queue {
			return keys[i].Queue < keys[j].Queue
		}
		return keys[i].Job < keys[j].Job
	})
	return keys
}

// Runtime is a loaded module's executable surface: its declared name and
// its handler registry.
type Runtime struct {
	ModuleName string
	Handlers   *Registry
}

// Factory constructs a module runtime.
// Manifests name their factory in the `runtime` field; the loader
// resolves it through a FactoryTable.
type Factory func() (*Runtime, error)

// FactoryTable maps factory names to module runtime constructors.
// It replaces on-disk dynamic code loading with a build-time lookup
// table: shipping a module means registering its factory here and
// dropping its manifest under the modules root.
type FactoryTable struct {
	factories map[string]Factory
	mu        sync.RWMutex
}

// NewFactoryTable creates an empty factory table
func NewFactoryTable() *FactoryTable {
	return &FactoryTable{
		factories: make(map[string]Factory),
	}
}

// Register adds a named factory.
// Registering the same name twice is a programming error.
func (t *FactoryTable) Register(name string, factory Factory) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.factories[name]; exists {
		panic(fmt.Sprintf("module factory with name '%s' already registered", name))
	}
	t.factories[name] = factory
}

// Get resolves a factory by name
func (t *FactoryTable) Get(name string) (Factory, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	factory, ok := t.factories[name]
	return factory, ok
}
