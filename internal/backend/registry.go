package backend

import (
	"fmt"
	"slices"
	"sync"
)

// Factory opens a Backend from its parameters.
type Factory func(Params) (Backend, error)

// Registry maps backend variant names to factories.
// It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory under name.
// Panics if f is nil or name is already registered.
func (r *Registry) Register(name string, f Factory) {
	if f == nil {
		panic("backend: Register called with nil factory for " + name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[name]; exists {
		panic("backend: Register called twice for " + name)
	}
	r.factories[name] = f
}

// Open resolves name and opens the backend with p.
func (r *Registry) Open(name string, p Params) (Backend, error) {
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, name)
	}
	b, err := f(p)
	if err != nil {
		return nil, fmt.Errorf("opening %s backend: %w", name, err)
	}
	return b, nil
}

// Names returns the registered variant names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
