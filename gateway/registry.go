package gateway

import "sync"

// Registry maps a backend kind to its adapter factory. Adapter packages
// register themselves at init time, so an unknown kind fails at resolution
// instead of at first use.
type Registry struct {
	factories map[string]Factory
	mu        sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// Register adds a backend factory to the registry.
func (r *Registry) Register(kind string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[kind] = factory
}

// Resolve retrieves a backend factory by kind.
func (r *Registry) Resolve(kind string) (Factory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, exists := r.factories[kind]
	if !exists {
		return nil, configErrorf(kind, "unknown payment backend")
	}
	return factory, nil
}

// Kinds returns all registered backend kinds.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]string, 0, len(r.factories))
	for kind := range r.factories {
		kinds = append(kinds, kind)
	}
	return kinds
}

// DefaultRegistry is the process-wide registry adapter packages register
// into from their init functions.
var DefaultRegistry = NewRegistry()

// Register registers a backend with the default registry.
func Register(kind string, factory Factory) {
	DefaultRegistry.Register(kind, factory)
}

// Resolve retrieves a backend factory from the default registry.
func Resolve(kind string) (Factory, error) {
	return DefaultRegistry.Resolve(kind)
}

// Kinds lists the backend kinds known to the default registry.
func Kinds() []string {
	return DefaultRegistry.Kinds()
}
