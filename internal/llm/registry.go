package llm

import (
	"fmt"
	"sort"
	"sync"
)

// Registry holds the LLM backends available to the bridge, keyed by backend
// name. The bridge registers the one configured backend at boot; the registry
// lets diagnostics enumerate what is live and lets tests swap backends
// without going through the factory.
type Registry struct {
	mu       sync.RWMutex
	backends map[string]Provider
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{backends: make(map[string]Provider)}
}

// Register adds a backend under its Name. A name can only be registered once.
func (r *Registry) Register(p Provider) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := p.Name()
	if _, ok := r.backends[name]; ok {
		return fmt.Errorf("llm backend %q already registered", name)
	}
	r.backends[name] = p
	return nil
}

// Get returns the backend registered under name.
func (r *Registry) Get(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.backends[name]
	if !ok {
		return nil, fmt.Errorf("llm backend %q not found", name)
	}
	return p, nil
}

// List returns the registered backend names in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.backends))
	for name := range r.backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
