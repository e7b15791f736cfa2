package auth

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ProviderFactory creates a configured provider. Configuration is
// closed over by the registrant.
type ProviderFactory func() (Provider, error)

// Registry holds named provider factories so the hosting process can
// select the active provider from configuration. No package-level
// default exists; hosts construct and populate their own.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]ProviderFactory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]ProviderFactory)}
}

// Register adds a provider factory.
func (r *Registry) Register(name string, factory ProviderFactory) error {
	if name == "" || factory == nil {
		return errors.New("auth: invalid provider registration")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("auth: provider %q already registered", name)
	}

	r.factories[name] = factory
	return nil
}

// Create instantiates a provider by name.
func (r *Registry) Create(name string) (Provider, error) {
	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("auth: provider %q not found", name)
	}

	return factory()
}

// List returns registered provider names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
