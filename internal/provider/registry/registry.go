// Package registry tracks constructed providers by name and builds them
// from configuration.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/davidbz/hearth/internal/domain"
)

// Registry holds constructed providers keyed by their reported name.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]domain.Provider
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]domain.Provider)}
}

// Register adds a provider under its reported name. Registering the same
// name twice is a programming error and fails.
func (r *Registry) Register(provider domain.Provider) error {
	if provider == nil {
		return errors.New("provider cannot be nil")
	}
	name := provider.Name()
	if name == "" {
		return errors.New("provider name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.providers[name]; exists {
		return fmt.Errorf("provider %s already registered", name)
	}
	r.providers[name] = provider
	return nil
}

// Get retrieves a provider by name.
func (r *Registry) Get(name string) (domain.Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	provider, exists := r.providers[name]
	if !exists {
		return nil, domain.Errorf(domain.ErrCodeNotFound, name, "provider %s is not registered", name)
	}
	return provider, nil
}

// List returns the registered provider names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ForModel returns a provider that serves the given model ID. Supported
// model lists are consulted live rather than indexed at registration, so
// vendors whose lists change at runtime stay accurate.
func (r *Registry) ForModel(modelID string) (domain.Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, provider := range r.providers {
		for _, id := range provider.SupportedModels() {
			if id == modelID {
				return provider, nil
			}
		}
	}
	return nil, domain.Errorf(domain.ErrCodeNotFound, "", "no provider serves model %s", modelID)
}

// CloseAll closes every registered provider and joins any errors.
func (r *Registry) CloseAll() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for name, provider := range r.providers {
		if err := provider.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
