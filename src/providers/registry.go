package providers

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps bank names to provider kinds and provider kinds to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	banks     map[string]string
}

func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		banks:     make(map[string]string),
	}
}

func (r *Registry) Register(kind string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[kind] = f
}

func (r *Registry) Bind(bankName, kind string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.banks[bankName] = kind
}

// Lookup returns the factory serving bankName.
func (r *Registry) Lookup(bankName string) (Factory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kind, ok := r.banks[bankName]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, bankName)
	}
	f, ok := r.factories[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q uses unregistered kind %q", ErrUnknownProvider, bankName, kind)
	}
	return f, nil
}

// Banks lists the bank names with a binding, sorted.
func (r *Registry) Banks() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.banks))
	for name := range r.banks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Kind returns the provider kind bound to bankName.
func (r *Registry) Kind(bankName string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kind, ok := r.banks[bankName]
	return kind, ok
}
