package mapping

import (
	"fmt"
	"reflect"
	"sort"
	"sync"
)

// Registry holds one mapping per destination type. It is safe for
// concurrent use; the maps it hands out are not.
type Registry struct {
	mu   sync.RWMutex
	maps map[reflect.Type]any
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{maps: make(map[reflect.Type]any)}
}

// Register stores m as the mapping for T.
func Register[T any](r *Registry, m Map[T]) error {
	t := reflect.TypeFor[T]()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.maps[t]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, t)
	}
	r.maps[t] = m
	return nil
}

// Lookup returns the mapping registered for T.
func Lookup[T any](r *Registry) (Map[T], error) {
	t := reflect.TypeFor[T]()

	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.maps[t]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotRegistered, t)
	}
	return m.(Map[T]), nil
}

// Unregister removes the mapping for T, if any.
func Unregister[T any](r *Registry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.maps, reflect.TypeFor[T]())
}

// Types returns the registered type names, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.maps))
	for t := range r.maps {
		names = append(names, t.String())
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered mappings.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.maps)
}

// Clear removes all registered mappings.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.maps = make(map[reflect.Type]any)
}
