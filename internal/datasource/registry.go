package datasource

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]func() DataSource)
)

// Register adds a datasource factory to the registry.
// Called by backend implementations in their init() functions.
func Register(name string, factory func() DataSource) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
}

// Get retrieves a datasource factory by name.
func Get(name string) (func() DataSource, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := registry[name]
	return f, ok
}

// IsRegistered checks whether a backend type is registered.
func IsRegistered(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[name]
	return ok
}

// List returns all registered backend names, sorted.
func List() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open creates a datasource for the configured backend and connects it.
func Open(ctx context.Context, cfg Config) (DataSource, error) {
	if cfg.Type == "" {
		return nil, fmt.Errorf("datasource type not specified")
	}

	factory, ok := Get(cfg.Type)
	if !ok {
		return nil, &UnknownBackendError{Type: cfg.Type, Available: List()}
	}

	ds := factory()
	if err := ds.Connect(ctx, cfg); err != nil {
		return nil, err
	}
	return ds, nil
}

// UnknownBackendError is returned when an unknown backend type is requested.
type UnknownBackendError struct {
	Type      string
	Available []string
}

func (e *UnknownBackendError) Error() string {
	return fmt.Sprintf("unknown datasource type %q (available: %v)", e.Type, e.Available)
}
