package adapter

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]func(*slog.Logger) Adapter)
)

// Register adds an adapter factory under the given type name. Called from
// init() in each pkg/adapters subpackage.
func Register(name string, factory func(*slog.Logger) Adapter) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
}

// New creates an adapter for cfg.Type. A nil logger means discard.
func New(cfg Config, logger *slog.Logger) (Adapter, error) {
	if cfg.Type == "" {
		return nil, fmt.Errorf("adapter type not specified")
	}
	registryMu.RLock()
	factory, ok := registry[cfg.Type]
	registryMu.RUnlock()
	if !ok {
		return nil, &UnknownTypeError{Type: cfg.Type, Available: Registered()}
	}
	return factory(logger), nil
}

// Registered returns all registered adapter type names, sorted.
func Registered() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// UnknownTypeError is returned when no adapter is registered for a type.
type UnknownTypeError struct {
	Type      string
	Available []string
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("unknown adapter type %q (available: %v); check target.type in stagehand.yaml", e.Type, e.Available)
}
