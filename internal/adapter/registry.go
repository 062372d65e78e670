package adapter

import (
	"strings"
	"sync"

	"github.com/gudastudio/maw/internal/config"
	"github.com/gudastudio/maw/internal/errors"
	"github.com/gudastudio/maw/internal/logging"
)

// Registry holds the set of configured adapters, keyed by backend name.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
	order    []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		adapters: make(map[string]Adapter),
	}
}

// NewFromConfig assembles a registry from the backend configuration.
// Disabled backends are not registered.
func NewFromConfig(cfg *config.Config, logger *logging.Logger) *Registry {
	if logger == nil {
		logger = logging.NopLogger()
	}
	r := NewRegistry()

	if cfg.Backends.Claude.Enabled {
		r.Register(NewNativeAdapter("claude", cfg.Backends.Claude.Model, logger))
	}
	if cfg.Backends.Codex.Enabled {
		r.Register(NewBridgeAdapter("codex", &cfg.Backends.Codex, logger))
	}
	if cfg.Backends.Gemini.Enabled {
		r.Register(NewBridgeAdapter("gemini", &cfg.Backends.Gemini, logger))
	}

	return r
}

// Register adds an adapter, replacing any previous adapter with the same name.
func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := strings.ToLower(a.Name())
	if _, exists := r.adapters[name]; !exists {
		r.order = append(r.order, name)
	}
	r.adapters[name] = a
}

// Resolve returns the adapter registered under name. Lookup is
// case-insensitive. "auto" is not resolved here; callers apply their own
// selection policy before resolving.
func (r *Registry) Resolve(name string) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.adapters[strings.ToLower(name)]
	if !ok {
		return nil, errors.NewAdapterError("no adapter registered", errors.ErrUnknownBackend).
			WithBackend(name)
	}
	return a, nil
}

// Names returns the registered backend names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}
