package wsoauth

import (
	"sort"
	"sync"
)

// Factory builds a provider instance from broker configuration. Factories
// run once per resolution, so providers stay stateless across requests.
type Factory func(cfg Config) (AuthProvider, error)

// ProviderSource supplies additional name -> factory entries. Sources are
// consulted on every Resolve, not cached, so callers may register providers
// dynamically between calls. Source entries shadow built-in ones.
type ProviderSource func() map[string]Factory

// Registry resolves a configured provider name to a provider instance.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Factory
	sources []ProviderSource
	logger  Logger
}

// RegistryOption configures the registry.
type RegistryOption func(*Registry)

// WithProviderSource adds a dynamic factory source.
func WithProviderSource(src ProviderSource) RegistryOption {
	return func(r *Registry) {
		if src != nil {
			r.sources = append(r.sources, src)
		}
	}
}

// WithRegistryLogger overrides the default logger.
func WithRegistryLogger(logger Logger) RegistryOption {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRegistry creates a registry seeded with the given built-in factories.
func NewRegistry(builtin map[string]Factory, opts ...RegistryOption) *Registry {
	r := &Registry{
		entries: make(map[string]Factory, len(builtin)),
		logger:  defLogger{},
	}
	for name, factory := range builtin {
		r.entries[name] = factory
	}

	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}

	return r
}

// Register adds or replaces a named factory.
func (r *Registry) Register(name string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[name] = factory
}

// Resolve returns a provider instance for name. It fails with
// ErrUnknownProvider when the name is absent from the combined mapping and
// with ErrInvalidProvider when the mapped entry cannot produce a conforming
// provider.
func (r *Registry) Resolve(name string, cfg Config) (AuthProvider, error) {
	factory, ok := r.lookup(name)
	if !ok {
		return nil, ErrUnknownProvider.Clone().WithMetadata(map[string]any{
			"provider": name,
		})
	}

	if factory == nil {
		return nil, ErrInvalidProvider.Clone().WithMetadata(map[string]any{
			"provider": name,
			"reason":   "nil factory",
		})
	}

	provider, err := factory(cfg)
	if err != nil {
		r.logger.Error("provider %q construction failed: %v", name, err)
		invalid := ErrInvalidProvider.Clone().WithMetadata(map[string]any{
			"provider": name,
		})
		invalid.Source = err
		return nil, invalid
	}
	if provider == nil {
		return nil, ErrInvalidProvider.Clone().WithMetadata(map[string]any{
			"provider": name,
			"reason":   "factory returned nil provider",
		})
	}

	return provider, nil
}

// Names enumerates the combined mapping in sorted order.
func (r *Registry) Names() []string {
	combined := r.combined()

	names := make([]string, 0, len(combined))
	for name := range combined {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) lookup(name string) (Factory, bool) {
	factory, ok := r.combined()[name]
	return factory, ok
}

func (r *Registry) combined() map[string]Factory {
	r.mu.RLock()
	defer r.mu.RUnlock()

	combined := make(map[string]Factory, len(r.entries))
	for name, factory := range r.entries {
		combined[name] = factory
	}
	for _, src := range r.sources {
		for name, factory := range src() {
			combined[name] = factory
		}
	}
	return combined
}
