package plugins

import (
	"fmt"
	"sort"
	"sync"

	"remarkfmt/internal/logging"
)

// Registry holds the bundled plugin packages.
// It is thread-safe and supports registration at runtime.
type Registry struct {
	mu      sync.RWMutex
	plugins map[string]*Plugin
}

// NewRegistry creates a new empty plugin registry.
func NewRegistry() *Registry {
	return &Registry{plugins: make(map[string]*Plugin)}
}

// Register adds a plugin to the registry under its declared name.
// Returns an error if a plugin with the same name already exists.
func (r *Registry) Register(p *Plugin) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("invalid plugin: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.plugins[p.Name]; exists {
		return fmt.Errorf("%w: %s", ErrPluginAlreadyRegistered, p.Name)
	}
	if p.Origin == "" {
		p.Origin = OriginBundled
	}
	r.plugins[p.Name] = p

	logging.PluginsDebug("Registered plugin: %s (origin=%s)", p.PackageName(), p.Origin)
	return nil
}

// MustRegister registers a plugin and panics on error.
func (r *Registry) MustRegister(p *Plugin) {
	if err := r.Register(p); err != nil {
		panic(fmt.Sprintf("failed to register plugin %s: %v", p.Name, err))
	}
}

// Get returns a plugin by declared name, or nil if not found.
func (r *Registry) Get(name string) *Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.plugins[name]
}

// Has returns true if a plugin with the given name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.plugins[name]
	return ok
}

// All returns all registered plugins sorted by name.
func (r *Registry) All() []*Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*Plugin, 0, len(r.plugins))
	for _, p := range r.plugins {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

// Names returns all registered plugin names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.plugins))
	for name := range r.plugins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}
