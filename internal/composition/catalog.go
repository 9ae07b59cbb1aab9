package composition

import (
	"fmt"
	"log"
	"sort"
	"sync"
)

// Plugin contributes settings, services and launchers to a Container.
// Plugins register themselves from init() so that importing the package is
// enough to make them discoverable.
type Plugin interface {
	Name() string
	Compose(c *Container) error
}

// Catalog is the set of known plugins.
type Catalog struct {
	mu      sync.RWMutex
	plugins map[string]Plugin
}

var defaultCatalog = NewCatalog()

func NewCatalog() *Catalog {
	return &Catalog{plugins: make(map[string]Plugin)}
}

// DefaultCatalog returns the process-wide catalog filled by RegisterPlugin.
func DefaultCatalog() *Catalog {
	return defaultCatalog
}

// RegisterPlugin adds a plugin to the default catalog.
func RegisterPlugin(p Plugin) error {
	return defaultCatalog.Register(p)
}

func (c *Catalog) Register(p Plugin) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	name := p.Name()
	if _, exists := c.plugins[name]; exists {
		return fmt.Errorf("plugin '%s' already registered", name)
	}

	c.plugins[name] = p
	log.Printf("[CATALOG] Registered plugin: %s", name)
	return nil
}

// Plugins returns the registered plugins sorted by name.
func (c *Catalog) Plugins() []Plugin {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.plugins))
	for name := range c.plugins {
		names = append(names, name)
	}
	sort.Strings(names)

	plugins := make([]Plugin, 0, len(names))
	for _, name := range names {
		plugins = append(plugins, c.plugins[name])
	}
	return plugins
}
