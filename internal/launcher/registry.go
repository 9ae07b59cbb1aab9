package launcher

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/chess10kp/winlaunch/internal/config"
)

var ErrNoLauncher = errors.New("item has no launcher")

// Item represents a single result item
type Item struct {
	Title    string `json:"title"`
	Subtitle string `json:"subtitle"`
	Icon     string `json:"icon"`
	// IconSource is a path the icon is extracted from when Icon is empty.
	IconSource string     `json:"icon_source,omitempty"`
	Action     ActionData `json:"-"`
	Launcher   Launcher   `json:"-"`
}

// Launcher is the interface that all launchers must implement
type Launcher interface {
	Name() string
	CommandTriggers() []string
	Populate(ctx context.Context, query string) ([]*Item, error)
	Execute(ctx context.Context, item *Item) error
	Cleanup()
}

// Rebuilder is implemented by launchers whose items can be refreshed on
// demand.
type Rebuilder interface {
	Rebuild(ctx context.Context) error
}

// Versioned launchers report a version that changes whenever their data
// changes. Cached results of older versions are discarded.
type Versioned interface {
	Version() string
}

// Registry manages all launchers
type Registry struct {
	mu           sync.RWMutex
	launchers    map[string]Launcher
	order        []string
	triggerMap   map[string]Launcher
	customPrefix map[string]string // name -> custom prefix
	config       *config.Config
	searchCache  *SearchCache
	hooks        *HookRegistry
}

func NewRegistry(cfg *config.Config) *Registry {
	var cache *SearchCache
	if cfg.Launcher.Performance.EnableCache {
		var err error
		cache, err = NewSearchCache(cfg.Launcher.Performance.SearchCacheSize)
		if err != nil {
			log.Printf("[REGISTRY] Failed to create search cache: %v", err)
			// Continue without cache rather than failing
			cache = nil
		}
	}

	return &Registry{
		launchers:    make(map[string]Launcher),
		triggerMap:   make(map[string]Launcher),
		customPrefix: make(map[string]string),
		config:       cfg,
		searchCache:  cache,
		hooks:        NewHookRegistry(),
	}
}

// Register registers a launcher. A custom prefix configured for the
// launcher's name is registered with it.
func (r *Registry) Register(l Launcher) error {
	name := l.Name()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.launchers[name]; exists {
		return fmt.Errorf("launcher '%s' already registered", name)
	}

	r.launchers[name] = l
	r.order = append(r.order, name)

	for _, trigger := range l.CommandTriggers() {
		if other, taken := r.triggerMap[trigger]; taken {
			log.Printf("[REGISTRY] Trigger '%s' of '%s' already used by '%s', skipping", trigger, name, other.Name())
			continue
		}
		r.triggerMap[trigger] = l
		log.Printf("[REGISTRY] Registered trigger: %s -> %s", trigger, name)
	}

	if prefix, ok := r.config.Launcher.LauncherPrefixes[name]; ok && prefix != "" {
		r.customPrefix[name] = prefix
		r.triggerMap[prefix] = l
		log.Printf("[REGISTRY] Registered custom prefix: %s -> %s", prefix, name)
	}

	return nil
}

// Unregister unregisters a launcher
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	l, exists := r.launchers[name]
	if !exists {
		r.mu.Unlock()
		return
	}

	for trigger, owner := range r.triggerMap {
		if owner == l {
			delete(r.triggerMap, trigger)
		}
	}
	delete(r.customPrefix, name)
	delete(r.launchers, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.mu.Unlock()

	r.hooks.UnregisterAll(name)
	l.Cleanup()
	r.InvalidateCache()

	log.Printf("[REGISTRY] Unregistered launcher: %s", name)
}

// Get returns a launcher by name
func (r *Registry) Get(name string) (Launcher, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.launchers[name]
	return l, ok
}

// GetLauncher returns a launcher by trigger
func (r *Registry) GetLauncher(trigger string) (Launcher, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.triggerMap[trigger]
	return l, ok
}

// All returns the registered launchers in registration order.
func (r *Registry) All() []Launcher {
	r.mu.RLock()
	defer r.mu.RUnlock()

	launchers := make([]Launcher, 0, len(r.order))
	for _, name := range r.order {
		launchers = append(launchers, r.launchers[name])
	}
	return launchers
}

// Default returns the launcher used for queries without a trigger.
func (r *Registry) Default() (Launcher, bool) {
	name := r.config.Launcher.DefaultLauncher
	if name == "" {
		name = "apps"
	}
	return r.Get(name)
}

func (r *Registry) Hooks() *HookRegistry {
	return r.hooks
}

// FindLauncherForInput finds a launcher for given input. Supported forms
// are ">trigger query", "trigger: query", "trigger query" and custom
// prefixes glued to the query ("?query").
func (r *Registry) FindLauncherForInput(input string) (trigger string, l Launcher, query string) {
	// Check for > prefix
	if strings.HasPrefix(input, ">") {
		parts := strings.SplitN(input[1:], " ", 2)
		trigger = parts[0]
		if len(parts) > 1 {
			query = strings.TrimSpace(parts[1])
		}
		if l, ok := r.GetLauncher(trigger); ok {
			return trigger, l, query
		}
	}

	// Check for colon-style triggers (f:, wiki:, etc.)
	if i := strings.Index(input, ":"); i > 0 {
		trigger = input[:i]
		query = strings.TrimSpace(input[i+1:])
		if l, ok := r.GetLauncher(trigger); ok {
			return trigger, l, query
		}
	}

	// Check for space-style triggers (f , w , etc.)
	if i := strings.Index(input, " "); i > 0 {
		trigger = input[:i]
		query = strings.TrimSpace(input[i+1:])
		if l, ok := r.GetLauncher(trigger); ok {
			return trigger, l, query
		}
	}

	// Custom prefixes may be glued to the query
	r.mu.RLock()
	defer r.mu.RUnlock()
	for name, prefix := range r.customPrefix {
		if strings.HasPrefix(input, prefix) {
			return prefix, r.launchers[name], strings.TrimSpace(input[len(prefix):])
		}
	}

	return "", nil, ""
}

// Search searches for items matching the query
func (r *Registry) Search(ctx context.Context, input string) ([]*Item, error) {
	startTime := time.Now()
	log.Printf("[REGISTRY-SEARCH] Started for query='%s'", input)

	if timeout := r.config.Launcher.Search.Timeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	_, l, q := r.FindLauncherForInput(input)
	if l != nil {
		// Launcher-specific search - only search this launcher
		log.Printf("[REGISTRY-SEARCH] Launcher-specific search: launcher='%s', query='%s'", l.Name(), q)
		items, err := l.Populate(ctx, q)
		if err != nil {
			log.Printf("[REGISTRY-SEARCH] Launcher '%s' failed: %v", l.Name(), err)
			return nil, fmt.Errorf("%s: %w", l.Name(), err)
		}
		items = r.limit(r.bind(items, l))

		// Don't cache launcher-specific searches
		log.Printf("[REGISTRY-SEARCH] Completed launcher-specific search in %v, %d items", time.Since(startTime), len(items))
		return items, nil
	}

	if strings.HasPrefix(input, ">") {
		items := r.launcherItems(strings.TrimSpace(input[1:]))
		log.Printf("[REGISTRY-SEARCH] Listed %d launchers for '%s'", len(items), input)
		return items, nil
	}

	def, ok := r.Default()
	version := ""
	if ok {
		if v, isVersioned := def.(Versioned); isVersioned {
			version = v.Version()
		}
	}

	// General search - check cache first
	if r.searchCache != nil {
		if cached, found := r.searchCache.Get(input, version); found {
			log.Printf("[REGISTRY-SEARCH] Cache HIT for query='%s', returned %d items", input, len(cached))
			return cached, nil
		}
	}

	var items []*Item
	if ok {
		var err error
		items, err = def.Populate(ctx, input)
		if err != nil {
			log.Printf("[REGISTRY-SEARCH] Default launcher '%s' failed: %v", def.Name(), err)
			return nil, fmt.Errorf("%s: %w", def.Name(), err)
		}
		items = r.bind(items, def)
	} else {
		log.Printf("[REGISTRY-SEARCH] WARNING: No default launcher, falling back to all launchers")
		for _, each := range r.All() {
			found, err := each.Populate(ctx, input)
			if err != nil {
				log.Printf("[REGISTRY-SEARCH] Launcher '%s' failed: %v", each.Name(), err)
				continue
			}
			items = append(items, r.bind(found, each)...)
		}
	}

	// Deduplicate results
	originalCount := len(items)
	items = deduplicateResults(items)
	if len(items) != originalCount {
		log.Printf("[REGISTRY-SEARCH] Deduplication removed %d duplicates (%d -> %d)", originalCount-len(items), originalCount, len(items))
	}
	items = r.limit(items)

	if r.searchCache != nil && ctx.Err() == nil {
		durationMs := float64(time.Since(startTime).Nanoseconds()) / 1e6
		r.searchCache.Put(input, version, items, durationMs)
	}

	log.Printf("[REGISTRY-SEARCH] Completed general search in %v, final result count: %d", time.Since(startTime), len(items))
	return items, nil
}

func (r *Registry) bind(items []*Item, l Launcher) []*Item {
	for _, item := range items {
		if item.Launcher == nil {
			item.Launcher = l
		}
	}
	return items
}

func (r *Registry) limit(items []*Item) []*Item {
	maxResults := r.config.Launcher.Search.MaxResults
	if maxResults > 0 && len(items) > maxResults {
		log.Printf("[REGISTRY-SEARCH] Limited results to %d (max configured)", maxResults)
		return items[:maxResults]
	}
	return items
}

// launcherItems offers launchers matching the partial trigger as results.
// Selecting one fills the query with its trigger.
func (r *Registry) launcherItems(partial string) []*Item {
	matches := r.Match(partial)
	items := make([]*Item, 0, len(matches))
	for _, l := range matches {
		trigger := l.Name()
		if triggers := l.CommandTriggers(); len(triggers) > 0 {
			trigger = triggers[0]
		}
		items = append(items, &Item{
			Title:    l.Name(),
			Subtitle: ">" + strings.Join(l.CommandTriggers(), ", >"),
			Icon:     "system-search",
			Action:   NewQueryAction(">" + trigger + " "),
		})
	}
	return r.limit(items)
}

// deduplicateResults removes duplicate results based on title and subtitle
func deduplicateResults(items []*Item) []*Item {
	seen := make(map[string]bool)
	result := make([]*Item, 0, len(items))

	for _, item := range items {
		key := item.Title + "|" + item.Subtitle
		if !seen[key] {
			seen[key] = true
			result = append(result, item)
		}
	}

	return result
}

// Execute runs the pre-execute hooks of the item's launcher and then the
// launcher itself. A hook that handles the item stops execution.
func (r *Registry) Execute(ctx context.Context, query string, item *Item) error {
	if item == nil {
		return fmt.Errorf("no item selected")
	}
	if item.Launcher == nil {
		return ErrNoLauncher
	}

	hc := &HookContext{
		LauncherName: item.Launcher.Name(),
		Query:        query,
		Config:       r.config,
	}
	result := r.hooks.ExecutePreExecuteHooks(ctx, hc, item)
	if result.Error != nil {
		return result.Error
	}
	if result.Handled {
		return nil
	}
	if result.ModifiedItem != nil {
		item = result.ModifiedItem
	}

	if err := item.Launcher.Execute(ctx, item); err != nil {
		return fmt.Errorf("%s: %w", item.Launcher.Name(), err)
	}

	if _, ok := item.Launcher.(Versioned); ok {
		r.InvalidateCache()
	}
	return nil
}

// Rebuild refreshes every launcher implementing Rebuilder.
func (r *Registry) Rebuild(ctx context.Context) error {
	var errs error
	for _, l := range r.All() {
		if rb, ok := l.(Rebuilder); ok {
			if err := rb.Rebuild(ctx); err != nil {
				log.Printf("[REGISTRY] Failed to rebuild '%s': %v", l.Name(), err)
				errs = multierr.Append(errs, fmt.Errorf("%s: %w", l.Name(), err))
			}
		}
	}
	r.InvalidateCache()
	return errs
}

func (r *Registry) InvalidateCache() {
	if r.searchCache != nil {
		r.searchCache.Invalidate()
	}
}

// CacheStats returns current cache statistics
func (r *Registry) CacheStats() *CacheStats {
	if r.searchCache != nil {
		return r.searchCache.GetStats()
	}
	return nil
}

// Cleanup cleans up all launchers
func (r *Registry) Cleanup() {
	r.mu.Lock()
	launchers := r.launchers
	r.launchers = make(map[string]Launcher)
	r.triggerMap = make(map[string]Launcher)
	r.customPrefix = make(map[string]string)
	r.order = nil
	r.mu.Unlock()

	for name, l := range launchers {
		l.Cleanup()
		log.Printf("[REGISTRY] Cleaned up launcher: %s", name)
	}

	r.hooks.Cleanup()
	r.InvalidateCache()
}
