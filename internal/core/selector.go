package core

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"

	"github.com/chess10kp/winlaunch/internal/config"
	"github.com/chess10kp/winlaunch/internal/event"
	"github.com/chess10kp/winlaunch/internal/iconcache"
	"github.com/chess10kp/winlaunch/internal/launcher"
)

var ErrNothingSelected = errors.New("no item selected")

// ResultsChanged is published when a search for the current query
// completed. Results of superseded searches are never published.
type ResultsChanged struct {
	Version int64
	Query   string
	Results []Result
	Err     error
}

// IconLoaded is published when the icon of one result became available.
type IconLoaded struct {
	Version int64
	Index   int
	Icon    string
}

type VisibilityChanged struct {
	Visible bool
}

type SelectionChanged struct {
	Index int
}

type ItemActivated struct {
	Title    string
	Launcher string
	Err      error
}

// Result is the rendered form of one item.
type Result struct {
	Index    int    `json:"index"`
	Title    string `json:"title"`
	Subtitle string `json:"subtitle,omitempty"`
	Icon     string `json:"icon,omitempty"`
	Launcher string `json:"launcher,omitempty"`
	Action   string `json:"action,omitempty"`
	Selected bool   `json:"selected"`
}

type State struct {
	Visible  bool     `json:"visible"`
	Query    string   `json:"query"`
	Selected int      `json:"selected"`
	Error    string   `json:"error,omitempty"`
	Results  []Result `json:"results"`
}

// Selector is the state of the launcher window: the query, its results and
// the selected row. Searches run in the background; only the newest search
// may replace the results.
type Selector struct {
	config   *config.Config
	registry *launcher.Registry
	icons    *iconcache.Cache
	bus      *event.Bus

	visible atomic.Bool

	mu            sync.RWMutex
	query         string
	items         []*launcher.Item
	selected      int
	searchErr     error
	searchVersion int64
	cancelSearch  context.CancelFunc
	settled       chan struct{}
}

func NewSelector(cfg *config.Config, registry *launcher.Registry, icons *iconcache.Cache, bus *event.Bus) *Selector {
	settled := make(chan struct{})
	close(settled)
	return &Selector{
		config:   cfg,
		registry: registry,
		icons:    icons,
		bus:      bus,
		settled:  settled,
	}
}

// SetQuery replaces the query and searches for it, cancelling the search
// still running for the previous query.
func (s *Selector) SetQuery(query string) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	s.mu.Lock()
	if s.cancelSearch != nil {
		s.cancelSearch()
	}
	s.searchVersion++
	version := s.searchVersion
	s.query = query
	s.cancelSearch = cancel
	s.settled = done
	s.mu.Unlock()

	go func() {
		defer close(done)
		defer cancel()

		items, err := s.registry.Search(ctx, query)
		if ctx.Err() != nil {
			log.Printf("[SELECTOR] Search version=%d for '%s' cancelled", version, query)
			return
		}
		s.apply(version, query, items, err)
	}()
}

// Settled returns a channel closed once the newest search finished.
func (s *Selector) Settled() <-chan struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settled
}

func (s *Selector) apply(version int64, query string, items []*launcher.Item, err error) {
	s.mu.Lock()
	if version != s.searchVersion {
		s.mu.Unlock()
		log.Printf("[SELECTOR] Skipping stale results for version=%d", version)
		return
	}

	// Items may be shared with the search cache; icons are filled into copies.
	copies := make([]*launcher.Item, len(items))
	for i, item := range items {
		c := *item
		copies[i] = &c
	}
	s.items = copies
	s.selected = 0
	s.searchErr = err
	results := s.resultsLocked()
	s.mu.Unlock()

	if err != nil {
		log.Printf("[SELECTOR] Search for '%s' failed: %v", query, err)
	}
	event.Publish(s.bus, ResultsChanged{Version: version, Query: query, Results: results, Err: err})
	s.loadIcons(version, copies)
}

func (s *Selector) loadIcons(version int64, items []*launcher.Item) {
	if s.icons == nil {
		return
	}
	for i, item := range items {
		if item.Icon != "" || item.IconSource == "" {
			continue
		}
		s.icons.LoadAsync(item.IconSource, func(icon string) {
			if icon == "" {
				return
			}
			s.mu.Lock()
			if version != s.searchVersion {
				s.mu.Unlock()
				return
			}
			item.Icon = icon
			s.mu.Unlock()

			event.Publish(s.bus, IconLoaded{Version: version, Index: i, Icon: icon})
		})
	}
}

// Move shifts the selection by delta, wrapping around at either end.
func (s *Selector) Move(delta int) int {
	s.mu.Lock()
	n := len(s.items)
	if n == 0 {
		s.mu.Unlock()
		return -1
	}
	index := (s.selected + delta) % n
	if index < 0 {
		index += n
	}
	s.selected = index
	s.mu.Unlock()

	event.Publish(s.bus, SelectionChanged{Index: index})
	return index
}

// Activate executes the selected item. An item carrying a query action
// replaces the query instead.
func (s *Selector) Activate(ctx context.Context) error {
	s.mu.RLock()
	if s.selected < 0 || s.selected >= len(s.items) {
		s.mu.RUnlock()
		return ErrNothingSelected
	}
	item := s.items[s.selected]
	query := s.query
	s.mu.RUnlock()

	if action, ok := item.Action.(*launcher.QueryAction); ok {
		s.SetQuery(action.Query)
		return nil
	}

	name := ""
	if item.Launcher != nil {
		name = item.Launcher.Name()
	}

	err := s.registry.Execute(ctx, query, item)
	event.Publish(s.bus, ItemActivated{Title: item.Title, Launcher: name, Err: err})
	if err != nil {
		log.Printf("[SELECTOR] Failed to execute '%s': %v", item.Title, err)
		return err
	}
	log.Printf("[SELECTOR] Executed '%s' via '%s'", item.Title, name)

	behavior := s.config.Launcher.Behavior
	if behavior.ClearSearchOnActivate {
		s.SetQuery("")
	}
	if behavior.CloseOnActivate {
		s.Hide()
	}
	return nil
}

// Show makes the window visible and refreshes the results.
func (s *Selector) Show() {
	if s.visible.Swap(true) {
		return
	}
	event.Publish(s.bus, VisibilityChanged{Visible: true})

	s.mu.RLock()
	query := s.query
	s.mu.RUnlock()
	s.SetQuery(query)
}

func (s *Selector) Hide() {
	if !s.visible.Swap(false) {
		return
	}
	s.cancel()
	event.Publish(s.bus, VisibilityChanged{Visible: false})
}

func (s *Selector) Toggle() {
	if s.visible.Load() {
		s.Hide()
	} else {
		s.Show()
	}
}

func (s *Selector) Visible() bool {
	return s.visible.Load()
}

// Selected returns the selected item, or nil.
func (s *Selector) Selected() *launcher.Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.selected < 0 || s.selected >= len(s.items) {
		return nil
	}
	return s.items[s.selected]
}

func (s *Selector) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state := State{
		Visible:  s.visible.Load(),
		Query:    s.query,
		Selected: s.selected,
		Results:  s.resultsLocked(),
	}
	if s.searchErr != nil {
		state.Error = s.searchErr.Error()
	}
	return state
}

func (s *Selector) resultsLocked() []Result {
	results := make([]Result, len(s.items))
	for i, item := range s.items {
		results[i] = Result{
			Index:    i,
			Title:    item.Title,
			Subtitle: item.Subtitle,
			Icon:     item.Icon,
			Action:   launcher.Describe(item.Action),
			Selected: i == s.selected,
		}
		if item.Launcher != nil {
			results[i].Launcher = item.Launcher.Name()
		}
	}
	return results
}

func (s *Selector) cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelSearch != nil {
		s.cancelSearch()
		s.cancelSearch = nil
	}
}

// Close cancels the running search.
func (s *Selector) Close() {
	s.cancel()
}
