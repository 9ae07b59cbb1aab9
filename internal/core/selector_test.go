package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/chess10kp/winlaunch/internal/config"
	"github.com/chess10kp/winlaunch/internal/event"
	"github.com/chess10kp/winlaunch/internal/iconcache"
	"github.com/chess10kp/winlaunch/internal/launcher"
)

type fakeLauncher struct {
	name     string
	triggers []string
	items    func(ctx context.Context, query string) ([]*launcher.Item, error)

	mu       sync.Mutex
	executed []string
}

func (f *fakeLauncher) Name() string              { return f.name }
func (f *fakeLauncher) CommandTriggers() []string { return f.triggers }
func (f *fakeLauncher) Cleanup()                  {}

func (f *fakeLauncher) Populate(ctx context.Context, query string) ([]*launcher.Item, error) {
	if f.items != nil {
		return f.items(ctx, query)
	}
	return []*launcher.Item{
		{Title: query + " one", Action: launcher.NewOpenAction("one")},
		{Title: query + " two", Action: launcher.NewOpenAction("two")},
		{Title: query + " three", Action: launcher.NewOpenAction("three")},
	}, nil
}

func (f *fakeLauncher) Execute(ctx context.Context, item *launcher.Item) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.executed = append(f.executed, item.Title)
	return nil
}

func (f *fakeLauncher) Executed() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.executed...)
}

type staticExtractor struct{}

func (staticExtractor) Extract(ctx context.Context, path string) (string, error) {
	return "icon:" + path, nil
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Launcher.Performance.EnableCache = false
	cfg.Launcher.Search.MaxResults = 10
	return cfg
}

func newTestSelector(t *testing.T, cfg *config.Config, launchers ...launcher.Launcher) (*Selector, *event.Bus) {
	t.Helper()
	registry := launcher.NewRegistry(cfg)
	for _, l := range launchers {
		if err := registry.Register(l); err != nil {
			t.Fatal(err)
		}
	}
	bus := event.NewBus(event.Immediate{})
	icons := iconcache.New(cfg.Icons, staticExtractor{})
	s := NewSelector(cfg, registry, icons, bus)
	t.Cleanup(s.Close)
	return s, bus
}

func waitSettled(t *testing.T, s *Selector) {
	t.Helper()
	select {
	case <-s.Settled():
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for search")
	}
}

func TestSelector_SetQueryPublishesResults(t *testing.T) {
	s, bus := newTestSelector(t, testConfig(), &fakeLauncher{name: "apps"})

	var mu sync.Mutex
	var events []ResultsChanged
	event.Subscribe(bus, func(e ResultsChanged) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	})

	s.SetQuery("fire")
	waitSettled(t, s)

	mu.Lock()
	defer mu.Unlock()
	if len(events) != 1 {
		t.Fatalf("Expected 1 event, got %d", len(events))
	}
	if events[0].Query != "fire" || len(events[0].Results) != 3 {
		t.Errorf("Unexpected event %+v", events[0])
	}
	if !events[0].Results[0].Selected || events[0].Results[0].Launcher != "apps" {
		t.Errorf("Expected first result selected and bound to apps, got %+v", events[0].Results[0])
	}

	state := s.State()
	if state.Query != "fire" || state.Selected != 0 || len(state.Results) != 3 {
		t.Errorf("Unexpected state %+v", state)
	}
}

func TestSelector_NewQueryCancelsPrevious(t *testing.T) {
	started := make(chan struct{})
	slowCancelled := make(chan struct{})
	l := &fakeLauncher{
		name: "apps",
		items: func(ctx context.Context, query string) ([]*launcher.Item, error) {
			if query == "slow" {
				close(started)
				<-ctx.Done()
				close(slowCancelled)
				return nil, ctx.Err()
			}
			return []*launcher.Item{{Title: query}}, nil
		},
	}
	s, bus := newTestSelector(t, testConfig(), l)

	var mu sync.Mutex
	var queries []string
	event.Subscribe(bus, func(e ResultsChanged) {
		mu.Lock()
		queries = append(queries, e.Query)
		mu.Unlock()
	})

	s.SetQuery("slow")
	<-started
	s.SetQuery("fast")
	waitSettled(t, s)

	select {
	case <-slowCancelled:
	case <-time.After(5 * time.Second):
		t.Fatal("Expected the slow search to be cancelled")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(queries) != 1 || queries[0] != "fast" {
		t.Errorf("Expected only results for 'fast', got %v", queries)
	}
	if got := s.State().Results; len(got) != 1 || got[0].Title != "fast" {
		t.Errorf("Unexpected results %+v", got)
	}
}

func TestSelector_StaleResultsDropped(t *testing.T) {
	s, _ := newTestSelector(t, testConfig(), &fakeLauncher{name: "apps"})

	s.SetQuery("current")
	waitSettled(t, s)

	s.apply(s.searchVersion-1, "old", []*launcher.Item{{Title: "old"}}, nil)

	if got := s.State(); got.Query != "current" || got.Results[0].Title != "current one" {
		t.Errorf("Expected stale results to be ignored, got %+v", got)
	}
}

func TestSelector_MoveWrapsAround(t *testing.T) {
	s, _ := newTestSelector(t, testConfig(), &fakeLauncher{name: "apps"})

	if got := s.Move(1); got != -1 {
		t.Errorf("Expected -1 without results, got %d", got)
	}

	s.SetQuery("x")
	waitSettled(t, s)

	tests := []struct {
		delta int
		want  int
	}{
		{-1, 2},
		{1, 0},
		{1, 1},
		{1, 2},
		{1, 0},
		{5, 2},
	}
	for _, tt := range tests {
		if got := s.Move(tt.delta); got != tt.want {
			t.Errorf("Move(%d): expected %d, got %d", tt.delta, tt.want, got)
		}
	}
	if s.Selected().Title != "x three" {
		t.Errorf("Expected 'x three' selected, got %q", s.Selected().Title)
	}
}

func TestSelector_ActivateExecutesAndHides(t *testing.T) {
	l := &fakeLauncher{name: "apps"}
	s, bus := newTestSelector(t, testConfig(), l)

	var activated []ItemActivated
	event.Subscribe(bus, func(e ItemActivated) { activated = append(activated, e) })

	s.Show()
	waitSettled(t, s)
	s.SetQuery("x")
	waitSettled(t, s)
	s.Move(1)

	if err := s.Activate(context.Background()); err != nil {
		t.Fatalf("Activate failed: %v", err)
	}
	waitSettled(t, s)

	if got := l.Executed(); len(got) != 1 || got[0] != "x two" {
		t.Errorf("Expected 'x two' executed, got %v", got)
	}
	if len(activated) != 1 || activated[0].Launcher != "apps" || activated[0].Err != nil {
		t.Errorf("Unexpected activation events %+v", activated)
	}
	if s.Visible() {
		t.Error("Expected window hidden after activation")
	}
	if s.State().Query != "" {
		t.Errorf("Expected query cleared, got %q", s.State().Query)
	}
}

func TestSelector_ActivateKeepsStateWhenConfigured(t *testing.T) {
	cfg := testConfig()
	cfg.Launcher.Behavior.CloseOnActivate = false
	cfg.Launcher.Behavior.ClearSearchOnActivate = false
	s, _ := newTestSelector(t, cfg, &fakeLauncher{name: "apps"})

	s.Show()
	waitSettled(t, s)
	s.SetQuery("x")
	waitSettled(t, s)

	if err := s.Activate(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !s.Visible() || s.State().Query != "x" {
		t.Errorf("Expected window and query kept, got %+v", s.State())
	}
}

func TestSelector_ActivateQueryAction(t *testing.T) {
	l := &fakeLauncher{
		name: "apps",
		items: func(ctx context.Context, query string) ([]*launcher.Item, error) {
			return []*launcher.Item{{Title: "more", Action: launcher.NewQueryAction(">f " + query)}}, nil
		},
	}
	s, _ := newTestSelector(t, testConfig(), l)

	s.SetQuery("x")
	waitSettled(t, s)
	if err := s.Activate(context.Background()); err != nil {
		t.Fatal(err)
	}
	waitSettled(t, s)

	if got := s.State().Query; got != ">f x" {
		t.Errorf("Expected query replaced by '>f x', got %q", got)
	}
	if len(l.Executed()) != 0 {
		t.Error("Expected query action not to execute")
	}
}

func TestSelector_ActivateWithoutResults(t *testing.T) {
	s, _ := newTestSelector(t, testConfig(), &fakeLauncher{name: "apps"})

	if err := s.Activate(context.Background()); !errors.Is(err, ErrNothingSelected) {
		t.Errorf("Expected ErrNothingSelected, got %v", err)
	}
}

func TestSelector_ToggleVisibility(t *testing.T) {
	s, bus := newTestSelector(t, testConfig(), &fakeLauncher{name: "apps"})

	var changes []bool
	event.Subscribe(bus, func(e VisibilityChanged) { changes = append(changes, e.Visible) })

	s.Toggle()
	waitSettled(t, s)
	s.Show()
	s.Toggle()
	s.Hide()

	if len(changes) != 2 || !changes[0] || changes[1] {
		t.Errorf("Expected [true false], got %v", changes)
	}
}

func TestSelector_LoadsIcons(t *testing.T) {
	l := &fakeLauncher{
		name: "apps",
		items: func(ctx context.Context, query string) ([]*launcher.Item, error) {
			return []*launcher.Item{
				{Title: "named", Icon: "folder"},
				{Title: "file", IconSource: "/tmp/app.exe"},
			}, nil
		},
	}
	s, bus := newTestSelector(t, testConfig(), l)

	loaded := make(chan IconLoaded, 2)
	event.Subscribe(bus, func(e IconLoaded) { loaded <- e })

	s.SetQuery("x")
	waitSettled(t, s)

	select {
	case e := <-loaded:
		if e.Index != 1 || e.Icon != "icon:/tmp/app.exe" {
			t.Errorf("Unexpected icon event %+v", e)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for icon")
	}

	if got := s.State().Results[1].Icon; got != "icon:/tmp/app.exe" {
		t.Errorf("Expected icon applied to result, got %q", got)
	}
	select {
	case e := <-loaded:
		t.Errorf("Unexpected second icon event %+v", e)
	default:
	}
}
