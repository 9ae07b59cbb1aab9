package launcher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/chess10kp/winlaunch/internal/config"
)

type fakeLauncher struct {
	name     string
	triggers []string
	items    func(query string) []*Item
	err      error
	version  string
	queries  []string
	executed []*Item
	cleaned  bool
}

func (f *fakeLauncher) Name() string              { return f.name }
func (f *fakeLauncher) CommandTriggers() []string { return f.triggers }
func (f *fakeLauncher) Cleanup()                  { f.cleaned = true }

func (f *fakeLauncher) Populate(ctx context.Context, query string) ([]*Item, error) {
	f.queries = append(f.queries, query)
	if f.err != nil {
		return nil, f.err
	}
	if f.items != nil {
		return f.items(query), nil
	}
	return []*Item{{Title: f.name + ":" + query}}, nil
}

func (f *fakeLauncher) Execute(ctx context.Context, item *Item) error {
	f.executed = append(f.executed, item)
	return nil
}

type versionedLauncher struct {
	*fakeLauncher
}

func (v versionedLauncher) Version() string { return v.version }

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Launcher.Performance.EnableCache = true
	cfg.Launcher.Search.MaxResults = 5
	cfg.Launcher.LauncherPrefixes = map[string]string{"wikipedia": "?"}
	return cfg
}

func newTestRegistry(t *testing.T) (*Registry, map[string]*fakeLauncher) {
	t.Helper()
	r := NewRegistry(testConfig())

	launchers := map[string]*fakeLauncher{
		"apps":       {name: "apps"},
		"everything": {name: "everything", triggers: []string{"f", "file", "find"}},
		"clipboard":  {name: "clipboard", triggers: []string{"cb", "clip", "clipboard", "history"}},
		"wikipedia":  {name: "wikipedia", triggers: []string{"w", "wiki"}},
	}
	for _, name := range []string{"apps", "everything", "clipboard", "wikipedia"} {
		if err := r.Register(launchers[name]); err != nil {
			t.Fatalf("Failed to register %s: %v", name, err)
		}
	}
	return r, launchers
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	r, _ := newTestRegistry(t)

	if err := r.Register(&fakeLauncher{name: "apps"}); err == nil {
		t.Error("Expected error registering a duplicate launcher")
	}
	if len(r.All()) != 4 {
		t.Errorf("Expected 4 launchers, got %d", len(r.All()))
	}
	if r.All()[0].Name() != "apps" {
		t.Errorf("Expected registration order, got %s first", r.All()[0].Name())
	}
}

func TestLauncherQueryParsing(t *testing.T) {
	r, _ := newTestRegistry(t)

	testCases := []struct {
		input    string
		launcher string
		query    string
	}{
		{">f report", "everything", "report"},
		{">file", "everything", ""},
		{"find: budget 2024", "everything", "budget 2024"},
		{"f notes.txt", "everything", "notes.txt"},
		{">clip", "clipboard", ""},
		{"history token", "clipboard", "token"},
		{"wiki: golang", "wikipedia", "golang"},
		{"?golang", "wikipedia", "golang"},
		{"? go lang", "wikipedia", "go lang"},
		{"firefox", "", ""},
		{"C:\\Users", "", ""},
		{">unknown thing", "", ""},
	}

	for _, tc := range testCases {
		_, l, q := r.FindLauncherForInput(tc.input)
		if tc.launcher == "" {
			if l != nil {
				t.Errorf("Input '%s': expected no launcher, got '%s'", tc.input, l.Name())
			}
			continue
		}
		if l == nil {
			t.Errorf("Input '%s': expected launcher '%s', got none", tc.input, tc.launcher)
			continue
		}
		if l.Name() != tc.launcher {
			t.Errorf("Input '%s': expected launcher '%s', got '%s'", tc.input, tc.launcher, l.Name())
		}
		if q != tc.query {
			t.Errorf("Input '%s': expected query '%s', got '%s'", tc.input, tc.query, q)
		}
	}
}

func TestSearchRoutesToTriggeredLauncher(t *testing.T) {
	r, launchers := newTestRegistry(t)

	items, err := r.Search(context.Background(), "f report")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(items) != 1 || items[0].Title != "everything:report" {
		t.Fatalf("Unexpected items: %v", items)
	}
	if items[0].Launcher != launchers["everything"] {
		t.Error("Items should be bound to their launcher")
	}
	if len(launchers["apps"].queries) != 0 {
		t.Error("Default launcher should not be searched for triggered input")
	}
}

func TestSearchUsesDefaultLauncherAndCache(t *testing.T) {
	r, launchers := newTestRegistry(t)

	for i := 0; i < 2; i++ {
		items, err := r.Search(context.Background(), "fire")
		if err != nil {
			t.Fatalf("Search failed: %v", err)
		}
		if len(items) != 1 || items[0].Title != "apps:fire" {
			t.Fatalf("Unexpected items: %v", items)
		}
	}

	if len(launchers["apps"].queries) != 1 {
		t.Errorf("Expected second search to hit the cache, populate ran %d times", len(launchers["apps"].queries))
	}
	if stats := r.CacheStats(); stats == nil || stats.Hits != 1 {
		t.Errorf("Expected one cache hit, got %+v", stats)
	}
}

func TestSearchCacheFollowsLauncherVersion(t *testing.T) {
	r := NewRegistry(testConfig())
	apps := versionedLauncher{&fakeLauncher{name: "apps", version: "v1"}}
	r.Register(apps)

	r.Search(context.Background(), "code")
	apps.fakeLauncher.version = "v2"
	r.Search(context.Background(), "code")

	if len(apps.queries) != 2 {
		t.Errorf("Version change should bypass the cache, populate ran %d times", len(apps.queries))
	}
}

func TestSearchDeduplicatesAndLimits(t *testing.T) {
	r := NewRegistry(testConfig())
	r.Register(&fakeLauncher{name: "apps", items: func(string) []*Item {
		var items []*Item
		for i := 0; i < 8; i++ {
			items = append(items, &Item{Title: fmt.Sprintf("app %d", i/2), Subtitle: "same"})
		}
		return items
	}})

	items, err := r.Search(context.Background(), "app")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(items) != 4 {
		t.Errorf("Expected 4 unique items, got %d", len(items))
	}
}

func TestSearchPropagatesLauncherError(t *testing.T) {
	r, launchers := newTestRegistry(t)
	launchers["wikipedia"].err = errors.New("http 503")

	if _, err := r.Search(context.Background(), "w golang"); err == nil || !strings.Contains(err.Error(), "503") {
		t.Errorf("Expected launcher error, got %v", err)
	}
}

func TestSearchListsLaunchersForBarePrefix(t *testing.T) {
	r, _ := newTestRegistry(t)

	items, err := r.Search(context.Background(), ">wik")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(items) == 0 || items[0].Title != "wikipedia" {
		t.Fatalf("Expected wikipedia first, got %v", items)
	}
	action, ok := items[0].Action.(*QueryAction)
	if !ok || action.Query != ">w " {
		t.Errorf("Expected query action '>w ', got %#v", items[0].Action)
	}
}

func TestExecuteRunsLauncher(t *testing.T) {
	r, launchers := newTestRegistry(t)
	item := &Item{Title: "x", Launcher: launchers["clipboard"]}

	if err := r.Execute(context.Background(), "cb x", item); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if len(launchers["clipboard"].executed) != 1 {
		t.Error("Expected launcher to execute the item")
	}

	if err := r.Execute(context.Background(), "", &Item{Title: "orphan"}); !errors.Is(err, ErrNoLauncher) {
		t.Errorf("Expected ErrNoLauncher, got %v", err)
	}
}

func TestUnregisterRemovesTriggersAndCleansUp(t *testing.T) {
	r, launchers := newTestRegistry(t)

	r.Unregister("wikipedia")

	if _, ok := r.GetLauncher("wiki"); ok {
		t.Error("Trigger should be removed")
	}
	if _, _, q := r.FindLauncherForInput("?golang"); q != "" {
		t.Error("Custom prefix should be removed")
	}
	if !launchers["wikipedia"].cleaned {
		t.Error("Launcher should be cleaned up")
	}
}

func TestMatchPrefersPrefixMatches(t *testing.T) {
	r, _ := newTestRegistry(t)

	matches := r.Match("cl")
	if len(matches) == 0 || matches[0].Name() != "clipboard" {
		t.Fatalf("Expected clipboard first, got %v", matches)
	}

	if got := r.Match(""); len(got) != 4 {
		t.Errorf("Empty input should match every launcher, got %d", len(got))
	}
}
