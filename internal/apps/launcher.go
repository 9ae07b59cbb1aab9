package apps

import (
	"context"
	"crypto/md5"
	"fmt"
	"log"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sahilm/fuzzy"

	"github.com/chess10kp/winlaunch/internal/config"
	"github.com/chess10kp/winlaunch/internal/launcher"
)

// Launcher searches registered and discovered applications. It is the
// default launcher for queries without a trigger.
type Launcher struct {
	config   *config.Config
	service  *Service
	index    *Index
	frecency *FrecencyTracker
}

func NewLauncher(cfg *config.Config, service *Service, index *Index, frecency *FrecencyTracker) *Launcher {
	return &Launcher{
		config:   cfg,
		service:  service,
		index:    index,
		frecency: frecency,
	}
}

func (l *Launcher) Name() string {
	return "apps"
}

func (l *Launcher) CommandTriggers() []string {
	return []string{"apps"}
}

// Applications returns registered applications followed by discovered
// ones. Discovered applications sharing a registered file path are hidden.
func (l *Launcher) Applications() []Application {
	registered := l.service.List()
	discovered := l.index.Apps()

	seen := make(map[string]bool, len(registered)+len(discovered))
	all := make([]Application, 0, len(registered)+len(discovered))
	for _, group := range [][]Application{registered, discovered} {
		for _, app := range group {
			if seen[app.key()] {
				continue
			}
			seen[app.key()] = true
			all = append(all, app)
		}
	}
	return all
}

func (l *Launcher) Populate(ctx context.Context, query string) ([]*launcher.Item, error) {
	populateStart := time.Now()
	all := l.Applications()

	var ranked []Application
	if q := normalize(query); q == "" {
		ranked = l.byFrecency(all)
	} else if l.config.Launcher.Search.FuzzySearch {
		ranked = l.fuzzySearch(q, all)
	} else {
		ranked = l.substringSearch(q, all)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if maxResults := l.config.Launcher.Search.MaxResults; maxResults > 0 && len(ranked) > maxResults {
		ranked = ranked[:maxResults]
	}

	items := make([]*launcher.Item, 0, len(ranked))
	for _, app := range ranked {
		items = append(items, l.appToItem(app))
	}

	log.Printf("[APP-LAUNCHER] Populate for query='%s' returned %d of %d apps in %v", query, len(items), len(all), time.Since(populateStart))
	return items, nil
}

// byFrecency lists launched applications by frecency, then the rest by name.
func (l *Launcher) byFrecency(all []Application) []Application {
	byKey := make(map[string]Application, len(all))
	for _, app := range all {
		byKey[app.key()] = app
	}

	ranked := make([]Application, 0, len(all))
	used := make(map[string]bool)
	for _, m := range l.frecency.GetTopKeys(0) {
		if app, ok := byKey[m.Key]; ok {
			ranked = append(ranked, app)
			used[m.Key] = true
		}
	}

	rest := make([]Application, 0, len(all)-len(ranked))
	for _, app := range all {
		if !used[app.key()] {
			rest = append(rest, app)
		}
	}
	sort.SliceStable(rest, func(i, j int) bool {
		return normalize(rest[i].DisplayName) < normalize(rest[j].DisplayName)
	})
	return append(ranked, rest...)
}

type appSource []string

func (s appSource) String(i int) string { return s[i] }
func (s appSource) Len() int            { return len(s) }

// fuzzySearch ranks prefix matches first, then by fuzzy score, then by
// frecency and finally by name.
func (l *Launcher) fuzzySearch(query string, all []Application) []Application {
	names := make(appSource, len(all))
	for i, app := range all {
		names[i] = normalize(app.DisplayName)
	}

	matches := fuzzy.FindFrom(query, names)

	type candidate struct {
		app      Application
		name     string
		prefix   bool
		score    int
		frecency float64
	}
	candidates := make([]candidate, 0, len(matches))
	for _, m := range matches {
		app := all[m.Index]
		candidates = append(candidates, candidate{
			app:      app,
			name:     m.Str,
			prefix:   strings.HasPrefix(m.Str, query),
			score:    m.Score,
			frecency: l.frecency.GetFrecencyScore(app.key()),
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.prefix != b.prefix {
			return a.prefix
		}
		if a.score != b.score {
			return a.score > b.score
		}
		if a.frecency != b.frecency {
			return a.frecency > b.frecency
		}
		return a.name < b.name
	})

	ranked := make([]Application, len(candidates))
	for i, c := range candidates {
		ranked[i] = c.app
	}
	return ranked
}

// substringSearch matches the query inside names and descriptions.
func (l *Launcher) substringSearch(query string, all []Application) []Application {
	var prefix, contains []Application
	for _, app := range all {
		name := normalize(app.DisplayName)
		switch {
		case strings.HasPrefix(name, query):
			prefix = append(prefix, app)
		case strings.Contains(name, query), strings.Contains(normalize(app.Description), query):
			contains = append(contains, app)
		}
	}

	byFrecency := func(apps []Application) {
		sort.SliceStable(apps, func(i, j int) bool {
			fi := l.frecency.GetFrecencyScore(apps[i].key())
			fj := l.frecency.GetFrecencyScore(apps[j].key())
			if fi != fj {
				return fi > fj
			}
			return normalize(apps[i].DisplayName) < normalize(apps[j].DisplayName)
		})
	}
	byFrecency(prefix)
	byFrecency(contains)
	return append(prefix, contains...)
}

func (l *Launcher) appToItem(app Application) *launcher.Item {
	item := &launcher.Item{
		Title:    app.DisplayName,
		Subtitle: app.Description,
		Action:   launcher.NewLaunchAction(app.FilePath, app.Arguments...),
		Launcher: l,
	}
	if item.Subtitle == "" {
		item.Subtitle = app.FilePath
	}

	// Desktop entries name themed icons; anything else is a file to extract from
	switch {
	case app.IconPath != "" && !strings.ContainsAny(app.IconPath, `/\`) && filepath.Ext(app.IconPath) == "":
		item.Icon = app.IconPath
	case app.IconPath != "":
		item.IconSource = app.IconPath
	default:
		item.IconSource = app.FilePath
	}
	return item
}

func (l *Launcher) Execute(ctx context.Context, item *launcher.Item) error {
	action, ok := item.Action.(*launcher.LaunchAction)
	if !ok {
		return fmt.Errorf("unexpected action %T for application '%s'", item.Action, item.Title)
	}
	return l.service.Launch(ctx, Application{
		DisplayName: item.Title,
		FilePath:    action.Path,
		Arguments:   action.Args,
	})
}

// Rebuild rescans the application directories.
func (l *Launcher) Rebuild(ctx context.Context) error {
	apps, err := l.index.Load(ctx, true)
	if err != nil {
		return fmt.Errorf("failed to reload apps: %w", err)
	}
	log.Printf("[APP-LAUNCHER] Rebuilt: loaded %d apps", len(apps))
	return nil
}

// Version changes whenever the application lists or launch statistics
// change, so cached searches are dropped.
func (l *Launcher) Version() string {
	registered := l.service.List()
	records := l.frecency.GetAllRecords()

	launches := 0
	for _, r := range records {
		launches += r.LaunchCount
	}

	h := md5.New()
	fmt.Fprintf(h, "%d:%d:%d:%d", l.index.Generation(), len(registered), len(records), launches)
	for _, app := range registered {
		fmt.Fprintf(h, ":%s", app.key())
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

func (l *Launcher) Cleanup() {}

// frecencyHook records launches of application items before they run.
type frecencyHook struct {
	frecency *FrecencyTracker
}

func NewFrecencyHook(frecency *FrecencyTracker) launcher.LauncherHook {
	return &frecencyHook{frecency: frecency}
}

func (h *frecencyHook) ID() string     { return "apps-frecency" }
func (h *frecencyHook) Priority() int  { return 100 }
func (h *frecencyHook) Target() string { return "apps" }
func (h *frecencyHook) Cleanup()       {}

func (h *frecencyHook) OnExecute(ctx context.Context, hc *launcher.HookContext, item *launcher.Item) launcher.HookResult {
	if action, ok := item.Action.(*launcher.LaunchAction); ok {
		h.frecency.RecordLaunch(Application{FilePath: action.Path}.key())
	}
	return launcher.HookResult{}
}
