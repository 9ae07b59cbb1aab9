package apps

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/errgroup"

	"github.com/chess10kp/winlaunch/internal/config"
	"github.com/chess10kp/winlaunch/internal/event"
)

const (
	indexVersion   = "1"
	rescanDebounce = 500 * time.Millisecond
	parseWorkers   = 8
)

type indexFile struct {
	Apps      []Application `json:"apps"`
	Timestamp string        `json:"timestamp"`
	Version   string        `json:"version"`
}

// Index discovers launchable files in the configured directories and keeps
// a JSON cache of the result.
type Index struct {
	cfg        config.AppsConfig
	cacheFile  string
	extensions map[string]bool

	mu         sync.RWMutex
	apps       []Application
	generation int

	changes *event.Subject[[]Application]

	watchMu sync.Mutex
	watcher *fsnotify.Watcher
	stop    chan struct{}
	stopped chan struct{}
}

func NewIndex(cfg *config.Config) *Index {
	exts := make(map[string]bool)
	for _, ext := range cfg.Apps.Extensions {
		ext = strings.ToLower(ext)
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		exts[ext] = true
	}

	return &Index{
		cfg:        cfg.Apps,
		cacheFile:  cfg.IndexPath(),
		extensions: exts,
		changes:    event.NewSubject[[]Application](nil),
	}
}

// Setup loads the index and starts watching the scan directories.
func (x *Index) Setup(ctx context.Context) error {
	if _, err := x.Load(ctx, false); err != nil {
		return err
	}
	if x.cfg.WatchDirs {
		if err := x.Watch(); err != nil {
			// Watching is best effort; the index is still usable
			log.Printf("[APPS-INDEX] Failed to watch scan directories: %v", err)
		}
	}
	return nil
}

// Apps returns a copy of the discovered applications.
func (x *Index) Apps() []Application {
	x.mu.RLock()
	defer x.mu.RUnlock()

	apps := make([]Application, len(x.apps))
	copy(apps, x.apps)
	return apps
}

// Generation increases every time the application list is replaced.
func (x *Index) Generation() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.generation
}

func (x *Index) Changes() event.Observable[[]Application] {
	return x.changes
}

// Load reads the cached index, or scans when forced or the cache is stale.
func (x *Index) Load(ctx context.Context, force bool) ([]Application, error) {
	loadStart := time.Now()

	if !force {
		if apps, ok := x.loadFromCache(); ok {
			x.replace(apps)
			log.Printf("[APPS-INDEX] Loaded %d apps from cache in %v", len(apps), time.Since(loadStart))
			return apps, nil
		}
	}

	apps, err := x.Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("scan applications: %w", err)
	}
	x.replace(apps)

	if err := x.saveToCache(apps); err != nil {
		// Continue even if cache save fails
		log.Printf("[APPS-INDEX] Warning: failed to save cache: %v", err)
	}

	log.Printf("[APPS-INDEX] Loaded %d apps from disk in %v", len(apps), time.Since(loadStart))
	return apps, nil
}

func (x *Index) replace(apps []Application) {
	x.mu.Lock()
	x.apps = apps
	x.generation++
	x.mu.Unlock()

	x.changes.Publish(x.Apps())
}

func (x *Index) loadFromCache() ([]Application, bool) {
	data, err := os.ReadFile(x.cacheFile)
	if err != nil {
		log.Printf("[APPS-INDEX] Cache miss: %v", err)
		return nil, false
	}

	var cache indexFile
	if err := json.Unmarshal(data, &cache); err != nil {
		log.Printf("[APPS-INDEX] Cache miss: failed to unmarshal cache file: %v", err)
		return nil, false
	}
	if cache.Version != indexVersion {
		log.Printf("[APPS-INDEX] Cache miss: version %q", cache.Version)
		return nil, false
	}

	cacheTime, err := time.Parse(time.RFC3339, cache.Timestamp)
	if err != nil {
		return nil, false
	}
	age := time.Since(cacheTime)
	maxAge := time.Duration(x.cfg.IndexMaxAgeHours) * time.Hour
	if age >= maxAge {
		log.Printf("[APPS-INDEX] Cache miss: cache expired (age: %v, max: %v)", age, maxAge)
		return nil, false
	}

	return cache.Apps, true
}

func (x *Index) saveToCache(apps []Application) error {
	if err := os.MkdirAll(filepath.Dir(x.cacheFile), 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	data, err := json.MarshalIndent(indexFile{
		Apps:      apps,
		Timestamp: time.Now().Format(time.RFC3339),
		Version:   indexVersion,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cache data: %w", err)
	}

	// Atomic write
	tempFile := x.cacheFile + ".tmp"
	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp cache file: %w", err)
	}
	if err := os.Rename(tempFile, x.cacheFile); err != nil {
		return fmt.Errorf("failed to rename temp cache file: %w", err)
	}
	return nil
}

// Scan walks the scan directories and parses every matching file in
// parallel. Unreadable directories and files are skipped.
func (x *Index) Scan(ctx context.Context) ([]Application, error) {
	start := time.Now()
	if x.cfg.MaxScanTime > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(x.cfg.MaxScanTime*float64(time.Second)))
		defer cancel()
	}

	files, _ := x.collect()
	log.Printf("[APPS-INDEX] Found %d candidate files, parsing in parallel", len(files))

	results := make([]*Application, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parseWorkers)
	for i, path := range files {
		i, path := i, path
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			app, err := parseFile(path)
			if err != nil {
				log.Printf("[APPS-INDEX] Skipping %s: %v", path, err)
				return nil
			}
			results[i] = app
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var apps []Application
	for _, app := range results {
		if app == nil || seen[app.key()] {
			continue
		}
		seen[app.key()] = true
		apps = append(apps, *app)
	}

	sort.Slice(apps, func(i, j int) bool {
		return strings.ToLower(apps[i].DisplayName) < strings.ToLower(apps[j].DisplayName)
	})

	log.Printf("[APPS-INDEX] Scanned %d applications in %v", len(apps), time.Since(start))
	return apps, nil
}

// collect lists candidate files and every directory below the scan roots.
func (x *Index) collect() (files, dirs []string) {
	seen := make(map[string]bool)
	for _, root := range x.cfg.ScanDirs {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if d != nil && d.IsDir() && path != root {
					return fs.SkipDir
				}
				return nil
			}
			if d.IsDir() {
				dirs = append(dirs, path)
				return nil
			}
			if !x.extensions[strings.ToLower(filepath.Ext(path))] || seen[path] {
				return nil
			}
			seen[path] = true
			files = append(files, path)
			return nil
		})
		if err != nil {
			log.Printf("[APPS-INDEX] Failed to walk %s: %v", root, err)
		}
	}
	return files, dirs
}

func parseFile(path string) (*Application, error) {
	ext := strings.ToLower(filepath.Ext(path))
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	switch ext {
	case ".desktop":
		return parseDesktopFile(path)
	case ".url":
		return parseURLFile(path, name)
	}

	if strings.Contains(strings.ToLower(name), "uninstall") {
		return nil, fmt.Errorf("uninstaller")
	}
	return &Application{
		DisplayName: name,
		FilePath:    path,
		IconPath:    path,
	}, nil
}

// parseDesktopFile parses the [Desktop Entry] group of a .desktop file
func parseDesktopFile(path string) (*Application, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var name, execLine, icon, comment string
	hidden := false
	inEntry := false

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip comments and empty lines
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "[") {
			inEntry = line == "[Desktop Entry]"
			continue
		}
		if !inEntry {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), "\"")

		switch key {
		case "Name":
			name = value
		case "Exec":
			execLine = value
		case "Icon":
			icon = value
		case "Comment":
			comment = value
		case "Type":
			if value != "Application" {
				hidden = true
			}
		case "NoDisplay", "Hidden":
			if strings.EqualFold(value, "true") {
				hidden = true
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if hidden {
		return nil, fmt.Errorf("hidden entry")
	}
	if name == "" || execLine == "" {
		return nil, fmt.Errorf("invalid desktop file: missing Name or Exec")
	}

	program, args := splitExec(execLine)
	return &Application{
		DisplayName: name,
		FilePath:    program,
		Arguments:   args,
		Description: comment,
		IconPath:    icon,
	}, nil
}

// splitExec drops desktop-entry field codes (%f, %U, ...) from an Exec line.
func splitExec(execLine string) (string, []string) {
	var fields []string
	for _, f := range strings.Fields(execLine) {
		if strings.HasPrefix(f, "%") {
			continue
		}
		fields = append(fields, f)
	}
	if len(fields) == 0 {
		return "", nil
	}
	return fields[0], fields[1:]
}

// parseURLFile reads an internet shortcut. The shortcut itself is launched;
// its target becomes the description.
func parseURLFile(path, name string) (*Application, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	app := &Application{DisplayName: name, FilePath: path}
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(scanner.Text()), "=")
		if !ok {
			continue
		}
		switch strings.TrimSpace(key) {
		case "URL":
			app.Description = strings.TrimSpace(value)
		case "IconFile":
			app.IconPath = strings.TrimSpace(value)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if app.Description == "" {
		return nil, fmt.Errorf("internet shortcut without URL")
	}
	return app, nil
}

// Watch rescans whenever a candidate file or directory below the scan roots
// changes. Bursts of events are coalesced.
func (x *Index) Watch() error {
	x.watchMu.Lock()
	defer x.watchMu.Unlock()

	if x.watcher != nil {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	_, dirs := x.collect()
	for _, dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			log.Printf("[APPS-INDEX] Failed to watch %s: %v", dir, err)
		}
	}

	x.watcher = watcher
	x.stop = make(chan struct{})
	x.stopped = make(chan struct{})
	go x.watchLoop(watcher, x.stop, x.stopped)

	log.Printf("[APPS-INDEX] Watching %d directories", len(dirs))
	return nil
}

func (x *Index) watchLoop(watcher *fsnotify.Watcher, stop <-chan struct{}, stopped chan<- struct{}) {
	defer close(stopped)

	var debounce *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-stop:
			if debounce != nil {
				debounce.Stop()
			}
			return

		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !x.relevant(ev) {
				continue
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					watcher.Add(ev.Name)
				}
			}
			if debounce == nil {
				debounce = time.NewTimer(rescanDebounce)
			} else {
				debounce.Reset(rescanDebounce)
			}
			fire = debounce.C

		case <-fire:
			fire = nil
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			if _, err := x.Load(ctx, true); err != nil {
				log.Printf("[APPS-INDEX] Rescan failed: %v", err)
			}
			cancel()

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Printf("[APPS-INDEX] Watcher error: %v", err)
		}
	}
}

func (x *Index) relevant(ev fsnotify.Event) bool {
	if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	ext := strings.ToLower(filepath.Ext(ev.Name))
	return ext == "" || x.extensions[ext]
}

// Close stops watching.
func (x *Index) Close() error {
	x.watchMu.Lock()
	defer x.watchMu.Unlock()

	if x.watcher == nil {
		return nil
	}
	close(x.stop)
	err := x.watcher.Close()
	<-x.stopped
	x.watcher = nil
	return err
}
