package clipboard

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/chess10kp/winlaunch/internal/launcher"
	"github.com/chess10kp/winlaunch/internal/settings"
)

func newTestService(t *testing.T, s *ClipboardSettings) (*Service, *settings.Service, *[]string) {
	t.Helper()
	store := settings.NewService(filepath.Join(t.TempDir(), "settings.json"))
	registered, err := settings.Register(store, s)
	if err != nil {
		t.Fatal(err)
	}

	svc := NewService(store, registered)
	var written []string
	svc.writeText = func(text string) error {
		written = append(written, text)
		return nil
	}
	return svc, store, &written
}

func texts(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Text
	}
	return out
}

func TestService_AddNewestFirst(t *testing.T) {
	svc, _, _ := newTestService(t, DefaultSettings())

	svc.Add("one")
	svc.Add("two")
	svc.Add("   ")
	svc.Add("three")

	got := texts(svc.Entries())
	want := []string{"three", "two", "one"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("Expected %v, got %v", want, got)
	}
	for _, e := range svc.Entries() {
		if e.ID == "" {
			t.Error("Expected every entry to have an ID")
		}
	}
}

func TestService_AddDeduplicates(t *testing.T) {
	svc, _, _ := newTestService(t, DefaultSettings())

	svc.Add("one")
	svc.Add("two")
	id := svc.Entries()[1].ID
	svc.Add("one")

	entries := svc.Entries()
	if got := texts(entries); len(got) != 2 || got[0] != "one" {
		t.Fatalf("Expected [one two], got %v", got)
	}
	if entries[0].ID != id {
		t.Errorf("Expected re-copied entry to keep ID %s, got %s", id, entries[0].ID)
	}
}

func TestService_Bounded(t *testing.T) {
	svc, _, _ := newTestService(t, &ClipboardSettings{MaxEntries: 2})

	svc.Add("a")
	svc.Add("b")
	svc.Add("c")

	if got := texts(svc.Entries()); strings.Join(got, ",") != "c,b" {
		t.Errorf("Expected [c b], got %v", got)
	}
}

func TestService_CopyWritesClipboard(t *testing.T) {
	svc, _, written := newTestService(t, DefaultSettings())

	svc.Add("first")
	svc.Add("second")
	first := svc.Entries()[1]

	if err := svc.Copy(first.ID); err != nil {
		t.Fatalf("Copy failed: %v", err)
	}
	if len(*written) != 1 || (*written)[0] != "first" {
		t.Errorf("Expected 'first' written, got %v", *written)
	}
	if svc.Entries()[0].Text != "first" {
		t.Error("Expected copied entry to move to the front")
	}

	if err := svc.Copy("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestService_RemoveAndClear(t *testing.T) {
	svc, _, _ := newTestService(t, DefaultSettings())

	svc.Add("a")
	svc.Add("b")
	if err := svc.Remove(svc.Entries()[0].ID); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if got := texts(svc.Entries()); len(got) != 1 || got[0] != "a" {
		t.Errorf("Expected [a], got %v", got)
	}
	if err := svc.Remove("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}

	svc.Clear()
	if len(svc.Entries()) != 0 {
		t.Error("Expected empty history after clear")
	}
}

func TestService_Persistence(t *testing.T) {
	svc, store, _ := newTestService(t, DefaultSettings())
	svc.Add("remember me")

	reloaded := settings.NewService(store.Path())
	if err := reloaded.Load(); err != nil {
		t.Fatal(err)
	}
	s, err := settings.Register(reloaded, DefaultSettings())
	if err != nil {
		t.Fatal(err)
	}

	again := NewService(reloaded, s)
	if got := texts(again.Entries()); len(got) != 1 || got[0] != "remember me" {
		t.Errorf("Expected persisted history, got %v", got)
	}
}

func TestService_NoPersistence(t *testing.T) {
	svc, store, _ := newTestService(t, &ClipboardSettings{MaxEntries: 10, Persist: false})
	svc.Add("secret")

	reloaded := settings.NewService(store.Path())
	if err := reloaded.Load(); err != nil {
		t.Fatal(err)
	}
	s, err := settings.Register(reloaded, &ClipboardSettings{})
	if err != nil {
		t.Fatal(err)
	}
	if len(s.History) != 0 {
		t.Errorf("Expected no persisted history, got %v", s.History)
	}
}

func TestService_PublishesChanges(t *testing.T) {
	svc, _, _ := newTestService(t, DefaultSettings())

	var counts []int
	svc.Changes().Subscribe(func(entries []Entry) { counts = append(counts, len(entries)) })

	svc.Add("a")
	svc.Add("a")
	svc.Add("b")
	svc.Clear()

	if len(counts) != 3 || counts[0] != 1 || counts[1] != 2 || counts[2] != 0 {
		t.Errorf("Expected notifications [1 2 0], got %v", counts)
	}
}

func TestService_ConcurrentCommitsKeepNewestSnapshot(t *testing.T) {
	svc, store, _ := newTestService(t, DefaultSettings())

	var mu sync.Mutex
	var last []Entry
	svc.Changes().Subscribe(func(entries []Entry) {
		mu.Lock()
		last = entries
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		i := i
		wg.Add(2)
		go func() {
			defer wg.Done()
			svc.Add(fmt.Sprintf("text %d", i))
		}()
		go func() {
			defer wg.Done()
			if i%5 == 0 {
				svc.Clear()
				return
			}
			if entries := svc.Entries(); len(entries) > 0 {
				svc.Remove(entries[len(entries)-1].ID)
			}
		}()
	}
	wg.Wait()

	want := strings.Join(texts(svc.Entries()), ",")

	mu.Lock()
	published := strings.Join(texts(last), ",")
	mu.Unlock()
	if published != want {
		t.Errorf("Expected last published history %q, got %q", want, published)
	}

	var persisted []Entry
	s, err := settings.Get[*ClipboardSettings](store)
	if err != nil {
		t.Fatal(err)
	}
	store.View(func() { persisted = append([]Entry(nil), s.History...) })
	if got := strings.Join(texts(persisted), ","); got != want {
		t.Errorf("Expected persisted history %q, got %q", want, got)
	}
}

func TestLauncher_PopulateAndExecute(t *testing.T) {
	svc, _, written := newTestService(t, DefaultSettings())
	svc.Add("git status")
	svc.Add("Hello\n   World")
	svc.Add(strings.Repeat("x", 200))

	l := NewLauncher(svc)
	now := time.Now()
	l.now = func() time.Time { return now.Add(2 * time.Hour) }

	items, err := l.Populate(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 3 {
		t.Fatalf("Expected 3 items, got %d", len(items))
	}
	if got := []rune(items[0].Title); len(got) != maxTitleRunes {
		t.Errorf("Expected truncated title of %d runes, got %d", maxTitleRunes, len(got))
	}
	if items[1].Title != "Hello World" {
		t.Errorf("Expected whitespace flattened, got %q", items[1].Title)
	}
	if !strings.HasPrefix(items[1].Subtitle, "2h ago") {
		t.Errorf("Expected relative time in subtitle, got %q", items[1].Subtitle)
	}

	filtered, err := l.Populate(context.Background(), "GIT")
	if err != nil || len(filtered) != 1 {
		t.Fatalf("Expected 1 filtered item, got %d (err=%v)", len(filtered), err)
	}
	if err := l.Execute(context.Background(), filtered[0]); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if len(*written) != 1 || (*written)[0] != "git status" {
		t.Errorf("Expected 'git status' written, got %v", *written)
	}
}

func TestLauncher_Triggers(t *testing.T) {
	svc, _, _ := newTestService(t, DefaultSettings())
	l := NewLauncher(svc)

	want := map[string]bool{"cb": true, "clip": true, "clipboard": true, "history": true}
	for _, trigger := range l.CommandTriggers() {
		delete(want, trigger)
	}
	if len(want) != 0 {
		t.Errorf("Missing triggers %v", want)
	}
}

func TestCommands(t *testing.T) {
	svc, _, written := newTestService(t, DefaultSettings())
	svc.Add("a")
	svc.Add("b")

	cmds, err := launcher.NewCommandSet(NewCommands(svc))
	if err != nil {
		t.Fatal(err)
	}
	cmd, args, ok := cmds.Lookup("clipboard copy " + svc.Entries()[1].ID)
	if !ok {
		t.Fatal("Expected clipboard command")
	}
	if _, err := cmd.Run(context.Background(), args); err != nil {
		t.Fatalf("copy failed: %v", err)
	}
	if len(*written) != 1 || (*written)[0] != "a" {
		t.Errorf("Expected 'a' written, got %v", *written)
	}

	if _, err := cmd.Run(context.Background(), "clear"); err != nil {
		t.Fatal(err)
	}
	if len(svc.Entries()) != 0 {
		t.Error("Expected history cleared")
	}
	if _, err := cmd.Run(context.Background(), "remove nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}
