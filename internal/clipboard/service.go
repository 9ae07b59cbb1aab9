package clipboard

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/atotto/clipboard"
	"github.com/google/uuid"

	"github.com/chess10kp/winlaunch/internal/event"
	"github.com/chess10kp/winlaunch/internal/settings"
)

var ErrNotFound = errors.New("clipboard entry not found")

// Entry is one captured clipboard text.
type Entry struct {
	ID       string    `json:"id"`
	Text     string    `json:"text"`
	CopiedAt time.Time `json:"copiedAt"`
}

type ClipboardSettings struct {
	MaxEntries int     `json:"maxEntries"`
	Persist    bool    `json:"persist"`
	History    []Entry `json:"history,omitempty"`
}

func (*ClipboardSettings) SettingsKey() string {
	return "clipboard"
}

func DefaultSettings() *ClipboardSettings {
	return &ClipboardSettings{
		MaxEntries: 100,
		Persist:    true,
	}
}

// Service keeps the clipboard history, newest first. A text already in the
// history moves to the front instead of being added twice.
type Service struct {
	store    *settings.Service
	settings *ClipboardSettings

	mu      sync.RWMutex
	history []Entry
	changes *event.Subject[[]Entry]

	// commitMu orders snapshot, save and publish across concurrent commits.
	commitMu sync.Mutex

	writeText func(string) error
	now       func() time.Time
}

func NewService(store *settings.Service, s *ClipboardSettings) *Service {
	svc := &Service{
		store:     store,
		settings:  s,
		changes:   event.NewSubject[[]Entry](nil),
		writeText: clipboard.WriteAll,
		now:       time.Now,
	}

	store.View(func() {
		if s.Persist {
			svc.history = append(svc.history, s.History...)
		}
	})
	svc.history = svc.trim(svc.history)
	return svc
}

func (s *Service) Changes() event.Observable[[]Entry] {
	return s.changes
}

// Entries returns a copy of the history, newest first.
func (s *Service) Entries() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Entry, len(s.history))
	copy(out, s.history)
	return out
}

// Add records a copied text. Blank text is ignored.
func (s *Service) Add(text string) {
	if strings.TrimSpace(text) == "" {
		return
	}

	s.mu.Lock()
	if len(s.history) > 0 && s.history[0].Text == text {
		// Already the newest entry
		s.mu.Unlock()
		return
	}

	entry := Entry{ID: uuid.NewString(), Text: text, CopiedAt: s.now()}
	history := make([]Entry, 0, len(s.history)+1)
	for _, e := range s.history {
		if e.Text == text {
			entry.ID = e.ID
			continue
		}
		history = append(history, e)
	}
	s.history = s.trim(append([]Entry{entry}, history...))
	s.mu.Unlock()

	log.Printf("[CLIPBOARD] Captured %d characters", len(text))
	s.commit()
}

// Copy writes the entry's text back to the system clipboard.
func (s *Service) Copy(id string) error {
	entry, ok := s.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err := s.writeText(entry.Text); err != nil {
		return fmt.Errorf("write clipboard: %w", err)
	}
	s.Add(entry.Text)
	return nil
}

func (s *Service) Get(id string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.history {
		if e.ID == id {
			return e, true
		}
	}
	return Entry{}, false
}

func (s *Service) Remove(id string) error {
	s.mu.Lock()
	idx := -1
	for i, e := range s.history {
		if e.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	s.history = append(s.history[:idx:idx], s.history[idx+1:]...)
	s.mu.Unlock()

	s.commit()
	return nil
}

func (s *Service) Clear() {
	s.mu.Lock()
	s.history = nil
	s.mu.Unlock()

	log.Printf("[CLIPBOARD] History cleared")
	s.commit()
}

func (s *Service) trim(history []Entry) []Entry {
	var max int
	s.store.View(func() { max = s.settings.MaxEntries })
	if max > 0 && len(history) > max {
		return history[:max]
	}
	return history
}

// commit persists the history when enabled and publishes it.
func (s *Service) commit() {
	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	entries := s.Entries()

	var persist bool
	s.store.View(func() { persist = s.settings.Persist })
	if persist {
		err := s.store.Update(s.settings, func() {
			s.settings.History = entries
		})
		if err != nil {
			log.Printf("[CLIPBOARD] Failed to save history: %v", err)
		}
	}

	s.changes.Publish(entries)
}
