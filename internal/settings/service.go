// Package settings persists plugin settings as one JSON file holding an array
// of typed objects. Plugins bind a settings struct with Register and look it
// up by type with Get.
package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"reflect"
	"sync"

	"github.com/chess10kp/winlaunch/internal/event"
)

var (
	ErrNotRegistered = errors.New("settings type not registered")
	ErrDuplicateKey  = errors.New("settings key already registered by another type")
	ErrInvalidType   = errors.New("settings must be a pointer to a struct")
)

// PluginSettings is a plain struct persisted as part of the settings file.
// The key must be stable: it is the "type" field of the stored object.
type PluginSettings interface {
	SettingsKey() string
}

type envelope struct {
	Type     string          `json:"type"`
	Settings json.RawMessage `json:"settings"`
}

type Service struct {
	path    string
	mu      sync.RWMutex
	byType  map[reflect.Type]PluginSettings
	byKey   map[string]PluginSettings
	raw     map[string]json.RawMessage
	order   []string
	changes *event.Subject[string]
}

func NewService(path string) *Service {
	return &Service{
		path:    path,
		byType:  make(map[reflect.Type]PluginSettings),
		byKey:   make(map[string]PluginSettings),
		raw:     make(map[string]json.RawMessage),
		changes: event.NewSubject[string](nil),
	}
}

func (s *Service) Path() string {
	return s.path
}

// StartSystem loads the settings file. A corrupt file is moved aside and
// defaults are used so the rest of the application can still start.
func (s *Service) StartSystem(ctx context.Context) error {
	err := s.Load()
	if err == nil {
		return nil
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		backup := s.path + ".corrupt"
		log.Printf("[SETTINGS] Settings file is corrupt (%v), moving it to %s", err, backup)
		if renameErr := os.Rename(s.path, backup); renameErr != nil {
			log.Printf("[SETTINGS] Failed to move corrupt settings file: %v", renameErr)
		}
		return nil
	}
	return err
}

// Register binds a settings type, applying any stored values on top of the
// given defaults. Registering the same type twice returns the first value.
func Register[T PluginSettings](s *Service, defaults T) (T, error) {
	var zero T

	typ := reflect.TypeOf(defaults)
	if typ == nil || typ.Kind() != reflect.Ptr || typ.Elem().Kind() != reflect.Struct || reflect.ValueOf(defaults).IsNil() {
		return zero, fmt.Errorf("%w: got %T", ErrInvalidType, defaults)
	}

	key := defaults.SettingsKey()

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.byType[typ]; ok {
		return existing.(T), nil
	}
	if other, ok := s.byKey[key]; ok {
		return zero, fmt.Errorf("%w: %q (%T)", ErrDuplicateKey, key, other)
	}

	if data, ok := s.raw[key]; ok {
		if err := json.Unmarshal(data, defaults); err != nil {
			log.Printf("[SETTINGS] Stored settings for '%s' are unreadable, using defaults: %v", key, err)
		}
	} else {
		s.order = append(s.order, key)
	}

	s.byType[typ] = defaults
	s.byKey[key] = defaults

	log.Printf("[SETTINGS] Registered settings '%s' (%T)", key, defaults)
	return defaults, nil
}

// Get looks registered settings up by type.
func Get[T PluginSettings](s *Service) (T, error) {
	var zero T
	typ := reflect.TypeOf((*T)(nil)).Elem()

	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.byType[typ]
	if !ok {
		return zero, fmt.Errorf("%w: %v", ErrNotRegistered, typ)
	}
	return v.(T), nil
}

// Keys lists stored and registered keys in file order.
func (s *Service) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, len(s.order))
	copy(keys, s.order)
	return keys
}

// Load reads the settings file and applies it onto registered settings.
// A missing file is not an error.
func (s *Service) Load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Printf("[SETTINGS] No settings file at %s, using defaults", s.path)
			return nil
		}
		return fmt.Errorf("read settings: %w", err)
	}

	var entries []envelope
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("parse settings %s: %w", s.path, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, entry := range entries {
		if entry.Type == "" {
			log.Printf("[SETTINGS] Skipping settings entry without type")
			continue
		}
		if _, seen := s.raw[entry.Type]; !seen && s.byKey[entry.Type] == nil {
			s.order = append(s.order, entry.Type)
		}
		s.raw[entry.Type] = entry.Settings

		if v, ok := s.byKey[entry.Type]; ok {
			if err := json.Unmarshal(entry.Settings, v); err != nil {
				log.Printf("[SETTINGS] Stored settings for '%s' are unreadable, keeping current values: %v", entry.Type, err)
			}
		}
	}

	log.Printf("[SETTINGS] Loaded %d settings entries from %s", len(entries), s.path)
	return nil
}

// Save writes every registered settings object plus entries of plugins
// that are not loaded.
func (s *Service) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked()
}

// Update runs fn under the store lock and saves. Mutate settings values
// only inside Update.
func (s *Service) Update(v PluginSettings, fn func()) error {
	s.mu.Lock()
	fn()
	err := s.saveLocked()
	s.mu.Unlock()

	if err != nil {
		return err
	}
	s.changes.Publish(v.SettingsKey())
	return nil
}

// View runs fn under the read lock.
func (s *Service) View(fn func()) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn()
}

// Changes publishes the key of every settings object saved through Update.
func (s *Service) Changes() event.Observable[string] {
	return s.changes
}

func (s *Service) saveLocked() error {
	entries := make([]envelope, 0, len(s.order))
	for _, key := range s.order {
		if v, ok := s.byKey[key]; ok {
			data, err := json.Marshal(v)
			if err != nil {
				return fmt.Errorf("marshal settings '%s': %w", key, err)
			}
			s.raw[key] = data
			entries = append(entries, envelope{Type: key, Settings: data})
			continue
		}
		if data, ok := s.raw[key]; ok {
			entries = append(entries, envelope{Type: key, Settings: data})
		}
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("create settings directory: %w", err)
	}

	// Atomic write
	tempFile := s.path + ".tmp"
	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		return fmt.Errorf("write temp settings file: %w", err)
	}
	if err := os.Rename(tempFile, s.path); err != nil {
		return fmt.Errorf("rename temp settings file: %w", err)
	}

	return nil
}
