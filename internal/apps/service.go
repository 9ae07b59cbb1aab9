package apps

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/chess10kp/winlaunch/internal/event"
	"github.com/chess10kp/winlaunch/internal/launcher"
	"github.com/chess10kp/winlaunch/internal/settings"
)

var (
	ErrDuplicate = errors.New("application already registered")
	ErrNotFound  = errors.New("application not registered")
)

// Service manages the user-registered application list. Every change is
// saved through the settings store and published on Changes.
type Service struct {
	store    *settings.Service
	settings *ApplicationSettings
	changes  *event.Subject[[]Application]
	perform  func(context.Context, launcher.ActionData) error
}

func NewService(store *settings.Service, s *ApplicationSettings) *Service {
	return &Service{
		store:    store,
		settings: s,
		changes:  event.NewSubject[[]Application](nil),
		perform:  launcher.Perform,
	}
}

// List returns a copy of the registered applications.
func (s *Service) List() []Application {
	var out []Application
	s.store.View(func() {
		out = make([]Application, len(s.settings.Applications))
		copy(out, s.settings.Applications)
	})
	return out
}

func (s *Service) Changes() event.Observable[[]Application] {
	return s.changes
}

// Add registers an application. An equal application is rejected.
func (s *Service) Add(app Application) error {
	if err := app.Validate(); err != nil {
		return err
	}

	var dup bool
	err := s.store.Update(s.settings, func() {
		for _, existing := range s.settings.Applications {
			if existing.Equal(app) {
				dup = true
				return
			}
		}
		s.settings.Applications = append(s.settings.Applications, app)
	})
	if dup {
		return fmt.Errorf("%w: %s", ErrDuplicate, app.DisplayName)
	}
	if err != nil {
		return fmt.Errorf("save applications: %w", err)
	}

	log.Printf("[APPS] Added application '%s' (%s)", app.DisplayName, app.FilePath)
	s.changes.Publish(s.List())
	return nil
}

// Remove unregisters the application equal to app.
func (s *Service) Remove(app Application) error {
	found := false
	err := s.store.Update(s.settings, func() {
		kept := s.settings.Applications[:0:0]
		for _, existing := range s.settings.Applications {
			if !found && existing.Equal(app) {
				found = true
				continue
			}
			kept = append(kept, existing)
		}
		s.settings.Applications = kept
	})
	if !found {
		return fmt.Errorf("%w: %s", ErrNotFound, app.DisplayName)
	}
	if err != nil {
		return fmt.Errorf("save applications: %w", err)
	}

	log.Printf("[APPS] Removed application '%s'", app.DisplayName)
	s.changes.Publish(s.List())
	return nil
}

// Update replaces old with updated.
func (s *Service) Update(old, updated Application) error {
	if err := updated.Validate(); err != nil {
		return err
	}

	found, dup := false, false
	err := s.store.Update(s.settings, func() {
		idx := -1
		for i, existing := range s.settings.Applications {
			if existing.Equal(old) {
				idx = i
				break
			}
		}
		if idx < 0 {
			return
		}
		for i, existing := range s.settings.Applications {
			if i != idx && existing.Equal(updated) {
				dup = true
				return
			}
		}
		found = true
		s.settings.Applications[idx] = updated
	})
	switch {
	case dup:
		return fmt.Errorf("%w: %s", ErrDuplicate, updated.DisplayName)
	case !found:
		return fmt.Errorf("%w: %s", ErrNotFound, old.DisplayName)
	case err != nil:
		return fmt.Errorf("save applications: %w", err)
	}

	log.Printf("[APPS] Updated application '%s'", updated.DisplayName)
	s.changes.Publish(s.List())
	return nil
}

// Launch starts the application.
func (s *Service) Launch(ctx context.Context, app Application) error {
	if err := app.Validate(); err != nil {
		return err
	}
	log.Printf("[APPS] Launching '%s'", app.DisplayName)
	return s.perform(ctx, launcher.NewLaunchAction(app.FilePath, app.Arguments...))
}
