package clipboard

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/atotto/clipboard"
)

var ErrUnsupported = errors.New("clipboard access is not supported on this system")

// Watcher records clipboard changes in the service. On Windows it joins
// the clipboard viewer chain; elsewhere it polls.
type Watcher struct {
	service *Service
	read    func() (string, error)

	mu      sync.Mutex
	running bool

	platformWatcher
}

func NewWatcher(service *Service) *Watcher {
	return &Watcher{
		service: service,
		read:    clipboard.ReadAll,
	}
}

// Setup starts watching.
func (w *Watcher) Setup(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}
	if clipboard.Unsupported {
		return ErrUnsupported
	}
	if err := w.start(); err != nil {
		return err
	}
	w.running = true
	log.Printf("[CLIPBOARD] Watching clipboard")
	return nil
}

// Close stops watching.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return nil
	}
	w.running = false
	return w.stop()
}

func (w *Watcher) capture() {
	text, err := w.read()
	if err != nil {
		log.Printf("[CLIPBOARD] Failed to read clipboard: %v", err)
		return
	}
	w.service.Add(text)
}
