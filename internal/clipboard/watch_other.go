//go:build !windows

package clipboard

import (
	"log"
	"time"
)

const defaultPollInterval = 500 * time.Millisecond

type platformWatcher struct {
	interval time.Duration
	stopCh   chan struct{}
	done     chan struct{}
}

func (w *Watcher) start() error {
	if w.interval <= 0 {
		w.interval = defaultPollInterval
	}
	w.stopCh = make(chan struct{})
	w.done = make(chan struct{})

	// Whatever is on the clipboard already is not a new copy
	last, _ := w.read()
	go w.poll(last, w.stopCh, w.done)
	return nil
}

func (w *Watcher) poll(last string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	failing := false
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			text, err := w.read()
			if err != nil {
				if !failing {
					log.Printf("[CLIPBOARD] Failed to read clipboard: %v", err)
				}
				failing = true
				continue
			}
			failing = false
			if text != last {
				last = text
				w.service.Add(text)
			}
		}
	}
}

func (w *Watcher) stop() error {
	close(w.stopCh)
	<-w.done
	return nil
}
