package event

import (
	"context"
	"log"
	"sync"
)

// Scheduler decides where a unit of work runs.
type Scheduler interface {
	Schedule(fn func())
}

// Immediate runs work inline.
type Immediate struct{}

func (Immediate) Schedule(fn func()) { fn() }

// Dispatcher serialises work onto the single goroutine running Run. It
// plays the role of the UI thread: everything that touches shell state is
// scheduled here.
type Dispatcher struct {
	queue    chan func()
	done     chan struct{}
	stopOnce sync.Once
}

func NewDispatcher(queueSize int) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 256
	}
	return &Dispatcher{
		queue: make(chan func(), queueSize),
		done:  make(chan struct{}),
	}
}

// Schedule enqueues fn. Work scheduled after Run returned is dropped.
func (d *Dispatcher) Schedule(fn func()) {
	select {
	case <-d.done:
		log.Printf("[DISPATCHER] Dropping work scheduled after shutdown")
		return
	default:
	}

	select {
	case d.queue <- fn:
	case <-d.done:
		log.Printf("[DISPATCHER] Dropping work scheduled after shutdown")
	}
}

// Invoke schedules fn and waits until it ran.
func (d *Dispatcher) Invoke(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	d.Schedule(func() {
		defer close(done)
		fn()
	})

	select {
	case <-done:
		return nil
	case <-d.done:
		return context.Canceled
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run executes queued work until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			d.stopOnce.Do(func() { close(d.done) })
			d.drain()
			return
		case fn := <-d.queue:
			d.run(fn)
		}
	}
}

func (d *Dispatcher) drain() {
	for {
		select {
		case fn := <-d.queue:
			d.run(fn)
		default:
			return
		}
	}
}

func (d *Dispatcher) run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[DISPATCHER] Panic in scheduled work: %v", r)
		}
	}()
	fn()
}
