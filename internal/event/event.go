// Package event is the reactive plumbing between the shell and the domain
// services: typed subjects, a type-keyed bus and the schedulers that decide
// on which goroutine subscribers run.
package event

import (
	"log"
	"reflect"
	"sort"
	"sync"
)

// Observable is the read side of a Subject.
type Observable[T any] interface {
	// Subscribe registers fn and returns a func that removes it again.
	Subscribe(fn func(T)) (unsubscribe func())
}

// Subject fans values out to every current subscriber.
type Subject[T any] struct {
	mu        sync.RWMutex
	subs      map[int]func(T)
	next      int
	scheduler Scheduler
}

// NewSubject creates a subject delivering on the given scheduler. A nil
// scheduler delivers inline on the publishing goroutine.
func NewSubject[T any](scheduler Scheduler) *Subject[T] {
	if scheduler == nil {
		scheduler = Immediate{}
	}
	return &Subject[T]{
		subs:      make(map[int]func(T)),
		scheduler: scheduler,
	}
}

func (s *Subject[T]) Subscribe(fn func(T)) func() {
	s.mu.Lock()
	if s.subs == nil {
		s.subs = make(map[int]func(T))
	}
	id := s.next
	s.next++
	s.subs[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

// Publish delivers v to the subscribers present at call time, in
// subscription order.
func (s *Subject[T]) Publish(v T) {
	s.mu.RLock()
	ids := make([]int, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(T), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, s.subs[id])
	}
	scheduler := s.scheduler
	s.mu.RUnlock()

	if scheduler == nil {
		scheduler = Immediate{}
	}

	for _, fn := range fns {
		fn := fn
		scheduler.Schedule(func() {
			defer func() {
				if r := recover(); r != nil {
					log.Printf("[EVENT] Panic in %T subscriber: %v", v, r)
				}
			}()
			fn(v)
		})
	}
}

// SubscriberCount reports how many subscribers are attached.
func (s *Subject[T]) SubscriberCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}

// Bus is a type-keyed event aggregator. Each event type gets its own
// subject, created on first use.
type Bus struct {
	mu        sync.Mutex
	subjects  map[reflect.Type]any
	scheduler Scheduler
}

func NewBus(scheduler Scheduler) *Bus {
	return &Bus{
		subjects:  make(map[reflect.Type]any),
		scheduler: scheduler,
	}
}

// Topic returns the subject carrying events of type T.
func Topic[T any](b *Bus) *Subject[T] {
	key := reflect.TypeOf((*T)(nil)).Elem()

	b.mu.Lock()
	defer b.mu.Unlock()

	if s, ok := b.subjects[key]; ok {
		return s.(*Subject[T])
	}
	s := NewSubject[T](b.scheduler)
	b.subjects[key] = s
	return s
}

func Publish[T any](b *Bus, v T) {
	Topic[T](b).Publish(v)
}

func Subscribe[T any](b *Bus, fn func(T)) func() {
	return Topic[T](b).Subscribe(fn)
}
