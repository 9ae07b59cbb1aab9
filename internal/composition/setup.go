package composition

import (
	"context"
	"fmt"
	"io"
	"log"
	"reflect"
	"time"

	"go.uber.org/multierr"
)

// SystemService is started in the first setup phase, before any plugin
// service is constructed.
type SystemService interface {
	StartSystem(ctx context.Context) error
}

// RequiresSetup is set up in the second phase, after every system service
// has started.
type RequiresSetup interface {
	Setup(ctx context.Context) error
}

var systemServiceType = reflect.TypeOf((*SystemService)(nil)).Elem()

type setupTask struct {
	entry *entry
	run   func(ctx context.Context) error
}

type setupResult struct {
	entry *entry
	err   error
}

// Setup builds every export and runs the two setup phases. Within a phase
// tasks run in parallel under one timeout. Faulted components, and
// everything depending on them, are excluded from later resolution. The
// returned error aggregates every fault; the container stays usable.
func (c *Container) Setup(ctx context.Context, timeout time.Duration) error {
	start := time.Now()
	var errs error

	errs = multierr.Append(errs, c.buildWhere(func(e *entry) bool {
		return e.typ.Implements(systemServiceType)
	}))
	errs = multierr.Append(errs, c.runPhase(ctx, "system", timeout, func(v any) func(context.Context) error {
		if s, ok := v.(SystemService); ok {
			return s.StartSystem
		}
		return nil
	}))

	errs = multierr.Append(errs, c.buildWhere(func(*entry) bool { return true }))
	errs = multierr.Append(errs, c.runPhase(ctx, "setup", timeout, func(v any) func(context.Context) error {
		if s, ok := v.(RequiresSetup); ok {
			return s.Setup
		}
		return nil
	}))

	log.Printf("[COMPOSITION] Setup finished in %v with %d faults", time.Since(start), len(multierr.Errors(errs)))
	return errs
}

func (c *Container) buildWhere(match func(*entry) bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs error
	for _, e := range c.entries {
		if e.built || e.fault != nil || !match(e) {
			continue
		}
		if err := c.build(e, nil); err != nil {
			if e.fault == nil {
				c.fail(e, err)
			}
			errs = multierr.Append(errs, fmt.Errorf("build %s: %w", e, err))
		}
	}
	c.propagateFaults()
	return errs
}

func (c *Container) runPhase(ctx context.Context, phase string, timeout time.Duration, taskFor func(any) func(context.Context) error) error {
	c.mu.Lock()
	var tasks []setupTask
	seen := make(map[any]bool)
	for _, e := range c.order {
		if e.fault != nil {
			continue
		}
		v := e.value.Interface()
		if !firstSeen(seen, v) {
			continue
		}
		if run := taskFor(v); run != nil {
			tasks = append(tasks, setupTask{entry: e, run: run})
		}
	}
	c.mu.Unlock()

	if len(tasks) == 0 {
		return nil
	}

	log.Printf("[COMPOSITION] Running %d %s tasks (timeout %v)", len(tasks), phase, timeout)

	phaseCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	results := make(chan setupResult, len(tasks))
	for _, task := range tasks {
		go func(task setupTask) {
			defer func() {
				if r := recover(); r != nil {
					results <- setupResult{entry: task.entry, err: fmt.Errorf("panic: %v", r)}
				}
			}()
			results <- setupResult{entry: task.entry, err: task.run(phaseCtx)}
		}(task)
	}

	pending := make(map[*entry]bool, len(tasks))
	for _, task := range tasks {
		pending[task.entry] = true
	}

	var errs error
	fault := func(e *entry, err error) {
		errs = multierr.Append(errs, fmt.Errorf("%s %s: %w", phase, e, err))
		c.mu.Lock()
		c.fail(e, err)
		c.mu.Unlock()
	}

wait:
	for len(pending) > 0 {
		select {
		case res := <-results:
			delete(pending, res.entry)
			if res.err != nil {
				fault(res.entry, res.err)
			}
		case <-phaseCtx.Done():
			for e := range pending {
				fault(e, fmt.Errorf("%w after %v", ErrSetupTimeout, timeout))
			}
			break wait
		}
	}

	c.mu.Lock()
	c.propagateFaults()
	c.mu.Unlock()

	return errs
}

// Close releases built exports in reverse build order. Values implementing
// io.Closer are closed; values with a Cleanup method are cleaned up.
func (c *Container) Close() error {
	c.mu.Lock()
	order := make([]*entry, len(c.order))
	copy(order, c.order)
	c.mu.Unlock()

	var errs error
	seen := make(map[any]bool)
	for i := len(order) - 1; i >= 0; i-- {
		e := order[i]
		v := e.value.Interface()
		if !firstSeen(seen, v) {
			continue
		}
		errs = multierr.Append(errs, closeValue(e, v))
	}
	return errs
}

// firstSeen reports whether v was not seen before. The check uses the
// dynamic value; values that cannot be map keys are never deduplicated.
func firstSeen(seen map[any]bool, v any) bool {
	if v == nil || !reflect.ValueOf(v).Comparable() {
		return true
	}
	if seen[v] {
		return false
	}
	seen[v] = true
	return true
}

func closeValue(e *entry, v any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("close %s: panic: %v", e, r)
		}
	}()

	switch c := v.(type) {
	case io.Closer:
		if err := c.Close(); err != nil {
			log.Printf("[COMPOSITION] Failed to close %s: %v", e, err)
			return fmt.Errorf("close %s: %w", e, err)
		}
	case interface{ Cleanup() }:
		c.Cleanup()
	}
	return nil
}
