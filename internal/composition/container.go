// Package composition wires plugins together. Constructors are registered
// with Provide, ready values with Export; parameters are injected by type.
package composition

import (
	"errors"
	"fmt"
	"log"
	"reflect"
	"strings"
	"sync"

	"go.uber.org/multierr"
)

var (
	ErrNotFound           = errors.New("no export found")
	ErrAmbiguous          = errors.New("more than one export found")
	ErrCycle              = errors.New("dependency cycle")
	ErrFaulted            = errors.New("component faulted")
	ErrSetupTimeout       = errors.New("setup timed out")
	ErrInvalidConstructor = errors.New("invalid constructor")
)

var errorType = reflect.TypeOf((*error)(nil)).Elem()

type entry struct {
	plugin string
	typ    reflect.Type
	ctor   reflect.Value
	value  reflect.Value
	built  bool
	// building is set while the constructor's parameters are resolved.
	building bool
	fault    error
	// deps are single-value parameters; a faulted dep faults this entry.
	deps []*entry
}

func (e *entry) String() string {
	if e.plugin == "" {
		return e.typ.String()
	}
	return fmt.Sprintf("%s (%s)", e.typ, e.plugin)
}

// Container holds singleton exports keyed by type.
type Container struct {
	mu      sync.Mutex
	entries []*entry
	order   []*entry
	current string
}

func NewContainer() *Container {
	return &Container{}
}

// Provide registers a constructor. It must be a function returning one
// value, or a value and an error. Parameters are resolved from the
// container; a slice parameter []T receives every healthy export
// assignable to T.
func (c *Container) Provide(ctor any) error {
	fn := reflect.ValueOf(ctor)
	if fn.Kind() != reflect.Func {
		return fmt.Errorf("%w: %T is not a function", ErrInvalidConstructor, ctor)
	}

	ft := fn.Type()
	switch {
	case ft.NumOut() == 1 && ft.Out(0) != errorType:
	case ft.NumOut() == 2 && ft.Out(1) == errorType:
	default:
		return fmt.Errorf("%w: %s must return T or (T, error)", ErrInvalidConstructor, ft)
	}
	if ft.IsVariadic() {
		return fmt.Errorf("%w: %s is variadic", ErrInvalidConstructor, ft)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.add(&entry{typ: ft.Out(0), ctor: fn})
	return nil
}

// Export registers a ready instance.
func (c *Container) Export(v any) error {
	if v == nil {
		return fmt.Errorf("%w: cannot export nil", ErrInvalidConstructor)
	}
	value := reflect.ValueOf(v)

	c.mu.Lock()
	defer c.mu.Unlock()

	e := &entry{typ: value.Type(), value: value, built: true}
	c.add(e)
	c.order = append(c.order, e)
	return nil
}

func (c *Container) add(e *entry) {
	e.plugin = c.current
	c.entries = append(c.entries, e)
}

// Compose runs every plugin's Compose. A plugin that fails is logged and
// everything it registered is removed; the others are kept.
func (c *Container) Compose(plugins ...Plugin) error {
	var errs error
	for _, p := range plugins {
		if err := c.composeOne(p); err != nil {
			log.Printf("[COMPOSITION] Plugin '%s' failed to compose, skipping: %v", p.Name(), err)
			errs = multierr.Append(errs, fmt.Errorf("plugin %s: %w", p.Name(), err))
			continue
		}
		log.Printf("[COMPOSITION] Composed plugin: %s", p.Name())
	}
	return errs
}

func (c *Container) composeOne(p Plugin) (err error) {
	c.mu.Lock()
	mark := len(c.entries)
	orderMark := len(c.order)
	c.current = p.Name()
	c.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}

		c.mu.Lock()
		c.current = ""
		if err != nil {
			c.entries = c.entries[:mark]
			c.order = c.order[:orderMark]
		}
		c.mu.Unlock()
	}()

	return p.Compose(c)
}

// Resolve returns the single healthy export assignable to T.
func Resolve[T any](c *Container) (T, error) {
	var zero T
	target := reflect.TypeOf((*T)(nil)).Elem()

	c.mu.Lock()
	defer c.mu.Unlock()

	e, err := c.resolveOne(target, nil)
	if err != nil {
		return zero, err
	}
	return e.value.Interface().(T), nil
}

// ResolveAll returns every healthy export assignable to T in registration
// order. Faulted exports are skipped.
func ResolveAll[T any](c *Container) []T {
	target := reflect.TypeOf((*T)(nil)).Elem()

	c.mu.Lock()
	defer c.mu.Unlock()

	var out []T
	for _, e := range c.resolveMany(target, nil) {
		out = append(out, e.value.Interface().(T))
	}
	return out
}

// Faults reports every faulted component.
func (c *Container) Faults() map[string]error {
	c.mu.Lock()
	defer c.mu.Unlock()

	faults := make(map[string]error)
	for _, e := range c.entries {
		if e.fault != nil {
			faults[e.String()] = e.fault
		}
	}
	return faults
}

func (c *Container) candidates(target reflect.Type) []*entry {
	var out []*entry
	for _, e := range c.entries {
		if e.typ.AssignableTo(target) {
			out = append(out, e)
		}
	}
	return out
}

func (c *Container) resolveOne(target reflect.Type, path []*entry) (*entry, error) {
	var healthy []*entry
	var faulted error
	for _, e := range c.candidates(target) {
		if err := c.build(e, path); err != nil {
			if errors.Is(err, ErrCycle) {
				return nil, err
			}
			faulted = err
			continue
		}
		healthy = append(healthy, e)
	}

	switch {
	case len(healthy) == 1:
		return healthy[0], nil
	case len(healthy) > 1:
		names := make([]string, len(healthy))
		for i, e := range healthy {
			names[i] = e.String()
		}
		return nil, fmt.Errorf("%w for %s: %s", ErrAmbiguous, target, strings.Join(names, ", "))
	case faulted != nil:
		return nil, fmt.Errorf("%w: %s: %w", ErrFaulted, target, faulted)
	default:
		return nil, fmt.Errorf("%w for %s", ErrNotFound, target)
	}
}

func (c *Container) resolveMany(target reflect.Type, path []*entry) []*entry {
	var out []*entry
	for _, e := range c.candidates(target) {
		if err := c.build(e, path); err != nil {
			continue
		}
		out = append(out, e)
	}
	return out
}

// build constructs e if needed. Called with c.mu held.
func (c *Container) build(e *entry, path []*entry) error {
	if e.fault != nil {
		return e.fault
	}
	if e.built {
		return nil
	}
	if e.building {
		names := make([]string, 0, len(path)+1)
		for _, p := range path {
			names = append(names, p.typ.String())
		}
		names = append(names, e.typ.String())
		return fmt.Errorf("%w: %s", ErrCycle, strings.Join(names, " -> "))
	}

	e.building = true
	defer func() { e.building = false }()
	path = append(path, e)

	ft := e.ctor.Type()
	args := make([]reflect.Value, ft.NumIn())
	var deps []*entry
	for i := 0; i < ft.NumIn(); i++ {
		param := ft.In(i)

		if param.Kind() == reflect.Slice {
			elems := c.resolveMany(param.Elem(), path)
			slice := reflect.MakeSlice(param, 0, len(elems))
			for _, dep := range elems {
				slice = reflect.Append(slice, dep.value)
			}
			args[i] = slice
			continue
		}

		dep, err := c.resolveOne(param, path)
		if err != nil {
			if errors.Is(err, ErrCycle) {
				return err
			}
			return c.fail(e, fmt.Errorf("resolve %s: %w", param, err))
		}
		deps = append(deps, dep)
		args[i] = dep.value
	}

	out, err := c.call(e, args)
	if err != nil {
		return c.fail(e, err)
	}

	e.value = out
	e.deps = deps
	e.built = true
	c.order = append(c.order, e)
	log.Printf("[COMPOSITION] Built %s", e)
	return nil
}

func (c *Container) call(e *entry, args []reflect.Value) (out reflect.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("constructor panic: %v", r)
		}
	}()

	results := e.ctor.Call(args)
	if len(results) == 2 && !results[1].IsNil() {
		return reflect.Value{}, results[1].Interface().(error)
	}
	if isNil(results[0]) {
		return reflect.Value{}, fmt.Errorf("constructor for %s returned nil", e.typ)
	}
	return results[0], nil
}

func (c *Container) fail(e *entry, err error) error {
	e.fault = err
	log.Printf("[COMPOSITION] %s faulted: %v", e, err)
	return err
}

// propagateFaults marks every built entry that depends on a faulted entry
// as faulted. Called with c.mu held.
func (c *Container) propagateFaults() {
	for changed := true; changed; {
		changed = false
		for _, e := range c.entries {
			if e.fault != nil {
				continue
			}
			for _, dep := range e.deps {
				if dep.fault != nil {
					c.fail(e, fmt.Errorf("%w: depends on %s", ErrFaulted, dep))
					changed = true
					break
				}
			}
		}
	}
}

func isNil(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return v.IsNil()
	}
	return !v.IsValid()
}
