package launcher

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/chess10kp/winlaunch/internal/config"
)

// HookContext provides context information to hooks during execution
type HookContext struct {
	LauncherName string
	Query        string
	Config       *config.Config
}

// HookResult represents the result of hook execution
type HookResult struct {
	Handled         bool  // the hook executed the item itself
	StopPropagation bool  // skip the remaining hooks but still execute
	Error           error // abort execution
	ModifiedItem    *Item // replaces the item for later hooks and execution
}

// Hook runs before a launcher executes an item.
type Hook interface {
	ID() string
	Priority() int // Lower values run first
	OnExecute(ctx context.Context, hc *HookContext, item *Item) HookResult
	Cleanup()
}

// LauncherHook is a Hook contributed by a plugin for one launcher.
type LauncherHook interface {
	Hook
	Target() string
}

// HookStats tracks hook execution statistics
type HookStats struct {
	TotalExecutions      int64
	SuccessfulExecutions int64
	FailedExecutions     int64
	AverageExecutionTime time.Duration
}

// HookRegistry manages hooks for all launchers
type HookRegistry struct {
	hooks map[string][]Hook // launcherName -> sorted hooks
	stats HookStats
	mu    sync.RWMutex
}

func NewHookRegistry() *HookRegistry {
	return &HookRegistry{
		hooks: make(map[string][]Hook),
	}
}

// Register registers a hook for a launcher
func (r *HookRegistry) Register(launcherName string, hook Hook) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.hooks[launcherName] {
		if existing.ID() == hook.ID() {
			return fmt.Errorf("hook with ID '%s' already registered for launcher '%s'", hook.ID(), launcherName)
		}
	}

	hooks := append(r.hooks[launcherName], hook)
	sort.SliceStable(hooks, func(i, j int) bool {
		return hooks[i].Priority() < hooks[j].Priority()
	})
	r.hooks[launcherName] = hooks

	log.Printf("[HOOK-REGISTRY] Registered hook '%s' for launcher '%s'", hook.ID(), launcherName)
	return nil
}

// Unregister removes a hook from a launcher
func (r *HookRegistry) Unregister(launcherName, hookID string) {
	r.mu.Lock()
	var removed Hook
	hooks := r.hooks[launcherName]
	for i, hook := range hooks {
		if hook.ID() == hookID {
			removed = hook
			r.hooks[launcherName] = append(hooks[:i:i], hooks[i+1:]...)
			break
		}
	}
	r.mu.Unlock()

	// Cleanup outside the lock; hooks may call back into the registry
	if removed != nil {
		removed.Cleanup()
		log.Printf("[HOOK-REGISTRY] Unregistered hook '%s' from launcher '%s'", hookID, launcherName)
	}
}

// UnregisterAll removes all hooks for a launcher
func (r *HookRegistry) UnregisterAll(launcherName string) {
	r.mu.Lock()
	hooks := r.hooks[launcherName]
	delete(r.hooks, launcherName)
	r.mu.Unlock()

	for _, hook := range hooks {
		hook.Cleanup()
	}
	if len(hooks) > 0 {
		log.Printf("[HOOK-REGISTRY] Unregistered all hooks for launcher '%s'", launcherName)
	}
}

// GetHooks returns all hooks for a launcher in execution order
func (r *HookRegistry) GetHooks(launcherName string) []Hook {
	r.mu.RLock()
	defer r.mu.RUnlock()

	hooks := r.hooks[launcherName]
	result := make([]Hook, len(hooks))
	copy(result, hooks)
	return result
}

// ExecutePreExecuteHooks runs the launcher's hooks in priority order until
// one handles the item, stops propagation or fails. A panicking hook is
// logged and skipped.
func (r *HookRegistry) ExecutePreExecuteHooks(ctx context.Context, hc *HookContext, item *Item) HookResult {
	hooks := r.GetHooks(hc.LauncherName)

	var modified *Item
	for _, hook := range hooks {
		start := time.Now()
		result, err := r.executeSingle(ctx, hook, hc, item)
		r.recordExecution(time.Since(start), err == nil && result.Error == nil)

		if err != nil {
			log.Printf("[HOOK-REGISTRY] Error executing hook '%s': %v", hook.ID(), err)
			continue
		}
		if result.ModifiedItem != nil {
			item = result.ModifiedItem
			modified = item
		}
		if result.Error != nil {
			log.Printf("[HOOK-REGISTRY] Hook '%s' aborted execution: %v", hook.ID(), result.Error)
			return result
		}
		if result.Handled {
			log.Printf("[HOOK-REGISTRY] Hook '%s' handled execution", hook.ID())
			return result
		}
		if result.StopPropagation {
			log.Printf("[HOOK-REGISTRY] Hook '%s' stopped propagation", hook.ID())
			result.ModifiedItem = modified
			return result
		}
	}

	return HookResult{ModifiedItem: modified}
}

// executeSingle executes a single hook and recovers from panics
func (r *HookRegistry) executeSingle(ctx context.Context, hook Hook, hc *HookContext, item *Item) (result HookResult, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()

	return hook.OnExecute(ctx, hc, item), nil
}

func (r *HookRegistry) recordExecution(duration time.Duration, success bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := &r.stats
	s.TotalExecutions++
	if success {
		s.SuccessfulExecutions++
	} else {
		s.FailedExecutions++
	}

	if s.TotalExecutions == 1 {
		s.AverageExecutionTime = duration
	} else {
		// Weighted average favoring history
		currentAvg := float64(s.AverageExecutionTime)
		s.AverageExecutionTime = time.Duration(currentAvg*0.99 + float64(duration)*0.01)
	}
}

// GetStats returns a copy of the execution statistics
func (r *HookRegistry) GetStats() HookStats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.stats
}

// Cleanup cleans up all hooks
func (r *HookRegistry) Cleanup() {
	r.mu.Lock()
	all := r.hooks
	r.hooks = make(map[string][]Hook)
	r.mu.Unlock()

	for launcherName, hooks := range all {
		for _, hook := range hooks {
			hook.Cleanup()
		}
		log.Printf("[HOOK-REGISTRY] Cleaned up %d hooks for launcher '%s'", len(hooks), launcherName)
	}
}
