package core

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"strings"
	"sync"
	"syscall"

	"go.uber.org/multierr"

	"github.com/chess10kp/winlaunch/internal/composition"
	"github.com/chess10kp/winlaunch/internal/config"
	"github.com/chess10kp/winlaunch/internal/event"
	"github.com/chess10kp/winlaunch/internal/iconcache"
	"github.com/chess10kp/winlaunch/internal/launcher"
	"github.com/chess10kp/winlaunch/internal/logging"
	"github.com/chess10kp/winlaunch/internal/settings"
)

// App hosts the plugins: it composes them, registers their launchers and
// serves the selector over IPC until asked to quit.
type App struct {
	config     *config.Config
	logs       *logging.Buffer
	catalog    *composition.Catalog
	container  *composition.Container
	registry   *launcher.Registry
	icons      *iconcache.Cache
	dispatcher *event.Dispatcher
	bus        *event.Bus
	selector   *Selector
	commands   *launcher.CommandSet
	ipc        *IPCServer

	stopDispatcher context.CancelFunc
	dispatcherDone chan struct{}
	quit           chan struct{}
	quitOnce       sync.Once
}

func NewApp(cfg *config.Config, logs *logging.Buffer, catalog *composition.Catalog) *App {
	if logs == nil {
		logs = logging.NewBuffer(cfg.Logging.BufferLines)
	}
	if catalog == nil {
		catalog = composition.DefaultCatalog()
	}

	dispatcher := event.NewDispatcher(0)
	bus := event.NewBus(dispatcher)
	registry := launcher.NewRegistry(cfg)
	icons := iconcache.New(cfg.Icons, nil)
	commands, _ := launcher.NewCommandSet()

	return &App{
		config:     cfg,
		logs:       logs,
		catalog:    catalog,
		registry:   registry,
		icons:      icons,
		dispatcher: dispatcher,
		bus:        bus,
		selector:   NewSelector(cfg, registry, icons, bus),
		commands:   commands,
		quit:       make(chan struct{}),
	}
}

func (a *App) Registry() *launcher.Registry { return a.registry }
func (a *App) Selector() *Selector          { return a.selector }
func (a *App) Bus() *event.Bus              { return a.bus }

// Start composes and sets up the plugins, then starts the dispatcher and
// the IPC server. Faulted plugins are logged and left out.
func (a *App) Start(ctx context.Context) error {
	a.container = composition.NewContainer()
	store := settings.NewService(a.config.SettingsFile)
	if err := multierr.Combine(
		a.container.Export(a.config),
		a.container.Export(store),
		a.container.Export(a.logs),
		a.container.Export(a.icons),
		a.container.Export(a.bus),
	); err != nil {
		return fmt.Errorf("failed to export host services: %w", err)
	}

	if err := a.container.Compose(a.catalog.Plugins()...); err != nil {
		log.Printf("[APP] Some plugins were skipped: %v", err)
	}
	if err := a.container.Setup(ctx, a.config.Setup.Timeout()); err != nil {
		for name, fault := range a.container.Faults() {
			log.Printf("[APP] Component %s is unavailable: %v", name, fault)
		}
	}

	a.registerLaunchers()

	commands, err := launcher.NewCommandSet(composition.ResolveAll[launcher.CommandProvider](a.container)...)
	if err != nil {
		log.Printf("[APP] Plugin commands disabled: %v", err)
		commands, _ = launcher.NewCommandSet()
	}
	a.commands = commands

	dispatchCtx, cancel := context.WithCancel(context.Background())
	a.stopDispatcher = cancel
	a.dispatcherDone = make(chan struct{})
	go func() {
		defer close(a.dispatcherDone)
		a.dispatcher.Run(dispatchCtx)
	}()

	a.ipc = NewIPCServer(a.config.SocketPath, a.HandleCommand)
	if err := a.ipc.Start(); err != nil {
		cancel()
		<-a.dispatcherDone
		return err
	}
	return nil
}

func (a *App) registerLaunchers() {
	for _, l := range composition.ResolveAll[launcher.Launcher](a.container) {
		if err := a.registry.Register(l); err != nil {
			log.Printf("[APP] Failed to register launcher '%s': %v", l.Name(), err)
			continue
		}
		log.Printf("[APP] Registered launcher: %s", l.Name())
	}
	for _, hook := range composition.ResolveAll[launcher.LauncherHook](a.container) {
		if err := a.registry.Hooks().Register(hook.Target(), hook); err != nil {
			log.Printf("[APP] Failed to register hook '%s': %v", hook.ID(), err)
		}
	}
}

// Run starts the app and blocks until SIGINT, SIGTERM, a quit command or
// the cancellation of ctx.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Start(ctx); err != nil {
		return err
	}
	log.Printf("[APP] Running with %d launchers", len(a.registry.All()))

	select {
	case <-ctx.Done():
		log.Printf("[APP] Received shutdown signal")
	case <-a.quit:
		log.Printf("[APP] Quit requested")
	}
	return a.Stop()
}

func (a *App) Quit() {
	a.quitOnce.Do(func() { close(a.quit) })
}

// Stop shuts down IPC and the dispatcher, then releases every plugin.
func (a *App) Stop() error {
	var errs error
	if a.ipc != nil {
		errs = multierr.Append(errs, a.ipc.Stop())
	}
	a.selector.Close()
	if a.stopDispatcher != nil {
		a.stopDispatcher()
		<-a.dispatcherDone
	}
	if a.container != nil {
		errs = multierr.Append(errs, a.container.Close())
	}
	a.registry.InvalidateCache()
	return errs
}

// HandleCommand runs one control command. Commands touching the selector
// run on the dispatcher.
func (a *App) HandleCommand(ctx context.Context, line string) (string, error) {
	name, args, _ := strings.Cut(strings.TrimSpace(line), " ")
	args = strings.TrimSpace(args)

	switch name {
	case "show":
		return "", a.dispatcher.Invoke(ctx, a.selector.Show)
	case "hide":
		return "", a.dispatcher.Invoke(ctx, a.selector.Hide)
	case "toggle":
		return "", a.dispatcher.Invoke(ctx, a.selector.Toggle)
	case "next", "prev":
		delta := 1
		if name == "prev" {
			delta = -1
		}
		var index int
		if err := a.dispatcher.Invoke(ctx, func() { index = a.selector.Move(delta) }); err != nil {
			return "", err
		}
		if index < 0 {
			return "", ErrNothingSelected
		}
		return a.results()
	case "query":
		if err := a.dispatcher.Invoke(ctx, func() { a.selector.SetQuery(args) }); err != nil {
			return "", err
		}
		if err := a.settle(ctx); err != nil {
			return "", err
		}
		return a.results()
	case "activate":
		var execErr error
		if err := a.dispatcher.Invoke(ctx, func() { execErr = a.selector.Activate(ctx) }); err != nil {
			return "", err
		}
		if execErr != nil {
			return "", execErr
		}
		return "", a.settle(ctx)
	case "results":
		return a.results()
	case "launchers":
		return a.launchers(), nil
	case "rebuild":
		return "", a.registry.Rebuild(ctx)
	case "stats":
		return a.stats()
	case "help":
		return a.usage(), nil
	case "quit":
		a.Quit()
		return "bye", nil
	}

	if cmd, cmdArgs, ok := a.commands.Lookup(line); ok {
		return cmd.Run(ctx, cmdArgs)
	}
	return "", fmt.Errorf("unknown command '%s'", name)
}

func (a *App) settle(ctx context.Context) error {
	select {
	case <-a.selector.Settled():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *App) results() (string, error) {
	data, err := json.Marshal(a.selector.State())
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (a *App) launchers() string {
	var lines []string
	for _, l := range a.registry.All() {
		line := l.Name()
		if triggers := l.CommandTriggers(); len(triggers) > 0 {
			line += "\t>" + strings.Join(triggers, " >")
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func (a *App) stats() (string, error) {
	data, err := json.Marshal(struct {
		Search *launcher.CacheStats `json:"search_cache,omitempty"`
		Icons  iconcache.Stats      `json:"icon_cache"`
		Hooks  launcher.HookStats   `json:"hooks"`
		Faults []string             `json:"faults,omitempty"`
	}{
		Search: a.registry.CacheStats(),
		Icons:  a.icons.Stats(),
		Hooks:  a.registry.Hooks().GetStats(),
		Faults: a.faults(),
	})
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (a *App) faults() []string {
	if a.container == nil {
		return nil
	}
	var out []string
	for name, err := range a.container.Faults() {
		out = append(out, fmt.Sprintf("%s: %v", name, err))
	}
	sort.Strings(out)
	return out
}

func (a *App) usage() string {
	lines := []string{
		"show", "hide", "toggle",
		"query <text>", "next", "prev", "activate",
		"results", "launchers", "rebuild", "stats", "quit",
	}
	lines = append(lines, a.commands.Usage()...)
	return strings.Join(lines, "\n")
}
