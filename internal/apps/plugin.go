package apps

import (
	"go.uber.org/multierr"

	"github.com/chess10kp/winlaunch/internal/composition"
	"github.com/chess10kp/winlaunch/internal/config"
	"github.com/chess10kp/winlaunch/internal/settings"
)

type plugin struct{}

func init() {
	if err := composition.RegisterPlugin(plugin{}); err != nil {
		panic(err)
	}
}

func (plugin) Name() string { return "apps" }

func (plugin) Compose(c *composition.Container) error {
	return multierr.Combine(
		c.Provide(func(store *settings.Service) (*ApplicationSettings, error) {
			return settings.Register(store, &ApplicationSettings{})
		}),
		c.Provide(NewService),
		c.Provide(NewIndex),
		c.Provide(func(cfg *config.Config) (*FrecencyTracker, error) {
			return NewFrecencyTracker(cfg.DataDir)
		}),
		c.Provide(NewLauncher),
		c.Provide(NewFrecencyHook),
		c.Provide(NewCommands),
	)
}
