package everything

import (
	"go.uber.org/multierr"

	"github.com/chess10kp/winlaunch/internal/composition"
	"github.com/chess10kp/winlaunch/internal/settings"
)

type plugin struct{}

func init() {
	if err := composition.RegisterPlugin(plugin{}); err != nil {
		panic(err)
	}
}

func (plugin) Name() string { return "everything" }

func (plugin) Compose(c *composition.Container) error {
	return multierr.Combine(
		c.Provide(func(store *settings.Service) (*EverythingSettings, error) {
			return settings.Register(store, DefaultSettings())
		}),
		c.Provide(NewService),
		c.Provide(NewLauncher),
	)
}
