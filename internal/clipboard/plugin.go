package clipboard

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/multierr"

	"github.com/chess10kp/winlaunch/internal/composition"
	"github.com/chess10kp/winlaunch/internal/launcher"
	"github.com/chess10kp/winlaunch/internal/settings"
)

type plugin struct{}

func init() {
	if err := composition.RegisterPlugin(plugin{}); err != nil {
		panic(err)
	}
}

func (plugin) Name() string { return "clipboard" }

func (plugin) Compose(c *composition.Container) error {
	return multierr.Combine(
		c.Provide(func(store *settings.Service) (*ClipboardSettings, error) {
			return settings.Register(store, DefaultSettings())
		}),
		c.Provide(NewService),
		c.Provide(NewWatcher),
		c.Provide(NewLauncher),
		c.Provide(NewCommands),
	)
}

// Commands exposes the history over IPC.
type Commands struct {
	service *Service
}

func NewCommands(service *Service) *Commands {
	return &Commands{service: service}
}

func (c *Commands) Commands() []launcher.Command {
	return []launcher.Command{{
		Name:  "clipboard",
		Usage: "clipboard list|copy <id>|remove <id>|clear",
		Run:   c.run,
	}}
}

func (c *Commands) run(ctx context.Context, args string) (string, error) {
	var sub, id string
	fmt.Sscan(args, &sub, &id)

	switch sub {
	case "list":
		data, err := json.MarshalIndent(c.service.Entries(), "", "  ")
		return string(data), err
	case "copy":
		if err := c.service.Copy(id); err != nil {
			return "", err
		}
		return "copied", nil
	case "remove":
		if err := c.service.Remove(id); err != nil {
			return "", err
		}
		return "removed", nil
	case "clear":
		c.service.Clear()
		return "cleared", nil
	}
	return "", fmt.Errorf("unknown clipboard command '%s'", sub)
}
