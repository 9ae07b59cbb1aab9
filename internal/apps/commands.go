package apps

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/chess10kp/winlaunch/internal/launcher"
)

// Commands exposes the application list over IPC.
type Commands struct {
	service  *Service
	launcher *Launcher
}

func NewCommands(service *Service, l *Launcher) *Commands {
	return &Commands{service: service, launcher: l}
}

func (c *Commands) Commands() []launcher.Command {
	return []launcher.Command{{
		Name:  "apps",
		Usage: "apps list|registered|add <json>|remove <name>|rescan",
		Run:   c.run,
	}}
}

func (c *Commands) run(ctx context.Context, args string) (string, error) {
	sub, rest, _ := strings.Cut(args, " ")
	rest = strings.TrimSpace(rest)

	switch sub {
	case "list":
		return marshal(c.launcher.Applications())

	case "registered":
		return marshal(c.service.List())

	case "add":
		var app Application
		if err := json.Unmarshal([]byte(rest), &app); err != nil {
			return "", fmt.Errorf("invalid application JSON: %w", err)
		}
		if err := c.service.Add(app); err != nil {
			return "", err
		}
		return "added " + app.DisplayName, nil

	case "remove":
		for _, app := range c.service.List() {
			if strings.EqualFold(app.DisplayName, rest) {
				if err := c.service.Remove(app); err != nil {
					return "", err
				}
				return "removed " + app.DisplayName, nil
			}
		}
		return "", fmt.Errorf("%w: %s", ErrNotFound, rest)

	case "rescan":
		if err := c.launcher.Rebuild(ctx); err != nil {
			return "", err
		}
		return fmt.Sprintf("indexed %d applications", len(c.launcher.index.Apps())), nil
	}

	return "", fmt.Errorf("unknown apps command '%s'", sub)
}

func marshal(v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
