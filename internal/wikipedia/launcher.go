package wikipedia

import (
	"context"

	"github.com/chess10kp/winlaunch/internal/launcher"
)

type Launcher struct {
	service *Service
}

func NewLauncher(service *Service) *Launcher {
	return &Launcher{service: service}
}

func (l *Launcher) Name() string {
	return "wikipedia"
}

func (l *Launcher) CommandTriggers() []string {
	return []string{"w", "wiki"}
}

func (l *Launcher) Populate(ctx context.Context, query string) ([]*launcher.Item, error) {
	suggestions, err := l.service.Search(ctx, query)
	if err != nil {
		return nil, err
	}

	items := make([]*launcher.Item, 0, len(suggestions))
	for _, s := range suggestions {
		subtitle := s.Description
		if subtitle == "" {
			subtitle = s.URL
		}
		items = append(items, &launcher.Item{
			Title:    s.Title,
			Subtitle: subtitle,
			Icon:     "text-html",
			Action:   launcher.NewURLAction(s.URL),
			Launcher: l,
		})
	}
	return items, nil
}

func (l *Launcher) Execute(ctx context.Context, item *launcher.Item) error {
	return launcher.Perform(ctx, item.Action)
}

func (l *Launcher) Cleanup() {}
