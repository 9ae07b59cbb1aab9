package everything

import (
	"context"
	"path/filepath"

	"github.com/chess10kp/winlaunch/internal/launcher"
)

// Launcher searches the file system through Everything.
type Launcher struct {
	service *Service
}

func NewLauncher(service *Service) *Launcher {
	return &Launcher{service: service}
}

func (l *Launcher) Name() string {
	return "everything"
}

func (l *Launcher) CommandTriggers() []string {
	return []string{"f", "file", "find"}
}

func (l *Launcher) Populate(ctx context.Context, query string) ([]*launcher.Item, error) {
	var items []*launcher.Item
	err := l.service.Search(ctx, query, func(path string) {
		title := filepath.Base(path)
		if title == "." || title == string(filepath.Separator) {
			title = path
		}
		items = append(items, &launcher.Item{
			Title:      title,
			Subtitle:   path,
			IconSource: path,
			Action:     launcher.NewOpenAction(path),
			Launcher:   l,
		})
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (l *Launcher) Execute(ctx context.Context, item *launcher.Item) error {
	return launcher.Perform(ctx, item.Action)
}

func (l *Launcher) Cleanup() {}
