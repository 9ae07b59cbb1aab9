package logviewer

import (
	"context"
	"regexp"
	"strings"

	"go.uber.org/multierr"

	"github.com/chess10kp/winlaunch/internal/composition"
	"github.com/chess10kp/winlaunch/internal/launcher"
	"github.com/chess10kp/winlaunch/internal/logging"
	"github.com/chess10kp/winlaunch/internal/settings"
)

type LogViewerSettings struct {
	MaxLines int `json:"maxLines"`
}

func (*LogViewerSettings) SettingsKey() string {
	return "logviewer"
}

// timestampPrefix matches the standard logger's date, time and optional
// microseconds.
var timestampPrefix = regexp.MustCompile(`^(\d{4}/\d{2}/\d{2} \d{2}:\d{2}:\d{2}(?:\.\d+)?) `)

// Launcher shows recent log lines, newest first. Selecting a line copies it.
type Launcher struct {
	buffer   *logging.Buffer
	store    *settings.Service
	settings *LogViewerSettings
}

func NewLauncher(buffer *logging.Buffer, store *settings.Service, s *LogViewerSettings) *Launcher {
	return &Launcher{buffer: buffer, store: store, settings: s}
}

func (l *Launcher) Name() string {
	return "logs"
}

func (l *Launcher) CommandTriggers() []string {
	return []string{"log", "logs"}
}

func (l *Launcher) Populate(ctx context.Context, query string) ([]*launcher.Item, error) {
	var maxLines int
	l.store.View(func() { maxLines = l.settings.MaxLines })

	q := strings.ToLower(strings.TrimSpace(query))
	lines := l.buffer.Lines()

	var items []*launcher.Item
	for i := len(lines) - 1; i >= 0; i-- {
		if maxLines > 0 && len(items) >= maxLines {
			break
		}
		line := lines[i]
		if q != "" && !strings.Contains(strings.ToLower(line), q) {
			continue
		}
		items = append(items, lineToItem(line, l))
	}
	return items, ctx.Err()
}

func lineToItem(line string, l *Launcher) *launcher.Item {
	title, subtitle := line, ""
	if m := timestampPrefix.FindStringSubmatch(line); m != nil {
		title = line[len(m[0]):]
		subtitle = m[1]
	}
	return &launcher.Item{
		Title:    title,
		Subtitle: subtitle,
		Icon:     "text-x-log",
		Action:   launcher.NewCopyAction(line),
		Launcher: l,
	}
}

func (l *Launcher) Execute(ctx context.Context, item *launcher.Item) error {
	return launcher.Perform(ctx, item.Action)
}

func (l *Launcher) Cleanup() {}

type plugin struct{}

func init() {
	if err := composition.RegisterPlugin(plugin{}); err != nil {
		panic(err)
	}
}

func (plugin) Name() string { return "logviewer" }

func (plugin) Compose(c *composition.Container) error {
	return multierr.Combine(
		c.Provide(func(store *settings.Service) (*LogViewerSettings, error) {
			return settings.Register(store, &LogViewerSettings{MaxLines: 200})
		}),
		c.Provide(NewLauncher),
	)
}
