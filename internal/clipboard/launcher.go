package clipboard

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/chess10kp/winlaunch/internal/launcher"
)

const (
	entryAction   = "clipboard-entry"
	maxTitleRunes = 80
)

// Launcher lists the clipboard history. Selecting an entry copies it back.
type Launcher struct {
	service *Service
	now     func() time.Time
}

func NewLauncher(service *Service) *Launcher {
	return &Launcher{service: service, now: time.Now}
}

func (l *Launcher) Name() string {
	return "clipboard"
}

func (l *Launcher) CommandTriggers() []string {
	return []string{"cb", "clip", "clipboard", "history"}
}

func (l *Launcher) Populate(ctx context.Context, query string) ([]*launcher.Item, error) {
	q := strings.ToLower(strings.TrimSpace(query))

	var items []*launcher.Item
	for _, entry := range l.service.Entries() {
		if q != "" && !strings.Contains(strings.ToLower(entry.Text), q) {
			continue
		}
		items = append(items, &launcher.Item{
			Title:    summarize(entry.Text),
			Subtitle: fmt.Sprintf("%s · %d chars", ago(l.now().Sub(entry.CopiedAt)), utf8.RuneCountInString(entry.Text)),
			Icon:     "edit-paste",
			Action:   launcher.NewCustomAction(entryAction, entry.ID),
			Launcher: l,
		})
	}
	return items, ctx.Err()
}

func (l *Launcher) Execute(ctx context.Context, item *launcher.Item) error {
	action, ok := item.Action.(*launcher.CustomAction)
	if !ok || action.DataType != entryAction {
		return launcher.Perform(ctx, item.Action)
	}
	id, ok := action.Payload.(string)
	if !ok {
		return fmt.Errorf("invalid clipboard entry id %v", action.Payload)
	}
	return l.service.Copy(id)
}

func (l *Launcher) Cleanup() {}

// summarize flattens whitespace and truncates to one title line.
func summarize(text string) string {
	s := strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(s) <= maxTitleRunes {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxTitleRunes-1]) + "…"
}

func ago(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
