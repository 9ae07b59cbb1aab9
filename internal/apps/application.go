package apps

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"
)

// Application is a launchable program, shortcut or document.
type Application struct {
	DisplayName string   `json:"displayName"`
	FilePath    string   `json:"filePath"`
	Arguments   []string `json:"arguments,omitempty"`
	Description string   `json:"description,omitempty"`
	IconPath    string   `json:"iconPath,omitempty"`
}

// Equal compares every field.
func (a Application) Equal(b Application) bool {
	return a.DisplayName == b.DisplayName &&
		a.FilePath == b.FilePath &&
		slices.Equal(a.Arguments, b.Arguments) &&
		a.Description == b.Description &&
		a.IconPath == b.IconPath
}

func (a Application) Validate() error {
	if strings.TrimSpace(a.DisplayName) == "" {
		return fmt.Errorf("application has no display name")
	}
	if strings.TrimSpace(a.FilePath) == "" {
		return fmt.Errorf("application '%s' has no file path", a.DisplayName)
	}
	return nil
}

// key identifies an application for de-duplication and usage tracking.
func (a Application) key() string {
	return strings.ToLower(filepath.Clean(a.FilePath))
}

// ApplicationSettings holds the applications the user registered by hand.
type ApplicationSettings struct {
	Applications []Application `json:"applications"`
}

func (*ApplicationSettings) SettingsKey() string {
	return "apps.applications"
}
