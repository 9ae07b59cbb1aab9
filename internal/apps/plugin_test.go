package apps

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/chess10kp/winlaunch/internal/composition"
	"github.com/chess10kp/winlaunch/internal/config"
	"github.com/chess10kp/winlaunch/internal/launcher"
	"github.com/chess10kp/winlaunch/internal/settings"
)

func TestPlugin_ComposesLauncherHookAndCommands(t *testing.T) {
	cfg := config.Default()
	cfg.CacheDir = t.TempDir()
	cfg.DataDir = t.TempDir()
	cfg.Apps.ScanDirs = []string{populateScanDir(t)}
	cfg.Apps.WatchDirs = false

	c := composition.NewContainer()
	if err := c.Export(cfg); err != nil {
		t.Fatal(err)
	}
	if err := c.Export(settings.NewService(filepath.Join(t.TempDir(), "settings.json"))); err != nil {
		t.Fatal(err)
	}
	if err := c.Compose(plugin{}); err != nil {
		t.Fatalf("Compose failed: %v", err)
	}
	if err := c.Setup(context.Background(), 5*time.Second); err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	defer c.Close()

	launchers := composition.ResolveAll[launcher.Launcher](c)
	if len(launchers) != 1 || launchers[0].Name() != "apps" {
		t.Fatalf("Expected the apps launcher, got %v", launchers)
	}
	hooks := composition.ResolveAll[launcher.LauncherHook](c)
	if len(hooks) != 1 || hooks[0].Target() != "apps" {
		t.Errorf("Expected the frecency hook, got %v", hooks)
	}

	items, err := launchers[0].Populate(context.Background(), "firefox")
	if err != nil || len(items) != 1 {
		t.Errorf("Expected indexed Firefox after setup, got %v (err=%v)", items, err)
	}

	providers := composition.ResolveAll[launcher.CommandProvider](c)
	if len(providers) != 1 {
		t.Fatalf("Expected one command provider, got %d", len(providers))
	}
}

func TestCommands(t *testing.T) {
	f := newLauncherFixture(t, Application{DisplayName: "Terminal", FilePath: "/apps/terminal"})
	cmds, err := launcher.NewCommandSet(NewCommands(f.service, f.launcher))
	if err != nil {
		t.Fatal(err)
	}
	run := func(line string) (string, error) {
		cmd, args, ok := cmds.Lookup(line)
		if !ok {
			t.Fatalf("Command for %q not found", line)
		}
		return cmd.Run(context.Background(), args)
	}

	if _, err := run(`apps add {"displayName":"Editor","filePath":"/apps/editor"}`); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if _, err := run(`apps add {"displayName":"Editor","filePath":"/apps/editor"}`); !errors.Is(err, ErrDuplicate) {
		t.Errorf("Expected ErrDuplicate, got %v", err)
	}
	if _, err := run(`apps add {broken`); err == nil {
		t.Error("Expected error for malformed JSON")
	}

	out, err := run("apps list")
	if err != nil {
		t.Fatal(err)
	}
	var listed []Application
	if err := json.Unmarshal([]byte(out), &listed); err != nil {
		t.Fatalf("Expected JSON list, got %q", out)
	}
	if len(listed) != 2 {
		t.Errorf("Expected registered and discovered apps, got %v", listed)
	}

	if out, err := run("apps remove editor"); err != nil || !strings.Contains(out, "Editor") {
		t.Errorf("Expected removal of Editor, got %q (err=%v)", out, err)
	}
	if _, err := run("apps remove editor"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if _, err := run("apps bogus"); err == nil {
		t.Error("Expected error for unknown subcommand")
	}
}
