package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default config should be valid: %v", err)
	}
}

func TestLoadConfigMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Launcher.DefaultLauncher != "apps" {
		t.Errorf("Expected default launcher 'apps', got '%s'", cfg.Launcher.DefaultLauncher)
	}
	if cfg.Setup.Timeout() != 10*time.Second {
		t.Errorf("Expected 10s setup timeout, got %v", cfg.Setup.Timeout())
	}
}

func TestLoadConfigKeepsDefaultsForUnsetFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	data := `
[launcher.search]
max_results = 25

[setup]
timeout_seconds = 3
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadAndValidateConfig(path)
	if err != nil {
		t.Fatalf("LoadAndValidateConfig failed: %v", err)
	}

	if cfg.Launcher.Search.MaxResults != 25 {
		t.Errorf("Expected max_results 25, got %d", cfg.Launcher.Search.MaxResults)
	}
	if cfg.Setup.TimeoutSeconds != 3 {
		t.Errorf("Expected timeout 3, got %d", cfg.Setup.TimeoutSeconds)
	}
	if cfg.Icons.CacheSize != 500 {
		t.Errorf("Expected default icon cache size 500, got %d", cfg.Icons.CacheSize)
	}
}

func TestLoadConfigInvalidTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[launcher\nmax ="), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadConfig(path); err == nil {
		t.Error("Expected parse error for malformed TOML")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("WINLAUNCH_SOCKET", "/tmp/custom.sock")
	t.Setenv("WINLAUNCH_SETUP_TIMEOUT", "42")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.SocketPath != "/tmp/custom.sock" {
		t.Errorf("Expected socket override, got '%s'", cfg.SocketPath)
	}
	if cfg.Setup.TimeoutSeconds != 42 {
		t.Errorf("Expected setup timeout override 42, got %d", cfg.Setup.TimeoutSeconds)
	}
}

func TestValidateRejectsOutOfRange(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero max results", func(c *Config) { c.Launcher.Search.MaxResults = 0 }},
		{"setup timeout too long", func(c *Config) { c.Setup.TimeoutSeconds = 1000 }},
		{"tiny icon cache", func(c *Config) { c.Icons.CacheSize = 1 }},
		{"no extensions", func(c *Config) { c.Apps.Extensions = nil }},
		{"empty default launcher", func(c *Config) { c.Launcher.DefaultLauncher = "" }},
		{"small log buffer", func(c *Config) { c.Logging.BufferLines = 1 }},
	}

	for _, tc := range testCases {
		cfg := Default()
		tc.mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected validation error", tc.name)
		}
	}
}

func TestSaveConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	cfg := Default()
	cfg.Launcher.DefaultLauncher = "everything"

	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if loaded.Launcher.DefaultLauncher != "everything" {
		t.Errorf("Expected default launcher 'everything', got '%s'", loaded.Launcher.DefaultLauncher)
	}
}
