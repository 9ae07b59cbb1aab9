package config

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/pelletier/go-toml/v2"
)

const DefaultPath = "~/.config/winlaunch/config.toml"

type Config struct {
	AppName      string         `toml:"app_name"`
	SocketPath   string         `toml:"socket_path"`
	DataDir      string         `toml:"data_dir"`
	CacheDir     string         `toml:"cache_dir"`
	SettingsFile string         `toml:"settings_file"`
	Setup        SetupConfig    `toml:"setup"`
	Launcher     LauncherConfig `toml:"launcher"`
	Icons        IconsConfig    `toml:"icons"`
	Apps         AppsConfig     `toml:"apps"`
	Logging      LoggingConfig  `toml:"logging"`
}

type SetupConfig struct {
	TimeoutSeconds int `toml:"timeout_seconds"`
}

// Timeout is the budget shared by every task of one setup phase.
func (s SetupConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}

type LauncherConfig struct {
	DefaultLauncher  string            `toml:"default_launcher"`
	Search           SearchConfig      `toml:"search"`
	Performance      PerformanceConfig `toml:"performance"`
	Behavior         BehaviorConfig    `toml:"behavior"`
	LauncherPrefixes map[string]string `toml:"launcher_prefixes"`
}

type SearchConfig struct {
	MaxResults  int  `toml:"max_results"`
	TimeoutMs   int  `toml:"timeout_ms"`
	FuzzySearch bool `toml:"fuzzy_search"`
}

func (s SearchConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutMs) * time.Millisecond
}

type PerformanceConfig struct {
	EnableCache     bool `toml:"enable_cache"`
	SearchCacheSize int  `toml:"search_cache_size"`
}

type BehaviorConfig struct {
	CloseOnActivate       bool `toml:"close_on_activate"`
	ClearSearchOnActivate bool `toml:"clear_search_on_activate"`
}

type IconsConfig struct {
	EnableIcons        bool   `toml:"enable_icons"`
	CacheSize          int    `toml:"cache_size"`
	TTLSeconds         int    `toml:"ttl_seconds"`
	FallbackIcon       string `toml:"fallback_icon"`
	MaxConcurrentLoads int    `toml:"max_concurrent_loads"`
}

func (i IconsConfig) TTL() time.Duration {
	return time.Duration(i.TTLSeconds) * time.Second
}

type AppsConfig struct {
	ScanDirs         []string `toml:"scan_dirs"`
	Extensions       []string `toml:"extensions"`
	IndexFile        string   `toml:"index_file"`
	IndexMaxAgeHours int      `toml:"index_max_age_hours"`
	WatchDirs        bool     `toml:"watch_dirs"`
	MaxScanTime      float64  `toml:"max_scan_time"` // seconds
}

type LoggingConfig struct {
	File        string `toml:"file"`
	BufferLines int    `toml:"buffer_lines"`
}

// envOverrides are applied after the file is read.
type envOverrides struct {
	SocketPath   string `env:"WINLAUNCH_SOCKET"`
	SettingsFile string `env:"WINLAUNCH_SETTINGS"`
	LogFile      string `env:"WINLAUNCH_LOG"`
	SetupTimeout int    `env:"WINLAUNCH_SETUP_TIMEOUT"`
}

// Default returns a fresh default configuration.
func Default() *Config {
	return &Config{
		AppName:      "winlaunch",
		SocketPath:   filepath.Join(os.TempDir(), "winlaunch.sock"),
		DataDir:      "~/.local/share/winlaunch",
		CacheDir:     "~/.cache/winlaunch",
		SettingsFile: "~/.config/winlaunch/settings.json",
		Setup: SetupConfig{
			TimeoutSeconds: 10,
		},
		Launcher: LauncherConfig{
			DefaultLauncher: "apps",
			Search: SearchConfig{
				MaxResults:  10,
				TimeoutMs:   3000,
				FuzzySearch: true,
			},
			Performance: PerformanceConfig{
				EnableCache:     true,
				SearchCacheSize: 200,
			},
			Behavior: BehaviorConfig{
				CloseOnActivate:       true,
				ClearSearchOnActivate: true,
			},
			LauncherPrefixes: map[string]string{
				"wikipedia": "?",
			},
		},
		Icons: IconsConfig{
			EnableIcons:        true,
			CacheSize:          500,
			TTLSeconds:         600,
			FallbackIcon:       "application-x-executable",
			MaxConcurrentLoads: 4,
		},
		Apps: AppsConfig{
			ScanDirs:         defaultScanDirs(),
			Extensions:       []string{".lnk", ".exe", ".url", ".appref-ms", ".desktop"},
			IndexFile:        "apps.json",
			IndexMaxAgeHours: 24,
			WatchDirs:        true,
			MaxScanTime:      5.0,
		},
		Logging: LoggingConfig{
			File:        "~/.cache/winlaunch/winlaunch.log",
			BufferLines: 1000,
		},
	}
}

func defaultScanDirs() []string {
	if runtime.GOOS == "windows" {
		return []string{
			filepath.Join(os.Getenv("ProgramData"), "Microsoft", "Windows", "Start Menu", "Programs"),
			filepath.Join(os.Getenv("AppData"), "Microsoft", "Windows", "Start Menu", "Programs"),
		}
	}
	return []string{
		"~/.local/share/applications",
		"/usr/share/applications",
		"/usr/local/share/applications",
	}
}

func LoadConfig(path string) (*Config, error) {
	expandedPath := expandPath(path)

	cfg := Default()
	data, err := os.ReadFile(expandedPath)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, err
	default:
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", expandedPath, err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	cfg.expandPaths()

	return cfg, nil
}

func LoadAndValidateConfig(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	var o envOverrides
	if err := env.Parse(&o); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	if o.SocketPath != "" {
		cfg.SocketPath = o.SocketPath
	}
	if o.SettingsFile != "" {
		cfg.SettingsFile = o.SettingsFile
	}
	if o.LogFile != "" {
		cfg.Logging.File = o.LogFile
	}
	if o.SetupTimeout > 0 {
		cfg.Setup.TimeoutSeconds = o.SetupTimeout
	}
	return nil
}

func (c *Config) expandPaths() {
	c.SocketPath = expandPath(c.SocketPath)
	c.DataDir = expandPath(c.DataDir)
	c.CacheDir = expandPath(c.CacheDir)
	c.SettingsFile = expandPath(c.SettingsFile)
	c.Logging.File = expandPath(c.Logging.File)
	for i, dir := range c.Apps.ScanDirs {
		c.Apps.ScanDirs[i] = expandPath(dir)
	}
}

// IndexPath is where the discovered application index is cached.
func (c *Config) IndexPath() string {
	if filepath.IsAbs(c.Apps.IndexFile) {
		return c.Apps.IndexFile
	}
	return filepath.Join(c.CacheDir, c.Apps.IndexFile)
}

func expandPath(path string) string {
	path = os.ExpandEnv(path)
	if len(path) > 0 && path[0] == '~' {
		usr, err := user.Current()
		if err == nil {
			return filepath.Join(usr.HomeDir, path[1:])
		}
	}
	return path
}

func SaveConfig(cfg *Config, path string) error {
	expandedPath := expandPath(path)

	dir := filepath.Dir(expandedPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := toml.Marshal(cfg)
	if err != nil {
		return err
	}

	return os.WriteFile(expandedPath, data, 0644)
}

func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateSetup(); err != nil {
		return err
	}
	if err := c.validateSearch(); err != nil {
		return err
	}
	if err := c.validatePerformance(); err != nil {
		return err
	}
	if err := c.validateIcons(); err != nil {
		return err
	}
	if err := c.validateApps(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.SocketPath == "" {
		return fmt.Errorf("socket_path must not be empty")
	}
	if c.SettingsFile == "" {
		return fmt.Errorf("settings_file must not be empty")
	}
	if c.Launcher.DefaultLauncher == "" {
		return fmt.Errorf("default_launcher must not be empty")
	}
	return nil
}

func (c *Config) validateSetup() error {
	if c.Setup.TimeoutSeconds < 1 || c.Setup.TimeoutSeconds > 300 {
		return fmt.Errorf("invalid setup timeout_seconds: %d (must be 1-300)", c.Setup.TimeoutSeconds)
	}
	return nil
}

func (c *Config) validateSearch() error {
	s := c.Launcher.Search
	if s.MaxResults < 1 || s.MaxResults > 1000 {
		return fmt.Errorf("invalid max_results: %d (must be 1-1000)", s.MaxResults)
	}
	if s.TimeoutMs < 100 || s.TimeoutMs > 60000 {
		return fmt.Errorf("invalid search timeout_ms: %d (must be 100-60000ms)", s.TimeoutMs)
	}
	return nil
}

func (c *Config) validatePerformance() error {
	p := c.Launcher.Performance
	if p.EnableCache && (p.SearchCacheSize < 10 || p.SearchCacheSize > 10000) {
		return fmt.Errorf("invalid search_cache_size: %d (must be 10-10000)", p.SearchCacheSize)
	}
	return nil
}

func (c *Config) validateIcons() error {
	i := c.Icons
	if i.CacheSize < 10 || i.CacheSize > 10000 {
		return fmt.Errorf("invalid icon cache_size: %d (must be 10-10000)", i.CacheSize)
	}
	if i.TTLSeconds < 1 || i.TTLSeconds > 86400 {
		return fmt.Errorf("invalid icon ttl_seconds: %d (must be 1-86400)", i.TTLSeconds)
	}
	if i.MaxConcurrentLoads < 1 || i.MaxConcurrentLoads > 64 {
		return fmt.Errorf("invalid max_concurrent_loads: %d (must be 1-64)", i.MaxConcurrentLoads)
	}
	return nil
}

func (c *Config) validateApps() error {
	a := c.Apps
	if a.IndexMaxAgeHours < 1 || a.IndexMaxAgeHours > 168 {
		return fmt.Errorf("invalid index_max_age_hours: %d (must be 1-168 hours)", a.IndexMaxAgeHours)
	}
	if a.MaxScanTime <= 0 || a.MaxScanTime > 120 {
		return fmt.Errorf("invalid max_scan_time: %v (must be 0-120 seconds)", a.MaxScanTime)
	}
	if len(a.Extensions) == 0 {
		return fmt.Errorf("apps extensions must not be empty")
	}
	return nil
}

func (c *Config) validateLogging() error {
	if c.Logging.BufferLines < 10 || c.Logging.BufferLines > 100000 {
		return fmt.Errorf("invalid buffer_lines: %d (must be 10-100000)", c.Logging.BufferLines)
	}
	return nil
}

func ValidateConfig(path string) error {
	_, err := LoadAndValidateConfig(path)
	return err
}
