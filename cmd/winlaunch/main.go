package main

import (
	"context"
	"flag"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chess10kp/winlaunch/internal/composition"
	"github.com/chess10kp/winlaunch/internal/config"
	"github.com/chess10kp/winlaunch/internal/core"
	"github.com/chess10kp/winlaunch/internal/logging"

	_ "github.com/chess10kp/winlaunch/internal/apps"
	_ "github.com/chess10kp/winlaunch/internal/clipboard"
	_ "github.com/chess10kp/winlaunch/internal/everything"
	_ "github.com/chess10kp/winlaunch/internal/logviewer"
	_ "github.com/chess10kp/winlaunch/internal/wikipedia"
)

func pidFile() string {
	return filepath.Join(os.TempDir(), "winlaunch.pid")
}

// ensureSingleInstance replaces a running instance with this one.
func ensureSingleInstance(path string) error {
	if data, err := os.ReadFile(path); err == nil {
		if pid, err := strconv.Atoi(strings.TrimSpace(string(data))); err == nil && pid != os.Getpid() {
			if process, err := os.FindProcess(pid); err == nil {
				if err := process.Kill(); err == nil {
					log.Printf("[MAIN] Stopped previous instance %d", pid)
					process.Wait()
				}
			}
		}
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func main() {
	configPath := flag.String("config", config.DefaultPath, "path to config.toml")
	flag.Parse()

	cfg, err := config.LoadAndValidateConfig(*configPath)
	if err != nil {
		log.Fatalf("[MAIN] %v", err)
	}

	logs, closer, err := logging.Setup(cfg.Logging.File, cfg.Logging.BufferLines)
	if err != nil {
		log.Printf("[MAIN] Logging to file disabled: %v", err)
	}
	defer closer.Close()

	pid := pidFile()
	if err := ensureSingleInstance(pid); err != nil {
		log.Fatalf("[MAIN] Failed to ensure single instance: %v", err)
	}
	defer os.Remove(pid)

	app := core.NewApp(cfg, logs, composition.DefaultCatalog())
	if err := app.Run(context.Background()); err != nil {
		log.Printf("[MAIN] Application error: %v", err)
		os.Remove(pid)
		os.Exit(1)
	}
}
