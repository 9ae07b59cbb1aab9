// Package platform hands files, URLs and programs to the operating system.
package platform

import (
	"fmt"
	"log"
	"strings"
)

// Open opens a file, folder or URL with its associated program.
func Open(target string) error {
	target = strings.TrimSpace(target)
	if target == "" {
		return fmt.Errorf("nothing to open")
	}
	if err := open(target); err != nil {
		return fmt.Errorf("open %s: %w", target, err)
	}
	log.Printf("[PLATFORM] Opened %s", target)
	return nil
}

// Start launches a program detached from this process.
func Start(path string, args []string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("empty program path")
	}
	if err := start(path, args); err != nil {
		return fmt.Errorf("start %s: %w", path, err)
	}
	log.Printf("[PLATFORM] Started %s %v", path, args)
	return nil
}
