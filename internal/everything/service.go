package everything

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chess10kp/winlaunch/internal/settings"
)

var ErrNotInstalled = errors.New("everything command-line interface not found")

const defaultExecutable = "es.exe"

// EverythingSettings configures the es.exe invocation.
type EverythingSettings struct {
	Executable string `json:"executable"`
	MaxResults int    `json:"maxResults"`
	MatchPath  bool   `json:"matchPath"`
	Sort       string `json:"sort,omitempty"`
}

func (*EverythingSettings) SettingsKey() string {
	return "everything"
}

func DefaultSettings() *EverythingSettings {
	return &EverythingSettings{
		Executable: defaultExecutable,
		MaxResults: 50,
	}
}

// Service runs one es.exe process per search. Starting a search cancels the
// one still running.
type Service struct {
	store    *settings.Service
	settings *EverythingSettings
	lookPath func(string) (string, error)

	mu         sync.Mutex
	executable string
	cancelPrev context.CancelFunc
	generation uint64
}

func NewService(store *settings.Service, s *EverythingSettings) *Service {
	return &Service{
		store:    store,
		settings: s,
		lookPath: exec.LookPath,
	}
}

// Setup resolves the executable. The plugin is unusable without it.
func (s *Service) Setup(ctx context.Context) error {
	var name string
	s.store.View(func() { name = s.settings.Executable })
	if name == "" {
		name = defaultExecutable
	}

	path, err := s.lookPath(name)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrNotInstalled, name, err)
	}

	s.mu.Lock()
	s.executable = path
	s.mu.Unlock()

	log.Printf("[EVERYTHING] Using %s", path)
	return nil
}

// Args builds the es.exe arguments for a query. Every whitespace-separated
// term is its own argument.
func (s *Service) Args(query string) []string {
	var args []string
	s.store.View(func() {
		if s.settings.MaxResults > 0 {
			args = append(args, "-n", strconv.Itoa(s.settings.MaxResults))
		}
		if s.settings.MatchPath {
			args = append(args, "-p")
		}
		if s.settings.Sort != "" {
			args = append(args, "-sort", s.settings.Sort)
		}
	})
	return append(args, strings.Fields(query)...)
}

// Search runs es.exe and calls emit for every matched path, in output
// order. It returns the context error when cancelled, including by a newer
// search, and an error when the process exits non-zero.
func (s *Service) Search(ctx context.Context, query string, emit func(path string)) error {
	if strings.TrimSpace(query) == "" {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	if s.cancelPrev != nil {
		s.cancelPrev()
	}
	s.cancelPrev = cancel
	s.generation++
	generation := s.generation
	executable := s.executable
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		if s.generation == generation {
			s.cancelPrev = nil
		}
		s.mu.Unlock()
	}()

	if executable == "" {
		return ErrNotInstalled
	}

	start := time.Now()
	pr, pw := io.Pipe()
	var stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, executable, s.Args(query)...)
	cmd.Stdout = pw
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second

	if err := cmd.Start(); err != nil {
		pw.Close()
		return fmt.Errorf("start %s: %w", executable, err)
	}

	waitErr := make(chan error, 1)
	go func() {
		err := cmd.Wait()
		pw.Close()
		waitErr <- err
	}()

	count := 0
	scanner := bufio.NewScanner(pr)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		count++
		emit(line)
	}
	scanErr := scanner.Err()
	// Unblock the copy goroutine if reading stopped early
	pr.Close()
	err := <-waitErr

	if ctxErr := ctx.Err(); ctxErr != nil {
		log.Printf("[EVERYTHING] Search '%s' cancelled after %d results", query, count)
		return ctxErr
	}
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return fmt.Errorf("%s failed: %w: %s", executable, err, msg)
		}
		return fmt.Errorf("%s failed: %w", executable, err)
	}
	if scanErr != nil {
		return fmt.Errorf("read results: %w", scanErr)
	}

	log.Printf("[EVERYTHING] Search '%s' returned %d results in %v", query, count, time.Since(start))
	return nil
}
