package logging

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/chess10kp/winlaunch/internal/event"
)

// Buffer keeps the most recent log lines in memory and publishes each new
// line. It is an io.Writer so it can sit behind the standard logger.
type Buffer struct {
	mu      sync.RWMutex
	lines   []string
	start   int
	count   int
	partial []byte
	added   *event.Subject[string]
}

func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = 1000
	}
	return &Buffer{
		lines: make([]string, capacity),
		added: event.NewSubject[string](nil),
	}
}

// Write splits p into lines. An unterminated tail is held until the next
// write completes it.
func (b *Buffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	data := append(b.partial, p...)
	var complete []string
	for {
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			break
		}
		line := strings.TrimRight(string(data[:i]), "\r")
		data = data[i+1:]
		b.appendLocked(line)
		complete = append(complete, line)
	}
	b.partial = append([]byte(nil), data...)
	b.mu.Unlock()

	for _, line := range complete {
		b.added.Publish(line)
	}
	return len(p), nil
}

func (b *Buffer) appendLocked(line string) {
	capacity := len(b.lines)
	if b.count < capacity {
		b.lines[(b.start+b.count)%capacity] = line
		b.count++
		return
	}
	b.lines[b.start] = line
	b.start = (b.start + 1) % capacity
}

// Lines returns a snapshot, oldest first.
func (b *Buffer) Lines() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]string, b.count)
	for i := 0; i < b.count; i++ {
		out[i] = b.lines[(b.start+i)%len(b.lines)]
	}
	return out
}

func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.count
}

// Added publishes every completed line.
func (b *Buffer) Added() event.Observable[string] {
	return b.added
}

// Setup points the standard logger at the log file and an in-memory
// buffer. The returned closer closes the file.
func Setup(path string, bufferLines int) (*Buffer, io.Closer, error) {
	buf := NewBuffer(bufferLines)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	if path == "" {
		log.SetOutput(io.MultiWriter(os.Stderr, buf))
		return buf, io.NopCloser(nil), nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		log.SetOutput(io.MultiWriter(os.Stderr, buf))
		return buf, io.NopCloser(nil), fmt.Errorf("create log directory: %w", err)
	}

	logFile, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		log.SetOutput(io.MultiWriter(os.Stderr, buf))
		return buf, io.NopCloser(nil), fmt.Errorf("open log file: %w", err)
	}

	log.SetOutput(io.MultiWriter(logFile, buf))
	return buf, logFile, nil
}
