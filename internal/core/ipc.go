package core

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const (
	statusOK     = "ok"
	statusFailed = "error: "

	ipcReadTimeout    = 5 * time.Second
	ipcCommandTimeout = 30 * time.Second
	maxCommandLength  = 64 * 1024
)

// CommandHandler answers one control command.
type CommandHandler func(ctx context.Context, command string) (string, error)

// IPCServer accepts one command per connection on a local socket and writes
// back the reply. The first reply line is the status, "ok" or
// "error: <message>"; a payload follows on the next lines.
type IPCServer struct {
	socketPath string
	handler    CommandHandler

	mu       sync.Mutex
	listener net.Listener
	running  bool
	wg       sync.WaitGroup
}

func NewIPCServer(socketPath string, handler CommandHandler) *IPCServer {
	return &IPCServer{
		socketPath: socketPath,
		handler:    handler,
	}
}

func (s *IPCServer) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("IPC server already running")
	}

	if err := os.MkdirAll(filepath.Dir(s.socketPath), 0o755); err != nil {
		return fmt.Errorf("failed to create socket directory: %w", err)
	}
	// Remove a socket left behind by a previous run
	if _, err := os.Stat(s.socketPath); err == nil {
		os.Remove(s.socketPath)
	}

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to create socket listener: %w", err)
	}

	s.listener = listener
	s.running = true
	log.Printf("[IPC] Listening on %s", s.socketPath)

	s.wg.Add(1)
	go s.acceptConnections(listener)
	return nil
}

func (s *IPCServer) acceptConnections(listener net.Listener) {
	defer s.wg.Done()
	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			log.Printf("[IPC] Error accepting connection: %v", err)
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(conn)
		}()
	}
}

func (s *IPCServer) handleConnection(conn net.Conn) {
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(ipcReadTimeout))
	line, err := bufio.NewReader(io.LimitReader(conn, maxCommandLength)).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		log.Printf("[IPC] Error reading from connection: %v", err)
		return
	}

	command := strings.TrimSpace(line)
	if command == "" {
		fmt.Fprintln(conn, statusFailed+"empty command")
		return
	}
	log.Printf("[IPC] Received command: %s", command)

	ctx, cancel := context.WithTimeout(context.Background(), ipcCommandTimeout)
	defer cancel()

	reply, err := s.handler(ctx, command)
	if err != nil {
		log.Printf("[IPC] Command '%s' failed: %v", command, err)
		fmt.Fprintf(conn, "%s%v\n", statusFailed, err)
		return
	}
	fmt.Fprintln(conn, statusOK)
	if reply = strings.TrimRight(reply, "\n"); reply != "" {
		fmt.Fprintln(conn, reply)
	}
}

func (s *IPCServer) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	err := s.listener.Close()
	s.mu.Unlock()

	s.wg.Wait()
	os.Remove(s.socketPath)

	log.Printf("[IPC] Server stopped")
	return err
}

// Send delivers one command to the server at socketPath and returns the
// reply payload. A failed command is returned as an error.
func Send(ctx context.Context, socketPath, command string) (string, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", socketPath)
	if err != nil {
		return "", fmt.Errorf("failed to connect to %s: %w", socketPath, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}
	if _, err := fmt.Fprintln(conn, command); err != nil {
		return "", fmt.Errorf("failed to send command: %w", err)
	}
	if unix, ok := conn.(*net.UnixConn); ok {
		unix.CloseWrite()
	}

	data, err := io.ReadAll(conn)
	if err != nil {
		return "", fmt.Errorf("failed to read reply: %w", err)
	}

	status, payload, _ := strings.Cut(strings.TrimRight(string(data), "\n"), "\n")
	if status == statusOK {
		return payload, nil
	}
	if msg, ok := strings.CutPrefix(status, statusFailed); ok {
		if payload != "" {
			msg += "\n" + payload
		}
		return "", errors.New(msg)
	}
	return "", fmt.Errorf("malformed reply %q", status)
}
