package launcher

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Command is a control command a plugin exposes on the IPC socket, invoked
// as "<name> <args>".
type Command struct {
	Name  string
	Usage string
	Run   func(ctx context.Context, args string) (string, error)
}

// CommandProvider is implemented by plugin services that expose commands.
type CommandProvider interface {
	Commands() []Command
}

// CommandSet indexes commands by name.
type CommandSet struct {
	commands map[string]Command
}

func NewCommandSet(providers ...CommandProvider) (*CommandSet, error) {
	s := &CommandSet{commands: make(map[string]Command)}
	for _, p := range providers {
		for _, cmd := range p.Commands() {
			if _, exists := s.commands[cmd.Name]; exists {
				return nil, fmt.Errorf("command '%s' registered twice", cmd.Name)
			}
			s.commands[cmd.Name] = cmd
		}
	}
	return s, nil
}

// Lookup splits a command line into a registered command and its arguments.
func (s *CommandSet) Lookup(line string) (Command, string, bool) {
	name, args, _ := strings.Cut(strings.TrimSpace(line), " ")
	cmd, ok := s.commands[name]
	if !ok {
		return Command{}, "", false
	}
	return cmd, strings.TrimSpace(args), true
}

// Usage lists every command's usage line, sorted.
func (s *CommandSet) Usage() []string {
	lines := make([]string, 0, len(s.commands))
	for _, cmd := range s.commands {
		lines = append(lines, cmd.Usage)
	}
	sort.Strings(lines)
	return lines
}
