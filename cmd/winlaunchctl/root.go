package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/chess10kp/winlaunch/internal/config"
	"github.com/chess10kp/winlaunch/internal/core"
)

type options struct {
	configPath string
	socketPath string
	timeout    time.Duration
}

// control describes a subcommand that forwards one IPC command.
type control struct {
	use   string
	short string
	args  cobra.PositionalArgs
	// pretty re-indents a JSON reply.
	pretty bool
}

var controls = []control{
	{use: "show", short: "Show the launcher window", args: cobra.NoArgs},
	{use: "hide", short: "Hide the launcher window", args: cobra.NoArgs},
	{use: "toggle", short: "Toggle the launcher window (bind to a hotkey)", args: cobra.NoArgs},
	{use: "query [text...]", short: "Set the search query and print the results", args: cobra.ArbitraryArgs, pretty: true},
	{use: "next", short: "Select the next result", args: cobra.NoArgs, pretty: true},
	{use: "prev", short: "Select the previous result", args: cobra.NoArgs, pretty: true},
	{use: "activate", short: "Execute the selected result", args: cobra.NoArgs},
	{use: "results", short: "Print the current query and results", args: cobra.NoArgs, pretty: true},
	{use: "launchers", short: "List registered launchers and their triggers", args: cobra.NoArgs},
	{use: "rebuild", short: "Refresh launcher data such as the application index", args: cobra.NoArgs},
	{use: "stats", short: "Print cache and hook statistics", args: cobra.NoArgs, pretty: true},
	{use: "quit", short: "Stop the daemon", args: cobra.NoArgs},
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "winlaunchctl",
		Short:         "Control a running winlaunch daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", config.DefaultPath, "Path to config.toml")
	root.PersistentFlags().StringVar(&opts.socketPath, "socket", "", "IPC socket path (overrides config)")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "How long to wait for a reply")

	for _, c := range controls {
		root.AddCommand(newControlCmd(opts, c))
	}
	root.AddCommand(newSendCmd(opts), newValidateCmd(opts))
	return root
}

func newControlCmd(opts *options, c control) *cobra.Command {
	name, _, _ := strings.Cut(c.use, " ")
	return &cobra.Command{
		Use:   c.use,
		Short: c.short,
		Args:  c.args,
		RunE: func(cmd *cobra.Command, args []string) error {
			reply, err := opts.send(cmd.Context(), commandLine(name, args))
			if err != nil {
				return err
			}
			if c.pretty {
				reply = indent(reply)
			}
			fmt.Fprintln(cmd.OutOrStdout(), reply)
			return nil
		},
	}
}

func newSendCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "send <command> [args...]",
		Short: "Send a raw command, including plugin commands such as 'apps list'",
		Example: `  winlaunchctl send help
  winlaunchctl send clipboard list
  winlaunchctl send apps remove Firefox`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reply, err := opts.send(cmd.Context(), commandLine(args[0], args[1:]))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), indent(reply))
			return nil
		},
	}
}

func newValidateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "validate-config [path]",
		Short: "Check a config file without contacting the daemon",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := opts.configPath
			if len(args) > 0 {
				path = args[0]
			}
			if err := config.ValidateConfig(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is valid\n", path)
			return nil
		},
	}
}

func (o *options) socket() (string, error) {
	if o.socketPath != "" {
		return o.socketPath, nil
	}
	cfg, err := config.LoadConfig(o.configPath)
	if err != nil {
		return "", fmt.Errorf("loading config: %w", err)
	}
	return cfg.SocketPath, nil
}

func (o *options) send(ctx context.Context, command string) (string, error) {
	socketPath, err := o.socket()
	if err != nil {
		return "", err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	reply, err := core.Send(ctx, socketPath, command)
	if err != nil {
		return "", fmt.Errorf("%s: %w (is winlaunch running?)", command, err)
	}
	if reply == "" {
		return "ok", nil
	}
	return reply, nil
}

func commandLine(name string, args []string) string {
	return strings.TrimSpace(name + " " + strings.Join(args, " "))
}

// indent pretty-prints JSON replies and leaves anything else untouched.
func indent(reply string) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, []byte(reply), "", "  "); err != nil {
		return reply
	}
	return buf.String()
}
