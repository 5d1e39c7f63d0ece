package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jsmonitor/livesync/internal/config"
	"github.com/jsmonitor/livesync/internal/errors"
	"github.com/jsmonitor/livesync/pkg/console"
	"github.com/jsmonitor/livesync/pkg/telemetry"
	"github.com/jsmonitor/livesync/pkg/transport"
)

// quitCommand ends an interactive session without sending anything.
const quitCommand = "/quit"

// drainIdle is how long the console keeps printing replies after stdin
// reaches EOF. Every new transcript line restarts the wait.
var drainIdle = 2 * time.Second

func consoleCmd(flags *globalFlags) *cobra.Command {
	var (
		key        string
		consoleURL string
		title      string
	)

	cmd := &cobra.Command{
		Use:   "console <server-id>",
		Short: "Open a remote console on a server",
		Long: `Open an interactive remote console on a game server.

Each line read from stdin is sent as one command; server output is
printed as it arrives. Type /quit to close at once. At EOF (Ctrl-D or
the end of piped input) replies are printed until the server has been
quiet for a moment, then the session closes.

The credential is taken from --key, or from the environment variable
named by console.credentialEnv (LIVESYNC_API_KEY by default).

Examples:
  livesync console 7
  livesync console 7 --title="Alpha EU"
  echo status | livesync console 7 --key=$KEY`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return errors.New("E204").WithDetailf("%q is not a server id", args[0])
			}

			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			if consoleURL != "" {
				cfg.Console.URL = consoleURL
			}

			var provider console.CredentialProvider = console.EnvCredential(cfg.Console.CredentialEnv)
			if key != "" {
				provider = console.StaticCredential(key)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runConsole(ctx, cfg, provider, target, title, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&key, "key", "k", "", "Console credential")
	cmd.Flags().StringVar(&consoleURL, "console-url", "", "Console WebSocket URL (default from livesync.json)")
	cmd.Flags().StringVarP(&title, "title", "t", "", "Server title shown in the transcript")

	return cmd
}

func runConsole(ctx context.Context, cfg *config.Config, provider console.CredentialProvider, target int64, title string, in io.Reader, out io.Writer) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger, err := setupLogger(cfg, os.Stderr)
	if err != nil {
		return err
	}
	dialer, err := newDialer(cfg, nil, logger)
	if err != nil {
		return err
	}

	connected := make(chan struct{})
	closed := make(chan struct{})
	activity := make(chan struct{}, 1)
	var connectOnce, closeOnce sync.Once

	opts := []console.Option{
		console.WithLogger(logger.With("component", "console")),
		console.WithTracer(telemetry.NewTracer()),
		console.WithLineHandler(func(line console.LogLine) {
			fmt.Fprintln(out, formatLine(line))
			select {
			case activity <- struct{}{}:
			default:
			}
		}),
		console.WithStateHandler(func(s console.State) {
			switch s {
			case console.Connected:
				connectOnce.Do(func() { close(connected) })
			case console.Closed:
				closeOnce.Do(func() { close(closed) })
			}
		}),
	}
	if title != "" {
		opts = append(opts, console.WithTitle(title))
	}

	endpoint := transport.Endpoint{
		URL:             cfg.Console.URL,
		CredentialParam: cfg.Console.CredentialParam,
	}
	session, err := console.OpenWithProvider(ctx, dialer, endpoint, provider, target, opts...)
	if err != nil {
		return err
	}
	defer session.Close()

	// Commands are read only once the handshake completed, so piped
	// input is not lost while connecting.
	select {
	case <-ctx.Done():
		return nil
	case <-closed:
		return nil
	case <-connected:
	}

	stop := make(chan struct{})
	defer close(stop)
	commands := make(chan string)
	go readCommands(in, commands, stop)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-closed:
			return nil
		case cmd, ok := <-commands:
			if !ok {
				waitIdle(ctx, closed, activity, drainIdle)
				return nil
			}
			if cmd == quitCommand {
				return nil
			}
			session.Submit(cmd)
		}
	}
}

// waitIdle returns once no transcript line arrived for idle, the session
// closed or ctx is done.
func waitIdle(ctx context.Context, closed, activity <-chan struct{}, idle time.Duration) {
	timer := time.NewTimer(idle)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-closed:
			return
		case <-activity:
			timer.Reset(idle)
		case <-timer.C:
			return
		}
	}
}

// readCommands sends each trimmed non-empty line of r to commands and
// closes it at EOF. It gives up as soon as stop is closed.
func readCommands(r io.Reader, commands chan<- string, stop <-chan struct{}) {
	defer close(commands)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		select {
		case commands <- line:
		case <-stop:
			return
		}
	}
}

// formatLine renders a transcript line for the terminal. System lines are
// dimmed; input and output are printed as is.
func formatLine(line console.LogLine) string {
	if line.Kind == console.System {
		return "\033[90m" + line.Text + "\033[0m"
	}
	return line.Text
}
