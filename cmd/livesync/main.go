package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jsmonitor/livesync/internal/config"
	"github.com/jsmonitor/livesync/internal/errors"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const banner = `
  ╦  ┬┬  ┬┌─┐┌─┐┬ ┬┌┐┌┌─┐
  ║  │└┐┌┘├┤ └─┐└┬┘││││
  ╩═╝┴ └┘ └─┘└─┘ ┴ ┘└┘└─┘
`

// globalFlags are the persistent flags shared by every command.
type globalFlags struct {
	configDir string
	logLevel  string
	logFormat string
	noColor   bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		errors.Fprint(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:   "livesync",
		Short: "Live game server status and remote consoles",
		Long: `livesync keeps a live view of game server status and opens
remote consoles on them.

  • Streams status deltas over a reconnecting WebSocket feed
  • Serves /metrics, /healthz and /servers while watching
  • Interactive remote console sessions from the terminal`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if flags.noColor {
				errors.DisableColors()
			}
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flags.configDir, "config", "c", ".", "Directory containing livesync.json")
	pf.StringVar(&flags.logLevel, "log-level", "", "Log level: debug, info, warn, error (default from livesync.json)")
	pf.StringVar(&flags.logFormat, "log-format", "", "Log format: text or json (default from livesync.json)")
	pf.BoolVar(&flags.noColor, "no-color", false, "Disable colored output")

	rootCmd.AddCommand(
		watchCmd(flags),
		consoleCmd(flags),
		initCmd(flags),
		versionCmd(),
	)

	return rootCmd
}

// loadConfig reads livesync.json from the --config directory, falling back
// to defaults when the file is missing, then applies LIVESYNC_* variables
// and the logging flags.
func loadConfig(flags *globalFlags) (*config.Config, error) {
	cfg, err := config.LoadOrDefault(flags.configDir)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv(os.LookupEnv)
	if flags.logLevel != "" {
		cfg.Log.Level = flags.logLevel
	}
	if flags.logFormat != "" {
		cfg.Log.Format = flags.logFormat
	}
	return cfg, nil
}

// setupLogger installs the default slog logger described by cfg.
func setupLogger(cfg *config.Config, w io.Writer) (*slog.Logger, error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Log.Format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger, nil
}

// printBanner prints the livesync ASCII art banner.
func printBanner() {
	fmt.Print(banner)
}

// success prints a success message.
func success(format string, args ...any) {
	fmt.Printf("\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}

// info prints an info message.
func info(format string, args ...any) {
	fmt.Printf("  %s\n", fmt.Sprintf(format, args...))
}

// warn prints a warning message.
func warn(format string, args ...any) {
	fmt.Printf("\033[33m⚠\033[0m %s\n", fmt.Sprintf(format, args...))
}

// errorMsg prints an error message.
func errorMsg(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "\033[31m✗\033[0m %s\n", fmt.Sprintf(format, args...))
}
