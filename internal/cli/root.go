package cli

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/roach88/undertow/internal/engine"
	"github.com/roach88/undertow/internal/gateway"
	"github.com/roach88/undertow/internal/store"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string
	Database   string
	BaseURL    string

	// Gateway allows overriding the remote adapter (for testing).
	// If nil, defaults to the REST client built from config.
	Gateway engine.Gateway
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the undertow CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "undertow",
		Short: "Undertow - local-first feed sync",
		Long:  "A local-first synchronization engine for social feeds backed by SQLite.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "path to YAML config (default: user config dir)")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to SQLite database (overrides config)")
	cmd.PersistentFlags().StringVar(&opts.BaseURL, "base-url", "", "remote API base URL (overrides config)")

	// Add subcommands
	cmd.AddCommand(NewBindCommand(opts))
	cmd.AddCommand(NewWipeCommand(opts))
	cmd.AddCommand(NewPostCommand(opts))
	cmd.AddCommand(NewSyncCommand(opts))
	cmd.AddCommand(NewDaemonCommand(opts))
	cmd.AddCommand(NewDiagCommand(opts))
	cmd.AddCommand(NewDraftsCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// loadConfig resolves the effective config: file values with flag
// overrides applied, then defaults.
func (o *RootOptions) loadConfig() (Config, error) {
	path := o.ConfigPath
	explicit := path != ""
	if path == "" {
		path = DefaultConfigPath()
	}

	cfg, err := LoadConfig(path, explicit)
	if err != nil {
		return cfg, err
	}
	if o.Database != "" {
		cfg.Database = o.Database
	}
	if o.BaseURL != "" {
		cfg.BaseURL = o.BaseURL
	}
	cfg.applyDefaults()
	return cfg, nil
}

// setupLogging configures the default slog logger from the verbose
// flag and config level. Logs go to stderr so JSON output on stdout
// stays parseable.
func (o *RootOptions) setupLogging(cfg Config) {
	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if o.Verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
	})))
}

// openEngine opens the store and builds an engine per config. The
// returned cleanup closes the store.
func (o *RootOptions) openEngine(cfg Config) (*engine.Engine, func() error, error) {
	st, err := store.Open(cfg.Database)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	gw := o.Gateway
	if gw == nil {
		if cfg.BaseURL == "" {
			st.Close()
			return nil, nil, NewExitError(ExitCommandError, "no base_url configured; set base_url in config or pass --base-url")
		}
		gw = gateway.New(cfg.BaseURL, gateway.WithToken(cfg.Token))
	}

	return engine.New(st, gw), st.Close, nil
}
