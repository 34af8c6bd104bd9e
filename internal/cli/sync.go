package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/undertow/internal/engine"
)

// bindFromConfig binds the configured identity, erroring when none is
// configured.
func bindFromConfig(cmd *cobra.Command, eng *engine.Engine, cfg Config) error {
	if cfg.UserID == "" {
		return NewExitError(ExitCommandError, "no user_id configured; run bind or set user_id in config")
	}
	if err := eng.Bind(cmd.Context(), cfg.UserID); err != nil {
		return WrapExitError(ExitFailure, "bind failed", err)
	}
	return nil
}

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Run one full sync cycle",
		Long: `Run one full synchronization cycle against the remote.

Phases run in fixed order: outbox flush, reaction reconciliation,
bookmark reconciliation, poll-vote reconciliation, feed delta pull,
diagnostic. A failed phase is logged and the cycle continues.

Example:
  undertow sync --db ./undertow.db`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rootOpts.loadConfig()
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to load config", err)
			}
			rootOpts.setupLogging(cfg)

			eng, closeStore, err := rootOpts.openEngine(cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			if err := bindFromConfig(cmd, eng, cfg); err != nil {
				return err
			}
			if err := eng.RunCycle(cmd.Context()); err != nil {
				return WrapExitError(ExitFailure, "sync cycle failed", err)
			}

			out := &OutputFormatter{Format: rootOpts.Format, Writer: os.Stdout, Verbose: rootOpts.Verbose}
			return out.Success(fmt.Sprintf("sync cycle completed for %s", cfg.UserID))
		},
	}
}
