package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewBindCommand creates the bind command.
func NewBindCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "bind <user-id>",
		Short: "Bind the local store to an identity",
		Long: `Bind the local store to a user identity.

Rows belonging to any other identity are purged before the new one
becomes active, so a database handed between accounts never leaks
state. Binding the already-bound identity is a safe no-op.

Example:
  undertow bind u-alice --db ./undertow.db`,
		Args:          cobra.ExactArgs(1),
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

			if err := eng.Bind(cmd.Context(), args[0]); err != nil {
				return WrapExitError(ExitFailure, "bind failed", err)
			}

			out := &OutputFormatter{Format: rootOpts.Format, Writer: os.Stdout, Verbose: rootOpts.Verbose}
			return out.Success(fmt.Sprintf("bound to %s", args[0]))
		},
	}
}

// NewWipeCommand creates the wipe command.
func NewWipeCommand(rootOpts *RootOptions) *cobra.Command {
	var confirm bool

	cmd := &cobra.Command{
		Use:   "wipe <user-id>",
		Short: "Delete all local data for an identity",
		Long: `Delete every local row belonging to an identity and unbind it.

The database schema survives; only data is removed. Requires --yes.

Example:
  undertow wipe u-alice --db ./undertow.db --yes`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirm {
				return NewExitError(ExitCommandError, "wipe is destructive; pass --yes to confirm")
			}

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

			if err := eng.Bind(cmd.Context(), args[0]); err != nil {
				return WrapExitError(ExitFailure, "bind failed", err)
			}
			if err := eng.Wipe(cmd.Context()); err != nil {
				return WrapExitError(ExitFailure, "wipe failed", err)
			}

			out := &OutputFormatter{Format: rootOpts.Format, Writer: os.Stdout, Verbose: rootOpts.Verbose}
			return out.Success(fmt.Sprintf("wiped %s", args[0]))
		},
	}

	cmd.Flags().BoolVar(&confirm, "yes", false, "confirm the wipe")
	return cmd
}
