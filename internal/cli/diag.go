package cli

import (
	"os"

	"github.com/spf13/cobra"
)

// NewDiagCommand creates the diag command.
func NewDiagCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "diag",
		Short: "Run integrity checks and print a report",
		Long: `Run the diagnostic checks over the local database and print the
report: per-table row counts, outbox backlog, feed size, and foreign
key integrity. Exits non-zero when a check finds a violation.

Example:
  undertow diag --db ./undertow.db`,
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

			report, err := eng.Diagnose(cmd.Context())
			if err != nil {
				return WrapExitError(ExitFailure, "diagnostics failed", err)
			}

			out := &OutputFormatter{Format: rootOpts.Format, Writer: os.Stdout, Verbose: rootOpts.Verbose}
			if rootOpts.Format == "json" {
				if err := out.Success(report); err != nil {
					return err
				}
			} else if err := out.Success(report.String()); err != nil {
				return err
			}

			if !report.Healthy() {
				return NewExitError(ExitFailure, "integrity checks found problems")
			}
			return nil
		},
	}
}
