package cli

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/roach88/undertow/internal/engine"
)

// NewDaemonCommand creates the daemon command.
func NewDaemonCommand(rootOpts *RootOptions) *cobra.Command {
	var schedule string

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run sync cycles on a schedule until interrupted",
		Long: `Run the engine as a long-lived process, triggering a sync cycle on
a cron schedule. Standard cron expressions and the @every form are
accepted. A trigger that fires while a cycle is still running is
skipped, not queued.

SIGINT/SIGTERM stop the scheduler, abort the in-flight cycle
cooperatively, and exit cleanly.

Examples:
  undertow daemon
  undertow daemon --schedule "@every 30s"`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rootOpts.loadConfig()
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to load config", err)
			}
			if schedule != "" {
				cfg.SyncSchedule = schedule
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

			return runDaemon(cmd, eng, cfg)
		},
	}

	cmd.Flags().StringVar(&schedule, "schedule", "", `cron schedule (overrides config, default "@every 1m")`)
	return cmd
}

func runDaemon(cmd *cobra.Command, eng *engine.Engine, cfg Config) error {
	ctx := cmd.Context()

	c := cron.New()
	_, err := c.AddFunc(cfg.SyncSchedule, func() {
		err := eng.RunCycle(ctx)
		if engine.IsCycleInFlight(err) {
			slog.Debug("cycle still running, trigger skipped")
			return
		}
		if err != nil {
			slog.Error("sync cycle failed", "error", err)
		}
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid sync schedule", err)
	}

	slog.Info("daemon started", "schedule", cfg.SyncSchedule, "user", cfg.UserID)
	c.Start()

	// One immediate cycle so a fresh daemon does not wait a full
	// interval before first sync.
	if err := eng.RunCycle(ctx); err != nil && !engine.IsCycleInFlight(err) {
		slog.Error("initial sync cycle failed", "error", err)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case s := <-sig:
		slog.Info("shutting down", "signal", s.String())
	case <-ctx.Done():
		slog.Info("shutting down", "reason", ctx.Err())
	}

	eng.CancelCycle()
	stopCtx := c.Stop()
	<-stopCtx.Done()

	slog.Info("daemon stopped")
	return nil
}
