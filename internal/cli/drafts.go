package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/undertow/internal/engine"
	"github.com/roach88/undertow/internal/model"
)

// NewDraftsCommand creates the drafts command group.
func NewDraftsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "drafts",
		Short: "Manage composer drafts",
		Long:  "List, save, and delete local composer drafts. Drafts never sync.",
	}

	cmd.AddCommand(newDraftsListCommand(rootOpts))
	cmd.AddCommand(newDraftsSaveCommand(rootOpts))
	cmd.AddCommand(newDraftsDeleteCommand(rootOpts))
	return cmd
}

func newDraftsListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list",
		Short:         "List drafts, newest first",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, closeStore, _, err := draftsSetup(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer closeStore()

			drafts, err := eng.Drafts(cmd.Context())
			if err != nil {
				return WrapExitError(ExitFailure, "list drafts failed", err)
			}

			out := &OutputFormatter{Format: rootOpts.Format, Writer: os.Stdout, Verbose: rootOpts.Verbose}
			if rootOpts.Format == "json" {
				return out.Success(drafts)
			}
			if len(drafts) == 0 {
				return out.Success("no drafts")
			}
			for _, d := range drafts {
				fmt.Fprintf(os.Stdout, "%s  %s  %q\n", d.ID, d.UpdatedAt.Format("2006-01-02 15:04"), truncate(d.Content, 60))
			}
			return nil
		},
	}
}

func newDraftsSaveCommand(rootOpts *RootOptions) *cobra.Command {
	var id string

	cmd := &cobra.Command{
		Use:           "save <content>",
		Short:         "Save a draft (new, or overwrite with --id)",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, closeStore, _, err := draftsSetup(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer closeStore()

			draftID, err := eng.SaveDraft(cmd.Context(), model.Draft{ID: id, Content: args[0]})
			if err != nil {
				return WrapExitError(ExitFailure, "save draft failed", err)
			}

			out := &OutputFormatter{Format: rootOpts.Format, Writer: os.Stdout, Verbose: rootOpts.Verbose}
			if rootOpts.Format == "json" {
				return out.Success(map[string]string{"id": draftID})
			}
			return out.Success("saved " + draftID)
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "draft id to overwrite")
	return cmd
}

func newDraftsDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "delete <draft-id>",
		Short:         "Delete a draft",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, closeStore, _, err := draftsSetup(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer closeStore()

			if err := eng.DeleteDraft(cmd.Context(), args[0]); err != nil {
				return WrapExitError(ExitFailure, "delete draft failed", err)
			}

			out := &OutputFormatter{Format: rootOpts.Format, Writer: os.Stdout, Verbose: rootOpts.Verbose}
			return out.Success("deleted " + args[0])
		},
	}
}

// draftsSetup is the shared open-and-bind preamble for draft
// subcommands.
func draftsSetup(rootOpts *RootOptions, cmd *cobra.Command) (eng *engine.Engine, closeStore func() error, cfg Config, err error) {
	cfg, err = rootOpts.loadConfig()
	if err != nil {
		return nil, nil, cfg, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	rootOpts.setupLogging(cfg)

	e, closeStore, err := rootOpts.openEngine(cfg)
	if err != nil {
		return nil, nil, cfg, err
	}
	if err := bindFromConfig(cmd, e, cfg); err != nil {
		closeStore()
		return nil, nil, cfg, err
	}
	return e, closeStore, cfg, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
