package cli

import (
	"os"
	"time"

	"github.com/spf13/cobra"
)

// PostOptions holds flags for the post command.
type PostOptions struct {
	*RootOptions
	ReplyTo      string
	Quote        string
	PollChoices  []string
	PollDuration time.Duration
	NoSync       bool
}

// NewPostCommand creates the post command.
func NewPostCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PostOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "post <content>",
		Short: "Compose a post, reply, quote, or poll",
		Long: `Compose a post locally and push it on the next sync cycle.

The post is written optimistically with a client-generated id and
queued in the outbox; by default one sync cycle runs immediately after.

Examples:
  undertow post "hello world"
  undertow post "agreed" --reply-to p-123
  undertow post "look at this" --quote p-123
  undertow post "best editor?" --poll vim --poll emacs --poll-duration 24h`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPost(opts, cmd, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.ReplyTo, "reply-to", "", "post id to reply to")
	cmd.Flags().StringVar(&opts.Quote, "quote", "", "post id to quote")
	cmd.Flags().StringArrayVar(&opts.PollChoices, "poll", nil, "poll choice (repeat 2-4 times)")
	cmd.Flags().DurationVar(&opts.PollDuration, "poll-duration", 24*time.Hour, "poll open duration")
	cmd.Flags().BoolVar(&opts.NoSync, "no-sync", false, "queue only; skip the immediate sync cycle")

	return cmd
}

func runPost(opts *PostOptions, cmd *cobra.Command, content string) error {
	set := 0
	for _, on := range []bool{opts.ReplyTo != "", opts.Quote != "", len(opts.PollChoices) > 0} {
		if on {
			set++
		}
	}
	if set > 1 {
		return NewExitError(ExitCommandError, "--reply-to, --quote, and --poll are mutually exclusive")
	}

	cfg, err := opts.loadConfig()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	opts.setupLogging(cfg)

	eng, closeStore, err := opts.openEngine(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	if err := bindFromConfig(cmd, eng, cfg); err != nil {
		return err
	}

	ctx := cmd.Context()
	var id string
	switch {
	case opts.ReplyTo != "":
		id, err = eng.Reply(ctx, opts.ReplyTo, content, nil)
	case opts.Quote != "":
		id, _, err = eng.Quote(ctx, opts.Quote, content, nil)
	case len(opts.PollChoices) > 0:
		id, err = eng.PostPoll(ctx, content, opts.PollChoices, time.Now().Add(opts.PollDuration))
	default:
		id, err = eng.Post(ctx, content, nil)
	}
	if err != nil {
		return WrapExitError(ExitFailure, "compose failed", err)
	}

	if !opts.NoSync {
		if err := eng.RunCycle(ctx); err != nil {
			return WrapExitError(ExitFailure, "sync cycle failed", err)
		}
	}

	out := &OutputFormatter{Format: opts.Format, Writer: os.Stdout, Verbose: opts.Verbose}
	if opts.Format == "json" {
		return out.Success(map[string]string{"id": id})
	}
	msg := "queued " + id
	if !opts.NoSync {
		msg = "posted " + id
	}
	return out.Success(msg)
}
