package engine

import (
	"context"
	"errors"
	"log/slog"
)

// reactionPhase pushes pending viewer reactions. A remote conflict
// means the reaction already exists there and counts as success. Each
// reaction is pushed independently; failures are logged and retried on
// the next cycle.
type reactionPhase struct{}

func (reactionPhase) Name() string { return "reaction-reconcile" }

func (reactionPhase) Run(ctx context.Context, sc *SyncContext) error {
	pending, err := sc.Store.PendingReactions(ctx, sc.UserID)
	if err != nil {
		return err
	}

	for _, r := range pending {
		if sc.Interrupted(ctx) {
			break
		}

		err := sc.Gateway.React(ctx, r.PostID, r.Kind)
		if err != nil && !errors.Is(err, ErrConflict) {
			slog.Warn("reaction push failed",
				"post", r.PostID,
				"kind", r.Kind,
				"error", err,
			)
			continue
		}

		if err := sc.Store.MarkReactionSynced(ctx, r.PostID, r.UserID, r.Kind); err != nil {
			return err
		}
	}
	return nil
}
