package engine

import (
	"context"
	"errors"
	"log/slog"

	"github.com/roach88/undertow/internal/model"
)

// votePhase reconciles poll votes in two directions. Push: every
// pending local vote goes to the remote; the returned authoritative
// entity carries settled counts and is merged, replacing the
// optimistic increments. Pull: the viewer's authoritative vote list
// overwrites local vote rows so votes cast on other devices appear.
type votePhase struct{}

func (votePhase) Name() string { return "poll-vote-reconcile" }

func (votePhase) Run(ctx context.Context, sc *SyncContext) error {
	pending, err := sc.Store.PendingVotes(ctx, sc.UserID)
	if err != nil {
		return err
	}

	changed := false
	for _, v := range pending {
		if sc.Interrupted(ctx) {
			break
		}

		entity, err := sc.Gateway.VotePoll(ctx, v.PostID, v.ChoiceIndex)
		switch {
		case errors.Is(err, ErrConflict):
			// The remote already recorded this vote; local state is the
			// intent, so just acknowledge.
		case err != nil:
			slog.Warn("vote push failed",
				"post", v.PostID,
				"choice", v.ChoiceIndex,
				"error", err,
			)
			continue
		default:
			if err := sc.Store.MergeEntity(ctx, entity); err != nil {
				return err
			}
			// The merge preserved the viewer index; settle it to the
			// acknowledged choice.
			if err := sc.Store.SetPollViewerVote(ctx, v.PostID, v.ChoiceIndex); err != nil {
				return err
			}
		}

		if err := sc.Store.MarkVoteSynced(ctx, v.PostID, v.UserID); err != nil {
			return err
		}
		changed = true
	}

	if sc.Interrupted(ctx) {
		return nil
	}

	records, err := sc.Gateway.MyVotes(ctx)
	if err != nil {
		// Pull failure leaves pushed state intact; next cycle retries.
		slog.Warn("vote pull failed", "error", err)
		if changed {
			sc.Notifier.Notify(FeedUpdated{})
		}
		return nil
	}

	for _, rec := range records {
		if sc.Interrupted(ctx) {
			break
		}

		// Only adopt votes for posts the cache knows; the feed pull
		// will bring unknown posts in later cycles.
		post, err := sc.Store.GetPost(ctx, rec.PostID)
		if err != nil {
			return err
		}
		if post == nil || post.Poll == nil {
			continue
		}

		local, err := sc.Store.GetVote(ctx, rec.PostID, sc.UserID)
		if err != nil {
			return err
		}
		if local != nil && local.ChoiceIndex == rec.ChoiceIndex && local.SyncStatus == model.StatusSynced {
			continue
		}

		if err := sc.Store.UpsertSyncedVote(ctx, sc.UserID, rec); err != nil {
			return err
		}
		if err := sc.Store.SetPollViewerVote(ctx, rec.PostID, rec.ChoiceIndex); err != nil {
			return err
		}
		changed = true
	}

	if changed {
		sc.Notifier.Notify(FeedUpdated{})
	}
	return nil
}
