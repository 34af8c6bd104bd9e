package engine

import (
	"context"
	"errors"
	"log/slog"

	"github.com/roach88/undertow/internal/model"
	"github.com/roach88/undertow/internal/store"
)

// feedCursorKey identifies the home feed watermark in sync_state.
const feedCursorKey = "feed:home"

// feedPhase pulls the remote feed delta since the stored cursor and
// applies it transactionally: merges, feed rows, deletions, and the
// new cursor commit together or not at all.
//
// Self-heal: an empty materialized feed alongside a non-epoch cursor
// means the feed rows were lost (wipe, partial purge) while the
// watermark survived. The cursor is reset to the epoch first so the
// pull rebuilds the feed from scratch instead of silently serving
// nothing forever.
//
// The cursor advances to the cycle's start time even when the delta is
// empty, so a quiet feed does not re-scan the same window every cycle.
type feedPhase struct{}

func (feedPhase) Name() string { return "feed-delta-pull" }

func (feedPhase) Run(ctx context.Context, sc *SyncContext) error {
	cursor, err := sc.Store.Cursor(ctx, feedCursorKey, sc.UserID)
	if err != nil {
		return err
	}

	count, err := sc.Store.FeedCount(ctx, model.FeedScopeHome, sc.UserID)
	if err != nil {
		return err
	}
	if count == 0 && cursor != store.EpochCursor {
		slog.Warn("empty feed with advanced cursor, resetting to epoch",
			"user", sc.UserID,
			"cursor", cursor,
		)
		cursor = store.EpochCursor
	}

	delta, err := sc.Gateway.DeltaFeed(ctx, cursor)
	if err != nil {
		return err
	}

	newCursor := sc.StartedAt.UTC().Format("2006-01-02T15:04:05Z07:00")
	err = sc.Store.ApplyFeedDelta(ctx, sc.UserID, delta, feedCursorKey, newCursor, func() bool {
		return sc.Interrupted(ctx)
	})
	if errors.Is(err, store.ErrInterrupted) {
		slog.Info("feed delta apply aborted, cursor unchanged", "user", sc.UserID)
		return nil
	}
	if err != nil {
		return err
	}

	if len(delta.Upserts) > 0 || len(delta.DeletedIDs) > 0 {
		sc.Notifier.Notify(FeedUpdated{})
	}
	return nil
}
