package engine

import (
	"context"
	"errors"
	"log/slog"
)

// bookmarkPhase pushes pending viewer bookmarks. Reconciliation is
// push-only: the remote bookmark list is never pulled, so a bookmark
// made on another device shows up there, not here.
//
// The remote call is a toggle, so pushing a bookmark the remote
// already has would flip it off; that lands as resulting state false
// and a single corrective toggle restores the intent.
type bookmarkPhase struct{}

func (bookmarkPhase) Name() string { return "bookmark-reconcile" }

func (bookmarkPhase) Run(ctx context.Context, sc *SyncContext) error {
	pending, err := sc.Store.PendingBookmarks(ctx, sc.UserID)
	if err != nil {
		return err
	}

	for _, b := range pending {
		if sc.Interrupted(ctx) {
			break
		}

		bookmarked, err := sc.Gateway.ToggleBookmark(ctx, b.PostID)
		switch {
		case errors.Is(err, ErrConflict):
			// Already bookmarked remotely.
		case err != nil:
			slog.Warn("bookmark push failed", "post", b.PostID, "error", err)
			continue
		case !bookmarked:
			if _, err := sc.Gateway.ToggleBookmark(ctx, b.PostID); err != nil && !errors.Is(err, ErrConflict) {
				slog.Warn("bookmark restore failed", "post", b.PostID, "error", err)
				continue
			}
		}

		if err := sc.Store.MarkBookmarkSynced(ctx, b.PostID, b.UserID); err != nil {
			return err
		}
	}
	return nil
}
