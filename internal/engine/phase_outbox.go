package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/undertow/internal/model"
)

// outboxPhase flushes pending local mutations to the remote, oldest
// first. Each entry is pushed independently: a failed entry is marked
// failed (retry count incremented, error recorded) and the flush moves
// on, so one poisoned mutation never blocks the queue behind it.
//
// On success the authoritative entity is merged and the optimistic
// local id remapped in one transaction, then the outbox row deleted.
type outboxPhase struct{}

func (outboxPhase) Name() string { return "outbox-flush" }

func (outboxPhase) Run(ctx context.Context, sc *SyncContext) error {
	entries, err := sc.Store.PendingOutbox(ctx, sc.UserID)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	flushed := 0
	for _, entry := range entries {
		if sc.Interrupted(ctx) {
			break
		}
		if err := flushEntry(ctx, sc, entry); err != nil {
			slog.Warn("outbox entry failed",
				"local_id", entry.LocalID,
				"kind", entry.Payload.Kind,
				"retries", entry.RetryCount,
				"error", err,
			)
			if markErr := sc.Store.MarkOutboxFailed(ctx, entry.LocalID, err.Error()); markErr != nil {
				return markErr
			}
			continue
		}
		flushed++
	}

	if flushed > 0 {
		sc.Notifier.Notify(FeedUpdated{})
	}
	return nil
}

// flushEntry pushes one outbox entry and commits the authoritative
// result. A remote conflict means the effect already exists; it is
// resolved by fetching the entity instead of failing.
func flushEntry(ctx context.Context, sc *SyncContext, entry model.OutboxEntry) error {
	if err := sc.Store.MarkOutboxCommitting(ctx, entry.LocalID); err != nil {
		return err
	}

	var authoritative model.Entity
	var err error
	switch entry.Payload.Kind {
	case model.KindPoll:
		authoritative, err = sc.Gateway.CreatePoll(ctx, entry.LocalID, entry.Payload)
	case model.KindRepost:
		authoritative, err = sc.Gateway.Repost(ctx, entry.Payload.RepostedID)
	default:
		authoritative, err = sc.Gateway.CreatePost(ctx, entry.LocalID, entry.Payload)
	}

	if errors.Is(err, ErrConflict) {
		// The remote already has this mutation (a retried push that
		// succeeded before the ack arrived). Hydrate it by client id.
		existing, getErr := sc.Gateway.GetPost(ctx, entry.LocalID)
		if getErr != nil {
			return fmt.Errorf("hydrate conflicting post %s: %w", entry.LocalID, getErr)
		}
		if existing == nil {
			return fmt.Errorf("conflict on %s but remote has no such post", entry.LocalID)
		}
		authoritative = *existing
	} else if err != nil {
		return err
	}

	return sc.Store.CommitOutboxEntry(ctx, entry.LocalID, authoritative)
}
