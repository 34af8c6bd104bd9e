package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/roach88/undertow/internal/model"
)

// MergeEntity persists an authoritative remote entity and its embedded
// references in one transaction.
func (s *Store) MergeEntity(ctx context.Context, e model.Entity) error {
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		return s.mergeEntity(ctx, tx, &e, make(map[string]bool))
	})
}

// mergeEntity is the recursive, cycle-safe entity writer.
//
// Order of operations:
//  1. visited-set guard (terminates on any accidental reference cycle)
//  2. embedded quoted/reposted entities first - dependencies before
//     dependents, which also removes same-cycle ordering hazards for
//     replies and quotes queued together
//  3. owning user upsert before any dependent insert
//  4. duplicate-intent conflict resolution: a locally created
//     repost/quote stub racing an authoritative row for the same
//     (owner, target, kind) loses; its references remap to the winner
//     and the stub is deleted
//  5. insert-or-update by id, merging display metadata (poll colors)
//     toward already-chosen local values, never implicitly
//     resurrecting a soft-deleted row
func (s *Store) mergeEntity(ctx context.Context, tx *sql.Tx, e *model.Entity, visited map[string]bool) error {
	if e == nil || visited[e.ID] {
		return nil
	}
	visited[e.ID] = true

	if e.Quoted != nil {
		if err := s.mergeEntity(ctx, tx, e.Quoted, visited); err != nil {
			return err
		}
	}
	if e.Reposted != nil {
		if err := s.mergeEntity(ctx, tx, e.Reposted, visited); err != nil {
			return err
		}
	}

	if e.Author.ID == "" {
		return fmt.Errorf("merge entity %s: authoritative entity has no author", e.ID)
	}
	if err := s.upsertUser(ctx, tx, e.Author); err != nil {
		return err
	}

	if target := e.TargetID(); target != "" {
		stub, err := s.findDuplicateIntent(ctx, tx, e.Author.ID, target, e.Kind, e.ID)
		if err != nil {
			return err
		}
		if stub != "" {
			// The local stub's intent is already realized remotely.
			// Its outbox entry, if any, would push a duplicate.
			if err := s.deleteOutboxEntry(ctx, tx, stub); err != nil {
				return err
			}
			if err := s.remapPostID(ctx, tx, stub, e.ID); err != nil {
				return err
			}
		}
	}

	existing, err := s.getPost(ctx, tx, e.ID)
	if err != nil {
		return err
	}
	if existing != nil && existing.Deleted {
		// Soft-deleted rows stay deleted; a remote upsert does not
		// resurrect them.
		return nil
	}

	poll := e.Poll
	if poll != nil && existing != nil {
		poll.AdoptColors(existing.Poll)
		if poll.VoterVoteIndex == model.NoVote && existing.Poll != nil {
			poll.VoterVoteIndex = existing.Poll.VoterVoteIndex
		}
	}

	if existing == nil {
		return s.insertPost(ctx, tx, postFromEntity(e, s.now()))
	}
	return s.updatePostFromEntity(ctx, tx, e)
}

func (s *Store) updatePostFromEntity(ctx context.Context, tx *sql.Tx, e *model.Entity) error {
	media, err := model.MarshalMedia(e.Media)
	if err != nil {
		return fmt.Errorf("merge entity %s: %w", e.ID, err)
	}
	poll, err := model.MarshalPoll(e.Poll)
	if err != nil {
		return fmt.Errorf("merge entity %s: %w", e.ID, err)
	}
	counts, err := model.MarshalReactionCounts(e.ReactionCounts)
	if err != nil {
		return fmt.Errorf("merge entity %s: %w", e.ID, err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE posts SET
			content = ?, media = ?, poll = ?, reaction_counts = ?,
			reply_count = ?, repost_count = ?,
			sync_status = ?, local_only = 0, updated_at = ?, edited_at = ?
		WHERE id = ? AND deleted = 0
	`,
		e.Content, media, nullable(poll), counts,
		e.ReplyCount, e.RepostCount,
		string(model.StatusSynced), formatTime(s.now()), nullable(formatTime(e.EditedAt)),
		e.ID,
	)
	if err != nil {
		return fmt.Errorf("merge entity %s: %w", e.ID, err)
	}
	return nil
}

func postFromEntity(e *model.Entity, now time.Time) model.Post {
	counts := e.ReactionCounts
	if counts == nil {
		counts = make(model.ReactionCounts)
	}
	return model.Post{
		ID:             e.ID,
		OwnerID:        e.Author.ID,
		Content:        e.Content,
		Media:          e.Media,
		Poll:           e.Poll,
		Kind:           e.Kind,
		ParentID:       e.ParentID,
		QuotedID:       e.QuotedID,
		RepostedID:     e.RepostedID,
		ReactionCounts: counts,
		ReplyCount:     e.ReplyCount,
		RepostCount:    e.RepostCount,
		Deleted:        e.Deleted,
		SyncStatus:     model.StatusSynced,
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      now,
		EditedAt:       e.EditedAt,
	}
}
