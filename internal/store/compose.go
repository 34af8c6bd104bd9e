package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/undertow/internal/model"
)

// ErrNotFound marks a missing row that the caller referenced
// explicitly (vote on an uncached post, draft lookup by id).
var ErrNotFound = errors.New("not found")

// CreateLocalPost writes an optimistic post row plus its outbox entry
// in one transaction. The owning user row is ensured first so the
// owner foreign key holds before any dependent insert.
//
// Repost/quote dedup: an existing non-deleted post by the same owner
// with the same target and kind toggles instead of duplicating - the
// existing post is soft-deleted, its pending outbox entry removed, and
// its id returned with created=false. A third call creates afresh, so
// toggle parity holds.
func (s *Store) CreateLocalPost(ctx context.Context, p model.Post) (id string, created bool, err error) {
	err = s.WithTx(ctx, func(tx *sql.Tx) error {
		if err := s.ensureUser(ctx, tx, p.OwnerID); err != nil {
			return err
		}

		if target := p.TargetID(); target != "" {
			dup, err := s.findDuplicateIntent(ctx, tx, p.OwnerID, target, p.Kind, p.ID)
			if err != nil {
				return err
			}
			if dup != "" {
				return s.undoRepost(ctx, tx, dup, target, p.Kind, &id)
			}
		}

		now := s.now()
		p.CreatedAt = now
		p.UpdatedAt = now
		p.SyncStatus = model.StatusPending
		if p.ReactionCounts == nil {
			p.ReactionCounts = make(model.ReactionCounts)
		}
		if err := s.insertPost(ctx, tx, p); err != nil {
			return err
		}

		switch p.Kind {
		case model.KindReply:
			if err := s.adjustReplyCount(ctx, tx, p.ParentID, 1); err != nil {
				return err
			}
		case model.KindRepost:
			if err := s.adjustRepostCount(ctx, tx, p.RepostedID, 1); err != nil {
				return err
			}
		}

		if err := s.insertOutboxEntry(ctx, tx, outboxEntryFor(p)); err != nil {
			return err
		}

		id = p.ID
		created = true
		return nil
	})
	return id, created, err
}

// undoRepost is the toggle-off half of repost/quote dedup.
func (s *Store) undoRepost(ctx context.Context, tx *sql.Tx, dupID, targetID string, kind model.PostKind, outID *string) error {
	if err := s.softDeletePost(ctx, tx, dupID); err != nil {
		return err
	}
	if kind == model.KindRepost {
		if err := s.adjustRepostCount(ctx, tx, targetID, -1); err != nil {
			return err
		}
	}
	// The optimistic post never made it remote; drop its outbox entry
	// so the flush does not push an undone mutation.
	if _, err := tx.ExecContext(ctx, `DELETE FROM outbox_posts WHERE local_id = ?`, dupID); err != nil {
		return fmt.Errorf("delete outbox entry %s: %w", dupID, err)
	}
	*outID = dupID
	return nil
}

// ToggleReaction flips one (post, user, kind) reaction and adjusts the
// post's counter in the same transaction. Returns whether the reaction
// now exists.
func (s *Store) ToggleReaction(ctx context.Context, userID, postID string, kind model.ReactionKind) (added bool, err error) {
	err = s.WithTx(ctx, func(tx *sql.Tx) error {
		if err := s.ensureUser(ctx, tx, userID); err != nil {
			return err
		}

		var exists int
		err := tx.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM reactions WHERE post_id = ? AND user_id = ? AND kind = ?
		`, postID, userID, string(kind)).Scan(&exists)
		if err != nil {
			return fmt.Errorf("check reaction: %w", err)
		}

		if exists > 0 {
			_, err := tx.ExecContext(ctx, `
				DELETE FROM reactions WHERE post_id = ? AND user_id = ? AND kind = ?
			`, postID, userID, string(kind))
			if err != nil {
				return fmt.Errorf("delete reaction: %w", err)
			}
			added = false
			return s.adjustReactionCount(ctx, tx, postID, kind, -1)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO reactions (post_id, user_id, kind, sync_status, created_at)
			VALUES (?, ?, ?, ?, ?)
		`, postID, userID, string(kind), string(model.StatusPending), formatTime(s.now()))
		if err != nil {
			return fmt.Errorf("insert reaction: %w", err)
		}
		added = true
		return s.adjustReactionCount(ctx, tx, postID, kind, 1)
	})
	return added, err
}

// ToggleBookmark flips one (post, user) bookmark. Returns whether the
// bookmark now exists.
func (s *Store) ToggleBookmark(ctx context.Context, userID, postID string) (added bool, err error) {
	err = s.WithTx(ctx, func(tx *sql.Tx) error {
		if err := s.ensureUser(ctx, tx, userID); err != nil {
			return err
		}

		var exists int
		err := tx.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM bookmarks WHERE post_id = ? AND user_id = ?
		`, postID, userID).Scan(&exists)
		if err != nil {
			return fmt.Errorf("check bookmark: %w", err)
		}

		if exists > 0 {
			_, err := tx.ExecContext(ctx, `
				DELETE FROM bookmarks WHERE post_id = ? AND user_id = ?
			`, postID, userID)
			if err != nil {
				return fmt.Errorf("delete bookmark: %w", err)
			}
			added = false
			return nil
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO bookmarks (post_id, user_id, sync_status, created_at)
			VALUES (?, ?, ?, ?)
		`, postID, userID, string(model.StatusPending), formatTime(s.now()))
		if err != nil {
			return fmt.Errorf("insert bookmark: %w", err)
		}
		added = true
		return nil
	})
	return added, err
}

// VotePoll idempotently upserts the viewer's vote on a poll post.
//
// The optimistic counter increment is applied only while no synced
// vote exists yet: once the remote has acknowledged a vote, the
// authoritative counts already include it and a second local increment
// would double count.
func (s *Store) VotePoll(ctx context.Context, userID, postID string, choiceIndex int) error {
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		if err := s.ensureUser(ctx, tx, userID); err != nil {
			return err
		}

		post, err := s.getPost(ctx, tx, postID)
		if err != nil {
			return err
		}
		if post == nil {
			return fmt.Errorf("vote on post %s: %w", postID, ErrNotFound)
		}
		if post.Poll == nil {
			return fmt.Errorf("vote on post %s: post has no poll", postID)
		}
		if choiceIndex < 0 || choiceIndex >= len(post.Poll.Choices) {
			return fmt.Errorf("vote on post %s: choice %d out of range", postID, choiceIndex)
		}

		var prevChoice int
		var prevStatus string
		hadVote := true
		err = tx.QueryRowContext(ctx, `
			SELECT choice_index, sync_status FROM poll_votes WHERE post_id = ? AND user_id = ?
		`, postID, userID).Scan(&prevChoice, &prevStatus)
		if err == sql.ErrNoRows {
			hadVote = false
		} else if err != nil {
			return fmt.Errorf("read vote: %w", err)
		}

		if hadVote && prevChoice == choiceIndex {
			return nil // idempotent re-vote
		}

		now := formatTime(s.now())
		_, err = tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO poll_votes
				(post_id, user_id, choice_index, sync_status, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, postID, userID, choiceIndex, string(model.StatusPending), now, now)
		if err != nil {
			return fmt.Errorf("write vote: %w", err)
		}

		poll := post.Poll
		poll.VoterVoteIndex = choiceIndex
		if !hadVote {
			poll.Choices[choiceIndex].Votes++
		} else if prevStatus == string(model.StatusPending) {
			// Pending switch: move the optimistic increment.
			if poll.Choices[prevChoice].Votes > 0 {
				poll.Choices[prevChoice].Votes--
			}
			poll.Choices[choiceIndex].Votes++
		}
		// Synced previous vote: counters stay authoritative; only the
		// viewer index moves, and reconciliation settles the counts.

		return s.savePoll(ctx, tx, postID, poll)
	})
}

func outboxEntryFor(p model.Post) model.OutboxEntry {
	return model.OutboxEntry{
		LocalID: p.ID,
		OwnerID: p.OwnerID,
		Payload: model.PostDraft{
			Content:    p.Content,
			Media:      p.Media,
			Poll:       p.Poll,
			Kind:       p.Kind,
			ParentID:   p.ParentID,
			QuotedID:   p.QuotedID,
			RepostedID: p.RepostedID,
		},
		Status: model.OutboxPending,
	}
}
