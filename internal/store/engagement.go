package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/undertow/internal/model"
)

// PendingReactions returns the user's reactions not yet acknowledged
// remotely, in creation order.
func (s *Store) PendingReactions(ctx context.Context, userID string) ([]model.Reaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT post_id, user_id, kind, sync_status, created_at
		FROM reactions
		WHERE user_id = ? AND sync_status = ?
		ORDER BY created_at
	`, userID, string(model.StatusPending))
	if err != nil {
		return nil, fmt.Errorf("list pending reactions: %w", err)
	}
	defer rows.Close()

	var reactions []model.Reaction
	for rows.Next() {
		var r model.Reaction
		var createdAt string
		if err := rows.Scan(&r.PostID, &r.UserID, &r.Kind, &r.SyncStatus, &createdAt); err != nil {
			return nil, fmt.Errorf("scan reaction: %w", err)
		}
		r.CreatedAt = parseTime(createdAt)
		reactions = append(reactions, r)
	}
	return reactions, rows.Err()
}

// MarkReactionSynced acknowledges one reaction.
func (s *Store) MarkReactionSynced(ctx context.Context, postID, userID string, kind model.ReactionKind) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE reactions SET sync_status = ? WHERE post_id = ? AND user_id = ? AND kind = ?
	`, string(model.StatusSynced), postID, userID, string(kind))
	if err != nil {
		return fmt.Errorf("mark reaction synced: %w", err)
	}
	return nil
}

// PendingBookmarks returns the user's unpushed bookmarks in creation
// order. Bookmark reconciliation is push-only.
func (s *Store) PendingBookmarks(ctx context.Context, userID string) ([]model.Bookmark, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT post_id, user_id, sync_status, created_at
		FROM bookmarks
		WHERE user_id = ? AND sync_status = ?
		ORDER BY created_at
	`, userID, string(model.StatusPending))
	if err != nil {
		return nil, fmt.Errorf("list pending bookmarks: %w", err)
	}
	defer rows.Close()

	var bookmarks []model.Bookmark
	for rows.Next() {
		var b model.Bookmark
		var createdAt string
		if err := rows.Scan(&b.PostID, &b.UserID, &b.SyncStatus, &createdAt); err != nil {
			return nil, fmt.Errorf("scan bookmark: %w", err)
		}
		b.CreatedAt = parseTime(createdAt)
		bookmarks = append(bookmarks, b)
	}
	return bookmarks, rows.Err()
}

// MarkBookmarkSynced acknowledges one bookmark.
func (s *Store) MarkBookmarkSynced(ctx context.Context, postID, userID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE bookmarks SET sync_status = ? WHERE post_id = ? AND user_id = ?
	`, string(model.StatusSynced), postID, userID)
	if err != nil {
		return fmt.Errorf("mark bookmark synced: %w", err)
	}
	return nil
}

// PendingVotes returns the user's unacknowledged poll votes in
// creation order.
func (s *Store) PendingVotes(ctx context.Context, userID string) ([]model.PollVote, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT post_id, user_id, choice_index, sync_status, created_at, updated_at
		FROM poll_votes
		WHERE user_id = ? AND sync_status = ?
		ORDER BY created_at
	`, userID, string(model.StatusPending))
	if err != nil {
		return nil, fmt.Errorf("list pending votes: %w", err)
	}
	defer rows.Close()

	var votes []model.PollVote
	for rows.Next() {
		var v model.PollVote
		var createdAt, updatedAt string
		if err := rows.Scan(&v.PostID, &v.UserID, &v.ChoiceIndex, &v.SyncStatus, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan vote: %w", err)
		}
		v.CreatedAt = parseTime(createdAt)
		v.UpdatedAt = parseTime(updatedAt)
		votes = append(votes, v)
	}
	return votes, rows.Err()
}

// MarkVoteSynced acknowledges one poll vote.
func (s *Store) MarkVoteSynced(ctx context.Context, postID, userID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE poll_votes SET sync_status = ? WHERE post_id = ? AND user_id = ?
	`, string(model.StatusSynced), postID, userID)
	if err != nil {
		return fmt.Errorf("mark vote synced: %w", err)
	}
	return nil
}

// UpsertSyncedVote writes an authoritative viewer vote pulled from the
// remote. Pending-but-now-redundant local rows converge through this
// without manual reconciliation.
func (s *Store) UpsertSyncedVote(ctx context.Context, userID string, rec model.VoteRecord) error {
	now := formatTime(s.now())
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO poll_votes (post_id, user_id, choice_index, sync_status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(post_id, user_id) DO UPDATE SET
			choice_index = excluded.choice_index,
			sync_status  = excluded.sync_status,
			updated_at   = excluded.updated_at
	`, rec.PostID, userID, rec.ChoiceIndex, string(model.StatusSynced), now, now)
	if err != nil {
		return fmt.Errorf("upsert synced vote %s: %w", rec.PostID, err)
	}
	return nil
}

// GetVote reads the viewer's vote on one post. (nil, nil) when absent.
func (s *Store) GetVote(ctx context.Context, postID, userID string) (*model.PollVote, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT post_id, user_id, choice_index, sync_status, created_at, updated_at
		FROM poll_votes WHERE post_id = ? AND user_id = ?
	`, postID, userID)

	var v model.PollVote
	var createdAt, updatedAt string
	err := row.Scan(&v.PostID, &v.UserID, &v.ChoiceIndex, &v.SyncStatus, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get vote %s: %w", postID, err)
	}
	v.CreatedAt = parseTime(createdAt)
	v.UpdatedAt = parseTime(updatedAt)
	return &v, nil
}
