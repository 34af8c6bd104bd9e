package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/undertow/internal/model"
)

// ErrInterrupted reports that a batch apply observed the caller's
// abort signal and rolled back. Nothing was committed; the cursor did
// not move.
var ErrInterrupted = errors.New("batch apply interrupted")

// EpochCursor is the default watermark requesting the full feed.
const EpochCursor = "1970-01-01T00:00:00Z"

// Cursor reads the stored watermark for (key, user), defaulting to the
// epoch when none is stored.
func (s *Store) Cursor(ctx context.Context, key, userID string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `
		SELECT value FROM sync_state WHERE key = ? AND user_id = ?
	`, key, userID).Scan(&value)
	if err == sql.ErrNoRows {
		return EpochCursor, nil
	}
	if err != nil {
		return "", fmt.Errorf("read cursor %s: %w", key, err)
	}
	return value, nil
}

// SetCursor stores a watermark for (key, user).
func (s *Store) SetCursor(ctx context.Context, key, userID, value string) error {
	return s.setCursor(ctx, s.db, key, userID, value)
}

func (s *Store) setCursor(ctx context.Context, q querier, key, userID, value string) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO sync_state (key, user_id, value, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key, user_id) DO UPDATE SET
			value = excluded.value, updated_at = excluded.updated_at
	`, key, userID, value, formatTime(s.now()))
	if err != nil {
		return fmt.Errorf("set cursor %s: %w", key, err)
	}
	return nil
}

// FeedCount returns the number of materialized feed rows for a scope.
func (s *Store) FeedCount(ctx context.Context, scope, userID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM feed_items WHERE scope = ? AND user_id = ?
	`, scope, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count feed items: %w", err)
	}
	return count, nil
}

// FeedItems returns a user's materialized feed for a scope, newest
// rank first.
func (s *Store) FeedItems(ctx context.Context, scope, userID string) ([]model.FeedItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT scope, user_id, post_id, rank, inserted_at
		FROM feed_items
		WHERE scope = ? AND user_id = ?
		ORDER BY rank DESC, post_id
	`, scope, userID)
	if err != nil {
		return nil, fmt.Errorf("list feed items: %w", err)
	}
	defer rows.Close()

	var items []model.FeedItem
	for rows.Next() {
		var it model.FeedItem
		var insertedAt string
		if err := rows.Scan(&it.Scope, &it.UserID, &it.PostID, &it.Rank, &insertedAt); err != nil {
			return nil, fmt.Errorf("scan feed item: %w", err)
		}
		it.InsertedAt = parseTime(insertedAt)
		items = append(items, it)
	}
	return items, rows.Err()
}

func (s *Store) insertFeedItem(ctx context.Context, q querier, item model.FeedItem) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO feed_items (scope, user_id, post_id, rank, inserted_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(scope, user_id, post_id) DO NOTHING
	`, item.Scope, item.UserID, item.PostID, item.Rank, formatTime(s.now()))
	if err != nil {
		return fmt.Errorf("insert feed item %s: %w", item.PostID, err)
	}
	return nil
}

func (s *Store) deleteFeedItem(ctx context.Context, q querier, scope, userID, postID string) error {
	_, err := q.ExecContext(ctx, `
		DELETE FROM feed_items WHERE scope = ? AND user_id = ? AND post_id = ?
	`, scope, userID, postID)
	if err != nil {
		return fmt.Errorf("delete feed item %s: %w", postID, err)
	}
	return nil
}

// ApplyFeedDelta applies one remote delta batch in a single
// transaction: merge every upsert and materialize its feed row, apply
// every deletion as a soft delete plus feed removal, then advance the
// cursor. Either the whole batch and the cursor commit together or
// nothing does - the cursor never advances past unprocessed data.
//
// interrupted is checked between items; when it reports true the
// transaction rolls back and ErrInterrupted is returned.
func (s *Store) ApplyFeedDelta(ctx context.Context, userID string, delta model.FeedDelta, cursorKey, newCursor string, interrupted func() bool) error {
	if interrupted == nil {
		interrupted = func() bool { return false }
	}

	return s.WithTx(ctx, func(tx *sql.Tx) error {
		for i := range delta.Upserts {
			if interrupted() {
				return ErrInterrupted
			}
			e := &delta.Upserts[i]
			if err := s.mergeEntity(ctx, tx, e, make(map[string]bool)); err != nil {
				return err
			}
			if err := s.insertFeedItem(ctx, tx, model.FeedItem{
				Scope:  model.FeedScopeHome,
				UserID: userID,
				PostID: e.ID,
				Rank:   rankFor(e.CreatedAt),
			}); err != nil {
				return err
			}
		}

		for _, id := range delta.DeletedIDs {
			if interrupted() {
				return ErrInterrupted
			}
			if err := s.softDeletePost(ctx, tx, id); err != nil {
				return err
			}
			if err := s.deleteFeedItem(ctx, tx, model.FeedScopeHome, userID, id); err != nil {
				return err
			}
		}

		return s.setCursor(ctx, tx, cursorKey, userID, newCursor)
	})
}

// rankFor derives a feed rank from the post's creation time.
func rankFor(createdAt time.Time) float64 {
	if createdAt.IsZero() {
		return 0
	}
	return float64(createdAt.UnixMilli()) / 1000.0
}
