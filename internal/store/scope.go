package store

import (
	"context"
	"database/sql"
	"fmt"
)

// scopedTables maps each user-scoped table to its owner column, in
// dependency order: dependents first so the owner foreign key on posts
// never trips mid-purge.
var scopedTables = []struct {
	table string
	owner string
}{
	{"reactions", "user_id"},
	{"bookmarks", "user_id"},
	{"poll_votes", "user_id"},
	{"feed_items", "user_id"},
	{"sync_state", "user_id"},
	{"drafts", "user_id"},
	{"outbox_posts", "owner_id"},
	{"posts", "owner_id"},
	{"users", "id"},
}

// Bind isolates the store to a single authenticated identity: within
// one transaction it deletes every scoped row whose owner differs from
// userID, then deletes any post whose owner no longer exists (defense
// against dangling references). Bind and Wipe are the only operations
// permitted to bulk-delete rows.
func (s *Store) Bind(ctx context.Context, userID string) error {
	if userID == "" {
		return fmt.Errorf("bind: empty user id")
	}

	err := s.WithTx(ctx, func(tx *sql.Tx) error {
		for _, t := range scopedTables {
			_, err := tx.ExecContext(ctx,
				fmt.Sprintf(`DELETE FROM %s WHERE %s != ?`, t.table, t.owner),
				userID,
			)
			if err != nil {
				return fmt.Errorf("purge %s: %w", t.table, err)
			}
		}

		// Posts can reference owners that arrived through embedded
		// entities and were purged above.
		_, err := tx.ExecContext(ctx, `
			DELETE FROM posts WHERE owner_id NOT IN (SELECT id FROM users)
		`)
		if err != nil {
			return fmt.Errorf("purge orphaned posts: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("bind %s: %w", userID, err)
	}
	return nil
}

// Wipe is the full logout teardown: deletes every row owned by userID.
func (s *Store) Wipe(ctx context.Context, userID string) error {
	if userID == "" {
		return fmt.Errorf("wipe: empty user id")
	}

	err := s.WithTx(ctx, func(tx *sql.Tx) error {
		for _, t := range scopedTables {
			_, err := tx.ExecContext(ctx,
				fmt.Sprintf(`DELETE FROM %s WHERE %s = ?`, t.table, t.owner),
				userID,
			)
			if err != nil {
				return fmt.Errorf("wipe %s: %w", t.table, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("wipe %s: %w", userID, err)
	}
	return nil
}
