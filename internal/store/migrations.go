package store

import (
	"database/sql"
	_ "embed"
	"fmt"
)

//go:embed schema.sql
var baseSchemaSQL string

// migrations is the linear schema history. Append only; never reorder
// or edit an applied entry.
var migrations = []Migration{
	{
		Version: 1,
		Name:    "base schema",
		Apply: func(tx *sql.Tx) error {
			if _, err := tx.Exec(baseSchemaSQL); err != nil {
				return fmt.Errorf("apply base schema: %w", err)
			}
			return nil
		},
	},
	{
		Version: 2,
		Name:    "posts edited_at",
		Apply: func(tx *sql.Tx) error {
			if _, err := tx.Exec(`ALTER TABLE posts ADD COLUMN edited_at TEXT`); err != nil {
				return fmt.Errorf("add posts.edited_at: %w", err)
			}
			return nil
		},
	},
	{
		// The original poll_votes key was post_id alone, which breaks
		// as soon as two bound identities ever share a store file.
		// Composite key matches the scoping of every other table.
		Version: 3,
		Name:    "poll_votes composite key",
		Apply: func(tx *sql.Tx) error {
			return rebuildTable(tx, "poll_votes", `
				CREATE TABLE poll_votes (
					post_id      TEXT NOT NULL,
					user_id      TEXT NOT NULL,
					choice_index INTEGER NOT NULL,
					sync_status  TEXT NOT NULL DEFAULT 'pending',
					created_at   TEXT NOT NULL,
					updated_at   TEXT NOT NULL,
					PRIMARY KEY (post_id, user_id)
				)
			`, []string{"post_id", "user_id", "choice_index", "sync_status", "created_at", "updated_at"})
		},
	},
	{
		Version: 4,
		Name:    "backfill feed_items rank",
		Apply: func(tx *sql.Tx) error {
			// Rank is derived from the post's creation time; rows
			// written before ranking landed carry the default 0.
			_, err := tx.Exec(`
				UPDATE feed_items
				SET rank = COALESCE((
					SELECT strftime('%s', p.created_at)
					FROM posts p WHERE p.id = feed_items.post_id
				), 0)
				WHERE rank = 0
			`)
			if err != nil {
				return fmt.Errorf("backfill rank: %w", err)
			}
			return nil
		},
	},
	{
		Version: 5,
		Name:    "outbox flush index",
		Apply: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
				CREATE INDEX IF NOT EXISTS idx_outbox_owner_status
				ON outbox_posts(owner_id, status, created_at)
			`)
			if err != nil {
				return fmt.Errorf("create outbox index: %w", err)
			}
			return nil
		},
	},
}
