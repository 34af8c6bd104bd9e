package store

import (
	"context"
	"fmt"
)

// remapPostID rewrites every reference to oldID with newID across the
// scoped tables, then drops the superseded local stub row. Runs inside
// the caller's transaction so the cascade is atomic with the merge
// that introduced newID.
//
// UPDATE OR REPLACE handles the case where a row already exists under
// the new id (the authoritative merge may have written one): the
// remapped row replaces it instead of violating the primary key.
func (s *Store) remapPostID(ctx context.Context, q querier, oldID, newID string) error {
	stmts := []struct {
		name string
		sql  string
	}{
		{"posts parent refs", `UPDATE posts SET parent_id = ? WHERE parent_id = ?`},
		{"posts quoted refs", `UPDATE posts SET quoted_id = ? WHERE quoted_id = ?`},
		{"posts reposted refs", `UPDATE posts SET reposted_id = ? WHERE reposted_id = ?`},
		{"feed items", `UPDATE OR REPLACE feed_items SET post_id = ? WHERE post_id = ?`},
		{"reactions", `UPDATE OR REPLACE reactions SET post_id = ? WHERE post_id = ?`},
		{"bookmarks", `UPDATE OR REPLACE bookmarks SET post_id = ? WHERE post_id = ?`},
		{"poll votes", `UPDATE OR REPLACE poll_votes SET post_id = ? WHERE post_id = ?`},
	}

	for _, stmt := range stmts {
		if _, err := q.ExecContext(ctx, stmt.sql, newID, oldID); err != nil {
			return fmt.Errorf("remap %s %s -> %s: %w", stmt.name, oldID, newID, err)
		}
	}

	if _, err := q.ExecContext(ctx, `DELETE FROM posts WHERE id = ?`, oldID); err != nil {
		return fmt.Errorf("remap delete stub %s: %w", oldID, err)
	}
	return nil
}
