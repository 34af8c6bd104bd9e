package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// diagTables is every table the row-count check covers, sorted.
var diagTables = []string{
	"bookmarks", "drafts", "feed_items", "outbox_posts",
	"poll_votes", "posts", "reactions", "sync_state", "users",
}

// FKViolation is one row reported by SQLite's foreign key scan.
type FKViolation struct {
	Table  string
	RowID  int64
	Parent string
}

// TableCounts returns per-table row counts for the diagnostic phase.
func (s *Store) TableCounts(ctx context.Context) (map[string]int, error) {
	counts := make(map[string]int, len(diagTables))
	for _, table := range diagTables {
		var n int
		err := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, table)).Scan(&n)
		if err != nil {
			return nil, fmt.Errorf("count %s: %w", table, err)
		}
		counts[table] = n
	}
	return counts, nil
}

// ForeignKeyViolations runs SQLite's integrity scan over all foreign
// keys and returns every violating row.
func (s *Store) ForeignKeyViolations(ctx context.Context) ([]FKViolation, error) {
	rows, err := s.db.QueryContext(ctx, `PRAGMA foreign_key_check`)
	if err != nil {
		return nil, fmt.Errorf("foreign key check: %w", err)
	}
	defer rows.Close()

	var violations []FKViolation
	for rows.Next() {
		var v FKViolation
		var fkIndex int64
		if err := rows.Scan(&v.Table, &v.RowID, &v.Parent, &fkIndex); err != nil {
			return nil, fmt.Errorf("scan fk violation: %w", err)
		}
		violations = append(violations, v)
	}
	return violations, rows.Err()
}

// RenderCounts formats a count map deterministically (sorted by table
// name) for logs and golden snapshots.
func RenderCounts(counts map[string]int) string {
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		fmt.Fprintf(&b, "%s=%d ", name, counts[name])
	}
	return strings.TrimSpace(b.String())
}
