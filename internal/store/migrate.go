package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Migration is one linear schema step. Apply is restricted to
// structural changes: create table, add column, rebuild a table to fix
// its primary key, backfill a derived column. Never business-data
// mutation.
type Migration struct {
	Version int64
	Name    string
	Apply   func(tx *sql.Tx) error
}

// runMigrations applies every pending migration in ascending version
// order. Each migration runs in one transaction together with its
// schema_migrations tracking row, so a crash mid-migration leaves no
// half-applied version recorded. Re-running on a current store is a
// no-op.
func runMigrations(db *sql.DB) error {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INTEGER PRIMARY KEY,
			name       TEXT NOT NULL,
			applied_at TEXT NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	applied, err := appliedVersions(db)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if applied[m.Version] {
			continue
		}
		if err := applyMigration(db, m); err != nil {
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Name, err)
		}
		slog.Debug("migration applied", "version", m.Version, "name", m.Name)
	}

	return nil
}

func appliedVersions(db *sql.DB) (map[int64]bool, error) {
	rows, err := db.Query(`SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("read applied versions: %w", err)
	}
	defer rows.Close()

	applied := make(map[int64]bool)
	for rows.Next() {
		var v int64
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan applied version: %w", err)
		}
		applied[v] = true
	}
	return applied, rows.Err()
}

func applyMigration(db *sql.DB, m Migration) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if err := m.Apply(tx); err != nil {
		return err
	}

	_, err = tx.Exec(
		`INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, ?)`,
		m.Version, m.Name, time.Now().UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("record version: %w", err)
	}

	return tx.Commit()
}

// rebuildTable recreates a table with a new definition, preserving
// rows. SQLite cannot alter primary keys in place, so the recognized
// idiom is rename-create-copy-drop, executed on the migration's own
// transaction (no nested transactions, which SQLite rejects and which
// would deadlock under the single-writer pool).
//
// createSQL must create the table under its final name. cols is the
// shared column list copied from the old table.
func rebuildTable(tx *sql.Tx, table, createSQL string, cols []string) error {
	old := table + "_old"

	if _, err := tx.Exec(fmt.Sprintf(`ALTER TABLE %s RENAME TO %s`, table, old)); err != nil {
		return fmt.Errorf("rename %s: %w", table, err)
	}
	if _, err := tx.Exec(createSQL); err != nil {
		return fmt.Errorf("recreate %s: %w", table, err)
	}

	colList := strings.Join(cols, ", ")
	_, err := tx.Exec(fmt.Sprintf(
		`INSERT INTO %s (%s) SELECT %s FROM %s`,
		table, colList, colList, old,
	))
	if err != nil {
		return fmt.Errorf("reinsert into %s: %w", table, err)
	}

	if _, err := tx.Exec(fmt.Sprintf(`DROP TABLE %s`, old)); err != nil {
		return fmt.Errorf("drop %s: %w", old, err)
	}
	return nil
}
