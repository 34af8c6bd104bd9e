package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/undertow/internal/model"
)

// querier is satisfied by both *sql.DB and *sql.Tx so entity helpers
// can run standalone or inside a larger transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// UpsertUser inserts or refreshes a cached user row.
func (s *Store) UpsertUser(ctx context.Context, u model.User) error {
	return s.upsertUser(ctx, s.db, u)
}

func (s *Store) upsertUser(ctx context.Context, q querier, u model.User) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO users (id, handle, display_name, avatar_url, header_url, verified, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			handle       = excluded.handle,
			display_name = excluded.display_name,
			avatar_url   = excluded.avatar_url,
			header_url   = excluded.header_url,
			verified     = excluded.verified,
			updated_at   = excluded.updated_at
	`,
		u.ID, u.Handle, u.DisplayName, u.AvatarURL, u.HeaderURL,
		boolToInt(u.Verified), formatTime(s.now()),
	)
	if err != nil {
		return fmt.Errorf("upsert user %s: %w", u.ID, err)
	}
	return nil
}

// ensureUser inserts a minimal user row if none exists, so dependent
// inserts satisfy the owner foreign key. Existing rows are untouched.
func (s *Store) ensureUser(ctx context.Context, q querier, userID string) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO users (id, updated_at) VALUES (?, ?)
		ON CONFLICT(id) DO NOTHING
	`, userID, formatTime(s.now()))
	if err != nil {
		return fmt.Errorf("ensure user %s: %w", userID, err)
	}
	return nil
}

// EnsureUser inserts a minimal user row if none exists. Used when an
// identity is bound before any profile data has been cached.
func (s *Store) EnsureUser(ctx context.Context, userID string) error {
	return s.ensureUser(ctx, s.db, userID)
}

// GetUser reads one user row. Returns (nil, nil) when absent.
func (s *Store) GetUser(ctx context.Context, id string) (*model.User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, handle, display_name, avatar_url, header_url, verified, updated_at
		FROM users WHERE id = ?
	`, id)

	var u model.User
	var verified int
	var updatedAt string
	err := row.Scan(&u.ID, &u.Handle, &u.DisplayName, &u.AvatarURL, &u.HeaderURL, &verified, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", id, err)
	}
	u.Verified = verified != 0
	u.UpdatedAt = parseTime(updatedAt)
	return &u, nil
}

// UserExists reports whether a user row is present.
func (s *Store) UserExists(ctx context.Context, id string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE id = ?`, id).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check user %s: %w", id, err)
	}
	return count > 0, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
