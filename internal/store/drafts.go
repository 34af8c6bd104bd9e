package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/undertow/internal/model"
)

// SaveDraft inserts or rewrites a composer draft. Drafts are owned by
// the composer and never synchronized.
func (s *Store) SaveDraft(ctx context.Context, d model.Draft) error {
	media, err := model.MarshalMedia(d.Media)
	if err != nil {
		return fmt.Errorf("save draft %s: %w", d.ID, err)
	}
	poll, err := model.MarshalPoll(d.Poll)
	if err != nil {
		return fmt.Errorf("save draft %s: %w", d.ID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO drafts (id, user_id, content, media, poll, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			content = excluded.content,
			media = excluded.media,
			poll = excluded.poll,
			updated_at = excluded.updated_at
	`, d.ID, d.UserID, d.Content, media, nullable(poll), formatTime(s.now()))
	if err != nil {
		return fmt.Errorf("save draft %s: %w", d.ID, err)
	}
	return nil
}

// DeleteDraft removes one draft by id.
func (s *Store) DeleteDraft(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM drafts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete draft %s: %w", id, err)
	}
	return nil
}

// Drafts lists a user's drafts, most recently updated first.
func (s *Store) Drafts(ctx context.Context, userID string) ([]model.Draft, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, content, media, poll, updated_at
		FROM drafts WHERE user_id = ?
		ORDER BY updated_at DESC, id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list drafts: %w", err)
	}
	defer rows.Close()

	var drafts []model.Draft
	for rows.Next() {
		var d model.Draft
		var media, updatedAt string
		var poll sql.NullString
		if err := rows.Scan(&d.ID, &d.UserID, &d.Content, &media, &poll, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan draft: %w", err)
		}
		d.Media, err = model.UnmarshalMedia(media)
		if err != nil {
			return nil, err
		}
		d.Poll, err = model.UnmarshalPoll(fromNull(poll))
		if err != nil {
			return nil, err
		}
		d.UpdatedAt = parseTime(updatedAt)
		drafts = append(drafts, d)
	}
	return drafts, rows.Err()
}
