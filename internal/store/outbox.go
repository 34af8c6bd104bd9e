package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/roach88/undertow/internal/model"
)

func (s *Store) insertOutboxEntry(ctx context.Context, q querier, e model.OutboxEntry) error {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return fmt.Errorf("marshal outbox payload %s: %w", e.LocalID, err)
	}
	now := formatTime(s.now())
	_, err = q.ExecContext(ctx, `
		INSERT INTO outbox_posts (local_id, owner_id, payload, status, retry_count, last_error, created_at, updated_at)
		VALUES (?, ?, ?, ?, 0, '', ?, ?)
	`, e.LocalID, e.OwnerID, string(payload), string(model.OutboxPending), now, now)
	if err != nil {
		return fmt.Errorf("insert outbox entry %s: %w", e.LocalID, err)
	}
	return nil
}

// PendingOutbox returns the user's unacknowledged outbox entries in
// creation order. FIFO matters: a reply that references an earlier
// local id must flush after its parent.
func (s *Store) PendingOutbox(ctx context.Context, userID string) ([]model.OutboxEntry, error) {
	// Every surviving row is retryable: pending, failed from an
	// earlier cycle, or committing from a crashed one. Success deletes
	// the row, so no status filter is needed.
	rows, err := s.db.QueryContext(ctx, `
		SELECT local_id, owner_id, payload, status, retry_count, last_error, created_at, updated_at
		FROM outbox_posts
		WHERE owner_id = ?
		ORDER BY created_at, local_id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list outbox: %w", err)
	}
	defer rows.Close()

	var entries []model.OutboxEntry
	for rows.Next() {
		var e model.OutboxEntry
		var payload, createdAt, updatedAt string
		if err := rows.Scan(&e.LocalID, &e.OwnerID, &payload, &e.Status, &e.RetryCount, &e.LastError, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox entry: %w", err)
		}
		if err := json.Unmarshal([]byte(payload), &e.Payload); err != nil {
			return nil, fmt.Errorf("unmarshal outbox payload %s: %w", e.LocalID, err)
		}
		e.CreatedAt = parseTime(createdAt)
		e.UpdatedAt = parseTime(updatedAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// GetOutboxEntry reads one entry. Returns (nil, nil) when absent.
func (s *Store) GetOutboxEntry(ctx context.Context, localID string) (*model.OutboxEntry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT local_id, owner_id, payload, status, retry_count, last_error, created_at, updated_at
		FROM outbox_posts WHERE local_id = ?
	`, localID)

	var e model.OutboxEntry
	var payload, createdAt, updatedAt string
	err := row.Scan(&e.LocalID, &e.OwnerID, &payload, &e.Status, &e.RetryCount, &e.LastError, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get outbox entry %s: %w", localID, err)
	}
	if err := json.Unmarshal([]byte(payload), &e.Payload); err != nil {
		return nil, fmt.Errorf("unmarshal outbox payload %s: %w", localID, err)
	}
	e.CreatedAt = parseTime(createdAt)
	e.UpdatedAt = parseTime(updatedAt)
	return &e, nil
}

// MarkOutboxCommitting flags an entry as in flight for this cycle.
func (s *Store) MarkOutboxCommitting(ctx context.Context, localID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE outbox_posts SET status = ?, updated_at = ? WHERE local_id = ?
	`, string(model.OutboxCommitting), formatTime(s.now()), localID)
	if err != nil {
		return fmt.Errorf("mark outbox committing %s: %w", localID, err)
	}
	return nil
}

// MarkOutboxFailed records a push failure: status failed, retry count
// incremented, error kept for diagnostics. The row is never deleted on
// failure - the next cycle retries it.
func (s *Store) MarkOutboxFailed(ctx context.Context, localID, lastError string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE outbox_posts
		SET status = ?, retry_count = retry_count + 1, last_error = ?, updated_at = ?
		WHERE local_id = ?
	`, string(model.OutboxFailed), lastError, formatTime(s.now()), localID)
	if err != nil {
		return fmt.Errorf("mark outbox failed %s: %w", localID, err)
	}
	return nil
}

// deleteOutboxEntry removes a committed entry. Only the flush calls
// this, inside the same transaction as the merge and remap.
func (s *Store) deleteOutboxEntry(ctx context.Context, q querier, localID string) error {
	_, err := q.ExecContext(ctx, `DELETE FROM outbox_posts WHERE local_id = ?`, localID)
	if err != nil {
		return fmt.Errorf("delete outbox entry %s: %w", localID, err)
	}
	return nil
}

// CommitOutboxEntry finalizes one flushed entry atomically: merge the
// authoritative entity, remap the local id to the server-assigned id
// when they differ, and delete the outbox row.
func (s *Store) CommitOutboxEntry(ctx context.Context, localID string, authoritative model.Entity) error {
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		if err := s.mergeEntity(ctx, tx, &authoritative, make(map[string]bool)); err != nil {
			return err
		}
		if authoritative.ID != localID {
			if err := s.remapPostID(ctx, tx, localID, authoritative.ID); err != nil {
				return err
			}
		}
		return s.deleteOutboxEntry(ctx, tx, localID)
	})
}
