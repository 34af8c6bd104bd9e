package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/undertow/internal/model"
)

const postColumns = `id, owner_id, content, media, poll, kind,
	parent_id, quoted_id, reposted_id, reaction_counts,
	reply_count, repost_count, deleted, local_only, sync_status,
	created_at, updated_at, edited_at`

// GetPost reads one post row. Returns (nil, nil) when absent.
func (s *Store) GetPost(ctx context.Context, id string) (*model.Post, error) {
	return s.getPost(ctx, s.db, id)
}

func (s *Store) getPost(ctx context.Context, q querier, id string) (*model.Post, error) {
	row := q.QueryRowContext(ctx, `SELECT `+postColumns+` FROM posts WHERE id = ?`, id)
	p, err := scanPost(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get post %s: %w", id, err)
	}
	return p, nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for scanPost.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(row rowScanner) (*model.Post, error) {
	var p model.Post
	var media, counts string
	var poll, parentID, quotedID, repostedID, editedAt sql.NullString
	var deleted, localOnly int
	var createdAt, updatedAt string

	err := row.Scan(
		&p.ID, &p.OwnerID, &p.Content, &media, &poll, &p.Kind,
		&parentID, &quotedID, &repostedID, &counts,
		&p.ReplyCount, &p.RepostCount, &deleted, &localOnly, &p.SyncStatus,
		&createdAt, &updatedAt, &editedAt,
	)
	if err != nil {
		return nil, err
	}

	p.Media, err = model.UnmarshalMedia(media)
	if err != nil {
		return nil, err
	}
	p.Poll, err = model.UnmarshalPoll(fromNull(poll))
	if err != nil {
		return nil, err
	}
	p.ReactionCounts, err = model.UnmarshalReactionCounts(counts)
	if err != nil {
		return nil, err
	}
	p.ParentID = fromNull(parentID)
	p.QuotedID = fromNull(quotedID)
	p.RepostedID = fromNull(repostedID)
	p.Deleted = deleted != 0
	p.LocalOnly = localOnly != 0
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
	p.EditedAt = parseTime(fromNull(editedAt))
	return &p, nil
}

func (s *Store) insertPost(ctx context.Context, q querier, p model.Post) error {
	media, err := model.MarshalMedia(p.Media)
	if err != nil {
		return fmt.Errorf("insert post %s: %w", p.ID, err)
	}
	poll, err := model.MarshalPoll(p.Poll)
	if err != nil {
		return fmt.Errorf("insert post %s: %w", p.ID, err)
	}
	counts, err := model.MarshalReactionCounts(p.ReactionCounts)
	if err != nil {
		return fmt.Errorf("insert post %s: %w", p.ID, err)
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO posts (`+postColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		p.ID, p.OwnerID, p.Content, media, nullable(poll), string(p.Kind),
		nullable(p.ParentID), nullable(p.QuotedID), nullable(p.RepostedID), counts,
		p.ReplyCount, p.RepostCount, boolToInt(p.Deleted), boolToInt(p.LocalOnly),
		string(p.SyncStatus), formatTime(p.CreatedAt), formatTime(p.UpdatedAt),
		nullable(formatTime(p.EditedAt)),
	)
	if err != nil {
		return fmt.Errorf("insert post %s: %w", p.ID, err)
	}
	return nil
}

// SoftDeletePost marks a post deleted without removing the row.
// Per-row deletions everywhere outside the scope binder are soft.
func (s *Store) SoftDeletePost(ctx context.Context, id string) error {
	return s.softDeletePost(ctx, s.db, id)
}

func (s *Store) softDeletePost(ctx context.Context, q querier, id string) error {
	_, err := q.ExecContext(ctx, `
		UPDATE posts SET deleted = 1, updated_at = ? WHERE id = ?
	`, formatTime(s.now()), id)
	if err != nil {
		return fmt.Errorf("soft delete post %s: %w", id, err)
	}
	return nil
}

// findDuplicateIntent looks for a non-deleted post by owner targeting
// the same post with the same kind. This backs both the writer-side
// repost/quote dedup and the merge-side conflict resolution.
// excludeID skips the authoritative row itself during merge.
func (s *Store) findDuplicateIntent(ctx context.Context, q querier, ownerID, targetID string, kind model.PostKind, excludeID string) (string, error) {
	var col string
	switch kind {
	case model.KindRepost:
		col = "reposted_id"
	case model.KindQuote:
		col = "quoted_id"
	default:
		return "", nil
	}

	var id string
	err := q.QueryRowContext(ctx, `
		SELECT id FROM posts
		WHERE owner_id = ? AND `+col+` = ? AND kind = ? AND deleted = 0 AND id != ?
		ORDER BY created_at LIMIT 1
	`, ownerID, targetID, string(kind), excludeID).Scan(&id)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("find duplicate %s of %s: %w", kind, targetID, err)
	}
	return id, nil
}

// adjustReactionCount shifts one reaction counter on a post by delta,
// clamping at zero. Counters live in the typed JSON counter map.
func (s *Store) adjustReactionCount(ctx context.Context, q querier, postID string, kind model.ReactionKind, delta int64) error {
	var raw string
	err := q.QueryRowContext(ctx, `SELECT reaction_counts FROM posts WHERE id = ?`, postID).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil // post not cached; nothing to adjust
	}
	if err != nil {
		return fmt.Errorf("read reaction counts %s: %w", postID, err)
	}

	counts, err := model.UnmarshalReactionCounts(raw)
	if err != nil {
		return fmt.Errorf("read reaction counts %s: %w", postID, err)
	}
	counts[kind] += delta
	if counts[kind] < 0 {
		counts[kind] = 0
	}
	updated, err := model.MarshalReactionCounts(counts)
	if err != nil {
		return fmt.Errorf("write reaction counts %s: %w", postID, err)
	}

	_, err = q.ExecContext(ctx, `
		UPDATE posts SET reaction_counts = ?, updated_at = ? WHERE id = ?
	`, updated, formatTime(s.now()), postID)
	if err != nil {
		return fmt.Errorf("write reaction counts %s: %w", postID, err)
	}
	return nil
}

func (s *Store) adjustRepostCount(ctx context.Context, q querier, postID string, delta int64) error {
	_, err := q.ExecContext(ctx, `
		UPDATE posts
		SET repost_count = MAX(0, repost_count + ?), updated_at = ?
		WHERE id = ?
	`, delta, formatTime(s.now()), postID)
	if err != nil {
		return fmt.Errorf("adjust repost count %s: %w", postID, err)
	}
	return nil
}

func (s *Store) adjustReplyCount(ctx context.Context, q querier, postID string, delta int64) error {
	_, err := q.ExecContext(ctx, `
		UPDATE posts
		SET reply_count = MAX(0, reply_count + ?), updated_at = ?
		WHERE id = ?
	`, delta, formatTime(s.now()), postID)
	if err != nil {
		return fmt.Errorf("adjust reply count %s: %w", postID, err)
	}
	return nil
}

// SetPollViewerVote records the viewer's confirmed choice on a cached
// poll post without touching the counters. No-op when the post is not
// cached or carries no poll.
func (s *Store) SetPollViewerVote(ctx context.Context, postID string, choiceIndex int) error {
	post, err := s.getPost(ctx, s.db, postID)
	if err != nil {
		return err
	}
	if post == nil || post.Poll == nil {
		return nil
	}
	if post.Poll.VoterVoteIndex == choiceIndex {
		return nil
	}
	post.Poll.VoterVoteIndex = choiceIndex
	return s.savePoll(ctx, s.db, postID, post.Poll)
}

// savePoll rewrites a post's poll payload.
func (s *Store) savePoll(ctx context.Context, q querier, postID string, p *model.Poll) error {
	raw, err := model.MarshalPoll(p)
	if err != nil {
		return fmt.Errorf("save poll %s: %w", postID, err)
	}
	_, err = q.ExecContext(ctx, `
		UPDATE posts SET poll = ?, updated_at = ? WHERE id = ?
	`, nullable(raw), formatTime(s.now()), postID)
	if err != nil {
		return fmt.Errorf("save poll %s: %w", postID, err)
	}
	return nil
}
