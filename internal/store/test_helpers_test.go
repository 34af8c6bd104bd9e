package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/undertow/internal/model"
)

// createTestStore creates a new store in a temp dir with a
// deterministic stepping clock.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")

	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	step := 0
	s, err := Open(path, WithNow(func() time.Time {
		step++
		return base.Add(time.Duration(step) * time.Second)
	}))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestPost builds a minimal original post owned by ownerID.
func createTestPost(id, ownerID, content string) model.Post {
	return model.Post{
		ID:      id,
		OwnerID: ownerID,
		Content: content,
		Kind:    model.KindOriginal,
	}
}

// createTestEntity builds a minimal authoritative entity.
func createTestEntity(id, authorID, content string) model.Entity {
	return model.Entity{
		ID:        id,
		Author:    model.User{ID: authorID, Handle: authorID},
		Content:   content,
		Kind:      model.KindOriginal,
		CreatedAt: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
	}
}

// mustCreateLocalPost fails the test on any CreateLocalPost error.
func mustCreateLocalPost(t *testing.T, s *Store, p model.Post) string {
	t.Helper()
	id, _, err := s.CreateLocalPost(context.Background(), p)
	if err != nil {
		t.Fatalf("CreateLocalPost(%s) failed: %v", p.ID, err)
	}
	return id
}

// countRows counts rows in a table matching an optional WHERE clause.
func countRows(t *testing.T, s *Store, query string, args ...any) int {
	t.Helper()
	var n int
	if err := s.db.QueryRow(query, args...).Scan(&n); err != nil {
		t.Fatalf("count query %q failed: %v", query, err)
	}
	return n
}
