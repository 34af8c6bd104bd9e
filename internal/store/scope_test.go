package store

import (
	"context"
	"testing"
)

func TestBind_PurgesForeignRows(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	// State for two identities in one store file.
	mustCreateLocalPost(t, s, createTestPost("p-mine", "u-1", "mine"))
	mustCreateLocalPost(t, s, createTestPost("p-theirs", "u-2", "theirs"))
	if _, err := s.ToggleReaction(ctx, "u-2", "p-theirs", "like"); err != nil {
		t.Fatal(err)
	}
	if err := s.SetCursor(ctx, "feed:home", "u-2", "2024-05-01T00:00:00Z"); err != nil {
		t.Fatal(err)
	}

	if err := s.Bind(ctx, "u-1"); err != nil {
		t.Fatalf("Bind failed: %v", err)
	}

	if post, _ := s.GetPost(ctx, "p-theirs"); post != nil {
		t.Error("foreign post survived bind")
	}
	if post, _ := s.GetPost(ctx, "p-mine"); post == nil {
		t.Error("bound identity's post was purged")
	}
	if n := countRows(t, s, "SELECT COUNT(*) FROM reactions WHERE user_id = 'u-2'"); n != 0 {
		t.Error("foreign reaction survived bind")
	}
	if n := countRows(t, s, "SELECT COUNT(*) FROM sync_state WHERE user_id = 'u-2'"); n != 0 {
		t.Error("foreign cursor survived bind")
	}
	if n := countRows(t, s, "SELECT COUNT(*) FROM outbox_posts WHERE owner_id = 'u-2'"); n != 0 {
		t.Error("foreign outbox entry survived bind")
	}
}

func TestBind_PurgesOrphanedPosts(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	// A cached remote post whose author will be purged by bind.
	if err := s.MergeEntity(ctx, createTestEntity("p-remote", "u-author", "cached")); err != nil {
		t.Fatal(err)
	}

	if err := s.Bind(ctx, "u-1"); err != nil {
		t.Fatal(err)
	}

	if n := countRows(t, s, "SELECT COUNT(*) FROM posts"); n != 0 {
		t.Errorf("got %d orphaned posts after bind, want 0", n)
	}
}

func TestBind_SameIdentityIsNoOp(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	mustCreateLocalPost(t, s, createTestPost("p-1", "u-1", "mine"))

	if err := s.Bind(ctx, "u-1"); err != nil {
		t.Fatal(err)
	}
	if err := s.Bind(ctx, "u-1"); err != nil {
		t.Fatal(err)
	}

	if post, _ := s.GetPost(ctx, "p-1"); post == nil {
		t.Error("rebinding the same identity lost data")
	}
}

func TestBind_EmptyUserID(t *testing.T) {
	s := createTestStore(t)
	if err := s.Bind(context.Background(), ""); err == nil {
		t.Error("expected error for empty user id")
	}
}

func TestWipe_RemovesOnlyBoundIdentity(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	mustCreateLocalPost(t, s, createTestPost("p-1", "u-1", "mine"))
	mustCreateLocalPost(t, s, createTestPost("p-2", "u-2", "theirs"))

	if err := s.Wipe(ctx, "u-1"); err != nil {
		t.Fatalf("Wipe failed: %v", err)
	}

	if post, _ := s.GetPost(ctx, "p-1"); post != nil {
		t.Error("wiped identity's post survived")
	}
	if post, _ := s.GetPost(ctx, "p-2"); post == nil {
		t.Error("other identity's post was wiped")
	}

	// Schema intact after wipe.
	mustCreateLocalPost(t, s, createTestPost("p-3", "u-1", "fresh start"))
}
