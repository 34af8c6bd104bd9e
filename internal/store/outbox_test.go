package store

import (
	"context"
	"testing"

	"github.com/roach88/undertow/internal/model"
)

func TestPendingOutbox_FIFOOrder(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	mustCreateLocalPost(t, s, createTestPost("p-1", "u-1", "first"))
	mustCreateLocalPost(t, s, createTestPost("p-2", "u-1", "second"))
	mustCreateLocalPost(t, s, createTestPost("p-3", "u-1", "third"))

	entries, err := s.PendingOutbox(ctx, "u-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}
	for i, want := range []string{"p-1", "p-2", "p-3"} {
		if entries[i].LocalID != want {
			t.Errorf("entry %d is %s, want %s", i, entries[i].LocalID, want)
		}
	}
}

func TestPendingOutbox_ScopedToOwner(t *testing.T) {
	s := createTestStore(t)

	mustCreateLocalPost(t, s, createTestPost("p-1", "u-1", "mine"))
	mustCreateLocalPost(t, s, createTestPost("p-2", "u-2", "theirs"))

	entries, err := s.PendingOutbox(context.Background(), "u-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].LocalID != "p-1" {
		t.Errorf("got %v, want only p-1", entries)
	}
}

func TestMarkOutboxFailed_KeepsRowAndCountsRetries(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	mustCreateLocalPost(t, s, createTestPost("p-1", "u-1", "content"))

	if err := s.MarkOutboxFailed(ctx, "p-1", "boom"); err != nil {
		t.Fatal(err)
	}
	if err := s.MarkOutboxFailed(ctx, "p-1", "boom again"); err != nil {
		t.Fatal(err)
	}

	entry, err := s.GetOutboxEntry(ctx, "p-1")
	if err != nil {
		t.Fatal(err)
	}
	if entry == nil {
		t.Fatal("failure deleted the outbox row")
	}
	if entry.Status != model.OutboxFailed {
		t.Errorf("status %q, want failed", entry.Status)
	}
	if entry.RetryCount != 2 {
		t.Errorf("retry count %d, want 2", entry.RetryCount)
	}
	if entry.LastError != "boom again" {
		t.Errorf("last error %q, want latest message", entry.LastError)
	}

	// Failed rows stay eligible for the next flush.
	entries, err := s.PendingOutbox(ctx, "u-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("failed entry dropped from flush set")
	}
}

func TestCommitOutboxEntry_RemapsIdentifierCascade(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	mustCreateLocalPost(t, s, createTestPost("local-1", "u-1", "hello"))

	// Local state accumulated against the optimistic id before the ack.
	if _, err := s.ToggleReaction(ctx, "u-1", "local-1", model.ReactionLike); err != nil {
		t.Fatal(err)
	}
	if _, err := s.ToggleBookmark(ctx, "u-1", "local-1"); err != nil {
		t.Fatal(err)
	}
	mustCreateLocalPost(t, s, model.Post{
		ID: "local-2", OwnerID: "u-1", Content: "me too", Kind: model.KindReply, ParentID: "local-1",
	})

	// Server assigned a different id.
	authoritative := createTestEntity("srv-9", "u-1", "hello")
	if err := s.CommitOutboxEntry(ctx, "local-1", authoritative); err != nil {
		t.Fatalf("CommitOutboxEntry failed: %v", err)
	}

	if stub, _ := s.GetPost(ctx, "local-1"); stub != nil {
		t.Error("optimistic stub survived the remap")
	}
	if post, _ := s.GetPost(ctx, "srv-9"); post == nil {
		t.Fatal("authoritative post missing")
	}

	if n := countRows(t, s, "SELECT COUNT(*) FROM reactions WHERE post_id = 'srv-9'"); n != 1 {
		t.Error("reaction did not follow the remap")
	}
	if n := countRows(t, s, "SELECT COUNT(*) FROM bookmarks WHERE post_id = 'srv-9'"); n != 1 {
		t.Error("bookmark did not follow the remap")
	}

	reply, _ := s.GetPost(ctx, "local-2")
	if reply.ParentID != "srv-9" {
		t.Errorf("reply parent %q, want srv-9", reply.ParentID)
	}

	if entry, _ := s.GetOutboxEntry(ctx, "local-1"); entry != nil {
		t.Error("outbox entry survived the commit")
	}
}

func TestCommitOutboxEntry_SameIdNoRemap(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	mustCreateLocalPost(t, s, createTestPost("p-1", "u-1", "hello"))

	// Server honored the client id.
	if err := s.CommitOutboxEntry(ctx, "p-1", createTestEntity("p-1", "u-1", "hello")); err != nil {
		t.Fatal(err)
	}

	post, _ := s.GetPost(ctx, "p-1")
	if post == nil {
		t.Fatal("post missing after commit")
	}
	if post.SyncStatus != model.StatusSynced {
		t.Errorf("sync status %q, want synced", post.SyncStatus)
	}
	if entry, _ := s.GetOutboxEntry(ctx, "p-1"); entry != nil {
		t.Error("outbox entry survived the commit")
	}
}
