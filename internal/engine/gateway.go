package engine

import (
	"context"
	"errors"

	"github.com/roach88/undertow/internal/model"
)

// ErrConflict marks "the remote already has the effect this call
// intended". Reconciliation phases normalize it to success
// (conflict-as-success) instead of retrying forever.
var ErrConflict = errors.New("remote already has this effect")

// Gateway is the only boundary allowed to perform network I/O. It is
// consumed, not implemented, by the engine; internal/gateway provides
// the default REST adapter and tests substitute fakes.
//
// Every call is network-fallible and returns its error; no call
// panics. Timeouts are the gateway's concern, via the caller's
// context.
type Gateway interface {
	// CreatePost creates (or idempotently re-creates) a post, asking
	// the server to honor clientID as the entity id where possible.
	CreatePost(ctx context.Context, clientID string, draft model.PostDraft) (model.Entity, error)

	// CreatePoll is CreatePost for poll drafts.
	CreatePoll(ctx context.Context, clientID string, draft model.PostDraft) (model.Entity, error)

	// GetPost fetches one hydrated entity. Returns (nil, nil) when the
	// post does not exist remotely.
	GetPost(ctx context.Context, id string) (*model.Entity, error)

	// DeltaFeed returns every upsert and deletion since the cursor.
	DeltaFeed(ctx context.Context, since string) (model.FeedDelta, error)

	// React records one viewer reaction. ErrConflict when it already
	// exists remotely.
	React(ctx context.Context, postID string, kind model.ReactionKind) error

	// Repost creates the viewer's repost of postID and returns the
	// authoritative repost entity. ErrConflict when one already exists.
	Repost(ctx context.Context, postID string) (model.Entity, error)

	// ToggleBookmark flips the viewer's bookmark and returns the
	// resulting state.
	ToggleBookmark(ctx context.Context, postID string) (bool, error)

	// Bookmarks lists the viewer's bookmarked entities.
	Bookmarks(ctx context.Context) ([]model.Entity, error)

	// VotePoll records the viewer's vote and returns the authoritative
	// post entity with settled counts. ErrConflict when the same vote
	// is already recorded.
	VotePoll(ctx context.Context, postID string, choiceIndex int) (model.Entity, error)

	// MyVotes returns the viewer's authoritative votes.
	MyVotes(ctx context.Context) ([]model.VoteRecord, error)
}
