package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/undertow/internal/model"
	"github.com/roach88/undertow/internal/store"
	"github.com/roach88/undertow/internal/testutil"
)

// fakeGateway is a scriptable in-memory Gateway.
type fakeGateway struct {
	mu sync.Mutex

	// Scripted behavior.
	assignIDs  map[string]string // clientID -> server id (default: clientID honored)
	createErr  map[string]error  // clientID -> error
	reactErr   map[string]error  // postID -> error
	posts      map[string]model.Entity
	delta      model.FeedDelta
	deltaErr   error
	voteEntity map[string]model.Entity // postID -> settled entity
	myVotes    []model.VoteRecord

	// Recorded calls.
	createCalls []string
	reactCalls  []string
	repostCalls []string
	sinceCalls  []string
	voteCalls   []string
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		assignIDs:  map[string]string{},
		createErr:  map[string]error{},
		reactErr:   map[string]error{},
		posts:      map[string]model.Entity{},
		voteEntity: map[string]model.Entity{},
	}
}

func (g *fakeGateway) entityFor(clientID string, draft model.PostDraft) model.Entity {
	id := clientID
	if assigned, ok := g.assignIDs[clientID]; ok {
		id = assigned
	}
	return model.Entity{
		ID:         id,
		Author:     model.User{ID: "u-1", Handle: "u-1"},
		Content:    draft.Content,
		Media:      draft.Media,
		Poll:       draft.Poll,
		Kind:       draft.Kind,
		ParentID:   draft.ParentID,
		QuotedID:   draft.QuotedID,
		RepostedID: draft.RepostedID,
		CreatedAt:  time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (g *fakeGateway) CreatePost(ctx context.Context, clientID string, draft model.PostDraft) (model.Entity, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.createCalls = append(g.createCalls, clientID)
	if err := g.createErr[clientID]; err != nil {
		return model.Entity{}, err
	}
	return g.entityFor(clientID, draft), nil
}

func (g *fakeGateway) CreatePoll(ctx context.Context, clientID string, draft model.PostDraft) (model.Entity, error) {
	return g.CreatePost(ctx, clientID, draft)
}

func (g *fakeGateway) GetPost(ctx context.Context, id string) (*model.Entity, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if e, ok := g.posts[id]; ok {
		return &e, nil
	}
	return nil, nil
}

func (g *fakeGateway) DeltaFeed(ctx context.Context, since string) (model.FeedDelta, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sinceCalls = append(g.sinceCalls, since)
	return g.delta, g.deltaErr
}

func (g *fakeGateway) React(ctx context.Context, postID string, kind model.ReactionKind) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.reactCalls = append(g.reactCalls, postID+":"+string(kind))
	return g.reactErr[postID]
}

func (g *fakeGateway) Repost(ctx context.Context, postID string) (model.Entity, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.repostCalls = append(g.repostCalls, postID)
	return model.Entity{
		ID:         "srv-repost-" + postID,
		Author:     model.User{ID: "u-1", Handle: "u-1"},
		Kind:       model.KindRepost,
		RepostedID: postID,
		CreatedAt:  time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
	}, nil
}

func (g *fakeGateway) ToggleBookmark(ctx context.Context, postID string) (bool, error) {
	return true, nil
}

func (g *fakeGateway) Bookmarks(ctx context.Context) ([]model.Entity, error) {
	return nil, nil
}

func (g *fakeGateway) VotePoll(ctx context.Context, postID string, choiceIndex int) (model.Entity, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.voteCalls = append(g.voteCalls, postID)
	if e, ok := g.voteEntity[postID]; ok {
		return e, nil
	}
	return model.Entity{}, ErrConflict
}

func (g *fakeGateway) MyVotes(ctx context.Context) ([]model.VoteRecord, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.myVotes, nil
}

func setupTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(t.TempDir() + "/test.db")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func setupEngine(t *testing.T, gw Gateway) *Engine {
	t.Helper()
	clock := testutil.NewDeterministicClock()
	eng := New(setupTestStore(t), gw,
		WithIDGenerator(testutil.NewSequentialIDGenerator("local")),
		WithNow(clock.Now),
	)
	require.NoError(t, eng.Bind(context.Background(), "u-1"))
	return eng
}

func TestRunCycle_NotBound(t *testing.T) {
	eng := New(setupTestStore(t), newFakeGateway())

	err := eng.RunCycle(context.Background())
	assert.True(t, IsNotBound(err))
}

func TestWriters_NotBound(t *testing.T) {
	eng := New(setupTestStore(t), newFakeGateway())
	ctx := context.Background()

	_, err := eng.Post(ctx, "hello", nil)
	assert.True(t, IsNotBound(err))
	_, err = eng.React(ctx, "p-1", model.ReactionLike)
	assert.True(t, IsNotBound(err))
	err = eng.VotePoll(ctx, "p-1", 0)
	assert.True(t, IsNotBound(err))
}

func TestPost_QueuesOutboxAndFlushes(t *testing.T) {
	gw := newFakeGateway()
	eng := setupEngine(t, gw)
	ctx := context.Background()

	id, err := eng.Post(ctx, "  hello world  ", nil)
	require.NoError(t, err)
	assert.Equal(t, "local-000001", id)

	post, err := eng.store.GetPost(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, post)
	assert.Equal(t, "hello world", post.Content, "content should be trimmed")
	assert.Equal(t, model.StatusPending, post.SyncStatus)

	require.NoError(t, eng.RunCycle(ctx))

	post, err = eng.store.GetPost(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, post)
	assert.Equal(t, model.StatusSynced, post.SyncStatus)
	assert.Equal(t, []string{"local-000001"}, gw.createCalls)

	entries, err := eng.store.PendingOutbox(ctx, "u-1")
	require.NoError(t, err)
	assert.Empty(t, entries, "outbox should drain after flush")
}

func TestPost_EmptyContentRejected(t *testing.T) {
	eng := setupEngine(t, newFakeGateway())

	_, err := eng.Post(context.Background(), "   ", nil)
	assert.True(t, IsInvariantViolation(err))
}

func TestOutboxFlush_ServerAssignedIDRemaps(t *testing.T) {
	gw := newFakeGateway()
	gw.assignIDs["local-000001"] = "srv-42"
	eng := setupEngine(t, gw)
	ctx := context.Background()

	id, err := eng.Post(ctx, "hello", nil)
	require.NoError(t, err)

	// A reply against the optimistic id, queued in the same cycle.
	replyID, err := eng.Reply(ctx, id, "me too", nil)
	require.NoError(t, err)

	require.NoError(t, eng.RunCycle(ctx))

	stub, err := eng.store.GetPost(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, stub, "optimistic row should be remapped away")

	srv, err := eng.store.GetPost(ctx, "srv-42")
	require.NoError(t, err)
	require.NotNil(t, srv)

	reply, err := eng.store.GetPost(ctx, replyID)
	require.NoError(t, err)
	require.NotNil(t, reply)
	assert.Equal(t, "srv-42", reply.ParentID, "reply parent should follow the remap")
}

func TestOutboxFlush_FailureIsolation(t *testing.T) {
	gw := newFakeGateway()
	gw.createErr["local-000002"] = assert.AnError
	eng := setupEngine(t, gw)
	ctx := context.Background()

	_, err := eng.Post(ctx, "first", nil)
	require.NoError(t, err)
	_, err = eng.Post(ctx, "second", nil)
	require.NoError(t, err)
	_, err = eng.Post(ctx, "third", nil)
	require.NoError(t, err)

	require.NoError(t, eng.RunCycle(ctx))

	entries, err := eng.store.PendingOutbox(ctx, "u-1")
	require.NoError(t, err)
	require.Len(t, entries, 1, "only the poisoned entry should remain")
	assert.Equal(t, "local-000002", entries[0].LocalID)
	assert.Equal(t, model.OutboxFailed, entries[0].Status)
	assert.Equal(t, 1, entries[0].RetryCount)
	assert.NotEmpty(t, entries[0].LastError)

	// Next cycle retries the failed entry.
	delete(gw.createErr, "local-000002")
	require.NoError(t, eng.RunCycle(ctx))

	entries, err = eng.store.PendingOutbox(ctx, "u-1")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestOutboxFlush_ConflictResolvedByHydration(t *testing.T) {
	gw := newFakeGateway()
	gw.createErr["local-000001"] = ErrConflict
	eng := setupEngine(t, gw)
	ctx := context.Background()

	id, err := eng.Post(ctx, "hello", nil)
	require.NoError(t, err)

	gw.posts[id] = model.Entity{
		ID:        id,
		Author:    model.User{ID: "u-1", Handle: "u-1"},
		Content:   "hello",
		Kind:      model.KindOriginal,
		CreatedAt: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
	}

	require.NoError(t, eng.RunCycle(ctx))

	entries, err := eng.store.PendingOutbox(ctx, "u-1")
	require.NoError(t, err)
	assert.Empty(t, entries, "conflict should resolve as success")

	post, err := eng.store.GetPost(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, post)
	assert.Equal(t, model.StatusSynced, post.SyncStatus)
}

func TestReactionPhase_PushesAndAcknowledges(t *testing.T) {
	gw := newFakeGateway()
	eng := setupEngine(t, gw)
	ctx := context.Background()

	require.NoError(t, eng.store.MergeEntity(ctx, model.Entity{
		ID:        "p-1",
		Author:    model.User{ID: "u-2", Handle: "u-2"},
		Content:   "remote post",
		Kind:      model.KindOriginal,
		CreatedAt: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
	}))

	added, err := eng.React(ctx, "p-1", model.ReactionLike)
	require.NoError(t, err)
	assert.True(t, added)

	require.NoError(t, eng.RunCycle(ctx))

	assert.Equal(t, []string{"p-1:like"}, gw.reactCalls)
	pending, err := eng.store.PendingReactions(ctx, "u-1")
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestVotePhase_SettledCountsReplaceOptimistic(t *testing.T) {
	gw := newFakeGateway()
	eng := setupEngine(t, gw)
	ctx := context.Background()

	poll := &model.Poll{
		Question:       "pick",
		Choices:        []model.PollChoice{{Label: "a", Votes: 4}, {Label: "b", Votes: 2}},
		VoterVoteIndex: model.NoVote,
	}
	require.NoError(t, eng.store.MergeEntity(ctx, model.Entity{
		ID:        "p-poll",
		Author:    model.User{ID: "u-2", Handle: "u-2"},
		Content:   "pick",
		Poll:      poll,
		Kind:      model.KindPoll,
		CreatedAt: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
	}))

	// Server settles choice 0 at 5 votes (4 prior + this one).
	gw.voteEntity["p-poll"] = model.Entity{
		ID:     "p-poll",
		Author: model.User{ID: "u-2", Handle: "u-2"},
		Poll: &model.Poll{
			Question:       "pick",
			Choices:        []model.PollChoice{{Label: "a", Votes: 5}, {Label: "b", Votes: 2}},
			VoterVoteIndex: model.NoVote,
		},
		Kind:      model.KindPoll,
		CreatedAt: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
	}

	require.NoError(t, eng.VotePoll(ctx, "p-poll", 0))

	post, err := eng.store.GetPost(ctx, "p-poll")
	require.NoError(t, err)
	assert.Equal(t, int64(5), post.Poll.Choices[0].Votes, "optimistic increment")

	require.NoError(t, eng.RunCycle(ctx))

	post, err = eng.store.GetPost(ctx, "p-poll")
	require.NoError(t, err)
	assert.Equal(t, int64(5), post.Poll.Choices[0].Votes, "authoritative count, not double counted")
	assert.Equal(t, 0, post.Poll.VoterVoteIndex)

	pending, err := eng.store.PendingVotes(ctx, "u-1")
	require.NoError(t, err)
	assert.Empty(t, pending)

	// A second cycle must not re-push or re-count.
	require.NoError(t, eng.RunCycle(ctx))
	assert.Len(t, gw.voteCalls, 1)
	post, _ = eng.store.GetPost(ctx, "p-poll")
	assert.Equal(t, int64(5), post.Poll.Choices[0].Votes)
}

func TestVotePhase_PullAdoptsRemoteVotes(t *testing.T) {
	gw := newFakeGateway()
	eng := setupEngine(t, gw)
	ctx := context.Background()

	require.NoError(t, eng.store.MergeEntity(ctx, model.Entity{
		ID:     "p-poll",
		Author: model.User{ID: "u-2", Handle: "u-2"},
		Poll: &model.Poll{
			Question:       "pick",
			Choices:        []model.PollChoice{{Label: "a", Votes: 1}, {Label: "b"}},
			VoterVoteIndex: model.NoVote,
		},
		Kind:      model.KindPoll,
		CreatedAt: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
	}))

	// Vote cast on another device.
	gw.myVotes = []model.VoteRecord{{PostID: "p-poll", ChoiceIndex: 0}}

	require.NoError(t, eng.RunCycle(ctx))

	post, err := eng.store.GetPost(ctx, "p-poll")
	require.NoError(t, err)
	assert.Equal(t, 0, post.Poll.VoterVoteIndex)

	vote, err := eng.store.GetVote(ctx, "p-poll", "u-1")
	require.NoError(t, err)
	require.NotNil(t, vote)
	assert.Equal(t, model.StatusSynced, vote.SyncStatus)
}

func TestFeedPhase_AppliesDeltaAndAdvancesCursor(t *testing.T) {
	gw := newFakeGateway()
	gw.delta = model.FeedDelta{
		Upserts: []model.Entity{{
			ID:        "p-remote",
			Author:    model.User{ID: "u-2", Handle: "u-2"},
			Content:   "from the feed",
			Kind:      model.KindOriginal,
			CreatedAt: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		}},
	}
	eng := setupEngine(t, gw)
	ctx := context.Background()

	require.NoError(t, eng.RunCycle(ctx))

	// First pull starts at the epoch.
	require.NotEmpty(t, gw.sinceCalls)
	assert.Equal(t, store.EpochCursor, gw.sinceCalls[0])

	items, err := eng.Feed(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "p-remote", items[0].PostID)

	// Second cycle pulls from the advanced cursor.
	gw.delta = model.FeedDelta{}
	require.NoError(t, eng.RunCycle(ctx))
	require.Len(t, gw.sinceCalls, 2)
	assert.NotEqual(t, store.EpochCursor, gw.sinceCalls[1])
}

func TestFeedPhase_EmptyFeedWithAdvancedCursorSelfHeals(t *testing.T) {
	gw := newFakeGateway()
	eng := setupEngine(t, gw)
	ctx := context.Background()

	// Cursor advanced but no feed rows: the lost-feed shape.
	require.NoError(t, eng.store.SetCursor(ctx, "feed:home", "u-1", "2024-06-01T00:00:00Z"))

	require.NoError(t, eng.RunCycle(ctx))

	require.NotEmpty(t, gw.sinceCalls)
	assert.Equal(t, store.EpochCursor, gw.sinceCalls[0], "pull should reset to epoch")
}

func TestRunCycle_SecondTriggerRejected(t *testing.T) {
	gw := newFakeGateway()
	eng := setupEngine(t, gw)
	ctx := context.Background()

	release := make(chan struct{})
	entered := make(chan struct{})
	blockingGw := &blockingGateway{fakeGateway: gw, entered: entered, release: release}
	eng.gateway = blockingGw

	done := make(chan error, 1)
	go func() { done <- eng.RunCycle(ctx) }()

	<-entered
	err := eng.RunCycle(ctx)
	assert.True(t, IsCycleInFlight(err))

	close(release)
	require.NoError(t, <-done)

	// After the first cycle finishes, a new one is accepted.
	require.NoError(t, eng.RunCycle(ctx))
}

// blockingGateway parks DeltaFeed until released, to hold a cycle open.
type blockingGateway struct {
	*fakeGateway
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *blockingGateway) DeltaFeed(ctx context.Context, since string) (model.FeedDelta, error) {
	g.once.Do(func() {
		close(g.entered)
		<-g.release
	})
	return g.fakeGateway.DeltaFeed(ctx, since)
}

func TestCancelCycle_SkipsRemainingWork(t *testing.T) {
	gw := newFakeGateway()
	eng := setupEngine(t, gw)
	ctx := context.Background()

	// Cancel during the feed pull; the committed pushes stay committed.
	release := make(chan struct{})
	entered := make(chan struct{})
	eng.gateway = &blockingGateway{fakeGateway: gw, entered: entered, release: release}

	_, err := eng.Post(ctx, "hello", nil)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- eng.RunCycle(ctx) }()

	<-entered
	eng.CancelCycle()
	close(release)
	require.NoError(t, <-done)

	// The outbox flush ran before the abort and stays committed.
	entries, err := eng.store.PendingOutbox(ctx, "u-1")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRepost_TogglesThroughWriter(t *testing.T) {
	gw := newFakeGateway()
	eng := setupEngine(t, gw)
	ctx := context.Background()

	require.NoError(t, eng.store.MergeEntity(ctx, model.Entity{
		ID:        "p-target",
		Author:    model.User{ID: "u-2", Handle: "u-2"},
		Content:   "target",
		Kind:      model.KindOriginal,
		CreatedAt: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
	}))

	id, created, err := eng.Repost(ctx, "p-target")
	require.NoError(t, err)
	assert.True(t, created)

	_, created, err = eng.Repost(ctx, "p-target")
	require.NoError(t, err)
	assert.False(t, created, "second repost toggles off")

	post, err := eng.store.GetPost(ctx, id)
	require.NoError(t, err)
	assert.True(t, post.Deleted)
}

func TestDrafts_CRUD(t *testing.T) {
	eng := setupEngine(t, newFakeGateway())
	ctx := context.Background()

	id, err := eng.SaveDraft(ctx, model.Draft{Content: "work in progress"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	drafts, err := eng.Drafts(ctx)
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	assert.Equal(t, "work in progress", drafts[0].Content)

	// Overwrite by id.
	_, err = eng.SaveDraft(ctx, model.Draft{ID: id, Content: "revised"})
	require.NoError(t, err)
	drafts, err = eng.Drafts(ctx)
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	assert.Equal(t, "revised", drafts[0].Content)

	require.NoError(t, eng.DeleteDraft(ctx, id))
	drafts, err = eng.Drafts(ctx)
	require.NoError(t, err)
	assert.Empty(t, drafts)
}

func TestWipe_UnbindsAndClearsData(t *testing.T) {
	eng := setupEngine(t, newFakeGateway())
	ctx := context.Background()

	_, err := eng.Post(ctx, "hello", nil)
	require.NoError(t, err)

	require.NoError(t, eng.Wipe(ctx))
	assert.Empty(t, eng.UserID())

	_, err = eng.Post(ctx, "after wipe", nil)
	assert.True(t, IsNotBound(err))
}

func TestNotifier_EngagementEvents(t *testing.T) {
	var events []Event
	gw := newFakeGateway()
	clock := testutil.NewDeterministicClock()
	eng := New(setupTestStore(t), gw,
		WithIDGenerator(testutil.NewSequentialIDGenerator("local")),
		WithNow(clock.Now),
		WithNotifier(FuncNotifier(func(e Event) { events = append(events, e) })),
	)
	ctx := context.Background()
	require.NoError(t, eng.Bind(ctx, "u-1"))

	require.NoError(t, eng.store.MergeEntity(ctx, model.Entity{
		ID:        "p-1",
		Author:    model.User{ID: "u-2", Handle: "u-2"},
		Content:   "remote",
		Kind:      model.KindOriginal,
		CreatedAt: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
	}))

	_, err := eng.React(ctx, "p-1", model.ReactionLike)
	require.NoError(t, err)

	require.NotEmpty(t, events)
	pu, ok := events[0].(ProfileUpdated)
	require.True(t, ok, "bind fires a profile event first")
	assert.Equal(t, "u-1", pu.UserID)

	eu, ok := events[len(events)-1].(EngagementUpdated)
	require.True(t, ok)
	assert.Equal(t, "p-1", eu.PostID)
	assert.Equal(t, model.ReactionLike, eu.ViewerReaction)
	assert.Equal(t, int64(1), eu.ReactionCounts[model.ReactionLike])
}
