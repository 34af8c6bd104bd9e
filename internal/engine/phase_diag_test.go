package engine

import (
	"context"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/undertow/internal/model"
)

func TestDiagnose_EmptyStoreIsHealthy(t *testing.T) {
	eng := setupEngine(t, newFakeGateway())

	report, err := eng.Diagnose(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Healthy())
	assert.Zero(t, report.OutboxPending)
	assert.Zero(t, report.FeedItems)
}

func TestDiagnose_NotBound(t *testing.T) {
	eng := New(setupTestStore(t), newFakeGateway())

	_, err := eng.Diagnose(context.Background())
	assert.True(t, IsNotBound(err))
}

func TestDiagnose_CountsFailedOutboxSeparately(t *testing.T) {
	eng := setupEngine(t, newFakeGateway())
	ctx := context.Background()

	_, err := eng.Post(ctx, "one", nil)
	require.NoError(t, err)
	_, err = eng.Post(ctx, "two", nil)
	require.NoError(t, err)
	require.NoError(t, eng.store.MarkOutboxFailed(ctx, "local-000002", "boom"))

	report, err := eng.Diagnose(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.OutboxPending)
	assert.Equal(t, 1, report.OutboxFailed)
	assert.True(t, report.Healthy(), "a failed outbox entry is backlog, not corruption")
}

func TestDiagnose_ReportGolden(t *testing.T) {
	eng := setupEngine(t, newFakeGateway())
	ctx := context.Background()

	// One cached remote post in the feed, plus a spread of local state,
	// so every table shows up in the snapshot.
	remote := model.Entity{
		ID:        "p-remote",
		Author:    model.User{ID: "u-2", Handle: "u-2"},
		Content:   "from the feed",
		Kind:      model.KindOriginal,
		CreatedAt: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, eng.store.ApplyFeedDelta(ctx, "u-1",
		model.FeedDelta{Upserts: []model.Entity{remote}},
		"feed:home", "2024-06-01T12:00:00Z", nil))

	_, err := eng.Post(ctx, "hello", nil)
	require.NoError(t, err)
	_, err = eng.React(ctx, "p-remote", model.ReactionLike)
	require.NoError(t, err)
	_, err = eng.ToggleBookmark(ctx, "p-remote")
	require.NoError(t, err)
	_, err = eng.SaveDraft(ctx, model.Draft{Content: "unfinished"})
	require.NoError(t, err)

	report, err := eng.Diagnose(ctx)
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "diag_report", []byte(report.String()))
}
