package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/undertow/internal/model"
)

// normalizeContent canonicalizes user-entered text: Unicode NFC so
// visually identical input compares equal, then outer whitespace
// trimmed.
func normalizeContent(s string) string {
	return strings.TrimSpace(norm.NFC.String(s))
}

// notifyEngagement reads the post's settled state and fires an
// EngagementUpdated event. Notification failures are impossible by
// contract (Notify never errs) and a missing post is silently skipped.
func (e *Engine) notifyEngagement(ctx context.Context, postID string, viewer model.ReactionKind, reposted bool) {
	post, err := e.store.GetPost(ctx, postID)
	if err != nil || post == nil {
		return
	}
	e.notifier.Notify(EngagementUpdated{
		PostID:         postID,
		ReactionCounts: post.ReactionCounts,
		ViewerReaction: viewer,
		Reposted:       reposted,
		RepostCount:    post.RepostCount,
	})
}

// React toggles the viewer's reaction of the given kind on postID.
// Returns whether the reaction now exists.
func (e *Engine) React(ctx context.Context, postID string, kind model.ReactionKind) (bool, error) {
	userID, err := e.boundUser()
	if err != nil {
		return false, err
	}
	switch kind {
	case model.ReactionLike, model.ReactionLaugh, model.ReactionWow:
	default:
		return false, errInvariant(fmt.Sprintf("unknown reaction kind %q", kind))
	}

	added, err := e.store.ToggleReaction(ctx, userID, postID, kind)
	if err != nil {
		return false, err
	}

	viewer := kind
	if !added {
		viewer = ""
	}
	e.notifyEngagement(ctx, postID, viewer, false)
	return added, nil
}

// Repost toggles the viewer's repost of targetID. Returns the repost
// post's id and whether it was created (false means an existing repost
// was toggled off).
func (e *Engine) Repost(ctx context.Context, targetID string) (string, bool, error) {
	userID, err := e.boundUser()
	if err != nil {
		return "", false, err
	}

	id, created, err := e.store.CreateLocalPost(ctx, model.Post{
		ID:         e.ids.NewID(),
		OwnerID:    userID,
		Kind:       model.KindRepost,
		RepostedID: targetID,
	})
	if err != nil {
		return "", false, err
	}

	e.notifyEngagement(ctx, targetID, "", created)
	e.notifier.Notify(FeedUpdated{})
	return id, created, nil
}

// Quote creates (or toggles off an identical existing) quote of
// targetID with the given commentary.
func (e *Engine) Quote(ctx context.Context, targetID, content string, media []model.MediaItem) (string, bool, error) {
	userID, err := e.boundUser()
	if err != nil {
		return "", false, err
	}

	id, created, err := e.store.CreateLocalPost(ctx, model.Post{
		ID:       e.ids.NewID(),
		OwnerID:  userID,
		Content:  normalizeContent(content),
		Media:    media,
		Kind:     model.KindQuote,
		QuotedID: targetID,
	})
	if err != nil {
		return "", false, err
	}

	e.notifier.Notify(FeedUpdated{})
	return id, created, nil
}

// Reply creates a reply to parentID. Empty content is rejected.
func (e *Engine) Reply(ctx context.Context, parentID, content string, media []model.MediaItem) (string, error) {
	userID, err := e.boundUser()
	if err != nil {
		return "", err
	}

	content = normalizeContent(content)
	if content == "" && len(media) == 0 {
		return "", errInvariant("reply requires content or media")
	}

	id, _, err := e.store.CreateLocalPost(ctx, model.Post{
		ID:       e.ids.NewID(),
		OwnerID:  userID,
		Content:  content,
		Media:    media,
		Kind:     model.KindReply,
		ParentID: parentID,
	})
	if err != nil {
		return "", err
	}

	e.notifier.Notify(FeedUpdated{})
	return id, nil
}

// Post creates an original post. Empty content with no media is
// rejected.
func (e *Engine) Post(ctx context.Context, content string, media []model.MediaItem) (string, error) {
	userID, err := e.boundUser()
	if err != nil {
		return "", err
	}

	content = normalizeContent(content)
	if content == "" && len(media) == 0 {
		return "", errInvariant("post requires content or media")
	}

	id, _, err := e.store.CreateLocalPost(ctx, model.Post{
		ID:      e.ids.NewID(),
		OwnerID: userID,
		Content: content,
		Media:   media,
		Kind:    model.KindOriginal,
	})
	if err != nil {
		return "", err
	}

	e.notifier.Notify(FeedUpdated{})
	return id, nil
}

// PostPoll creates a poll post with the given question and choices.
// Requires a question and between 2 and 4 choices.
func (e *Engine) PostPoll(ctx context.Context, question string, choices []string, endsAt time.Time) (string, error) {
	userID, err := e.boundUser()
	if err != nil {
		return "", err
	}

	question = normalizeContent(question)
	if question == "" {
		return "", errInvariant("poll requires a question")
	}
	if len(choices) < 2 || len(choices) > 4 {
		return "", errInvariant(fmt.Sprintf("poll requires 2 to 4 choices, got %d", len(choices)))
	}

	poll := &model.Poll{
		Question:       question,
		VoterVoteIndex: model.NoVote,
	}
	for _, label := range choices {
		label = normalizeContent(label)
		if label == "" {
			return "", errInvariant("poll choice labels must be non-empty")
		}
		poll.Choices = append(poll.Choices, model.PollChoice{Label: label})
	}
	poll.EndsAt = endsAt

	id, _, err := e.store.CreateLocalPost(ctx, model.Post{
		ID:      e.ids.NewID(),
		OwnerID: userID,
		Content: question,
		Poll:    poll,
		Kind:    model.KindPoll,
	})
	if err != nil {
		return "", err
	}

	e.notifier.Notify(FeedUpdated{})
	return id, nil
}

// ToggleBookmark flips the viewer's bookmark on postID. Returns
// whether the bookmark now exists.
func (e *Engine) ToggleBookmark(ctx context.Context, postID string) (bool, error) {
	userID, err := e.boundUser()
	if err != nil {
		return false, err
	}
	return e.store.ToggleBookmark(ctx, userID, postID)
}

// VotePoll records the viewer's vote on a poll post. Re-voting the
// same choice is a no-op; switching choices moves the optimistic
// count only while the prior vote is still unsynced.
func (e *Engine) VotePoll(ctx context.Context, postID string, choiceIndex int) error {
	userID, err := e.boundUser()
	if err != nil {
		return err
	}
	if err := e.store.VotePoll(ctx, userID, postID, choiceIndex); err != nil {
		return err
	}
	e.notifyEngagement(ctx, postID, "", false)
	return nil
}

// SaveDraft upserts a composer draft. A draft with no id gets one.
func (e *Engine) SaveDraft(ctx context.Context, d model.Draft) (string, error) {
	userID, err := e.boundUser()
	if err != nil {
		return "", err
	}
	if d.ID == "" {
		d.ID = e.ids.NewID()
	}
	d.UserID = userID
	d.Content = normalizeContent(d.Content)
	if err := e.store.SaveDraft(ctx, d); err != nil {
		return "", err
	}
	return d.ID, nil
}

// DeleteDraft removes a draft by id.
func (e *Engine) DeleteDraft(ctx context.Context, id string) error {
	if _, err := e.boundUser(); err != nil {
		return err
	}
	return e.store.DeleteDraft(ctx, id)
}

// Drafts lists the viewer's drafts, most recently updated first.
func (e *Engine) Drafts(ctx context.Context) ([]model.Draft, error) {
	userID, err := e.boundUser()
	if err != nil {
		return nil, err
	}
	return e.store.Drafts(ctx, userID)
}

// Feed returns the materialized home feed for the bound viewer.
func (e *Engine) Feed(ctx context.Context) ([]model.FeedItem, error) {
	userID, err := e.boundUser()
	if err != nil {
		return nil, err
	}
	return e.store.FeedItems(ctx, model.FeedScopeHome, userID)
}
