package model

import "time"

// PostKind classifies a post row.
type PostKind string

const (
	KindOriginal PostKind = "original"
	KindReply    PostKind = "reply"
	KindQuote    PostKind = "quote"
	KindRepost   PostKind = "repost"
	KindPoll     PostKind = "poll"
)

// ReactionKind identifies one of the fixed reaction types.
type ReactionKind string

const (
	ReactionLike  ReactionKind = "like"
	ReactionLaugh ReactionKind = "laugh"
	ReactionWow   ReactionKind = "wow"
)

// SyncStatus tracks whether a local row has been acknowledged remotely.
type SyncStatus string

const (
	StatusPending SyncStatus = "pending"
	StatusSynced  SyncStatus = "synced"
)

// OutboxStatus is the lifecycle state of a pending mutation.
type OutboxStatus string

const (
	OutboxPending    OutboxStatus = "pending"
	OutboxCommitting OutboxStatus = "committing"
	OutboxFailed     OutboxStatus = "failed"
)

// User is a cached identity row. Upserted whenever any entity that
// references it is written; deleted only by scope purge.
type User struct {
	ID          string
	Handle      string
	DisplayName string
	AvatarURL   string
	HeaderURL   string
	Verified    bool
	UpdatedAt   time.Time
}

// Post is a cached post row.
//
// INVARIANTS:
//   - Every non-deleted post's OwnerID resolves to an existing User row.
//   - Every non-empty ParentID/QuotedID/RepostedID resolves to an
//     existing post or is awaiting identifier remap.
type Post struct {
	ID             string
	OwnerID        string
	Content        string
	Media          []MediaItem
	Poll           *Poll
	Kind           PostKind
	ParentID       string
	QuotedID       string
	RepostedID     string
	ReactionCounts ReactionCounts
	ReplyCount     int64
	RepostCount    int64
	Deleted        bool
	LocalOnly      bool
	SyncStatus     SyncStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
	EditedAt       time.Time
}

// TargetID returns the id a repost or quote points at, or "" for other
// kinds. Used by the duplicate-intent checks.
func (p Post) TargetID() string {
	switch p.Kind {
	case KindRepost:
		return p.RepostedID
	case KindQuote:
		return p.QuotedID
	}
	return ""
}

// PostDraft is the full mutation payload carried by an outbox entry:
// everything the remote create call needs to reproduce the post.
type PostDraft struct {
	Content    string      `json:"content,omitempty"`
	Media      []MediaItem `json:"media,omitempty"`
	Poll       *Poll       `json:"poll,omitempty"`
	Kind       PostKind    `json:"kind"`
	ParentID   string      `json:"parent_id,omitempty"`
	QuotedID   string      `json:"quoted_id,omitempty"`
	RepostedID string      `json:"reposted_id,omitempty"`
}

// OutboxEntry is a durable not-yet-acknowledged local mutation.
//
// Lifecycle: created atomically with its optimistic Post row; deleted
// atomically with the identifier remap on success; on failure the row
// is kept with an incremented retry count and the recorded error so the
// next cycle can retry it. Failure never deletes the row.
type OutboxEntry struct {
	LocalID    string
	OwnerID    string
	Payload    PostDraft
	Status     OutboxStatus
	RetryCount int
	LastError  string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Reaction is one (post, user, kind) reaction row.
type Reaction struct {
	PostID     string
	UserID     string
	Kind       ReactionKind
	SyncStatus SyncStatus
	CreatedAt  time.Time
}

// Bookmark is one (post, user) bookmark row. Reconciliation is
// push-only; there is no inbound bookmark pull.
type Bookmark struct {
	PostID     string
	UserID     string
	SyncStatus SyncStatus
	CreatedAt  time.Time
}

// PollVote is the viewer's vote on one poll, keyed (post, user).
type PollVote struct {
	PostID      string
	UserID      string
	ChoiceIndex int
	SyncStatus  SyncStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// FeedItem materializes "this post belongs in this feed for this
// viewer". Rebuilt incrementally from remote deltas.
type FeedItem struct {
	Scope      string
	UserID     string
	PostID     string
	Rank       float64
	InsertedAt time.Time
}

// FeedScopeHome is the only feed scope the delta pull maintains today.
const FeedScopeHome = "home"

// Draft is a composer-owned draft. Never synchronized.
type Draft struct {
	ID        string
	UserID    string
	Content   string
	Media     []MediaItem
	Poll      *Poll
	UpdatedAt time.Time
}
