package model

import "time"

// Entity is the authoritative hydrated post shape returned by the
// remote gateway. Embedded quoted/reposted entities arrive inline and
// are merged depth-first by the store's entity merge.
type Entity struct {
	ID             string         `json:"id"`
	Author         User           `json:"author"`
	Content        string         `json:"content,omitempty"`
	Media          []MediaItem    `json:"media,omitempty"`
	Poll           *Poll          `json:"poll,omitempty"`
	Kind           PostKind       `json:"kind"`
	ParentID       string         `json:"parent_id,omitempty"`
	QuotedID       string         `json:"quoted_id,omitempty"`
	RepostedID     string         `json:"reposted_id,omitempty"`
	Quoted         *Entity        `json:"quoted,omitempty"`
	Reposted       *Entity        `json:"reposted,omitempty"`
	ReactionCounts ReactionCounts `json:"reaction_counts,omitempty"`
	ReplyCount     int64          `json:"reply_count"`
	RepostCount    int64          `json:"repost_count"`
	Deleted        bool           `json:"deleted,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	EditedAt       time.Time      `json:"edited_at,omitempty"`
}

// TargetID returns the id a repost or quote entity points at, or "".
func (e *Entity) TargetID() string {
	switch e.Kind {
	case KindRepost:
		return e.RepostedID
	case KindQuote:
		return e.QuotedID
	}
	return ""
}

// FeedDelta is one page of remote feed changes since a cursor.
type FeedDelta struct {
	Upserts    []Entity `json:"upserts"`
	DeletedIDs []string `json:"deleted_ids"`
}

// VoteRecord is one authoritative viewer vote from the remote.
type VoteRecord struct {
	PostID      string `json:"post_id"`
	ChoiceIndex int    `json:"choice_index"`
}
