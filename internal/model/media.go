package model

import (
	"encoding/json"
	"fmt"
)

// MediaKind classifies an attachment.
type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
	MediaGIF   MediaKind = "gif"
)

// MediaItem is one typed media attachment on a post or draft.
type MediaItem struct {
	URL     string    `json:"url"`
	Kind    MediaKind `json:"kind"`
	AltText string    `json:"alt_text,omitempty"`
	Width   int       `json:"width,omitempty"`
	Height  int       `json:"height,omitempty"`
}

// MarshalMedia serializes a media list for storage. Nil and empty
// lists both serialize to "[]".
func MarshalMedia(items []MediaItem) (string, error) {
	if len(items) == 0 {
		return "[]", nil
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("marshal media: %w", err)
	}
	return string(raw), nil
}

// UnmarshalMedia deserializes a stored media list.
func UnmarshalMedia(raw string) ([]MediaItem, error) {
	if raw == "" || raw == "[]" {
		return nil, nil
	}
	var items []MediaItem
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, fmt.Errorf("unmarshal media: %w", err)
	}
	return items, nil
}

// ReactionCounts maps reaction kind to count for one post.
type ReactionCounts map[ReactionKind]int64

// MarshalReactionCounts serializes the counter map for storage.
func MarshalReactionCounts(c ReactionCounts) (string, error) {
	if len(c) == 0 {
		return "{}", nil
	}
	raw, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("marshal reaction counts: %w", err)
	}
	return string(raw), nil
}

// UnmarshalReactionCounts deserializes a stored counter map. Empty
// input yields an empty, non-nil map so callers can adjust in place.
func UnmarshalReactionCounts(raw string) (ReactionCounts, error) {
	c := make(ReactionCounts)
	if raw == "" || raw == "{}" {
		return c, nil
	}
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return nil, fmt.Errorf("unmarshal reaction counts: %w", err)
	}
	return c, nil
}
