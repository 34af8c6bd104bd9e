package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Poll is the typed poll payload attached to a poll post.
//
// VoterVoteIndex is the bound viewer's choice, or NoVote when the
// viewer has not voted. Choice colors are display metadata assigned on
// first render; the merge prefers an already-chosen local color over a
// freshly arrived payload that lacks one, so the UI never flickers.
type Poll struct {
	Question       string       `json:"question"`
	Choices        []PollChoice `json:"choices"`
	EndsAt         time.Time    `json:"ends_at,omitempty"`
	VoterVoteIndex int          `json:"voter_vote_index"`
}

// PollChoice is one selectable poll option.
type PollChoice struct {
	Label string `json:"label"`
	Votes int64  `json:"votes"`
	Color string `json:"color,omitempty"`
}

// NoVote marks an absent viewer vote.
const NoVote = -1

// TotalVotes sums the per-choice counts.
func (p *Poll) TotalVotes() int64 {
	var total int64
	for _, c := range p.Choices {
		total += c.Votes
	}
	return total
}

// AdoptColors copies choice colors from prev for every choice that has
// no color in p. Choices are matched by index.
func (p *Poll) AdoptColors(prev *Poll) {
	if prev == nil {
		return
	}
	for i := range p.Choices {
		if p.Choices[i].Color == "" && i < len(prev.Choices) {
			p.Choices[i].Color = prev.Choices[i].Color
		}
	}
}

// MarshalPoll serializes a poll payload for storage. A nil poll
// serializes to the empty string, which the store maps to SQL NULL.
func MarshalPoll(p *Poll) (string, error) {
	if p == nil {
		return "", nil
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("marshal poll: %w", err)
	}
	return string(raw), nil
}

// UnmarshalPoll deserializes a stored poll payload. Empty input yields
// a nil poll.
func UnmarshalPoll(raw string) (*Poll, error) {
	if raw == "" {
		return nil, nil
	}
	var p Poll
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, fmt.Errorf("unmarshal poll: %w", err)
	}
	return &p, nil
}
