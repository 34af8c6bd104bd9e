package engine

import "github.com/roach88/undertow/internal/model"

// Event is a typed change notification fired after a committed
// mutation batch. The UI subscribes through a Notifier.
type Event interface {
	isEvent()
}

// FeedUpdated signals that the materialized feed changed.
type FeedUpdated struct{}

// EngagementUpdated signals that one post's engagement state changed:
// counters, the viewer's reaction, or the viewer's repost flag.
type EngagementUpdated struct {
	PostID         string
	ReactionCounts model.ReactionCounts
	ViewerReaction model.ReactionKind // "" when the viewer has none
	Reposted       bool
	RepostCount    int64
}

// ProfileUpdated signals that a cached user profile changed.
type ProfileUpdated struct {
	UserID string
}

func (FeedUpdated) isEvent()       {}
func (EngagementUpdated) isEvent() {}
func (ProfileUpdated) isEvent()    {}

// Notifier receives engine events. Implementations must not block:
// notifications fire inside the mutation path.
type Notifier interface {
	Notify(Event)
}

// FuncNotifier adapts a function to the Notifier interface.
type FuncNotifier func(Event)

// Notify implements Notifier.
func (f FuncNotifier) Notify(e Event) { f(e) }

// ChannelNotifier delivers events on a buffered channel, dropping
// events when the consumer falls behind rather than blocking writers.
type ChannelNotifier struct {
	ch chan Event
}

// NewChannelNotifier creates a ChannelNotifier with the given buffer.
func NewChannelNotifier(buffer int) *ChannelNotifier {
	if buffer <= 0 {
		buffer = 64
	}
	return &ChannelNotifier{ch: make(chan Event, buffer)}
}

// Notify implements Notifier. Non-blocking: a full buffer drops the
// event (the UI re-reads state on the next event anyway).
func (n *ChannelNotifier) Notify(e Event) {
	select {
	case n.ch <- e:
	default:
	}
}

// Events returns the receive side of the channel.
func (n *ChannelNotifier) Events() <-chan Event {
	return n.ch
}

// nopNotifier is the default when no notifier is configured.
type nopNotifier struct{}

func (nopNotifier) Notify(Event) {}
