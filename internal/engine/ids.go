package engine

import "github.com/google/uuid"

// IDGenerator generates client-side post identifiers. The server
// honors the client id when possible ("upsert by client id"), so ids
// must be globally unique and time-sortable to preserve outbox FIFO.
//
// Implemented by UUIDv7Generator (production) and
// testutil.FixedIDGenerator (tests).
type IDGenerator interface {
	NewID() string
}

// UUIDv7Generator generates time-sortable UUIDv7 identifiers.
//
// UUIDv7 embeds a timestamp in the most significant bits, so lexical
// order tracks creation order. Stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// NewID creates a new UUIDv7 as a hyphenated string.
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Generator) NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}
