// Package model defines the domain entities shared by the store, the
// sync engine, and the remote gateway adapter.
//
// Two families of types live here:
//
//   - Local rows: User, Post, OutboxEntry, Reaction, Bookmark, PollVote,
//     FeedItem, Draft. These mirror the persisted schema one to one and
//     are always scoped to the currently bound user.
//
//   - Wire shapes: Entity, FeedDelta, VoteRecord. These are the
//     authoritative representations returned by the remote gateway and
//     are merged into local rows by the store's entity merge.
//
// Poll and media payloads are explicit tagged structs with their own
// (de)serialization at the store boundary. They are never stored or
// passed around as untyped JSON blobs.
package model
