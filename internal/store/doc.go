// Package store provides durable SQLite storage for the sync engine.
//
// The store owns the persisted schema and its linear migration
// history, all transactional entity writes (optimistic local mutations
// and their outbox entries), the authoritative entity merge with
// identifier remapping, the user-scope binder, and the read paths the
// sync phases depend on.
//
// Transaction discipline: every local mutation writer is a single
// transaction; the outbox commit and the feed delta batch each commit
// merge, remap, and bookkeeping atomically. Callers never see a
// half-applied mutation.
package store
