// Package engine implements the local-first synchronization engine.
//
// The engine owns the trigger surface (Bind, Wipe, RunCycle,
// CancelCycle), the local mutation writers invoked directly by UI
// actions, and the ordered reconciliation phases that push local
// intent to the remote gateway and pull authoritative deltas back.
//
// Concurrency model: single-process, cooperative. Cycles are invoked
// by external triggers and run phases sequentially; at most one cycle
// is in flight per engine. A second trigger while a cycle runs is
// rejected; CancelCycle aborts the running cycle cooperatively via a
// flag each phase checks between per-item operations. In-flight
// network calls are allowed to complete.
//
// ERROR HANDLING: a phase error is logged and does not stop later
// phases. Per-item failures are recorded on their rows and retried on
// the next externally triggered cycle. "Remote already has this
// effect" conflicts are normalized to success.
package engine
