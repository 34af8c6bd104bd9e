package testutil

import (
	"fmt"
	"sync"
)

// SequentialIDGenerator returns "prefix-000001", "prefix-000002", ...
// in call order.
//
// Unlike the production UUIDv7 generator it is fully deterministic, so
// ids written to the store are stable across runs and can appear in
// golden snapshots.
//
// Thread-safety: all methods are safe for concurrent use.
type SequentialIDGenerator struct {
	mu     sync.Mutex
	prefix string
	next   int
}

// NewSequentialIDGenerator creates a generator with the given prefix.
// An empty prefix defaults to "local".
func NewSequentialIDGenerator(prefix string) *SequentialIDGenerator {
	if prefix == "" {
		prefix = "local"
	}
	return &SequentialIDGenerator{prefix: prefix}
}

// NewID returns the next id in sequence.
//
// Implements engine.IDGenerator.
func (g *SequentialIDGenerator) NewID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.next++
	return fmt.Sprintf("%s-%06d", g.prefix, g.next)
}
