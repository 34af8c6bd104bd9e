package engine

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/roach88/undertow/internal/store"
)

// Phase is one step of a sync cycle, responsible for one entity
// kind's push/pull. Phases are independent: one phase failing must not
// prevent the next from running.
//
// Long-running phases check ctx.Interrupted(...) between per-item
// operations so an abort cuts them short cooperatively.
type Phase interface {
	Name() string
	Run(ctx context.Context, sc *SyncContext) error
}

// SyncContext is the shared state one cycle's phases run against.
type SyncContext struct {
	Store     *store.Store
	Gateway   Gateway
	UserID    string
	StartedAt time.Time
	Notifier  Notifier
	Now       func() time.Time

	aborted atomic.Bool
}

// Abort requests cooperative cancellation. In-flight network calls
// complete; subsequent items and phases are skipped.
func (sc *SyncContext) Abort() {
	sc.aborted.Store(true)
}

// Aborted reports whether Abort was called.
func (sc *SyncContext) Aborted() bool {
	return sc.aborted.Load()
}

// Interrupted reports whether the phase should stop between items:
// either Abort was called or the context is done.
func (sc *SyncContext) Interrupted(ctx context.Context) bool {
	return sc.aborted.Load() || ctx.Err() != nil
}

// Runner executes phases strictly in the supplied order against one
// shared context.
//
// A phase's error is caught and logged; it does NOT stop subsequent
// phases (independent-failure isolation). Effects a phase already
// committed stay committed - a cycle's partial failure is not rolled
// back, an explicit consistency trade-off for liveness. There is no
// retry inside a cycle; retries happen on the next external trigger.
type Runner struct{}

// Run executes every phase in order. Returns the number of phases
// that completed without error.
func (Runner) Run(ctx context.Context, phases []Phase, sc *SyncContext) int {
	completed := 0
	for _, phase := range phases {
		if sc.Interrupted(ctx) {
			slog.Info("sync cycle aborted, skipping remaining phases",
				"phase", phase.Name(),
				"user", sc.UserID,
			)
			break
		}

		start := time.Now()
		if err := phase.Run(ctx, sc); err != nil {
			slog.Error("sync phase failed",
				"phase", phase.Name(),
				"user", sc.UserID,
				"elapsed", time.Since(start),
				"error", err,
			)
			continue
		}

		slog.Debug("sync phase completed",
			"phase", phase.Name(),
			"user", sc.UserID,
			"elapsed", time.Since(start),
		)
		completed++
	}
	return completed
}
