package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/undertow/internal/store"
)

// Engine is the synchronization facade: it owns the bound identity,
// the local mutation writers, and the sync cycle trigger.
//
// Concurrency model: local writers may be called from any goroutine
// (the store serializes writes on its single connection). Sync cycles
// are exclusive: at most one cycle runs at a time, and a second
// trigger while one is in flight is rejected with CYCLE_IN_FLIGHT
// rather than queued.
type Engine struct {
	store    *store.Store
	gateway  Gateway
	notifier Notifier
	ids      IDGenerator
	now      func() time.Time

	mu      sync.Mutex
	userID  string
	current *SyncContext
}

// Option configures an Engine.
type Option func(*Engine)

// WithNotifier sets the change-notification sink.
func WithNotifier(n Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

// WithIDGenerator overrides client id generation. Used by tests.
func WithIDGenerator(g IDGenerator) Option {
	return func(e *Engine) { e.ids = g }
}

// WithNow overrides the clock. Used by tests.
func WithNow(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates an Engine over an open store and a gateway. No identity
// is bound yet; every writer and RunCycle fail with NOT_BOUND until
// Bind succeeds.
func New(st *store.Store, gw Gateway, opts ...Option) *Engine {
	e := &Engine{
		store:    st,
		gateway:  gw,
		notifier: nopNotifier{},
		ids:      UUIDv7Generator{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Bind scopes the engine to userID. Any rows belonging to a different
// identity are purged from the store before the new identity becomes
// active, so a device handed between accounts never leaks state.
//
// Binding the already-bound identity is a no-op purge (nothing
// foreign exists) and is safe to call on every startup.
func (e *Engine) Bind(ctx context.Context, userID string) error {
	if userID == "" {
		return errInvariant("bind requires a non-empty user id")
	}

	e.mu.Lock()
	if e.current != nil {
		running := e.userID
		e.mu.Unlock()
		return errCycleInFlight(running)
	}
	e.mu.Unlock()

	if err := e.store.Bind(ctx, userID); err != nil {
		return err
	}
	if err := e.store.EnsureUser(ctx, userID); err != nil {
		return err
	}

	e.mu.Lock()
	e.userID = userID
	e.mu.Unlock()

	e.notifier.Notify(ProfileUpdated{UserID: userID})
	slog.Info("identity bound", "user", userID)
	return nil
}

// Wipe deletes every row belonging to the bound identity and unbinds
// it. The schema survives; only data goes.
func (e *Engine) Wipe(ctx context.Context) error {
	e.mu.Lock()
	userID := e.userID
	if userID == "" {
		e.mu.Unlock()
		return errNotBound()
	}
	if e.current != nil {
		e.mu.Unlock()
		return errCycleInFlight(userID)
	}
	e.mu.Unlock()

	if err := e.store.Wipe(ctx, userID); err != nil {
		return err
	}

	e.mu.Lock()
	e.userID = ""
	e.mu.Unlock()

	slog.Info("identity wiped", "user", userID)
	return nil
}

// UserID returns the bound identity, or "" when none is bound.
func (e *Engine) UserID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.userID
}

// boundUser returns the bound identity or a NOT_BOUND error.
func (e *Engine) boundUser() (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.userID == "" {
		return "", errNotBound()
	}
	return e.userID, nil
}

// phases returns the cycle's phases in their fixed execution order.
// Outbox flush runs first so remapped identifiers are settled before
// engagement reconciliation, and the feed pull runs after every push
// so the pulled authoritative state reflects this cycle's writes.
func (e *Engine) phases() []Phase {
	return []Phase{
		outboxPhase{},
		reactionPhase{},
		bookmarkPhase{},
		votePhase{},
		feedPhase{},
		diagPhase{},
	}
}

// RunCycle executes one full sync cycle: outbox flush, reaction,
// bookmark and poll-vote reconciliation, feed delta pull, then the
// diagnostic pass. Phase failures are logged and isolated; RunCycle
// itself errs only on NOT_BOUND or CYCLE_IN_FLIGHT.
func (e *Engine) RunCycle(ctx context.Context) error {
	e.mu.Lock()
	if e.userID == "" {
		e.mu.Unlock()
		return errNotBound()
	}
	if e.current != nil {
		userID := e.userID
		e.mu.Unlock()
		return errCycleInFlight(userID)
	}
	sc := &SyncContext{
		Store:     e.store,
		Gateway:   e.gateway,
		UserID:    e.userID,
		StartedAt: e.now(),
		Notifier:  e.notifier,
		Now:       e.now,
	}
	e.current = sc
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.current = nil
		e.mu.Unlock()
	}()

	phases := e.phases()
	slog.Info("sync cycle started", "user", sc.UserID)
	completed := Runner{}.Run(ctx, phases, sc)
	slog.Info("sync cycle finished",
		"user", sc.UserID,
		"completed", completed,
		"total", len(phases),
		"aborted", sc.Aborted(),
		"elapsed", time.Since(sc.StartedAt),
	)
	return nil
}

// CancelCycle requests cooperative abort of the in-flight cycle, if
// any. Work already committed stays committed.
func (e *Engine) CancelCycle() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current != nil {
		e.current.Abort()
	}
}
