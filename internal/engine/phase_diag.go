package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/roach88/undertow/internal/model"
	"github.com/roach88/undertow/internal/store"
)

// DiagReport summarizes the health checks run at the end of a cycle.
type DiagReport struct {
	TableCounts   map[string]int
	FKViolations  []store.FKViolation
	OutboxPending int
	OutboxFailed  int
	FeedItems     int
	CheckFailures []string
}

// Healthy reports whether every check ran and none found a violation.
func (r *DiagReport) Healthy() bool {
	return len(r.FKViolations) == 0 && len(r.CheckFailures) == 0
}

// String renders the report deterministically for logs and snapshots.
func (r *DiagReport) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "counts: %s\n", store.RenderCounts(r.TableCounts))
	fmt.Fprintf(&b, "outbox: pending=%d failed=%d\n", r.OutboxPending, r.OutboxFailed)
	fmt.Fprintf(&b, "feed: items=%d\n", r.FeedItems)
	if len(r.FKViolations) == 0 {
		b.WriteString("foreign keys: ok\n")
	} else {
		for _, v := range r.FKViolations {
			fmt.Fprintf(&b, "foreign keys: %s row %d -> %s\n", v.Table, v.RowID, v.Parent)
		}
	}
	for _, f := range r.CheckFailures {
		fmt.Fprintf(&b, "check failed: %s\n", f)
	}
	fmt.Fprintf(&b, "healthy: %v", r.Healthy())
	return b.String()
}

// diagPhase runs integrity checks and logs a report. It observes and
// reports; it never repairs and never fails the cycle. Every check is
// individually recovered so one broken probe does not hide the rest.
type diagPhase struct{}

func (diagPhase) Name() string { return "diagnostic" }

func (diagPhase) Run(ctx context.Context, sc *SyncContext) error {
	report := Diagnose(ctx, sc)
	if report.Healthy() {
		slog.Info("diagnostic report", "user", sc.UserID, "report", report.String())
	} else {
		slog.Warn("diagnostic report found problems", "user", sc.UserID, "report", report.String())
	}
	return nil
}

// Diagnose runs the health checks outside a sync cycle, for the CLI's
// diag command.
func (e *Engine) Diagnose(ctx context.Context) (*DiagReport, error) {
	userID, err := e.boundUser()
	if err != nil {
		return nil, err
	}
	return Diagnose(ctx, &SyncContext{
		Store:    e.store,
		Gateway:  e.gateway,
		UserID:   userID,
		Notifier: e.notifier,
		Now:      e.now,
	}), nil
}

// Diagnose runs every health check and collects the results. Check
// errors are recorded in the report rather than returned.
func Diagnose(ctx context.Context, sc *SyncContext) *DiagReport {
	report := &DiagReport{TableCounts: map[string]int{}}

	if counts, err := sc.Store.TableCounts(ctx); err != nil {
		report.CheckFailures = append(report.CheckFailures, fmt.Sprintf("table counts: %v", err))
	} else {
		report.TableCounts = counts
	}

	if violations, err := sc.Store.ForeignKeyViolations(ctx); err != nil {
		report.CheckFailures = append(report.CheckFailures, fmt.Sprintf("foreign key check: %v", err))
	} else {
		report.FKViolations = violations
	}

	if entries, err := sc.Store.PendingOutbox(ctx, sc.UserID); err != nil {
		report.CheckFailures = append(report.CheckFailures, fmt.Sprintf("outbox scan: %v", err))
	} else {
		for _, e := range entries {
			if e.Status == model.OutboxFailed {
				report.OutboxFailed++
			} else {
				report.OutboxPending++
			}
		}
	}

	if count, err := sc.Store.FeedCount(ctx, model.FeedScopeHome, sc.UserID); err != nil {
		report.CheckFailures = append(report.CheckFailures, fmt.Sprintf("feed count: %v", err))
	} else {
		report.FeedItems = count
	}

	return report
}
