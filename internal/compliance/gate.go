package compliance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"meatengine/internal/alert"
	"meatengine/internal/metrics"
	"meatengine/internal/models"
)

var ErrOutsideWindow = errors.New("submission time outside the compliance window")

// failOpenAlertEvery throttles operator alerts while storage is down; every
// request still logs and counts.
const failOpenAlertEvery = time.Minute

// CycleRepository is the storage the gate needs.
type CycleRepository interface {
	// EnsurePending creates the PENDING row for the window unless one exists.
	EnsurePending(ctx context.Context, storeID uint, w Window) error
	// MarkSubmitted moves PENDING to SUBMITTED and reports whether this call
	// made the transition.
	MarkSubmitted(ctx context.Context, storeID uint, windowKey string, at time.Time) (bool, error)
	HasSubmission(ctx context.Context, storeID uint, windowKey string) (bool, error)
	StoreIDs(ctx context.Context) ([]uint, error)
}

type Reason string

const (
	ReasonBypass     Reason = "bypass"
	ReasonNotDue     Reason = "not_due"
	ReasonSubmitted  Reason = "submitted"
	ReasonLocked     Reason = "locked"
	ReasonLookupFail Reason = "fail_open"
)

type Decision struct {
	Allowed   bool   `json:"allowed"`
	Reason    Reason `json:"reason"`
	WindowKey string `json:"window_key,omitempty"`
}

// FailOpen is true when the request was let through because the
// submission lookup failed.
func (d Decision) FailOpen() bool { return d.Reason == ReasonLookupFail }

type SubmissionResult string

const (
	Recorded         SubmissionResult = "recorded"
	AlreadySubmitted SubmissionResult = "already_submitted"
)

type Gate struct {
	repo     CycleRepository
	schedule Schedule
	logger   *slog.Logger
	metrics  *metrics.Metrics
	notifier alert.Notifier

	lastAlert atomic.Int64
}

type Option func(*Gate)

func WithMetrics(m *metrics.Metrics) Option { return func(g *Gate) { g.metrics = m } }
func WithNotifier(n alert.Notifier) Option  { return func(g *Gate) { g.notifier = n } }
func WithLogger(l *slog.Logger) Option      { return func(g *Gate) { g.logger = l } }

func NewGate(repo CycleRepository, schedule Schedule, opts ...Option) *Gate {
	g := &Gate{repo: repo, schedule: schedule, logger: slog.Default()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Gate) Schedule() Schedule { return g.schedule }

// WithRepository returns a gate over repo with the same schedule and
// reporting, e.g. to record a submission inside a caller's transaction.
func (g *Gate) WithRepository(repo CycleRepository) *Gate {
	return NewGate(repo, g.schedule, WithLogger(g.logger), WithMetrics(g.metrics), WithNotifier(g.notifier))
}

// Check decides whether a store's operational request may proceed at now.
// Elevated roles bypass before any window logic. A failed lookup lets the
// request through, logged, counted and alerted.
func (g *Gate) Check(ctx context.Context, storeID uint, role models.UserRole, now time.Time) Decision {
	if role.Elevated() {
		g.metrics.GateDecision(metrics.OutcomeBypass)
		return Decision{Allowed: true, Reason: ReasonBypass}
	}

	w := g.schedule.WindowAt(now)
	if !w.Enforcing(now) {
		g.metrics.GateDecision(metrics.OutcomeAllow)
		return Decision{Allowed: true, Reason: ReasonNotDue, WindowKey: w.Key}
	}

	submitted, err := g.repo.HasSubmission(ctx, storeID, w.Key)
	if err != nil {
		g.failOpen(ctx, storeID, w.Key, now, err)
		return Decision{Allowed: true, Reason: ReasonLookupFail, WindowKey: w.Key}
	}
	if !submitted {
		g.metrics.GateDecision(metrics.OutcomeLocked)
		return Decision{Allowed: false, Reason: ReasonLocked, WindowKey: w.Key}
	}
	g.metrics.GateDecision(metrics.OutcomeAllow)
	return Decision{Allowed: true, Reason: ReasonSubmitted, WindowKey: w.Key}
}

func (g *Gate) failOpen(ctx context.Context, storeID uint, key string, now time.Time, err error) {
	g.metrics.GateDecision(metrics.OutcomeFailOpen)
	g.logger.ErrorContext(ctx, "compliance lookup failed, allowing request",
		"store_id", storeID,
		"window", key,
		"error", err)

	if g.notifier == nil {
		return
	}
	last := g.lastAlert.Load()
	if now.UnixNano()-last < int64(failOpenAlertEvery) || !g.lastAlert.CompareAndSwap(last, now.UnixNano()) {
		return
	}
	if nerr := g.notifier.Notify(ctx, alert.Alert{
		Kind:    alert.KindGateFailOpen,
		StoreID: storeID,
		Period:  key,
		Message: err.Error(),
		At:      now,
	}); nerr != nil {
		g.metrics.AlertFailed()
		g.logger.WarnContext(ctx, "could not deliver fail-open alert", "error", nerr)
	}
}

// RecordSubmission marks the store's count for windowKey as done. A repeat
// submission for the same window is AlreadySubmitted, not an error.
func (g *Gate) RecordSubmission(ctx context.Context, storeID uint, windowKey string, submittedAt time.Time) (SubmissionResult, error) {
	w, err := g.schedule.ParseWindowKey(windowKey)
	if err != nil {
		return "", err
	}
	if !w.Contains(submittedAt) {
		return "", fmt.Errorf("%w: %s not in [%s, %s)", ErrOutsideWindow,
			submittedAt.Format(time.RFC3339), w.Start.Format(time.RFC3339), w.End.Format(time.RFC3339))
	}

	if err := g.repo.EnsurePending(ctx, storeID, w); err != nil {
		return "", fmt.Errorf("ensure pending cycle: %w", err)
	}
	changed, err := g.repo.MarkSubmitted(ctx, storeID, w.Key, submittedAt)
	if err != nil {
		return "", fmt.Errorf("mark cycle submitted: %w", err)
	}

	result := AlreadySubmitted
	if changed {
		result = Recorded
	}
	g.metrics.Submission(string(result))
	g.logger.InfoContext(ctx, "weekly count submission",
		"store_id", storeID,
		"window", w.Key,
		"result", result)
	return result, nil
}

// OpenWindow creates PENDING cycles for every store for the window at t.
func (g *Gate) OpenWindow(ctx context.Context, t time.Time) (Window, int, error) {
	w := g.schedule.WindowAt(t)
	ids, err := g.repo.StoreIDs(ctx)
	if err != nil {
		return w, 0, fmt.Errorf("list stores: %w", err)
	}
	opened := 0
	for _, id := range ids {
		if err := g.repo.EnsurePending(ctx, id, w); err != nil {
			return w, opened, fmt.Errorf("open window %s for store %d: %w", w.Key, id, err)
		}
		opened++
	}
	g.logger.InfoContext(ctx, "compliance window opened", "window", w.Key, "stores", opened)
	return w, opened, nil
}
