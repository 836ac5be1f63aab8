package storage

import (
	"context"
	"time"

	"github.com/vocadrill/vocadrill/internal/domain"
)

// ComputeFunc produces the next schedule and its log entry from the current
// one. current is nil when the (user, card) pair has no schedule yet. The
// store calls it while holding whatever lock serializes writes to that pair.
type ComputeFunc func(current *domain.Schedule) (domain.Schedule, domain.ReviewLogEntry, error)

// Store persists one schedule per (user, card) pair plus an append-only
// review log. Implementations must serialize Submit calls on the same
// (user, card) pair; operations on different pairs are independent.
//
// The engine never branches on which backend it is talking to.
type Store interface {
	// Get returns the schedule for (user, card), or nil if absent.
	Get(ctx context.Context, userID, cardID string) (*domain.Schedule, error)

	// Upsert atomically creates or replaces the schedule for (user, card).
	Upsert(ctx context.Context, userID string, s domain.Schedule) error

	// Add creates the schedule only if the pair has none yet and reports
	// whether it was created. An existing schedule is left untouched.
	Add(ctx context.Context, userID string, s domain.Schedule) (bool, error)

	// Submit runs compute against the current schedule and commits the new
	// schedule together with the log entry as one atomic unit.
	Submit(ctx context.Context, userID, cardID string, compute ComputeFunc) (domain.Schedule, error)

	// DueBefore returns schedules with due_at <= at, ascending by due_at.
	// A limit of 0 means no cap.
	DueBefore(ctx context.Context, userID string, at time.Time, limit int) ([]domain.Schedule, error)

	// Delete removes the schedule and its review-log entries and reports
	// whether a schedule existed.
	Delete(ctx context.Context, userID, cardID string) (bool, error)

	// SetAllDueNow marks every schedule the user owns as due at now,
	// leaving repetitions, interval and EF untouched.
	SetAllDueNow(ctx context.Context, userID string, now time.Time) error

	// CollectionIDs returns every card ID the user tracks, due or not.
	CollectionIDs(ctx context.Context, userID string) ([]string, error)

	// Stats aggregates the user's collection as of now.
	Stats(ctx context.Context, userID string, now time.Time) (domain.Stats, error)

	// History returns per-day review counts since the given instant, keyed
	// by UTC date (YYYY-MM-DD). Days without reviews are absent.
	History(ctx context.Context, userID string, since time.Time) (map[string]int, error)

	Close() error
}
