// Package engine composes the SM-2 scheduler, the schedule store, and the
// card content provider into the review operations the transport layer
// exposes: submit a rating, build today's session, manage the collection,
// and aggregate stats.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vocadrill/vocadrill/internal/content"
	"github.com/vocadrill/vocadrill/internal/domain"
	"github.com/vocadrill/vocadrill/internal/sm2"
	"github.com/vocadrill/vocadrill/internal/storage"
)

// Engine is safe for concurrent use; per-(user, card) write ordering is the
// store's responsibility.
type Engine struct {
	store   storage.Store
	content content.Provider
	logger  *slog.Logger
	now     func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock substitutes the time source. Tests use it to pin "now".
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func New(store storage.Store, provider content.Provider, logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		store:   store,
		content: provider,
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func normalizeID(cardID string) (string, error) {
	id := domain.NormalizeCardID(cardID)
	if id == "" {
		return "", domain.ErrCardIDRequired
	}
	return id, nil
}

// SubmitRating applies a rating to the user's schedule for the card and
// records the event in the review log, atomically. The card does not have to
// exist in content: scheduling needs a stable identifier, nothing more.
func (e *Engine) SubmitRating(ctx context.Context, userID, cardID string, rating domain.Rating) (domain.Schedule, error) {
	if !rating.IsValid() {
		return domain.Schedule{}, fmt.Errorf("%w: %d", domain.ErrInvalidRating, int(rating))
	}
	id, err := normalizeID(cardID)
	if err != nil {
		return domain.Schedule{}, err
	}

	now := e.now()
	return e.store.Submit(ctx, userID, id, func(current *domain.Schedule) (domain.Schedule, domain.ReviewLogEntry, error) {
		next := sm2.Next(current, rating, now)
		next.CardID = id
		entry := domain.ReviewLogEntry{
			UserID:    userID,
			CardID:    id,
			Rating:    rating,
			Timestamp: now,
		}
		return next, entry, nil
	})
}

// Today assembles the user's review session: every due schedule joined with
// its card, ascending by due date, capped at limit (0 means uncapped).
//
// A due schedule whose card no longer exists in content is deleted from the
// store as a side effect of this read and logged. Callers should expect the
// collection to shrink when content disappears upstream.
func (e *Engine) Today(ctx context.Context, userID string, limit int) ([]domain.ReviewItem, error) {
	now := e.now()
	due, err := e.store.DueBefore(ctx, userID, now, 0)
	if err != nil {
		return nil, err
	}

	cards, err := e.content.ListPublished(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading cards for session: %w", err)
	}
	byID := make(map[string]domain.Card, len(cards))
	for _, c := range cards {
		byID[c.ID] = c
	}

	items := make([]domain.ReviewItem, 0, len(due))
	for _, sched := range due {
		card, ok := byID[sched.CardID]
		if !ok {
			e.logger.Warn("dropping orphaned schedule", "user", userID, "card", sched.CardID)
			if _, err := e.store.Delete(ctx, userID, sched.CardID); err != nil {
				return nil, err
			}
			continue
		}
		items = append(items, domain.ReviewItem{Card: card, Schedule: sched})
	}

	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

// Add starts tracking a card, due immediately. Re-adding a tracked card is a
// no-op: existing progress is never reset. Reports whether the schedule was
// created.
func (e *Engine) Add(ctx context.Context, userID, cardID string) (bool, error) {
	id, err := normalizeID(cardID)
	if err != nil {
		return false, err
	}
	return e.store.Add(ctx, userID, sm2.NewSchedule(id, e.now()))
}

// Remove stops tracking a card and deletes its review-log entries. Reports
// whether a schedule existed.
func (e *Engine) Remove(ctx context.Context, userID, cardID string) (bool, error) {
	id, err := normalizeID(cardID)
	if err != nil {
		return false, err
	}
	return e.store.Delete(ctx, userID, id)
}

// Reset marks every schedule the user owns as due now. Repetitions, interval
// and ease factor keep their values; this reschedules, it does not wipe.
func (e *Engine) Reset(ctx context.Context, userID string) (bool, error) {
	if err := e.store.SetAllDueNow(ctx, userID, e.now()); err != nil {
		return false, err
	}
	return true, nil
}

// Stats aggregates the user's collection directly from the store.
func (e *Engine) Stats(ctx context.Context, userID string) (domain.Stats, error) {
	return e.store.Stats(ctx, userID, e.now())
}

// CollectionIDs returns every tracked card ID, normalized and sorted.
func (e *Engine) CollectionIDs(ctx context.Context, userID string) ([]string, error) {
	ids, err := e.store.CollectionIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	for i, id := range ids {
		ids[i] = domain.NormalizeCardID(id)
	}
	return ids, nil
}

// History reports review counts for each of the trailing days, oldest first,
// zero-filled for days without activity.
func (e *Engine) History(ctx context.Context, userID string, days int) ([]domain.DayCount, error) {
	if days <= 0 {
		days = 30
	}
	now := e.now().UTC()
	start := now.AddDate(0, 0, -(days - 1)).Truncate(24 * time.Hour)

	byDay, err := e.store.History(ctx, userID, start)
	if err != nil {
		return nil, err
	}

	out := make([]domain.DayCount, 0, days)
	for i := 0; i < days; i++ {
		date := start.AddDate(0, 0, i).Format("2006-01-02")
		out = append(out, domain.DayCount{Date: date, Count: byDay[date]})
	}
	return out, nil
}
