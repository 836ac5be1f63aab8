package domain

import "time"

// Schedule is the spaced-repetition state of one card for one user.
// There is at most one per (user, card) pair.
type Schedule struct {
	CardID      string    `json:"card_id" db:"card_id"`
	Repetitions int       `json:"repetitions" db:"repetitions"`
	Interval    int       `json:"interval" db:"interval_days"` // days until the next review
	EF          float64   `json:"ef" db:"ef"`
	DueAt       time.Time `json:"due_at" db:"due_at"`
	LastAnswer  *Rating   `json:"last_answer,omitempty" db:"last_answer"`
}

// Due reports whether the schedule is eligible for review at the given instant.
func (s Schedule) Due(now time.Time) bool {
	return !s.DueAt.After(now)
}

// ReviewLogEntry records a single rating event. Entries are write-once and
// never read back to compute schedules; they exist for history and analytics.
type ReviewLogEntry struct {
	UserID    string    `json:"user_id" db:"user_id"`
	CardID    string    `json:"card_id" db:"card_id"`
	Rating    Rating    `json:"rating" db:"rating"`
	Timestamp time.Time `json:"timestamp" db:"reviewed_at"`
}

// ReviewItem pairs a due schedule with its card content for a study session.
type ReviewItem struct {
	Card     Card     `json:"card"`
	Schedule Schedule `json:"schedule"`
}

// Stats summarizes a user's collection. Learning is total minus mastered,
// floored at zero; cards never reviewed count as learning.
type Stats struct {
	Total    int `json:"total"`
	Due      int `json:"due"`
	Mastered int `json:"mastered"`
	Learning int `json:"learning"`
}

// DayCount is one day's review activity, used by the history endpoint.
type DayCount struct {
	Date  string `json:"date"` // YYYY-MM-DD, UTC
	Count int    `json:"count"`
}
