package sm2

import (
	"math"
	"time"

	"github.com/vocadrill/vocadrill/internal/domain"
)

// Bounds of the ease factor. Every update clamps into this range.
const (
	MinEF     = 1.3
	MaxEF     = 2.8
	InitialEF = 2.5
)

// A card counts as mastered once it has survived this many consecutive
// successful reviews with at least a three-week interval.
const (
	MasteredRepetitions = 3
	MasteredInterval    = 21
)

// maxRating anchors the ease-factor update; the further a rating falls below
// it, the harder the hit to the EF.
const maxRating = domain.Easy

// NewSchedule returns the initial state for a card that has never been
// reviewed: due immediately, default ease factor.
func NewSchedule(cardID string, now time.Time) domain.Schedule {
	return domain.Schedule{
		CardID:      cardID,
		Repetitions: 0,
		Interval:    0,
		EF:          InitialEF,
		DueAt:       now,
	}
}

// Next computes the schedule that follows current after the given rating.
// A nil current is treated as a fresh card. The function is pure: same
// inputs, same output, no I/O.
//
// Failing ratings reset repetitions to 0 and the interval to 1 day. Passing
// ratings walk the 1, 3, round(interval*EF) ladder. The ease factor is
// updated on every rating, pass or fail, and clamped to [MinEF, MaxEF].
func Next(current *domain.Schedule, rating domain.Rating, now time.Time) domain.Schedule {
	var s domain.Schedule
	if current != nil {
		s = *current
	} else {
		s = NewSchedule("", now)
	}

	if !rating.Passing() {
		s.Repetitions = 0
		s.Interval = 1
	} else {
		switch s.Repetitions {
		case 0:
			s.Interval = 1
		case 1:
			s.Interval = 3
		default:
			s.Interval = int(math.Round(float64(s.Interval) * s.EF))
			if s.Interval < 1 {
				s.Interval = 1
			}
		}
		s.Repetitions++
	}

	delta := float64(maxRating - rating)
	s.EF = clamp(s.EF+(0.1-delta*(0.08+delta*0.02)), MinEF, MaxEF)

	s.DueAt = now.Add(time.Duration(s.Interval) * 24 * time.Hour)
	answer := rating
	s.LastAnswer = &answer
	return s
}

// Mastered reports whether a schedule has crossed the coarse "well learned"
// threshold used by the stats aggregation.
func Mastered(s domain.Schedule) bool {
	return s.Repetitions >= MasteredRepetitions && s.Interval >= MasteredInterval
}

func clamp(v, min, max float64) float64 {
	return math.Max(min, math.Min(max, v))
}
