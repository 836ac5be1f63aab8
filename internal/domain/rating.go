package domain

import "fmt"

// Rating is the user's assessment of recall quality, ordered worst to best.
// Values below Good are failures; Good and above count as successful recall.
type Rating int

const (
	Fail  Rating = 0 // no recall at all
	Hard  Rating = 1 // wrong, but the answer felt familiar
	Good  Rating = 2 // recalled with effort
	Great Rating = 3 // recalled with minor hesitation
	Easy  Rating = 4 // effortless recall
)

var ratingNames = [...]string{Fail: "Fail", Hard: "Hard", Good: "Good", Great: "Great", Easy: "Easy"}

// IsValid reports whether r is within the closed five-valued enum.
func (r Rating) IsValid() bool {
	return r >= Fail && r <= Easy
}

// Passing reports whether r counts as a successful recall.
func (r Rating) Passing() bool {
	return r >= Good
}

// String returns the rating's name, or "Rating(n)" for out-of-range values.
func (r Rating) String() string {
	if r.IsValid() {
		return ratingNames[r]
	}
	return fmt.Sprintf("Rating(%d)", int(r))
}
