package domain

import "strings"

// Card is a single vocabulary entry. Content is owned by the lesson store;
// the review engine only ever keys on the normalized ID.
type Card struct {
	ID       string   `json:"id"`
	Phrase   string   `json:"phrase"`
	Meaning  string   `json:"meaning,omitempty"`
	Examples []string `json:"examples,omitempty"`
}

// NormalizeCardID trims whitespace and lowercases a card identifier so that
// "Hello" and "hello " resolve to the same schedule. Applied at every entry
// point that accepts a card ID.
func NormalizeCardID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}
