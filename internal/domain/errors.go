package domain

import "errors"

// Sentinel errors for the review engine.
// Use errors.Is to check: errors.Is(err, domain.ErrInvalidRating)
var (
	ErrInvalidRating    = errors.New("vocadrill: invalid rating")
	ErrCardIDRequired   = errors.New("vocadrill: card id required")
	ErrStoreUnavailable = errors.New("vocadrill: store unavailable")
)
