// Package domain defines the core business entities and errors.
package domain

import "errors"

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity fails validation.
	// This is often wrapped with a more specific error message.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidID is returned when an ID is malformed or invalid.
	ErrInvalidID = errors.New("invalid ID")

	// ErrInvalidQuality is returned when a review quality rating falls
	// outside the accepted 0-5 range. The rating is rejected outright,
	// never clamped.
	ErrInvalidQuality = errors.New("quality rating must be between 0 and 5")

	// ErrInvalidUnitKind is returned when a content-unit kind is not one
	// of character, sentence, or episode.
	ErrInvalidUnitKind = errors.New("invalid content unit kind")

	// ErrNotComposite is returned when a comprehension operation addresses
	// a unit kind that has no constituent characters.
	ErrNotComposite = errors.New("unit kind is not a composite")

	// ErrUnauthorized is returned when an operation is not permitted.
	ErrUnauthorized = errors.New("unauthorized operation")
)
