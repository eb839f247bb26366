package domain

import (
	"errors"
	"math"
	"time"
)

// Validation errors for comprehension aggregates.
var (
	ErrInvalidPercentage      = errors.New("comprehension percentage must be between 0 and 100")
	ErrInconsistentCharCounts = errors.New("known and unknown character counts must sum to the total")
)

// Comprehension is the cached aggregate describing how much of a
// composite unit a learner understands, derived from the set of unique
// characters it contains.
//
// Invariants: KnownCharacters + UnknownCharacters == TotalUniqueCharacters,
// and Percentage == round(100 * known / total) when total > 0, else 0.
// CalculatedAt is nil until the aggregate has been computed at least once.
type Comprehension struct {
	Percentage            float64    `json:"comprehension_percentage"`
	TotalUniqueCharacters int        `json:"total_unique_characters"`
	KnownCharacters       int        `json:"known_characters"`
	UnknownCharacters     int        `json:"unknown_characters"`
	CalculatedAt          *time.Time `json:"calculated_at,omitempty"`
}

// NewComprehension builds a consistent aggregate from the unique-atom
// counts. A composite with no characters has 0% comprehension.
func NewComprehension(total, known int, calculatedAt time.Time) Comprehension {
	c := Comprehension{
		TotalUniqueCharacters: total,
		KnownCharacters:       known,
		UnknownCharacters:     total - known,
		CalculatedAt:          &calculatedAt,
	}
	if total > 0 {
		c.Percentage = math.Round(100 * float64(known) / float64(total))
	}
	return c
}

// Validate checks the aggregate invariants.
func (c Comprehension) Validate() error {
	if c.Percentage < 0 || c.Percentage > 100 {
		return ErrInvalidPercentage
	}
	if c.KnownCharacters+c.UnknownCharacters != c.TotalUniqueCharacters {
		return ErrInconsistentCharCounts
	}
	return nil
}

// Fresh reports whether the aggregate was calculated within maxAge of
// the given instant. An aggregate that was never calculated is stale.
func (c Comprehension) Fresh(now time.Time, maxAge time.Duration) bool {
	if c.CalculatedAt == nil {
		return false
	}
	return now.Sub(*c.CalculatedAt) < maxAge
}
