package domain

import "fmt"

// UnitKind identifies the kind of content unit a knowledge record tracks.
type UnitKind string

// Supported content unit kinds.
const (
	UnitKindCharacter UnitKind = "character"
	UnitKindSentence  UnitKind = "sentence"
	UnitKindEpisode   UnitKind = "episode"
)

// ParseUnitKind converts a string into a UnitKind.
// Returns ErrInvalidUnitKind for anything other than the three known kinds.
func ParseUnitKind(s string) (UnitKind, error) {
	switch UnitKind(s) {
	case UnitKindCharacter, UnitKindSentence, UnitKindEpisode:
		return UnitKind(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidUnitKind, s)
	}
}

// IsComposite reports whether the kind is built from atomic characters
// and therefore has a derived comprehension percentage.
func (k UnitKind) IsComposite() bool {
	return k == UnitKindSentence || k == UnitKindEpisode
}

// Valid reports whether the kind is one of the three known kinds.
func (k UnitKind) Valid() bool {
	switch k {
	case UnitKindCharacter, UnitKindSentence, UnitKindEpisode:
		return true
	default:
		return false
	}
}
