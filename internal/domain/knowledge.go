package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Knowledge tier values. A tier is derived from a ScheduleState by the
// srs package; it is never stored.
type Tier string

const (
	TierUnknown  Tier = "unknown"
	TierLearning Tier = "learning"
	TierSeen     Tier = "seen"
	TierLearned  Tier = "learned"
)

// DefaultEaseFactor is the SM-2 starting difficulty multiplier for a
// unit that has never been reviewed.
const DefaultEaseFactor = 2.5

// MinEaseFactor is the floor below which the ease factor never drops.
const MinEaseFactor = 1.3

// Common validation errors for knowledge records.
var (
	ErrEmptyKnowledgeUserID = errors.New("knowledge record user ID cannot be empty")
	ErrEmptyKnowledgeUnitID = errors.New("knowledge record unit ID must be positive")
	ErrInvalidInterval      = errors.New("interval must be greater than or equal to 0")
	ErrInvalidEaseFactor    = errors.New("ease factor must be at least 1.3")
	ErrInvalidRepetitions   = errors.New("repetitions must be greater than or equal to 0")
)

// ScheduleState holds the spaced-repetition scheduling fields shared by
// every knowledge record, whatever the content kind.
//
// Nil review dates are meaningful: a record with no LastReviewedAt has
// never been reviewed, and a record with no NextReviewAt is due now.
type ScheduleState struct {
	EaseFactor     float64    `json:"ease_factor"`
	Repetitions    int        `json:"repetitions"`
	Interval       int        `json:"interval"` // days
	LastReviewedAt *time.Time `json:"last_reviewed_at,omitempty"`
	NextReviewAt   *time.Time `json:"next_review_at,omitempty"`
}

// NewScheduleState returns the pristine scheduling state: default ease,
// no repetitions, no interval, review dates cleared.
func NewScheduleState() ScheduleState {
	return ScheduleState{
		EaseFactor:  DefaultEaseFactor,
		Repetitions: 0,
		Interval:    0,
	}
}

// Validate checks the scheduling invariants shared by every record kind.
func (s ScheduleState) Validate() error {
	if s.EaseFactor < MinEaseFactor {
		return ErrInvalidEaseFactor
	}
	if s.Repetitions < 0 {
		return ErrInvalidRepetitions
	}
	if s.Interval < 0 {
		return ErrInvalidInterval
	}
	return nil
}

// Reviewed reports whether the unit has ever been reviewed.
func (s ScheduleState) Reviewed() bool {
	return s.LastReviewedAt != nil
}

// Due reports whether the unit is due for review at the given instant.
// A unit that was never scheduled counts as due.
func (s ScheduleState) Due(now time.Time) bool {
	return s.NextReviewAt == nil || !s.NextReviewAt.After(now)
}

// CharacterKnowledge tracks a learner's spaced-repetition state for a
// single character, plus the mnemonic fields used for presentation.
// Identity key: (UserID, CharacterID).
type CharacterKnowledge struct {
	UserID      uuid.UUID `json:"user_id"`
	CharacterID int       `json:"character_id"`
	ScheduleState
	LearnedAt *time.Time `json:"learned_at,omitempty"`
	Movie     string     `json:"movie,omitempty"`   // memory-aid scene, presentation only
	ImgURL    string     `json:"img_url,omitempty"` // mnemonic image, presentation only
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// NewCharacterKnowledge creates a knowledge record for a user and
// character with pristine scheduling state.
func NewCharacterKnowledge(userID uuid.UUID, characterID int, now time.Time) (*CharacterKnowledge, error) {
	k := &CharacterKnowledge{
		UserID:        userID,
		CharacterID:   characterID,
		ScheduleState: NewScheduleState(),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := k.Validate(); err != nil {
		return nil, err
	}
	return k, nil
}

// Validate checks if the CharacterKnowledge has valid data.
func (k *CharacterKnowledge) Validate() error {
	if k.UserID == uuid.Nil {
		return ErrEmptyKnowledgeUserID
	}
	if k.CharacterID <= 0 {
		return ErrEmptyKnowledgeUnitID
	}
	return k.ScheduleState.Validate()
}

// SentenceKnowledge tracks a learner's state for a sentence. A sentence
// is independently schedulable and additionally carries a cached
// comprehension aggregate derived from its constituent characters.
// Identity key: (UserID, SentenceID).
type SentenceKnowledge struct {
	UserID     uuid.UUID `json:"user_id"`
	SentenceID int       `json:"sentence_id"`
	ScheduleState
	Comprehension
	// Excluded permanently removes the sentence from random-practice
	// pools without deleting its history.
	Excluded  bool      `json:"excluded"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewSentenceKnowledge creates a knowledge record for a user and
// sentence with pristine scheduling state and no cached aggregate.
func NewSentenceKnowledge(userID uuid.UUID, sentenceID int, now time.Time) (*SentenceKnowledge, error) {
	k := &SentenceKnowledge{
		UserID:        userID,
		SentenceID:    sentenceID,
		ScheduleState: NewScheduleState(),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := k.Validate(); err != nil {
		return nil, err
	}
	return k, nil
}

// Validate checks if the SentenceKnowledge has valid data.
func (k *SentenceKnowledge) Validate() error {
	if k.UserID == uuid.Nil {
		return ErrEmptyKnowledgeUserID
	}
	if k.SentenceID <= 0 {
		return ErrEmptyKnowledgeUnitID
	}
	if err := k.ScheduleState.Validate(); err != nil {
		return err
	}
	return k.Comprehension.Validate()
}

// EpisodeKnowledge tracks a learner's state for an episode, with the
// same shape as SentenceKnowledge minus the exclusion flag.
// Identity key: (UserID, EpisodeID).
type EpisodeKnowledge struct {
	UserID    uuid.UUID `json:"user_id"`
	EpisodeID int       `json:"episode_id"`
	ScheduleState
	Comprehension
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewEpisodeKnowledge creates a knowledge record for a user and episode
// with pristine scheduling state and no cached aggregate.
func NewEpisodeKnowledge(userID uuid.UUID, episodeID int, now time.Time) (*EpisodeKnowledge, error) {
	k := &EpisodeKnowledge{
		UserID:        userID,
		EpisodeID:     episodeID,
		ScheduleState: NewScheduleState(),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := k.Validate(); err != nil {
		return nil, err
	}
	return k, nil
}

// Validate checks if the EpisodeKnowledge has valid data.
func (k *EpisodeKnowledge) Validate() error {
	if k.UserID == uuid.Nil {
		return ErrEmptyKnowledgeUserID
	}
	if k.EpisodeID <= 0 {
		return ErrEmptyKnowledgeUnitID
	}
	if err := k.ScheduleState.Validate(); err != nil {
		return err
	}
	return k.Comprehension.Validate()
}
