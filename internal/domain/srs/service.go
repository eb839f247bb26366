package srs

import (
	"fmt"
	"time"

	"github.com/alex-osman/language-learning-sub001/internal/domain"
)

// Service defines the interface for SRS algorithm operations. All
// methods are pure: time is passed in explicitly and no I/O happens
// here.
type Service interface {
	// Review computes the schedule state that follows one review with
	// the given quality rating (0-5). Ratings outside the range are
	// rejected with domain.ErrInvalidQuality, never clamped.
	Review(state domain.ScheduleState, quality int, now time.Time) (domain.ScheduleState, error)

	// StartLearning returns the state for a unit the learner has just
	// chosen to study: default scheduling fields with both review dates
	// set to now, so the unit is immediately due without having earned
	// any repetitions.
	StartLearning(now time.Time) domain.ScheduleState

	// Reset returns the pristine default state with review dates
	// cleared.
	Reset() domain.ScheduleState

	// Classify assigns a discrete knowledge tier to a schedule state.
	// It is total: a nil state means the unit was never seen.
	Classify(state *domain.ScheduleState) domain.Tier
}

// defaultService is the standard implementation of the Service interface.
type defaultService struct {
	params *Params
}

// NewDefaultService creates a new SRS service with default parameters.
func NewDefaultService() Service {
	return &defaultService{
		params: NewDefaultParams(),
	}
}

// NewServiceWithParams creates a new SRS service with custom parameters.
func NewServiceWithParams(params *Params) Service {
	return &defaultService{
		params: params,
	}
}

// Review implements the Service interface.
func (s *defaultService) Review(
	state domain.ScheduleState,
	quality int,
	now time.Time,
) (domain.ScheduleState, error) {
	if quality < 0 || quality > s.params.MaxQuality {
		return domain.ScheduleState{}, fmt.Errorf("%w: got %d", domain.ErrInvalidQuality, quality)
	}

	return calculateNextState(state, quality, now, s.params), nil
}

// StartLearning implements the Service interface.
func (s *defaultService) StartLearning(now time.Time) domain.ScheduleState {
	state := s.Reset()
	reviewedAt := now
	nextAt := now
	state.LastReviewedAt = &reviewedAt
	state.NextReviewAt = &nextAt
	return state
}

// Reset implements the Service interface.
func (s *defaultService) Reset() domain.ScheduleState {
	return domain.ScheduleState{
		EaseFactor:  s.params.DefaultEaseFactor,
		Repetitions: 0,
		Interval:    0,
	}
}

// Classify implements the Service interface.
//
// Tier rules: no record or never reviewed is UNKNOWN; reviewed but with
// no successful repetitions yet is LEARNING; at or past the mastery
// threshold is LEARNED; everything in between is SEEN.
func (s *defaultService) Classify(state *domain.ScheduleState) domain.Tier {
	switch {
	case state == nil, state.LastReviewedAt == nil:
		return domain.TierUnknown
	case state.Repetitions == 0:
		return domain.TierLearning
	case state.Repetitions >= s.params.MasteryThreshold:
		return domain.TierLearned
	default:
		return domain.TierSeen
	}
}
