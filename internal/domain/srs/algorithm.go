package srs

import (
	"math"
	"time"

	"github.com/alex-osman/language-learning-sub001/internal/domain"
)

// calculateNewEaseFactor determines the new ease factor from the review
// quality using the SM-2 adjustment formula.
//
// The ease factor represents the unit's difficulty - higher values mean
// the unit is easier and intervals grow faster. Notably the ease factor
// is adjusted on every review, including failed ones, which is how a
// repeatedly failed unit drifts toward the 1.3 floor.
//
// The result is clamped to params.MinEaseFactor so intervals always
// keep growing on success.
func calculateNewEaseFactor(currentEF float64, quality int, params *Params) float64 {
	q := float64(quality)
	newEF := currentEF + (0.1 - (5-q)*(0.08+(5-q)*0.02))

	if newEF < params.MinEaseFactor {
		newEF = params.MinEaseFactor
	}

	return newEF
}

// calculateNextState applies one review to a schedule state, returning
// a new state rather than mutating the input.
//
// Algorithm behavior:
//   - The ease factor is always recomputed first.
//   - A failing quality (below params.FailureThreshold) resets the
//     repetition ladder: repetitions 0, interval 1 day.
//   - A success increments repetitions; the interval is
//     params.FirstInterval for the first success in a row,
//     params.SecondInterval for the second, and
//     round(previous interval * new ease factor) afterwards.
//   - LastReviewedAt is set to now and NextReviewAt to now plus the new
//     interval in days.
//
// Deterministic given now; no side effects.
func calculateNextState(
	state domain.ScheduleState,
	quality int,
	now time.Time,
	params *Params,
) domain.ScheduleState {
	newState := state

	newState.EaseFactor = calculateNewEaseFactor(state.EaseFactor, quality, params)

	if quality < params.FailureThreshold {
		// Failed recall: back to the start of the ladder.
		newState.Repetitions = 0
		newState.Interval = 1
	} else {
		newState.Repetitions = state.Repetitions + 1
		switch newState.Repetitions {
		case 1:
			newState.Interval = params.FirstInterval
		case 2:
			newState.Interval = params.SecondInterval
		default:
			newState.Interval = int(math.Round(float64(state.Interval) * newState.EaseFactor))
		}
	}

	reviewedAt := now
	nextAt := now.AddDate(0, 0, newState.Interval)
	newState.LastReviewedAt = &reviewedAt
	newState.NextReviewAt = &nextAt

	return newState
}
