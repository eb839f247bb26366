package service

import (
	"time"

	"github.com/google/uuid"

	"github.com/alex-osman/language-learning-sub001/internal/domain"
	"github.com/alex-osman/language-learning-sub001/internal/platform/cache"
)

// ReviewSession summarizes a learner's current run of reviews. It is
// advisory UI state: losing one to TTL expiry or eviction only resets
// the displayed counters.
type ReviewSession struct {
	StartedAt      time.Time               `json:"started_at"`
	LastActivityAt time.Time               `json:"last_activity_at"`
	Reviews        int                     `json:"reviews"`
	Failures       int                     `json:"failures"`
	ByKind         map[domain.UnitKind]int `json:"by_kind"`
}

// SessionTracker keeps per-learner review sessions in an injected TTL
// cache. A session starts implicitly with the first recorded review and
// ends when it expires or is explicitly cleared.
type SessionTracker struct {
	sessions         cache.Store[uuid.UUID, ReviewSession]
	failureThreshold int
	clock            Clock
}

// NewSessionTracker creates a tracker over the given cache store.
// failureThreshold is the quality below which a review counts as a
// failure, matching the scheduler's notion.
func NewSessionTracker(sessions cache.Store[uuid.UUID, ReviewSession], failureThreshold int, clock Clock) *SessionTracker {
	if sessions == nil {
		panic("sessions cache cannot be nil")
	}
	if clock == nil {
		clock = UTCClock
	}
	return &SessionTracker{
		sessions:         sessions,
		failureThreshold: failureThreshold,
		clock:            clock,
	}
}

// RecordReview folds one review into the learner's session, creating
// the session if none is live, and returns the updated snapshot.
func (t *SessionTracker) RecordReview(userID uuid.UUID, kind domain.UnitKind, quality int) ReviewSession {
	now := t.clock()

	s, ok := t.sessions.Get(userID)
	if !ok {
		s = ReviewSession{StartedAt: now}
	}

	// The map is copied rather than mutated so snapshots handed out by
	// Current never race with later updates.
	byKind := make(map[domain.UnitKind]int, len(s.ByKind)+1)
	for k, v := range s.ByKind {
		byKind[k] = v
	}
	s.ByKind = byKind

	s.LastActivityAt = now
	s.Reviews++
	if quality < t.failureThreshold {
		s.Failures++
	}
	s.ByKind[kind]++

	t.sessions.Set(userID, s)
	return s
}

// Current returns the learner's live session, if any.
func (t *SessionTracker) Current(userID uuid.UUID) (ReviewSession, bool) {
	return t.sessions.Get(userID)
}

// End discards the learner's session.
func (t *SessionTracker) End(userID uuid.UUID) {
	t.sessions.Delete(userID)
}
