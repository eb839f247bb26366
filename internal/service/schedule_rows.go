package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/alex-osman/language-learning-sub001/internal/domain"
	"github.com/alex-osman/language-learning-sub001/internal/store"
)

// characterRow adapts the character knowledge store to the scheduleRow
// interface. It keeps the loaded record so a save preserves the fields
// the scheduler does not own (movie, image, learned date).
type characterRow struct {
	store  store.CharacterKnowledgeStore
	userID uuid.UUID
	id     int
	clock  Clock
	record *domain.CharacterKnowledge
}

func (r *characterRow) lockedState(ctx context.Context) (domain.ScheduleState, bool, error) {
	rec, err := r.store.GetForUpdate(ctx, r.userID, r.id)
	if err != nil {
		if store.IsNotFoundError(err) {
			return domain.ScheduleState{}, false, nil
		}
		return domain.ScheduleState{}, false, err
	}
	r.record = rec
	return rec.ScheduleState, true, nil
}

func (r *characterRow) insert(ctx context.Context, state domain.ScheduleState) error {
	rec, err := domain.NewCharacterKnowledge(r.userID, r.id, r.clock())
	if err != nil {
		return err
	}
	rec.ScheduleState = state
	return r.store.Create(ctx, rec)
}

func (r *characterRow) save(ctx context.Context, state domain.ScheduleState, tier domain.Tier) error {
	now := r.clock()
	r.record.ScheduleState = state
	r.record.UpdatedAt = now

	// The learned date records when the character first reached the
	// mastered tier; a reset clears it.
	switch {
	case tier == domain.TierLearned && r.record.LearnedAt == nil:
		r.record.LearnedAt = &now
	case state.LastReviewedAt == nil:
		r.record.LearnedAt = nil
	}

	return r.store.Update(ctx, r.record)
}

// sentenceRow adapts the sentence knowledge store to scheduleRow. The
// cached comprehension aggregate and exclusion flag survive untouched:
// Update only writes scheduling columns.
type sentenceRow struct {
	store  store.SentenceKnowledgeStore
	userID uuid.UUID
	id     int
	clock  Clock
	record *domain.SentenceKnowledge
}

func (r *sentenceRow) lockedState(ctx context.Context) (domain.ScheduleState, bool, error) {
	rec, err := r.store.GetForUpdate(ctx, r.userID, r.id)
	if err != nil {
		if store.IsNotFoundError(err) {
			return domain.ScheduleState{}, false, nil
		}
		return domain.ScheduleState{}, false, err
	}
	r.record = rec
	return rec.ScheduleState, true, nil
}

func (r *sentenceRow) insert(ctx context.Context, state domain.ScheduleState) error {
	rec, err := domain.NewSentenceKnowledge(r.userID, r.id, r.clock())
	if err != nil {
		return err
	}
	rec.ScheduleState = state
	return r.store.Create(ctx, rec)
}

func (r *sentenceRow) save(ctx context.Context, state domain.ScheduleState, _ domain.Tier) error {
	r.record.ScheduleState = state
	r.record.UpdatedAt = r.clock()
	return r.store.Update(ctx, r.record)
}

// episodeRow adapts the episode knowledge store to scheduleRow.
type episodeRow struct {
	store  store.EpisodeKnowledgeStore
	userID uuid.UUID
	id     int
	clock  Clock
	record *domain.EpisodeKnowledge
}

func (r *episodeRow) lockedState(ctx context.Context) (domain.ScheduleState, bool, error) {
	rec, err := r.store.GetForUpdate(ctx, r.userID, r.id)
	if err != nil {
		if store.IsNotFoundError(err) {
			return domain.ScheduleState{}, false, nil
		}
		return domain.ScheduleState{}, false, err
	}
	r.record = rec
	return rec.ScheduleState, true, nil
}

func (r *episodeRow) insert(ctx context.Context, state domain.ScheduleState) error {
	rec, err := domain.NewEpisodeKnowledge(r.userID, r.id, r.clock())
	if err != nil {
		return err
	}
	rec.ScheduleState = state
	return r.store.Create(ctx, rec)
}

func (r *episodeRow) save(ctx context.Context, state domain.ScheduleState, _ domain.Tier) error {
	r.record.ScheduleState = state
	r.record.UpdatedAt = r.clock()
	return r.store.Update(ctx, r.record)
}
