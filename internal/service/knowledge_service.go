package service

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/alex-osman/language-learning-sub001/internal/domain"
	"github.com/alex-osman/language-learning-sub001/internal/domain/srs"
	"github.com/alex-osman/language-learning-sub001/internal/platform/logger"
	"github.com/alex-osman/language-learning-sub001/internal/store"
)

// KnowledgeService exposes the review lifecycle for every content unit
// kind: submitting reviews, starting and resetting learning, and the
// selectors the review screens are built from.
type KnowledgeService interface {
	// ReviewUnit records one review of a unit with a quality rating in
	// [0,5] and returns the schedule state that now holds. The record is
	// created lazily on first review. The whole read-modify-write runs
	// in one transaction holding a row lock, so concurrent reviews of
	// the same (learner, unit) pair serialize.
	ReviewUnit(ctx context.Context, kind domain.UnitKind, userID uuid.UUID, unitID, quality int) (*domain.ScheduleState, error)

	// StartLearning marks a unit as actively studied: an immediately-due
	// record with default scheduling fields. Calling it for a unit that
	// already has a record is a no-op success returning the existing
	// state.
	StartLearning(ctx context.Context, kind domain.UnitKind, userID uuid.UUID, unitID int) (*domain.ScheduleState, error)

	// ResetLearning reverts a unit's schedule state to the pristine
	// defaults without deleting the record. Idempotent; resetting a unit
	// with no record is a no-op success returning the pristine state.
	ResetLearning(ctx context.Context, kind domain.UnitKind, userID uuid.UUID, unitID int) (*domain.ScheduleState, error)

	// GetDueUnits returns the IDs of the learner's units due for review
	// now. Units that were never scheduled count as due.
	GetDueUnits(ctx context.Context, kind domain.UnitKind, userID uuid.UUID) ([]int, error)

	// GetPracticeUnits returns up to limit unit IDs the learner has any
	// history with, least-recently-reviewed first.
	GetPracticeUnits(ctx context.Context, kind domain.UnitKind, userID uuid.UUID, limit int) ([]int, error)

	// GetHardestCharacters returns the learner's lowest-ease characters
	// among those with a mnemonic movie. Returns
	// store.ErrKnowledgeNotFound when none qualify.
	GetHardestCharacters(ctx context.Context, userID uuid.UUID, count int) ([]*domain.CharacterKnowledge, error)

	// GetCharacterView returns the catalog character merged with the
	// learner's knowledge and tier. Works for characters the learner has
	// never touched; those come back with TierUnknown.
	GetCharacterView(ctx context.Context, userID uuid.UUID, characterID int) (*domain.CharacterView, error)

	// SetMovie replaces the learner's mnemonic movie for a character
	// without touching scheduling state.
	SetMovie(ctx context.Context, userID uuid.UUID, characterID int, movie string) error

	// ExcludeSentence removes a sentence from the learner's practice
	// pools permanently, keeping its review history.
	ExcludeSentence(ctx context.Context, userID uuid.UUID, sentenceID int) error
}

// knowledgeServiceImpl implements the KnowledgeService interface.
type knowledgeServiceImpl struct {
	db         *sql.DB
	characters store.CharacterKnowledgeStore
	sentences  store.SentenceKnowledgeStore
	episodes   store.EpisodeKnowledgeStore
	content    store.ContentStore
	scheduler  srs.Service
	clock      Clock
	logger     *slog.Logger
}

// NewKnowledgeService creates a new KnowledgeService.
// It returns an error if any of the required dependencies are nil.
func NewKnowledgeService(
	db *sql.DB,
	characters store.CharacterKnowledgeStore,
	sentences store.SentenceKnowledgeStore,
	episodes store.EpisodeKnowledgeStore,
	content store.ContentStore,
	scheduler srs.Service,
	clock Clock,
	logger *slog.Logger,
) (KnowledgeService, error) {
	if db == nil {
		return nil, fmt.Errorf("%w: db cannot be nil", domain.ErrValidation)
	}
	if characters == nil {
		return nil, fmt.Errorf("%w: character knowledge store cannot be nil", domain.ErrValidation)
	}
	if sentences == nil {
		return nil, fmt.Errorf("%w: sentence knowledge store cannot be nil", domain.ErrValidation)
	}
	if episodes == nil {
		return nil, fmt.Errorf("%w: episode knowledge store cannot be nil", domain.ErrValidation)
	}
	if content == nil {
		return nil, fmt.Errorf("%w: content store cannot be nil", domain.ErrValidation)
	}
	if scheduler == nil {
		return nil, fmt.Errorf("%w: scheduler cannot be nil", domain.ErrValidation)
	}

	if clock == nil {
		clock = UTCClock
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &knowledgeServiceImpl{
		db:         db,
		characters: characters,
		sentences:  sentences,
		episodes:   episodes,
		content:    content,
		scheduler:  scheduler,
		clock:      clock,
		logger:     logger.With(slog.String("component", "knowledge_service")),
	}, nil
}

// scheduleRow abstracts the per-kind knowledge record inside a review
// transaction: load it under a row lock, create it lazily, save the new
// schedule state. Each unit kind supplies its own implementation bound
// to the tx-scoped store.
type scheduleRow interface {
	// lockedState loads the record under FOR UPDATE. The bool reports
	// whether a record exists.
	lockedState(ctx context.Context) (domain.ScheduleState, bool, error)

	// insert creates the record with the given schedule state.
	insert(ctx context.Context, state domain.ScheduleState) error

	// save writes the new schedule state onto the loaded record. The
	// tier is the classification of the new state; kinds that track a
	// learned date use it.
	save(ctx context.Context, state domain.ScheduleState, tier domain.Tier) error
}

func (s *knowledgeServiceImpl) rowFor(kind domain.UnitKind, tx *sql.Tx, userID uuid.UUID, unitID int) (scheduleRow, error) {
	switch kind {
	case domain.UnitKindCharacter:
		return &characterRow{store: s.characters.WithTx(tx), userID: userID, id: unitID, clock: s.clock}, nil
	case domain.UnitKindSentence:
		return &sentenceRow{store: s.sentences.WithTx(tx), userID: userID, id: unitID, clock: s.clock}, nil
	case domain.UnitKindEpisode:
		return &episodeRow{store: s.episodes.WithTx(tx), userID: userID, id: unitID, clock: s.clock}, nil
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidUnitKind, kind)
	}
}

// ReviewUnit implements KnowledgeService.ReviewUnit
func (s *knowledgeServiceImpl) ReviewUnit(
	ctx context.Context,
	kind domain.UnitKind,
	userID uuid.UUID,
	unitID, quality int,
) (*domain.ScheduleState, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidUnitKind, kind)
	}

	now := s.clock()
	var result domain.ScheduleState

	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		row, err := s.rowFor(kind, tx, userID, unitID)
		if err != nil {
			return err
		}

		state, exists, err := row.lockedState(ctx)
		if err != nil {
			return NewServiceError("review_unit", "failed to load knowledge record", err)
		}
		if !exists {
			state = domain.NewScheduleState()
		}

		newState, err := s.scheduler.Review(state, quality, now)
		if err != nil {
			// Quality out of range; the domain error passes through.
			return err
		}

		tier := s.scheduler.Classify(&newState)

		if !exists {
			if err := row.insert(ctx, newState); err != nil {
				return NewServiceError("review_unit", "failed to create knowledge record", err)
			}
		} else if err := row.save(ctx, newState, tier); err != nil {
			return NewServiceError("review_unit", "failed to save knowledge record", err)
		}

		result = newState
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info("review recorded",
		slog.String("user_id", userID.String()),
		slog.String("kind", string(kind)),
		slog.Int("unit_id", unitID),
		slog.Int("quality", quality),
		slog.Int("interval_days", result.Interval))

	return &result, nil
}

// StartLearning implements KnowledgeService.StartLearning
func (s *knowledgeServiceImpl) StartLearning(
	ctx context.Context,
	kind domain.UnitKind,
	userID uuid.UUID,
	unitID int,
) (*domain.ScheduleState, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidUnitKind, kind)
	}

	now := s.clock()

	var result domain.ScheduleState
	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		row, err := s.rowFor(kind, tx, userID, unitID)
		if err != nil {
			return err
		}

		existing, exists, err := row.lockedState(ctx)
		if err != nil {
			return NewServiceError("start_learning", "failed to load knowledge record", err)
		}
		if exists {
			// Already tracked; starting again changes nothing.
			result = existing
			return nil
		}

		result = s.scheduler.StartLearning(now)
		if err := row.insert(ctx, result); err != nil {
			return NewServiceError("start_learning", "failed to create knowledge record", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info("learning started",
		slog.String("user_id", userID.String()),
		slog.String("kind", string(kind)),
		slog.Int("unit_id", unitID))
	return &result, nil
}

// ResetLearning implements KnowledgeService.ResetLearning
func (s *knowledgeServiceImpl) ResetLearning(
	ctx context.Context,
	kind domain.UnitKind,
	userID uuid.UUID,
	unitID int,
) (*domain.ScheduleState, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidUnitKind, kind)
	}

	pristine := s.scheduler.Reset()

	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		row, err := s.rowFor(kind, tx, userID, unitID)
		if err != nil {
			return err
		}

		_, exists, err := row.lockedState(ctx)
		if err != nil {
			return NewServiceError("reset_learning", "failed to load knowledge record", err)
		}
		if !exists {
			// Nothing to reset.
			return nil
		}

		if err := row.save(ctx, pristine, s.scheduler.Classify(&pristine)); err != nil {
			return NewServiceError("reset_learning", "failed to save knowledge record", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info("learning reset",
		slog.String("user_id", userID.String()),
		slog.String("kind", string(kind)),
		slog.Int("unit_id", unitID))
	return &pristine, nil
}

// GetDueUnits implements KnowledgeService.GetDueUnits
func (s *knowledgeServiceImpl) GetDueUnits(
	ctx context.Context,
	kind domain.UnitKind,
	userID uuid.UUID,
) ([]int, error) {
	now := s.clock()

	switch kind {
	case domain.UnitKindCharacter:
		records, err := s.characters.FindDue(ctx, userID, now)
		if err != nil {
			return nil, NewServiceError("get_due_units", "failed to find due characters", err)
		}
		ids := make([]int, len(records))
		for i, r := range records {
			ids[i] = r.CharacterID
		}
		return ids, nil
	case domain.UnitKindSentence:
		records, err := s.sentences.FindDue(ctx, userID, now)
		if err != nil {
			return nil, NewServiceError("get_due_units", "failed to find due sentences", err)
		}
		ids := make([]int, len(records))
		for i, r := range records {
			ids[i] = r.SentenceID
		}
		return ids, nil
	case domain.UnitKindEpisode:
		records, err := s.episodes.FindDue(ctx, userID, now)
		if err != nil {
			return nil, NewServiceError("get_due_units", "failed to find due episodes", err)
		}
		ids := make([]int, len(records))
		for i, r := range records {
			ids[i] = r.EpisodeID
		}
		return ids, nil
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidUnitKind, kind)
	}
}

// GetPracticeUnits implements KnowledgeService.GetPracticeUnits
func (s *knowledgeServiceImpl) GetPracticeUnits(
	ctx context.Context,
	kind domain.UnitKind,
	userID uuid.UUID,
	limit int,
) ([]int, error) {
	switch kind {
	case domain.UnitKindCharacter:
		records, err := s.characters.FindPractice(ctx, userID, limit)
		if err != nil {
			return nil, NewServiceError("get_practice_units", "failed to find practice characters", err)
		}
		ids := make([]int, len(records))
		for i, r := range records {
			ids[i] = r.CharacterID
		}
		return ids, nil
	case domain.UnitKindSentence:
		records, err := s.sentences.FindPractice(ctx, userID, limit)
		if err != nil {
			return nil, NewServiceError("get_practice_units", "failed to find practice sentences", err)
		}
		ids := make([]int, len(records))
		for i, r := range records {
			ids[i] = r.SentenceID
		}
		return ids, nil
	case domain.UnitKindEpisode:
		records, err := s.episodes.FindPractice(ctx, userID, limit)
		if err != nil {
			return nil, NewServiceError("get_practice_units", "failed to find practice episodes", err)
		}
		ids := make([]int, len(records))
		for i, r := range records {
			ids[i] = r.EpisodeID
		}
		return ids, nil
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidUnitKind, kind)
	}
}

// GetHardestCharacters implements KnowledgeService.GetHardestCharacters
func (s *knowledgeServiceImpl) GetHardestCharacters(
	ctx context.Context,
	userID uuid.UUID,
	count int,
) ([]*domain.CharacterKnowledge, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	records, err := s.characters.FindHardest(ctx, userID, count)
	if err != nil {
		if store.IsNotFoundError(err) {
			return nil, store.ErrKnowledgeNotFound
		}
		log.Error("failed to find hardest characters",
			slog.String("error", err.Error()),
			slog.String("user_id", userID.String()))
		return nil, NewServiceError("get_hardest_characters", "failed to find hardest characters", err)
	}

	return records, nil
}

// GetCharacterView implements KnowledgeService.GetCharacterView
func (s *knowledgeServiceImpl) GetCharacterView(
	ctx context.Context,
	userID uuid.UUID,
	characterID int,
) (*domain.CharacterView, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	base, err := s.content.GetCharacter(ctx, characterID)
	if err != nil {
		if store.IsNotFoundError(err) {
			return nil, store.ErrCharacterNotFound
		}
		return nil, NewServiceError("get_character_view", "failed to load character", err)
	}

	know, err := s.characters.Get(ctx, userID, characterID)
	if err != nil && !store.IsNotFoundError(err) {
		log.Error("failed to load character knowledge",
			slog.String("error", err.Error()),
			slog.String("user_id", userID.String()),
			slog.Int("character_id", characterID))
		return nil, NewServiceError("get_character_view", "failed to load knowledge record", err)
	}

	var tier domain.Tier
	if know != nil {
		tier = s.scheduler.Classify(&know.ScheduleState)
	} else {
		tier = s.scheduler.Classify(nil)
	}

	view := domain.MergeCharacterView(*base, know, tier)
	return &view, nil
}

// SetMovie implements KnowledgeService.SetMovie
func (s *knowledgeServiceImpl) SetMovie(
	ctx context.Context,
	userID uuid.UUID,
	characterID int,
	movie string,
) error {
	if err := s.characters.SetMovie(ctx, userID, characterID, movie, s.clock()); err != nil {
		if store.IsNotFoundError(err) {
			return store.ErrKnowledgeNotFound
		}
		return NewServiceError("set_movie", "failed to set movie", err)
	}
	return nil
}

// ExcludeSentence implements KnowledgeService.ExcludeSentence
func (s *knowledgeServiceImpl) ExcludeSentence(
	ctx context.Context,
	userID uuid.UUID,
	sentenceID int,
) error {
	if err := s.sentences.SetExcluded(ctx, userID, sentenceID, true, s.clock()); err != nil {
		if store.IsNotFoundError(err) {
			return store.ErrKnowledgeNotFound
		}
		return NewServiceError("exclude_sentence", "failed to exclude sentence", err)
	}
	return nil
}
