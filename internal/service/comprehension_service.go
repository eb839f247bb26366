package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/alex-osman/language-learning-sub001/internal/domain"
	"github.com/alex-osman/language-learning-sub001/internal/hanzi"
	"github.com/alex-osman/language-learning-sub001/internal/platform/logger"
	"github.com/alex-osman/language-learning-sub001/internal/store"
)

// BatchResult carries the outcome of one composite in a batch
// computation. Err is set when that composite failed; the rest of the
// batch is unaffected.
type BatchResult struct {
	UnitID        int
	Comprehension *domain.Comprehension
	Err           error
}

// ComprehensionService derives and caches how much of a composite unit
// (sentence or episode) a learner understands, based on which of its
// unique characters the learner knows. A character counts as known when
// a knowledge record exists and has been reviewed at least once.
type ComprehensionService interface {
	// Compute recalculates the aggregate from current knowledge, caches
	// it with the computation time, and returns it. Works for composite
	// kinds only; character yields domain.ErrNotComposite.
	Compute(ctx context.Context, kind domain.UnitKind, userID uuid.UUID, unitID int) (*domain.Comprehension, error)

	// GetComprehension returns the cached aggregate when it is younger
	// than the staleness window, recomputing otherwise. There is no
	// event-driven invalidation: reviews do not touch the cache, they
	// just age it out.
	GetComprehension(ctx context.Context, kind domain.UnitKind, userID uuid.UUID, unitID int) (*domain.Comprehension, error)

	// ComputeBatch recalculates aggregates for many composites of one
	// kind, resolving every unique character exactly once across the
	// whole batch. Individual failures land in their BatchResult; the
	// batch itself only errors when nothing could be attempted.
	ComputeBatch(ctx context.Context, kind domain.UnitKind, userID uuid.UUID, unitIDs []int) ([]BatchResult, error)
}

// comprehensionServiceImpl implements the ComprehensionService interface.
type comprehensionServiceImpl struct {
	characters store.CharacterKnowledgeStore
	sentences  store.SentenceKnowledgeStore
	episodes   store.EpisodeKnowledgeStore
	content    store.ContentStore
	maxAge     time.Duration
	clock      Clock
	logger     *slog.Logger
}

// NewComprehensionService creates a new ComprehensionService. maxAge is
// the staleness window for cached aggregates.
// It returns an error if any of the required dependencies are nil.
func NewComprehensionService(
	characters store.CharacterKnowledgeStore,
	sentences store.SentenceKnowledgeStore,
	episodes store.EpisodeKnowledgeStore,
	content store.ContentStore,
	maxAge time.Duration,
	clock Clock,
	logger *slog.Logger,
) (ComprehensionService, error) {
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
	if maxAge <= 0 {
		return nil, fmt.Errorf("%w: maxAge must be positive", domain.ErrValidation)
	}

	if clock == nil {
		clock = UTCClock
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &comprehensionServiceImpl{
		characters: characters,
		sentences:  sentences,
		episodes:   episodes,
		content:    content,
		maxAge:     maxAge,
		clock:      clock,
		logger:     logger.With(slog.String("component", "comprehension_service")),
	}, nil
}

// Compute implements ComprehensionService.Compute
func (s *comprehensionServiceImpl) Compute(
	ctx context.Context,
	kind domain.UnitKind,
	userID uuid.UUID,
	unitID int,
) (*domain.Comprehension, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if !kind.IsComposite() {
		return nil, fmt.Errorf("%w: %q", domain.ErrNotComposite, kind)
	}

	text, err := s.compositeText(ctx, kind, unitID)
	if err != nil {
		return nil, err
	}

	atoms := hanzi.Unique(text)
	knownByHanzi, err := s.resolveKnown(ctx, userID, atoms)
	if err != nil {
		return nil, NewServiceError("compute_comprehension", "failed to resolve known characters", err)
	}

	known := 0
	for _, atom := range atoms {
		if knownByHanzi[atom] {
			known++
		}
	}

	c := domain.NewComprehension(len(atoms), known, s.clock())

	if err := s.cache(ctx, kind, userID, unitID, c); err != nil {
		return nil, NewServiceError("compute_comprehension", "failed to cache aggregate", err)
	}

	log.Debug("comprehension computed",
		slog.String("user_id", userID.String()),
		slog.String("kind", string(kind)),
		slog.Int("unit_id", unitID),
		slog.Int("total", c.TotalUniqueCharacters),
		slog.Int("known", c.KnownCharacters),
		slog.Float64("percentage", c.Percentage))

	return &c, nil
}

// GetComprehension implements ComprehensionService.GetComprehension
func (s *comprehensionServiceImpl) GetComprehension(
	ctx context.Context,
	kind domain.UnitKind,
	userID uuid.UUID,
	unitID int,
) (*domain.Comprehension, error) {
	if !kind.IsComposite() {
		return nil, fmt.Errorf("%w: %q", domain.ErrNotComposite, kind)
	}

	cached, err := s.cached(ctx, kind, userID, unitID)
	if err != nil && !store.IsNotFoundError(err) {
		return nil, NewServiceError("get_comprehension", "failed to load cached aggregate", err)
	}

	if cached != nil && cached.Fresh(s.clock(), s.maxAge) {
		return cached, nil
	}

	return s.Compute(ctx, kind, userID, unitID)
}

// ComputeBatch implements ComprehensionService.ComputeBatch
func (s *comprehensionServiceImpl) ComputeBatch(
	ctx context.Context,
	kind domain.UnitKind,
	userID uuid.UUID,
	unitIDs []int,
) ([]BatchResult, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if !kind.IsComposite() {
		return nil, fmt.Errorf("%w: %q", domain.ErrNotComposite, kind)
	}

	results := make([]BatchResult, len(unitIDs))
	texts := make(map[int]string, len(unitIDs))
	var allText strings.Builder

	for i, id := range unitIDs {
		results[i] = BatchResult{UnitID: id}
		text, err := s.compositeText(ctx, kind, id)
		if err != nil {
			results[i].Err = err
			continue
		}
		texts[id] = text
		allText.WriteString(text)
	}

	// One resolution pass for every unique atom in the batch.
	knownByHanzi, err := s.resolveKnown(ctx, userID, hanzi.Unique(allText.String()))
	if err != nil {
		return nil, NewServiceError("compute_batch", "failed to resolve known characters", err)
	}

	now := s.clock()
	for i := range results {
		if results[i].Err != nil {
			continue
		}

		atoms := hanzi.Unique(texts[results[i].UnitID])
		known := 0
		for _, atom := range atoms {
			if knownByHanzi[atom] {
				known++
			}
		}

		c := domain.NewComprehension(len(atoms), known, now)
		if err := s.cache(ctx, kind, userID, results[i].UnitID, c); err != nil {
			results[i].Err = NewServiceError("compute_batch", "failed to cache aggregate", err)
			continue
		}
		results[i].Comprehension = &c
	}

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	log.Info("batch comprehension computed",
		slog.String("user_id", userID.String()),
		slog.String("kind", string(kind)),
		slog.Int("requested", len(unitIDs)),
		slog.Int("failed", failed))

	return results, nil
}

// compositeText resolves the full Han text of a composite unit.
func (s *comprehensionServiceImpl) compositeText(
	ctx context.Context,
	kind domain.UnitKind,
	unitID int,
) (string, error) {
	switch kind {
	case domain.UnitKindSentence:
		sent, err := s.content.GetSentence(ctx, unitID)
		if err != nil {
			return "", err
		}
		return sent.Hanzi, nil
	case domain.UnitKindEpisode:
		sentences, err := s.content.ListEpisodeSentences(ctx, unitID)
		if err != nil {
			return "", err
		}
		if len(sentences) == 0 {
			// Distinguish a missing episode from an empty one.
			if _, err := s.content.GetEpisode(ctx, unitID); err != nil {
				return "", err
			}
		}
		var b strings.Builder
		for _, sent := range sentences {
			b.WriteString(sent.Hanzi)
		}
		return b.String(), nil
	default:
		return "", fmt.Errorf("%w: %q", domain.ErrNotComposite, kind)
	}
}

// resolveKnown maps each atom to whether the learner knows it. Atoms
// missing from the content catalog stay false: they cannot have a
// knowledge record.
func (s *comprehensionServiceImpl) resolveKnown(
	ctx context.Context,
	userID uuid.UUID,
	atoms []string,
) (map[string]bool, error) {
	known := make(map[string]bool, len(atoms))
	if len(atoms) == 0 {
		return known, nil
	}

	idsByHanzi, err := s.content.FindCharacterIDsByHanzi(ctx, atoms)
	if err != nil {
		return nil, err
	}

	ids := make([]int, 0, len(idsByHanzi))
	for _, id := range idsByHanzi {
		ids = append(ids, id)
	}

	knownIDs, err := s.characters.FindKnownCharacterIDs(ctx, userID, ids)
	if err != nil {
		return nil, err
	}

	for _, atom := range atoms {
		if id, ok := idsByHanzi[atom]; ok {
			known[atom] = knownIDs[id]
		}
	}
	return known, nil
}

// cached loads the stored aggregate for the unit, if any.
func (s *comprehensionServiceImpl) cached(
	ctx context.Context,
	kind domain.UnitKind,
	userID uuid.UUID,
	unitID int,
) (*domain.Comprehension, error) {
	switch kind {
	case domain.UnitKindSentence:
		rec, err := s.sentences.Get(ctx, userID, unitID)
		if err != nil {
			return nil, err
		}
		c := rec.Comprehension
		return &c, nil
	case domain.UnitKindEpisode:
		rec, err := s.episodes.Get(ctx, userID, unitID)
		if err != nil {
			return nil, err
		}
		c := rec.Comprehension
		return &c, nil
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrNotComposite, kind)
	}
}

// cache persists the aggregate for the unit, creating the knowledge
// record if the learner never reviewed it.
func (s *comprehensionServiceImpl) cache(
	ctx context.Context,
	kind domain.UnitKind,
	userID uuid.UUID,
	unitID int,
	c domain.Comprehension,
) error {
	switch kind {
	case domain.UnitKindSentence:
		return s.sentences.UpsertComprehension(ctx, userID, unitID, c, s.clock())
	case domain.UnitKindEpisode:
		return s.episodes.UpsertComprehension(ctx, userID, unitID, c, s.clock())
	default:
		return fmt.Errorf("%w: %q", domain.ErrNotComposite, kind)
	}
}
