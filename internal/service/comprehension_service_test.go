package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alex-osman/language-learning-sub001/internal/domain"
	"github.com/alex-osman/language-learning-sub001/internal/store"
)

type comprehensionFixture struct {
	svc        ComprehensionService
	characters *fakeCharacterStore
	sentences  *fakeSentenceStore
	episodes   *fakeEpisodeStore
	content    *fakeContentStore
	now        time.Time
	userID     uuid.UUID
}

// newComprehensionFixture wires the service with a mutable clock so
// tests can age the cache.
func newComprehensionFixture(t *testing.T, maxAge time.Duration) *comprehensionFixture {
	t.Helper()

	f := &comprehensionFixture{
		characters: newFakeCharacterStore(),
		sentences:  newFakeSentenceStore(),
		episodes:   newFakeEpisodeStore(),
		content:    newFakeContentStore(),
		now:        time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		userID:     uuid.New(),
	}

	svc, err := NewComprehensionService(
		f.characters,
		f.sentences,
		f.episodes,
		f.content,
		maxAge,
		func() time.Time { return f.now },
		nil,
	)
	require.NoError(t, err)
	f.svc = svc
	return f
}

// markKnown gives the learner a reviewed knowledge record for the
// character.
func (f *comprehensionFixture) markKnown(t *testing.T, characterID int) {
	t.Helper()
	rec, err := domain.NewCharacterKnowledge(f.userID, characterID, f.now)
	require.NoError(t, err)
	reviewed := f.now.Add(-time.Hour)
	rec.LastReviewedAt = &reviewed
	require.NoError(t, f.characters.Create(context.Background(), rec))
}

func TestComputeSentenceComprehension(t *testing.T) {
	f := newComprehensionFixture(t, 24*time.Hour)
	ctx := context.Background()

	// 你好吗 with 你 and 好 known: 2 of 3, rounds to 67.
	f.content.addCharacter(1, "你")
	f.content.addCharacter(2, "好")
	f.content.addCharacter(3, "吗")
	f.content.addSentence(10, 1, "你好吗")
	f.markKnown(t, 1)
	f.markKnown(t, 2)

	c, err := f.svc.Compute(ctx, domain.UnitKindSentence, f.userID, 10)
	require.NoError(t, err)
	assert.Equal(t, 3, c.TotalUniqueCharacters)
	assert.Equal(t, 2, c.KnownCharacters)
	assert.Equal(t, 1, c.UnknownCharacters)
	assert.Equal(t, float64(67), c.Percentage)
	require.NotNil(t, c.CalculatedAt)
	assert.Equal(t, f.now, *c.CalculatedAt)

	// The aggregate landed in the sentence's knowledge record.
	rec, err := f.sentences.Get(ctx, f.userID, 10)
	require.NoError(t, err)
	assert.Equal(t, float64(67), rec.Percentage)
}

func TestComputeCountsDuplicatesOnce(t *testing.T) {
	f := newComprehensionFixture(t, 24*time.Hour)
	ctx := context.Background()

	f.content.addCharacter(1, "好")
	f.content.addSentence(10, 1, "好好好")
	f.markKnown(t, 1)

	c, err := f.svc.Compute(ctx, domain.UnitKindSentence, f.userID, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, c.TotalUniqueCharacters)
	assert.Equal(t, float64(100), c.Percentage)
}

func TestComputeEdgeCases(t *testing.T) {
	f := newComprehensionFixture(t, 24*time.Hour)
	ctx := context.Background()

	t.Run("sentence with no han text", func(t *testing.T) {
		f.content.addSentence(11, 1, "OK!")
		c, err := f.svc.Compute(ctx, domain.UnitKindSentence, f.userID, 11)
		require.NoError(t, err)
		assert.Equal(t, 0, c.TotalUniqueCharacters)
		assert.Equal(t, float64(0), c.Percentage)
	})

	t.Run("character absent from catalog counts unknown", func(t *testing.T) {
		f.content.addCharacter(1, "你")
		f.content.addSentence(12, 1, "你魍")
		f.markKnown(t, 1)

		c, err := f.svc.Compute(ctx, domain.UnitKindSentence, f.userID, 12)
		require.NoError(t, err)
		assert.Equal(t, 2, c.TotalUniqueCharacters)
		assert.Equal(t, 1, c.KnownCharacters)
		assert.Equal(t, float64(50), c.Percentage)
	})

	t.Run("record without review is not known", func(t *testing.T) {
		f.content.addCharacter(5, "天")
		f.content.addSentence(13, 1, "天")

		// A record exists but was never reviewed.
		rec, err := domain.NewCharacterKnowledge(f.userID, 5, f.now)
		require.NoError(t, err)
		require.NoError(t, f.characters.Create(ctx, rec))

		c, err := f.svc.Compute(ctx, domain.UnitKindSentence, f.userID, 13)
		require.NoError(t, err)
		assert.Equal(t, 0, c.KnownCharacters)
	})

	t.Run("missing sentence", func(t *testing.T) {
		_, err := f.svc.Compute(ctx, domain.UnitKindSentence, f.userID, 999)
		assert.ErrorIs(t, err, store.ErrSentenceNotFound)
	})

	t.Run("character kind is not composite", func(t *testing.T) {
		_, err := f.svc.Compute(ctx, domain.UnitKindCharacter, f.userID, 1)
		assert.ErrorIs(t, err, domain.ErrNotComposite)
	})
}

func TestComputeEpisodeComprehension(t *testing.T) {
	f := newComprehensionFixture(t, 24*time.Hour)
	ctx := context.Background()

	f.content.episodes[1] = &domain.Episode{ID: 1, Title: "第一集"}
	f.content.addCharacter(1, "你")
	f.content.addCharacter(2, "好")
	f.content.addCharacter(3, "吗")
	f.content.addSentence(10, 1, "你好")
	f.content.addSentence(11, 1, "好吗")
	f.markKnown(t, 1)
	f.markKnown(t, 2)
	f.markKnown(t, 3)

	// Unique characters across the episode: 你好吗.
	c, err := f.svc.Compute(ctx, domain.UnitKindEpisode, f.userID, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, c.TotalUniqueCharacters)
	assert.Equal(t, float64(100), c.Percentage)

	_, err = f.svc.Compute(ctx, domain.UnitKindEpisode, f.userID, 404)
	assert.ErrorIs(t, err, store.ErrEpisodeNotFound)
}

func TestGetComprehensionReadThroughCache(t *testing.T) {
	f := newComprehensionFixture(t, 24*time.Hour)
	ctx := context.Background()

	f.content.addCharacter(1, "你")
	f.content.addSentence(10, 1, "你")
	f.markKnown(t, 1)

	first, err := f.svc.GetComprehension(ctx, domain.UnitKindSentence, f.userID, 10)
	require.NoError(t, err)
	firstCalculated := *first.CalculatedAt
	assert.Equal(t, 1, f.sentences.upserts)

	// Within the staleness window the cached aggregate comes back
	// unchanged, even though underlying knowledge moved.
	f.now = f.now.Add(23 * time.Hour)
	second, err := f.svc.GetComprehension(ctx, domain.UnitKindSentence, f.userID, 10)
	require.NoError(t, err)
	assert.Equal(t, firstCalculated, *second.CalculatedAt)
	assert.Equal(t, 1, f.sentences.upserts, "fresh cache must not recompute")

	// Past the window it recomputes and restamps.
	f.now = f.now.Add(2 * time.Hour)
	third, err := f.svc.GetComprehension(ctx, domain.UnitKindSentence, f.userID, 10)
	require.NoError(t, err)
	assert.True(t, third.CalculatedAt.After(firstCalculated))
	assert.Equal(t, 2, f.sentences.upserts)
}

func TestGetComprehensionComputesWhenAbsent(t *testing.T) {
	f := newComprehensionFixture(t, 24*time.Hour)
	ctx := context.Background()

	f.content.addSentence(10, 1, "你")

	c, err := f.svc.GetComprehension(ctx, domain.UnitKindSentence, f.userID, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, c.TotalUniqueCharacters)
	assert.Equal(t, 1, f.sentences.upserts)

	// The cached record is stamped from the service clock.
	rec, err := f.sentences.Get(ctx, f.userID, 10)
	require.NoError(t, err)
	assert.True(t, rec.UpdatedAt.Equal(f.now))
}

func TestComputeBatch(t *testing.T) {
	f := newComprehensionFixture(t, 24*time.Hour)
	ctx := context.Background()

	f.content.addCharacter(1, "你")
	f.content.addCharacter(2, "好")
	f.content.addSentence(10, 1, "你好")
	f.content.addSentence(11, 1, "你")
	f.markKnown(t, 1)

	results, err := f.svc.ComputeBatch(ctx, domain.UnitKindSentence, f.userID, []int{10, 999, 11})
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, 10, results[0].UnitID)
	require.NoError(t, results[0].Err)
	assert.Equal(t, float64(50), results[0].Comprehension.Percentage)

	// The missing sentence fails alone; the batch continues.
	assert.Equal(t, 999, results[1].UnitID)
	assert.ErrorIs(t, results[1].Err, store.ErrSentenceNotFound)
	assert.Nil(t, results[1].Comprehension)

	assert.Equal(t, 11, results[2].UnitID)
	require.NoError(t, results[2].Err)
	assert.Equal(t, float64(100), results[2].Comprehension.Percentage)

	// One catalog resolution and one knowledge resolution for the whole
	// batch, not one per composite.
	assert.Equal(t, 1, f.content.findByHanziCalls)
	assert.Equal(t, 1, f.characters.findKnownCalls)
}

func TestComputeBatchRejectsNonComposite(t *testing.T) {
	f := newComprehensionFixture(t, 24*time.Hour)

	_, err := f.svc.ComputeBatch(context.Background(), domain.UnitKindCharacter, f.userID, []int{1})
	assert.ErrorIs(t, err, domain.ErrNotComposite)
}

func TestNewComprehensionServiceValidatesDependencies(t *testing.T) {
	chars := newFakeCharacterStore()
	sents := newFakeSentenceStore()
	eps := newFakeEpisodeStore()
	content := newFakeContentStore()

	_, err := NewComprehensionService(nil, sents, eps, content, time.Hour, nil, nil)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = NewComprehensionService(chars, sents, eps, content, 0, nil, nil)
	assert.ErrorIs(t, err, domain.ErrValidation)

	svc, err := NewComprehensionService(chars, sents, eps, content, time.Hour, nil, nil)
	require.NoError(t, err)
	assert.NotNil(t, svc)
}
