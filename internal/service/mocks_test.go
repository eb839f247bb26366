package service

import (
	"context"
	"database/sql"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/alex-osman/language-learning-sub001/internal/domain"
	"github.com/alex-osman/language-learning-sub001/internal/store"
)

// In-memory fakes for the store interfaces. They implement just enough
// semantics for the service tests: keyed records, duplicate and
// not-found sentinels, and the selector orderings.

type knowledgeKey struct {
	userID uuid.UUID
	unitID int
}

type fakeCharacterStore struct {
	records map[knowledgeKey]*domain.CharacterKnowledge

	// forced error for failure-path tests
	err error

	findKnownCalls int
}

func newFakeCharacterStore() *fakeCharacterStore {
	return &fakeCharacterStore{records: make(map[knowledgeKey]*domain.CharacterKnowledge)}
}

func (f *fakeCharacterStore) Get(_ context.Context, userID uuid.UUID, characterID int) (*domain.CharacterKnowledge, error) {
	if f.err != nil {
		return nil, f.err
	}
	rec, ok := f.records[knowledgeKey{userID, characterID}]
	if !ok {
		return nil, store.ErrKnowledgeNotFound
	}
	return rec, nil
}

func (f *fakeCharacterStore) GetForUpdate(ctx context.Context, userID uuid.UUID, characterID int) (*domain.CharacterKnowledge, error) {
	return f.Get(ctx, userID, characterID)
}

func (f *fakeCharacterStore) Create(_ context.Context, know *domain.CharacterKnowledge) error {
	if f.err != nil {
		return f.err
	}
	key := knowledgeKey{know.UserID, know.CharacterID}
	if _, exists := f.records[key]; exists {
		return store.ErrDuplicate
	}
	f.records[key] = know
	return nil
}

func (f *fakeCharacterStore) Update(_ context.Context, know *domain.CharacterKnowledge) error {
	if f.err != nil {
		return f.err
	}
	key := knowledgeKey{know.UserID, know.CharacterID}
	if _, exists := f.records[key]; !exists {
		return store.ErrKnowledgeNotFound
	}
	f.records[key] = know
	return nil
}

func (f *fakeCharacterStore) FindDue(_ context.Context, userID uuid.UUID, now time.Time) ([]*domain.CharacterKnowledge, error) {
	if f.err != nil {
		return nil, f.err
	}
	var due []*domain.CharacterKnowledge
	for _, rec := range f.records {
		if rec.UserID == userID && rec.Due(now) {
			due = append(due, rec)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].CharacterID < due[j].CharacterID })
	return due, nil
}

func (f *fakeCharacterStore) FindPractice(_ context.Context, userID uuid.UUID, limit int) ([]*domain.CharacterKnowledge, error) {
	if f.err != nil {
		return nil, f.err
	}
	var recs []*domain.CharacterKnowledge
	for _, rec := range f.records {
		if rec.UserID == userID {
			recs = append(recs, rec)
		}
	}
	sort.Slice(recs, func(i, j int) bool {
		a, b := recs[i].LastReviewedAt, recs[j].LastReviewedAt
		switch {
		case a == nil:
			return true
		case b == nil:
			return false
		default:
			return a.Before(*b)
		}
	})
	if len(recs) > limit {
		recs = recs[:limit]
	}
	return recs, nil
}

func (f *fakeCharacterStore) FindHardest(_ context.Context, userID uuid.UUID, count int) ([]*domain.CharacterKnowledge, error) {
	if f.err != nil {
		return nil, f.err
	}
	var recs []*domain.CharacterKnowledge
	for _, rec := range f.records {
		if rec.UserID == userID && rec.Movie != "" {
			recs = append(recs, rec)
		}
	}
	if len(recs) == 0 {
		return nil, store.ErrKnowledgeNotFound
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].EaseFactor < recs[j].EaseFactor })
	if len(recs) > count {
		recs = recs[:count]
	}
	return recs, nil
}

func (f *fakeCharacterStore) FindKnownCharacterIDs(_ context.Context, userID uuid.UUID, characterIDs []int) (map[int]bool, error) {
	f.findKnownCalls++
	if f.err != nil {
		return nil, f.err
	}
	known := make(map[int]bool)
	for _, id := range characterIDs {
		if rec, ok := f.records[knowledgeKey{userID, id}]; ok {
			known[id] = rec.Reviewed()
		}
	}
	return known, nil
}

func (f *fakeCharacterStore) SetMovie(_ context.Context, userID uuid.UUID, characterID int, movie string, now time.Time) error {
	if f.err != nil {
		return f.err
	}
	rec, ok := f.records[knowledgeKey{userID, characterID}]
	if !ok {
		return store.ErrKnowledgeNotFound
	}
	rec.Movie = movie
	rec.UpdatedAt = now
	return nil
}

func (f *fakeCharacterStore) WithTx(_ *sql.Tx) store.CharacterKnowledgeStore { return f }

var _ store.CharacterKnowledgeStore = (*fakeCharacterStore)(nil)

type fakeSentenceStore struct {
	records map[knowledgeKey]*domain.SentenceKnowledge
	err     error

	upserts int
}

func newFakeSentenceStore() *fakeSentenceStore {
	return &fakeSentenceStore{records: make(map[knowledgeKey]*domain.SentenceKnowledge)}
}

func (f *fakeSentenceStore) Get(_ context.Context, userID uuid.UUID, sentenceID int) (*domain.SentenceKnowledge, error) {
	if f.err != nil {
		return nil, f.err
	}
	rec, ok := f.records[knowledgeKey{userID, sentenceID}]
	if !ok {
		return nil, store.ErrKnowledgeNotFound
	}
	return rec, nil
}

func (f *fakeSentenceStore) GetForUpdate(ctx context.Context, userID uuid.UUID, sentenceID int) (*domain.SentenceKnowledge, error) {
	return f.Get(ctx, userID, sentenceID)
}

func (f *fakeSentenceStore) Create(_ context.Context, know *domain.SentenceKnowledge) error {
	if f.err != nil {
		return f.err
	}
	key := knowledgeKey{know.UserID, know.SentenceID}
	if _, exists := f.records[key]; exists {
		return store.ErrDuplicate
	}
	f.records[key] = know
	return nil
}

func (f *fakeSentenceStore) Update(_ context.Context, know *domain.SentenceKnowledge) error {
	if f.err != nil {
		return f.err
	}
	key := knowledgeKey{know.UserID, know.SentenceID}
	if _, exists := f.records[key]; !exists {
		return store.ErrKnowledgeNotFound
	}
	f.records[key] = know
	return nil
}

func (f *fakeSentenceStore) UpsertComprehension(_ context.Context, userID uuid.UUID, sentenceID int, c domain.Comprehension, now time.Time) error {
	f.upserts++
	if f.err != nil {
		return f.err
	}
	key := knowledgeKey{userID, sentenceID}
	rec, ok := f.records[key]
	if !ok {
		rec = &domain.SentenceKnowledge{
			UserID:        userID,
			SentenceID:    sentenceID,
			ScheduleState: domain.NewScheduleState(),
		}
		f.records[key] = rec
	}
	rec.Comprehension = c
	rec.UpdatedAt = now
	return nil
}

func (f *fakeSentenceStore) SetExcluded(_ context.Context, userID uuid.UUID, sentenceID int, excluded bool, now time.Time) error {
	if f.err != nil {
		return f.err
	}
	rec, ok := f.records[knowledgeKey{userID, sentenceID}]
	if !ok {
		return store.ErrKnowledgeNotFound
	}
	rec.Excluded = excluded
	rec.UpdatedAt = now
	return nil
}

func (f *fakeSentenceStore) FindDue(_ context.Context, userID uuid.UUID, now time.Time) ([]*domain.SentenceKnowledge, error) {
	if f.err != nil {
		return nil, f.err
	}
	var due []*domain.SentenceKnowledge
	for _, rec := range f.records {
		if rec.UserID == userID && rec.Due(now) {
			due = append(due, rec)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].SentenceID < due[j].SentenceID })
	return due, nil
}

func (f *fakeSentenceStore) FindPractice(_ context.Context, userID uuid.UUID, limit int) ([]*domain.SentenceKnowledge, error) {
	if f.err != nil {
		return nil, f.err
	}
	var recs []*domain.SentenceKnowledge
	for _, rec := range f.records {
		if rec.UserID == userID && !rec.Excluded {
			recs = append(recs, rec)
		}
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].SentenceID < recs[j].SentenceID })
	if len(recs) > limit {
		recs = recs[:limit]
	}
	return recs, nil
}

func (f *fakeSentenceStore) WithTx(_ *sql.Tx) store.SentenceKnowledgeStore { return f }

var _ store.SentenceKnowledgeStore = (*fakeSentenceStore)(nil)

type fakeEpisodeStore struct {
	records map[knowledgeKey]*domain.EpisodeKnowledge
	err     error
}

func newFakeEpisodeStore() *fakeEpisodeStore {
	return &fakeEpisodeStore{records: make(map[knowledgeKey]*domain.EpisodeKnowledge)}
}

func (f *fakeEpisodeStore) Get(_ context.Context, userID uuid.UUID, episodeID int) (*domain.EpisodeKnowledge, error) {
	if f.err != nil {
		return nil, f.err
	}
	rec, ok := f.records[knowledgeKey{userID, episodeID}]
	if !ok {
		return nil, store.ErrKnowledgeNotFound
	}
	return rec, nil
}

func (f *fakeEpisodeStore) GetForUpdate(ctx context.Context, userID uuid.UUID, episodeID int) (*domain.EpisodeKnowledge, error) {
	return f.Get(ctx, userID, episodeID)
}

func (f *fakeEpisodeStore) Create(_ context.Context, know *domain.EpisodeKnowledge) error {
	if f.err != nil {
		return f.err
	}
	key := knowledgeKey{know.UserID, know.EpisodeID}
	if _, exists := f.records[key]; exists {
		return store.ErrDuplicate
	}
	f.records[key] = know
	return nil
}

func (f *fakeEpisodeStore) Update(_ context.Context, know *domain.EpisodeKnowledge) error {
	if f.err != nil {
		return f.err
	}
	key := knowledgeKey{know.UserID, know.EpisodeID}
	if _, exists := f.records[key]; !exists {
		return store.ErrKnowledgeNotFound
	}
	f.records[key] = know
	return nil
}

func (f *fakeEpisodeStore) UpsertComprehension(_ context.Context, userID uuid.UUID, episodeID int, c domain.Comprehension, now time.Time) error {
	if f.err != nil {
		return f.err
	}
	key := knowledgeKey{userID, episodeID}
	rec, ok := f.records[key]
	if !ok {
		rec = &domain.EpisodeKnowledge{
			UserID:        userID,
			EpisodeID:     episodeID,
			ScheduleState: domain.NewScheduleState(),
		}
		f.records[key] = rec
	}
	rec.Comprehension = c
	rec.UpdatedAt = now
	return nil
}

func (f *fakeEpisodeStore) FindDue(_ context.Context, userID uuid.UUID, now time.Time) ([]*domain.EpisodeKnowledge, error) {
	if f.err != nil {
		return nil, f.err
	}
	var due []*domain.EpisodeKnowledge
	for _, rec := range f.records {
		if rec.UserID == userID && rec.Due(now) {
			due = append(due, rec)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].EpisodeID < due[j].EpisodeID })
	return due, nil
}

func (f *fakeEpisodeStore) FindPractice(_ context.Context, userID uuid.UUID, limit int) ([]*domain.EpisodeKnowledge, error) {
	if f.err != nil {
		return nil, f.err
	}
	var recs []*domain.EpisodeKnowledge
	for _, rec := range f.records {
		if rec.UserID == userID {
			recs = append(recs, rec)
		}
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].EpisodeID < recs[j].EpisodeID })
	if len(recs) > limit {
		recs = recs[:limit]
	}
	return recs, nil
}

func (f *fakeEpisodeStore) WithTx(_ *sql.Tx) store.EpisodeKnowledgeStore { return f }

var _ store.EpisodeKnowledgeStore = (*fakeEpisodeStore)(nil)

type fakeContentStore struct {
	characters map[int]*domain.Character
	sentences  map[int]*domain.Sentence
	episodes   map[int]*domain.Episode

	err error

	findByHanziCalls int
}

func newFakeContentStore() *fakeContentStore {
	return &fakeContentStore{
		characters: make(map[int]*domain.Character),
		sentences:  make(map[int]*domain.Sentence),
		episodes:   make(map[int]*domain.Episode),
	}
}

func (f *fakeContentStore) addCharacter(id int, hanzi string) {
	f.characters[id] = &domain.Character{ID: id, Hanzi: hanzi}
}

func (f *fakeContentStore) addSentence(id, episodeID int, hanzi string) {
	f.sentences[id] = &domain.Sentence{ID: id, EpisodeID: episodeID, Hanzi: hanzi}
}

func (f *fakeContentStore) GetCharacter(_ context.Context, id int) (*domain.Character, error) {
	if f.err != nil {
		return nil, f.err
	}
	c, ok := f.characters[id]
	if !ok {
		return nil, store.ErrCharacterNotFound
	}
	return c, nil
}

func (f *fakeContentStore) FindCharacterIDsByHanzi(_ context.Context, hanzi []string) (map[string]int, error) {
	f.findByHanziCalls++
	if f.err != nil {
		return nil, f.err
	}
	ids := make(map[string]int)
	for _, h := range hanzi {
		for id, c := range f.characters {
			if c.Hanzi == h {
				ids[h] = id
			}
		}
	}
	return ids, nil
}

func (f *fakeContentStore) GetSentence(_ context.Context, id int) (*domain.Sentence, error) {
	if f.err != nil {
		return nil, f.err
	}
	s, ok := f.sentences[id]
	if !ok {
		return nil, store.ErrSentenceNotFound
	}
	return s, nil
}

func (f *fakeContentStore) GetEpisode(_ context.Context, id int) (*domain.Episode, error) {
	if f.err != nil {
		return nil, f.err
	}
	e, ok := f.episodes[id]
	if !ok {
		return nil, store.ErrEpisodeNotFound
	}
	return e, nil
}

func (f *fakeContentStore) ListEpisodeSentences(_ context.Context, episodeID int) ([]*domain.Sentence, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []*domain.Sentence
	for _, s := range f.sentences {
		if s.EpisodeID == episodeID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

var _ store.ContentStore = (*fakeContentStore)(nil)

// fixedClock returns a Clock pinned to the given instant.
func fixedClock(at time.Time) Clock {
	return func() time.Time { return at }
}
