package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alex-osman/language-learning-sub001/internal/api/shared"
	"github.com/alex-osman/language-learning-sub001/internal/domain"
	"github.com/alex-osman/language-learning-sub001/internal/platform/cache"
	"github.com/alex-osman/language-learning-sub001/internal/service"
	"github.com/alex-osman/language-learning-sub001/internal/store"
)

// mockKnowledgeService is a function-field mock of service.KnowledgeService.
type mockKnowledgeService struct {
	reviewUnitFn           func(ctx context.Context, kind domain.UnitKind, userID uuid.UUID, unitID, quality int) (*domain.ScheduleState, error)
	startLearningFn        func(ctx context.Context, kind domain.UnitKind, userID uuid.UUID, unitID int) (*domain.ScheduleState, error)
	resetLearningFn        func(ctx context.Context, kind domain.UnitKind, userID uuid.UUID, unitID int) (*domain.ScheduleState, error)
	getDueUnitsFn          func(ctx context.Context, kind domain.UnitKind, userID uuid.UUID) ([]int, error)
	getPracticeUnitsFn     func(ctx context.Context, kind domain.UnitKind, userID uuid.UUID, limit int) ([]int, error)
	getHardestCharactersFn func(ctx context.Context, userID uuid.UUID, count int) ([]*domain.CharacterKnowledge, error)
	getCharacterViewFn     func(ctx context.Context, userID uuid.UUID, characterID int) (*domain.CharacterView, error)
	setMovieFn             func(ctx context.Context, userID uuid.UUID, characterID int, movie string) error
	excludeSentenceFn      func(ctx context.Context, userID uuid.UUID, sentenceID int) error
}

func (m *mockKnowledgeService) ReviewUnit(
	ctx context.Context,
	kind domain.UnitKind,
	userID uuid.UUID,
	unitID, quality int,
) (*domain.ScheduleState, error) {
	return m.reviewUnitFn(ctx, kind, userID, unitID, quality)
}

func (m *mockKnowledgeService) StartLearning(
	ctx context.Context,
	kind domain.UnitKind,
	userID uuid.UUID,
	unitID int,
) (*domain.ScheduleState, error) {
	return m.startLearningFn(ctx, kind, userID, unitID)
}

func (m *mockKnowledgeService) ResetLearning(
	ctx context.Context,
	kind domain.UnitKind,
	userID uuid.UUID,
	unitID int,
) (*domain.ScheduleState, error) {
	return m.resetLearningFn(ctx, kind, userID, unitID)
}

func (m *mockKnowledgeService) GetDueUnits(
	ctx context.Context,
	kind domain.UnitKind,
	userID uuid.UUID,
) ([]int, error) {
	return m.getDueUnitsFn(ctx, kind, userID)
}

func (m *mockKnowledgeService) GetPracticeUnits(
	ctx context.Context,
	kind domain.UnitKind,
	userID uuid.UUID,
	limit int,
) ([]int, error) {
	return m.getPracticeUnitsFn(ctx, kind, userID, limit)
}

func (m *mockKnowledgeService) GetHardestCharacters(
	ctx context.Context,
	userID uuid.UUID,
	count int,
) ([]*domain.CharacterKnowledge, error) {
	return m.getHardestCharactersFn(ctx, userID, count)
}

func (m *mockKnowledgeService) GetCharacterView(
	ctx context.Context,
	userID uuid.UUID,
	characterID int,
) (*domain.CharacterView, error) {
	return m.getCharacterViewFn(ctx, userID, characterID)
}

func (m *mockKnowledgeService) SetMovie(
	ctx context.Context,
	userID uuid.UUID,
	characterID int,
	movie string,
) error {
	return m.setMovieFn(ctx, userID, characterID, movie)
}

func (m *mockKnowledgeService) ExcludeSentence(
	ctx context.Context,
	userID uuid.UUID,
	sentenceID int,
) error {
	return m.excludeSentenceFn(ctx, userID, sentenceID)
}

var _ service.KnowledgeService = (*mockKnowledgeService)(nil)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newSessionTracker() *service.SessionTracker {
	sessions := cache.NewTTLStore[uuid.UUID, service.ReviewSession](30*time.Minute, 64)
	return service.NewSessionTracker(sessions, 3, nil)
}

// knowledgeRouter mounts the handler the way the server does, with the
// given learner already authenticated.
func knowledgeRouter(h *KnowledgeHandler, userID uuid.UUID) http.Handler {
	r := chi.NewRouter()
	if userID != uuid.Nil {
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				ctx := context.WithValue(req.Context(), shared.UserIDContextKey, userID)
				next.ServeHTTP(w, req.WithContext(ctx))
			})
		})
	}
	r.Post("/knowledge/{kind}/{id}/review", h.ReviewUnit)
	r.Post("/knowledge/{kind}/{id}/start", h.StartLearning)
	r.Post("/knowledge/{kind}/{id}/reset", h.ResetLearning)
	r.Get("/knowledge/{kind}/due", h.GetDueUnits)
	r.Get("/knowledge/{kind}/practice", h.GetPracticeUnits)
	r.Get("/characters/hardest", h.GetHardestCharacters)
	r.Get("/characters/{id}", h.GetCharacterView)
	r.Put("/characters/{id}/movie", h.SetMovie)
	r.Post("/sentences/{id}/exclude", h.ExcludeSentence)
	return r
}

func TestReviewUnit(t *testing.T) {
	userID := uuid.New()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	next := now.Add(24 * time.Hour)
	state := &domain.ScheduleState{
		EaseFactor:     2.6,
		Repetitions:    1,
		Interval:       1,
		LastReviewedAt: &now,
		NextReviewAt:   &next,
	}

	tests := []struct {
		name           string
		userID         uuid.UUID
		url            string
		body           string
		serviceState   *domain.ScheduleState
		serviceError   error
		expectedStatus int
	}{
		{
			name:           "success",
			userID:         userID,
			url:            "/knowledge/character/42/review",
			body:           `{"quality": 5}`,
			serviceState:   state,
			expectedStatus: http.StatusOK,
		},
		{
			name:           "quality zero is valid",
			userID:         userID,
			url:            "/knowledge/character/42/review",
			body:           `{"quality": 0}`,
			serviceState:   state,
			expectedStatus: http.StatusOK,
		},
		{
			name:           "quality above range",
			userID:         userID,
			url:            "/knowledge/character/42/review",
			body:           `{"quality": 6}`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "quality missing",
			userID:         userID,
			url:            "/knowledge/character/42/review",
			body:           `{}`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "malformed body",
			userID:         userID,
			url:            "/knowledge/character/42/review",
			body:           `{"quality":`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "unknown kind",
			userID:         userID,
			url:            "/knowledge/word/42/review",
			body:           `{"quality": 5}`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "non-numeric unit ID",
			userID:         userID,
			url:            "/knowledge/character/abc/review",
			body:           `{"quality": 5}`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "missing user ID",
			userID:         uuid.Nil,
			url:            "/knowledge/character/42/review",
			body:           `{"quality": 5}`,
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "scheduler rejects quality",
			userID:         userID,
			url:            "/knowledge/character/42/review",
			body:           `{"quality": 5}`,
			serviceError:   domain.ErrInvalidQuality,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "service failure",
			userID:         userID,
			url:            "/knowledge/character/42/review",
			body:           `{"quality": 5}`,
			serviceError:   errors.New("database error"),
			expectedStatus: http.StatusInternalServerError,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			mockService := &mockKnowledgeService{
				reviewUnitFn: func(ctx context.Context, kind domain.UnitKind, uid uuid.UUID, unitID, quality int) (*domain.ScheduleState, error) {
					return tc.serviceState, tc.serviceError
				},
			}
			handler := NewKnowledgeHandler(mockService, newSessionTracker(), 20, testLogger())
			router := knowledgeRouter(handler, tc.userID)

			req := httptest.NewRequest(http.MethodPost, tc.url, strings.NewReader(tc.body))
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)

			assert.Equal(t, tc.expectedStatus, rr.Code)

			if tc.expectedStatus == http.StatusOK {
				var resp ScheduleStateResponse
				require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
				assert.Equal(t, domain.UnitKindCharacter, resp.Kind)
				assert.Equal(t, 42, resp.UnitID)
				assert.Equal(t, 2.6, resp.State.EaseFactor)
			}
		})
	}
}

func TestReviewUnit_RecordsSession(t *testing.T) {
	userID := uuid.New()
	now := time.Now().UTC()
	state := &domain.ScheduleState{EaseFactor: 2.5, Repetitions: 1, Interval: 1, LastReviewedAt: &now}

	mockService := &mockKnowledgeService{
		reviewUnitFn: func(ctx context.Context, kind domain.UnitKind, uid uuid.UUID, unitID, quality int) (*domain.ScheduleState, error) {
			return state, nil
		},
	}
	tracker := newSessionTracker()
	handler := NewKnowledgeHandler(mockService, tracker, 20, testLogger())
	router := knowledgeRouter(handler, userID)

	for _, body := range []string{`{"quality": 5}`, `{"quality": 2}`} {
		req := httptest.NewRequest(
			http.MethodPost,
			"/knowledge/sentence/7/review",
			strings.NewReader(body),
		)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		require.Equal(t, http.StatusOK, rr.Code)
	}

	session, ok := tracker.Current(userID)
	require.True(t, ok)
	assert.Equal(t, 2, session.Reviews)
	assert.Equal(t, 1, session.Failures)
	assert.Equal(t, 2, session.ByKind[domain.UnitKindSentence])
}

func TestStartAndResetLearning(t *testing.T) {
	userID := uuid.New()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	startedState := domain.ScheduleState{
		EaseFactor:     2.5,
		LastReviewedAt: &now,
		NextReviewAt:   &now,
	}
	pristine := domain.NewScheduleState()

	mockService := &mockKnowledgeService{
		startLearningFn: func(ctx context.Context, kind domain.UnitKind, uid uuid.UUID, unitID int) (*domain.ScheduleState, error) {
			return &startedState, nil
		},
		resetLearningFn: func(ctx context.Context, kind domain.UnitKind, uid uuid.UUID, unitID int) (*domain.ScheduleState, error) {
			return &pristine, nil
		},
	}
	handler := NewKnowledgeHandler(mockService, newSessionTracker(), 20, testLogger())
	router := knowledgeRouter(handler, userID)

	req := httptest.NewRequest(http.MethodPost, "/knowledge/episode/3/start", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp ScheduleStateResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, 0, resp.State.Repetitions)
	require.NotNil(t, resp.State.NextReviewAt)
	assert.True(t, resp.State.NextReviewAt.Equal(now))

	req = httptest.NewRequest(http.MethodPost, "/knowledge/episode/3/reset", nil)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	resp = ScheduleStateResponse{}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, 2.5, resp.State.EaseFactor)
	assert.Nil(t, resp.State.LastReviewedAt)
}

func TestGetDueUnits(t *testing.T) {
	userID := uuid.New()

	tests := []struct {
		name           string
		url            string
		serviceIDs     []int
		serviceError   error
		expectedStatus int
		expectedIDs    []int
	}{
		{
			name:           "due characters",
			url:            "/knowledge/character/due",
			serviceIDs:     []int{3, 1, 8},
			expectedStatus: http.StatusOK,
			expectedIDs:    []int{3, 1, 8},
		},
		{
			name:           "nothing due",
			url:            "/knowledge/sentence/due",
			serviceIDs:     []int{},
			expectedStatus: http.StatusOK,
			expectedIDs:    []int{},
		},
		{
			name:           "unknown kind",
			url:            "/knowledge/word/due",
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "service failure",
			url:            "/knowledge/character/due",
			serviceError:   errors.New("database error"),
			expectedStatus: http.StatusInternalServerError,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			mockService := &mockKnowledgeService{
				getDueUnitsFn: func(ctx context.Context, kind domain.UnitKind, uid uuid.UUID) ([]int, error) {
					return tc.serviceIDs, tc.serviceError
				},
			}
			handler := NewKnowledgeHandler(mockService, newSessionTracker(), 20, testLogger())
			router := knowledgeRouter(handler, userID)

			req := httptest.NewRequest(http.MethodGet, tc.url, nil)
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)

			assert.Equal(t, tc.expectedStatus, rr.Code)
			if tc.expectedStatus == http.StatusOK {
				var resp UnitIDsResponse
				require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
				assert.Equal(t, tc.expectedIDs, resp.UnitIDs)
			}
		})
	}
}

func TestGetPracticeUnits(t *testing.T) {
	userID := uuid.New()

	var gotLimit int
	mockService := &mockKnowledgeService{
		getPracticeUnitsFn: func(ctx context.Context, kind domain.UnitKind, uid uuid.UUID, limit int) ([]int, error) {
			gotLimit = limit
			return []int{5, 9}, nil
		},
	}
	handler := NewKnowledgeHandler(mockService, newSessionTracker(), 20, testLogger())
	router := knowledgeRouter(handler, userID)

	req := httptest.NewRequest(http.MethodGet, "/knowledge/character/practice?limit=10", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 10, gotLimit)

	var resp UnitIDsResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, []int{5, 9}, resp.UnitIDs)

	// Without a limit parameter the configured default applies.
	req = httptest.NewRequest(http.MethodGet, "/knowledge/character/practice", nil)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 20, gotLimit)

	req = httptest.NewRequest(http.MethodGet, "/knowledge/character/practice?limit=zero", nil)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestGetHardestCharacters(t *testing.T) {
	userID := uuid.New()

	tests := []struct {
		name           string
		url            string
		serviceResult  []*domain.CharacterKnowledge
		serviceError   error
		expectedStatus int
	}{
		{
			name: "success",
			url:  "/characters/hardest?count=2",
			serviceResult: []*domain.CharacterKnowledge{
				{UserID: userID, CharacterID: 4},
				{UserID: userID, CharacterID: 9},
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "none qualify",
			url:            "/characters/hardest",
			serviceError:   store.ErrKnowledgeNotFound,
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "bad count",
			url:            "/characters/hardest?count=-1",
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			mockService := &mockKnowledgeService{
				getHardestCharactersFn: func(ctx context.Context, uid uuid.UUID, count int) ([]*domain.CharacterKnowledge, error) {
					return tc.serviceResult, tc.serviceError
				},
			}
			handler := NewKnowledgeHandler(mockService, newSessionTracker(), 20, testLogger())
			router := knowledgeRouter(handler, userID)

			req := httptest.NewRequest(http.MethodGet, tc.url, nil)
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)

			assert.Equal(t, tc.expectedStatus, rr.Code)
			if tc.expectedStatus == http.StatusOK {
				var resp []domain.CharacterKnowledge
				require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
				assert.Len(t, resp, 2)
				assert.Equal(t, 4, resp[0].CharacterID)
			}
		})
	}
}

func TestGetCharacterView(t *testing.T) {
	userID := uuid.New()

	view := &domain.CharacterView{
		Character: domain.Character{ID: 12, Hanzi: "好", Pinyin: "hǎo", Definition: "good"},
		Tier:      domain.TierLearned,
		Movie:     "a handshake at the door",
	}

	tests := []struct {
		name           string
		url            string
		serviceResult  *domain.CharacterView
		serviceError   error
		expectedStatus int
	}{
		{
			name:           "success",
			url:            "/characters/12",
			serviceResult:  view,
			expectedStatus: http.StatusOK,
		},
		{
			name:           "not found",
			url:            "/characters/999",
			serviceError:   store.ErrCharacterNotFound,
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "invalid ID",
			url:            "/characters/0",
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			mockService := &mockKnowledgeService{
				getCharacterViewFn: func(ctx context.Context, uid uuid.UUID, characterID int) (*domain.CharacterView, error) {
					return tc.serviceResult, tc.serviceError
				},
			}
			handler := NewKnowledgeHandler(mockService, newSessionTracker(), 20, testLogger())
			router := knowledgeRouter(handler, userID)

			req := httptest.NewRequest(http.MethodGet, tc.url, nil)
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)

			assert.Equal(t, tc.expectedStatus, rr.Code)
			if tc.expectedStatus == http.StatusOK {
				var resp domain.CharacterView
				require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
				assert.Equal(t, "好", resp.Hanzi)
				assert.Equal(t, domain.TierLearned, resp.Tier)
			}
		})
	}
}

func TestSetMovie(t *testing.T) {
	userID := uuid.New()

	var gotMovie string
	mockService := &mockKnowledgeService{
		setMovieFn: func(ctx context.Context, uid uuid.UUID, characterID int, movie string) error {
			gotMovie = movie
			return nil
		},
	}
	handler := NewKnowledgeHandler(mockService, newSessionTracker(), 20, testLogger())
	router := knowledgeRouter(handler, userID)

	req := httptest.NewRequest(
		http.MethodPut,
		"/characters/12/movie",
		strings.NewReader(`{"movie": "a handshake at the door"}`),
	)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "a handshake at the door", gotMovie)

	req = httptest.NewRequest(http.MethodPut, "/characters/12/movie", strings.NewReader(`{}`))
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestExcludeSentence(t *testing.T) {
	userID := uuid.New()

	tests := []struct {
		name           string
		url            string
		serviceError   error
		expectedStatus int
	}{
		{"success", "/sentences/7/exclude", nil, http.StatusNoContent},
		{"not found", "/sentences/999/exclude", store.ErrSentenceNotFound, http.StatusNotFound},
		{"invalid ID", "/sentences/abc/exclude", nil, http.StatusBadRequest},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			mockService := &mockKnowledgeService{
				excludeSentenceFn: func(ctx context.Context, uid uuid.UUID, sentenceID int) error {
					return tc.serviceError
				},
			}
			handler := NewKnowledgeHandler(mockService, newSessionTracker(), 20, testLogger())
			router := knowledgeRouter(handler, userID)

			req := httptest.NewRequest(http.MethodPost, tc.url, nil)
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)

			assert.Equal(t, tc.expectedStatus, rr.Code)
		})
	}
}
