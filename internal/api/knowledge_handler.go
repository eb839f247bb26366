// Package api provides HTTP handlers for the API.
package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/alex-osman/language-learning-sub001/internal/api/shared"
	"github.com/alex-osman/language-learning-sub001/internal/domain"
	"github.com/alex-osman/language-learning-sub001/internal/platform/logger"
	"github.com/alex-osman/language-learning-sub001/internal/redact"
	"github.com/alex-osman/language-learning-sub001/internal/service"
)

// ReviewRequest is the body for submitting a review of a unit.
// Quality uses the 0-5 recall scale: below 3 is a failed recall.
type ReviewRequest struct {
	Quality *int `json:"quality" validate:"required,min=0,max=5"`
}

// ScheduleStateResponse is the schedule that holds after an operation.
type ScheduleStateResponse struct {
	Kind   domain.UnitKind      `json:"kind"`
	UnitID int                  `json:"unit_id"`
	State  domain.ScheduleState `json:"state"`
}

// UnitIDsResponse carries a selector's result.
type UnitIDsResponse struct {
	Kind    domain.UnitKind `json:"kind"`
	UnitIDs []int           `json:"unit_ids"`
}

// MovieRequest is the body for replacing a character's mnemonic movie.
type MovieRequest struct {
	Movie string `json:"movie" validate:"required"`
}

// KnowledgeHandler handles review-lifecycle HTTP requests.
type KnowledgeHandler struct {
	knowledgeService service.KnowledgeService
	sessions         *service.SessionTracker
	practiceLimit    int // default for requests without ?limit=
	logger           *slog.Logger
}

// NewKnowledgeHandler creates a new KnowledgeHandler. practiceLimit is
// the result cap applied when a practice request carries no limit of
// its own.
func NewKnowledgeHandler(
	knowledgeService service.KnowledgeService,
	sessions *service.SessionTracker,
	practiceLimit int,
	logger *slog.Logger,
) *KnowledgeHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for KnowledgeHandler")
	}
	if practiceLimit <= 0 {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("practice limit must be positive for KnowledgeHandler")
	}

	return &KnowledgeHandler{
		knowledgeService: knowledgeService,
		sessions:         sessions,
		practiceLimit:    practiceLimit,
		logger:           logger.With(slog.String("component", "knowledge_handler")),
	}
}

// unitParams extracts and validates the {kind} and {id} URL parameters.
// It writes the error response itself and reports success via ok.
func unitParams(w http.ResponseWriter, r *http.Request, log *slog.Logger) (domain.UnitKind, int, bool) {
	kind, err := domain.ParseUnitKind(chi.URLParam(r, "kind"))
	if err != nil {
		log.Warn("invalid unit kind in URL path", slog.String("kind", chi.URLParam(r, "kind")))
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid content unit kind")
		return "", 0, false
	}

	unitID, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || unitID <= 0 {
		log.Warn("invalid unit ID in URL path", slog.String("unit_id", chi.URLParam(r, "id")))
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid unit ID")
		return "", 0, false
	}

	return kind, unitID, true
}

// requireUserID extracts the authenticated learner's ID set by the auth
// middleware, responding 401 when it is missing.
func requireUserID(w http.ResponseWriter, r *http.Request, log *slog.Logger) (uuid.UUID, bool) {
	userID, ok := r.Context().Value(shared.UserIDContextKey).(uuid.UUID)
	if !ok || userID == uuid.Nil {
		log.Warn("user ID not found or invalid in request context")
		shared.RespondWithError(w, r, http.StatusUnauthorized, "User ID not found or invalid")
		return uuid.Nil, false
	}
	return userID, true
}

// ReviewUnit handles POST /knowledge/{kind}/{id}/review requests.
// It records one review and returns the schedule that now holds.
func (h *KnowledgeHandler) ReviewUnit(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, ok := requireUserID(w, r, log)
	if !ok {
		return
	}

	kind, unitID, ok := unitParams(w, r, log)
	if !ok {
		return
	}

	var req ReviewRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		log.Warn("invalid request format",
			slog.String("error", redact.Error(err)),
			slog.String("user_id", userID.String()))
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}

	if err := shared.ValidateRequest(req); err != nil {
		log.Warn("validation error",
			slog.String("error", redact.Error(err)),
			slog.String("user_id", userID.String()))
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, SanitizeValidationError(err), err)
		return
	}

	state, err := h.knowledgeService.ReviewUnit(r.Context(), kind, userID, unitID, *req.Quality)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	if h.sessions != nil {
		h.sessions.RecordReview(userID, kind, *req.Quality)
	}

	log.Debug("review recorded",
		slog.String("user_id", userID.String()),
		slog.String("kind", string(kind)),
		slog.Int("unit_id", unitID),
		slog.Int("quality", *req.Quality))
	shared.RespondWithJSON(w, r, http.StatusOK, ScheduleStateResponse{
		Kind:   kind,
		UnitID: unitID,
		State:  *state,
	})
}

// StartLearning handles POST /knowledge/{kind}/{id}/start requests.
func (h *KnowledgeHandler) StartLearning(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, ok := requireUserID(w, r, log)
	if !ok {
		return
	}

	kind, unitID, ok := unitParams(w, r, log)
	if !ok {
		return
	}

	state, err := h.knowledgeService.StartLearning(r.Context(), kind, userID, unitID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	log.Debug("learning started",
		slog.String("user_id", userID.String()),
		slog.String("kind", string(kind)),
		slog.Int("unit_id", unitID))
	shared.RespondWithJSON(w, r, http.StatusOK, ScheduleStateResponse{
		Kind:   kind,
		UnitID: unitID,
		State:  *state,
	})
}

// ResetLearning handles POST /knowledge/{kind}/{id}/reset requests.
func (h *KnowledgeHandler) ResetLearning(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, ok := requireUserID(w, r, log)
	if !ok {
		return
	}

	kind, unitID, ok := unitParams(w, r, log)
	if !ok {
		return
	}

	state, err := h.knowledgeService.ResetLearning(r.Context(), kind, userID, unitID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	log.Debug("learning reset",
		slog.String("user_id", userID.String()),
		slog.String("kind", string(kind)),
		slog.Int("unit_id", unitID))
	shared.RespondWithJSON(w, r, http.StatusOK, ScheduleStateResponse{
		Kind:   kind,
		UnitID: unitID,
		State:  *state,
	})
}

// GetDueUnits handles GET /knowledge/{kind}/due requests.
func (h *KnowledgeHandler) GetDueUnits(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, ok := requireUserID(w, r, log)
	if !ok {
		return
	}

	kind, err := domain.ParseUnitKind(chi.URLParam(r, "kind"))
	if err != nil {
		log.Warn("invalid unit kind in URL path", slog.String("kind", chi.URLParam(r, "kind")))
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid content unit kind")
		return
	}

	unitIDs, err := h.knowledgeService.GetDueUnits(r.Context(), kind, userID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, UnitIDsResponse{Kind: kind, UnitIDs: unitIDs})
}

// GetPracticeUnits handles GET /knowledge/{kind}/practice requests.
// The optional ?limit= query parameter caps the result.
func (h *KnowledgeHandler) GetPracticeUnits(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, ok := requireUserID(w, r, log)
	if !ok {
		return
	}

	kind, err := domain.ParseUnitKind(chi.URLParam(r, "kind"))
	if err != nil {
		log.Warn("invalid unit kind in URL path", slog.String("kind", chi.URLParam(r, "kind")))
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid content unit kind")
		return
	}

	limit := h.practiceLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			log.Warn("invalid limit query parameter", slog.String("limit", raw))
			shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid limit parameter")
			return
		}
		limit = parsed
	}

	unitIDs, err := h.knowledgeService.GetPracticeUnits(r.Context(), kind, userID, limit)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, UnitIDsResponse{Kind: kind, UnitIDs: unitIDs})
}

// GetHardestCharacters handles GET /characters/hardest requests.
// The optional ?count= query parameter caps the result.
func (h *KnowledgeHandler) GetHardestCharacters(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, ok := requireUserID(w, r, log)
	if !ok {
		return
	}

	count := 0
	if raw := r.URL.Query().Get("count"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			log.Warn("invalid count query parameter", slog.String("count", raw))
			shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid count parameter")
			return
		}
		count = parsed
	}

	hardest, err := h.knowledgeService.GetHardestCharacters(r.Context(), userID, count)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, hardest)
}

// GetCharacterView handles GET /characters/{id} requests. It returns
// the catalog character merged with the learner's knowledge and tier.
func (h *KnowledgeHandler) GetCharacterView(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, ok := requireUserID(w, r, log)
	if !ok {
		return
	}

	characterID, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || characterID <= 0 {
		log.Warn("invalid character ID in URL path", slog.String("character_id", chi.URLParam(r, "id")))
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid character ID")
		return
	}

	view, err := h.knowledgeService.GetCharacterView(r.Context(), userID, characterID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, view)
}

// SetMovie handles PUT /characters/{id}/movie requests.
func (h *KnowledgeHandler) SetMovie(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, ok := requireUserID(w, r, log)
	if !ok {
		return
	}

	characterID, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || characterID <= 0 {
		log.Warn("invalid character ID in URL path", slog.String("character_id", chi.URLParam(r, "id")))
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid character ID")
		return
	}

	var req MovieRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		log.Warn("invalid request format",
			slog.String("error", redact.Error(err)),
			slog.String("user_id", userID.String()))
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}

	if err := shared.ValidateRequest(req); err != nil {
		log.Warn("validation error",
			slog.String("error", redact.Error(err)),
			slog.String("user_id", userID.String()))
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, SanitizeValidationError(err), err)
		return
	}

	if err := h.knowledgeService.SetMovie(r.Context(), userID, characterID, req.Movie); err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	log.Debug("movie updated",
		slog.String("user_id", userID.String()),
		slog.Int("character_id", characterID))
	w.WriteHeader(http.StatusNoContent)
}

// ExcludeSentence handles POST /sentences/{id}/exclude requests.
func (h *KnowledgeHandler) ExcludeSentence(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, ok := requireUserID(w, r, log)
	if !ok {
		return
	}

	sentenceID, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || sentenceID <= 0 {
		log.Warn("invalid sentence ID in URL path", slog.String("sentence_id", chi.URLParam(r, "id")))
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid sentence ID")
		return
	}

	if err := h.knowledgeService.ExcludeSentence(r.Context(), userID, sentenceID); err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	log.Debug("sentence excluded",
		slog.String("user_id", userID.String()),
		slog.Int("sentence_id", sentenceID))
	w.WriteHeader(http.StatusNoContent)
}
