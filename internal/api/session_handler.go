package api

import (
	"log/slog"
	"net/http"

	"github.com/alex-osman/language-learning-sub001/internal/api/shared"
	"github.com/alex-osman/language-learning-sub001/internal/platform/logger"
	"github.com/alex-osman/language-learning-sub001/internal/service"
)

// SessionHandler exposes the learner's in-memory review session.
type SessionHandler struct {
	sessions *service.SessionTracker
	logger   *slog.Logger
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(sessions *service.SessionTracker, logger *slog.Logger) *SessionHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for SessionHandler")
	}

	return &SessionHandler{
		sessions: sessions,
		logger:   logger.With(slog.String("component", "session_handler")),
	}
}

// GetSession handles GET /session requests. It returns the learner's
// current review session, or 204 when none is active.
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, ok := requireUserID(w, r, log)
	if !ok {
		return
	}

	session, ok := h.sessions.Current(userID)
	if !ok {
		log.Debug("no active review session", slog.String("user_id", userID.String()))
		w.WriteHeader(http.StatusNoContent)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, session)
}

// EndSession handles DELETE /session requests. Ending an absent session
// is a no-op success.
func (h *SessionHandler) EndSession(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, ok := requireUserID(w, r, log)
	if !ok {
		return
	}

	h.sessions.End(userID)

	log.Debug("review session ended", slog.String("user_id", userID.String()))
	w.WriteHeader(http.StatusNoContent)
}
