package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/alex-osman/language-learning-sub001/internal/api/shared"
	"github.com/alex-osman/language-learning-sub001/internal/domain"
	"github.com/alex-osman/language-learning-sub001/internal/platform/logger"
	"github.com/alex-osman/language-learning-sub001/internal/redact"
	"github.com/alex-osman/language-learning-sub001/internal/service"
)

// ComprehensionResponse carries a composite unit's comprehension
// aggregate.
type ComprehensionResponse struct {
	Kind   domain.UnitKind       `json:"kind"`
	UnitID int                   `json:"unit_id"`
	Result *domain.Comprehension `json:"result"`
}

// BatchComputeRequest is the body for recomputing many composites of
// one kind in a single call.
type BatchComputeRequest struct {
	UnitIDs []int `json:"unit_ids" validate:"required,min=1,dive,gt=0"`
}

// BatchItemResponse is one composite's outcome inside a batch response.
// Error is set when that composite failed; the others are unaffected.
type BatchItemResponse struct {
	UnitID int                   `json:"unit_id"`
	Result *domain.Comprehension `json:"result,omitempty"`
	Error  string                `json:"error,omitempty"`
}

// BatchComputeResponse carries the per-item outcomes of a batch
// computation.
type BatchComputeResponse struct {
	Kind    domain.UnitKind     `json:"kind"`
	Results []BatchItemResponse `json:"results"`
}

// ComprehensionHandler handles comprehension-related HTTP requests.
type ComprehensionHandler struct {
	comprehensionService service.ComprehensionService
	logger               *slog.Logger
}

// NewComprehensionHandler creates a new ComprehensionHandler.
func NewComprehensionHandler(
	comprehensionService service.ComprehensionService,
	logger *slog.Logger,
) *ComprehensionHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for ComprehensionHandler")
	}

	return &ComprehensionHandler{
		comprehensionService: comprehensionService,
		logger:               logger.With(slog.String("component", "comprehension_handler")),
	}
}

// GetComprehension handles GET /comprehension/{kind}/{id} requests.
// It serves the cached aggregate when it is fresh and recomputes
// otherwise.
func (h *ComprehensionHandler) GetComprehension(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, ok := requireUserID(w, r, log)
	if !ok {
		return
	}

	kind, unitID, ok := unitParams(w, r, log)
	if !ok {
		return
	}

	result, err := h.comprehensionService.GetComprehension(r.Context(), kind, userID, unitID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, ComprehensionResponse{
		Kind:   kind,
		UnitID: unitID,
		Result: result,
	})
}

// ComputeComprehension handles POST /comprehension/{kind}/{id}/compute
// requests. It always recomputes from current knowledge, bypassing the
// cache.
func (h *ComprehensionHandler) ComputeComprehension(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, ok := requireUserID(w, r, log)
	if !ok {
		return
	}

	kind, unitID, ok := unitParams(w, r, log)
	if !ok {
		return
	}

	result, err := h.comprehensionService.Compute(r.Context(), kind, userID, unitID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	log.Debug("comprehension recomputed",
		slog.String("user_id", userID.String()),
		slog.String("kind", string(kind)),
		slog.Int("unit_id", unitID))
	shared.RespondWithJSON(w, r, http.StatusOK, ComprehensionResponse{
		Kind:   kind,
		UnitID: unitID,
		Result: result,
	})
}

// ComputeBatch handles POST /comprehension/{kind}/batch requests.
func (h *ComprehensionHandler) ComputeBatch(w http.ResponseWriter, r *http.Request) {
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

	var req BatchComputeRequest
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

	results, err := h.comprehensionService.ComputeBatch(r.Context(), kind, userID, req.UnitIDs)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	resp := BatchComputeResponse{
		Kind:    kind,
		Results: make([]BatchItemResponse, 0, len(results)),
	}
	for _, res := range results {
		item := BatchItemResponse{
			UnitID: res.UnitID,
			Result: res.Comprehension,
		}
		if res.Err != nil {
			// Per-item failures get the same sanitized treatment as
			// whole-request errors.
			item.Error = GetSafeErrorMessage(res.Err)
		}
		resp.Results = append(resp.Results, item)
	}

	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}
