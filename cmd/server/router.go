package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/alex-osman/language-learning-sub001/internal/api"
	apiMiddleware "github.com/alex-osman/language-learning-sub001/internal/api/middleware"
)

// setupRouter creates and configures the application router with all
// routes and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	// Apply standard middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.TraceMiddleware)

	// Create API handlers using the application's services
	knowledgeHandler := api.NewKnowledgeHandler(
		app.knowledgeService,
		app.sessionTracker,
		app.config.SRS.PracticeLimit,
		app.logger,
	)
	comprehensionHandler := api.NewComprehensionHandler(app.comprehensionService, app.logger)
	sessionHandler := api.NewSessionHandler(app.sessionTracker, app.logger)
	authMiddleware := apiMiddleware.NewAuthMiddleware(app.jwtService)

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)

			// Review lifecycle
			r.Post("/knowledge/{kind}/{id}/review", knowledgeHandler.ReviewUnit)
			r.Post("/knowledge/{kind}/{id}/start", knowledgeHandler.StartLearning)
			r.Post("/knowledge/{kind}/{id}/reset", knowledgeHandler.ResetLearning)

			// Review selectors
			r.Get("/knowledge/{kind}/due", knowledgeHandler.GetDueUnits)
			r.Get("/knowledge/{kind}/practice", knowledgeHandler.GetPracticeUnits)
			r.Get("/characters/hardest", knowledgeHandler.GetHardestCharacters)

			// Character detail and mnemonics
			r.Get("/characters/{id}", knowledgeHandler.GetCharacterView)
			r.Put("/characters/{id}/movie", knowledgeHandler.SetMovie)

			// Sentence exclusion
			r.Post("/sentences/{id}/exclude", knowledgeHandler.ExcludeSentence)

			// Comprehension aggregates
			r.Get("/comprehension/{kind}/{id}", comprehensionHandler.GetComprehension)
			r.Post("/comprehension/{kind}/{id}/compute", comprehensionHandler.ComputeComprehension)
			r.Post("/comprehension/{kind}/batch", comprehensionHandler.ComputeBatch)

			// Review session
			r.Get("/session", sessionHandler.GetSession)
			r.Delete("/session", sessionHandler.EndSession)
		})
	})

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			app.logger.Error("Failed to write health check response", "error", err)
		}
	})

	return r
}
