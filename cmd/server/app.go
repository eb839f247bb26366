package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/google/uuid"

	"github.com/alex-osman/language-learning-sub001/internal/config"
	"github.com/alex-osman/language-learning-sub001/internal/domain/srs"
	"github.com/alex-osman/language-learning-sub001/internal/platform/cache"
	"github.com/alex-osman/language-learning-sub001/internal/platform/postgres"
	"github.com/alex-osman/language-learning-sub001/internal/service"
	"github.com/alex-osman/language-learning-sub001/internal/service/auth"
	"github.com/alex-osman/language-learning-sub001/internal/store"
)

// application holds all the shared application dependencies to simplify
// management and ensure proper cleanup on shutdown.
type application struct {
	// Configuration
	config *config.Config

	// Core services
	logger *slog.Logger
	db     *sql.DB

	// Stores (using interfaces for proper abstraction)
	characterStore store.CharacterKnowledgeStore
	sentenceStore  store.SentenceKnowledgeStore
	episodeStore   store.EpisodeKnowledgeStore
	contentStore   store.ContentStore

	// Service interfaces
	jwtService           auth.JWTService
	srsService           srs.Service
	knowledgeService     service.KnowledgeService
	comprehensionService service.ComprehensionService

	// In-memory review session tracking
	sessionCache   *cache.TTLStore[uuid.UUID, service.ReviewSession]
	sessionTracker *service.SessionTracker

	// Background jobs
	scheduler *gocron.Scheduler
}

// newApplication creates a new application instance with all
// dependencies initialized. It accepts core dependencies like
// configuration, logger, and database connection that must be
// established before application initialization.
func newApplication(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
	db *sql.DB,
) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
		db:     db,
	}

	// Initialize JWT service
	var err error
	app.jwtService, err = auth.NewJWTService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize JWT service: %w", err)
	}
	logger.Info("JWT authentication service initialized",
		"token_lifetime_minutes", cfg.Auth.TokenLifetimeMinutes)

	// Initialize stores
	app.characterStore = postgres.NewPostgresCharacterKnowledgeStore(db, logger)
	app.sentenceStore = postgres.NewPostgresSentenceKnowledgeStore(db, logger)
	app.episodeStore = postgres.NewPostgresEpisodeKnowledgeStore(db, logger)
	app.contentStore = postgres.NewPostgresContentStore(db, logger)

	// Initialize SRS service with the configured mastery threshold
	app.srsService = srs.NewServiceWithParams(srs.NewParams(srs.ParamsConfig{
		MasteryThreshold: cfg.SRS.MasteryThreshold,
	}))

	// Initialize knowledge service
	app.knowledgeService, err = service.NewKnowledgeService(
		db,
		app.characterStore,
		app.sentenceStore,
		app.episodeStore,
		app.contentStore,
		app.srsService,
		nil,
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create knowledge service: %w", err)
	}

	// Initialize comprehension service
	maxAge := time.Duration(cfg.SRS.ComprehensionMaxAgeHours) * time.Hour
	app.comprehensionService, err = service.NewComprehensionService(
		app.characterStore,
		app.sentenceStore,
		app.episodeStore,
		app.contentStore,
		maxAge,
		nil,
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create comprehension service: %w", err)
	}

	// Initialize the in-memory session cache and its sweeper
	app.sessionCache = cache.NewTTLStore[uuid.UUID, service.ReviewSession](
		time.Duration(cfg.Session.TTLMinutes)*time.Minute,
		cfg.Session.MaxEntries,
	)
	app.sessionTracker = service.NewSessionTracker(app.sessionCache, srs.NewDefaultParams().FailureThreshold, nil)

	if err := app.setupSessionSweeper(); err != nil {
		return nil, fmt.Errorf("failed to start session sweeper: %w", err)
	}

	logger.Info("Application initialized successfully")
	return app, nil
}

// Run starts the application server, handling lifecycle and cleanup.
// It returns an error if the server fails to start or encounters problems.
func (app *application) Run(ctx context.Context) error {
	router := app.setupRouter()

	if err := app.startHTTPServer(ctx, router); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// setupSessionSweeper schedules the periodic eviction of expired review
// sessions from the in-memory cache.
func (app *application) setupSessionSweeper() error {
	app.scheduler = gocron.NewScheduler(time.UTC)

	interval := app.config.Session.SweepIntervalMinutes
	_, err := app.scheduler.Every(interval).Minutes().Do(func() {
		removed := app.sessionCache.Sweep()
		if removed > 0 {
			app.logger.Debug("swept expired review sessions", "removed", removed)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule session sweep: %w", err)
	}

	app.scheduler.StartAsync()
	app.logger.Info("Session sweeper scheduled", "interval_minutes", interval)
	return nil
}

// cleanup handles graceful shutdown of application resources.
func (app *application) cleanup() {
	if app.scheduler != nil {
		app.scheduler.Stop()
	}

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("Error closing database connection", "error", err)
		}
	}

	app.logger.Info("Application shutdown completed")
}
