package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/alex-osman/language-learning-sub001/internal/domain"
	"github.com/alex-osman/language-learning-sub001/internal/platform/logger"
	"github.com/alex-osman/language-learning-sub001/internal/store"
)

const episodeKnowledgeColumns = `
	user_id, episode_id, ease_factor, repetitions, interval_days,
	last_reviewed_at, next_review_at,
	comprehension_percentage, total_unique_characters, known_characters,
	unknown_characters, comprehension_calculated_at,
	created_at, updated_at
`

// PostgresEpisodeKnowledgeStore implements the
// store.EpisodeKnowledgeStore interface using a PostgreSQL database as
// the storage backend. Same shape as the sentence store minus the
// exclusion flag.
type PostgresEpisodeKnowledgeStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresEpisodeKnowledgeStore creates a new PostgreSQL
// implementation of the EpisodeKnowledgeStore interface.
// If logger is nil, a default logger will be used.
func NewPostgresEpisodeKnowledgeStore(db store.DBTX, logger *slog.Logger) *PostgresEpisodeKnowledgeStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresEpisodeKnowledgeStore{
		db:     db,
		logger: logger.With(slog.String("component", "episode_knowledge_store")),
	}
}

// Ensure PostgresEpisodeKnowledgeStore implements store.EpisodeKnowledgeStore
var _ store.EpisodeKnowledgeStore = (*PostgresEpisodeKnowledgeStore)(nil)

// WithTx implements store.EpisodeKnowledgeStore.WithTx
func (s *PostgresEpisodeKnowledgeStore) WithTx(tx *sql.Tx) store.EpisodeKnowledgeStore {
	return &PostgresEpisodeKnowledgeStore{
		db:     tx,
		logger: s.logger,
	}
}

func scanEpisodeKnowledge(row interface{ Scan(dest ...any) error }) (*domain.EpisodeKnowledge, error) {
	var k domain.EpisodeKnowledge
	err := row.Scan(
		&k.UserID,
		&k.EpisodeID,
		&k.EaseFactor,
		&k.Repetitions,
		&k.Interval,
		&k.LastReviewedAt,
		&k.NextReviewAt,
		&k.Percentage,
		&k.TotalUniqueCharacters,
		&k.KnownCharacters,
		&k.UnknownCharacters,
		&k.CalculatedAt,
		&k.CreatedAt,
		&k.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &k, nil
}

// Get implements store.EpisodeKnowledgeStore.Get
func (s *PostgresEpisodeKnowledgeStore) Get(
	ctx context.Context,
	userID uuid.UUID,
	episodeID int,
) (*domain.EpisodeKnowledge, error) {
	return s.get(ctx, userID, episodeID, false)
}

// GetForUpdate implements store.EpisodeKnowledgeStore.GetForUpdate
// Must be called within a transaction to be effective.
func (s *PostgresEpisodeKnowledgeStore) GetForUpdate(
	ctx context.Context,
	userID uuid.UUID,
	episodeID int,
) (*domain.EpisodeKnowledge, error) {
	return s.get(ctx, userID, episodeID, true)
}

func (s *PostgresEpisodeKnowledgeStore) get(
	ctx context.Context,
	userID uuid.UUID,
	episodeID int,
	forUpdate bool,
) (*domain.EpisodeKnowledge, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT ` + episodeKnowledgeColumns + `
		FROM episode_knowledge
		WHERE user_id = $1 AND episode_id = $2
	`
	if forUpdate {
		query += " FOR UPDATE"
	}

	k, err := scanEpisodeKnowledge(s.db.QueryRowContext(ctx, query, userID, episodeID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("episode knowledge not found",
				slog.String("user_id", userID.String()),
				slog.Int("episode_id", episodeID))
			return nil, store.ErrKnowledgeNotFound
		}
		log.Error("failed to get episode knowledge",
			slog.String("error", err.Error()),
			slog.String("user_id", userID.String()),
			slog.Int("episode_id", episodeID))
		return nil, MapError(err)
	}

	return k, nil
}

// Create implements store.EpisodeKnowledgeStore.Create
func (s *PostgresEpisodeKnowledgeStore) Create(ctx context.Context, know *domain.EpisodeKnowledge) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := know.Validate(); err != nil {
		log.Warn("episode knowledge validation failed during create",
			slog.String("error", err.Error()),
			slog.String("user_id", know.UserID.String()),
			slog.Int("episode_id", know.EpisodeID))
		return err
	}

	query := `
		INSERT INTO episode_knowledge (` + episodeKnowledgeColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err := s.db.ExecContext(
		ctx,
		query,
		know.UserID,
		know.EpisodeID,
		know.EaseFactor,
		know.Repetitions,
		know.Interval,
		know.LastReviewedAt,
		know.NextReviewAt,
		know.Percentage,
		know.TotalUniqueCharacters,
		know.KnownCharacters,
		know.UnknownCharacters,
		know.CalculatedAt,
		know.CreatedAt,
		know.UpdatedAt,
	)

	if err != nil {
		if IsUniqueViolation(err) {
			return fmt.Errorf("%w: knowledge record already exists for episode %d",
				store.ErrDuplicate, know.EpisodeID)
		}
		if IsForeignKeyViolation(err) {
			return fmt.Errorf("%w: no episode with ID %d",
				store.ErrEpisodeNotFound, know.EpisodeID)
		}
		log.Error("failed to create episode knowledge",
			slog.String("error", err.Error()),
			slog.String("user_id", know.UserID.String()),
			slog.Int("episode_id", know.EpisodeID))
		return MapError(err)
	}

	log.Info("episode knowledge created",
		slog.String("user_id", know.UserID.String()),
		slog.Int("episode_id", know.EpisodeID))
	return nil
}

// Update implements store.EpisodeKnowledgeStore.Update
func (s *PostgresEpisodeKnowledgeStore) Update(ctx context.Context, know *domain.EpisodeKnowledge) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := know.Validate(); err != nil {
		log.Warn("episode knowledge validation failed during update",
			slog.String("error", err.Error()),
			slog.String("user_id", know.UserID.String()),
			slog.Int("episode_id", know.EpisodeID))
		return err
	}

	query := `
		UPDATE episode_knowledge
		SET ease_factor = $1, repetitions = $2, interval_days = $3,
			last_reviewed_at = $4, next_review_at = $5, updated_at = $6
		WHERE user_id = $7 AND episode_id = $8
	`
	result, err := s.db.ExecContext(
		ctx,
		query,
		know.EaseFactor,
		know.Repetitions,
		know.Interval,
		know.LastReviewedAt,
		know.NextReviewAt,
		know.UpdatedAt,
		know.UserID,
		know.EpisodeID,
	)

	if err != nil {
		log.Error("failed to update episode knowledge",
			slog.String("error", err.Error()),
			slog.String("user_id", know.UserID.String()),
			slog.Int("episode_id", know.EpisodeID))
		return MapError(err)
	}

	if err := CheckRowsAffected(result, "episode knowledge"); err != nil {
		return store.ErrKnowledgeNotFound
	}

	return nil
}

// UpsertComprehension implements store.EpisodeKnowledgeStore.UpsertComprehension
func (s *PostgresEpisodeKnowledgeStore) UpsertComprehension(
	ctx context.Context,
	userID uuid.UUID,
	episodeID int,
	c domain.Comprehension,
	now time.Time,
) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := c.Validate(); err != nil {
		log.Warn("comprehension validation failed during upsert",
			slog.String("error", err.Error()),
			slog.Int("episode_id", episodeID))
		return err
	}

	query := `
		INSERT INTO episode_knowledge (
			user_id, episode_id, ease_factor, repetitions, interval_days,
			comprehension_percentage, total_unique_characters, known_characters,
			unknown_characters, comprehension_calculated_at,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, 0, 0, $4, $5, $6, $7, $8, $9, $9)
		ON CONFLICT (user_id, episode_id) DO UPDATE
		SET comprehension_percentage = EXCLUDED.comprehension_percentage,
			total_unique_characters = EXCLUDED.total_unique_characters,
			known_characters = EXCLUDED.known_characters,
			unknown_characters = EXCLUDED.unknown_characters,
			comprehension_calculated_at = EXCLUDED.comprehension_calculated_at,
			updated_at = EXCLUDED.updated_at
	`
	_, err := s.db.ExecContext(
		ctx,
		query,
		userID,
		episodeID,
		domain.DefaultEaseFactor,
		c.Percentage,
		c.TotalUniqueCharacters,
		c.KnownCharacters,
		c.UnknownCharacters,
		c.CalculatedAt,
		now,
	)

	if err != nil {
		if IsForeignKeyViolation(err) {
			return fmt.Errorf("%w: no episode with ID %d",
				store.ErrEpisodeNotFound, episodeID)
		}
		log.Error("failed to upsert episode comprehension",
			slog.String("error", err.Error()),
			slog.String("user_id", userID.String()),
			slog.Int("episode_id", episodeID))
		return MapError(err)
	}

	log.Debug("episode comprehension cached",
		slog.String("user_id", userID.String()),
		slog.Int("episode_id", episodeID),
		slog.Float64("percentage", c.Percentage))
	return nil
}

// FindDue implements store.EpisodeKnowledgeStore.FindDue
func (s *PostgresEpisodeKnowledgeStore) FindDue(
	ctx context.Context,
	userID uuid.UUID,
	now time.Time,
) ([]*domain.EpisodeKnowledge, error) {
	query := `
		SELECT ` + episodeKnowledgeColumns + `
		FROM episode_knowledge
		WHERE user_id = $1
		  AND (next_review_at IS NULL OR next_review_at <= $2)
		ORDER BY next_review_at ASC NULLS FIRST
	`
	return s.query(ctx, "find due episode knowledge", query, userID, now)
}

// FindPractice implements store.EpisodeKnowledgeStore.FindPractice
func (s *PostgresEpisodeKnowledgeStore) FindPractice(
	ctx context.Context,
	userID uuid.UUID,
	limit int,
) ([]*domain.EpisodeKnowledge, error) {
	if limit <= 0 {
		limit = 10
	}

	query := `
		SELECT ` + episodeKnowledgeColumns + `
		FROM episode_knowledge
		WHERE user_id = $1
		ORDER BY last_reviewed_at ASC NULLS FIRST
		LIMIT $2
	`
	return s.query(ctx, "find practice episode knowledge", query, userID, limit)
}

func (s *PostgresEpisodeKnowledgeStore) query(
	ctx context.Context,
	operation string,
	query string,
	args ...any,
) ([]*domain.EpisodeKnowledge, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to "+operation, slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Error("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	records := []*domain.EpisodeKnowledge{}
	for rows.Next() {
		k, err := scanEpisodeKnowledge(rows)
		if err != nil {
			log.Error("failed to scan episode knowledge row",
				slog.String("error", err.Error()))
			return nil, MapError(err)
		}
		records = append(records, k)
	}

	if err := rows.Err(); err != nil {
		log.Error("error after scanning rows", slog.String("error", err.Error()))
		return nil, MapError(err)
	}

	return records, nil
}
