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

const sentenceKnowledgeColumns = `
	user_id, sentence_id, ease_factor, repetitions, interval_days,
	last_reviewed_at, next_review_at,
	comprehension_percentage, total_unique_characters, known_characters,
	unknown_characters, comprehension_calculated_at,
	excluded, created_at, updated_at
`

// PostgresSentenceKnowledgeStore implements the
// store.SentenceKnowledgeStore interface using a PostgreSQL database as
// the storage backend.
type PostgresSentenceKnowledgeStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresSentenceKnowledgeStore creates a new PostgreSQL
// implementation of the SentenceKnowledgeStore interface.
// If logger is nil, a default logger will be used.
func NewPostgresSentenceKnowledgeStore(db store.DBTX, logger *slog.Logger) *PostgresSentenceKnowledgeStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresSentenceKnowledgeStore{
		db:     db,
		logger: logger.With(slog.String("component", "sentence_knowledge_store")),
	}
}

// Ensure PostgresSentenceKnowledgeStore implements store.SentenceKnowledgeStore
var _ store.SentenceKnowledgeStore = (*PostgresSentenceKnowledgeStore)(nil)

// WithTx implements store.SentenceKnowledgeStore.WithTx
func (s *PostgresSentenceKnowledgeStore) WithTx(tx *sql.Tx) store.SentenceKnowledgeStore {
	return &PostgresSentenceKnowledgeStore{
		db:     tx,
		logger: s.logger,
	}
}

func scanSentenceKnowledge(row interface{ Scan(dest ...any) error }) (*domain.SentenceKnowledge, error) {
	var k domain.SentenceKnowledge
	err := row.Scan(
		&k.UserID,
		&k.SentenceID,
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
		&k.Excluded,
		&k.CreatedAt,
		&k.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &k, nil
}

// Get implements store.SentenceKnowledgeStore.Get
// Returns store.ErrKnowledgeNotFound if no record exists.
func (s *PostgresSentenceKnowledgeStore) Get(
	ctx context.Context,
	userID uuid.UUID,
	sentenceID int,
) (*domain.SentenceKnowledge, error) {
	return s.get(ctx, userID, sentenceID, false)
}

// GetForUpdate implements store.SentenceKnowledgeStore.GetForUpdate
// Must be called within a transaction to be effective.
func (s *PostgresSentenceKnowledgeStore) GetForUpdate(
	ctx context.Context,
	userID uuid.UUID,
	sentenceID int,
) (*domain.SentenceKnowledge, error) {
	return s.get(ctx, userID, sentenceID, true)
}

func (s *PostgresSentenceKnowledgeStore) get(
	ctx context.Context,
	userID uuid.UUID,
	sentenceID int,
	forUpdate bool,
) (*domain.SentenceKnowledge, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT ` + sentenceKnowledgeColumns + `
		FROM sentence_knowledge
		WHERE user_id = $1 AND sentence_id = $2
	`
	if forUpdate {
		query += " FOR UPDATE"
	}

	k, err := scanSentenceKnowledge(s.db.QueryRowContext(ctx, query, userID, sentenceID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("sentence knowledge not found",
				slog.String("user_id", userID.String()),
				slog.Int("sentence_id", sentenceID))
			return nil, store.ErrKnowledgeNotFound
		}
		log.Error("failed to get sentence knowledge",
			slog.String("error", err.Error()),
			slog.String("user_id", userID.String()),
			slog.Int("sentence_id", sentenceID))
		return nil, MapError(err)
	}

	return k, nil
}

// Create implements store.SentenceKnowledgeStore.Create
func (s *PostgresSentenceKnowledgeStore) Create(ctx context.Context, know *domain.SentenceKnowledge) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := know.Validate(); err != nil {
		log.Warn("sentence knowledge validation failed during create",
			slog.String("error", err.Error()),
			slog.String("user_id", know.UserID.String()),
			slog.Int("sentence_id", know.SentenceID))
		return err
	}

	query := `
		INSERT INTO sentence_knowledge (` + sentenceKnowledgeColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	_, err := s.db.ExecContext(
		ctx,
		query,
		know.UserID,
		know.SentenceID,
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
		know.Excluded,
		know.CreatedAt,
		know.UpdatedAt,
	)

	if err != nil {
		if IsUniqueViolation(err) {
			return fmt.Errorf("%w: knowledge record already exists for sentence %d",
				store.ErrDuplicate, know.SentenceID)
		}
		if IsForeignKeyViolation(err) {
			return fmt.Errorf("%w: no sentence with ID %d",
				store.ErrSentenceNotFound, know.SentenceID)
		}
		log.Error("failed to create sentence knowledge",
			slog.String("error", err.Error()),
			slog.String("user_id", know.UserID.String()),
			slog.Int("sentence_id", know.SentenceID))
		return MapError(err)
	}

	log.Info("sentence knowledge created",
		slog.String("user_id", know.UserID.String()),
		slog.Int("sentence_id", know.SentenceID))
	return nil
}

// Update implements store.SentenceKnowledgeStore.Update
// Only scheduling state is written; the cached aggregate goes through
// UpsertComprehension.
func (s *PostgresSentenceKnowledgeStore) Update(ctx context.Context, know *domain.SentenceKnowledge) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := know.Validate(); err != nil {
		log.Warn("sentence knowledge validation failed during update",
			slog.String("error", err.Error()),
			slog.String("user_id", know.UserID.String()),
			slog.Int("sentence_id", know.SentenceID))
		return err
	}

	query := `
		UPDATE sentence_knowledge
		SET ease_factor = $1, repetitions = $2, interval_days = $3,
			last_reviewed_at = $4, next_review_at = $5, updated_at = $6
		WHERE user_id = $7 AND sentence_id = $8
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
		know.SentenceID,
	)

	if err != nil {
		log.Error("failed to update sentence knowledge",
			slog.String("error", err.Error()),
			slog.String("user_id", know.UserID.String()),
			slog.Int("sentence_id", know.SentenceID))
		return MapError(err)
	}

	if err := CheckRowsAffected(result, "sentence knowledge"); err != nil {
		return store.ErrKnowledgeNotFound
	}

	return nil
}

// UpsertComprehension implements store.SentenceKnowledgeStore.UpsertComprehension
// Creates a record with pristine scheduling state when none exists, so
// an aggregate can be cached for a sentence the learner never reviewed.
// Concurrent writers race benignly; last write wins.
func (s *PostgresSentenceKnowledgeStore) UpsertComprehension(
	ctx context.Context,
	userID uuid.UUID,
	sentenceID int,
	c domain.Comprehension,
	now time.Time,
) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := c.Validate(); err != nil {
		log.Warn("comprehension validation failed during upsert",
			slog.String("error", err.Error()),
			slog.Int("sentence_id", sentenceID))
		return err
	}

	query := `
		INSERT INTO sentence_knowledge (
			user_id, sentence_id, ease_factor, repetitions, interval_days,
			comprehension_percentage, total_unique_characters, known_characters,
			unknown_characters, comprehension_calculated_at,
			excluded, created_at, updated_at
		)
		VALUES ($1, $2, $3, 0, 0, $4, $5, $6, $7, $8, FALSE, $9, $9)
		ON CONFLICT (user_id, sentence_id) DO UPDATE
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
		sentenceID,
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
			return fmt.Errorf("%w: no sentence with ID %d",
				store.ErrSentenceNotFound, sentenceID)
		}
		log.Error("failed to upsert sentence comprehension",
			slog.String("error", err.Error()),
			slog.String("user_id", userID.String()),
			slog.Int("sentence_id", sentenceID))
		return MapError(err)
	}

	log.Debug("sentence comprehension cached",
		slog.String("user_id", userID.String()),
		slog.Int("sentence_id", sentenceID),
		slog.Float64("percentage", c.Percentage))
	return nil
}

// SetExcluded implements store.SentenceKnowledgeStore.SetExcluded
func (s *PostgresSentenceKnowledgeStore) SetExcluded(
	ctx context.Context,
	userID uuid.UUID,
	sentenceID int,
	excluded bool,
	now time.Time,
) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		UPDATE sentence_knowledge
		SET excluded = $1, updated_at = $2
		WHERE user_id = $3 AND sentence_id = $4
	`
	result, err := s.db.ExecContext(ctx, query, excluded, now, userID, sentenceID)
	if err != nil {
		log.Error("failed to set sentence exclusion",
			slog.String("error", err.Error()),
			slog.String("user_id", userID.String()),
			slog.Int("sentence_id", sentenceID))
		return MapError(err)
	}

	if err := CheckRowsAffected(result, "sentence knowledge"); err != nil {
		return store.ErrKnowledgeNotFound
	}

	log.Info("sentence exclusion updated",
		slog.String("user_id", userID.String()),
		slog.Int("sentence_id", sentenceID),
		slog.Bool("excluded", excluded))
	return nil
}

// FindDue implements store.SentenceKnowledgeStore.FindDue
// Exclusion does not apply here: an excluded sentence still comes due.
func (s *PostgresSentenceKnowledgeStore) FindDue(
	ctx context.Context,
	userID uuid.UUID,
	now time.Time,
) ([]*domain.SentenceKnowledge, error) {
	query := `
		SELECT ` + sentenceKnowledgeColumns + `
		FROM sentence_knowledge
		WHERE user_id = $1
		  AND (next_review_at IS NULL OR next_review_at <= $2)
		ORDER BY next_review_at ASC NULLS FIRST
	`
	return s.query(ctx, "find due sentence knowledge", query, userID, now)
}

// FindPractice implements store.SentenceKnowledgeStore.FindPractice
// Excluded sentences never appear in the practice pool.
func (s *PostgresSentenceKnowledgeStore) FindPractice(
	ctx context.Context,
	userID uuid.UUID,
	limit int,
) ([]*domain.SentenceKnowledge, error) {
	if limit <= 0 {
		limit = 10
	}

	query := `
		SELECT ` + sentenceKnowledgeColumns + `
		FROM sentence_knowledge
		WHERE user_id = $1 AND NOT excluded
		ORDER BY last_reviewed_at ASC NULLS FIRST
		LIMIT $2
	`
	return s.query(ctx, "find practice sentence knowledge", query, userID, limit)
}

func (s *PostgresSentenceKnowledgeStore) query(
	ctx context.Context,
	operation string,
	query string,
	args ...any,
) ([]*domain.SentenceKnowledge, error) {
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

	records := []*domain.SentenceKnowledge{}
	for rows.Next() {
		k, err := scanSentenceKnowledge(rows)
		if err != nil {
			log.Error("failed to scan sentence knowledge row",
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
