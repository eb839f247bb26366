package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/alex-osman/language-learning-sub001/internal/domain"
	"github.com/alex-osman/language-learning-sub001/internal/platform/logger"
	"github.com/alex-osman/language-learning-sub001/internal/store"
)

// characterKnowledgeColumns is the scan order shared by every SELECT in
// this store.
const characterKnowledgeColumns = `
	user_id, character_id, ease_factor, repetitions, interval_days,
	last_reviewed_at, next_review_at, learned_at, movie, img_url,
	created_at, updated_at
`

// PostgresCharacterKnowledgeStore implements the
// store.CharacterKnowledgeStore interface using a PostgreSQL database
// as the storage backend.
type PostgresCharacterKnowledgeStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresCharacterKnowledgeStore creates a new PostgreSQL
// implementation of the CharacterKnowledgeStore interface. It accepts a
// database connection or transaction that should be initialized and
// managed by the caller. If logger is nil, a default logger will be used.
func NewPostgresCharacterKnowledgeStore(db store.DBTX, logger *slog.Logger) *PostgresCharacterKnowledgeStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresCharacterKnowledgeStore{
		db:     db,
		logger: logger.With(slog.String("component", "character_knowledge_store")),
	}
}

// Ensure PostgresCharacterKnowledgeStore implements store.CharacterKnowledgeStore
var _ store.CharacterKnowledgeStore = (*PostgresCharacterKnowledgeStore)(nil)

// WithTx implements store.CharacterKnowledgeStore.WithTx
func (s *PostgresCharacterKnowledgeStore) WithTx(tx *sql.Tx) store.CharacterKnowledgeStore {
	return &PostgresCharacterKnowledgeStore{
		db:     tx,
		logger: s.logger,
	}
}

func scanCharacterKnowledge(row interface{ Scan(dest ...any) error }) (*domain.CharacterKnowledge, error) {
	var k domain.CharacterKnowledge
	err := row.Scan(
		&k.UserID,
		&k.CharacterID,
		&k.EaseFactor,
		&k.Repetitions,
		&k.Interval,
		&k.LastReviewedAt,
		&k.NextReviewAt,
		&k.LearnedAt,
		&k.Movie,
		&k.ImgURL,
		&k.CreatedAt,
		&k.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &k, nil
}

// Get implements store.CharacterKnowledgeStore.Get
// Returns store.ErrKnowledgeNotFound if no record exists for the
// (user, character) pair.
func (s *PostgresCharacterKnowledgeStore) Get(
	ctx context.Context,
	userID uuid.UUID,
	characterID int,
) (*domain.CharacterKnowledge, error) {
	return s.get(ctx, userID, characterID, false)
}

// GetForUpdate implements store.CharacterKnowledgeStore.GetForUpdate
// It acquires a row-level lock so concurrent reviews of the same pair
// serialize. Must be called within a transaction to be effective.
func (s *PostgresCharacterKnowledgeStore) GetForUpdate(
	ctx context.Context,
	userID uuid.UUID,
	characterID int,
) (*domain.CharacterKnowledge, error) {
	return s.get(ctx, userID, characterID, true)
}

func (s *PostgresCharacterKnowledgeStore) get(
	ctx context.Context,
	userID uuid.UUID,
	characterID int,
	forUpdate bool,
) (*domain.CharacterKnowledge, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT ` + characterKnowledgeColumns + `
		FROM character_knowledge
		WHERE user_id = $1 AND character_id = $2
	`
	if forUpdate {
		query += " FOR UPDATE"
	}

	k, err := scanCharacterKnowledge(s.db.QueryRowContext(ctx, query, userID, characterID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("character knowledge not found",
				slog.String("user_id", userID.String()),
				slog.Int("character_id", characterID))
			return nil, store.ErrKnowledgeNotFound
		}
		log.Error("failed to get character knowledge",
			slog.String("error", err.Error()),
			slog.String("user_id", userID.String()),
			slog.Int("character_id", characterID))
		return nil, MapError(err)
	}

	return k, nil
}

// Create implements store.CharacterKnowledgeStore.Create
// Returns store.ErrDuplicate if a record already exists for the pair,
// and store.ErrCharacterNotFound if the character does not exist.
func (s *PostgresCharacterKnowledgeStore) Create(ctx context.Context, know *domain.CharacterKnowledge) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := know.Validate(); err != nil {
		log.Warn("character knowledge validation failed during create",
			slog.String("error", err.Error()),
			slog.String("user_id", know.UserID.String()),
			slog.Int("character_id", know.CharacterID))
		return err
	}

	query := `
		INSERT INTO character_knowledge (` + characterKnowledgeColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := s.db.ExecContext(
		ctx,
		query,
		know.UserID,
		know.CharacterID,
		know.EaseFactor,
		know.Repetitions,
		know.Interval,
		know.LastReviewedAt,
		know.NextReviewAt,
		know.LearnedAt,
		know.Movie,
		know.ImgURL,
		know.CreatedAt,
		know.UpdatedAt,
	)

	if err != nil {
		if IsUniqueViolation(err) {
			log.Warn("duplicate character knowledge record",
				slog.String("user_id", know.UserID.String()),
				slog.Int("character_id", know.CharacterID))
			return fmt.Errorf("%w: knowledge record already exists for character %d",
				store.ErrDuplicate, know.CharacterID)
		}
		if IsForeignKeyViolation(err) {
			log.Warn("foreign key violation during character knowledge creation",
				slog.String("error", err.Error()),
				slog.Int("character_id", know.CharacterID))
			return fmt.Errorf("%w: no character with ID %d",
				store.ErrCharacterNotFound, know.CharacterID)
		}
		log.Error("failed to create character knowledge",
			slog.String("error", err.Error()),
			slog.String("user_id", know.UserID.String()),
			slog.Int("character_id", know.CharacterID))
		return MapError(err)
	}

	log.Info("character knowledge created",
		slog.String("user_id", know.UserID.String()),
		slog.Int("character_id", know.CharacterID))
	return nil
}

// Update implements store.CharacterKnowledgeStore.Update
// Returns store.ErrKnowledgeNotFound if no record exists for the pair.
func (s *PostgresCharacterKnowledgeStore) Update(ctx context.Context, know *domain.CharacterKnowledge) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := know.Validate(); err != nil {
		log.Warn("character knowledge validation failed during update",
			slog.String("error", err.Error()),
			slog.String("user_id", know.UserID.String()),
			slog.Int("character_id", know.CharacterID))
		return err
	}

	query := `
		UPDATE character_knowledge
		SET ease_factor = $1, repetitions = $2, interval_days = $3,
			last_reviewed_at = $4, next_review_at = $5, learned_at = $6,
			movie = $7, img_url = $8, updated_at = $9
		WHERE user_id = $10 AND character_id = $11
	`
	result, err := s.db.ExecContext(
		ctx,
		query,
		know.EaseFactor,
		know.Repetitions,
		know.Interval,
		know.LastReviewedAt,
		know.NextReviewAt,
		know.LearnedAt,
		know.Movie,
		know.ImgURL,
		know.UpdatedAt,
		know.UserID,
		know.CharacterID,
	)

	if err != nil {
		log.Error("failed to update character knowledge",
			slog.String("error", err.Error()),
			slog.String("user_id", know.UserID.String()),
			slog.Int("character_id", know.CharacterID))
		return MapError(err)
	}

	if err := CheckRowsAffected(result, "character knowledge"); err != nil {
		log.Debug("character knowledge not found for update",
			slog.String("user_id", know.UserID.String()),
			slog.Int("character_id", know.CharacterID))
		return store.ErrKnowledgeNotFound
	}

	log.Debug("character knowledge updated",
		slog.String("user_id", know.UserID.String()),
		slog.Int("character_id", know.CharacterID))
	return nil
}

// FindDue implements store.CharacterKnowledgeStore.FindDue
// A record with no next_review_at was never scheduled and counts as due.
func (s *PostgresCharacterKnowledgeStore) FindDue(
	ctx context.Context,
	userID uuid.UUID,
	now time.Time,
) ([]*domain.CharacterKnowledge, error) {
	query := `
		SELECT ` + characterKnowledgeColumns + `
		FROM character_knowledge
		WHERE user_id = $1
		  AND (next_review_at IS NULL OR next_review_at <= $2)
		ORDER BY next_review_at ASC NULLS FIRST
	`
	return s.query(ctx, "find due character knowledge", query, userID, now)
}

// FindPractice implements store.CharacterKnowledgeStore.FindPractice
// Least-recently-reviewed records come first so practice rotates
// through the learner's history.
func (s *PostgresCharacterKnowledgeStore) FindPractice(
	ctx context.Context,
	userID uuid.UUID,
	limit int,
) ([]*domain.CharacterKnowledge, error) {
	if limit <= 0 {
		limit = 10
	}

	query := `
		SELECT ` + characterKnowledgeColumns + `
		FROM character_knowledge
		WHERE user_id = $1
		ORDER BY last_reviewed_at ASC NULLS FIRST
		LIMIT $2
	`
	return s.query(ctx, "find practice character knowledge", query, userID, limit)
}

// FindHardest implements store.CharacterKnowledgeStore.FindHardest
// Only records with a mnemonic movie qualify; a low ease factor means
// the learner keeps failing the character.
func (s *PostgresCharacterKnowledgeStore) FindHardest(
	ctx context.Context,
	userID uuid.UUID,
	count int,
) ([]*domain.CharacterKnowledge, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if count <= 0 {
		count = 1
	}

	query := `
		SELECT ` + characterKnowledgeColumns + `
		FROM character_knowledge
		WHERE user_id = $1 AND movie <> ''
		ORDER BY ease_factor ASC
		LIMIT $2
	`
	records, err := s.query(ctx, "find hardest character knowledge", query, userID, count)
	if err != nil {
		return nil, err
	}

	if len(records) == 0 {
		log.Debug("no characters with mnemonics found",
			slog.String("user_id", userID.String()))
		return nil, store.ErrKnowledgeNotFound
	}

	return records, nil
}

// FindKnownCharacterIDs implements store.CharacterKnowledgeStore.FindKnownCharacterIDs
// Known means a record exists and has been reviewed at least once.
// Characters without a record are absent from the result map.
func (s *PostgresCharacterKnowledgeStore) FindKnownCharacterIDs(
	ctx context.Context,
	userID uuid.UUID,
	characterIDs []int,
) (map[int]bool, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	known := make(map[int]bool, len(characterIDs))
	if len(characterIDs) == 0 {
		return known, nil
	}

	// pq-style array binding is not available through database/sql with
	// the pgx stdlib driver, so expand placeholders explicitly.
	placeholders := make([]string, len(characterIDs))
	args := make([]any, 0, len(characterIDs)+1)
	args = append(args, userID)
	for i, id := range characterIDs {
		placeholders[i] = fmt.Sprintf("$%d", i+2)
		args = append(args, id)
	}

	query := fmt.Sprintf(`
		SELECT character_id, last_reviewed_at IS NOT NULL
		FROM character_knowledge
		WHERE user_id = $1 AND character_id IN (%s)
	`, strings.Join(placeholders, ", "))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to query known character IDs",
			slog.String("error", err.Error()),
			slog.String("user_id", userID.String()))
		return nil, MapError(err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Error("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	for rows.Next() {
		var id int
		var reviewed bool
		if err := rows.Scan(&id, &reviewed); err != nil {
			log.Error("failed to scan known character row",
				slog.String("error", err.Error()))
			return nil, MapError(err)
		}
		known[id] = reviewed
	}

	if err := rows.Err(); err != nil {
		log.Error("error after scanning known character rows",
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}

	return known, nil
}

// SetMovie implements store.CharacterKnowledgeStore.SetMovie
// Scheduling state is untouched.
func (s *PostgresCharacterKnowledgeStore) SetMovie(
	ctx context.Context,
	userID uuid.UUID,
	characterID int,
	movie string,
	now time.Time,
) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		UPDATE character_knowledge
		SET movie = $1, updated_at = $2
		WHERE user_id = $3 AND character_id = $4
	`
	result, err := s.db.ExecContext(ctx, query, movie, now, userID, characterID)
	if err != nil {
		log.Error("failed to set movie",
			slog.String("error", err.Error()),
			slog.String("user_id", userID.String()),
			slog.Int("character_id", characterID))
		return MapError(err)
	}

	if err := CheckRowsAffected(result, "character knowledge"); err != nil {
		return store.ErrKnowledgeNotFound
	}

	log.Debug("movie set",
		slog.String("user_id", userID.String()),
		slog.Int("character_id", characterID))
	return nil
}

func (s *PostgresCharacterKnowledgeStore) query(
	ctx context.Context,
	operation string,
	query string,
	args ...any,
) ([]*domain.CharacterKnowledge, error) {
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

	records := []*domain.CharacterKnowledge{}
	for rows.Next() {
		k, err := scanCharacterKnowledge(rows)
		if err != nil {
			log.Error("failed to scan character knowledge row",
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
