package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alex-osman/language-learning-sub001/internal/domain"
	"github.com/alex-osman/language-learning-sub001/internal/platform/logger"
	"github.com/alex-osman/language-learning-sub001/internal/store"
)

// PostgresContentStore implements the store.ContentStore interface.
// Content is read-only from the engine's point of view; the catalog is
// populated by a separate import path.
type PostgresContentStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresContentStore creates a new PostgreSQL implementation of
// the ContentStore interface. If logger is nil, a default logger will
// be used.
func NewPostgresContentStore(db store.DBTX, logger *slog.Logger) *PostgresContentStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresContentStore{
		db:     db,
		logger: logger.With(slog.String("component", "content_store")),
	}
}

// Ensure PostgresContentStore implements store.ContentStore
var _ store.ContentStore = (*PostgresContentStore)(nil)

// GetCharacter implements store.ContentStore.GetCharacter
// Returns store.ErrCharacterNotFound if the character does not exist.
func (s *PostgresContentStore) GetCharacter(ctx context.Context, id int) (*domain.Character, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT id, hanzi, pinyin, definition, frequency, created_at
		FROM characters
		WHERE id = $1
	`

	var c domain.Character
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&c.ID,
		&c.Hanzi,
		&c.Pinyin,
		&c.Definition,
		&c.Frequency,
		&c.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("character not found", slog.Int("character_id", id))
			return nil, store.ErrCharacterNotFound
		}
		log.Error("failed to get character",
			slog.String("error", err.Error()),
			slog.Int("character_id", id))
		return nil, MapError(err)
	}

	return &c, nil
}

// FindCharacterIDsByHanzi implements store.ContentStore.FindCharacterIDsByHanzi
// Characters absent from the catalog are missing from the result map,
// not an error; the aggregator counts them as unknown.
func (s *PostgresContentStore) FindCharacterIDsByHanzi(
	ctx context.Context,
	hanzi []string,
) (map[string]int, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	ids := make(map[string]int, len(hanzi))
	if len(hanzi) == 0 {
		return ids, nil
	}

	placeholders := make([]string, len(hanzi))
	args := make([]any, len(hanzi))
	for i, h := range hanzi {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = h
	}

	query := fmt.Sprintf(`
		SELECT hanzi, id
		FROM characters
		WHERE hanzi IN (%s)
	`, strings.Join(placeholders, ", "))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to resolve characters by hanzi",
			slog.String("error", err.Error()),
			slog.Int("count", len(hanzi)))
		return nil, MapError(err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Error("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	for rows.Next() {
		var h string
		var id int
		if err := rows.Scan(&h, &id); err != nil {
			log.Error("failed to scan character ID row",
				slog.String("error", err.Error()))
			return nil, MapError(err)
		}
		ids[h] = id
	}

	if err := rows.Err(); err != nil {
		log.Error("error after scanning rows", slog.String("error", err.Error()))
		return nil, MapError(err)
	}

	log.Debug("resolved characters by hanzi",
		slog.Int("requested", len(hanzi)),
		slog.Int("found", len(ids)))
	return ids, nil
}

// GetSentence implements store.ContentStore.GetSentence
// Returns store.ErrSentenceNotFound if the sentence does not exist.
func (s *PostgresContentStore) GetSentence(ctx context.Context, id int) (*domain.Sentence, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT id, episode_id, hanzi, pinyin, translation, created_at
		FROM sentences
		WHERE id = $1
	`

	var sent domain.Sentence
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&sent.ID,
		&sent.EpisodeID,
		&sent.Hanzi,
		&sent.Pinyin,
		&sent.Translation,
		&sent.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("sentence not found", slog.Int("sentence_id", id))
			return nil, store.ErrSentenceNotFound
		}
		log.Error("failed to get sentence",
			slog.String("error", err.Error()),
			slog.Int("sentence_id", id))
		return nil, MapError(err)
	}

	return &sent, nil
}

// GetEpisode implements store.ContentStore.GetEpisode
// Returns store.ErrEpisodeNotFound if the episode does not exist.
func (s *PostgresContentStore) GetEpisode(ctx context.Context, id int) (*domain.Episode, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT id, title, created_at
		FROM episodes
		WHERE id = $1
	`

	var ep domain.Episode
	err := s.db.QueryRowContext(ctx, query, id).Scan(&ep.ID, &ep.Title, &ep.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("episode not found", slog.Int("episode_id", id))
			return nil, store.ErrEpisodeNotFound
		}
		log.Error("failed to get episode",
			slog.String("error", err.Error()),
			slog.Int("episode_id", id))
		return nil, MapError(err)
	}

	return &ep, nil
}

// ListEpisodeSentences implements store.ContentStore.ListEpisodeSentences
// Returns the episode's sentences in insertion order. An episode with no
// sentences yields an empty slice.
func (s *PostgresContentStore) ListEpisodeSentences(
	ctx context.Context,
	episodeID int,
) ([]*domain.Sentence, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT id, episode_id, hanzi, pinyin, translation, created_at
		FROM sentences
		WHERE episode_id = $1
		ORDER BY id ASC
	`

	rows, err := s.db.QueryContext(ctx, query, episodeID)
	if err != nil {
		log.Error("failed to list episode sentences",
			slog.String("error", err.Error()),
			slog.Int("episode_id", episodeID))
		return nil, MapError(err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Error("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	sentences := []*domain.Sentence{}
	for rows.Next() {
		var sent domain.Sentence
		err := rows.Scan(
			&sent.ID,
			&sent.EpisodeID,
			&sent.Hanzi,
			&sent.Pinyin,
			&sent.Translation,
			&sent.CreatedAt,
		)
		if err != nil {
			log.Error("failed to scan sentence row",
				slog.String("error", err.Error()))
			return nil, MapError(err)
		}
		sentences = append(sentences, &sent)
	}

	if err := rows.Err(); err != nil {
		log.Error("error after scanning rows", slog.String("error", err.Error()))
		return nil, MapError(err)
	}

	return sentences, nil
}
