package store

import (
	"context"

	"github.com/alex-osman/language-learning-sub001/internal/domain"
)

// ContentStore defines read access to the shared content catalog:
// characters, sentences, and episodes. Content is not per-learner and
// the engine never writes it; imports happen elsewhere.
type ContentStore interface {
	// GetCharacter retrieves a character by ID.
	// Returns ErrCharacterNotFound if it does not exist.
	GetCharacter(ctx context.Context, id int) (*domain.Character, error)

	// FindCharacterIDsByHanzi resolves Han characters to their catalog
	// IDs in a single query. Characters absent from the catalog are
	// missing from the result map rather than an error; the aggregator
	// counts them as unknown.
	FindCharacterIDsByHanzi(ctx context.Context, hanzi []string) (map[string]int, error)

	// GetSentence retrieves a sentence by ID.
	// Returns ErrSentenceNotFound if it does not exist.
	GetSentence(ctx context.Context, id int) (*domain.Sentence, error)

	// GetEpisode retrieves an episode by ID.
	// Returns ErrEpisodeNotFound if it does not exist.
	GetEpisode(ctx context.Context, id int) (*domain.Episode, error)

	// ListEpisodeSentences returns the episode's sentences in order.
	// An episode with no sentences yields an empty slice, not an error.
	ListEpisodeSentences(ctx context.Context, episodeID int) ([]*domain.Sentence, error)
}
