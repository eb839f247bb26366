package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/alex-osman/language-learning-sub001/internal/domain"
)

// CharacterKnowledgeStore defines the interface for per-learner
// character knowledge persistence. Records are keyed by
// (userID, characterID); absence of a record is the normal state for a
// character the learner has never touched.
type CharacterKnowledgeStore interface {
	// Get retrieves a knowledge record by learner and character.
	// Returns ErrKnowledgeNotFound if no record exists. This method
	// takes no row lock; use GetForUpdate inside a transaction when the
	// record will be modified.
	Get(ctx context.Context, userID uuid.UUID, characterID int) (*domain.CharacterKnowledge, error)

	// GetForUpdate retrieves a knowledge record with a row-level lock
	// (SELECT ... FOR UPDATE). Must be called within a transaction; it
	// serializes concurrent reviews of the same (learner, character)
	// pair so read-modify-write cycles cannot interleave.
	// Returns ErrKnowledgeNotFound if no record exists.
	GetForUpdate(ctx context.Context, userID uuid.UUID, characterID int) (*domain.CharacterKnowledge, error)

	// Create saves a new knowledge record. Returns ErrDuplicate if a
	// record already exists for the (learner, character) pair, and
	// validation errors from the domain type if the data is invalid.
	Create(ctx context.Context, know *domain.CharacterKnowledge) error

	// Update modifies an existing record, identified by the UserID and
	// CharacterID fields. Returns ErrKnowledgeNotFound if absent.
	Update(ctx context.Context, know *domain.CharacterKnowledge) error

	// FindDue returns the learner's records whose NextReviewAt is at or
	// before now, or was never set. Never-scheduled counts as due.
	FindDue(ctx context.Context, userID uuid.UUID, now time.Time) ([]*domain.CharacterKnowledge, error)

	// FindPractice returns up to limit records the learner has any
	// history with, least-recently-reviewed first, regardless of due
	// status.
	FindPractice(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.CharacterKnowledge, error)

	// FindHardest returns up to count records that have a mnemonic movie
	// set, ordered by ease factor ascending (lower = harder). Returns
	// ErrKnowledgeNotFound when no qualifying records exist.
	FindHardest(ctx context.Context, userID uuid.UUID, count int) ([]*domain.CharacterKnowledge, error)

	// FindKnownCharacterIDs resolves, in one query, which of the given
	// characters the learner "knows": a record exists and has been
	// reviewed at least once. The result maps characterID to known
	// status; IDs with no record are simply absent. This is the bulk
	// accessor batch aggregation depends on.
	FindKnownCharacterIDs(ctx context.Context, userID uuid.UUID, characterIDs []int) (map[int]bool, error)

	// SetMovie updates the mnemonic movie text without touching
	// scheduling state, stamping updated_at with now. Returns
	// ErrKnowledgeNotFound if absent.
	SetMovie(ctx context.Context, userID uuid.UUID, characterID int, movie string, now time.Time) error

	// WithTx returns a new store instance that uses the provided
	// transaction. The transaction is created and managed by the caller,
	// typically via RunInTransaction.
	WithTx(tx *sql.Tx) CharacterKnowledgeStore
}

// SentenceKnowledgeStore defines the interface for per-learner sentence
// knowledge persistence, including the cached comprehension aggregate.
type SentenceKnowledgeStore interface {
	// Get retrieves a knowledge record by learner and sentence.
	// Returns ErrKnowledgeNotFound if no record exists.
	Get(ctx context.Context, userID uuid.UUID, sentenceID int) (*domain.SentenceKnowledge, error)

	// GetForUpdate retrieves a knowledge record with a row-level lock.
	// Must be called within a transaction.
	GetForUpdate(ctx context.Context, userID uuid.UUID, sentenceID int) (*domain.SentenceKnowledge, error)

	// Create saves a new knowledge record. Returns ErrDuplicate if one
	// already exists.
	Create(ctx context.Context, know *domain.SentenceKnowledge) error

	// Update modifies an existing record's scheduling state.
	// Returns ErrKnowledgeNotFound if absent.
	Update(ctx context.Context, know *domain.SentenceKnowledge) error

	// UpsertComprehension writes the cached aggregate for the
	// (learner, sentence) pair, creating a record with pristine
	// scheduling state when none exists yet. Concurrent writers may
	// race; last write wins, and staleness is tolerated. The record's
	// updated_at is stamped with now.
	UpsertComprehension(ctx context.Context, userID uuid.UUID, sentenceID int, c domain.Comprehension, now time.Time) error

	// SetExcluded marks a sentence as permanently removed from
	// random-practice pools without deleting its history, stamping
	// updated_at with now.
	SetExcluded(ctx context.Context, userID uuid.UUID, sentenceID int, excluded bool, now time.Time) error

	// FindDue returns the learner's due records; never-scheduled counts
	// as due. Excluded sentences are still returned here - exclusion
	// only removes a sentence from practice pools.
	FindDue(ctx context.Context, userID uuid.UUID, now time.Time) ([]*domain.SentenceKnowledge, error)

	// FindPractice returns up to limit non-excluded records the learner
	// has any history with, least-recently-reviewed first.
	FindPractice(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.SentenceKnowledge, error)

	// WithTx returns a new store instance bound to the transaction.
	WithTx(tx *sql.Tx) SentenceKnowledgeStore
}

// EpisodeKnowledgeStore defines the interface for per-learner episode
// knowledge persistence. Identical in shape to the sentence store minus
// the exclusion flag.
type EpisodeKnowledgeStore interface {
	Get(ctx context.Context, userID uuid.UUID, episodeID int) (*domain.EpisodeKnowledge, error)
	GetForUpdate(ctx context.Context, userID uuid.UUID, episodeID int) (*domain.EpisodeKnowledge, error)
	Create(ctx context.Context, know *domain.EpisodeKnowledge) error
	Update(ctx context.Context, know *domain.EpisodeKnowledge) error
	UpsertComprehension(ctx context.Context, userID uuid.UUID, episodeID int, c domain.Comprehension, now time.Time) error
	FindDue(ctx context.Context, userID uuid.UUID, now time.Time) ([]*domain.EpisodeKnowledge, error)
	FindPractice(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.EpisodeKnowledge, error)
	WithTx(tx *sql.Tx) EpisodeKnowledgeStore
}
