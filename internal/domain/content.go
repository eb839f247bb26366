package domain

import "time"

// Character is a single atomic content unit: one Han character with its
// reading and gloss. Characters are shared content, not per-learner.
type Character struct {
	ID         int       `json:"id"`
	Hanzi      string    `json:"hanzi"`
	Pinyin     string    `json:"pinyin"`
	Definition string    `json:"definition"`
	Frequency  int       `json:"frequency"` // corpus rank, lower is more common
	CreatedAt  time.Time `json:"created_at"`
}

// Sentence is a composite content unit built from characters.
type Sentence struct {
	ID          int       `json:"id"`
	EpisodeID   int       `json:"episode_id"`
	Hanzi       string    `json:"hanzi"`
	Pinyin      string    `json:"pinyin"`
	Translation string    `json:"translation"`
	CreatedAt   time.Time `json:"created_at"`
}

// Episode is a composite content unit made of an ordered set of sentences.
type Episode struct {
	ID        int       `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

// CharacterView is the merged read model of a character's base content
// and one learner's knowledge of it. It is constructed by
// MergeCharacterView rather than assembled field-by-field at call
// sites, so the base/override precedence lives in exactly one place.
type CharacterView struct {
	Character
	Tier           Tier       `json:"tier"`
	Movie          string     `json:"movie,omitempty"`
	ImgURL         string     `json:"img_url,omitempty"`
	EaseFactor     float64    `json:"ease_factor,omitempty"`
	Repetitions    int        `json:"repetitions"`
	Interval       int        `json:"interval"`
	LastReviewedAt *time.Time `json:"last_reviewed_at,omitempty"`
	NextReviewAt   *time.Time `json:"next_review_at,omitempty"`
	LearnedAt      *time.Time `json:"learned_at,omitempty"`
}

// MergeCharacterView merges base character content with a learner's
// knowledge record. A nil knowledge record is valid and yields a view
// with zero scheduling fields; tier is supplied by the caller since
// classification is policy, not data.
func MergeCharacterView(base Character, know *CharacterKnowledge, tier Tier) CharacterView {
	view := CharacterView{
		Character: base,
		Tier:      tier,
	}
	if know == nil {
		return view
	}
	view.Movie = know.Movie
	view.ImgURL = know.ImgURL
	view.EaseFactor = know.EaseFactor
	view.Repetitions = know.Repetitions
	view.Interval = know.Interval
	view.LastReviewedAt = know.LastReviewedAt
	view.NextReviewAt = know.NextReviewAt
	view.LearnedAt = know.LearnedAt
	return view
}
