package driven

import (
	"context"

	"github.com/custodia-labs/verselens-cli/internal/core/domain"
)

// SearchIndex is the vector and text capability over the stored corpus.
// Every method honours the scope predicates (book id, work id, sequence range)
// and returns hits ordered by descending score. An empty result is not an error.
//
// Fuzzy scores follow word-trigram similarity: the share of the query's
// trigrams found in the best-matching stretch of the text, in [0, 1].
type SearchIndex interface {
	// NearestChunks returns up to k chunks by cosine similarity to vec.
	NearestChunks(ctx context.Context, vec []float32, k int, scope domain.Scope) ([]domain.ScoredID, error)

	// ChunkSimilarity returns the cosine similarity between vec and one chunk's embedding.
	ChunkSimilarity(ctx context.Context, vec []float32, chunkID string) (float64, error)

	// TextSimilarity scores the given verses against query.
	TextSimilarity(ctx context.Context, query string, verseIDs []string) (map[string]float64, error)

	// FuzzyVerses returns verses whose fuzzy similarity to query reaches the threshold.
	FuzzyVerses(ctx context.Context, query string, limit int, scope domain.Scope) ([]domain.ScoredID, error)

	// FuzzyChapters matches chapter titles.
	FuzzyChapters(ctx context.Context, query string, limit int, scope domain.Scope) ([]domain.ChapterMatch, error)

	// PhraseVerses returns verses containing phrase (case-insensitive substring).
	PhraseVerses(ctx context.Context, phrase string, limit int, scope domain.Scope) ([]domain.ScoredID, error)

	// AnyWordVerses returns verses containing at least one of words.
	// Score is the share of words matched.
	AnyWordVerses(ctx context.Context, words []string, limit int, scope domain.Scope) ([]domain.ScoredID, error)

	// ChunksContaining returns chunks whose combined text contains phrase.
	ChunksContaining(ctx context.Context, phrase string, limit int, scope domain.Scope) ([]domain.ScoredID, error)
}
