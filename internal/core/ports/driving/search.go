package driving

import (
	"context"

	"github.com/custodia-labs/verselens-cli/internal/core/domain"
)

// SearchService is the retrieval engine.
type SearchService interface {
	// Search ranks chunk cards for a free-text query.
	Search(ctx context.Context, query string, opts domain.SearchOptions) (*domain.SearchResult, error)

	// Similar ranks cards against the chunk that owns verseID, using the stored
	// chunk embedding instead of embedding text.
	Similar(ctx context.Context, verseID string, opts domain.SearchOptions) (*domain.SearchResult, error)

	// Lexical runs fuzzy text search with layered fallbacks.
	Lexical(ctx context.Context, query string, opts domain.LexicalOptions) ([]domain.LexicalHit, error)

	// Summarise describes a result set. Failures yield "" and are never returned.
	Summarise(ctx context.Context, query string, cards []domain.Card) string

	// Verse resolves a reference to a stored verse.
	Verse(ctx context.Context, workID, book string, chapter, verse int) (*domain.VerseInfo, error)
}
