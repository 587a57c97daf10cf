package driven

import (
	"context"

	"github.com/custodia-labs/verselens-cli/internal/core/domain"
)

// CorpusStore persists the corpus hierarchy, chunks and verses.
//
// Finds return domain.ErrNotFound when nothing matches the natural key.
// Inserts return domain.ErrAlreadyExists on a unique-key conflict so callers
// can re-select instead of failing; concurrent ingestion workers rely on this.
// Inserts assign an ID when the entity has none.
type CorpusStore interface {
	FindTradition(ctx context.Context, name string) (*domain.Tradition, error)
	InsertTradition(ctx context.Context, t *domain.Tradition) error

	FindSource(ctx context.Context, traditionID, name string) (*domain.Source, error)
	InsertSource(ctx context.Context, s *domain.Source) error

	FindWork(ctx context.Context, sourceID, name string) (*domain.Work, error)
	InsertWork(ctx context.Context, w *domain.Work) error

	FindBook(ctx context.Context, workID, title string) (*domain.Book, error)
	InsertBook(ctx context.Context, b *domain.Book) error

	FindChapter(ctx context.Context, bookID string, number int) (*domain.Chapter, error)
	InsertChapter(ctx context.Context, c *domain.Chapter) error

	// FindChunkByHash looks a chunk up by its idempotency hash.
	FindChunkByHash(ctx context.Context, hash string) (*domain.Chunk, error)

	// InsertChunk stores a new chunk with its embedding.
	// Returns domain.ErrDimensionMismatch if the embedding size differs from
	// the dimensionality recorded for the store.
	InsertChunk(ctx context.Context, c *domain.Chunk) error

	// ReplaceChunk overwrites text and embedding of the chunk with c.Hash, keeping its ID.
	ReplaceChunk(ctx context.Context, c *domain.Chunk) error

	// UpsertVerse inserts or updates a verse on (BookID, Chapter, Number).
	UpsertVerse(ctx context.Context, v *domain.Verse) error
}

// CorpusReader serves the lookups retrieval needs.
// Implementations must support concurrent readers.
type CorpusReader interface {
	// Chunks returns chunks with book context and embeddings.
	// Unknown IDs are skipped; order follows ids.
	Chunks(ctx context.Context, ids []string) ([]domain.ChunkInfo, error)

	// ChunkVerses returns the verses owned by the given chunks, grouped by chunk ID,
	// each group ordered by (chapter, verse).
	ChunkVerses(ctx context.Context, chunkIDs []string) (map[string][]domain.VerseInfo, error)

	// Verse returns one verse with context, or domain.ErrNotFound.
	Verse(ctx context.Context, id string) (*domain.VerseInfo, error)

	// Verses returns verses with context. Unknown IDs are skipped; order follows ids.
	Verses(ctx context.Context, ids []string) ([]domain.VerseInfo, error)

	// VerseByReference resolves (work, book title, chapter, verse) to a verse.
	// An empty workID matches any work.
	VerseByReference(ctx context.Context, workID, book string, chapter, verse int) (*domain.VerseInfo, error)
}
