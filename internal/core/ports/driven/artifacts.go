package driven

import "github.com/custodia-labs/verselens-cli/internal/core/domain"

// ChunkCache memoizes validated chunk boundaries per (book, chapter).
// It avoids repeat LLM calls and is never the source of truth.
type ChunkCache interface {
	// Load returns cached plans only when their verse numbers exactly cover
	// verseNumbers. ok is false on a miss or a coverage mismatch.
	Load(book string, chapter int, verseNumbers []int) (plans []domain.ChunkPlan, ok bool, err error)

	// Save overwrites the cached plans for the chapter.
	Save(book string, chapter int, plans []domain.ChunkPlan) error
}

// SnapshotWriter writes per-book audit artifacts.
type SnapshotWriter interface {
	// WriteVerses records the parsed verses of one book.
	WriteVerses(book string, verses []domain.RawVerse) error

	// WriteChunks records the chunk plans of one book with their hashes.
	WriteChunks(book string, chunks []ChunkSnapshot) error
}

// ChunkSnapshot is one entry of a per-book chunk snapshot.
type ChunkSnapshot struct {
	Hash string
	Plan domain.ChunkPlan
}
