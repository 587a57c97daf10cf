package domain

// Chunk size bounds, in verses.
const (
	MinChunkVerses = 3
	MaxChunkVerses = 10
)

// ChunkMethod records how a chapter's chunk boundaries were obtained.
type ChunkMethod string

// Chunk boundary sources, in preference order.
const (
	ChunkMethodCache     ChunkMethod = "cache"
	ChunkMethodSemantic  ChunkMethod = "semantic"
	ChunkMethodHeuristic ChunkMethod = "heuristic"
	ChunkMethodIntro     ChunkMethod = "intro"
)

// ChunkPlan is a validated group of verse numbers within one chapter,
// before it is embedded or persisted.
type ChunkPlan struct {
	Chapter      int         `json:"chapter"`
	VerseNumbers []int       `json:"verse_numbers"`
	CombinedText string      `json:"combined_text,omitempty"`
	Method       ChunkMethod `json:"method,omitempty"`
}

// Chunk is a persisted group of verses sharing one embedding.
// Hash is the idempotency key derived from (book, chapters, verses).
type Chunk struct {
	ID           string    `json:"id"`
	BookID       string    `json:"book_id"`
	Hash         string    `json:"hash"`
	Chapters     []int     `json:"chapters"`
	VerseNumbers []int     `json:"verse_numbers"`
	CombinedText string    `json:"combined_text"`
	Embedding    []float32 `json:"-"`
}

// ChunkInfo is a chunk with the book context used by retrieval.
type ChunkInfo struct {
	Chunk
	BookTitle string `json:"book_title"`
	BookSeq   int    `json:"book_seq"`
	WorkID    string `json:"work_id"`
}
