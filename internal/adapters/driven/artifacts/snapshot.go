package artifacts

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/custodia-labs/verselens-cli/internal/core/domain"
	"github.com/custodia-labs/verselens-cli/internal/core/ports/driven"
)

// Ensure Snapshots implements the interface.
var _ driven.SnapshotWriter = (*Snapshots)(nil)

// Snapshots writes per-book JSON snapshots under <dir>/verses and <dir>/chunks.
type Snapshots struct {
	dir string
}

// NewSnapshots creates a snapshot writer rooted at dir.
func NewSnapshots(dir string) *Snapshots {
	return &Snapshots{dir: dir}
}

// VersesPath returns the parsed-verse snapshot path for a book.
func (s *Snapshots) VersesPath(book string) string {
	return filepath.Join(s.dir, "verses", domain.SanitizeName(book)+".json")
}

// ChunksPath returns the chunk snapshot path for a book.
func (s *Snapshots) ChunksPath(book string) string {
	return filepath.Join(s.dir, "chunks", domain.SanitizeName(book)+".json")
}

// BookSnapshot is the parsed-verse snapshot of one book.
type BookSnapshot struct {
	Book     string            `json:"book"`
	Order    int               `json:"order"`
	Chapters []ChapterSnapshot `json:"chapters"`
}

// ChapterSnapshot is one chapter of a BookSnapshot.
type ChapterSnapshot struct {
	Number int             `json:"number"`
	Verses []VerseSnapshot `json:"verses"`
}

// VerseSnapshot is one verse of a ChapterSnapshot.
type VerseSnapshot struct {
	Number int    `json:"number"`
	Text   string `json:"text"`
}

// ChunkFile is the chunk snapshot of one book.
type ChunkFile struct {
	Book   string       `json:"book"`
	Order  int          `json:"order"`
	Chunks []ChunkEntry `json:"chunks"`
}

// ChunkEntry is one chunk of a ChunkFile.
type ChunkEntry struct {
	Hash         string             `json:"hash"`
	Chapter      int                `json:"chapter"`
	VerseNumbers []int              `json:"verse_numbers"`
	CombinedText string             `json:"combined_text"`
	Method       domain.ChunkMethod `json:"method"`
}

// WriteVerses writes the parsed verses of a book grouped by chapter.
func (s *Snapshots) WriteVerses(book string, verses []domain.RawVerse) error {
	byChapter := make(map[int][]VerseSnapshot)
	for _, v := range verses {
		byChapter[v.Chapter] = append(byChapter[v.Chapter], VerseSnapshot{Number: v.Verse, Text: v.Text})
	}

	snap := BookSnapshot{Book: book, Order: domain.BookSeq(book)}
	for n, vs := range byChapter {
		sort.SliceStable(vs, func(i, j int) bool { return vs[i].Number < vs[j].Number })
		snap.Chapters = append(snap.Chapters, ChapterSnapshot{Number: n, Verses: vs})
	}
	sort.Slice(snap.Chapters, func(i, j int) bool { return snap.Chapters[i].Number < snap.Chapters[j].Number })

	if err := writeJSON(s.VersesPath(book), snap); err != nil {
		return fmt.Errorf("write verse snapshot: %w", err)
	}
	return nil
}

// WriteChunks writes the chunk plans of a book in the given order.
func (s *Snapshots) WriteChunks(book string, chunks []driven.ChunkSnapshot) error {
	file := ChunkFile{Book: book, Order: domain.BookSeq(book), Chunks: make([]ChunkEntry, len(chunks))}
	for i, c := range chunks {
		file.Chunks[i] = ChunkEntry{
			Hash:         c.Hash,
			Chapter:      c.Plan.Chapter,
			VerseNumbers: c.Plan.VerseNumbers,
			CombinedText: c.Plan.CombinedText,
			Method:       c.Plan.Method,
		}
	}

	if err := writeJSON(s.ChunksPath(book), file); err != nil {
		return fmt.Errorf("write chunk snapshot: %w", err)
	}
	return nil
}
