package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/custodia-labs/verselens-cli/internal/core/domain"
	"github.com/custodia-labs/verselens-cli/internal/core/ports/driven"
)

// ==================== Corpus Store ====================

// corpusStore implements driven.CorpusStore.
type corpusStore struct {
	store *Store
}

var _ driven.CorpusStore = (*corpusStore)(nil)

func ensureID(id *string) {
	if *id == "" {
		*id = uuid.New().String()
	}
}

// FindTradition looks a tradition up by name.
func (s *corpusStore) FindTradition(ctx context.Context, name string) (*domain.Tradition, error) {
	var t domain.Tradition
	err := s.store.db.QueryRowContext(ctx,
		"SELECT id, name FROM traditions WHERE name = ?", name,
	).Scan(&t.ID, &t.Name)
	if err != nil {
		return nil, translate(err)
	}
	return &t, nil
}

// InsertTradition stores a new tradition.
func (s *corpusStore) InsertTradition(ctx context.Context, t *domain.Tradition) error {
	ensureID(&t.ID)
	_, err := s.store.db.ExecContext(ctx,
		"INSERT INTO traditions (id, name) VALUES (?, ?)", t.ID, t.Name)
	return translate(err)
}

// FindSource looks a source up by (tradition, name).
func (s *corpusStore) FindSource(ctx context.Context, traditionID, name string) (*domain.Source, error) {
	var src domain.Source
	err := s.store.db.QueryRowContext(ctx,
		"SELECT id, tradition_id, name FROM sources WHERE tradition_id = ? AND name = ?", traditionID, name,
	).Scan(&src.ID, &src.TraditionID, &src.Name)
	if err != nil {
		return nil, translate(err)
	}
	return &src, nil
}

// InsertSource stores a new source.
func (s *corpusStore) InsertSource(ctx context.Context, src *domain.Source) error {
	ensureID(&src.ID)
	_, err := s.store.db.ExecContext(ctx,
		"INSERT INTO sources (id, tradition_id, name) VALUES (?, ?, ?)", src.ID, src.TraditionID, src.Name)
	return translate(err)
}

// FindWork looks a work up by (source, name).
func (s *corpusStore) FindWork(ctx context.Context, sourceID, name string) (*domain.Work, error) {
	var w domain.Work
	err := s.store.db.QueryRowContext(ctx,
		"SELECT id, source_id, name FROM works WHERE source_id = ? AND name = ?", sourceID, name,
	).Scan(&w.ID, &w.SourceID, &w.Name)
	if err != nil {
		return nil, translate(err)
	}
	return &w, nil
}

// InsertWork stores a new work.
func (s *corpusStore) InsertWork(ctx context.Context, w *domain.Work) error {
	ensureID(&w.ID)
	_, err := s.store.db.ExecContext(ctx,
		"INSERT INTO works (id, source_id, name) VALUES (?, ?, ?)", w.ID, w.SourceID, w.Name)
	return translate(err)
}

// FindBook looks a book up by (work, title).
func (s *corpusStore) FindBook(ctx context.Context, workID, title string) (*domain.Book, error) {
	var b domain.Book
	err := s.store.db.QueryRowContext(ctx,
		"SELECT id, work_id, title, seq FROM books WHERE work_id = ? AND title = ?", workID, title,
	).Scan(&b.ID, &b.WorkID, &b.Title, &b.Seq)
	if err != nil {
		return nil, translate(err)
	}
	return &b, nil
}

// InsertBook stores a new book.
func (s *corpusStore) InsertBook(ctx context.Context, b *domain.Book) error {
	ensureID(&b.ID)
	_, err := s.store.db.ExecContext(ctx,
		"INSERT INTO books (id, work_id, title, seq) VALUES (?, ?, ?, ?)", b.ID, b.WorkID, b.Title, b.Seq)
	return translate(err)
}

// FindChapter looks a chapter up by (book, number).
func (s *corpusStore) FindChapter(ctx context.Context, bookID string, number int) (*domain.Chapter, error) {
	var c domain.Chapter
	err := s.store.db.QueryRowContext(ctx,
		"SELECT id, book_id, number, title FROM chapters WHERE book_id = ? AND number = ?", bookID, number,
	).Scan(&c.ID, &c.BookID, &c.Number, &c.Title)
	if err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

// InsertChapter stores a new chapter.
func (s *corpusStore) InsertChapter(ctx context.Context, c *domain.Chapter) error {
	ensureID(&c.ID)
	_, err := s.store.db.ExecContext(ctx,
		"INSERT INTO chapters (id, book_id, number, title) VALUES (?, ?, ?, ?)", c.ID, c.BookID, c.Number, c.Title)
	return translate(err)
}

// FindChunkByHash looks a chunk up by its idempotency hash.
func (s *corpusStore) FindChunkByHash(ctx context.Context, hash string) (*domain.Chunk, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, book_id, hash, chapters, verse_numbers, combined_text, embedding
		FROM chunks WHERE hash = ?
	`, hash)
	c, err := scanChunk(row)
	if err != nil {
		return nil, translate(err)
	}
	return c, nil
}

// InsertChunk stores a new chunk.
func (s *corpusStore) InsertChunk(ctx context.Context, c *domain.Chunk) error {
	if err := s.store.checkDims(ctx, len(c.Embedding)); err != nil {
		return err
	}
	chapters, verses, err := encodeNumbers(c)
	if err != nil {
		return err
	}
	ensureID(&c.ID)
	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO chunks (id, book_id, hash, chapters, verse_numbers, combined_text, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, c.ID, c.BookID, c.Hash, chapters, verses, c.CombinedText, float32SliceToBytes(c.Embedding))
	return translate(err)
}

// ReplaceChunk overwrites the chunk stored under c.Hash, keeping its ID.
func (s *corpusStore) ReplaceChunk(ctx context.Context, c *domain.Chunk) error {
	if err := s.store.checkDims(ctx, len(c.Embedding)); err != nil {
		return err
	}
	chapters, verses, err := encodeNumbers(c)
	if err != nil {
		return err
	}
	var id string
	err = s.store.db.QueryRowContext(ctx, `
		UPDATE chunks
		SET chapters = ?, verse_numbers = ?, combined_text = ?, embedding = ?, updated_at = CURRENT_TIMESTAMP
		WHERE hash = ?
		RETURNING id
	`, chapters, verses, c.CombinedText, float32SliceToBytes(c.Embedding), c.Hash).Scan(&id)
	if err != nil {
		return translate(err)
	}
	c.ID = id
	return nil
}

// UpsertVerse inserts or updates a verse on its natural key.
func (s *corpusStore) UpsertVerse(ctx context.Context, v *domain.Verse) error {
	ensureID(&v.ID)
	var id string
	err := s.store.db.QueryRowContext(ctx, `
		INSERT INTO verses (id, book_id, chapter_id, chunk_id, chapter_number, verse_number, text)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(book_id, chapter_number, verse_number) DO UPDATE SET
			chapter_id = excluded.chapter_id,
			chunk_id = excluded.chunk_id,
			text = excluded.text
		RETURNING id
	`, v.ID, v.BookID, nullString(v.ChapterID), nullString(v.ChunkID), v.Chapter, v.Number, v.Text).Scan(&id)
	if err != nil {
		return translate(err)
	}
	v.ID = id
	return nil
}

func encodeNumbers(c *domain.Chunk) (string, string, error) {
	chapters, err := json.Marshal(nonNil(c.Chapters))
	if err != nil {
		return "", "", fmt.Errorf("marshalling chapters: %w", err)
	}
	verses, err := json.Marshal(nonNil(c.VerseNumbers))
	if err != nil {
		return "", "", fmt.Errorf("marshalling verse numbers: %w", err)
	}
	return string(chapters), string(verses), nil
}

func nonNil(n []int) []int {
	if n == nil {
		return []int{}
	}
	return n
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// rowScanner abstracts *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanChunk scans id, book_id, hash, chapters, verse_numbers, combined_text, embedding.
func scanChunk(row rowScanner, extra ...any) (*domain.Chunk, error) {
	var c domain.Chunk
	var chapters, verses string
	var embedding []byte
	dest := append([]any{&c.ID, &c.BookID, &c.Hash, &chapters, &verses, &c.CombinedText, &embedding}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(chapters), &c.Chapters); err != nil {
		return nil, fmt.Errorf("unmarshalling chapters: %w", err)
	}
	if err := json.Unmarshal([]byte(verses), &c.VerseNumbers); err != nil {
		return nil, fmt.Errorf("unmarshalling verse numbers: %w", err)
	}
	c.Embedding = bytesToFloat32Slice(embedding)
	return &c, nil
}
