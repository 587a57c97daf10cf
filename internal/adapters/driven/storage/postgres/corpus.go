package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/custodia-labs/verselens-cli/internal/core/domain"
	"github.com/custodia-labs/verselens-cli/internal/core/ports/driven"
)

// corpusStore implements driven.CorpusStore.
type corpusStore struct {
	store *Store
}

// Ensure corpusStore implements the interface.
var _ driven.CorpusStore = (*corpusStore)(nil)

func ensureID(id *string) {
	if *id == "" {
		*id = uuid.New().String()
	}
}

func (s *corpusStore) FindTradition(ctx context.Context, name string) (*domain.Tradition, error) {
	var t domain.Tradition
	err := s.store.db.QueryRowContext(ctx,
		"SELECT id, name FROM traditions WHERE name = $1", name,
	).Scan(&t.ID, &t.Name)
	if err != nil {
		return nil, translate(err)
	}
	return &t, nil
}

func (s *corpusStore) InsertTradition(ctx context.Context, t *domain.Tradition) error {
	ensureID(&t.ID)
	_, err := s.store.db.ExecContext(ctx,
		"INSERT INTO traditions (id, name) VALUES ($1, $2)", t.ID, t.Name)
	return translate(err)
}

func (s *corpusStore) FindSource(ctx context.Context, traditionID, name string) (*domain.Source, error) {
	var src domain.Source
	err := s.store.db.QueryRowContext(ctx,
		"SELECT id, tradition_id, name FROM sources WHERE tradition_id = $1 AND name = $2", traditionID, name,
	).Scan(&src.ID, &src.TraditionID, &src.Name)
	if err != nil {
		return nil, translate(err)
	}
	return &src, nil
}

func (s *corpusStore) InsertSource(ctx context.Context, src *domain.Source) error {
	ensureID(&src.ID)
	_, err := s.store.db.ExecContext(ctx,
		"INSERT INTO sources (id, tradition_id, name) VALUES ($1, $2, $3)", src.ID, src.TraditionID, src.Name)
	return translate(err)
}

func (s *corpusStore) FindWork(ctx context.Context, sourceID, name string) (*domain.Work, error) {
	var w domain.Work
	err := s.store.db.QueryRowContext(ctx,
		"SELECT id, source_id, name FROM works WHERE source_id = $1 AND name = $2", sourceID, name,
	).Scan(&w.ID, &w.SourceID, &w.Name)
	if err != nil {
		return nil, translate(err)
	}
	return &w, nil
}

func (s *corpusStore) InsertWork(ctx context.Context, w *domain.Work) error {
	ensureID(&w.ID)
	_, err := s.store.db.ExecContext(ctx,
		"INSERT INTO works (id, source_id, name) VALUES ($1, $2, $3)", w.ID, w.SourceID, w.Name)
	return translate(err)
}

func (s *corpusStore) FindBook(ctx context.Context, workID, title string) (*domain.Book, error) {
	var b domain.Book
	err := s.store.db.QueryRowContext(ctx,
		"SELECT id, work_id, title, seq FROM books WHERE work_id = $1 AND title = $2", workID, title,
	).Scan(&b.ID, &b.WorkID, &b.Title, &b.Seq)
	if err != nil {
		return nil, translate(err)
	}
	return &b, nil
}

func (s *corpusStore) InsertBook(ctx context.Context, b *domain.Book) error {
	ensureID(&b.ID)
	_, err := s.store.db.ExecContext(ctx,
		"INSERT INTO books (id, work_id, title, seq) VALUES ($1, $2, $3, $4)", b.ID, b.WorkID, b.Title, b.Seq)
	return translate(err)
}

func (s *corpusStore) FindChapter(ctx context.Context, bookID string, number int) (*domain.Chapter, error) {
	var c domain.Chapter
	err := s.store.db.QueryRowContext(ctx,
		"SELECT id, book_id, number, title FROM chapters WHERE book_id = $1 AND number = $2", bookID, number,
	).Scan(&c.ID, &c.BookID, &c.Number, &c.Title)
	if err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

func (s *corpusStore) InsertChapter(ctx context.Context, c *domain.Chapter) error {
	ensureID(&c.ID)
	_, err := s.store.db.ExecContext(ctx,
		"INSERT INTO chapters (id, book_id, number, title) VALUES ($1, $2, $3, $4)", c.ID, c.BookID, c.Number, c.Title)
	return translate(err)
}

const chunkColumns = "c.id, c.book_id, c.hash, c.chapters::text, c.verse_numbers::text, c.combined_text, c.embedding::text"

func (s *corpusStore) FindChunkByHash(ctx context.Context, hash string) (*domain.Chunk, error) {
	row := s.store.db.QueryRowContext(ctx, "SELECT "+chunkColumns+" FROM chunks c WHERE c.hash = $1", hash)
	c, err := scanChunk(row)
	if err != nil {
		return nil, translate(err)
	}
	return c, nil
}

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
		VALUES ($1, $2, $3, $4::jsonb, $5::jsonb, $6, $7::vector)
	`, c.ID, c.BookID, c.Hash, chapters, verses, c.CombinedText, nullVector(c.Embedding))
	return translate(err)
}

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
		SET chapters = $1::jsonb, verse_numbers = $2::jsonb, combined_text = $3,
			embedding = $4::vector, updated_at = now()
		WHERE hash = $5
		RETURNING id
	`, chapters, verses, c.CombinedText, nullVector(c.Embedding), c.Hash).Scan(&id)
	if err != nil {
		return translate(err)
	}
	c.ID = id
	return nil
}

func (s *corpusStore) UpsertVerse(ctx context.Context, v *domain.Verse) error {
	ensureID(&v.ID)
	var id string
	err := s.store.db.QueryRowContext(ctx, `
		INSERT INTO verses (id, book_id, chapter_id, chunk_id, chapter_number, verse_number, text)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (book_id, chapter_number, verse_number) DO UPDATE SET
			chapter_id = EXCLUDED.chapter_id,
			chunk_id = EXCLUDED.chunk_id,
			text = EXCLUDED.text
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

type rowScanner interface {
	Scan(dest ...any) error
}

// scanChunk scans the chunkColumns followed by any extra destinations.
func scanChunk(row rowScanner, extra ...any) (*domain.Chunk, error) {
	var c domain.Chunk
	var chapters, verses string
	var embedding sql.NullString
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
	vec, err := parseVector(embedding.String)
	if err != nil {
		return nil, err
	}
	c.Embedding = vec
	return &c, nil
}
