package sqlite

import (
	"context"
	"fmt"

	"github.com/custodia-labs/verselens-cli/internal/core/domain"
	"github.com/custodia-labs/verselens-cli/internal/core/ports/driven"
)

// ==================== Corpus Reader ====================

// corpusReader implements driven.CorpusReader.
type corpusReader struct {
	store *Store
}

var _ driven.CorpusReader = (*corpusReader)(nil)

const chunkInfoSelect = `
	SELECT c.id, c.book_id, c.hash, c.chapters, c.verse_numbers, c.combined_text, c.embedding,
		b.title, b.seq, b.work_id
	FROM chunks c
	JOIN books b ON b.id = c.book_id`

const verseInfoSelect = `
	SELECT v.id, v.book_id, COALESCE(v.chapter_id, ''), COALESCE(v.chunk_id, ''),
		v.chapter_number, v.verse_number, v.text,
		b.title, b.seq, b.work_id, COALESCE(ch.title, '')
	FROM verses v
	JOIN books b ON b.id = v.book_id
	LEFT JOIN chapters ch ON ch.id = v.chapter_id`

// Chunks returns chunks with book context in the order of ids.
func (r *corpusReader) Chunks(ctx context.Context, ids []string) ([]domain.ChunkInfo, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.store.db.QueryContext(ctx,
		chunkInfoSelect+" WHERE c.id IN ("+placeholders(len(ids))+")", stringArgs(ids)...)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]domain.ChunkInfo, len(ids))
	for rows.Next() {
		var info domain.ChunkInfo
		c, err := scanChunk(rows, &info.BookTitle, &info.BookSeq, &info.WorkID)
		if err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		info.Chunk = *c
		byID[c.ID] = info
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]domain.ChunkInfo, 0, len(byID))
	for _, id := range ids {
		if info, ok := byID[id]; ok {
			out = append(out, info)
		}
	}
	return out, nil
}

// ChunkVerses returns verses grouped by owning chunk.
func (r *corpusReader) ChunkVerses(ctx context.Context, chunkIDs []string) (map[string][]domain.VerseInfo, error) {
	out := make(map[string][]domain.VerseInfo)
	if len(chunkIDs) == 0 {
		return out, nil
	}
	verses, err := r.store.queryVerses(ctx,
		verseInfoSelect+" WHERE v.chunk_id IN ("+placeholders(len(chunkIDs))+") ORDER BY v.chapter_number, v.verse_number",
		stringArgs(chunkIDs)...)
	if err != nil {
		return nil, err
	}
	for _, v := range verses {
		out[v.ChunkID] = append(out[v.ChunkID], v)
	}
	return out, nil
}

// Verse returns one verse with context.
func (r *corpusReader) Verse(ctx context.Context, id string) (*domain.VerseInfo, error) {
	v, err := scanVerseInfo(r.store.db.QueryRowContext(ctx, verseInfoSelect+" WHERE v.id = ?", id))
	if err != nil {
		return nil, translate(err)
	}
	return v, nil
}

// Verses returns verses with context in the order of ids.
func (r *corpusReader) Verses(ctx context.Context, ids []string) ([]domain.VerseInfo, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	verses, err := r.store.queryVerses(ctx,
		verseInfoSelect+" WHERE v.id IN ("+placeholders(len(ids))+")", stringArgs(ids)...)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]domain.VerseInfo, len(verses))
	for _, v := range verses {
		byID[v.ID] = v
	}
	out := make([]domain.VerseInfo, 0, len(verses))
	for _, id := range ids {
		if v, ok := byID[id]; ok {
			out = append(out, v)
		}
	}
	return out, nil
}

// VerseByReference resolves a human reference to a verse.
func (r *corpusReader) VerseByReference(ctx context.Context, workID, book string, chapter, verse int) (*domain.VerseInfo, error) {
	title := book
	if b, ok := domain.LookupBook(book); ok {
		title = b.Title
	}
	query := verseInfoSelect + " WHERE b.title = ? AND v.chapter_number = ? AND v.verse_number = ?"
	args := []any{title, chapter, verse}
	if workID != "" {
		query += " AND b.work_id = ?"
		args = append(args, workID)
	}
	query += " ORDER BY b.seq LIMIT 1"

	v, err := scanVerseInfo(r.store.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, translate(err)
	}
	return v, nil
}

func (s *Store) queryVerses(ctx context.Context, query string, args ...any) ([]domain.VerseInfo, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying verses: %w", err)
	}
	defer rows.Close()

	var out []domain.VerseInfo
	for rows.Next() {
		v, err := scanVerseInfo(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning verse: %w", err)
		}
		out = append(out, *v)
	}
	return out, rows.Err()
}

func scanVerseInfo(row rowScanner) (*domain.VerseInfo, error) {
	var v domain.VerseInfo
	err := row.Scan(&v.ID, &v.BookID, &v.ChapterID, &v.ChunkID, &v.Chapter, &v.Number, &v.Text,
		&v.BookTitle, &v.BookSeq, &v.WorkID, &v.ChapterTitle)
	if err != nil {
		return nil, err
	}
	if v.ChapterTitle == "" {
		v.ChapterTitle = domain.ChapterTitle(v.BookTitle, v.Chapter)
	}
	return &v, nil
}
