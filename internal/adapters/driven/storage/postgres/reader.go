package postgres

import (
	"context"
	"fmt"

	"github.com/custodia-labs/verselens-cli/internal/core/domain"
	"github.com/custodia-labs/verselens-cli/internal/core/ports/driven"
)

// corpusReader implements driven.CorpusReader.
type corpusReader struct {
	store *Store
}

// Ensure corpusReader implements the interface.
var _ driven.CorpusReader = (*corpusReader)(nil)

const verseInfoSelect = `
	SELECT v.id, v.book_id, COALESCE(v.chapter_id, ''), COALESCE(v.chunk_id, ''),
		v.chapter_number, v.verse_number, v.text,
		b.title, b.seq, b.work_id, COALESCE(ch.title, '')
	FROM verses v
	JOIN books b ON b.id = v.book_id
	LEFT JOIN chapters ch ON ch.id = v.chapter_id`

func (r *corpusReader) Chunks(ctx context.Context, ids []string) ([]domain.ChunkInfo, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.store.db.QueryContext(ctx, `
		SELECT `+chunkColumns+`, b.title, b.seq, b.work_id
		FROM chunks c
		JOIN books b ON b.id = c.book_id
		WHERE c.id = ANY($1)`, ids)
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

func (r *corpusReader) ChunkVerses(ctx context.Context, chunkIDs []string) (map[string][]domain.VerseInfo, error) {
	out := make(map[string][]domain.VerseInfo)
	if len(chunkIDs) == 0 {
		return out, nil
	}
	verses, err := r.store.queryVerses(ctx,
		verseInfoSelect+" WHERE v.chunk_id = ANY($1) ORDER BY v.chapter_number, v.verse_number", chunkIDs)
	if err != nil {
		return nil, err
	}
	for _, v := range verses {
		out[v.ChunkID] = append(out[v.ChunkID], v)
	}
	return out, nil
}

func (r *corpusReader) Verse(ctx context.Context, id string) (*domain.VerseInfo, error) {
	v, err := scanVerseInfo(r.store.db.QueryRowContext(ctx, verseInfoSelect+" WHERE v.id = $1", id))
	if err != nil {
		return nil, translate(err)
	}
	return v, nil
}

func (r *corpusReader) Verses(ctx context.Context, ids []string) ([]domain.VerseInfo, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	verses, err := r.store.queryVerses(ctx, verseInfoSelect+" WHERE v.id = ANY($1)", ids)
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

func (r *corpusReader) VerseByReference(ctx context.Context, workID, book string, chapter, verse int) (*domain.VerseInfo, error) {
	title := book
	if b, ok := domain.LookupBook(book); ok {
		title = b.Title
	}
	p := &params{}
	query := verseInfoSelect + " WHERE b.title = " + p.add(title) +
		" AND v.chapter_number = " + p.add(chapter) +
		" AND v.verse_number = " + p.add(verse)
	if workID != "" {
		query += " AND b.work_id = " + p.add(workID)
	}
	query += " ORDER BY b.seq LIMIT 1"

	v, err := scanVerseInfo(r.store.db.QueryRowContext(ctx, query, p.vals...))
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
