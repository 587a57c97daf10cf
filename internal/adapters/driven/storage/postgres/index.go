package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/custodia-labs/verselens-cli/internal/core/domain"
	"github.com/custodia-labs/verselens-cli/internal/core/ports/driven"
)

// searchIndex implements driven.SearchIndex with pgvector cosine distance
// and pg_trgm word similarity.
type searchIndex struct {
	store *Store
}

// Ensure searchIndex implements the interface.
var _ driven.SearchIndex = (*searchIndex)(nil)

func (x *searchIndex) NearestChunks(ctx context.Context, vec []float32, k int, scope domain.Scope) ([]domain.ScoredID, error) {
	dims, err := x.store.Dimensions(ctx)
	if err != nil {
		return nil, err
	}
	if dims != 0 && len(vec) != dims {
		return nil, fmt.Errorf("%w: query has %d, store holds %d", domain.ErrDimensionMismatch, len(vec), dims)
	}
	if dims == 0 {
		return nil, nil
	}

	p := &params{}
	v := p.add(vectorToString(vec))
	query := `
		SELECT c.id, 1 - (c.embedding <=> ` + v + `::vector) AS score
		FROM chunks c
		JOIN books b ON b.id = c.book_id
		WHERE c.embedding IS NOT NULL` + scopeClause(scope, p) + `
		ORDER BY c.embedding <=> ` + v + `::vector, c.id` + limitClause(k, p)
	return x.scored(ctx, query, p.vals)
}

func (x *searchIndex) ChunkSimilarity(ctx context.Context, vec []float32, chunkID string) (float64, error) {
	var score sql.NullFloat64
	err := x.store.db.QueryRowContext(ctx,
		"SELECT 1 - (embedding <=> $1::vector) FROM chunks WHERE id = $2",
		vectorToString(vec), chunkID,
	).Scan(&score)
	if err != nil {
		return 0, translate(err)
	}
	return score.Float64, nil
}

func (x *searchIndex) TextSimilarity(ctx context.Context, query string, verseIDs []string) (map[string]float64, error) {
	out := make(map[string]float64, len(verseIDs))
	if len(verseIDs) == 0 {
		return out, nil
	}
	hits, err := x.scored(ctx,
		"SELECT id, word_similarity($1, text) FROM verses WHERE id = ANY($2)",
		[]any{query, verseIDs})
	if err != nil {
		return nil, err
	}
	for _, h := range hits {
		out[h.ID] = h.Score
	}
	return out, nil
}

func (x *searchIndex) FuzzyVerses(ctx context.Context, query string, limit int, scope domain.Scope) ([]domain.ScoredID, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	p := &params{}
	q := p.add(query)
	threshold := p.add(domain.DefaultFuzzyThreshold)
	sqlText := `
		SELECT v.id, word_similarity(` + q + `, v.text) AS score
		FROM verses v
		JOIN books b ON b.id = v.book_id
		WHERE word_similarity(` + q + `, v.text) >= ` + threshold + scopeClause(scope, p) + `
		ORDER BY score DESC, v.id` + limitClause(limit, p)
	return x.scored(ctx, sqlText, p.vals)
}

func (x *searchIndex) FuzzyChapters(ctx context.Context, query string, limit int, scope domain.Scope) ([]domain.ChapterMatch, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	p := &params{}
	q := p.add(query)
	threshold := p.add(domain.DefaultFuzzyThreshold)
	rows, err := x.store.db.QueryContext(ctx, `
		SELECT ch.id, ch.book_id, ch.number, ch.title, b.title, b.seq, b.work_id,
			word_similarity(`+q+`, ch.title) AS score
		FROM chapters ch
		JOIN books b ON b.id = ch.book_id
		WHERE word_similarity(`+q+`, ch.title) >= `+threshold+scopeClause(scope, p)+`
		ORDER BY score DESC, ch.id`+limitClause(limit, p), p.vals...)
	if err != nil {
		return nil, fmt.Errorf("querying chapters: %w", err)
	}
	defer rows.Close()

	var out []domain.ChapterMatch
	for rows.Next() {
		var cm domain.ChapterMatch
		if err := rows.Scan(&cm.ID, &cm.BookID, &cm.Number, &cm.Title, &cm.BookTitle, &cm.BookSeq, &cm.WorkID, &cm.Score); err != nil {
			return nil, fmt.Errorf("scanning chapter: %w", err)
		}
		out = append(out, cm)
	}
	return out, rows.Err()
}

func (x *searchIndex) PhraseVerses(ctx context.Context, phrase string, limit int, scope domain.Scope) ([]domain.ScoredID, error) {
	phrase = strings.ToLower(strings.TrimSpace(phrase))
	if phrase == "" {
		return nil, nil
	}
	p := &params{}
	sqlText := `
		SELECT v.id, 1.0::float8
		FROM verses v
		JOIN books b ON b.id = v.book_id
		WHERE strpos(lower(v.text), ` + p.add(phrase) + `) > 0` + scopeClause(scope, p) + `
		ORDER BY v.id` + limitClause(limit, p)
	return x.scored(ctx, sqlText, p.vals)
}

func (x *searchIndex) AnyWordVerses(ctx context.Context, words []string, limit int, scope domain.Scope) ([]domain.ScoredID, error) {
	p := &params{}
	var terms []string
	for _, w := range words {
		if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
			terms = append(terms, "(strpos(lower(v.text), "+p.add(w)+") > 0)::int")
		}
	}
	if len(terms) == 0 {
		return nil, nil
	}
	matched := "(" + strings.Join(terms, " + ") + ")"
	sqlText := `
		SELECT v.id, ` + matched + `::float8 / ` + fmt.Sprint(len(terms)) + ` AS score
		FROM verses v
		JOIN books b ON b.id = v.book_id
		WHERE ` + matched + ` > 0` + scopeClause(scope, p) + `
		ORDER BY score DESC, v.id` + limitClause(limit, p)
	return x.scored(ctx, sqlText, p.vals)
}

func (x *searchIndex) ChunksContaining(ctx context.Context, phrase string, limit int, scope domain.Scope) ([]domain.ScoredID, error) {
	phrase = strings.ToLower(strings.TrimSpace(phrase))
	if phrase == "" {
		return nil, nil
	}
	p := &params{}
	sqlText := `
		SELECT c.id, 1.0::float8
		FROM chunks c
		JOIN books b ON b.id = c.book_id
		WHERE strpos(lower(c.combined_text), ` + p.add(phrase) + `) > 0` + scopeClause(scope, p) + `
		ORDER BY c.id` + limitClause(limit, p)
	return x.scored(ctx, sqlText, p.vals)
}

// scored runs a query returning (id, score) rows.
func (x *searchIndex) scored(ctx context.Context, query string, args []any) ([]domain.ScoredID, error) {
	rows, err := x.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying index: %w", err)
	}
	defer rows.Close()

	var hits []domain.ScoredID
	for rows.Next() {
		var h domain.ScoredID
		var score sql.NullFloat64
		if err := rows.Scan(&h.ID, &score); err != nil {
			return nil, fmt.Errorf("scanning hit: %w", err)
		}
		h.Score = score.Float64
		hits = append(hits, h)
	}
	return hits, rows.Err()
}
