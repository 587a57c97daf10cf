package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/custodia-labs/verselens-cli/internal/core/domain"
	"github.com/custodia-labs/verselens-cli/internal/core/ports/driven"
	"github.com/custodia-labs/verselens-cli/internal/similarity"
)

// ==================== Search Index ====================

// searchIndex implements driven.SearchIndex by scanning candidate rows and
// scoring them in process.
type searchIndex struct {
	store *Store
}

var _ driven.SearchIndex = (*searchIndex)(nil)

// NearestChunks ranks in-scope chunks by cosine similarity.
func (x *searchIndex) NearestChunks(ctx context.Context, vec []float32, k int, scope domain.Scope) ([]domain.ScoredID, error) {
	dims, err := x.store.Dimensions(ctx)
	if err != nil {
		return nil, err
	}
	if dims != 0 && len(vec) != dims {
		return nil, fmt.Errorf("%w: query has %d, store holds %d", domain.ErrDimensionMismatch, len(vec), dims)
	}

	where, args := scopeClause(scope)
	rows, err := x.store.db.QueryContext(ctx, `
		SELECT c.id, c.embedding FROM chunks c
		JOIN books b ON b.id = c.book_id
		WHERE c.embedding IS NOT NULL`+where, args...)
	if err != nil {
		return nil, fmt.Errorf("querying embeddings: %w", err)
	}
	defer rows.Close()

	var hits []domain.ScoredID
	for rows.Next() {
		var id string
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, fmt.Errorf("scanning embedding: %w", err)
		}
		hits = append(hits, domain.ScoredID{ID: id, Score: similarity.Cosine(vec, bytesToFloat32Slice(blob))})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return domain.SortScored(hits, k), nil
}

// ChunkSimilarity scores one chunk against vec.
func (x *searchIndex) ChunkSimilarity(ctx context.Context, vec []float32, chunkID string) (float64, error) {
	var blob []byte
	err := x.store.db.QueryRowContext(ctx, "SELECT embedding FROM chunks WHERE id = ?", chunkID).Scan(&blob)
	if err != nil {
		return 0, translate(err)
	}
	return similarity.Cosine(vec, bytesToFloat32Slice(blob)), nil
}

// TextSimilarity scores the given verses against query.
func (x *searchIndex) TextSimilarity(ctx context.Context, query string, verseIDs []string) (map[string]float64, error) {
	out := make(map[string]float64, len(verseIDs))
	if len(verseIDs) == 0 {
		return out, nil
	}
	m := similarity.NewMatcher(query)
	err := x.scanText(ctx,
		"SELECT v.id, v.text FROM verses v WHERE v.id IN ("+placeholders(len(verseIDs))+")",
		stringArgs(verseIDs), func(id, text string) {
			out[id] = m.Score(text)
		})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// FuzzyVerses returns in-scope verses at or above the fuzzy threshold.
func (x *searchIndex) FuzzyVerses(ctx context.Context, query string, limit int, scope domain.Scope) ([]domain.ScoredID, error) {
	m := similarity.NewMatcher(query)
	if m.Empty() {
		return nil, nil
	}
	return x.scoreVerses(ctx, "", nil, limit, scope, func(text string) float64 {
		if score := m.Score(text); score >= domain.DefaultFuzzyThreshold {
			return score
		}
		return 0
	})
}

// FuzzyChapters matches chapter titles.
func (x *searchIndex) FuzzyChapters(ctx context.Context, query string, limit int, scope domain.Scope) ([]domain.ChapterMatch, error) {
	m := similarity.NewMatcher(query)
	if m.Empty() {
		return nil, nil
	}

	where, args := scopeClause(scope)
	rows, err := x.store.db.QueryContext(ctx, `
		SELECT ch.id, ch.book_id, ch.number, ch.title, b.title, b.seq, b.work_id
		FROM chapters ch
		JOIN books b ON b.id = ch.book_id
		WHERE 1 = 1`+where, args...)
	if err != nil {
		return nil, fmt.Errorf("querying chapters: %w", err)
	}
	defer rows.Close()

	var matches []domain.ChapterMatch
	for rows.Next() {
		var cm domain.ChapterMatch
		if err := rows.Scan(&cm.ID, &cm.BookID, &cm.Number, &cm.Title, &cm.BookTitle, &cm.BookSeq, &cm.WorkID); err != nil {
			return nil, fmt.Errorf("scanning chapter: %w", err)
		}
		if cm.Score = m.Score(cm.Title); cm.Score >= domain.DefaultFuzzyThreshold {
			matches = append(matches, cm)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return rankChapters(matches, limit), nil
}

// PhraseVerses returns verses containing phrase.
func (x *searchIndex) PhraseVerses(ctx context.Context, phrase string, limit int, scope domain.Scope) ([]domain.ScoredID, error) {
	phrase = strings.ToLower(strings.TrimSpace(phrase))
	if phrase == "" {
		return nil, nil
	}
	return x.scoreVerses(ctx, " AND instr(lower(v.text), ?) > 0", []any{phrase}, limit, scope,
		func(string) float64 { return 1 })
}

// AnyWordVerses returns verses containing at least one word, scored by the
// share of words present.
func (x *searchIndex) AnyWordVerses(ctx context.Context, words []string, limit int, scope domain.Scope) ([]domain.ScoredID, error) {
	var lowered []string
	var clauses []string
	var args []any
	for _, w := range words {
		if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
			lowered = append(lowered, w)
			clauses = append(clauses, "instr(lower(v.text), ?) > 0")
			args = append(args, w)
		}
	}
	if len(lowered) == 0 {
		return nil, nil
	}
	return x.scoreVerses(ctx, " AND ("+strings.Join(clauses, " OR ")+")", args, limit, scope, func(text string) float64 {
		text = strings.ToLower(text)
		matched := 0
		for _, w := range lowered {
			if strings.Contains(text, w) {
				matched++
			}
		}
		return float64(matched) / float64(len(lowered))
	})
}

// ChunksContaining returns chunks whose combined text contains phrase.
func (x *searchIndex) ChunksContaining(ctx context.Context, phrase string, limit int, scope domain.Scope) ([]domain.ScoredID, error) {
	phrase = strings.ToLower(strings.TrimSpace(phrase))
	if phrase == "" {
		return nil, nil
	}
	where, args := scopeClause(scope)
	args = append([]any{phrase}, args...)

	var hits []domain.ScoredID
	err := x.scanText(ctx, `
		SELECT c.id, '' FROM chunks c
		JOIN books b ON b.id = c.book_id
		WHERE instr(lower(c.combined_text), ?) > 0`+where, args, func(id, _ string) {
		hits = append(hits, domain.ScoredID{ID: id, Score: 1})
	})
	if err != nil {
		return nil, err
	}
	return domain.SortScored(hits, limit), nil
}

// scoreVerses scores in-scope verses matching an optional extra predicate and
// keeps positive scores. extra must start with " AND ".
func (x *searchIndex) scoreVerses(ctx context.Context, extra string, extraArgs []any, limit int,
	scope domain.Scope, score func(text string) float64) ([]domain.ScoredID, error) {
	where, scopeArgs := scopeClause(scope)
	args := append(append([]any{}, extraArgs...), scopeArgs...)

	var hits []domain.ScoredID
	err := x.scanText(ctx, `
		SELECT v.id, v.text FROM verses v
		JOIN books b ON b.id = v.book_id
		WHERE 1 = 1`+extra+where, args, func(id, text string) {
		if sc := score(text); sc > 0 {
			hits = append(hits, domain.ScoredID{ID: id, Score: sc})
		}
	})
	if err != nil {
		return nil, err
	}
	return domain.SortScored(hits, limit), nil
}

func (x *searchIndex) scanText(ctx context.Context, query string, args []any, fn func(id, text string)) error {
	rows, err := x.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("querying text: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id, text string
		if err := rows.Scan(&id, &text); err != nil {
			return fmt.Errorf("scanning text: %w", err)
		}
		fn(id, text)
	}
	return rows.Err()
}

// rankChapters orders chapter matches like domain.SortScored.
func rankChapters(matches []domain.ChapterMatch, limit int) []domain.ChapterMatch {
	hits := make([]domain.ScoredID, len(matches))
	byID := make(map[string]domain.ChapterMatch, len(matches))
	for i, m := range matches {
		hits[i] = domain.ScoredID{ID: m.ID, Score: m.Score}
		byID[m.ID] = m
	}
	hits = domain.SortScored(hits, limit)
	out := make([]domain.ChapterMatch, len(hits))
	for i, h := range hits {
		out[i] = byID[h.ID]
	}
	return out
}
