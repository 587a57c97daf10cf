package memory

import (
	"context"
	"strings"

	"github.com/custodia-labs/verselens-cli/internal/core/domain"
	"github.com/custodia-labs/verselens-cli/internal/similarity"
)

// NearestChunks ranks every in-scope chunk by cosine similarity.
func (s *CorpusStore) NearestChunks(_ context.Context, vec []float32, k int, scope domain.Scope) ([]domain.ScoredID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.dims != 0 && len(vec) != s.dims {
		return nil, domain.ErrDimensionMismatch
	}

	hits := make([]domain.ScoredID, 0, len(s.chunks))
	for id, c := range s.chunks {
		if len(c.Embedding) == 0 || !s.inScope(c.BookID, scope) {
			continue
		}
		hits = append(hits, domain.ScoredID{ID: id, Score: similarity.Cosine(vec, c.Embedding)})
	}
	return domain.SortScored(hits, k), nil
}

// ChunkSimilarity scores one chunk against vec.
func (s *CorpusStore) ChunkSimilarity(_ context.Context, vec []float32, chunkID string) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.chunks[chunkID]
	if !ok {
		return 0, domain.ErrNotFound
	}
	return similarity.Cosine(vec, c.Embedding), nil
}

// TextSimilarity scores the given verses against query.
func (s *CorpusStore) TextSimilarity(_ context.Context, query string, verseIDs []string) (map[string]float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m := similarity.NewMatcher(query)
	out := make(map[string]float64, len(verseIDs))
	for _, id := range verseIDs {
		if v, ok := s.verses[id]; ok {
			out[id] = m.Score(v.Text)
		}
	}
	return out, nil
}

// FuzzyVerses returns in-scope verses at or above the fuzzy threshold.
func (s *CorpusStore) FuzzyVerses(_ context.Context, query string, limit int, scope domain.Scope) ([]domain.ScoredID, error) {
	m := similarity.NewMatcher(query)
	if m.Empty() {
		return nil, nil
	}
	return s.scanVerses(limit, scope, func(text string) float64 {
		if score := m.Score(text); score >= domain.DefaultFuzzyThreshold {
			return score
		}
		return 0
	}), nil
}

// FuzzyChapters matches chapter titles.
func (s *CorpusStore) FuzzyChapters(_ context.Context, query string, limit int, scope domain.Scope) ([]domain.ChapterMatch, error) {
	m := similarity.NewMatcher(query)
	if m.Empty() {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	var hits []domain.ScoredID
	for id, c := range s.chapters {
		if !s.inScope(c.BookID, scope) {
			continue
		}
		if score := m.Score(c.Title); score >= domain.DefaultFuzzyThreshold {
			hits = append(hits, domain.ScoredID{ID: id, Score: score})
		}
	}

	hits = domain.SortScored(hits, limit)
	out := make([]domain.ChapterMatch, len(hits))
	for i, h := range hits {
		c := s.chapters[h.ID]
		b := s.books[c.BookID]
		out[i] = domain.ChapterMatch{Chapter: c, BookTitle: b.Title, BookSeq: b.Seq, WorkID: b.WorkID, Score: h.Score}
	}
	return out, nil
}

// PhraseVerses returns verses containing phrase.
func (s *CorpusStore) PhraseVerses(_ context.Context, phrase string, limit int, scope domain.Scope) ([]domain.ScoredID, error) {
	phrase = strings.ToLower(strings.TrimSpace(phrase))
	if phrase == "" {
		return nil, nil
	}
	return s.scanVerses(limit, scope, func(text string) float64 {
		if strings.Contains(strings.ToLower(text), phrase) {
			return 1
		}
		return 0
	}), nil
}

// AnyWordVerses returns verses containing at least one word.
func (s *CorpusStore) AnyWordVerses(_ context.Context, words []string, limit int, scope domain.Scope) ([]domain.ScoredID, error) {
	lowered := make([]string, 0, len(words))
	for _, w := range words {
		if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
			lowered = append(lowered, w)
		}
	}
	if len(lowered) == 0 {
		return nil, nil
	}
	return s.scanVerses(limit, scope, func(text string) float64 {
		text = strings.ToLower(text)
		matched := 0
		for _, w := range lowered {
			if strings.Contains(text, w) {
				matched++
			}
		}
		return float64(matched) / float64(len(lowered))
	}), nil
}

// ChunksContaining returns chunks whose combined text contains phrase.
func (s *CorpusStore) ChunksContaining(_ context.Context, phrase string, limit int, scope domain.Scope) ([]domain.ScoredID, error) {
	phrase = strings.ToLower(strings.TrimSpace(phrase))
	if phrase == "" {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	var hits []domain.ScoredID
	for id, c := range s.chunks {
		if s.inScope(c.BookID, scope) && strings.Contains(strings.ToLower(c.CombinedText), phrase) {
			hits = append(hits, domain.ScoredID{ID: id, Score: 1})
		}
	}
	return domain.SortScored(hits, limit), nil
}

// scanVerses scores every in-scope verse and keeps positive scores.
func (s *CorpusStore) scanVerses(limit int, scope domain.Scope, score func(text string) float64) []domain.ScoredID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var hits []domain.ScoredID
	for id, v := range s.verses {
		if !s.inScope(v.BookID, scope) {
			continue
		}
		if sc := score(v.Text); sc > 0 {
			hits = append(hits, domain.ScoredID{ID: id, Score: sc})
		}
	}
	return domain.SortScored(hits, limit)
}
