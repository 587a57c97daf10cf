package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/custodia-labs/verselens-cli/internal/core/domain"
	"github.com/custodia-labs/verselens-cli/internal/logger"
	"github.com/custodia-labs/verselens-cli/internal/similarity"
)

// lexicalStage is one layer of lexical-only search.
type lexicalStage struct {
	name domain.LexicalStage
	run  func(ctx context.Context) ([]domain.ScoredID, error)
}

// Lexical runs fuzzy text search. Verse searches fall back through phrase,
// any-word, chunk-text and first-word matching; each layer runs only when
// the one before it found nothing.
func (s *SearchService) Lexical(ctx context.Context, query string, opts domain.LexicalOptions) ([]domain.LexicalHit, error) {
	logger.Section("Lexical")
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: empty query", domain.ErrInvalidInput)
	}
	if s.reader == nil || s.index == nil {
		return nil, domain.ErrStoreUnavailable
	}
	if opts.Limit <= 0 {
		opts.Limit = s.defaults.Limit
	}
	if opts.Limit <= 0 {
		opts.Limit = domain.DefaultSearchLimit
	}
	opts.Scope = opts.Scope.Resolve()

	switch opts.Target {
	case domain.LexicalTargetChapters:
		return s.lexicalChapters(ctx, query, opts)
	case "", domain.LexicalTargetVerses:
		return s.lexicalVerses(ctx, query, opts)
	default:
		return nil, fmt.Errorf("%w: unknown lexical target %q", domain.ErrInvalidInput, opts.Target)
	}
}

func (s *SearchService) lexicalChapters(ctx context.Context, query string, opts domain.LexicalOptions) ([]domain.LexicalHit, error) {
	matches, err := s.index.FuzzyChapters(ctx, query, opts.Limit, opts.Scope)
	if err != nil {
		return nil, fmt.Errorf("fuzzy chapters: %w", err)
	}
	hits := make([]domain.LexicalHit, len(matches))
	for i := range matches {
		m := matches[i]
		hits[i] = domain.LexicalHit{
			Reference: m.Title,
			Score:     m.Score,
			Stage:     domain.LexicalStageFuzzy,
			Chapter:   &m,
		}
	}
	return hits, nil
}

func (s *SearchService) lexicalVerses(ctx context.Context, query string, opts domain.LexicalOptions) ([]domain.LexicalHit, error) {
	words := similarity.Words(query)
	stages := []lexicalStage{
		{domain.LexicalStageFuzzy, func(ctx context.Context) ([]domain.ScoredID, error) {
			return s.index.FuzzyVerses(ctx, query, opts.Limit, opts.Scope)
		}},
		{domain.LexicalStagePhrase, func(ctx context.Context) ([]domain.ScoredID, error) {
			return s.index.PhraseVerses(ctx, query, opts.Limit, opts.Scope)
		}},
		{domain.LexicalStageAnyWord, func(ctx context.Context) ([]domain.ScoredID, error) {
			if len(words) == 0 {
				return nil, nil
			}
			return s.index.AnyWordVerses(ctx, words, opts.Limit, opts.Scope)
		}},
		{domain.LexicalStageChunk, func(ctx context.Context) ([]domain.ScoredID, error) {
			return s.chunkTextVerses(ctx, query, opts)
		}},
		{domain.LexicalStageFirstWord, func(ctx context.Context) ([]domain.ScoredID, error) {
			if len(words) == 0 {
				return nil, nil
			}
			return s.index.FuzzyVerses(ctx, words[0], opts.Limit, opts.Scope)
		}},
	}

	for _, stage := range stages {
		ids, err := stage.run(ctx)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", stage.name, err)
		}
		if len(ids) == 0 {
			logger.Debug("lexical %s: no matches", stage.name)
			continue
		}
		logger.Debug("lexical %s: %d matches", stage.name, len(ids))
		return s.enrich(ctx, ids, stage.name)
	}
	return []domain.LexicalHit{}, nil
}

// chunkTextVerses matches chunk text and expands each chunk to its verses,
// which inherit the chunk score.
func (s *SearchService) chunkTextVerses(ctx context.Context, query string, opts domain.LexicalOptions) ([]domain.ScoredID, error) {
	chunks, err := s.index.ChunksContaining(ctx, query, opts.Limit, opts.Scope)
	if err != nil || len(chunks) == 0 {
		return nil, err
	}
	ids := make([]string, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ID
	}
	members, err := s.reader.ChunkVerses(ctx, ids)
	if err != nil {
		return nil, err
	}

	var out []domain.ScoredID
	for _, c := range chunks {
		for _, v := range members[c.ID] {
			if len(out) == opts.Limit {
				return out, nil
			}
			out = append(out, domain.ScoredID{ID: v.ID, Score: c.Score})
		}
	}
	return out, nil
}

// enrich attaches verse context and references, keeping the hit order.
func (s *SearchService) enrich(ctx context.Context, ids []domain.ScoredID, stage domain.LexicalStage) ([]domain.LexicalHit, error) {
	verseIDs := make([]string, len(ids))
	scores := make(map[string]float64, len(ids))
	for i, h := range ids {
		verseIDs[i] = h.ID
		scores[h.ID] = h.Score
	}
	verses, err := s.reader.Verses(ctx, verseIDs)
	if err != nil {
		return nil, fmt.Errorf("load verses: %w", err)
	}

	hits := make([]domain.LexicalHit, len(verses))
	for i := range verses {
		v := verses[i]
		hits[i] = domain.LexicalHit{
			Reference: v.Reference(),
			Score:     scores[v.ID],
			Stage:     stage,
			Verse:     &v,
		}
	}
	return hits, nil
}
