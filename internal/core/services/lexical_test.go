package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/verselens-cli/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/verselens-cli/internal/core/domain"
)

// stageIndex switches individual lexical capabilities off.
type stageIndex struct {
	*memory.CorpusStore
	noFuzzy   map[string]bool
	noPhrase  bool
	noAnyWord bool
	noChunks  bool
}

func (s *stageIndex) FuzzyVerses(ctx context.Context, query string, limit int, scope domain.Scope) ([]domain.ScoredID, error) {
	if s.noFuzzy[query] {
		return nil, nil
	}
	return s.CorpusStore.FuzzyVerses(ctx, query, limit, scope)
}

func (s *stageIndex) PhraseVerses(ctx context.Context, phrase string, limit int, scope domain.Scope) ([]domain.ScoredID, error) {
	if s.noPhrase {
		return nil, nil
	}
	return s.CorpusStore.PhraseVerses(ctx, phrase, limit, scope)
}

func (s *stageIndex) AnyWordVerses(ctx context.Context, words []string, limit int, scope domain.Scope) ([]domain.ScoredID, error) {
	if s.noAnyWord {
		return nil, nil
	}
	return s.CorpusStore.AnyWordVerses(ctx, words, limit, scope)
}

func (s *stageIndex) ChunksContaining(ctx context.Context, phrase string, limit int, scope domain.Scope) ([]domain.ScoredID, error) {
	if s.noChunks {
		return nil, nil
	}
	return s.CorpusStore.ChunksContaining(ctx, phrase, limit, scope)
}

func references(hits []domain.LexicalHit) []string {
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.Reference
	}
	return out
}

func TestLexical_Fuzzy(t *testing.T) {
	f := seedCorpus(t)
	svc := basicSearch(t, f, newQueryEmbedder())

	hits, err := svc.Lexical(context.Background(), "seventh day", domain.LexicalOptions{})

	require.NoError(t, err)
	require.GreaterOrEqual(t, len(hits), 2)
	assert.ElementsMatch(t, []string{"Genesis 2:2", "Genesis 2:3"}, references(hits[:2]))
	for _, h := range hits {
		assert.Equal(t, domain.LexicalStageFuzzy, h.Stage)
		require.NotNil(t, h.Verse)
		assert.Equal(t, "Genesis", h.Verse.BookTitle)
		assert.GreaterOrEqual(t, h.Score, domain.DefaultFuzzyThreshold)
	}
	assert.InDelta(t, 1.0, hits[0].Score, 1e-9)
	assert.Equal(t, "Genesis 2", hits[0].Verse.ChapterTitle)
}

func TestLexical_ScopeAndLimit(t *testing.T) {
	f := seedCorpus(t)
	svc := basicSearch(t, f, newQueryEmbedder())

	hits, err := svc.Lexical(context.Background(), "beginning", domain.LexicalOptions{
		Scope: domain.Scope{Testament: domain.TestamentNew},
	})
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "John", hits[0].Verse.BookTitle)
	for _, h := range hits {
		assert.GreaterOrEqual(t, h.Verse.BookSeq, domain.NewTestamentFirst)
	}

	hits, err = svc.Lexical(context.Background(), "beginning", domain.LexicalOptions{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

func TestLexical_Chapters(t *testing.T) {
	f := seedCorpus(t)
	svc := basicSearch(t, f, newQueryEmbedder())

	hits, err := svc.Lexical(context.Background(), "psalms 23", domain.LexicalOptions{Target: domain.LexicalTargetChapters})

	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "Psalms 23", hits[0].Reference)
	require.NotNil(t, hits[0].Chapter)
	assert.Equal(t, 23, hits[0].Chapter.Number)
	assert.Equal(t, 19, hits[0].Chapter.BookSeq)
	assert.Nil(t, hits[0].Verse)
}

func TestLexical_Fallbacks(t *testing.T) {
	tests := []struct {
		name  string
		index func(*memory.CorpusStore) *stageIndex
		stage domain.LexicalStage
		want  []string
	}{
		{
			name: "phrase",
			index: func(s *memory.CorpusStore) *stageIndex {
				return &stageIndex{CorpusStore: s, noFuzzy: map[string]bool{"seventh day": true}}
			},
			stage: domain.LexicalStagePhrase,
			want:  []string{"Genesis 2:2", "Genesis 2:3"},
		},
		{
			name: "any word",
			index: func(s *memory.CorpusStore) *stageIndex {
				return &stageIndex{CorpusStore: s, noFuzzy: map[string]bool{"seventh day": true}, noPhrase: true}
			},
			stage: domain.LexicalStageAnyWord,
		},
		{
			name: "chunk text",
			index: func(s *memory.CorpusStore) *stageIndex {
				return &stageIndex{
					CorpusStore: s, noFuzzy: map[string]bool{"seventh day": true}, noPhrase: true, noAnyWord: true,
				}
			},
			stage: domain.LexicalStageChunk,
			want:  []string{"Genesis 2:1", "Genesis 2:2", "Genesis 2:3"},
		},
		{
			name: "first word",
			index: func(s *memory.CorpusStore) *stageIndex {
				return &stageIndex{
					CorpusStore: s, noFuzzy: map[string]bool{"seventh day": true},
					noPhrase: true, noAnyWord: true, noChunks: true,
				}
			},
			stage: domain.LexicalStageFirstWord,
			want:  []string{"Genesis 2:2", "Genesis 2:3"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := seedCorpus(t)
			svc := newTestSearch(t, SearchConfig{Reader: f.store, Index: tt.index(f.store)})

			hits, err := svc.Lexical(context.Background(), "seventh day", domain.LexicalOptions{})

			require.NoError(t, err)
			require.NotEmpty(t, hits)
			for _, h := range hits {
				assert.Equal(t, tt.stage, h.Stage)
				assert.NotNil(t, h.Verse)
			}
			if tt.want != nil {
				assert.ElementsMatch(t, tt.want, references(hits))
			}
		})
	}
}

func TestLexical_NoMatches(t *testing.T) {
	f := seedCorpus(t)
	svc := basicSearch(t, f, newQueryEmbedder())

	hits, err := svc.Lexical(context.Background(), "xyzzy", domain.LexicalOptions{})

	require.NoError(t, err)
	assert.NotNil(t, hits)
	assert.Empty(t, hits)
}

func TestLexical_Errors(t *testing.T) {
	f := seedCorpus(t)
	svc := basicSearch(t, f, newQueryEmbedder())

	_, err := svc.Lexical(context.Background(), " ", domain.LexicalOptions{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = svc.Lexical(context.Background(), "light", domain.LexicalOptions{Target: "books"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = newTestSearch(t, SearchConfig{}).Lexical(context.Background(), "light", domain.LexicalOptions{})
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
}
