package chunking

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/verselens-cli/internal/core/domain"
)

func TestBuilder_IntroIsSingleChunk(t *testing.T) {
	intro := []domain.RawVerse{{Book: "Genesis", Chapter: 0, Verse: 0, Text: "  The first book of Moses.  "}}

	plans, err := NewBuilder().Build(context.Background(), "Genesis", 0, intro)

	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, domain.ChunkMethodIntro, plans[0].Method)
	assert.Equal(t, []int{0}, plans[0].VerseNumbers)
	assert.Equal(t, "The first book of Moses.", plans[0].CombinedText)
}

func TestBuilder_HeuristicOnly(t *testing.T) {
	verses := chapter("In the beginning.", "And the earth.", "And God said.", "And there was light.")

	plans, err := NewBuilder().Build(context.Background(), "Genesis", 1, verses)

	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, domain.ChunkMethodHeuristic, plans[0].Method)
	assert.Equal(t, "In the beginning. And the earth. And God said. And there was light.", plans[0].CombinedText)
	assert.NoError(t, ValidatePlans(plans, verses))
}

func TestBuilder_RejectsMalformedChapter(t *testing.T) {
	verses := chapter("One.", "Two.", "Three.")
	verses[2].Verse = 2

	plans, err := NewBuilder().Build(context.Background(), "Genesis", 1, verses)

	assert.ErrorIs(t, err, domain.ErrInvalidChunking)
	assert.Contains(t, err.Error(), "Genesis 1")
	assert.Nil(t, plans)
}

func TestBuilder_SemanticSavesToCache(t *testing.T) {
	verses := chapter(repeatText(12, "text.")...)
	llm := &mockLLM{reply: suggestReply(seq(1, 6), seq(7, 12))}
	cache := newMockCache()
	b := NewBuilder(WithSuggester(NewSuggester(llm, &mockPrompts{}, "")), WithCache(cache))

	plans, err := b.Build(context.Background(), "Genesis", 1, verses)

	require.NoError(t, err)
	require.Len(t, plans, 2)
	assert.Equal(t, domain.ChunkMethodSemantic, plans[0].Method)
	assert.Equal(t, 1, cache.saved)

	// The second build is served from the cache.
	plans, err = b.Build(context.Background(), "Genesis", 1, verses)
	require.NoError(t, err)
	assert.Equal(t, domain.ChunkMethodCache, plans[0].Method)
	assert.Equal(t, 1, llm.calls)
}

func TestBuilder_StaleCacheIsIgnored(t *testing.T) {
	verses := chapter(repeatText(8, "text.")...)
	cache := newMockCache()
	cache.plans[1] = []domain.ChunkPlan{{Chapter: 1, VerseNumbers: seq(1, 7)}}

	plans, err := NewBuilder(WithCache(cache)).Build(context.Background(), "Genesis", 1, verses)

	require.NoError(t, err)
	assert.Equal(t, domain.ChunkMethodHeuristic, plans[0].Method)
	assert.NoError(t, ValidatePlans(plans, verses))
}

func TestBuilder_CachedTextIsRegenerated(t *testing.T) {
	verses := chapter("One.", "Two.", "Three.")
	cache := newMockCache()
	cache.plans[1] = []domain.ChunkPlan{{Chapter: 1, VerseNumbers: []int{1, 2, 3}, CombinedText: "stale text"}}

	plans, err := NewBuilder(WithCache(cache)).Build(context.Background(), "Genesis", 1, verses)

	require.NoError(t, err)
	assert.Equal(t, domain.ChunkMethodCache, plans[0].Method)
	assert.Equal(t, "One. Two. Three.", plans[0].CombinedText)
}

func TestBuilder_FallsBackOnSemanticFailure(t *testing.T) {
	verses := chapter(repeatText(12, "text.")...)
	cache := newMockCache()
	llm := &mockLLM{reply: "not json"}
	b := NewBuilder(WithSuggester(NewSuggester(llm, &mockPrompts{}, "")), WithCache(cache))

	plans, err := b.Build(context.Background(), "Genesis", 1, verses)

	require.NoError(t, err)
	assert.Equal(t, domain.ChunkMethodHeuristic, plans[0].Method)
	assert.Equal(t, 0, cache.saved, "heuristic results are not cached")
	assert.NoError(t, ValidatePlans(plans, verses))
}

func TestBuilder_CacheErrorsAreNotFatal(t *testing.T) {
	verses := chapter(repeatText(12, "text.")...)
	cache := newMockCache()
	cache.loadErr = errors.New("disk")
	cache.saveErr = errors.New("disk")
	llm := &mockLLM{reply: suggestReply(seq(1, 12))}
	b := NewBuilder(WithSuggester(NewSuggester(llm, &mockPrompts{}, "")), WithCache(cache))

	plans, err := b.Build(context.Background(), "Genesis", 1, verses)

	require.NoError(t, err)
	assert.Equal(t, []int{8, 4}, []int{len(plans[0].VerseNumbers), len(plans[1].VerseNumbers)})
}

func TestBuilder_CacheOnlySkipsLLM(t *testing.T) {
	verses := chapter(repeatText(12, "text.")...)
	llm := &mockLLM{reply: suggestReply(seq(1, 12))}
	b := NewBuilder(WithSuggester(NewSuggester(llm, &mockPrompts{}, "")), WithCacheOnly(true))

	plans, err := b.Build(context.Background(), "Genesis", 1, verses)

	require.NoError(t, err)
	assert.Equal(t, domain.ChunkMethodHeuristic, plans[0].Method)
	assert.Zero(t, llm.calls)
}

func TestBuilder_ShortChapterSkipsLLM(t *testing.T) {
	verses := chapter("One.", "Two.", "Three.", "Four.", "Five.")
	llm := &mockLLM{reply: suggestReply(seq(1, 5))}
	b := NewBuilder(WithSuggester(NewSuggester(llm, &mockPrompts{}, "")))

	plans, err := b.Build(context.Background(), "Genesis", 1, verses)

	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Zero(t, llm.calls)
}

func TestBuilder_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	llm := &mockLLM{err: context.Canceled}
	b := NewBuilder(WithSuggester(NewSuggester(llm, &mockPrompts{}, "")))

	_, err := b.Build(ctx, "Genesis", 1, chapter(repeatText(12, "text.")...))

	assert.ErrorIs(t, err, context.Canceled)
}

func TestBuilder_EmptyChapter(t *testing.T) {
	plans, err := NewBuilder().Build(context.Background(), "Genesis", 1, nil)

	require.NoError(t, err)
	assert.Empty(t, plans)
}
