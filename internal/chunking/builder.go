package chunking

import (
	"context"
	"fmt"

	"github.com/custodia-labs/verselens-cli/internal/core/domain"
	"github.com/custodia-labs/verselens-cli/internal/core/ports/driven"
	"github.com/custodia-labs/verselens-cli/internal/logger"
)

// Builder obtains chunk plans for one chapter at a time.
type Builder struct {
	suggester *Suggester
	cache     driven.ChunkCache
	cacheOnly bool
}

// Option configures a Builder.
type Option func(*Builder)

// WithSuggester enables the semantic path.
func WithSuggester(s *Suggester) Option {
	return func(b *Builder) {
		b.suggester = s
	}
}

// WithCache enables reading and writing the chunk cache.
func WithCache(c driven.ChunkCache) Option {
	return func(b *Builder) {
		b.cache = c
	}
}

// WithCacheOnly skips the semantic path; chapters missing from the cache use
// the heuristic.
func WithCacheOnly(on bool) Option {
	return func(b *Builder) {
		b.cacheOnly = on
	}
}

// NewBuilder creates a Builder. With no options it only uses the heuristic.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build returns validated chunk plans covering every verse of the chapter.
//
// Chapter 0 (a book introduction) is always a single plan. Otherwise the
// cache is consulted first, then the semantic path, then the heuristic.
// Semantic failures are logged and never abort the chapter. The only error
// returned is context cancellation or a failed final validation, which means
// the chapter itself is malformed (for example duplicate verse numbers).
func (b *Builder) Build(ctx context.Context, book string, chapter int, verses []domain.RawVerse) ([]domain.ChunkPlan, error) {
	if len(verses) == 0 {
		return nil, nil
	}
	plans, err := b.build(ctx, book, chapter, verses)
	if err != nil {
		return nil, err
	}
	if err := ValidatePlans(plans, verses); err != nil {
		return nil, fmt.Errorf("chunking %s: %w", domain.ChapterTitle(book, chapter), err)
	}
	return plans, nil
}

func (b *Builder) build(ctx context.Context, book string, chapter int, verses []domain.RawVerse) ([]domain.ChunkPlan, error) {
	if chapter == 0 {
		return Plans(0, [][]int{verseNumbers(verses)}, verses, domain.ChunkMethodIntro), nil
	}

	numbers := verseNumbers(verses)

	if b.cache != nil {
		plans, ok, err := b.cache.Load(book, chapter, numbers)
		switch {
		case err != nil:
			logger.Warn("chunk cache read failed for %s: %v", domain.ChapterTitle(book, chapter), err)
		case ok:
			groups := make([][]int, len(plans))
			for i, p := range plans {
				groups[i] = p.VerseNumbers
			}
			if Validate(groups, numbers) == nil {
				return Plans(chapter, groups, verses, domain.ChunkMethodCache), nil
			}
			logger.Debug("stale chunk cache for %s", domain.ChapterTitle(book, chapter))
		}
	}

	// A chapter shorter than two chunks has only one valid grouping.
	if b.suggester != nil && !b.cacheOnly && len(verses) >= 2*domain.MinChunkVerses {
		groups, err := b.suggester.Suggest(ctx, book, chapter, verses)
		if err == nil {
			plans := Plans(chapter, groups, verses, domain.ChunkMethodSemantic)
			b.save(book, chapter, plans)
			return plans, nil
		}
		if !IsFallback(err) {
			return nil, err
		}
		logger.Warn("semantic chunking failed for %s, using heuristic: %v", domain.ChapterTitle(book, chapter), err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return Plans(chapter, Heuristic(verses), verses, domain.ChunkMethodHeuristic), nil
}

func (b *Builder) save(book string, chapter int, plans []domain.ChunkPlan) {
	if b.cache == nil {
		return
	}
	if err := b.cache.Save(book, chapter, plans); err != nil {
		logger.Warn("chunk cache write failed for %s: %v", domain.ChapterTitle(book, chapter), err)
	}
}

func verseNumbers(verses []domain.RawVerse) []int {
	nums := make([]int, len(verses))
	for i, v := range verses {
		nums[i] = v.Verse
	}
	return nums
}
