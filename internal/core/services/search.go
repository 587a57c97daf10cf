package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/custodia-labs/verselens-cli/internal/core/domain"
	"github.com/custodia-labs/verselens-cli/internal/core/ports/driven"
	"github.com/custodia-labs/verselens-cli/internal/core/ports/driving"
	"github.com/custodia-labs/verselens-cli/internal/logger"
	"github.com/custodia-labs/verselens-cli/internal/similarity"
)

// Ensure SearchService implements the interface.
var _ driving.SearchService = (*SearchService)(nil)

// DefaultEmbeddingCacheSize is the number of query embeddings kept in memory.
const DefaultEmbeddingCacheSize = 256

// SearchConfig wires the retrieval engine.
type SearchConfig struct {
	Reader   driven.CorpusReader
	Index    driven.SearchIndex
	Embedder driven.EmbeddingService

	// LLM and Prompts enable query expansion and summaries. Both are optional.
	LLM     driven.LLMService
	Prompts driven.PromptStore

	// CacheSize bounds the query-embedding memo. Zero uses DefaultEmbeddingCacheSize.
	CacheSize int

	// Defaults supplies the configured limit, lexical weight and diversity.
	Defaults domain.SearchSettings
}

// SearchService ranks chunk cards for queries and source verses.
// It holds no per-request state and is safe for concurrent use.
type SearchService struct {
	reader   driven.CorpusReader
	index    driven.SearchIndex
	embedder driven.EmbeddingService
	llm      driven.LLMService
	prompts  driven.PromptStore
	defaults domain.SearchSettings

	embeddings *lru.Cache[string, []float32]
}

// NewSearchService creates a new search service.
func NewSearchService(cfg SearchConfig) (*SearchService, error) {
	size := cfg.CacheSize
	if size <= 0 {
		size = DefaultEmbeddingCacheSize
	}
	cache, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, fmt.Errorf("embedding cache: %w", err)
	}
	return &SearchService{
		reader:     cfg.Reader,
		index:      cfg.Index,
		embedder:   cfg.Embedder,
		llm:        cfg.LLM,
		prompts:    cfg.Prompts,
		defaults:   cfg.Defaults,
		embeddings: cache,
	}, nil
}

// Search embeds the query and ranks chunk cards by similarity.
func (s *SearchService) Search(ctx context.Context, query string, opts domain.SearchOptions) (*domain.SearchResult, error) {
	logger.Section("Search")
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: empty query", domain.ErrInvalidInput)
	}
	if err := s.ready(); err != nil {
		return nil, err
	}
	opts = s.withDefaults(opts)
	logger.Debug("query=%q limit=%d lexical=%t expand=%t diversity=%.2f scope=%+v",
		query, opts.Limit, opts.Lexical, opts.Expand, opts.Diversity, opts.Scope)

	vec, err := s.queryVector(ctx, query, opts.Expand)
	if err != nil {
		return nil, err
	}

	cards, err := s.rank(ctx, request{
		vec:     vec,
		lexText: query,
		opts:    opts,
	})
	if err != nil {
		return nil, err
	}
	logger.Info("%d cards for %q", len(cards), query)
	return &domain.SearchResult{Query: query, Cards: cards}, nil
}

// Similar ranks cards against the stored embedding of the chunk that owns
// verseID. The source chunk itself is never returned.
func (s *SearchService) Similar(ctx context.Context, verseID string, opts domain.SearchOptions) (*domain.SearchResult, error) {
	logger.Section("Similar")
	if strings.TrimSpace(verseID) == "" {
		return nil, fmt.Errorf("%w: verse id is required", domain.ErrInvalidInput)
	}
	if s.reader == nil || s.index == nil {
		return nil, domain.ErrStoreUnavailable
	}
	opts = s.withDefaults(opts)

	source, err := s.reader.Verse(ctx, verseID)
	if err != nil {
		return nil, fmt.Errorf("source verse %s: %w", verseID, err)
	}
	chunks, err := s.reader.Chunks(ctx, []string{source.ChunkID})
	if err != nil {
		return nil, fmt.Errorf("source chunk: %w", err)
	}
	if len(chunks) == 0 || len(chunks[0].Embedding) == 0 {
		return nil, fmt.Errorf("source chunk of %s: %w", source.Reference(), domain.ErrNotFound)
	}
	origin := chunks[0]
	logger.Debug("similar to %s (chunk %s) exclude=%+v", source.Reference(), origin.ID, opts.Exclude)

	cards, err := s.rank(ctx, request{
		vec:     origin.Embedding,
		lexText: source.Text,
		opts:    opts,
		exclude: excluder(*source, origin.ID, opts.Exclude),
	})
	if err != nil {
		return nil, err
	}
	return &domain.SearchResult{Query: source.Reference(), Cards: cards}, nil
}

// excluder drops the source chunk and, as requested, chunks that share its
// chapter, book or work.
func excluder(source domain.VerseInfo, originID string, ex domain.Exclusions) func(domain.ChunkInfo) bool {
	return func(c domain.ChunkInfo) bool {
		switch {
		case c.ID == originID:
			return true
		case ex.SameWork && c.WorkID == source.WorkID:
			return true
		case ex.SameBook && c.BookID == source.BookID:
			return true
		case ex.SameChapter && c.BookID == source.BookID && containsInt(c.Chapters, source.Chapter):
			return true
		}
		return false
	}
}

func containsInt(list []int, n int) bool {
	for _, v := range list {
		if v == n {
			return true
		}
	}
	return false
}

// Verse resolves a reference to a stored verse.
func (s *SearchService) Verse(ctx context.Context, workID, book string, chapter, verse int) (*domain.VerseInfo, error) {
	if s.reader == nil {
		return nil, domain.ErrStoreUnavailable
	}
	if strings.TrimSpace(book) == "" || chapter < 0 || verse < 0 {
		return nil, fmt.Errorf("%w: reference needs a book, chapter and verse", domain.ErrInvalidInput)
	}
	v, err := s.reader.VerseByReference(ctx, workID, book, chapter, verse)
	if err != nil {
		return nil, fmt.Errorf("%s %d:%d: %w", book, chapter, verse, err)
	}
	return v, nil
}

// Summarise asks the LLM to describe a result set. It never fails: any error
// is logged and yields an empty summary.
func (s *SearchService) Summarise(ctx context.Context, query string, cards []domain.Card) string {
	if s.llm == nil || s.prompts == nil || len(cards) == 0 {
		return ""
	}
	template, err := s.prompts.Load(driven.PromptSummarise)
	if err != nil {
		logger.Warn("summary skipped: %v", err)
		return ""
	}

	var b strings.Builder
	for _, c := range cards {
		for _, v := range c.Verses {
			fmt.Fprintf(&b, "%s %s\n", v.Verse.Reference(), v.Verse.Text)
		}
	}

	reply, err := driven.Complete(ctx, s.llm, fmt.Sprintf(template, query), b.String(), driven.ChatOptions{})
	if err != nil {
		logger.Warn("summary failed: %v", err)
		return ""
	}
	return strings.TrimSpace(reply)
}

// withDefaults fills unset options from the configured defaults, then from
// the built-in ones.
func (s *SearchService) withDefaults(opts domain.SearchOptions) domain.SearchOptions {
	if opts.Limit <= 0 {
		opts.Limit = s.defaults.Limit
	}
	if opts.LexicalWeight <= 0 {
		opts.LexicalWeight = s.defaults.LexicalWeight
	}
	if opts.Diversity == 0 {
		opts.Diversity = s.defaults.Diversity
	}
	return opts.WithDefaults()
}

func (s *SearchService) ready() error {
	if s.reader == nil || s.index == nil {
		return domain.ErrStoreUnavailable
	}
	if s.embedder == nil {
		return domain.ErrEmbeddingUnavailable
	}
	return nil
}

// queryVector embeds the query, averaging in an LLM restatement when asked.
// Expansion is best-effort and falls back to the plain query embedding.
func (s *SearchService) queryVector(ctx context.Context, query string, expand bool) ([]float32, error) {
	vec, err := s.embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if !expand {
		return vec, nil
	}

	restated, err := s.expand(ctx, query)
	if err != nil {
		logger.Warn("query expansion failed, using the plain query: %v", err)
		return vec, nil
	}
	logger.Debug("expanded query: %q", restated)

	extra, err := s.embed(ctx, restated)
	if err != nil {
		logger.Warn("expanded query embedding failed, using the plain query: %v", err)
		return vec, nil
	}
	return similarity.Average(vec, extra), nil
}

func (s *SearchService) expand(ctx context.Context, query string) (string, error) {
	if s.llm == nil || s.prompts == nil {
		return "", domain.ErrLLMUnavailable
	}
	system, err := s.prompts.Load(driven.PromptQueryExpand)
	if err != nil {
		return "", err
	}
	reply, err := driven.Complete(ctx, s.llm, system, query, driven.ChatOptions{})
	if err != nil {
		return "", err
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return "", errors.New("empty expansion")
	}
	return reply, nil
}

// embed memoizes query embeddings per model.
func (s *SearchService) embed(ctx context.Context, text string) ([]float32, error) {
	key := s.embedder.ModelName() + "\x00" + text
	if vec, ok := s.embeddings.Get(key); ok {
		return vec, nil
	}
	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if len(vec) == 0 {
		return nil, errors.New("empty embedding")
	}
	s.embeddings.Add(key, vec)
	return vec, nil
}
