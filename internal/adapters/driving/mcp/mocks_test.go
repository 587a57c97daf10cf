package mcp

import (
	"context"

	"github.com/custodia-labs/verselens-cli/internal/core/domain"
	"github.com/custodia-labs/verselens-cli/internal/core/ports/driving"
)

// Ensure mockSearchService implements the interface.
var _ driving.SearchService = (*mockSearchService)(nil)

// mockSearchService is a mock implementation of driving.SearchService.
// It records the last request it received.
type mockSearchService struct {
	result  *domain.SearchResult
	hits    []domain.LexicalHit
	verse   *domain.VerseInfo
	summary string
	err     error

	query       string
	verseID     string
	opts        domain.SearchOptions
	lexOpts     domain.LexicalOptions
	summarised  int
	verseLookup []any
}

func (m *mockSearchService) Search(_ context.Context, query string, opts domain.SearchOptions) (*domain.SearchResult, error) {
	m.query, m.opts = query, opts
	if m.err != nil {
		return nil, m.err
	}
	return m.searchResult(query), nil
}

func (m *mockSearchService) Similar(_ context.Context, verseID string, opts domain.SearchOptions) (*domain.SearchResult, error) {
	m.verseID, m.opts = verseID, opts
	if m.err != nil {
		return nil, m.err
	}
	return m.searchResult("Genesis 1:1"), nil
}

func (m *mockSearchService) Lexical(_ context.Context, query string, opts domain.LexicalOptions) ([]domain.LexicalHit, error) {
	m.query, m.lexOpts = query, opts
	return m.hits, m.err
}

func (m *mockSearchService) Summarise(_ context.Context, _ string, _ []domain.Card) string {
	m.summarised++
	return m.summary
}

func (m *mockSearchService) Verse(_ context.Context, workID, book string, chapter, verse int) (*domain.VerseInfo, error) {
	m.verseLookup = []any{workID, book, chapter, verse}
	if m.err != nil {
		return nil, m.err
	}
	if m.verse == nil {
		return nil, domain.ErrNotFound
	}
	return m.verse, nil
}

func (m *mockSearchService) searchResult(query string) *domain.SearchResult {
	if m.result == nil {
		return &domain.SearchResult{Query: query, Cards: []domain.Card{}}
	}
	r := *m.result
	r.Query = query
	return &r
}

func testVerse(id string, chapter, number int, text string) domain.VerseInfo {
	return domain.VerseInfo{
		Verse:     domain.Verse{ID: id, ChunkID: "chunk-1", Chapter: chapter, Number: number, Text: text},
		BookTitle: "Genesis",
		BookSeq:   1,
	}
}

func testResult() *domain.SearchResult {
	return &domain.SearchResult{Cards: []domain.Card{{
		Chunk: domain.ChunkInfo{
			Chunk:     domain.Chunk{ID: "chunk-1", Chapters: []int{1}},
			BookTitle: "Genesis",
			BookSeq:   1,
		},
		Similarity: 0.9,
		Score:      0.95,
		Pinned:     true,
		Verses: []domain.ScoredVerse{
			{Verse: testVerse("v1", 1, 1, "In the beginning God created the heaven and the earth."), Score: 0.95},
			{Verse: testVerse("v3", 1, 3, "And God said, Let there be light: and there was light."), Score: 0.9},
		},
	}}}
}
