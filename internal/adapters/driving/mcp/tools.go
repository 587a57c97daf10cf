package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/verselens-cli/internal/core/domain"
)

// SearchInput is the input schema for the search tool.
type SearchInput struct {
	Query         string  `json:"query" jsonschema:"the free-text query"`
	Limit         int     `json:"limit,omitempty" jsonschema:"maximum number of passages to return (default 10)"`
	VersesPerCard int     `json:"verses_per_card,omitempty" jsonschema:"verses shown per passage (default 3)"`
	Lexical       bool    `json:"lexical,omitempty" jsonschema:"blend fuzzy text similarity into verse scores"`
	LexicalWeight float64 `json:"lexical_weight,omitempty" jsonschema:"weight of the text similarity boost (default 0.15)"`
	Diversity     float64 `json:"diversity,omitempty" jsonschema:"MMR lambda in (0,1]; lower values favour variety, 0 uses the configured default, -1 disables"`
	Expand        bool    `json:"expand,omitempty" jsonschema:"average the query with an LLM restatement of it"`
	Book          string  `json:"book,omitempty" jsonschema:"restrict results to one book, e.g. Psalms"`
	Work          string  `json:"work,omitempty" jsonschema:"restrict results to one work id"`
	SeqMin        int     `json:"seq_min,omitempty" jsonschema:"lowest canonical book number (Genesis is 1)"`
	SeqMax        int     `json:"seq_max,omitempty" jsonschema:"highest canonical book number (Revelation is 66)"`
	Testament     string  `json:"testament,omitempty" jsonschema:"old or new"`
	Pin           string  `json:"pin,omitempty" jsonschema:"verse id whose passage must come first"`
	Summary       bool    `json:"summary,omitempty" jsonschema:"add a short summary of the results"`
}

// SimilarInput is the input schema for the similar tool.
type SimilarInput struct {
	VerseID       string  `json:"verse_id" jsonschema:"id of the source verse, as returned by the verse tool"`
	Limit         int     `json:"limit,omitempty" jsonschema:"maximum number of passages to return (default 10)"`
	VersesPerCard int     `json:"verses_per_card,omitempty" jsonschema:"verses shown per passage (default 3)"`
	Exclude       string  `json:"exclude,omitempty" jsonschema:"comma-separated: chapter, book, work"`
	Lexical       bool    `json:"lexical,omitempty" jsonschema:"blend text similarity to the source verse"`
	Diversity     float64 `json:"diversity,omitempty" jsonschema:"MMR lambda in (0,1]; 0 uses the configured default, -1 disables"`
	Book          string  `json:"book,omitempty" jsonschema:"restrict results to one book"`
	Work          string  `json:"work,omitempty" jsonschema:"restrict results to one work id"`
	Testament     string  `json:"testament,omitempty" jsonschema:"old or new"`
}

// LexicalInput is the input schema for the lexical tool.
type LexicalInput struct {
	Query     string `json:"query" jsonschema:"words or a phrase to match"`
	Target    string `json:"target,omitempty" jsonschema:"verses (default) or chapters"`
	Limit     int    `json:"limit,omitempty" jsonschema:"maximum number of matches (default 10)"`
	Book      string `json:"book,omitempty" jsonschema:"restrict matches to one book"`
	Work      string `json:"work,omitempty" jsonschema:"restrict matches to one work id"`
	Testament string `json:"testament,omitempty" jsonschema:"old or new"`
}

// VerseInput is the input schema for the verse tool.
type VerseInput struct {
	Book    string `json:"book" jsonschema:"book name, e.g. Genesis or 1 Corinthians"`
	Chapter int    `json:"chapter" jsonschema:"chapter number"`
	Verse   int    `json:"verse" jsonschema:"verse number"`
	Work    string `json:"work,omitempty" jsonschema:"work id when several works are loaded"`
}

// SearchOutput is the output schema for the search and similar tools.
type SearchOutput struct {
	Query   string       `json:"query"`
	Summary string       `json:"summary,omitempty"`
	Cards   []CardOutput `json:"cards"`
	Count   int          `json:"count"`
}

// CardOutput is one ranked passage.
type CardOutput struct {
	ChunkID    string        `json:"chunk_id"`
	Book       string        `json:"book"`
	Chapters   []int         `json:"chapters"`
	Score      float64       `json:"score"`
	Similarity float64       `json:"similarity"`
	Pinned     bool          `json:"pinned,omitempty"`
	Verses     []VerseOutput `json:"verses"`
}

// VerseOutput is a verse, or a chapter for chapter-targeted lexical search.
type VerseOutput struct {
	ID        string  `json:"id"`
	Reference string  `json:"reference"`
	Text      string  `json:"text,omitempty"`
	Score     float64 `json:"score,omitempty"`
	Stage     string  `json:"stage,omitempty"`
}

// LexicalOutput is the output schema for the lexical tool.
type LexicalOutput struct {
	Hits  []VerseOutput `json:"hits"`
	Count int           `json:"count"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search",
		Description: "Find passages related to a free-text query by meaning, optionally blended with text similarity",
	}, s.handleSearch)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "similar",
		Description: "Find passages similar to the passage containing a verse",
	}, s.handleSimilar)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "lexical",
		Description: "Fuzzy text search over verses or chapter titles, with phrase and word fallbacks",
	}, s.handleLexical)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "verse",
		Description: "Look up a verse by reference and return its id and text",
	}, s.handleVerse)
}

// handleSearch handles the search tool invocation.
func (s *Server) handleSearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	scope, err := domain.NewScope(input.Book, input.Work, input.SeqMin, input.SeqMax, input.Testament)
	if err != nil {
		return nil, SearchOutput{}, err
	}

	opts := domain.SearchOptions{
		Limit:         input.Limit,
		VersesPerCard: input.VersesPerCard,
		Lexical:       input.Lexical,
		LexicalWeight: input.LexicalWeight,
		Expand:        input.Expand,
		Diversity:     input.Diversity,
		PinVerseID:    input.Pin,
		Scope:         scope,
	}
	result, err := s.ports.Search.Search(ctx, input.Query, opts)
	if err != nil {
		return nil, SearchOutput{}, err
	}
	if input.Summary {
		result.Summary = s.ports.Search.Summarise(ctx, result.Query, result.Cards)
	}
	return nil, toSearchOutput(result), nil
}

// handleSimilar handles the similar tool invocation.
func (s *Server) handleSimilar(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SimilarInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	scope, err := domain.NewScope(input.Book, input.Work, 0, 0, input.Testament)
	if err != nil {
		return nil, SearchOutput{}, err
	}
	exclude, err := domain.ParseExclusions(input.Exclude)
	if err != nil {
		return nil, SearchOutput{}, err
	}

	opts := domain.SearchOptions{
		Limit:         input.Limit,
		VersesPerCard: input.VersesPerCard,
		Lexical:       input.Lexical,
		Diversity:     input.Diversity,
		Scope:         scope,
		Exclude:       exclude,
	}
	result, err := s.ports.Search.Similar(ctx, input.VerseID, opts)
	if err != nil {
		return nil, SearchOutput{}, err
	}
	return nil, toSearchOutput(result), nil
}

// handleLexical handles the lexical tool invocation.
func (s *Server) handleLexical(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input LexicalInput,
) (*mcp.CallToolResult, LexicalOutput, error) {
	scope, err := domain.NewScope(input.Book, input.Work, 0, 0, input.Testament)
	if err != nil {
		return nil, LexicalOutput{}, err
	}

	hits, err := s.ports.Search.Lexical(ctx, input.Query, domain.LexicalOptions{
		Target: domain.LexicalTarget(input.Target),
		Limit:  input.Limit,
		Scope:  scope,
	})
	if err != nil {
		return nil, LexicalOutput{}, err
	}

	output := LexicalOutput{Hits: make([]VerseOutput, len(hits)), Count: len(hits)}
	for i, h := range hits {
		out := VerseOutput{Reference: h.Reference, Score: h.Score, Stage: string(h.Stage)}
		switch {
		case h.Verse != nil:
			out.ID = h.Verse.ID
			out.Text = h.Verse.Text
		case h.Chapter != nil:
			out.ID = h.Chapter.ID
		}
		output.Hits[i] = out
	}
	return nil, output, nil
}

// handleVerse handles the verse tool invocation.
func (s *Server) handleVerse(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input VerseInput,
) (*mcp.CallToolResult, VerseOutput, error) {
	v, err := s.ports.Search.Verse(ctx, input.Work, input.Book, input.Chapter, input.Verse)
	if err != nil {
		return nil, VerseOutput{}, err
	}
	return nil, VerseOutput{ID: v.ID, Reference: v.Reference(), Text: v.Text}, nil
}

func toSearchOutput(result *domain.SearchResult) SearchOutput {
	output := SearchOutput{
		Query:   result.Query,
		Summary: result.Summary,
		Cards:   make([]CardOutput, len(result.Cards)),
		Count:   len(result.Cards),
	}
	for i := range result.Cards {
		c := &result.Cards[i]
		card := CardOutput{
			ChunkID:    c.Chunk.ID,
			Book:       c.Chunk.BookTitle,
			Chapters:   c.Chunk.Chapters,
			Score:      c.Score,
			Similarity: c.Similarity,
			Pinned:     c.Pinned,
			Verses:     make([]VerseOutput, len(c.Verses)),
		}
		for j, v := range c.Verses {
			card.Verses[j] = VerseOutput{
				ID:        v.Verse.ID,
				Reference: v.Verse.Reference(),
				Text:      v.Verse.Text,
				Score:     v.Score,
			}
		}
		output.Cards[i] = card
	}
	return output
}
