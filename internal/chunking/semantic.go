package chunking

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/custodia-labs/verselens-cli/internal/core/domain"
	"github.com/custodia-labs/verselens-cli/internal/core/ports/driven"
)

// chapterPayload is the user turn sent with the chunk_suggest prompt.
type chapterPayload struct {
	Book      string         `json:"book"`
	Chapter   int            `json:"chapter"`
	MinVerses int            `json:"min_verses"`
	MaxVerses int            `json:"max_verses"`
	Verses    []payloadVerse `json:"verses"`
}

type payloadVerse struct {
	Number int    `json:"number"`
	Text   string `json:"text"`
}

// suggestion is the only accepted response shape.
type suggestion struct {
	Chunks *[]struct {
		VerseNumbers *[]int `json:"verse_numbers"`
	} `json:"chunks"`
}

// Suggester asks an LLM for chunk boundaries over one chapter.
type Suggester struct {
	llm     driven.LLMService
	prompts driven.PromptStore
	model   string
}

// NewSuggester creates a Suggester. model overrides the LLM's default model
// when non-empty.
func NewSuggester(llm driven.LLMService, prompts driven.PromptStore, model string) *Suggester {
	return &Suggester{llm: llm, prompts: prompts, model: model}
}

// Suggest returns normalized, validated groups for the chapter.
// Any transport, parse or validation failure is returned as an error; the
// caller is expected to fall back to Heuristic.
func (s *Suggester) Suggest(ctx context.Context, book string, chapter int, verses []domain.RawVerse) ([][]int, error) {
	system, err := s.prompts.Load(driven.PromptChunkSuggest)
	if err != nil {
		return nil, fmt.Errorf("load prompt: %w", err)
	}

	payload := chapterPayload{
		Book:      book,
		Chapter:   chapter,
		MinVerses: domain.MinChunkVerses,
		MaxVerses: domain.MaxChunkVerses,
		Verses:    make([]payloadVerse, len(verses)),
	}
	numbers := make([]int, len(verses))
	for i, v := range verses {
		payload.Verses[i] = payloadVerse{Number: v.Verse, Text: v.Text}
		numbers[i] = v.Verse
	}
	user, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode chapter: %w", err)
	}

	reply, err := driven.Complete(ctx, s.llm, system, string(user), driven.ChatOptions{
		Model:       s.model,
		Temperature: 0,
		JSON:        true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrLLMUnavailable, err)
	}

	candidates, err := ParseSuggestion(reply)
	if err != nil {
		return nil, err
	}

	groups := Normalize(Sanitize(candidates, numbers))
	if err := Validate(groups, numbers); err != nil {
		return nil, err
	}
	return groups, nil
}

// ParseSuggestion decodes a reply of the form
// {"chunks":[{"verse_numbers":[1,2,3]}, ...]}. A surrounding markdown code
// fence is tolerated; any other shape fails with domain.ErrInvalidChunking.
func ParseSuggestion(reply string) ([][]int, error) {
	body := stripFence(reply)
	if body == "" {
		return nil, fmt.Errorf("%w: empty reply", domain.ErrInvalidChunking)
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(body)))
	var s suggestion
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidChunking, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data after JSON object", domain.ErrInvalidChunking)
	}
	if s.Chunks == nil {
		return nil, fmt.Errorf("%w: missing chunks array", domain.ErrInvalidChunking)
	}
	if len(*s.Chunks) == 0 {
		return nil, fmt.Errorf("%w: no chunks", domain.ErrInvalidChunking)
	}

	out := make([][]int, 0, len(*s.Chunks))
	for i, c := range *s.Chunks {
		if c.VerseNumbers == nil {
			return nil, fmt.Errorf("%w: chunk %d has no verse_numbers", domain.ErrInvalidChunking, i)
		}
		out = append(out, slices.Clone(*c.VerseNumbers))
	}
	return out, nil
}

// Sanitize drops verse numbers that do not exist in the chapter, removes
// duplicates (a verse stays in the first group that names it), sorts each
// group ascending, drops empty groups and orders groups by first verse.
func Sanitize(candidates [][]int, verseNumbers []int) [][]int {
	exists := make(map[int]bool, len(verseNumbers))
	for _, n := range verseNumbers {
		exists[n] = true
	}
	taken := make(map[int]bool, len(verseNumbers))

	var out [][]int
	for _, c := range candidates {
		var g []int
		for _, n := range c {
			if !exists[n] || taken[n] {
				continue
			}
			taken[n] = true
			g = append(g, n)
		}
		if len(g) == 0 {
			continue
		}
		slices.Sort(g)
		out = append(out, g)
	}

	slices.SortStableFunc(out, func(a, b []int) int { return a[0] - b[0] })
	return out
}

func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		return ""
	}
	s = strings.TrimSpace(s)
	return strings.TrimSpace(strings.TrimSuffix(s, "```"))
}

// IsFallback reports whether err should route a chapter to the heuristic
// rather than fail the book. Only context cancellation is not.
func IsFallback(err error) bool {
	return err != nil && !errors.Is(err, context.Canceled)
}
