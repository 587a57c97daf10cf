package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/verselens-cli/internal/core/domain"
	"github.com/custodia-labs/verselens-cli/internal/core/ports/driving"
)

// Ensure mocks implement the interfaces.
var (
	_ driving.SearchService   = (*mockSearchService)(nil)
	_ driving.IngestService   = (*mockIngestService)(nil)
	_ driving.SettingsService = (*mockSettingsService)(nil)
)

type mockSearchService struct {
	cards   []domain.Card
	hits    []domain.LexicalHit
	verse   *domain.VerseInfo
	summary string
	err     error

	query      string
	verseID    string
	opts       domain.SearchOptions
	lexOpts    domain.LexicalOptions
	summarised int
	lookup     []any
}

func (m *mockSearchService) Search(_ context.Context, query string, opts domain.SearchOptions) (*domain.SearchResult, error) {
	m.query, m.opts = query, opts
	if m.err != nil {
		return nil, m.err
	}
	return &domain.SearchResult{Query: query, Cards: m.cards}, nil
}

func (m *mockSearchService) Similar(_ context.Context, verseID string, opts domain.SearchOptions) (*domain.SearchResult, error) {
	m.verseID, m.opts = verseID, opts
	if m.err != nil {
		return nil, m.err
	}
	return &domain.SearchResult{Query: "Genesis 1:1", Cards: m.cards}, nil
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
	m.lookup = []any{workID, book, chapter, verse}
	if m.err != nil {
		return nil, m.err
	}
	return m.verse, nil
}

type mockIngestService struct {
	report *driving.IngestReport
	err    error

	calls []driving.IngestOptions
}

func (m *mockIngestService) Ingest(_ context.Context, opts driving.IngestOptions) (*driving.IngestReport, error) {
	m.calls = append(m.calls, opts)
	if m.err != nil {
		return nil, m.err
	}
	return m.report, nil
}

type mockSettingsService struct {
	values      map[string]string
	keys        []string
	validateErr error
	setErr      error
}

func newMockSettings() *mockSettingsService {
	return &mockSettingsService{
		keys: []string{"storage.backend", "embedding.provider", "embedding.api_key", "search.limit"},
		values: map[string]string{
			"storage.backend":    "sqlite",
			"embedding.provider": "openai",
			"embedding.api_key":  "sk-abcdefghijkl1234",
			"search.limit":       "10",
		},
	}
}

func (m *mockSettingsService) Get() (*domain.AppSettings, error) {
	s := domain.DefaultAppSettings()
	return &s, nil
}

func (m *mockSettingsService) Set(key, value string) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.values[key] = value
	return nil
}

func (m *mockSettingsService) Value(key string) (string, error) {
	v, ok := m.values[key]
	if !ok {
		return "", domain.ErrInvalidInput
	}
	return v, nil
}

func (m *mockSettingsService) Keys() []string { return m.keys }

func (m *mockSettingsService) Validate() error { return m.validateErr }

func (m *mockSettingsService) Path() string { return "/home/test/.verselens/config.toml" }

// useServices injects mocks and counts how often each lazy port is opened.
func useServices(t *testing.T, settings driving.SettingsService, ingest driving.IngestService, search driving.SearchService) *int {
	t.Helper()
	opened := 0
	SetServices(Services{
		Settings: settings,
		Ingest: func(context.Context) (driving.IngestService, error) {
			opened++
			return ingest, nil
		},
		Search: func(context.Context) (driving.SearchService, error) {
			opened++
			return search, nil
		},
	})
	t.Cleanup(func() { SetServices(Services{}) })
	return &opened
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

// executeCommand runs the root command with args and returns its combined output.
func executeCommand(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetIn(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func testVerse(id, book string, seq, chapter, number int, text string) domain.VerseInfo {
	return domain.VerseInfo{
		Verse:     domain.Verse{ID: id, ChunkID: "c-" + id, Chapter: chapter, Number: number, Text: text},
		BookTitle: book,
		BookSeq:   seq,
	}
}

func testCards() []domain.Card {
	v := testVerse("v1", "Genesis", 1, 1, 1, "In the beginning God created the heaven and the earth.")
	return []domain.Card{{
		Chunk:  domain.ChunkInfo{Chunk: domain.Chunk{ID: "c1", Chapters: []int{1, 2}}, BookTitle: "Genesis", BookSeq: 1},
		Score:  0.912,
		Pinned: true,
		Verses: []domain.ScoredVerse{{Verse: v, Score: 0.9}},
	}}
}

func requireContainsAll(t *testing.T, out string, parts ...string) {
	t.Helper()
	for _, p := range parts {
		require.Contains(t, out, p)
	}
}
