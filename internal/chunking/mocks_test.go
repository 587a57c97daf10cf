package chunking

import (
	"context"

	"github.com/custodia-labs/verselens-cli/internal/core/domain"
	"github.com/custodia-labs/verselens-cli/internal/core/ports/driven"
)

// mockLLM implements driven.LLMService for testing.
type mockLLM struct {
	reply string
	err   error
	calls int
	last  []driven.ChatMessage
	opts  driven.ChatOptions
}

func (m *mockLLM) Chat(_ context.Context, messages []driven.ChatMessage, opts driven.ChatOptions) (string, error) {
	m.calls++
	m.last = messages
	m.opts = opts
	return m.reply, m.err
}

func (m *mockLLM) ModelName() string { return "mock" }
func (m *mockLLM) Ping(_ context.Context) error { return nil }
func (m *mockLLM) Close() error { return nil }

// mockPrompts implements driven.PromptStore for testing.
type mockPrompts struct {
	err error
}

func (m *mockPrompts) Load(name string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	return "prompt:" + name, nil
}

func (m *mockPrompts) Reload() {}

// mockCache implements driven.ChunkCache for testing.
type mockCache struct {
	plans   map[int][]domain.ChunkPlan
	loadErr error
	saveErr error
	saved   int
}

func newMockCache() *mockCache {
	return &mockCache{plans: make(map[int][]domain.ChunkPlan)}
}

func (m *mockCache) Load(_ string, chapter int, _ []int) ([]domain.ChunkPlan, bool, error) {
	if m.loadErr != nil {
		return nil, false, m.loadErr
	}
	p, ok := m.plans[chapter]
	return p, ok, nil
}

func (m *mockCache) Save(_ string, chapter int, plans []domain.ChunkPlan) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved++
	m.plans[chapter] = plans
	return nil
}
