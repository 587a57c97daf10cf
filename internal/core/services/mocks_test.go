package services

import (
	"context"
	"strings"
	"sync"

	"github.com/custodia-labs/verselens-cli/internal/core/ports/driven"
)

// mockEmbeddingService implements driven.EmbeddingService for testing.
// Texts listed in vectors get that vector; any other text gets a vector
// derived from its first letter so that results are deterministic.
type mockEmbeddingService struct {
	mu      sync.Mutex
	dims    int
	vectors map[string][]float32
	failOn  func(texts []string) error
	batches int
	texts   int
}

func newMockEmbedding() *mockEmbeddingService {
	return &mockEmbeddingService{dims: 3, vectors: make(map[string][]float32)}
}

func (m *mockEmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := m.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

func (m *mockEmbeddingService) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOn != nil {
		if err := m.failOn(texts); err != nil {
			return nil, err
		}
	}
	m.batches++
	m.texts += len(texts)
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if v, ok := m.vectors[t]; ok {
			out[i] = v
			continue
		}
		v := make([]float32, m.dims)
		v[0] = 1
		if t != "" {
			v[1] = float32(strings.ToLower(t)[0]-'a') / 26
		}
		out[i] = v
	}
	return out, nil
}

func (m *mockEmbeddingService) Dimensions() int { return m.dims }
func (m *mockEmbeddingService) ModelName() string { return "mock-embed" }
func (m *mockEmbeddingService) Ping(context.Context) error { return nil }
func (m *mockEmbeddingService) Close() error { return nil }

func (m *mockEmbeddingService) batchCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.batches
}

// mockLLMService implements driven.LLMService for testing.
// reply picks the answer from the last user message.
type mockLLMService struct {
	mu    sync.Mutex
	reply func(user string) (string, error)
	calls []driven.ChatMessage
}

func (m *mockLLMService) Chat(_ context.Context, messages []driven.ChatMessage, _ driven.ChatOptions) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user := messages[len(messages)-1]
	m.calls = append(m.calls, user)
	if m.reply == nil {
		return "", nil
	}
	return m.reply(user.Content)
}

func (m *mockLLMService) ModelName() string { return "mock-chat" }
func (m *mockLLMService) Ping(context.Context) error { return nil }
func (m *mockLLMService) Close() error { return nil }

func (m *mockLLMService) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// mockPrompts implements driven.PromptStore for testing.
type mockPrompts struct{}

func (mockPrompts) Load(name string) (string, error) {
	if name == driven.PromptSummarise {
		return "Summarise results for %s.", nil
	}
	return "prompt:" + name, nil
}

func (mockPrompts) Reload() {}
