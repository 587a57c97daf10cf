package driven

import "context"

// LLMService provides chat completions.
// It backs three features: chunk-boundary suggestions, query expansion and
// result summaries. All three treat the output as untrusted text.
//
// Implementations include:
//   - OpenAI (gpt-4o-mini)
//   - Anthropic (Claude)
//   - Ollama (local models)
type LLMService interface {
	// Chat conducts a conversation and returns the assistant reply.
	Chat(ctx context.Context, messages []ChatMessage, opts ChatOptions) (string, error)

	// ModelName returns the name of the default model.
	ModelName() string

	// Ping validates the service is reachable by making a lightweight test request.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// ChatMessage represents a single message in a conversation.
type ChatMessage struct {
	// Role is one of "system", "user", or "assistant".
	Role string

	// Content is the message text.
	Content string
}

// Chat roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatOptions configures chat behaviour.
type ChatOptions struct {
	// Model overrides the service's default model for this call.
	Model string

	// MaxTokens is the maximum number of tokens to generate.
	MaxTokens int

	// Temperature controls randomness (0.0 = deterministic, 1.0 = creative).
	Temperature float64

	// JSON asks the provider to constrain output to a JSON object where supported.
	JSON bool
}

// Complete is the two-message form of Chat: one system prompt, one user turn.
func Complete(ctx context.Context, llm LLMService, system, user string, opts ChatOptions) (string, error) {
	messages := make([]ChatMessage, 0, 2)
	if system != "" {
		messages = append(messages, ChatMessage{Role: RoleSystem, Content: system})
	}
	messages = append(messages, ChatMessage{Role: RoleUser, Content: user})
	return llm.Chat(ctx, messages, opts)
}
