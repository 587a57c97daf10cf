package upstream

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/custodia-labs/verselens-cli/internal/core/domain"
)

// NewOpenAIClient builds a go-openai client. An empty baseURL keeps the
// library default; a custom one targets compatible APIs.
func NewOpenAIClient(apiKey, baseURL string, timeout time.Duration) *openai.Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	cfg.HTTPClient = &http.Client{Timeout: timeout}
	return openai.NewClientWithConfig(cfg)
}

// OpenAIError converts go-openai errors carrying an HTTP status into a
// *domain.StatusError so retry classification sees the code.
func OpenAIError(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		return fmt.Errorf("openai: %w", &domain.StatusError{Code: apiErr.HTTPStatusCode, Message: apiErr.Message})
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return fmt.Errorf("openai: %w", &domain.StatusError{Code: reqErr.HTTPStatusCode, Message: reqErr.Error()})
	}
	return fmt.Errorf("openai: %w", err)
}
