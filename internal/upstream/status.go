package upstream

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/custodia-labs/verselens-cli/internal/core/domain"
)

// maxErrorBody caps how much of an error response is read.
const maxErrorBody = 4 << 10

// CheckResponse returns nil for 2xx responses. Otherwise it drains up to
// maxErrorBody bytes and returns a *domain.StatusError prefixed with provider.
func CheckResponse(provider string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return fmt.Errorf("%s: %w", provider, &domain.StatusError{
		Code:    resp.StatusCode,
		Message: errorMessage(body),
	})
}

// errorMessage extracts a provider error message from common JSON shapes:
// {"error":{"message":"..."}}, {"error":"..."} and {"message":"..."}.
func errorMessage(body []byte) string {
	var nested struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &nested) == nil && nested.Error.Message != "" {
		return nested.Error.Message
	}
	var flat struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &flat) == nil {
		if flat.Error != "" {
			return flat.Error
		}
		if flat.Message != "" {
			return flat.Message
		}
	}
	return strings.TrimSpace(string(body))
}
