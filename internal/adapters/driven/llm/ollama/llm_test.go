package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/verselens-cli/internal/core/domain"
	"github.com/custodia-labs/verselens-cli/internal/core/ports/driven"
)

func TestChat_SendsFormatAndZeroTemperature(t *testing.T) {
	var raw map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		_ = json.NewEncoder(w).Encode(chatResponse{Message: chatMessage{Role: "assistant", Content: "ok"}, Done: true})
	}))
	defer server.Close()

	s := NewLLMService(LLMConfig{BaseURL: server.URL})
	out, err := driven.Complete(context.Background(), s, "sys", "user", driven.ChatOptions{JSON: true})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)

	assert.Equal(t, DefaultLLMModel, raw["model"])
	assert.Equal(t, "json", raw["format"])
	assert.Equal(t, false, raw["stream"])
	opts, ok := raw["options"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 0.0, opts["temperature"])
}

func TestChat_ModelOverride(t *testing.T) {
	var req chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		_ = json.NewEncoder(w).Encode(chatResponse{Done: true})
	}))
	defer server.Close()

	s := NewLLMService(LLMConfig{BaseURL: server.URL, Model: "base"})
	_, err := s.Chat(context.Background(), []driven.ChatMessage{{Role: driven.RoleUser, Content: "x"}},
		driven.ChatOptions{Model: "override"})
	require.NoError(t, err)
	assert.Equal(t, "override", req.Model)
	assert.Empty(t, req.Format)
	assert.Equal(t, "base", s.ModelName())
}

func TestChat_RateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	s := NewLLMService(LLMConfig{BaseURL: server.URL})
	_, err := s.Chat(context.Background(), nil, driven.ChatOptions{})
	assert.ErrorIs(t, err, domain.ErrRateLimited)
}
