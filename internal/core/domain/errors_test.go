package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrors_Existence(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"ErrNotFound", ErrNotFound},
		{"ErrAlreadyExists", ErrAlreadyExists},
		{"ErrInvalidInput", ErrInvalidInput},
		{"ErrEmptyCorpus", ErrEmptyCorpus},
		{"ErrUnknownBook", ErrUnknownBook},
		{"ErrInvalidChunking", ErrInvalidChunking},
		{"ErrDimensionMismatch", ErrDimensionMismatch},
		{"ErrLLMUnavailable", ErrLLMUnavailable},
		{"ErrEmbeddingUnavailable", ErrEmbeddingUnavailable},
		{"ErrStoreUnavailable", ErrStoreUnavailable},
		{"ErrRateLimited", ErrRateLimited},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotNil(t, tt.err)
			assert.NotEmpty(t, tt.err.Error())
		})
	}
}

func TestErrors_Wrapping(t *testing.T) {
	wrapped := fmt.Errorf("ingest genesis: %w", ErrAlreadyExists)
	assert.True(t, errors.Is(wrapped, ErrAlreadyExists))
	assert.False(t, errors.Is(wrapped, ErrNotFound))
}

func TestStatusError(t *testing.T) {
	err := &StatusError{Code: 503, Message: "upstream busy"}
	assert.Equal(t, "status 503: upstream busy", err.Error())
	assert.Equal(t, 503, err.StatusCode())
	assert.False(t, errors.Is(err, ErrRateLimited))

	limited := fmt.Errorf("embed: %w", &StatusError{Code: 429})
	assert.True(t, errors.Is(limited, ErrRateLimited))
	assert.Equal(t, "embed: status 429", limited.Error())

	var se *StatusError
	assert.True(t, errors.As(limited, &se))
	assert.Equal(t, 429, se.Code)
}
