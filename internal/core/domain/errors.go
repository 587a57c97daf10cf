package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an entity already exists.
	// Stores return it on unique-key conflicts so callers can re-select.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrEmptyCorpus indicates the raw text produced no verses.
	// This is a configuration error and aborts ingestion.
	ErrEmptyCorpus = errors.New("no verses parsed from input")

	// ErrUnknownBook indicates a book name that is not in the canonical catalogue.
	ErrUnknownBook = errors.New("unknown book")

	// ErrInvalidChunking indicates a chunking result failed coverage or size validation.
	ErrInvalidChunking = errors.New("invalid chunking")

	// ErrDimensionMismatch indicates an embedding whose size differs from the
	// dimensionality already recorded by the store.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrLLMUnavailable indicates the LLM service is not configured.
	// Semantic chunking, query expansion and summaries are disabled.
	ErrLLMUnavailable = errors.New("LLM service unavailable")

	// ErrEmbeddingUnavailable indicates the embedding service is not configured.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrStoreUnavailable indicates the corpus store is not configured.
	ErrStoreUnavailable = errors.New("corpus store unavailable")

	// ErrRateLimited indicates the API rate limit was exceeded.
	ErrRateLimited = errors.New("rate limited")
)

// StatusError carries an upstream status code (HTTP or equivalent) so that
// retry classification does not depend on any particular client library.
type StatusError struct {
	Code    int
	Message string
}

// Error implements error.
func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("status %d", e.Code)
	}
	return fmt.Sprintf("status %d: %s", e.Code, e.Message)
}

// StatusCode returns the upstream status code.
func (e *StatusError) StatusCode() int {
	return e.Code
}

// Is reports rate-limit status errors as ErrRateLimited.
func (e *StatusError) Is(target error) bool {
	return target == ErrRateLimited && e.Code == 429
}
