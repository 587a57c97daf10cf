package driving

import (
	"context"
	"errors"
	"fmt"

	"github.com/custodia-labs/verselens-cli/internal/core/domain"
)

// IngestOptions configures one ingestion run.
type IngestOptions struct {
	// InputPath is the raw text file. Required.
	InputPath string

	// Hierarchy labels. Empty values fall back to the configured defaults.
	Tradition string
	Source    string
	Work      string

	// Book restricts the run to one book.
	Book string

	// StartAt skips books that precede the named book in canonical order.
	StartAt string

	// DryRun parses, chunks and embeds but writes nothing to the store.
	DryRun bool

	// Force replaces existing chunks instead of reusing them.
	Force bool

	// NoCache disables reading and writing the chunk cache.
	NoCache bool

	// CacheOnly never calls the LLM: cache hits are used, misses go heuristic.
	CacheOnly bool

	// ChunkModel overrides the chat model used for chunk suggestions.
	ChunkModel string

	// Concurrency bounds parallel book workers. Zero uses the configured default.
	Concurrency int

	// Retry overrides the configured retry policy for this run. Zero fields keep it.
	Retry domain.RetrySettings
}

// BookReport summarises ingestion of one book.
type BookReport struct {
	Book      string `json:"book"`
	Chapters  int    `json:"chapters"`
	Verses    int    `json:"verses"`
	Chunks    int    `json:"chunks"`
	Inserted  int    `json:"inserted"`
	Reused    int    `json:"reused"`
	Replaced  int    `json:"replaced"`
	Cached    int    `json:"cached_chapters"`
	Semantic  int    `json:"semantic_chapters"`
	Heuristic int    `json:"heuristic_chapters"`
	Err       error  `json:"-"`
}

// IngestReport is the outcome of a run. Per-book failures do not abort the run.
type IngestReport struct {
	DryRun bool         `json:"dry_run"`
	Books  []BookReport `json:"books"`
}

// Failed returns the number of books that did not complete.
func (r *IngestReport) Failed() int {
	n := 0
	for i := range r.Books {
		if r.Books[i].Err != nil {
			n++
		}
	}
	return n
}

// Err joins the per-book failures, or returns nil when every book completed.
func (r *IngestReport) Err() error {
	var errs []error
	for i := range r.Books {
		if r.Books[i].Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.Books[i].Book, r.Books[i].Err))
		}
	}
	return errors.Join(errs...)
}

// IngestService runs the ingestion pipeline.
type IngestService interface {
	// Ingest parses the input, chunks each chapter, embeds each book's chunks
	// and persists them idempotently. The error is non-nil only for fatal
	// failures (configuration errors, hierarchy setup); book failures are in the report.
	Ingest(ctx context.Context, opts IngestOptions) (*IngestReport, error)
}
