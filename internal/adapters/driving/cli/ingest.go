package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/verselens-cli/internal/core/domain"
	"github.com/custodia-labs/verselens-cli/internal/core/ports/driving"
)

var (
	ingestTradition   string
	ingestSource      string
	ingestWork        string
	ingestBook        string
	ingestStartAt     string
	ingestDryRun      bool
	ingestForce       bool
	ingestNoCache     bool
	ingestCacheOnly   bool
	ingestChunkModel  string
	ingestConcurrency int
	ingestWatch       bool
	ingestJSON        bool

	ingestMaxRetries int
	ingestRetryDelay time.Duration
	ingestMaxDelay   time.Duration
	ingestThrottle   time.Duration
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [file]",
	Short: "Parse, chunk, embed and store a scripture text",
	Long: `Parses a raw scripture text into books, chapters and verses, groups each
chapter's verses into passage chunks, embeds the chunks and stores them.

Re-running is idempotent: chunks whose text is unchanged are reused without
being embedded again. --force replaces them, --dry-run writes nothing and
--watch re-ingests whenever the file changes.`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestTradition, "tradition", "", "tradition label (default from config)")
	ingestCmd.Flags().StringVar(&ingestSource, "source", "", "source label (default from config)")
	ingestCmd.Flags().StringVar(&ingestWork, "work", "", "work label (default from config)")
	ingestCmd.Flags().StringVar(&ingestBook, "book", "", "ingest only this book")
	ingestCmd.Flags().StringVar(&ingestStartAt, "start-at", "", "skip books before this one in canonical order")
	ingestCmd.Flags().BoolVar(&ingestDryRun, "dry-run", false, "parse, chunk and embed without writing")
	ingestCmd.Flags().BoolVar(&ingestForce, "force", false, "replace existing chunks instead of reusing them")
	ingestCmd.Flags().BoolVar(&ingestNoCache, "no-cache", false, "do not read or write the chunk cache")
	ingestCmd.Flags().BoolVar(&ingestCacheOnly, "cache-only", false, "never call the LLM; uncached chapters use the heuristic")
	ingestCmd.Flags().StringVar(&ingestChunkModel, "chunk-model", "", "chat model used for chunk suggestions")
	ingestCmd.Flags().IntVarP(&ingestConcurrency, "concurrency", "j", 0, "parallel book workers (default from config)")
	ingestCmd.Flags().BoolVar(&ingestWatch, "watch", false, "re-ingest when the file changes")
	ingestCmd.Flags().BoolVar(&ingestJSON, "json", false, "output the report as JSON")
	ingestCmd.Flags().IntVar(&ingestMaxRetries, "max-retries", 0, "attempts per store or embedding call (default from config)")
	ingestCmd.Flags().DurationVar(&ingestRetryDelay, "retry-delay", 0, "initial backoff between attempts (default from config)")
	ingestCmd.Flags().DurationVar(&ingestMaxDelay, "max-delay", 0, "backoff ceiling (default from config)")
	ingestCmd.Flags().DurationVar(&ingestThrottle, "throttle", 0, "fixed delay before every store or embedding call (default from config)")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	if ingestNoCache && ingestCacheOnly {
		return errors.New("--no-cache and --cache-only cannot be combined")
	}
	if ingestWatch && ingestDryRun {
		return errors.New("--watch and --dry-run cannot be combined")
	}
	if ingestMaxRetries < 0 || ingestRetryDelay < 0 || ingestMaxDelay < 0 || ingestThrottle < 0 {
		return errors.New("retry flags must not be negative")
	}

	svc, err := ingestPort(cmd)
	if err != nil {
		return err
	}

	opts := driving.IngestOptions{
		InputPath:   args[0],
		Tradition:   ingestTradition,
		Source:      ingestSource,
		Work:        ingestWork,
		Book:        ingestBook,
		StartAt:     ingestStartAt,
		DryRun:      ingestDryRun,
		Force:       ingestForce,
		NoCache:     ingestNoCache,
		CacheOnly:   ingestCacheOnly,
		ChunkModel:  ingestChunkModel,
		Concurrency: ingestConcurrency,
		Retry: domain.RetrySettings{
			MaxAttempts:  ingestMaxRetries,
			InitialDelay: ingestRetryDelay,
			MaxDelay:     ingestMaxDelay,
			Throttle:     ingestThrottle,
		},
	}

	err = ingestOnce(cmd, svc, opts)
	if !ingestWatch {
		return err
	}
	if err != nil {
		cmd.PrintErrln(warnStyle.Render("Error: " + err.Error()))
	}

	// Later runs reuse what the first run stored.
	opts.Force = false
	cmd.PrintErrf("Watching %s for changes (Ctrl+C to stop)\n", opts.InputPath)
	return watchFile(cmd.Context(), opts.InputPath, func(ctx context.Context) {
		cmd.PrintErrf("\n%s changed, re-ingesting\n", opts.InputPath)
		if err := ingestOnce(cmd, svc, opts); err != nil {
			cmd.PrintErrln(warnStyle.Render("Error: " + err.Error()))
		}
	})
}

func ingestOnce(cmd *cobra.Command, svc driving.IngestService, opts driving.IngestOptions) error {
	report, err := svc.Ingest(cmd.Context(), opts)
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}

	if ingestJSON {
		if err := printJSON(cmd, reportJSON(report)); err != nil {
			return err
		}
	} else {
		printReport(cmd, report)
	}

	if n := report.Failed(); n > 0 {
		return fmt.Errorf("%d of %d books failed: %w", n, len(report.Books), report.Err())
	}
	return nil
}

// bookJSON adds the failure message that BookReport leaves out of its JSON.
type bookJSON struct {
	driving.BookReport
	Error string `json:"error,omitempty"`
}

type ingestJSONReport struct {
	DryRun bool       `json:"dry_run"`
	Books  []bookJSON `json:"books"`
	Failed int        `json:"failed"`
}

func reportJSON(r *driving.IngestReport) ingestJSONReport {
	out := ingestJSONReport{DryRun: r.DryRun, Books: make([]bookJSON, 0, len(r.Books)), Failed: r.Failed()}
	for _, b := range r.Books {
		j := bookJSON{BookReport: b}
		if b.Err != nil {
			j.Error = b.Err.Error()
		}
		out.Books = append(out.Books, j)
	}
	return out
}

func printReport(cmd *cobra.Command, r *driving.IngestReport) {
	if len(r.Books) == 0 {
		cmd.Println("No books matched.")
		return
	}

	itoa := strconv.Itoa
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("Book", "Chapters", "Verses", "Chunks", "New", "Reused", "Replaced", "Cached", "LLM", "Heuristic", "Status").
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headingStyle.Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})

	var verses, chunks int
	for _, b := range r.Books {
		status := "ok"
		if b.Err != nil {
			status = warnStyle.Render("failed")
		}
		t.Row(b.Book, itoa(b.Chapters), itoa(b.Verses), itoa(b.Chunks), itoa(b.Inserted), itoa(b.Reused),
			itoa(b.Replaced), itoa(b.Cached), itoa(b.Semantic), itoa(b.Heuristic), status)
		verses += b.Verses
		chunks += b.Chunks
	}
	cmd.Println(t.String())

	summary := fmt.Sprintf("%d books, %d verses, %d chunks", len(r.Books), verses, chunks)
	if r.DryRun {
		summary += " (dry run, nothing written)"
	}
	cmd.Println(summary)

	for _, b := range r.Books {
		if b.Err != nil {
			cmd.Println(warnStyle.Render(fmt.Sprintf("  %s: %v", b.Book, b.Err)))
		}
	}
}
