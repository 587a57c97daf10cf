package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/verselens-cli/internal/chunking"
	"github.com/custodia-labs/verselens-cli/internal/core/domain"
	"github.com/custodia-labs/verselens-cli/internal/core/ports/driven"
	"github.com/custodia-labs/verselens-cli/internal/core/ports/driving"
	"github.com/custodia-labs/verselens-cli/internal/logger"
	"github.com/custodia-labs/verselens-cli/internal/parser"
	"github.com/custodia-labs/verselens-cli/internal/retry"
)

// Ensure IngestService implements the interface.
var _ driving.IngestService = (*IngestService)(nil)

// IngestConfig wires the ingestion pipeline.
type IngestConfig struct {
	// Store receives the hierarchy, chunks and verses. Unused in dry runs.
	Store driven.CorpusStore

	// Embedder is required for real runs. Dry runs skip embedding without it.
	Embedder driven.EmbeddingService

	// LLM and Prompts enable semantic chunking. Both are optional.
	LLM     driven.LLMService
	Prompts driven.PromptStore

	// Cache and Snapshots are optional local artifacts.
	Cache     driven.ChunkCache
	Snapshots driven.SnapshotWriter

	// Retry wraps every store and embedding call.
	Retry *retry.Policy

	// Defaults supplies hierarchy labels and concurrency.
	Defaults domain.IngestSettings

	// ChunkModel overrides the LLM model for chunk suggestions.
	ChunkModel string
}

// IngestService parses raw text, chunks it and persists it idempotently.
type IngestService struct {
	cfg      IngestConfig
	readFile func(string) ([]byte, error)
}

// NewIngestService creates a new ingestion service.
func NewIngestService(cfg IngestConfig) *IngestService {
	if cfg.Retry == nil {
		cfg.Retry = retry.New(retry.DefaultConfig())
	}
	return &IngestService{cfg: cfg, readFile: os.ReadFile}
}

// labels are the hierarchy names of one run.
type labels struct {
	tradition, source, work string
}

// Ingest runs the pipeline. Configuration errors and hierarchy setup failures
// abort the run; failures inside a book are recorded in its report entry and
// the remaining books continue.
func (s *IngestService) Ingest(ctx context.Context, opts driving.IngestOptions) (*driving.IngestReport, error) {
	if opts.InputPath == "" {
		return nil, fmt.Errorf("%w: input path is required", domain.ErrInvalidInput)
	}
	if !opts.DryRun && s.cfg.Store == nil {
		return nil, domain.ErrStoreUnavailable
	}
	if !opts.DryRun && s.cfg.Embedder == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}
	if opts.Retry != (domain.RetrySettings{}) {
		run := *s
		run.cfg.Retry = retry.New(s.cfg.Retry.Config().With(opts.Retry))
		opts.Retry = domain.RetrySettings{}
		logger.Debug("retry policy for this run: %+v", run.cfg.Retry.Config())
		return run.Ingest(ctx, opts)
	}

	data, err := s.readFile(opts.InputPath)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}

	verses, err := parser.Parse(data)
	if err != nil {
		return nil, err
	}
	books, err := parser.FilterBooks(parser.GroupByBook(verses), opts.Book, opts.StartAt)
	if err != nil {
		return nil, err
	}
	logger.Info("parsed %d records in %d books from %s", len(verses), len(books), opts.InputPath)

	names := s.labels(opts)
	var workID string
	if !opts.DryRun {
		work, err := s.ensureWork(ctx, names)
		if err != nil {
			return nil, fmt.Errorf("hierarchy setup: %w", err)
		}
		workID = work.ID
	}

	builder := s.builder(opts)
	report := &driving.IngestReport{DryRun: opts.DryRun, Books: make([]driving.BookReport, len(books))}

	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = s.cfg.Defaults.Concurrency
	}
	if concurrency <= 0 {
		concurrency = 1
	}

	var (
		mu   sync.Mutex
		done int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i := range books {
		book := books[i]
		g.Go(func() error {
			rep := s.ingestBook(gctx, book, workID, names, builder, opts)
			if errors.Is(rep.Err, context.Canceled) {
				return rep.Err
			}

			mu.Lock()
			report.Books[i] = rep
			done++
			percent := float64(done) * 100 / float64(len(books))
			mu.Unlock()

			switch {
			case rep.Err != nil:
				logger.Warn("%s failed: %v", rep.Book, rep.Err)
			case opts.DryRun:
				logger.Progress(percent, "%s: %d chunks (dry run)", rep.Book, rep.Chunks)
			default:
				logger.Progress(percent, "%s: %d chunks (%d reused, %d inserted, %d replaced)",
					rep.Book, rep.Chunks, rep.Reused, rep.Inserted, rep.Replaced)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}
	return report, nil
}

func (s *IngestService) labels(opts driving.IngestOptions) labels {
	pick := func(values ...string) string {
		for _, v := range values {
			if v != "" {
				return v
			}
		}
		return ""
	}
	return labels{
		tradition: pick(opts.Tradition, s.cfg.Defaults.Tradition, domain.DefaultTradition),
		source:    pick(opts.Source, s.cfg.Defaults.Source, domain.DefaultSource),
		work:      pick(opts.Work, s.cfg.Defaults.Work, domain.DefaultWork),
	}
}

func (s *IngestService) builder(opts driving.IngestOptions) *chunking.Builder {
	var options []chunking.Option
	if s.cfg.Cache != nil && !opts.NoCache {
		options = append(options, chunking.WithCache(s.cfg.Cache))
	}
	if s.cfg.LLM != nil && s.cfg.Prompts != nil {
		model := opts.ChunkModel
		if model == "" {
			model = s.cfg.ChunkModel
		}
		options = append(options, chunking.WithSuggester(chunking.NewSuggester(s.cfg.LLM, s.cfg.Prompts, model)))
	}
	options = append(options, chunking.WithCacheOnly(opts.CacheOnly))
	return chunking.NewBuilder(options...)
}

// plannedChunk is a chunk plan with its idempotency hash and, once resolved, its stored ID.
type plannedChunk struct {
	plan domain.ChunkPlan
	hash string
	id   string
}

// ingestBook chunks, embeds and persists one book. Errors end up in the report.
func (s *IngestService) ingestBook(
	ctx context.Context,
	book parser.BookVerses,
	workID string,
	names labels,
	builder *chunking.Builder,
	opts driving.IngestOptions,
) driving.BookReport {
	rep := driving.BookReport{Book: book.Title}
	logger.Section(book.Title)

	if s.cfg.Snapshots != nil {
		if err := s.cfg.Snapshots.WriteVerses(book.Title, book.Verses); err != nil {
			logger.Warn("%s: %v", book.Title, err)
		}
	}

	path := []string{names.tradition, names.source, names.work, book.Title}
	chapters := book.Chapters()
	texts := make(map[[2]int]string, len(book.Verses))
	var planned []*plannedChunk
	for _, ch := range chapters {
		if ch.Number > 0 {
			rep.Chapters++
			rep.Verses += len(ch.Verses)
		}
		for _, v := range ch.Verses {
			texts[[2]int{v.Chapter, v.Verse}] = v.Text
		}

		plans, err := builder.Build(ctx, book.Title, ch.Number, ch.Verses)
		if err != nil {
			rep.Err = err
			return rep
		}
		if len(plans) > 0 {
			switch plans[0].Method {
			case domain.ChunkMethodCache:
				rep.Cached++
			case domain.ChunkMethodSemantic:
				rep.Semantic++
			case domain.ChunkMethodHeuristic:
				rep.Heuristic++
			}
		}
		for _, p := range plans {
			planned = append(planned, &plannedChunk{
				plan: p,
				hash: chunking.Hash(path, []int{p.Chapter}, p.VerseNumbers),
			})
		}
	}
	rep.Chunks = len(planned)

	if s.cfg.Snapshots != nil {
		snaps := make([]driven.ChunkSnapshot, len(planned))
		for i, pc := range planned {
			snaps[i] = driven.ChunkSnapshot{Hash: pc.hash, Plan: pc.plan}
		}
		if err := s.cfg.Snapshots.WriteChunks(book.Title, snaps); err != nil {
			logger.Warn("%s: %v", book.Title, err)
		}
	}

	if opts.DryRun {
		if s.cfg.Embedder != nil {
			if _, err := s.embed(ctx, book.Title, planned); err != nil {
				rep.Err = err
			}
		}
		return rep
	}

	if err := s.persistBook(ctx, book, workID, planned, texts, opts.Force, &rep); err != nil {
		rep.Err = err
	}
	return rep
}

// persistBook resolves chunk identities, writes new chunks and then points
// every verse at its chunk.
func (s *IngestService) persistBook(
	ctx context.Context,
	book parser.BookVerses,
	workID string,
	planned []*plannedChunk,
	texts map[[2]int]string,
	force bool,
	rep *driving.BookReport,
) error {
	policy := s.cfg.Retry
	store := s.cfg.Store

	stored, err := fetchOrInsert(ctx, policy, "book "+book.Title,
		func(ctx context.Context) (*domain.Book, error) { return store.FindBook(ctx, workID, book.Title) },
		store.InsertBook,
		func() *domain.Book { return &domain.Book{WorkID: workID, Title: book.Title, Seq: book.Seq} },
	)
	if err != nil {
		return err
	}
	bookID := stored.ID

	chapterIDs := make(map[int]string)
	for _, pc := range planned {
		number := pc.plan.Chapter
		if _, ok := chapterIDs[number]; ok {
			continue
		}
		ch, err := fetchOrInsert(ctx, policy, domain.ChapterTitle(book.Title, number),
			func(ctx context.Context) (*domain.Chapter, error) { return store.FindChapter(ctx, bookID, number) },
			store.InsertChapter,
			func() *domain.Chapter {
				return &domain.Chapter{BookID: bookID, Number: number, Title: domain.ChapterTitle(book.Title, number)}
			},
		)
		if err != nil {
			return err
		}
		chapterIDs[number] = ch.ID
	}

	// Reuse existing chunks by hash unless forced; only the rest are embedded.
	var pending []*plannedChunk
	for _, pc := range planned {
		if force {
			pending = append(pending, pc)
			continue
		}
		existing, err := retry.Value(ctx, policy, "select chunk", func(ctx context.Context) (*domain.Chunk, error) {
			return store.FindChunkByHash(ctx, pc.hash)
		})
		switch {
		case err == nil:
			pc.id = existing.ID
			rep.Reused++
		case errors.Is(err, domain.ErrNotFound):
			pending = append(pending, pc)
		default:
			return err
		}
	}

	vectors, err := s.embed(ctx, book.Title, pending)
	if err != nil {
		return err
	}

	for i, pc := range pending {
		chunk := &domain.Chunk{
			BookID:       bookID,
			Hash:         pc.hash,
			Chapters:     []int{pc.plan.Chapter},
			VerseNumbers: pc.plan.VerseNumbers,
			CombinedText: pc.plan.CombinedText,
			Embedding:    vectors[i],
		}
		if err := s.writeChunk(ctx, chunk, force, rep); err != nil {
			return err
		}
		pc.id = chunk.ID
	}

	for _, pc := range planned {
		for _, n := range pc.plan.VerseNumbers {
			verse := &domain.Verse{
				BookID:    bookID,
				ChapterID: chapterIDs[pc.plan.Chapter],
				ChunkID:   pc.id,
				Chapter:   pc.plan.Chapter,
				Number:    n,
				Text:      texts[[2]int{pc.plan.Chapter, n}],
			}
			if err := policy.Do(ctx, "upsert verse", func(ctx context.Context) error {
				return store.UpsertVerse(ctx, verse)
			}); err != nil {
				return err
			}
		}
	}
	return nil
}

// writeChunk inserts or replaces one chunk. An insert that loses a race to a
// concurrent run re-selects the winner and reuses it.
func (s *IngestService) writeChunk(ctx context.Context, chunk *domain.Chunk, force bool, rep *driving.BookReport) error {
	policy := s.cfg.Retry
	store := s.cfg.Store

	if force {
		err := policy.Do(ctx, "replace chunk", func(ctx context.Context) error {
			return store.ReplaceChunk(ctx, chunk)
		})
		if err == nil {
			rep.Replaced++
			return nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return err
		}
	}

	err := policy.Do(ctx, "insert chunk", func(ctx context.Context) error {
		return store.InsertChunk(ctx, chunk)
	})
	switch {
	case err == nil:
		rep.Inserted++
		return nil
	case errors.Is(err, domain.ErrAlreadyExists):
		existing, err := retry.Value(ctx, policy, "select chunk", func(ctx context.Context) (*domain.Chunk, error) {
			return store.FindChunkByHash(ctx, chunk.Hash)
		})
		if err != nil {
			return err
		}
		chunk.ID = existing.ID
		rep.Reused++
		return nil
	default:
		return err
	}
}

// embed embeds the chunks' texts in one batch call.
func (s *IngestService) embed(ctx context.Context, book string, chunks []*plannedChunk) ([][]float32, error) {
	if len(chunks) == 0 {
		return nil, nil
	}
	texts := make([]string, len(chunks))
	for i, pc := range chunks {
		texts[i] = pc.plan.CombinedText
	}

	vectors, err := retry.Value(ctx, s.cfg.Retry, "embed "+book, func(ctx context.Context) ([][]float32, error) {
		return s.cfg.Embedder.EmbedBatch(ctx, texts)
	})
	if err != nil {
		return nil, fmt.Errorf("embed %s: %w", book, err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embed %s: got %d vectors for %d chunks", book, len(vectors), len(texts))
	}
	dims := s.cfg.Embedder.Dimensions()
	for _, v := range vectors {
		if dims > 0 && len(v) != dims {
			return nil, fmt.Errorf("embed %s: %w: got %d, want %d", book, domain.ErrDimensionMismatch, len(v), dims)
		}
	}
	return vectors, nil
}

// ensureWork creates or reuses the tradition, source and work rows.
func (s *IngestService) ensureWork(ctx context.Context, names labels) (*domain.Work, error) {
	policy := s.cfg.Retry
	store := s.cfg.Store

	tradition, err := fetchOrInsert(ctx, policy, "tradition",
		func(ctx context.Context) (*domain.Tradition, error) { return store.FindTradition(ctx, names.tradition) },
		store.InsertTradition,
		func() *domain.Tradition { return &domain.Tradition{Name: names.tradition} },
	)
	if err != nil {
		return nil, err
	}

	source, err := fetchOrInsert(ctx, policy, "source",
		func(ctx context.Context) (*domain.Source, error) { return store.FindSource(ctx, tradition.ID, names.source) },
		store.InsertSource,
		func() *domain.Source { return &domain.Source{TraditionID: tradition.ID, Name: names.source} },
	)
	if err != nil {
		return nil, err
	}

	return fetchOrInsert(ctx, policy, "work",
		func(ctx context.Context) (*domain.Work, error) { return store.FindWork(ctx, source.ID, names.work) },
		store.InsertWork,
		func() *domain.Work { return &domain.Work{SourceID: source.ID, Name: names.work} },
	)
}

// fetchOrInsert selects by natural key, inserts when absent and re-selects
// when the insert hits a unique conflict.
func fetchOrInsert[T any](
	ctx context.Context,
	policy *retry.Policy,
	what string,
	find func(ctx context.Context) (*T, error),
	insert func(ctx context.Context, v *T) error,
	fresh func() *T,
) (*T, error) {
	found, err := retry.Value(ctx, policy, "select "+what, find)
	if err == nil {
		return found, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	v := fresh()
	err = policy.Do(ctx, "insert "+what, func(ctx context.Context) error {
		return insert(ctx, v)
	})
	if errors.Is(err, domain.ErrAlreadyExists) {
		return retry.Value(ctx, policy, "select "+what, find)
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}
