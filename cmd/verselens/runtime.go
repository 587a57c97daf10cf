package main

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/custodia-labs/verselens-cli/internal/adapters/driven/ai"
	"github.com/custodia-labs/verselens-cli/internal/adapters/driven/artifacts"
	"github.com/custodia-labs/verselens-cli/internal/adapters/driven/config/file"
	"github.com/custodia-labs/verselens-cli/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/verselens-cli/internal/adapters/driven/storage/postgres"
	"github.com/custodia-labs/verselens-cli/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/verselens-cli/internal/core/domain"
	"github.com/custodia-labs/verselens-cli/internal/core/ports/driven"
	"github.com/custodia-labs/verselens-cli/internal/core/ports/driving"
	"github.com/custodia-labs/verselens-cli/internal/core/services"
	"github.com/custodia-labs/verselens-cli/internal/logger"
	"github.com/custodia-labs/verselens-cli/internal/retry"
)

// runtime opens the store and AI services on first use and shares them
// between the ingest and search services.
type runtime struct {
	settings driving.SettingsService
	dir      string

	once    sync.Once
	err     error
	ingest  *services.IngestService
	search  *services.SearchService
	closers []func()
}

func newRuntime(settings driving.SettingsService, dir string) *runtime {
	return &runtime{settings: settings, dir: dir}
}

// Ingest returns the ingest service, opening dependencies if needed.
func (r *runtime) Ingest(ctx context.Context) (driving.IngestService, error) {
	if err := r.open(ctx); err != nil {
		return nil, err
	}
	return r.ingest, nil
}

// Search returns the search service, opening dependencies if needed.
func (r *runtime) Search(ctx context.Context) (driving.SearchService, error) {
	if err := r.open(ctx); err != nil {
		return nil, err
	}
	return r.search, nil
}

// Close releases everything opened, newest first.
func (r *runtime) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
	r.closers = nil
}

func (r *runtime) open(ctx context.Context) error {
	r.once.Do(func() {
		r.err = r.build(ctx)
	})
	return r.err
}

type corpusBackend struct {
	store  driven.CorpusStore
	reader driven.CorpusReader
	index  driven.SearchIndex
}

func (r *runtime) openStore(ctx context.Context, s domain.StorageSettings) (*corpusBackend, error) {
	logger.Debug("Opening %s store", s.Backend)
	switch s.Backend {
	case domain.StorageSQLite:
		st, err := sqlite.NewStore(s.DataDir)
		if err != nil {
			return nil, err
		}
		r.closers = append(r.closers, func() { _ = st.Close() })
		return &corpusBackend{store: st.CorpusStore(), reader: st.CorpusReader(), index: st.SearchIndex()}, nil

	case domain.StoragePostgres:
		st, err := postgres.NewStore(ctx, s.DSN)
		if err != nil {
			return nil, err
		}
		r.closers = append(r.closers, func() { _ = st.Close() })
		return &corpusBackend{store: st.CorpusStore(), reader: st.CorpusReader(), index: st.SearchIndex()}, nil

	case domain.StorageMemory:
		logger.Warn("memory storage does not persist between commands")
		m := memory.NewCorpusStore()
		return &corpusBackend{store: m, reader: m, index: m}, nil

	default:
		return nil, fmt.Errorf("%w: unknown storage backend %q", domain.ErrInvalidInput, s.Backend)
	}
}

func (r *runtime) build(ctx context.Context) error {
	settings, err := r.settings.Get()
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	backend, err := r.openStore(ctx, settings.Storage)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}

	aiServices, err := ai.Init(settings)
	if err != nil {
		return err
	}
	r.closers = append(r.closers, aiServices.Close)
	for _, w := range aiServices.Warnings {
		logger.Warn("%s", w)
	}

	prompts, err := file.NewPromptStore(filepath.Join(r.dir, "prompts"))
	if err != nil {
		return err
	}

	r.ingest = services.NewIngestService(services.IngestConfig{
		Store:      backend.store,
		Embedder:   aiServices.EmbeddingService,
		LLM:        aiServices.LLMService,
		Prompts:    prompts,
		Cache:      artifacts.NewChunkCache(settings.Ingest.CacheDir),
		Snapshots:  artifacts.NewSnapshots(settings.Ingest.OutputDir),
		Retry:      retry.New(retry.FromSettings(settings.Retry)),
		Defaults:   settings.Ingest,
		ChunkModel: settings.LLM.ChunkModel,
	})

	r.search, err = services.NewSearchService(services.SearchConfig{
		Reader:   backend.reader,
		Index:    backend.index,
		Embedder: aiServices.EmbeddingService,
		LLM:      aiServices.LLMService,
		Prompts:  prompts,
		Defaults: settings.Search,
	})
	return err
}
