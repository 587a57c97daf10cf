package services

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/custodia-labs/verselens-cli/internal/core/domain"
	"github.com/custodia-labs/verselens-cli/internal/core/ports/driven"
	"github.com/custodia-labs/verselens-cli/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Environment variables that override the config file.
//
//nolint:gosec // G101: These are variable names, not actual credentials.
const (
	EnvOpenAIKey    = "OPENAI_API_KEY"
	EnvAnthropicKey = "ANTHROPIC_API_KEY"
	EnvDSN          = "VERSELENS_DSN"
)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyStorageBackend = "storage.backend"
	keyStorageDSN     = "storage.dsn"
	keyStorageDataDir = "storage.data_dir"

	keyEmbedProvider = "embedding.provider"
	keyEmbedModel    = "embedding.model"
	keyEmbedBaseURL  = "embedding.base_url"
	keyEmbedAPIKey   = "embedding.api_key"
	keyEmbedRPS      = "embedding.requests_per_second"

	keyLLMProvider   = "llm.provider"
	keyLLMModel      = "llm.model"
	keyLLMBaseURL    = "llm.base_url"
	keyLLMAPIKey     = "llm.api_key"
	keyLLMChunkModel = "llm.chunk_model"
	keyLLMRPS        = "llm.requests_per_second"

	keyRetryAttempts = "retry.max_attempts"
	keyRetryInitial  = "retry.initial_delay"
	keyRetryMax      = "retry.max_delay"
	keyRetryThrottle = "retry.throttle"

	keyIngestTradition   = "ingest.tradition"
	keyIngestSource      = "ingest.source"
	keyIngestWork        = "ingest.work"
	keyIngestConcurrency = "ingest.concurrency"
	keyIngestCacheDir    = "ingest.cache_dir"
	keyIngestOutputDir   = "ingest.output_dir"

	keySearchLimit     = "search.limit"
	keySearchLexWeight = "search.lexical_weight"
	keySearchDiversity = "search.diversity"
)

type valueKind int

const (
	kindString valueKind = iota
	kindInt
	kindFloat
	kindDuration
	kindProvider
	kindBackend
)

// setting describes one config key: how to parse it and how to read it back.
type setting struct {
	key  string
	kind valueKind
	get  func(s *domain.AppSettings) string
}

var settingsTable = []setting{
	{keyStorageBackend, kindBackend, func(s *domain.AppSettings) string { return string(s.Storage.Backend) }},
	{keyStorageDSN, kindString, func(s *domain.AppSettings) string { return s.Storage.DSN }},
	{keyStorageDataDir, kindString, func(s *domain.AppSettings) string { return s.Storage.DataDir }},

	{keyEmbedProvider, kindProvider, func(s *domain.AppSettings) string { return string(s.Embedding.Provider) }},
	{keyEmbedModel, kindString, func(s *domain.AppSettings) string { return s.Embedding.Model }},
	{keyEmbedBaseURL, kindString, func(s *domain.AppSettings) string { return s.Embedding.BaseURL }},
	{keyEmbedAPIKey, kindString, func(s *domain.AppSettings) string { return s.Embedding.APIKey }},
	{keyEmbedRPS, kindFloat, func(s *domain.AppSettings) string { return formatFloat(s.Embedding.RequestsPerSecond) }},

	{keyLLMProvider, kindProvider, func(s *domain.AppSettings) string { return string(s.LLM.Provider) }},
	{keyLLMModel, kindString, func(s *domain.AppSettings) string { return s.LLM.Model }},
	{keyLLMBaseURL, kindString, func(s *domain.AppSettings) string { return s.LLM.BaseURL }},
	{keyLLMAPIKey, kindString, func(s *domain.AppSettings) string { return s.LLM.APIKey }},
	{keyLLMChunkModel, kindString, func(s *domain.AppSettings) string { return s.LLM.ChunkModel }},
	{keyLLMRPS, kindFloat, func(s *domain.AppSettings) string { return formatFloat(s.LLM.RequestsPerSecond) }},

	{keyRetryAttempts, kindInt, func(s *domain.AppSettings) string { return strconv.Itoa(s.Retry.MaxAttempts) }},
	{keyRetryInitial, kindDuration, func(s *domain.AppSettings) string { return s.Retry.InitialDelay.String() }},
	{keyRetryMax, kindDuration, func(s *domain.AppSettings) string { return s.Retry.MaxDelay.String() }},
	{keyRetryThrottle, kindDuration, func(s *domain.AppSettings) string { return s.Retry.Throttle.String() }},

	{keyIngestTradition, kindString, func(s *domain.AppSettings) string { return s.Ingest.Tradition }},
	{keyIngestSource, kindString, func(s *domain.AppSettings) string { return s.Ingest.Source }},
	{keyIngestWork, kindString, func(s *domain.AppSettings) string { return s.Ingest.Work }},
	{keyIngestConcurrency, kindInt, func(s *domain.AppSettings) string { return strconv.Itoa(s.Ingest.Concurrency) }},
	{keyIngestCacheDir, kindString, func(s *domain.AppSettings) string { return s.Ingest.CacheDir }},
	{keyIngestOutputDir, kindString, func(s *domain.AppSettings) string { return s.Ingest.OutputDir }},

	{keySearchLimit, kindInt, func(s *domain.AppSettings) string { return strconv.Itoa(s.Search.Limit) }},
	{keySearchLexWeight, kindFloat, func(s *domain.AppSettings) string { return formatFloat(s.Search.LexicalWeight) }},
	{keySearchDiversity, kindFloat, func(s *domain.AppSettings) string { return formatFloat(s.Search.Diversity) }},
}

func lookupSetting(key string) (setting, bool) {
	for _, st := range settingsTable {
		if st.key == key {
			return st, true
		}
	}
	return setting{}, false
}

// SettingsService manages application settings.
type SettingsService struct {
	configStore driven.ConfigStore
	aiValidator driven.AIConfigValidator
	baseDir     string
	lookupEnv   func(string) (string, bool)
}

// NewSettingsService creates a new settings service.
// baseDir anchors the default data, cache and snapshot directories.
func NewSettingsService(configStore driven.ConfigStore, aiValidator driven.AIConfigValidator, baseDir string) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		aiValidator: aiValidator,
		baseDir:     baseDir,
		lookupEnv:   os.LookupEnv,
	}
}

// Get retrieves current application settings.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	d := domain.DefaultAppSettings()

	settings := &domain.AppSettings{
		Storage: domain.StorageSettings{
			Backend: s.getBackend(d.Storage.Backend),
			DSN:     s.configStore.GetString(keyStorageDSN),
			DataDir: s.getString(keyStorageDataDir, filepath.Join(s.baseDir, "data")),
		},
		Embedding: domain.EmbeddingSettings{
			Provider:          s.getProvider(keyEmbedProvider),
			Model:             s.configStore.GetString(keyEmbedModel),
			BaseURL:           s.configStore.GetString(keyEmbedBaseURL), // No default - empty is valid for cloud providers
			APIKey:            s.configStore.GetString(keyEmbedAPIKey),
			RequestsPerSecond: s.getFloat(keyEmbedRPS, 0),
		},
		LLM: domain.LLMSettings{
			Provider:          s.getProvider(keyLLMProvider),
			Model:             s.configStore.GetString(keyLLMModel),
			BaseURL:           s.configStore.GetString(keyLLMBaseURL),
			APIKey:            s.configStore.GetString(keyLLMAPIKey),
			ChunkModel:        s.configStore.GetString(keyLLMChunkModel),
			RequestsPerSecond: s.getFloat(keyLLMRPS, 0),
		},
		Retry: domain.RetrySettings{
			MaxAttempts:  s.getInt(keyRetryAttempts, d.Retry.MaxAttempts),
			InitialDelay: s.getDuration(keyRetryInitial, d.Retry.InitialDelay),
			MaxDelay:     s.getDuration(keyRetryMax, d.Retry.MaxDelay),
			Throttle:     s.getDuration(keyRetryThrottle, d.Retry.Throttle),
		},
		Ingest: domain.IngestSettings{
			Tradition:   s.getString(keyIngestTradition, d.Ingest.Tradition),
			Source:      s.getString(keyIngestSource, d.Ingest.Source),
			Work:        s.getString(keyIngestWork, d.Ingest.Work),
			Concurrency: s.getInt(keyIngestConcurrency, d.Ingest.Concurrency),
			CacheDir:    s.getString(keyIngestCacheDir, filepath.Join(s.baseDir, "cache")),
			OutputDir:   s.getString(keyIngestOutputDir, filepath.Join(s.baseDir, "snapshots")),
		},
		Search: domain.SearchSettings{
			Limit:         s.getInt(keySearchLimit, d.Search.Limit),
			LexicalWeight: s.getFloat(keySearchLexWeight, d.Search.LexicalWeight),
			Diversity:     s.getFloat(keySearchDiversity, d.Search.Diversity),
		},
	}

	s.applyEnv(settings)
	applyModelDefaults(settings)
	return settings, nil
}

// applyEnv overlays provider keys and the DSN from the environment.
func (s *SettingsService) applyEnv(settings *domain.AppSettings) {
	keyFor := func(p domain.AIProvider) (string, bool) {
		switch p {
		case domain.AIProviderOpenAI:
			return s.env(EnvOpenAIKey)
		case domain.AIProviderAnthropic:
			return s.env(EnvAnthropicKey)
		default:
			return "", false
		}
	}
	if v, ok := keyFor(settings.Embedding.Provider); ok {
		settings.Embedding.APIKey = v
	}
	if v, ok := keyFor(settings.LLM.Provider); ok {
		settings.LLM.APIKey = v
	}
	if v, ok := s.env(EnvDSN); ok {
		settings.Storage.DSN = v
	}
}

func (s *SettingsService) env(name string) (string, bool) {
	v, ok := s.lookupEnv(name)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

func applyModelDefaults(settings *domain.AppSettings) {
	if settings.Embedding.Model == "" {
		settings.Embedding.Model = domain.DefaultEmbeddingModels()[settings.Embedding.Provider]
	}
	if settings.LLM.Model == "" {
		settings.LLM.Model = domain.DefaultLLMModels()[settings.LLM.Provider]
	}
}

// Set parses value according to the key's type and persists it.
func (s *SettingsService) Set(key, value string) error {
	st, ok := lookupSetting(key)
	if !ok {
		return fmt.Errorf("%w: unknown setting %q", domain.ErrInvalidInput, key)
	}

	var stored any
	switch st.kind {
	case kindString:
		stored = value
	case kindInt:
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return fmt.Errorf("%w: %s must be a non-negative integer", domain.ErrInvalidInput, key)
		}
		stored = n
	case kindFloat:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil || f < 0 {
			return fmt.Errorf("%w: %s must be a non-negative number", domain.ErrInvalidInput, key)
		}
		stored = f
	case kindDuration:
		d, err := time.ParseDuration(value)
		if err != nil || d < 0 {
			return fmt.Errorf("%w: %s must be a duration such as 500ms", domain.ErrInvalidInput, key)
		}
		stored = d.String()
	case kindProvider:
		p := domain.AIProvider(value)
		if value != "" && !p.IsValid() {
			return fmt.Errorf("%w: unsupported provider %q", domain.ErrInvalidInput, value)
		}
		if key == keyEmbedProvider && value != "" && !p.SupportsEmbeddings() {
			return fmt.Errorf("%w: %s does not provide embeddings", domain.ErrInvalidInput, p.Description())
		}
		stored = value
	case kindBackend:
		if !domain.StorageBackend(value).IsValid() {
			return fmt.Errorf("%w: unsupported storage backend %q", domain.ErrInvalidInput, value)
		}
		stored = value
	}

	if err := s.configStore.Set(key, stored); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

// Value returns the effective value of key.
func (s *SettingsService) Value(key string) (string, error) {
	st, ok := lookupSetting(key)
	if !ok {
		return "", fmt.Errorf("%w: unknown setting %q", domain.ErrInvalidInput, key)
	}
	settings, err := s.Get()
	if err != nil {
		return "", err
	}
	return st.get(settings), nil
}

// Keys lists the supported keys in display order.
func (s *SettingsService) Keys() []string {
	keys := make([]string, len(settingsTable))
	for i, st := range settingsTable {
		keys[i] = st.key
	}
	return keys
}

// Validate checks the storage and provider settings, then pings the
// configured providers when a validator is available.
func (s *SettingsService) Validate() error {
	settings, err := s.Get()
	if err != nil {
		return err
	}

	var errs []error
	if settings.Storage.Backend == domain.StoragePostgres && settings.Storage.DSN == "" {
		errs = append(errs, fmt.Errorf("%w: postgres backend needs %s or %s", domain.ErrStoreUnavailable, keyStorageDSN, EnvDSN))
	}
	if !settings.Embedding.IsConfigured() {
		errs = append(errs, fmt.Errorf("%w: set %s (and an API key for cloud providers)", domain.ErrEmbeddingUnavailable, keyEmbedProvider))
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	if s.aiValidator == nil {
		return nil
	}
	if err := s.aiValidator.ValidateEmbedding(&settings.Embedding); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrEmbeddingUnavailable, err)
	}
	if err := s.aiValidator.ValidateLLM(&settings.LLM); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrLLMUnavailable, err)
	}
	return nil
}

// Path returns the config file path.
func (s *SettingsService) Path() string {
	return s.configStore.Path()
}

// Helper methods for reading with defaults.

func (s *SettingsService) getString(key, defaultVal string) string {
	if val := s.configStore.GetString(key); val != "" {
		return val
	}
	return defaultVal
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	if _, ok := s.configStore.Get(key); ok {
		return s.configStore.GetInt(key)
	}
	return defaultVal
}

func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	if _, ok := s.configStore.Get(key); ok {
		return s.configStore.GetFloat(key)
	}
	return defaultVal
}

func (s *SettingsService) getDuration(key string, defaultVal time.Duration) time.Duration {
	if _, ok := s.configStore.Get(key); ok {
		return s.configStore.GetDuration(key)
	}
	return defaultVal
}

func (s *SettingsService) getProvider(key string) domain.AIProvider {
	p := domain.AIProvider(s.configStore.GetString(key))
	if !p.IsValid() {
		return ""
	}
	return p
}

func (s *SettingsService) getBackend(defaultVal domain.StorageBackend) domain.StorageBackend {
	b := domain.StorageBackend(s.configStore.GetString(keyStorageBackend))
	if !b.IsValid() {
		return defaultVal
	}
	return b
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
