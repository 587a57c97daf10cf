package domain

import "time"

const unknownDescription = "Unknown"

// StorageBackend selects the corpus store implementation.
type StorageBackend string

// Available storage backends.
const (
	// StorageSQLite is a local single-file store with an in-process index.
	StorageSQLite StorageBackend = "sqlite"

	// StoragePostgres uses pgvector and pg_trgm for the index.
	StoragePostgres StorageBackend = "postgres"

	// StorageMemory keeps everything in process; used for dry runs and tests.
	StorageMemory StorageBackend = "memory"
)

// IsValid returns true if the backend is recognised.
func (b StorageBackend) IsValid() bool {
	switch b {
	case StorageSQLite, StoragePostgres, StorageMemory:
		return true
	default:
		return false
	}
}

// Description returns a human-readable description of the backend.
func (b StorageBackend) Description() string {
	switch b {
	case StorageSQLite:
		return "SQLite (local file)"
	case StoragePostgres:
		return "PostgreSQL (pgvector + pg_trgm)"
	case StorageMemory:
		return "In-memory (not persisted)"
	default:
		return unknownDescription
	}
}

// AIProvider identifies an AI service provider for embeddings or LLM.
type AIProvider string

// Available AI providers.
const (
	// AIProviderOllama is local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is OpenAI cloud API.
	AIProviderOpenAI AIProvider = "openai"

	// AIProviderAnthropic is Anthropic cloud API.
	AIProviderAnthropic AIProvider = "anthropic"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOllama, AIProviderOpenAI, AIProviderAnthropic:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI || p == AIProviderAnthropic
}

// SupportsEmbeddings returns true if the provider offers an embedding API.
func (p AIProvider) SupportsEmbeddings() bool {
	return p == AIProviderOllama || p == AIProviderOpenAI
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderOllama:
		return "Ollama (local)"
	case AIProviderOpenAI:
		return "OpenAI (cloud)"
	case AIProviderAnthropic:
		return "Anthropic (cloud)"
	default:
		return unknownDescription
	}
}

// StorageSettings holds corpus store configuration.
type StorageSettings struct {
	Backend StorageBackend

	// DSN is the PostgreSQL connection string.
	DSN string

	// DataDir holds the SQLite database file.
	DataDir string
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	Provider AIProvider
	Model    string
	BaseURL  string
	APIKey   string

	// RequestsPerSecond paces calls to the provider. Zero disables pacing.
	RequestsPerSecond float64
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	if !e.Provider.SupportsEmbeddings() {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// LLMSettings holds chat provider configuration.
type LLMSettings struct {
	Provider AIProvider
	Model    string
	BaseURL  string
	APIKey   string

	// ChunkModel overrides Model for chunk-boundary suggestions.
	ChunkModel string

	RequestsPerSecond float64
}

// IsConfigured returns true if the LLM provider is set up.
func (l LLMSettings) IsConfigured() bool {
	if !l.Provider.IsValid() {
		return false
	}
	if l.Provider.RequiresAPIKey() && l.APIKey == "" {
		return false
	}
	return true
}

// RetrySettings configures the retry policy wrapped around storage and embedding calls.
type RetrySettings struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Throttle     time.Duration
}

// IngestSettings holds ingestion defaults.
type IngestSettings struct {
	Tradition   string
	Source      string
	Work        string
	Concurrency int
	CacheDir    string
	OutputDir   string
}

// SearchSettings holds retrieval defaults.
type SearchSettings struct {
	Limit         int
	LexicalWeight float64
	Diversity     float64
}

// AppSettings holds all application settings.
type AppSettings struct {
	Storage   StorageSettings
	Embedding EmbeddingSettings
	LLM       LLMSettings
	Retry     RetrySettings
	Ingest    IngestSettings
	Search    SearchSettings
}

// DefaultAppSettings returns settings with sensible defaults.
// AI providers are left unconfigured until an API key or local endpoint is supplied.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		Storage: StorageSettings{Backend: StorageSQLite},
		Retry: RetrySettings{
			MaxAttempts:  5,
			InitialDelay: 500 * time.Millisecond,
			MaxDelay:     10 * time.Second,
		},
		Ingest: IngestSettings{
			Tradition:   DefaultTradition,
			Source:      DefaultSource,
			Work:        DefaultWork,
			Concurrency: 2,
		},
		Search: SearchSettings{
			Limit:         DefaultSearchLimit,
			LexicalWeight: DefaultLexicalWeight,
		},
	}
}

// DefaultEmbeddingModels returns default models for each embedding provider.
func DefaultEmbeddingModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama: "nomic-embed-text",
		AIProviderOpenAI: "text-embedding-3-small",
	}
}

// DefaultLLMModels returns default models for each LLM provider.
func DefaultLLMModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama:    "llama3.2",
		AIProviderOpenAI:    "gpt-4o-mini",
		AIProviderAnthropic: "claude-3-5-sonnet-latest",
	}
}

// EmbeddingDimensions returns the vector dimensions for known models.
func EmbeddingDimensions() map[string]int {
	return map[string]int{
		"nomic-embed-text":       768,
		"mxbai-embed-large":      1024,
		"all-minilm":             384,
		"text-embedding-3-small": 1536,
		"text-embedding-3-large": 3072,
		"text-embedding-ada-002": 1536,
	}
}
