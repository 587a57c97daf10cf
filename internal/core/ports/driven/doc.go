// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
//   - CorpusStore: hierarchy, chunk and verse persistence (ingestion)
//   - CorpusReader: chunk and verse lookups (retrieval)
//   - SearchIndex: nearest-neighbour and fuzzy text queries
//   - EmbeddingService: text to vector
//   - ConfigStore: application configuration
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - LLMService: without it chunking uses the heuristic path and
//     query expansion and summaries are skipped.
//   - ChunkCache: without it every run asks the LLM again.
//   - SnapshotWriter: without it no audit JSON is written.
//   - PromptStore: without it built-in prompts are used.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter package
package driven
