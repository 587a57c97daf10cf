// Package sqlite provides the default corpus store: a single SQLite file that
// implements driven.CorpusStore, driven.CorpusReader and driven.SearchIndex.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that
// requires no CGO. Embeddings are stored as little-endian float32 BLOBs and
// ranked in process; fuzzy text matching uses the same word-trigram scoring as
// pg_trgm so results agree with the PostgreSQL store.
//
// # Schema
//
// The schema is managed through versioned migrations embedded from the
// migrations/ directory. Natural keys carry UNIQUE constraints, and unique
// violations surface as domain.ErrAlreadyExists so concurrent ingestion
// workers can re-select instead of failing.
//
// # Data Location
//
// By default, the database is stored at ~/.verselens/data/corpus.db
//
// # Thread Safety
//
// All operations are safe for concurrent use. Writers are serialised by SQLite
// in WAL mode; lock contention surfaces as "database is locked", which the
// retry policy treats as transient.
package sqlite
