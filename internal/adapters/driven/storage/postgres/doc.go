// Package postgres provides a corpus store on PostgreSQL with the pgvector and
// pg_trgm extensions. It implements driven.CorpusStore, driven.CorpusReader
// and driven.SearchIndex, pushing vector ranking and fuzzy matching into SQL.
//
// The schema is applied with golang-migrate from the embedded migrations/
// directory when the store opens. Unique violations (SQLSTATE 23505) surface
// as domain.ErrAlreadyExists.
package postgres
