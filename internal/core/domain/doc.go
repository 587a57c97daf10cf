// Package domain defines the core business entities for verselens.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Tradition, Source, Work, Book, Chapter: the corpus hierarchy
//   - Verse: one numbered unit of source text, owned by a Chunk
//   - Chunk: a 3 to 10 verse group sharing one embedding
//   - RawVerse: parser output before persistence
//   - Card: a ranked chunk with its best verses, returned by retrieval
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
