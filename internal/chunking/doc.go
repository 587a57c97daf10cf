// Package chunking groups a chapter's verses into chunks of 3 to 10 verses.
//
// Boundaries come from one of three places, in preference order: the chunk
// cache, an LLM suggestion (the semantic path) or a deterministic heuristic.
// Suggestions are untrusted. They are sanitized, repaired by Normalize and
// checked by Validate before use; any failure falls through to Heuristic,
// which satisfies the size bounds by construction.
package chunking
