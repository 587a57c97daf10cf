// Package artifacts writes the on-disk audit and memo files produced by
// ingestion: the per-chapter chunk cache and the per-book verse and chunk
// snapshots. All files are JSON keyed by the sanitized book name. None of them
// is a source of truth; deleting the directories only costs recomputation.
package artifacts
