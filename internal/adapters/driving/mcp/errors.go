// Package mcp provides an MCP (Model Context Protocol) server adapter for verselens.
// It lets AI assistants search the corpus, find related passages and look up verses.
package mcp

import "errors"

// ErrMissingSearchService is returned when the search service is not provided.
var ErrMissingSearchService = errors.New("mcp: search service is required")
