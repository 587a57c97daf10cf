package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/verselens-cli/internal/core/domain"
)

const (
	// URIScheme is the custom URI scheme for verselens resources.
	uriScheme = "verselens://"
)

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "books",
		Name:        "books",
		Description: "Canonical book catalogue with sequence numbers and aliases",
		MIMEType:    "application/json",
	}, s.handleBooksResource)

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "verses/{book}/{chapter}/{verse}",
		Name:        "verse",
		Description: "Text of a single verse",
		MIMEType:    "text/plain",
	}, s.handleVerseResource)
}

// handleBooksResource returns the canonical book catalogue.
func (s *Server) handleBooksResource(
	_ context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	type bookInfo struct {
		Title   string   `json:"title"`
		Seq     int      `json:"seq"`
		Aliases []string `json:"aliases,omitempty"`
	}

	books := domain.CanonicalBooks()
	infos := make([]bookInfo, len(books))
	for i, b := range books {
		infos[i] = bookInfo{Title: b.Title, Seq: b.Seq, Aliases: b.Aliases}
	}

	data, err := json.MarshalIndent(infos, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling books: %w", err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// handleVerseResource returns the text of one verse.
func (s *Server) handleVerseResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	book, chapter, verse, ok := parseVerseURI(req.Params.URI)
	if !ok {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	v, err := s.ports.Search.Verse(ctx, "", book, chapter, verse)
	if err != nil {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: "text/plain",
			Text:     v.Reference() + " " + v.Text,
		}},
	}, nil
}

// parseVerseURI extracts the reference from a URI like verselens://verses/{book}/{chapter}/{verse}.
// Book names may be URL-escaped ("1%20John").
func parseVerseURI(uri string) (book string, chapter, verse int, ok bool) {
	const prefix = uriScheme + "verses/"

	if !strings.HasPrefix(uri, prefix) {
		return "", 0, 0, false
	}

	parts := strings.Split(strings.TrimPrefix(uri, prefix), "/")
	if len(parts) != 3 || parts[0] == "" {
		return "", 0, 0, false
	}

	book, err := url.PathUnescape(parts[0])
	if err != nil {
		return "", 0, 0, false
	}
	chapter, err = strconv.Atoi(parts[1])
	if err != nil || chapter < 0 {
		return "", 0, 0, false
	}
	verse, err = strconv.Atoi(parts[2])
	if err != nil || verse < 0 {
		return "", 0, 0, false
	}
	return book, chapter, verse, true
}
