package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// StatsURI is the resource carrying the aggregate query metrics.
const StatsURI = "docsift://stats"

// RegisterResources registers every indexed document as a file:// resource
// whose content is the indexed body. Call it after each build.
func (s *Server) RegisterResources(ctx context.Context) error {
	ids, err := s.backend.Documents(ctx)
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		uri := documentURI(id)
		current[uri] = struct{}{}
		if _, ok := s.resources[uri]; ok {
			continue
		}
		s.registerDocumentResource(id, uri)
	}

	var stale []string
	for uri := range s.resources {
		if _, ok := current[uri]; !ok {
			stale = append(stale, uri)
		}
	}
	if len(stale) > 0 {
		s.mcp.RemoveResources(stale...)
	}
	s.resources = current

	s.logger.Info("mcp_resources_registered",
		"count", len(ids),
		"removed", len(stale))
	return nil
}

// documentURI is the file:// URI of a document id (an absolute path).
func documentURI(id string) string {
	return "file://" + filepath.ToSlash(id)
}

func (s *Server) registerDocumentResource(id, uri string) {
	s.mcp.AddResource(
		&mcp.Resource{
			Name:        filepath.Base(id),
			URI:         uri,
			Description: relPath(s.backend.Root(), id),
			MIMEType:    MimeTypeForPath(id),
		},
		func(ctx context.Context, _ *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
			return s.handleReadDocument(ctx, uri)
		},
	)
}

// handleReadDocument serves the indexed body for uri.
func (s *Server) handleReadDocument(ctx context.Context, uri string) (*mcp.ReadResourceResult, error) {
	if !strings.HasPrefix(uri, "file://") {
		return nil, NewInvalidParamsError(fmt.Sprintf("unsupported resource URI: %s", uri))
	}
	id := filepath.FromSlash(strings.TrimPrefix(uri, "file://"))

	body, ok, err := s.backend.Body(ctx, id)
	if err != nil {
		return nil, MapError(err)
	}
	if !ok {
		return nil, NewDocumentNotFoundError(uri)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{
				URI:      uri,
				MIMEType: MimeTypeForPath(id),
				Text:     body,
			},
		},
	}, nil
}

func (s *Server) registerStatsResource() {
	s.mcp.AddResource(
		&mcp.Resource{
			Name:        "query_stats",
			URI:         StatsURI,
			Description: "Aggregate search metrics over the retained query log",
			MIMEType:    "application/json",
		},
		func(ctx context.Context, _ *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
			return s.handleReadStats(ctx)
		},
	)
}

func (s *Server) handleReadStats(_ context.Context) (*mcp.ReadResourceResult, error) {
	content, err := json.MarshalIndent(s.backend.Stats(), "", "  ")
	if err != nil {
		return nil, MapError(err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{
				URI:      StatsURI,
				MIMEType: "application/json",
				Text:     string(content),
			},
		},
	}, nil
}
