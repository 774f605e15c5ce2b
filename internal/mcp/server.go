package mcp

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/docsift/internal/search"
	"github.com/Aman-CERP/docsift/internal/telemetry"
	"github.com/Aman-CERP/docsift/pkg/version"
)

// ServerName is reported to MCP clients.
const ServerName = "docsift"

// Backend is what the server needs from the application.
type Backend interface {
	Search(ctx context.Context, query string, topK int) (*search.Result, error)
	Stats() telemetry.Stats
	Recent(limit int) []telemetry.QueryLogEntry
	Documents(ctx context.Context) ([]string, error)
	Body(ctx context.Context, id string) (string, bool, error)
	Root() string
}

// Server bridges MCP clients with the hybrid search engine.
type Server struct {
	mcp     *mcp.Server
	backend Backend
	logger  *slog.Logger

	mu        sync.RWMutex
	resources map[string]struct{}
}

// ToolInfo describes a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

var tools = []ToolInfo{
	{
		Name:        "search_documents",
		Description: "Find the single document in the indexed corpus that best answers a free-text query. Returns its path and a confidence score, or found=false.",
	},
	{
		Name:        "query_stats",
		Description: "Aggregate search metrics: total and successful queries, success rate, average response time and confidence.",
	},
	{
		Name:        "recent_queries",
		Description: "The newest search log entries with response time, outcome and confidence.",
	},
}

// NewServer creates an MCP server over backend.
func NewServer(backend Backend) (*Server, error) {
	if backend == nil {
		return nil, errors.New("backend is required")
	}

	s := &Server{
		backend:   backend,
		logger:    slog.Default(),
		resources: make(map[string]struct{}),
	}
	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    ServerName,
			Version: version.Version,
		},
		nil,
	)

	s.registerTools()
	s.registerStatsResource()
	return s, nil
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []ToolInfo {
	return append([]ToolInfo(nil), tools...)
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        tools[0].Name,
		Description: tools[0].Description,
	}, s.mcpSearchHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        tools[1].Name,
		Description: tools[1].Description,
	}, s.mcpStatsHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        tools[2].Name,
		Description: tools[2].Description,
	}, s.mcpRecentHandler)

	s.logger.Debug("mcp_tools_registered", slog.Int("count", len(tools)))
}

// mcpSearchHandler is the MCP SDK handler for the search_documents tool.
func (s *Server) mcpSearchHandler(ctx context.Context, _ *mcp.CallToolRequest, input SearchDocumentsInput) (
	*mcp.CallToolResult,
	SearchDocumentsOutput,
	error,
) {
	query := strings.TrimSpace(input.Query)
	if query == "" {
		return nil, SearchDocumentsOutput{}, NewInvalidParamsError("query parameter is required")
	}
	if input.TopK < 0 {
		return nil, SearchDocumentsOutput{}, NewInvalidParamsError("top_k must not be negative")
	}

	requestID := generateRequestID()
	start := time.Now()
	res, err := s.backend.Search(ctx, query, input.TopK)
	if err != nil {
		s.logger.Warn("mcp_search_failed",
			slog.String("request_id", requestID),
			slog.String("error", err.Error()))
		return nil, SearchDocumentsOutput{}, MapError(err)
	}

	out := toSearchOutput(res, s.backend.Root())
	s.logger.Info("mcp_search",
		slog.String("request_id", requestID),
		slog.Bool("found", out.Found),
		slog.Float64("confidence", out.Confidence),
		slog.Duration("duration", time.Since(start)))
	return nil, out, nil
}

// mcpStatsHandler is the MCP SDK handler for the query_stats tool.
func (s *Server) mcpStatsHandler(_ context.Context, _ *mcp.CallToolRequest, _ QueryStatsInput) (
	*mcp.CallToolResult,
	QueryStatsOutput,
	error,
) {
	return nil, QueryStatsOutput{Stats: s.backend.Stats()}, nil
}

// mcpRecentHandler is the MCP SDK handler for the recent_queries tool.
func (s *Server) mcpRecentHandler(_ context.Context, _ *mcp.CallToolRequest, input RecentQueriesInput) (
	*mcp.CallToolResult,
	RecentQueriesOutput,
	error,
) {
	limit := clampLimit(input.Limit, DefaultRecentLimit, MaxRecentLimit)
	entries := s.backend.Recent(limit)
	if entries == nil {
		entries = []telemetry.QueryLogEntry{}
	}
	return nil, RecentQueriesOutput{Entries: entries}, nil
}

// Serve runs the server over the given transport until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, transport string) error {
	s.logger.Info("mcp_server_starting", slog.String("transport", transport))

	switch transport {
	case "", "stdio":
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("mcp_server_stopped", slog.String("error", err.Error()))
		} else {
			s.logger.Info("mcp_server_stopped")
		}
		return err
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio)", transport)
	}
}

// generateRequestID creates a short unique request ID for log correlation.
func generateRequestID() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
