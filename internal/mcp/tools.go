package mcp

import "github.com/Aman-CERP/docsift/internal/telemetry"

// SearchDocumentsInput defines the input schema for the search_documents tool.
type SearchDocumentsInput struct {
	Query string `json:"query" jsonschema:"free-text query describing the document you need"`
	TopK  int    `json:"top_k,omitempty" jsonschema:"candidates taken from each retriever before reranking, default 10, max 50"`
}

// SearchDocumentsOutput defines the output schema for the search_documents tool.
type SearchDocumentsOutput struct {
	Found      bool              `json:"found" jsonschema:"false when no document matched"`
	DocumentID string            `json:"document_id,omitempty" jsonschema:"absolute path of the best matching document"`
	Path       string            `json:"path,omitempty" jsonschema:"document path relative to the corpus root"`
	Confidence float64           `json:"confidence" jsonschema:"reranker score of the best match"`
	Candidates []CandidateOutput `json:"candidates,omitempty" jsonschema:"every reranked candidate, best first"`
}

// CandidateOutput is one reranked candidate.
type CandidateOutput struct {
	Path   string  `json:"path"`
	Score  float64 `json:"score"`
	Source string  `json:"source" jsonschema:"retriever that found it first: dense or sparse"`
	InBoth bool    `json:"in_both,omitempty"`
}

// QueryStatsInput defines the input schema for the query_stats tool (no parameters).
type QueryStatsInput struct{}

// QueryStatsOutput defines the output schema for the query_stats tool.
type QueryStatsOutput struct {
	Stats telemetry.Stats `json:"stats"`
}

// RecentQueriesInput defines the input schema for the recent_queries tool.
type RecentQueriesInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"number of newest entries to return, default 10"`
}

// RecentQueriesOutput defines the output schema for the recent_queries tool.
type RecentQueriesOutput struct {
	Entries []telemetry.QueryLogEntry `json:"entries"`
}
