package mcp

import (
	"path/filepath"
	"strings"

	"github.com/Aman-CERP/docsift/internal/search"
)

// Limits for the recent_queries tool.
const (
	DefaultRecentLimit = 10
	MaxRecentLimit     = 1000
)

// clampLimit applies a default for non-positive limits and caps the rest.
func clampLimit(limit, def, maxLimit int) int {
	if limit <= 0 {
		return def
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}

// toSearchOutput converts an engine result. A nil result is "not found".
func toSearchOutput(res *search.Result, root string) SearchDocumentsOutput {
	if res == nil {
		return SearchDocumentsOutput{}
	}

	out := SearchDocumentsOutput{
		Found:      true,
		DocumentID: res.DocumentID,
		Path:       relPath(root, res.DocumentID),
		Confidence: res.Confidence,
		Candidates: make([]CandidateOutput, 0, len(res.Candidates)),
	}
	for _, c := range res.Candidates {
		out.Candidates = append(out.Candidates, CandidateOutput{
			Path:   relPath(root, c.DocumentID),
			Score:  c.Score,
			Source: string(c.Source),
			InBoth: c.InBoth,
		})
	}
	return out
}

// relPath renders id relative to root, or id itself when it lies outside.
func relPath(root, id string) string {
	if root == "" {
		return id
	}
	rel, err := filepath.Rel(root, id)
	if err != nil || strings.HasPrefix(rel, "..") {
		return id
	}
	return filepath.ToSlash(rel)
}
