package mcp

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/docsift/internal/search"
)

func TestClampLimit(t *testing.T) {
	tests := []struct {
		limit int
		want  int
	}{
		{0, DefaultRecentLimit},
		{-3, DefaultRecentLimit},
		{5, 5},
		{MaxRecentLimit + 1, MaxRecentLimit},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, clampLimit(tt.limit, DefaultRecentLimit, MaxRecentLimit), "limit=%d", tt.limit)
	}
}

func TestToSearchOutput_NilIsNotFound(t *testing.T) {
	out := toSearchOutput(nil, "/corpus")

	assert.False(t, out.Found)
	assert.Empty(t, out.DocumentID)
	assert.Zero(t, out.Confidence)
}

func TestToSearchOutput_RelativePaths(t *testing.T) {
	root := filepath.FromSlash("/corpus")
	res := &search.Result{
		DocumentID: filepath.Join(root, "policies", "c.txt"),
		Confidence: 0.8,
		Candidates: []search.Candidate{
			{DocumentID: filepath.Join(root, "policies", "c.txt"), Score: 0.8, Source: search.SourceDense, InBoth: true},
			{DocumentID: filepath.FromSlash("/elsewhere/a.txt"), Score: 0.4, Source: search.SourceSparse},
		},
	}

	out := toSearchOutput(res, root)

	assert.True(t, out.Found)
	assert.Equal(t, res.DocumentID, out.DocumentID)
	assert.Equal(t, "policies/c.txt", out.Path)
	assert.Equal(t, 0.8, out.Confidence)
	require.Len(t, out.Candidates, 2)
	assert.Equal(t, "dense", out.Candidates[0].Source)
	assert.True(t, out.Candidates[0].InBoth)
	assert.Equal(t, filepath.FromSlash("/elsewhere/a.txt"), out.Candidates[1].Path)
}

func TestMimeTypeForPath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"main.go", "text/x-go"},
		{"script.PY", "text/x-python"},
		{"README.md", "text/markdown"},
		{"notes.txt", "text/plain"},
		{"manual.pdf", "text/plain"},
		{"query.sql", "text/x-sql"},
		{"noext", "text/plain"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MimeTypeForPath(tt.path), tt.path)
	}
}
