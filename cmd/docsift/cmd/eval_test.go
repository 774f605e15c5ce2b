package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dserrors "github.com/Aman-CERP/docsift/internal/errors"
	"github.com/Aman-CERP/docsift/internal/validation"
)

func writeQueries(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "queries.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestEvalCmd_Passes(t *testing.T) {
	// Given: an indexed corpus and a query set matching it
	root := createCorpus(t)
	indexCorpus(t, root)
	queries := writeQueries(t, `
tier1:
  - id: T1-Q1
    name: refund timing
    query: refund eligibility
    expected: [c.txt]
negative:
  - id: N-1
    name: empty
    query: ""
`)

	// When: eval runs with JSON output
	stdout, _, err := executeCommand(t, "eval", "--root", root, "--json", queries)

	// Then: every query passes
	require.NoError(t, err)
	var report validation.Report
	require.NoError(t, json.Unmarshal([]byte(stdout), &report))
	assert.Equal(t, 1, report.Tier1Pass)
	assert.Equal(t, 1, report.NegPass)
	assert.Equal(t, "c.txt", report.Tier1[0].Document)
}

func TestEvalCmd_FailingTier1(t *testing.T) {
	root := createCorpus(t)
	indexCorpus(t, root)
	queries := writeQueries(t, `
tier1:
  - id: T1-Q1
    name: wrong expectation
    query: refund eligibility
    expected: [missing.txt]
`)

	stdout, _, err := executeCommand(t, "eval", "--root", root, queries)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "tier 1 0/1")
	assert.Contains(t, stdout, "Tier 1 (0/1)")
	assert.Contains(t, stdout, "missing.txt")
}

func TestEvalCmd_BadQueriesFile(t *testing.T) {
	root := createCorpus(t)

	_, _, err := executeCommand(t, "eval", "--root", root, filepath.Join(root, "nope.yaml"))

	assert.Equal(t, dserrors.ErrCodeInvalidInput, dserrors.GetCode(err))
}
