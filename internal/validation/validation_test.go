package validation

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dserrors "github.com/Aman-CERP/docsift/internal/errors"
	"github.com/Aman-CERP/docsift/internal/search"
)

// =============================================================================
// Mock searcher
// =============================================================================

type mockSearcher struct {
	root    string
	results map[string]*search.Result
	errs    map[string]error
	calls   atomic.Int32
}

func (m *mockSearcher) Search(_ context.Context, query string, _ int) (*search.Result, error) {
	m.calls.Add(1)
	if err, ok := m.errs[query]; ok {
		return nil, err
	}
	return m.results[query], nil
}

func (m *mockSearcher) Root() string { return m.root }

func result(root string, best string, others ...string) *search.Result {
	res := &search.Result{DocumentID: filepath.Join(root, best), Confidence: 0.9}
	for _, p := range append([]string{best}, others...) {
		res.Candidates = append(res.Candidates, search.Candidate{DocumentID: filepath.Join(root, p)})
	}
	return res
}

// =============================================================================
// LoadQueries
// =============================================================================

func TestLoadQueries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queries.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
tier1:
  - id: T1-Q1
    name: refund
    query: refund eligibility
    expected: [c.txt]
tier2:
  - id: T2-Q1
    name: shipping
    query: shipping
    expected: [guides/]
negative:
  - id: N-1
    name: gibberish
    query: zzqx
`), 0o644))

	set, err := LoadQueries(path)

	require.NoError(t, err)
	assert.Equal(t, 3, set.Len())
	assert.Equal(t, 1, set.Tier1[0].Tier)
	assert.Equal(t, 2, set.Tier2[0].Tier)
	assert.Equal(t, 0, set.Negative[0].Tier)
	assert.Equal(t, []string{"c.txt"}, set.Tier1[0].Expected)
}

func TestLoadQueries_Errors(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.yaml")
	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(empty, []byte("tier1: []\n"), 0o644))
	require.NoError(t, os.WriteFile(bad, []byte("tier1: [\n"), 0o644))

	tests := []struct {
		name string
		path string
	}{
		{"missing file", filepath.Join(dir, "missing.yaml")},
		{"no queries", empty},
		{"invalid yaml", bad},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadQueries(tt.path)
			assert.Error(t, err)
		})
	}
}

// =============================================================================
// RunQuery
// =============================================================================

func TestRunQuery(t *testing.T) {
	root := filepath.FromSlash("/corpus")
	searcher := &mockSearcher{
		root: root,
		results: map[string]*search.Result{
			"refund":   result(root, "c.txt", "a.txt"),
			"policy":   result(root, "a.txt", "c.txt"),
			"shipping": result(root, "guides/ship.md"),
		},
		errs: map[string]error{
			"":      dserrors.New(dserrors.ErrCodeQueryEmpty, "query is empty", nil),
			"boom":  dserrors.ProviderError("reranker", errors.New("503")),
			"later": dserrors.ErrNotReady,
		},
	}
	v, err := NewValidator(searcher, 5)
	require.NoError(t, err)

	tests := []struct {
		name          string
		spec          QuerySpec
		wantPassed    bool
		wantMatchedAt int
	}{
		{"best document matches", QuerySpec{Query: "refund", Expected: []string{"c.txt"}, Tier: 1}, true, 0},
		{"expected only as runner-up", QuerySpec{Query: "policy", Expected: []string{"c.txt"}, Tier: 1}, false, 1},
		{"directory prefix", QuerySpec{Query: "shipping", Expected: []string{"guides/"}, Tier: 2}, true, 0},
		{"no match at all", QuerySpec{Query: "nothing", Expected: []string{"c.txt"}, Tier: 1}, false, -1},
		{"negative without expectation", QuerySpec{Query: "nothing", Tier: 0}, true, -1},
		{"negative empty query", QuerySpec{Query: "", Tier: 0}, true, -1},
		{"negative provider failure", QuerySpec{Query: "boom", Tier: 0}, false, -1},
		{"positive search error", QuerySpec{Query: "later", Expected: []string{"c.txt"}, Tier: 1}, false, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := v.RunQuery(context.Background(), tt.spec)

			assert.Equal(t, tt.wantPassed, r.Passed)
			assert.Equal(t, tt.wantMatchedAt, r.MatchedAt)
		})
	}
}

func TestRunQuery_RecordsRelativePaths(t *testing.T) {
	root := filepath.FromSlash("/corpus")
	v, err := NewValidator(&mockSearcher{
		root:    root,
		results: map[string]*search.Result{"refund": result(root, "docs/c.txt", "a.txt")},
	}, 0)
	require.NoError(t, err)

	r := v.RunQuery(context.Background(), QuerySpec{Query: "refund", Expected: []string{"docs/c.txt"}, Tier: 1})

	assert.Equal(t, "docs/c.txt", r.Document)
	assert.Equal(t, []string{"docs/c.txt", "a.txt"}, r.Candidates)
	assert.Equal(t, 0.9, r.Confidence)
	assert.Empty(t, r.Error)
}

// =============================================================================
// RunAll
// =============================================================================

func TestRunAll_CountsPerTier(t *testing.T) {
	root := filepath.FromSlash("/corpus")
	searcher := &mockSearcher{
		root: root,
		results: map[string]*search.Result{
			"refund": result(root, "c.txt"),
			"policy": result(root, "b.txt"),
		},
	}
	v, err := NewValidator(searcher, 0)
	require.NoError(t, err)
	set := &QuerySet{
		Tier1:    []QuerySpec{{Query: "refund", Expected: []string{"c.txt"}, Tier: 1}},
		Tier2:    []QuerySpec{{Query: "policy", Expected: []string{"a.txt"}, Tier: 2}},
		Negative: []QuerySpec{{Query: "zzqx"}},
	}

	report := v.RunAll(context.Background(), set)

	assert.Equal(t, int32(3), searcher.calls.Load())
	assert.Equal(t, 1, report.Tier1Pass)
	assert.Equal(t, 1, report.Tier1Total)
	assert.Equal(t, 0, report.Tier2Pass)
	assert.Equal(t, 1, report.Tier2Total)
	assert.Equal(t, 1, report.NegPass)
	assert.True(t, report.Tier1Passed())
}

func TestNewValidator_RequiresSearcher(t *testing.T) {
	_, err := NewValidator(nil, 0)
	assert.Error(t, err)
}
