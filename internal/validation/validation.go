// Package validation runs a data-driven set of evaluation queries against
// a built index and reports which ones find their expected document.
//
// Query sets are YAML files with three sections: tier1 (must pass), tier2
// (should pass) and negative (must not fail). Editing the file needs no
// rebuild.
package validation

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	dserrors "github.com/Aman-CERP/docsift/internal/errors"
	"github.com/Aman-CERP/docsift/internal/search"
)

// QuerySpec defines an evaluation query with expected results.
type QuerySpec struct {
	ID    string `yaml:"id" json:"id"`
	Name  string `yaml:"name" json:"name"`
	Query string `yaml:"query" json:"query"`
	// Expected holds corpus-relative paths or path prefixes. Any match
	// counts.
	Expected []string `yaml:"expected" json:"expected,omitempty"`
	Notes    string   `yaml:"notes" json:"notes,omitempty"`
	Tier     int      `yaml:"-" json:"tier"`
}

// QuerySet holds all queries loaded from one file.
type QuerySet struct {
	Tier1    []QuerySpec `yaml:"tier1"`
	Tier2    []QuerySpec `yaml:"tier2"`
	Negative []QuerySpec `yaml:"negative"`
}

// Len returns the total number of queries.
func (s *QuerySet) Len() int {
	return len(s.Tier1) + len(s.Tier2) + len(s.Negative)
}

// LoadQueries reads a query set from path.
func LoadQueries(path string) (*QuerySet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read queries file %s: %w", path, err)
	}

	var set QuerySet
	if err := yaml.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("failed to parse queries YAML: %w", err)
	}
	if set.Len() == 0 {
		return nil, fmt.Errorf("queries file %s defines no queries", path)
	}

	for i := range set.Tier1 {
		set.Tier1[i].Tier = 1
	}
	for i := range set.Tier2 {
		set.Tier2[i].Tier = 2
	}
	for i := range set.Negative {
		set.Negative[i].Tier = 0
	}
	return &set, nil
}

// Searcher is the part of the application the validator queries.
type Searcher interface {
	Search(ctx context.Context, query string, topK int) (*search.Result, error)
	Root() string
}

// QueryResult captures the outcome of a single query.
type QueryResult struct {
	Spec       QuerySpec     `json:"spec"`
	Passed     bool          `json:"passed"`
	Duration   time.Duration `json:"duration_ns"`
	Document   string        `json:"document,omitempty"`
	Confidence float64       `json:"confidence"`
	Candidates []string      `json:"candidates,omitempty"`
	// MatchedAt is the candidate rank of the first expected path, or -1.
	MatchedAt int    `json:"matched_at"`
	Error     string `json:"error,omitempty"`
}

// Report summarizes a full run.
type Report struct {
	Timestamp  time.Time     `json:"timestamp"`
	Tier1      []QueryResult `json:"tier1"`
	Tier2      []QueryResult `json:"tier2"`
	Negative   []QueryResult `json:"negative"`
	Tier1Pass  int           `json:"tier1_pass"`
	Tier2Pass  int           `json:"tier2_pass"`
	NegPass    int           `json:"negative_pass"`
	Tier1Total int           `json:"tier1_total"`
	Tier2Total int           `json:"tier2_total"`
	NegTotal   int           `json:"negative_total"`
}

// Tier1Passed reports whether every tier 1 and negative query passed.
func (r *Report) Tier1Passed() bool {
	return r.Tier1Pass == r.Tier1Total && r.NegPass == r.NegTotal
}

// Validator runs query sets against a Searcher.
type Validator struct {
	searcher Searcher
	topK     int
	now      func() time.Time
}

// NewValidator creates a validator. topK <= 0 uses the engine default.
func NewValidator(s Searcher, topK int) (*Validator, error) {
	if s == nil {
		return nil, fmt.Errorf("searcher is required")
	}
	return &Validator{searcher: s, topK: topK, now: time.Now}, nil
}

// RunQuery executes a single query. The best document must match an
// expected path to pass; a negative query passes unless the search fails
// for a reason other than the query itself.
func (v *Validator) RunQuery(ctx context.Context, spec QuerySpec) QueryResult {
	result := QueryResult{Spec: spec, MatchedAt: -1}

	start := v.now()
	res, err := v.searcher.Search(ctx, spec.Query, v.topK)
	result.Duration = v.now().Sub(start)

	if err != nil {
		result.Error = err.Error()
		result.Passed = spec.Tier == 0 && isQueryError(err)
		return result
	}

	if res != nil {
		root := v.searcher.Root()
		result.Document = relPath(root, res.DocumentID)
		result.Confidence = res.Confidence
		for _, c := range res.Candidates {
			result.Candidates = append(result.Candidates, relPath(root, c.DocumentID))
		}
		result.MatchedAt = matchIndex(result.Candidates, spec.Expected)
	}

	if len(spec.Expected) == 0 {
		result.Passed = true
		return result
	}
	result.Passed = res != nil && matchIndex([]string{result.Document}, spec.Expected) == 0
	return result
}

// RunAll executes every query in set.
func (v *Validator) RunAll(ctx context.Context, set *QuerySet) *Report {
	report := &Report{Timestamp: v.now()}

	for _, spec := range set.Tier1 {
		r := v.RunQuery(ctx, spec)
		report.Tier1 = append(report.Tier1, r)
		report.Tier1Total++
		if r.Passed {
			report.Tier1Pass++
		}
	}
	for _, spec := range set.Tier2 {
		r := v.RunQuery(ctx, spec)
		report.Tier2 = append(report.Tier2, r)
		report.Tier2Total++
		if r.Passed {
			report.Tier2Pass++
		}
	}
	for _, spec := range set.Negative {
		r := v.RunQuery(ctx, spec)
		report.Negative = append(report.Negative, r)
		report.NegTotal++
		if r.Passed {
			report.NegPass++
		}
	}
	return report
}

// isQueryError reports whether err rejects the query itself, such as an
// empty query.
func isQueryError(err error) bool {
	var de *dserrors.DocsiftError
	return errors.As(err, &de) && de.Category == dserrors.CategoryValidation
}

// matchIndex returns the position of the first path matching an expected
// entry, or -1.
func matchIndex(paths, expected []string) int {
	for i, p := range paths {
		for _, exp := range expected {
			exp = filepath.ToSlash(exp)
			if p == exp || strings.HasPrefix(p, strings.TrimSuffix(exp, "/")+"/") {
				return i
			}
		}
	}
	return -1
}

func relPath(root, id string) string {
	rel, err := filepath.Rel(root, id)
	if err != nil || strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(id)
	}
	return filepath.ToSlash(rel)
}
