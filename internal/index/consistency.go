package index

import (
	"context"
	"log/slog"
	"sort"
	"time"
)

// InconsistencyType categorizes detected issues.
type InconsistencyType int

const (
	// InconsistencyOrphanVector is a dense document missing from the sparse doc map.
	InconsistencyOrphanVector InconsistencyType = iota
	// InconsistencyMissingVector is a sparse doc map entry missing from the dense store.
	InconsistencyMissingVector
	// InconsistencyDuplicateOrdinal is an ID held by more than one sparse ordinal.
	InconsistencyDuplicateOrdinal
)

// String returns a human-readable description of the inconsistency type.
func (t InconsistencyType) String() string {
	switch t {
	case InconsistencyOrphanVector:
		return "orphan_vector"
	case InconsistencyMissingVector:
		return "missing_vector"
	case InconsistencyDuplicateOrdinal:
		return "duplicate_ordinal"
	default:
		return "unknown"
	}
}

// Inconsistency represents a detected cross-index issue.
type Inconsistency struct {
	Type       InconsistencyType
	DocumentID string
}

// CheckResult contains the outcome of a consistency check.
type CheckResult struct {
	DenseCount      int
	SparseCount     int
	Inconsistencies []Inconsistency
	Duration        time.Duration
}

// Consistent reports whether the two ID spaces match one to one.
func (r *CheckResult) Consistent() bool {
	return len(r.Inconsistencies) == 0
}

// ConsistencyChecker compares the dense and sparse ID spaces. After a
// successful build they hold exactly the same documents.
type ConsistencyChecker struct {
	dense  *DenseIndex
	sparse *SparseIndex
}

// NewConsistencyChecker creates a checker over both indices.
func NewConsistencyChecker(dense *DenseIndex, sparse *SparseIndex) *ConsistencyChecker {
	return &ConsistencyChecker{dense: dense, sparse: sparse}
}

// Check lists every ID present in one index but not the other. A sparse
// index that was never built is reported as an error.
func (c *ConsistencyChecker) Check(ctx context.Context) (*CheckResult, error) {
	start := time.Now()

	docMap, err := c.sparse.DocMap()
	if err != nil {
		return nil, err
	}
	denseIDs, err := c.dense.IDs(ctx)
	if err != nil {
		return nil, err
	}

	var issues []Inconsistency
	sparseSet := make(map[string]bool, len(docMap))
	for _, id := range docMap {
		if sparseSet[id] {
			issues = append(issues, Inconsistency{Type: InconsistencyDuplicateOrdinal, DocumentID: id})
			continue
		}
		sparseSet[id] = true
	}

	denseSet := make(map[string]bool, len(denseIDs))
	for _, id := range denseIDs {
		denseSet[id] = true
		if !sparseSet[id] {
			issues = append(issues, Inconsistency{Type: InconsistencyOrphanVector, DocumentID: id})
		}
	}
	for id := range sparseSet {
		if !denseSet[id] {
			issues = append(issues, Inconsistency{Type: InconsistencyMissingVector, DocumentID: id})
		}
	}

	sort.SliceStable(issues, func(i, j int) bool {
		if issues[i].Type != issues[j].Type {
			return issues[i].Type < issues[j].Type
		}
		return issues[i].DocumentID < issues[j].DocumentID
	})

	return &CheckResult{
		DenseCount:      len(denseIDs),
		SparseCount:     len(docMap),
		Inconsistencies: issues,
		Duration:        time.Since(start),
	}, nil
}

// Repair deletes orphan vectors. Missing vectors and duplicate ordinals
// need a rebuild and are only logged.
func (c *ConsistencyChecker) Repair(ctx context.Context, issues []Inconsistency) error {
	var orphans []string
	var needRebuild int
	for _, issue := range issues {
		switch issue.Type {
		case InconsistencyOrphanVector:
			orphans = append(orphans, issue.DocumentID)
		default:
			needRebuild++
		}
	}

	if len(orphans) > 0 {
		if err := c.dense.Delete(ctx, orphans); err != nil {
			return err
		}
		slog.Info("deleted orphan vector entries", slog.Int("count", len(orphans)))
	}
	if needRebuild > 0 {
		slog.Warn("index inconsistencies require rebuild",
			slog.Int("count", needRebuild))
	}
	return nil
}
