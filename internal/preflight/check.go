package preflight

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// CheckStatus is the outcome of one check.
type CheckStatus int

const (
	StatusPass CheckStatus = iota
	StatusWarn
	StatusFail
)

// String returns the upper-case status name.
func (s CheckStatus) String() string {
	switch s {
	case StatusPass:
		return "PASS"
	case StatusWarn:
		return "WARN"
	case StatusFail:
		return "FAIL"
	default:
		return "UNKNOWN"
	}
}

// MarshalText renders the status by name in JSON output.
func (s CheckStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// CheckResult holds the result of a single check.
type CheckResult struct {
	Name     string      `json:"name"`
	Status   CheckStatus `json:"status"`
	Message  string      `json:"message"`
	Details  string      `json:"details,omitempty"`
	Required bool        `json:"required"`
}

// IsCritical reports whether a required check failed.
func (r CheckResult) IsCritical() bool {
	return r.Required && r.Status == StatusFail
}

// Provider is anything that can report whether it is reachable.
type Provider interface {
	Available(ctx context.Context) bool
}

type providerCheck struct {
	name     string
	provider Provider
	required bool
}

// Checker runs the checks.
type Checker struct {
	providers []providerCheck
	minDisk   uint64
}

// Option configures a Checker.
type Option func(*Checker)

// WithProvider adds an availability check for p. A required provider that
// is down fails the run; otherwise it is a warning.
func WithProvider(name string, p Provider, required bool) Option {
	return func(c *Checker) {
		c.providers = append(c.providers, providerCheck{name: name, provider: p, required: required})
	}
}

// WithMinDiskSpace overrides MinDiskSpaceBytes.
func WithMinDiskSpace(bytes uint64) Option {
	return func(c *Checker) { c.minDisk = bytes }
}

// New creates a Checker.
func New(opts ...Option) *Checker {
	c := &Checker{minDisk: MinDiskSpaceBytes}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RunAll runs every check for a corpus at root with state in dataDir.
func (c *Checker) RunAll(ctx context.Context, root, dataDir string) []CheckResult {
	results := []CheckResult{
		c.CheckCorpusRoot(root),
		c.CheckWritePermissions(dataDir),
		c.CheckDiskSpace(dataDir),
		c.CheckFileDescriptors(),
	}
	for _, p := range c.providers {
		results = append(results, c.checkProvider(ctx, p))
	}
	return results
}

// HasCriticalFailures reports whether any required check failed.
func (c *Checker) HasCriticalFailures(results []CheckResult) bool {
	for _, r := range results {
		if r.IsCritical() {
			return true
		}
	}
	return false
}

// SummaryStatus returns "failed", "ready_with_warnings" or "ready".
func (c *Checker) SummaryStatus(results []CheckResult) string {
	warnings := false
	for _, r := range results {
		if r.IsCritical() {
			return "failed"
		}
		if r.Status != StatusPass {
			warnings = true
		}
	}
	if warnings {
		return "ready_with_warnings"
	}
	return "ready"
}

// CheckCorpusRoot verifies root is a readable directory.
func (c *Checker) CheckCorpusRoot(root string) CheckResult {
	result := CheckResult{Name: "corpus_root", Required: true}

	info, err := os.Stat(root)
	switch {
	case err != nil:
		result.Status = StatusFail
		result.Message = fmt.Sprintf("cannot access: %v", err)
	case !info.IsDir():
		result.Status = StatusFail
		result.Message = "not a directory"
	default:
		if _, err := os.ReadDir(root); err != nil {
			result.Status = StatusFail
			result.Message = fmt.Sprintf("cannot list: %v", err)
			break
		}
		result.Status = StatusPass
		result.Message = root
	}
	return result
}

// CheckWritePermissions verifies files can be created in dataDir,
// creating the directory when missing.
func (c *Checker) CheckWritePermissions(dataDir string) CheckResult {
	result := CheckResult{Name: "write_permissions", Required: true}

	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("cannot create data directory: %v", err)
		return result
	}

	probe := filepath.Join(dataDir, ".preflight-write-test")
	f, err := os.Create(probe)
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("permission denied: %v", err)
		return result
	}
	_ = f.Close()
	_ = os.Remove(probe)

	result.Status = StatusPass
	result.Message = "OK"
	return result
}

func (c *Checker) checkProvider(ctx context.Context, p providerCheck) CheckResult {
	result := CheckResult{Name: p.name, Required: p.required}
	if p.provider.Available(ctx) {
		result.Status = StatusPass
		result.Message = "available"
		return result
	}

	result.Status = StatusWarn
	if p.required {
		result.Status = StatusFail
	}
	result.Message = "not reachable"
	result.Details = "Check the provider settings in .docsift.yaml or switch to an offline provider"
	return result
}
