package scanner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// resultBuffer is the capacity of the result channel.
const resultBuffer = 64

// Scanner discovers indexable files in a corpus directory.
type Scanner struct{}

// New creates a new Scanner instance.
func New() *Scanner {
	return &Scanner{}
}

// Scan discovers all supported files under opts.RootDir. It returns a
// channel of ScanResult that streams files as they are discovered and is
// closed when scanning is complete. An inaccessible root fails up front.
func (s *Scanner) Scan(ctx context.Context, opts *ScanOptions) (<-chan ScanResult, error) {
	if opts == nil {
		opts = &ScanOptions{}
	}

	rootDir := opts.RootDir
	if rootDir == "" {
		rootDir = "."
	}

	absRoot, err := filepath.Abs(rootDir)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to stat root directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root path is not a directory: %s", absRoot)
	}

	results := make(chan ScanResult, resultBuffer)
	go func() {
		defer close(results)
		s.scan(ctx, absRoot, opts, results)
	}()

	return results, nil
}

// Collect drains a Scan into the files to index and the paths skipped on
// the way. The first walk error is returned.
func (s *Scanner) Collect(ctx context.Context, opts *ScanOptions) ([]*FileInfo, []Skip, error) {
	ch, err := s.Scan(ctx, opts)
	if err != nil {
		return nil, nil, err
	}

	var files []*FileInfo
	var skipped []Skip
	var firstErr error
	for r := range ch {
		switch {
		case r.Error != nil:
			if firstErr == nil {
				firstErr = r.Error
			}
		case r.Skip != nil:
			skipped = append(skipped, *r.Skip)
		default:
			files = append(files, r.File)
		}
	}
	if firstErr != nil {
		return nil, nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	return files, skipped, nil
}

func (s *Scanner) scan(ctx context.Context, absRoot string, opts *ScanOptions, results chan<- ScanResult) {
	send := func(r ScanResult) error {
		select {
		case results <- r:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	skip := func(path, reason string) error {
		return send(ScanResult{Skip: &Skip{Path: filepath.Clean(path), Reason: reason}})
	}

	err := filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil {
			if path == absRoot {
				return err
			}
			if d == nil || d.IsDir() || isSupported(path) {
				if sendErr := skip(path, ReasonUnreadable+": "+err.Error()); sendErr != nil {
					return sendErr
				}
			}
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		relPath, err := filepath.Rel(absRoot, path)
		if err != nil {
			return nil
		}
		if relPath == "." {
			return nil
		}

		if d.IsDir() {
			if ShouldExcludeDir(relPath, opts.ExcludePatterns) {
				return filepath.SkipDir
			}
			return nil
		}

		if d.Type()&fs.ModeSymlink != 0 && !opts.FollowSymlinks {
			return nil
		}

		kind, ok := Classify(path)
		if !ok {
			return nil
		}
		if ShouldExcludeFile(relPath, opts.ExcludePatterns) {
			return nil
		}
		if IsSensitive(relPath) {
			return skip(path, ReasonSensitive)
		}

		info, err := os.Stat(path)
		if err != nil {
			return skip(path, ReasonUnreadable+": "+err.Error())
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		fileInfo := &FileInfo{
			Path:     relPath,
			AbsPath:  filepath.Clean(path),
			Size:     info.Size(),
			ModTime:  info.ModTime(),
			Kind:     kind,
			Language: DetectLanguage(path),
		}

		return send(ScanResult{File: fileInfo})
	})

	if err != nil && !errors.Is(err, context.Canceled) {
		select {
		case results <- ScanResult{Error: err}:
		case <-ctx.Done():
		}
	}
}

// ShouldExcludeDir reports whether a directory is pruned. Hidden
// directories (including .git and .docsift) are always pruned.
func ShouldExcludeDir(relPath string, patterns []string) bool {
	if strings.HasPrefix(filepath.Base(relPath), ".") {
		return true
	}
	for _, pattern := range defaultExcludeDirs {
		if matchDirPattern(relPath, pattern) {
			return true
		}
	}
	for _, pattern := range patterns {
		if matchDirPattern(relPath, pattern) {
			return true
		}
	}
	return false
}

// ShouldExcludeFile reports whether a file matches a custom exclude
// pattern. Excluded files are not reported.
func ShouldExcludeFile(relPath string, patterns []string) bool {
	baseName := filepath.Base(relPath)

	for _, pattern := range patterns {
		if matchFilePattern(baseName, relPath, pattern) {
			return true
		}
	}
	return false
}

// matchDirPattern checks if a directory path matches a pattern.
func matchDirPattern(relPath, pattern string) bool {
	// **/name/** matches the name at any depth
	if strings.HasPrefix(pattern, "**/") {
		suffix := strings.TrimPrefix(pattern, "**/")
		suffix = strings.TrimSuffix(suffix, "/**")
		for _, part := range strings.Split(relPath, string(filepath.Separator)) {
			if part == suffix {
				return true
			}
		}
		return false
	}

	// dir/** matches the directory itself and everything under it
	if strings.HasSuffix(pattern, "/**") {
		prefix := strings.TrimSuffix(pattern, "/**")
		return relPath == prefix || strings.HasPrefix(relPath, prefix+string(filepath.Separator))
	}

	return relPath == pattern || strings.HasPrefix(relPath, pattern+string(filepath.Separator))
}

// matchFilePattern checks if a file matches a pattern.
func matchFilePattern(baseName, relPath, pattern string) bool {
	if strings.HasSuffix(pattern, "/**") && !strings.HasPrefix(pattern, "**/") {
		prefix := strings.TrimSuffix(pattern, "/**")
		return strings.HasPrefix(relPath, prefix+string(filepath.Separator))
	}

	// dir/glob patterns like "drafts/*.md"
	if strings.Contains(pattern, "/") && !strings.HasPrefix(pattern, "**/") {
		if filepath.Dir(relPath) != filepath.FromSlash(filepath.Dir(pattern)) {
			return false
		}
		matched, err := filepath.Match(filepath.Base(pattern), baseName)
		return err == nil && matched
	}

	if strings.HasPrefix(pattern, "**/") {
		pattern = strings.TrimPrefix(pattern, "**/")
	}

	// *word* matches case-insensitively anywhere in the name
	if len(pattern) > 1 && strings.HasPrefix(pattern, "*") && strings.HasSuffix(pattern, "*") {
		middle := strings.Trim(pattern, "*")
		return strings.Contains(strings.ToLower(baseName), strings.ToLower(middle))
	}

	matched, err := filepath.Match(pattern, baseName)
	return err == nil && matched
}

// Default directories to exclude.
var defaultExcludeDirs = []string{
	"**/node_modules/**",
	"**/vendor/**",
	"**/__pycache__/**",
}

// Sensitive file patterns that are never indexed. Matches are reported as
// skipped so a policy document with a matching name is not lost silently.
var sensitiveFilePatterns = []string{
	"*credentials*",
	"*secrets*",
}

// IsSensitive reports whether a file name looks like it holds credentials.
func IsSensitive(relPath string) bool {
	baseName := filepath.Base(relPath)
	for _, pattern := range sensitiveFilePatterns {
		if matchFilePattern(baseName, relPath, pattern) {
			return true
		}
	}
	return false
}

func isSupported(path string) bool {
	_, ok := Classify(path)
	return ok
}
