// Package scanner discovers indexable documents under a corpus root. Files
// are classified by extension into code, pdf and text; everything else is
// ignored.
package scanner

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/Aman-CERP/docsift/internal/store"
)

// FileInfo contains metadata about a discovered file.
type FileInfo struct {
	Path     string           // Relative path to the corpus root
	AbsPath  string           // Absolute, cleaned path; used as the document ID
	Size     int64            // File size in bytes
	ModTime  time.Time        // Last modification time
	Kind     store.SourceKind // code, pdf, text
	Language string           // go, python, markdown, etc.
}

// ScanOptions configures the scanner behavior.
type ScanOptions struct {
	// RootDir is the corpus root directory to scan.
	RootDir string

	// ExcludePatterns specifies extra patterns to exclude.
	ExcludePatterns []string

	// FollowSymlinks enables following symbolic links (default: false).
	FollowSymlinks bool
}

// Skip reasons reported for supported files the scanner passes over.
const (
	ReasonSensitive  = "sensitive file name"
	ReasonUnreadable = "unreadable"
)

// Skip is a path the scanner could not or would not hand to the builder.
type Skip struct {
	Path   string // Absolute path
	Reason string
}

// ScanResult is returned from the scanner channel. Exactly one field is
// set.
type ScanResult struct {
	File  *FileInfo
	Skip  *Skip
	Error error
}

// languageMap maps supported file extensions to a language name. The
// extension set defines what the builder indexes.
var languageMap = map[string]string{
	".py":   "python",
	".go":   "go",
	".js":   "javascript",
	".ts":   "typescript",
	".java": "java",
	".rb":   "ruby",
	".rs":   "rust",
	".c":    "c",
	".cpp":  "cpp",
	".h":    "c",
	".cs":   "csharp",
	".php":  "php",
	".sh":   "shell",
	".sql":  "sql",

	".pdf": "pdf",

	".txt":      "text",
	".md":       "markdown",
	".markdown": "markdown",
	".rst":      "rst",
}

// kindMap maps languages to source kinds.
var kindMap = map[string]store.SourceKind{
	"pdf":      store.KindPDF,
	"text":     store.KindText,
	"markdown": store.KindText,
	"rst":      store.KindText,
}

// DetectLanguage returns the language for path, or "" when the extension
// is unsupported. Extensions are matched case-insensitively.
func DetectLanguage(path string) string {
	return languageMap[strings.ToLower(filepath.Ext(path))]
}

// Classify returns the source kind of path and whether it is supported.
func Classify(path string) (store.SourceKind, bool) {
	lang := DetectLanguage(path)
	if lang == "" {
		return "", false
	}
	if kind, ok := kindMap[lang]; ok {
		return kind, true
	}
	return store.KindCode, true
}
