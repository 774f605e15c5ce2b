package mcp

import (
	"path/filepath"
	"strings"
)

// mimeTypes maps indexable extensions to MIME types.
var mimeTypes = map[string]string{
	".py":   "text/x-python",
	".go":   "text/x-go",
	".js":   "text/javascript",
	".ts":   "text/typescript",
	".java": "text/x-java",
	".rb":   "text/x-ruby",
	".rs":   "text/x-rust",
	".c":    "text/x-c",
	".cpp":  "text/x-c++",
	".h":    "text/x-c",
	".cs":   "text/x-csharp",
	".php":  "text/x-php",
	".sh":   "text/x-sh",
	".sql":  "text/x-sql",

	".md":       "text/markdown",
	".markdown": "text/markdown",
	".rst":      "text/x-rst",
	".txt":      "text/plain",
}

// MimeTypeForPath returns the MIME type of a document's indexed body.
// PDFs are served as their extracted text, so they map to text/plain.
func MimeTypeForPath(path string) string {
	if mime, ok := mimeTypes[strings.ToLower(filepath.Ext(path))]; ok {
		return mime
	}
	return "text/plain"
}
