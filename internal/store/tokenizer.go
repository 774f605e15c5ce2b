package store

import "strings"

// Tokenize lowercases text and splits it on whitespace. Both indexing and
// querying use it so the sparse vocabulary stays consistent.
func Tokenize(text string) []string {
	return strings.Fields(strings.ToLower(text))
}
