package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogsCmd_TailsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docsift.log")
	content := `{"time":"2026-03-01T10:00:00Z","level":"INFO","msg":"index_complete","indexed":3}
{"time":"2026-03-01T10:00:01Z","level":"WARN","msg":"index_file_skipped","path":"tiny.txt"}
{"time":"2026-03-01T10:00:02Z","level":"INFO","msg":"search_completed"}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	stdout, stderr, err := executeCommand(t, "logs", "--file", path, "-n", "2", "--no-color")

	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "WARN  index_file_skipped path=tiny.txt")
	assert.Contains(t, lines[1], "search_completed")
	assert.Contains(t, stderr, path)
}

func TestLogsCmd_LevelFilter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docsift.log")
	content := `{"time":"2026-03-01T10:00:00Z","level":"INFO","msg":"index_complete"}
{"time":"2026-03-01T10:00:01Z","level":"ERROR","msg":"search_failed"}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	stdout, _, err := executeCommand(t, "logs", "--file", path, "--level", "error")

	require.NoError(t, err)
	assert.NotContains(t, stdout, "index_complete")
	assert.Contains(t, stdout, "search_failed")
}

func TestLogsCmd_InvalidFilter(t *testing.T) {
	_, _, err := executeCommand(t, "logs", "--file", "unused.log", "--filter", "(")

	assert.Error(t, err)
}

func TestLogsCmd_MissingFile(t *testing.T) {
	_, _, err := executeCommand(t, "logs", "--file", filepath.Join(t.TempDir(), "none.log"))

	assert.Error(t, err)
}
