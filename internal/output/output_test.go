package output

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWriter_Messages(t *testing.T) {
	tests := []struct {
		name  string
		write func(w *Writer)
		want  []string
	}{
		{"status", func(w *Writer) { w.Status("🔍", "Scanning corpus") }, []string{"🔍", "Scanning corpus"}},
		{"success", func(w *Writer) { w.Successf("Indexed %d documents", 3) }, []string{"✅", "Indexed 3 documents"}},
		{"warning", func(w *Writer) { w.Warningf("Skipped %d files", 2) }, []string{"⚠️", "Skipped 2 files"}},
		{"error", func(w *Writer) { w.Errorf("failed: %s", "boom") }, []string{"❌", "failed: boom"}},
		{"header", func(w *Writer) { w.Header("Query Statistics") }, []string{"Query Statistics"}},
		{"dim", func(w *Writer) { w.Dim("content below minimum length") }, []string{"content below minimum length"}},
		{"code", func(w *Writer) { w.Code(`{"found": true}`) }, []string{`  {"found": true}`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			tt.write(New(buf))
			for _, want := range tt.want {
				assert.Contains(t, buf.String(), want)
			}
		})
	}
}

func TestWriter_Field_PadsLabel(t *testing.T) {
	buf := &bytes.Buffer{}
	w := New(buf)

	w.Field("Total", 12, 42)
	w.Field("Success rate", 12, "75.0%")

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	assert.Equal(t, "  Total:       42", lines[0])
	assert.Equal(t, "  Success rate: 75.0%", lines[1])
}

func TestWriter_PlainOutputHasNoEscapes(t *testing.T) {
	// Given: a writer that is not a terminal
	buf := &bytes.Buffer{}
	w := New(buf)

	// When: styled helpers are used
	w.Success("done")
	w.Header("Results")

	// Then: no ANSI escapes are written
	assert.NotContains(t, buf.String(), "\x1b[")
}

func TestWriter_Progress_PlainWritesOnlyFinal(t *testing.T) {
	buf := &bytes.Buffer{}
	w := New(buf)

	w.Progress(50, 100, "Extracting")
	assert.Empty(t, buf.String())

	w.Progress(100, 100, "Extracting")
	assert.Contains(t, buf.String(), "100%")
	assert.Contains(t, buf.String(), "Extracting")
	assert.True(t, strings.HasSuffix(buf.String(), "\n"))
}

func TestWriter_Progress_ZeroTotal_NoOutput(t *testing.T) {
	buf := &bytes.Buffer{}
	w := New(buf)

	w.Progress(0, 0, "Processing")

	assert.Empty(t, buf.String())
}

func TestProgressBar_Render(t *testing.T) {
	tests := []struct {
		name     string
		current  int
		total    int
		width    int
		wantFull int
	}{
		{"0 percent", 0, 100, 10, 0},
		{"50 percent", 50, 100, 10, 5},
		{"100 percent", 100, 100, 10, 10},
		{"25 percent", 25, 100, 20, 5},
		{"overflow", 150, 100, 10, 10},
		{"zero total", 5, 0, 8, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bar := renderProgressBar(tt.current, tt.total, tt.width)

			assert.Equal(t, tt.wantFull, strings.Count(bar, "█"))
			assert.Equal(t, tt.width, len([]rune(bar)))
		})
	}
}

func TestWriter_Newline_PrintsEmptyLine(t *testing.T) {
	buf := &bytes.Buffer{}
	New(buf).Newline()

	assert.Equal(t, "\n", buf.String())
}

func TestIsTTY(t *testing.T) {
	assert.False(t, IsTTY(&bytes.Buffer{}))
	assert.False(t, IsTTY(nil))

	f, err := os.CreateTemp(t.TempDir(), "out")
	assert.NoError(t, err)
	defer f.Close()
	assert.False(t, IsTTY(f))
}

func TestDetectNoColor(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	assert.True(t, DetectNoColor())
	assert.False(t, UseColor(os.Stdout))
}

func TestGetStyles(t *testing.T) {
	plain := GetStyles(true)
	assert.Equal(t, "x", plain.Header.Render("x"))

	styled := GetStyles(false)
	assert.Contains(t, styled.Header.Render("x"), "x")
}
