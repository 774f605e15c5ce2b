package index

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	lpdf "github.com/ledongthuc/pdf"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
	rscpdf "rsc.io/pdf"

	dserrors "github.com/Aman-CERP/docsift/internal/errors"
	"github.com/Aman-CERP/docsift/internal/store"
)

// ReasonBelowMinimum is the skip reason for extractions that are too short.
const ReasonBelowMinimum = "content below minimum length"

// ExtractConfig holds the extraction thresholds.
type ExtractConfig struct {
	// MinTextChars discards code/text at or below this many characters.
	MinTextChars int
	// MinPDFChars discards PDF text at or below this many characters.
	MinPDFChars int
	// MaxChars truncates extracted text.
	MaxChars int
}

// DefaultExtractConfig returns 50/100/5000.
func DefaultExtractConfig() ExtractConfig {
	return ExtractConfig{MinTextChars: 50, MinPDFChars: 100, MaxChars: 5000}
}

// errBelowMinimum marks an extraction discarded as noise.
var errBelowMinimum = errors.New(ReasonBelowMinimum)

// pdfExtractor pulls plain text out of a PDF file.
type pdfExtractor func(path string) (string, error)

// Extractor turns a source file into indexable text.
type Extractor struct {
	config ExtractConfig
	pdfs   []pdfExtractor
}

// NewExtractor creates an extractor. PDFs are tried with ledongthuc/pdf
// first and rsc.io/pdf second.
func NewExtractor(cfg ExtractConfig) *Extractor {
	def := DefaultExtractConfig()
	if cfg.MinTextChars <= 0 {
		cfg.MinTextChars = def.MinTextChars
	}
	if cfg.MinPDFChars <= 0 {
		cfg.MinPDFChars = def.MinPDFChars
	}
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = def.MaxChars
	}
	return &Extractor{
		config: cfg,
		pdfs:   []pdfExtractor{extractPDFPlain, extractPDFContent},
	}
}

// Extract returns the truncated text of path. Text at or below the kind's
// minimum length yields an error whose message is ReasonBelowMinimum.
func (e *Extractor) Extract(path string, kind store.SourceKind) (string, error) {
	var (
		text     string
		err      error
		minChars int
	)
	switch kind {
	case store.KindPDF:
		text, err = e.extractPDF(path)
		minChars = e.config.MinPDFChars
	case store.KindCode, store.KindText:
		text, err = readText(path)
		minChars = e.config.MinTextChars
	default:
		return "", dserrors.ExtractionError(path, fmt.Errorf("unsupported kind %q", kind))
	}
	if err != nil {
		return "", err
	}

	if utf8.RuneCountInString(text) <= minChars {
		return "", errBelowMinimum
	}
	return truncateRunes(text, e.config.MaxChars), nil
}

func (e *Extractor) extractPDF(path string) (string, error) {
	var errs []error
	for _, extract := range e.pdfs {
		text, err := safeExtract(extract, path)
		if err == nil {
			return text, nil
		}
		errs = append(errs, err)
	}
	return "", dserrors.ExtractionError(path, errors.Join(errs...))
}

// safeExtract turns an extractor panic into an error. Both PDF libraries
// panic on some malformed inputs.
func safeExtract(extract pdfExtractor, path string) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf extractor panic: %v", r)
		}
	}()
	return extract(path)
}

func extractPDFPlain(path string) (string, error) {
	f, r, err := lpdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	return strings.ToValidUTF8(buf.String(), ""), nil
}

func extractPDFContent(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("stat pdf: %w", err)
	}
	r, err := rscpdf.NewReader(f, info.Size())
	if err != nil {
		return "", fmt.Errorf("parse pdf: %w", err)
	}

	var sb strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		for _, t := range page.Content().Text {
			sb.WriteString(t.S)
		}
		sb.WriteByte('\n')
	}
	return strings.ToValidUTF8(sb.String(), ""), nil
}

// readText decodes a code or text file as UTF-8. A UTF-16 or UTF-8 BOM
// selects the encoding; invalid bytes are dropped.
func readText(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", dserrors.ExtractionError(path, err)
	}
	return decodeText(raw), nil
}

func decodeText(raw []byte) string {
	decoded, _, err := transform.Bytes(unicode.BOMOverride(encoding.Nop.NewDecoder()), raw)
	if err != nil {
		decoded = raw
	}
	return strings.ToValidUTF8(string(decoded), "")
}

// truncateRunes returns the first limit runes of s.
func truncateRunes(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i]
		}
		n++
	}
	return s
}

// FormatBody renders the indexed body for a document.
func FormatBody(absPath, text string) string {
	return fmt.Sprintf("FILE: %s\nPATH: %s\nCONTENT:\n%s", filepath.Base(absPath), absPath, text)
}
