// Package extract turns uploaded file bytes into text. PDF extraction is
// page-aware; DOCX and DOC yield a single document-level string. File types
// outside that set are signaled with ErrUnsupportedType, which callers treat
// as a deliberate no-op rather than a failure.
package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Supported MIME types.
const (
	TypePDF  = "application/pdf"
	TypeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	TypeDOC  = "application/msword"
)

// ErrUnsupportedType indicates a file type this extractor has no strategy
// for. It is not a processing failure.
var ErrUnsupportedType = errors.New("unsupported file type")

// Result is the outcome of text extraction.
//
// Exactly one of Pages or Text is populated: Pages for paginated formats
// (index i holds page i+1), Text for everything else. Pages with no
// extractable text are present as empty strings; downstream skips them.
type Result struct {
	Pages []string
	Text  string
}

// Paginated reports whether the result carries per-page text.
func (r *Result) Paginated() bool {
	return r.Pages != nil
}

// Empty reports whether no extractable text was found at all.
func (r *Result) Empty() bool {
	if !r.Paginated() {
		return strings.TrimSpace(r.Text) == ""
	}
	for _, page := range r.Pages {
		if strings.TrimSpace(page) != "" {
			return false
		}
	}
	return true
}

// Extractor dispatches to a format-specific extraction strategy by MIME type.
type Extractor struct {
	logger *slog.Logger
}

// New creates an Extractor.
func New() *Extractor {
	return &Extractor{logger: slog.Default().With("component", "extractor")}
}

// Extract returns the text content of data according to fileType.
// Returns ErrUnsupportedType for unknown types; any other error means the
// bytes could not be parsed and the document should fail.
func (e *Extractor) Extract(ctx context.Context, data []byte, fileType string) (*Result, error) {
	// Strip parameters like "; charset=..." before matching.
	mime := fileType
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	mime = strings.TrimSpace(strings.ToLower(mime))

	switch mime {
	case TypePDF:
		pages, err := extractPDF(data)
		if err != nil {
			return nil, fmt.Errorf("extract pdf: %w", err)
		}
		e.logger.Debug("extracted pdf", "pages", len(pages))
		return &Result{Pages: pages}, nil
	case TypeDOCX, TypeDOC:
		text, err := extractWord(data, mime)
		if err != nil {
			return nil, fmt.Errorf("extract word document: %w", err)
		}
		e.logger.Debug("extracted word document", "chars", len(text))
		return &Result{Text: text}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, fileType)
	}
}
