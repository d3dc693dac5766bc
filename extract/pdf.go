package extract

import (
	"bytes"
	"fmt"
	"math"
	"strings"

	"github.com/dslipak/pdf"
)

// baselineTolerance is the vertical distance (in PDF user-space units)
// within which two text runs are considered to sit on the same baseline.
const baselineTolerance = 0.5

// extractPDF parses data page by page. The returned slice holds one string
// per page (index i is page i+1); pages without extractable text are empty
// strings.
func extractPDF(data []byte) (pages []string, err error) {
	// The underlying parser panics on some malformed files; convert that to
	// a fatal extraction error for this document.
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}

	total := reader.NumPage()
	pages = make([]string, 0, total)
	for num := 1; num <= total; num++ {
		page := reader.Page(num)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		pages = append(pages, joinRuns(page.Content().Text))
	}
	return pages, nil
}

// joinRuns reconstructs readable text from positioned runs: runs on the same
// baseline concatenate without a separator, a baseline change inserts one
// newline. Run order is taken as-is from the content stream.
func joinRuns(runs []pdf.Text) string {
	var b strings.Builder
	have := false
	var baseline float64

	for _, run := range runs {
		if run.S == "" {
			continue
		}
		if have && math.Abs(run.Y-baseline) > baselineTolerance {
			b.WriteByte('\n')
		}
		b.WriteString(run.S)
		baseline = run.Y
		have = true
	}
	return strings.TrimSpace(b.String())
}
