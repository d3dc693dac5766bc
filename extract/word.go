package extract

import (
	"bytes"

	"code.sajari.com/docconv"
)

// extractWord converts DOCX/DOC bytes into a single document-level string.
// Word documents carry no page concept at the XML level, so no page mapping
// is attempted.
func extractWord(data []byte, mime string) (string, error) {
	res, err := docconv.Convert(bytes.NewReader(data), mime, false)
	if err != nil {
		return "", err
	}
	return res.Body, nil
}
