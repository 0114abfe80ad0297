package ingestion

import (
	"bytes"
	"fmt"
	"io"

	"github.com/MarcoPoloResearchLab/notepilot/backend/internal/textutil"
	"github.com/ledongthuc/pdf"
)

// ExtractPDFText returns the plain text of every page in data.
func ExtractPDFText(data []byte) (text string, err error) {
	// the pdf reader panics on some malformed cross-reference tables
	defer func() {
		if recovered := recover(); recovered != nil {
			text = ""
			err = fmt.Errorf("%w: %v", ErrUnreadableDocument, recovered)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnreadableDocument, err)
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnreadableDocument, err)
	}
	content, err := io.ReadAll(plain)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnreadableDocument, err)
	}
	return textutil.CollapseWhitespace(string(content)), nil
}
