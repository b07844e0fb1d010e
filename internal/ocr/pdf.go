package ocr

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

const mediaTypePDF = "application/pdf"

// pdfPages returns the text layer of every page. Pages without text come
// back empty so page numbering is preserved.
func pdfPages(data []byte) ([]string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open PDF: %w", err)
	}

	numPages := reader.NumPage()
	pages := make([]string, 0, numPages)
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("read PDF page %d: %w", i, err)
		}
		pages = append(pages, strings.TrimSpace(text))
	}

	if numPages == 0 {
		return nil, fmt.Errorf("PDF has no pages")
	}
	return pages, nil
}
