package extract

import (
	"bytes"
	"fmt"

	"github.com/keiyakuhq/keiyaku/internal/models"
	"github.com/ledongthuc/pdf"
)

// extractPDFPages returns the embedded text layer of each page. Pages with no
// text layer come back with empty text; the caller decides about OCR.
func extractPDFPages(content []byte) ([]models.Page, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("open PDF: %w", err)
	}
	numPages := r.NumPage()
	if numPages == 0 {
		return nil, fmt.Errorf("PDF has no pages")
	}
	pages := make([]models.Page, 0, numPages)
	for i := 1; i <= numPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			pages = append(pages, models.Page{Num: i})
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// A single malformed page should not sink the document; it is
			// a candidate for OCR instead.
			pages = append(pages, models.Page{Num: i})
			continue
		}
		pages = append(pages, models.Page{Num: i, Text: text})
	}
	return pages, nil
}
