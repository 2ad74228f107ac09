package chunk

import (
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// LoadPDF extracts per-page text from the PDF at path, in page order.
// Pages that yield no extractable text are kept (empty) so page indices stay
// aligned with the source document; the splitter drops empty output later.
//
// Any parse failure is wrapped in *PDFError so the ingestion pipeline can
// classify it without string matching.
func LoadPDF(path string) ([]Page, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, &PDFError{Path: path, Err: err}
	}
	defer func() {
		_ = f.Close()
	}()

	total := r.NumPage()
	if total == 0 {
		return nil, &PDFError{Path: path, Err: fmt.Errorf("document has no pages")}
	}

	pages := make([]Page, 0, total)
	for i := 1; i <= total; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			pages = append(pages, Page{Index: i - 1})
			continue
		}

		text, err := p.GetPlainText(nil)
		if err != nil {
			// A single corrupt page does not fail the document; the rest
			// of the content is still worth indexing.
			pages = append(pages, Page{Index: i - 1})
			continue
		}
		pages = append(pages, Page{Index: i - 1, Text: text})
	}

	if allEmpty(pages) {
		return nil, &PDFError{Path: path, Err: fmt.Errorf("no extractable text in %d pages", total)}
	}

	return pages, nil
}

func allEmpty(pages []Page) bool {
	for _, p := range pages {
		if strings.TrimSpace(p.Text) != "" {
			return false
		}
	}
	return true
}
