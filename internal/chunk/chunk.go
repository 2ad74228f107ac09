// Package chunk turns clinic PDFs into ordered, overlapping text windows
// ready for embedding.
//
// The pipeline is two-stage: LoadPDF extracts per-page text, then Splitter
// produces windows of roughly Size characters with Overlap characters shared
// between neighbours. Both stages are deterministic for a given file content
// and splitter parameters.
package chunk

import "fmt"

// Chunk is one ordered text window derived from a document.
type Chunk struct {
	// Ordinal is the dense position within the document, starting at 0.
	Ordinal int

	// Text is the window content, trimmed, never empty.
	Text string

	// PageIndex is the zero-based index of the page containing the first
	// character of the window.
	PageIndex int
}

// Page is the extracted text of a single PDF page.
type Page struct {
	Index int
	Text  string
}

// PDFError reports an unreadable or malformed PDF. The ingestion pipeline
// records it and skips the file; it is never surfaced to query callers.
type PDFError struct {
	Path string
	Err  error
}

func (e *PDFError) Error() string {
	return fmt.Sprintf("loading pdf %s: %v", e.Path, e.Err)
}

func (e *PDFError) Unwrap() error {
	return e.Err
}
