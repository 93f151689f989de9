// Package extract turns source documents into plain text.
//
// Format-specific parsing and OCR are injected as interfaces so the
// extractor stays testable and parser backends remain swappable.
package extract

import "context"

// PDFPage is one page of a PDF document.
type PDFPage struct {
	// Text is the embedded text layer, possibly empty or garbled.
	Text string
	// Images holds the page's embedded raster images, encoded as the
	// parser produced them (typically PNG).
	Images [][]byte
}

// PDFParser reads the text layer and images of PDF documents.
type PDFParser interface {
	// Pages returns the document's pages in order.
	Pages(ctx context.Context, path string) ([]PDFPage, error)
	// Rasterize renders page n (0-based) to an image for OCR when the
	// page carries no embedded images.
	Rasterize(ctx context.Context, path string, page int) ([]byte, error)
}

// WordParser extracts text from doc and docx documents.
type WordParser interface {
	Text(ctx context.Context, path string) (string, error)
}

// Sheet is one sheet of a spreadsheet, flattened to tabular text.
type Sheet struct {
	Name string
	Text string
}

// SheetParser extracts sheets from xls and xlsx workbooks. Engine names
// select between parser backends; an unknown engine returns an error so
// extraction can fall back to the default engine.
type SheetParser interface {
	Sheets(ctx context.Context, path, engine string) ([]Sheet, error)
	// DefaultEngine is the engine used when the configured one fails.
	DefaultEngine() string
}

// OCREngine recognizes text in raster images.
type OCREngine interface {
	Recognize(ctx context.Context, image []byte, languages []string) (string, error)
}

// Result is the outcome of extracting one source.
type Result struct {
	// SourceID identifies the source document.
	SourceID string
	// Text is the extracted plain text. Empty when Err is set.
	Text string
	// OCRUsed reports whether the OCR fallback produced the text.
	OCRUsed bool
	// Err records a per-source failure; batch extraction never aborts
	// on a single bad document.
	Err error
}
