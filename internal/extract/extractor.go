package extract

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/sync/errgroup"

	qerr "github.com/docquery/docquery/internal/errors"
)

// garbledThreshold is the alphanumeric ratio below which embedded PDF
// text is treated as garbled and OCR is attempted. A ratio exactly at
// the threshold is still considered readable.
const garbledThreshold = 0.3

// Config configures an Extractor.
type Config struct {
	// Workers bounds concurrent extraction in Batch. Zero means 4.
	Workers int
	// SpreadsheetEngine is tried first for xls/xlsx; the parser's
	// default engine is the fallback.
	SpreadsheetEngine string
	// OCREnabled enables the OCR fallback for empty or garbled PDFs.
	OCREnabled bool
	// OCRLanguages are passed through to the OCR engine.
	OCRLanguages []string
}

// Extractor extracts plain text from source documents.
type Extractor struct {
	cfg    Config
	pdf    PDFParser
	word   WordParser
	sheets SheetParser
	ocr    OCREngine
	logger *slog.Logger
}

// NewExtractor creates an extractor with the given parser backends.
// Any backend may be nil; sources needing it fail with an unsupported
// format error.
func NewExtractor(cfg Config, pdf PDFParser, word WordParser, sheets SheetParser, ocr OCREngine, logger *slog.Logger) *Extractor {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{cfg: cfg, pdf: pdf, word: word, sheets: sheets, ocr: ocr, logger: logger}
}

// Extract extracts text from a single source file. The source id is the
// file's base name.
func (e *Extractor) Extract(ctx context.Context, path string) Result {
	sourceID := filepath.Base(path)
	ext := strings.ToLower(filepath.Ext(path))

	var (
		text    string
		ocrUsed bool
		err     error
	)

	switch ext {
	case ".pdf":
		text, ocrUsed, err = e.extractPDF(ctx, path)
	case ".txt":
		text, err = readTextFile(path)
	case ".doc", ".docx":
		text, err = e.extractWord(ctx, path)
	case ".xls", ".xlsx":
		text, err = e.extractSpreadsheet(ctx, path)
	default:
		err = qerr.New(qerr.ErrCodeUnsupportedFormat,
			fmt.Sprintf("unsupported file extension %q", ext), nil).WithSource(sourceID)
	}

	if err != nil {
		return Result{SourceID: sourceID, Err: err}
	}
	return Result{SourceID: sourceID, Text: text, OCRUsed: ocrUsed}
}

// Batch extracts all paths concurrently, bounded by Workers. A failing
// source never aborts the batch; its Result carries the error. Results
// are returned in input order.
func (e *Extractor) Batch(ctx context.Context, paths []string) []Result {
	results := make([]Result, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Workers)

	var mu sync.Mutex
	for i, path := range paths {
		g.Go(func() error {
			res := e.Extract(ctx, path)
			if res.Err != nil {
				e.logger.Warn("extraction failed",
					slog.String("source", res.SourceID),
					slog.String("error", res.Err.Error()))
			}
			mu.Lock()
			results[i] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// extractPDF reads the embedded text layer and falls back to OCR when
// the text is empty or garbled.
func (e *Extractor) extractPDF(ctx context.Context, path string) (string, bool, error) {
	sourceID := filepath.Base(path)
	if e.pdf == nil {
		return "", false, qerr.New(qerr.ErrCodeUnsupportedFormat, "no pdf parser configured", nil).WithSource(sourceID)
	}

	pages, err := e.pdf.Pages(ctx, path)
	if err != nil {
		return "", false, qerr.ExtractionError(sourceID, err)
	}

	var parts []string
	for _, p := range pages {
		if t := strings.TrimSpace(p.Text); t != "" {
			parts = append(parts, t)
		}
	}
	text := strings.Join(parts, "\n\n")

	if !e.needsOCR(text) {
		return text, false, nil
	}

	if !e.cfg.OCREnabled || e.ocr == nil {
		if text == "" {
			return "", false, qerr.ExtractionError(sourceID, fmt.Errorf("no extractable text and ocr disabled"))
		}
		return text, false, nil
	}

	e.logger.Info("falling back to ocr",
		slog.String("source", sourceID),
		slog.Int("pages", len(pages)))

	ocrText, err := e.ocrPages(ctx, path, pages)
	if err != nil {
		// Keep whatever the text layer gave us rather than failing
		// the source outright.
		if text != "" {
			e.logger.Warn("ocr failed, keeping embedded text",
				slog.String("source", sourceID),
				slog.String("error", err.Error()))
			return text, false, nil
		}
		return "", false, qerr.New(qerr.ErrCodeOCRFailed, "ocr failed", err).WithSource(sourceID)
	}
	return ocrText, true, nil
}

// needsOCR reports whether the embedded text layer is unusable.
func (e *Extractor) needsOCR(text string) bool {
	if text == "" {
		return true
	}
	return alnumRatio(text) < garbledThreshold
}

// alnumRatio is the share of letters and digits in text.
func alnumRatio(text string) float64 {
	if len(text) == 0 {
		return 0
	}
	alnum := 0
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			alnum++
		}
	}
	return float64(alnum) / float64(len([]rune(text)))
}

// ocrPages runs OCR over each page's embedded images, rasterizing pages
// that carry none. Output is "Page N:" sections joined by blank lines.
func (e *Extractor) ocrPages(ctx context.Context, path string, pages []PDFPage) (string, error) {
	var sections []string
	for i, page := range pages {
		images := page.Images
		if len(images) == 0 {
			img, err := e.pdf.Rasterize(ctx, path, i)
			if err != nil {
				return "", fmt.Errorf("rasterize page %d: %w", i+1, err)
			}
			images = [][]byte{img}
		}

		var lines []string
		for _, img := range images {
			out, err := e.ocr.Recognize(ctx, img, e.cfg.OCRLanguages)
			if err != nil {
				return "", fmt.Errorf("recognize page %d: %w", i+1, err)
			}
			if t := strings.TrimSpace(out); t != "" {
				lines = append(lines, t)
			}
		}
		if len(lines) == 0 {
			continue
		}
		sections = append(sections, fmt.Sprintf("Page %d:\n%s", i+1, strings.Join(lines, "\n")))
	}

	if len(sections) == 0 {
		return "", fmt.Errorf("ocr produced no text")
	}
	return strings.Join(sections, "\n\n"), nil
}

func (e *Extractor) extractWord(ctx context.Context, path string) (string, error) {
	sourceID := filepath.Base(path)
	if e.word == nil {
		return "", qerr.New(qerr.ErrCodeUnsupportedFormat, "no word parser configured", nil).WithSource(sourceID)
	}
	text, err := e.word.Text(ctx, path)
	if err != nil {
		return "", qerr.ExtractionError(sourceID, err)
	}
	return strings.TrimSpace(text), nil
}

// extractSpreadsheet tries the configured engine first and falls back
// to the parser's default engine.
func (e *Extractor) extractSpreadsheet(ctx context.Context, path string) (string, error) {
	sourceID := filepath.Base(path)
	if e.sheets == nil {
		return "", qerr.New(qerr.ErrCodeUnsupportedFormat, "no spreadsheet parser configured", nil).WithSource(sourceID)
	}

	engine := e.cfg.SpreadsheetEngine
	sheets, err := e.sheets.Sheets(ctx, path, engine)
	if err != nil && engine != e.sheets.DefaultEngine() {
		e.logger.Warn("spreadsheet engine failed, trying default",
			slog.String("source", sourceID),
			slog.String("engine", engine),
			slog.String("error", err.Error()))
		sheets, err = e.sheets.Sheets(ctx, path, e.sheets.DefaultEngine())
	}
	if err != nil {
		return "", qerr.ExtractionError(sourceID, err)
	}

	return flattenSheets(sheets), nil
}

// flattenSheets renders sheets as "Sheet: <name>" sections.
func flattenSheets(sheets []Sheet) string {
	var b strings.Builder
	for _, s := range sheets {
		b.WriteString("Sheet: ")
		b.WriteString(s.Name)
		b.WriteString("\n")
		b.WriteString(strings.TrimRight(s.Text, "\n"))
		b.WriteString("\n\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// SupportedExtensions lists the file extensions the extractor handles.
func SupportedExtensions() []string {
	exts := []string{".pdf", ".txt", ".doc", ".docx", ".xls", ".xlsx"}
	sort.Strings(exts)
	return exts
}

// IsSupported reports whether the extractor handles the file's extension.
func IsSupported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range SupportedExtensions() {
		if e == ext {
			return true
		}
	}
	return false
}
