package extract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	qerr "github.com/docquery/docquery/internal/errors"
)

type fakePDF struct {
	pages      []PDFPage
	pagesErr   error
	rasterized []int
}

func (f *fakePDF) Pages(_ context.Context, _ string) ([]PDFPage, error) {
	return f.pages, f.pagesErr
}

func (f *fakePDF) Rasterize(_ context.Context, _ string, page int) ([]byte, error) {
	f.rasterized = append(f.rasterized, page)
	return []byte(fmt.Sprintf("raster-%d", page)), nil
}

type fakeOCR struct {
	texts map[string]string
	err   error
}

func (f *fakeOCR) Recognize(_ context.Context, image []byte, _ []string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.texts[string(image)], nil
}

type fakeWord struct {
	text string
	err  error
}

func (f *fakeWord) Text(_ context.Context, _ string) (string, error) {
	return f.text, f.err
}

type fakeSheets struct {
	byEngine map[string][]Sheet
	errs     map[string]error
	calls    []string
}

func (f *fakeSheets) Sheets(_ context.Context, _ string, engine string) ([]Sheet, error) {
	f.calls = append(f.calls, engine)
	if err := f.errs[engine]; err != nil {
		return nil, err
	}
	return f.byEngine[engine], nil
}

func (f *fakeSheets) DefaultEngine() string { return "openpyxl" }

func newExtractor(pdf PDFParser, word WordParser, sheets SheetParser, ocr OCREngine) *Extractor {
	return NewExtractor(Config{
		Workers:           2,
		SpreadsheetEngine: "calamine",
		OCREnabled:        true,
		OCRLanguages:      []string{"eng"},
	}, pdf, word, sheets, ocr, nil)
}

func TestAlnumRatio(t *testing.T) {
	tests := []struct {
		name string
		text string
		want float64
	}{
		{"all letters", "abcde", 1.0},
		{"half digits half punctuation", "12!!", 0.5},
		{"empty", "", 0.0},
		{"mostly symbols", "a@@@@@@@@@", 0.1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, alnumRatio(tt.text), 1e-9)
		})
	}
}

func TestNeedsOCR_ThresholdIsExclusive(t *testing.T) {
	e := newExtractor(nil, nil, nil, nil)

	// Exactly 3 alphanumeric characters out of 10: ratio 0.3 is readable.
	assert.False(t, e.needsOCR("abc!!!!!!!"))
	// 2 out of 10 is below the threshold.
	assert.True(t, e.needsOCR("ab!!!!!!!!"))
	assert.True(t, e.needsOCR(""))
	assert.False(t, e.needsOCR("perfectly normal text"))
}

func TestExtract_PDFWithGoodTextLayer(t *testing.T) {
	pdf := &fakePDF{pages: []PDFPage{
		{Text: "first page text"},
		{Text: "second page text"},
	}}
	e := newExtractor(pdf, nil, nil, &fakeOCR{})

	res := e.Extract(context.Background(), "/docs/report.pdf")

	require.NoError(t, res.Err)
	assert.Equal(t, "report.pdf", res.SourceID)
	assert.Equal(t, "first page text\n\nsecond page text", res.Text)
	assert.False(t, res.OCRUsed)
	assert.Empty(t, pdf.rasterized)
}

func TestExtract_PDFGarbledFallsBackToOCR(t *testing.T) {
	pdf := &fakePDF{pages: []PDFPage{
		{Text: "\x01\x02###%%%^^^", Images: [][]byte{[]byte("img-a")}},
		{Text: ""},
	}}
	ocr := &fakeOCR{texts: map[string]string{
		"img-a":    "Scanned heading",
		"raster-1": "Second page scan",
	}}
	e := newExtractor(pdf, nil, nil, ocr)

	res := e.Extract(context.Background(), "/docs/scan.pdf")

	require.NoError(t, res.Err)
	assert.True(t, res.OCRUsed)
	assert.Equal(t, "Page 1:\nScanned heading\n\nPage 2:\nSecond page scan", res.Text)
	// Page without embedded images was rasterized.
	assert.Equal(t, []int{1}, pdf.rasterized)
}

func TestExtract_PDFOCRFailureKeepsEmbeddedText(t *testing.T) {
	// Garbled but non-empty text layer; OCR errors out.
	pdf := &fakePDF{pages: []PDFPage{{Text: "a#########", Images: [][]byte{[]byte("img")}}}}
	ocr := &fakeOCR{err: fmt.Errorf("tesseract missing")}
	e := newExtractor(pdf, nil, nil, ocr)

	res := e.Extract(context.Background(), "/docs/bad.pdf")

	require.NoError(t, res.Err)
	assert.False(t, res.OCRUsed)
	assert.Equal(t, "a#########", res.Text)
}

func TestExtract_PDFEmptyAndOCRFailureIsError(t *testing.T) {
	pdf := &fakePDF{pages: []PDFPage{{Text: "", Images: [][]byte{[]byte("img")}}}}
	ocr := &fakeOCR{err: fmt.Errorf("tesseract missing")}
	e := newExtractor(pdf, nil, nil, ocr)

	res := e.Extract(context.Background(), "/docs/empty.pdf")

	require.Error(t, res.Err)
	assert.Equal(t, qerr.ErrCodeOCRFailed, qerr.GetCode(res.Err))
}

func TestExtract_UnsupportedExtension(t *testing.T) {
	e := newExtractor(nil, nil, nil, nil)

	res := e.Extract(context.Background(), "/docs/image.png")

	require.Error(t, res.Err)
	assert.Equal(t, qerr.ErrCodeUnsupportedFormat, qerr.GetCode(res.Err))
}

func TestExtract_Word(t *testing.T) {
	e := newExtractor(nil, &fakeWord{text: "  memo body  "}, nil, nil)

	res := e.Extract(context.Background(), "/docs/memo.docx")

	require.NoError(t, res.Err)
	assert.Equal(t, "memo body", res.Text)
}

func TestExtract_SpreadsheetEngineFallback(t *testing.T) {
	sheets := &fakeSheets{
		byEngine: map[string][]Sheet{
			"openpyxl": {
				{Name: "Q1", Text: "a\tb\n1\t2"},
				{Name: "Q2", Text: "c\td\n3\t4"},
			},
		},
		errs: map[string]error{"calamine": fmt.Errorf("engine unavailable")},
	}
	e := newExtractor(nil, nil, sheets, nil)

	res := e.Extract(context.Background(), "/docs/budget.xlsx")

	require.NoError(t, res.Err)
	assert.Equal(t, []string{"calamine", "openpyxl"}, sheets.calls)
	assert.Equal(t, "Sheet: Q1\na\tb\n1\t2\n\nSheet: Q2\nc\td\n3\t4", res.Text)
}

func TestExtract_SpreadsheetBothEnginesFail(t *testing.T) {
	sheets := &fakeSheets{errs: map[string]error{
		"calamine": fmt.Errorf("nope"),
		"openpyxl": fmt.Errorf("also nope"),
	}}
	e := newExtractor(nil, nil, sheets, nil)

	res := e.Extract(context.Background(), "/docs/budget.xls")

	require.Error(t, res.Err)
	assert.Equal(t, qerr.ErrCodeExtractionFailed, qerr.GetCode(res.Err))
}

func TestExtract_TextFileEncodings(t *testing.T) {
	dir := t.TempDir()
	e := newExtractor(nil, nil, nil, nil)

	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"utf8", []byte("plain utf-8 café"), "plain utf-8 café"},
		{"utf16le with bom", []byte{0xFF, 0xFE, 'h', 0, 'i', 0}, "hi"},
		{"cp1252 curly quotes", []byte{0x93, 'h', 'i', 0x94}, "“hi”"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".txt")
			require.NoError(t, os.WriteFile(path, tt.data, 0o644))

			res := e.Extract(context.Background(), path)

			require.NoError(t, res.Err)
			assert.Equal(t, tt.want, res.Text)
		})
	}
}

func TestBatch_ConcurrentUTF16Decoding(t *testing.T) {
	dir := t.TempDir()
	e := NewExtractor(Config{Workers: 8}, nil, nil, nil, nil, nil)

	utf16le := func(s string) []byte {
		data := []byte{0xFF, 0xFE}
		for _, r := range s {
			data = append(data, byte(r), 0)
		}
		return data
	}

	var paths []string
	var want []string
	for i := 0; i < 16; i++ {
		text := fmt.Sprintf("utf-16 document number %d", i)
		path := filepath.Join(dir, fmt.Sprintf("doc%02d.txt", i))
		require.NoError(t, os.WriteFile(path, utf16le(text), 0o644))
		paths = append(paths, path)
		want = append(want, text)
	}

	// Workers decode independent files concurrently; every result must
	// come back intact and matched to its own source.
	results := e.Batch(context.Background(), paths)

	require.Len(t, results, len(paths))
	for i, res := range results {
		require.NoError(t, res.Err)
		assert.Equal(t, want[i], res.Text)
	}
}

func TestBatch_IsolatesFailures(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.txt")
	require.NoError(t, os.WriteFile(good, []byte("good content"), 0o644))

	e := newExtractor(nil, nil, nil, nil)
	results := e.Batch(context.Background(), []string{
		good,
		filepath.Join(dir, "bad.png"),
		filepath.Join(dir, "missing.txt"),
	})

	require.Len(t, results, 3)
	assert.NoError(t, results[0].Err)
	assert.Equal(t, "good content", results[0].Text)
	assert.Error(t, results[1].Err)
	assert.Error(t, results[2].Err)
	// Order follows the input paths.
	assert.Equal(t, "good.txt", results[0].SourceID)
	assert.Equal(t, "bad.png", results[1].SourceID)
	assert.Equal(t, "missing.txt", results[2].SourceID)
}

func TestIsSupported(t *testing.T) {
	assert.True(t, IsSupported("a/b/report.PDF"))
	assert.True(t, IsSupported("notes.txt"))
	assert.True(t, IsSupported("sheet.xlsx"))
	assert.False(t, IsSupported("image.png"))
	assert.False(t, IsSupported(strings.Repeat("x", 10)))
}
