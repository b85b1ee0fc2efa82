package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/keiyakuhq/keiyaku/internal/models"
)

// fakeOCR recognizes every requested page with fixed text.
type fakeOCR struct {
	text  string
	calls int
}

func (f *fakeOCR) RecognizePDFPages(ctx context.Context, content []byte, pages []int) (map[int]string, error) {
	f.calls++
	out := make(map[int]string, len(pages))
	for _, p := range pages {
		out[p] = f.text
	}
	return out, nil
}

func (f *fakeOCR) Close() error { return nil }

func buildDOCX(t *testing.T, paragraphs []string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create(docxDocumentXMLPath)
	if err != nil {
		t.Fatal(err)
	}
	var body strings.Builder
	body.WriteString(`<w:document><w:body>`)
	for _, p := range paragraphs {
		body.WriteString(`<w:p w:rsidR="00A"><w:r><w:t xml:space="preserve">` + p + `</w:t></w:r></w:p>`)
	}
	body.WriteString(`</w:body></w:document>`)
	if _, err := w.Write([]byte(body.String())); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestExtractPlainText(t *testing.T) {
	e := NewExtractor(25)
	pages, err := e.Extract(context.Background(), []byte("This Agreement is made between the parties."), "txt")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(pages) != 1 || pages[0].Num != 1 {
		t.Fatalf("expected one page numbered 1, got %+v", pages)
	}
	if !strings.Contains(pages[0].Text, "Agreement") {
		t.Errorf("unexpected text %q", pages[0].Text)
	}
}

func TestExtractDOCXParagraphs(t *testing.T) {
	content := buildDOCX(t, []string{"1. Term", "This agreement runs for two years."})
	e := NewExtractor(25)
	pages, err := e.Extract(context.Background(), content, "docx")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(pages) != 1 {
		t.Fatalf("DOCX should yield a single page, got %d", len(pages))
	}
	// Paragraph boundaries must survive as newlines for the clause tagger.
	if !strings.Contains(pages[0].Text, "1. Term\n") {
		t.Errorf("paragraph boundary lost: %q", pages[0].Text)
	}
}

func TestExtractUnsupportedType(t *testing.T) {
	e := NewExtractor(25)
	_, err := e.Extract(context.Background(), []byte("x"), "xlsx")
	var exErr *ExtractionError
	if !errors.As(err, &exErr) {
		t.Fatalf("expected ExtractionError, got %v", err)
	}
	if exErr.Reason == "" {
		t.Error("ExtractionError must carry a human-readable reason")
	}
}

func TestExtractCorruptPDF(t *testing.T) {
	e := NewExtractor(25)
	_, err := e.Extract(context.Background(), []byte("not a pdf at all"), "pdf")
	var exErr *ExtractionError
	if !errors.As(err, &exErr) {
		t.Fatalf("expected ExtractionError for corrupt PDF, got %v", err)
	}
}

func TestExtractEmptyFile(t *testing.T) {
	e := NewExtractor(25)
	if _, err := e.Extract(context.Background(), nil, "pdf"); err == nil {
		t.Error("empty file must fail, never silently produce an empty document")
	}
}

func TestFillSparsePagesUsesOCR(t *testing.T) {
	ocr := &fakeOCR{text: "RECOGNIZED CONTRACT TEXT"}
	e := NewExtractor(25, WithOCR(ocr))
	pages := e.fillSparsePages(context.Background(), []byte("pdfbytes"), []models.Page{
		{Num: 1, Text: ""},
		{Num: 2, Text: strings.Repeat("dense text layer ", 10)},
	})
	if ocr.calls != 1 {
		t.Fatalf("expected one OCR call, got %d", ocr.calls)
	}
	if pages[0].Text != "RECOGNIZED CONTRACT TEXT" {
		t.Errorf("sparse page should carry OCR text, got %q", pages[0].Text)
	}
	if !strings.Contains(pages[1].Text, "dense text layer") {
		t.Error("dense page must keep its text layer")
	}
}

func TestFillSparsePagesNoSparse(t *testing.T) {
	ocr := &fakeOCR{text: "x"}
	e := NewExtractor(5, WithOCR(ocr))
	e.fillSparsePages(context.Background(), nil, []models.Page{{Num: 1, Text: "plenty of characters here"}})
	if ocr.calls != 0 {
		t.Errorf("OCR must not be called when all pages are dense, got %d calls", ocr.calls)
	}
}

func TestNoopOCRDisabled(t *testing.T) {
	_, err := NoopOCR{}.RecognizePDFPages(context.Background(), nil, []int{1})
	if !errors.Is(err, ErrOCRDisabled) {
		t.Errorf("expected ErrOCRDisabled, got %v", err)
	}
}
