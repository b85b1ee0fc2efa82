// Package extract provides page-numbered text extraction from contract files,
// with an OCR fallback for image-only pages.
package extract

import (
	"context"
	"strings"

	"github.com/keiyakuhq/keiyaku/internal/models"
	"go.uber.org/zap"
)

// Extractor turns raw file bytes into ordered (page, text) pairs.
// When a page's embedded text layer is below the minimum character density,
// the page is sent to the OCR client.
type Extractor struct {
	ocr            OCRClient
	minCharDensity int
	logger         *zap.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithOCR sets the OCR client used for image-only pages.
func WithOCR(ocr OCRClient) Option {
	return func(e *Extractor) { e.ocr = ocr }
}

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) Option {
	return func(e *Extractor) { e.logger = l }
}

// NewExtractor creates an extractor. minCharDensity is the threshold (in
// extracted characters per page) below which a page is treated as image-only.
func NewExtractor(minCharDensity int, opts ...Option) *Extractor {
	e := &Extractor{
		ocr:            NoopOCR{},
		minCharDensity: minCharDensity,
		logger:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract returns the ordered pages of content. declaredType is the upload
// collaborator's validated type ("pdf", "docx", "txt", "md"); it is trusted,
// not re-derived from the bytes. Returns *ExtractionError when the file is
// unreadable, corrupt, or of an unsupported type.
func (e *Extractor) Extract(ctx context.Context, content []byte, declaredType string) ([]models.Page, error) {
	if len(content) == 0 {
		return nil, extractionErr("empty file", nil)
	}
	switch strings.ToLower(strings.TrimPrefix(declaredType, ".")) {
	case "pdf":
		return e.extractPDF(ctx, content)
	case "docx":
		text, err := extractDOCX(content)
		if err != nil {
			return nil, extractionErr("unreadable DOCX", err)
		}
		if strings.TrimSpace(text) == "" {
			return nil, extractionErr("DOCX contains no text", nil)
		}
		return []models.Page{{Num: 1, Text: text}}, nil
	case "txt", "md", "text":
		text := extractPlain(content)
		if strings.TrimSpace(text) == "" {
			return nil, extractionErr("file contains no text", nil)
		}
		return []models.Page{{Num: 1, Text: text}}, nil
	default:
		return nil, extractionErr("unsupported file type: "+declaredType, nil)
	}
}

// extractPDF extracts the text layer per page, falling back to OCR for pages
// whose extracted text is below the character density threshold.
func (e *Extractor) extractPDF(ctx context.Context, content []byte) ([]models.Page, error) {
	pages, err := extractPDFPages(content)
	if err != nil {
		return nil, extractionErr("unreadable PDF", err)
	}
	pages = e.fillSparsePages(ctx, content, pages)

	nonEmpty := false
	for _, p := range pages {
		if strings.TrimSpace(p.Text) != "" {
			nonEmpty = true
			break
		}
	}
	if !nonEmpty {
		if _, disabled := e.ocr.(NoopOCR); disabled {
			return nil, extractionErr("no extractable text and OCR is not configured", nil)
		}
		return nil, extractionErr("no extractable text (OCR produced nothing)", nil)
	}
	return pages, nil
}

// fillSparsePages sends pages below the density threshold to OCR and merges
// recognized text back in. An OCR failure degrades to the text-layer result.
func (e *Extractor) fillSparsePages(ctx context.Context, content []byte, pages []models.Page) []models.Page {
	var sparse []int
	for _, p := range pages {
		if len(strings.TrimSpace(p.Text)) < e.minCharDensity {
			sparse = append(sparse, p.Num)
		}
	}
	if len(sparse) == 0 {
		return pages
	}
	e.logger.Debug("pages below text density threshold, trying OCR",
		zap.Int("pages", len(sparse)), zap.Int("threshold", e.minCharDensity))
	recognized, err := e.ocr.RecognizePDFPages(ctx, content, sparse)
	if err != nil {
		e.logger.Warn("OCR fallback failed", zap.Error(err))
	}
	for i := range pages {
		if text, ok := recognized[pages[i].Num]; ok && strings.TrimSpace(text) != "" {
			pages[i].Text = text
		}
	}
	return pages
}
