package extract

import (
	"context"
	"errors"
)

// OCRClient recognizes text on image-only PDF pages. Implementations call a
// rate-limited external service and must honor ctx cancellation.
type OCRClient interface {
	// RecognizePDFPages runs OCR over the given 1-based pages of a PDF and
	// returns recognized text keyed by page number. Pages with no
	// recognizable text may be absent from the result.
	RecognizePDFPages(ctx context.Context, content []byte, pages []int) (map[int]string, error)
	Close() error
}

// ErrOCRDisabled is returned by NoopOCR for any recognition request.
var ErrOCRDisabled = errors.New("OCR is not configured")

// NoopOCR is the OCRClient used when no OCR provider is configured.
type NoopOCR struct{}

func (NoopOCR) RecognizePDFPages(ctx context.Context, content []byte, pages []int) (map[int]string, error) {
	return nil, ErrOCRDisabled
}

func (NoopOCR) Close() error { return nil }
