package extract

import (
	"context"
	"fmt"
	"time"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// Vision batch-annotates at most this many PDF pages per request.
const visionPagesPerRequest = 5

// VisionOCR implements OCRClient with the GCP Vision document text detection
// API. Credentials come from the environment (ADC) or the provided options.
type VisionOCR struct {
	client  *vision.ImageAnnotatorClient
	timeout time.Duration
	logger  *zap.Logger
}

// NewVisionOCR creates a Vision-backed OCR client. timeout bounds each
// batch-annotate call.
func NewVisionOCR(ctx context.Context, timeout time.Duration, logger *zap.Logger, opts ...option.ClientOption) (*VisionOCR, error) {
	client, err := vision.NewImageAnnotatorClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("vision client: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VisionOCR{client: client, timeout: timeout, logger: logger}, nil
}

// RecognizePDFPages runs document text detection over the given pages,
// batching visionPagesPerRequest pages per API call.
func (v *VisionOCR) RecognizePDFPages(ctx context.Context, content []byte, pages []int) (map[int]string, error) {
	out := make(map[int]string, len(pages))
	for start := 0; start < len(pages); start += visionPagesPerRequest {
		end := start + visionPagesPerRequest
		if end > len(pages) {
			end = len(pages)
		}
		batch := make([]int32, 0, end-start)
		for _, p := range pages[start:end] {
			batch = append(batch, int32(p))
		}
		if err := v.annotateBatch(ctx, content, batch, out); err != nil {
			return out, err
		}
	}
	return out, nil
}

func (v *VisionOCR) annotateBatch(ctx context.Context, content []byte, pages []int32, out map[int]string) error {
	callCtx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	resp, err := v.client.BatchAnnotateFiles(callCtx, &visionpb.BatchAnnotateFilesRequest{
		Requests: []*visionpb.AnnotateFileRequest{{
			InputConfig: &visionpb.InputConfig{
				Content:  content,
				MimeType: "application/pdf",
			},
			Features: []*visionpb.Feature{{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION}},
			Pages:    pages,
		}},
	})
	if err != nil {
		return fmt.Errorf("vision batch annotate: %w", err)
	}
	for _, fileResp := range resp.GetResponses() {
		if e := fileResp.GetError(); e != nil {
			return fmt.Errorf("vision file annotation: %s", e.GetMessage())
		}
		for _, pageResp := range fileResp.GetResponses() {
			if e := pageResp.GetError(); e != nil {
				v.logger.Warn("vision page annotation failed", zap.String("error", e.GetMessage()))
				continue
			}
			annotation := pageResp.GetFullTextAnnotation()
			if annotation == nil {
				continue
			}
			pageNum := int(pageResp.GetContext().GetPageNumber())
			if pageNum > 0 {
				out[pageNum] = annotation.GetText()
			}
		}
	}
	return nil
}

// Close releases the underlying gRPC connection.
func (v *VisionOCR) Close() error {
	return v.client.Close()
}
