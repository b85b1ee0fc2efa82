// Package ingest drives documents through extraction, chunking, embedding,
// and dual-index writes on a bounded worker pool.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/keiyakuhq/keiyaku/internal/chunker"
	"github.com/keiyakuhq/keiyaku/internal/config"
	"github.com/keiyakuhq/keiyaku/internal/embedding"
	"github.com/keiyakuhq/keiyaku/internal/extract"
	"github.com/keiyakuhq/keiyaku/internal/keyword"
	"github.com/keiyakuhq/keiyaku/internal/models"
	"github.com/keiyakuhq/keiyaku/internal/storage"
	"github.com/keiyakuhq/keiyaku/internal/vector"
)

// Orchestrator owns the ingestion pipeline. Callers hand it file bytes and
// poll status afterward; the worker pool bounds concurrent processing and
// therefore embedding-API and OCR load. Retrieval never blocks on it.
type Orchestrator struct {
	storage      storage.Storage
	blobs        *storage.BlobStore
	extractor    *extract.Extractor
	chunker      *chunker.Chunker
	embedder     embedding.Embedder
	vectorIndex  vector.Index
	keywordIndex keyword.Index
	config       *config.IngestConfig
	logger       *zap.Logger

	jobs     chan string
	wg       sync.WaitGroup
	progress tracker
	cancel   context.CancelFunc

	mu      sync.Mutex
	queued  map[string]bool
	deleted map[string]bool
	stopped bool
}

// Option configures the Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// NewOrchestrator creates an orchestrator with the given dependencies.
// Call Start to launch the worker pool.
func NewOrchestrator(
	store storage.Storage,
	blobs *storage.BlobStore,
	extractor *extract.Extractor,
	chnk *chunker.Chunker,
	embedder embedding.Embedder,
	vectorIndex vector.Index,
	keywordIndex keyword.Index,
	cfg *config.IngestConfig,
	opts ...Option,
) *Orchestrator {
	o := &Orchestrator{
		storage:      store,
		blobs:        blobs,
		extractor:    extractor,
		chunker:      chnk,
		embedder:     embedder,
		vectorIndex:  vectorIndex,
		keywordIndex: keywordIndex,
		config:       cfg,
		logger:       zap.NewNop(),
		jobs:         make(chan string, cfg.QueueSize),
		queued:       make(map[string]bool),
		deleted:      make(map[string]bool),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Start launches the worker pool.
func (o *Orchestrator) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	o.cancel = cancel
	for i := 0; i < o.config.Workers; i++ {
		o.wg.Add(1)
		go o.worker(ctx)
	}
}

// Stop drains the queue and waits for in-flight documents to finish.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	if o.stopped {
		o.mu.Unlock()
		return
	}
	o.stopped = true
	close(o.jobs)
	o.mu.Unlock()
	o.wg.Wait()
	if o.cancel != nil {
		o.cancel()
	}
}

// Ingest registers a document and queues it for processing. The call
// returns as soon as the document is persisted and queued; callers poll
// status afterward. An empty docID gets a generated one; the assigned ID is
// returned either way.
func (o *Orchestrator) Ingest(ctx context.Context, docID, filename string, fileBytes []byte, declaredType string) (string, error) {
	if declaredType == "" {
		declaredType = strings.TrimPrefix(filepath.Ext(filename), ".")
	}

	hash := sha256.Sum256(fileBytes)
	contentHash := hex.EncodeToString(hash[:])

	// An unchanged re-upload of an already indexed document is a no-op, so
	// inbox drops and retried uploads do not churn the indexes.
	if existing, err := o.storage.GetDocumentByHash(ctx, contentHash); err == nil &&
		existing.Status == models.StatusIndexed &&
		(docID == "" || docID == existing.ID) &&
		!o.isDeleted(existing.ID) {
		return existing.ID, nil
	}

	if docID == "" {
		docID = uuid.New().String()
	}

	o.mu.Lock()
	delete(o.deleted, docID)
	o.mu.Unlock()

	if _, err := o.storage.GetDocument(ctx, docID); err == nil {
		// Re-upload of a known document: replace content and re-enter at pending.
		if err := o.storage.UpdateDocumentContent(ctx, docID, filename, declaredType, contentHash); err != nil {
			return "", fmt.Errorf("failed to update document: %w", err)
		}
		if err := o.storage.UpdateDocumentStatus(ctx, docID, models.StatusPending, ""); err != nil {
			return "", fmt.Errorf("failed to reset document: %w", err)
		}
	} else {
		doc := &models.Document{
			ID:          docID,
			Filename:    filename,
			FileType:    declaredType,
			ContentHash: contentHash,
			Status:      models.StatusPending,
		}
		if err := o.storage.CreateDocument(ctx, doc); err != nil {
			return "", fmt.Errorf("failed to store document: %w", err)
		}
	}

	if err := o.blobs.Put(docID, fileBytes); err != nil {
		return "", fmt.Errorf("failed to store file content: %w", err)
	}
	return docID, o.enqueue(docID)
}

// Reprocess re-runs the full pipeline for one document from its stored
// bytes. A document already queued or in flight is left alone, so two
// processors never run over the same document concurrently.
func (o *Orchestrator) Reprocess(ctx context.Context, docID string) error {
	if _, err := o.storage.GetDocument(ctx, docID); err != nil {
		return err
	}
	o.mu.Lock()
	if o.queued[docID] {
		o.mu.Unlock()
		return nil
	}
	delete(o.deleted, docID)
	o.mu.Unlock()

	if err := o.storage.UpdateDocumentStatus(ctx, docID, models.StatusPending, ""); err != nil {
		return err
	}
	return o.enqueue(docID)
}

// ReprocessAll re-runs the pipeline for every document. All targets are
// flipped to extracting up front so a concurrent status reader immediately
// sees the batch as in progress, then each document commits its terminal
// state independently; a crash mid-batch leaves accurate partial progress.
func (o *Orchestrator) ReprocessAll(ctx context.Context) error {
	ids, err := o.storage.ListDocumentIDs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}

	var targets []string
	o.mu.Lock()
	for _, id := range ids {
		if !o.queued[id] && !o.deleted[id] {
			targets = append(targets, id)
		}
	}
	o.mu.Unlock()

	for _, id := range targets {
		if err := o.storage.UpdateDocumentStatus(ctx, id, models.StatusExtracting, ""); err != nil {
			return fmt.Errorf("failed to flip status for %s: %w", id, err)
		}
	}
	for _, id := range targets {
		if err := o.enqueue(id); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes a document everywhere. The tombstone is set first so a
// worker mid-pipeline stops before its next index write; entries written
// before deletion was observed are removed here, and the worker's own
// cleanup path catches the race where it wrote between these two steps.
func (o *Orchestrator) Delete(ctx context.Context, docID string) error {
	o.mu.Lock()
	o.deleted[docID] = true
	o.mu.Unlock()

	if err := o.keywordIndex.DeleteByDocument(ctx, docID); err != nil {
		return fmt.Errorf("failed to delete from lexical index: %w", err)
	}
	if err := o.vectorIndex.DeleteByDocument(ctx, docID); err != nil {
		return fmt.Errorf("failed to delete from vector index: %w", err)
	}
	if err := o.storage.DeleteDocument(ctx, docID); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	if err := o.blobs.Delete(docID); err != nil {
		return fmt.Errorf("failed to delete file content: %w", err)
	}
	o.logger.Info("document deleted", zap.String("doc_id", docID))
	return nil
}

// Progress returns a consistent snapshot for pollers. Cheap; never touches
// storage or the indexes.
func (o *Orchestrator) Progress() models.Progress {
	return o.progress.snapshot()
}

// GetStatus reads the current stage of a document directly from storage.
// There is deliberately no caching layer here: a status read must see the
// latest committed write.
func (o *Orchestrator) GetStatus(ctx context.Context, docID string) (*models.Document, error) {
	return o.storage.GetDocument(ctx, docID)
}

func (o *Orchestrator) enqueue(docID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.stopped {
		return fmt.Errorf("orchestrator is stopped")
	}
	if o.queued[docID] {
		return nil
	}
	select {
	case o.jobs <- docID:
		o.queued[docID] = true
		o.progress.add(1)
		return nil
	default:
		return fmt.Errorf("ingestion queue is full")
	}
}

func (o *Orchestrator) worker(ctx context.Context) {
	defer o.wg.Done()
	for docID := range o.jobs {
		o.progress.setCurrent(docID)
		perr := o.process(ctx, docID)
		o.mu.Lock()
		delete(o.queued, docID)
		o.mu.Unlock()
		o.progress.done(docID, perr)
	}
}

func (o *Orchestrator) isDeleted(docID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.deleted[docID]
}
