package ingest

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/keiyakuhq/keiyaku/internal/models"
	"github.com/keiyakuhq/keiyaku/internal/vector"
)

// process runs one document through extract, chunk, embed, and the dual
// index writes. Stages are strictly sequential; any stage failure is
// recorded on the document and returned as a ProcessingError, never
// propagated in a way that could take down the pool.
func (o *Orchestrator) process(ctx context.Context, docID string) *models.ProcessingError {
	if o.isDeleted(docID) {
		return nil
	}

	doc, err := o.storage.GetDocument(ctx, docID)
	if err != nil {
		return o.fail(ctx, docID, "extract", fmt.Errorf("document lookup failed: %w", err))
	}

	// Extract.
	if err := o.setStatus(ctx, docID, models.StatusExtracting); err != nil {
		return o.fail(ctx, docID, "extract", err)
	}
	content, err := o.blobs.Get(docID)
	if err != nil {
		return o.fail(ctx, docID, "extract", fmt.Errorf("stored file content missing: %w", err))
	}
	pages, err := o.extractor.Extract(ctx, content, doc.FileType)
	if err != nil {
		return o.fail(ctx, docID, "extract", err)
	}
	if err := o.storage.UpdateDocumentPageCount(ctx, docID, len(pages)); err != nil {
		return o.fail(ctx, docID, "extract", err)
	}

	// Chunk.
	if err := o.setStatus(ctx, docID, models.StatusChunking); err != nil {
		return o.fail(ctx, docID, "chunking", err)
	}
	chunks := o.chunker.Chunk(docID, pages)
	if len(chunks) == 0 {
		return o.fail(ctx, docID, "chunking", fmt.Errorf("no chunks produced from %d pages", len(pages)))
	}

	// Embed.
	if err := o.setStatus(ctx, docID, models.StatusEmbedding); err != nil {
		return o.fail(ctx, docID, "embedding", err)
	}
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	embeddings, err := o.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return o.fail(ctx, docID, "embedding", err)
	}
	for i := range chunks {
		chunks[i].Embedding = embeddings[i]
	}

	// Index writes. The tombstone check runs before each write so a
	// deletion observed mid-pipeline stops further writes.
	if o.isDeleted(docID) {
		o.cleanup(ctx, docID)
		return nil
	}
	if err := o.storage.ReplaceChunks(ctx, docID, chunks); err != nil {
		return o.failAndRollback(ctx, docID, &IndexWriteError{Index: "chunk store", Err: err})
	}

	if o.isDeleted(docID) {
		o.cleanup(ctx, docID)
		return nil
	}
	entries := make([]vector.Entry, len(chunks))
	for i, c := range chunks {
		entries[i] = vector.Entry{ChunkID: c.ID, DocumentID: docID, Vector: c.Embedding}
	}
	if err := o.vectorIndex.Upsert(ctx, entries); err != nil {
		return o.failAndRollback(ctx, docID, &IndexWriteError{Index: "vector", Err: err})
	}

	if o.isDeleted(docID) {
		o.cleanup(ctx, docID)
		return nil
	}
	if err := o.keywordIndex.IndexChunks(ctx, chunks); err != nil {
		return o.failAndRollback(ctx, docID, &IndexWriteError{Index: "lexical", Err: err})
	}

	// A deletion that raced the writes above: clean up instead of
	// committing indexed.
	if o.isDeleted(docID) {
		o.cleanup(ctx, docID)
		return nil
	}

	// Indexed becomes visible only after both indexes absorbed every chunk.
	if err := o.setStatus(ctx, docID, models.StatusIndexed); err != nil {
		return o.fail(ctx, docID, "index", err)
	}
	o.logger.Info("document indexed",
		zap.String("doc_id", docID),
		zap.Int("pages", len(pages)),
		zap.Int("chunks", len(chunks)))
	return nil
}

func (o *Orchestrator) setStatus(ctx context.Context, docID string, status models.DocumentStatus) error {
	return o.storage.UpdateDocumentStatus(ctx, docID, status, "")
}

// fail records a terminal failure on the document and returns the error for
// the progress snapshot. The worker pool moves on to the next document.
func (o *Orchestrator) fail(ctx context.Context, docID, stage string, err error) *models.ProcessingError {
	reason := fmt.Sprintf("%s: %v", stage, err)
	if updateErr := o.storage.UpdateDocumentStatus(ctx, docID, models.StatusFailed, reason); updateErr != nil {
		o.logger.Error("failed to record document failure",
			zap.String("doc_id", docID), zap.Error(updateErr))
	}
	o.logger.Warn("document processing failed",
		zap.String("doc_id", docID),
		zap.String("stage", stage),
		zap.Error(err))
	return &models.ProcessingError{DocumentID: docID, Stage: stage, Message: err.Error()}
}

// failAndRollback removes the document's partial index writes before
// recording the failure, so a later reprocess starts clean from pending.
func (o *Orchestrator) failAndRollback(ctx context.Context, docID string, werr *IndexWriteError) *models.ProcessingError {
	o.cleanup(ctx, docID)
	return o.fail(ctx, docID, "index", werr)
}

// cleanup removes a document's chunks from both indexes and storage.
// Best-effort: cleanup runs on already-failing paths, so errors are logged
// rather than compounded.
func (o *Orchestrator) cleanup(ctx context.Context, docID string) {
	if err := o.keywordIndex.DeleteByDocument(ctx, docID); err != nil {
		o.logger.Error("lexical cleanup failed", zap.String("doc_id", docID), zap.Error(err))
	}
	if err := o.vectorIndex.DeleteByDocument(ctx, docID); err != nil {
		o.logger.Error("vector cleanup failed", zap.String("doc_id", docID), zap.Error(err))
	}
	if err := o.storage.DeleteChunksByDocumentID(ctx, docID); err != nil {
		o.logger.Error("chunk cleanup failed", zap.String("doc_id", docID), zap.Error(err))
	}
}
