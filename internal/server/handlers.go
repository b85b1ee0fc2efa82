package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/keiyakuhq/keiyaku/internal/answer"
	"github.com/keiyakuhq/keiyaku/internal/models"
	"github.com/keiyakuhq/keiyaku/internal/storage"
)

// maxUploadBytes bounds a single document upload.
const maxUploadBytes = 64 << 20

// handleIngest accepts a multipart upload and queues it for processing.
// The response is 202: processing is asynchronous and status is polled via
// the document endpoint.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid multipart request")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()
	content, err := io.ReadAll(file)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "failed to read upload")
		return
	}
	if len(content) == 0 {
		s.respondError(w, http.StatusBadRequest, "uploaded file is empty")
		return
	}

	docID := r.FormValue("id")
	declaredType := r.FormValue("type")
	if declaredType == "" {
		declaredType = strings.TrimPrefix(strings.ToLower(filepath.Ext(header.Filename)), ".")
	}

	s.logger.Debug("ingest request",
		zap.String("filename", header.Filename),
		zap.String("type", declaredType),
		zap.Int("bytes", len(content)))

	id, err := s.orchestrator.Ingest(r.Context(), docID, header.Filename, content, declaredType)
	if err != nil {
		s.logger.Error("ingest failed", zap.Error(err))
		s.respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	s.respondJSON(w, http.StatusAccepted, map[string]string{"id": id, "status": string(models.StatusPending)})
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	offset := queryInt(r, "offset", 0)
	limit := queryInt(r, "limit", 50)
	docs, err := s.storage.ListDocuments(r.Context(), offset, limit)
	if err != nil {
		s.logger.Error("list documents failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if docs == nil {
		docs = []*models.Document{}
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

// handleGetDocument reads current status straight from storage, so a poll
// immediately after an ingest or status transition sees the latest write.
func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	doc, err := s.orchestrator.GetStatus(r.Context(), id)
	if err != nil {
		var nf *storage.ErrNotFound
		if errors.As(err, &nf) {
			s.respondError(w, http.StatusNotFound, "document not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, doc)
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.logger.Debug("delete document request", zap.String("id", id))
	if err := s.orchestrator.Delete(r.Context(), id); err != nil {
		s.logger.Error("deletion failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleReprocess(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.orchestrator.Reprocess(r.Context(), id); err != nil {
		var nf *storage.ErrNotFound
		if errors.As(err, &nf) {
			s.respondError(w, http.StatusNotFound, "document not found")
			return
		}
		s.logger.Error("reprocess failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusAccepted, map[string]string{"id": id, "status": "queued"})
}

func (s *Server) handleReindex(w http.ResponseWriter, r *http.Request) {
	if err := s.orchestrator.ReprocessAll(r.Context()); err != nil {
		s.logger.Error("reindex failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.orchestrator.Progress())
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var query models.SearchQuery
	if err := json.NewDecoder(r.Body).Decode(&query); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("search request", zap.String("query", query.Query), zap.Int("limit", query.Limit))
	candidates, err := s.engine.Retrieve(r.Context(), &query)
	if err != nil {
		s.logger.Error("search failed", zap.Error(err))
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if candidates == nil {
		candidates = []*models.RetrievalCandidate{}
	}
	s.respondJSON(w, http.StatusOK, map[string]any{
		"query":      query.Query,
		"candidates": candidates,
	})
}

func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	var query models.SearchQuery
	if err := json.NewDecoder(r.Body).Decode(&query); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("answer request", zap.String("query", query.Query))
	ans, err := s.answers.Answer(r.Context(), &query)
	if err != nil {
		var unavailable *answer.AnswerUnavailableError
		if errors.As(err, &unavailable) {
			s.logger.Warn("answer unavailable", zap.Error(err))
			s.respondError(w, http.StatusBadGateway, unavailable.Error())
			return
		}
		s.logger.Error("answer failed", zap.Error(err))
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.attachFilenames(r, ans)
	s.respondJSON(w, http.StatusOK, ans)
}

// attachFilenames resolves citation document IDs to filenames for display.
func (s *Server) attachFilenames(r *http.Request, ans *models.Answer) {
	names := make(map[string]string)
	for i, c := range ans.Citations {
		name, ok := names[c.DocumentID]
		if !ok {
			doc, err := s.storage.GetDocument(r.Context(), c.DocumentID)
			if err != nil {
				continue
			}
			name = doc.Filename
			names[c.DocumentID] = name
		}
		ans.Citations[i].Filename = name
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	docCount, err := s.storage.CountDocuments(ctx)
	if err != nil {
		s.logger.Error("status: count documents failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	chunkCount, err := s.storage.CountChunks(ctx)
	if err != nil {
		s.logger.Error("status: count chunks failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := map[string]any{
		"documents":         docCount,
		"chunks":            chunkCount,
		"vector_index_size": s.vectorIndex.Size(),
		"config": map[string]any{
			"embedding_provider":   s.config.Embedding.Provider,
			"embedding_dimensions": s.config.Embedding.Dimensions,
			"chunk_size":           s.config.Search.ChunkSize,
			"chunk_overlap":        s.config.Search.ChunkOverlap,
			"rrf_k":                s.config.Search.RRFK,
			"distance_threshold":   s.config.Search.DistanceThreshold,
			"workers":              s.config.Ingest.Workers,
		},
	}
	diskBytes, err := storage.DiskUsageBytes(
		s.config.Storage.DatabasePath,
		s.config.Storage.BlobPath,
		s.config.Storage.BleveIndexPath,
		s.config.Storage.VectorIndexPath,
	)
	if err == nil {
		resp["disk_usage_bytes"] = diskBytes
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func queryInt(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
