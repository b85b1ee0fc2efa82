package search

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/keiyakuhq/keiyaku/internal/config"
	"github.com/keiyakuhq/keiyaku/internal/embedding"
	"github.com/keiyakuhq/keiyaku/internal/keyword"
	"github.com/keiyakuhq/keiyaku/internal/models"
	"github.com/keiyakuhq/keiyaku/internal/storage"
	"github.com/keiyakuhq/keiyaku/internal/vector"
)

// Engine runs hybrid retrieval: both indexes are queried in parallel, the
// two rankings are fused, and the survivors are hydrated from storage.
type Engine struct {
	storage      storage.Storage
	embedder     embedding.Embedder
	vectorIndex  vector.Index
	keywordIndex keyword.Index
	config       *config.SearchConfig
	logger       *zap.Logger
}

// Option configures the Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// NewEngine creates a retrieval engine with the given dependencies.
func NewEngine(
	store storage.Storage,
	embedder embedding.Embedder,
	vectorIndex vector.Index,
	keywordIndex keyword.Index,
	cfg *config.SearchConfig,
	opts ...Option,
) *Engine {
	e := &Engine{
		storage:      store,
		embedder:     embedder,
		vectorIndex:  vectorIndex,
		keywordIndex: keywordIndex,
		config:       cfg,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Retrieve returns up to query.Limit candidates ranked by fused score.
func (e *Engine) Retrieve(ctx context.Context, query *models.SearchQuery) ([]*models.RetrievalCandidate, error) {
	if query.Limit <= 0 {
		query.Limit = e.config.DefaultLimit
	}
	if query.Limit > e.config.MaxLimit {
		query.Limit = e.config.MaxLimit
	}
	if err := query.Validate(); err != nil {
		return nil, err
	}

	// Each index is over-fetched so fusion has enough overlap to work with.
	candidateLimit := query.Limit * e.config.CandidateMultiplier

	var (
		vectorResults  []vector.Result
		lexicalResults []*keyword.Result
		errChan        = make(chan error, 2)
		wg             sync.WaitGroup
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		queryEmbedding, err := e.embedder.Embed(ctx, query.Query)
		if err != nil {
			errChan <- fmt.Errorf("query embedding failed: %w", err)
			return
		}
		results, err := e.vectorIndex.Search(ctx, queryEmbedding, candidateLimit, query.DocumentID)
		if err != nil {
			errChan <- fmt.Errorf("vector search failed: %w", err)
			return
		}
		vectorResults = results
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		results, err := e.keywordIndex.Search(ctx, query.Query, candidateLimit, query.DocumentID)
		if err != nil {
			errChan <- fmt.Errorf("lexical search failed: %w", err)
			return
		}
		lexicalResults = results
	}()

	wg.Wait()
	close(errChan)
	for err := range errChan {
		if err != nil {
			return nil, err
		}
	}

	fused := FuseRRF(vectorResults, lexicalResults, e.config.RRFK)
	fused = ApplyRelevanceFloor(fused, e.config.DistanceThreshold)
	if len(fused) > query.Limit {
		fused = fused[:query.Limit]
	}

	ids := make([]string, len(fused))
	for i, f := range fused {
		ids[i] = f.ChunkID
	}
	chunks, err := e.storage.GetChunks(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("chunk hydration failed: %w", err)
	}
	byID := make(map[string]*models.Chunk, len(chunks))
	for _, c := range chunks {
		byID[c.ID] = c
	}

	// Chunks deleted between index query and hydration drop out here, so a
	// concurrent document deletion never surfaces dangling candidates.
	candidates := make([]*models.RetrievalCandidate, 0, len(fused))
	for _, f := range fused {
		chunk, ok := byID[f.ChunkID]
		if !ok {
			e.logger.Debug("dropping candidate without stored chunk",
				zap.String("chunk_id", f.ChunkID))
			continue
		}
		candidates = append(candidates, &models.RetrievalCandidate{
			Chunk:          chunk,
			VectorDistance: f.VectorDistance,
			InVectorList:   f.InVectorList,
			LexicalScore:   f.LexicalScore,
			FusedScore:     f.Score,
			Rank:           len(candidates) + 1,
		})
	}
	return candidates, nil
}
