// Package answer assembles grounded answers with citations from retrieval
// candidates.
package answer

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/keiyakuhq/keiyaku/internal/config"
	"github.com/keiyakuhq/keiyaku/internal/llm"
	"github.com/keiyakuhq/keiyaku/internal/models"
)

const systemPrompt = `You are a contract review assistant. Answer the question using only the provided context excerpts. Do not use outside knowledge.
For every claim in your answer, quote the exact supporting text from the context between << and >> markers.
If the context does not contain the answer, say so plainly.`

const noEvidenceText = "No supporting content was found in the document corpus for this question."

// Retriever is the slice of the search engine that synthesis needs.
type Retriever interface {
	Retrieve(ctx context.Context, query *models.SearchQuery) ([]*models.RetrievalCandidate, error)
}

// Service turns a question into an answer with citations.
type Service struct {
	retriever Retriever
	completer llm.Completer
	config    *config.AnswerConfig
	logger    *zap.Logger
}

// Option configures the Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService creates an answer synthesis service.
func NewService(retriever Retriever, completer llm.Completer, cfg *config.AnswerConfig, opts ...Option) *Service {
	s := &Service{
		retriever: retriever,
		completer: completer,
		config:    cfg,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Answer retrieves evidence for the question and synthesizes a grounded
// answer. Zero candidates short-circuit to a no-evidence answer without
// invoking the model. A model failure returns AnswerUnavailableError.
func (s *Service) Answer(ctx context.Context, query *models.SearchQuery) (*models.Answer, error) {
	query.Limit = s.config.TopK
	candidates, err := s.retriever.Retrieve(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("retrieval failed: %w", err)
	}
	if len(candidates) == 0 {
		return &models.Answer{Text: noEvidenceText, NoEvidence: true}, nil
	}

	contextBlock, used := s.buildContext(candidates)
	prompt := fmt.Sprintf("Context:\n%s\nQuestion: %s", contextBlock, query.Query)

	text, err := s.completer.Complete(ctx, systemPrompt, prompt)
	if err != nil {
		return nil, &AnswerUnavailableError{Err: err}
	}

	citations := resolveCitations(text, used, s.logger)
	return &models.Answer{Text: text, Citations: citations}, nil
}

// buildContext concatenates candidate texts in fused-rank order up to the
// configured character budget. Each excerpt carries its document, page, and
// clause so the model can reference it. Returns the block and the
// candidates that actually made it in.
func (s *Service) buildContext(candidates []*models.RetrievalCandidate) (string, []*models.RetrievalCandidate) {
	var b strings.Builder
	var used []*models.RetrievalCandidate
	for _, c := range candidates {
		entry := fmt.Sprintf("%s\n%s\n\n", contextHeader(c.Chunk), c.Chunk.Text)
		if b.Len() > 0 && b.Len()+len(entry) > s.config.MaxContextChars {
			break
		}
		b.WriteString(entry)
		used = append(used, c)
	}
	return b.String(), used
}

func contextHeader(c *models.Chunk) string {
	header := fmt.Sprintf("[doc %s p.%d", c.DocumentID, c.PageNum)
	if c.ClauseNumber != "" {
		header += " clause " + c.ClauseNumber
	}
	return header + "]"
}
