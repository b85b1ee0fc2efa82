package answer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/keiyakuhq/keiyaku/internal/config"
	"github.com/keiyakuhq/keiyaku/internal/llm"
	"github.com/keiyakuhq/keiyaku/internal/models"
)

type fakeRetriever struct {
	candidates []*models.RetrievalCandidate
	err        error
	gotLimit   int
}

func (f *fakeRetriever) Retrieve(ctx context.Context, q *models.SearchQuery) ([]*models.RetrievalCandidate, error) {
	f.gotLimit = q.Limit
	return f.candidates, f.err
}

func candidate(docID string, ordinal, page, spanStart int, text string) *models.RetrievalCandidate {
	return &models.RetrievalCandidate{
		Chunk: &models.Chunk{
			ID:         models.ChunkID(docID, ordinal),
			DocumentID: docID,
			Ordinal:    ordinal,
			PageNum:    page,
			SpanStart:  spanStart,
			SpanEnd:    spanStart + len([]rune(text)),
			Text:       text,
		},
	}
}

func testAnswerConfig() *config.AnswerConfig {
	return &config.AnswerConfig{MaxContextChars: 6000, TopK: 8}
}

func TestAnswerNoEvidence(t *testing.T) {
	completer := &llm.MockCompleter{Response: "should not be called"}
	svc := NewService(&fakeRetriever{}, completer, testAnswerConfig())

	ans, err := svc.Answer(context.Background(), &models.SearchQuery{Query: "anything"})
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if !ans.NoEvidence {
		t.Error("expected NoEvidence to be set")
	}
	if ans.Text == "" {
		t.Error("no-evidence answer must still explain itself")
	}
	if completer.Calls != 0 {
		t.Error("model must not be invoked with zero candidates")
	}
}

func TestAnswerUsesConfiguredTopK(t *testing.T) {
	r := &fakeRetriever{}
	svc := NewService(r, &llm.MockCompleter{}, testAnswerConfig())
	if _, err := svc.Answer(context.Background(), &models.SearchQuery{Query: "q"}); err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if r.gotLimit != 8 {
		t.Errorf("expected retrieval limit 8, got %d", r.gotLimit)
	}
}

func TestAnswerCitations(t *testing.T) {
	r := &fakeRetriever{candidates: []*models.RetrievalCandidate{
		candidate("nda", 0, 2, 150, "Either party may terminate this agreement with thirty days written notice."),
	}}
	completer := &llm.MockCompleter{
		Response: "Termination requires notice: <<terminate this agreement with thirty days written notice>>.",
	}
	svc := NewService(r, completer, testAnswerConfig())

	ans, err := svc.Answer(context.Background(), &models.SearchQuery{Query: "how do we terminate?"})
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if len(ans.Citations) != 1 {
		t.Fatalf("expected 1 citation, got %d", len(ans.Citations))
	}
	c := ans.Citations[0]
	if c.DocumentID != "nda" || c.PageNum != 2 {
		t.Errorf("citation anchor wrong: %+v", c)
	}
	wantStart := 150 + len("Either party may ")
	if c.SpanStart != wantStart {
		t.Errorf("expected span start %d, got %d", wantStart, c.SpanStart)
	}
	if c.SpanEnd <= c.SpanStart {
		t.Errorf("invalid span: [%d, %d)", c.SpanStart, c.SpanEnd)
	}
}

func TestAnswerCitationFuzzyFallback(t *testing.T) {
	r := &fakeRetriever{candidates: []*models.RetrievalCandidate{
		candidate("lease", 1, 4, 0, "Rent shall be  $2,500.00 per\nmonth, payable in advance."),
	}}
	// Model re-flows whitespace and case; exact match fails.
	completer := &llm.MockCompleter{
		Response: "Monthly rent is stated: <<rent shall be $2,500.00 per month>>.",
	}
	svc := NewService(r, completer, testAnswerConfig())

	ans, err := svc.Answer(context.Background(), &models.SearchQuery{Query: "what is the rent?"})
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if len(ans.Citations) != 1 {
		t.Fatalf("expected fuzzy-matched citation, got %d", len(ans.Citations))
	}
	if ans.Citations[0].SpanStart != 0 {
		t.Errorf("fuzzy span should start at 0, got %d", ans.Citations[0].SpanStart)
	}
}

func TestAnswerOmitsUnmatchableExcerpt(t *testing.T) {
	r := &fakeRetriever{candidates: []*models.RetrievalCandidate{
		candidate("nda", 0, 1, 0, "Confidentiality obligations survive for five years."),
	}}
	completer := &llm.MockCompleter{
		Response: "Real: <<survive for five years>>. Invented: <<liquidated damages of one million dollars>>.",
	}
	svc := NewService(r, completer, testAnswerConfig())

	ans, err := svc.Answer(context.Background(), &models.SearchQuery{Query: "q"})
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if len(ans.Citations) != 1 {
		t.Fatalf("fabricated excerpt must be omitted, got %d citations", len(ans.Citations))
	}
	if ans.Citations[0].Excerpt != "survive for five years" {
		t.Errorf("wrong citation kept: %+v", ans.Citations[0])
	}
}

func TestAnswerUnavailableOnModelFailure(t *testing.T) {
	r := &fakeRetriever{candidates: []*models.RetrievalCandidate{
		candidate("nda", 0, 1, 0, "some text"),
	}}
	completer := &llm.MockCompleter{Fn: func(system, prompt string) (string, error) {
		return "", errors.New("upstream timeout")
	}}
	svc := NewService(r, completer, testAnswerConfig())

	_, err := svc.Answer(context.Background(), &models.SearchQuery{Query: "q"})
	var unavailable *AnswerUnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("expected AnswerUnavailableError, got %v", err)
	}
}

func TestAnswerContextBudget(t *testing.T) {
	big := strings.Repeat("a", 400)
	r := &fakeRetriever{candidates: []*models.RetrievalCandidate{
		candidate("d", 0, 1, 0, big),
		candidate("d", 1, 1, 400, big),
		candidate("d", 2, 1, 800, big),
	}}
	var gotPrompt string
	completer := &llm.MockCompleter{Fn: func(system, prompt string) (string, error) {
		gotPrompt = prompt
		return "ok", nil
	}}
	cfg := &config.AnswerConfig{MaxContextChars: 900, TopK: 8}
	svc := NewService(r, completer, cfg)

	if _, err := svc.Answer(context.Background(), &models.SearchQuery{Query: "q"}); err != nil {
		t.Fatalf("Answer: %v", err)
	}
	// Two 400-char chunks plus headers fit inside 900; the third does not.
	if n := strings.Count(gotPrompt, "[doc d p.1]"); n != 2 {
		t.Errorf("expected 2 context entries within budget, got %d", n)
	}
}

func TestAnswerContextHeadersIncludeClause(t *testing.T) {
	c := candidate("msa", 0, 3, 0, "Payment is due in thirty days.")
	c.Chunk.ClauseNumber = "4.2"
	c.Chunk.ClauseTitle = "Payment Terms"
	r := &fakeRetriever{candidates: []*models.RetrievalCandidate{c}}
	var gotPrompt string
	completer := &llm.MockCompleter{Fn: func(system, prompt string) (string, error) {
		gotPrompt = prompt
		return "ok", nil
	}}
	svc := NewService(r, completer, testAnswerConfig())

	if _, err := svc.Answer(context.Background(), &models.SearchQuery{Query: "q"}); err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if !strings.Contains(gotPrompt, "[doc msa p.3 clause 4.2]") {
		t.Errorf("context header missing clause anchor: %q", gotPrompt)
	}
}
