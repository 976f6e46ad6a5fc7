package gemini

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/prospectline/prospect-matcher/internal/prospects"
)

type stubGenerator struct {
	response   string
	err        error
	calls      int
	lastPrompt string
}

func (s *stubGenerator) GenerateContent(_ context.Context, prompt string) (string, error) {
	s.calls++
	s.lastPrompt = prompt
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

func TestGetMatches(t *testing.T) {
	stub := &stubGenerator{response: `[{"name": "Ann", "title": "VP", "linkedin_url": "https://linkedin.com/in/ann", "confidence": 0.9, "reason": "owns the org"}]`}
	src := NewMatchSource(stub, zap.NewNop(), 0)

	req := prospects.MatchRequest{ProspectID: "p1", Company: "Stripe", JobTitle: "PM"}

	matches, err := src.GetMatches(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(matches) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(matches))
	}
	if matches[0].Name != "Ann" || matches[0].Confidence != 0.9 {
		t.Fatalf("unexpected candidate: %+v", matches[0])
	}

	if stub.lastPrompt == "" {
		t.Fatalf("expected prompt to be sent")
	}
	if !strings.Contains(stub.lastPrompt, `"company": "Stripe"`) {
		t.Fatalf("expected prospect payload in prompt: %s", stub.lastPrompt)
	}
}

func TestParseResponseHandlesCodeBlock(t *testing.T) {
	raw := "```json\n[{\"name\": \"Ann\", \"confidence\": \"0.8\", \"reason\": \"likely owner\"}]\n```"

	candidates, err := parseResponse(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(candidates) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(candidates))
	}
	if candidates[0].Confidence != 0.8 {
		t.Fatalf("expected coerced confidence 0.8, got %v", candidates[0].Confidence)
	}
}

func TestParseResponseClampsConfidence(t *testing.T) {
	raw := `[{"name": "A", "confidence": 3.2}, {"name": "B", "confidence": -1}, {"name": "C", "confidence": "junk"}]`

	candidates, err := parseResponse(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if candidates[0].Confidence != 1 {
		t.Fatalf("expected clamp to 1, got %v", candidates[0].Confidence)
	}
	if candidates[1].Confidence != 0 {
		t.Fatalf("expected clamp to 0, got %v", candidates[1].Confidence)
	}
	if candidates[2].Confidence != 0 {
		t.Fatalf("expected NaN coerced to 0, got %v", candidates[2].Confidence)
	}
}

func TestParseResponseEmptyArray(t *testing.T) {
	candidates, err := parseResponse("[]")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(candidates) != 0 {
		t.Fatalf("expected no candidates, got %d", len(candidates))
	}
}

type queueResponse struct {
	response string
	err      error
}

type queueGenerator struct {
	queue []queueResponse
	calls int
}

func (q *queueGenerator) GenerateContent(context.Context, string) (string, error) {
	q.calls++
	if len(q.queue) == 0 {
		return "", errors.New("unexpected call")
	}
	next := q.queue[0]
	q.queue = q.queue[1:]
	return next.response, next.err
}

func stubWait(t *testing.T) {
	t.Helper()
	original := wait
	wait = func(context.Context, time.Duration) error { return nil }
	t.Cleanup(func() { wait = original })
}

func TestGetMatchesRetriesOnTemporaryError(t *testing.T) {
	stubWait(t)

	stub := &queueGenerator{queue: []queueResponse{
		{err: genai.APIError{Code: http.StatusInternalServerError, Status: "INTERNAL"}},
		{response: `[{"name": "Ann", "confidence": 0.7}]`},
	}}
	src := NewMatchSource(stub, zap.NewNop(), 0)

	matches, err := src.GetMatches(context.Background(), prospects.MatchRequest{ProspectID: "p1"})
	if err != nil {
		t.Fatalf("expected retry to recover, got %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(matches))
	}
	if stub.calls != 2 {
		t.Fatalf("expected 2 calls, got %d", stub.calls)
	}
}

func TestGetMatchesStopsAfterRetriesExhausted(t *testing.T) {
	stubWait(t)

	tempErr := genai.APIError{Code: http.StatusTooManyRequests, Status: "RESOURCE_EXHAUSTED"}
	stub := &queueGenerator{queue: []queueResponse{
		{err: tempErr}, {err: tempErr}, {err: tempErr},
	}}
	src := NewMatchSource(stub, zap.NewNop(), 0)

	_, err := src.GetMatches(context.Background(), prospects.MatchRequest{ProspectID: "p1"})
	if err == nil {
		t.Fatal("expected error after retries exhausted")
	}
	if stub.calls != 3 {
		t.Fatalf("expected 3 calls, got %d", stub.calls)
	}
}

func TestGetMatchesDoesNotRetryPermanentError(t *testing.T) {
	stubWait(t)

	stub := &queueGenerator{queue: []queueResponse{
		{err: genai.APIError{Code: http.StatusBadRequest, Status: "INVALID_ARGUMENT"}},
	}}
	src := NewMatchSource(stub, zap.NewNop(), 0)

	_, err := src.GetMatches(context.Background(), prospects.MatchRequest{ProspectID: "p1"})
	if err == nil {
		t.Fatal("expected error")
	}
	if stub.calls != 1 {
		t.Fatalf("expected a single call, got %d", stub.calls)
	}
}

func TestGetBulkMatchesWrapsFailures(t *testing.T) {
	stub := &stubGenerator{err: errors.New("quota exceeded")}
	src := NewMatchSource(stub, zap.NewNop(), 0)

	reqs := []prospects.MatchRequest{{ProspectID: "p1", Company: "Acme", JobTitle: "CTO"}}

	_, err := src.GetBulkMatches(context.Background(), reqs)
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "p1") {
		t.Fatalf("expected prospect id in error, got %v", err)
	}
}

func TestGetBulkMatchesOmitsEmptyResults(t *testing.T) {
	stub := &stubGenerator{response: "[]"}
	src := NewMatchSource(stub, zap.NewNop(), 0)

	reqs := []prospects.MatchRequest{
		{ProspectID: "p1", Company: "Acme", JobTitle: "CTO"},
		{ProspectID: "p2", Company: "Globex", JobTitle: "CTO"},
	}

	result, err := src.GetBulkMatches(context.Background(), reqs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result) != 0 {
		t.Fatalf("expected empty map, got %v", result)
	}
	if stub.calls != 2 {
		t.Fatalf("expected one generation per prospect, got %d", stub.calls)
	}
}
