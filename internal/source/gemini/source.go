package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	_ "embed"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/prospectline/prospect-matcher/internal/prospects"
	"github.com/prospectline/prospect-matcher/internal/utils"
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
}

// MatchSource asks Gemini to suggest likely hiring-manager contacts for a
// prospect. It satisfies the source.Source interface.
type MatchSource struct {
	generator contentGenerator
	logger    *zap.Logger
	maxLogLen int
}

//go:embed prompt.md
var promptTemplate string

const (
	defaultMaxLogLength = 200

	maxAttempts = 3
	retryDelay  = 2 * time.Second
)

var wait = utils.WaitFor

func NewMatchSource(generator contentGenerator, logger *zap.Logger, maxLogLength int) *MatchSource {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}

	return &MatchSource{
		generator: generator,
		logger:    logger,
		maxLogLen: maxLogLength,
	}
}

func (s *MatchSource) GetMatches(ctx context.Context, req prospects.MatchRequest) ([]prospects.Candidate, error) {
	requestJSON, err := json.MarshalIndent(req, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal request payload: %w", err)
	}

	prompt := buildPrompt(string(requestJSON))

	s.logger.Debug("gemini generate content request",
		zap.String("prospect_id", req.ProspectID),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, s.maxLogLen)),
	)

	raw, err := s.generate(ctx, req.ProspectID, prompt)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("gemini generate content response",
		zap.String("prospect_id", req.ProspectID),
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, s.maxLogLen)),
	)

	return parseResponse(raw)
}

// GetBulkMatches evaluates prospects one by one; the model cannot batch
// reliably, so sub-batching happens here rather than at the coordinator.
func (s *MatchSource) GetBulkMatches(ctx context.Context, reqs []prospects.MatchRequest) (map[string][]prospects.Candidate, error) {
	result := make(map[string][]prospects.Candidate, len(reqs))
	for _, req := range reqs {
		matches, err := s.GetMatches(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("prospect %s: %w", req.ProspectID, err)
		}
		if len(matches) > 0 {
			result[req.ProspectID] = matches
		}
	}
	return result, nil
}

// generate retries transient API failures with a linear backoff. Anything
// else surfaces immediately.
func (s *MatchSource) generate(ctx context.Context, prospectID, prompt string) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		raw, err := s.generator.GenerateContent(ctx, prompt)
		if err == nil {
			return raw, nil
		}
		lastErr = err

		if !temporary(err) || attempt == maxAttempts {
			break
		}

		s.logger.Debug("retrying gemini request",
			zap.String("prospect_id", prospectID),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)

		if werr := wait(ctx, time.Duration(attempt)*retryDelay); werr != nil {
			return "", werr
		}
	}
	return "", lastErr
}

func temporary(err error) bool {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= http.StatusInternalServerError
}

func buildPrompt(requestJSON string) string {
	template := promptTemplate
	if strings.TrimSpace(template) == "" {
		template = "Prospect:\n{{REQUEST_JSON}}\n\nJSON Response:"
	}
	return strings.ReplaceAll(template, "{{REQUEST_JSON}}", requestJSON)
}

func parseResponse(raw string) ([]prospects.Candidate, error) {
	cleaned := extractJSON(raw)

	var data []map[string]any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return nil, fmt.Errorf("parse gemini response: %w", err)
	}

	candidates := make([]prospects.Candidate, 0, len(data))
	for _, item := range data {
		confidence := coerceFloat(item["confidence"])
		if math.IsNaN(confidence) || confidence < 0 {
			confidence = 0
		}
		if confidence > 1 {
			confidence = 1
		}

		candidates = append(candidates, prospects.Candidate{
			Name:        coerceString(item["name"]),
			Title:       coerceString(item["title"]),
			LinkedinURL: coerceString(item["linkedin_url"]),
			Confidence:  confidence,
			Reason:      coerceString(item["reason"]),
		})
	}

	return candidates, nil
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}

func coerceFloat(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case int:
		return float64(val)
	case string:
		trimmed := strings.TrimSpace(val)
		if trimmed == "" {
			return math.NaN()
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

func coerceString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case fmt.Stringer:
		return strings.TrimSpace(val.String())
	default:
		if v == nil {
			return ""
		}
		bytes, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(bytes)
	}
}
