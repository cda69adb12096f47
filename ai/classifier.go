package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"

	"github.com/aman12122/job-crawler/config"
	"github.com/aman12122/job-crawler/models"
)

var (
	// ErrQuotaExceeded means the remote service denied the request on quota
	// grounds even though our local limiter allowed it.
	ErrQuotaExceeded = errors.New("classifier quota exceeded")
	// ErrService covers transport failures and remote errors.
	ErrService = errors.New("classifier service error")
	// ErrMalformedResponse means the response did not decode into the verdict
	// shape. It propagates as a failure, never as a silent "ineligible".
	ErrMalformedResponse = errors.New("malformed classifier response")
)

const maxReasoningLen = 200

// Classifier produces an eligibility verdict for a posting description.
type Classifier interface {
	Classify(ctx context.Context, title, description string) (*models.Verdict, error)
}

// GeminiClassifier calls Gemini through langchaingo. Requests are serialized
// to one in flight, matching the effective per-key limit of the service;
// parallel submission causes quota violations, not speedups.
type GeminiClassifier struct {
	mu      sync.Mutex
	llm     llms.Model
	limiter *Limiter
}

func NewGeminiClassifier(ctx context.Context, cfg config.GeminiConfig, limiter *Limiter) (*GeminiClassifier, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("GEMINI_API_KEY is required")
	}
	llm, err := googleai.New(ctx,
		googleai.WithAPIKey(cfg.APIKey),
		googleai.WithDefaultModel(cfg.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiClassifier{llm: llm, limiter: limiter}, nil
}

func (c *GeminiClassifier) Classify(ctx context.Context, title, description string) (*models.Verdict, error) {
	if strings.TrimSpace(description) == "" {
		return nil, fmt.Errorf("%w: empty description", ErrService)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	resp, err := llms.GenerateFromSinglePrompt(ctx, c.llm, BuildPrompt(title, description), llms.WithJSONMode())
	if err != nil {
		if isQuotaError(err) {
			return nil, fmt.Errorf("%w: %v", ErrQuotaExceeded, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrService, err)
	}

	return DecodeVerdict(resp)
}

// BuildPrompt encodes the fixed evaluation policy: 0-2/0-3 years qualifies,
// "preferred" qualifications are ignored, "required" ones (including advanced
// degrees) drive rejection, internships qualify.
func BuildPrompt(title, description string) string {
	var b strings.Builder
	b.WriteString("You are a strict recruiter filtering jobs for a new graduate (0-2 years experience).\n\n")
	b.WriteString("Analyze this job posting:\n")
	b.WriteString("Title: " + title + "\n\n")
	b.WriteString("--- DESCRIPTION START ---\n")
	b.WriteString(description)
	b.WriteString("\n--- DESCRIPTION END ---\n\n")
	b.WriteString(`Task: determine if this job suits an entry-level candidate (0-2 years).

Rules:
1. "Preferred" skills are NOT requirements. Ignore "3+ years preferred" if 0 years are required.
2. "3+ years required" -> REJECT (is_entry_level: false).
3. "0-3 years" or "1-3 years" -> ACCEPT (is_entry_level: true).
4. Masters/PhD requirements -> REJECT, unless "or equivalent experience" is offered.
5. Internship -> ACCEPT.

Respond with JSON only:
{
  "is_entry_level": boolean,
  "confidence": integer 0-100,
  "min_years_experience": integer (0 if unstated),
  "reasoning": "string, max 100 characters"
}`)
	return b.String()
}

type verdictPayload struct {
	IsEntryLevel *bool   `json:"is_entry_level"`
	Confidence   *int    `json:"confidence"`
	MinYears     *int    `json:"min_years_experience"`
	Reasoning    *string `json:"reasoning"`
}

// DecodeVerdict strictly decodes a model response. Missing fields or
// out-of-range values are ErrMalformedResponse; ambiguity must surface as a
// failure, never as a false negative.
func DecodeVerdict(raw string) (*models.Verdict, error) {
	cleaned := stripFences(raw)

	var payload verdictPayload
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if payload.IsEntryLevel == nil || payload.Confidence == nil || payload.MinYears == nil || payload.Reasoning == nil {
		return nil, fmt.Errorf("%w: missing required field", ErrMalformedResponse)
	}
	if *payload.Confidence < 0 || *payload.Confidence > 100 {
		return nil, fmt.Errorf("%w: confidence %d out of range", ErrMalformedResponse, *payload.Confidence)
	}
	if *payload.MinYears < 0 {
		return nil, fmt.Errorf("%w: negative min_years_experience", ErrMalformedResponse)
	}

	reasoning := *payload.Reasoning
	if len(reasoning) > maxReasoningLen {
		reasoning = reasoning[:maxReasoningLen]
	}

	return &models.Verdict{
		IsEntryLevel: *payload.IsEntryLevel,
		Confidence:   *payload.Confidence,
		MinYears:     *payload.MinYears,
		Reasoning:    reasoning,
	}, nil
}

// stripFences removes a markdown code fence if the model wrapped its JSON in
// one despite JSON mode.
func stripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}

func isQuotaError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "quota") ||
		strings.Contains(msg, "resource exhausted") ||
		strings.Contains(msg, "rate limit")
}
