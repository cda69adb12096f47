package ai

import (
	"errors"
	"strings"
	"testing"
)

func TestDecodeVerdict_Valid(t *testing.T) {
	raw := `{"is_entry_level": true, "confidence": 85, "min_years_experience": 0, "reasoning": "New grad role"}`

	v, err := DecodeVerdict(raw)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if !v.IsEntryLevel {
		t.Fatal("expected is_entry_level true")
	}
	if v.Confidence != 85 {
		t.Fatalf("expected confidence 85, got %d", v.Confidence)
	}
	if v.MinYears != 0 {
		t.Fatalf("expected min years 0, got %d", v.MinYears)
	}
	if v.Reasoning != "New grad role" {
		t.Fatalf("unexpected reasoning %q", v.Reasoning)
	}
}

func TestDecodeVerdict_MarkdownFences(t *testing.T) {
	raw := "```json\n{\"is_entry_level\": false, \"confidence\": 90, \"min_years_experience\": 5, \"reasoning\": \"5+ required\"}\n```"

	v, err := DecodeVerdict(raw)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if v.IsEntryLevel || v.MinYears != 5 {
		t.Fatalf("unexpected verdict %+v", v)
	}
}

func TestDecodeVerdict_MissingField(t *testing.T) {
	cases := []string{
		`{"confidence": 85, "min_years_experience": 0, "reasoning": "x"}`,
		`{"is_entry_level": true, "min_years_experience": 0, "reasoning": "x"}`,
		`{"is_entry_level": true, "confidence": 85, "reasoning": "x"}`,
		`{"is_entry_level": true, "confidence": 85, "min_years_experience": 0}`,
	}
	for _, raw := range cases {
		if _, err := DecodeVerdict(raw); !errors.Is(err, ErrMalformedResponse) {
			t.Errorf("expected ErrMalformedResponse for %s, got %v", raw, err)
		}
	}
}

func TestDecodeVerdict_OutOfRange(t *testing.T) {
	cases := []string{
		`{"is_entry_level": true, "confidence": 150, "min_years_experience": 0, "reasoning": "x"}`,
		`{"is_entry_level": true, "confidence": -1, "min_years_experience": 0, "reasoning": "x"}`,
		`{"is_entry_level": true, "confidence": 85, "min_years_experience": -2, "reasoning": "x"}`,
	}
	for _, raw := range cases {
		if _, err := DecodeVerdict(raw); !errors.Is(err, ErrMalformedResponse) {
			t.Errorf("expected ErrMalformedResponse for %s, got %v", raw, err)
		}
	}
}

func TestDecodeVerdict_NotJSON(t *testing.T) {
	if _, err := DecodeVerdict("I think this job is entry level."); !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse, got %v", err)
	}
}

func TestDecodeVerdict_TruncatesReasoning(t *testing.T) {
	long := strings.Repeat("a", 500)
	raw := `{"is_entry_level": true, "confidence": 70, "min_years_experience": 1, "reasoning": "` + long + `"}`

	v, err := DecodeVerdict(raw)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(v.Reasoning) != maxReasoningLen {
		t.Fatalf("expected reasoning capped at %d, got %d", maxReasoningLen, len(v.Reasoning))
	}
}

func TestBuildPrompt_ContainsPolicyAndInput(t *testing.T) {
	prompt := BuildPrompt("Software Engineer", "Build things with Go.")

	for _, want := range []string{
		"Software Engineer",
		"Build things with Go.",
		`"Preferred" skills are NOT requirements`,
		"Masters/PhD",
		"Internship",
		"is_entry_level",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestIsQuotaError(t *testing.T) {
	quota := []error{
		errors.New("googleapi: Error 429: Resource has been exhausted"),
		errors.New("quota exceeded for metric"),
		errors.New("rate limit reached"),
	}
	for _, err := range quota {
		if !isQuotaError(err) {
			t.Errorf("expected quota classification for %v", err)
		}
	}
	if isQuotaError(errors.New("connection refused")) {
		t.Error("transport error misclassified as quota")
	}
}
