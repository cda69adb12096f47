package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aman12122/job-crawler/models"
)

func TestLoadCompanySeeds(t *testing.T) {
	dir := t.TempDir()

	seed := `name: Acme
careers_url: https://boards.greenhouse.io/acme
strategy: greenhouse
pagination_type: offset
is_active: true
custom_config:
  page_size: "50"
`
	if err := os.WriteFile(filepath.Join(dir, "acme.yaml"), []byte(seed), 0o644); err != nil {
		t.Fatalf("write seed: %v", err)
	}
	// Non-YAML files are ignored.
	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("notes"), 0o644); err != nil {
		t.Fatalf("write readme: %v", err)
	}

	cfg := &Config{CompaniesDir: dir}
	companies, err := cfg.LoadCompanySeeds()
	if err != nil {
		t.Fatalf("load seeds: %v", err)
	}
	if len(companies) != 1 {
		t.Fatalf("expected 1 company, got %d", len(companies))
	}

	c := companies[0]
	if c.Name != "Acme" {
		t.Fatalf("unexpected name %s", c.Name)
	}
	if c.Strategy != models.StrategyGreenhouse || c.Pagination != models.PaginationOffset {
		t.Fatalf("unexpected strategy/pagination: %s/%s", c.Strategy, c.Pagination)
	}
	if c.CustomConfig["page_size"] != "50" {
		t.Fatalf("custom config not parsed: %v", c.CustomConfig)
	}
}

func TestLoadCompanySeeds_DefaultsAndValidation(t *testing.T) {
	dir := t.TempDir()

	minimal := `name: Minimal
careers_url: https://jobs.example.com
`
	if err := os.WriteFile(filepath.Join(dir, "minimal.yml"), []byte(minimal), 0o644); err != nil {
		t.Fatalf("write seed: %v", err)
	}

	cfg := &Config{CompaniesDir: dir}
	companies, err := cfg.LoadCompanySeeds()
	if err != nil {
		t.Fatalf("load seeds: %v", err)
	}
	if companies[0].Strategy != models.StrategyGreenhouse {
		t.Fatalf("expected default strategy, got %s", companies[0].Strategy)
	}

	// Missing careers_url is an error, not a silent skip.
	bad := `name: Broken`
	if err := os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte(bad), 0o644); err != nil {
		t.Fatalf("write seed: %v", err)
	}
	if _, err := cfg.LoadCompanySeeds(); err == nil {
		t.Fatal("expected validation error for seed without careers_url")
	}
}

func TestLoadCompanySeeds_MissingDir(t *testing.T) {
	cfg := &Config{CompaniesDir: filepath.Join(t.TempDir(), "nope")}
	companies, err := cfg.LoadCompanySeeds()
	if err != nil {
		t.Fatalf("missing dir should not error: %v", err)
	}
	if companies != nil {
		t.Fatalf("expected no companies, got %d", len(companies))
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "test-key")
	t.Setenv("AI_REQUESTS_PER_MINUTE", "30")
	t.Setenv("REQUEST_DELAY", "250ms")
	t.Setenv("PREFILTER_REJECT_TERMS", "senior, principal")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Gemini.APIKey != "test-key" {
		t.Fatalf("api key not read: %q", cfg.Gemini.APIKey)
	}
	if cfg.Gemini.RequestsPerWindow != 30 {
		t.Fatalf("expected 30 requests per window, got %d", cfg.Gemini.RequestsPerWindow)
	}
	if cfg.Crawler.RequestDelay != 250*time.Millisecond {
		t.Fatalf("expected 250ms delay, got %s", cfg.Crawler.RequestDelay)
	}
	if len(cfg.Prefilter.RejectTerms) != 2 || cfg.Prefilter.RejectTerms[1] != "principal" {
		t.Fatalf("reject terms not parsed: %v", cfg.Prefilter.RejectTerms)
	}
}
