// Package scraper enumerates career-site listings page by page and fetches
// full posting pages for survivors of the pre-filter.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aman12122/job-crawler/config"
	"github.com/aman12122/job-crawler/models"
)

// ErrNoCareersURL means a company cannot be crawled at all; it fails the run.
var ErrNoCareersURL = errors.New("company has no careers URL")

// Page is the result of fetching one listing page.
type Page struct {
	Stubs   []models.JobStub
	Next    PageState
	HasMore bool
}

// Scraper fetches one listing page per call. Implementations apply the
// configured politeness delay before each outbound request.
type Scraper interface {
	FetchPage(ctx context.Context, state PageState) (*Page, error)
}

// ParseError carries the raw payload of a page that failed to parse so the
// pipeline can archive it for offline debugging. The page is skipped; stubs
// already collected survive.
type ParseError struct {
	Raw []byte
	Err error
}

func (e *ParseError) Error() string { return fmt.Sprintf("parse page: %v", e.Err) }
func (e *ParseError) Unwrap() error { return e.Err }

// New selects the scraper implementation for a company's configured strategy.
func New(company models.Company, client *http.Client, cfg config.CrawlerConfig) (Scraper, error) {
	if company.CareersURL == "" {
		return nil, ErrNoCareersURL
	}

	base := fetcher{
		client:    client,
		userAgent: cfg.UserAgent,
		delay:     cfg.RequestDelay,
	}

	switch company.Strategy {
	case models.StrategyLever:
		return newLeverScraper(company, base), nil
	case models.StrategyCustom:
		return newCustomScraper(company, base), nil
	default:
		return newGreenhouseScraper(company, base), nil
	}
}

// fetcher is the shared HTTP plumbing: politeness delay, headers, status
// checks. Exactly one outbound request per get call.
type fetcher struct {
	client    *http.Client
	userAgent string
	delay     time.Duration
}

func (f fetcher) get(ctx context.Context, url string) ([]byte, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "application/json, text/html;q=0.9, */*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("fetch %s: unexpected status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body %s: %w", url, err)
	}
	return body, nil
}
