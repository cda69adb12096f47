package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/aman12122/job-crawler/models"
)

const leverPageSize = 100

// leverScraper paginates a Lever-style postings API with an opaque
// continuation token. Absence of the token ends pagination; a repeated token
// trips the loop guard.
type leverScraper struct {
	company  models.Company
	fetcher  fetcher
	pageSize int
	guard    *LoopGuard
}

func newLeverScraper(company models.Company, f fetcher) *leverScraper {
	return &leverScraper{
		company:  company,
		fetcher:  f,
		pageSize: leverPageSize,
		guard:    NewLoopGuard(),
	}
}

type leverResponse struct {
	Postings []leverPosting `json:"postings"`
	Next     string         `json:"next"`
	HasNext  bool           `json:"hasNext"`
}

type leverPosting struct {
	ID         string `json:"id"`
	Text       string `json:"text"`
	HostedURL  string `json:"hostedUrl"`
	Categories struct {
		Location   string `json:"location"`
		Team       string `json:"team"`
		Commitment string `json:"commitment"`
	} `json:"categories"`
}

func (s *leverScraper) FetchPage(ctx context.Context, state PageState) (*Page, error) {
	u, err := url.Parse(s.company.CareersURL)
	if err != nil {
		return nil, fmt.Errorf("careers url: %w", err)
	}
	q := u.Query()
	q.Set("mode", "json")
	q.Set("limit", strconv.Itoa(s.pageSize))
	if state.Token != "" {
		q.Set("offset", state.Token)
	}
	u.RawQuery = q.Encode()

	body, err := s.fetcher.get(ctx, u.String())
	if err != nil {
		return nil, err
	}

	stubs, nextToken, err := parseLeverPostings(body)
	if err != nil {
		return nil, &ParseError{Raw: body, Err: err}
	}

	info := PageInfo{Count: len(stubs), PageSize: s.pageSize, NextToken: nextToken}
	next, hasMore := Advance(models.PaginationToken, state, info, s.guard)
	return &Page{Stubs: stubs, Next: next, HasMore: hasMore}, nil
}

func (s *leverScraper) LoopDetected() bool { return s.guard.Tripped() }

func parseLeverPostings(body []byte) ([]models.JobStub, string, error) {
	// Token-paged deployments wrap postings in an object carrying "next";
	// older ones return a bare array, which means a single page.
	var wrapped leverResponse
	if err := json.Unmarshal(body, &wrapped); err != nil {
		var bare []leverPosting
		if err2 := json.Unmarshal(body, &bare); err2 != nil {
			return nil, "", err
		}
		wrapped.Postings = bare
	}

	var stubs []models.JobStub
	for _, p := range wrapped.Postings {
		if p.ID == "" || p.Text == "" {
			return nil, "", fmt.Errorf("posting entry missing id or text")
		}
		stubs = append(stubs, models.JobStub{
			ExternalID:     p.ID,
			Title:          p.Text,
			URL:            p.HostedURL,
			Location:       p.Categories.Location,
			Department:     p.Categories.Team,
			EmploymentType: p.Categories.Commitment,
		})
	}

	// hasNext false means stop even when a token is still present.
	token := wrapped.Next
	if !wrapped.HasNext {
		token = ""
	}
	return stubs, token, nil
}
