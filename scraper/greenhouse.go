package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/aman12122/job-crawler/models"
)

const greenhousePageSize = 100

// greenhouseScraper paginates a Greenhouse-style JSON board with
// per_page/offset parameters. A partial page ends pagination.
type greenhouseScraper struct {
	company  models.Company
	fetcher  fetcher
	pageSize int
	guard    *LoopGuard
}

func newGreenhouseScraper(company models.Company, f fetcher) *greenhouseScraper {
	size := greenhousePageSize
	if v, ok := company.CustomConfig["page_size"]; ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			size = n
		}
	}
	return &greenhouseScraper{
		company:  company,
		fetcher:  f,
		pageSize: size,
		guard:    NewLoopGuard(),
	}
}

type greenhouseResponse struct {
	Jobs []greenhouseJob `json:"jobs"`
	Meta struct {
		Total int `json:"total"`
	} `json:"meta"`
}

type greenhouseJob struct {
	ID          json.Number `json:"id"`
	Title       string      `json:"title"`
	AbsoluteURL string      `json:"absolute_url"`
	Location    struct {
		Name string `json:"name"`
	} `json:"location"`
	Departments []struct {
		Name string `json:"name"`
	} `json:"departments"`
	Metadata []struct {
		Name  string `json:"name"`
		Value string `json:"value"`
	} `json:"metadata"`
}

func (s *greenhouseScraper) FetchPage(ctx context.Context, state PageState) (*Page, error) {
	u, err := url.Parse(s.company.CareersURL)
	if err != nil {
		return nil, fmt.Errorf("careers url: %w", err)
	}
	q := u.Query()
	q.Set("per_page", strconv.Itoa(s.pageSize))
	q.Set("offset", strconv.Itoa(state.Offset))
	u.RawQuery = q.Encode()

	body, err := s.fetcher.get(ctx, u.String())
	if err != nil {
		return nil, err
	}

	stubs, err := parseGreenhouseJobs(body)
	if err != nil {
		return nil, &ParseError{Raw: body, Err: err}
	}

	info := PageInfo{Count: len(stubs), PageSize: s.pageSize}
	next, hasMore := Advance(models.PaginationOffset, state, info, s.guard)
	return &Page{Stubs: stubs, Next: next, HasMore: hasMore}, nil
}

func (s *greenhouseScraper) LoopDetected() bool { return s.guard.Tripped() }

func parseGreenhouseJobs(body []byte) ([]models.JobStub, error) {
	// The board endpoint wraps jobs in an object; some deployments return a
	// bare array. Tolerate both.
	var wrapped greenhouseResponse
	if err := json.Unmarshal(body, &wrapped); err != nil {
		var bare []greenhouseJob
		if err2 := json.Unmarshal(body, &bare); err2 != nil {
			return nil, err
		}
		wrapped.Jobs = bare
	}

	var stubs []models.JobStub
	for _, j := range wrapped.Jobs {
		if j.ID.String() == "" || j.Title == "" {
			return nil, fmt.Errorf("job entry missing id or title")
		}
		stub := models.JobStub{
			ExternalID: j.ID.String(),
			Title:      j.Title,
			URL:        j.AbsoluteURL,
			Location:   j.Location.Name,
		}
		if len(j.Departments) > 0 {
			stub.Department = j.Departments[0].Name
		}
		for _, m := range j.Metadata {
			if m.Name == "Employment Type" {
				stub.EmploymentType = m.Value
			}
		}
		stubs = append(stubs, stub)
	}
	return stubs, nil
}
