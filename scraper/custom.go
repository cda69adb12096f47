package scraper

import (
	"bytes"
	"context"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/aman12122/job-crawler/models"
)

// customScraper crawls plain-HTML career pages by following a "next" link.
// Selectors come from the company's custom config:
//
//	job_selector      container for one listing        (default ".job-listing")
//	title_selector    title element within a listing   (default "a")
//	link_selector     anchor within a listing          (default "a")
//	location_selector optional location element
//	next_selector     the next-page anchor             (default "a[rel=next]")
//
// The external id is the listing URL path when the site assigns no id.
type customScraper struct {
	company models.Company
	fetcher fetcher
	guard   *LoopGuard

	jobSel      string
	titleSel    string
	linkSel     string
	locationSel string
	nextSel     string
}

func newCustomScraper(company models.Company, f fetcher) *customScraper {
	sel := func(key, def string) string {
		if v, ok := company.CustomConfig[key]; ok && v != "" {
			return v
		}
		return def
	}
	return &customScraper{
		company:     company,
		fetcher:     f,
		guard:       NewLoopGuard(),
		jobSel:      sel("job_selector", ".job-listing"),
		titleSel:    sel("title_selector", "a"),
		linkSel:     sel("link_selector", "a"),
		locationSel: sel("location_selector", ""),
		nextSel:     sel("next_selector", "a[rel=next]"),
	}
}

func (s *customScraper) FetchPage(ctx context.Context, state PageState) (*Page, error) {
	pageURL := state.NextURL
	if pageURL == "" {
		pageURL = s.company.CareersURL
	}

	body, err := s.fetcher.get(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	stubs, nextURL, err := s.parseListingPage(body, pageURL)
	if err != nil {
		return nil, &ParseError{Raw: body, Err: err}
	}

	info := PageInfo{Count: len(stubs), NextURL: nextURL}
	next, hasMore := Advance(models.PaginationLink, state, info, s.guard)
	return &Page{Stubs: stubs, Next: next, HasMore: hasMore}, nil
}

func (s *customScraper) LoopDetected() bool { return s.guard.Tripped() }

func (s *customScraper) parseListingPage(body []byte, pageURL string) ([]models.JobStub, string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, "", err
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, "", err
	}

	var stubs []models.JobStub
	doc.Find(s.jobSel).Each(func(_ int, item *goquery.Selection) {
		title := strings.TrimSpace(item.Find(s.titleSel).First().Text())
		href, _ := item.Find(s.linkSel).First().Attr("href")
		if title == "" || href == "" {
			return
		}

		abs := href
		if u, err := base.Parse(href); err == nil {
			abs = u.String()
		}

		stub := models.JobStub{
			ExternalID: externalIDFromURL(abs),
			Title:      title,
			URL:        abs,
		}
		if s.locationSel != "" {
			stub.Location = strings.TrimSpace(item.Find(s.locationSel).First().Text())
		}
		stubs = append(stubs, stub)
	})

	var nextURL string
	if href, ok := doc.Find(s.nextSel).First().Attr("href"); ok && href != "" {
		if u, err := base.Parse(href); err == nil {
			nextURL = u.String()
		}
	}

	return stubs, nextURL, nil
}

// externalIDFromURL derives a stable id from a listing URL. Query strings are
// dropped so tracking parameters don't split one posting into many.
func externalIDFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	id := strings.Trim(u.Path, "/")
	if id == "" {
		return u.Host
	}
	return id
}
