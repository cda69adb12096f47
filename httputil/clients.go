package httputil

import (
	"net/http"
	"time"
)

// Clients separates the client used against target career sites from the one
// used for infrastructure services, so their timeouts can differ.
type Clients struct {
	Scraping *http.Client // career-site listing and detail pages
	API      *http.Client // everything else
}

func NewClients(scrapeTimeout time.Duration) *Clients {
	if scrapeTimeout <= 0 {
		scrapeTimeout = 30 * time.Second
	}

	return &Clients{
		Scraping: &http.Client{
			Timeout: scrapeTimeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 8,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		API: &http.Client{Timeout: 30 * time.Second},
	}
}
