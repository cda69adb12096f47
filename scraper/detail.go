package scraper

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/aman12122/job-crawler/config"
)

// content containers tried in order; the first non-empty match wins.
var detailSelectors = []string{"#content", "#app_body", "main", "article", "body"}

var blankLines = regexp.MustCompile(`\n{3,}`)

// DetailFetcher retrieves a posting's detail page and reduces it to clean
// text sized for the classifier. Oversized descriptions are truncated, never
// rejected, so cheap signal at the top of the page is kept.
type DetailFetcher struct {
	fetcher  fetcher
	maxChars int
}

func NewDetailFetcher(client *http.Client, cfg config.CrawlerConfig) *DetailFetcher {
	return &DetailFetcher{
		fetcher: fetcher{
			client:    client,
			userAgent: cfg.UserAgent,
			delay:     cfg.RequestDelay,
		},
		maxChars: cfg.DescriptionMaxChars,
	}
}

func (d *DetailFetcher) FetchDetail(ctx context.Context, url string) (string, error) {
	if url == "" {
		return "", errors.New("stub has no detail URL")
	}

	body, err := d.fetcher.get(ctx, url)
	if err != nil {
		return "", err
	}

	text, err := ExtractText(body)
	if err != nil {
		return "", err
	}
	return Truncate(text, d.maxChars), nil
}

// ExtractText strips an HTML document down to readable plain text.
func ExtractText(body []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", err
	}

	doc.Find("script, style, noscript, nav, header, footer, iframe").Remove()

	for _, sel := range detailSelectors {
		node := doc.Find(sel).First()
		if node.Length() == 0 {
			continue
		}
		if text := cleanText(node.Text()); text != "" {
			return text, nil
		}
	}
	return cleanText(doc.Text()), nil
}

func cleanText(raw string) string {
	lines := strings.Split(raw, "\n")
	for i, line := range lines {
		lines[i] = strings.Join(strings.Fields(line), " ")
	}
	text := strings.Join(lines, "\n")
	text = blankLines.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// Truncate caps text at max runes without splitting a multi-byte character.
func Truncate(text string, max int) string {
	if max <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max])
}
