// Package search implements the web search collaborator used by the
// research node. Results come from the DuckDuckGo HTML endpoint, which
// needs no API key.
package search

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/scry-dev/scry/internal/node"
)

const (
	duckEndpoint   = "https://html.duckduckgo.com/html/"
	defaultTimeout = 15 * time.Second
	maxResults     = 5
	userAgent      = "Mozilla/5.0 (compatible; scry/1.0)"
)

// DuckDuckGo scrapes the HTML search endpoint. The zero value is usable.
type DuckDuckGo struct {
	// Client overrides the HTTP client, mainly for tests.
	Client *http.Client
	// Endpoint overrides the search URL, mainly for tests.
	Endpoint string
}

func (d *DuckDuckGo) client() *http.Client {
	if d.Client != nil {
		return d.Client
	}
	return &http.Client{Timeout: defaultTimeout}
}

func (d *DuckDuckGo) endpoint() string {
	if d.Endpoint != "" {
		return d.Endpoint
	}
	return duckEndpoint
}

// Search runs one query and returns up to five results.
func (d *DuckDuckGo) Search(ctx context.Context, query string) ([]node.SearchResult, error) {
	form := url.Values{"q": {query}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint(), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", userAgent)

	resp, err := d.client().Do(req)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search %q: status %d", query, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse results: %w", err)
	}
	return parseResults(doc), nil
}

// parseResults extracts result entries from the DuckDuckGo HTML layout.
// Each hit is a div.result with an a.result__a title link and a
// .result__snippet body.
func parseResults(doc *goquery.Document) []node.SearchResult {
	var results []node.SearchResult
	doc.Find("div.result").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		title := s.Find("a.result__a")
		href, _ := title.Attr("href")
		r := node.SearchResult{
			Title:   strings.TrimSpace(title.Text()),
			Snippet: strings.TrimSpace(s.Find(".result__snippet").Text()),
			URL:     cleanURL(href),
		}
		if r.Title == "" && r.Snippet == "" {
			return true
		}
		results = append(results, r)
		return len(results) < maxResults
	})
	return results
}

// cleanURL unwraps DuckDuckGo's redirect links (//duckduckgo.com/l/?uddg=...)
// to the target URL.
func cleanURL(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if strings.HasSuffix(u.Host, "duckduckgo.com") || (u.Host == "" && strings.HasPrefix(u.Path, "/l/")) {
		if target := u.Query().Get("uddg"); target != "" {
			return target
		}
	}
	return href
}
