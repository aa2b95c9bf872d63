package search

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
)

const (
	duckDuckGoHTMLURL = "https://html.duckduckgo.com/html/"
	ddgRedirectPrefix = "//duckduckgo.com/l/?uddg="
	maxResultsPage    = 1 << 20
)

// Hit is one raw result returned by a search provider.
type Hit struct {
	Title   string
	URL     string
	Snippet string
}

// Provider runs a single web search.
type Provider interface {
	Search(ctx context.Context, query string, limit int) ([]Hit, error)
}

// DuckDuckGo scrapes the keyless HTML endpoint.
type DuckDuckGo struct {
	baseURL    string
	httpClient *http.Client
}

func NewDuckDuckGo() *DuckDuckGo {
	return NewDuckDuckGoWithBaseURL(duckDuckGoHTMLURL)
}

// NewDuckDuckGoWithBaseURL points the provider at an alternate endpoint,
// used in tests.
func NewDuckDuckGoWithBaseURL(baseURL string) *DuckDuckGo {
	return &DuckDuckGo{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

func (d *DuckDuckGo) Search(ctx context.Context, query string, limit int) ([]Hit, error) {
	u := d.baseURL + "?q=" + url.QueryEscape(query)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("creating search request: %w", err)
	}
	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search provider returned HTTP %d", resp.StatusCode)
	}

	doc, err := html.Parse(io.LimitReader(resp.Body, maxResultsPage))
	if err != nil {
		return nil, fmt.Errorf("parsing search results: %w", err)
	}
	return parseDuckDuckGo(doc, limit), nil
}

func parseDuckDuckGo(doc *html.Node, limit int) []Hit {
	var hits []Hit
	walk(doc, func(n *html.Node) bool {
		if len(hits) >= limit {
			return false
		}
		if !isElement(n, "div") {
			return true
		}
		class := attr(n, "class")
		if !strings.Contains(class, "result") || !strings.Contains(class, "results_links") {
			return true
		}
		if h := extractHit(n); h.URL != "" && h.Title != "" {
			hits = append(hits, h)
		}
		return false
	})
	return hits
}

func extractHit(n *html.Node) Hit {
	var h Hit
	walk(n, func(c *html.Node) bool {
		if c.Type != html.ElementNode {
			return true
		}
		class := attr(c, "class")
		switch {
		case c.Data == "a" && strings.Contains(class, "result__a"):
			h.URL = attr(c, "href")
			h.Title = textContent(c)
			return false
		case strings.Contains(class, "result__snippet"):
			h.Snippet = textContent(c)
			return false
		}
		return true
	})

	if strings.HasPrefix(h.URL, ddgRedirectPrefix) {
		target := strings.TrimPrefix(h.URL, ddgRedirectPrefix)
		if i := strings.IndexByte(target, '&'); i >= 0 {
			target = target[:i]
		}
		if decoded, err := url.QueryUnescape(target); err == nil {
			h.URL = decoded
		}
	}
	return h
}
