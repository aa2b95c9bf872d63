package search

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/net/html"
)

const (
	maxPageBytes    = 2 << 20
	maxTitleRunes   = 200
	maxSummaryRunes = 500
	maxContentRunes = 1000
	maxParagraphs   = 3

	browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
)

// PageExtract is the text pulled from one fetched page.
type PageExtract struct {
	Title   string
	Summary string
	Content string
}

// FetchError reports a page that could not be fetched or parsed.
type FetchError struct {
	URL    string
	Status int // 0 when no response was received
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: HTTP %d", e.URL, e.Status)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Fetcher downloads result pages and extracts their title, description and
// leading paragraphs.
type Fetcher struct {
	httpClient *http.Client
	timeout    time.Duration
}

func NewFetcher(timeout time.Duration) *Fetcher {
	return NewFetcherWithClient(&http.Client{}, timeout)
}

func NewFetcherWithClient(c *http.Client, timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Fetcher{httpClient: c, timeout: timeout}
}

// Fetch GETs rawURL once. fallbackTitle and fallbackSummary come from the
// search provider and are used when the page lacks a <title> or a meta
// description.
func (f *Fetcher) Fetch(ctx context.Context, rawURL, fallbackTitle, fallbackSummary string) (PageExtract, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return PageExtract{}, &FetchError{URL: rawURL, Err: err}
	}
	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return PageExtract{}, &FetchError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return PageExtract{}, &FetchError{URL: rawURL, Status: resp.StatusCode, Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}

	doc, err := html.Parse(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return PageExtract{}, &FetchError{URL: rawURL, Err: fmt.Errorf("parsing html: %w", err)}
	}

	return extractPage(doc, fallbackTitle, fallbackSummary), nil
}

func extractPage(doc *html.Node, fallbackTitle, fallbackSummary string) PageExtract {
	title := fallbackTitle
	if n := findFirst(doc, func(n *html.Node) bool { return isElement(n, "title") }); n != nil {
		if t := textContent(n); t != "" {
			title = t
		}
	}

	description := fallbackSummary
	if n := findFirst(doc, isMetaDescription); n != nil {
		description = attr(n, "content")
	}

	var paragraphs []string
	if main := mainContent(doc); main != nil {
		walk(main, func(n *html.Node) bool {
			if len(paragraphs) >= maxParagraphs {
				return false
			}
			if isElement(n, "p") {
				paragraphs = append(paragraphs, textContent(n))
				return false
			}
			return true
		})
	}

	content := description
	if len(paragraphs) > 0 {
		content = truncateRunes(strings.Join(paragraphs, " "), maxContentRunes)
	}

	return PageExtract{
		Title:   truncateRunes(title, maxTitleRunes),
		Summary: truncateRunes(description, maxSummaryRunes),
		Content: content,
	}
}

// mainContent returns the first <main>, else the first <article>, else the
// first div classed content, main or article.
func mainContent(doc *html.Node) *html.Node {
	if n := findFirst(doc, func(n *html.Node) bool { return isElement(n, "main") }); n != nil {
		return n
	}
	if n := findFirst(doc, func(n *html.Node) bool { return isElement(n, "article") }); n != nil {
		return n
	}
	return findFirst(doc, func(n *html.Node) bool {
		if !isElement(n, "div") {
			return false
		}
		for _, c := range strings.Fields(attr(n, "class")) {
			if c == "content" || c == "main" || c == "article" {
				return true
			}
		}
		return false
	})
}

func isMetaDescription(n *html.Node) bool {
	return isElement(n, "meta") && strings.EqualFold(attr(n, "name"), "description")
}

func isElement(n *html.Node, tag string) bool {
	return n.Type == html.ElementNode && n.Data == tag
}

// walk visits n and its descendants depth-first in document order. Returning
// false from visit skips the node's children.
func walk(n *html.Node, visit func(*html.Node) bool) {
	if !visit(n) {
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, visit)
	}
}

func findFirst(root *html.Node, match func(*html.Node) bool) *html.Node {
	var found *html.Node
	walk(root, func(n *html.Node) bool {
		if found != nil {
			return false
		}
		if match(n) {
			found = n
			return false
		}
		return true
	})
	return found
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// textContent concatenates the text beneath n, collapsing whitespace runs.
func textContent(n *html.Node) string {
	var sb strings.Builder
	walk(n, func(c *html.Node) bool {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
			sb.WriteByte(' ')
		}
		return true
	})
	return strings.Join(strings.Fields(sb.String()), " ")
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
