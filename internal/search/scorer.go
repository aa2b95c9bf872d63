package search

import (
	"net/url"
	"strings"
)

var academicMarkers = []string{
	"doi.org",
	"scholar.google",
	"researchgate",
	"academia.edu",
	"arxiv.org",
	".edu",
	".ac.",
	"ncbi.nlm.nih.gov",
	"semanticscholar.org",
}

// Score counts query words shared with the title (weighted 2) and the
// summary (weighted 1). Words are lower-cased and split on whitespace.
func Score(query, title, summary string) int {
	q := wordSet(query)
	return 2*overlap(q, wordSet(title)) + overlap(q, wordSet(summary))
}

// IsAcademic reports whether rawURL contains one of the known scholarly
// domain markers.
func IsAcademic(rawURL string) bool {
	u := strings.ToLower(rawURL)
	for _, m := range academicMarkers {
		if strings.Contains(u, m) {
			return true
		}
	}
	return false
}

// Domain returns the host of rawURL without a leading "www.", or "" when
// the URL has no host.
func Domain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

func wordSet(s string) map[string]struct{} {
	fields := strings.Fields(strings.ToLower(s))
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

func overlap(a, b map[string]struct{}) int {
	if len(b) < len(a) {
		a, b = b, a
	}
	n := 0
	for w := range a {
		if _, ok := b[w]; ok {
			n++
		}
	}
	return n
}
