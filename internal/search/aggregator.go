package search

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kalambet/lectern/internal/persona"
)

const contextHeader = "Relevant academic and research sources:\n\n"

// Result is one ranked search result. Content and RelevanceScore feed the
// prompt and the ranking only; they are never sent to API consumers.
type Result struct {
	Title          string `json:"title"`
	URL            string `json:"link"`
	Summary        string `json:"summary"`
	Content        string `json:"-"`
	IsAcademic     bool   `json:"is_academic"`
	RelevanceScore int    `json:"-"`
	Domain         string `json:"domain"`
}

// PageFetcher is satisfied by *Fetcher.
type PageFetcher interface {
	Fetch(ctx context.Context, rawURL, fallbackTitle, fallbackSummary string) (PageExtract, error)
}

type Options struct {
	PerVariantLimit int
	AcademicWeight  float64
	Concurrency     int
	CacheTTL        time.Duration // zero disables caching
}

func DefaultOptions() Options {
	return Options{
		PerVariantLimit: 4,
		AcademicWeight:  2,
		Concurrency:     4,
		CacheTTL:        10 * time.Minute,
	}
}

// Aggregator fans a query out over several academic-leaning variants,
// fetches each unique hit, and ranks what it could read.
type Aggregator struct {
	provider Provider
	fetcher  PageFetcher
	opts     Options
	cache    *cache.Cache
	logger   *zap.Logger
}

type cachedContext struct {
	text    string
	results []Result
}

func NewAggregator(p Provider, f PageFetcher, opts Options) *Aggregator {
	def := DefaultOptions()
	if opts.PerVariantLimit <= 0 {
		opts.PerVariantLimit = def.PerVariantLimit
	}
	if opts.AcademicWeight <= 0 {
		opts.AcademicWeight = def.AcademicWeight
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = def.Concurrency
	}
	a := &Aggregator{
		provider: p,
		fetcher:  f,
		opts:     opts,
		logger:   zap.L().Named("search"),
	}
	if opts.CacheTTL > 0 {
		a.cache = cache.New(opts.CacheTTL, 2*opts.CacheTTL)
	}
	return a
}

// Variants returns the query variants in priority order. The first variant
// to surface a URL owns it.
func Variants(query string, p persona.Persona) []string {
	return []string{
		query,
		query + " research papers",
		query + " " + p.Field + " latest research",
		query + " academic publications",
		p.Name + " " + query,
	}
}

// Aggregate returns the rendered context block and at most desired ranked
// results. Provider and fetch failures only shrink the result set; when
// nothing could be read both return values are empty.
func (a *Aggregator) Aggregate(ctx context.Context, query string, p persona.Persona, desired int) (string, []Result) {
	if desired <= 0 || strings.TrimSpace(query) == "" {
		return "", []Result{}
	}

	key := fmt.Sprintf("%s|%s|%s|%d", query, p.Field, p.Name, desired)
	if a.cache != nil {
		if v, ok := a.cache.Get(key); ok {
			c := v.(cachedContext)
			return c.text, append([]Result(nil), c.results...)
		}
	}

	hits, degraded := a.collectHits(ctx, Variants(query, p))
	fetched := a.fetchAll(ctx, hits)

	limit := desired * 3
	results := make([]Result, 0, limit)
	for _, r := range fetched {
		if r == nil {
			continue
		}
		r.RelevanceScore = Score(query, r.Title, r.Summary)
		results = append(results, *r)
		if len(results) >= limit {
			break
		}
	}

	Rank(results, a.opts.AcademicWeight)
	if len(results) > desired {
		results = results[:desired]
	}

	text := RenderContext(results)
	// A partial answer is served but never cached.
	if a.cache != nil && len(results) > 0 && !degraded && ctx.Err() == nil {
		a.cache.SetDefault(key, cachedContext{text: text, results: append([]Result(nil), results...)})
	}

	a.logger.Debug("search aggregated",
		zap.String("query", query),
		zap.Int("candidates", len(hits)),
		zap.Int("results", len(results)),
	)
	return text, results
}

// collectHits queries every variant concurrently and merges the hits in
// variant order, dropping empty and already-seen URLs. degraded reports
// whether any variant failed.
func (a *Aggregator) collectHits(ctx context.Context, variants []string) (merged []Hit, degraded bool) {
	perVariant := make([][]Hit, len(variants))
	failed := make([]bool, len(variants))

	var g errgroup.Group
	g.SetLimit(a.opts.Concurrency)
	for i, v := range variants {
		g.Go(func() error {
			hits, err := a.provider.Search(ctx, v, a.opts.PerVariantLimit)
			if err != nil {
				a.logger.Warn("search variant failed", zap.String("variant", v), zap.Error(err))
				failed[i] = true
				return nil
			}
			if len(hits) > a.opts.PerVariantLimit {
				hits = hits[:a.opts.PerVariantLimit]
			}
			perVariant[i] = hits
			return nil
		})
	}
	_ = g.Wait()

	seen := make(map[string]struct{})
	for i, hits := range perVariant {
		degraded = degraded || failed[i]
		for _, h := range hits {
			if h.URL == "" {
				continue
			}
			if _, dup := seen[h.URL]; dup {
				continue
			}
			seen[h.URL] = struct{}{}
			merged = append(merged, h)
		}
	}
	return merged, degraded
}

// fetchAll fetches every hit with bounded concurrency. Slot i holds hit i's
// result, or nil when the fetch failed.
func (a *Aggregator) fetchAll(ctx context.Context, hits []Hit) []*Result {
	out := make([]*Result, len(hits))

	var g errgroup.Group
	g.SetLimit(a.opts.Concurrency)
	for i, h := range hits {
		g.Go(func() error {
			title, snippet := h.Title, h.Snippet
			if title == "" {
				title = "No title"
			}
			if snippet == "" {
				snippet = "No description available"
			}
			page, err := a.fetcher.Fetch(ctx, h.URL, title, snippet)
			if err != nil {
				a.logger.Debug("skipping result", zap.String("url", h.URL), zap.Error(err))
				return nil
			}
			out[i] = &Result{
				Title:      page.Title,
				URL:        h.URL,
				Summary:    page.Summary,
				Content:    page.Content,
				IsAcademic: IsAcademic(h.URL),
				Domain:     Domain(h.URL),
			}
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// Rank sorts results by relevance score, multiplied by weight for academic
// sources, highest first. Equal scores keep their input order.
func Rank(results []Result, weight float64) {
	weighted := func(r Result) float64 {
		s := float64(r.RelevanceScore)
		if r.IsAcademic {
			s *= weight
		}
		return s
	}
	sort.SliceStable(results, func(i, j int) bool {
		return weighted(results[i]) > weighted(results[j])
	})
}

// RenderContext formats results as the numbered source block injected into
// the system prompt. It returns "" for no results.
func RenderContext(results []Result) string {
	if len(results) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(contextHeader)
	for i, r := range results {
		fmt.Fprintf(&sb, "[Source %d] %s\n", i+1, r.Title)
		fmt.Fprintf(&sb, "URL: %s\n", r.URL)
		fmt.Fprintf(&sb, "Summary: %s\n", r.Summary)
		if r.Content != "" {
			fmt.Fprintf(&sb, "Content: %s\n", r.Content)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
