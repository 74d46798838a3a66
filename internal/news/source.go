// Package news implements C2's news retrieval: pluggable NewsSource
// adapters (RSS/Atom, JSON headlines), deduplication and aggregation
// by symbol. Grounded on the same provider-chain shape as
// internal/providers, generalized from price history to headlines.
package news

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sawpanic/screener/internal/domain"
)

// Source is one upstream news feed.
type Source interface {
	ID() string
	FetchArticles(ctx context.Context, symbol domain.Symbol, maxArticles int) ([]domain.NewsArticle, error)
}

// Aggregator fans a symbol's article fetch out across every
// registered source, dedupes by URL, and returns the most recent
// maxArticles, newest first.
type Aggregator struct {
	sources     []Source
	maxArticles int
}

func NewAggregator(sources []Source, maxArticles int) *Aggregator {
	return &Aggregator{sources: sources, maxArticles: maxArticles}
}

// FetchAll queries every source concurrently, one goroutine per source,
// and returns the deduplicated, time-sorted union; when two sources
// carry the same URL, the copy from the earlier-registered source is
// kept. A source error is logged by the
// caller and simply contributes zero articles rather than failing the
// whole fetch — per spec §4.2, partial news coverage is not a hard
// failure.
func (a *Aggregator) FetchAll(ctx context.Context, symbol domain.Symbol) ([]domain.NewsArticle, []error) {
	results := make([][]domain.NewsArticle, len(a.sources))
	fetchErrs := make([]error, len(a.sources))
	var wg sync.WaitGroup
	for i, s := range a.sources {
		wg.Add(1)
		go func(i int, s Source) {
			defer wg.Done()
			results[i], fetchErrs[i] = s.FetchArticles(ctx, symbol, a.maxArticles)
		}(i, s)
	}
	wg.Wait()

	seen := make(map[string]bool)
	var all []domain.NewsArticle
	var errs []error
	now := time.Now()

	for i, articles := range results {
		if fetchErrs[i] != nil {
			errs = append(errs, fetchErrs[i])
			continue
		}
		for _, art := range articles {
			if stale(art, now) {
				continue
			}
			key := normalizeURL(art.URL)
			if seen[key] {
				continue
			}
			seen[key] = true
			all = append(all, art)
		}
	}

	sort.Slice(all, func(i, j int) bool { return all[i].PublishedAt.After(all[j].PublishedAt) })
	if len(all) > a.maxArticles {
		all = all[:a.maxArticles]
	}
	return all, errs
}

func normalizeURL(u string) string {
	u = strings.TrimSuffix(u, "/")
	u = strings.TrimPrefix(u, "https://")
	u = strings.TrimPrefix(u, "http://")
	u = strings.TrimPrefix(u, "www.")
	return strings.ToLower(u)
}

// stale reports whether an article is too old to be relevant to an
// overnight scan (spec §4.2: news older than 48h carries no signal).
func stale(a domain.NewsArticle, now time.Time) bool {
	return now.Sub(a.PublishedAt) > 48*time.Hour
}
