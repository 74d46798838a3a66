package news

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/screener/internal/domain"
)

type fakeSource struct {
	id       string
	articles []domain.NewsArticle
	err      error
}

func (f *fakeSource) ID() string { return f.id }
func (f *fakeSource) FetchArticles(ctx context.Context, symbol domain.Symbol, maxArticles int) ([]domain.NewsArticle, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.articles, nil
}

func TestAggregatorDedupesByNormalizedURL(t *testing.T) {
	now := time.Now()
	s1 := &fakeSource{id: "rss", articles: []domain.NewsArticle{
		{URL: "https://www.example.com/story-1", Title: "A", PublishedAt: now},
	}}
	s2 := &fakeSource{id: "json", articles: []domain.NewsArticle{
		{URL: "http://example.com/story-1/", Title: "A dup", PublishedAt: now.Add(-time.Minute)},
	}}

	agg := NewAggregator([]Source{s1, s2}, 10)
	articles, errs := agg.FetchAll(context.Background(), "BHP.AX")

	require.Empty(t, errs)
	require.Len(t, articles, 1, "same story from two sources should dedupe to one")
}

func TestAggregatorDropsStaleArticles(t *testing.T) {
	s := &fakeSource{id: "rss", articles: []domain.NewsArticle{
		{URL: "https://example.com/old", Title: "old", PublishedAt: time.Now().Add(-72 * time.Hour)},
		{URL: "https://example.com/fresh", Title: "fresh", PublishedAt: time.Now()},
	}}

	agg := NewAggregator([]Source{s}, 10)
	articles, _ := agg.FetchAll(context.Background(), "BHP.AX")

	require.Len(t, articles, 1)
	assert.Equal(t, "fresh", articles[0].Title)
}

func TestAggregatorContinuesPastOneSourceError(t *testing.T) {
	failing := &fakeSource{id: "rss", err: assertErr("feed down")}
	working := &fakeSource{id: "json", articles: []domain.NewsArticle{
		{URL: "https://example.com/a", Title: "a", PublishedAt: time.Now()},
	}}

	agg := NewAggregator([]Source{failing, working}, 10)
	articles, errs := agg.FetchAll(context.Background(), "BHP.AX")

	require.Len(t, errs, 1)
	require.Len(t, articles, 1)
}

type assertErr string

func (e assertErr) Error() string { return string(e) }
