package sentiment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/screener/internal/domain"
)

func TestClassifyPositiveArticle(t *testing.T) {
	c := NewClassifier("lexicon-v1")
	result := c.Classify(domain.NewsArticle{
		Title:   "Company beats expectations, raises guidance",
		Summary: "Strong demand drove a record profit this quarter.",
	})
	assert.Equal(t, domain.SentimentPositive, result.Label)
	assert.Greater(t, result.PPositive, result.PNegative)
	assert.Greater(t, result.Confidence, 0.5)
}

func TestClassifyNegativeArticle(t *testing.T) {
	c := NewClassifier("lexicon-v1")
	result := c.Classify(domain.NewsArticle{
		Title:   "Company misses expectations, cuts guidance",
		Summary: "Profit warning issued amid weak demand.",
	})
	assert.Equal(t, domain.SentimentNegative, result.Label)
	assert.Greater(t, result.PNegative, result.PPositive)
}

func TestClassifyNeutralArticleWithNoLexiconHits(t *testing.T) {
	c := NewClassifier("lexicon-v1")
	result := c.Classify(domain.NewsArticle{
		Title:   "Company announces annual general meeting date",
		Summary: "The meeting will be held in the usual venue.",
	})
	assert.Equal(t, domain.SentimentNeutral, result.Label)
	assert.Equal(t, 0.0, result.Confidence, "an article with zero lexicon hits must be zero-confidence, not a fabricated reading")
}

func TestProbabilitiesSumToOne(t *testing.T) {
	c := NewClassifier("lexicon-v1")
	result := c.Classify(domain.NewsArticle{Title: "surge rally bullish growth", Summary: ""})
	sum := result.PPositive + result.PNeutral + result.PNegative
	assert.InDelta(t, 1.0, sum, 0.0001)
}

func TestAggregateNoNewsIsDistinctFromZeroConfidence(t *testing.T) {
	c := NewClassifier("lexicon-v1")
	agg := Aggregate("BHP.AX", c, nil)
	require.True(t, agg.NoNews())
	assert.Equal(t, 0, agg.ArticleCount)
}

func TestAggregateWeightsByConfidence(t *testing.T) {
	c := NewClassifier("lexicon-v1")
	articles := []domain.NewsArticle{
		{URL: "a", Title: "beats expectations raises guidance record profit", PublishedAt: time.Now(), Source: "rss"},
		{URL: "b", Title: "annual meeting notice", PublishedAt: time.Now(), Source: "json"},
	}
	agg := Aggregate("BHP.AX", c, articles)
	require.False(t, agg.NoNews())
	assert.Equal(t, 2, agg.ArticleCount)
	assert.Greater(t, agg.Direction, 0.0, "a confidently positive article should outweigh a zero-confidence neutral one")
	assert.ElementsMatch(t, []string{"rss", "json"}, agg.Sources)
}
