package orchestrator

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/screener/internal/domain"
	"github.com/sawpanic/screener/internal/news"
	"github.com/sawpanic/screener/internal/sentiment"
)

// NewsSentimentPipeline adapts C2's news aggregator and sentiment
// classifier into the SentimentEngine seam Predict drives. A source
// erroring is logged and otherwise ignored: spec §4.2 treats partial
// news coverage as normal, not a fetch failure.
type NewsSentimentPipeline struct {
	News       *news.Aggregator
	Classifier *sentiment.Classifier
}

func NewNewsSentimentPipeline(agg *news.Aggregator, classifier *sentiment.Classifier) *NewsSentimentPipeline {
	return &NewsSentimentPipeline{News: agg, Classifier: classifier}
}

func (p *NewsSentimentPipeline) Sentiment(ctx context.Context, symbol domain.Symbol) (domain.AggregateSentiment, error) {
	articles, errs := p.News.FetchAll(ctx, symbol)
	for _, err := range errs {
		log.Warn().Err(err).Str("symbol", string(symbol)).Msg("orchestrator: news source failed")
	}
	return sentiment.Aggregate(symbol, p.Classifier, articles), nil
}
