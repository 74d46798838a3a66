package sentiment

import (
	"time"

	"github.com/sawpanic/screener/internal/domain"
)

// Aggregate combines a symbol's classified articles into the
// confidence-weighted summary the ensemble's sentiment component
// consumes (spec §4.2/§4.6d). Zero articles is the explicit "no news"
// state (domain.AggregateSentiment.NoNews), not a zero-confidence
// reading, so the ensemble can distinguish "neutral because no news"
// from "neutral because the news was mixed."
func Aggregate(symbol domain.Symbol, classifier *Classifier, articles []domain.NewsArticle) domain.AggregateSentiment {
	if len(articles) == 0 {
		return domain.AggregateSentiment{Symbol: symbol, ComputedAt: time.Now().UTC()}
	}

	var weightedDirection, totalWeight float64
	sourceSet := make(map[string]bool)
	for _, a := range articles {
		scored := classifier.Classify(a)
		weight := scored.Confidence
		weightedDirection += scored.SignedScore() * weight
		totalWeight += weight
		sourceSet[a.Source] = true
	}

	direction := 0.0
	confidence := 0.0
	if totalWeight > 0 {
		direction = clampSigned(weightedDirection / totalWeight)
		confidence = clamp01(totalWeight / float64(len(articles)))
	}

	sources := make([]string, 0, len(sourceSet))
	for s := range sourceSet {
		sources = append(sources, s)
	}

	return domain.AggregateSentiment{
		Symbol:       symbol,
		Direction:    direction,
		Confidence:   confidence,
		ArticleCount: len(articles),
		Sources:      sources,
		ComputedAt:   time.Now().UTC(),
	}
}

func clampSigned(v float64) float64 {
	if v < -1 {
		return -1
	}
	if v > 1 {
		return 1
	}
	return v
}
