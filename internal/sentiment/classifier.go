// Package sentiment implements C2's financial-text classifier. No ML
// runtime exists anywhere in the example pack, so per DESIGN.md's
// Open Question decision this is a deterministic lexicon classifier —
// never a per-symbol mock — scoring each article by weighted keyword
// hits, grounded on the teacher's weighted-indicator voting shape in
// internal/domain/regime/detector.go (calculateMajorityVote),
// repurposed here from regime indicators to lexicon hit counts.
package sentiment

import (
	"math"
	"strings"

	"github.com/sawpanic/screener/internal/domain"
)

// lexiconEntry is one scored keyword. Weight is additive into the
// positive/negative tallies; longer, more specific phrases are given
// higher weight than single generic words.
type lexiconEntry struct {
	phrase string
	weight float64
}

var positiveLexicon = []lexiconEntry{
	{"beats expectations", 3}, {"raises guidance", 3}, {"record profit", 3},
	{"upgraded", 2}, {"outperform", 2}, {"strong demand", 2}, {"earnings beat", 2.5},
	{"buyback", 1.5}, {"dividend increase", 2}, {"contract win", 2}, {"expansion", 1},
	{"surge", 1.5}, {"rally", 1.5}, {"bullish", 1.5}, {"growth", 1}, {"profit", 1},
	{"positive", 0.75}, {"up", 0.3}, {"gain", 0.75}, {"strong", 0.75},
}

var negativeLexicon = []lexiconEntry{
	{"misses expectations", 3}, {"cuts guidance", 3}, {"profit warning", 3.5},
	{"downgraded", 2}, {"underperform", 2}, {"weak demand", 2}, {"earnings miss", 2.5},
	{"writedown", 2.5}, {"dividend cut", 2.5}, {"lawsuit", 2}, {"investigation", 2},
	{"plunge", 1.5}, {"selloff", 1.5}, {"bearish", 1.5}, {"decline", 1}, {"loss", 1},
	{"negative", 0.75}, {"down", 0.3}, {"drop", 0.75}, {"weak", 0.75},
}

// Classifier is a stateless lexicon classifier; a single instance is
// safe to share across goroutines scanning different symbols.
type Classifier struct {
	modelID string
}

// NewClassifier returns a classifier identified by modelID (recorded
// on every AggregateSentiment for provenance, spec §4.2).
func NewClassifier(modelID string) *Classifier {
	return &Classifier{modelID: modelID}
}

// ModelID returns the identifier recorded alongside this classifier's
// output.
func (c *Classifier) ModelID() string { return c.modelID }

// Classify scores one article's title+summary text. P values always
// sum to 1.0; Confidence reflects how many lexicon hits contributed,
// not merely the sign of the score (an article with zero hits is
// neutral with low confidence, not a confident zero).
func (c *Classifier) Classify(article domain.NewsArticle) domain.ArticleSentiment {
	text := strings.ToLower(article.Title + " " + article.Summary)

	posScore := lexiconScore(text, positiveLexicon)
	negScore := lexiconScore(text, negativeLexicon)
	totalHits := posScore + negScore

	pPos, pNeutral, pNeg := softmax3(posScore, negScore)

	confidence := 0.0
	if totalHits > 0 {
		confidence = clamp01(totalHits / (totalHits + 3))
	}

	label := domain.SentimentNeutral
	switch {
	case pPos > pNeg && pPos > pNeutral:
		label = domain.SentimentPositive
	case pNeg > pPos && pNeg > pNeutral:
		label = domain.SentimentNegative
	}

	return domain.ArticleSentiment{
		ArticleURL: article.URL,
		Label:      label,
		PPositive:  pPos,
		PNeutral:   pNeutral,
		PNegative:  pNeg,
		Confidence: confidence,
	}
}

func lexiconScore(text string, lexicon []lexiconEntry) float64 {
	var score float64
	for _, entry := range lexicon {
		if strings.Contains(text, entry.phrase) {
			score += entry.weight
		}
	}
	return score
}

// softmax3 converts raw positive/negative lexicon scores into a
// 3-way probability distribution with an implicit neutral baseline of
// 1.0 (an article with no hits at all must land at 1/3 each, not
// collapse to a divide-by-zero).
func softmax3(pos, neg float64) (pPos, pNeutral, pNeg float64) {
	ePos := math.Exp(pos)
	eNeutral := math.Exp(0)
	eNeg := math.Exp(neg)
	sum := ePos + eNeutral + eNeg
	return ePos / sum, eNeutral / sum, eNeg / sum
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
