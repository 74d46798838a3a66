// Package ranker implements C7, the opportunity ranker: a deterministic
// combined score over scan results and predictions, sorted with a
// strict tie-break for reproducible output. Grounded on the teacher's
// internal/score/composite weighted-combination-plus-explanation shape
// (explain.go), simplified to spec.md §4.7's single combined formula.
package ranker

import (
	"fmt"
	"sort"

	"github.com/sawpanic/screener/internal/domain"
)

const (
	scanWeight       = 0.4
	confidenceWeight = 0.6
)

// Rank combines each symbol's scan score and prediction confidence into
// a single ranked, explained opportunity list, truncated to the top K.
func Rank(scans []domain.ScanResult, predictions map[domain.Symbol]domain.Prediction, topK int) []domain.Opportunity {
	opportunities := make([]domain.Opportunity, 0, len(scans))
	for _, scan := range scans {
		prediction, ok := predictions[scan.Symbol]
		if !ok {
			continue
		}
		combined := scanWeight*scan.Score + confidenceWeight*(prediction.Confidence*100)
		opportunities = append(opportunities, domain.Opportunity{
			Symbol:        scan.Symbol,
			Sector:        scan.Sector,
			ScanScore:     scan.Score,
			Prediction:    prediction,
			CombinedScore: combined,
			Explanation:   explain(scan, prediction),
		})
	}

	sort.Slice(opportunities, func(i, j int) bool {
		if opportunities[i].CombinedScore != opportunities[j].CombinedScore {
			return opportunities[i].CombinedScore > opportunities[j].CombinedScore
		}
		if opportunities[i].ScanScore != opportunities[j].ScanScore {
			return opportunities[i].ScanScore > opportunities[j].ScanScore
		}
		return opportunities[i].Symbol < opportunities[j].Symbol
	})

	if topK > 0 && len(opportunities) > topK {
		opportunities = opportunities[:topK]
	}
	for i := range opportunities {
		opportunities[i].Rank = i + 1
	}
	return opportunities
}

// RankScanOnly ranks by scan score alone, for runs started with
// --skip-predict: every opportunity carries a zero-value Prediction
// rather than being dropped for lacking one.
func RankScanOnly(scans []domain.ScanResult, topK int) []domain.Opportunity {
	opportunities := make([]domain.Opportunity, 0, len(scans))
	for _, scan := range scans {
		opportunities = append(opportunities, domain.Opportunity{
			Symbol:        scan.Symbol,
			Sector:        scan.Sector,
			ScanScore:     scan.Score,
			CombinedScore: scan.Score,
			Explanation:   fmt.Sprintf("scan_score=%.1f (predict skipped)", scan.Score),
		})
	}

	sort.Slice(opportunities, func(i, j int) bool {
		if opportunities[i].CombinedScore != opportunities[j].CombinedScore {
			return opportunities[i].CombinedScore > opportunities[j].CombinedScore
		}
		return opportunities[i].Symbol < opportunities[j].Symbol
	})

	if topK > 0 && len(opportunities) > topK {
		opportunities = opportunities[:topK]
	}
	for i := range opportunities {
		opportunities[i].Rank = i + 1
	}
	return opportunities
}

// explain names the dominant contributing component(s) for one
// opportunity so the report surface stays auditable.
func explain(scan domain.ScanResult, prediction domain.Prediction) string {
	components := []struct {
		name   string
		weight float64
	}{
		{"LSTM", prediction.Components.LSTM.Weight},
		{"Trend", prediction.Components.Trend.Weight},
		{"Technical", prediction.Components.Technical.Weight},
		{"Sentiment", prediction.Components.Sentiment.Weight},
	}
	sort.Slice(components, func(i, j int) bool { return components[i].weight > components[j].weight })

	dominant := "no component"
	if len(components) > 0 && components[0].weight > 0 {
		dominant = components[0].name
	}

	return fmt.Sprintf("scan_score=%.1f signal=%s confidence=%.2f dominant=%s",
		scan.Score, prediction.Signal, prediction.Confidence, dominant)
}
