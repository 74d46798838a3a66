package ranker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/screener/internal/domain"
)

func TestRankSortsByCombinedScoreDescending(t *testing.T) {
	scans := []domain.ScanResult{
		{Symbol: "LOW", Sector: "tech", Score: 40, Valid: true},
		{Symbol: "HIGH", Sector: "tech", Score: 90, Valid: true},
	}
	predictions := map[domain.Symbol]domain.Prediction{
		"LOW":  {Symbol: "LOW", Confidence: 0.5, Signal: domain.SignalHold},
		"HIGH": {Symbol: "HIGH", Confidence: 0.8, Signal: domain.SignalBuy},
	}

	opps := Rank(scans, predictions, 10)
	require.Len(t, opps, 2)
	assert.Equal(t, domain.Symbol("HIGH"), opps[0].Symbol)
	assert.Equal(t, 1, opps[0].Rank)
	assert.Equal(t, 2, opps[1].Rank)
}

func TestRankTiesBrokenByScanScoreThenSymbol(t *testing.T) {
	scans := []domain.ScanResult{
		{Symbol: "BBB", Sector: "tech", Score: 50, Valid: true},
		{Symbol: "AAA", Sector: "tech", Score: 50, Valid: true},
	}
	predictions := map[domain.Symbol]domain.Prediction{
		"BBB": {Symbol: "BBB", Confidence: 0.5},
		"AAA": {Symbol: "AAA", Confidence: 0.5},
	}

	opps := Rank(scans, predictions, 10)
	require.Len(t, opps, 2)
	assert.Equal(t, domain.Symbol("AAA"), opps[0].Symbol)
}

func TestRankSkipsSymbolsWithoutAPrediction(t *testing.T) {
	scans := []domain.ScanResult{{Symbol: "NOPRED", Sector: "tech", Score: 80, Valid: true}}
	opps := Rank(scans, map[domain.Symbol]domain.Prediction{}, 10)
	assert.Empty(t, opps)
}

func TestRankRespectsTopK(t *testing.T) {
	scans := []domain.ScanResult{
		{Symbol: "A", Score: 90}, {Symbol: "B", Score: 80}, {Symbol: "C", Score: 70},
	}
	predictions := map[domain.Symbol]domain.Prediction{
		"A": {Confidence: 0.9}, "B": {Confidence: 0.8}, "C": {Confidence: 0.7},
	}
	opps := Rank(scans, predictions, 2)
	assert.Len(t, opps, 2)
}
