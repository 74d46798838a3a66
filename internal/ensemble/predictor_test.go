package ensemble

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/screener/internal/config"
	"github.com/sawpanic/screener/internal/domain"
)

func uptrendBars(n int, start float64) []domain.Bar {
	bars := make([]domain.Bar, n)
	price := start
	day := time.Now().AddDate(0, 0, -n)
	for i := 0; i < n; i++ {
		price *= 1.01
		bars[i] = domain.Bar{Timestamp: day.AddDate(0, 0, i), Close: price, Volume: 1000, VolumeValid: true}
	}
	return bars
}

func defaultWeights() config.EnsembleWeights {
	return config.EnsembleWeights{LSTM: 0.45, Trend: 0.25, Technical: 0.15, Sentiment: 0.15}
}

func TestPredictRedistributesWeightWhenModelMissing(t *testing.T) {
	p := NewPredictor(defaultWeights(), t.TempDir())
	series := domain.PriceSeries{Symbol: "NOPE", Bars: uptrendBars(90, 10)}
	snapshot := domain.MarketSnapshot{RegimeLabel: domain.RegimeNormal}
	sentiment := domain.AggregateSentiment{}

	pred := p.Predict(context.Background(), "NOPE", series, snapshot, sentiment)

	assert.False(t, pred.Components.LSTM.Present)
	assert.Equal(t, 0.0, pred.Components.LSTM.Weight)
	assert.True(t, pred.Components.Trend.Present)
	assert.InDelta(t, 1.0, pred.Components.Trend.Weight+pred.Components.Technical.Weight+pred.Components.Sentiment.Weight, 0.001)
}

func TestPredictSignalBuyOnStrongUptrend(t *testing.T) {
	p := NewPredictor(defaultWeights(), t.TempDir())
	series := domain.PriceSeries{Symbol: "UP", Bars: uptrendBars(90, 10)}
	snapshot := domain.MarketSnapshot{RegimeLabel: domain.RegimeNormal}
	sentiment := domain.AggregateSentiment{}

	pred := p.Predict(context.Background(), "UP", series, snapshot, sentiment)
	assert.Greater(t, pred.Direction, 0.0)
}

func TestPredictHighVolCrashRiskDowngradesBuyAndHalvesConfidence(t *testing.T) {
	p := NewPredictor(defaultWeights(), t.TempDir())
	series := domain.PriceSeries{Symbol: "UP", Bars: uptrendBars(90, 10)}
	calmSnapshot := domain.MarketSnapshot{RegimeLabel: domain.RegimeNormal}
	riskySnapshot := domain.MarketSnapshot{RegimeLabel: domain.RegimeHighVol, CrashRisk: 0.8}
	sentiment := domain.AggregateSentiment{}

	calm := p.Predict(context.Background(), "UP", series, calmSnapshot, sentiment)
	risky := p.Predict(context.Background(), "UP", series, riskySnapshot, sentiment)

	assert.InDelta(t, calm.Confidence*0.5, risky.Confidence, 0.0001)
	if calm.Signal == domain.SignalBuy {
		assert.Equal(t, domain.SignalHold, risky.Signal)
	}
}

func TestSentimentComponentFallsBackToGapProxyWithoutArticles(t *testing.T) {
	direction, confidence := sentimentComponent(0, 0.9, 0.9, 1.2, 0.5)
	assert.InDelta(t, 0.6, direction, 0.0001)
	assert.InDelta(t, 0.4, confidence, 0.0001)
}

func TestSentimentComponentUsesRealArticlesWhenPresent(t *testing.T) {
	direction, confidence := sentimentComponent(3, 0.7, 0.6, 1.2, 0.5)
	assert.Equal(t, 0.7, direction)
	assert.Equal(t, 0.6, confidence)
}

func TestLoadLinearModelMissingFileIsNotFatal(t *testing.T) {
	_, err := LoadLinearModel(t.TempDir() + "/does-not-exist.json")
	require.Error(t, err)
}
