package gapmonitor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sawpanic/screener/internal/config"
	"github.com/sawpanic/screener/internal/domain"
)

func testConfig() config.GapConfig {
	return config.GapConfig{
		Correlation: 0.65,
		USWeights:   map[string]float64{"sp500": 1.0 / 3, "nasdaq": 1.0 / 3, "dow": 1.0 / 3},
	}
}

func TestPredictGapWithAllIndicesReporting(t *testing.T) {
	m := NewMonitor(testConfig())
	indices := []domain.USIndexQuote{
		{Name: "sp500", ReturnPct: 1.0},
		{Name: "nasdaq", ReturnPct: 1.5},
		{Name: "dow", ReturnPct: 0.5},
	}
	pct, confidence := m.PredictGap(indices)
	assert.InDelta(t, 1.0*0.65, pct, 0.01)
	assert.Equal(t, 1.0, confidence)
}

func TestPredictGapDegradesConfidenceOnMissingIndex(t *testing.T) {
	m := NewMonitor(testConfig())
	indices := []domain.USIndexQuote{
		{Name: "sp500", ReturnPct: 1.0},
		{Name: "nasdaq", Unavailable: true},
		{Name: "dow", ReturnPct: 1.0},
	}
	pct, confidence := m.PredictGap(indices)
	assert.Greater(t, pct, 0.0)
	assert.InDelta(t, 2.0/3, confidence, 0.01)
}

func TestPredictGapZeroConfidenceWhenAllMissing(t *testing.T) {
	m := NewMonitor(testConfig())
	pct, confidence := m.PredictGap([]domain.USIndexQuote{{Name: "sp500", Unavailable: true}})
	assert.Equal(t, 0.0, pct)
	assert.Equal(t, 0.0, confidence)
}

func TestSentimentBandsAreInclusiveAndNonOverlapping(t *testing.T) {
	cases := []struct {
		score      float64
		confidence float64
		band       domain.SentimentBand
	}{
		{70, 0.70, domain.BandStrongBuy},
		{70, 0.69, domain.BandBuy}, // STRONG_BUY needs conf >= 70 too; falls back to BUY
		{60, 0.0, domain.BandBuy},
		{59.999, 0.0, domain.BandHold}, // (55,60) exclusive band
		{55, 0.0, domain.BandNeutral},
		{45, 0.0, domain.BandNeutral},
		{44.999, 0.0, domain.BandHold}, // (40,45) exclusive band
		{40, 0.0, domain.BandSell},
		{31, 0.0, domain.BandSell},
		{30, 0.70, domain.BandStrongSell},
		{30, 0.69, domain.BandSell}, // STRONG_SELL needs conf >= 70 too; falls back to SELL
		{0, 1.0, domain.BandStrongSell},
	}
	for _, c := range cases {
		assert.Equal(t, c.band, SentimentBand(c.score, c.confidence), "score %v conf %v", c.score, c.confidence)
	}
}

func TestSentimentScoreIsCenteredAndWithinRange(t *testing.T) {
	neutral := SentimentScore(nil, 0, 0, domain.IndexChange{})
	assert.InDelta(t, 50*(0.30+0.25+0.20), neutral, 0.01)

	bullish := SentimentScore(
		[]domain.USIndexQuote{{Name: "sp500", ReturnPct: 2.0}, {Name: "nasdaq", ReturnPct: 2.0}},
		1.0, 1.0,
		domain.IndexChange{Pct7D: 5, Pct14D: 5},
	)
	assert.GreaterOrEqual(t, bullish, 70.0)
	assert.LessOrEqual(t, bullish, 100.0)
}

func TestInSPIWindowHandlesMidnightWrap(t *testing.T) {
	evening := time.Date(2026, 7, 30, 18, 0, 0, 0, time.UTC)
	earlyMorning := time.Date(2026, 7, 30, 6, 0, 0, 0, time.UTC)
	midday := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)

	assert.True(t, InSPIWindow(evening))
	assert.True(t, InSPIWindow(earlyMorning))
	assert.False(t, InSPIWindow(midday))
}

// TestInSPIWindowCanonicalEdges pins spec §8's boundary table exactly:
// 23:05, 17:10 and 07:59 must be open; 17:09, 10:30 and 08:00 must be
// closed. 17:09 is the edge the previous hour-only check got wrong.
func TestInSPIWindowCanonicalEdges(t *testing.T) {
	at := func(h, m int) time.Time {
		return time.Date(2026, 7, 30, h, m, 0, 0, time.UTC)
	}

	assert.True(t, InSPIWindow(at(23, 5)), "23:05 must be open")
	assert.True(t, InSPIWindow(at(17, 10)), "17:10 must be open")
	assert.True(t, InSPIWindow(at(7, 59)), "07:59 must be open")

	assert.False(t, InSPIWindow(at(17, 9)), "17:09 must be closed")
	assert.False(t, InSPIWindow(at(10, 30)), "10:30 must be closed")
	assert.False(t, InSPIWindow(at(8, 0)), "08:00 must be closed")
}
