package ensemble

import (
	"math"

	"github.com/sawpanic/screener/internal/indicators"
)

// trendComponent scores C6b: direction from the sign of the SMA20-SMA50
// gap scaled as a fraction of price, confidence from how many return
// standard deviations separate them.
func trendComponent(price, ma20, ma50, returnStdev float64) (direction, confidence float64) {
	if price <= 0 {
		return 0, 0
	}
	gapFraction := (ma20 - ma50) / price
	direction = clampSigned(gapFraction * 10)

	if returnStdev <= 0 {
		return direction, 0
	}
	separationStdevs := math.Abs(ma20-ma50) / (returnStdev * price)
	confidence = clamp01(separationStdevs / 2)
	return direction, confidence
}

// technicalComponent scores C6c: direction from RSI centering combined
// with MACD sign, confidence from whether the two indicators agree.
func technicalComponent(rsi, macd, price float64) (direction, confidence float64) {
	rsiDir := clampSigned((rsi - 50) / 50)

	macdDir := 0.0
	if price > 0 {
		macdDir = tanh(macd / price * 20)
	}

	direction = clampSigned(0.5*rsiDir + 0.5*macdDir)

	switch {
	case sign(rsiDir) == 0 || sign(macdDir) == 0:
		confidence = 0.5
	case sign(rsiDir) == sign(macdDir):
		confidence = 1.0
	default:
		confidence = 0.0
	}
	return direction, confidence
}

// sentimentComponent scores C6d: real article-derived sentiment when
// available, otherwise the gap-derived proxy. Per spec §9 this is the
// only fallback permitted — never a deterministic function of the
// symbol alone.
func sentimentComponent(articleCount int, sentimentDirection, sentimentConfidence, gapPct, gapConfidence float64) (direction, confidence float64) {
	if articleCount >= 1 {
		return sentimentDirection, sentimentConfidence
	}
	direction = clampSigned(gapPct / 2)
	confidence = 0.8 * gapConfidence
	return direction, confidence
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

func sign(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

func clamp01(v float64) float64 { return indicators.Clamp01(v) }
