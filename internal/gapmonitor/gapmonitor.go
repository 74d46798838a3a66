// Package gapmonitor implements C4, the Index/Gap Monitor: a weighted
// blend of overnight US index returns into a predicted local opening
// gap and a market-wide sentiment band, plus the SPI futures
// trading-window boundary test. Grounded on the teacher's
// internal/domain/regime weighted-indicator combination shape, reused
// here for blending index returns instead of volatility indicators.
package gapmonitor

import (
	"time"

	"github.com/sawpanic/screener/internal/config"
	"github.com/sawpanic/screener/internal/domain"
)

// Monitor blends US index closes into a predicted local gap.
type Monitor struct {
	cfg config.GapConfig
}

func NewMonitor(cfg config.GapConfig) *Monitor {
	return &Monitor{cfg: cfg}
}

// PredictGap blends the configured US-index weights into a single
// predicted opening gap percentage and a confidence reflecting how
// many of the weighted indices actually reported (spec §4.4: a quote
// outage for one index degrades confidence, it does not zero the
// whole prediction).
func (m *Monitor) PredictGap(indices []domain.USIndexQuote) (pct, confidence float64) {
	var weightedSum, totalWeight float64
	for _, idx := range indices {
		weight, ok := m.cfg.USWeights[idx.Name]
		if !ok || idx.Unavailable {
			continue
		}
		weightedSum += weight * idx.ReturnPct * m.cfg.Correlation
		totalWeight += weight
	}
	if totalWeight <= 0 {
		return 0, 0
	}
	pct = weightedSum / totalWeight
	confidence = totalWeight // configured weights already sum to 1.0 when complete
	if confidence > 1 {
		confidence = 1
	}
	return pct, confidence
}

// SentimentScore composes C4's 0-100 market-sentiment composite (spec
// §4.4): 30% overnight US average return, 25% predicted gap, 15%
// US-index sign agreement, 20% weighted 7d/14d local blend (60/40),
// 10% confidence baseline. gapConfidence is the 0-1 fraction
// PredictGap returns.
func SentimentScore(indices []domain.USIndexQuote, gapPct, gapConfidence float64, local domain.IndexChange) float64 {
	usAvg := averageUSReturn(indices)
	agreement := usSignAgreement(indices)
	localBlend := 0.6*local.Pct7D + 0.4*local.Pct14D

	overnightUS := centeredScore(usAvg, 2)
	predictedGap := centeredScore(gapPct, 2)
	usAgreement := agreement * 100
	localBlendScore := centeredScore(localBlend, 5)
	confidenceBaseline := gapConfidence * 100

	return 0.30*overnightUS + 0.25*predictedGap + 0.15*usAgreement + 0.20*localBlendScore + 0.10*confidenceBaseline
}

func averageUSReturn(indices []domain.USIndexQuote) float64 {
	var sum float64
	n := 0
	for _, idx := range indices {
		if idx.Unavailable {
			continue
		}
		sum += idx.ReturnPct
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// usSignAgreement is the fraction of reporting US indices that share
// the majority sign of return, in [0,1].
func usSignAgreement(indices []domain.USIndexQuote) float64 {
	pos, neg, total := 0, 0, 0
	for _, idx := range indices {
		if idx.Unavailable {
			continue
		}
		total++
		switch {
		case idx.ReturnPct > 0:
			pos++
		case idx.ReturnPct < 0:
			neg++
		}
	}
	if total == 0 {
		return 0
	}
	majority := pos
	if neg > majority {
		majority = neg
	}
	return float64(majority) / float64(total)
}

// centeredScore maps a signed percentage return onto a 0-100 scale
// centered at 50, saturating at ±satPct.
func centeredScore(pct, satPct float64) float64 {
	x := pct / satPct
	if x > 1 {
		x = 1
	} else if x < -1 {
		x = -1
	}
	return (x + 1) * 50
}

// SentimentBand classifies the §4.4 0-100 sentiment score into one of
// six inclusive, non-overlapping bands, gated on confidence for the
// STRONG_BUY/STRONG_SELL extremes (spec §4.4). gapConfidence is the
// 0-1 fraction PredictGap returns.
func SentimentBand(score, gapConfidence float64) domain.SentimentBand {
	confPct := gapConfidence * 100
	switch {
	case score >= 70 && confPct >= 70:
		return domain.BandStrongBuy
	case score >= 60:
		return domain.BandBuy
	case score >= 45 && score <= 55:
		return domain.BandNeutral
	case score <= 30 && confPct >= 70:
		return domain.BandStrongSell
	case score <= 40:
		return domain.BandSell
	default:
		return domain.BandHold
	}
}

// spiWindowStartHour/Minute and spiWindowMorningEnd bound the SPI 200
// futures' overnight trading session in the local exchange's
// timezone-naive clock time: the window the monitor treats as
// "settled" data rather than still-moving intraday US futures.
const (
	spiWindowStartHour   = 17 // 5pm local, prior session
	spiWindowStartMinute = 10 // evening boundary opens at 17:10, not 17:00
	spiWindowMorningEnd  = 8  // window closes at 08:00 local
)

// InSPIWindow reports whether t falls within the SPI futures
// overnight trading window: (hour > 17) OR (hour == 17 AND minute >=
// 10) OR (hour < 8), per spec §4.4.
func InSPIWindow(t time.Time) bool {
	h, m := t.Hour(), t.Minute()
	switch {
	case h > spiWindowStartHour:
		return true
	case h == spiWindowStartHour:
		return m >= spiWindowStartMinute
	default:
		return h < spiWindowMorningEnd
	}
}
