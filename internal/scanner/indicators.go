// Package scanner implements C5, the stock scanner/scorer: per-symbol
// validation and a 0-100 weighted composite of liquidity, momentum,
// RSI, volatility and volume-consistency sub-scores. Grounded on the
// teacher's internal/score/composite weighted-sub-score shape
// (scorer.go/gates.go), generalized from momentum/technical/volume/
// quality factors to this spec's five scan sub-scores.
package scanner

import (
	"github.com/sawpanic/screener/internal/indicators"
)

// meanVolume20 is the mean of the last 20 daily volumes. Bars with
// VolumeValid=false are excluded rather than treated as zero liquidity.
func meanVolume20(volumes []float64, valid []bool) (float64, bool) {
	n := 20
	if len(volumes) < n {
		n = len(volumes)
	}
	if n == 0 {
		return 0, false
	}
	start := len(volumes) - n
	var sum float64
	var count int
	for i := start; i < len(volumes); i++ {
		if !valid[i] {
			continue
		}
		sum += volumes[i]
		count++
	}
	if count == 0 {
		return 0, false
	}
	return sum / float64(count), true
}

// volumeConsistency20 is 1 minus the coefficient of variation of the
// last 20 valid daily volumes, clamped to [0,1] (spec §4.5).
func volumeConsistency20(volumes []float64, valid []bool) (float64, bool) {
	n := 20
	if len(volumes) < n {
		n = len(volumes)
	}
	if n == 0 {
		return 0, false
	}
	start := len(volumes) - n
	var window []float64
	for i := start; i < len(volumes); i++ {
		if valid[i] {
			window = append(window, volumes[i])
		}
	}
	if len(window) < 2 {
		return 0, false
	}
	mean := 0.0
	for _, v := range window {
		mean += v
	}
	mean /= float64(len(window))
	if mean == 0 {
		return 0, false
	}
	cv := indicators.Stdev(window) / mean
	return indicators.Clamp01(1 - cv), true
}

func sma(closes []float64, n int) (float64, bool)    { return indicators.SMA(closes, n) }
func rsi14(closes []float64) (float64, bool)         { return indicators.RSI14(closes) }
func volatility20(closes []float64) (float64, bool)   { return indicators.Volatility20(closes) }
func clamp01(v float64) float64                       { return indicators.Clamp01(v) }
