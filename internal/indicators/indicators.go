// Package indicators holds the small set of price-series technical
// indicators shared by the scanner (C5) and ensemble predictor (C6):
// simple moving average, RSI, daily returns/stdev and MACD. Kept as a
// single shared package rather than duplicated per-consumer so both
// components compute the same numbers the same way.
package indicators

import "math"

// SMA returns the simple moving average of the last n closes, or
// (0, false) if fewer than n bars are available.
func SMA(closes []float64, n int) (float64, bool) {
	if len(closes) < n {
		return 0, false
	}
	window := closes[len(closes)-n:]
	sum := 0.0
	for _, c := range window {
		sum += c
	}
	return sum / float64(n), true
}

// RSI14 computes the 14-day relative strength index from a close
// series using simple (non-Wilder-smoothed) averages of gains/losses.
func RSI14(closes []float64) (float64, bool) {
	const period = 14
	if len(closes) < period+1 {
		return 0, false
	}
	window := closes[len(closes)-period-1:]
	var gainSum, lossSum float64
	for i := 1; i < len(window); i++ {
		delta := window[i] - window[i-1]
		if delta > 0 {
			gainSum += delta
		} else {
			lossSum += -delta
		}
	}
	avgGain := gainSum / period
	avgLoss := lossSum / period
	if avgLoss == 0 {
		return 100, true
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs), true
}

// DailyReturns computes simple day-over-day returns from a close series.
func DailyReturns(closes []float64) []float64 {
	if len(closes) < 2 {
		return nil
	}
	out := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] == 0 {
			continue
		}
		out = append(out, (closes[i]-closes[i-1])/closes[i-1])
	}
	return out
}

// Volatility20 is the population standard deviation of the last 20 daily
// returns (spec §4.5's "20-day realized volatility").
func Volatility20(closes []float64) (float64, bool) {
	returns := DailyReturns(closes)
	if len(returns) < 20 {
		return 0, false
	}
	window := returns[len(returns)-20:]
	return Stdev(window), true
}

// Stdev is the population standard deviation of xs.
func Stdev(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	mean := 0.0
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))
	var ss float64
	for _, x := range xs {
		d := x - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(xs)))
}

// EMA computes the exponential moving average series for the given
// period over closes, oldest-first, seeded by a simple average of the
// first `period` values. Returns nil if there isn't enough history.
func EMA(closes []float64, period int) []float64 {
	if len(closes) < period {
		return nil
	}
	out := make([]float64, len(closes))
	seed := 0.0
	for i := 0; i < period; i++ {
		seed += closes[i]
	}
	seed /= float64(period)
	out[period-1] = seed

	k := 2.0 / float64(period+1)
	for i := period; i < len(closes); i++ {
		out[i] = closes[i]*k + out[i-1]*(1-k)
	}
	return out
}

// MACD returns the MACD line (EMA12 - EMA26) for the most recent bar,
// or (0, false) if there isn't enough history.
func MACD(closes []float64) (float64, bool) {
	e12 := EMA(closes, 12)
	e26 := EMA(closes, 26)
	if e12 == nil || e26 == nil {
		return 0, false
	}
	last := len(closes) - 1
	return e12[last] - e26[last], true
}

// Clamp01 clamps v to [0,1].
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
