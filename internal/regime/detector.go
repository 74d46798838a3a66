// Package regime implements C3, market regime detection: EWMA
// volatility with a GARCH(1,1) refinement and a Gaussian-mixture
// refinement, each falling back to a simpler estimator when it can't
// fit, combined with a crash-risk logistic score. Grounded on the
// teacher's internal/domain/regime.RegimeDetector, without its weighted
// multi-indicator vote: the label comes from the annualized volatility
// alone (GARCH when it fits, EWMA otherwise), and the Gaussian-mixture
// state is reported on Result without changing the label.
package regime

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/sawpanic/screener/internal/config"
	"github.com/sawpanic/screener/internal/domain"
)

// Detector classifies market-wide volatility regime from a local
// index's trailing returns.
type Detector struct {
	cfg config.RegimeConfig
}

func NewDetector(cfg config.RegimeConfig) *Detector {
	return &Detector{cfg: cfg}
}

// Result is the detector's full verdict, kept separate from
// domain.MarketSnapshot so intermediate indicator values stay
// available for the report/explain surface.
type Result struct {
	Label       domain.RegimeLabel
	EWMAVol     float64
	GARCHVol    float64
	UsedGARCH   bool
	GMMRegime   int
	UsedGMM     bool
	CrashRisk   float64
}

// Detect classifies the regime from daily close prices, oldest first.
// Fewer than cfg.MinObservations prices yields RegimeUnknown rather
// than a guess built on too little data.
func (d *Detector) Detect(prices []float64) Result {
	if len(prices) < d.cfg.MinObservations {
		return Result{Label: domain.RegimeUnknown}
	}

	returns := logReturns(prices)
	ewma := ewmaVolatility(returns, halfLifeLambda(22))

	garchVol, usedGARCH := garch11Volatility(returns)
	effectiveVol := ewma
	if usedGARCH {
		effectiveVol = garchVol
	}

	gmmRegime, usedGMM := gaussianMixtureRegime(returns)
	if !usedGMM {
		gmmRegime = quantileRegime(effectiveVol, d.cfg.CalmThresholdPct, d.cfg.HighVolThresholdPct)
	}

	label := labelFromVol(effectiveVol*math.Sqrt(252)*100, d.cfg.CalmThresholdPct, d.cfg.HighVolThresholdPct)
	crashRisk := crashRiskScore(returns, effectiveVol)

	return Result{
		Label:     label,
		EWMAVol:   ewma,
		GARCHVol:  garchVol,
		UsedGARCH: usedGARCH,
		GMMRegime: gmmRegime,
		UsedGMM:   usedGMM,
		CrashRisk: crashRisk,
	}
}

func logReturns(prices []float64) []float64 {
	out := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		if prices[i-1] <= 0 || prices[i] <= 0 {
			continue
		}
		out = append(out, math.Log(prices[i]/prices[i-1]))
	}
	return out
}

func halfLifeLambda(halfLifeDays float64) float64 {
	return math.Exp(math.Log(0.5) / halfLifeDays)
}

// ewmaVolatility computes an exponentially-weighted moving-average
// volatility estimate, most recent return weighted highest.
func ewmaVolatility(returns []float64, lambda float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	variance := returns[0] * returns[0]
	for i := 1; i < len(returns); i++ {
		variance = lambda*variance + (1-lambda)*returns[i]*returns[i]
	}
	return math.Sqrt(variance)
}

// garch11Volatility fits a GARCH(1,1) variance recursion via a small
// fixed-grid quasi-MLE (a full numerical optimizer is out of scope for
// this spec's overnight batch use case). Falls back to ok=false when
// the series is too short to fit stably.
func garch11Volatility(returns []float64) (vol float64, ok bool) {
	if len(returns) < 60 {
		return 0, false
	}
	longRunVar := stat.Variance(returns, nil)
	if longRunVar <= 0 {
		return 0, false
	}

	bestLL := math.Inf(-1)
	var bestVariance float64
	for _, alpha := range []float64{0.05, 0.1, 0.15} {
		for _, beta := range []float64{0.8, 0.85, 0.9} {
			if alpha+beta >= 1 {
				continue
			}
			omega := longRunVar * (1 - alpha - beta)
			variance := longRunVar
			ll := 0.0
			for _, r := range returns {
				variance = omega + alpha*r*r + beta*variance
				if variance <= 0 {
					variance = 1e-12
				}
				ll += -0.5 * (math.Log(2*math.Pi*variance) + r*r/variance)
			}
			if ll > bestLL {
				bestLL = ll
				bestVariance = variance
			}
		}
	}
	if bestVariance <= 0 {
		return 0, false
	}
	return math.Sqrt(bestVariance), true
}

// gaussianMixtureRegime fits a 2-state Gaussian mixture over |returns|
// via a short fixed-iteration EM, returning the regime (0=calm,
// 1=volatile) the most recent observation is most likely drawn from.
// Falls back to ok=false on too little data or a degenerate fit.
func gaussianMixtureRegime(returns []float64) (regime int, ok bool) {
	if len(returns) < 90 {
		return 0, false
	}
	abs := make([]float64, len(returns))
	for i, r := range returns {
		abs[i] = math.Abs(r)
	}
	mean := stat.Mean(abs, nil)
	std := math.Sqrt(stat.Variance(abs, nil))
	if std <= 0 {
		return 0, false
	}

	mu0, mu1 := mean-std/2, mean+std/2
	sigma0, sigma1 := std, std
	w0, w1 := 0.7, 0.3

	for iter := 0; iter < 20; iter++ {
		var sumR0, sumR1, sumR0x, sumR1x float64
		for _, x := range abs {
			r0 := w0 * gaussianPDF(x, mu0, sigma0)
			r1 := w1 * gaussianPDF(x, mu1, sigma1)
			total := r0 + r1
			if total <= 0 {
				continue
			}
			r0 /= total
			r1 /= total
			sumR0 += r0
			sumR1 += r1
			sumR0x += r0 * x
			sumR1x += r1 * x
		}
		if sumR0 > 0 {
			mu0 = sumR0x / sumR0
		}
		if sumR1 > 0 {
			mu1 = sumR1x / sumR1
		}
		n := float64(len(abs))
		if n > 0 {
			w0, w1 = sumR0/n, sumR1/n
		}
	}
	if mu1 < mu0 {
		mu0, mu1 = mu1, mu0
	}

	last := abs[len(abs)-1]
	if math.Abs(last-mu1) < math.Abs(last-mu0) {
		return 1, true
	}
	return 0, true
}

func gaussianPDF(x, mu, sigma float64) float64 {
	if sigma <= 0 {
		sigma = 1e-9
	}
	z := (x - mu) / sigma
	return math.Exp(-0.5*z*z) / (sigma * math.Sqrt(2*math.Pi))
}

func quantileRegime(vol, calmPct, highVolPct float64) int {
	annualized := vol * math.Sqrt(252) * 100
	if annualized >= highVolPct {
		return 1
	}
	return 0
}

func labelFromVol(annualizedVolPct, calmPct, highVolPct float64) domain.RegimeLabel {
	switch {
	case annualizedVolPct < calmPct:
		return domain.RegimeCalm
	case annualizedVolPct >= highVolPct:
		return domain.RegimeHighVol
	default:
		return domain.RegimeNormal
	}
}

// crashRiskScore is a logistic function of recent realized volatility
// and the largest single-day drawdown in the window, producing a
// [0,1] probability-like score (spec §4.3's crash-risk output).
func crashRiskScore(returns []float64, vol float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	worst := 0.0
	for _, r := range returns {
		if r < worst {
			worst = r
		}
	}
	annualizedVol := vol * math.Sqrt(252)
	z := 4*annualizedVol + 8*(-worst) - 1.5
	return 1 / (1 + math.Exp(-z))
}
