package regime

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sawpanic/screener/internal/config"
	"github.com/sawpanic/screener/internal/domain"
)

func flatPrices(n int, seed float64) []float64 {
	prices := make([]float64, n)
	p := seed
	r := rand.New(rand.NewSource(1))
	for i := range prices {
		p *= 1 + (r.Float64()-0.5)*0.002 // ~tiny daily moves, calm market
		prices[i] = p
	}
	return prices
}

func volatilePrices(n int, seed float64) []float64 {
	prices := make([]float64, n)
	p := seed
	r := rand.New(rand.NewSource(2))
	for i := range prices {
		p *= 1 + (r.Float64()-0.5)*0.08 // large daily moves, volatile market
		prices[i] = math.Max(p, 1)
	}
	return prices
}

func TestDetectReturnsUnknownBelowMinObservations(t *testing.T) {
	cfg := config.RegimeConfig{CalmThresholdPct: 12, HighVolThresholdPct: 22, MinObservations: 60}
	d := NewDetector(cfg)

	result := d.Detect(flatPrices(10, 100))
	assert.Equal(t, domain.RegimeUnknown, result.Label)
}

func TestDetectClassifiesCalmMarket(t *testing.T) {
	cfg := config.RegimeConfig{CalmThresholdPct: 30, HighVolThresholdPct: 60, MinObservations: 60}
	d := NewDetector(cfg)

	result := d.Detect(flatPrices(120, 100))
	assert.Equal(t, domain.RegimeCalm, result.Label)
}

func TestDetectClassifiesHighVolMarket(t *testing.T) {
	cfg := config.RegimeConfig{CalmThresholdPct: 5, HighVolThresholdPct: 10, MinObservations: 60}
	d := NewDetector(cfg)

	result := d.Detect(volatilePrices(120, 100))
	assert.Equal(t, domain.RegimeHighVol, result.Label)
}

func TestDetectCrashRiskHigherInVolatileMarket(t *testing.T) {
	cfg := config.RegimeConfig{CalmThresholdPct: 12, HighVolThresholdPct: 22, MinObservations: 60}
	d := NewDetector(cfg)

	calm := d.Detect(flatPrices(120, 100))
	volatile := d.Detect(volatilePrices(120, 100))

	assert.Greater(t, volatile.CrashRisk, calm.CrashRisk)
}

func TestDetectUsesGARCHWithEnoughObservations(t *testing.T) {
	cfg := config.RegimeConfig{CalmThresholdPct: 12, HighVolThresholdPct: 22, MinObservations: 60}
	d := NewDetector(cfg)

	result := d.Detect(volatilePrices(120, 100))
	assert.True(t, result.UsedGARCH)
}
