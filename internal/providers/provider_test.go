package providers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffGrowsExponentiallyAndCapsAtMax(t *testing.T) {
	noJitter := func() float64 { return 1.0 } // force the top of the jitter range

	base := 500 * time.Millisecond
	max := 5 * time.Second

	d0 := Backoff(0, base, max, noJitter)
	d1 := Backoff(1, base, max, noJitter)
	d2 := Backoff(2, base, max, noJitter)
	d10 := Backoff(10, base, max, noJitter)

	assert.Equal(t, base, d0)
	assert.Equal(t, 2*base, d1)
	assert.Equal(t, 4*base, d2)
	assert.Equal(t, max, d10, "attempt far beyond the cap must clamp to max")
}

func TestBackoffJitterStaysWithinHalfToFullRange(t *testing.T) {
	base := 1 * time.Second
	max := 10 * time.Second

	lo := Backoff(2, base, max, func() float64 { return 0 })
	hi := Backoff(2, base, max, func() float64 { return 0.999 })

	assert.InDelta(t, float64(2*time.Second), float64(lo), float64(2*time.Second)*0.51)
	assert.LessOrEqual(t, int64(lo), int64(hi))
	assert.LessOrEqual(t, int64(hi), int64(4*time.Second))
}

func TestBackoffNegativeAttemptTreatedAsZero(t *testing.T) {
	base := 300 * time.Millisecond
	max := 5 * time.Second
	d := Backoff(-3, base, max, func() float64 { return 1.0 })
	assert.Equal(t, base, d)
}
