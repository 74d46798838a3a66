// Package providers implements C1, the Data Fetcher: a set of
// interchangeable OHLCV/quote providers wrapped in rate limiting,
// circuit breaking, daily budgets and retry-with-backoff, with
// ordered failover across providers. Grounded on the teacher's
// internal/providers/kraken.Client shape and internal/net/ratelimit +
// internal/net/circuit, generalized from a single exchange to an
// ordered multi-provider chain.
package providers

import (
	"context"
	"time"

	"github.com/sawpanic/screener/internal/domain"
)

// Provider is the uniform interface every upstream data source
// implements (spec §4.1). A provider that cannot serve a method
// returns errs.ProviderPermanent rather than panicking or faking data.
type Provider interface {
	ID() string
	GetSeries(ctx context.Context, symbol domain.Symbol, period domain.Period) (domain.PriceSeries, error)
	GetQuote(ctx context.Context, symbol domain.Symbol) (domain.Quote, error)
}

// Backoff computes the exponential-with-jitter delay before retry
// attempt n (0-indexed), matching spec §4.1's retry schedule. It is a
// pure function of its inputs so it is testable with a fake clock /
// deterministic jitter source, per the teacher's preference for
// side-effect-free scheduling helpers.
func Backoff(attempt int, base, max time.Duration, jitter func() float64) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d > max {
			d = max
			break
		}
	}
	if d > max {
		d = max
	}
	j := 1.0
	if jitter != nil {
		j = 0.5 + jitter()*0.5 // map [0,1) -> [0.5,1.0)
	}
	return time.Duration(float64(d) * j)
}
