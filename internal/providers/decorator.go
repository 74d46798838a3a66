package providers

import (
	"context"
	"math/rand"
	"time"

	"github.com/sony/gobreaker"

	"github.com/sawpanic/screener/internal/config"
	"github.com/sawpanic/screener/internal/domain"
	"github.com/sawpanic/screener/internal/errs"
	"github.com/sawpanic/screener/internal/net/budget"
	"github.com/sawpanic/screener/internal/net/ratelimit"
)

// decorated wraps a Provider with rate limiting, a circuit breaker,
// a daily budget tracker and exponential-backoff retries, so that
// every concrete adapter (Stooq, Yahoo, quote-only) gets the same
// resilience behavior without repeating it. Grounded on the teacher's
// internal/net/client.Wrapper middleware ordering: budget check first
// (cheapest), then rate limit, then circuit breaker around the call.
type decorated struct {
	inner   Provider
	limiter *ratelimit.Limiter
	breaker *gobreaker.CircuitBreaker
	budget  *budget.Tracker
	retries int
	base    time.Duration
	maxWait time.Duration
}

// Decorate wraps a provider using the per-provider config. cfg.ID must
// match p.ID() so the right limiter/breaker/budget settings apply.
func Decorate(p Provider, cfg config.ProviderConfig) Provider {
	return &decorated{
		inner:   p,
		limiter: ratelimit.NewLimiter(float64(cfg.RPM)/60.0, cfg.Burst),
		breaker: newProviderBreaker(cfg.ID),
		budget:  budget.NewTracker(int64(cfg.DailyBudget), 0, 0.8),
		retries: cfg.MaxRetries,
		base:    500 * time.Millisecond,
		maxWait: 30 * time.Second,
	}
}

func newProviderBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool { return c.ConsecutiveFailures >= 5 },
	})
}

func (d *decorated) ID() string { return d.inner.ID() }

func (d *decorated) GetSeries(ctx context.Context, symbol domain.Symbol, period domain.Period) (domain.PriceSeries, error) {
	result, err := d.call(ctx, func(ctx context.Context) (interface{}, error) {
		return d.inner.GetSeries(ctx, symbol, period)
	})
	if err != nil {
		return domain.PriceSeries{}, err
	}
	return result.(domain.PriceSeries), nil
}

func (d *decorated) GetQuote(ctx context.Context, symbol domain.Symbol) (domain.Quote, error) {
	result, err := d.call(ctx, func(ctx context.Context) (interface{}, error) {
		return d.inner.GetQuote(ctx, symbol)
	})
	if err != nil {
		return domain.Quote{}, err
	}
	return result.(domain.Quote), nil
}

// call runs fn through budget, rate-limit and circuit-breaker
// middleware, retrying transient failures with jittered exponential
// backoff up to d.retries times. A permanent provider error aborts
// immediately without consuming a retry.
func (d *decorated) call(ctx context.Context, fn func(context.Context) (interface{}, error)) (interface{}, error) {
	if err := d.budget.Allow(); err != nil {
		return nil, errs.ProviderExhausted("")
	}

	var lastErr error
	for attempt := 0; attempt <= d.retries; attempt++ {
		if attempt > 0 {
			wait := Backoff(attempt-1, d.base, d.maxWait, rand.Float64)
			select {
			case <-ctx.Done():
				return nil, errs.Cancelled()
			case <-time.After(wait):
			}
		}

		if err := d.limiter.Wait(ctx); err != nil {
			return nil, errs.Cancelled()
		}
		_ = d.budget.Consume()

		result, err := d.breaker.Execute(func() (interface{}, error) { return fn(ctx) })
		if err == nil {
			return result, nil
		}
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return nil, errs.ProviderTransient(d.inner.ID(), "circuit open", err)
		}
		if perr, ok := err.(*errs.Error); ok && perr.Kind == errs.KindProviderPermanent {
			return nil, perr
		}
		lastErr = err
	}
	return nil, errs.ProviderTransient(d.inner.ID(), "retries exhausted", lastErr)
}
