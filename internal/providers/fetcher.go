package providers

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/screener/internal/cache"
	"github.com/sawpanic/screener/internal/domain"
	"github.com/sawpanic/screener/internal/errs"
)

// Fetcher is the Data Fetcher component (C1): an ordered chain of
// decorated providers with cache-first reads and recorded failover
// counts. Grounded on the teacher's multi-exchange failover intent
// (kraken.Client as one link in a chain the caller orders), made
// explicit here as a single component rather than left to call sites.
type Fetcher struct {
	chain    []Provider
	store    *cache.Tiered
	seriesTTL time.Duration
	quoteTTL  time.Duration
}

// NewFetcher builds a fetcher over an already-ordered provider chain
// (first is tried first). Decorate each provider before passing it in.
func NewFetcher(chain []Provider, store *cache.Tiered, seriesTTL, quoteTTL time.Duration) *Fetcher {
	return &Fetcher{chain: chain, store: store, seriesTTL: seriesTTL, quoteTTL: quoteTTL}
}

// FetchResult wraps a successful fetch with the bookkeeping the
// orchestrator needs: which provider ultimately served it, and how
// many providers were tried and failed before that.
type FetchResult struct {
	Series     domain.PriceSeries
	Failovers  int
	FromCache  bool
}

// GetSeries tries the cache, then walks the provider chain in order,
// returning the first success. Permanent errors skip immediately to
// the next provider; transient errors (already retried inside the
// decorator) also fall through to the next provider rather than
// aborting the whole chain.
func (f *Fetcher) GetSeries(ctx context.Context, symbol domain.Symbol, period domain.Period) (FetchResult, error) {
	key := seriesCacheKey(symbol, period)
	if raw, ok := f.store.Get(key); ok {
		var series domain.PriceSeries
		if err := json.Unmarshal(raw, &series); err == nil {
			return FetchResult{Series: series, FromCache: true}, nil
		}
	}

	var lastErr error
	failovers := 0
	for i, p := range f.chain {
		series, err := p.GetSeries(ctx, symbol, period)
		if err == nil {
			if raw, merr := json.Marshal(series); merr == nil {
				f.store.Set(key, raw, f.seriesTTL)
			}
			return FetchResult{Series: series, Failovers: failovers}, nil
		}
		lastErr = err
		if i < len(f.chain)-1 {
			failovers++
			log.Warn().Err(err).Str("symbol", string(symbol)).Str("provider", p.ID()).Msg("provider failed, trying next")
		}
		var cancelled *errs.Error
		if errors.As(err, &cancelled) && cancelled.Kind == errs.KindCancelled {
			return FetchResult{}, err
		}
	}
	return FetchResult{}, errs.ProviderExhausted(string(symbol))
}

// GetQuote mirrors GetSeries with the quote-specific TTL. The bool
// reports whether a quote was obtained, from the cache or a provider.
func (f *Fetcher) GetQuote(ctx context.Context, symbol domain.Symbol) (domain.Quote, bool, error) {
	key := quoteCacheKey(symbol)
	if raw, ok := f.store.Get(key); ok {
		var q domain.Quote
		if err := json.Unmarshal(raw, &q); err == nil {
			return q, true, nil
		}
	}

	var lastErr error
	for _, p := range f.chain {
		q, err := p.GetQuote(ctx, symbol)
		if err == nil {
			if raw, merr := json.Marshal(q); merr == nil {
				f.store.Set(key, raw, f.quoteTTL)
			}
			return q, true, nil
		}
		lastErr = err
	}
	return domain.Quote{}, false, errs.ComponentFailure(string(symbol), "fetcher.quote", lastErr)
}

func seriesCacheKey(symbol domain.Symbol, period domain.Period) string {
	return "series:" + string(symbol) + ":" + string(period)
}

func quoteCacheKey(symbol domain.Symbol) string {
	return "quote:" + string(symbol)
}
