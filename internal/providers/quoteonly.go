package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sawpanic/screener/internal/domain"
	"github.com/sawpanic/screener/internal/errs"
)

// QuoteOnly is the tertiary provider: a last-resort, quote-only
// source with no history endpoint at all. Spec §4.1 allows the
// scanner to proceed on quote-only data with a "degraded" annotation
// rather than failing the symbol outright when both history providers
// are exhausted.
type QuoteOnly struct {
	baseURL string
	client  *http.Client
}

func NewQuoteOnly(baseURL string, timeout time.Duration) *QuoteOnly {
	if baseURL == "" {
		baseURL = "https://stooq.com/q/l"
	}
	return &QuoteOnly{baseURL: baseURL, client: &http.Client{Timeout: timeout}}
}

func (q *QuoteOnly) ID() string { return "quote-only" }

// GetSeries always fails permanently: this provider never serves
// history, by design, so the fetcher must not keep retrying it for a
// series request.
func (q *QuoteOnly) GetSeries(ctx context.Context, symbol domain.Symbol, period domain.Period) (domain.PriceSeries, error) {
	return domain.PriceSeries{}, errs.ProviderPermanent(q.ID(), "quote-only provider has no history endpoint", nil)
}

type quoteOnlyResponse struct {
	Symbol string  `json:"symbol"`
	Last   float64 `json:"last"`
	Prev   float64 `json:"previous_close"`
	Vol    float64 `json:"volume"`
}

func (q *QuoteOnly) GetQuote(ctx context.Context, symbol domain.Symbol) (domain.Quote, error) {
	url := fmt.Sprintf("%s/?s=%s&f=sd2t2ohlcv&e=json", q.baseURL, strings.ToLower(string(symbol)))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return domain.Quote{}, errs.ProviderPermanent(q.ID(), "build request", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := q.client.Do(req)
	if err != nil {
		return domain.Quote{}, errs.ProviderTransient(q.ID(), "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return domain.Quote{}, errs.ProviderTransient(q.ID(), fmt.Sprintf("HTTP %d", resp.StatusCode), nil)
	}
	if resp.StatusCode != http.StatusOK {
		return domain.Quote{}, errs.ProviderPermanent(q.ID(), fmt.Sprintf("HTTP %d", resp.StatusCode), nil)
	}

	var parsed quoteOnlyResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return domain.Quote{}, errs.ProviderPermanent(q.ID(), "malformed JSON", err)
	}

	return domain.Quote{
		Symbol:    symbol,
		Price:     parsed.Last,
		PrevClose: parsed.Prev,
		Volume:    parsed.Vol,
		AsOf:      time.Now().UTC(),
		Source:    q.ID(),
	}, nil
}
