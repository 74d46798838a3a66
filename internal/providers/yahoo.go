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

// Yahoo is the secondary tabular-history provider: Yahoo Finance's
// chart/v8 time-series JSON endpoint. Like Stooq, this is a quote/
// history endpoint, never the HTML quote-summary page.
type Yahoo struct {
	baseURL string
	client  *http.Client
}

func NewYahoo(baseURL string, timeout time.Duration) *Yahoo {
	if baseURL == "" {
		baseURL = "https://query1.finance.yahoo.com/v8/finance/chart"
	}
	return &Yahoo{baseURL: baseURL, client: &http.Client{Timeout: timeout}}
}

func (y *Yahoo) ID() string { return "yahoo" }

type yahooChartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
				AdjClose []struct {
					AdjClose []*float64 `json:"adjclose"`
				} `json:"adjclose"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func (y *Yahoo) GetSeries(ctx context.Context, symbol domain.Symbol, period domain.Period) (domain.PriceSeries, error) {
	rng := yahooRange(period)
	url := fmt.Sprintf("%s/%s?range=%s&interval=1d", y.baseURL, strings.ToUpper(string(symbol)), rng)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return domain.PriceSeries{}, errs.ProviderPermanent(y.ID(), "build request", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := y.client.Do(req)
	if err != nil {
		return domain.PriceSeries{}, errs.ProviderTransient(y.ID(), "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return domain.PriceSeries{}, errs.ProviderTransient(y.ID(), fmt.Sprintf("HTTP %d", resp.StatusCode), nil)
	}
	if resp.StatusCode != http.StatusOK {
		return domain.PriceSeries{}, errs.ProviderPermanent(y.ID(), fmt.Sprintf("HTTP %d", resp.StatusCode), nil)
	}

	var chart yahooChartResponse
	if err := json.NewDecoder(resp.Body).Decode(&chart); err != nil {
		return domain.PriceSeries{}, errs.ProviderPermanent(y.ID(), "malformed JSON", err)
	}
	if chart.Chart.Error != nil {
		return domain.PriceSeries{}, errs.ProviderPermanent(y.ID(), chart.Chart.Error.Description, nil)
	}
	if len(chart.Chart.Result) == 0 {
		return domain.PriceSeries{}, errs.ProviderPermanent(y.ID(), "empty result", nil)
	}

	result := chart.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return domain.PriceSeries{}, errs.ProviderPermanent(y.ID(), "no quote indicators", nil)
	}
	quote := result.Indicators.Quote[0]

	var adj []*float64
	if len(result.Indicators.AdjClose) > 0 {
		adj = result.Indicators.AdjClose[0].AdjClose
	}

	bars := make([]domain.Bar, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(quote.Close) || quote.Close[i] == nil {
			continue
		}
		bar := domain.Bar{
			Timestamp:     time.Unix(ts, 0).UTC(),
			Open:          deref(quote.Open, i),
			High:          deref(quote.High, i),
			Low:           deref(quote.Low, i),
			Close:         *quote.Close[i],
			AdjustedClose: *quote.Close[i],
		}
		if i < len(adj) && adj[i] != nil {
			bar.AdjustedClose = *adj[i]
		}
		if i < len(quote.Volume) && quote.Volume[i] != nil {
			bar.Volume = *quote.Volume[i]
			bar.VolumeValid = true
		}
		bars = append(bars, bar)
	}
	if len(bars) == 0 {
		return domain.PriceSeries{}, errs.ProviderPermanent(y.ID(), "no usable bars", nil)
	}

	return domain.PriceSeries{
		Symbol:    symbol,
		Period:    period,
		Bars:      bars,
		Source:    y.ID(),
		FetchedAt: time.Now().UTC(),
	}, nil
}

func (y *Yahoo) GetQuote(ctx context.Context, symbol domain.Symbol) (domain.Quote, error) {
	series, err := y.GetSeries(ctx, symbol, domain.Period1Month)
	if err != nil {
		return domain.Quote{}, err
	}
	last := series.Bars[len(series.Bars)-1]
	q := domain.Quote{Symbol: symbol, Price: last.Close, AsOf: last.Timestamp, Source: y.ID(), Volume: last.Volume}
	if len(series.Bars) >= 2 {
		q.PrevClose = series.Bars[len(series.Bars)-2].Close
	}
	return q, nil
}

func deref(s []*float64, i int) float64 {
	if i < 0 || i >= len(s) || s[i] == nil {
		return 0
	}
	return *s[i]
}

func yahooRange(period domain.Period) string {
	switch period {
	case domain.Period1Month:
		return "1mo"
	case domain.Period3Months:
		return "3mo"
	case domain.Period6Months:
		return "6mo"
	case domain.Period1Year:
		return "1y"
	default:
		return "6mo"
	}
}
